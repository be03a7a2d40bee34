// Package tracker counts in-flight HTTP requests so that shutdown can wait
// for them to finish.
//
// The tracker is installed once, as the outermost handler of the web unit:
//
//	t := tracker.New(tracker.WithRegisterer(reg))
//	srv.SetHandler(t.Wrap(unit))
//
// ActiveCount is safe to read from any goroutine. Once StopAdmitting has been
// called, new requests are answered with 503 and are not counted.
//
// Connections taken over through http.Hijacker (WebSocket upgrades) leave the
// count when they are hijacked; their lifetime is managed by the container
// that upgraded them.
package tracker
