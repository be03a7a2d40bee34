// Package websocket is the WebSocket sub-protocol container, offered to the
// runner as an optional capability under Marker.
//
// The capability mounts a chi sub-router on the web application unit when it
// is attached. Endpoints registered afterwards are upgraded with
// gorilla/websocket and served by their Handler on the request goroutine.
//
//	reg.Provide(websocket.Marker, websocket.NewCapability(websocket.Options{}))
//
// Upgraded connections are tracked by the Container. CloseAll sends a
// going-away close frame to each of them and is wired to the server's
// shutdown hooks by the runner.
package websocket
