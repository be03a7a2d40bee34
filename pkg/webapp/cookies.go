package webapp

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strings"
)

// hardenCookies makes every cookie set by next HttpOnly, and Secure when
// secure is true.
func hardenCookies(secure bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			cw := &cookieWriter{ResponseWriter: w, secure: secure}
			// A handler that never writes leaves the header to net/http,
			// which commits it after ServeHTTP returns.
			defer cw.rewrite()
			next.ServeHTTP(cw, r)
		})
	}
}

type cookieWriter struct {
	http.ResponseWriter
	secure bool
	done   bool
}

func (w *cookieWriter) rewrite() {
	if w.done {
		return
	}
	w.done = true

	h := w.Header()
	cookies := h.Values("Set-Cookie")
	if len(cookies) == 0 {
		return
	}
	out := make([]string, 0, len(cookies))
	for _, c := range cookies {
		out = append(out, hardenCookie(c, w.secure))
	}
	h["Set-Cookie"] = out
}

func (w *cookieWriter) WriteHeader(code int) {
	w.rewrite()
	w.ResponseWriter.WriteHeader(code)
}

func (w *cookieWriter) Write(b []byte) (int, error) {
	w.rewrite()
	return w.ResponseWriter.Write(b)
}

func (w *cookieWriter) Flush() {
	w.rewrite()
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (w *cookieWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("webapp: response writer does not support hijacking")
	}
	return h.Hijack()
}

func (w *cookieWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func hardenCookie(c string, secure bool) string {
	attrs := strings.Split(c, ";")
	hasHTTPOnly, hasSecure := false, false
	for _, a := range attrs[1:] {
		switch strings.ToLower(strings.TrimSpace(a)) {
		case "httponly":
			hasHTTPOnly = true
		case "secure":
			hasSecure = true
		}
	}
	if !hasHTTPOnly {
		c += "; HttpOnly"
	}
	if secure && !hasSecure {
		c += "; Secure"
	}
	return c
}
