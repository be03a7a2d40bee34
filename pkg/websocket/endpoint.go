package websocket

import (
	"context"
	"net/http"

	"github.com/gorilla/websocket"
)

// Handler serves one upgraded connection. The connection is closed by the
// container when ServeWebSocket returns.
type Handler interface {
	ServeWebSocket(ctx context.Context, conn *websocket.Conn)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, conn *websocket.Conn)

func (f HandlerFunc) ServeWebSocket(ctx context.Context, conn *websocket.Conn) {
	f(ctx, conn)
}

// Endpoint describes a WebSocket endpoint. Path is relative to the
// container prefix.
type Endpoint struct {
	Path         string
	Subprotocols []string
	CheckOrigin  func(r *http.Request) bool
	Handler      Handler
}

// Pattern returns the endpoint path.
func (e Endpoint) Pattern() string { return e.Path }

// EchoHandler writes every message it receives back to the peer.
var EchoHandler = HandlerFunc(func(ctx context.Context, conn *websocket.Conn) {
	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if err := conn.WriteMessage(mt, data); err != nil {
			return
		}
	}
})
