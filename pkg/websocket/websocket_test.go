package websocket

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/webrun/pkg/probe"
)

type foreignEndpoint struct{}

func (foreignEndpoint) Pattern() string { return "/foreign" }

func attach(t *testing.T, opts Options) (*Container, *httptest.Server) {
	t.Helper()

	router := chi.NewRouter()
	pc, err := NewCapability(opts).Attach(router)
	require.NoError(t, err)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return pc.(*Container), srv
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func TestNewCapability_NormalisesPrefix(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", DefaultPrefix},
		{"sockets", "/sockets"},
		{"/sockets/", "/sockets"},
		{"/", "/"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, NewCapability(Options{Prefix: tt.in}).Prefix())
		})
	}
}

func TestCapability_ImplementsProbeContract(t *testing.T) {
	reg := probe.NewRegistry()
	reg.Provide(Marker, NewCapability(Options{}))

	res := reg.Lookup(Marker)
	require.True(t, res.Present())
	assert.Equal(t, "websocket", res.Capability().Name())
}

func TestContainer_AddEndpointValidation(t *testing.T) {
	c, _ := attach(t, Options{})

	tests := []struct {
		name    string
		ep      probe.Endpoint
		wantErr error
	}{
		{"empty path", &Endpoint{Handler: EchoHandler}, ErrEmptyPath},
		{"blank path", Endpoint{Path: "  ", Handler: EchoHandler}, ErrEmptyPath},
		{"nil handler", &Endpoint{Path: "/x"}, ErrNilHandler},
		{"foreign type", foreignEndpoint{}, ErrForeignEndpoint},
		{"nil pointer", (*Endpoint)(nil), ErrEmptyPath},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, c.AddEndpoint(tt.ep), tt.wantErr)
		})
	}

	require.NoError(t, c.AddEndpoint(&Endpoint{Path: "/echo", Handler: EchoHandler}))
	assert.Error(t, c.AddEndpoint(Endpoint{Path: "echo", Handler: EchoHandler}), "duplicate path")
	assert.Equal(t, []string{"/ws/echo"}, c.Endpoints())
}

func TestContainer_Echo(t *testing.T) {
	c, srv := attach(t, Options{})
	require.NoError(t, c.AddEndpoint(&Endpoint{
		Path:         "/echo",
		Subprotocols: []string{"echo.v1"},
		Handler:      EchoHandler,
	}))

	dialer := websocket.Dialer{Subprotocols: []string{"echo.v1"}, HandshakeTimeout: time.Second}
	conn, _, err := dialer.Dial(wsURL(srv, "/ws/echo"), nil)
	require.NoError(t, err)
	defer conn.Close()

	assert.Equal(t, "echo.v1", conn.Subprotocol())

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("hello")))
	mt, data, err := conn.ReadMessage()
	require.NoError(t, err)
	assert.Equal(t, websocket.TextMessage, mt)
	assert.Equal(t, "hello", string(data))
}

func TestContainer_RejectsCrossOriginByDefault(t *testing.T) {
	c, srv := attach(t, Options{})
	require.NoError(t, c.AddEndpoint(&Endpoint{Path: "/echo", Handler: EchoHandler}))

	header := http.Header{"Origin": []string{"http://evil.example"}}
	_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/echo"), header)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
}

func TestContainer_CloseAllSendsGoingAway(t *testing.T) {
	c, srv := attach(t, Options{})

	served := make(chan struct{})
	require.NoError(t, c.AddEndpoint(&Endpoint{
		Path: "/block",
		Handler: HandlerFunc(func(ctx context.Context, conn *websocket.Conn) {
			defer close(served)
			for {
				if _, _, err := conn.ReadMessage(); err != nil {
					return
				}
			}
		}),
	}))

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/block"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return c.Active() == 1 }, time.Second, 10*time.Millisecond)

	c.CloseAll()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)

	select {
	case <-served:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after CloseAll")
	}
	assert.Equal(t, 0, c.Active())
	assert.ErrorIs(t, c.AddEndpoint(&Endpoint{Path: "/late", Handler: EchoHandler}), ErrContainerClosed)
}

func TestContainer_RejectsUpgradeAfterClose(t *testing.T) {
	c, srv := attach(t, Options{})
	require.NoError(t, c.AddEndpoint(&Endpoint{Path: "/echo", Handler: EchoHandler}))
	c.CloseAll()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws/echo"), nil)
	require.NoError(t, err)
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestCapability_AttachTwiceOnSameRouterFails(t *testing.T) {
	router := chi.NewRouter()
	capability := NewCapability(Options{})

	_, err := capability.Attach(router)
	require.NoError(t, err)

	_, err = capability.Attach(router)
	assert.Error(t, err)
}
