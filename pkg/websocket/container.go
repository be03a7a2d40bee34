package websocket

import (
	"errors"
	"fmt"
	"net/http"
	"path"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/bft-labs/webrun/pkg/log"
	"github.com/bft-labs/webrun/pkg/probe"
)

// Endpoint registration errors.
var (
	ErrEmptyPath       = errors.New("websocket: endpoint path is empty")
	ErrNilHandler      = errors.New("websocket: endpoint handler is nil")
	ErrForeignEndpoint = errors.New("websocket: endpoint was not created by this package")
	ErrContainerClosed = errors.New("websocket: container is closed")
)

const closeWriteTimeout = time.Second

// Container holds the registered endpoints and the connections they
// upgraded.
type Container struct {
	prefix   string
	router   chi.Router
	upgrader websocket.Upgrader
	logger   log.Logger

	mu        sync.Mutex
	endpoints map[string]*Endpoint
	conns     map[*websocket.Conn]struct{}
	closed    bool
}

func newContainer(prefix string, upgrader websocket.Upgrader, logger log.Logger) *Container {
	return &Container{
		prefix:    prefix,
		router:    chi.NewRouter(),
		upgrader:  upgrader,
		logger:    logger,
		endpoints: make(map[string]*Endpoint),
		conns:     make(map[*websocket.Conn]struct{}),
	}
}

// AddEndpoint registers ep. It accepts *Endpoint and Endpoint values.
func (c *Container) AddEndpoint(ep probe.Endpoint) error {
	var e *Endpoint
	switch v := ep.(type) {
	case *Endpoint:
		e = v
	case Endpoint:
		e = &v
	default:
		return fmt.Errorf("%w: %T", ErrForeignEndpoint, ep)
	}
	if e == nil || strings.TrimSpace(e.Path) == "" {
		return ErrEmptyPath
	}
	if e.Handler == nil {
		return fmt.Errorf("%w: %s", ErrNilHandler, e.Path)
	}

	p := e.Path
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return ErrContainerClosed
	}
	if _, dup := c.endpoints[p]; dup {
		return fmt.Errorf("websocket: endpoint %q already registered", p)
	}
	c.endpoints[p] = e
	c.router.Get(p, c.serve(e))

	c.logger.Debug("websocket endpoint registered",
		log.String("path", path.Join(c.prefix, p)),
	)
	return nil
}

// Endpoints returns the full paths of the registered endpoints, sorted.
func (c *Container) Endpoints() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]string, 0, len(c.endpoints))
	for p := range c.endpoints {
		out = append(out, path.Join(c.prefix, p))
	}
	sort.Strings(out)
	return out
}

// Active returns the number of open connections.
func (c *Container) Active() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.conns)
}

// CloseAll sends a going-away close frame to every open connection and
// closes it. Connections upgraded afterwards are rejected.
func (c *Container) CloseAll() {
	c.mu.Lock()
	c.closed = true
	conns := make([]*websocket.Conn, 0, len(c.conns))
	for conn := range c.conns {
		conns = append(conns, conn)
	}
	c.mu.Unlock()

	if len(conns) > 0 {
		c.logger.Info("closing websocket connections", log.Int("count", len(conns)))
	}
	for _, conn := range conns {
		goingAway(conn, "server shutting down")
	}
}

func (c *Container) serve(e *Endpoint) http.HandlerFunc {
	up := c.upgrader
	up.Subprotocols = e.Subprotocols
	if e.CheckOrigin != nil {
		up.CheckOrigin = e.CheckOrigin
	}

	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := up.Upgrade(w, r, nil)
		if err != nil {
			c.logger.Debug("websocket upgrade failed",
				log.String("path", r.URL.Path),
				log.Err(err),
			)
			return
		}
		if !c.track(conn) {
			goingAway(conn, "server shutting down")
			return
		}
		defer c.untrack(conn)

		e.Handler.ServeWebSocket(r.Context(), conn)
	}
}

func (c *Container) track(conn *websocket.Conn) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	c.conns[conn] = struct{}{}
	return true
}

func (c *Container) untrack(conn *websocket.Conn) {
	c.mu.Lock()
	delete(c.conns, conn)
	c.mu.Unlock()
	_ = conn.Close()
}

func goingAway(conn *websocket.Conn, reason string) {
	msg := websocket.FormatCloseMessage(websocket.CloseGoingAway, reason)
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeWriteTimeout))
	_ = conn.Close()
}

var _ probe.Container = (*Container)(nil)
