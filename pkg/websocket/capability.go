package websocket

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bft-labs/webrun/pkg/log"
	"github.com/bft-labs/webrun/pkg/probe"
)

// Marker is the probe marker the runner looks up.
const Marker = "webrun.websocket"

// DefaultPrefix is where the container is mounted when Options.Prefix is
// empty.
const DefaultPrefix = "/ws"

// Options configures the capability.
type Options struct {
	Prefix           string
	ReadBufferSize   int
	WriteBufferSize  int
	HandshakeTimeout time.Duration
	// CheckOrigin applies to endpoints without their own. Nil keeps the
	// gorilla default of rejecting cross-origin requests.
	CheckOrigin func(r *http.Request) bool
	Logger      log.Logger
}

// Capability provides WebSocket containers.
type Capability struct {
	opts Options
}

// NewCapability creates the WebSocket capability.
func NewCapability(opts Options) *Capability {
	if opts.Prefix == "" {
		opts.Prefix = DefaultPrefix
	}
	if !strings.HasPrefix(opts.Prefix, "/") {
		opts.Prefix = "/" + opts.Prefix
	}
	if len(opts.Prefix) > 1 {
		opts.Prefix = strings.TrimRight(opts.Prefix, "/")
	}
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = 10 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = log.NewNoopLogger()
	}
	return &Capability{opts: opts}
}

// Name returns "websocket".
func (c *Capability) Name() string { return "websocket" }

// Prefix returns the path the container is mounted at.
func (c *Capability) Prefix() string { return c.opts.Prefix }

// Attach mounts a new container on m.
func (c *Capability) Attach(m probe.Mounter) (_ probe.Container, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("websocket: mount %s: %v", c.opts.Prefix, r)
		}
	}()

	ct := newContainer(c.opts.Prefix, websocket.Upgrader{
		ReadBufferSize:   c.opts.ReadBufferSize,
		WriteBufferSize:  c.opts.WriteBufferSize,
		HandshakeTimeout: c.opts.HandshakeTimeout,
		CheckOrigin:      c.opts.CheckOrigin,
	}, c.opts.Logger)

	m.Mount(c.opts.Prefix, ct.router)
	return ct, nil
}

var _ probe.Capability = (*Capability)(nil)
