package webapp

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/bft-labs/webrun/pkg/log"
)

// Unit is the web application unit hosted by the runner.
type Unit interface {
	http.Handler

	// Mount attaches h under pattern, relative to the context path.
	Mount(pattern string, h http.Handler)

	SetContextPath(p string)
	ContextPath() string
	SetResourceBase(dir string)
	ResourceBase() string
	SetServerClasses(rules ClassRules)
	SetTempDirectory(dir string)
	TempDirectory() string
	SetSecureCookies(on bool)
	SecureCookies() bool

	// Exposed reports whether a runner-provided component is visible.
	Exposed(component string) bool

	// Expose routes pattern to h if component is not hidden by the server
	// classes. It reports whether h was routed.
	Expose(component, pattern string, h http.Handler) bool
}

// Context is the chi-backed Unit.
type Context struct {
	logger log.Logger
	app    chi.Router

	mu            sync.Mutex
	contextPath   string
	resourceBase  string
	classes       ClassRules
	tempDir       string
	secureCookies bool

	build   sync.Once
	handler http.Handler
}

// NewContext creates a unit at context path "/" with DefaultServerClasses and
// secure cookies on.
func NewContext(logger log.Logger) *Context {
	if logger == nil {
		logger = log.NewNoopLogger()
	}
	return &Context{
		logger:        logger,
		app:           chi.NewRouter(),
		contextPath:   "/",
		classes:       DefaultServerClasses,
		secureCookies: true,
	}
}

// Router returns the application router for registering routes relative to
// the context path.
func (c *Context) Router() chi.Router { return c.app }

func (c *Context) Mount(pattern string, h http.Handler) {
	c.app.Mount(pattern, h)
}

func (c *Context) SetContextPath(p string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.contextPath = NormalizeContextPath(p)
}

func (c *Context) ContextPath() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.contextPath
}

func (c *Context) SetResourceBase(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resourceBase = dir
}

func (c *Context) ResourceBase() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resourceBase
}

func (c *Context) SetServerClasses(rules ClassRules) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.classes = append(ClassRules(nil), rules...)
}

func (c *Context) SetTempDirectory(dir string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.tempDir = dir
}

func (c *Context) TempDirectory() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tempDir
}

func (c *Context) SetSecureCookies(on bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.secureCookies = on
}

func (c *Context) SecureCookies() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.secureCookies
}

func (c *Context) Exposed(component string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.classes.Hidden(component)
}

func (c *Context) Expose(component, pattern string, h http.Handler) bool {
	if !c.Exposed(component) {
		c.logger.Debug("component hidden by server classes",
			log.String(log.FieldComponent, component),
		)
		return false
	}
	c.app.Handle(pattern, h)
	return true
}

// ServeHTTP serves the unit. The outer handler is assembled on the first
// request; settings changed afterwards have no effect.
func (c *Context) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	c.build.Do(func() { c.handler = c.assemble() })
	c.handler.ServeHTTP(w, r)
}

// Build assembles the unit eagerly so that configuration problems are logged
// at startup instead of on the first request.
func (c *Context) Build() {
	c.build.Do(func() { c.handler = c.assemble() })
}

func (c *Context) assemble() http.Handler {
	c.mu.Lock()
	contextPath := c.contextPath
	secure := c.secureCookies
	base := c.resourceBase
	c.mu.Unlock()

	if dir := c.resolveResourceBase(base); dir != "" {
		static := staticHandler(dir)
		if contextPath != "/" {
			static = http.StripPrefix(contextPath, static)
		}
		c.app.NotFound(static.ServeHTTP)
	}

	root := chi.NewRouter()
	root.Use(hardenCookies(secure))
	root.Mount(contextPath, c.app)
	return root
}

func (c *Context) resolveResourceBase(base string) string {
	if base != "" {
		if !isDir(base) {
			c.logger.Warn("resource base is not a directory", log.String("path", base))
			return ""
		}
		return base
	}
	if isDir(DefaultResourceDir) {
		return DefaultResourceDir
	}
	c.logger.Warn("Missing resources/web-assets",
		log.String("path", DefaultResourceDir),
	)
	return ""
}

// NormalizeContextPath returns p with a leading "/" and no trailing "/".
// The empty path becomes "/".
func NormalizeContextPath(p string) string {
	p = strings.TrimSpace(p)
	if p == "" || p == "/" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	p = strings.TrimRight(p, "/")
	if p == "" {
		return "/"
	}
	return p
}

// CreateTempDir creates a fresh private working directory named after
// prefix and port.
func CreateTempDir(prefix string, port int) (string, error) {
	dir, err := os.MkdirTemp("", fmt.Sprintf("%s*.%d", prefix, port))
	if err != nil {
		return "", fmt.Errorf("create temp directory: %w", err)
	}
	return filepath.Clean(dir), nil
}

var _ Unit = (*Context)(nil)
