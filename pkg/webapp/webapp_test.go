package webapp

import (
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bft-labs/webrun/pkg/log"
)

type mockLogger struct {
	mu    sync.Mutex
	warns []string
}

func (m *mockLogger) Debug(msg string, fields ...log.Field) {}
func (m *mockLogger) Info(msg string, fields ...log.Field)  {}
func (m *mockLogger) Warn(msg string, fields ...log.Field) {
	m.mu.Lock()
	m.warns = append(m.warns, msg)
	m.mu.Unlock()
}
func (m *mockLogger) Error(msg string, fields ...log.Field) {}

func get(t *testing.T, h http.Handler, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestClassRules_Hidden(t *testing.T) {
	tests := []struct {
		name      string
		rules     ClassRules
		component string
		want      bool
	}{
		{"default exposes health", DefaultServerClasses, "webrun.health", false},
		{"default exposes metrics", DefaultServerClasses, "webrun.metrics", false},
		{"default exposes websocket", DefaultServerClasses, "webrun.websocket", false},
		{"default hides debug", DefaultServerClasses, "webrun.debug", true},
		{"default ignores foreign", DefaultServerClasses, "app.handler", false},
		{"no rules", nil, "webrun.debug", false},
		{"first match wins", ClassRules{"webrun.", "-webrun.health"}, "webrun.health", true},
		{"exact rule is not a prefix", ClassRules{"webrun.health"}, "webrun.healthz", false},
		{"prefix rule", ClassRules{"webrun.debug."}, "webrun.debug.pprof", true},
		{"bare dash ignored", ClassRules{"-", "webrun."}, "webrun.x", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rules.Hidden(tt.component))
		})
	}
}

func TestParseClassRules(t *testing.T) {
	got := ParseClassRules(" -webrun.health, webrun. ,,")
	assert.Equal(t, ClassRules{"-webrun.health", "webrun."}, got)
}

func TestNormalizeContextPath(t *testing.T) {
	tests := map[string]string{
		"":       "/",
		"/":      "/",
		"///":    "/",
		"app":    "/app",
		"/app/":  "/app",
		" /a/b ": "/a/b",
	}
	for in, want := range tests {
		assert.Equal(t, want, NormalizeContextPath(in), "input %q", in)
	}
}

func TestHardenCookie(t *testing.T) {
	tests := []struct {
		in     string
		secure bool
		want   string
	}{
		{"a=1", true, "a=1; HttpOnly; Secure"},
		{"a=1", false, "a=1; HttpOnly"},
		{"a=1; Path=/; httponly", true, "a=1; Path=/; httponly; Secure"},
		{"a=1; Secure; HttpOnly", true, "a=1; Secure; HttpOnly"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, hardenCookie(tt.in, tt.secure))
	}
}

func TestContext_CookieHardening(t *testing.T) {
	handlers := []struct {
		name    string
		code    int
		handler http.HandlerFunc
	}{
		{
			name: "with body",
			code: http.StatusOK,
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc"})
				_, _ = io.WriteString(w, "ok")
			},
		},
		{
			name: "empty body",
			code: http.StatusOK,
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc"})
			},
		},
		{
			name: "explicit status without body",
			code: http.StatusNoContent,
			handler: func(w http.ResponseWriter, r *http.Request) {
				http.SetCookie(w, &http.Cookie{Name: "session", Value: "abc"})
				w.WriteHeader(http.StatusNoContent)
			},
		},
	}

	for _, h := range handlers {
		for _, secure := range []bool{true, false} {
			t.Run(fmt.Sprintf("%s/secure=%t", h.name, secure), func(t *testing.T) {
				c := NewContext(nil)
				c.SetSecureCookies(secure)
				c.Router().Get("/login", h.handler)

				rec := get(t, c, "/login")
				require.Equal(t, h.code, rec.Code)
				assertHardened(t, rec.Result(), secure)

				// Over a real connection the header is committed by net/http.
				srv := httptest.NewServer(c)
				defer srv.Close()
				resp, err := srv.Client().Get(srv.URL + "/login")
				require.NoError(t, err)
				defer resp.Body.Close()
				require.Equal(t, h.code, resp.StatusCode)
				assertHardened(t, resp, secure)
			})
		}
	}
}

func assertHardened(t *testing.T, resp *http.Response, secure bool) {
	t.Helper()
	raw := resp.Header.Values("Set-Cookie")
	require.Len(t, raw, 1)
	assert.Contains(t, raw[0], "HttpOnly")
	if secure {
		assert.Contains(t, raw[0], "Secure")
	} else {
		assert.NotContains(t, raw[0], "Secure")
	}
}

func TestContext_ContextPath(t *testing.T) {
	c := NewContext(nil)
	c.SetContextPath("/app/")
	assert.Equal(t, "/app", c.ContextPath())

	c.Router().Get("/hello", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "hi")
	})

	rec := get(t, c, "/app/hello")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "hi", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, get(t, c, "/hello").Code)
}

func TestContext_StaticResourcesWithoutListing(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "a.txt"), []byte("static"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bare"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bare", "b.txt"), []byte("b"), 0o644))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "site"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "site", "index.html"), []byte("<p>home</p>"), 0o644))

	c := NewContext(nil)
	c.SetContextPath("/app")
	c.SetResourceBase(dir)
	assert.Equal(t, dir, c.ResourceBase())

	rec := get(t, c, "/app/a.txt")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "static", rec.Body.String())

	assert.Equal(t, http.StatusNotFound, get(t, c, "/app/bare/").Code)

	rec = get(t, c, "/app/site/")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "home")
}

func TestContext_MissingWebAssetsWarns(t *testing.T) {
	logger := &mockLogger{}
	c := NewContext(logger)
	c.Build()

	assert.Contains(t, logger.warns, "Missing resources/web-assets")
	assert.Equal(t, http.StatusNotFound, get(t, c, "/anything").Code)
}

func TestContext_Expose(t *testing.T) {
	c := NewContext(nil)
	ok := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	assert.True(t, c.Expose("webrun.health", "/healthz", ok))
	assert.False(t, c.Expose("webrun.debug", "/debug", ok))

	assert.Equal(t, http.StatusTeapot, get(t, c, "/healthz").Code)
	assert.Equal(t, http.StatusNotFound, get(t, c, "/debug").Code)

	c2 := NewContext(nil)
	c2.SetServerClasses(ClassRules{"webrun.health"})
	assert.False(t, c2.Exposed("webrun.health"))
	assert.True(t, c2.Exposed("webrun.debug"))
}

func TestContext_Mount(t *testing.T) {
	c := NewContext(nil)
	c.SetContextPath("/ctx")
	c.Mount("/sub", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "mounted")
	}))

	rec := get(t, c, "/ctx/sub/x")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "mounted", rec.Body.String())
}

func TestCreateTempDir(t *testing.T) {
	dir, err := CreateTempDir("webrun-app-", 8080)
	require.NoError(t, err)
	t.Cleanup(func() { _ = os.RemoveAll(dir) })

	assert.Regexp(t, regexp.MustCompile(`^webrun-app-.*\.8080$`), filepath.Base(dir))

	st, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, st.IsDir())
	assert.Equal(t, os.FileMode(0o700), st.Mode().Perm())

	c := NewContext(nil)
	c.SetTempDirectory(dir)
	assert.True(t, strings.HasSuffix(c.TempDirectory(), ".8080"))
}
