package webapp

import (
	"io/fs"
	"net/http"
	"os"
	"path"
)

// DefaultResourceDir is served when no resource base is configured and the
// directory exists in the working directory.
const DefaultResourceDir = "web-assets"

// noListingFS refuses to open directories without an index.html, which turns
// directory listings into 404s.
type noListingFS struct {
	fs http.FileSystem
}

func (n noListingFS) Open(name string) (http.File, error) {
	f, err := n.fs.Open(name)
	if err != nil {
		return nil, err
	}
	st, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if !st.IsDir() {
		return f, nil
	}

	index, err := n.fs.Open(path.Join(name, "index.html"))
	if err != nil {
		_ = f.Close()
		return nil, fs.ErrNotExist
	}
	_ = index.Close()
	return f, nil
}

// staticHandler serves files under dir without directory listings.
func staticHandler(dir string) http.Handler {
	return http.FileServer(noListingFS{fs: http.Dir(dir)})
}

func isDir(dir string) bool {
	st, err := os.Stat(dir)
	if err != nil {
		return false
	}
	return st.IsDir()
}
