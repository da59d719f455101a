// Package stager materializes manifest files into the embedded runtime's
// private filesystem.
package stager

import (
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/spf13/afero"
)

// Filesystem is the subset of a runtime filesystem the stager writes to.
// Paths are slash-separated and absolute within the filesystem.
type Filesystem interface {
	MkdirAll(path string) error
	WriteFile(path string, data []byte) error
}

// AferoFS adapts an afero filesystem to Filesystem.
type AferoFS struct {
	fs afero.Fs
}

// NewMemFS returns an empty in-memory filesystem private to one runtime.
func NewMemFS() *AferoFS {
	return &AferoFS{fs: afero.NewMemMapFs()}
}

// NewDirFS returns a filesystem rooted at a host directory.
func NewDirFS(dir string) *AferoFS {
	return &AferoFS{fs: afero.NewBasePathFs(afero.NewOsFs(), dir)}
}

func (a *AferoFS) MkdirAll(p string) error {
	return a.fs.MkdirAll(clean(p), 0755)
}

func (a *AferoFS) WriteFile(p string, data []byte) error {
	return afero.WriteFile(a.fs, clean(p), data, 0644)
}

// ReadFile returns the contents of a staged file.
func (a *AferoFS) ReadFile(p string) ([]byte, error) {
	return afero.ReadFile(a.fs, clean(p))
}

// IsDir reports whether p exists and is a directory.
func (a *AferoFS) IsDir(p string) bool {
	info, err := a.fs.Stat(clean(p))
	return err == nil && info.IsDir()
}

// Walk lists every regular file under root, relative to root, in lexical order.
func (a *AferoFS) Walk(root string) ([]string, error) {
	root = clean(root)
	var files []string
	err := afero.Walk(a.fs, root, func(p string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if info.Mode().IsRegular() {
			rel := strings.TrimPrefix(strings.TrimPrefix(p, root), "/")
			files = append(files, rel)
		}
		return nil
	})
	return files, err
}

// IOFS exposes the filesystem read-only, for mounting into a runtime.
func (a *AferoFS) IOFS() fs.FS {
	// io/fs names are unrooted; BasePathFs maps them back onto the
	// absolute keys the stager wrote.
	return afero.NewIOFS(afero.NewBasePathFs(afero.NewReadOnlyFs(a.fs), "/"))
}

func clean(p string) string {
	return path.Clean("/" + p)
}
