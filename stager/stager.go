package stager

import (
	"context"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/caffeineduck/funhost/manifest"
	"github.com/charmbracelet/log"
)

// StageError reports a filesystem failure while staging. Path is the
// destination inside the staging filesystem.
type StageError struct {
	Op   string
	Path string
	Err  error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}

// TextFetcher returns the contents of a manifest entry.
type TextFetcher interface {
	FetchText(ctx context.Context, path string) (string, error)
}

// Stager writes files under a fixed root of a Filesystem.
type Stager struct {
	fs     Filesystem
	root   string
	logger *log.Logger
}

// New returns a Stager writing under root in fsys.
func New(fsys Filesystem, root string, logger *log.Logger) *Stager {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Stager{fs: fsys, root: clean(root), logger: logger}
}

// Root returns the staging root.
func (s *Stager) Root() string {
	return s.root
}

// EnsureDirectory creates p and any missing parents. Existing directories
// are not an error.
func (s *Stager) EnsureDirectory(p string) error {
	if err := s.fs.MkdirAll(p); err != nil {
		return &StageError{Op: "mkdir", Path: p, Err: err}
	}
	return nil
}

// WriteFile ensures the parent of p exists, then writes contents to p,
// replacing any existing file.
func (s *Stager) WriteFile(p string, contents []byte) error {
	if dir := parent(p); dir != "" {
		if err := s.EnsureDirectory(dir); err != nil {
			return err
		}
	}
	if err := s.fs.WriteFile(p, contents); err != nil {
		return &StageError{Op: "write", Path: p, Err: err}
	}
	return nil
}

// Target returns the staging path that mirrors a manifest entry.
func (s *Stager) Target(entry string) string {
	return path.Join(s.root, entry)
}

// StageManifest fetches every entry from src (as prefix/entry) and writes it
// at the mirrored path under the root. It stops at the first failure.
func (s *Stager) StageManifest(ctx context.Context, m *manifest.Manifest, src TextFetcher, prefix string) error {
	if err := s.EnsureDirectory(s.root); err != nil {
		return err
	}
	for _, dir := range m.Dirs() {
		if err := s.EnsureDirectory(s.Target(dir)); err != nil {
			return err
		}
	}

	for _, entry := range m.Files() {
		from := entry
		if prefix != "" {
			from = strings.TrimSuffix(prefix, "/") + "/" + entry
		}
		text, err := src.FetchText(ctx, from)
		if err != nil {
			return &StageError{Op: "fetch", Path: s.Target(entry), Err: err}
		}
		if err := s.WriteFile(s.Target(entry), []byte(text)); err != nil {
			return err
		}
		s.logger.Debug("staged", "path", s.Target(entry), "bytes", len(text))
	}
	return nil
}

// parent strips the final path segment. It returns "" for a bare name.
func parent(p string) string {
	idx := strings.LastIndex(p, "/")
	switch {
	case idx < 0:
		return ""
	case idx == 0:
		return "/"
	default:
		return p[:idx]
	}
}
