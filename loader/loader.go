// Package loader fetches runtime support files from a content source.
//
// A content source is either an http(s) base URL or a local directory.
// Every failure is reported as a [*LoadError]; nothing is retried.
package loader

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/afero"
)

const (
	DefaultMaxBodySize    = 32 << 20 // 32MB
	DefaultRequestTimeout = 60 * time.Second
)

// LoadError reports a failed fetch. Status is the HTTP status code when the
// source answered, and 0 for transport or local read failures.
type LoadError struct {
	Path   string
	Status int
	Reason string
	Err    error
}

func (e *LoadError) Error() string {
	switch {
	case e.Status != 0:
		return fmt.Sprintf("fetch %s: %d %s", e.Path, e.Status, e.Reason)
	case e.Err != nil:
		return fmt.Sprintf("fetch %s: %s: %v", e.Path, e.Reason, e.Err)
	default:
		return fmt.Sprintf("fetch %s: %s", e.Path, e.Reason)
	}
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// Loader reads files relative to a fixed root.
type Loader struct {
	root        string
	base        *url.URL
	fs          afero.Fs
	client      *http.Client
	maxBodySize int64
	logger      *log.Logger
}

// Option configures a Loader.
type Option func(*Loader)

// WithHTTPClient replaces the client used for http(s) roots.
func WithHTTPClient(c *http.Client) Option {
	return func(l *Loader) {
		l.client = c
	}
}

// WithMaxBodySize caps how many bytes a single fetch may return.
func WithMaxBodySize(n int64) Option {
	return func(l *Loader) {
		l.maxBodySize = n
	}
}

// WithLogger sets the logger for fetch diagnostics.
func WithLogger(logger *log.Logger) Option {
	return func(l *Loader) {
		l.logger = logger
	}
}

// New returns a Loader rooted at root, which is an http(s) URL or a directory.
func New(root string, opts ...Option) (*Loader, error) {
	l := &Loader{
		root:        root,
		client:      &http.Client{Timeout: DefaultRequestTimeout},
		maxBodySize: DefaultMaxBodySize,
		logger:      log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(l)
	}

	if strings.HasPrefix(root, "http://") || strings.HasPrefix(root, "https://") {
		u, err := url.Parse(root)
		if err != nil {
			return nil, fmt.Errorf("parse content root: %w", err)
		}
		if !strings.HasSuffix(u.Path, "/") {
			u.Path += "/"
		}
		l.base = u
		return l, nil
	}

	info, err := os.Stat(root)
	if err != nil {
		return nil, fmt.Errorf("content root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("content root %s is not a directory", root)
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("content root: %w", err)
	}
	l.fs = afero.NewReadOnlyFs(afero.NewBasePathFs(afero.NewOsFs(), abs))
	return l, nil
}

// Root returns the content root the Loader was created with.
func (l *Loader) Root() string {
	return l.root
}

// Fetch returns the raw bytes at p.
func (l *Loader) Fetch(ctx context.Context, p string) ([]byte, error) {
	if l.base != nil {
		return l.fetchHTTP(ctx, p)
	}
	return l.fetchLocal(ctx, p)
}

// FetchText returns the contents at p as text.
func (l *Loader) FetchText(ctx context.Context, p string) (string, error) {
	data, err := l.Fetch(ctx, p)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FetchStructured decodes the JSON document at p into v.
func (l *Loader) FetchStructured(ctx context.Context, p string, v any) error {
	data, err := l.Fetch(ctx, p)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(data, v); err != nil {
		return &LoadError{Path: p, Reason: "invalid json", Err: err}
	}
	return nil
}

func (l *Loader) fetchHTTP(ctx context.Context, p string) ([]byte, error) {
	ref, err := url.Parse(strings.TrimPrefix(p, "./"))
	if err != nil {
		return nil, &LoadError{Path: p, Reason: "invalid path", Err: err}
	}
	target := l.base.ResolveReference(ref).String()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, &LoadError{Path: p, Reason: "invalid request", Err: err}
	}

	l.logger.Debug("fetch", "url", target)
	resp, err := l.client.Do(req)
	if err != nil {
		return nil, &LoadError{Path: p, Reason: "request failed", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &LoadError{
			Path:   p,
			Status: resp.StatusCode,
			Reason: http.StatusText(resp.StatusCode),
		}
	}

	return l.readLimited(p, resp.Body)
}

func (l *Loader) fetchLocal(ctx context.Context, p string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, &LoadError{Path: p, Reason: "canceled", Err: err}
	}

	name := path.Clean("/" + strings.TrimPrefix(p, "./"))
	f, err := l.fs.Open(name)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &LoadError{Path: p, Reason: "not found", Err: err}
		}
		return nil, &LoadError{Path: p, Reason: "read failed", Err: err}
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, &LoadError{Path: p, Reason: "read failed", Err: err}
	}
	if info.IsDir() {
		return nil, &LoadError{Path: p, Reason: "is a directory"}
	}

	l.logger.Debug("fetch", "file", name)
	return l.readLimited(p, f)
}

func (l *Loader) readLimited(p string, r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(r, l.maxBodySize+1))
	if err != nil {
		return nil, &LoadError{Path: p, Reason: "read failed", Err: err}
	}
	if n > l.maxBodySize {
		return nil, &LoadError{Path: p, Reason: "body exceeds max size"}
	}
	return buf.Bytes(), nil
}
