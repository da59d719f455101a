// Command download fetches one file into a local content root, skipping it
// when already present. It is run by go generate to provision the engine
// asset:
//
//	download <url> <output>
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/caffeineduck/funhost/loader"
	"github.com/caffeineduck/funhost/stager"
)

// Engine builds are large; the loader's per-file cap and request timeout
// are sized for interpreter sources.
const (
	maxAssetSize = 512 << 20
	timeout      = 10 * time.Minute
)

func main() {
	if len(os.Args) != 3 {
		fmt.Fprintln(os.Stderr, "usage: download <url> <output>")
		os.Exit(1)
	}

	url, output := os.Args[1], os.Args[2]

	if _, err := os.Stat(output); err == nil {
		return
	}

	if err := download(context.Background(), url, output); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func download(ctx context.Context, url, output string) error {
	i := strings.LastIndex(url, "/")
	if i < 0 || !strings.HasPrefix(url, "http") {
		return fmt.Errorf("download: %q is not an http(s) URL", url)
	}
	ldr, err := loader.New(url[:i+1], loader.WithMaxBodySize(maxAssetSize),
		loader.WithHTTPClient(&http.Client{Timeout: timeout}))
	if err != nil {
		return err
	}
	data, err := ldr.Fetch(ctx, url[i+1:])
	if err != nil {
		return err
	}

	dir, name := filepath.Split(output)
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	return stager.NewDirFS(dir).WriteFile(path.Join("/", name), data)
}
