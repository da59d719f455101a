package console

import (
	"embed"
	"io/fs"
	"path"
	"slices"
	"strings"

	"github.com/caffeineduck/funhost/host"
)

//go:embed examples/*.fun
var exampleFS embed.FS

// Example returns the sample program for a configuration key, falling back
// to the default sample for unknown keys.
func Example(sel host.Selector) string {
	if src, ok := lookupExample(string(sel)); ok {
		return src
	}
	src, _ := lookupExample(string(host.DefaultSelector))
	return src
}

// HasExample reports whether key has its own sample program.
func HasExample(key string) bool {
	_, ok := lookupExample(key)
	return ok
}

// ExampleKeys lists the configuration keys that have samples, sorted.
func ExampleKeys() []string {
	entries, _ := fs.ReadDir(exampleFS, "examples")
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		keys = append(keys, strings.TrimSuffix(e.Name(), path.Ext(e.Name())))
	}
	slices.Sort(keys)
	return keys
}

func lookupExample(key string) (string, bool) {
	if key == "" || strings.ContainsAny(key, `/\.`) {
		return "", false
	}
	data, err := exampleFS.ReadFile("examples/" + key + ".fun")
	if err != nil {
		return "", false
	}
	return string(data), true
}
