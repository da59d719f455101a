package host

import "strings"

// Selector names a language configuration.
type Selector string

// DefaultSelector selects no configuration.
const DefaultSelector Selector = "default"

const configExt = ".json"

// ConfigResolver maps selectors to configuration paths. It never touches
// the filesystem; a missing configuration surfaces when the runtime reads it.
type ConfigResolver struct {
	Root string
}

// Resolve returns the configuration path for sel, or ok=false when sel
// selects no configuration.
func (r ConfigResolver) Resolve(sel Selector) (path string, ok bool) {
	if sel == "" || sel == DefaultSelector {
		return "", false
	}
	return strings.TrimSuffix(r.Root, "/") + "/" + string(sel) + configExt, true
}
