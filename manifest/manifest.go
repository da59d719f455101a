// Package manifest parses the list of files that must be staged before the
// embedded runtime can import its entry point.
package manifest

import (
	_ "embed"
	"fmt"
	"path"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
)

//go:embed manifest_schema.cue
var schema string

// Manifest is an ordered, immutable list of relative file paths.
type Manifest struct {
	files []string
}

type document struct {
	Files []string `json:"files"`
}

// Parse validates a JSON manifest document of the form {"files": [...]}.
func Parse(data []byte) (*Manifest, error) {
	ctx := cuecontext.New()

	schemaValue := ctx.CompileString(schema)
	if schemaValue.Err() != nil {
		return nil, fmt.Errorf("internal error: compile manifest schema: %w", schemaValue.Err())
	}

	userValue := ctx.CompileBytes(data, cue.Filename("manifest.json"))
	if userValue.Err() != nil {
		return nil, formatError(userValue.Err())
	}

	unified := schemaValue.LookupPath(cue.ParsePath("#Manifest")).Unify(userValue)
	if err := unified.Validate(cue.Concrete(true)); err != nil {
		return nil, formatError(err)
	}

	var doc document
	if err := unified.Decode(&doc); err != nil {
		return nil, formatError(err)
	}

	return New(doc.Files...)
}

// New builds a Manifest from paths, applying the same rules as Parse.
func New(files ...string) (*Manifest, error) {
	seen := make(map[string]bool, len(files))
	out := make([]string, 0, len(files))
	for i, f := range files {
		if err := checkPath(f); err != nil {
			return nil, fmt.Errorf("manifest: files[%d]: %w", i, err)
		}
		if seen[f] {
			return nil, fmt.Errorf("manifest: files[%d]: duplicate path %q", i, f)
		}
		seen[f] = true
		out = append(out, f)
	}
	return &Manifest{files: out}, nil
}

func checkPath(p string) error {
	switch {
	case p == "":
		return fmt.Errorf("empty path")
	case strings.HasPrefix(p, "/"):
		return fmt.Errorf("path %q must be relative", p)
	case strings.Contains(p, "\\"):
		return fmt.Errorf("path %q must use forward slashes", p)
	case path.Clean(p) != p:
		return fmt.Errorf("path %q is not clean", p)
	}
	for _, seg := range strings.Split(p, "/") {
		if seg == ".." || seg == "." {
			return fmt.Errorf("path %q escapes the staging root", p)
		}
	}
	return nil
}

// Files returns a copy of the manifest entries in declared order.
func (m *Manifest) Files() []string {
	return append([]string(nil), m.files...)
}

// Len returns the number of entries.
func (m *Manifest) Len() int {
	return len(m.files)
}

// Dirs returns every directory implied by the entries, parents before
// children, in first-seen order.
func (m *Manifest) Dirs() []string {
	var dirs []string
	seen := make(map[string]bool)
	for _, f := range m.files {
		segs := strings.Split(f, "/")
		for i := 1; i < len(segs); i++ {
			d := strings.Join(segs[:i], "/")
			if !seen[d] {
				seen[d] = true
				dirs = append(dirs, d)
			}
		}
	}
	return dirs
}

func formatError(err error) error {
	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return fmt.Errorf("manifest: %w", err)
	}
	lines := make([]string, 0, len(errs))
	for _, e := range errs {
		p := strings.Join(cueerrors.Path(e), ".")
		if p != "" {
			lines = append(lines, p+": "+e.Error())
		} else {
			lines = append(lines, e.Error())
		}
	}
	return fmt.Errorf("manifest: %s", strings.Join(lines, "; "))
}
