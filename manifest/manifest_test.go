package manifest

import (
	"reflect"
	"strings"
	"testing"
)

func TestParseValid(t *testing.T) {
	m, err := Parse([]byte(`{"files": ["funlang_runner.py", "src/lexer.py", "configs/turkish.json"]}`))
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}

	want := []string{"funlang_runner.py", "src/lexer.py", "configs/turkish.json"}
	if !reflect.DeepEqual(m.Files(), want) {
		t.Errorf("expected %v, got %v", want, m.Files())
	}
	if m.Len() != 3 {
		t.Errorf("expected 3 entries, got %d", m.Len())
	}
}

func TestParseAllowsExtraFields(t *testing.T) {
	if _, err := Parse([]byte(`{"version": 2, "files": ["a.txt"]}`)); err != nil {
		t.Fatalf("parse failed: %v", err)
	}
}

func TestParseRejectsBadPaths(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"absolute", `{"files": ["/etc/passwd"]}`},
		{"parent escape", `{"files": ["../outside.py"]}`},
		{"inner escape", `{"files": ["src/../../outside.py"]}`},
		{"dot segment", `{"files": ["./a.py"]}`},
		{"empty", `{"files": [""]}`},
		{"backslash", `{"files": ["src\\lexer.py"]}`},
		{"trailing slash", `{"files": ["src/"]}`},
		{"not a string", `{"files": [42]}`},
		{"files not a list", `{"files": "a.txt"}`},
		{"duplicate", `{"files": ["a.txt", "a.txt"]}`},
		{"invalid json", `{"files": [`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Parse([]byte(tt.doc)); err == nil {
				t.Errorf("expected %s manifest to be rejected", tt.name)
			}
		})
	}
}

func TestParseRejectsMissingFiles(t *testing.T) {
	for _, doc := range []string{`{}`, `{"version": 2}`} {
		if _, err := Parse([]byte(doc)); err == nil {
			t.Errorf("expected %s to be rejected without a files list", doc)
		}
	}

	m, err := Parse([]byte(`{"files": []}`))
	if err != nil {
		t.Fatalf("an explicit empty list is valid: %v", err)
	}
	if m.Len() != 0 {
		t.Errorf("expected no entries, got %d", m.Len())
	}
}

func TestNewRejectsEscape(t *testing.T) {
	_, err := New("a.txt", "x/../../y")
	if err == nil {
		t.Fatal("expected escaping path to be rejected")
	}
	if !strings.Contains(err.Error(), "files[1]") {
		t.Errorf("expected index in error, got %q", err.Error())
	}
}

func TestDirsParentsFirst(t *testing.T) {
	m, err := New("a.txt", "src/lexer.py", "src/pkg/mod.py", "configs/turkish.json", "src/parser.py")
	if err != nil {
		t.Fatalf("new failed: %v", err)
	}

	want := []string{"src", "src/pkg", "configs"}
	if got := m.Dirs(); !reflect.DeepEqual(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestFilesReturnsCopy(t *testing.T) {
	m, _ := New("a.txt")
	files := m.Files()
	files[0] = "mutated"
	if m.Files()[0] != "a.txt" {
		t.Error("manifest must be immutable")
	}
}
