//go:build wasip1

// Test guest speaking the bridge protocol without a real interpreter.
// Build with: GOOS=wasip1 GOARCH=wasm go build -o guest.wasm guest.go
package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"slices"
	"strings"
)

type command struct {
	Type   string  `json:"type"`
	Path   string  `json:"path"`
	Module string  `json:"module"`
	Symbol string  `json:"symbol"`
	Entry  string  `json:"entry"`
	Source string  `json:"source"`
	Config *string `json:"config"`
}

var (
	stdin   = bufio.NewScanner(os.Stdin)
	paths   []string
	entries = map[string]bool{}
)

func main() {
	stdin.Buffer(make([]byte, 1<<20), 1<<24)
	fmt.Fprint(os.Stderr, "booting\n")
	fmt.Fprint(os.Stderr, "\x00FUNHOST_READY\x00")

	for stdin.Scan() {
		var cmd command
		if err := json.Unmarshal(stdin.Bytes(), &cmd); err != nil {
			fail("invalid command")
			continue
		}
		switch cmd.Type {
		case "exit":
			return
		case "path":
			if !slices.Contains(paths, cmd.Path) {
				paths = append([]string{cmd.Path}, paths...)
			}
			reply(nil)
		case "import":
			doImport(cmd)
		case "eval":
			doEval(cmd)
		default:
			fail("unknown command: " + cmd.Type)
		}
	}
}

func doImport(cmd command) {
	for _, p := range paths {
		if _, err := os.Stat(path.Join(p, cmd.Module+".py")); err == nil {
			entries[cmd.Module+"."+cmd.Symbol] = true
			reply(nil)
			return
		}
	}
	fail(fmt.Sprintf("ModuleNotFoundError: No module named '%s'", cmd.Module))
}

func doEval(cmd command) {
	if !entries[cmd.Entry] {
		fail("NameError: " + cmd.Entry + " is not imported")
		return
	}
	switch {
	case cmd.Source == "exit":
		os.Exit(3)
	case cmd.Source == "crash":
		fail("RuntimeError: guest crashed")
	case cmd.Source == "noise":
		fmt.Print("stray stdout\n")
		fmt.Fprint(os.Stderr, "stray stderr\n")
		reply(map[string]any{"stdout": "", "result": nil, "error": nil})
	case cmd.Source == "wrong":
		reply([]int{1, 2})
	case strings.HasPrefix(cmd.Source, "call "):
		reply(map[string]any{"stdout": "", "result": hostCall(strings.TrimPrefix(cmd.Source, "call ")), "error": nil})
	case cmd.Config != nil:
		data, err := os.ReadFile(*cmd.Config)
		if err != nil {
			reply(map[string]any{"stdout": "", "result": nil, "error": "FileNotFoundError: " + *cmd.Config})
			return
		}
		reply(map[string]any{"stdout": "", "result": string(data), "error": nil})
	default:
		reply(map[string]any{"stdout": cmd.Source + "\n", "result": nil, "error": nil})
	}
}

func hostCall(fn string) string {
	req, _ := json.Marshal(map[string]any{"fn": fn, "args": map[string]any{"message": "from guest"}})
	fmt.Fprintf(os.Stderr, "\x00FUNHOST_CALL:%s\x00", req)
	if !stdin.Scan() {
		return "no response"
	}
	var resp struct {
		Data  any    `json:"data"`
		Error string `json:"error"`
	}
	json.Unmarshal(stdin.Bytes(), &resp)
	if resp.Error != "" {
		return "error: " + resp.Error
	}
	return fmt.Sprint(resp.Data)
}

func reply(value any) {
	send(map[string]any{"ok": true, "value": value})
}

func fail(msg string) {
	send(map[string]any{"ok": false, "error": msg})
}

func send(v any) {
	data, _ := json.Marshal(v)
	fmt.Fprintf(os.Stderr, "\x00FUNHOST_REPLY:%s\x00", data)
}
