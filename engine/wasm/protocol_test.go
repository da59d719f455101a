package wasm

import (
	"context"
	"encoding/json"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/caffeineduck/funhost/hostfunc"
	"github.com/charmbracelet/log"
)

func TestNextFrame(t *testing.T) {
	tests := []struct {
		name     string
		content  string
		wantIdx  int
		wantKind frameKind
	}{
		{"no frame", "hello world", -1, frameNone},
		{"ready", "boot\x00FUNHOST_READY\x00", 4, frameReady},
		{"reply", "x\x00FUNHOST_REPLY:{}\x00", 1, frameReply},
		{"call", "\x00FUNHOST_CALL:{}\x00", 0, frameCall},
		{"call before reply", "\x00FUNHOST_CALL:{}\x00\x00FUNHOST_REPLY:{}\x00", 0, frameCall},
		{"reply before call", "ab\x00FUNHOST_REPLY:{}\x00\x00FUNHOST_CALL:{}\x00", 2, frameReply},
		{"empty", "", -1, frameNone},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			idx, kind := nextFrame(tt.content)
			if idx != tt.wantIdx || kind != tt.wantKind {
				t.Errorf("nextFrame = (%d, %d), want (%d, %d)", idx, kind, tt.wantIdx, tt.wantKind)
			}
		})
	}
}

func TestExtractFrame(t *testing.T) {
	payload, rest, ok := extractFrame("p\x00FUNHOST_REPLY:{\"ok\":true}\x00tail", 1, replyPrefix)
	if !ok || payload != `{"ok":true}` || rest != "tail" {
		t.Errorf("got (%q, %q, %v)", payload, rest, ok)
	}

	payload, rest, ok = extractFrame("\x00FUNHOST_REPLY:{partial", 0, replyPrefix)
	if ok || payload != "" || rest != "\x00FUNHOST_REPLY:{partial" {
		t.Errorf("incomplete frame: got (%q, %q, %v)", payload, rest, ok)
	}
}

func TestPartialPrefix(t *testing.T) {
	tests := []struct {
		content string
		want    int
	}{
		{"plain", 0},
		{"text\x00FUN", 4},
		{"text\x00", 1},
		{"text\x00other", 0},
	}
	for _, tt := range tests {
		if got := partialPrefix(tt.content); got != tt.want {
			t.Errorf("partialPrefix(%q) = %d, want %d", tt.content, got, tt.want)
		}
	}
}

type capture struct {
	mu    sync.Mutex
	lines []string
	got   chan struct{}
}

func newCapture() *capture {
	return &capture{got: make(chan struct{}, 8)}
}

func (c *capture) write(data []byte) error {
	c.mu.Lock()
	c.lines = append(c.lines, string(data))
	c.mu.Unlock()
	c.got <- struct{}{}
	return nil
}

func (c *capture) wait(t *testing.T) string {
	t.Helper()
	select {
	case <-c.got:
	case <-time.After(2 * time.Second):
		t.Fatal("no response written")
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.lines[len(c.lines)-1]
}

func newTestProtocol(registry *hostfunc.Registry, respond func([]byte) error) *protocol {
	if registry == nil {
		registry = hostfunc.NewRegistry()
	}
	return newProtocol(context.Background(), registry, respond, log.New(io.Discard))
}

func TestProtocolReady(t *testing.T) {
	p := newTestProtocol(nil, nil)
	p.Write([]byte("loading\x00FUNHOST_RE"))

	select {
	case <-p.Ready():
		t.Fatal("ready before the frame completed")
	default:
	}

	p.Write([]byte("ADY\x00"))
	select {
	case <-p.Ready():
	default:
		t.Fatal("expected ready")
	}
	if got := p.takeStderr(); got != "loading" {
		t.Errorf("expected diagnostics 'loading', got %q", got)
	}
}

func TestProtocolReplySplitAcrossWrites(t *testing.T) {
	p := newTestProtocol(nil, nil)
	frame := "\x00FUNHOST_REPLY:" + `{"ok":true,"value":{"stdout":"hi"}}` + "\x00"

	for i := 0; i < len(frame); i += 5 {
		p.Write([]byte(frame[i:min(i+5, len(frame))]))
	}

	select {
	case r := <-p.replies:
		if !r.OK || string(r.Value) != `{"stdout":"hi"}` {
			t.Errorf("unexpected reply %+v", r)
		}
	default:
		t.Fatal("expected a reply")
	}
	if got := p.takeStderr(); got != "" {
		t.Errorf("frame bytes leaked into diagnostics: %q", got)
	}
}

func TestProtocolInvalidReply(t *testing.T) {
	p := newTestProtocol(nil, nil)
	p.Write([]byte("\x00FUNHOST_REPLY:not json\x00"))

	r := <-p.replies
	if r.OK || !strings.Contains(r.Error, "invalid reply") {
		t.Errorf("expected invalid reply error, got %+v", r)
	}
}

func TestProtocolHostCall(t *testing.T) {
	registry := hostfunc.NewRegistry()
	registry.Register("echo", func(ctx context.Context, args map[string]any) (any, error) {
		return args["v"], nil
	})
	c := newCapture()
	p := newTestProtocol(registry, c.write)

	p.Write([]byte(`before` + "\x00FUNHOST_CALL:" + `{"fn":"echo","args":{"v":"x"}}` + "\x00after"))

	var resp callResponse
	if err := json.Unmarshal([]byte(c.wait(t)), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Data != "x" || resp.Error != "" {
		t.Errorf("unexpected response %+v", resp)
	}
	if got := p.takeStderr(); got != "beforeafter" {
		t.Errorf("expected surrounding text kept, got %q", got)
	}
}

func TestProtocolHostCallErrors(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
	}{
		{"unknown", `{"fn":"missing","args":{}}`, "unknown function: missing"},
		{"invalid", `{bad`, "invalid call format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCapture()
			p := newTestProtocol(nil, c.write)
			p.Write([]byte("\x00FUNHOST_CALL:" + tt.payload + "\x00"))

			var resp callResponse
			json.Unmarshal([]byte(c.wait(t)), &resp)
			if resp.Error != tt.want {
				t.Errorf("expected %q, got %q", tt.want, resp.Error)
			}
		})
	}
}

func TestProtocolDrain(t *testing.T) {
	p := newTestProtocol(nil, nil)
	p.Write([]byte("\x00FUNHOST_REPLY:{\"ok\":true}\x00"))
	p.drain()

	select {
	case r := <-p.replies:
		t.Errorf("expected drained channel, got %+v", r)
	default:
	}
}
