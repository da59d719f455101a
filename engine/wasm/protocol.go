package wasm

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"sync"

	"github.com/caffeineduck/funhost/hostfunc"
	"github.com/charmbracelet/log"
)

// Frames written by the guest on stderr. Everything outside a frame is
// ordinary diagnostic output.
//
//	\x00FUNHOST_READY\x00        once, when the bridge loop is reading commands
//	\x00FUNHOST_REPLY:{json}\x00 once per command
//	\x00FUNHOST_CALL:{json}\x00  host function call, answered with a JSON line on stdin
const (
	readyPrefix = "\x00FUNHOST_READY"
	replyPrefix = "\x00FUNHOST_REPLY:"
	callPrefix  = "\x00FUNHOST_CALL:"
	frameEnd    = "\x00"
)

type frameKind int

const (
	frameNone frameKind = iota
	frameReady
	frameReply
	frameCall
)

var framePrefixes = []struct {
	kind   frameKind
	prefix string
}{
	{frameReady, readyPrefix},
	{frameReply, replyPrefix},
	{frameCall, callPrefix},
}

// command is one JSON line written to the guest's stdin.
type command struct {
	Type   string  `json:"type"`
	Path   string  `json:"path,omitempty"`
	Module string  `json:"module,omitempty"`
	Symbol string  `json:"symbol,omitempty"`
	Entry  string  `json:"entry,omitempty"`
	Source string  `json:"source,omitempty"`
	Config *string `json:"config,omitempty"`
}

type reply struct {
	OK    bool            `json:"ok"`
	Value json.RawMessage `json:"value,omitempty"`
	Error string          `json:"error,omitempty"`
}

type callRequest struct {
	Fn   string         `json:"fn"`
	Args map[string]any `json:"args"`
}

type callResponse struct {
	Data  any    `json:"data,omitempty"`
	Error string `json:"error,omitempty"`
}

// nextFrame returns the index and kind of the earliest frame start in content.
func nextFrame(content string) (int, frameKind) {
	best, kind := -1, frameNone
	for _, fp := range framePrefixes {
		if idx := strings.Index(content, fp.prefix); idx != -1 && (best == -1 || idx < best) {
			best, kind = idx, fp.kind
		}
	}
	return best, kind
}

// extractFrame splits the frame at idx into its payload and the remaining
// content. ok is false when the frame is not yet terminated.
func extractFrame(content string, idx int, prefix string) (payload, rest string, ok bool) {
	start := idx + len(prefix)
	end := strings.Index(content[start:], frameEnd)
	if end == -1 {
		return "", content[idx:], false
	}
	return content[start : start+end], content[start+end+len(frameEnd):], true
}

// protocol is the guest's stderr. It demultiplexes frames from diagnostic
// output and answers host function calls.
type protocol struct {
	ctx      context.Context
	registry *hostfunc.Registry
	respond  func([]byte) error
	logger   *log.Logger

	mu      sync.Mutex
	buf     bytes.Buffer
	stderr  bytes.Buffer
	ready   bool
	readyCh chan struct{}
	replies chan reply
}

func newProtocol(ctx context.Context, registry *hostfunc.Registry, respond func([]byte) error, logger *log.Logger) *protocol {
	return &protocol{
		ctx:      ctx,
		registry: registry,
		respond:  respond,
		logger:   logger,
		readyCh:  make(chan struct{}),
		replies:  make(chan reply, 1),
	}
}

func (p *protocol) Write(data []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.buf.Write(data)
	for p.processFrame() {
	}
	return len(data), nil
}

// processFrame consumes at most one frame from the buffer. Text before the
// frame goes to stderr; an incomplete frame stays buffered.
func (p *protocol) processFrame() bool {
	content := p.buf.String()
	idx, kind := nextFrame(content)
	if kind == frameNone {
		keep := partialPrefix(content)
		p.stderr.WriteString(content[:len(content)-keep])
		p.buf.Reset()
		p.buf.WriteString(content[len(content)-keep:])
		return false
	}

	p.stderr.WriteString(content[:idx])
	prefix := framePrefixes[kind-1].prefix
	payload, rest, ok := extractFrame(content, idx, prefix)
	p.buf.Reset()
	p.buf.WriteString(rest)
	if !ok {
		return false
	}

	switch kind {
	case frameReady:
		if !p.ready {
			p.ready = true
			close(p.readyCh)
		}
	case frameReply:
		var r reply
		if err := json.Unmarshal([]byte(payload), &r); err != nil {
			r = reply{Error: "invalid reply: " + err.Error()}
		}
		select {
		case p.replies <- r:
		default:
			p.logger.Warn("dropping unsolicited guest reply")
		}
	case frameCall:
		p.handleCall(payload)
	}
	return true
}

// partialPrefix returns the length of the longest suffix of content that
// could be the start of a frame split across writes.
func partialPrefix(content string) int {
	i := strings.LastIndexByte(content, 0)
	if i == -1 {
		return 0
	}
	tail := content[i:]
	for _, fp := range framePrefixes {
		if strings.HasPrefix(fp.prefix, tail) {
			return len(tail)
		}
	}
	return 0
}

func (p *protocol) handleCall(payload string) {
	var req callRequest
	if err := json.Unmarshal([]byte(payload), &req); err != nil {
		go p.send(callResponse{Error: "invalid call format"})
		return
	}
	// The guest is blocked in this write until it reads the answer from
	// stdin, so the answer must not be written from here.
	go p.send(p.execute(req))
}

func (p *protocol) execute(req callRequest) callResponse {
	fn, ok := p.registry.Get(req.Fn)
	if !ok {
		return callResponse{Error: "unknown function: " + req.Fn}
	}
	result, err := fn(p.ctx, req.Args)
	if err != nil {
		return callResponse{Error: err.Error()}
	}
	return callResponse{Data: result}
}

func (p *protocol) send(resp callResponse) {
	data, err := json.Marshal(resp)
	if err != nil {
		data = []byte(`{"error":"internal: failed to marshal response"}`)
	}
	if err := p.respond(append(data, '\n')); err != nil {
		p.logger.Debug("host call response not delivered", "err", err)
	}
}

func (p *protocol) Ready() <-chan struct{} {
	return p.readyCh
}

// drain discards a reply left over from an abandoned command.
func (p *protocol) drain() {
	select {
	case <-p.replies:
	default:
	}
}

// takeStderr returns and clears diagnostic output collected so far.
func (p *protocol) takeStderr() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stderr.String()
	p.stderr.Reset()
	return s
}
