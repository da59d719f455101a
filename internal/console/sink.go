package console

import (
	"io"
	"strings"
	"sync"
)

// Sink is the append-only output transcript. Appended text is also copied
// to an optional writer as it arrives.
type Sink struct {
	mu  sync.Mutex
	buf strings.Builder
	tee io.Writer
}

// NewSink returns an empty Sink. tee may be nil.
func NewSink(tee io.Writer) *Sink {
	return &Sink{tee: tee}
}

func (s *Sink) Append(text string) {
	if text == "" {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.WriteString(text)
	if s.tee != nil {
		io.WriteString(s.tee, text)
	}
}

func (s *Sink) String() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.String()
}

func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.buf.Len()
}

// Clear empties the transcript. It does not touch the tee.
func (s *Sink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.buf.Reset()
}
