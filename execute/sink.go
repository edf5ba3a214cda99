package execute

import (
	"sync"
)

// Sink collects the log lines of one execution, it is created before the run and read after it
type Sink struct {
	mu    sync.Mutex
	lines []string
}

// NewSink creates an empty sink
func NewSink() *Sink {
	return &Sink{}
}

// Append adds lines in order
func (s *Sink) Append(lines ...string) {
	s.mu.Lock()
	s.lines = append(s.lines, lines...)
	s.mu.Unlock()
}

// Lines returns a copy of the collected lines
func (s *Sink) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	result := make([]string, len(s.lines))
	copy(result, s.lines)
	return result
}

// Len returns the number of collected lines
func (s *Sink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.lines)
}
