package speech

import "sync"

// Sink is the single shared audio output. Only the orchestrator may touch
// it, and only after the prior session's stop sequence (Stop, Rewind,
// Clear) has completed, so two sessions can never overlap on it.
type Sink interface {
	// Stop halts playback.
	Stop()
	// Rewind resets the playback position to zero.
	Rewind()
	// Clear unbinds the current source.
	Clear()
	// Bind attaches a new source. Callers must run the stop sequence first.
	Bind(source string)
	// Play starts playback of the bound source.
	Play()
}

// StateSink is the default Sink: it mirrors the page's hidden audio
// element, tracking what the browser side should currently have bound.
type StateSink struct {
	mu       sync.Mutex
	source   string
	position float64
	playing  bool
}

// NewStateSink creates an idle, unbound sink.
func NewStateSink() *StateSink {
	return &StateSink{}
}

func (s *StateSink) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = false
}

func (s *StateSink) Rewind() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.position = 0
}

func (s *StateSink) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = ""
}

func (s *StateSink) Bind(source string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.source = source
}

func (s *StateSink) Play() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.playing = true
}

// Source returns the currently bound source, or empty when unbound.
func (s *StateSink) Source() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.source
}

// Playing reports whether the sink is playing.
func (s *StateSink) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}
