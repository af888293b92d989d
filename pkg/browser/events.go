package browser

import (
	"sync"
	"sync/atomic"
	"time"
)

// eventStream is the send side of a session's event channel. Playwright
// invokes page callbacks on its dispatcher goroutine, so emit never blocks:
// when the buffer is full the event is dropped and counted.
type eventStream struct {
	sessionID string
	ch        chan Event
	mu        sync.Mutex
	closed    bool
	dropped   atomic.Int64
	now       func() time.Time
}

func newEventStream(sessionID string, buffer int) *eventStream {
	if buffer <= 0 {
		buffer = DefaultEventBuffer
	}
	return &eventStream{
		sessionID: sessionID,
		ch:        make(chan Event, buffer),
		now:       time.Now,
	}
}

func (s *eventStream) emit(kind EventKind, level, text string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}

	event := Event{
		Kind:      kind,
		SessionID: s.sessionID,
		Level:     level,
		Text:      text,
		Time:      s.now(),
	}

	select {
	case s.ch <- event:
	default:
		s.dropped.Add(1)
	}
}

func (s *eventStream) close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return
	}
	s.closed = true
	close(s.ch)
}

func (s *eventStream) events() <-chan Event {
	return s.ch
}

// Dropped returns how many events were discarded because nobody was reading.
func (s *eventStream) Dropped() int64 {
	return s.dropped.Load()
}
