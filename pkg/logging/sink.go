package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
)

// Entry is one line of the event log.
type Entry struct {
	Time    time.Time
	Message string
}

// String formats the entry the way it is stored on disk.
func (e Entry) String() string {
	msg := strings.ReplaceAll(e.Message, "\n", " ")
	return fmt.Sprintf("[%s] %s\n", e.Time.UTC().Format(time.RFC3339Nano), msg)
}

// WriteError reports a failed append to the event log.
type WriteError struct {
	Path string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("failed to append to event log %s: %v", e.Path, e.Err)
}

func (e *WriteError) Unwrap() error {
	return e.Err
}

// Sink is the append-only event log. It holds operational events such as
// errors, browser console output and the history of target updates.
// There is no rotation and nothing is ever truncated.
type Sink struct {
	path  string
	clock clockwork.Clock
	mu    sync.Mutex
}

// NewSink creates a sink appending to path. A nil clock means the real clock.
func NewSink(path string, clock clockwork.Clock) *Sink {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &Sink{path: path, clock: clock}
}

// Append writes one entry. The file and its directory are created on demand.
func (s *Sink) Append(message string) error {
	entry := Entry{Time: s.clock.Now(), Message: message}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(s.path), 0750); err != nil {
		return &WriteError{Path: s.path, Err: err}
	}

	file, err := os.OpenFile(s.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0600)
	if err != nil {
		return &WriteError{Path: s.path, Err: err}
	}

	if _, err := io.WriteString(file, entry.String()); err != nil {
		file.Close()
		return &WriteError{Path: s.path, Err: err}
	}
	if err := file.Close(); err != nil {
		return &WriteError{Path: s.path, Err: err}
	}
	return nil
}

// Open returns a reader over the whole event log.
func (s *Sink) Open() (io.ReadCloser, error) {
	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open event log: %w", err)
	}
	return file, nil
}

// Path returns the file path of the event log.
func (s *Sink) Path() string {
	return s.path
}
