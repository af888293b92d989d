package logging

import (
	"sync"
	"time"
)

const defaultPumpBuffer = 256

// Appender is the synchronous write side of the event log.
type Appender interface {
	Append(message string) error
}

// LogHealth summarizes event log write failures.
type LogHealth struct {
	Failures    int       `json:"failures"`
	LastError   string    `json:"last_error,omitempty"`
	LastFailure time.Time `json:"last_failure,omitempty"`
}

// PumpOption configures a Pump.
type PumpOption func(*Pump)

// WithBuffer sets the number of entries that can be queued before Post blocks.
func WithBuffer(n int) PumpOption {
	return func(p *Pump) {
		if n > 0 {
			p.buffer = n
		}
	}
}

// WithFailureHook registers a callback invoked after every failed append.
func WithFailureHook(fn func(error)) PumpOption {
	return func(p *Pump) {
		p.onFailure = fn
	}
}

// Pump moves event log messages from producers to an Appender on its own
// goroutine, so callers never wait on file I/O.
//
// Append failures are best-effort: they are reported on the process logger
// and counted, never returned to the producer.
type Pump struct {
	sink      Appender
	logger    *Logger
	buffer    int
	onFailure func(error)

	entries chan string
	done    chan struct{}

	mu        sync.RWMutex
	closed    bool
	closeOnce sync.Once

	healthMu sync.Mutex
	health   LogHealth
}

// NewPump starts a pump draining into sink.
func NewPump(sink Appender, logger *Logger, opts ...PumpOption) *Pump {
	if logger == nil {
		logger = NewDiscardLogger()
	}
	p := &Pump{
		sink:   sink,
		logger: logger,
		buffer: defaultPumpBuffer,
		done:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.entries = make(chan string, p.buffer)

	go p.run()
	return p
}

// Post queues a message. Posting after Close is a no-op.
func (p *Pump) Post(message string) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return
	}
	p.entries <- message
}

func (p *Pump) run() {
	defer close(p.done)

	for message := range p.entries {
		if err := p.sink.Append(message); err != nil {
			p.recordFailure(err)
			p.logger.Errorf("Event log write failed: %v (entry: %s)", err, message)
		}
	}
}

func (p *Pump) recordFailure(err error) {
	p.healthMu.Lock()
	p.health.Failures++
	p.health.LastError = err.Error()
	p.health.LastFailure = time.Now()
	p.healthMu.Unlock()

	if p.onFailure != nil {
		p.onFailure(err)
	}
}

// Health returns a snapshot of write failures seen so far.
func (p *Pump) Health() LogHealth {
	p.healthMu.Lock()
	defer p.healthMu.Unlock()
	return p.health
}

// Close stops accepting messages and waits until everything queued has been
// written. Safe to call multiple times.
func (p *Pump) Close() {
	p.closeOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.entries)
		p.mu.Unlock()
	})
	<-p.done
}
