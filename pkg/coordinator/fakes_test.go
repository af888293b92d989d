package coordinator

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/entrhq/kiosk/pkg/browser"
	"github.com/entrhq/kiosk/pkg/config"
)

// fakeDriver opens in-memory sessions and tracks how many are alive.
type fakeDriver struct {
	mu        sync.Mutex
	opens     []string
	openErr   map[string]error
	closeErr  map[string]error
	gates     map[string]chan struct{}
	hangUntil map[string]bool // block until ctx is done
	entered   chan string
	seq       int

	// loadEvents are buffered on every new handle, like the page output a
	// real session collects while loading
	loadEvents func(sessionID, address string) []browser.Event

	live    atomic.Int32
	maxLive atomic.Int32
}

func newFakeDriver() *fakeDriver {
	return &fakeDriver{
		openErr:   map[string]error{},
		closeErr:  map[string]error{},
		gates:     map[string]chan struct{}{},
		hangUntil: map[string]bool{},
		entered:   make(chan string, 64),
	}
}

func (d *fakeDriver) gate(address string) chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	ch := make(chan struct{})
	d.gates[address] = ch
	return ch
}

func (d *fakeDriver) failOpen(address string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.openErr[address] = err
}

func (d *fakeDriver) failClose(address string, err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closeErr[address] = err
}

func (d *fakeDriver) hang(address string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.hangUntil[address] = true
}

func (d *fakeDriver) openCalls() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.opens...)
}

func (d *fakeDriver) Open(ctx context.Context, address string) (browser.Handle, error) {
	d.mu.Lock()
	d.opens = append(d.opens, address)
	gate := d.gates[address]
	openErr := d.openErr[address]
	closeErr := d.closeErr[address]
	hang := d.hangUntil[address]
	loadEvents := d.loadEvents
	d.seq++
	id := fmt.Sprintf("session-%d", d.seq)
	d.mu.Unlock()

	d.entered <- address

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if hang {
		<-ctx.Done()
		return nil, fmt.Errorf("navigate to %s: %w", address, ctx.Err())
	}
	if openErr != nil {
		return nil, openErr
	}

	live := d.live.Add(1)
	for {
		prev := d.maxLive.Load()
		if live <= prev || d.maxLive.CompareAndSwap(prev, live) {
			break
		}
	}

	handle := &fakeHandle{
		driver:   d,
		id:       id,
		closeErr: closeErr,
		events:   make(chan browser.Event, 16),
		info: browser.PageInfo{
			SessionID: id,
			Address:   address,
			URL:       address + "/",
			Title:     "Title of " + strings.TrimPrefix(address, "https://"),
			OpenedAt:  time.Now(),
		},
	}
	if loadEvents != nil {
		for _, event := range loadEvents(id, address) {
			handle.events <- event
		}
	}
	return handle, nil
}

type fakeHandle struct {
	driver   *fakeDriver
	id       string
	info     browser.PageInfo
	events   chan browser.Event
	closeErr error
	once     sync.Once
	closes   atomic.Int32
}

func (h *fakeHandle) ID() string                   { return h.id }
func (h *fakeHandle) Info() browser.PageInfo       { return h.info }
func (h *fakeHandle) Events() <-chan browser.Event { return h.events }

func (h *fakeHandle) Close() error {
	h.closes.Add(1)
	h.once.Do(func() {
		close(h.events)
		h.driver.live.Add(-1)
	})
	return h.closeErr
}

// memoryLog records event log messages.
type memoryLog struct {
	mu       sync.Mutex
	messages []string
}

func (l *memoryLog) Post(message string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.messages = append(l.messages, message)
}

func (l *memoryLog) all() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.messages...)
}

func (l *memoryLog) containing(substr string) []string {
	var out []string
	for _, m := range l.all() {
		if strings.Contains(m, substr) {
			out = append(out, m)
		}
	}
	return out
}

// stubStore is an in-memory Store with injectable save failures.
type stubStore struct {
	mu      sync.Mutex
	target  config.Target
	saves   []string
	saveErr error
}

func (s *stubStore) Load() config.Target {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.target.Website == "" {
		s.target = config.Target{Website: config.DefaultWebsite}
	}
	return s.target
}

func (s *stubStore) Save(t config.Target) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.saveErr != nil {
		return s.saveErr
	}
	s.saves = append(s.saves, t.Website)
	s.target = t
	return nil
}

// stallingLog holds back any message containing hold until release is
// closed. Stalled posts are announced on stalled.
type stallingLog struct {
	memoryLog
	hold    string
	stalled chan string
	release chan struct{}
}

func newStallingLog(hold string) *stallingLog {
	return &stallingLog{
		hold:    hold,
		stalled: make(chan string, 1),
		release: make(chan struct{}),
	}
}

func (l *stallingLog) Post(message string) {
	if strings.Contains(message, l.hold) {
		l.stalled <- message
		<-l.release
	}
	l.memoryLog.Post(message)
}
