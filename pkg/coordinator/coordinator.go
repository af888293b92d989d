package coordinator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/entrhq/kiosk/pkg/browser"
	"github.com/entrhq/kiosk/pkg/config"
	"github.com/entrhq/kiosk/pkg/logging"
	"github.com/entrhq/kiosk/pkg/metrics"
)

// State is the coordinator lifecycle state.
type State int

const (
	StateUninitialized State = iota
	StateRunning
	StateReconfiguring
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateRunning:
		return "running"
	case StateReconfiguring:
		return "reconfiguring"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Store persists the target.
type Store interface {
	Load() config.Target
	Save(config.Target) error
}

// EventLog receives event log messages. Post must not block on I/O for long;
// it is called outside the transition lock but on the caller's goroutine.
type EventLog interface {
	Post(message string)
}

// healthReporter is implemented by event logs that track write failures.
type healthReporter interface {
	Health() logging.LogHealth
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithLogger sets the process logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Coordinator) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records transitions on m.
func WithMetrics(m *metrics.SessionMetrics) Option {
	return func(c *Coordinator) {
		c.metrics = m
	}
}

// WithTargetPolicy restricts the addresses Reconfigure accepts.
func WithTargetPolicy(p *config.TargetPolicy) Option {
	return func(c *Coordinator) {
		c.policy = p
	}
}

// WithOpenTimeout bounds every session open.
func WithOpenTimeout(d time.Duration) Option {
	return func(c *Coordinator) {
		if d > 0 {
			c.openTimeout = d
		}
	}
}

// Coordinator owns the one browser session and keeps it pointed at the
// configured target. Initialize, Reconfigure and Shutdown are serialized in
// arrival order; the session handle never leaves the coordinator.
type Coordinator struct {
	store       Store
	driver      browser.Driver
	events      EventLog
	logger      *logging.Logger
	metrics     *metrics.SessionMetrics
	policy      *config.TargetPolicy
	openTimeout time.Duration

	lock    transitionLock
	journal *journalOrder

	// Guarded by lock
	state      State
	current    config.Target
	hasCurrent bool
	session    browser.Handle
	forwarders sync.WaitGroup

	// Snapshot for readers that must not wait behind a transition
	snapMu sync.RWMutex
	snap   Status
}

// New creates a coordinator in the Uninitialized state.
func New(store Store, driver browser.Driver, events EventLog, opts ...Option) *Coordinator {
	c := &Coordinator{
		store:       store,
		driver:      driver,
		events:      events,
		logger:      logging.NewDiscardLogger(),
		openTimeout: browser.DefaultTimeout,
		journal:     newJournalOrder(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.snap.State = StateUninitialized.String()
	return c
}

// Initialize loads the target and opens the first session.
//
// A failed open still leaves the coordinator Running, without a session, so a
// later Reconfigure can recover. The open error is returned.
func (c *Coordinator) Initialize(ctx context.Context) (browser.PageInfo, error) {
	if err := c.lock.lock(ctx); err != nil {
		return browser.PageInfo{}, err
	}
	var journal []string
	defer c.release(&journal)

	if c.state != StateUninitialized {
		return browser.PageInfo{}, fmt.Errorf("initialize from %s: %w", c.state, ErrInvalidState)
	}

	target := c.store.Load()
	c.current = target
	c.hasCurrent = true

	info, err := c.open(ctx, target.Website)
	c.state = StateRunning

	if err != nil {
		journal = append(journal, err.Error())
		c.logger.Errorf("Initial session failed, running degraded: %v", err)
		c.metrics.Transition("initialize", openOutcome(err))
		c.publish(err)
		return browser.PageInfo{}, err
	}

	journal = append(journal, fmt.Sprintf("Visited %s | Page Title: %s", target.Website, info.Title))
	c.logger.Infof("Session %s opened at %s", info.SessionID, target.Website)
	c.metrics.Transition("initialize", metrics.OutcomeSuccess)
	c.publish(nil)
	return info, nil
}

// Reconfigure points the session at address: persist, close the old session,
// open the new one.
//
// Empty or disallowed addresses are rejected before anything changes. A save
// failure aborts with the old session untouched. A close failure is logged
// and the open is attempted anyway. The current target becomes address once
// the open has been attempted, whether or not it worked.
func (c *Coordinator) Reconfigure(ctx context.Context, address string) (browser.PageInfo, error) {
	address = strings.TrimSpace(address)
	if address == "" {
		c.metrics.Transition("reconfigure", metrics.OutcomeRejected)
		return browser.PageInfo{}, ErrEmptyAddress
	}
	if !c.policy.Allows(address) {
		c.metrics.Transition("reconfigure", metrics.OutcomeRejected)
		c.logger.Warnf("Rejected target outside policy: %s", address)
		return browser.PageInfo{}, fmt.Errorf("%s: %w", address, ErrTargetNotAllowed)
	}

	if err := c.lock.lock(ctx); err != nil {
		return browser.PageInfo{}, err
	}
	var journal []string
	defer c.release(&journal)

	if c.state != StateRunning {
		return browser.PageInfo{}, fmt.Errorf("reconfigure from %s: %w", c.state, ErrInvalidState)
	}

	c.state = StateReconfiguring
	c.publish(nil)
	defer func() {
		c.state = StateRunning
	}()

	target := config.Target{Website: address}
	if err := c.store.Save(target); err != nil {
		saveErr := &ConfigSaveError{Address: address, Err: err}
		journal = append(journal, saveErr.Error())
		c.logger.Errorf("%v", saveErr)
		c.metrics.Transition("reconfigure", metrics.OutcomeSaveError)
		c.publishAs(StateRunning, saveErr)
		return browser.PageInfo{}, saveErr
	}

	if err := c.closeSession(); err != nil {
		journal = append(journal, err.Error())
		c.logger.Warnf("Continuing after close failure: %v", err)
	}

	info, err := c.open(ctx, address)
	c.current = target
	c.hasCurrent = true

	if err != nil {
		journal = append(journal, err.Error())
		c.logger.Errorf("%v", err)
		c.metrics.Transition("reconfigure", openOutcome(err))
		c.publishAs(StateRunning, err)
		return browser.PageInfo{}, err
	}

	journal = append(journal, fmt.Sprintf("Website updated to %s | Page Title: %s", address, info.Title))
	c.logger.Infof("Session %s opened at %s", info.SessionID, address)
	c.metrics.Transition("reconfigure", metrics.OutcomeSuccess)
	c.publishAs(StateRunning, nil)
	return info, nil
}

// Shutdown closes the session and stops the coordinator. It waits for an
// in-flight transition to finish first. Calling it again is a no-op.
//
// A close failure is returned, but the coordinator is Stopped regardless.
func (c *Coordinator) Shutdown(ctx context.Context) error {
	if err := c.lock.lock(ctx); err != nil {
		return err
	}
	var journal []string
	defer c.release(&journal)

	if c.state == StateStopped {
		c.metrics.Transition("shutdown", metrics.OutcomeNoop)
		return nil
	}

	closeErr := c.closeSession()
	c.state = StateStopped

	if closeErr != nil {
		journal = append(journal, closeErr.Error())
		c.logger.Errorf("%v", closeErr)
	} else {
		journal = append(journal, "Browser closed.")
	}

	// Closed sessions close their event channels; drain what is left
	done := make(chan struct{})
	go func() {
		c.forwarders.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		c.logger.Warnf("Gave up waiting for session events: %v", ctx.Err())
	}

	c.metrics.Transition("shutdown", metrics.OutcomeSuccess)
	c.publish(closeErr)
	return closeErr
}

// Current returns the last requested target, if any.
func (c *Coordinator) Current() (config.Target, bool) {
	c.snapMu.RLock()
	defer c.snapMu.RUnlock()
	if c.snap.Website == "" {
		return config.Target{}, false
	}
	return config.Target{Website: c.snap.Website}, true
}

// open starts a session at address and makes it the current one.
func (c *Coordinator) open(ctx context.Context, address string) (browser.PageInfo, error) {
	openCtx, cancel := context.WithTimeout(ctx, c.openTimeout)
	defer cancel()

	start := time.Now()
	handle, err := c.driver.Open(openCtx, address)
	c.metrics.ObserveOpen(time.Since(start))
	if err != nil {
		return browser.PageInfo{}, &SessionOpenError{Address: address, Err: err}
	}

	c.session = handle
	c.metrics.SetLive(true)
	c.forward(handle)
	return handle.Info(), nil
}

// closeSession closes the current session, if any. The handle is dropped
// even when Close fails: a stuck session must not block opening a new one.
func (c *Coordinator) closeSession() error {
	if c.session == nil {
		return nil
	}
	handle := c.session
	c.session = nil
	c.metrics.SetLive(false)

	if err := handle.Close(); err != nil {
		c.metrics.CloseFailed()
		return &SessionCloseError{SessionID: handle.ID(), Err: err}
	}
	return nil
}

// forward copies session events into the event log until the session's
// channel is closed.
func (c *Coordinator) forward(handle browser.Handle) {
	events := handle.Events()
	if events == nil {
		return
	}
	c.forwarders.Add(1)
	go func() {
		defer c.forwarders.Done()
		for event := range events {
			c.events.Post(formatEvent(event))
		}
	}()
}

// release ends a transition. Its journal is posted after the lock is
// released, but never ahead of an earlier transition's journal.
func (c *Coordinator) release(journal *[]string) {
	t := c.journal.ticket()
	c.lock.unlock()
	c.journal.post(t, c.events, *journal)
}

func formatEvent(e browser.Event) string {
	switch e.Kind {
	case browser.EventConsole:
		return fmt.Sprintf("console.%s: %s", e.Level, e.Text)
	case browser.EventPageError:
		return fmt.Sprintf("page error: %s", e.Text)
	case browser.EventNavigated:
		return fmt.Sprintf("navigated to %s", e.Text)
	case browser.EventCrashed:
		return fmt.Sprintf("page crashed (session %s)", e.SessionID)
	default:
		return fmt.Sprintf("%s: %s", e.Kind, e.Text)
	}
}

func openOutcome(err error) string {
	var soe *SessionOpenError
	if errors.As(err, &soe) && soe.Timeout() {
		return metrics.OutcomeTimeout
	}
	return metrics.OutcomeOpenError
}
