package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"

	"github.com/entrhq/kiosk/pkg/logging"
)

// ErrNotStarted is returned by Open before Start has succeeded.
var ErrNotStarted = errors.New("browser driver not started")

// ErrTimeout marks launch or navigation that ran out of time.
var ErrTimeout = errors.New("browser timed out")

// PlaywrightDriver opens sessions in Chromium through Playwright.
type PlaywrightDriver struct {
	mu         sync.Mutex
	playwright *playwright.Playwright
	opts       Options
	logger     *logging.Logger
	started    bool
}

// NewPlaywrightDriver creates a driver. Zero option values get defaults.
func NewPlaywrightDriver(opts Options, logger *logging.Logger) *PlaywrightDriver {
	if opts.Viewport.Width == 0 || opts.Viewport.Height == 0 {
		opts.Viewport = Viewport{
			Width:  DefaultViewportWidth,
			Height: DefaultViewportHeight,
		}
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultTimeout
	}
	if opts.WaitUntil == "" {
		opts.WaitUntil = DefaultWaitUntil
	}
	if logger == nil {
		logger = logging.NewDiscardLogger()
	}
	return &PlaywrightDriver{opts: opts, logger: logger}
}

// Start runs the Playwright server, installing Chromium first when
// Options.Install is set. Calling Start again is a no-op.
func (d *PlaywrightDriver) Start() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.started {
		return nil
	}

	// Driver output goes next to the process log instead of the terminal
	runOpts := &playwright.RunOptions{
		Browsers: []string{"chromium"},
		Verbose:  false,
		Stdout:   d.logger.Writer(),
		Stderr:   d.logger.Writer(),
	}

	if d.opts.Install {
		d.logger.Infof("Installing playwright browsers")
		if err := playwright.Install(runOpts); err != nil {
			return fmt.Errorf("failed to install playwright: %w", err)
		}
	}

	pw, err := playwright.Run(runOpts)
	if err != nil {
		return fmt.Errorf("failed to start playwright: %w", err)
	}

	d.playwright = pw
	d.started = true
	return nil
}

// Open launches a browser and navigates a fresh page to address.
//
// Launch and navigation share one time budget: the earlier of ctx's deadline
// and Options.Timeout. Running out of it yields an error matching ErrTimeout.
// Nothing is left running when Open fails.
func (d *PlaywrightDriver) Open(ctx context.Context, address string) (Handle, error) {
	d.mu.Lock()
	pw, started := d.playwright, d.started
	d.mu.Unlock()

	if !started {
		return nil, ErrNotStarted
	}

	deadline := time.Now().Add(d.opts.Timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}

	session := &Session{id: uuid.New().String()}
	session.stream = newEventStream(session.id, DefaultEventBuffer)

	fail := func(step string, err error) (Handle, error) {
		_ = session.Close()
		if isTimeout(err) {
			return nil, fmt.Errorf("%s %s: %w: %w", step, address, ErrTimeout, err)
		}
		return nil, fmt.Errorf("%s %s: %w", step, address, err)
	}

	remaining, err := budget(ctx, deadline)
	if err != nil {
		return fail("launch browser for", err)
	}
	browser, err := pw.Chromium.Launch(playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(d.opts.Headless),
		Timeout:  playwright.Float(remaining),
	})
	if err != nil {
		return fail("launch browser for", err)
	}
	session.browser = browser

	bctx, err := browser.NewContext(playwright.BrowserNewContextOptions{
		Viewport: &playwright.Size{
			Width:  d.opts.Viewport.Width,
			Height: d.opts.Viewport.Height,
		},
	})
	if err != nil {
		return fail("create context for", err)
	}
	session.context = bctx

	page, err := bctx.NewPage()
	if err != nil {
		return fail("create page for", err)
	}
	session.page = page
	session.attach()

	remaining, err = budget(ctx, deadline)
	if err != nil {
		return fail("navigate to", err)
	}
	waitUntil := playwright.WaitUntilState(d.opts.WaitUntil)
	if _, err := page.Goto(address, playwright.PageGotoOptions{
		WaitUntil: &waitUntil,
		Timeout:   playwright.Float(remaining),
	}); err != nil {
		return fail("navigate to", err)
	}
	session.markLoaded()

	session.info = d.describe(session, address)
	return session, nil
}

// describe collects page diagnostics. Failures here only leave fields empty.
func (d *PlaywrightDriver) describe(s *Session, address string) PageInfo {
	info := PageInfo{
		SessionID: s.id,
		Address:   address,
		URL:       s.page.URL(),
		OpenedAt:  time.Now(),
	}

	if title, err := s.page.Title(); err == nil {
		info.Title = title
	}

	if content, err := s.page.Content(); err == nil {
		if summary, err := summarizeHTML(content); err == nil {
			if info.Title == "" {
				info.Title = summary.Title
			}
			info.Description = summary.Description
			info.Links = summary.Links
		} else {
			d.logger.Debugf("Page summary for %s failed: %v", address, err)
		}
	}
	return info
}

// Stop shuts the Playwright server down. Sessions must be closed first.
func (d *PlaywrightDriver) Stop() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.started || d.playwright == nil {
		return nil
	}
	if err := d.playwright.Stop(); err != nil {
		return fmt.Errorf("failed to stop playwright: %w", err)
	}
	d.started = false
	d.playwright = nil
	return nil
}

// budget returns the milliseconds left before deadline, or an error when the
// context is done or no time remains.
func budget(ctx context.Context, deadline time.Time) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	// Playwright treats a zero timeout as "no timeout"
	left := time.Until(deadline)
	if left < time.Millisecond {
		return 0, context.DeadlineExceeded
	}
	return float64(left.Milliseconds()), nil
}

func isTimeout(err error) bool {
	return errors.Is(err, playwright.ErrTimeout) || errors.Is(err, context.DeadlineExceeded)
}
