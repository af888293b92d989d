package browser

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/playwright-community/playwright-go"
)

// Session is one live Chromium instance showing a single page.
type Session struct {
	id      string
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page
	stream  *eventStream
	info    PageInfo

	// loaded is set once the initial navigation has finished
	loaded atomic.Bool

	closeOnce sync.Once
	closeErr  error
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Info returns what was observed when the page finished loading.
func (s *Session) Info() PageInfo {
	return s.info
}

// Events returns the page event channel. It is closed by Close.
func (s *Session) Events() <-chan Event {
	return s.stream.events()
}

// Dropped returns how many events were discarded because the channel was full.
func (s *Session) Dropped() int64 {
	return s.stream.Dropped()
}

// attach subscribes to page callbacks and forwards them as events.
func (s *Session) attach() {
	s.page.OnConsole(func(msg playwright.ConsoleMessage) {
		s.stream.emit(EventConsole, msg.Type(), msg.Text())
	})
	s.page.OnPageError(func(err error) {
		s.stream.emit(EventPageError, "error", err.Error())
	})
	s.page.OnCrash(func(playwright.Page) {
		s.stream.emit(EventCrashed, "error", "page crashed")
	})
	s.page.OnFrameNavigated(func(frame playwright.Frame) {
		s.navigated(frame.URL(), frame == s.page.MainFrame())
	})
}

// navigated reports main-frame navigations that happen after the initial
// load. The load itself is described by PageInfo.
func (s *Session) navigated(url string, mainFrame bool) {
	if !mainFrame || !s.loaded.Load() {
		return
	}
	s.stream.emit(EventNavigated, "info", url)
}

// markLoaded ends the initial navigation.
func (s *Session) markLoaded() {
	s.loaded.Store(true)
}

// Close closes the page, the context and the browser. Every step is attempted
// even if an earlier one fails; the failures are joined. Safe to call
// multiple times.
func (s *Session) Close() error {
	s.closeOnce.Do(func() {
		s.stream.close()

		var errs []error
		if s.page != nil {
			if err := s.page.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close page: %w", err))
			}
		}
		if s.context != nil {
			if err := s.context.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close context: %w", err))
			}
		}
		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				errs = append(errs, fmt.Errorf("close browser: %w", err))
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
