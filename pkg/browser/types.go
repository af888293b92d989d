package browser

import (
	"context"
	"time"
)

// Driver opens browser sessions.
type Driver interface {
	Open(ctx context.Context, address string) (Handle, error)
}

// Handle is a live browser session.
type Handle interface {
	// ID uniquely identifies the session
	ID() string

	// Info describes the page right after it was opened
	Info() PageInfo

	// Events delivers page events until the session is closed
	Events() <-chan Event

	// Close releases every browser resource. Safe to call multiple times.
	Close() error
}

// Options configures the sessions a driver opens.
type Options struct {
	// Headless controls whether the browser runs without a visible window
	Headless bool

	// Viewport sets the page size
	Viewport Viewport

	// Timeout bounds launch and navigation when the caller's context has no
	// earlier deadline
	Timeout time.Duration

	// WaitUntil is the navigation milestone: "load", "domcontentloaded",
	// "networkidle" or "commit"
	WaitUntil string

	// Install downloads the browser binaries on Start
	Install bool
}

// Viewport represents the browser viewport dimensions.
type Viewport struct {
	Width  int
	Height int
}

// PageInfo describes an opened page.
type PageInfo struct {
	SessionID   string    `json:"session_id"`
	Address     string    `json:"address"`
	URL         string    `json:"url"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	Links       int       `json:"links"`
	OpenedAt    time.Time `json:"opened_at"`
}

// EventKind identifies what happened on the page.
type EventKind string

const (
	EventConsole   EventKind = "console"    // EventConsole carries a console.* call from the page.
	EventPageError EventKind = "page_error" // EventPageError carries an uncaught exception.
	EventNavigated EventKind = "navigated"  // EventNavigated reports a main frame navigation.
	EventCrashed   EventKind = "crashed"    // EventCrashed reports that the page process died.
)

// Event is something the session observed on its page.
type Event struct {
	Kind      EventKind
	SessionID string
	Level     string // console message type, e.g. "log", "error"
	Text      string
	Time      time.Time
}

// Default values for sessions
const (
	DefaultTimeout        = 30 * time.Second
	DefaultWaitUntil      = "load"
	DefaultViewportWidth  = 1280
	DefaultViewportHeight = 720
	DefaultEventBuffer    = 128
)
