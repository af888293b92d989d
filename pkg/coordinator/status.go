package coordinator

import (
	"time"

	"github.com/entrhq/kiosk/pkg/logging"
)

// Status is a point-in-time view of the coordinator for health reporting.
type Status struct {
	State       string            `json:"state"`
	Website     string            `json:"website,omitempty"`
	SessionLive bool              `json:"session_live"`
	SessionID   string            `json:"session_id,omitempty"`
	OpenedAt    time.Time         `json:"opened_at,omitempty"`
	Title       string            `json:"title,omitempty"`
	LastError   string            `json:"last_error,omitempty"`
	LastErrorAt time.Time         `json:"last_error_at,omitempty"`
	Queued      int               `json:"queued"`
	EventLog    logging.LogHealth `json:"event_log"`
	UpdatedAt   time.Time         `json:"updated_at"`
}

// Status returns the latest snapshot. It never waits for a transition.
func (c *Coordinator) Status() Status {
	c.snapMu.RLock()
	s := c.snap
	c.snapMu.RUnlock()

	s.Queued = c.lock.queued()
	if hr, ok := c.events.(healthReporter); ok {
		s.EventLog = hr.Health()
	}
	return s
}

// publish refreshes the snapshot from the guarded fields. Callers hold the
// transition lock. A non-nil err becomes the last error.
func (c *Coordinator) publish(err error) {
	c.publishAs(c.state, err)
}

func (c *Coordinator) publishAs(state State, err error) {
	now := time.Now()

	c.snapMu.Lock()
	defer c.snapMu.Unlock()

	c.snap.State = state.String()
	if c.hasCurrent {
		c.snap.Website = c.current.Website
	}
	c.snap.SessionLive = c.session != nil
	if c.session != nil {
		info := c.session.Info()
		c.snap.SessionID = c.session.ID()
		c.snap.OpenedAt = info.OpenedAt
		c.snap.Title = info.Title
	} else {
		c.snap.SessionID = ""
		c.snap.OpenedAt = time.Time{}
		c.snap.Title = ""
	}
	if err != nil {
		c.snap.LastError = err.Error()
		c.snap.LastErrorAt = now
	}
	c.snap.UpdatedAt = now
}
