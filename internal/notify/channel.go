package notify

import (
	"log/slog"
	"sync"
	"time"
)

// Kind classifies a notice for styling
type Kind int

const (
	KindSuccess Kind = iota
	KindInfo
	KindWarning
	KindError
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindInfo:
		return "info"
	case KindWarning:
		return "warning"
	case KindError:
		return "error"
	}
	return "unknown"
}

const (
	// DefaultDuration is how long a notice stays visible
	DefaultDuration = 3 * time.Second

	defaultCapacity = 16
)

// Notice is a transient message shown to the user
type Notice struct {
	ID       uint64
	Kind     Kind
	Message  string
	Duration time.Duration
	ShownAt  time.Time // zero until the notice becomes visible
}

// Channel is a FIFO of notices with at most one visible at a time.
// It is safe for concurrent use; producers never block.
type Channel struct {
	mu       sync.Mutex
	visible  *Notice
	pending  []Notice
	capacity int
	duration time.Duration
	nextID   uint64
	now      func() time.Time
	logger   *slog.Logger

	// changed receives a value whenever the visible notice may have changed
	changed chan struct{}
}

// NewChannel creates a notice channel. A zero duration uses DefaultDuration.
func NewChannel(duration time.Duration, logger *slog.Logger) *Channel {
	if duration <= 0 {
		duration = DefaultDuration
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		capacity: defaultCapacity,
		duration: duration,
		now:      time.Now,
		logger:   logger,
		changed:  make(chan struct{}, 1),
	}
}

// Post enqueues a notice and returns its id. When the queue is full the
// oldest pending notice is dropped.
func (c *Channel) Post(kind Kind, message string) uint64 {
	c.mu.Lock()
	c.nextID++
	n := Notice{ID: c.nextID, Kind: kind, Message: message, Duration: c.duration}

	if c.visible == nil {
		n.ShownAt = c.now()
		c.visible = &n
	} else {
		if len(c.pending) >= c.capacity {
			c.logger.Debug("notice queue full, dropping oldest", "dropped", c.pending[0].Message)
			c.pending = c.pending[1:]
		}
		c.pending = append(c.pending, n)
	}
	c.mu.Unlock()

	c.logger.Debug("notice posted", "kind", kind.String(), "message", message)
	c.signal()
	return n.ID
}

func (c *Channel) Success(message string) uint64 { return c.Post(KindSuccess, message) }
func (c *Channel) Info(message string) uint64    { return c.Post(KindInfo, message) }
func (c *Channel) Warning(message string) uint64 { return c.Post(KindWarning, message) }
func (c *Channel) Error(message string) uint64   { return c.Post(KindError, message) }

// Current returns the visible notice, if any
func (c *Channel) Current() (Notice, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.visible == nil {
		return Notice{}, false
	}
	return *c.visible, true
}

// Pending returns the number of queued notices behind the visible one
func (c *Channel) Pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// Advance expires the visible notice if its duration has elapsed at now
// and promotes the next one. It reports whether the visible notice changed.
func (c *Channel) Advance(now time.Time) bool {
	c.mu.Lock()
	if c.visible == nil || now.Sub(c.visible.ShownAt) < c.visible.Duration {
		c.mu.Unlock()
		return false
	}
	c.promoteLocked(now)
	c.mu.Unlock()

	c.signal()
	return true
}

// Dismiss removes the notice with id whether visible or queued
func (c *Channel) Dismiss(id uint64) bool {
	c.mu.Lock()
	if c.visible != nil && c.visible.ID == id {
		c.promoteLocked(c.now())
		c.mu.Unlock()
		c.signal()
		return true
	}
	for i := range c.pending {
		if c.pending[i].ID == id {
			c.pending = append(c.pending[:i], c.pending[i+1:]...)
			c.mu.Unlock()
			return true
		}
	}
	c.mu.Unlock()
	return false
}

func (c *Channel) promoteLocked(now time.Time) {
	if len(c.pending) == 0 {
		c.visible = nil
		return
	}
	next := c.pending[0]
	c.pending = c.pending[1:]
	next.ShownAt = now
	c.visible = &next
}

// Changed returns a channel signalled when the visible notice may have
// changed. Signals coalesce; readers should call Current afterwards.
func (c *Channel) Changed() <-chan struct{} {
	return c.changed
}

func (c *Channel) signal() {
	select {
	case c.changed <- struct{}{}:
	default: // Already signalled
	}
}
