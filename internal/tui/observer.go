package tui

import "github.com/mmcdole/quill/internal/domain"

// SessionObserver adapts session change callbacks to a channel for Bubble Tea.
// Only the newest snapshot matters, so an unread one is replaced.
type SessionObserver struct {
	ch chan domain.Session
}

// NewSessionObserver creates a new channel-based observer.
func NewSessionObserver() *SessionObserver {
	return &SessionObserver{ch: make(chan domain.Session, 1)}
}

// OnChange publishes snap without blocking the caller.
func (o *SessionObserver) OnChange(snap domain.Session) {
	for {
		select {
		case o.ch <- snap:
			return
		default:
		}
		// Drop the stale snapshot and try again
		select {
		case <-o.ch:
		default:
		}
	}
}

// Changes returns the channel snapshots are delivered on.
func (o *SessionObserver) Changes() <-chan domain.Session {
	return o.ch
}
