package tui

import (
	"time"

	"github.com/mmcdole/quill/internal/domain"
	"github.com/mmcdole/quill/internal/mutation"
)

// Message types for the TUI

// scopedMsg is a result that belongs to one visit of a screen. The model
// drops it when the user has navigated away since it was issued.
type scopedMsg interface {
	scopeGen() uint64
}

// scope is embedded by screen-scoped results
type scope struct {
	Gen uint64
}

func (s scope) scopeGen() uint64 { return s.Gen }

// ErrMsg represents an error
type ErrMsg struct {
	Err     error
	Context string
}

// Error implements the error interface
func (e ErrMsg) Error() string {
	if e.Context != "" {
		return e.Context + ": " + e.Err.Error()
	}
	return e.Err.Error()
}

// TickMsg drives spinners and notice expiry
type TickMsg struct {
	Time time.Time
}

// NavigateMsg asks the model to go to a path; the route guard decides
// where the user actually lands.
type NavigateMsg struct {
	Path string
}

// SessionResolvedMsg signals the startup session check finished
type SessionResolvedMsg struct {
	Session domain.Session
}

// SessionChangedMsg carries a new session snapshot
type SessionChangedMsg struct {
	Session domain.Session
}

// NoticeChangedMsg signals the visible notice may have changed
type NoticeChangedMsg struct{}

// FeedLoadedMsg signals a feed page request or refresh finished
type FeedLoadedMsg struct {
	scope
	Err error
}

// PostLoadedMsg signals that a single post has been loaded
type PostLoadedMsg struct {
	scope
	Post *domain.Post
	Err  error
}

// UsersLoadedMsg signals that the admin user listing has been loaded
type UsersLoadedMsg struct {
	scope
	Users []domain.User
	Err   error
}

// CommentsLoadedMsg signals that the moderation listing has been loaded
type CommentsLoadedMsg struct {
	scope
	Comments []domain.Comment
	Err      error
}

// MutationDoneMsg signals a write finished. The coordinator has already
// told the user the outcome.
type MutationDoneMsg struct {
	scope
	Op  mutation.Op
	ID  int64
	Err error
}

// PostCreatedMsg signals the create-post request finished
type PostCreatedMsg struct {
	scope
	Post *domain.Post
	Err  error
}

// LoginDoneMsg signals a login attempt finished
type LoginDoneMsg struct {
	scope
	Session domain.Session
	Err     error
}

// RegisterDoneMsg signals a registration attempt finished
type RegisterDoneMsg struct {
	scope
	Err error
}

// LogoutDoneMsg signals logout finished
type LogoutDoneMsg struct {
	Err error
}
