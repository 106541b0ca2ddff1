package app

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/mmcdole/quill/internal/adapter"
	"github.com/mmcdole/quill/internal/adapter/blogapi"
	"github.com/mmcdole/quill/internal/cache"
	"github.com/mmcdole/quill/internal/content"
	"github.com/mmcdole/quill/internal/domain"
	"github.com/mmcdole/quill/internal/mutation"
	"github.com/mmcdole/quill/internal/notify"
	"github.com/mmcdole/quill/internal/session"
	"github.com/mmcdole/quill/internal/store"
)

// Backend is everything the app needs from the server
type Backend interface {
	domain.AuthRepository
	domain.PostRepository
	domain.AdminRepository
}

// App is the process-wide context: one session, one cache and one notice
// channel shared by every view.
type App struct {
	Config    *adapter.Config
	Logger    *slog.Logger
	Tokens    domain.TokenStore
	Session   *session.Store
	Cache     *cache.Cache
	Notices   *notify.Channel
	Content   *content.Commands
	Queries   *content.Queries
	Mutations *mutation.Coordinator

	lastUser atomic.Int64
	stop     func()
}

// New wires the app against the configured blog server
func New(cfg *adapter.Config, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	tokens, err := store.NewSessionStore(cfg.Cache.Dir, cfg.Server.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to open session storage: %w", err)
	}

	// The session is the client's token source; it does not exist yet
	var sess atomic.Pointer[session.Store]
	client := blogapi.NewClient(cfg.Server.URL, blogapi.TokenFunc(func() string {
		if s := sess.Load(); s != nil {
			return s.AccessToken()
		}
		return ""
	}), cfg.Server.Timeout, logger)

	a, err := Assemble(cfg, client, tokens, logger)
	if err != nil {
		tokens.Close()
		return nil, err
	}
	sess.Store(a.Session)
	return a, nil
}

// Assemble wires the app around an existing backend and token store
func Assemble(cfg *adapter.Config, backend Backend, tokens domain.TokenStore, logger *slog.Logger) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sess, err := session.NewStore(backend, tokens, logger)
	if err != nil {
		return nil, err
	}

	c := cache.New(cfg.Cache.MaxAge, logger)
	notices := notify.NewChannel(cfg.UI.NoticeDuration, logger)

	a := &App{
		Config:    cfg,
		Logger:    logger,
		Tokens:    tokens,
		Session:   sess,
		Cache:     c,
		Notices:   notices,
		Content:   content.NewCommands(backend, backend, c, logger),
		Queries:   content.NewQueries(c),
		Mutations: mutation.NewCoordinator(backend, backend, sess, c, notices, logger),
	}
	a.stop = sess.OnChange(a.onSessionChange)
	return a, nil
}

// onSessionChange drops cached data when the identity behind it changes,
// so one user's admin listings are never served to the next.
func (a *App) onSessionChange(s domain.Session) {
	prev := a.lastUser.Swap(s.UserID())
	if prev != s.UserID() {
		a.Cache.Clear()
		a.Logger.Debug("session identity changed, cache cleared", "from", prev, "to", s.UserID())
	}
}

// Start resolves the persisted session. It is called once at startup and
// never retried.
func (a *App) Start(ctx context.Context) domain.Session {
	snap, err := a.Session.CheckSession(ctx)
	if err != nil {
		a.Logger.Info("persisted session rejected", "error", err)
	}
	return snap
}

// Logout ends the session locally and reports the outcome
func (a *App) Logout() error {
	if err := a.Session.Logout(); err != nil {
		a.Notices.Error("Failed to clear saved session.")
		return err
	}
	a.Notices.Success("Logged out successfully!")
	return nil
}

// Close releases the cache and token storage
func (a *App) Close() error {
	if a.stop != nil {
		a.stop()
	}
	a.Cache.Close()
	return a.Tokens.Close()
}
