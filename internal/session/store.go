package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/mmcdole/quill/internal/domain"
)

// Store owns the process-wide session. All transitions happen under one
// lock and durable storage is written before in-memory state changes.
type Store struct {
	auth   domain.AuthRepository
	tokens domain.TokenStore
	logger *slog.Logger

	mu       sync.RWMutex
	state    domain.Session
	resolved bool
	epoch    uint64 // bumped on every transition; stale checks compare it

	listenersMu sync.Mutex
	listeners   map[int]func(domain.Session)
	nextID      int
}

// NewStore creates a session store seeded with any persisted tokens.
// The session stays unresolved until CheckSession or Login runs.
func NewStore(auth domain.AuthRepository, tokens domain.TokenStore, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}
	creds, err := tokens.LoadTokens()
	if err != nil {
		return nil, fmt.Errorf("failed to load session: %w", err)
	}
	return &Store{
		auth:   auth,
		tokens: tokens,
		logger: logger,
		state: domain.Session{
			AccessToken:  creds.Access,
			RefreshToken: creds.Refresh,
		},
		listeners: make(map[int]func(domain.Session)),
	}, nil
}

// Snapshot returns a copy of the current session
func (s *Store) Snapshot() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.snapshotLocked()
}

func (s *Store) snapshotLocked() domain.Session {
	snap := s.state
	if s.state.User != nil {
		u := *s.state.User
		snap.User = &u
	}
	return snap
}

// Resolved reports whether the session has been checked or established
func (s *Store) Resolved() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.resolved
}

// AccessToken returns the bearer token for API requests. Until the session
// is resolved and authenticated it returns "", so nothing can use a
// persisted token before CheckSession has validated it.
func (s *Store) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.resolved || !s.state.IsAuthenticated {
		return ""
	}
	return s.state.AccessToken
}

// OnChange registers fn to run after every session transition.
// The returned func removes the listener.
func (s *Store) OnChange(fn func(domain.Session)) func() {
	s.listenersMu.Lock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	s.listenersMu.Unlock()

	return func() {
		s.listenersMu.Lock()
		delete(s.listeners, id)
		s.listenersMu.Unlock()
	}
}

func (s *Store) notify(snap domain.Session) {
	s.listenersMu.Lock()
	fns := make([]func(domain.Session), 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.listenersMu.Unlock()

	for _, fn := range fns {
		fn(snap)
	}
}

// CheckSession validates the persisted token once at startup.
// Without a token it resolves unauthenticated without touching the network.
// Any failure of the who-am-I call resolves unauthenticated and clears both
// tokens, unless ctx ended first. The returned error is the cause, for logging.
func (s *Store) CheckSession(ctx context.Context) (domain.Session, error) {
	s.mu.Lock()
	token := s.state.AccessToken
	if token == "" {
		s.state = domain.Session{}
		s.resolved = true
		s.epoch++
		snap := s.snapshotLocked()
		s.mu.Unlock()

		s.logger.Debug("no persisted session")
		s.notify(snap)
		return snap, nil
	}
	epoch := s.epoch
	s.mu.Unlock()

	user, err := s.auth.Me(ctx, token)

	s.mu.Lock()
	if s.epoch != epoch {
		// Login or logout won the race; its state stands
		snap := s.snapshotLocked()
		s.mu.Unlock()
		return snap, nil
	}

	if err != nil {
		// Cancellation is not a verdict on the token: memory keeps the pair
		// that storage keeps, unauthenticated, so a later check can retry
		next := domain.Session{}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			next.AccessToken = s.state.AccessToken
			next.RefreshToken = s.state.RefreshToken
		} else if clearErr := s.tokens.ClearTokens(); clearErr != nil {
			s.logger.Error("failed to clear rejected session", "error", clearErr)
		}
		s.state = next
		s.resolved = true
		s.epoch++
		snap := s.snapshotLocked()
		s.mu.Unlock()

		s.logger.Info("session check failed", "error", err)
		s.notify(snap)
		return snap, err
	}

	s.state.User = user
	s.state.IsAuthenticated = true
	s.state.ExpiresAt = tokenExpiry(token)
	s.resolved = true
	s.epoch++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("session restored", "user", user.Username, "staff", user.IsStaff)
	s.notify(snap)
	return snap, nil
}

// Login authenticates and persists the token pair. On failure neither the
// session nor durable storage changes.
func (s *Store) Login(ctx context.Context, username, password string) (domain.Session, error) {
	if err := domain.ValidateLogin(username, password); err != nil {
		return s.Snapshot(), err
	}

	result, err := s.auth.Login(ctx, username, password)
	if err != nil {
		s.logger.Info("login failed", "user", username, "error", err)
		return s.Snapshot(), err
	}

	s.mu.Lock()
	if err := s.tokens.SaveTokens(result.Tokens); err != nil {
		s.mu.Unlock()
		s.logger.Error("failed to persist session", "error", err)
		return s.Snapshot(), err
	}
	user := result.User
	s.state = domain.Session{
		User:            &user,
		AccessToken:     result.Tokens.Access,
		RefreshToken:    result.Tokens.Refresh,
		IsAuthenticated: true,
		ExpiresAt:       tokenExpiry(result.Tokens.Access),
	}
	s.resolved = true
	s.epoch++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	s.logger.Info("logged in", "user", user.Username, "staff", user.IsStaff)
	s.notify(snap)
	return snap, nil
}

// Register creates an account after client-side field validation.
// It never authenticates; the caller moves on to the login form.
func (s *Store) Register(ctx context.Context, reg domain.Registration) error {
	if err := domain.ValidateRegistration(reg).OrNil(); err != nil {
		return err
	}
	if err := s.auth.Register(ctx, reg); err != nil {
		s.logger.Info("registration failed", "user", reg.Username, "error", err)
		return err
	}
	s.logger.Info("registered", "user", reg.Username)
	return nil
}

// Logout is local only. In-memory state is cleared even when storage
// fails, and the storage error is returned.
func (s *Store) Logout() error {
	s.mu.Lock()
	err := s.tokens.ClearTokens()
	s.state = domain.Session{}
	s.resolved = true
	s.epoch++
	snap := s.snapshotLocked()
	s.mu.Unlock()

	if err != nil {
		s.logger.Error("failed to clear session storage", "error", err)
	} else {
		s.logger.Info("logged out")
	}
	s.notify(snap)
	return err
}

// PasswordStrength grades a password for the registration form
func PasswordStrength(password string) domain.PasswordStrength {
	return domain.GradePassword(password)
}

// tokenExpiry reads the exp claim without verifying the signature; the
// server remains the authority on validity.
func tokenExpiry(token string) time.Time {
	claims := gojwt.MapClaims{}
	if _, _, err := gojwt.NewParser().ParseUnverified(token, claims); err != nil {
		return time.Time{}
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return time.Time{}
	}
	return exp.Time
}
