package session

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	gojwt "github.com/golang-jwt/jwt/v5"
	"github.com/mmcdole/quill/internal/domain"
	"github.com/mmcdole/quill/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeAuth struct {
	meCalls    atomic.Int32
	loginCalls atomic.Int32
	regCalls   atomic.Int32

	me       func(token string) (*domain.User, error)
	login    func(username, password string) (*domain.AuthResult, error)
	register func(reg domain.Registration) error
}

func (f *fakeAuth) Register(ctx context.Context, reg domain.Registration) error {
	f.regCalls.Add(1)
	if f.register != nil {
		return f.register(reg)
	}
	return nil
}

func (f *fakeAuth) Login(ctx context.Context, username, password string) (*domain.AuthResult, error) {
	f.loginCalls.Add(1)
	return f.login(username, password)
}

func (f *fakeAuth) Me(ctx context.Context, token string) (*domain.User, error) {
	f.meCalls.Add(1)
	return f.me(token)
}

// failingTokens wraps the memory store and fails writes on demand
type failingTokens struct {
	domain.TokenStore
	failSave  bool
	failClear bool
}

func (f *failingTokens) SaveTokens(c domain.Credentials) error {
	if f.failSave {
		return errors.New("disk full")
	}
	return f.TokenStore.SaveTokens(c)
}

func (f *failingTokens) ClearTokens() error {
	if f.failClear {
		return errors.New("disk full")
	}
	return f.TokenStore.ClearTokens()
}

func memoryTokens(t *testing.T, creds domain.Credentials) domain.TokenStore {
	t.Helper()
	s, err := store.NewSessionStore("", "")
	require.NoError(t, err)
	if !creds.IsZero() {
		require.NoError(t, s.SaveTokens(creds))
	}
	return s
}

func TestCheckSession_NoTokenSkipsNetwork(t *testing.T) {
	auth := &fakeAuth{}
	s, err := NewStore(auth, memoryTokens(t, domain.Credentials{}), nil)
	require.NoError(t, err)

	snap, err := s.CheckSession(context.Background())
	require.NoError(t, err)

	assert.False(t, snap.IsAuthenticated)
	assert.Nil(t, snap.User)
	assert.True(t, s.Resolved())
	assert.Equal(t, int32(0), auth.meCalls.Load())
}

func TestCheckSession_ValidTokenRestoresUser(t *testing.T) {
	auth := &fakeAuth{me: func(token string) (*domain.User, error) {
		assert.Equal(t, "A", token)
		return &domain.User{ID: 4, Username: "alice", IsStaff: true}, nil
	}}
	s, err := NewStore(auth, memoryTokens(t, domain.Credentials{Access: "A", Refresh: "R"}), nil)
	require.NoError(t, err)

	assert.Empty(t, s.AccessToken(), "token must not be used before the check")

	snap, err := s.CheckSession(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.IsAuthenticated)
	assert.True(t, snap.IsStaff())
	assert.Equal(t, "A", s.AccessToken())
	assert.Equal(t, int32(1), auth.meCalls.Load())
}

func TestCheckSession_FailureClearsStorage(t *testing.T) {
	for _, cause := range []error{domain.ErrAuthFailed, domain.ErrServerOffline, domain.ErrMalformedResponse} {
		t.Run(cause.Error(), func(t *testing.T) {
			auth := &fakeAuth{me: func(string) (*domain.User, error) { return nil, cause }}
			tokens := memoryTokens(t, domain.Credentials{Access: "A", Refresh: "R"})
			s, err := NewStore(auth, tokens, nil)
			require.NoError(t, err)

			snap, err := s.CheckSession(context.Background())
			assert.ErrorIs(t, err, cause)
			assert.False(t, snap.IsAuthenticated)
			assert.Empty(t, s.AccessToken())
			assert.Equal(t, int32(1), auth.meCalls.Load(), "no retry")

			creds, err := tokens.LoadTokens()
			require.NoError(t, err)
			assert.True(t, creds.IsZero())
			assert.Empty(t, creds.Refresh)
		})
	}
}

func TestCheckSession_CancellationKeepsTokens(t *testing.T) {
	canceled := true
	auth := &fakeAuth{me: func(string) (*domain.User, error) {
		if canceled {
			return nil, context.Canceled
		}
		return &domain.User{ID: 1, Username: "bob"}, nil
	}}
	tokens := memoryTokens(t, domain.Credentials{Access: "A", Refresh: "R"})
	s, err := NewStore(auth, tokens, nil)
	require.NoError(t, err)

	snap, _ := s.CheckSession(context.Background())
	assert.False(t, snap.IsAuthenticated)
	assert.Nil(t, snap.User)

	creds, _ := tokens.LoadTokens()
	assert.Equal(t, "A", creds.Access)
	assert.Equal(t, "A", snap.AccessToken, "memory matches storage")
	assert.Equal(t, "R", snap.RefreshToken)
	assert.Empty(t, s.AccessToken(), "an unverified token is never sent")

	canceled = false
	snap, err = s.CheckSession(context.Background())
	require.NoError(t, err)
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, "A", s.AccessToken())
}

func TestLogin_Success(t *testing.T) {
	exp := time.Now().Add(time.Hour).Truncate(time.Second)
	access, err := gojwt.NewWithClaims(gojwt.SigningMethodHS256, gojwt.MapClaims{"exp": exp.Unix()}).SignedString([]byte("k"))
	require.NoError(t, err)

	auth := &fakeAuth{login: func(u, p string) (*domain.AuthResult, error) {
		return &domain.AuthResult{
			User:   domain.User{ID: 1, Username: u},
			Tokens: domain.Credentials{Access: access, Refresh: "R"},
		}, nil
	}}
	tokens := memoryTokens(t, domain.Credentials{})
	s, err := NewStore(auth, tokens, nil)
	require.NoError(t, err)

	var seen []domain.Session
	s.OnChange(func(snap domain.Session) { seen = append(seen, snap) })

	snap, err := s.Login(context.Background(), "alice", "Secret123")
	require.NoError(t, err)
	assert.True(t, snap.IsAuthenticated)
	assert.Equal(t, "alice", snap.User.Username)
	assert.True(t, exp.Equal(snap.ExpiresAt))
	assert.Equal(t, access, s.AccessToken())

	creds, _ := tokens.LoadTokens()
	assert.Equal(t, domain.Credentials{Access: access, Refresh: "R"}, creds)

	require.Len(t, seen, 1)
	assert.True(t, seen[0].IsAuthenticated)
}

func TestLogin_EmptyFieldsSkipNetwork(t *testing.T) {
	auth := &fakeAuth{}
	s, err := NewStore(auth, memoryTokens(t, domain.Credentials{}), nil)
	require.NoError(t, err)

	_, err = s.Login(context.Background(), "", "")
	assert.ErrorIs(t, err, domain.ErrValidation)
	assert.Equal(t, int32(0), auth.loginCalls.Load())
}

func TestLogin_RejectedLeavesStateUntouched(t *testing.T) {
	auth := &fakeAuth{login: func(string, string) (*domain.AuthResult, error) {
		return nil, domain.ErrInvalidCredentials
	}}
	tokens := memoryTokens(t, domain.Credentials{})
	s, err := NewStore(auth, tokens, nil)
	require.NoError(t, err)
	_, _ = s.CheckSession(context.Background())

	snap, err := s.Login(context.Background(), "alice", "bad")
	assert.ErrorIs(t, err, domain.ErrAuthFailed)
	assert.True(t, domain.IsAuthError(err))
	assert.False(t, snap.IsAuthenticated)

	creds, _ := tokens.LoadTokens()
	assert.True(t, creds.IsZero())
}

func TestLogin_StorageFailureDoesNotAuthenticate(t *testing.T) {
	auth := &fakeAuth{login: func(u, p string) (*domain.AuthResult, error) {
		return &domain.AuthResult{User: domain.User{ID: 1}, Tokens: domain.Credentials{Access: "A"}}, nil
	}}
	tokens := &failingTokens{TokenStore: memoryTokens(t, domain.Credentials{}), failSave: true}
	s, err := NewStore(auth, tokens, nil)
	require.NoError(t, err)

	snap, err := s.Login(context.Background(), "alice", "Secret123")
	assert.Error(t, err)
	assert.False(t, snap.IsAuthenticated)
	assert.Empty(t, s.AccessToken())
}

func TestLogout(t *testing.T) {
	auth := &fakeAuth{login: func(u, p string) (*domain.AuthResult, error) {
		return &domain.AuthResult{User: domain.User{ID: 1}, Tokens: domain.Credentials{Access: "A", Refresh: "R"}}, nil
	}}
	tokens := memoryTokens(t, domain.Credentials{})
	s, err := NewStore(auth, tokens, nil)
	require.NoError(t, err)

	_, err = s.Login(context.Background(), "alice", "Secret123")
	require.NoError(t, err)
	require.NoError(t, s.Logout())

	snap := s.Snapshot()
	assert.False(t, snap.IsAuthenticated)
	assert.Nil(t, snap.User)
	creds, _ := tokens.LoadTokens()
	assert.True(t, creds.IsZero())
}

func TestLogout_StorageFailureStillClearsState(t *testing.T) {
	tokens := &failingTokens{TokenStore: memoryTokens(t, domain.Credentials{}), failClear: true}
	auth := &fakeAuth{login: func(u, p string) (*domain.AuthResult, error) {
		return &domain.AuthResult{User: domain.User{ID: 1}, Tokens: domain.Credentials{Access: "A"}}, nil
	}}
	s, err := NewStore(auth, tokens, nil)
	require.NoError(t, err)
	_, err = s.Login(context.Background(), "alice", "Secret123")
	require.NoError(t, err)

	assert.Error(t, s.Logout())
	assert.False(t, s.Snapshot().IsAuthenticated)
	assert.Empty(t, s.AccessToken())
}

func TestRegister(t *testing.T) {
	auth := &fakeAuth{}
	s, err := NewStore(auth, memoryTokens(t, domain.Credentials{}), nil)
	require.NoError(t, err)

	err = s.Register(context.Background(), domain.Registration{Username: "a", Email: "nope", Password: "short", ConfirmPassword: "x"})
	require.ErrorIs(t, err, domain.ErrValidation)
	var fields domain.FieldErrors
	require.ErrorAs(t, err, &fields)
	assert.Contains(t, fields, "username")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "password")
	assert.Contains(t, fields, "confirm_password")
	assert.Equal(t, int32(0), auth.regCalls.Load())

	err = s.Register(context.Background(), domain.Registration{
		Username: "alice_1", Email: "alice@example.com", Password: "Secret123", ConfirmPassword: "Secret123",
	})
	require.NoError(t, err)
	assert.Equal(t, int32(1), auth.regCalls.Load())
	assert.False(t, s.Snapshot().IsAuthenticated, "registration never logs in")
}

func TestOnChange_Unsubscribe(t *testing.T) {
	s, err := NewStore(&fakeAuth{}, memoryTokens(t, domain.Credentials{}), nil)
	require.NoError(t, err)

	calls := 0
	stop := s.OnChange(func(domain.Session) { calls++ })
	_, _ = s.CheckSession(context.Background())
	stop()
	_ = s.Logout()

	assert.Equal(t, 1, calls)
}

func TestTokenExpiry_NonJWT(t *testing.T) {
	assert.True(t, tokenExpiry("opaque-token").IsZero())
}

func TestPasswordStrength(t *testing.T) {
	assert.Equal(t, domain.StrengthWeak, PasswordStrength("abc"))
	assert.Equal(t, domain.StrengthFair, PasswordStrength("abcdefgh1"))
	assert.Equal(t, domain.StrengthGood, PasswordStrength("Abcdefgh1"))
	assert.Equal(t, domain.StrengthStrong, PasswordStrength("Abcdefgh1!"))
}
