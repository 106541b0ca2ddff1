package store

import (
	"testing"

	"github.com/mmcdole/quill/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSessionStore_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	s, err := NewSessionStore(dir, "http://blog.example.com/")
	require.NoError(t, err)
	require.NoError(t, s.SaveTokens(domain.Credentials{Access: "a1", Refresh: "r1"}))
	require.NoError(t, s.Close())

	reopened, err := NewSessionStore(dir, "http://BLOG.example.com")
	require.NoError(t, err)
	defer reopened.Close()

	creds, err := reopened.LoadTokens()
	require.NoError(t, err)
	assert.Equal(t, domain.Credentials{Access: "a1", Refresh: "r1"}, creds)
}

func TestSessionStore_ClearRemovesBothTokens(t *testing.T) {
	s, err := NewSessionStore(t.TempDir(), "http://blog.example.com")
	require.NoError(t, err)
	defer s.Close()

	require.NoError(t, s.SaveTokens(domain.Credentials{Access: "a1", Refresh: "r1"}))
	require.NoError(t, s.ClearTokens())

	creds, err := s.LoadTokens()
	require.NoError(t, err)
	assert.True(t, creds.IsZero())
	assert.Empty(t, creds.Refresh)
}

func TestSessionStore_SeparateServersDoNotShareTokens(t *testing.T) {
	dir := t.TempDir()

	a, err := NewSessionStore(dir, "http://a.example.com")
	require.NoError(t, err)
	defer a.Close()
	require.NoError(t, a.SaveTokens(domain.Credentials{Access: "a"}))

	b, err := NewSessionStore(dir, "http://b.example.com")
	require.NoError(t, err)
	defer b.Close()

	creds, err := b.LoadTokens()
	require.NoError(t, err)
	assert.True(t, creds.IsZero())
}

func TestSessionStore_MemoryOnly(t *testing.T) {
	s, err := NewSessionStore("", "")
	require.NoError(t, err)

	creds, err := s.LoadTokens()
	require.NoError(t, err)
	assert.True(t, creds.IsZero())

	require.NoError(t, s.SaveTokens(domain.Credentials{Access: "x", Refresh: "y"}))
	creds, err = s.LoadTokens()
	require.NoError(t, err)
	assert.Equal(t, "x", creds.Access)

	require.NoError(t, s.ClearTokens())
	creds, _ = s.LoadTokens()
	assert.True(t, creds.IsZero())
	assert.NoError(t, s.Close())
}
