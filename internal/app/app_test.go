package app

import (
	"context"
	"testing"
	"time"

	"github.com/mmcdole/quill/internal/adapter"
	"github.com/mmcdole/quill/internal/blogtest"
	"github.com/mmcdole/quill/internal/content"
	"github.com/mmcdole/quill/internal/domain"
	"github.com/mmcdole/quill/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) (*App, *blogtest.Backend) {
	t.Helper()
	cfg := adapter.DefaultConfig()
	cfg.Cache.Dir = ""
	cfg.UI.NoticeDuration = time.Hour

	tokens, err := store.NewSessionStore("", "")
	require.NoError(t, err)

	b := blogtest.NewBackend(12)
	a, err := Assemble(cfg, b, tokens, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, b
}

func TestApp_StartWithoutTokenIsAnonymous(t *testing.T) {
	a, b := newTestApp(t)

	snap := a.Start(context.Background())
	assert.False(t, snap.IsAuthenticated)
	assert.Equal(t, 0, b.Calls("Me"))
}

func TestApp_IdentityChangeClearsCache(t *testing.T) {
	a, _ := newTestApp(t)
	ctx := context.Background()
	a.Start(ctx)

	_, err := a.Session.Login(ctx, "admin", "Secret123")
	require.NoError(t, err)

	_, err = a.Content.FetchAdminComments(ctx)
	require.NoError(t, err)
	_, ok := a.Cache.Peek(content.KeyAdminComments)
	require.True(t, ok)

	require.NoError(t, a.Logout())
	_, ok = a.Cache.Peek(content.KeyAdminComments)
	assert.False(t, ok, "admin data must not outlive the session")

	n, ok := a.Notices.Current()
	require.True(t, ok)
	assert.Equal(t, "Logged out successfully!", n.Message)
}

func TestApp_RestoresPersistedSession(t *testing.T) {
	cfg := adapter.DefaultConfig()
	tokens, err := store.NewSessionStore("", "")
	require.NoError(t, err)
	require.NoError(t, tokens.SaveTokens(domain.Credentials{Access: "access-admin", Refresh: "r"}))

	b := blogtest.NewBackend(1)
	a, err := Assemble(cfg, b, tokens, nil)
	require.NoError(t, err)
	defer a.Close()

	snap := a.Start(context.Background())
	assert.True(t, snap.IsAuthenticated)
	assert.True(t, snap.IsStaff())
	assert.Equal(t, 1, b.Calls("Me"))
}

func TestApp_MutationsShareSessionAndCache(t *testing.T) {
	a, b := newTestApp(t)
	ctx := context.Background()
	a.Start(ctx)

	err := a.Mutations.Like(ctx, 1)
	assert.Error(t, err, "anonymous likes are rejected")
	assert.Equal(t, 0, b.Calls("LikePost"))

	_, err = a.Session.Login(ctx, "admin", "Secret123")
	require.NoError(t, err)
	require.NoError(t, a.Mutations.Like(ctx, 1))

	post, err := a.Content.FetchPost(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, post.LikesCount)
}

func TestNew_WiresHTTPClient(t *testing.T) {
	cfg := adapter.DefaultConfig()
	cfg.Server.URL = "http://127.0.0.1:1"
	cfg.Cache.Dir = t.TempDir()

	a, err := New(cfg, nil)
	require.NoError(t, err)
	defer a.Close()

	snap := a.Start(context.Background())
	assert.False(t, snap.IsAuthenticated)
}
