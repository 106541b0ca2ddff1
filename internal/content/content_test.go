package content

import (
	"context"
	"testing"

	"github.com/mmcdole/quill/internal/blogtest"
	"github.com/mmcdole/quill/internal/cache"
	"github.com/mmcdole/quill/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestContent(t *testing.T, posts int) (*Commands, *Queries, *cache.Cache, *blogtest.Backend) {
	t.Helper()
	b := blogtest.NewBackend(posts)
	c := cache.New(0, nil)
	t.Cleanup(c.Close)
	return NewCommands(b, b, c, nil), NewQueries(c), c, b
}

func TestKeys(t *testing.T) {
	assert.Equal(t, "posts:page=3", PostsPageKey(3))
	assert.Equal(t, "post:42", PostKey(42))
}

func TestFetchPostsPage_CachesUntilInvalidated(t *testing.T) {
	cmds, queries, c, b := newTestContent(t, 25)
	ctx := context.Background()

	page, err := cmds.FetchPostsPage(ctx, 1)
	require.NoError(t, err)
	assert.Len(t, page.Posts, 10)
	assert.True(t, page.HasNext)

	_, err = cmds.FetchPostsPage(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Calls("ListPosts"))

	cached, ok := queries.GetCachedPostsPage(1)
	require.True(t, ok)
	assert.Equal(t, page.Posts[0].ID, cached.Posts[0].ID)

	c.InvalidatePrefix(PrefixPosts)
	_, ok = queries.GetCachedPostsPage(1)
	assert.False(t, ok)

	_, err = cmds.FetchPostsPage(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Calls("ListPosts"))
}

func TestFetchPost_Errors(t *testing.T) {
	cmds, queries, _, _ := newTestContent(t, 1)

	_, err := cmds.FetchPost(context.Background(), 99)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, ok := queries.GetCachedPost(99)
	assert.False(t, ok)
}

func TestAdminFetches(t *testing.T) {
	cmds, queries, _, b := newTestContent(t, 2)
	ctx := context.Background()
	_, err := b.CreateComment(ctx, 1, "first comment")
	require.NoError(t, err)

	users, err := cmds.FetchUsers(ctx)
	require.NoError(t, err)
	assert.Len(t, users, 1)

	comments, err := cmds.FetchAdminComments(ctx)
	require.NoError(t, err)
	require.Len(t, comments, 1)

	found, ok := queries.LookupComment(comments[0].ID)
	require.True(t, ok)
	assert.Equal(t, "first comment", found.Content)

	cachedUsers, ok := queries.GetCachedUsers()
	assert.True(t, ok)
	assert.Len(t, cachedUsers, 1)
}

func TestLookupPost(t *testing.T) {
	cmds, queries, _, _ := newTestContent(t, 15)
	ctx := context.Background()

	_, ok := queries.LookupPost(3)
	assert.False(t, ok, "nothing cached yet")

	_, err := cmds.FetchPostsPage(ctx, 1)
	require.NoError(t, err)
	_, err = cmds.FetchPostsPage(ctx, 2)
	require.NoError(t, err)

	p, ok := queries.LookupPost(3)
	require.True(t, ok)
	assert.Equal(t, "Post 3", p.Title)

	_, err = cmds.FetchPost(ctx, 3)
	require.NoError(t, err)
	p, ok = queries.LookupPost(3)
	require.True(t, ok)
	assert.Equal(t, int64(3), p.ID)
}

func TestNewFeed_UsesCachedPages(t *testing.T) {
	cmds, _, _, b := newTestContent(t, 12)

	f := cmds.NewFeed()
	req, ok := f.Start()
	require.True(t, ok)
	require.NoError(t, f.Run(context.Background(), req))

	g := cmds.NewFeed()
	req, ok = g.Start()
	require.True(t, ok)
	require.NoError(t, g.Run(context.Background(), req))

	assert.Len(t, g.Items(), 10)
	assert.Equal(t, 1, b.Calls("ListPosts"))
}
