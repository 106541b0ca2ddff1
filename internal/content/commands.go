package content

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mmcdole/quill/internal/cache"
	"github.com/mmcdole/quill/internal/domain"
	"github.com/mmcdole/quill/internal/feed"
)

// Commands provides reads that go through the resource cache and hit the
// network when the cached entry is not fresh.
type Commands struct {
	posts  domain.PostRepository
	admin  domain.AdminRepository
	cache  *cache.Cache
	logger *slog.Logger
}

// NewCommands creates a new Commands instance.
func NewCommands(posts domain.PostRepository, admin domain.AdminRepository, c *cache.Cache, logger *slog.Logger) *Commands {
	if logger == nil {
		logger = slog.Default()
	}
	return &Commands{posts: posts, admin: admin, cache: c, logger: logger}
}

func (c *Commands) FetchPostsPage(ctx context.Context, page int) (domain.PostPage, error) {
	result, err := cache.Fetch(ctx, c.cache, PostsPageKey(page), func(ctx context.Context) (domain.PostPage, error) {
		return c.posts.ListPosts(ctx, page)
	})
	if err != nil {
		c.logError("failed to fetch posts", err, "page", page)
		return domain.PostPage{}, err
	}
	c.logger.Debug("fetched posts", "page", page, "count", len(result.Posts), "hasNext", result.HasNext)
	return result, nil
}

func (c *Commands) FetchPost(ctx context.Context, postID int64) (*domain.Post, error) {
	post, err := cache.Fetch(ctx, c.cache, PostKey(postID), func(ctx context.Context) (*domain.Post, error) {
		return c.posts.GetPost(ctx, postID)
	})
	if err != nil {
		c.logError("failed to fetch post", err, "postID", postID)
		return nil, err
	}
	return post, nil
}

func (c *Commands) FetchUsers(ctx context.Context) ([]domain.User, error) {
	users, err := cache.Fetch(ctx, c.cache, KeyUsers, c.admin.ListUsers)
	if err != nil {
		c.logError("failed to fetch users", err)
		return nil, err
	}
	c.logger.Debug("fetched users", "count", len(users))
	return users, nil
}

func (c *Commands) FetchAdminComments(ctx context.Context) ([]domain.Comment, error) {
	comments, err := cache.Fetch(ctx, c.cache, KeyAdminComments, c.admin.ListComments)
	if err != nil {
		c.logError("failed to fetch comments", err)
		return nil, err
	}
	c.logger.Debug("fetched admin comments", "count", len(comments))
	return comments, nil
}

// NewFeed returns a paginated feed whose pages are served from the cache
func (c *Commands) NewFeed() *feed.Controller {
	return feed.New(c.FetchPostsPage, c.logger)
}

// logError skips discarded results; a view that went away is not a failure
func (c *Commands) logError(msg string, err error, args ...any) {
	if errors.Is(err, cache.ErrDiscarded) || errors.Is(err, context.Canceled) {
		return
	}
	c.logger.Error(msg, append([]any{"error", err}, args...)...)
}
