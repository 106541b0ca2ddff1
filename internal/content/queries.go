package content

import (
	"github.com/mmcdole/quill/internal/cache"
	"github.com/mmcdole/quill/internal/domain"
)

// Queries provides synchronous, cache-only reads.
type Queries struct {
	cache *cache.Cache
}

// NewQueries creates a new Queries instance.
func NewQueries(c *cache.Cache) *Queries {
	return &Queries{cache: c}
}

func (q *Queries) GetCachedPostsPage(page int) (domain.PostPage, bool) {
	return cache.Cached[domain.PostPage](q.cache, PostsPageKey(page))
}

func (q *Queries) GetCachedPost(postID int64) (*domain.Post, bool) {
	return cache.Cached[*domain.Post](q.cache, PostKey(postID))
}

func (q *Queries) GetCachedUsers() ([]domain.User, bool) {
	return cache.Cached[[]domain.User](q.cache, KeyUsers)
}

func (q *Queries) GetCachedAdminComments() ([]domain.Comment, bool) {
	return cache.Cached[[]domain.Comment](q.cache, KeyAdminComments)
}

// LookupPost finds the freshest known copy of a post: its own entry first,
// then any fresh listing page that contains it.
func (q *Queries) LookupPost(postID int64) (domain.Post, bool) {
	if p, ok := q.GetCachedPost(postID); ok && p != nil {
		return *p, true
	}
	for page := 1; ; page++ {
		pp, ok := q.GetCachedPostsPage(page)
		if !ok {
			return domain.Post{}, false
		}
		for _, p := range pp.Posts {
			if p.ID == postID {
				return p, true
			}
		}
	}
}

// LookupComment finds a comment in the fresh moderation listing
func (q *Queries) LookupComment(commentID int64) (domain.Comment, bool) {
	comments, ok := q.GetCachedAdminComments()
	if !ok {
		return domain.Comment{}, false
	}
	for _, c := range comments {
		if c.ID == commentID {
			return c, true
		}
	}
	return domain.Comment{}, false
}
