package content

import (
	"fmt"
	"strconv"
)

// Cache keys for server resources
const (
	// PrefixPosts is the prefix for post listing pages (posts:page={n})
	PrefixPosts = "posts:"

	// PrefixPost is the prefix for single post caches (post:{id})
	PrefixPost = "post:"

	// KeyUsers is the cache key for the admin user listing
	KeyUsers = "users"

	// KeyAdminComments is the cache key for the moderation listing
	KeyAdminComments = "adminComments"
)

// PostsPageKey returns the key for one page of the post listing
func PostsPageKey(page int) string {
	return fmt.Sprintf("%spage=%d", PrefixPosts, page)
}

// PostKey returns the key for a single post
func PostKey(postID int64) string {
	return PrefixPost + strconv.FormatInt(postID, 10)
}
