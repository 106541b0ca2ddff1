package domain

import (
	"slices"
	"time"
)

// User is the server's summary of an account. Snapshots are immutable;
// IsStaff gates the admin views.
type User struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsStaff  bool   `json:"is_staff"`
}

// DisplayName returns the username, or a placeholder for anonymous authors
func (u User) DisplayName() string {
	if u.Username == "" {
		return "Unknown"
	}
	return u.Username
}

// Reaction is a user's mutually exclusive reaction to a post
type Reaction int

const (
	ReactionNone Reaction = iota
	ReactionLiked
	ReactionUnliked
)

// Post represents a blog post as returned by the server.
// LikesCount and UnlikesCount are authoritative server values; the client
// never adjusts them locally.
type Post struct {
	ID           int64     `json:"id"`
	Title        string    `json:"title"`
	Content      string    `json:"content"`
	Image        string    `json:"image,omitempty"`
	Author       User      `json:"author"`
	CreatedAt    time.Time `json:"created_at"`
	Likes        []int64   `json:"likes"`
	Unlikes      []int64   `json:"unlikes"`
	LikesCount   int       `json:"likes_count"`
	UnlikesCount int       `json:"unlikes_count"`
	ReadCount    int       `json:"read_count"`
	Comments     []Comment `json:"comments"`
}

// LikedBy reports whether userID appears in the post's likes
func (p Post) LikedBy(userID int64) bool {
	return slices.Contains(p.Likes, userID)
}

// UnlikedBy reports whether userID appears in the post's unlikes
func (p Post) UnlikedBy(userID int64) bool {
	return slices.Contains(p.Unlikes, userID)
}

// ReactionOf returns the reaction userID currently holds on the post
func (p Post) ReactionOf(userID int64) Reaction {
	switch {
	case p.LikedBy(userID):
		return ReactionLiked
	case p.UnlikedBy(userID):
		return ReactionUnliked
	default:
		return ReactionNone
	}
}

// ApprovedComments returns the comments visible on the public post page
func (p Post) ApprovedComments() []Comment {
	var out []Comment
	for _, c := range p.Comments {
		if c.IsApproved {
			out = append(out, c)
		}
	}
	return out
}

// Excerpt returns the first n runes of the content followed by an ellipsis
func (p Post) Excerpt(n int) string {
	r := []rune(p.Content)
	if len(r) <= n {
		return p.Content
	}
	return string(r[:n]) + "..."
}

// CommentStatus is the moderation state of a comment
type CommentStatus int

const (
	CommentPending CommentStatus = iota
	CommentApproved
)

// String returns the label shown in the moderation table
func (s CommentStatus) String() string {
	if s == CommentApproved {
		return "Approved"
	}
	return "Pending"
}

// Comment is created pending by any authenticated user and becomes visible
// once a staff user approves it. Blocking deletes it outright.
type Comment struct {
	ID         int64     `json:"id"`
	Content    string    `json:"content"`
	Author     User      `json:"author"`
	PostID     int64     `json:"post_id"`
	PostTitle  string    `json:"post_title,omitempty"`
	IsApproved bool      `json:"is_approved"`
	CreatedAt  time.Time `json:"created_at"`
}

// Status returns the moderation state of the comment
func (c Comment) Status() CommentStatus {
	if c.IsApproved {
		return CommentApproved
	}
	return CommentPending
}

// PostPage is one page of the server-paginated post listing
type PostPage struct {
	Posts   []Post
	Page    int  // 1-based page number
	HasNext bool // server indicated more results
}

// Credentials are the token pair issued at login
type Credentials struct {
	Access  string
	Refresh string
}

// IsZero reports whether no access token is held
func (c Credentials) IsZero() bool {
	return c.Access == ""
}

// AuthResult contains the result of a successful login
type AuthResult struct {
	User   User
	Tokens Credentials
}

// Registration is the account creation form
type Registration struct {
	Username        string `json:"username"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
}

// PostDraft is the create-post form. ImagePath is optional and refers to a
// local file uploaded with the post.
type PostDraft struct {
	Title     string
	Content   string
	ImagePath string
}

// Session is the client's view of who is logged in.
// Invariant: IsAuthenticated == (User != nil).
type Session struct {
	User            *User
	AccessToken     string
	RefreshToken    string
	IsAuthenticated bool
	ExpiresAt       time.Time // from the access token exp claim, zero if unknown
}

// IsStaff reports whether the session belongs to a staff user
func (s Session) IsStaff() bool {
	return s.IsAuthenticated && s.User != nil && s.User.IsStaff
}

// UserID returns the logged-in user's id, or 0 when anonymous
func (s Session) UserID() int64 {
	if s.User == nil {
		return 0
	}
	return s.User.ID
}
