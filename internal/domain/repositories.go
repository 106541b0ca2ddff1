package domain

import (
	"context"
)

// AuthRepository provides account operations
type AuthRepository interface {
	// Register creates an account; it does not log in
	Register(ctx context.Context, reg Registration) error

	// Login exchanges credentials for a user and token pair
	Login(ctx context.Context, username, password string) (*AuthResult, error)

	// Me validates accessToken and returns the user it belongs to
	Me(ctx context.Context, accessToken string) (*User, error)
}

// PostRepository provides access to posts and their reactions and comments
type PostRepository interface {
	// ListPosts returns one page of posts (1-based)
	ListPosts(ctx context.Context, page int) (PostPage, error)

	// GetPost returns a single post with its approved comments
	GetPost(ctx context.Context, postID int64) (*Post, error)

	// CreatePost uploads a new post, including the optional image
	CreatePost(ctx context.Context, draft PostDraft) (*Post, error)

	// DeletePost removes a post (staff only)
	DeletePost(ctx context.Context, postID int64) error

	// LikePost and UnlikePost set the caller's reaction; the server keeps them exclusive
	LikePost(ctx context.Context, postID int64) error
	UnlikePost(ctx context.Context, postID int64) error

	// CreateComment adds a pending comment to a post
	CreateComment(ctx context.Context, postID int64, content string) (*Comment, error)
}

// AdminRepository provides staff-only listings and moderation
type AdminRepository interface {
	ListUsers(ctx context.Context) ([]User, error)
	ListComments(ctx context.Context) ([]Comment, error)
	ApproveComment(ctx context.Context, commentID int64) error
	BlockComment(ctx context.Context, commentID int64) error
}
