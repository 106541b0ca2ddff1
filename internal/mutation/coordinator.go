package mutation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/mmcdole/quill/internal/cache"
	"github.com/mmcdole/quill/internal/content"
	"github.com/mmcdole/quill/internal/domain"
)

// Precondition failures. None of them reach the network.
var (
	ErrNotAuthenticated = errors.New("mutation: not authenticated")
	ErrNotStaff         = errors.New("mutation: staff only")
	ErrAlreadyLiked     = errors.New("mutation: post already liked")
	ErrAlreadyUnliked   = errors.New("mutation: post already unliked")
	ErrAlreadyApproved  = errors.New("mutation: comment already approved")
	ErrInFlight         = errors.New("mutation: request already in flight")
)

// Op names a mutation for single-flight tracking
type Op string

const (
	OpLike       Op = "like"
	OpUnlike     Op = "unlike"
	OpComment    Op = "comment"
	OpCreatePost Op = "createPost"
	OpDeletePost Op = "deletePost"
	OpApprove    Op = "approve"
	OpBlock      Op = "block"
)

// createTargetID keys CreatePost, which has no target yet
const createTargetID = 0

const (
	msgInFlight    = "Please wait, your previous request is still in progress."
	msgInterrupted = "Request interrupted. Refresh to see whether it was applied."
)

// SessionReader exposes the current session
type SessionReader interface {
	Snapshot() domain.Session
}

// Notifier receives user-facing outcome messages
type Notifier interface {
	Success(message string) uint64
	Warning(message string) uint64
	Error(message string) uint64
}

type flightKey struct {
	op Op
	id int64
}

// Coordinator runs write operations: check preconditions from current
// state, issue one request, then invalidate exactly the cache keys the
// write affects. Counts are never adjusted locally.
type Coordinator struct {
	posts   domain.PostRepository
	admin   domain.AdminRepository
	session SessionReader
	cache   *cache.Cache
	queries *content.Queries
	notices Notifier
	logger  *slog.Logger

	mu       sync.Mutex
	inflight map[flightKey]struct{}
}

// NewCoordinator creates a new mutation coordinator.
func NewCoordinator(
	posts domain.PostRepository,
	admin domain.AdminRepository,
	session SessionReader,
	c *cache.Cache,
	notices Notifier,
	logger *slog.Logger,
) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{
		posts:    posts,
		admin:    admin,
		session:  session,
		cache:    c,
		queries:  content.NewQueries(c),
		notices:  notices,
		logger:   logger,
		inflight: make(map[flightKey]struct{}),
	}
}

// InFlight reports whether op is currently running for target id.
// Views use it to disable the matching control.
func (c *Coordinator) InFlight(op Op, id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.inflight[flightKey{op, id}]
	return ok
}

func (c *Coordinator) begin(op Op, id int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	k := flightKey{op, id}
	if _, ok := c.inflight[k]; ok {
		return false
	}
	c.inflight[k] = struct{}{}
	return true
}

func (c *Coordinator) end(op Op, id int64) {
	c.mu.Lock()
	delete(c.inflight, flightKey{op, id})
	c.mu.Unlock()
}

// reject reports a failed precondition as a warning
func (c *Coordinator) reject(op Op, id int64, err error, message string) error {
	c.logger.Debug("mutation rejected", "op", op, "id", id, "reason", err)
	c.notices.Warning(message)
	return err
}

// outcome describes what to tell the user and what to invalidate
type outcome struct {
	success    string
	failure    string
	invalidate func()
}

// run performs the single request for op and applies its outcome
func (c *Coordinator) run(ctx context.Context, op Op, id int64, out outcome, call func(ctx context.Context) error) error {
	if !c.begin(op, id) {
		return c.reject(op, id, ErrInFlight, msgInFlight)
	}
	defer c.end(op, id)

	err := call(ctx)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			// The server may or may not have applied it
			out.invalidate()
			c.logger.Warn("mutation interrupted", "op", op, "id", id, "error", err)
			c.notices.Warning(msgInterrupted)
			return err
		}
		if errors.Is(err, domain.ErrValidation) {
			return err
		}
		c.logger.Error("mutation failed", "op", op, "id", id, "error", err)
		c.notices.Error(domain.UserMessage(err, out.failure))
		return err
	}

	out.invalidate()
	c.logger.Info("mutation applied", "op", op, "id", id)
	c.notices.Success(out.success)
	return nil
}

// requireUser returns the session or the not-authenticated error
func (c *Coordinator) requireUser() (domain.Session, bool) {
	s := c.session.Snapshot()
	return s, s.IsAuthenticated && s.User != nil
}

// Like records a like. The reaction state is read from the freshest cached
// copy of the post, not from whatever the caller rendered.
func (c *Coordinator) Like(ctx context.Context, postID int64) error {
	s, ok := c.requireUser()
	if !ok {
		return c.reject(OpLike, postID, ErrNotAuthenticated, "Please log in to like posts.")
	}
	if post, found := c.queries.LookupPost(postID); found && post.LikedBy(s.UserID()) {
		return c.reject(OpLike, postID, ErrAlreadyLiked, "You have already liked this post.")
	}
	return c.run(ctx, OpLike, postID, outcome{
		success:    "Post liked!",
		failure:    "Failed to like post.",
		invalidate: func() { c.invalidatePost(postID) },
	}, func(ctx context.Context) error {
		return c.posts.LikePost(ctx, postID)
	})
}

// Unlike records an unlike
func (c *Coordinator) Unlike(ctx context.Context, postID int64) error {
	s, ok := c.requireUser()
	if !ok {
		return c.reject(OpUnlike, postID, ErrNotAuthenticated, "Please log in to unlike posts.")
	}
	if post, found := c.queries.LookupPost(postID); found && post.UnlikedBy(s.UserID()) {
		return c.reject(OpUnlike, postID, ErrAlreadyUnliked, "You have already unliked this post.")
	}
	return c.run(ctx, OpUnlike, postID, outcome{
		success:    "Post unliked!",
		failure:    "Failed to unlike post.",
		invalidate: func() { c.invalidatePost(postID) },
	}, func(ctx context.Context) error {
		return c.posts.UnlikePost(ctx, postID)
	})
}

func (c *Coordinator) invalidatePost(postID int64) {
	c.cache.Invalidate(content.PostKey(postID))
	c.cache.InvalidatePrefix(content.PrefixPosts)
}

// CreateComment submits a comment. It is created pending, so the post's
// visible comments do not change until a staff user approves it.
// Validation failures are returned for inline display without a notice.
func (c *Coordinator) CreateComment(ctx context.Context, postID int64, text string) (*domain.Comment, error) {
	if _, ok := c.requireUser(); !ok {
		return nil, c.reject(OpComment, postID, ErrNotAuthenticated, "Please log in to comment.")
	}
	if err := domain.ValidateComment(text); err != nil {
		return nil, err
	}

	var created *domain.Comment
	err := c.run(ctx, OpComment, postID, outcome{
		success: "Comment submitted for review! It will appear once approved.",
		failure: "Failed to submit comment.",
		invalidate: func() {
			c.cache.Invalidate(content.PostKey(postID))
			c.cache.Invalidate(content.KeyAdminComments)
		},
	}, func(ctx context.Context) error {
		var err error
		created, err = c.posts.CreateComment(ctx, postID, text)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// CreatePost publishes a post from the dashboard form
func (c *Coordinator) CreatePost(ctx context.Context, draft domain.PostDraft) (*domain.Post, error) {
	if _, ok := c.requireUser(); !ok {
		return nil, c.reject(OpCreatePost, createTargetID, ErrNotAuthenticated, "Please log in to create posts.")
	}
	if err := domain.ValidatePostDraft(draft); err != nil {
		return nil, err
	}

	var created *domain.Post
	err := c.run(ctx, OpCreatePost, createTargetID, outcome{
		success:    "Post created successfully!",
		failure:    "Failed to create post.",
		invalidate: func() { c.cache.InvalidatePrefix(content.PrefixPosts) },
	}, func(ctx context.Context) error {
		var err error
		created, err = c.posts.CreatePost(ctx, draft)
		return err
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

// DeletePost removes a post (staff only)
func (c *Coordinator) DeletePost(ctx context.Context, postID int64) error {
	if err := c.requireStaff(OpDeletePost, postID); err != nil {
		return err
	}
	return c.run(ctx, OpDeletePost, postID, outcome{
		success: "Post deleted successfully!",
		failure: "Failed to delete post.",
		invalidate: func() {
			c.cache.Invalidate(content.PostKey(postID))
			c.cache.InvalidatePrefix(content.PrefixPosts)
			c.cache.Invalidate(content.KeyAdminComments)
		},
	}, func(ctx context.Context) error {
		return c.posts.DeletePost(ctx, postID)
	})
}

// ApproveComment makes a pending comment visible (staff only)
func (c *Coordinator) ApproveComment(ctx context.Context, commentID int64) error {
	if err := c.requireStaff(OpApprove, commentID); err != nil {
		return err
	}
	comment, found := c.queries.LookupComment(commentID)
	if found && comment.IsApproved {
		return c.reject(OpApprove, commentID, ErrAlreadyApproved, "Comment is already approved.")
	}
	return c.run(ctx, OpApprove, commentID, outcome{
		success:    "Comment approved successfully!",
		failure:    "Failed to approve comment.",
		invalidate: func() { c.invalidateModeration(comment, found) },
	}, func(ctx context.Context) error {
		return c.admin.ApproveComment(ctx, commentID)
	})
}

// BlockComment deletes a comment (staff only)
func (c *Coordinator) BlockComment(ctx context.Context, commentID int64) error {
	if err := c.requireStaff(OpBlock, commentID); err != nil {
		return err
	}
	comment, found := c.queries.LookupComment(commentID)
	return c.run(ctx, OpBlock, commentID, outcome{
		success:    "Comment blocked successfully!",
		failure:    "Failed to block comment.",
		invalidate: func() { c.invalidateModeration(comment, found) },
	}, func(ctx context.Context) error {
		return c.admin.BlockComment(ctx, commentID)
	})
}

// invalidateModeration drops the moderation list and the comment's post.
// When the post is unknown every single-post entry goes.
func (c *Coordinator) invalidateModeration(comment domain.Comment, found bool) {
	c.cache.Invalidate(content.KeyAdminComments)
	if found && comment.PostID != 0 {
		c.cache.Invalidate(content.PostKey(comment.PostID))
		return
	}
	c.cache.InvalidatePrefix(content.PrefixPost)
}

func (c *Coordinator) requireStaff(op Op, id int64) error {
	s, ok := c.requireUser()
	if !ok {
		return c.reject(op, id, ErrNotAuthenticated, "Access denied. Admins only.")
	}
	if !s.IsStaff() {
		return c.reject(op, id, fmt.Errorf("%w: user %d", ErrNotStaff, s.UserID()), "Access denied. Admins only.")
	}
	return nil
}
