// Package blogtest provides an in-memory blog backend for tests.
package blogtest

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/mmcdole/quill/internal/domain"
)

// Backend implements the auth, post and admin repositories in memory.
// Set Fail to make the next matching call return an error.
type Backend struct {
	mu sync.Mutex

	PageSize int
	Users    []domain.User
	Posts    []domain.Post // newest first, as the server lists them
	Comments []domain.Comment
	Password map[string]string

	// Fail maps an operation name to the error it should return
	Fail map[string]error
	// Block makes an operation wait until the channel is closed
	Block map[string]chan struct{}

	calls  map[string]int
	nextID int64

	// Actor is the user mutations are attributed to
	Actor domain.User
}

var (
	_ domain.AuthRepository  = (*Backend)(nil)
	_ domain.PostRepository  = (*Backend)(nil)
	_ domain.AdminRepository = (*Backend)(nil)
)

// NewBackend creates a backend with n posts authored by a staff user
func NewBackend(n int) *Backend {
	staff := domain.User{ID: 1, Username: "admin", Email: "admin@example.com", IsStaff: true}
	b := &Backend{
		PageSize: 10,
		Users:    []domain.User{staff},
		Password: map[string]string{"admin": "Secret123"},
		Fail:     map[string]error{},
		Block:    map[string]chan struct{}{},
		calls:    map[string]int{},
		nextID:   1000,
		Actor:    staff,
	}
	for i := n; i >= 1; i-- {
		b.Posts = append(b.Posts, domain.Post{
			ID:        int64(i),
			Title:     fmt.Sprintf("Post %d", i),
			Content:   fmt.Sprintf("Content of post %d", i),
			Author:    staff,
			CreatedAt: time.Date(2024, 1, i%28+1, 0, 0, 0, 0, time.UTC),
			Likes:     []int64{},
			Unlikes:   []int64{},
		})
	}
	return b
}

// Calls returns how many times op was invoked
func (b *Backend) Calls(op string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls[op]
}

// enter records the call, waits on any block, then returns the injected error
func (b *Backend) enter(ctx context.Context, op string) error {
	b.mu.Lock()
	b.calls[op]++
	block := b.Block[op]
	b.mu.Unlock()

	if block != nil {
		select {
		case <-block:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if err, ok := b.Fail[op]; ok {
		return err
	}
	return nil
}

func (b *Backend) Register(ctx context.Context, reg domain.Registration) error {
	if err := b.enter(ctx, "Register"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.Users {
		if u.Username == reg.Username {
			return &domain.APIError{Status: 400, Detail: "A user with that username already exists.", Err: domain.ErrConflict}
		}
	}
	b.nextID++
	b.Users = append(b.Users, domain.User{ID: b.nextID, Username: reg.Username, Email: reg.Email})
	b.Password[reg.Username] = reg.Password
	return nil
}

func (b *Backend) Login(ctx context.Context, username, password string) (*domain.AuthResult, error) {
	if err := b.enter(ctx, "Login"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if pw, ok := b.Password[username]; !ok || pw != password {
		return nil, domain.ErrInvalidCredentials
	}
	for _, u := range b.Users {
		if u.Username == username {
			return &domain.AuthResult{User: u, Tokens: domain.Credentials{Access: "access-" + username, Refresh: "refresh-" + username}}, nil
		}
	}
	return nil, domain.ErrInvalidCredentials
}

func (b *Backend) Me(ctx context.Context, token string) (*domain.User, error) {
	if err := b.enter(ctx, "Me"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, u := range b.Users {
		if token == "access-"+u.Username {
			user := u
			return &user, nil
		}
	}
	return nil, domain.ErrAuthFailed
}

func (b *Backend) ListPosts(ctx context.Context, page int) (domain.PostPage, error) {
	if err := b.enter(ctx, "ListPosts"); err != nil {
		return domain.PostPage{}, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	start := (page - 1) * b.PageSize
	if start > len(b.Posts) || page < 1 {
		return domain.PostPage{}, domain.ErrNotFound
	}
	end := min(start+b.PageSize, len(b.Posts))
	posts := make([]domain.Post, 0, end-start)
	for _, p := range b.Posts[start:end] {
		posts = append(posts, b.withComments(p))
	}
	return domain.PostPage{Posts: posts, Page: page, HasNext: end < len(b.Posts)}, nil
}

func (b *Backend) GetPost(ctx context.Context, postID int64) (*domain.Post, error) {
	if err := b.enter(ctx, "GetPost"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexOf(postID)
	if i < 0 {
		return nil, domain.ErrNotFound
	}
	p := b.withComments(b.Posts[i])
	return &p, nil
}

func (b *Backend) CreatePost(ctx context.Context, draft domain.PostDraft) (*domain.Post, error) {
	if err := b.enter(ctx, "CreatePost"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	p := domain.Post{ID: b.nextID, Title: draft.Title, Content: draft.Content, Author: b.Actor, CreatedAt: time.Now(), Likes: []int64{}, Unlikes: []int64{}}
	b.Posts = append([]domain.Post{p}, b.Posts...)
	return &p, nil
}

func (b *Backend) DeletePost(ctx context.Context, postID int64) error {
	if err := b.enter(ctx, "DeletePost"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexOf(postID)
	if i < 0 {
		return domain.ErrNotFound
	}
	b.Posts = slices.Delete(b.Posts, i, i+1)
	b.Comments = slices.DeleteFunc(b.Comments, func(c domain.Comment) bool { return c.PostID == postID })
	return nil
}

func (b *Backend) LikePost(ctx context.Context, postID int64) error {
	return b.react(ctx, "LikePost", postID, true)
}

func (b *Backend) UnlikePost(ctx context.Context, postID int64) error {
	return b.react(ctx, "UnlikePost", postID, false)
}

func (b *Backend) react(ctx context.Context, op string, postID int64, like bool) error {
	if err := b.enter(ctx, op); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexOf(postID)
	if i < 0 {
		return domain.ErrNotFound
	}
	p := &b.Posts[i]
	uid := b.Actor.ID
	p.Likes = slices.DeleteFunc(p.Likes, func(id int64) bool { return id == uid })
	p.Unlikes = slices.DeleteFunc(p.Unlikes, func(id int64) bool { return id == uid })
	if like {
		p.Likes = append(p.Likes, uid)
	} else {
		p.Unlikes = append(p.Unlikes, uid)
	}
	p.LikesCount = len(p.Likes)
	p.UnlikesCount = len(p.Unlikes)
	return nil
}

func (b *Backend) CreateComment(ctx context.Context, postID int64, content string) (*domain.Comment, error) {
	if err := b.enter(ctx, "CreateComment"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	i := b.indexOf(postID)
	if i < 0 {
		return nil, domain.ErrNotFound
	}
	b.nextID++
	c := domain.Comment{ID: b.nextID, Content: content, Author: b.Actor, PostID: postID, PostTitle: b.Posts[i].Title, CreatedAt: time.Now()}
	b.Comments = append(b.Comments, c)
	return &c, nil
}

func (b *Backend) ListUsers(ctx context.Context) ([]domain.User, error) {
	if err := b.enter(ctx, "ListUsers"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.Users), nil
}

func (b *Backend) ListComments(ctx context.Context) ([]domain.Comment, error) {
	if err := b.enter(ctx, "ListComments"); err != nil {
		return nil, err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	return slices.Clone(b.Comments), nil
}

func (b *Backend) ApproveComment(ctx context.Context, commentID int64) error {
	if err := b.enter(ctx, "ApproveComment"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i := range b.Comments {
		if b.Comments[i].ID == commentID {
			b.Comments[i].IsApproved = true
			return nil
		}
	}
	return domain.ErrNotFound
}

func (b *Backend) BlockComment(ctx context.Context, commentID int64) error {
	if err := b.enter(ctx, "BlockComment"); err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	n := len(b.Comments)
	b.Comments = slices.DeleteFunc(b.Comments, func(c domain.Comment) bool { return c.ID == commentID })
	if len(b.Comments) == n {
		return domain.ErrNotFound
	}
	return nil
}

func (b *Backend) indexOf(postID int64) int {
	return slices.IndexFunc(b.Posts, func(p domain.Post) bool { return p.ID == postID })
}

func (b *Backend) withComments(p domain.Post) domain.Post {
	p.Likes = slices.Clone(p.Likes)
	p.Unlikes = slices.Clone(p.Unlikes)
	p.Comments = nil
	for _, c := range b.Comments {
		if c.PostID == p.ID {
			p.Comments = append(p.Comments, c)
		}
	}
	return p
}
