package blogapi

import (
	"time"

	"github.com/mmcdole/quill/internal/domain"
)

// MapUser converts a validated user DTO to a domain user
func MapUser(u *UserDTO) domain.User {
	if u == nil {
		return domain.User{}
	}
	var id int64
	if u.ID != nil {
		id = *u.ID
	}
	return domain.User{
		ID:       id,
		Username: u.Username,
		Email:    u.Email,
		IsStaff:  u.IsStaff,
	}
}

// MapUsers converts a slice of user DTOs
func MapUsers(users []UserDTO) []domain.User {
	out := make([]domain.User, 0, len(users))
	for i := range users {
		out = append(out, MapUser(&users[i]))
	}
	return out
}

// MapComment converts a validated comment DTO to a domain comment
func MapComment(c *CommentDTO) domain.Comment {
	comment := domain.Comment{
		ID:         *c.ID,
		Content:    c.Content,
		Author:     MapUser(c.Author),
		PostTitle:  c.PostTitle,
		IsApproved: c.IsApproved,
		CreatedAt:  parseTime(c.CreatedAt),
	}
	switch {
	case c.Post != nil:
		comment.PostID = *c.Post
	case c.PostID != nil:
		comment.PostID = *c.PostID
	}
	return comment
}

// MapComments converts a slice of comment DTOs
func MapComments(comments []CommentDTO) []domain.Comment {
	out := make([]domain.Comment, 0, len(comments))
	for i := range comments {
		out = append(out, MapComment(&comments[i]))
	}
	return out
}

// MapPost converts a validated post DTO to a domain post
func MapPost(p *PostDTO) domain.Post {
	post := domain.Post{
		ID:           *p.ID,
		Title:        p.Title,
		Content:      p.Content,
		Author:       MapUser(p.Author),
		CreatedAt:    parseTime(p.CreatedAt),
		Likes:        nonNil(p.Likes),
		Unlikes:      nonNil(p.Unlikes),
		LikesCount:   p.LikesCount,
		UnlikesCount: p.UnlikesCount,
		ReadCount:    p.ReadCount,
		Comments:     MapComments(p.Comments),
	}
	if p.Image != nil {
		post.Image = *p.Image
	}
	// Embedded comments omit the post id
	for i := range post.Comments {
		if post.Comments[i].PostID == 0 {
			post.Comments[i].PostID = post.ID
		}
		if post.Comments[i].PostTitle == "" {
			post.Comments[i].PostTitle = post.Title
		}
	}
	return post
}

// MapPostPage converts a validated post listing for the given page
func MapPostPage(l *PostListDTO, page int) domain.PostPage {
	posts := make([]domain.Post, 0, len(l.Results))
	for i := range l.Results {
		posts = append(posts, MapPost(&l.Results[i]))
	}
	if l.CurrentPage > 0 {
		page = l.CurrentPage
	}
	return domain.PostPage{
		Posts:   posts,
		Page:    page,
		HasNext: l.HasNext(),
	}
}

func parseTime(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nonNil(ids []int64) []int64 {
	if ids == nil {
		return []int64{}
	}
	return ids
}
