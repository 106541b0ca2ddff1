package blogapi

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// Wire contracts for the blog REST API. Every response is decoded into one
// of these and validated before it is mapped to domain types.

var errMissingField = errors.New("missing required field")

// UserDTO is an account as serialized by the server
type UserDTO struct {
	ID       *int64 `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
	IsStaff  bool   `json:"is_staff"`
}

func (u *UserDTO) validate() error {
	if u.ID == nil {
		return fmt.Errorf("user: %w: id", errMissingField)
	}
	return nil
}

// CommentDTO is a comment embedded in a post or listed for moderation
type CommentDTO struct {
	ID         *int64   `json:"id"`
	Content    string   `json:"content"`
	Author     *UserDTO `json:"author"`
	Post       *int64   `json:"post"`
	PostID     *int64   `json:"post_id"`
	PostTitle  string   `json:"post_title"`
	IsApproved bool     `json:"is_approved"`
	CreatedAt  string   `json:"created_at"`
}

func (c *CommentDTO) validate() error {
	if c.ID == nil {
		return fmt.Errorf("comment: %w: id", errMissingField)
	}
	if c.Author != nil {
		if err := c.Author.validate(); err != nil {
			return fmt.Errorf("comment %d: %w", *c.ID, err)
		}
	}
	return nil
}

// PostDTO is a post as serialized by the list and detail endpoints
type PostDTO struct {
	ID           *int64       `json:"id"`
	Title        string       `json:"title"`
	Content      string       `json:"content"`
	Image        *string      `json:"image"`
	Author       *UserDTO     `json:"author"`
	CreatedAt    string       `json:"created_at"`
	Likes        []int64      `json:"likes"`
	Unlikes      []int64      `json:"unlikes"`
	LikesCount   int          `json:"likes_count"`
	UnlikesCount int          `json:"unlikes_count"`
	ReadCount    int          `json:"read_count"`
	Comments     []CommentDTO `json:"comments"`
}

func (p *PostDTO) validate() error {
	if p.ID == nil {
		return fmt.Errorf("post: %w: id", errMissingField)
	}
	if p.Author == nil {
		return fmt.Errorf("post %d: %w: author", *p.ID, errMissingField)
	}
	if err := p.Author.validate(); err != nil {
		return fmt.Errorf("post %d: %w", *p.ID, err)
	}
	for i := range p.Comments {
		if err := p.Comments[i].validate(); err != nil {
			return fmt.Errorf("post %d: %w", *p.ID, err)
		}
	}
	return nil
}

// PostListDTO is the paginated post listing. The server may also answer
// with a bare array, which UnmarshalJSON folds into Results.
type PostListDTO struct {
	Results     []PostDTO `json:"results"`
	Next        *string   `json:"next"`
	CurrentPage int       `json:"current_page"`
	bare        bool
}

func (l *PostListDTO) UnmarshalJSON(data []byte) error {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var posts []PostDTO
		if err := json.Unmarshal(trimmed, &posts); err != nil {
			return err
		}
		*l = PostListDTO{Results: posts, bare: true}
		return nil
	}

	type alias PostListDTO
	var a alias
	if err := json.Unmarshal(trimmed, &a); err != nil {
		return err
	}
	if a.Results == nil {
		return fmt.Errorf("post list: %w: results", errMissingField)
	}
	*l = PostListDTO(a)
	return nil
}

// HasNext reports whether the server advertised another page
func (l *PostListDTO) HasNext() bool {
	return !l.bare && l.Next != nil && *l.Next != ""
}

func (l *PostListDTO) validate() error {
	for i := range l.Results {
		if err := l.Results[i].validate(); err != nil {
			return err
		}
	}
	return nil
}

// LoginResponseDTO is returned by POST /auth/login/
type LoginResponseDTO struct {
	User    *UserDTO `json:"user"`
	Access  string   `json:"access"`
	Refresh string   `json:"refresh"`
}

func (r *LoginResponseDTO) validate() error {
	if r.User == nil {
		return fmt.Errorf("login: %w: user", errMissingField)
	}
	if r.Access == "" {
		return fmt.Errorf("login: %w: access", errMissingField)
	}
	return r.User.validate()
}

// StatusDTO is the acknowledgement body of reaction and moderation endpoints
type StatusDTO struct {
	Status string `json:"status"`
}
