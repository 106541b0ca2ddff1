package blogapi

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/mmcdole/quill/internal/domain"
)

// ListPosts returns one page of the post listing
func (c *Client) ListPosts(ctx context.Context, page int) (domain.PostPage, error) {
	if page < 1 {
		page = 1
	}
	query := url.Values{}
	query.Set("page", strconv.Itoa(page))

	var resp PostListDTO
	if err := c.getJSON(ctx, "/posts/posts/", query, &resp); err != nil {
		return domain.PostPage{}, err
	}
	if err := resp.validate(); err != nil {
		return domain.PostPage{}, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	return MapPostPage(&resp, page), nil
}

// GetPost returns a single post with its comments
func (c *Client) GetPost(ctx context.Context, postID int64) (*domain.Post, error) {
	var resp PostDTO
	if err := c.getJSON(ctx, postPath(postID), nil, &resp); err != nil {
		return nil, err
	}
	if err := resp.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	post := MapPost(&resp)
	return &post, nil
}

// CreatePost uploads a post as multipart form data with an optional image
func (c *Client) CreatePost(ctx context.Context, draft domain.PostDraft) (*domain.Post, error) {
	body, contentType, err := encodePostForm(draft)
	if err != nil {
		return nil, err
	}

	respBody, err := c.doRequest(ctx, request{
		method:      http.MethodPost,
		path:        "/posts/posts/",
		body:        body,
		contentType: contentType,
	})
	if err != nil {
		return nil, err
	}

	var resp PostDTO
	if err := decode(respBody, &resp); err != nil {
		return nil, err
	}
	if err := resp.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	post := MapPost(&resp)
	return &post, nil
}

// encodePostForm builds the multipart body for CreatePost
func encodePostForm(draft domain.PostDraft) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	if err := w.WriteField("title", draft.Title); err != nil {
		return nil, "", fmt.Errorf("failed to encode title: %w", err)
	}
	if err := w.WriteField("content", draft.Content); err != nil {
		return nil, "", fmt.Errorf("failed to encode content: %w", err)
	}

	if draft.ImagePath != "" {
		f, err := os.Open(draft.ImagePath)
		if err != nil {
			return nil, "", &domain.ValidationError{Field: "image", Message: "Image file could not be read."}
		}
		defer f.Close()

		part, err := w.CreateFormFile("image", filepath.Base(draft.ImagePath))
		if err != nil {
			return nil, "", fmt.Errorf("failed to encode image: %w", err)
		}
		if _, err := io.Copy(part, f); err != nil {
			return nil, "", &domain.ValidationError{Field: "image", Message: "Image file could not be read."}
		}
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to finish form: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}

// DeletePost removes a post
func (c *Client) DeletePost(ctx context.Context, postID int64) error {
	_, err := c.doRequest(ctx, request{method: http.MethodDelete, path: postPath(postID)})
	return err
}

// LikePost records a like for the current user
func (c *Client) LikePost(ctx context.Context, postID int64) error {
	return c.postAction(ctx, postPath(postID)+"like/")
}

// UnlikePost records an unlike for the current user
func (c *Client) UnlikePost(ctx context.Context, postID int64) error {
	return c.postAction(ctx, postPath(postID)+"unlike/")
}

type commentRequest struct {
	Content string `json:"content"`
}

// CreateComment adds a comment to a post. The server creates it pending.
func (c *Client) CreateComment(ctx context.Context, postID int64, content string) (*domain.Comment, error) {
	req, err := jsonRequest(http.MethodPost, postPath(postID)+"comments/", commentRequest{Content: content})
	if err != nil {
		return nil, err
	}

	body, err := c.doRequest(ctx, req)
	if err != nil {
		return nil, err
	}

	var resp CommentDTO
	if err := decode(body, &resp); err != nil {
		return nil, err
	}
	if err := resp.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	comment := MapComment(&resp)
	if comment.PostID == 0 {
		comment.PostID = postID
	}
	return &comment, nil
}

// postAction sends a bodiless POST and ignores the acknowledgement body
func (c *Client) postAction(ctx context.Context, path string) error {
	body, err := c.doRequest(ctx, request{method: http.MethodPost, path: path})
	if err != nil {
		return err
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return nil
	}
	var ack StatusDTO
	return decode(body, &ack)
}

func postPath(postID int64) string {
	return fmt.Sprintf("/posts/posts/%d/", postID)
}
