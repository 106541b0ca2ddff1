package blogapi

import (
	"context"
	"fmt"

	"github.com/mmcdole/quill/internal/domain"
)

// ListUsers returns every account (staff only)
func (c *Client) ListUsers(ctx context.Context) ([]domain.User, error) {
	var resp []UserDTO
	if err := c.getJSON(ctx, "/auth/users/", nil, &resp); err != nil {
		return nil, err
	}
	for i := range resp {
		if err := resp[i].validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
		}
	}
	return MapUsers(resp), nil
}

// ListComments returns every comment awaiting or past moderation (staff only)
func (c *Client) ListComments(ctx context.Context) ([]domain.Comment, error) {
	var resp []CommentDTO
	if err := c.getJSON(ctx, "/posts/admin/comments/", nil, &resp); err != nil {
		return nil, err
	}
	for i := range resp {
		if err := resp[i].validate(); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
		}
	}
	return MapComments(resp), nil
}

// ApproveComment makes a pending comment visible
func (c *Client) ApproveComment(ctx context.Context, commentID int64) error {
	return c.postAction(ctx, fmt.Sprintf("/posts/admin/comments/%d/approve/", commentID))
}

// BlockComment deletes a comment
func (c *Client) BlockComment(ctx context.Context, commentID int64) error {
	return c.postAction(ctx, fmt.Sprintf("/posts/admin/comments/%d/block/", commentID))
}
