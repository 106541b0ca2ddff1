package blogapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/mmcdole/quill/internal/domain"
)

type loginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Register creates an account. The server answers field problems with 400
// and a field map, which surfaces as the APIError detail.
func (c *Client) Register(ctx context.Context, reg domain.Registration) error {
	req, err := jsonRequest(http.MethodPost, "/auth/register/", reg)
	if err != nil {
		return err
	}
	req.anonymous = true

	if _, err := c.doRequest(ctx, req); err != nil {
		return err
	}
	return nil
}

// Login exchanges credentials for the user and token pair.
// 400 and 401 both mean the credentials were rejected.
func (c *Client) Login(ctx context.Context, username, password string) (*domain.AuthResult, error) {
	req, err := jsonRequest(http.MethodPost, "/auth/login/", loginRequest{Username: username, Password: password})
	if err != nil {
		return nil, err
	}
	req.anonymous = true

	body, err := c.doRequest(ctx, req)
	if err != nil {
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) && (apiErr.Status == http.StatusBadRequest || apiErr.Status == http.StatusUnauthorized) {
			return nil, &domain.APIError{Status: apiErr.Status, Detail: apiErr.Detail, Err: domain.ErrInvalidCredentials}
		}
		return nil, err
	}

	var resp LoginResponseDTO
	if err := decode(body, &resp); err != nil {
		return nil, err
	}
	if err := resp.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	return &domain.AuthResult{
		User:   MapUser(resp.User),
		Tokens: domain.Credentials{Access: resp.Access, Refresh: resp.Refresh},
	}, nil
}

// Me returns the user that accessToken belongs to. It is a single attempt.
func (c *Client) Me(ctx context.Context, accessToken string) (*domain.User, error) {
	body, err := c.doRequest(ctx, request{method: http.MethodGet, path: "/auth/users/me/", token: accessToken})
	if err != nil {
		return nil, err
	}

	var resp UserDTO
	if err := decode(body, &resp); err != nil {
		return nil, err
	}
	if err := resp.validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrMalformedResponse, err)
	}

	user := MapUser(&resp)
	return &user, nil
}
