package blogapi

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mmcdole/quill/internal/domain"
)

const probeTimeout = 10 * time.Second

// Probe checks that serverURL hosts the blog API by requesting the first
// page of posts anonymously. It returns the normalized URL.
func Probe(ctx context.Context, serverURL string) (string, error) {
	serverURL = strings.TrimRight(strings.TrimSpace(serverURL), "/")

	u, err := url.Parse(serverURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "", fmt.Errorf("invalid server URL %q: must be http(s)://host[/path]", serverURL)
	}

	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	c := NewClient(serverURL, nil, probeTimeout, nil)
	_, err = c.doRequest(ctx, request{
		method:    http.MethodGet,
		path:      "/posts/posts/",
		query:     url.Values{"page": []string{"1"}},
		anonymous: true,
	})
	// An auth wall still proves the API is there
	if err != nil && !domain.IsAuthError(err) {
		if errors.Is(err, domain.ErrServerOffline) {
			return "", fmt.Errorf("could not reach %s: %w", serverURL, err)
		}
		return "", fmt.Errorf("%s does not look like a blog API: %w", serverURL, err)
	}
	return serverURL, nil
}
