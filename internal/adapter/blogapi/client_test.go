package blogapi

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmcdole/quill/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const postJSON = `{
	"id": 7,
	"title": "Hello",
	"content": "First post",
	"image": null,
	"author": {"id": 1, "username": "alice", "is_staff": false},
	"created_at": "2024-03-01T10:00:00Z",
	"likes": [2, 3],
	"unlikes": [],
	"likes_count": 2,
	"unlikes_count": 0,
	"read_count": 11,
	"comments": [
		{"id": 90, "content": "nice one", "author": {"id": 2, "username": "bob"}, "is_approved": true, "created_at": "2024-03-02T10:00:00Z"},
		{"id": 91, "content": "pending!", "author": {"id": 3, "username": "carol"}, "is_approved": false}
	]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc, token string) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient(srv.URL+"/", TokenFunc(func() string { return token }), time.Second, nil)
	c.retryDelay = time.Millisecond
	return c
}

func TestClient_SendsBearerAndRequestID(t *testing.T) {
	var gotAuth, gotID string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotID = r.Header.Get("X-Request-ID")
		io.WriteString(w, postJSON)
	}, "tok-1")

	_, err := c.GetPost(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, "Bearer tok-1", gotAuth)
	assert.Len(t, gotID, 26)
}

func TestClient_AnonymousWithoutToken(t *testing.T) {
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		io.WriteString(w, `[]`)
	}, "")

	_, err := c.ListPosts(context.Background(), 1)
	require.NoError(t, err)
	assert.Empty(t, gotAuth)
}

func TestGetPost_MapsPayload(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/posts/posts/7/", r.URL.Path)
		io.WriteString(w, postJSON)
	}, "")

	post, err := c.GetPost(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, int64(7), post.ID)
	assert.Equal(t, "alice", post.Author.Username)
	assert.Equal(t, 2, post.LikesCount)
	assert.True(t, post.LikedBy(2))
	assert.Equal(t, []int64{}, post.Unlikes)
	assert.Equal(t, 2024, post.CreatedAt.Year())
	require.Len(t, post.Comments, 2)
	assert.Equal(t, int64(7), post.Comments[0].PostID)
	assert.Len(t, post.ApprovedComments(), 1)
}

func TestGetPost_RejectsMissingAuthor(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"id": 7, "title": "no author"}`)
	}, "")

	_, err := c.GetPost(context.Background(), 7)
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
	assert.ErrorIs(t, err, domain.ErrServer)
}

func TestGetPost_RejectsNonJSON(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `<html>oops</html>`)
	}, "")

	_, err := c.GetPost(context.Background(), 7)
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestListPosts_PaginatedShape(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "2", r.URL.Query().Get("page"))
		io.WriteString(w, `{"results": [`+postJSON+`], "next": "http://x/posts/posts/?page=3", "current_page": 2}`)
	}, "")

	page, err := c.ListPosts(context.Background(), 2)
	require.NoError(t, err)
	assert.Equal(t, 2, page.Page)
	assert.True(t, page.HasNext)
	assert.Len(t, page.Posts, 1)
}

func TestListPosts_LastPage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"results": [], "next": null, "current_page": 4}`)
	}, "")

	page, err := c.ListPosts(context.Background(), 4)
	require.NoError(t, err)
	assert.False(t, page.HasNext)
	assert.Empty(t, page.Posts)
}

func TestListPosts_BareArrayHasNoNextPage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `[`+postJSON+`]`)
	}, "")

	page, err := c.ListPosts(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, page.Page)
	assert.False(t, page.HasNext)
	assert.Len(t, page.Posts, 1)
}

func TestListPosts_ObjectWithoutResultsIsMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"count": 3}`)
	}, "")

	_, err := c.ListPosts(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestStatusMapping(t *testing.T) {
	tests := []struct {
		status int
		body   string
		want   error
		detail string
	}{
		{http.StatusUnauthorized, `{"detail": "Token expired"}`, domain.ErrAuthFailed, "Token expired"},
		{http.StatusForbidden, `{"detail": "Nope"}`, domain.ErrPermissionDenied, "Nope"},
		{http.StatusNotFound, ``, domain.ErrNotFound, ""},
		{http.StatusBadRequest, `{"title": ["This field is required."]}`, domain.ErrConflict, "This field is required."},
		{http.StatusConflict, `"already liked"`, domain.ErrConflict, "already liked"},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				io.WriteString(w, tt.body)
			}, "tok")

			err := c.DeletePost(context.Background(), 1)
			require.ErrorIs(t, err, tt.want)

			var apiErr *domain.APIError
			require.ErrorAs(t, err, &apiErr)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.detail, apiErr.Detail)
		})
	}
}

func TestClient_RetriesReadsOn5xx(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		io.WriteString(w, postJSON)
	}, "")

	_, err := c.GetPost(context.Background(), 7)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClient_GivesUpAfterMaxRetries(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}, "")

	_, err := c.ListUsers(context.Background())
	assert.ErrorIs(t, err, domain.ErrServer)
	assert.Equal(t, int32(maxRetries+1), calls.Load())
}

func TestClient_MutationsAreSingleAttempt(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}, "tok")

	err := c.LikePost(context.Background(), 3)
	assert.ErrorIs(t, err, domain.ErrServer)
	assert.Equal(t, int32(1), calls.Load())
}

func TestMe_SingleAttemptWithExplicitToken(t *testing.T) {
	var calls atomic.Int32
	var gotAuth string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		gotAuth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusInternalServerError)
	}, "other")

	_, err := c.Me(context.Background(), "stored")
	assert.ErrorIs(t, err, domain.ErrServer)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, "Bearer stored", gotAuth)
}

func TestClient_ServerOffline(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewClient(url, nil, time.Second, nil)
	_, err := c.GetPost(context.Background(), 1)
	assert.ErrorIs(t, err, domain.ErrServerOffline)
}

func TestClient_CanceledContext(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, postJSON)
	}, "")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.GetPost(ctx, 7)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLogin(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/auth/login/", r.URL.Path)
		assert.Empty(t, r.Header.Get("Authorization"))

		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		if body["password"] != "Secret123" {
			w.WriteHeader(http.StatusUnauthorized)
			io.WriteString(w, `{"detail": "No active account found with the given credentials"}`)
			return
		}
		io.WriteString(w, `{"user": {"id": 5, "username": "alice", "is_staff": true}, "access": "A", "refresh": "R"}`)
	}, "stale")

	res, err := c.Login(context.Background(), "alice", "Secret123")
	require.NoError(t, err)
	assert.Equal(t, domain.Credentials{Access: "A", Refresh: "R"}, res.Tokens)
	assert.True(t, res.User.IsStaff)

	_, err = c.Login(context.Background(), "alice", "wrong")
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	assert.ErrorIs(t, err, domain.ErrAuthFailed)
	assert.Equal(t, "No active account found with the given credentials", domain.UserMessage(err, "fallback"))
}

func TestLogin_MissingAccessTokenIsMalformed(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"user": {"id": 5, "username": "alice"}}`)
	}, "")

	_, err := c.Login(context.Background(), "alice", "pw")
	assert.ErrorIs(t, err, domain.ErrMalformedResponse)
}

func TestCreatePost_Multipart(t *testing.T) {
	img := filepath.Join(t.TempDir(), "cover.png")
	require.NoError(t, os.WriteFile(img, []byte("png-bytes"), 0644))

	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseMultipartForm(1<<20))
		assert.Equal(t, "Hello", r.FormValue("title"))
		assert.Equal(t, "First post", r.FormValue("content"))

		f, hdr, err := r.FormFile("image")
		require.NoError(t, err)
		defer f.Close()
		data, _ := io.ReadAll(f)
		assert.Equal(t, "cover.png", hdr.Filename)
		assert.Equal(t, "png-bytes", string(data))

		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, postJSON)
	}, "tok")

	post, err := c.CreatePost(context.Background(), domain.PostDraft{Title: "Hello", Content: "First post", ImagePath: img})
	require.NoError(t, err)
	assert.Equal(t, int64(7), post.ID)
}

func TestCreatePost_UnreadableImage(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not be sent")
	}, "tok")

	_, err := c.CreatePost(context.Background(), domain.PostDraft{Title: "t", Content: "c", ImagePath: "/does/not/exist.png"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCreateComment(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/posts/posts/7/comments/", r.URL.Path)
		var body map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		assert.Equal(t, "great read", body["content"])
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"id": 12, "content": "great read", "author": {"id": 2, "username": "bob"}, "is_approved": false}`)
	}, "tok")

	comment, err := c.CreateComment(context.Background(), 7, "great read")
	require.NoError(t, err)
	assert.Equal(t, int64(7), comment.PostID)
	assert.Equal(t, domain.CommentPending, comment.Status())
}

func TestAdminEndpoints(t *testing.T) {
	var paths []string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.Method+" "+r.URL.Path)
		switch r.URL.Path {
		case "/posts/admin/comments/":
			io.WriteString(w, `[{"id": 1, "content": "hi there", "post": 7, "post_title": "Hello", "is_approved": false}]`)
		case "/auth/users/":
			io.WriteString(w, `[{"id": 1, "username": "alice", "email": "a@example.com", "is_staff": true}]`)
		default:
			io.WriteString(w, `{"status": "ok"}`)
		}
	}, "tok")

	ctx := context.Background()
	comments, err := c.ListComments(ctx)
	require.NoError(t, err)
	require.Len(t, comments, 1)
	assert.Equal(t, int64(7), comments[0].PostID)
	assert.Equal(t, "Unknown", comments[0].Author.DisplayName())

	users, err := c.ListUsers(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a@example.com", users[0].Email)

	require.NoError(t, c.ApproveComment(ctx, 1))
	require.NoError(t, c.BlockComment(ctx, 1))

	assert.Equal(t, []string{
		"GET /posts/admin/comments/",
		"GET /auth/users/",
		"POST /posts/admin/comments/1/approve/",
		"POST /posts/admin/comments/1/block/",
	}, paths)
}

func TestExtractDetail(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"string", `"plain message"`, "plain message"},
		{"detail", `{"detail": "Not found."}`, "Not found."},
		{"error", `{"error": "You have already liked this post."}`, "You have already liked this post."},
		{"field map", `{"username": ["taken"], "email": ["invalid", "too long"]}`, "invalid too long taken"},
		{"html", `<h1>Server Error</h1>`, ""},
		{"number", `42`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, extractDetail([]byte(tt.body)))
		})
	}
}

func TestProbe(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/posts/posts/" {
			http.NotFound(w, r)
			return
		}
		io.WriteString(w, `[]`)
	}))
	defer srv.Close()

	got, err := Probe(context.Background(), " "+srv.URL+"/api/ ")
	require.NoError(t, err)
	assert.Equal(t, srv.URL+"/api", got)

	_, err = Probe(context.Background(), srv.URL)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = Probe(context.Background(), "ftp://example.com")
	assert.Error(t, err)
}
