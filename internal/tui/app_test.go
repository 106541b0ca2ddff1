package tui

import (
	"context"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/quill/internal/adapter"
	"github.com/mmcdole/quill/internal/app"
	"github.com/mmcdole/quill/internal/blogtest"
	"github.com/mmcdole/quill/internal/domain"
	"github.com/mmcdole/quill/internal/feed"
	"github.com/mmcdole/quill/internal/guard"
	"github.com/mmcdole/quill/internal/mutation"
	"github.com/mmcdole/quill/internal/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(t *testing.T) (*app.App, *blogtest.Backend) {
	t.Helper()
	cfg := adapter.DefaultConfig()
	cfg.Cache.Dir = ""
	cfg.UI.NoticeDuration = time.Hour

	tokens, err := store.NewSessionStore("", "")
	require.NoError(t, err)

	b := blogtest.NewBackend(25)
	b.Users = append(b.Users, domain.User{ID: 2, Username: "reader", Email: "reader@example.com"})
	b.Password["reader"] = "Secret123"

	a, err := app.Assemble(cfg, b, tokens, nil)
	require.NoError(t, err)
	t.Cleanup(func() { a.Close() })
	return a, b
}

// startModel resolves the session as username (empty for a guest) and
// lands on path
func startModel(t *testing.T, a *app.App, username, path string) (Model, tea.Cmd) {
	t.Helper()
	ctx := context.Background()
	a.Start(ctx)
	if username != "" {
		_, err := a.Session.Login(ctx, username, "Secret123")
		require.NoError(t, err)
	}

	m := NewModel(a, path)
	t.Cleanup(m.Close)
	m, _ = update(m, tea.WindowSizeMsg{Width: 100, Height: 30})
	return update(m, SessionResolvedMsg{Session: a.Session.Snapshot()})
}

func update(m Model, msg tea.Msg) (Model, tea.Cmd) {
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func keyRunes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func currentNotice(t *testing.T, a *app.App) string {
	t.Helper()
	n, ok := a.Notices.Current()
	require.True(t, ok, "expected a notice")
	return n.Message
}

func TestModel_GuestIsSentToLogin(t *testing.T) {
	a, _ := newTestApp(t)

	m, _ := startModel(t, a, "", "/dashboard")

	assert.Equal(t, guard.RouteLogin, m.loc.Route)
	assert.IsType(t, &loginScreen{}, m.screen)
}

func TestModel_LoggedInUserSkipsGuestPages(t *testing.T) {
	a, _ := newTestApp(t)

	m, _ := startModel(t, a, "reader", "/register")

	assert.Equal(t, guard.RoutePosts, m.loc.Route)
	assert.IsType(t, &feedScreen{}, m.screen)
}

func TestModel_NonStaffDeniedAdminPages(t *testing.T) {
	a, _ := newTestApp(t)
	m, _ := startModel(t, a, "reader", "/posts")

	m, _ = update(m, NavigateMsg{Path: "/admin/users"})

	assert.Equal(t, guard.RoutePosts, m.loc.Route)
	assert.Equal(t, "Access denied. Admins only.", currentNotice(t, a))
}

func TestModel_StaffReachesAdminPages(t *testing.T) {
	a, _ := newTestApp(t)
	m, _ := startModel(t, a, "admin", "/posts")

	m, _ = update(m, NavigateMsg{Path: "/admin/comments"})
	assert.Equal(t, guard.RouteAdminComments, m.loc.Route)
	assert.IsType(t, &commentsScreen{}, m.screen)

	m, _ = update(m, NavigateMsg{Path: "/admin/posts"})
	assert.Equal(t, guard.RouteAdminPosts, m.loc.Route)
	require.IsType(t, &feedScreen{}, m.screen)
	assert.True(t, m.screen.(*feedScreen).admin)
}

func TestModel_UnknownPathFallsBackHome(t *testing.T) {
	a, _ := newTestApp(t)
	m, _ := startModel(t, a, "", "/")

	m, _ = update(m, NavigateMsg{Path: "/nowhere"})

	assert.Equal(t, guard.RouteHome, m.loc.Route)
	assert.Equal(t, "Page not found.", currentNotice(t, a))
}

func TestModel_DropsResultsForScreensLeftBehind(t *testing.T) {
	a, _ := newTestApp(t)
	m, _ := startModel(t, a, "admin", "/admin/users")
	stale := m.gen

	m, _ = update(m, NavigateMsg{Path: "/posts"})
	m, _ = update(m, NavigateMsg{Path: "/admin/users"})
	require.NotEqual(t, stale, m.gen)

	users := []domain.User{{ID: 9, Username: "ghost"}}
	m, _ = update(m, UsersLoadedMsg{scope: scope{Gen: stale}, Users: users})
	s := m.screen.(*usersScreen)
	assert.Empty(t, s.users)

	m, _ = update(m, UsersLoadedMsg{scope: scope{Gen: m.gen}, Users: users})
	assert.Equal(t, users, s.users)
}

func TestModel_LogoutLeavesGuardedScreen(t *testing.T) {
	a, _ := newTestApp(t)
	m, _ := startModel(t, a, "admin", "/admin/users")

	require.NoError(t, a.Logout())
	m, _ = update(m, SessionChangedMsg{Session: a.Session.Snapshot()})

	assert.Equal(t, guard.RouteLogin, m.loc.Route)
}

func TestModel_IdentityChangeReentersScreen(t *testing.T) {
	a, _ := newTestApp(t)
	m, _ := startModel(t, a, "admin", "/posts")
	before := m.gen

	_, err := a.Session.Login(context.Background(), "reader", "Secret123")
	require.NoError(t, err)
	m, _ = update(m, SessionChangedMsg{Session: a.Session.Snapshot()})

	assert.Equal(t, guard.RoutePosts, m.loc.Route)
	assert.Greater(t, m.gen, before)
	assert.Equal(t, int64(2), m.screen.(*feedScreen).userID)
}

func TestModel_NumberKeysFollowHeader(t *testing.T) {
	a, _ := newTestApp(t)
	m, _ := startModel(t, a, "admin", "/posts")

	m, _ = update(m, keyRunes("3"))
	assert.Equal(t, guard.RouteAdminUsers, m.loc.Route)

	m, _ = update(m, keyRunes("2"))
	assert.Equal(t, guard.RouteDashboard, m.loc.Route)
}

func TestModel_LogoutNeedsConfirmation(t *testing.T) {
	a, _ := newTestApp(t)
	m, _ := startModel(t, a, "admin", "/posts")

	m, _ = update(m, keyRunes("L"))
	require.True(t, m.ConfirmLogout)

	m, cmd := update(m, keyRunes("n"))
	assert.False(t, m.ConfirmLogout)
	assert.Nil(t, cmd)
	assert.True(t, a.Session.Snapshot().IsAuthenticated)

	m, _ = update(m, keyRunes("L"))
	m, cmd = update(m, keyRunes("y"))
	require.NotNil(t, cmd)
	msg := cmd()
	assert.Equal(t, LogoutDoneMsg{}, msg)
	assert.False(t, a.Session.Snapshot().IsAuthenticated)
}

func TestModel_FeedLoadsFirstPage(t *testing.T) {
	a, b := newTestApp(t)
	m, cmd := startModel(t, a, "reader", "/posts")
	require.NotNil(t, cmd)

	m, _ = update(m, cmd())

	s := m.screen.(*feedScreen)
	require.Len(t, s.items, b.PageSize)
	assert.Equal(t, int64(25), s.items[0].ID)
}

func TestModel_GrowingWindowLoadsNextPage(t *testing.T) {
	a, _ := newTestApp(t)
	m, cmd := startModel(t, a, "reader", "/posts")
	m, _ = update(m, tea.WindowSizeMsg{Width: 100, Height: 12})

	m, next := update(m, cmd())
	assert.Nil(t, next, "only the top rows are visible")
	s := m.screen.(*feedScreen)
	require.Len(t, s.items, 10)
	require.Equal(t, feed.StateReady, s.ctrl.State())

	m, next = update(m, tea.WindowSizeMsg{Width: 100, Height: 40})
	require.NotNil(t, next)
	assert.Equal(t, feed.StateLoadingNext, s.ctrl.State())

	m, _ = update(m, next())
	assert.Len(t, s.items, 20)
}

func TestModel_DetailLoadsPost(t *testing.T) {
	a, _ := newTestApp(t)
	m, cmd := startModel(t, a, "reader", "/posts/3")
	require.Equal(t, guard.RoutePostDetail, m.loc.Route)
	require.NotNil(t, cmd)

	m, _ = update(m, cmd())

	s := m.screen.(*detailScreen)
	require.NotNil(t, s.post)
	assert.Equal(t, "Post 3", s.post.Title)
	assert.Contains(t, m.View(), "Post 3")
}

func TestModel_WriteSurvivesLeavingScreen(t *testing.T) {
	a, b := newTestApp(t)
	b.Actor = domain.User{ID: 2, Username: "reader"}
	block := make(chan struct{})
	b.Block["LikePost"] = block

	m, _ := startModel(t, a, "reader", "/posts")
	fs := m.screen.(*feedScreen)

	like := mutateCmd(fs.env, mutation.OpLike, 3)
	done := make(chan tea.Msg, 1)
	go func() { done <- like() }()
	require.Eventually(t, func() bool { return a.Mutations.InFlight(mutation.OpLike, 3) }, time.Second, time.Millisecond)

	m, _ = update(m, NavigateMsg{Path: "/dashboard"})
	require.Equal(t, guard.RouteDashboard, m.loc.Route)
	close(block)

	var msg tea.Msg
	select {
	case msg = <-done:
	case <-time.After(time.Second):
		t.Fatal("like never finished")
	}
	result, ok := msg.(MutationDoneMsg)
	require.True(t, ok)
	assert.NoError(t, result.Err)
	assert.Equal(t, 1, b.Calls("LikePost"))
	assert.Equal(t, "Post liked!", currentNotice(t, a))

	// The result belongs to the feed, which is gone
	m, _ = update(m, msg)
	assert.IsType(t, &dashboardScreen{}, m.screen)
}

func TestModel_FormCapturesKeys(t *testing.T) {
	a, _ := newTestApp(t)
	m, _ := startModel(t, a, "", "/login")

	// "q" is typed into the username, not taken as quit
	m, _ = update(m, keyRunes("q"))
	s := m.screen.(*loginScreen)
	assert.Equal(t, "q", s.form.Field("username").Value())
}

func TestModel_InvalidLoginShowsFieldErrors(t *testing.T) {
	a, b := newTestApp(t)
	m, _ := startModel(t, a, "", "/login")

	m, cmd := update(m, tea.KeyMsg{Type: tea.KeyCtrlS})
	assert.Nil(t, cmd)

	s := m.screen.(*loginScreen)
	assert.Equal(t, "Username is required", s.form.Field("username").Error)
	assert.Equal(t, "Password is required", s.form.Field("password").Error)
	assert.Equal(t, 0, b.Calls("Login"))
}

func TestSessionObserver_KeepsNewest(t *testing.T) {
	obs := NewSessionObserver()
	first := domain.Session{}
	second := domain.Session{IsAuthenticated: true, User: &domain.User{ID: 7}}

	obs.OnChange(first)
	obs.OnChange(second)

	select {
	case got := <-obs.Changes():
		assert.Equal(t, int64(7), got.UserID())
	default:
		t.Fatal("expected a snapshot")
	}

	select {
	case <-obs.Changes():
		t.Fatal("stale snapshot was kept")
	default:
	}
}
