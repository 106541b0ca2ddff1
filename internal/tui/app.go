package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/quill/internal/app"
	"github.com/mmcdole/quill/internal/cache"
	"github.com/mmcdole/quill/internal/domain"
	"github.com/mmcdole/quill/internal/guard"
	"github.com/mmcdole/quill/internal/notify"
	"github.com/mmcdole/quill/internal/tui/components"
	"github.com/mmcdole/quill/internal/tui/styles"
)

const (
	tickInterval = 100 * time.Millisecond

	headerHeight = 2
	footerHeight = 1

	// Guest-only and staff routes can bounce through /login at most once
	maxRedirects = 3
)

// screen is one routed view. Screens mutate in place; the model owns the
// current one and replaces it on every navigation.
type screen interface {
	Init() tea.Cmd
	Update(msg tea.Msg) tea.Cmd
	View() string
	SetSize(width, height int)
	Hints() []string
	// Capturing reports whether text input or a modal owns the keyboard
	Capturing() bool
}

// navItem is a numbered entry in the header
type navItem struct {
	label string
	path  string
}

// Model is the main Bubble Tea model for the application
type Model struct {
	App *app.App

	// Routing
	initial  string
	loc      guard.Location
	screen   screen
	gen      uint64
	cancel   context.CancelFunc
	resolved bool
	userID   int64

	sessions      *SessionObserver
	stopObserving func()

	// Dimensions
	Width  int
	Height int

	// UI state
	Ready         bool
	SpinnerFrame  int
	ShowHelp      bool
	ConfirmLogout bool
}

// NewModel creates the application model. initialPath is where the user
// lands once the persisted session is resolved.
func NewModel(a *app.App, initialPath string) Model {
	if initialPath == "" {
		initialPath = string(guard.RoutePosts)
	}
	obs := NewSessionObserver()
	return Model{
		App:           a,
		initial:       initialPath,
		sessions:      obs,
		stopObserving: a.Session.OnChange(obs.OnChange),
	}
}

// Init initializes the application
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		listenSessionCmd(m.sessions.Changes()),
		listenNoticesCmd(m.App.Notices.Changed()),
		TickCmd(tickInterval),
	}
	if m.App.Session.Resolved() {
		snap := m.App.Session.Snapshot()
		cmds = append(cmds, func() tea.Msg { return SessionResolvedMsg{Session: snap} })
	} else {
		cmds = append(cmds, CheckSessionCmd(m.App))
	}
	return tea.Batch(cmds...)
}

// Close cancels the current screen and stops observing the session
func (m Model) Close() {
	if m.cancel != nil {
		m.cancel()
	}
	if m.stopObserving != nil {
		m.stopObserving()
	}
}

// Update handles all messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	// Results for a screen the user already left
	if s, ok := msg.(scopedMsg); ok && s.scopeGen() != m.gen {
		return m, nil
	}

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.Width = msg.Width
		m.Height = msg.Height
		m.Ready = true
		m.updateLayout()
		// A resize can change which rows are visible
		return m, m.forward(msg)

	case tea.KeyMsg:
		return m.handleKeyMsg(msg)

	case TickMsg:
		m.SpinnerFrame++
		m.App.Notices.Advance(msg.Time)
		return m, tea.Batch(m.forward(msg), TickCmd(tickInterval))

	case NoticeChangedMsg:
		return m, listenNoticesCmd(m.App.Notices.Changed())

	case SessionResolvedMsg:
		m.resolved = true
		m.userID = msg.Session.UserID()
		return m, m.navigate(m.initial)

	case SessionChangedMsg:
		cmds := []tea.Cmd{listenSessionCmd(m.sessions.Changes())}
		if m.resolved {
			cmds = append(cmds, m.recheck(msg.Session))
		}
		return m, tea.Batch(cmds...)

	case NavigateMsg:
		return m, m.navigate(msg.Path)

	case LogoutDoneMsg:
		// The session change moves the user off guarded screens
		if msg.Err != nil {
			m.App.Logger.Error("logout failed", "error", msg.Err)
		}
		return m, nil

	case ErrMsg:
		if !errors.Is(msg.Err, cache.ErrDiscarded) && !errors.Is(msg.Err, context.Canceled) {
			m.App.Logger.Error(msg.Error())
			m.App.Notices.Error(domain.UserMessage(msg.Err, "Something went wrong."))
		}
		return m, nil
	}

	return m, m.forward(msg)
}

func (m *Model) forward(msg tea.Msg) tea.Cmd {
	if m.screen == nil {
		return nil
	}
	return m.screen.Update(msg)
}

func (m Model) handleKeyMsg(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.String() == "ctrl+c" {
		return m, m.quit()
	}

	if m.ShowHelp {
		m.ShowHelp = false
		return m, nil
	}

	if m.ConfirmLogout {
		switch {
		case key.Matches(msg, Keys.Confirm):
			m.ConfirmLogout = false
			return m, LogoutCmd(m.App)
		case key.Matches(msg, Keys.Deny):
			m.ConfirmLogout = false
		}
		return m, nil
	}

	if m.screen == nil {
		if key.Matches(msg, Keys.Quit) {
			return m, m.quit()
		}
		return m, nil
	}

	if m.screen.Capturing() {
		return m, m.screen.Update(msg)
	}

	snap := m.App.Session.Snapshot()
	switch {
	case key.Matches(msg, Keys.Quit):
		return m, m.quit()
	case key.Matches(msg, Keys.Help):
		m.ShowHelp = true
		return m, nil
	case key.Matches(msg, Keys.Logout) && snap.IsAuthenticated:
		m.ConfirmLogout = true
		return m, nil
	case key.Matches(msg, Keys.Nav):
		items := navItems(snap)
		if idx := int(msg.Runes[0] - '1'); idx >= 0 && idx < len(items) {
			return m, m.navigate(items[idx].path)
		}
		return m, nil
	}

	return m, m.screen.Update(msg)
}

func (m *Model) quit() tea.Cmd {
	if m.cancel != nil {
		m.cancel()
	}
	return tea.Quit
}

// navigate resolves path through the route guard and enters the screen
// the user is allowed to see
func (m *Model) navigate(path string) tea.Cmd {
	loc, ok := guard.Match(path)
	if !ok {
		m.App.Notices.Warning("Page not found.")
		loc = guard.Location{Route: guard.RouteHome}
	}

	snap := m.App.Session.Snapshot()
	for range maxRedirects {
		d := guard.Check(snap, loc.Route)
		if d.Allow {
			break
		}
		if guard.RequirementFor(loc.Route) == guard.Staff && snap.IsAuthenticated {
			m.App.Notices.Warning("Access denied. Admins only.")
		}
		m.App.Logger.Debug("route guarded", "from", loc.Path(), "to", d.RedirectTo)
		loc, _ = guard.Match(string(d.RedirectTo))
	}

	if m.screen != nil && loc == m.loc {
		return nil
	}
	return m.enter(loc)
}

// recheck re-evaluates the current route after the session changed
func (m *Model) recheck(snap domain.Session) tea.Cmd {
	identityChanged := snap.UserID() != m.userID
	m.userID = snap.UserID()

	if d := guard.Check(snap, m.loc.Route); !d.Allow {
		return m.navigate(string(d.RedirectTo))
	}
	if identityChanged && m.screen != nil {
		// What the screen loaded belonged to the previous user
		return m.enter(m.loc)
	}
	return nil
}

// enter cancels the current screen's scope and starts loc's screen
func (m *Model) enter(loc guard.Location) tea.Cmd {
	if m.cancel != nil {
		m.cancel()
	}
	m.gen++
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel

	e := &env{app: m.App, ctx: ctx, gen: m.gen}
	m.loc = loc
	m.screen = newScreen(e, loc)
	m.updateLayout()
	m.App.Logger.Debug("entered screen", "path", loc.Path())
	return m.screen.Init()
}

func newScreen(e *env, loc guard.Location) screen {
	switch loc.Route {
	case guard.RouteLogin:
		return newLoginScreen(e)
	case guard.RouteRegister:
		return newRegisterScreen(e)
	case guard.RouteDashboard:
		return newDashboardScreen(e)
	case guard.RoutePostDetail:
		return newDetailScreen(e, loc.PostID)
	case guard.RouteAdminUsers:
		return newUsersScreen(e)
	case guard.RouteAdminPosts:
		return newFeedScreen(e, "Manage Posts", true)
	case guard.RouteAdminComments:
		return newCommentsScreen(e)
	default:
		return newFeedScreen(e, "Posts", false)
	}
}

// navItems returns the header entries available to the session
func navItems(s domain.Session) []navItem {
	if !s.IsAuthenticated {
		return []navItem{
			{"Home", string(guard.RouteHome)},
			{"Login", string(guard.RouteLogin)},
			{"Register", string(guard.RouteRegister)},
		}
	}
	items := []navItem{
		{"Posts", string(guard.RoutePosts)},
		{"Dashboard", string(guard.RouteDashboard)},
	}
	if s.IsStaff() {
		items = append(items,
			navItem{"Users", string(guard.RouteAdminUsers)},
			navItem{"Manage Posts", string(guard.RouteAdminPosts)},
			navItem{"Comments", string(guard.RouteAdminComments)},
		)
	}
	return items
}

func (m *Model) updateLayout() {
	if m.screen == nil || !m.Ready {
		return
	}
	m.screen.SetSize(m.Width, max(m.Height-headerHeight-footerHeight, 1))
}

// View renders the application
func (m Model) View() string {
	if !m.Ready {
		return "Loading..."
	}

	if m.ShowHelp {
		return m.renderHelp()
	}

	if !m.resolved || m.screen == nil {
		spinner := components.SpinnerFrames[m.SpinnerFrame%len(components.SpinnerFrames)]
		return lipgloss.Place(m.Width, m.Height,
			lipgloss.Center, lipgloss.Center,
			styles.SpinnerStyle.Render(spinner)+" "+styles.DimStyle.Render("Checking session..."))
	}

	view := lipgloss.JoinVertical(lipgloss.Left,
		m.renderHeader(),
		m.screen.View(),
		m.renderFooter(),
	)

	if m.ConfirmLogout {
		view = lipgloss.Place(m.Width, m.Height,
			lipgloss.Center, lipgloss.Center,
			m.renderLogoutConfirmation())
	}

	return view
}

// renderHeader renders the brand, numbered navigation and current user
func (m Model) renderHeader() string {
	snap := m.App.Session.Snapshot()

	parts := []string{styles.BadgeStyle.Render("quill")}
	for i, item := range navItems(snap) {
		label := fmt.Sprintf("%d %s", i+1, item.label)
		if loc, ok := guard.Match(item.path); ok && loc.Route == m.loc.Route {
			parts = append(parts, styles.AccentStyle.Bold(true).Render(label))
		} else {
			parts = append(parts, styles.DimStyle.Render(label))
		}
	}
	left := strings.Join(parts, "  ")

	right := styles.DimStyle.Render("guest")
	if snap.IsAuthenticated {
		right = styles.SubtitleStyle.Render(snap.User.DisplayName())
		if snap.IsStaff() {
			right += " " + styles.DimBadgeStyle.Render("staff")
		}
	}

	gap := max(m.Width-lipgloss.Width(left)-lipgloss.Width(right), 1)
	return left + strings.Repeat(" ", gap) + right + "\n"
}

// renderFooter renders a single-line footer: the visible notice, or the
// screen's key hints when there is none
func (m Model) renderFooter() string {
	var left string
	if n, ok := m.App.Notices.Current(); ok {
		left = renderNotice(n)
		if pending := m.App.Notices.Pending(); pending > 0 {
			left += styles.DimStyle.Render(fmt.Sprintf(" +%d", pending))
		}
	} else {
		left = strings.Join(m.screen.Hints(), "  ")
	}

	right := styles.RenderHint("?", "help")

	gap := m.Width - lipgloss.Width(left) - lipgloss.Width(right)
	if gap < 0 {
		gap = 0
	}
	return left + strings.Repeat(" ", gap) + right
}

func renderNotice(n notify.Notice) string {
	switch n.Kind {
	case notify.KindSuccess:
		return styles.NoticeSuccessStyle.Render(n.Message)
	case notify.KindWarning:
		return styles.NoticeWarningStyle.Render(n.Message)
	case notify.KindError:
		return styles.NoticeErrorStyle.Render(n.Message)
	default:
		return styles.NoticeInfoStyle.Render(n.Message)
	}
}

// renderHelp renders the help screen
func (m Model) renderHelp() string {
	help := `
NAVIGATION                      POSTS
  j/k        Up/down               l      Like
  g/G        First/last item       u      Unlike
  PgUp/PgDn  Scroll page           c      Comment (post page)
  Ctrl+u/d   Scroll half page      /      Filter
  Enter      Open                  r      Refresh
  Esc        Back / stop editing   R      Retry after an error
  1-5        Switch page

FORMS                           ADMIN
  Tab        Next field            x      Delete post
  Shift+Tab  Previous field        a      Approve comment
  Ctrl+s     Submit                b      Block comment

OTHER
  L          Logout                q      Quit
  ?          This help

Press any key to return...
`

	return lipgloss.Place(m.Width, m.Height,
		lipgloss.Center, lipgloss.Center,
		styles.ModalStyle.Render(help))
}

// renderLogoutConfirmation renders the logout confirmation modal
func (m Model) renderLogoutConfirmation() string {
	modal := `
          Log Out?

  This will clear your saved
  session on this machine.

      [Y] Yes      [N] No
`

	return styles.ModalStyle.Render(modal)
}
