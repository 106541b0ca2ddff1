package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/quill/internal/cache"
	"github.com/mmcdole/quill/internal/content"
	"github.com/mmcdole/quill/internal/domain"
	"github.com/mmcdole/quill/internal/guard"
	"github.com/mmcdole/quill/internal/mutation"
	"github.com/mmcdole/quill/internal/search"
	"github.com/mmcdole/quill/internal/tui/components"
	"github.com/mmcdole/quill/internal/tui/styles"
)

// loadFailure returns the message for a failed admin listing, or "" when
// the load was abandoned
func loadFailure(err error, fallback string) string {
	if err == nil || errors.Is(err, cache.ErrDiscarded) || errors.Is(err, context.Canceled) {
		return ""
	}
	return styles.ErrorStyle.Render(domain.UserMessage(err, fallback)) + "  " + styles.RenderHint("R", "retry")
}

// usersScreen lists every account (staff only)
type usersScreen struct {
	env   *env
	users []domain.User
	list  *components.List
}

func newUsersScreen(e *env) *usersScreen {
	s := &usersScreen{env: e, list: components.NewList("Users")}
	s.list.SetEmptyText("No users")
	s.list.SetFilter(s.filter)
	return s
}

func (s *usersScreen) Init() tea.Cmd {
	s.list.SetLoading(true)
	return loadUsersCmd(s.env)
}

func (s *usersScreen) filter(query string) []int {
	pos := make(map[int64]int, len(s.users))
	for i, u := range s.users {
		pos[u.ID] = i
	}
	results := search.FilterUsers(query, s.users)
	out := make([]int, len(results))
	for i, r := range results {
		out[i] = pos[r.User.ID]
	}
	return out
}

func (s *usersScreen) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case TickMsg:
		s.list.SetSpinnerFrame(int(msg.Time.UnixMilli() / 100))
		return nil

	case UsersLoadedMsg:
		if msg.Err == nil {
			s.users = msg.Users
		}
		s.list.SetCount(len(s.users))
		s.list.SetFooter(loadFailure(msg.Err, "Failed to load users."))
		if s.list.ItemCount() > 0 && msg.Err == nil {
			s.list.SetFooter(styles.DimStyle.Render(fmt.Sprintf("%d users", len(s.users))))
		}
		return nil

	case tea.KeyMsg:
		if s.list.IsFilterTyping() {
			return s.list.Update(msg)
		}
		switch {
		case key.Matches(msg, Keys.Filter):
			s.list.ToggleFilter()
			return nil
		case key.Matches(msg, Keys.Refresh), key.Matches(msg, Keys.Retry):
			s.env.app.Cache.Invalidate(content.KeyUsers)
			s.list.SetLoading(len(s.users) == 0)
			return loadUsersCmd(s.env)
		}
		return s.list.Update(msg)
	}
	return nil
}

func (s *usersScreen) renderRow(idx int, selected bool, width int) string {
	u := s.users[idx]

	badge := "      "
	var badgeColor *lipgloss.Color
	if u.IsStaff {
		badge = "staff "
		badgeColor = &styles.Accent
	}

	nameWidth := min(24, max(width/3, 8))
	parts := []styles.RowPart{
		{Text: badge, Foreground: badgeColor},
		{Text: styles.Pad(styles.Truncate(u.Username, nameWidth), nameWidth)},
		{Text: "  "},
		{Text: styles.Truncate(u.Email, max(width-nameWidth-12, 8)), Foreground: &styles.DimGray},
	}
	return styles.RenderListRow(parts, selected, width)
}

func (s *usersScreen) SetSize(width, height int) {
	s.list.SetSize(width, height)
}

func (s *usersScreen) View() string {
	return s.list.View(s.renderRow)
}

func (s *usersScreen) Hints() []string {
	return []string{styles.RenderHint("/", "filter"), styles.RenderHint("r", "refresh")}
}

func (s *usersScreen) Capturing() bool {
	return s.list.IsFilterTyping()
}

// commentsScreen is the moderation queue (staff only)
type commentsScreen struct {
	env      *env
	comments []domain.Comment
	list     *components.List

	pending map[int64]mutation.Op
	confirm components.ConfirmModal
	action  mutation.Op

	width  int
	height int
}

func newCommentsScreen(e *env) *commentsScreen {
	s := &commentsScreen{
		env:     e,
		list:    components.NewList("Comments"),
		pending: make(map[int64]mutation.Op),
		confirm: components.NewConfirmModal(),
	}
	s.list.SetEmptyText("No comments to moderate")
	return s
}

func (s *commentsScreen) Init() tea.Cmd {
	s.list.SetLoading(true)
	return loadCommentsCmd(s.env)
}

func (s *commentsScreen) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case TickMsg:
		s.list.SetSpinnerFrame(int(msg.Time.UnixMilli() / 100))
		return nil

	case CommentsLoadedMsg:
		if msg.Err == nil {
			s.comments = msg.Comments
		}
		s.list.SetCount(len(s.comments))
		footer := loadFailure(msg.Err, "Failed to load comments.")
		if footer == "" && msg.Err == nil {
			footer = styles.DimStyle.Render(fmt.Sprintf("%d pending of %d", s.pendingCount(), len(s.comments)))
		}
		s.list.SetFooter(footer)
		return nil

	case MutationDoneMsg:
		delete(s.pending, msg.ID)
		return loadCommentsCmd(s.env)

	case tea.KeyMsg:
		return s.handleKey(msg)
	}
	return nil
}

func (s *commentsScreen) pendingCount() int {
	n := 0
	for _, c := range s.comments {
		if !c.IsApproved {
			n++
		}
	}
	return n
}

func (s *commentsScreen) handleKey(msg tea.KeyMsg) tea.Cmd {
	if s.confirm.IsVisible() {
		var ok bool
		s.confirm, ok = s.confirm.Update(msg)
		if !ok {
			return nil
		}
		id := s.confirm.Target()
		s.pending[id] = s.action
		return mutateCmd(s.env, s.action, id)
	}

	switch {
	case key.Matches(msg, Keys.Approve):
		if c, ok := s.selected(); ok && !s.busy(c.ID) {
			s.action = mutation.OpApprove
			s.confirm.Show("Approve Comment?", s.summary(c), c.ID)
		}
		return nil
	case key.Matches(msg, Keys.Block):
		if c, ok := s.selected(); ok && !s.busy(c.ID) {
			s.action = mutation.OpBlock
			s.confirm.Show("Block Comment?", s.summary(c)+"\n\nBlocking deletes the comment.", c.ID)
		}
		return nil
	case key.Matches(msg, Keys.Enter):
		if c, ok := s.selected(); ok && c.PostID != 0 {
			return NavigateCmd(guard.Location{Route: guard.RoutePostDetail, PostID: c.PostID}.Path())
		}
		return nil
	case key.Matches(msg, Keys.Refresh), key.Matches(msg, Keys.Retry):
		s.env.app.Cache.Invalidate(content.KeyAdminComments)
		s.list.SetLoading(len(s.comments) == 0)
		return loadCommentsCmd(s.env)
	}
	return s.list.Update(msg)
}

func (s *commentsScreen) summary(c domain.Comment) string {
	return fmt.Sprintf("%s: %q", c.Author.DisplayName(), styles.Truncate(c.Content, 60))
}

func (s *commentsScreen) busy(id int64) bool {
	if _, ok := s.pending[id]; ok {
		return true
	}
	m := s.env.app.Mutations
	return m.InFlight(mutation.OpApprove, id) || m.InFlight(mutation.OpBlock, id)
}

func (s *commentsScreen) selected() (domain.Comment, bool) {
	idx, ok := s.list.Selected()
	if !ok || idx >= len(s.comments) {
		return domain.Comment{}, false
	}
	return s.comments[idx], true
}

func (s *commentsScreen) renderRow(idx int, selected bool, width int) string {
	c := s.comments[idx]

	status := styles.Pad(c.Status().String(), 9)
	statusColor := &styles.Amber
	if c.IsApproved {
		statusColor = &styles.Green
	}
	if s.busy(c.ID) {
		status = styles.Pad(styles.BusyChar, 9)
		statusColor = &styles.DimGray
	}

	post := c.PostTitle
	if post == "" && c.PostID != 0 {
		post = fmt.Sprintf("post #%d", c.PostID)
	}

	text := strings.Join(strings.Fields(c.Content), " ")
	authorWidth := 14
	postWidth := min(24, max(width/4, 8))
	textWidth := max(width-2-9-authorWidth-postWidth-6, 8)

	parts := []styles.RowPart{
		{Text: status, Foreground: statusColor},
		{Text: styles.Pad(styles.Truncate(c.Author.DisplayName(), authorWidth), authorWidth)},
		{Text: "  "},
		{Text: styles.Truncate(text, textWidth)},
		{Text: "  "},
		{Text: styles.Truncate(post, postWidth), Foreground: &styles.DimGray},
	}
	return styles.RenderListRow(parts, selected, width)
}

func (s *commentsScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
	s.list.SetSize(width, height)
}

func (s *commentsScreen) View() string {
	if s.confirm.IsVisible() {
		return lipgloss.Place(s.width, s.height,
			lipgloss.Center, lipgloss.Center,
			s.confirm.View())
	}
	return s.list.View(s.renderRow)
}

func (s *commentsScreen) Hints() []string {
	return []string{
		styles.RenderHint("a", "approve"),
		styles.RenderHint("b", "block"),
		styles.RenderHint("enter", "open post"),
		styles.RenderHint("r", "refresh"),
	}
}

func (s *commentsScreen) Capturing() bool {
	return s.confirm.IsVisible()
}
