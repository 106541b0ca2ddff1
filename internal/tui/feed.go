package tui

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/quill/internal/cache"
	"github.com/mmcdole/quill/internal/content"
	"github.com/mmcdole/quill/internal/domain"
	"github.com/mmcdole/quill/internal/feed"
	"github.com/mmcdole/quill/internal/guard"
	"github.com/mmcdole/quill/internal/mutation"
	"github.com/mmcdole/quill/internal/search"
	"github.com/mmcdole/quill/internal/tui/components"
	"github.com/mmcdole/quill/internal/tui/styles"
)

// previewHeight is the excerpt pane under the list
const previewHeight = 4

// feedScreen lists posts page by page. In admin mode rows can be deleted
// instead of reacted to.
type feedScreen struct {
	env    *env
	admin  bool
	userID int64

	ctrl  *feed.Controller
	items []domain.Post
	list  *components.List

	// Writes dispatched from this screen that have not reported back
	pending      map[int64]mutation.Op
	needsRefresh bool
	confirm      components.ConfirmModal

	width        int
	height       int
	spinnerFrame int
}

func newFeedScreen(e *env, title string, admin bool) *feedScreen {
	s := &feedScreen{
		env:     e,
		admin:   admin,
		userID:  e.app.Session.Snapshot().UserID(),
		ctrl:    e.app.Content.NewFeed(),
		list:    components.NewList(title),
		pending: make(map[int64]mutation.Op),
		confirm: components.NewConfirmModal(),
	}
	s.list.SetEmptyText("No posts yet")
	s.list.SetFilter(s.filter)
	return s
}

func (s *feedScreen) Init() tea.Cmd {
	req, ok := s.ctrl.Start()
	if !ok {
		return nil
	}
	s.list.SetLoading(true)
	return feedRunCmd(s.env, s.ctrl, req)
}

// filter maps fuzzy matches back to row indices
func (s *feedScreen) filter(query string) []int {
	pos := make(map[int64]int, len(s.items))
	for i, p := range s.items {
		pos[p.ID] = i
	}
	results := search.FilterPosts(query, s.items)
	out := make([]int, len(results))
	for i, r := range results {
		out[i] = pos[r.Post.ID]
	}
	return out
}

// sync copies the controller's state into the list and checks whether the
// new layout calls for another page
func (s *feedScreen) sync() tea.Cmd {
	s.items = s.ctrl.Items()
	s.list.SetCount(len(s.items))
	s.list.SetLoading(s.ctrl.State() == feed.StateLoadingFirst)
	s.list.SetFooter(s.statusLine())
	return s.evaluate()
}

func (s *feedScreen) evaluate() tea.Cmd {
	if s.list.IsFiltering() {
		return nil
	}
	req, ok := s.ctrl.Evaluate(s.list.LastVisible())
	if !ok {
		return nil
	}
	s.list.SetFooter(s.statusLine())
	return feedRunCmd(s.env, s.ctrl, req)
}

func (s *feedScreen) statusLine() string {
	switch s.ctrl.State() {
	case feed.StateLoadingNext:
		spinner := components.SpinnerFrames[s.spinnerFrame%len(components.SpinnerFrames)]
		return styles.SpinnerStyle.Render(spinner) + styles.DimStyle.Render(" Loading more...")
	case feed.StateError:
		msg := domain.UserMessage(s.ctrl.Err(), "Failed to load posts.")
		return styles.ErrorStyle.Render(msg) + "  " + styles.RenderHint("R", "retry")
	case feed.StateReady:
		if !s.ctrl.HasNext() && len(s.items) > 0 {
			return styles.DimStyle.Render(fmt.Sprintf("%d posts, end of list", len(s.items)))
		}
	}
	return ""
}

func (s *feedScreen) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case TickMsg:
		s.spinnerFrame++
		s.list.SetSpinnerFrame(s.spinnerFrame)
		if s.ctrl.State() == feed.StateLoadingNext {
			s.list.SetFooter(s.statusLine())
		}
		return nil

	case FeedLoadedMsg:
		if msg.Err != nil && !errors.Is(msg.Err, cache.ErrDiscarded) && !errors.Is(msg.Err, context.Canceled) {
			s.env.app.Logger.Debug("feed update failed", "error", msg.Err)
		}
		cmd := s.sync()
		if s.needsRefresh && s.ctrl.State() == feed.StateReady {
			s.needsRefresh = false
			return tea.Batch(cmd, feedRefreshCmd(s.env, s.ctrl))
		}
		return cmd

	case tea.WindowSizeMsg:
		return s.evaluate()

	case MutationDoneMsg:
		delete(s.pending, msg.ID)
		if s.ctrl.State() != feed.StateReady {
			s.needsRefresh = true
			return nil
		}
		return feedRefreshCmd(s.env, s.ctrl)

	case tea.KeyMsg:
		return s.handleKey(msg)
	}
	return nil
}

func (s *feedScreen) handleKey(msg tea.KeyMsg) tea.Cmd {
	if s.confirm.IsVisible() {
		var ok bool
		s.confirm, ok = s.confirm.Update(msg)
		if !ok {
			return nil
		}
		id := s.confirm.Target()
		s.pending[id] = mutation.OpDeletePost
		return mutateCmd(s.env, mutation.OpDeletePost, id)
	}

	if s.list.IsFilterTyping() {
		return s.list.Update(msg)
	}

	switch {
	case key.Matches(msg, Keys.Filter):
		s.list.ToggleFilter()
		return nil
	case key.Matches(msg, Keys.Enter):
		if p, ok := s.selected(); ok {
			return NavigateCmd(guard.Location{Route: guard.RoutePostDetail, PostID: p.ID}.Path())
		}
		return nil
	case !s.admin && key.Matches(msg, Keys.Like):
		return s.react(mutation.OpLike)
	case !s.admin && key.Matches(msg, Keys.Unlike):
		return s.react(mutation.OpUnlike)
	case s.admin && key.Matches(msg, Keys.Delete):
		if p, ok := s.selected(); ok && !s.busy(p.ID) {
			s.confirm.Show("Delete Post?", styles.Truncate(p.Title, 40), p.ID)
		}
		return nil
	case key.Matches(msg, Keys.Refresh):
		s.env.app.Cache.InvalidatePrefix(content.PrefixPosts)
		return feedRefreshCmd(s.env, s.ctrl)
	case key.Matches(msg, Keys.Retry):
		if req, ok := s.ctrl.Retry(); ok {
			s.list.SetLoading(s.ctrl.State() == feed.StateLoadingFirst)
			s.list.SetFooter(s.statusLine())
			return feedRunCmd(s.env, s.ctrl, req)
		}
		return nil
	}

	cmd := s.list.Update(msg)
	return tea.Batch(cmd, s.evaluate())
}

// react likes or unlikes the selected post unless a write for it is
// already running
func (s *feedScreen) react(op mutation.Op) tea.Cmd {
	p, ok := s.selected()
	if !ok || s.busy(p.ID) {
		return nil
	}
	s.pending[p.ID] = op
	return mutateCmd(s.env, op, p.ID)
}

func (s *feedScreen) busy(id int64) bool {
	if _, ok := s.pending[id]; ok {
		return true
	}
	m := s.env.app.Mutations
	return m.InFlight(mutation.OpLike, id) || m.InFlight(mutation.OpUnlike, id) || m.InFlight(mutation.OpDeletePost, id)
}

func (s *feedScreen) selected() (domain.Post, bool) {
	idx, ok := s.list.Selected()
	if !ok || idx >= len(s.items) {
		return domain.Post{}, false
	}
	return s.items[idx], true
}

func (s *feedScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
	s.list.SetSize(width, max(height-previewHeight, 5))
}

func (s *feedScreen) View() string {
	view := lipgloss.JoinVertical(lipgloss.Left,
		s.list.View(s.renderRow),
		s.renderPreview(),
	)
	if s.confirm.IsVisible() {
		view = lipgloss.Place(s.width, s.height,
			lipgloss.Center, lipgloss.Center,
			s.confirm.View())
	}
	return view
}

func (s *feedScreen) renderRow(idx int, selected bool, width int) string {
	p := s.items[idx]

	marker := "  "
	var markerColor *lipgloss.Color
	switch {
	case s.busy(p.ID):
		marker = styles.BusyChar + " "
		markerColor = &styles.DimGray
	case p.ReactionOf(s.userID) == domain.ReactionLiked:
		marker = styles.LikedChar + " "
		markerColor = &styles.Green
	case p.ReactionOf(s.userID) == domain.ReactionUnliked:
		marker = styles.UnlikedChar + " "
		markerColor = &styles.Red
	}

	meta := fmt.Sprintf("%s%d %s%d  %s  %s",
		styles.LikedChar, p.LikesCount, styles.UnlikedChar, p.UnlikesCount,
		styles.Truncate(p.Author.DisplayName(), 14), p.CreatedAt.Format("Jan 2, 2006"))

	titleWidth := max(width-2-lipgloss.Width(marker)-lipgloss.Width(meta)-2, 8)
	title := styles.Pad(styles.Truncate(p.Title, titleWidth), titleWidth)

	parts := []styles.RowPart{
		{Text: marker, Foreground: markerColor},
		{Text: title},
		{Text: "  "},
		{Text: meta, Foreground: &styles.DimGray},
	}
	return styles.RenderListRow(parts, selected, width)
}

func (s *feedScreen) renderPreview() string {
	p, ok := s.selected()
	if !ok {
		return lipgloss.NewStyle().Height(previewHeight).Render("")
	}
	excerpt := p.Excerpt(s.env.app.Config.UI.ExcerptLength)
	return lipgloss.NewStyle().
		Width(s.width).
		Height(previewHeight).
		MaxHeight(previewHeight).
		Padding(0, 1).
		Render(styles.TitleStyle.Render(p.Title) + "\n" + styles.SubtitleStyle.Render(excerpt))
}

func (s *feedScreen) Hints() []string {
	hints := []string{styles.RenderHint("enter", "open")}
	if s.admin {
		hints = append(hints, styles.RenderHint("x", "delete"))
	} else {
		hints = append(hints, styles.RenderHint("l", "like"), styles.RenderHint("u", "unlike"))
	}
	return append(hints, styles.RenderHint("/", "filter"), styles.RenderHint("r", "refresh"))
}

func (s *feedScreen) Capturing() bool {
	return s.confirm.IsVisible() || s.list.IsFilterTyping()
}
