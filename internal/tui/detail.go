package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/quill/internal/cache"
	"github.com/mmcdole/quill/internal/content"
	"github.com/mmcdole/quill/internal/domain"
	"github.com/mmcdole/quill/internal/guard"
	"github.com/mmcdole/quill/internal/mutation"
	"github.com/mmcdole/quill/internal/tui/components"
	"github.com/mmcdole/quill/internal/tui/styles"
)

const (
	detailHeaderHeight = 4
	composerHeight     = 5
)

// detailScreen shows one post with its approved comments and a comment box
type detailScreen struct {
	env    *env
	postID int64
	userID int64

	post    *domain.Post
	err     error
	loading bool

	body       viewport.Model
	composer   textarea.Model
	composing  bool
	commentErr string
	pending    map[mutation.Op]bool

	width        int
	height       int
	spinnerFrame int
}

func newDetailScreen(e *env, postID int64) *detailScreen {
	ta := textarea.New()
	ta.Placeholder = "Write a comment..."
	ta.CharLimit = domain.MaxCommentLength + 50
	ta.ShowLineNumbers = false
	ta.SetHeight(composerHeight - 2)

	return &detailScreen{
		env:      e,
		postID:   postID,
		userID:   e.app.Session.Snapshot().UserID(),
		body:     viewport.New(0, 0),
		composer: ta,
		pending:  make(map[mutation.Op]bool),
	}
}

func (s *detailScreen) Init() tea.Cmd {
	s.loading = true
	return loadPostCmd(s.env, s.postID)
}

func (s *detailScreen) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case TickMsg:
		s.spinnerFrame++
		return nil

	case PostLoadedMsg:
		s.loading = false
		if msg.Err != nil {
			if errors.Is(msg.Err, cache.ErrDiscarded) || errors.Is(msg.Err, context.Canceled) {
				return nil
			}
			s.err = msg.Err
			return nil
		}
		s.err = nil
		s.post = msg.Post
		s.renderBody()
		return nil

	case MutationDoneMsg:
		delete(s.pending, msg.Op)
		if msg.Op == mutation.OpComment {
			switch {
			case msg.Err == nil:
				s.composer.Reset()
				s.composer.Blur()
				s.composing = false
				s.commentErr = ""
			case errors.Is(msg.Err, domain.ErrValidation):
				s.commentErr = domain.UserMessage(msg.Err, "Comment is not valid.")
			}
		}
		return loadPostCmd(s.env, s.postID)

	case tea.KeyMsg:
		if s.composing {
			return s.handleComposerKey(msg)
		}
		return s.handleKey(msg)
	}
	return nil
}

func (s *detailScreen) handleKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case key.Matches(msg, Keys.Back):
		return NavigateCmd(string(guard.RoutePosts))
	case key.Matches(msg, Keys.Like):
		return s.react(mutation.OpLike)
	case key.Matches(msg, Keys.Unlike):
		return s.react(mutation.OpUnlike)
	case key.Matches(msg, Keys.Comment):
		if s.post == nil {
			return nil
		}
		s.composing = true
		s.layout()
		return s.composer.Focus()
	case key.Matches(msg, Keys.Refresh), key.Matches(msg, Keys.Retry):
		s.env.app.Cache.Invalidate(content.PostKey(s.postID))
		s.loading = s.post == nil
		return loadPostCmd(s.env, s.postID)
	}

	var cmd tea.Cmd
	s.body, cmd = s.body.Update(msg)
	return cmd
}

func (s *detailScreen) handleComposerKey(msg tea.KeyMsg) tea.Cmd {
	switch {
	case msg.String() == "esc":
		s.composing = false
		s.composer.Blur()
		s.layout()
		return nil
	case key.Matches(msg, Keys.Submit):
		if s.pending[mutation.OpComment] {
			return nil
		}
		text := s.composer.Value()
		if err := domain.ValidateComment(text); err != nil {
			s.commentErr = domain.UserMessage(err, "Comment is not valid.")
			return nil
		}
		s.commentErr = ""
		s.pending[mutation.OpComment] = true
		return createCommentCmd(s.env, s.postID, text)
	}

	var cmd tea.Cmd
	s.composer, cmd = s.composer.Update(msg)
	if s.commentErr != "" && domain.ValidateComment(s.composer.Value()) == nil {
		s.commentErr = ""
	}
	return cmd
}

// react likes or unlikes the post; the control is inert while either
// reaction is running
func (s *detailScreen) react(op mutation.Op) tea.Cmd {
	if s.post == nil || s.reacting() {
		return nil
	}
	s.pending[op] = true
	return mutateCmd(s.env, op, s.postID)
}

func (s *detailScreen) reacting() bool {
	m := s.env.app.Mutations
	return s.pending[mutation.OpLike] || s.pending[mutation.OpUnlike] ||
		m.InFlight(mutation.OpLike, s.postID) || m.InFlight(mutation.OpUnlike, s.postID)
}

func (s *detailScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
	s.composer.SetWidth(max(width-4, 10))
	s.layout()
}

func (s *detailScreen) layout() {
	h := s.height - detailHeaderHeight
	if s.composing {
		h -= composerHeight + 1
	} else {
		h--
	}
	s.body.Width = max(s.width-2, 10)
	s.body.Height = max(h, 3)
	s.renderBody()
}

// renderBody fills the viewport with the post content and approved comments
func (s *detailScreen) renderBody() {
	if s.post == nil {
		return
	}
	wrap := lipgloss.NewStyle().Width(max(s.body.Width-1, 10))

	var b strings.Builder
	b.WriteString(wrap.Render(s.post.Content))
	if s.post.Image != "" {
		b.WriteString("\n\n" + styles.DimStyle.Render("Image: "+s.post.Image))
	}

	comments := s.post.ApprovedComments()
	b.WriteString("\n\n" + styles.AccentStyle.Render(fmt.Sprintf("Comments (%d)", len(comments))) + "\n")
	if len(comments) == 0 {
		b.WriteString(styles.DimStyle.Render("No comments yet. Be the first!") + "\n")
	}
	for _, c := range comments {
		b.WriteString("\n" + styles.SubtitleStyle.Render(c.Author.DisplayName()) +
			styles.DimStyle.Render(" · "+c.CreatedAt.Format("Jan 2, 2006 15:04")) + "\n")
		b.WriteString(wrap.Render(c.Content) + "\n")
	}
	s.body.SetContent(b.String())
}

func (s *detailScreen) View() string {
	if s.post == nil {
		var line string
		switch {
		case s.loading:
			spinner := components.SpinnerFrames[s.spinnerFrame%len(components.SpinnerFrames)]
			line = styles.SpinnerStyle.Render(spinner) + styles.DimStyle.Render(" Loading post...")
		case s.err != nil:
			line = styles.ErrorStyle.Render(domain.UserMessage(s.err, "Failed to load post.")) +
				"  " + styles.RenderHint("R", "retry")
		}
		return lipgloss.Place(s.width, s.height, lipgloss.Center, lipgloss.Center, line)
	}

	p := s.post
	reaction := ""
	switch {
	case s.reacting():
		reaction = styles.DimStyle.Render(styles.BusyChar + " updating")
	case p.LikedBy(s.userID):
		reaction = styles.SuccessStyle.Render("You liked this")
	case p.UnlikedBy(s.userID):
		reaction = styles.ErrorStyle.Render("You unliked this")
	}

	header := lipgloss.JoinVertical(lipgloss.Left,
		styles.TitleStyle.Render(styles.Truncate(p.Title, max(s.width-2, 10))),
		styles.DimStyle.Render(fmt.Sprintf("by %s · %s · %d reads",
			p.Author.DisplayName(), p.CreatedAt.Format("January 2, 2006"), p.ReadCount)),
		fmt.Sprintf("%s %d   %s %d   %s",
			styles.SuccessStyle.Render(styles.LikedChar), p.LikesCount,
			styles.ErrorStyle.Render(styles.UnlikedChar), p.UnlikesCount, reaction),
		"",
	)

	parts := []string{header, s.body.View()}
	if s.composing {
		parts = append(parts, s.renderComposer())
	} else {
		parts = append(parts, styles.DimStyle.Render(fmt.Sprintf("%d%% · ", int(s.body.ScrollPercent()*100)))+
			styles.RenderHint("c", "comment"))
	}

	return lipgloss.NewStyle().Padding(0, 1).Render(lipgloss.JoinVertical(lipgloss.Left, parts...))
}

func (s *detailScreen) renderComposer() string {
	n := utf8.RuneCountInString(s.composer.Value())
	count := fmt.Sprintf("%d/%d", n, domain.MaxCommentLength)
	status := styles.DimStyle.Render(count)
	if n > domain.MaxCommentLength {
		status = styles.ErrorStyle.Render(count)
	}
	if s.pending[mutation.OpComment] {
		status += styles.DimStyle.Render("  submitting...")
	}
	if s.commentErr != "" {
		status += "  " + styles.ErrorStyle.Render(s.commentErr)
	}
	return styles.ActiveBorder.Render(s.composer.View()) + "\n" + status
}

func (s *detailScreen) Hints() []string {
	if s.composing {
		return []string{styles.RenderHint("C-s", "submit"), styles.RenderHint("esc", "cancel")}
	}
	return []string{
		styles.RenderHint("l", "like"),
		styles.RenderHint("u", "unlike"),
		styles.RenderHint("c", "comment"),
		styles.RenderHint("esc", "back"),
	}
}

func (s *detailScreen) Capturing() bool {
	return s.composing
}
