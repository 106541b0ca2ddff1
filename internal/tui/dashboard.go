package tui

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/quill/internal/domain"
	"github.com/mmcdole/quill/internal/guard"
	"github.com/mmcdole/quill/internal/tui/components"
	"github.com/mmcdole/quill/internal/tui/styles"
)

// Dashboard form focus positions
const (
	focusTitle = iota
	focusContent
	focusImage
	focusCount
)

// dashboardScreen shows the account and the create-post form
type dashboardScreen struct {
	env *env

	title   *components.Field
	content textarea.Model
	image   *components.Field
	focus   int
	editing bool
	busy    bool

	contentErr string

	width  int
	height int
}

func newDashboardScreen(e *env) *dashboardScreen {
	ta := textarea.New()
	ta.Placeholder = "What's on your mind?"
	ta.ShowLineNumbers = false
	ta.CharLimit = 0
	ta.SetHeight(8)

	s := &dashboardScreen{
		env:     e,
		title:   components.NewField("title", "Title", "post title", false),
		content: ta,
		image:   components.NewField("image", "Image (optional)", "/path/to/image.png", false),
	}
	return s
}

func (s *dashboardScreen) Init() tea.Cmd {
	return nil
}

func (s *dashboardScreen) setFocus(i int) tea.Cmd {
	s.focus = i
	s.title.Input.Blur()
	s.content.Blur()
	s.image.Input.Blur()
	switch i {
	case focusTitle:
		return s.title.Input.Focus()
	case focusContent:
		return s.content.Focus()
	default:
		return s.image.Input.Focus()
	}
}

func (s *dashboardScreen) draft() domain.PostDraft {
	return domain.PostDraft{
		Title:     strings.TrimSpace(s.title.Value()),
		Content:   s.content.Value(),
		ImagePath: strings.TrimSpace(s.image.Value()),
	}
}

func (s *dashboardScreen) clearErrors() {
	s.title.Error = ""
	s.image.Error = ""
	s.contentErr = ""
}

// showError places a validation failure next to its field
func (s *dashboardScreen) showError(err error) {
	s.clearErrors()
	var ve *domain.ValidationError
	if !errors.As(err, &ve) {
		return
	}
	switch ve.Field {
	case "image":
		s.image.Error = ve.Message
	case "content":
		s.contentErr = ve.Message
	default:
		s.title.Error = ve.Message
	}
}

func (s *dashboardScreen) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case PostCreatedMsg:
		s.busy = false
		switch {
		case msg.Err == nil:
			s.clearErrors()
			s.title.Input.SetValue("")
			s.content.Reset()
			s.image.Input.SetValue("")
			s.editing = false
			s.setFocus(focusTitle)
			s.title.Input.Blur()
			return NavigateCmd(guard.Location{Route: guard.RoutePostDetail, PostID: msg.Post.ID}.Path())
		case errors.Is(msg.Err, domain.ErrValidation):
			s.showError(msg.Err)
		case errors.Is(msg.Err, context.Canceled):
		default:
			// The coordinator already reported it
			s.clearErrors()
		}
		return nil

	case tea.KeyMsg:
		return s.handleKey(msg)
	}
	return nil
}

func (s *dashboardScreen) handleKey(msg tea.KeyMsg) tea.Cmd {
	if !s.editing {
		if key.Matches(msg, Keys.Enter) || key.Matches(msg, Keys.NextField) {
			s.editing = true
			return s.setFocus(s.focus)
		}
		return nil
	}

	switch {
	case msg.String() == "esc":
		s.editing = false
		s.title.Input.Blur()
		s.content.Blur()
		s.image.Input.Blur()
		return nil
	case key.Matches(msg, Keys.Submit):
		return s.submit()
	case msg.String() == "tab":
		return s.setFocus((s.focus + 1) % focusCount)
	case msg.String() == "shift+tab":
		return s.setFocus((s.focus - 1 + focusCount) % focusCount)
	case msg.String() == "enter" && s.focus != focusContent:
		if s.focus == focusImage {
			return s.submit()
		}
		return s.setFocus(s.focus + 1)
	}

	var cmd tea.Cmd
	switch s.focus {
	case focusTitle:
		s.title.Input, cmd = s.title.Input.Update(msg)
	case focusContent:
		s.content, cmd = s.content.Update(msg)
	default:
		s.image.Input, cmd = s.image.Input.Update(msg)
	}
	return cmd
}

func (s *dashboardScreen) submit() tea.Cmd {
	if s.busy {
		return nil
	}
	draft := s.draft()
	if err := domain.ValidatePostDraft(draft); err != nil {
		s.showError(err)
		return nil
	}
	s.clearErrors()
	s.busy = true
	return createPostCmd(s.env, draft)
}

func (s *dashboardScreen) SetSize(width, height int) {
	s.width = width
	s.height = height
	w := max(min(width-24, 80), 20)
	s.title.Input.Width = w
	s.image.Input.Width = w
	s.content.SetWidth(w)
	s.content.SetHeight(max(min(height-16, 12), 3))
}

func (s *dashboardScreen) View() string {
	snap := s.env.app.Session.Snapshot()

	var user domain.User
	if snap.User != nil {
		user = *snap.User
	}

	account := styles.TitleStyle.Render("Welcome, " + user.DisplayName())
	if snap.IsStaff() {
		account += " " + styles.BadgeStyle.Render("staff")
	}
	if user.Email != "" {
		account += "\n" + styles.DimStyle.Render(user.Email)
	}
	if !snap.ExpiresAt.IsZero() {
		account += "\n" + styles.DimStyle.Render("Session expires "+snap.ExpiresAt.Local().Format("Jan 2, 15:04"))
	}

	label := func(text string, focus int) string {
		if s.editing && s.focus == focus {
			return styles.FocusedLabelStyle.Render(text)
		}
		return styles.LabelStyle.Render(text)
	}
	fieldErr := func(msg string) string {
		if msg == "" {
			return ""
		}
		return styles.FieldErrorStyle.Render(msg)
	}

	status := styles.DimStyle.Render("Create a new post")
	if s.busy {
		status = styles.DimStyle.Render("Publishing...")
	}

	form := lipgloss.JoinVertical(lipgloss.Left,
		styles.AccentStyle.Render("New Post")+"  "+status,
		"",
		label("Title", focusTitle)+s.title.Input.View(),
		fieldErr(s.title.Error),
		lipgloss.JoinHorizontal(lipgloss.Top, label("Content", focusContent), s.content.View()),
		fieldErr(s.contentErr),
		label("Image (optional)", focusImage)+s.image.Input.View(),
		fieldErr(s.image.Error),
	)

	return styles.FormStyle.Render(lipgloss.JoinVertical(lipgloss.Left, account, "", form))
}

func (s *dashboardScreen) Hints() []string {
	if s.editing {
		return []string{
			styles.RenderHint("tab", "next field"),
			styles.RenderHint("C-s", "publish"),
			styles.RenderHint("esc", "menu"),
		}
	}
	return []string{styles.RenderHint("enter", "new post")}
}

func (s *dashboardScreen) Capturing() bool {
	return s.editing
}
