package tui

import (
	"context"
	"errors"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/quill/internal/domain"
	"github.com/mmcdole/quill/internal/guard"
	"github.com/mmcdole/quill/internal/session"
	"github.com/mmcdole/quill/internal/tui/components"
	"github.com/mmcdole/quill/internal/tui/styles"
)

// formScreen is the shared shell of the login and register screens: a form
// that owns the keyboard while editing, and esc to hand it back.
type formScreen struct {
	env     *env
	title   string
	form    *components.Form
	editing bool
	busy    bool

	width  int
	height int
}

func newFormScreen(e *env, title string, fields ...*components.Field) formScreen {
	return formScreen{env: e, title: title, form: components.NewForm(fields...), editing: true}
}

// handleKey moves focus and reports whether the form should be submitted
func (f *formScreen) handleKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if !f.editing {
		if key.Matches(msg, Keys.Enter) || key.Matches(msg, Keys.NextField) {
			f.editing = true
			f.form.Focused().Input.Focus()
		}
		return nil, false
	}

	switch {
	case msg.String() == "esc":
		f.editing = false
		f.form.Focused().Input.Blur()
		return nil, false
	case key.Matches(msg, Keys.Submit):
		return nil, true
	case key.Matches(msg, Keys.Enter):
		if f.form.OnLast() {
			return nil, true
		}
		f.form.Next()
		return nil, false
	case key.Matches(msg, Keys.NextField):
		f.form.Next()
		return nil, false
	case key.Matches(msg, Keys.PrevField):
		f.form.Prev()
		return nil, false
	}
	return f.form.Update(msg), false
}

// applyError shows field errors inline and anything else as a notice
func (f *formScreen) applyError(err error, fallback string) {
	var fe domain.FieldErrors
	if errors.As(err, &fe) {
		f.form.SetErrors(fe)
		return
	}
	f.form.SetErrors(nil)
	if errors.Is(err, context.Canceled) {
		return
	}
	f.env.app.Notices.Error(domain.UserMessage(err, fallback))
}

func (f *formScreen) SetSize(width, height int) {
	f.width = width
	f.height = height
}

func (f *formScreen) Capturing() bool {
	return f.editing
}

func (f *formScreen) render(footer string) string {
	body := lipgloss.JoinVertical(lipgloss.Left,
		styles.ModalTitleStyle.Render(f.title),
		f.form.View(),
		footer,
	)
	return lipgloss.Place(f.width, f.height,
		lipgloss.Center, lipgloss.Center,
		styles.InactiveBorder.Render(styles.FormStyle.Render(body)))
}

func (f *formScreen) hints() []string {
	if f.editing {
		return []string{
			styles.RenderHint("tab", "next field"),
			styles.RenderHint("enter", "submit"),
			styles.RenderHint("esc", "menu"),
		}
	}
	return []string{styles.RenderHint("enter", "edit")}
}

// loginScreen exchanges a username and password for a session
type loginScreen struct {
	formScreen
}

func newLoginScreen(e *env) *loginScreen {
	return &loginScreen{newFormScreen(e, "Log In",
		components.NewField("username", "Username", "your username", false),
		components.NewField("password", "Password", "your password", true),
	)}
}

func (s *loginScreen) Init() tea.Cmd {
	return nil
}

func (s *loginScreen) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case LoginDoneMsg:
		s.busy = false
		if msg.Err != nil {
			s.form.Field("password").Input.SetValue("")
			s.applyError(msg.Err, "Login failed. Invalid credentials.")
		}
		// Success is handled by the route guard once the session changes
		return nil

	case tea.KeyMsg:
		cmd, submit := s.handleKey(msg)
		if !submit || s.busy {
			return cmd
		}
		username := s.form.Field("username").Value()
		password := s.form.Field("password").Value()
		if err := domain.ValidateLogin(username, password); err != nil {
			s.applyError(err, "")
			return nil
		}
		s.form.SetErrors(nil)
		s.busy = true
		return loginCmd(s.env, username, password)
	}
	return nil
}

func (s *loginScreen) View() string {
	footer := styles.DimStyle.Render("No account? Press esc, then 3 to register.")
	if s.busy {
		footer = styles.DimStyle.Render("Logging in...")
	}
	return s.render(footer)
}

func (s *loginScreen) Hints() []string {
	return s.hints()
}

// registerScreen creates an account and sends the user to log in
type registerScreen struct {
	formScreen
}

func newRegisterScreen(e *env) *registerScreen {
	s := &registerScreen{newFormScreen(e, "Create Account",
		components.NewField("username", "Username", "letters, numbers, underscores", false),
		components.NewField("email", "Email", "you@example.com", false),
		components.NewField("password", "Password", "8+ chars, upper, lower, digit", true),
		components.NewField("confirm_password", "Confirm Password", "repeat password", true),
	)}
	return s
}

func (s *registerScreen) Init() tea.Cmd {
	return nil
}

func (s *registerScreen) registration() domain.Registration {
	return domain.Registration{
		Username:        s.form.Field("username").Value(),
		Email:           s.form.Field("email").Value(),
		Password:        s.form.Field("password").Value(),
		ConfirmPassword: s.form.Field("confirm_password").Value(),
	}
}

func (s *registerScreen) Update(msg tea.Msg) tea.Cmd {
	switch msg := msg.(type) {
	case RegisterDoneMsg:
		s.busy = false
		if msg.Err != nil {
			s.applyError(msg.Err, "Registration failed. Please try again.")
			return nil
		}
		s.env.app.Notices.Success("Registration successful! Please log in.")
		return NavigateCmd(string(guard.RouteLogin))

	case tea.KeyMsg:
		cmd, submit := s.handleKey(msg)
		s.updateStrength()
		if !submit || s.busy {
			return cmd
		}
		reg := s.registration()
		if errs := domain.ValidateRegistration(reg); len(errs) > 0 {
			s.form.SetErrors(errs)
			return nil
		}
		s.form.SetErrors(nil)
		s.busy = true
		return registerCmd(s.env, reg)
	}
	return nil
}

// updateStrength shows the password grade under the password field
func (s *registerScreen) updateStrength() {
	field := s.form.Field("password")
	if strength := session.PasswordStrength(field.Value()); strength != domain.StrengthNone {
		field.Note = "Strength: " + strength.String()
	} else {
		field.Note = ""
	}
}

func (s *registerScreen) View() string {
	footer := styles.DimStyle.Render("Already registered? Press esc, then 2 to log in.")
	if s.busy {
		footer = styles.DimStyle.Render("Creating account...")
	}
	return s.render(footer)
}

func (s *registerScreen) Hints() []string {
	return s.hints()
}
