package components

import (
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/mmcdole/quill/internal/tui/styles"
)

// Field is one labelled text input with an inline error line
type Field struct {
	Name  string
	Label string
	Input textinput.Model
	Error string
	Note  string // rendered under the input when there is no error
}

// NewField creates a field. Secret fields mask their input.
func NewField(name, label, placeholder string, secret bool) *Field {
	ti := textinput.New()
	ti.Placeholder = placeholder
	ti.Prompt = ""
	ti.CharLimit = 256
	ti.Width = 40
	ti.TextStyle = lipgloss.NewStyle().Foreground(styles.White)
	ti.PlaceholderStyle = styles.DimStyle
	if secret {
		ti.EchoMode = textinput.EchoPassword
		ti.EchoCharacter = '•'
	}
	return &Field{Name: name, Label: label, Input: ti}
}

// Value returns the field's current text
func (f *Field) Value() string {
	return f.Input.Value()
}

// Form is an ordered set of fields with one focused at a time
type Form struct {
	Fields []*Field
	focus  int
}

// NewForm creates a form and focuses its first field
func NewForm(fields ...*Field) *Form {
	f := &Form{Fields: fields}
	f.setFocus(0)
	return f
}

// Focused returns the focused field
func (f *Form) Focused() *Field {
	return f.Fields[f.focus]
}

// OnLast reports whether the last field has focus
func (f *Form) OnLast() bool {
	return f.focus == len(f.Fields)-1
}

// Next moves focus forward, wrapping around
func (f *Form) Next() {
	f.setFocus((f.focus + 1) % len(f.Fields))
}

// Prev moves focus backward, wrapping around
func (f *Form) Prev() {
	f.setFocus((f.focus - 1 + len(f.Fields)) % len(f.Fields))
}

func (f *Form) setFocus(i int) {
	for j, field := range f.Fields {
		if j == i {
			field.Input.Focus()
		} else {
			field.Input.Blur()
		}
	}
	f.focus = i
}

// Field returns the field with the given name, or nil
func (f *Form) Field(name string) *Field {
	for _, field := range f.Fields {
		if field.Name == name {
			return field
		}
	}
	return nil
}

// SetErrors replaces every field's error from a name → message map
func (f *Form) SetErrors(errs map[string]string) {
	for _, field := range f.Fields {
		field.Error = errs[field.Name]
	}
}

// Reset clears values and errors and focuses the first field
func (f *Form) Reset() {
	for _, field := range f.Fields {
		field.Input.SetValue("")
		field.Error = ""
	}
	f.setFocus(0)
}

// Update routes input to the focused field
func (f *Form) Update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	field := f.Focused()
	field.Input, cmd = field.Input.Update(msg)
	return cmd
}

// View renders each field as label, input and error line
func (f *Form) View() string {
	var b strings.Builder
	for i, field := range f.Fields {
		label := styles.LabelStyle.Render(field.Label)
		if i == f.focus {
			label = styles.FocusedLabelStyle.Render(field.Label)
		}
		b.WriteString(label + field.Input.View() + "\n")
		switch {
		case field.Error != "":
			b.WriteString(styles.FieldErrorStyle.Render(field.Error) + "\n")
		case field.Note != "":
			b.WriteString(styles.DimStyle.PaddingLeft(18).Render(field.Note) + "\n")
		default:
			b.WriteString("\n")
		}
	}
	return b.String()
}
