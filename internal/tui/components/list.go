package components

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/mmcdole/quill/internal/tui/styles"
)

// Spinner frames for loading animation
var SpinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Layout constants for lists
const (
	// Border adds 1 char on each side (left+right for width, top+bottom for height)
	BorderWidth  = 2
	BorderHeight = 2

	// Scroll indicators ("↑ more" and "↓ more") each take 1 line
	ScrollIndicatorLines = 2
)

// RowRenderer draws row idx (an index into the unfiltered rows)
type RowRenderer func(idx int, selected bool, width int) string

// FilterFunc returns the indices of rows matching query, best first
type FilterFunc func(query string) []int

// List is a bordered, scrollable list of rows with an optional filter bar.
// It tracks selection and scroll position only; the owner supplies row
// count, rendering and matching.
type List struct {
	title     string
	emptyText string
	count     int

	// Selection
	cursor     int
	offset     int
	maxVisible int

	// Dimensions
	width  int
	height int

	// Loading state
	loading      bool
	spinnerFrame int
	footer       string

	// Filter state
	filter       FilterFunc
	filterActive bool
	filterInput  textinput.Model
	filterQuery  string
	filteredIdx  []int // indices into the unfiltered rows
}

// NewList creates an empty list with the given title
func NewList(title string) *List {
	ti := textinput.New()
	ti.Placeholder = "type to filter..."
	ti.Prompt = "/ "
	ti.PromptStyle = styles.FilterPromptStyle
	ti.TextStyle = styles.FilterStyle

	return &List{
		title:       title,
		emptyText:   "Nothing here yet",
		filterInput: ti,
	}
}

// SetFilter installs the matcher used by the filter bar
func (l *List) SetFilter(fn FilterFunc) {
	l.filter = fn
}

// SetEmptyText sets the message shown when there are no rows
func (l *List) SetEmptyText(text string) {
	l.emptyText = text
}

// SetFooter sets a status line rendered under the rows
func (l *List) SetFooter(text string) {
	l.footer = text
	l.recalcMaxVisible()
	l.ensureVisible()
}

// SetCount replaces the row count, keeping the cursor where possible.
// Appending rows never moves the selection.
func (l *List) SetCount(n int) {
	l.count = n
	l.loading = false
	if l.filterActive {
		l.applyFilter(false)
	}
	if c := l.ItemCount(); l.cursor >= c {
		l.cursor = max(c-1, 0)
	}
	l.ensureVisible()
}

// Update handles navigation and filter typing
func (l *List) Update(msg tea.Msg) tea.Cmd {
	keyMsg, ok := msg.(tea.KeyMsg)
	if !ok {
		return nil
	}

	// Handle filter input when typing
	if l.filterActive && l.filterInput.Focused() {
		switch {
		case key.Matches(keyMsg, ListKeys.Escape):
			l.clearFilter()
			return nil
		case key.Matches(keyMsg, ListKeys.Enter):
			// Accept filter, blur input to allow navigation
			l.filterInput.Blur()
			return nil
		case keyMsg.String() == "backspace" && l.filterInput.Value() == "":
			l.clearFilter()
			return nil
		}

		var cmd tea.Cmd
		l.filterInput, cmd = l.filterInput.Update(msg)
		l.applyFilter(true)
		return cmd
	}

	if l.filterActive {
		switch {
		case key.Matches(keyMsg, ListKeys.Escape):
			l.clearFilter()
			return nil
		case key.Matches(keyMsg, ListKeys.Filter):
			l.filterInput.Focus()
			return nil
		}
	}

	count := l.ItemCount()
	if count == 0 {
		return nil
	}

	switch {
	case key.Matches(keyMsg, ListKeys.Down):
		if l.cursor < count-1 {
			l.cursor++
			l.ensureVisible()
		}
	case key.Matches(keyMsg, ListKeys.Up):
		if l.cursor > 0 {
			l.cursor--
			l.ensureVisible()
		}
	case key.Matches(keyMsg, ListKeys.Home):
		l.cursor = 0
		l.offset = 0
	case key.Matches(keyMsg, ListKeys.End):
		l.cursor = count - 1
		l.ensureVisible()
	case key.Matches(keyMsg, ListKeys.HalfDown):
		l.cursor = min(l.cursor+l.maxVisible/2, count-1)
		l.ensureVisible()
	case key.Matches(keyMsg, ListKeys.HalfUp):
		l.cursor = max(l.cursor-l.maxVisible/2, 0)
		l.ensureVisible()
	case key.Matches(keyMsg, ListKeys.PageDown):
		l.cursor = min(l.cursor+l.maxVisible, count-1)
		l.ensureVisible()
	case key.Matches(keyMsg, ListKeys.PageUp):
		l.cursor = max(l.cursor-l.maxVisible, 0)
		l.ensureVisible()
	}
	return nil
}

// View renders the list inside a border of the configured size
func (l *List) View(render RowRenderer) string {
	style := styles.ActiveBorder
	frameW, frameH := style.GetFrameSize()

	return style.
		Width(max(l.width-frameW, 0)).
		Height(max(l.height-frameH, 0)).
		Render(l.renderContent(render))
}

// SetSize sets the outer dimensions of the list
func (l *List) SetSize(width, height int) {
	l.width = width
	l.height = height
	l.recalcMaxVisible()
	l.ensureVisible()
}

// SetLoading shows the spinner in place of the rows
func (l *List) SetLoading(loading bool) {
	l.loading = loading
}

// SetSpinnerFrame updates the spinner animation frame
func (l *List) SetSpinnerFrame(frame int) {
	l.spinnerFrame = frame
}

// Selected returns the unfiltered index of the selected row
func (l *List) Selected() (int, bool) {
	count := l.ItemCount()
	if count == 0 || l.cursor >= count {
		return 0, false
	}
	return l.mapIndex(l.cursor), true
}

// ItemCount returns the number of rows currently shown
func (l *List) ItemCount() int {
	if l.filteredIdx != nil {
		return len(l.filteredIdx)
	}
	return l.count
}

// LastVisible returns the unfiltered index of the bottom row on screen,
// or -1 when nothing is shown
func (l *List) LastVisible() int {
	count := l.ItemCount()
	if count == 0 {
		return -1
	}
	end := min(l.offset+max(l.maxVisible, 1), count)
	return l.mapIndex(end - 1)
}

// ToggleFilter activates the filter input
func (l *List) ToggleFilter() {
	if l.filter == nil {
		return
	}
	l.filterActive = true
	l.filterInput.Focus()
	l.recalcMaxVisible()
}

// IsFilterTyping returns true if the filter input has focus
func (l *List) IsFilterTyping() bool {
	return l.filterActive && l.filterInput.Focused()
}

// IsFiltering returns true if a filter is applied
func (l *List) IsFiltering() bool {
	return l.filterActive
}

// Internal methods

func (l *List) recalcMaxVisible() {
	// Interior height minus the title line and scroll indicators
	interiorHeight := l.height - BorderHeight
	l.maxVisible = interiorHeight - ScrollIndicatorLines - 1
	if l.filterActive {
		l.maxVisible--
	}
	if l.footer != "" {
		l.maxVisible--
	}
	if l.maxVisible < 1 {
		l.maxVisible = 1
	}
}

func (l *List) ensureVisible() {
	// Don't adjust offset if size hasn't been set yet
	if l.maxVisible <= 0 {
		return
	}
	if l.cursor < l.offset {
		l.offset = l.cursor
	}
	if l.cursor >= l.offset+l.maxVisible {
		l.offset = l.cursor - l.maxVisible + 1
	}
}

func (l *List) clearFilter() {
	l.filterActive = false
	l.filterQuery = ""
	l.filteredIdx = nil
	l.filterInput.SetValue("")
	l.filterInput.Blur()
	l.recalcMaxVisible()
	l.ensureVisible()
}

func (l *List) applyFilter(resetCursor bool) {
	query := l.filterInput.Value()
	l.filterQuery = query

	if query == "" || l.filter == nil {
		l.filteredIdx = nil
		return
	}

	l.filteredIdx = l.filter(query)
	if l.filteredIdx == nil {
		l.filteredIdx = []int{}
	}

	if resetCursor {
		l.cursor = 0
		l.offset = 0
	}
}

func (l *List) mapIndex(i int) int {
	if l.filteredIdx != nil && i < len(l.filteredIdx) {
		return l.filteredIdx[i]
	}
	return i
}

// Rendering

func (l *List) renderContent(render RowRenderer) string {
	itemWidth := l.width - BorderWidth
	if itemWidth < 10 {
		itemWidth = 10
	}

	titleLine := styles.AccentStyle.Render(styles.Truncate(l.title, itemWidth))

	if l.loading {
		spinner := SpinnerFrames[l.spinnerFrame%len(SpinnerFrames)]
		loadingLine := styles.DimStyle.Render(spinner + " Loading...")
		return titleLine + "\n \n" + loadingLine + "\n "
	}

	count := l.ItemCount()
	if count == 0 {
		emptyMsg := styles.DimStyle.Render(l.emptyText)
		if l.filterActive && l.filterQuery != "" {
			emptyMsg = styles.DimStyle.Render("No matches")
		}
		content := titleLine + "\n \n" + emptyMsg + "\n "
		if l.footer != "" {
			content += "\n" + l.footer
		}
		if l.filterActive {
			content += "\n" + l.renderFilterBar()
		}
		return content
	}

	end := min(l.offset+l.maxVisible, count)
	lines := make([]string, 0, end-l.offset)
	for i := l.offset; i < end; i++ {
		lines = append(lines, render(l.mapIndex(i), i == l.cursor, itemWidth))
	}

	// Always reserve the indicator lines to prevent layout shifts
	header := " "
	if l.offset > 0 {
		header = styles.DimStyle.Render("↑ more")
	}
	footer := " "
	if end < count {
		footer = styles.DimStyle.Render("↓ more")
	}

	content := titleLine + "\n" + header + "\n" + strings.Join(lines, "\n") + "\n" + footer
	if l.footer != "" {
		content += "\n" + l.footer
	}
	if l.filterActive {
		content += "\n" + l.renderFilterBar()
	}
	return content
}

func (l *List) renderFilterBar() string {
	input := l.filterInput.View()

	countStr := ""
	if l.filterQuery != "" {
		countStr = styles.DimStyle.Render(fmt.Sprintf(" [%d/%d]", l.ItemCount(), l.count))
	}
	return input + countStr
}
