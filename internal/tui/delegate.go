package tui

import (
	"fmt"
	"io"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/ui"
)

// row adapts model.Item to bubbles/list.Item
type row struct {
	model.Item
}

func (r row) Title() string       { return fmt.Sprintf("%s %s", ui.Current().Box(r.Completed), r.Text) }
func (r row) Description() string { return "" }
func (r row) FilterValue() string { return r.Text }

// itemDelegate renders rows on a single line.
type itemDelegate struct{}

func (d itemDelegate) Height() int                               { return 1 }
func (d itemDelegate) Spacing() int                              { return 0 }
func (d itemDelegate) Update(msg tea.Msg, m *list.Model) tea.Cmd { return nil }
func (d itemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	r, ok := item.(row)
	if !ok {
		return
	}
	t := ui.Current()

	box := t.Muted.Render(t.Box(false))
	text := r.Text
	if r.Completed {
		box = t.Success.Render(t.Box(true))
		text = t.Done.Render(text)
	}

	prefix := "  "
	if index == m.Index() {
		prefix = t.Selected.Render("> ")
	}
	fmt.Fprint(w, prefix+box+" "+text)
}
