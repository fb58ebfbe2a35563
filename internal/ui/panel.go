package ui

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/Makepad-fr/tada/internal/model"
)

// maxTitle is where long item texts get cut in printed lists.
const maxTitle = 80

// ProgressBar renders a Unicode progress bar with percentage.
func ProgressBar(done, total, width int) string {
	if total <= 0 {
		total = 1
	}
	if width < 5 {
		width = 5
	}
	filled := done * width / total
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return fmt.Sprintf("%s %3d%%", bar, done*100/total)
}

// Stats counts completed and pending items.
func Stats(items []model.Item) (done, pending int) {
	for _, it := range items {
		if it.Completed {
			done++
		} else {
			pending++
		}
	}
	return
}

// Header is the "Todos ✔ 1 • 2 Total 3" line.
func Header(items []model.Item) string {
	t := current
	d, p := Stats(items)
	return fmt.Sprintf("%s   %s %d  %s %d  %s %d",
		t.Title.Render("Todos"),
		t.Success.Render(t.SymDone), d,
		t.Pending.Render(t.SymPending), p,
		t.Accent.Render("Total"), len(items),
	)
}

// CountLine is the footer under a non-empty list; empty for no items.
func CountLine(n int) string {
	switch n {
	case 0:
		return ""
	case 1:
		return "You have 1 todo"
	default:
		return fmt.Sprintf("You have %d todos", n)
	}
}

// ItemLine renders one numbered item.
func ItemLine(index int, it model.Item) string {
	t := current
	text := it.Text
	if r := []rune(text); len(r) > maxTitle {
		text = string(r[:maxTitle-3]) + "..."
	}
	box := t.Muted.Render(t.Box(false))
	if it.Completed {
		box = t.Success.Render(t.Box(true))
		text = t.Done.Render(text)
	}
	return fmt.Sprintf("%s %s %s", t.Muted.Render(fmt.Sprintf("%2d.", index)), box, text)
}

// ListLines renders items numbered from 1, optionally grouped into
// pending and done sections. Numbers always refer to the flat order so
// they can be passed to `done` and `rm`.
func ListLines(items []model.Item, group bool) []string {
	t := current
	if len(items) == 0 {
		return []string{t.Muted.Render("no items")}
	}
	if !group {
		out := make([]string, 0, len(items))
		for i, it := range items {
			out = append(out, ItemLine(i+1, it))
		}
		return out
	}

	var pend, done []string
	for i, it := range items {
		if it.Completed {
			done = append(done, ItemLine(i+1, it))
		} else {
			pend = append(pend, ItemLine(i+1, it))
		}
	}
	section := func(title string, lines []string) []string {
		out := []string{t.Accent.Render(title)}
		if len(lines) == 0 {
			return append(out, t.Muted.Render("(none)"))
		}
		return append(out, lines...)
	}
	out := section("Pending", pend)
	out = append(out, "")
	return append(out, section("Done", done)...)
}

// Frame draws the theme's border around s.
func Frame(s string) string {
	t := current
	return lipgloss.NewStyle().
		Border(t.Border).
		BorderForeground(t.BorderColor).
		Padding(0, 1).
		Render(s)
}

// Panel prints lines in a frame to w.
func Panel(w io.Writer, lines []string) {
	fmt.Fprintln(w, Frame(strings.Join(lines, "\n")))
}
