package ui

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Makepad-fr/tada/internal/model"
)

var sample = []model.Item{
	{ID: "a", Text: "buy milk"},
	{ID: "b", Text: "walk dog", Completed: true},
	{ID: "c", Text: "call mom"},
}

func TestProgressBar(t *testing.T) {
	assert.Equal(t, "█████░░░░░  50%", ProgressBar(1, 2, 10))
	assert.Equal(t, "░░░░░   0%", ProgressBar(0, 0, 1))
	assert.True(t, strings.HasPrefix(ProgressBar(9, 3, 5), "█████ "), "bar is clamped to width")
}

func TestStats(t *testing.T) {
	done, pending := Stats(sample)
	assert.Equal(t, 1, done)
	assert.Equal(t, 2, pending)
}

func TestCountLine(t *testing.T) {
	assert.Equal(t, "", CountLine(0))
	assert.Equal(t, "You have 1 todo", CountLine(1))
	assert.Equal(t, "You have 3 todos", CountLine(3))
}

func TestListLines_Flat(t *testing.T) {
	SetTheme("mono")
	defer SetTheme("classic")

	lines := ListLines(sample, false)
	require.Len(t, lines, 3)
	assert.Equal(t, " 1. [ ] buy milk", lines[0])
	assert.Equal(t, " 2. [x] walk dog", lines[1])
}

func TestListLines_GroupKeepsFlatNumbers(t *testing.T) {
	SetTheme("mono")
	defer SetTheme("classic")

	out := strings.Join(ListLines(sample, true), "\n")
	assert.Equal(t, "Pending\n 1. [ ] buy milk\n 3. [ ] call mom\n\nDone\n 2. [x] walk dog", out)
}

func TestListLines_Empty(t *testing.T) {
	assert.Contains(t, ListLines(nil, false)[0], "no items")
}

func TestItemLine_Truncates(t *testing.T) {
	SetTheme("mono")
	defer SetTheme("classic")

	line := ItemLine(1, model.Item{Text: strings.Repeat("x", 120)})
	assert.True(t, strings.HasSuffix(line, "..."))
	assert.Less(t, len(line), 100)
}

func TestHeader(t *testing.T) {
	SetTheme("mono")
	defer SetTheme("classic")
	assert.Equal(t, "Todos   x 1  - 2  Total 3", Header(sample))
}

func TestStatusLines(t *testing.T) {
	var out, errOut bytes.Buffer
	prevOut, prevErr := Stdout, Stderr
	Stdout, Stderr = &out, &errOut
	defer func() { Stdout, Stderr = prevOut, prevErr }()

	OK("added")
	Fail("boom")
	Hint("run ls")
	assert.Contains(t, out.String(), "✔ added")
	assert.Contains(t, errOut.String(), "✖ boom")
	assert.Contains(t, errOut.String(), "Hint: run ls")
}

func TestPanel(t *testing.T) {
	var buf bytes.Buffer
	Panel(&buf, []string{"one", "two"})
	assert.Contains(t, buf.String(), "one")
	assert.Contains(t, buf.String(), "two")
	assert.Greater(t, strings.Count(buf.String(), "\n"), 2)
}
