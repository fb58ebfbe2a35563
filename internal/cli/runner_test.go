package cli

import (
	"bytes"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"

	"github.com/Makepad-fr/tada/internal/config"
	"github.com/Makepad-fr/tada/internal/logging"
	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/ui"
)

type output struct {
	out, err bytes.Buffer
}

// setup points ui output at buffers and returns a file-backed config.
func setup(t *testing.T) (*config.Config, *output) {
	t.Helper()
	o := &output{}
	prevOut, prevErr, prevTTY := ui.Stdout, ui.Stderr, interactive
	ui.Stdout, ui.Stderr = &o.out, &o.err
	interactive = func() bool { return false }
	t.Cleanup(func() {
		ui.Stdout, ui.Stderr, interactive = prevOut, prevErr, prevTTY
	})

	cfg := &config.Config{
		Backend:        config.BackendFile,
		DataFile:       filepath.Join(t.TempDir(), "todos.json"),
		Collection:     config.DefaultCollection,
		TimeoutSeconds: 5,
		Theme:          "mono",
		LogLevel:       "error",
		Plain:          true,
	}
	return cfg, o
}

func (o *output) reset() {
	o.out.Reset()
	o.err.Reset()
}

func exportJSON(t *testing.T, cfg *config.Config, o *output) []model.Item {
	t.Helper()
	o.reset()
	require.Equal(t, 0, Run([]string{"export"}, cfg), o.err.String())
	var items []model.Item
	require.NoError(t, json.Unmarshal(o.out.Bytes(), &items))
	return items
}

func TestRun_AddAndList(t *testing.T) {
	cfg, o := setup(t)

	require.Equal(t, 0, Run([]string{"add", "Buy", "milk"}, cfg), o.err.String())
	assert.Contains(t, o.out.String(), "added")
	require.Equal(t, 0, Run([]string{"add", "  walk the dog  "}, cfg))

	o.reset()
	require.Equal(t, 0, Run([]string{"ls"}, cfg), o.err.String())
	out := o.out.String()
	assert.Contains(t, out, "Buy milk")
	assert.Contains(t, out, "walk the dog")
	assert.Contains(t, out, "You have 2 todos")

	items := exportJSON(t, cfg, o)
	require.Len(t, items, 2)
	assert.Equal(t, "Buy milk", items[0].Text)
	assert.Equal(t, "walk the dog", items[1].Text, "text is trimmed")
	assert.False(t, items[0].Completed)
}

func TestRun_ListEmpty(t *testing.T) {
	cfg, o := setup(t)
	require.Equal(t, 0, Run([]string{"ls"}, cfg))
	assert.Contains(t, o.out.String(), "no items")
	assert.NotContains(t, o.out.String(), "You have")
}

func TestRun_DoneToggles(t *testing.T) {
	cfg, o := setup(t)
	require.Equal(t, 0, Run([]string{"add", "one"}, cfg))
	require.Equal(t, 0, Run([]string{"add", "two"}, cfg))

	require.Equal(t, 0, Run([]string{"done", "2"}, cfg), o.err.String())
	items := exportJSON(t, cfg, o)
	assert.False(t, items[0].Completed)
	assert.True(t, items[1].Completed)

	require.Equal(t, 0, Run([]string{"done", "2"}, cfg))
	items = exportJSON(t, cfg, o)
	assert.False(t, items[1].Completed, "second toggle flips back")
}

func TestRun_Remove(t *testing.T) {
	cfg, o := setup(t)
	require.Equal(t, 0, Run([]string{"add", "one"}, cfg))
	require.Equal(t, 0, Run([]string{"add", "two"}, cfg))

	require.Equal(t, 0, Run([]string{"rm", "1"}, cfg), o.err.String())
	items := exportJSON(t, cfg, o)
	require.Len(t, items, 1)
	assert.Equal(t, "two", items[0].Text)
}

func TestRun_ExportYAML(t *testing.T) {
	cfg, o := setup(t)
	require.Equal(t, 0, Run([]string{"add", "one"}, cfg))

	o.reset()
	require.Equal(t, 0, Run([]string{"export", "yaml"}, cfg))
	var items []model.Item
	require.NoError(t, yaml.Unmarshal(o.out.Bytes(), &items))
	require.Len(t, items, 1)
	assert.Equal(t, "one", items[0].Text)
	assert.NotEmpty(t, items[0].ID)
}

func TestRun_UsageErrors(t *testing.T) {
	cfg, _ := setup(t)
	require.Equal(t, 0, Run([]string{"add", "one"}, cfg))

	tests := []struct {
		name string
		args []string
	}{
		{"no args", nil},
		{"unknown subcommand", []string{"frobnicate"}},
		{"add without text", []string{"add"}},
		{"add blank text", []string{"add", "   "}},
		{"done without index", []string{"done"}},
		{"done not a number", []string{"done", "x"}},
		{"done out of range", []string{"done", "5"}},
		{"rm zero", []string{"rm", "0"}},
		{"export bad format", []string{"export", "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, 2, Run(tt.args, cfg))
		})
	}
}

func TestRun_ServeRejectsRemote(t *testing.T) {
	cfg, o := setup(t)
	cfg.Backend = config.BackendRemote
	cfg.Remote = "http://127.0.0.1:1"
	assert.Equal(t, 2, Run([]string{"serve"}, cfg))
	assert.Contains(t, o.err.String(), "local backend")
}

func TestRun_Help(t *testing.T) {
	cfg, o := setup(t)
	assert.Equal(t, 0, Run([]string{"help"}, cfg))
	assert.Contains(t, o.out.String(), "Usage:")
}

func TestRun_MemoryBackendStartsEmpty(t *testing.T) {
	cfg, o := setup(t)
	cfg.Backend = config.BackendMemory
	require.Equal(t, 0, Run([]string{"add", "gone"}, cfg))
	assert.Empty(t, exportJSON(t, cfg, o), "each run gets a fresh memory store")
}

func TestFaultRelay_LogsAndQueues(t *testing.T) {
	var logs bytes.Buffer
	relay := newFaultRelay(logging.New(&logs, "error"))

	relay.report(errors.New("subscription todos: connection reset"))
	relay.report(nil)

	select {
	case err := <-relay.ch:
		assert.EqualError(t, err, "subscription todos: connection reset")
	default:
		t.Fatal("fault was not queued")
	}
	assert.Empty(t, relay.ch)
	assert.Contains(t, logs.String(), "connection reset")
}

func TestFaultRelay_FullQueueOnlyLogs(t *testing.T) {
	var logs bytes.Buffer
	relay := newFaultRelay(logging.New(&logs, "error"))
	for i := 0; i < cap(relay.ch)+3; i++ {
		relay.report(errors.New("boom"))
	}
	assert.Len(t, relay.ch, cap(relay.ch))
	assert.Equal(t, cap(relay.ch)+3, bytes.Count(logs.Bytes(), []byte("boom")))
}
