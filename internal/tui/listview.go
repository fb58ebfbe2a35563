// Package tui is the interactive list view: a bubbletea program that
// mirrors the store's latest snapshot and turns key presses into writes.
package tui

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/todo"
	"github.com/Makepad-fr/tada/internal/ui"
)

// Message shown when the submitted text is blank.
const emptyInputMessage = "Please enter a valid todo!"

// snapshotMsg carries the projected list of a newly delivered snapshot.
type snapshotMsg []model.Item

// faultMsg carries a failed write.
type faultMsg struct{ err error }

// feedFaultMsg carries a failure reported by the store outside of any
// write, such as a dropped subscription.
type feedFaultMsg struct{ err error }

// mailbox hands snapshots from store goroutines to the event loop. It holds
// at most one list; a newer one replaces an undelivered older one.
type mailbox struct {
	ch   chan []model.Item
	done chan struct{}
	once sync.Once
}

func newMailbox() *mailbox {
	return &mailbox{ch: make(chan []model.Item, 1), done: make(chan struct{})}
}

func (b *mailbox) put(items []model.Item) {
	select {
	case <-b.done:
		return
	default:
	}
	for {
		select {
		case b.ch <- items:
			return
		default:
		}
		select {
		case <-b.ch:
		default:
		}
	}
}

// wait is a tea.Cmd blocking until the next list or until the mailbox closes.
func (b *mailbox) wait() tea.Cmd {
	return func() tea.Msg {
		select {
		case items := <-b.ch:
			return snapshotMsg(items)
		case <-b.done:
			return nil
		}
	}
}

func (b *mailbox) close() { b.once.Do(func() { close(b.done) }) }

var keys = struct {
	add, toggle, remove key.Binding
}{
	add:    key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "add")),
	toggle: key.NewBinding(key.WithKeys(" ", "space"), key.WithHelp("space", "toggle")),
	remove: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
}

// ListView shows the items of one collection.
//
// Its state only changes in Update, on the bubbletea event loop. The list is
// replaced wholesale by each snapshot; writes never touch it directly.
type ListView struct {
	ctx     context.Context
	svc     *todo.Service
	onFault func(error)
	faults  <-chan error

	list     list.Model
	input    textinput.Model
	adding   bool
	inputErr string
	fault    string
	items    []model.Item
	width    int
	height   int

	inbox    *mailbox
	feed     *todo.Feed
	tornDown bool
}

// Option configures a ListView.
type Option func(*ListView)

// WithFaultHandler receives failed writes.
func WithFaultHandler(fn func(error)) Option {
	return func(m *ListView) { m.onFault = fn }
}

// WithFaults shows errors received on ch, typically subscription failures
// reported by the store, in the view. They are not passed to the fault
// handler again.
func WithFaults(ch <-chan error) Option {
	return func(m *ListView) { m.faults = ch }
}

// New builds an unmounted ListView for svc.
func New(ctx context.Context, svc *todo.Service, opts ...Option) *ListView {
	l := list.New(nil, itemDelegate{}, 0, 0)
	l.Title = ui.Header(nil)
	l.SetShowHelp(true)
	l.SetShowPagination(true)
	l.SetShowStatusBar(true)
	l.SetFilteringEnabled(true)
	l.Styles.Title = ui.Current().Title
	l.Styles.HelpStyle = ui.Current().Help
	l.Styles.PaginationStyle = ui.Current().Help
	l.FilterInput.Prompt = "/ "
	l.SetStatusBarItemName("todo", "todos")
	extra := func() []key.Binding { return []key.Binding{keys.add, keys.toggle, keys.remove} }
	l.AdditionalShortHelpKeys = extra
	l.AdditionalFullHelpKeys = extra

	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Add Todo"

	m := &ListView{
		ctx:     ctx,
		svc:     svc,
		onFault: func(error) {},
		list:    l,
		input:   ti,
		inbox:   newMailbox(),
		width:   80,
		height:  24,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.resize()
	return m
}

// Mount opens the view's single subscription.
func (m *ListView) Mount(ctx context.Context) error {
	if m.feed != nil {
		return errors.New("list view already mounted")
	}
	feed, err := m.svc.Watch(ctx, m.inbox.put)
	if err != nil {
		return err
	}
	m.feed = feed
	return nil
}

// Teardown releases the subscription. After it returns no snapshot changes
// the view any more. Safe to call more than once.
func (m *ListView) Teardown() {
	if m.feed != nil {
		m.feed.Close()
	}
	m.inbox.close()
	m.tornDown = true
}

// Items returns the list currently shown.
func (m *ListView) Items() []model.Item { return m.items }

// Input returns the text in the input field.
func (m *ListView) Input() string { return m.input.Value() }

// InputError returns the last validation message, if any.
func (m *ListView) InputError() string { return m.inputErr }

// Fault returns the last reported failure, if any. A new snapshot clears it.
func (m *ListView) Fault() string { return m.fault }

func (m *ListView) Init() tea.Cmd {
	return tea.Batch(m.inbox.wait(), m.waitFault())
}

// waitFault blocks until the next error on the faults channel or until the
// view is torn down.
func (m *ListView) waitFault() tea.Cmd {
	if m.faults == nil {
		return nil
	}
	ch, done := m.faults, m.inbox.done
	return func() tea.Msg {
		select {
		case err, ok := <-ch:
			if !ok {
				return nil
			}
			return feedFaultMsg{err: err}
		case <-done:
			return nil
		}
	}
}

func (m *ListView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case snapshotMsg:
		if m.tornDown {
			return m, nil
		}
		m.fault = ""
		cmd := m.setItems(msg)
		return m, tea.Batch(cmd, m.inbox.wait())

	case faultMsg:
		m.onFault(msg.err)
		m.fault = msg.err.Error()
		return m, nil

	case feedFaultMsg:
		if m.tornDown {
			return m, nil
		}
		m.fault = msg.err.Error()
		return m, m.waitFault()

	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		m.resize()
		return m, nil

	case tea.KeyMsg:
		if m.adding {
			return m.updateInput(msg)
		}
		if m.list.SettingFilter() {
			break
		}
		switch msg.String() {
		case "q", "esc":
			if m.list.FilterState() == list.FilterApplied && msg.String() == "esc" {
				break
			}
			return m, tea.Quit
		case " ", "space":
			if it, ok := m.selected(); ok {
				return m, m.write(func(ctx context.Context) error { return m.svc.Toggle(ctx, it) })
			}
			return m, nil
		case "d":
			if it, ok := m.selected(); ok {
				id := it.ID
				return m, m.write(func(ctx context.Context) error { return m.svc.Delete(ctx, id) })
			}
			return m, nil
		case "a":
			m.adding = true
			m.inputErr = ""
			m.input.SetValue("")
			m.resize()
			return m, m.input.Focus()
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m *ListView) updateInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		return m, m.submit()
	case "esc":
		m.adding = false
		m.inputErr = ""
		m.input.SetValue("")
		m.input.Blur()
		m.resize()
		return m, nil
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// submit validates the input and, if it is usable, clears the field and
// fires the insert. The new item shows up with the next snapshot.
func (m *ListView) submit() tea.Cmd {
	text, err := todo.Validate(m.input.Value())
	if err != nil {
		m.inputErr = emptyInputMessage
		return nil
	}
	m.input.SetValue("")
	m.input.Blur()
	m.inputErr = ""
	m.adding = false
	m.resize()
	return m.write(func(ctx context.Context) error {
		_, err := m.svc.Create(ctx, text)
		return err
	})
}

// write runs fn off the event loop. Failures come back as faultMsg.
func (m *ListView) write(fn func(context.Context) error) tea.Cmd {
	ctx := m.ctx
	return func() tea.Msg {
		if err := fn(ctx); err != nil {
			return faultMsg{err: err}
		}
		return nil
	}
}

func (m *ListView) selected() (model.Item, bool) {
	r, ok := m.list.SelectedItem().(row)
	if !ok {
		return model.Item{}, false
	}
	return r.Item, true
}

func (m *ListView) setItems(items []model.Item) tea.Cmd {
	m.items = items
	rows := make([]list.Item, 0, len(items))
	for _, it := range items {
		rows = append(rows, row{Item: it})
	}
	m.list.Title = ui.Header(items)
	return m.list.SetItems(rows)
}

func (m *ListView) resize() {
	h := m.height - 5
	if m.adding {
		h -= 4
	}
	if h < 3 {
		h = 3
	}
	m.list.SetSize(m.width-4, h)
	m.input.Width = m.width - 10
}

func (m *ListView) View() string {
	content := m.list.View()
	if m.adding {
		title := "Add new todo"
		if m.inputErr != "" {
			title += " " + ui.Current().Error.Render(m.inputErr)
		}
		bar := lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ui.Current().BorderColor).
			Padding(0, 1)
		content += "\n" + bar.Render(title+"\n"+m.input.View())
	}
	if m.fault != "" {
		content += "\n" + ui.Current().Error.Render("✖ "+m.fault)
	}
	if footer := ui.CountLine(len(m.items)); footer != "" {
		content += "\n" + ui.Current().Muted.Render(footer)
	}
	return ui.Frame(content)
}

// Run mounts a ListView, runs it until the user quits or ctx ends, and
// tears it down. It returns the fault still on screen when the view closed,
// so it can be repeated once the alternate screen is gone.
func Run(ctx context.Context, svc *todo.Service, opts ...Option) (string, error) {
	m := New(ctx, svc, opts...)
	if err := m.Mount(ctx); err != nil {
		return "", err
	}
	defer m.Teardown()

	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx))
	if _, err := p.Run(); err != nil {
		return "", err
	}
	return m.Fault(), nil
}
