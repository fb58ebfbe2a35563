// Package todo keeps a list of items in sync with a document store.
//
// Reads are snapshot driven: Watch projects every snapshot the store
// delivers into a fresh []model.Item, replacing whatever was there before.
// Writes are one-shot requests whose effect only shows up through the next
// snapshot; nothing is updated optimistically.
package todo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/Makepad-fr/tada/internal/model"
	"github.com/Makepad-fr/tada/internal/store"
)

// Collection is the default collection items live in.
const Collection = "todos"

// Document field names.
const (
	FieldText      = "text"
	FieldCompleted = "completed"
)

// ErrEmptyText is returned by Create for blank input. No write is issued.
var ErrEmptyText = errors.New("please enter a valid todo")

// Project turns a snapshot into items, in snapshot order. Missing or
// mistyped fields come out as zero values.
func Project(snap store.Snapshot) []model.Item {
	items := make([]model.Item, 0, len(snap.Documents))
	for _, doc := range snap.Documents {
		text, _ := doc.Fields[FieldText].(string)
		completed, _ := doc.Fields[FieldCompleted].(bool)
		items = append(items, model.Item{ID: doc.ID, Text: text, Completed: completed})
	}
	return items
}

// Service issues reads and writes for one collection.
type Service struct {
	store      store.Store
	collection string
}

// Option configures a Service.
type Option func(*Service)

// WithCollection overrides the default collection.
func WithCollection(name string) Option {
	return func(s *Service) {
		if name != "" {
			s.collection = name
		}
	}
}

// New returns a Service writing to st.
func New(st store.Store, opts ...Option) *Service {
	s := &Service{store: st, collection: Collection}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate trims text and rejects it if nothing is left.
func Validate(text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", ErrEmptyText
	}
	return text, nil
}

// Create validates text and inserts a new, not completed item.
// Blank text fails with ErrEmptyText before the store is touched.
func (s *Service) Create(ctx context.Context, text string) (string, error) {
	text, err := Validate(text)
	if err != nil {
		return "", err
	}
	id, err := s.store.Insert(ctx, s.collection, store.Fields{
		FieldText:      text,
		FieldCompleted: false,
	})
	if err != nil {
		return "", fmt.Errorf("create: %w", err)
	}
	return id, nil
}

// Toggle flips the completed flag of item. Only that field is sent.
func (s *Service) Toggle(ctx context.Context, item model.Item) error {
	if err := s.store.Update(ctx, s.collection, item.ID, store.Fields{
		FieldCompleted: !item.Completed,
	}); err != nil {
		return fmt.Errorf("toggle: %w", err)
	}
	return nil
}

// Delete removes the item with id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.store.Delete(ctx, s.collection, id); err != nil {
		return fmt.Errorf("delete: %w", err)
	}
	return nil
}

// Snapshot returns the current items: it subscribes, takes the first
// snapshot and unsubscribes again.
func (s *Service) Snapshot(ctx context.Context) ([]model.Item, error) {
	got := make(chan store.Snapshot, 1)
	unsub, err := s.store.Subscribe(ctx, store.Query{Collection: s.collection}, func(snap store.Snapshot) {
		select {
		case got <- snap:
		default:
		}
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	defer unsub()

	select {
	case snap := <-got:
		return Project(snap), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Watch subscribes to the collection and calls fn with the projected list
// on every snapshot until the returned Feed is closed. fn must not call
// Feed.Close.
func (s *Service) Watch(ctx context.Context, fn func([]model.Item)) (*Feed, error) {
	f := &Feed{fn: fn}
	unsub, err := s.store.Subscribe(ctx, store.Query{Collection: s.collection}, f.deliver)
	if err != nil {
		return nil, fmt.Errorf("subscribe: %w", err)
	}
	f.mu.Lock()
	f.stop = unsub
	f.mu.Unlock()
	return f, nil
}

// Feed is a live subscription created by Watch.
type Feed struct {
	mu     sync.Mutex
	fn     func([]model.Item)
	stop   store.Unsubscribe
	closed bool
}

func (f *Feed) deliver(snap store.Snapshot) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.closed {
		return
	}
	f.fn(Project(snap))
}

// Close releases the subscription. Once Close returns, the Feed's callback
// is not called again. Later calls do nothing.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.closed {
		f.mu.Unlock()
		return
	}
	f.closed = true
	stop := f.stop
	f.mu.Unlock()

	if stop != nil {
		stop()
	}
}

// Closed reports whether Close was called.
func (f *Feed) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
