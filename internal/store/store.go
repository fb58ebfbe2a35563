// Package store defines the document collection the todo list syncs against.
//
// A Store holds named collections of documents. Each document is a flat set of
// fields keyed by an opaque id that the store assigns on insert. Subscribers
// receive whole snapshots of a collection, never deltas: once right after
// subscribing and again after every change.
package store

import (
	"context"
	"errors"
)

var (
	// ErrNotFound is returned by Update when the document does not exist.
	ErrNotFound = errors.New("store: document not found")
	// ErrClosed is returned by operations on a closed store.
	ErrClosed = errors.New("store: closed")
)

// Fields is the payload of a document. Values are JSON-compatible.
type Fields map[string]any

// Clone returns a shallow copy of f.
func (f Fields) Clone() Fields {
	out := make(Fields, len(f))
	for k, v := range f {
		out[k] = v
	}
	return out
}

// Document is one entry of a collection.
type Document struct {
	ID     string `json:"id"`
	Fields Fields `json:"fields"`
}

// Snapshot is the complete current content of a collection, in the
// collection's enumeration order. Receivers must treat it as read-only.
type Snapshot struct {
	Collection string     `json:"collection"`
	Documents  []Document `json:"documents"`
}

// Query selects the documents a subscription watches. Only whole
// collections are supported.
type Query struct {
	Collection string
}

// Listener receives snapshots. Calls for one subscription never overlap.
type Listener func(Snapshot)

// Unsubscribe stops delivery for a subscription. Safe to call more than once.
type Unsubscribe func()

// Store is the document backend the list view talks to.
type Store interface {
	// Subscribe delivers the current snapshot of q right away and again on
	// every change until the returned func is called or ctx is done.
	Subscribe(ctx context.Context, q Query, fn Listener) (Unsubscribe, error)
	// Insert adds a document and returns its new id.
	Insert(ctx context.Context, collection string, fields Fields) (string, error)
	// Update merges fields into an existing document.
	Update(ctx context.Context, collection, id string, fields Fields) error
	// Delete removes a document. Deleting a missing id is not an error.
	Delete(ctx context.Context, collection, id string) error
}
