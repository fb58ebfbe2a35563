package jsonstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/Makepad-fr/tada/internal/store"
)

// JSON-backed document store. Single file, human-readable, portable.
// Every write rewrites the whole file; fine for a local single-user list.
// An empty path keeps the documents in memory only.

// DataFileName is the file name used when no data path is configured.
const DataFileName = "todos.json"

type fileData struct {
	Collections map[string][]store.Document `json:"collections"`
}

// Store implements store.Store on top of a JSON file.
type Store struct {
	mu     sync.Mutex
	path   string
	data   map[string][]store.Document
	hub    *store.Hub
	closed bool
}

var _ store.Store = (*Store)(nil)

// Open loads path if it exists. A missing file starts empty.
func Open(path string) (*Store, error) {
	s := &Store{
		path: path,
		data: make(map[string][]store.Document),
		hub:  store.NewHub(),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *Store) load() error {
	if s.path == "" {
		return nil
	}
	b, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("read file: %w", err)
	}
	var fd fileData
	if err := json.Unmarshal(b, &fd); err != nil {
		return fmt.Errorf("json unmarshal: %w", err)
	}
	for c, docs := range fd.Collections {
		s.data[c] = docs
	}
	return nil
}

// save writes every collection to disk. Caller holds s.mu.
func (s *Store) save() error {
	if s.path == "" {
		return nil
	}
	b, err := json.MarshalIndent(fileData{Collections: s.data}, "", "  ")
	if err != nil {
		return fmt.Errorf("json marshal: %w", err)
	}
	if err := os.WriteFile(s.path, b, 0o644); err != nil {
		return fmt.Errorf("write file: %w", err)
	}
	return nil
}

// commit swaps in docs for collection, persists and notifies subscribers.
// On a failed save the previous documents are restored. Caller holds s.mu.
func (s *Store) commit(collection string, docs []store.Document) error {
	prev, had := s.data[collection]
	s.data[collection] = docs
	if err := s.save(); err != nil {
		if had {
			s.data[collection] = prev
		} else {
			delete(s.data, collection)
		}
		return err
	}
	s.hub.Publish(s.snapshot(collection))
	return nil
}

func (s *Store) snapshot(collection string) store.Snapshot {
	docs := s.data[collection]
	out := make([]store.Document, len(docs))
	copy(out, docs)
	return store.Snapshot{Collection: collection, Documents: out}
}

func (s *Store) Subscribe(ctx context.Context, q store.Query, fn store.Listener) (store.Unsubscribe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	return s.hub.Add(ctx, q.Collection, s.snapshot(q.Collection), fn), nil
}

func (s *Store) Insert(ctx context.Context, collection string, fields store.Fields) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", store.ErrClosed
	}

	doc := store.Document{ID: store.NewID(), Fields: fields.Clone()}
	old := s.data[collection]
	docs := append(old[:len(old):len(old)], doc)
	if err := s.commit(collection, docs); err != nil {
		return "", err
	}
	return doc.ID, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields store.Fields) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	old := s.data[collection]
	idx := indexOf(old, id)
	if idx < 0 {
		return fmt.Errorf("update %s/%s: %w", collection, id, store.ErrNotFound)
	}
	merged := old[idx].Fields.Clone()
	for k, v := range fields {
		merged[k] = v
	}
	docs := make([]store.Document, len(old))
	copy(docs, old)
	docs[idx] = store.Document{ID: id, Fields: merged}
	return s.commit(collection, docs)
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	old := s.data[collection]
	idx := indexOf(old, id)
	if idx < 0 {
		return nil
	}
	docs := make([]store.Document, 0, len(old)-1)
	docs = append(docs, old[:idx]...)
	docs = append(docs, old[idx+1:]...)
	return s.commit(collection, docs)
}

// Close ends all subscriptions. Later calls fail with store.ErrClosed.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.hub.Close()
	return nil
}

func indexOf(docs []store.Document, id string) int {
	for i, d := range docs {
		if d.ID == id {
			return i
		}
	}
	return -1
}
