// Package sqlstore is a durable store.Store backed by SQLite.
//
// Documents live in a single table keyed by (collection, id); their fields
// are stored as JSON text. Subscribers are local to the process: to share a
// database between several clients, run it behind the server package.
package sqlstore

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
	_ "github.com/mattn/go-sqlite3"

	"github.com/Makepad-fr/tada/internal/logging"
	"github.com/Makepad-fr/tada/internal/store"
)

//go:embed schema.sql
var schemaSQL string

// Store implements store.Store on SQLite.
type Store struct {
	// mu serializes writes with their snapshot publication.
	mu     sync.Mutex
	db     *sql.DB
	hub    *store.Hub
	log    *log.Logger
	closed bool
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger for failures that do not fail a call.
func WithLogger(l *log.Logger) Option {
	return func(s *Store) { s.log = l }
}

var _ store.Store = (*Store)(nil)

// Open creates or opens the database at path and applies the schema.
//
// The database runs in WAL mode with a 5-second busy timeout and a single
// connection, since SQLite allows one writer at a time.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	s := &Store{db: db, hub: store.NewHub(), log: logging.Discard()}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close ends all subscriptions and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	s.hub.Close()
	return s.db.Close()
}

func (s *Store) snapshot(ctx context.Context, collection string) (store.Snapshot, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, fields FROM documents WHERE collection = ? ORDER BY seq`, collection)
	if err != nil {
		return store.Snapshot{}, fmt.Errorf("query documents: %w", err)
	}
	defer rows.Close()

	snap := store.Snapshot{Collection: collection, Documents: []store.Document{}}
	for rows.Next() {
		var (
			id  string
			raw string
		)
		if err := rows.Scan(&id, &raw); err != nil {
			return store.Snapshot{}, fmt.Errorf("scan document: %w", err)
		}
		fields := store.Fields{}
		if err := json.Unmarshal([]byte(raw), &fields); err != nil {
			return store.Snapshot{}, fmt.Errorf("decode document %s: %w", id, err)
		}
		snap.Documents = append(snap.Documents, store.Document{ID: id, Fields: fields})
	}
	if err := rows.Err(); err != nil {
		return store.Snapshot{}, fmt.Errorf("iterate documents: %w", err)
	}
	return snap, nil
}

// publish reads the collection back and hands it to subscribers. The write
// it follows is already committed, so a failed read is logged rather than
// returned; subscribers catch up with the next change.
// Caller holds s.mu.
func (s *Store) publish(ctx context.Context, collection string) {
	if s.hub.Len(collection) == 0 {
		return
	}
	snap, err := s.snapshot(context.WithoutCancel(ctx), collection)
	if err != nil {
		s.log.Warn("publish snapshot", "collection", collection, "err", err)
		return
	}
	s.hub.Publish(snap)
}

func (s *Store) Subscribe(ctx context.Context, q store.Query, fn store.Listener) (store.Unsubscribe, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, store.ErrClosed
	}
	snap, err := s.snapshot(ctx, q.Collection)
	if err != nil {
		return nil, err
	}
	return s.hub.Add(ctx, q.Collection, snap, fn), nil
}

func (s *Store) Insert(ctx context.Context, collection string, fields store.Fields) (string, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("encode fields: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return "", store.ErrClosed
	}

	id := store.NewID()
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, fields) VALUES (?, ?, ?)`,
		collection, id, string(raw)); err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	s.publish(ctx, collection)
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields store.Fields) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var raw string
	err = tx.QueryRowContext(ctx,
		`SELECT fields FROM documents WHERE collection = ? AND id = ?`, collection, id).Scan(&raw)
	if err == sql.ErrNoRows {
		return fmt.Errorf("update %s/%s: %w", collection, id, store.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("load document: %w", err)
	}

	merged := store.Fields{}
	if err := json.Unmarshal([]byte(raw), &merged); err != nil {
		return fmt.Errorf("decode document %s: %w", id, err)
	}
	for k, v := range fields {
		merged[k] = v
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("encode fields: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE documents SET fields = ? WHERE collection = ? AND id = ?`,
		string(out), collection, id); err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	s.publish(ctx, collection)
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return store.ErrClosed
	}

	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return nil
	}
	s.publish(ctx, collection)
	return nil
}
