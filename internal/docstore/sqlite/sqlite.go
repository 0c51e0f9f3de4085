// Package sqlite provides the persistent docstore implementation backed by
// SQLite. Documents are stored as JSON field bags keyed by collection path
// and ID, so every collection in the hierarchy shares one table.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // Pure Go SQLite driver (no CGO)

	"bilancio/internal/docstore"
)

var _ docstore.Store = (*Store)(nil)

type Store struct {
	db       *sql.DB
	hub      *docstore.Hub
	notifier docstore.Notifier
}

// New opens (or creates) the database at dbPath, runs migrations, and
// returns a ready store. notifier may be nil for single-instance setups;
// when set, every local write is also published so other instances can
// refresh their subscribers.
func New(dbPath string, notifier docstore.Notifier) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	if err := RunMigrations(dbPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &Store{
		db:       db,
		hub:      docstore.NewHub(),
		notifier: notifier,
	}, nil
}

func (s *Store) Close() error {
	s.hub.Close()
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

func (s *Store) Create(ctx context.Context, collection string, fields map[string]any) (string, error) {
	id := uuid.New().String()
	createdAt := time.Now().UTC()

	body, err := json.Marshal(fields)
	if err != nil {
		return "", fmt.Errorf("marshal fields: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO documents (collection, id, fields, created_at) VALUES (?, ?, ?, ?)",
		collection, id, string(body), createdAt.UnixNano(),
	)
	if err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}

	s.changed(ctx, collection)
	return id, nil
}

func (s *Store) Update(ctx context.Context, collection, id string, fields map[string]any) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	var body string
	err = tx.QueryRowContext(ctx,
		"SELECT fields FROM documents WHERE collection = ? AND id = ?",
		collection, id,
	).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("read document: %w", err)
	}

	merged := make(map[string]any)
	if err := json.Unmarshal([]byte(body), &merged); err != nil {
		return fmt.Errorf("unmarshal fields: %w", err)
	}
	for k, v := range fields {
		merged[k] = v
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return fmt.Errorf("marshal fields: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		"UPDATE documents SET fields = ? WHERE collection = ? AND id = ?",
		string(out), collection, id,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}

	s.changed(ctx, collection)
	return nil
}

func (s *Store) Delete(ctx context.Context, collection, id string) error {
	_, err := s.db.ExecContext(ctx,
		"DELETE FROM documents WHERE collection = ? AND id = ?",
		collection, id,
	)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}

	s.changed(ctx, collection)
	return nil
}

func (s *Store) GetOnce(ctx context.Context, collection, id string) (docstore.Doc, error) {
	var (
		body  string
		nanos int64
	)
	err := s.db.QueryRowContext(ctx,
		"SELECT fields, created_at FROM documents WHERE collection = ? AND id = ?",
		collection, id,
	).Scan(&body, &nanos)
	if errors.Is(err, sql.ErrNoRows) {
		return docstore.Doc{}, docstore.ErrNotFound
	}
	if err != nil {
		return docstore.Doc{}, fmt.Errorf("get document: %w", err)
	}

	fields := make(map[string]any)
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return docstore.Doc{}, fmt.Errorf("unmarshal fields: %w", err)
	}

	return docstore.Doc{
		ID:        id,
		Fields:    fields,
		CreatedAt: time.Unix(0, nanos).UTC(),
	}, nil
}

func (s *Store) Subscribe(collection string, order docstore.OrderSpec, fn docstore.SnapshotFunc) (docstore.Subscription, error) {
	load := func() ([]docstore.Doc, error) {
		return s.snapshot(context.Background(), collection, order)
	}
	return s.hub.Subscribe(collection, load, fn), nil
}

// Invalidate re-delivers snapshots to local subscribers of a collection.
// The AMQP consumer calls this when another instance reports a change.
func (s *Store) Invalidate(collection string) {
	s.hub.Notify(collection)
}

func (s *Store) snapshot(ctx context.Context, collection string, order docstore.OrderSpec) ([]docstore.Doc, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, fields, created_at FROM documents WHERE collection = ?",
		collection,
	)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}
	defer rows.Close()

	var docs []docstore.Doc
	for rows.Next() {
		var (
			id    string
			body  string
			nanos int64
		)
		if err := rows.Scan(&id, &body, &nanos); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		fields := make(map[string]any)
		if err := json.Unmarshal([]byte(body), &fields); err != nil {
			return nil, fmt.Errorf("unmarshal fields: %w", err)
		}
		docs = append(docs, docstore.Doc{
			ID:        id,
			Fields:    fields,
			CreatedAt: time.Unix(0, nanos).UTC(),
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate collection: %w", err)
	}

	// Ordering happens in Go so both backends share identical semantics.
	docstore.SortDocs(docs, order)
	return docs, nil
}

// changed wakes local subscribers and, when configured, fans the event out
// to other instances. Publish failures never fail the write; the local copy
// is already committed.
func (s *Store) changed(ctx context.Context, collection string) {
	s.hub.Notify(collection)

	if s.notifier == nil {
		return
	}
	if err := s.notifier.PublishChange(ctx, collection); err != nil {
		slog.WarnContext(ctx, "Failed to publish change event",
			"collection", collection, "error", err)
	}
}
