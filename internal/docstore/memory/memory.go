// Package memory provides the in-memory docstore implementation used for
// development and tests.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"bilancio/internal/docstore"
)

var _ docstore.Store = (*Store)(nil)

type Store struct {
	mu   sync.Mutex
	cols map[string]map[string]docstore.Doc
	hub  *docstore.Hub
}

func New() *Store {
	return &Store{
		cols: make(map[string]map[string]docstore.Doc),
		hub:  docstore.NewHub(),
	}
}

func (s *Store) Create(_ context.Context, collection string, fields map[string]any) (string, error) {
	doc := docstore.Doc{
		ID:        uuid.New().String(),
		Fields:    cloneFields(fields),
		CreatedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	col := s.cols[collection]
	if col == nil {
		col = make(map[string]docstore.Doc)
		s.cols[collection] = col
	}
	col[doc.ID] = doc
	s.mu.Unlock()

	s.hub.Notify(collection)
	return doc.ID, nil
}

func (s *Store) Update(_ context.Context, collection, id string, fields map[string]any) error {
	s.mu.Lock()
	doc, ok := s.cols[collection][id]
	if !ok {
		s.mu.Unlock()
		return docstore.ErrNotFound
	}
	merged := cloneFields(doc.Fields)
	for k, v := range fields {
		merged[k] = v
	}
	doc.Fields = merged
	s.cols[collection][id] = doc
	s.mu.Unlock()

	s.hub.Notify(collection)
	return nil
}

func (s *Store) Delete(_ context.Context, collection, id string) error {
	s.mu.Lock()
	if col, ok := s.cols[collection]; ok {
		delete(col, id)
	}
	s.mu.Unlock()

	s.hub.Notify(collection)
	return nil
}

func (s *Store) GetOnce(_ context.Context, collection, id string) (docstore.Doc, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, ok := s.cols[collection][id]
	if !ok {
		return docstore.Doc{}, docstore.ErrNotFound
	}
	doc.Fields = cloneFields(doc.Fields)
	return doc, nil
}

func (s *Store) Subscribe(collection string, order docstore.OrderSpec, fn docstore.SnapshotFunc) (docstore.Subscription, error) {
	load := func() ([]docstore.Doc, error) {
		return s.snapshot(collection, order), nil
	}
	return s.hub.Subscribe(collection, load, fn), nil
}

func (s *Store) Close() error {
	s.hub.Close()
	return nil
}

func (s *Store) snapshot(collection string, order docstore.OrderSpec) []docstore.Doc {
	s.mu.Lock()
	col := s.cols[collection]
	docs := make([]docstore.Doc, 0, len(col))
	for _, doc := range col {
		doc.Fields = cloneFields(doc.Fields)
		docs = append(docs, doc)
	}
	s.mu.Unlock()

	docstore.SortDocs(docs, order)
	return docs
}

func cloneFields(fields map[string]any) map[string]any {
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = v
	}
	return out
}
