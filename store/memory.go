package store

import (
	"context"
	"sync"

	"docfill/types"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Storer used by tests and local runs
// without Postgres. Embedding search degrades to "no match".
type MemoryStore struct {
	mu       sync.Mutex
	docs     map[uuid.UUID]types.Document
	defs     map[uuid.UUID][]types.PlaceholderDefinition // by doc id
	sessions map[uuid.UUID]*types.FillSession
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		docs:     make(map[uuid.UUID]types.Document),
		defs:     make(map[uuid.UUID][]types.PlaceholderDefinition),
		sessions: make(map[uuid.UUID]*types.FillSession),
	}
}

func (m *MemoryStore) Ping(context.Context) error { return nil }

func (m *MemoryStore) SaveDocument(_ context.Context, doc types.Document) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.docs[doc.ID] = doc
	return nil
}

func (m *MemoryStore) GetDocumentByID(_ context.Context, id uuid.UUID) (*types.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return nil, types.ErrDocumentNotFound
	}
	return &doc, nil
}

func (m *MemoryStore) SetDocumentStatus(_ context.Context, id uuid.UUID, status types.DocumentStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	doc, ok := m.docs[id]
	if !ok {
		return types.ErrDocumentNotFound
	}
	doc.Status = status
	m.docs[id] = doc
	return nil
}

func (m *MemoryStore) SaveDefinitions(_ context.Context, defs []types.PlaceholderDefinition, _ [][]float32) error {
	if len(defs) == 0 {
		return nil
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	docID := defs[0].DocID
	if _, ok := m.defs[docID]; ok {
		return nil // id set is immutable once written
	}
	cp := make([]types.PlaceholderDefinition, len(defs))
	copy(cp, defs)
	m.defs[docID] = cp
	return nil
}

func (m *MemoryStore) GetDefinitions(_ context.Context, docID uuid.UUID) ([]types.PlaceholderDefinition, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defs := make([]types.PlaceholderDefinition, len(m.defs[docID]))
	copy(defs, m.defs[docID])
	return defs, nil
}

func (m *MemoryStore) CreateSession(_ context.Context, s *types.FillSession) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	cp.Answers = make(map[uuid.UUID]types.FilledValue, len(s.Answers))
	for k, v := range s.Answers {
		cp.Answers[k] = v
	}
	m.sessions[s.ID] = &cp
	return nil
}

func (m *MemoryStore) GetSession(_ context.Context, id uuid.UUID) (*types.FillSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[id]
	if !ok {
		return nil, types.ErrSessionNotFound
	}
	cp := *s
	cp.Answers = make(map[uuid.UUID]types.FilledValue, len(s.Answers))
	for k, v := range s.Answers {
		cp.Answers[k] = v
	}
	cp.Log = append([]types.Turn(nil), s.Log...)
	return &cp, nil
}

func (m *MemoryStore) ApplyTurn(_ context.Context, s *types.FillSession, turns []types.Turn, updates map[uuid.UUID]types.FilledValue) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.sessions[s.ID]
	if !ok {
		return types.ErrSessionNotFound
	}
	stored.Log = append(stored.Log, turns...)
	for k, v := range updates {
		stored.Answers[k] = v
	}
	stored.State = s.State
	return nil
}

func (m *MemoryStore) NearestDefinition(context.Context, uuid.UUID, []float32) (uuid.UUID, float64, error) {
	return uuid.Nil, 0, types.ErrDocumentNotFound
}
