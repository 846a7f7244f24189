package session

import (
	"context"
	"log"

	"docfill/model"
	"docfill/store"

	"github.com/google/uuid"
)

// Labels further than this cosine distance from every hint embedding are
// treated as not matching anything.
const maxMatchDistance = 0.4

// EmbeddingMatcher resolves fuzzy placeholder references by embedding the
// proposed label and searching the document's hint embeddings.
type EmbeddingMatcher struct {
	embedder model.Embedder
	store    store.Storer
}

func NewEmbeddingMatcher(embedder model.Embedder, storer store.Storer) *EmbeddingMatcher {
	return &EmbeddingMatcher{embedder: embedder, store: storer}
}

func (m *EmbeddingMatcher) Match(ctx context.Context, docID uuid.UUID, label string) (uuid.UUID, bool, error) {
	vec, err := m.embedder.Embed(ctx, label)
	if err != nil {
		return uuid.Nil, false, err
	}
	id, distance, err := m.store.NearestDefinition(ctx, docID, vec)
	if err != nil {
		// Поиск недоступен — просто нет совпадения
		log.Printf("[MATCH] nearest definition lookup failed for %q: %v", label, err)
		return uuid.Nil, false, nil
	}
	if distance > maxMatchDistance {
		return uuid.Nil, false, nil
	}
	return id, true, nil
}
