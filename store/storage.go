package store

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"docfill/types"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"
)

type Storer interface {
	SaveDocument(context.Context, types.Document) error
	GetDocumentByID(context.Context, uuid.UUID) (*types.Document, error)
	SetDocumentStatus(context.Context, uuid.UUID, types.DocumentStatus) error
	SaveDefinitions(context.Context, []types.PlaceholderDefinition, [][]float32) error
	GetDefinitions(context.Context, uuid.UUID) ([]types.PlaceholderDefinition, error)
	CreateSession(context.Context, *types.FillSession) error
	GetSession(context.Context, uuid.UUID) (*types.FillSession, error)
	ApplyTurn(context.Context, *types.FillSession, []types.Turn, map[uuid.UUID]types.FilledValue) error
	NearestDefinition(context.Context, uuid.UUID, []float32) (uuid.UUID, float64, error)
	Ping(context.Context) error
}

type PostgresStore struct {
	pool *pgxpool.Pool
}

func NewPostgresStore(ctx context.Context, connStr string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, err
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return &PostgresStore{
		pool: pool,
	}, nil
}

func (p *PostgresStore) Ping(ctx context.Context) error {
	return p.pool.Ping(ctx)
}

func (p *PostgresStore) SaveDocument(ctx context.Context, doc types.Document) error {
	query := `INSERT INTO documents (id, filename, status, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			filename = EXCLUDED.filename,
			status = EXCLUDED.status
			`
	_, err := p.pool.Exec(ctx, query, doc.ID, doc.Filename, doc.Status, doc.CreatedAt)
	return err
}

func (p *PostgresStore) GetDocumentByID(ctx context.Context, docID uuid.UUID) (*types.Document, error) {
	doc := &types.Document{}
	err := p.pool.QueryRow(ctx,
		"SELECT id, filename, status, created_at FROM documents WHERE id = $1", docID).
		Scan(&doc.ID, &doc.Filename, &doc.Status, &doc.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrDocumentNotFound
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (p *PostgresStore) SetDocumentStatus(ctx context.Context, docID uuid.UUID, status types.DocumentStatus) error {
	_, err := p.pool.Exec(ctx, "UPDATE documents SET status = $2 WHERE id = $1", docID, status)
	return err
}

// SaveDefinitions persists the extracted schema atomically. The id set of
// a document is immutable once written: a second call for the same
// document is a no-op, which is what makes extraction idempotent.
func (p *PostgresStore) SaveDefinitions(ctx context.Context, defs []types.PlaceholderDefinition, embeddings [][]float32) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for i, d := range defs {
		var emb any
		if embeddings != nil && i < len(embeddings) && len(embeddings[i]) > 0 {
			emb = pgvector.NewVector(embeddings[i])
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO placeholders (id, doc_id, label, kind, required, hint, ord, hint_embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (id) DO NOTHING`,
			d.ID, d.DocID, d.Label, d.Kind, d.Required, d.Hint, d.Order, emb)
		if err != nil {
			return err
		}
		for j, a := range d.Anchors {
			_, err := tx.Exec(ctx, `
				INSERT INTO anchors (placeholder_id, ord, block, char_start, char_end)
				VALUES ($1, $2, $3, $4, $5)
				ON CONFLICT (placeholder_id, ord) DO NOTHING`,
				d.ID, j, a.Block, a.Start, a.End)
			if err != nil {
				return err
			}
		}
	}

	return tx.Commit(ctx)
}

func (p *PostgresStore) GetDefinitions(ctx context.Context, docID uuid.UUID) ([]types.PlaceholderDefinition, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, doc_id, label, kind, required, hint, ord
		FROM placeholders WHERE doc_id = $1 ORDER BY ord`, docID)
	if err != nil {
		return nil, err
	}
	defer rows.Close() // Обязательно закрываем rows для освобождения соединения

	var defs []types.PlaceholderDefinition
	for rows.Next() {
		var d types.PlaceholderDefinition
		if err := rows.Scan(&d.ID, &d.DocID, &d.Label, &d.Kind, &d.Required, &d.Hint, &d.Order); err != nil {
			return nil, err
		}
		defs = append(defs, d)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	for i := range defs {
		arows, err := p.pool.Query(ctx, `
			SELECT block, char_start, char_end FROM anchors
			WHERE placeholder_id = $1 ORDER BY ord`, defs[i].ID)
		if err != nil {
			return nil, err
		}
		for arows.Next() {
			var a types.Anchor
			if err := arows.Scan(&a.Block, &a.Start, &a.End); err != nil {
				arows.Close()
				return nil, err
			}
			defs[i].Anchors = append(defs[i].Anchors, a)
		}
		arows.Close()
		if arows.Err() != nil {
			return nil, arows.Err()
		}
	}
	return defs, nil
}

func (p *PostgresStore) CreateSession(ctx context.Context, s *types.FillSession) error {
	_, err := p.pool.Exec(ctx, `
		INSERT INTO sessions (id, doc_id, state, started_at)
		VALUES ($1, $2, $3, $4)`,
		s.ID, s.DocID, s.State, s.StartedAt)
	return err
}

func (p *PostgresStore) GetSession(ctx context.Context, id uuid.UUID) (*types.FillSession, error) {
	s := &types.FillSession{Answers: make(map[uuid.UUID]types.FilledValue)}
	err := p.pool.QueryRow(ctx,
		"SELECT id, doc_id, state, started_at FROM sessions WHERE id = $1", id).
		Scan(&s.ID, &s.DocID, &s.State, &s.StartedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, types.ErrSessionNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := p.pool.Query(ctx, `
		SELECT placeholder_id, value, raw, confidence, filled_at
		FROM answers WHERE session_id = $1`, id)
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var pid uuid.UUID
		var v types.FilledValue
		if err := rows.Scan(&pid, &v.Value, &v.Raw, &v.Confidence, &v.FilledAt); err != nil {
			rows.Close()
			return nil, err
		}
		s.Answers[pid] = v
	}
	rows.Close()
	if rows.Err() != nil {
		return nil, rows.Err()
	}

	trows, err := p.pool.Query(ctx, `
		SELECT role, content, created_at FROM turns
		WHERE session_id = $1 ORDER BY id`, id)
	if err != nil {
		return nil, err
	}
	defer trows.Close()
	for trows.Next() {
		var t types.Turn
		if err := trows.Scan(&t.Role, &t.Text, &t.CreatedAt); err != nil {
			return nil, err
		}
		s.Log = append(s.Log, t)
	}
	return s, trows.Err()
}

// ApplyTurn persists one fully-interpreted chat turn: the new log turns,
// every answer update and the session state, in a single transaction so a
// failed turn leaves no partial writes behind.
func (p *PostgresStore) ApplyTurn(ctx context.Context, s *types.FillSession, turns []types.Turn, updates map[uuid.UUID]types.FilledValue) error {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, t := range turns {
		_, err := tx.Exec(ctx, `
			INSERT INTO turns (session_id, role, content, created_at)
			VALUES ($1, $2, $3, $4)`,
			s.ID, t.Role, t.Text, t.CreatedAt)
		if err != nil {
			return err
		}
	}

	for pid, v := range updates {
		_, err := tx.Exec(ctx, `
			INSERT INTO answers (session_id, placeholder_id, value, raw, confidence, filled_at)
			VALUES ($1, $2, $3, $4, $5, $6)
			ON CONFLICT (session_id, placeholder_id) DO UPDATE SET
				value = EXCLUDED.value,
				raw = EXCLUDED.raw,
				confidence = EXCLUDED.confidence,
				filled_at = EXCLUDED.filled_at`,
			s.ID, pid, v.Value, v.Raw, v.Confidence, v.FilledAt)
		if err != nil {
			return err
		}
	}

	var completedAt any
	if s.State == types.SessionCompleted {
		completedAt = time.Now()
	}
	_, err = tx.Exec(ctx, `
		UPDATE sessions SET state = $2, completed_at = COALESCE($3, completed_at)
		WHERE id = $1`, s.ID, s.State, completedAt)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// NearestDefinition returns the placeholder of the document whose hint
// embedding is closest to the query vector, with its cosine distance.
func (p *PostgresStore) NearestDefinition(ctx context.Context, docID uuid.UUID, vec []float32) (uuid.UUID, float64, error) {
	if len(vec) == 0 {
		return uuid.Nil, 0, fmt.Errorf("пустой вектор запроса")
	}

	vector := pgvector.NewVector(vec)
	var id uuid.UUID
	var distance float64
	err := p.pool.QueryRow(ctx, `
		SELECT id, (hint_embedding <=> $2) AS distance
		FROM placeholders
		WHERE doc_id = $1 AND hint_embedding IS NOT NULL
		ORDER BY hint_embedding <=> $2
		LIMIT 1`, docID, vector).Scan(&id, &distance)
	if errors.Is(err, pgx.ErrNoRows) {
		return uuid.Nil, 0, types.ErrDocumentNotFound
	}
	if err != nil {
		return uuid.Nil, 0, err
	}
	log.Printf("[MATCH] nearest placeholder %s (расстояние: %.4f)", id, distance)
	return id, distance, nil
}

func (p *PostgresStore) createTables(ctx context.Context) error {
	query := `
	CREATE EXTENSION IF NOT EXISTS vector;

	CREATE TABLE IF NOT EXISTS documents (
		id UUID PRIMARY KEY,
		filename TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'uploaded',
		created_at TIMESTAMP WITH TIME ZONE
	);

	CREATE TABLE IF NOT EXISTS placeholders (
		id UUID PRIMARY KEY,
		doc_id UUID NOT NULL REFERENCES documents(id),
		label TEXT NOT NULL,
		kind TEXT NOT NULL,
		required BOOLEAN NOT NULL DEFAULT TRUE,
		hint TEXT,
		ord INT NOT NULL,
		hint_embedding vector(768)
	);
	CREATE INDEX IF NOT EXISTS idx_placeholders_doc_id ON placeholders(doc_id);

	CREATE TABLE IF NOT EXISTS anchors (
		placeholder_id UUID NOT NULL REFERENCES placeholders(id),
		ord INT NOT NULL,
		block INT NOT NULL,
		char_start INT NOT NULL,
		char_end INT NOT NULL,
		PRIMARY KEY (placeholder_id, ord)
	);

	CREATE TABLE IF NOT EXISTS sessions (
		id UUID PRIMARY KEY,
		doc_id UUID NOT NULL REFERENCES documents(id),
		state TEXT NOT NULL DEFAULT 'pending',
		started_at TIMESTAMP WITH TIME ZONE,
		completed_at TIMESTAMP WITH TIME ZONE
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_doc_id ON sessions(doc_id);

	CREATE TABLE IF NOT EXISTS answers (
		session_id UUID NOT NULL REFERENCES sessions(id),
		placeholder_id UUID NOT NULL REFERENCES placeholders(id),
		value TEXT NOT NULL,
		raw TEXT NOT NULL,
		confidence DOUBLE PRECISION,
		filled_at TIMESTAMP WITH TIME ZONE,
		PRIMARY KEY (session_id, placeholder_id)
	);

	CREATE TABLE IF NOT EXISTS turns (
		id BIGSERIAL PRIMARY KEY,
		session_id UUID NOT NULL REFERENCES sessions(id),
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		created_at TIMESTAMP WITH TIME ZONE
	);
	CREATE INDEX IF NOT EXISTS idx_turns_session_id ON turns(session_id);
	`
	_, err := p.pool.Exec(ctx, query)
	return err
}

func (p *PostgresStore) Init(ctx context.Context) error {
	return p.createTables(ctx)
}

// Close закрывает пул подключений
func (p *PostgresStore) Close() error {
	if p.pool != nil {
		p.pool.Close()
		log.Println("Postgres connection pool is closed")
	}
	return nil
}
