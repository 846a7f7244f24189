// Package session owns the fill conversation: the state machine that
// applies interpreted answers, recomputes the cursor and phrases the next
// question.
package session

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"docfill/model"
	"docfill/store"
	"docfill/types"

	"github.com/google/uuid"
)

// Manager drives every fill session. Chat turns for one session are
// serialized by a per-session lock; interleaved writes would corrupt
// cursor derivation and log ordering.
type Manager struct {
	store  store.Storer
	interp Interpreter
	logger *slog.Logger

	mu    sync.Mutex
	locks map[uuid.UUID]*sync.Mutex
}

func NewManager(storer store.Storer, interp Interpreter) *Manager {
	return &Manager{
		store:  storer,
		interp: interp,
		logger: slog.Default(),
		locks:  make(map[uuid.UUID]*sync.Mutex),
	}
}

func (m *Manager) lockFor(id uuid.UUID) *sync.Mutex {
	m.mu.Lock()
	defer m.mu.Unlock()
	if l, ok := m.locks[id]; ok {
		return l
	}
	l := &sync.Mutex{}
	m.locks[id] = l
	return l
}

// Create starts a fill session for a document whose extraction already
// succeeded.
func (m *Manager) Create(ctx context.Context, docID uuid.UUID) (*types.FillSession, error) {
	if _, err := m.store.GetDocumentByID(ctx, docID); err != nil {
		return nil, err
	}
	defs, err := m.store.GetDefinitions(ctx, docID)
	if err != nil {
		return nil, err
	}
	if len(defs) == 0 {
		return nil, types.ErrNoPlaceholders
	}

	sess := &types.FillSession{
		ID:        uuid.New(),
		DocID:     docID,
		State:     types.SessionPending,
		Answers:   make(map[uuid.UUID]types.FilledValue),
		StartedAt: time.Now(),
	}
	if err := m.store.CreateSession(ctx, sess); err != nil {
		return nil, err
	}
	m.logger.Info("session created", "session", sess.ID, "document", docID)
	return sess, nil
}

// Get reloads a session with its progress; sessions are durable and can
// be resumed at any time.
func (m *Manager) Get(ctx context.Context, id uuid.UUID) (*types.FillSession, types.Progress, error) {
	sess, err := m.store.GetSession(ctx, id)
	if err != nil {
		return nil, types.Progress{}, err
	}
	defs, err := m.store.GetDefinitions(ctx, sess.DocID)
	if err != nil {
		return nil, types.Progress{}, err
	}
	return sess, sess.ProgressOf(defs), nil
}

// Chat handles one user turn: interpret, apply every returned assignment
// (last write wins), recompute the cursor and answer. A model failure
// leaves the persisted session exactly as it was.
func (m *Manager) Chat(ctx context.Context, sessionID uuid.UUID, userText string) (string, types.Progress, error) {
	lock := m.lockFor(sessionID)
	lock.Lock()
	defer lock.Unlock()

	sess, err := m.store.GetSession(ctx, sessionID)
	if err != nil {
		return "", types.Progress{}, err
	}
	defs, err := m.store.GetDefinitions(ctx, sess.DocID)
	if err != nil {
		return "", types.Progress{}, err
	}

	assignments, rejections, err := m.interp.Interpret(ctx, defs, sess, userText)
	if err != nil {
		return "", types.Progress{}, err
	}

	firstTurn := len(sess.Log) == 0
	now := time.Now()
	updates := make(map[uuid.UUID]types.FilledValue, len(assignments))
	for _, a := range assignments {
		v := types.FilledValue{Value: a.Value, Raw: a.Raw, Confidence: a.Confidence, FilledAt: now}
		updates[a.DefID] = v
		sess.Answers[a.DefID] = v
	}

	if sess.Complete(defs) {
		sess.State = types.SessionCompleted
	} else {
		sess.State = types.SessionInProgress
	}

	assistant := m.reply(defs, sess, assignments, rejections, firstTurn)

	turns := []types.Turn{
		{Role: types.RoleUser, Text: userText, CreatedAt: now},
		{Role: types.RoleAssistant, Text: assistant, CreatedAt: now},
	}
	if err := m.store.ApplyTurn(ctx, sess, turns, updates); err != nil {
		return "", types.Progress{}, err
	}

	progress := sess.ProgressOf(defs)
	m.logger.Info("chat turn", "session", sessionID, "applied", len(assignments), "rejected", len(rejections), "filled", progress.Filled, "total", progress.Total)
	return assistant, progress, nil
}

// reply phrases the assistant's next utterance. A rejected candidate
// takes cursor priority so the user knows exactly which field needs
// fixing, even when an earlier placeholder is also unfilled.
func (m *Manager) reply(defs []types.PlaceholderDefinition, sess *types.FillSession, applied []Assignment, rejections []Rejection, firstTurn bool) string {
	defByID := make(map[uuid.UUID]*types.PlaceholderDefinition, len(defs))
	for i := range defs {
		defByID[defs[i].ID] = &defs[i]
	}

	var sb strings.Builder
	if firstTurn {
		sb.WriteString("Hello! I'll help you fill out this document. ")
	}

	for _, a := range applied {
		if def := defByID[a.DefID]; def != nil {
			fmt.Fprintf(&sb, "Saved %s: %q. ", def.Label, a.Value)
		}
	}

	if len(rejections) > 0 {
		if def := defByID[rejections[0].DefID]; def != nil {
			fmt.Fprintf(&sb, "For %s, %s. For example: %s. What should it be?",
				def.Label, rejections[0].Reason, model.FieldExamples(def.Kind))
			return sb.String()
		}
	}

	cursor := sess.Cursor(defs)
	if cursor == nil {
		sb.WriteString("Excellent! All placeholders have been filled. You can now render and download the completed document. To change any field, just tell me its new value.")
		return sb.String()
	}

	fmt.Fprintf(&sb, "What is the %s? For example: %s.", cursor.Label, model.FieldExamples(cursor.Kind))
	return sb.String()
}
