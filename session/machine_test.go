package session

import (
	"context"
	"fmt"
	"testing"
	"time"

	"docfill/store"
	"docfill/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T, defs []types.PlaceholderDefinition, llm *scriptedLLM) (*Manager, *types.FillSession) {
	t.Helper()
	ctx := context.Background()
	mem := store.NewMemoryStore()

	docID := defs[0].DocID
	require.NoError(t, mem.SaveDocument(ctx, types.Document{
		ID: docID, Filename: "lease.txt", Status: types.StatusParsed, CreatedAt: time.Now(),
	}))
	require.NoError(t, mem.SaveDefinitions(ctx, defs, nil))

	m := NewManager(mem, NewModelInterpreter(llm, nil))
	sess, err := m.Create(ctx, docID)
	require.NoError(t, err)
	return m, sess
}

func noAssignments() string { return `{"assignments": []}` }

func assign(pairs ...string) string {
	out := `{"assignments": [`
	for i := 0; i+1 < len(pairs); i += 2 {
		if i > 0 {
			out += ","
		}
		out += fmt.Sprintf(`{"placeholder": %q, "value": %q, "confidence": 0.9}`, pairs[i], pairs[i+1])
	}
	return out + `]}`
}

func TestChatFirstTurnAsksFirstPlaceholder(t *testing.T) {
	defs, _ := testSchema()
	llm := &scriptedLLM{responses: []string{noAssignments()}}
	m, sess := newTestManager(t, defs, llm)

	// Первое сообщение - приветствие, но машина всё равно задаёт вопрос
	assistant, progress, err := m.Chat(context.Background(), sess.ID, "hello")
	require.NoError(t, err)
	assert.Equal(t, types.Progress{Filled: 0, Total: 2}, progress)
	assert.Contains(t, assistant, "Tenant Name")
}

func TestChatMultiFieldTurn(t *testing.T) {
	defs, _ := testSchema()
	llm := &scriptedLLM{responses: []string{
		assign("Tenant Name", "Alice", "Start Date", "January 15, 2024"),
	}}
	m, sess := newTestManager(t, defs, llm)

	assistant, progress, err := m.Chat(context.Background(), sess.ID, "The tenant is Alice and we start January 15, 2024")
	require.NoError(t, err)
	assert.Equal(t, types.Progress{Filled: 2, Total: 2}, progress)
	assert.Contains(t, assistant, "All placeholders have been filled")

	got, p, err := m.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, types.SessionCompleted, got.State)
	assert.Equal(t, 2, p.Filled)
	assert.Equal(t, "2024-01-15", got.Answers[defs[1].ID].Value)
}

func TestChatInvalidValueReasksSameField(t *testing.T) {
	defs, _ := testSchema()
	llm := &scriptedLLM{responses: []string{
		assign("Start Date", "banana"),
	}}
	m, sess := newTestManager(t, defs, llm)

	assistant, progress, err := m.Chat(context.Background(), sess.ID, "banana")
	require.NoError(t, err)
	assert.Equal(t, types.Progress{Filled: 0, Total: 2}, progress)
	// Отклонённое поле получает приоритет курсора, даже если раньше
	// осталось незаполненное поле
	assert.Contains(t, assistant, "Start Date")
	assert.NotContains(t, assistant, "What is the Tenant Name")

	got, _, err := m.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Answers)
}

func TestChatMonotonicProgressOnValidTurns(t *testing.T) {
	defs, _ := testSchema()
	llm := &scriptedLLM{responses: []string{
		assign("Tenant Name", "Alice"),
		assign("Start Date", "2024-02-01"),
	}}
	m, sess := newTestManager(t, defs, llm)

	_, p1, err := m.Chat(context.Background(), sess.ID, "Alice")
	require.NoError(t, err)
	_, p2, err := m.Chat(context.Background(), sess.ID, "2024-02-01")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, p2.Filled, p1.Filled)
	assert.Equal(t, 2, p2.Filled)
}

func TestChatOverwriteLastWriteWins(t *testing.T) {
	defs, _ := testSchema()
	llm := &scriptedLLM{responses: []string{
		assign("Tenant Name", "Alice"),
		assign("Tenant Name", "Bob"),
	}}
	m, sess := newTestManager(t, defs, llm)

	_, _, err := m.Chat(context.Background(), sess.ID, "tenant is Alice")
	require.NoError(t, err)
	_, _, err = m.Chat(context.Background(), sess.ID, "actually make that Bob")
	require.NoError(t, err)

	got, _, err := m.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Bob", got.Answers[defs[0].ID].Value)
	// Лог только дополняется: обе реплики пользователя сохранены
	require.Len(t, got.Log, 4)
	assert.Equal(t, "tenant is Alice", got.Log[0].Text)
	assert.Equal(t, "actually make that Bob", got.Log[2].Text)
}

func TestChatOutOfOrderFillKeepsCursorOnFirstUnfilled(t *testing.T) {
	defs, _ := testSchema()
	llm := &scriptedLLM{responses: []string{
		assign("Start Date", "2024-03-01"),
	}}
	m, sess := newTestManager(t, defs, llm)

	assistant, progress, err := m.Chat(context.Background(), sess.ID, "the date is March 1, 2024")
	require.NoError(t, err)
	assert.Equal(t, types.Progress{Filled: 1, Total: 2}, progress)
	// Курсор не перескакивает: первое незаполненное поле всё ещё первое
	assert.Contains(t, assistant, "Tenant Name")
}

func TestChatModelTimeoutLeavesStateUntouched(t *testing.T) {
	defs, _ := testSchema()
	llm := &scriptedLLM{err: types.ErrModelTimeout}
	m, sess := newTestManager(t, defs, llm)

	_, _, err := m.Chat(context.Background(), sess.ID, "hello")
	assert.ErrorIs(t, err, types.ErrModelTimeout)

	got, p, err := m.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Empty(t, got.Log)
	assert.Empty(t, got.Answers)
	assert.Equal(t, 0, p.Filled)
}

func TestChatAfterCompleteAllowsEdit(t *testing.T) {
	defs, _ := testSchema()
	llm := &scriptedLLM{responses: []string{
		assign("Tenant Name", "Alice", "Start Date", "2024-01-15"),
		assign("Tenant Name", "Carol"),
	}}
	m, sess := newTestManager(t, defs, llm)

	_, p, err := m.Chat(context.Background(), sess.ID, "Alice, 2024-01-15")
	require.NoError(t, err)
	require.Equal(t, 2, p.Filled)

	// SessionAlreadyComplete не ошибка: правка после завершения разрешена
	_, p, err = m.Chat(context.Background(), sess.ID, "change the tenant to Carol")
	require.NoError(t, err)
	assert.Equal(t, 2, p.Filled)

	got, _, err := m.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "Carol", got.Answers[defs[0].ID].Value)
}

func TestChatUnknownSession(t *testing.T) {
	defs, _ := testSchema()
	llm := &scriptedLLM{responses: []string{noAssignments()}}
	m, _ := newTestManager(t, defs, llm)

	_, _, err := m.Chat(context.Background(), uuid.New(), "hello")
	assert.ErrorIs(t, err, types.ErrSessionNotFound)
}

func TestCreateRequiresExtractedDocument(t *testing.T) {
	ctx := context.Background()
	mem := store.NewMemoryStore()
	docID := uuid.New()
	require.NoError(t, mem.SaveDocument(ctx, types.Document{ID: docID, Filename: "empty.txt", Status: types.StatusUploaded}))

	m := NewManager(mem, NewModelInterpreter(&scriptedLLM{}, nil))
	_, err := m.Create(ctx, docID)
	assert.ErrorIs(t, err, types.ErrNoPlaceholders)

	_, err = m.Create(ctx, uuid.New())
	assert.ErrorIs(t, err, types.ErrDocumentNotFound)
}
