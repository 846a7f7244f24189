package session

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"strings"

	"docfill/extract"
	"docfill/model"
	"docfill/types"

	"github.com/google/uuid"
)

const logTokenBudget = 2048

// Assignment is a validated (placeholder, value) pair ready to apply.
type Assignment struct {
	DefID      uuid.UUID
	Value      string
	Raw        string
	Confidence float64
}

// Rejection is a candidate that named a real placeholder but failed
// kind validation. It never fails the turn: the machine folds it into a
// clarifying question.
type Rejection struct {
	DefID  uuid.UUID
	Reason string
}

// Interpreter turns one user turn into assignments. Implementations must
// be all-or-nothing: an error means nothing may be applied.
type Interpreter interface {
	Interpret(ctx context.Context, defs []types.PlaceholderDefinition, sess *types.FillSession, userText string) ([]Assignment, []Rejection, error)
}

// Matcher routes a model-proposed label that matches no known id or label
// to a definition, typically by hint-embedding similarity.
type Matcher interface {
	Match(ctx context.Context, docID uuid.UUID, label string) (uuid.UUID, bool, error)
}

// ModelInterpreter delegates extraction to the language model and then
// re-validates every candidate deterministically. Malformed model output
// yields an empty sequence, not an error; only infrastructure failures
// (timeout, unavailable) propagate.
type ModelInterpreter struct {
	llm     model.Completer
	matcher Matcher
}

func NewModelInterpreter(llm model.Completer, matcher Matcher) *ModelInterpreter {
	return &ModelInterpreter{llm: llm, matcher: matcher}
}

type candidateJSON struct {
	Placeholder string  `json:"placeholder"`
	Value       string  `json:"value"`
	Confidence  float64 `json:"confidence"`
}

func (in *ModelInterpreter) Interpret(ctx context.Context, defs []types.PlaceholderDefinition, sess *types.FillSession, userText string) ([]Assignment, []Rejection, error) {
	answers := make(map[string]string, len(sess.Answers))
	for id, v := range sess.Answers {
		answers[id.String()] = v.Value
	}

	prompt := model.TurnPrompt(defs, answers, sess.Cursor(defs), model.ClipTurns(sess.Log, logTokenBudget), userText)
	raw, err := in.llm.Generate(ctx, model.SystemPrompt(), prompt)
	if err != nil {
		if errors.Is(err, types.ErrModelTimeout) || errors.Is(err, types.ErrModelUnavailable) {
			return nil, nil, err
		}
		// Любая другая ошибка модели трактуется как пустой ответ
		log.Printf("[INTERPRET] model error treated as no assignment: %v", err)
		return nil, nil, nil
	}

	var resp struct {
		Assignments []candidateJSON `json:"assignments"`
	}
	text := model.FirstJSONObject(raw)
	if text == "" || json.Unmarshal([]byte(text), &resp) != nil {
		log.Printf("[INTERPRET] unparseable model output: %.120q", raw)
		return nil, nil, nil
	}

	byDef := make(map[uuid.UUID]int)
	var assignments []Assignment
	var rejections []Rejection

	for _, c := range resp.Assignments {
		def := in.resolve(ctx, defs, sess.DocID, c.Placeholder)
		if def == nil {
			log.Printf("[INTERPRET] candidate for unknown placeholder %q dropped", c.Placeholder)
			continue
		}
		if looksLikeFieldName(def, c.Value) {
			log.Printf("[INTERPRET] rejected field name as value: %q", c.Value)
			continue
		}

		value, err := Normalize(def.Kind, c.Value)
		if err != nil {
			if errors.Is(err, errEmptyValue) {
				continue // whitespace-only is dropped, never a rejection
			}
			rejections = append(rejections, Rejection{DefID: def.ID, Reason: err.Error()})
			continue
		}

		a := Assignment{DefID: def.ID, Value: value, Raw: c.Value, Confidence: c.Confidence}
		if i, ok := byDef[def.ID]; ok {
			assignments[i] = a // last write wins within one turn
			continue
		}
		byDef[def.ID] = len(assignments)
		assignments = append(assignments, a)
	}

	return assignments, rejections, nil
}

// resolve maps a model-proposed placeholder reference to a definition:
// exact id first, then normalized label, then embedding similarity.
func (in *ModelInterpreter) resolve(ctx context.Context, defs []types.PlaceholderDefinition, docID uuid.UUID, ref string) *types.PlaceholderDefinition {
	ref = strings.TrimSpace(ref)
	if ref == "" {
		return nil
	}

	if id, err := uuid.Parse(ref); err == nil {
		for i := range defs {
			if defs[i].ID == id {
				return &defs[i]
			}
		}
	}

	key := extract.NormalizeLabel(ref)
	for i := range defs {
		if extract.NormalizeLabel(defs[i].Label) == key {
			return &defs[i]
		}
	}

	if in.matcher != nil {
		id, ok, err := in.matcher.Match(ctx, docID, ref)
		if err != nil {
			log.Printf("[INTERPRET] matcher error for %q: %v", ref, err)
			return nil
		}
		if ok {
			for i := range defs {
				if defs[i].ID == id {
					return &defs[i]
				}
			}
		}
	}
	return nil
}

// looksLikeFieldName rejects the model echoing the field's own name as
// its value ("the company name" for Company Name).
func looksLikeFieldName(def *types.PlaceholderDefinition, value string) bool {
	v := extract.NormalizeLabel(value)
	label := extract.NormalizeLabel(def.Label)
	return v == label || v == "the "+label
}
