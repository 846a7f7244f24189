package types

import (
	"time"

	"github.com/google/uuid"
)

type Kind string

const (
	KindText      Kind = "text"
	KindDate      Kind = "date"
	KindAmount    Kind = "amount"
	KindAddress   Kind = "address"
	KindPartyName Kind = "party-name"
	KindDuration  Kind = "duration"
	KindOther     Kind = "other"
)

// ParseKind keeps unknown model output from leaking into the schema.
func ParseKind(s string) Kind {
	switch Kind(s) {
	case KindText, KindDate, KindAmount, KindAddress, KindPartyName, KindDuration, KindOther:
		return Kind(s)
	}
	return KindOther
}

type DocumentStatus string

const (
	StatusUploaded    DocumentStatus = "uploaded"
	StatusParsed      DocumentStatus = "parsed"
	StatusParseFailed DocumentStatus = "parse_failed"
)

type Document struct {
	ID        uuid.UUID      `json:"id"`
	Filename  string         `json:"filename"`
	Status    DocumentStatus `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
}

// Anchor locates one occurrence of a placeholder inside the parsed
// template: block index plus byte offsets into the block text.
type Anchor struct {
	Block int `json:"block"`
	Start int `json:"start"`
	End   int `json:"end"`
}

// PlaceholderDefinition is one semantic field of the template. A field
// that recurs in several places carries one anchor per occurrence.
type PlaceholderDefinition struct {
	ID       uuid.UUID `json:"id"`
	DocID    uuid.UUID `json:"document_id"`
	Label    string    `json:"label"`
	Kind     Kind      `json:"kind"`
	Required bool      `json:"required"`
	Hint     string    `json:"hint,omitempty"`
	Order    int       `json:"order"`
	Anchors  []Anchor  `json:"anchors"`
}

type FilledValue struct {
	Value      string    `json:"value"`
	Raw        string    `json:"raw"`
	Confidence float64   `json:"confidence"`
	FilledAt   time.Time `json:"filled_at"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Turn struct {
	Role      Role      `json:"role"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

type SessionState string

const (
	SessionPending    SessionState = "pending"
	SessionInProgress SessionState = "in_progress"
	SessionCompleted  SessionState = "completed"
)

// FillSession is the durable record of one fill conversation. Answers are
// keyed by definition id; only keys present count as filled. The cursor is
// never stored, it is recomputed from answers and definition order.
type FillSession struct {
	ID        uuid.UUID                 `json:"id"`
	DocID     uuid.UUID                 `json:"document_id"`
	State     SessionState              `json:"state"`
	Answers   map[uuid.UUID]FilledValue `json:"answers"`
	Log       []Turn                    `json:"log"`
	StartedAt time.Time                 `json:"started_at"`
}

type Progress struct {
	Filled int `json:"filled"`
	Total  int `json:"total"`
}

func (s *FillSession) ProgressOf(defs []PlaceholderDefinition) Progress {
	filled := 0
	for _, d := range defs {
		if _, ok := s.Answers[d.ID]; ok {
			filled++
		}
	}
	return Progress{Filled: filled, Total: len(defs)}
}

// Complete reports whether every definition has an answer.
func (s *FillSession) Complete(defs []PlaceholderDefinition) bool {
	p := s.ProgressOf(defs)
	return p.Total > 0 && p.Filled == p.Total
}

// Cursor returns the first still-unfilled definition in extraction order,
// or nil when the session is complete.
func (s *FillSession) Cursor(defs []PlaceholderDefinition) *PlaceholderDefinition {
	for i := range defs {
		if _, ok := s.Answers[defs[i].ID]; !ok {
			return &defs[i]
		}
	}
	return nil
}
