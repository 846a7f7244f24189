// Package extract finds fillable placeholders in a parsed template. It
// runs a deterministic pattern pass first, then asks the model to name
// the spans the patterns could not, and finally merges recurring fields
// into one definition with an anchor per occurrence.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"regexp"
	"sort"
	"strings"

	"docfill/model"
	"docfill/parser"
	"docfill/types"

	"github.com/google/uuid"
)

var (
	bracketRe  = regexp.MustCompile(`\[[^\[\]\n]{1,80}\]`)
	blankRunRe = regexp.MustCompile(`_{3,}`)
	dateMaskRe = regexp.MustCompile(`\b[DM]{2}[/.-][DM]{2}[/.-]Y{4}\b|\bY{4}[/.-][DM]{2}[/.-][DM]{2}\b`)
	tbdRe      = regexp.MustCompile(`\bTBD\b|\bTo Be Determined\b`)

	wsRe         = regexp.MustCompile(`\s+`)
	onlyBlanksRe = regexp.MustCompile(`^[\s_•.]*$`)
)

const hintRadius = 80

type candidate struct {
	block   int
	start   int
	end     int
	excerpt string
	label   string // empty until classified
	kind    types.Kind
	hint    string
	before  string // text immediately preceding the span, for fallback labeling
}

type Extractor struct {
	llm model.Completer
}

func New(llm model.Completer) *Extractor {
	return &Extractor{llm: llm}
}

// Extract scans blocks in document order and returns placeholder
// definitions in first-occurrence order. Ids are derived from the
// document id and the normalized label, so re-running extraction over
// byte-identical content yields an identical set.
func (e *Extractor) Extract(ctx context.Context, docID uuid.UUID, blocks []parser.Block) ([]types.PlaceholderDefinition, error) {
	var cands []candidate
	for _, b := range blocks {
		cands = append(cands, scanBlock(b)...)
	}

	if err := e.classify(ctx, cands); err != nil {
		return nil, err
	}

	defs := merge(docID, cands)
	if len(defs) == 0 {
		return nil, types.ErrNoPlaceholders
	}
	log.Printf("[EXTRACT] doc %s: %d candidates merged into %d definitions", docID, len(cands), len(defs))
	return defs, nil
}

// scanBlock runs the deterministic pattern pass over one block and
// resolves overlapping spans: the longer match wins, a span fully
// contained in another is dropped.
func scanBlock(b parser.Block) []candidate {
	var spans []candidate

	add := func(loc []int, kind types.Kind) {
		lo := loc[0] - hintRadius
		if lo < 0 {
			lo = 0
		}
		spans = append(spans, candidate{
			block:   b.Index,
			start:   loc[0],
			end:     loc[1],
			excerpt: b.Text[loc[0]:loc[1]],
			kind:    kind,
			hint:    hintAround(b.Text, loc[0], loc[1]),
			before:  b.Text[lo:loc[0]],
		})
	}

	for _, loc := range bracketRe.FindAllStringIndex(b.Text, -1) {
		add(loc, types.KindOther)
	}
	for _, loc := range blankRunRe.FindAllStringIndex(b.Text, -1) {
		add(loc, types.KindOther)
	}
	for _, loc := range dateMaskRe.FindAllStringIndex(b.Text, -1) {
		add(loc, types.KindDate)
	}
	for _, loc := range tbdRe.FindAllStringIndex(b.Text, -1) {
		add(loc, types.KindOther)
	}

	return dropContained(spans)
}

func dropContained(spans []candidate) []candidate {
	sort.Slice(spans, func(i, j int) bool {
		if spans[i].start != spans[j].start {
			return spans[i].start < spans[j].start
		}
		return spans[i].end > spans[j].end // longer first on same start
	})
	var out []candidate
	for _, s := range spans {
		contained := false
		for _, kept := range out {
			if s.start >= kept.start && s.end <= kept.end {
				contained = true
				break
			}
		}
		if !contained {
			out = append(out, s)
		}
	}
	return out
}

// classify fills in label and kind for every candidate. Bracketed spans
// with readable content are labeled deterministically; blanks, masks and
// TBD markers go through the model. A model timeout fails the whole pass
// (recoverable, nothing persisted); unparseable model output degrades to
// a context-derived label.
func (e *Extractor) classify(ctx context.Context, cands []candidate) error {
	blankSeq := 0
	for i := range cands {
		c := &cands[i]

		if inner, ok := bracketContent(c.excerpt); ok {
			c.label = inner
			if c.kind == types.KindOther {
				c.kind = guessKind(inner)
			}
			continue
		}

		label, kind, err := e.classifySpan(ctx, c)
		if err != nil {
			return err
		}
		if label == "" {
			label = contextLabel(c.before)
			if label == "" {
				blankSeq++
				label = fmt.Sprintf("Blank %d", blankSeq)
			}
		}
		c.label = label
		if c.kind == types.KindOther && kind != types.KindOther {
			c.kind = kind
		}
	}
	return nil
}

func (e *Extractor) classifySpan(ctx context.Context, c *candidate) (string, types.Kind, error) {
	raw, err := e.llm.Generate(ctx, model.SystemPrompt(), model.ClassifyPrompt(c.excerpt, c.hint))
	if err != nil {
		if errors.Is(err, types.ErrModelTimeout) || errors.Is(err, types.ErrModelUnavailable) {
			return "", types.KindOther, err
		}
		return "", types.KindOther, nil
	}

	var resp struct {
		Label string `json:"label"`
		Kind  string `json:"kind"`
	}
	text := model.FirstJSONObject(raw)
	if text == "" || json.Unmarshal([]byte(text), &resp) != nil {
		log.Printf("[EXTRACT] unparseable classification, falling back: %.80q", raw)
		return "", types.KindOther, nil
	}
	return strings.TrimSpace(resp.Label), types.ParseKind(resp.Kind), nil
}

// merge collapses candidates with the same normalized label into one
// definition holding every anchor, in first-occurrence order.
func merge(docID uuid.UUID, cands []candidate) []types.PlaceholderDefinition {
	byKey := make(map[string]*types.PlaceholderDefinition)
	var order []string

	for _, c := range cands {
		key := NormalizeLabel(c.label)
		if key == "" {
			continue
		}
		def, ok := byKey[key]
		if !ok {
			def = &types.PlaceholderDefinition{
				ID:       DefinitionID(docID, key),
				DocID:    docID,
				Label:    strings.TrimSpace(wsRe.ReplaceAllString(c.label, " ")),
				Kind:     c.kind,
				Required: true,
				Hint:     c.hint,
				Order:    len(order),
			}
			byKey[key] = def
			order = append(order, key)
		}
		// Первое конкретное значение kind выигрывает над other
		if def.Kind == types.KindOther && c.kind != types.KindOther {
			def.Kind = c.kind
		}
		def.Anchors = append(def.Anchors, types.Anchor{Block: c.block, Start: c.start, End: c.end})
	}

	defs := make([]types.PlaceholderDefinition, 0, len(order))
	for _, key := range order {
		defs = append(defs, *byKey[key])
	}
	return defs
}

// NormalizeLabel is the dedup key: lowercase with collapsed whitespace.
func NormalizeLabel(label string) string {
	return strings.ToLower(strings.TrimSpace(wsRe.ReplaceAllString(label, " ")))
}

// DefinitionID derives a stable id from the owning document and the
// normalized label.
func DefinitionID(docID uuid.UUID, normLabel string) uuid.UUID {
	return uuid.NewSHA1(docID, []byte("placeholder:"+normLabel))
}

func bracketContent(excerpt string) (string, bool) {
	if !strings.HasPrefix(excerpt, "[") || !strings.HasSuffix(excerpt, "]") {
		return "", false
	}
	inner := excerpt[1 : len(excerpt)-1]
	if onlyBlanksRe.MatchString(inner) {
		return "", false // [_____] is a blank, not a label
	}
	return strings.TrimSpace(inner), true
}

func hintAround(text string, start, end int) string {
	lo := start - hintRadius
	if lo < 0 {
		lo = 0
	}
	hi := end + hintRadius
	if hi > len(text) {
		hi = len(text)
	}
	return strings.TrimSpace(text[lo:hi])
}

// contextLabel derives a fallback label from the words just before the
// span, e.g. "Monthly rent: _____" -> "Monthly rent". The scan stops at
// the preceding blank or bracket, so two blanks on one line keep distinct
// labels.
func contextLabel(before string) string {
	if cut := strings.LastIndexAny(before, "_[]"); cut >= 0 {
		before = before[cut+1:]
	}
	lead := strings.TrimRight(strings.TrimSpace(before), ":=.,-— ")
	words := strings.Fields(lead)
	if len(words) == 0 {
		return ""
	}
	if len(words) > 4 {
		words = words[len(words)-4:]
	}
	return strings.Join(words, " ")
}

func guessKind(label string) types.Kind {
	l := strings.ToLower(label)
	switch {
	case strings.Contains(l, "date"):
		return types.KindDate
	case strings.Contains(l, "amount"), strings.Contains(l, "price"),
		strings.Contains(l, "rent"), strings.Contains(l, "salary"),
		strings.Contains(l, "sum"), strings.Contains(l, "fee"):
		return types.KindAmount
	case strings.Contains(l, "address"), strings.Contains(l, "street"), strings.Contains(l, "city"):
		return types.KindAddress
	case strings.Contains(l, "name") || strings.Contains(l, "party") ||
		strings.Contains(l, "company") || strings.Contains(l, "investor") ||
		strings.Contains(l, "tenant") || strings.Contains(l, "landlord"):
		return types.KindPartyName
	case strings.Contains(l, "term"), strings.Contains(l, "duration"), strings.Contains(l, "period"):
		return types.KindDuration
	default:
		return types.KindText
	}
}
