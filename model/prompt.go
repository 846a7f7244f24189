package model

import (
	"fmt"
	"strings"

	"docfill/types"
)

const systemPrompt = `You are an assistant helping fill legal document templates.
Answer clearly and to the point, without adding any additional information.
Don't add introductions like 'Of course!' or 'Here's the answer:'`

// SystemPrompt is shared by every engine call into the model.
func SystemPrompt() string { return systemPrompt }

const classifyPromptFmt = `You are analyzing a fill-in span found in a legal document draft.

The span appears in the document as: "%s"
Surrounding text: "%s"

Provide:
- label: a short human-readable field name (e.g. "Company Name", "Purchase Amount", "Date of Safe")
- kind: one of: text, date, amount, address, party-name, duration, other

Return ONLY a valid JSON object like {"label": "...", "kind": "..."}. No other text.`

// ClassifyPrompt asks the model to name an ambiguous candidate span.
func ClassifyPrompt(excerpt, context string) string {
	return fmt.Sprintf(classifyPromptFmt, excerpt, context)
}

const turnPromptFmt = `We are filling a legal document template field by field through conversation.

FIELDS (id | label | kind | status):
%s

FIELD CURRENTLY ASKED ABOUT:
%s

RECENT CONVERSATION:
%s

CURRENT USER MESSAGE: "%s"

Extract every field value the user supplied in this message. The user may
answer the asked field, several fields at once, or correct an already
filled field by mentioning its name. Clean each value up (trim
conversational filler, keep the substantive content). Do NOT invent
values the user did not state, and do NOT return a field's own name or
description as its value.

Return ONLY a valid JSON object:
{"assignments": [{"placeholder": "<field id or label>", "value": "<extracted value>", "confidence": 0.0-1.0}]}

Return {"assignments": []} if the message supplies no field value.`

// TurnPrompt builds the per-turn extraction prompt for the interpreter.
func TurnPrompt(defs []types.PlaceholderDefinition, answers map[string]string, cursor *types.PlaceholderDefinition, log []types.Turn, userText string) string {
	var schema strings.Builder
	for _, d := range defs {
		status := "unfilled"
		if v, ok := answers[d.ID.String()]; ok {
			status = fmt.Sprintf("filled with %q", v)
		}
		fmt.Fprintf(&schema, "- %s | %s | %s | %s\n", d.ID, d.Label, d.Kind, status)
	}

	current := "None - all fields are filled; the user may still be editing."
	if cursor != nil {
		current = fmt.Sprintf("%s (%s, kind %s)", cursor.Label, cursor.ID, cursor.Kind)
		if cursor.Hint != "" {
			current += fmt.Sprintf("\nAppears in document near: %q", cursor.Hint)
		}
	}

	return fmt.Sprintf(turnPromptFmt, schema.String(), current, FormatTurns(log), userText)
}

// FieldExamples returns 1-2 examples used in assistant questions so the
// user knows what shape of value is expected.
func FieldExamples(kind types.Kind) string {
	switch kind {
	case types.KindDate:
		return `"January 15, 2024" or "2024-12-31"`
	case types.KindAmount:
		return `"$50,000.00" or "100000"`
	case types.KindAddress:
		return `"123 Main Street, New York, NY 10001"`
	case types.KindPartyName:
		return `"TechStart Inc." or "Jane Doe"`
	case types.KindDuration:
		return `"12 months" or "2 years"`
	default:
		return `"Acme Corporation" or "John Smith"`
	}
}
