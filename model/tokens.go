package model

import (
	"fmt"

	"docfill/types"

	"github.com/pkoukk/tiktoken-go"
)

// CountTokens считает токены промпта до отправки в модель.
func CountTokens(data string) (int, error) {
	enc, err := tiktoken.EncodingForModel("gpt-3.5-turbo")
	if err != nil {
		return 0, err
	}
	tokens := enc.Encode(data, nil, nil)
	return len(tokens), nil
}

// ClipTurns returns the newest suffix of the conversation log that fits
// the token budget. The log itself is append-only; clipping only affects
// what is quoted into the prompt.
func ClipTurns(turns []types.Turn, budget int) []types.Turn {
	if budget <= 0 || len(turns) == 0 {
		return nil
	}
	total := 0
	start := len(turns)
	for i := len(turns) - 1; i >= 0; i-- {
		n, err := CountTokens(turns[i].Text)
		if err != nil {
			// Токенизатор недоступен: грубая оценка по символам
			n = len(turns[i].Text) / 4
		}
		if total+n > budget {
			break
		}
		total += n
		start = i
	}
	if start == len(turns) {
		return nil
	}
	return turns[start:]
}

// FormatTurns renders log turns for prompt context.
func FormatTurns(turns []types.Turn) string {
	if len(turns) == 0 {
		return "This is the start of the conversation."
	}
	var out string
	for _, t := range turns {
		out += fmt.Sprintf("%s: %s\n", t.Role, t.Text)
	}
	return out
}
