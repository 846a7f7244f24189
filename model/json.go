package model

import (
	"regexp"
	"strings"
)

var (
	jsonArrayRe  = regexp.MustCompile(`(?s)\[.*\]`)
	jsonObjectRe = regexp.MustCompile(`(?s)\{.*\}`)
)

// StripFences removes markdown code fences the model likes to wrap JSON in.
func StripFences(s string) string {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		lines := strings.Split(s, "\n")
		if len(lines) > 2 {
			s = strings.Join(lines[1:len(lines)-1], "\n")
		}
		s = strings.TrimSpace(s)
	}
	return s
}

// FirstJSONArray pulls the first JSON array out of a noisy completion.
// Returns "" when the text contains none.
func FirstJSONArray(s string) string {
	return jsonArrayRe.FindString(StripFences(s))
}

// FirstJSONObject pulls the first JSON object out of a noisy completion.
func FirstJSONObject(s string) string {
	return jsonObjectRe.FindString(StripFences(s))
}
