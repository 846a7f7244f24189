package session

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"docfill/types"
)

var errEmptyValue = errors.New("empty value")

var collapseWSRe = regexp.MustCompile(`\s+`)

var dateLayouts = []string{
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"01/02/2006",
	"02.01.2006",
}

var amountRe = regexp.MustCompile(`^[-+]?\d+(\.\d+)?$`)

// Normalize validates a candidate value against its kind and returns the
// canonical form. The model proposed the value; this is the deterministic
// gate that decides whether it becomes a fill.
func Normalize(kind types.Kind, raw string) (string, error) {
	v := strings.TrimSpace(collapseWSRe.ReplaceAllString(raw, " "))
	if v == "" {
		return "", errEmptyValue
	}

	switch kind {
	case types.KindDate:
		return normalizeDate(v)
	case types.KindAmount:
		return normalizeAmount(v)
	default:
		// text, party-name, address, duration, other: trim and collapse only
		return v, nil
	}
}

// normalizeDate accepts a handful of common layouts and canonicalizes to
// ISO 8601.
func normalizeDate(v string) (string, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t.Format("2006-01-02"), nil
		}
	}
	return "", fmt.Errorf("%q is not a calendar date", v)
}

// normalizeAmount strips currency symbols and digit grouping, leaving a
// canonical signed decimal string.
func normalizeAmount(v string) (string, error) {
	cleaned := strings.Map(func(r rune) rune {
		switch r {
		case '$', '€', '£', '₴', ',', ' ':
			return -1
		}
		return r
	}, v)

	// "$1,200/month" style suffixes: keep the leading numeric part
	if i := strings.IndexAny(cleaned, "/"); i > 0 {
		cleaned = cleaned[:i]
	}

	if !amountRe.MatchString(cleaned) {
		return "", fmt.Errorf("%q is not a decimal amount", v)
	}
	return strings.TrimPrefix(cleaned, "+"), nil
}
