package session

import (
	"testing"

	"docfill/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"2024-01-15", "2024-01-15"},
		{"January 15, 2024", "2024-01-15"},
		{"Jan 2, 2024", "2024-01-02"},
		{"15 January 2024", "2024-01-15"},
		{"01/15/2024", "2024-01-15"},
	}
	for _, c := range cases {
		got, err := Normalize(types.KindDate, c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got)
	}
}

func TestNormalizeDateRejectsGarbage(t *testing.T) {
	_, err := Normalize(types.KindDate, "banana")
	require.Error(t, err)
}

func TestNormalizeAmount(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"$50,000.00", "50000.00"},
		{"100000", "100000"},
		{"$1,200/month", "1200"},
		{"-300.5", "-300.5"},
		{"+42", "42"},
		{"€ 9 000", "9000"},
	}
	for _, c := range cases {
		got, err := Normalize(types.KindAmount, c.in)
		require.NoError(t, err, c.in)
		assert.Equal(t, c.want, got)
	}
}

func TestNormalizeAmountRejectsNonNumeric(t *testing.T) {
	for _, in := range []string{"a lot", "12abc", ""} {
		_, err := Normalize(types.KindAmount, in)
		assert.Error(t, err, in)
	}
}

func TestNormalizeTextCollapsesWhitespace(t *testing.T) {
	got, err := Normalize(types.KindPartyName, "  Acme   Corporation \n Inc. ")
	require.NoError(t, err)
	assert.Equal(t, "Acme Corporation Inc.", got)
}

func TestNormalizeEmptyIsDropped(t *testing.T) {
	_, err := Normalize(types.KindText, "   \t ")
	assert.ErrorIs(t, err, errEmptyValue)
}
