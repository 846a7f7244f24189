package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStripFences(t *testing.T) {
	assert.Equal(t, `{"a": 1}`, StripFences("```json\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, StripFences("```\n{\"a\": 1}\n```"))
	assert.Equal(t, `{"a": 1}`, StripFences(`{"a": 1}`))
	assert.Equal(t, `{"a": 1}`, StripFences("  {\"a\": 1}  "))
}

func TestFirstJSONObjectFromNoisyOutput(t *testing.T) {
	got := FirstJSONObject("Sure, here is the result:\n```json\n{\"label\": \"Tenant Name\", \"kind\": \"party-name\"}\n```\nLet me know if you need anything else!")
	assert.Equal(t, `{"label": "Tenant Name", "kind": "party-name"}`, got)

	assert.Equal(t, "", FirstJSONObject("no json here"))
}

func TestFirstJSONArrayFromNoisyOutput(t *testing.T) {
	got := FirstJSONArray("The placeholders are: [{\"label\": \"Date\"}] as requested.")
	assert.Equal(t, `[{"label": "Date"}]`, got)

	assert.Equal(t, "", FirstJSONArray("nothing to see"))
}
