package parser

import (
	"testing"

	"docfill/types"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTextRoundTrip(t *testing.T) {
	cases := []string{
		"single line",
		"first\nsecond\nthird",
		"keeps\n\n\nempty lines\n",
		"trailing newline\n",
		"  leading and trailing spaces  \n\ttabbed",
	}
	for _, in := range cases {
		blocks, err := ParseText([]byte(in))
		require.NoError(t, err)
		assert.Equal(t, in, Reassemble(blocks), "round trip must be lossless")
	}
}

func TestParseTextIndexesBlocks(t *testing.T) {
	blocks, err := ParseText([]byte("a\nb\nc"))
	require.NoError(t, err)
	require.Len(t, blocks, 3)
	for i, b := range blocks {
		assert.Equal(t, i, b.Index)
	}
	assert.Equal(t, "b", blocks[1].Text)
}

func TestParseTextRejectsEmpty(t *testing.T) {
	var parseErr *types.ParseError
	_, err := ParseText(nil)
	require.Error(t, err)
	assert.ErrorAs(t, err, &parseErr)
}

func TestParseTextRejectsBinary(t *testing.T) {
	var parseErr *types.ParseError
	_, err := ParseText([]byte{0x89, 0x50, 0x4e, 0x47, 0xff, 0xfe})
	require.Error(t, err)
	assert.ErrorAs(t, err, &parseErr)
}
