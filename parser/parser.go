// Package parser turns template bytes into addressable text blocks. It is
// the document-parsing collaborator: everything downstream (extraction,
// rendering) addresses the template only through block indexes and byte
// offsets within a block.
package parser

import (
	"strings"
	"unicode/utf8"

	"docfill/types"
)

// Block is one addressable line of the template. Index is stable across
// re-parses of byte-identical content.
type Block struct {
	Index int
	Text  string
}

// ParseText splits template text into blocks, one per line. The split is
// lossless: Reassemble(ParseText(b)) reproduces the input exactly, which
// is what lets the final render keep strict formatting fidelity.
func ParseText(data []byte) ([]Block, error) {
	if len(data) == 0 {
		return nil, &types.ParseError{Reason: "empty template"}
	}
	if !utf8.Valid(data) {
		return nil, &types.ParseError{Reason: "template is not valid UTF-8 text"}
	}

	lines := strings.Split(string(data), "\n")
	blocks := make([]Block, len(lines))
	for i, line := range lines {
		blocks[i] = Block{Index: i, Text: line}
	}
	return blocks, nil
}

// Reassemble joins blocks back into document text.
func Reassemble(blocks []Block) string {
	parts := make([]string, len(blocks))
	for i, b := range blocks {
		parts[i] = b.Text
	}
	return strings.Join(parts, "\n")
}
