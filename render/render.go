// Package render merges answers into the original template. Rendering is
// a pure function of (template bytes, answers): repeated calls with the
// same inputs produce byte-identical output, so previews are safe to
// poll and cache client-side.
package render

import (
	"fmt"
	"html"
	"sort"
	"strings"

	"docfill/parser"
	"docfill/types"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
)

var previewPolicy = func() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowElements("span", "p")
	p.AllowAttrs("class").OnElements("span")
	return p
}()

// Final substitutes every answered anchor with its normalized value and
// leaves unfilled placeholder text untouched, so the user sees exactly
// what remains. Formatting fidelity is strict: unchanged spans are
// reproduced byte for byte.
func Final(template []byte, defs []types.PlaceholderDefinition, answers map[uuid.UUID]types.FilledValue) ([]byte, error) {
	blocks, err := parser.ParseText(template)
	if err != nil {
		return nil, &types.RenderError{Err: err}
	}

	apply(blocks, defs, answers, func(value string, _ bool, original string) string {
		if value == "" {
			return original
		}
		return value
	})

	return []byte(parser.Reassemble(blocks)), nil
}

// Preview renders an HTML view where filled anchors carry a
// "filled-value" span and unfilled ones a "pending-value" span.
func Preview(template []byte, defs []types.PlaceholderDefinition, answers map[uuid.UUID]types.FilledValue) ([]byte, error) {
	blocks, err := parser.ParseText(template)
	if err != nil {
		return nil, &types.RenderError{Err: err}
	}

	// Разметка вставляется до экранирования, поэтому используем маркеры
	const openFilled = "\x00F\x00"
	const openPending = "\x00P\x00"
	const closeSpan = "\x00/\x00"

	apply(blocks, defs, answers, func(value string, filled bool, original string) string {
		if filled {
			return openFilled + value + closeSpan
		}
		return openPending + original + closeSpan
	})

	var sb strings.Builder
	sb.WriteString(htmlHeader)
	for _, b := range blocks {
		if strings.TrimSpace(b.Text) == "" {
			continue
		}
		line := html.EscapeString(b.Text)
		line = strings.ReplaceAll(line, openFilled, `<span class="filled-value">`)
		line = strings.ReplaceAll(line, openPending, `<span class="pending-value">`)
		line = strings.ReplaceAll(line, closeSpan, `</span>`)
		sb.WriteString("    <p>")
		sb.WriteString(previewPolicy.Sanitize(line))
		sb.WriteString("</p>\n")
	}
	sb.WriteString(htmlFooter)
	return []byte(sb.String()), nil
}

type replaceFn func(value string, filled bool, original string) string

// apply rewrites every anchored span. Within a block, anchors are applied
// right to left so earlier offsets stay valid.
func apply(blocks []parser.Block, defs []types.PlaceholderDefinition, answers map[uuid.UUID]types.FilledValue, fn replaceFn) {
	type edit struct {
		start, end int
		text       string
	}
	perBlock := make(map[int][]edit)

	for _, d := range defs {
		v, filled := answers[d.ID]
		for _, a := range d.Anchors {
			if a.Block < 0 || a.Block >= len(blocks) {
				continue
			}
			text := blocks[a.Block].Text
			if a.Start < 0 || a.End > len(text) || a.Start > a.End {
				continue
			}
			perBlock[a.Block] = append(perBlock[a.Block], edit{
				start: a.Start,
				end:   a.End,
				text:  fn(v.Value, filled, text[a.Start:a.End]),
			})
		}
	}

	for idx, edits := range perBlock {
		sort.Slice(edits, func(i, j int) bool { return edits[i].start > edits[j].start })
		text := blocks[idx].Text
		for _, e := range edits {
			text = text[:e.start] + e.text + text[e.end:]
		}
		blocks[idx].Text = text
	}
}

const htmlHeader = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>Document Preview</title>
  <style>
    body { font-family: Georgia, 'Times New Roman', serif; max-width: 900px; margin: 0 auto; padding: 40px 20px; line-height: 1.8; color: #333; }
    p { margin-bottom: 12px; text-align: justify; }
    .filled-value { background-color: #e3f2fd; padding: 2px 6px; border-radius: 3px; color: #1565c0; border-bottom: 2px solid #64b5f6; }
    .pending-value { background-color: #fff8e1; padding: 2px 6px; border-radius: 3px; color: #8d6e63; border-bottom: 2px dashed #ffb300; }
  </style>
</head>
<body>
  <div class="document-container">
`

const htmlFooter = `  </div>
</body>
</html>
`

// Filename derives the download name for the final artifact.
func Filename(original string) string {
	ext := ""
	base := original
	if i := strings.LastIndex(original, "."); i > 0 {
		base, ext = original[:i], original[i:]
	}
	return fmt.Sprintf("%s_filled%s", base, ext)
}
