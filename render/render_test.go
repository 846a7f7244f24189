package render

import (
	"strings"
	"testing"

	"docfill/types"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const leaseTemplate = "LEASE AGREEMENT\n\nThis lease is between [Landlord Name] and [Tenant Name].\nMonthly rent: [Monthly Rent], due on the first.\n[Tenant Name] shall return the keys at the end of the term."

func leaseDefs() []types.PlaceholderDefinition {
	docID := uuid.New()
	return []types.PlaceholderDefinition{
		{
			ID: uuid.New(), DocID: docID, Label: "Landlord Name", Kind: types.KindPartyName, Order: 0,
			Anchors: []types.Anchor{{Block: 2, Start: 22, End: 37}},
		},
		{
			ID: uuid.New(), DocID: docID, Label: "Tenant Name", Kind: types.KindPartyName, Order: 1,
			Anchors: []types.Anchor{{Block: 2, Start: 42, End: 55}, {Block: 4, Start: 0, End: 13}},
		},
		{
			ID: uuid.New(), DocID: docID, Label: "Monthly Rent", Kind: types.KindAmount, Order: 2,
			Anchors: []types.Anchor{{Block: 3, Start: 14, End: 28}},
		},
	}
}

func TestFinalSubstitutesAllAnchors(t *testing.T) {
	defs := leaseDefs()
	answers := map[uuid.UUID]types.FilledValue{
		defs[0].ID: {Value: "Acme Properties LLC"},
		defs[1].ID: {Value: "Alice Johnson"},
		defs[2].ID: {Value: "1200.00"},
	}

	out, err := Final([]byte(leaseTemplate), defs, answers)
	require.NoError(t, err)

	text := string(out)
	assert.NotContains(t, text, "[")
	assert.NotContains(t, text, "]")
	assert.Contains(t, text, "between Acme Properties LLC and Alice Johnson.")
	assert.Contains(t, text, "Monthly rent: 1200.00, due on the first.")
	// Обе привязки одного плейсхолдера подставлены
	assert.Contains(t, text, "Alice Johnson shall return the keys")
}

func TestFinalLeavesUnfilledUntouched(t *testing.T) {
	defs := leaseDefs()
	answers := map[uuid.UUID]types.FilledValue{
		defs[1].ID: {Value: "Alice Johnson"},
	}

	out, err := Final([]byte(leaseTemplate), defs, answers)
	require.NoError(t, err)

	text := string(out)
	assert.Contains(t, text, "[Landlord Name]")
	assert.Contains(t, text, "[Monthly Rent]")
	assert.NotContains(t, text, "[Tenant Name]")
}

func TestFinalPreservesUntouchedBytes(t *testing.T) {
	defs := leaseDefs()

	out, err := Final([]byte(leaseTemplate), defs, nil)
	require.NoError(t, err)
	assert.Equal(t, leaseTemplate, string(out), "no answers means byte-identical output")
}

func TestRenderIsPure(t *testing.T) {
	defs := leaseDefs()
	answers := map[uuid.UUID]types.FilledValue{
		defs[0].ID: {Value: "Acme Properties LLC"},
		defs[2].ID: {Value: "1200.00"},
	}

	a, err := Final([]byte(leaseTemplate), defs, answers)
	require.NoError(t, err)
	b, err := Final([]byte(leaseTemplate), defs, answers)
	require.NoError(t, err)
	assert.Equal(t, a, b)

	pa, err := Preview([]byte(leaseTemplate), defs, answers)
	require.NoError(t, err)
	pb, err := Preview([]byte(leaseTemplate), defs, answers)
	require.NoError(t, err)
	assert.Equal(t, pa, pb)
}

func TestPreviewMarksFilledAndPending(t *testing.T) {
	defs := leaseDefs()
	answers := map[uuid.UUID]types.FilledValue{
		defs[1].ID: {Value: "Alice Johnson"},
	}

	out, err := Preview([]byte(leaseTemplate), defs, answers)
	require.NoError(t, err)

	html := string(out)
	assert.Contains(t, html, `<span class="filled-value">Alice Johnson</span>`)
	assert.Contains(t, html, `<span class="pending-value">[Landlord Name]</span>`)
	assert.Contains(t, html, `<span class="pending-value">[Monthly Rent]</span>`)
}

func TestPreviewEscapesTemplateText(t *testing.T) {
	template := "Payable to [Payee] <immediately> & in full."
	defs := []types.PlaceholderDefinition{{
		ID: uuid.New(), Label: "Payee", Kind: types.KindPartyName,
		Anchors: []types.Anchor{{Block: 0, Start: 11, End: 18}},
	}}
	answers := map[uuid.UUID]types.FilledValue{
		defs[0].ID: {Value: "Bob <script>alert(1)</script>"},
	}

	out, err := Preview([]byte(template), defs, answers)
	require.NoError(t, err)

	html := string(out)
	assert.NotContains(t, html, "<script>")
	assert.NotContains(t, html, "<immediately>")
	assert.Contains(t, html, "&lt;immediately&gt;")
	assert.Contains(t, html, "&lt;script&gt;")
}

func TestPreviewSkipsBlankLines(t *testing.T) {
	defs := leaseDefs()
	out, err := Preview([]byte(leaseTemplate), defs, nil)
	require.NoError(t, err)
	assert.Equal(t, strings.Count(string(out), "<p>"), 4, "blank second line is dropped")
}

func TestFinalRejectsInvalidTemplate(t *testing.T) {
	var renderErr *types.RenderError

	_, err := Final([]byte{0xff, 0xfe, 0x00}, nil, nil)
	require.Error(t, err)
	assert.ErrorAs(t, err, &renderErr)

	_, err = Final(nil, nil, nil)
	require.Error(t, err)
	assert.ErrorAs(t, err, &renderErr)
}

func TestFilename(t *testing.T) {
	assert.Equal(t, "lease_filled.txt", Filename("lease.txt"))
	assert.Equal(t, "contract_filled", Filename("contract"))
	assert.Equal(t, ".env_filled", Filename(".env"))
}
