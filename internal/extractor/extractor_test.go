package extractor

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/autoatlas/dealercrawler/internal/dealer"
)

func pageWith(body string) dealer.Page {
	return dealer.Page{
		URL:  "https://example.com/dealers/bmw/chennai",
		Body: []byte("<html><body>" + body + "</body></html>"),
	}
}

func card(name, inner string) string {
	return fmt.Sprintf(`<div class="deal-crd-lst"><h3>%s</h3>%s</div>`, name, inner)
}

func TestExtractReadsAllFields(t *testing.T) {
	t.Parallel()

	e := New(zap.NewNop())
	body := card("ABC Motors", `
		<p>12 MG Road, Bangalore, Karnataka 560001</p>
		<span>Contact: sales@abcmotors.in</span>
		<a href="tel:+919876543210">+91 98765 43210</a>`)

	got := e.Extract(pageWith(body))
	require.Len(t, got, 1)
	assert.Equal(t, "ABC Motors", got[0].Name)
	assert.Equal(t, "12 MG Road, Bangalore, Karnataka 560001", got[0].Address)
	assert.Equal(t, "sales@abcmotors.in", got[0].Email)
	assert.Equal(t, "+91 98765 43210", got[0].Phone)
}

func TestExtractPhoneFallsBackToDigitRun(t *testing.T) {
	t.Parallel()

	e := New(zap.NewNop())
	body := card("Highway Honda", `<p>NH-48 Service Rd</p><span>Call 9876543210 today</span>`)

	got := e.Extract(pageWith(body))
	require.Len(t, got, 1)
	assert.Equal(t, "9876543210", got[0].Phone)
}

func TestExtractSkipsShortNames(t *testing.T) {
	t.Parallel()

	e := New(zap.NewNop())
	got := e.Extract(pageWith(card("A", "<p>addr</p>") + card("AB", "<p>addr</p>") + card("ABC", "<p>addr</p>")))
	assert.Empty(t, got)
}

func TestExtractDeduplicatesByNormalizedName(t *testing.T) {
	t.Parallel()

	e := New(zap.NewNop())
	body := card("ABC Motors", "<p>First Rd</p>") + card("abc motors ", "<p>Second Rd</p>")

	got := e.Extract(pageWith(body))
	require.Len(t, got, 1)
	assert.Equal(t, "First Rd", got[0].Address)
}

func TestExtractMissingFieldsAreEmpty(t *testing.T) {
	t.Parallel()

	e := New(zap.NewNop())
	got := e.Extract(pageWith(card("Lonely Dealer", "")))
	require.Len(t, got, 1)
	assert.Empty(t, got[0].Address)
	assert.Empty(t, got[0].Email)
	assert.Empty(t, got[0].Phone)
}

func TestExtractCardlessPageYieldsNothing(t *testing.T) {
	t.Parallel()

	e := New(zap.NewNop())
	assert.Empty(t, e.Extract(pageWith("<div class='hero'>No dealers here</div>")))
	assert.Empty(t, e.Extract(dealer.Page{Body: nil}))
}
