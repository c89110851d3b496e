// Package detector decides when a probe fetch must be promoted to a
// headless render.
package detector

import (
	"bytes"

	"github.com/autoatlas/dealercrawler/internal/dealer"
	"github.com/autoatlas/dealercrawler/internal/extractor"
)

// Heuristic promotes pages whose static HTML cannot yield dealer cards.
type Heuristic struct {
	// MinHTMLBytes below which a successful response is considered a
	// JS shell rather than real content.
	MinHTMLBytes int
}

// New creates a detector.
func New(minHTMLBytes int) *Heuristic {
	if minHTMLBytes <= 0 {
		minHTMLBytes = 2048
	}
	return &Heuristic{MinHTMLBytes: minHTMLBytes}
}

var spaMarkers = [][]byte{
	[]byte("__next"),
	[]byte(`id="root"`),
	[]byte(`id="app"`),
	[]byte("data-reactroot"),
}

// ShouldPromote reports whether page needs the headless renderer. A probe
// body that already carries dealer card markup can be extracted as-is.
func (h *Heuristic) ShouldPromote(page dealer.Page) bool {
	if page.StatusCode != 200 {
		return false
	}
	body := page.Body
	if len(body) == 0 {
		return true
	}
	if bytes.Contains(body, []byte(extractor.CardMarker)) {
		return false
	}
	if len(body) < h.MinHTMLBytes {
		return true
	}
	for _, marker := range spaMarkers {
		if bytes.Contains(body, marker) {
			return true
		}
	}
	// A full static page with no SPA hints and no cards is a genuine
	// "no dealers here" page; rendering it again would find nothing.
	return false
}
