// Package extractor pulls raw dealer candidates out of rendered pages.
package extractor

import (
	"bytes"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/autoatlas/dealercrawler/internal/dealer"
)

// CardSelector matches dealer card blocks by class-name substring.
const CardSelector = `[class*="deal-crd"]`

// CardMarker is the raw class fragment, usable for cheap body scans.
const CardMarker = "deal-crd"

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+-]+@[a-zA-Z0-9.-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`[0-9]{10,}`)
)

// Extractor implements dealer.Extractor over goquery documents.
type Extractor struct {
	logger *zap.Logger
}

// New builds an Extractor.
func New(logger *zap.Logger) *Extractor {
	return &Extractor{logger: logger}
}

// Extract returns the raw dealer candidates found on one rendered page,
// deduplicated by case-normalized name. A page that fails to parse yields
// an empty slice, never an error; a malformed card is skipped and the scan
// continues with the next card.
func (e *Extractor) Extract(page dealer.Page) []dealer.RawCandidate {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		e.logger.Error("parse rendered page", zap.String("url", page.URL), zap.Error(err))
		return nil
	}

	var out []dealer.RawCandidate
	seen := make(map[string]struct{})

	doc.Find(CardSelector).Each(func(_ int, card *goquery.Selection) {
		candidate, ok := e.extractCard(card)
		if !ok {
			return
		}
		key := strings.ToLower(strings.TrimSpace(candidate.Name))
		if _, dup := seen[key]; dup {
			return
		}
		seen[key] = struct{}{}
		out = append(out, candidate)
	})

	e.logger.Debug("extracted dealer cards",
		zap.String("url", page.URL),
		zap.Int("candidates", len(out)),
	)
	return out
}

// extractCard reads one dealer card. Returns ok=false for cards with no
// usable name or a name too short to be a real dealer.
func (e *Extractor) extractCard(card *goquery.Selection) (candidate dealer.RawCandidate, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Debug("skipping malformed dealer card", zap.Any("panic", r))
			ok = false
		}
	}()

	name := strings.TrimSpace(card.Find("h1,h2,h3,h4").First().Text())
	if len([]rune(name)) < 2 {
		return dealer.RawCandidate{}, false
	}
	// Names of 3 or fewer characters are noise even when unique.
	if len([]rune(name)) <= 3 {
		return dealer.RawCandidate{}, false
	}

	address := strings.TrimSpace(card.Find("p").First().Text())
	cardText := card.Text()

	email := emailPattern.FindString(cardText)

	phone := strings.TrimSpace(card.Find(`a[href^="tel:"]`).First().Text())
	if phone == "" {
		phone = phonePattern.FindString(cardText)
	}

	return dealer.RawCandidate{
		Name:    name,
		Address: address,
		Email:   email,
		Phone:   phone,
	}, true
}
