// Package normalizer cleans raw extracted candidates into validated records.
package normalizer

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/autoatlas/dealercrawler/internal/dealer"
)

var (
	pincodePattern  = regexp.MustCompile(`\b(\d{6})\b`)
	phoneKeepChars  = regexp.MustCompile(`[^\d+\-]`)
	sentinelBlanks  = map[string]struct{}{"N/A": {}, "NA": {}, "n/a": {}}
	administrations = []string{
		"Andhra Pradesh", "Arunachal Pradesh", "Assam", "Bihar", "Chhattisgarh",
		"Goa", "Gujarat", "Haryana", "Himachal Pradesh", "Jharkhand",
		"Karnataka", "Kerala", "Madhya Pradesh", "Maharashtra", "Manipur",
		"Meghalaya", "Mizoram", "Nagaland", "Odisha", "Punjab",
		"Rajasthan", "Sikkim", "Tamil Nadu", "Telangana", "Tripura",
		"Uttar Pradesh", "Uttarakhand", "West Bengal", "Delhi", "Jammu and Kashmir",
		"Ladakh", "Puducherry",
	}
	majorCities = []string{
		"Hyderabad", "Bangalore", "Mumbai", "Delhi", "Chennai", "Pune", "Ahmedabad",
		"Jaipur", "Lucknow", "Indore", "Chandigarh", "Kochi", "Kolkata", "Surat",
		"Nagpur", "Vadodara", "Goa", "Agra", "Visakhapatnam", "Patna", "Bhopal",
		"Ludhiana", "Kanpur", "Srinagar", "Varanasi", "Meerut", "Amritsar", "Guwahati",
		"Jamshedpur", "Noida", "Gurgaon", "Faridabad", "Thane", "Aurangabad", "Ranchi",
		"Ghaziabad", "Coimbatore", "Mysore", "Trivandrum", "Kota", "Udaipur",
	}
)

// Normalizer builds dealer.Records from raw candidates.
type Normalizer struct{}

// New creates a Normalizer.
func New() *Normalizer {
	return &Normalizer{}
}

// Normalize cleans one raw candidate into a Record for the given target and
// validates it. The validity flag and reasons are returned alongside the
// record so the orchestrator can keep or drop it per configuration.
func (n *Normalizer) Normalize(
	raw dealer.RawCandidate,
	target dealer.CrawlTarget,
	sourceURL string,
	discoveredAt time.Time,
) (dealer.Record, bool, []string) {
	address := CleanText(raw.Address)
	city, state, pincode := ParseAddress(address)

	rec := dealer.Record{
		VehicleType:  target.VehicleType,
		Brand:        target.Brand,
		Location:     target.City,
		DealerName:   CleanName(raw.Name),
		Address:      address,
		Phone:        CleanPhone(raw.Phone),
		Email:        CleanEmail(raw.Email),
		City:         city,
		State:        state,
		Pincode:      pincode,
		SourceURL:    sourceURL,
		DiscoveredAt: discoveredAt,
	}

	valid, reasons := Validate(rec)
	return rec, valid, reasons
}

// Validate checks the completeness invariant: a non-empty name of at least
// two characters, and at least one of address, derived city, or location.
func Validate(rec dealer.Record) (bool, []string) {
	var reasons []string
	if rec.DealerName == "" {
		reasons = append(reasons, "missing dealer name")
	} else if len([]rune(rec.DealerName)) < 2 {
		reasons = append(reasons, fmt.Sprintf("dealer name too short: %q", rec.DealerName))
	}
	if rec.Address == "" && rec.City == "" && rec.Location == "" {
		reasons = append(reasons, "missing address, city, and location")
	}
	return len(reasons) == 0, reasons
}

// CleanText trims and maps sentinel placeholders to the empty string.
func CleanText(s string) string {
	s = strings.TrimSpace(s)
	if _, sentinel := sentinelBlanks[s]; sentinel {
		return ""
	}
	return s
}

// CleanName keeps only the first line of a dealer name.
func CleanName(name string) string {
	name = CleanText(name)
	if idx := strings.IndexByte(name, '\n'); idx >= 0 {
		name = name[:idx]
	}
	return strings.TrimSpace(name)
}

// CleanPhone retains only digits, '+', and '-'. Idempotent.
func CleanPhone(phone string) string {
	return phoneKeepChars.ReplaceAllString(CleanText(phone), "")
}

// CleanEmail keeps an address only when it has an '@' and the domain part
// contains a dot.
func CleanEmail(email string) string {
	email = CleanText(email)
	if email == "" {
		return ""
	}
	at := strings.LastIndexByte(email, '@')
	if at < 0 || !strings.Contains(email[at+1:], ".") {
		return ""
	}
	return email
}

// ParseAddress derives city, state, and pincode from free-text addresses.
// Best effort: substring matching against fixed lists, first match wins, no
// match leaves the field empty.
func ParseAddress(address string) (city, state, pincode string) {
	if address == "" {
		return "", "", ""
	}
	if m := pincodePattern.FindStringSubmatch(address); m != nil {
		pincode = m[1]
	}
	for _, s := range administrations {
		if strings.Contains(address, s) {
			state = s
			break
		}
	}
	for _, c := range majorCities {
		if strings.Contains(address, c) {
			city = c
			break
		}
	}
	return city, state, pincode
}
