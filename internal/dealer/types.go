// Package dealer defines core types shared across subsystems.
package dealer

import (
	"strings"
	"time"
)

// RunStatus represents the lifecycle state of a crawl run.
type RunStatus string

// Run status values reported by the orchestrator.
const (
	RunStatusIdle      RunStatus = "idle"
	RunStatusRunning   RunStatus = "running"
	RunStatusPaused    RunStatus = "paused"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Record is one discovered dealer. Immutable after construction; the
// orchestrator owns the accumulated collection until it reaches the sink.
type Record struct {
	VehicleType  string    `json:"vehicle_type"`
	Brand        string    `json:"brand"`
	Location     string    `json:"location"`
	DealerName   string    `json:"dealer_name"`
	Address      string    `json:"address"`
	Phone        string    `json:"phone"`
	Email        string    `json:"email"`
	City         string    `json:"city"`
	State        string    `json:"state"`
	Pincode      string    `json:"pincode"`
	SourceURL    string    `json:"source_url"`
	DiscoveredAt time.Time `json:"discovered_at"`
}

// RawCandidate is one unvalidated dealer card extracted from a rendered page.
type RawCandidate struct {
	Name    string
	Address string
	Email   string
	Phone   string
}

// CrawlTarget identifies one (vehicle type, brand, city) attempt.
type CrawlTarget struct {
	VehicleType string
	Brand       string
	City        string
}

// FailureRecord captures a brand whose scrape exhausted its retries.
type FailureRecord struct {
	VehicleType string    `json:"vehicle_type"`
	Brand       string    `json:"brand"`
	Error       string    `json:"error"`
	Timestamp   time.Time `json:"timestamp"`
}

// RunStats tracks per-run counters. Mutated only by the orchestrator and
// monotonically non-decreasing within a run.
type RunStats struct {
	TotalAttempts     int `json:"total_attempts"`
	SuccessfulScrapes int `json:"successful_scrapes"`
	FailedScrapes     int `json:"failed_scrapes"`
	InvalidData       int `json:"invalid_data"`
	Retries           int `json:"retries"`
}

// LocationSpec selects which cities a brand is crawled against: the full
// catalog, or an explicit list from configuration.
type LocationSpec struct {
	All    bool
	Cities []string
}

// AllLocations returns the spec covering every catalog city.
func AllLocations() LocationSpec {
	return LocationSpec{All: true}
}

// ExplicitLocations returns a spec for a fixed city list.
func ExplicitLocations(cities []string) LocationSpec {
	return LocationSpec{Cities: append([]string(nil), cities...)}
}

// BrandSlug converts a configured brand identifier into its URL slug.
func BrandSlug(brand string) string {
	return strings.ToLower(strings.TrimSpace(brand))
}

// CitySlug converts a catalog city name into its URL slug.
func CitySlug(city string) string {
	slug := strings.ToLower(strings.TrimSpace(city))
	slug = strings.ReplaceAll(slug, " ", "-")
	return strings.ReplaceAll(slug, ",", "")
}

// DealerPageURL builds the page URL for one crawl target.
func DealerPageURL(baseURL, brand, city string) string {
	return strings.TrimRight(baseURL, "/") + "/" + BrandSlug(brand) + "/" + CitySlug(city)
}
