package dealer

import (
	"context"
	"time"
)

// Page is the result of fetching or rendering a dealer page.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Body       []byte
	Duration   time.Duration
	UsedJS     bool
}

// ContentLength reports the body size in bytes.
func (p Page) ContentLength() int {
	return len(p.Body)
}

// Fetcher retrieves a page over plain HTTP without JavaScript execution.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// Renderer retrieves a page with JavaScript executed and lazy content settled.
type Renderer interface {
	Render(ctx context.Context, url string) (Page, error)
	Close()
}

// Detector decides whether a probe-fetched page must be re-fetched headless.
type Detector interface {
	ShouldPromote(page Page) bool
}

// Extractor pulls raw dealer candidates out of a rendered page.
type Extractor interface {
	Extract(page Page) []RawCandidate
}

// CityResolver produces the ordered city list for one brand. Soft failures
// (unreachable catalog, malformed payload) yield an empty list and a nil
// error; callers treat empty as "skip this brand".
type CityResolver interface {
	Resolve(ctx context.Context, brand string, spec LocationSpec) ([]string, error)
}

// Sink persists the finished record set and the failure log.
type Sink interface {
	SaveRecords(records []Record, format string, customFilename string) (string, error)
	SaveFailures(failures []FailureRecord) error
}

// Clock abstracts wall time so tests can run without real sleeps.
type Clock interface {
	Now() time.Time
	Sleep(ctx context.Context, d time.Duration)
}

// RetryPolicy governs the brand-level retry wrapper.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// IDGenerator mints run identifiers.
type IDGenerator interface {
	NewID() (string, error)
}
