// Package scraper implements the crawl orchestration loop.
package scraper

import (
	"context"
	"fmt"
	"math/rand/v2"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/autoatlas/dealercrawler/internal/config"
	"github.com/autoatlas/dealercrawler/internal/dealer"
	"github.com/autoatlas/dealercrawler/internal/metrics"
	"github.com/autoatlas/dealercrawler/internal/normalizer"
)

// Orchestrator drives one crawl run: vehicle type, then brand, then city,
// in a single control flow. It exclusively owns the run's stats, record
// accumulator, and failure log.
type Orchestrator struct {
	cfg        config.Config
	resolver   dealer.CityResolver
	fetcher    dealer.Fetcher
	renderer   dealer.Renderer
	detector   dealer.Detector
	extractor  dealer.Extractor
	normalizer *normalizer.Normalizer
	retry      dealer.RetryPolicy
	clock      dealer.Clock
	logger     *zap.Logger
	runID      string

	mu       sync.Mutex
	status   dealer.RunStatus
	stats    dealer.RunStats
	records  []dealer.Record
	failures []dealer.FailureRecord
}

// Snapshot is a point-in-time view of a run for the status API.
type Snapshot struct {
	RunID    string           `json:"run_id"`
	Status   dealer.RunStatus `json:"status"`
	Stats    dealer.RunStats  `json:"stats"`
	Records  int              `json:"records"`
	Failures int              `json:"failures"`
}

// New constructs an Orchestrator. At least one of fetcher and renderer is
// required; without a renderer every page is extracted from the probe body.
func New(
	cfg config.Config,
	resolver dealer.CityResolver,
	fetcher dealer.Fetcher,
	renderer dealer.Renderer,
	detector dealer.Detector,
	extractor dealer.Extractor,
	norm *normalizer.Normalizer,
	retry dealer.RetryPolicy,
	clock dealer.Clock,
	runID string,
	logger *zap.Logger,
) (*Orchestrator, error) {
	if resolver == nil {
		return nil, dealer.NewConfigError("city resolver is required")
	}
	if fetcher == nil && renderer == nil {
		return nil, dealer.NewConfigError("at least one of probe fetcher and renderer is required")
	}
	if extractor == nil {
		return nil, dealer.NewConfigError("extractor is required")
	}
	if norm == nil {
		norm = normalizer.New()
	}
	if retry == nil {
		retry = NewExponentialRetryPolicy(cfg.Crawler.MaxRetries, time.Second)
	}
	metrics.Init()
	return &Orchestrator{
		cfg:        cfg,
		resolver:   resolver,
		fetcher:    fetcher,
		renderer:   renderer,
		detector:   detector,
		extractor:  extractor,
		normalizer: norm,
		retry:      retry,
		clock:      clock,
		logger:     logger,
		runID:      runID,
		status:     dealer.RunStatusIdle,
	}, nil
}

// Run executes the crawl across every configured vehicle type and brand.
// Brand-level failures are recorded and skipped; only cancellation and
// setup problems make Run return an error. Accumulated records survive
// either way and stay readable through Records.
func (o *Orchestrator) Run(ctx context.Context) error {
	o.setStatus(dealer.RunStatusRunning)
	o.logger.Info("starting dealer crawl", zap.String("run_id", o.runID))

	for _, vt := range o.vehicleTypeNames() {
		if err := ctx.Err(); err != nil {
			o.setStatus(dealer.RunStatusFailed)
			return fmt.Errorf("run interrupted: %w", err)
		}
		o.scrapeVehicleType(ctx, vt, o.cfg.VehicleTypes[vt])
	}

	if err := ctx.Err(); err != nil {
		o.setStatus(dealer.RunStatusFailed)
		return fmt.Errorf("run interrupted: %w", err)
	}
	o.setStatus(dealer.RunStatusCompleted)
	o.logSummary()
	return nil
}

func (o *Orchestrator) vehicleTypeNames() []string {
	names := make([]string, 0, len(o.cfg.VehicleTypes))
	for name := range o.cfg.VehicleTypes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (o *Orchestrator) scrapeVehicleType(ctx context.Context, vt string, vtCfg config.VehicleType) {
	o.logger.Info("vehicle type", zap.String("vehicle_type", vt), zap.Int("brands", len(vtCfg.Brands)))

	for i, brand := range vtCfg.Brands {
		if ctx.Err() != nil {
			return
		}
		if i > 0 {
			d := o.brandDelay()
			metrics.ObserveDelay("brand", d)
			o.clock.Sleep(ctx, d)
		}
		o.scrapeBrandWithRetry(ctx, vt, vtCfg.BaseURL, brand)
	}
}

// scrapeBrandWithRetry wraps one brand's full city batch in the bounded
// retry policy. Exhaustion produces exactly one FailureRecord and the run
// moves on to the next brand.
func (o *Orchestrator) scrapeBrandWithRetry(ctx context.Context, vt, baseURL string, brand config.Brand) {
	for attempt := 1; ; attempt++ {
		err := o.scrapeBrand(ctx, vt, baseURL, brand)
		if err == nil {
			return
		}
		if ctx.Err() != nil {
			// Interrupted, not failed; the partial accumulator stands.
			return
		}
		if !o.retry.ShouldRetry(err, attempt) {
			o.recordFailure(vt, brand.Name, err)
			o.logger.Error("brand scrape failed",
				zap.String("vehicle_type", vt),
				zap.String("brand", brand.Name),
				zap.Int("attempts", attempt),
				zap.Error(err),
			)
			return
		}
		o.bumpRetries()
		metrics.ObserveRetry(brand.Name)
		wait := o.retry.Backoff(attempt)
		metrics.ObserveDelay("backoff", wait)
		o.logger.Warn("retrying brand scrape",
			zap.String("brand", brand.Name),
			zap.Int("attempt", attempt),
			zap.Duration("backoff", wait),
			zap.Error(err),
		)
		o.clock.Sleep(ctx, wait)
	}
}

// scrapeBrand performs one attempt over the brand's city batch. Per-city
// failures are swallowed here: logged, counted, skipped. The attempt only
// fails as a whole when every city in the batch failed with a transport
// error, which is what the retry wrapper is for.
func (o *Orchestrator) scrapeBrand(ctx context.Context, vt, baseURL string, brand config.Brand) error {
	cities, err := o.resolver.Resolve(ctx, brand.Name, brand.Locations)
	if err != nil {
		return err
	}
	if len(cities) == 0 {
		o.logger.Warn("no cities to crawl, skipping brand",
			zap.String("vehicle_type", vt),
			zap.String("brand", brand.Name),
		)
		return nil
	}

	o.logger.Info("brand batch",
		zap.String("brand", brand.Name),
		zap.Int("cities", len(cities)),
	)

	var (
		okCities     int
		transportErr error
		transports   int
	)
	for i, city := range cities {
		if err := ctx.Err(); err != nil {
			return err
		}
		if i > 0 && o.cfg.Crawler.CityDelay > 0 {
			metrics.ObserveDelay("city", o.cfg.Crawler.CityDelay)
			o.clock.Sleep(ctx, o.cfg.Crawler.CityDelay)
		}

		target := dealer.CrawlTarget{VehicleType: vt, Brand: brand.Name, City: city}
		url := dealer.DealerPageURL(baseURL, brand.Name, city)
		o.bumpAttempts()

		page, err := o.fetchPage(ctx, url)
		if err != nil {
			o.bumpFailed()
			metrics.ObservePage(vt, "failed")
			o.logger.Warn("city fetch failed",
				zap.String("brand", brand.Name),
				zap.String("city", city),
				zap.Error(err),
			)
			if dealer.IsTransport(err) {
				transports++
				transportErr = err
			}
			continue
		}
		okCities++
		metrics.ObservePage(vt, "ok")

		kept := o.processPage(page, target)
		if kept > 0 {
			metrics.ObserveDealers(vt, brand.Name, kept)
			o.logger.Info("city extracted",
				zap.String("brand", brand.Name),
				zap.String("city", city),
				zap.Int("dealers", kept),
			)
		}
	}

	if okCities == 0 && transports == len(cities) {
		return fmt.Errorf("brand %s: all %d cities failed: %w", brand.Name, len(cities), transportErr)
	}
	return nil
}

// fetchPage probes the page cheaply and promotes to the headless renderer
// when the static HTML cannot carry dealer cards.
func (o *Orchestrator) fetchPage(ctx context.Context, url string) (dealer.Page, error) {
	if o.fetcher == nil {
		return o.renderer.Render(ctx, url)
	}

	page, err := o.fetcher.Fetch(ctx, url)
	if err != nil {
		if o.renderer == nil {
			return dealer.Page{}, err
		}
		// The probe path failing does not mean the browser will; JS-walled
		// pages regularly reject plain GETs.
		return o.renderer.Render(ctx, url)
	}

	if o.renderer != nil && o.detector != nil && o.detector.ShouldPromote(page) {
		metrics.ObserveHeadlessPromotion()
		return o.renderer.Render(ctx, url)
	}
	return page, nil
}

// processPage extracts, normalizes, and accumulates one page's records,
// returning how many were kept.
func (o *Orchestrator) processPage(page dealer.Page, target dealer.CrawlTarget) int {
	candidates := o.extractor.Extract(page)
	if len(candidates) == 0 {
		return 0
	}

	enforce := o.cfg.Crawler.ValidateData && o.cfg.Crawler.SkipInvalid
	discoveredAt := o.clock.Now()
	kept := 0

	for _, raw := range candidates {
		rec, valid, reasons := o.normalizer.Normalize(raw, target, page.URL, discoveredAt)
		if valid {
			o.appendRecord(rec)
			kept++
			continue
		}
		o.bumpInvalid()
		metrics.ObserveInvalid(target.VehicleType)
		o.logger.Debug("invalid dealer record",
			zap.String("brand", target.Brand),
			zap.String("city", target.City),
			zap.Strings("reasons", reasons),
		)
		if !enforce {
			o.appendRecord(rec)
			kept++
		}
	}

	o.addSuccessful(kept)
	return kept
}

func (o *Orchestrator) brandDelay() time.Duration {
	min, max := o.cfg.Crawler.BrandDelayMin, o.cfg.Crawler.BrandDelayMax
	if max <= 0 || max < min {
		return 0
	}
	if max == min {
		return min
	}
	return min + time.Duration(rand.Float64()*float64(max-min))
}

// Status returns the run's lifecycle state.
func (o *Orchestrator) Status() dealer.RunStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Stats returns a copy of the run counters.
func (o *Orchestrator) Stats() dealer.RunStats {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.stats
}

// Records returns a copy of everything accumulated so far. Safe to call
// mid-run; an interrupted run persists exactly this.
func (o *Orchestrator) Records() []dealer.Record {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]dealer.Record(nil), o.records...)
}

// Failures returns a copy of the failure log.
func (o *Orchestrator) Failures() []dealer.FailureRecord {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]dealer.FailureRecord(nil), o.failures...)
}

// Snapshot returns the live view served by the status API.
func (o *Orchestrator) Snapshot() Snapshot {
	o.mu.Lock()
	defer o.mu.Unlock()
	return Snapshot{
		RunID:    o.runID,
		Status:   o.status,
		Stats:    o.stats,
		Records:  len(o.records),
		Failures: len(o.failures),
	}
}

func (o *Orchestrator) setStatus(s dealer.RunStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.status = s
}

func (o *Orchestrator) appendRecord(rec dealer.Record) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.records = append(o.records, rec)
}

func (o *Orchestrator) recordFailure(vt, brand string, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.failures = append(o.failures, dealer.FailureRecord{
		VehicleType: vt,
		Brand:       brand,
		Error:       err.Error(),
		Timestamp:   o.clock.Now(),
	})
}

func (o *Orchestrator) bumpAttempts() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stats.TotalAttempts++
}

func (o *Orchestrator) bumpFailed() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stats.FailedScrapes++
}

func (o *Orchestrator) bumpInvalid() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stats.InvalidData++
}

func (o *Orchestrator) bumpRetries() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stats.Retries++
}

func (o *Orchestrator) addSuccessful(n int) {
	if n == 0 {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	o.stats.SuccessfulScrapes += n
}

func (o *Orchestrator) logSummary() {
	stats := o.Stats()
	o.logger.Info("crawl completed",
		zap.String("run_id", o.runID),
		zap.Int("dealers", len(o.Records())),
		zap.Int("successful", stats.SuccessfulScrapes),
		zap.Int("failed", stats.FailedScrapes),
		zap.Int("invalid", stats.InvalidData),
		zap.Int("retries", stats.Retries),
		zap.Int("brand_failures", len(o.Failures())),
	)
}
