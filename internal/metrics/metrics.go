// Package metrics exposes Prometheus collectors for the dealer crawler.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	pagesTotal            *prometheus.CounterVec
	dealersExtractedTotal *prometheus.CounterVec
	recordsInvalidTotal   *prometheus.CounterVec
	retriesTotal          *prometheus.CounterVec
	headlessPromotions    prometheus.Counter
	delaySeconds          *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus collectors. Safe to call multiple times.
func Init() {
	once.Do(func() {
		pagesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealercrawler_pages_total",
				Help: "Dealer pages fetched, labeled by vehicle type and outcome.",
			},
			[]string{"vehicle_type", "outcome"},
		)

		dealersExtractedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealercrawler_dealers_total",
				Help: "Valid dealer records accumulated, labeled by vehicle type and brand.",
			},
			[]string{"vehicle_type", "brand"},
		)

		recordsInvalidTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealercrawler_invalid_records_total",
				Help: "Records failing the completeness invariant, labeled by vehicle type.",
			},
			[]string{"vehicle_type"},
		)

		retriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "dealercrawler_brand_retries_total",
				Help: "Brand-level retry attempts, labeled by brand.",
			},
			[]string{"brand"},
		)

		headlessPromotions = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "dealercrawler_headless_promotions_total",
				Help: "Probe fetches promoted to a headless render.",
			},
		)

		delaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dealercrawler_delay_seconds",
				Help:    "Politeness and backoff wait durations by kind.",
				Buckets: []float64{0.5, 1, 2, 4, 8, 16},
			},
			[]string{"kind"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObservePage counts one fetched page by outcome ("ok" or "failed").
func ObservePage(vehicleType, outcome string) {
	pagesTotal.WithLabelValues(vehicleType, outcome).Inc()
}

// ObserveDealers counts valid accumulated records.
func ObserveDealers(vehicleType, brand string, n int) {
	if n > 0 {
		dealersExtractedTotal.WithLabelValues(vehicleType, brand).Add(float64(n))
	}
}

// ObserveInvalid counts a record that failed validation.
func ObserveInvalid(vehicleType string) {
	recordsInvalidTotal.WithLabelValues(vehicleType).Inc()
}

// ObserveRetry counts one brand-level retry.
func ObserveRetry(brand string) {
	retriesTotal.WithLabelValues(brand).Inc()
}

// ObserveHeadlessPromotion counts one probe-to-headless promotion.
func ObserveHeadlessPromotion() {
	headlessPromotions.Inc()
}

// ObserveDelay records a wait duration ("brand", "city", or "backoff").
func ObserveDelay(kind string, d time.Duration) {
	delaySeconds.WithLabelValues(kind).Observe(d.Seconds())
}
