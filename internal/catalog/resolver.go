// Package catalog resolves the city lists that drive crawl targets.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/autoatlas/dealercrawler/internal/dealer"
)

// Snapshot is the on-disk form of a fetched city catalog.
type Snapshot struct {
	Timestamp   time.Time `json:"timestamp"`
	SourceURL   string    `json:"source_url"`
	TotalCities int       `json:"total_cities"`
	Cities      []string  `json:"cities"`
}

// Config controls Resolver behavior.
type Config struct {
	URL string
	// Dir holds cities_*.json snapshots.
	Dir string
	// MaxSnapshotAge bounds how stale a snapshot may be before a fresh
	// fetch is attempted. Zero trusts any snapshot forever.
	MaxSnapshotAge time.Duration
	Timeout        time.Duration
}

// Resolver implements dealer.CityResolver against the external city source
// with a local snapshot as the preferred path.
type Resolver struct {
	cfg    Config
	client *http.Client
	clock  dealer.Clock
	logger *zap.Logger
}

// NewResolver builds a Resolver. A nil client falls back to a default
// http.Client with the configured timeout.
func NewResolver(cfg Config, client *http.Client, clock dealer.Clock, logger *zap.Logger) *Resolver {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}
	return &Resolver{
		cfg:    cfg,
		client: client,
		clock:  clock,
		logger: logger,
	}
}

// Resolve returns the ordered city list for a brand. Explicit lists pass
// through verbatim with no network traffic. The catalog path tries the
// newest fresh snapshot first and falls back to a fetch; every failure mode
// degrades to an empty list so the caller can skip the brand and move on.
func (r *Resolver) Resolve(ctx context.Context, brand string, spec dealer.LocationSpec) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !spec.All && len(spec.Cities) > 0 {
		return append([]string(nil), spec.Cities...), nil
	}

	if cities := r.loadSnapshot(); len(cities) > 0 {
		r.logger.Debug("catalog snapshot hit",
			zap.String("brand", brand),
			zap.Int("cities", len(cities)),
		)
		return cities, nil
	}

	cities := r.fetch(ctx)
	if len(cities) == 0 {
		r.logger.Warn("no cities available for brand", zap.String("brand", brand))
	}
	return cities, nil
}

// fetch pulls the catalog JSON from the CDN. Transport errors, non-200
// responses, and non-array payloads all yield nil.
func (r *Resolver) fetch(ctx context.Context) []string {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.cfg.URL, nil)
	if err != nil {
		r.logger.Error("build catalog request", zap.Error(err))
		return nil
	}
	resp, err := r.client.Do(req)
	if err != nil {
		r.logger.Error("fetch city catalog", zap.Error(err))
		return nil
	}
	defer resp.Body.Close() //nolint:errcheck // read-only body

	if resp.StatusCode != http.StatusOK {
		r.logger.Error("city catalog returned non-200", zap.Int("status", resp.StatusCode))
		return nil
	}

	var entries []struct {
		Value string `json:"value"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		r.logger.Error("decode city catalog", zap.Error(err))
		return nil
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		if e.Value != "" {
			names = append(names, e.Value)
		}
	}
	cities := dedupeCities(names)
	sort.Strings(cities)

	if len(cities) > 0 {
		if err := r.saveSnapshot(cities); err != nil {
			r.logger.Warn("save catalog snapshot", zap.Error(err))
		}
	}
	return cities
}

// loadSnapshot returns the cities from the newest fresh snapshot, or nil.
func (r *Resolver) loadSnapshot() []string {
	paths, err := filepath.Glob(filepath.Join(r.cfg.Dir, "cities_*.json"))
	if err != nil || len(paths) == 0 {
		return nil
	}
	sort.Strings(paths)
	latest := paths[len(paths)-1]

	body, err := os.ReadFile(latest)
	if err != nil {
		r.logger.Warn("read catalog snapshot", zap.String("path", latest), zap.Error(err))
		return nil
	}
	var snap Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		r.logger.Warn("decode catalog snapshot", zap.String("path", latest), zap.Error(err))
		return nil
	}
	if r.cfg.MaxSnapshotAge > 0 && r.clock.Now().Sub(snap.Timestamp) > r.cfg.MaxSnapshotAge {
		r.logger.Info("catalog snapshot stale",
			zap.String("path", latest),
			zap.Time("taken_at", snap.Timestamp),
		)
		return nil
	}
	return dedupeCities(snap.Cities)
}

func (r *Resolver) saveSnapshot(cities []string) error {
	if err := os.MkdirAll(r.cfg.Dir, 0o750); err != nil {
		return fmt.Errorf("create snapshot dir: %w", err)
	}
	snap := Snapshot{
		Timestamp:   r.clock.Now(),
		SourceURL:   r.cfg.URL,
		TotalCities: len(cities),
		Cities:      cities,
	}
	body, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	name := fmt.Sprintf("cities_%s.json", snap.Timestamp.Format("20060102_150405"))
	path := filepath.Join(r.cfg.Dir, name)
	if err := os.WriteFile(path, body, 0o600); err != nil {
		return fmt.Errorf("write snapshot %s: %w", path, err)
	}
	r.logger.Info("catalog snapshot saved", zap.String("path", path), zap.Int("cities", len(cities)))
	return nil
}

// dedupeCities drops case-variant duplicates, keeping first occurrence.
func dedupeCities(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, c := range in {
		key := strings.ToLower(strings.TrimSpace(c))
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, c)
	}
	return out
}
