// Package config loads and validates crawler configuration via Viper.
package config

import (
	"reflect"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"

	"github.com/autoatlas/dealercrawler/internal/dealer"
)

// Config captures all configuration knobs loaded via Viper.
type Config struct {
	VehicleTypes map[string]VehicleType `mapstructure:"vehicle_types"`
	Crawler      CrawlerConfig          `mapstructure:"crawler"`
	Output       OutputConfig           `mapstructure:"output"`
	Headless     HeadlessConfig         `mapstructure:"headless"`
	Catalog      CatalogConfig          `mapstructure:"catalog"`
	Server       ServerConfig           `mapstructure:"server"`
	DB           DBConfig               `mapstructure:"db"`
	Logging      LoggingConfig          `mapstructure:"logging"`
}

// VehicleType maps one vehicle category to its dealer page root and brands.
type VehicleType struct {
	BaseURL string  `mapstructure:"base_url"`
	Brands  []Brand `mapstructure:"brands"`
}

// Brand is one configured brand. In config files a brand may be a bare
// string or an object with name and locations; both decode into this shape.
type Brand struct {
	Name      string              `mapstructure:"name"`
	Locations dealer.LocationSpec `mapstructure:"locations"`
}

// CrawlerConfig governs the crawl loop.
type CrawlerConfig struct {
	UserAgent     string        `mapstructure:"user_agent"`
	Timeout       time.Duration `mapstructure:"timeout"`
	MaxScroll     int           `mapstructure:"max_scroll"`
	MaxRetries    int           `mapstructure:"max_retries"`
	ValidateData  bool          `mapstructure:"validate_data"`
	SkipInvalid   bool          `mapstructure:"skip_invalid"`
	BrandDelayMin time.Duration `mapstructure:"brand_delay_min"`
	BrandDelayMax time.Duration `mapstructure:"brand_delay_max"`
	CityDelay     time.Duration `mapstructure:"city_delay"`
}

// OutputConfig sets the persistence format and directory.
type OutputConfig struct {
	Format string `mapstructure:"format"`
	Dir    string `mapstructure:"dir"`
}

// HeadlessConfig configures the chromedp rendering subsystem.
type HeadlessConfig struct {
	Headless    bool    `mapstructure:"headless"`
	MaxParallel int     `mapstructure:"max_parallel"`
	DomainQPS   float64 `mapstructure:"domain_qps"`
}

// CatalogConfig points at the external city catalog.
type CatalogConfig struct {
	URL            string        `mapstructure:"url"`
	MaxSnapshotAge time.Duration `mapstructure:"max_snapshot_age"`
}

// ServerConfig controls the optional status/metrics HTTP listener.
type ServerConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// DBConfig enables the optional Postgres record store when DSN is set.
type DBConfig struct {
	DSN   string `mapstructure:"dsn"`
	Table string `mapstructure:"table"`
}

// LoggingConfig toggles zap development features and the minimum level.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("DEALERCRAWLER")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, dealer.NewConfigError("read config: %v", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(decodeHook())); err != nil {
		return Config{}, dealer.NewConfigError("unmarshal config: %v", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("vehicle_types", map[string]any{
		"cars": map[string]any{
			"base_url": "https://www.zigwheels.com/dealers",
			"brands":   []any{"maruti-suzuki", "tata", "kia", "toyota", "hyundai", "mahindra"},
		},
		"bikes": map[string]any{
			"base_url": "https://www.zigwheels.com/bikes/dealers",
			"brands":   []any{"hero", "honda", "bajaj", "tvs", "yamaha", "suzuki"},
		},
	})
	v.SetDefault("crawler.user_agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36")
	v.SetDefault("crawler.timeout", "15s")
	v.SetDefault("crawler.max_scroll", 5)
	v.SetDefault("crawler.max_retries", 3)
	v.SetDefault("crawler.validate_data", true)
	v.SetDefault("crawler.skip_invalid", true)
	v.SetDefault("crawler.brand_delay_min", "3s")
	v.SetDefault("crawler.brand_delay_max", "8s")
	v.SetDefault("crawler.city_delay", "1s")
	v.SetDefault("output.format", "excel")
	v.SetDefault("output.dir", "output")
	v.SetDefault("headless.headless", true)
	v.SetDefault("headless.max_parallel", 1)
	v.SetDefault("headless.domain_qps", 1.0)
	v.SetDefault("catalog.url", "https://www.zigcdn.com/js/city_json.js?version=147.7")
	v.SetDefault("catalog.max_snapshot_age", "168h")
	v.SetDefault("server.enabled", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("db.table", "dealers")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "info")
}

// Validate enforces required values and reasonable limits. Violations are
// fatal at startup; a run never begins on malformed configuration.
func (c Config) Validate() error {
	if len(c.VehicleTypes) == 0 {
		return dealer.NewConfigError("vehicle_types must define at least one vehicle type")
	}
	for name, vt := range c.VehicleTypes {
		if vt.BaseURL == "" {
			return dealer.NewConfigError("vehicle_types.%s.base_url must be set", name)
		}
		for i, b := range vt.Brands {
			if strings.TrimSpace(b.Name) == "" {
				return dealer.NewConfigError("vehicle_types.%s.brands[%d] has no name", name, i)
			}
		}
	}
	switch c.Output.Format {
	case "excel", "csv", "json":
	default:
		return dealer.NewConfigError("output.format %q must be one of excel, csv, json", c.Output.Format)
	}
	if c.Output.Dir == "" {
		return dealer.NewConfigError("output.dir must be set")
	}
	if c.Crawler.Timeout <= 0 {
		return dealer.NewConfigError("crawler.timeout must be > 0")
	}
	if c.Crawler.MaxScroll < 0 {
		return dealer.NewConfigError("crawler.max_scroll must be >= 0")
	}
	if c.Crawler.MaxRetries <= 0 {
		return dealer.NewConfigError("crawler.max_retries must be > 0")
	}
	if c.Crawler.BrandDelayMax < c.Crawler.BrandDelayMin {
		return dealer.NewConfigError("crawler.brand_delay_max must be >= crawler.brand_delay_min")
	}
	if c.Headless.MaxParallel <= 0 {
		return dealer.NewConfigError("headless.max_parallel must be > 0")
	}
	if c.Catalog.URL == "" {
		return dealer.NewConfigError("catalog.url must be set")
	}
	if c.Server.Enabled && c.Server.Port <= 0 {
		return dealer.NewConfigError("server.port must be > 0 when server is enabled")
	}
	return nil
}

// decodeHook composes the hooks needed for the brand and location shorthands
// plus duration strings.
func decodeHook() mapstructure.DecodeHookFunc {
	return mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		brandShorthandHook,
		locationSpecHook,
	)
}

// brandShorthandHook lets a brand appear as a bare string in config files.
func brandShorthandHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(Brand{}) || from.Kind() != reflect.String {
		return data, nil
	}
	name, _ := data.(string)
	return map[string]any{"name": name}, nil
}

// locationSpecHook decodes the "all" sentinel or an explicit city list.
func locationSpecHook(from reflect.Type, to reflect.Type, data any) (any, error) {
	if to != reflect.TypeOf(dealer.LocationSpec{}) {
		return data, nil
	}
	switch v := data.(type) {
	case string:
		if strings.EqualFold(strings.TrimSpace(v), "all") {
			return dealer.AllLocations(), nil
		}
		return nil, dealer.NewConfigError("locations string must be \"all\", got %q", v)
	case []any:
		cities := make([]string, 0, len(v))
		for _, entry := range v {
			if s, ok := entry.(string); ok && strings.TrimSpace(s) != "" {
				cities = append(cities, s)
			}
		}
		return dealer.ExplicitLocations(cities), nil
	case []string:
		return dealer.ExplicitLocations(v), nil
	default:
		return data, nil
	}
}
