// Package config loads client configuration from ~/.bird/config.json with
// environment-variable overrides. The config file may carry comments and
// trailing commas.
package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/tidwall/jsonc"
)

// Environment variables honored at load time. Each overrides the matching
// config file field.
const (
	EnvPageSize   = "BIRD_PAGE_SIZE"
	EnvTimeout    = "BIRD_TIMEOUT_SECONDS"
	EnvQueryIDTTL = "BIRD_QUERYID_TTL_HOURS"
	EnvQuoteDepth = "BIRD_QUOTE_DEPTH"
	EnvAPIBase    = "BIRD_API_BASE"
)

// Config holds application configuration.
type Config struct {
	// PageSize is the per-request batch size for paginated reads.
	PageSize int `json:"page_size,omitempty"`

	// TimeoutSeconds bounds each HTTP round trip.
	TimeoutSeconds int `json:"timeout_seconds,omitempty"`

	// QueryIDTTLHours is how long a discovered identifier snapshot stays
	// fresh before a read triggers rediscovery.
	QueryIDTTLHours int `json:"queryid_ttl_hours,omitempty"`

	// QuoteDepth bounds recursive quoted-tweet embedding. -1 disables
	// quote embedding entirely.
	QuoteDepth int `json:"quote_depth,omitempty"`

	// IncludeRaw attaches the undecoded upstream fragment to each tweet.
	IncludeRaw bool `json:"include_raw,omitempty"`

	// APIBase overrides the API host, mainly for testing.
	APIBase string `json:"api_base,omitempty"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		PageSize:        20,
		TimeoutSeconds:  30,
		QueryIDTTLHours: 24,
		QuoteDepth:      1,
	}
}

// BaseDir returns the application directory, ~/.bird.
func BaseDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bird"
	}
	return filepath.Join(home, ".bird")
}

// Load reads baseDir/config.json, merges it over defaults, and applies
// environment overrides. A missing file yields the defaults.
func Load(baseDir string) (*Config, error) {
	cfg, err := loadFile(filepath.Join(baseDir, "config.json"))
	if err != nil {
		return nil, err
	}
	merged := Merge(DefaultConfig(), cfg)
	applyEnv(merged)
	return merged, nil
}

// loadFile reads one config file. Returns a zero config when the file does
// not exist.
func loadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return &Config{}, nil
		}
		return nil, err
	}
	cfg := &Config{}
	if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Merge combines base and overlay configs. Overlay values take precedence
// for non-zero scalars; booleans are OR-ed.
func Merge(base, overlay *Config) *Config {
	result := &Config{}

	result.PageSize = overlay.PageSize
	if result.PageSize == 0 {
		result.PageSize = base.PageSize
	}

	result.TimeoutSeconds = overlay.TimeoutSeconds
	if result.TimeoutSeconds == 0 {
		result.TimeoutSeconds = base.TimeoutSeconds
	}

	result.QueryIDTTLHours = overlay.QueryIDTTLHours
	if result.QueryIDTTLHours == 0 {
		result.QueryIDTTLHours = base.QueryIDTTLHours
	}

	result.QuoteDepth = overlay.QuoteDepth
	if result.QuoteDepth == 0 {
		result.QuoteDepth = base.QuoteDepth
	}

	result.IncludeRaw = base.IncludeRaw || overlay.IncludeRaw

	result.APIBase = overlay.APIBase
	if result.APIBase == "" {
		result.APIBase = base.APIBase
	}

	return result
}

func applyEnv(cfg *Config) {
	if v, ok := envInt(EnvPageSize); ok {
		cfg.PageSize = v
	}
	if v, ok := envInt(EnvTimeout); ok {
		cfg.TimeoutSeconds = v
	}
	if v, ok := envInt(EnvQueryIDTTL); ok {
		cfg.QueryIDTTLHours = v
	}
	if v, ok := envInt(EnvQuoteDepth); ok {
		cfg.QuoteDepth = v
	}
	if v := os.Getenv(EnvAPIBase); v != "" {
		cfg.APIBase = v
	}
}

func envInt(key string) (int, bool) {
	v := os.Getenv(key)
	if v == "" {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Timeout returns the HTTP timeout as a duration.
func (c *Config) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// QueryIDTTL returns the snapshot TTL as a duration.
func (c *Config) QueryIDTTL() time.Duration {
	return time.Duration(c.QueryIDTTLHours) * time.Hour
}
