package recurrence

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// EngineConfig holds configuration options for the recurrence engine
type EngineConfig struct {
	// Cache configuration
	CacheEnabled bool        `yaml:"cache_enabled"`
	CacheConfig  CacheConfig `yaml:"cache"`

	// Expansion limits
	MaxExpansionOccurrences int           `yaml:"max_expansion_occurrences"` // Default cap for Expand when the caller sets none
	LargeRangeThreshold     time.Duration `yaml:"large_range_threshold"`     // Ranges longer than this are cut when the caller sets no span
	LargeRangeLimit         time.Duration `yaml:"large_range_limit"`         // Span a cut range is reduced to
}

// DefaultEngineConfig provides sensible defaults for production use
var DefaultEngineConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig:  DefaultCacheConfig,

	MaxExpansionOccurrences: 100,
	LargeRangeThreshold:     90 * 24 * time.Hour, // 90 days
	LargeRangeLimit:         90 * 24 * time.Hour,
}

// HighPerformanceConfig is optimized for high-traffic scenarios
var HighPerformanceConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             30 * time.Minute,
		MaxEntries:      5000,
		CleanupInterval: 10 * time.Minute,
	},

	MaxExpansionOccurrences: 50,
	LargeRangeThreshold:     30 * 24 * time.Hour,
	LargeRangeLimit:         30 * 24 * time.Hour,
}

// LowMemoryConfig is optimized for memory-constrained environments
var LowMemoryConfig = EngineConfig{
	CacheEnabled: true,
	CacheConfig: CacheConfig{
		TTL:             5 * time.Minute,
		MaxEntries:      100,
		CleanupInterval: 2 * time.Minute,
	},

	MaxExpansionOccurrences: 200,
	LargeRangeThreshold:     180 * 24 * time.Hour,
	LargeRangeLimit:         180 * 24 * time.Hour,
}

// DisabledCacheConfig turns off caching entirely
var DisabledCacheConfig = EngineConfig{
	CacheEnabled: false,

	MaxExpansionOccurrences: 1000,
	LargeRangeThreshold:     365 * 24 * time.Hour,
	LargeRangeLimit:         365 * 24 * time.Hour,
}

// LoadEngineConfig reads a YAML document on top of DefaultEngineConfig.
// Durations are written as Go duration strings such as "15m".
//
//	cache_enabled: true
//	cache:
//	  ttl: 30m
//	  max_entries: 5000
//	max_expansion_occurrences: 500
func LoadEngineConfig(r io.Reader) (EngineConfig, error) {
	config := DefaultEngineConfig
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&config); err != nil && err != io.EOF {
		return EngineConfig{}, fmt.Errorf("decode engine config: %w", err)
	}
	if config.MaxExpansionOccurrences < 0 {
		return EngineConfig{}, fmt.Errorf("max_expansion_occurrences must not be negative, got %d", config.MaxExpansionOccurrences)
	}
	return config, nil
}

// LoadEngineConfigFile is LoadEngineConfig for a file path.
func LoadEngineConfigFile(path string) (EngineConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return EngineConfig{}, fmt.Errorf("open engine config: %w", err)
	}
	defer f.Close()
	return LoadEngineConfig(f)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger used by the engine.
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// NewEngineWithConfig creates a new recurrence engine with custom configuration
func NewEngineWithConfig(config EngineConfig, opts ...Option) *Engine {
	var cache *RecurrenceCache
	if config.CacheEnabled {
		cache = NewRecurrenceCache(config.CacheConfig)
	}

	e := &Engine{
		cache:  cache,
		config: config,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}
