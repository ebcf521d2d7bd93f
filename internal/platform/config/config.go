package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/lueurxax/cluster-eval-board/internal/core/domain"
	apperrors "github.com/lueurxax/cluster-eval-board/internal/core/errors"
	"github.com/lueurxax/cluster-eval-board/internal/core/scoring"
)

// Legacy variable names still read when the current ones are unset.
const (
	legacyBaseURLKey  = "NEXT_PUBLIC_API_BASEPATH"
	legacyAdminKeyKey = "NEXT_PUBLIC_ADMIN_API_KEY"
)

type Config struct {
	AppEnv   string `env:"APP_ENV" envDefault:"local"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	// Upstream evaluation API
	UpstreamBaseURL   string        `env:"UPSTREAM_BASE_URL"`
	UpstreamAdminKey  string        `env:"UPSTREAM_ADMIN_API_KEY"`
	UpstreamPublicKey string        `env:"UPSTREAM_PUBLIC_API_KEY" envDefault:"public"`
	UpstreamTimeout   time.Duration `env:"UPSTREAM_TIMEOUT" envDefault:"30s"`
	UpstreamRPS       float64       `env:"UPSTREAM_RPS" envDefault:"5"`

	// Storage; empty DSN disables the document cache and snapshot history
	PostgresDSN      string        `env:"POSTGRES_DSN"`
	DBMaxConnections int32         `env:"DB_MAX_CONNECTIONS" envDefault:"10"`
	SourceCacheTTL   time.Duration `env:"SOURCE_CACHE_TTL" envDefault:"5m"`

	// Dashboard
	DashboardPort     int     `env:"DASHBOARD_PORT" envDefault:"8080"`
	DashboardAPIKey   string  `env:"DASHBOARD_API_KEY"`
	DashboardLanguage string  `env:"DASHBOARD_LANGUAGE" envDefault:"ja"`
	DashboardRPS      float64 `env:"DASHBOARD_RPS" envDefault:"5"`

	// Evaluation
	DefaultLevel     int           `env:"DEFAULT_LEVEL" envDefault:"1"`
	SnapshotSlugs    []string      `env:"SNAPSHOT_SLUGS" envSeparator:","`
	SnapshotInterval time.Duration `env:"SNAPSHOT_INTERVAL" envDefault:"1h"`
	EvalModel        string        `env:"EVAL_MODEL" envDefault:"gpt-4o-mini"`
	EvalSamplingRate float64       `env:"EVAL_SAMPLING_RATE" envDefault:"1.0"`

	// Tier thresholds, four ascending lower bounds of tiers 2..5
	TierThresholdsReduced []float64 `env:"TIER_THRESHOLDS_REDUCED" envSeparator:","`
	TierThresholdsRaw     []float64 `env:"TIER_THRESHOLDS_RAW" envSeparator:","`
}

func Load() (*Config, error) {
	_ = godotenv.Load() //nolint:errcheck // .env file is optional, error is expected when not present

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parsing environment config: %w", err)
	}

	applyLegacyAliases(cfg)
	normalizeSlugs(cfg)

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.UpstreamBaseURL == "" {
		return fmt.Errorf("%w: UPSTREAM_BASE_URL is required", apperrors.ErrInvalidInput)
	}

	if c.UpstreamAdminKey == "" {
		return fmt.Errorf("%w: UPSTREAM_ADMIN_API_KEY is required", apperrors.ErrInvalidInput)
	}

	if c.DefaultLevel < 1 {
		return fmt.Errorf("DEFAULT_LEVEL=%d: %w", c.DefaultLevel, apperrors.ErrInvalidLevel)
	}

	if c.EvalSamplingRate <= 0 || c.EvalSamplingRate > 1 {
		return fmt.Errorf("%w: EVAL_SAMPLING_RATE must be in (0, 1]", apperrors.ErrInvalidInput)
	}

	if _, err := c.BucketConfig(); err != nil {
		return err
	}

	return nil
}

// BucketConfig returns the tier thresholds per space, falling back to the
// defaults for a space whose variable is unset.
func (c *Config) BucketConfig() (scoring.BucketConfig, error) {
	cfg := scoring.DefaultBucketConfig()

	overrides := []struct {
		key    string
		space  domain.Space
		values []float64
	}{
		{key: "TIER_THRESHOLDS_REDUCED", space: domain.SpaceReduced, values: c.TierThresholdsReduced},
		{key: "TIER_THRESHOLDS_RAW", space: domain.SpaceRaw, values: c.TierThresholdsRaw},
	}

	for _, o := range overrides {
		if len(o.values) == 0 {
			continue
		}

		var t scoring.Thresholds
		if len(o.values) != len(t) {
			return nil, fmt.Errorf("%s: %w: want %d values, got %d", o.key, apperrors.ErrInvalidThresholds, len(t), len(o.values))
		}

		copy(t[:], o.values)
		cfg[o.space] = t
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("tier thresholds: %w", err)
	}

	return cfg, nil
}

func applyLegacyAliases(cfg *Config) {
	if !hasEnv("UPSTREAM_BASE_URL") {
		setStringFromEnv(legacyBaseURLKey, &cfg.UpstreamBaseURL)
	}

	if !hasEnv("UPSTREAM_ADMIN_API_KEY") {
		setStringFromEnv(legacyAdminKeyKey, &cfg.UpstreamAdminKey)
	}
}

func normalizeSlugs(cfg *Config) {
	slugs := cfg.SnapshotSlugs[:0]

	for _, s := range cfg.SnapshotSlugs {
		if s = strings.TrimSpace(s); s != "" {
			slugs = append(slugs, s)
		}
	}

	cfg.SnapshotSlugs = slugs
}

func hasEnv(key string) bool {
	_, ok := os.LookupEnv(key)
	return ok
}

func setStringFromEnv(key string, target *string) {
	val, ok := os.LookupEnv(key)
	if !ok {
		return
	}

	val = strings.TrimSpace(val)
	if val == "" {
		return
	}

	*target = val
}
