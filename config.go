package packrat

import (
	"fmt"

	"github.com/caarlos0/env/v11"
)

// Config holds environment-derived defaults for cache configuration.
// Explicit options always win over these.
type Config struct {
	// Directory is the local cache directory.
	Directory string `env:"PACKRAT_DIR" envDefault:"data/cache"`

	// TTLDays is the default entry time-to-live in days.
	TTLDays float64 `env:"PACKRAT_TTL_DAYS" envDefault:"999"`

	// RemoteEnabled toggles the remote tier.
	RemoteEnabled bool `env:"PACKRAT_REMOTE_ENABLED"`

	// RemoteTable names the remote table or namespace.
	RemoteTable string `env:"PACKRAT_REMOTE_TABLE"`

	// LoggingEnabled toggles cache logging globally.
	LoggingEnabled bool `env:"PACKRAT_LOGGING" envDefault:"true"`
}

// ConfigFromEnv reads configuration from the environment.
func ConfigFromEnv() (Config, error) {
	var c Config
	if err := env.Parse(&c); err != nil {
		return Config{}, fmt.Errorf("parsing environment: %w", err)
	}
	return c, nil
}

// Options converts the config into entry defaults, suitable for
// Registry's WithEntryDefaults.
func (c Config) Options() []Option {
	return []Option{
		WithDirectory(c.Directory),
		WithTTLDays(c.TTLDays),
	}
}
