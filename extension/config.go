package extension

import "time"

// Config holds the tally service configuration.
// Fields can be set programmatically via Option functions or loaded from
// configuration files under the "tally" key.
type Config struct {
	// DisableRoutes prevents HTTP route registration.
	DisableRoutes bool `json:"disable_routes" mapstructure:"disable_routes" yaml:"disable_routes"`

	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// BasePath is the URL prefix for tally routes (default: "/").
	BasePath string `json:"base_path" mapstructure:"base_path" yaml:"base_path"`

	// Compensation undoes the completed steps of a failed invoice operation.
	Compensation bool `json:"compensation" mapstructure:"compensation" yaml:"compensation"`

	// HookTimeout bounds each plugin hook call (default: 5s).
	HookTimeout time.Duration `json:"hook_timeout" mapstructure:"hook_timeout" yaml:"hook_timeout"`

	// SequenceAttempts is how often a lost invoice number race is retried
	// before giving up (default: 5).
	SequenceAttempts int `json:"sequence_attempts" mapstructure:"sequence_attempts" yaml:"sequence_attempts"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		BasePath:         "/",
		HookTimeout:      5 * time.Second,
		SequenceAttempts: 5,
	}
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.BasePath == "" {
		cfg.BasePath = defaults.BasePath
	}
	if cfg.HookTimeout == 0 {
		cfg.HookTimeout = defaults.HookTimeout
	}
	if cfg.SequenceAttempts == 0 {
		cfg.SequenceAttempts = defaults.SequenceAttempts
	}
	return cfg
}
