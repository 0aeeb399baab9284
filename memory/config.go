package memory

import "time"

// Config holds memory substrate configuration: which backend to use and the
// parameters of the decay sweep.
type Config struct {
	// Backend selects the persistence substrate: "transient" or "sqlite".
	Backend string `mapstructure:"backend" yaml:"backend" json:"backend"`

	// Path is the SQLite database file. Required when Backend is "sqlite".
	Path string `mapstructure:"path" yaml:"path" json:"path"`

	// DecayFactor is the per-sweep confidence multiplier, within (0,1].
	DecayFactor float64 `mapstructure:"decay_factor" yaml:"decay_factor" json:"decay_factor"`

	// MinConfidence is the casualty floor reported by decay sweeps.
	MinConfidence float64 `mapstructure:"min_confidence" yaml:"min_confidence" json:"min_confidence"`

	// DecayInterval is how often a caller-driven decay sweep is expected to
	// run. The store itself never schedules sweeps.
	DecayInterval time.Duration `mapstructure:"decay_interval" yaml:"decay_interval" json:"decay_interval"`
}

// Backend names accepted by Config.
const (
	BackendTransient = "transient"
	BackendSQLite    = "sqlite"
)

// DefaultConfig returns the transient-store defaults.
func DefaultConfig() Config {
	return Config{
		Backend:       BackendTransient,
		DecayFactor:   0.95,
		MinConfidence: 0.2,
		DecayInterval: time.Hour,
	}
}

// ApplyDefaults fills unset fields with their defaults.
func (c *Config) ApplyDefaults() {
	defaults := DefaultConfig()
	if c.Backend == "" {
		c.Backend = defaults.Backend
	}
	if c.DecayFactor == 0 {
		c.DecayFactor = defaults.DecayFactor
	}
	if c.MinConfidence == 0 {
		c.MinConfidence = defaults.MinConfidence
	}
	if c.DecayInterval == 0 {
		c.DecayInterval = defaults.DecayInterval
	}
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	switch c.Backend {
	case BackendTransient:
	case BackendSQLite:
		if c.Path == "" {
			return NewInvalidConfigError("sqlite backend requires a path")
		}
	default:
		return NewInvalidConfigError("unknown backend: " + c.Backend)
	}
	if c.DecayFactor <= 0 || c.DecayFactor > 1 {
		return NewInvalidConfigError("decay_factor must be within (0,1]")
	}
	if c.MinConfidence < 0 || c.MinConfidence > 1 {
		return NewInvalidConfigError("min_confidence must be within [0,1]")
	}
	if c.DecayInterval < 0 {
		return NewInvalidConfigError("decay_interval cannot be negative")
	}
	return nil
}

// OpenFromConfig builds a store from a validated configuration.
func OpenFromConfig(cfg Config) (*DefaultMemoryStore, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Backend == BackendSQLite {
		return OpenMemoryStore(cfg.Path)
	}
	return NewMemoryStore(), nil
}
