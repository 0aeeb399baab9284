package config

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rand/loop/types"
)

// Loader reads YAML configuration files, interpolating ${VAR} environment
// references before parsing.
type Loader struct {
	v *viper.Viper
}

// NewLoader creates a loader with environment override support: any key can
// be overridden via LOOP_SECTION_KEY variables.
func NewLoader() *Loader {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvPrefix("LOOP")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	return &Loader{v: v}
}

// Load reads and validates the configuration at path. Missing optional
// fields take their defaults.
func (l *Loader) Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, types.WrapError(types.CONFIG_NOT_FOUND,
				"config file not found: "+path, err)
		}
		return nil, types.WrapError(types.CONFIG_LOAD_FAILED,
			"failed to read config file", err)
	}

	return l.LoadBytes(raw)
}

// LoadBytes parses configuration from raw YAML.
func (l *Loader) LoadBytes(raw []byte) (*Config, error) {
	expanded := interpolateEnv(string(raw))

	if err := l.v.ReadConfig(bytes.NewBufferString(expanded)); err != nil {
		return nil, types.WrapError(types.CONFIG_PARSE_FAILED,
			"failed to parse config", err)
	}

	cfg := &Config{}
	if err := l.v.Unmarshal(cfg); err != nil {
		return nil, types.WrapError(types.CONFIG_PARSE_FAILED,
			"failed to decode config", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadOrDefault returns the configuration at path, or the defaults when the
// file does not exist.
func (l *Loader) LoadOrDefault(path string) (*Config, error) {
	cfg, err := l.Load(path)
	if err != nil {
		if types.ErrorCodeOf(err) == types.CONFIG_NOT_FOUND {
			return DefaultConfig(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to path as YAML, creating parent
// directories as needed.
func Save(cfg *Config, path string) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return types.WrapError(types.CONFIG_PARSE_FAILED,
			"failed to encode config", err)
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return types.WrapError(types.CONFIG_LOAD_FAILED,
				"failed to create config directory", err)
		}
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return types.WrapError(types.CONFIG_LOAD_FAILED,
			"failed to write config file", err)
	}
	return nil
}

// interpolateEnv expands ${VAR} references. Unset variables expand to the
// empty string; a literal $ survives when not followed by a brace.
func interpolateEnv(s string) string {
	var out strings.Builder
	for {
		start := strings.Index(s, "${")
		if start < 0 {
			out.WriteString(s)
			return out.String()
		}
		end := strings.Index(s[start:], "}")
		if end < 0 {
			out.WriteString(s)
			return out.String()
		}
		out.WriteString(s[:start])
		out.WriteString(os.Getenv(s[start+2 : start+end]))
		s = s[start+end+1:]
	}
}
