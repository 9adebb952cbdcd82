package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/ledgerlink/ledger-sdk/pkg/errors"
	"github.com/ledgerlink/ledger-sdk/pkg/logtrace"
)

// keyDelimiter replaces viper's "." so dotted node addresses stay single
// keys of the network map.
const keyDelimiter = "/"

func newViper() *viper.Viper {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	d := Default()
	v.SetDefault("max_attempts", d.MaxAttempts)
	v.SetDefault("max_nodes_per_request", d.MaxNodesPerRequest)
	v.SetDefault("min_backoff", d.MinBackoff)
	v.SetDefault("max_backoff", d.MaxBackoff)
	v.SetDefault("request_timeout", d.RequestTimeout)
	v.SetDefault("grpc_deadline", d.GrpcDeadline)
	v.SetDefault("secure_port", d.SecurePort)
	v.SetDefault("user_agent", d.UserAgent)
	v.SetDefault("network_name", "")
	v.SetDefault("address_book_file", "")
	v.SetDefault("ledger_id", "")
	v.SetDefault("operator/account_id", "")
	v.SetDefault("operator/private_key", "")
	v.SetDefault("operator/key_type", d.Operator.KeyType)
	v.SetDefault("log/level", d.Log.Level)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "_"))
	v.AutomaticEnv()
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}
	return &cfg, nil
}

// Load reads a YAML or JSON file (by extension) and applies LEDGER_*
// environment overrides.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.Wrap(err, "error getting absolute path for config file")
	}
	logtrace.Info(context.Background(), "Loading configuration", logtrace.Fields{
		logtrace.FieldModule: "config",
		"path":               absPath,
	})

	v := newViper()
	v.SetConfigFile(absPath)
	if err := v.ReadInConfig(); err != nil {
		return nil, errors.Wrap(err, "failed to read config file "+absPath)
	}
	return decode(v)
}

// FromJSON parses a JSON document with the same keys as the file format.
func FromJSON(data []byte) (*Config, error) {
	v := newViper()
	v.SetConfigType("json")
	if err := v.ReadConfig(bytes.NewReader(data)); err != nil {
		return nil, errors.Wrap(err, "failed to parse config json")
	}
	return decode(v)
}

// Save writes cfg as YAML, readable by Load.
func Save(path string, cfg *Config) error {
	if cfg == nil {
		return errors.New("config is nil")
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return errors.Wrap(err, "failed to marshal config")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return errors.Wrap(err, "failed to create config directory")
		}
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return errors.Wrap(err, "failed to write config file")
	}
	logtrace.Info(context.Background(), "Configuration saved", logtrace.Fields{
		logtrace.FieldModule: "config",
		"path":               path,
	})
	return nil
}
