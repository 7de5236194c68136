// Package config loads the masking engine's YAML configuration, resolving
// ${VAR} / ${VAR:-default} environment references and validating required
// fields before producing an immutable snapshot.
package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// envVarPattern matches ${VAR} and ${VAR:-default} expressions.
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::-([^}]*))?\}`)

// Config is the top-level configuration structure.
type Config struct {
	Mode          string              `yaml:"mode"`
	PIIDetection  PIIDetectionConfig  `yaml:"pii_detection"`
	Masking       MaskingConfig       `yaml:"masking"`
	Providers     map[string]Provider `yaml:"providers"`
	Audit         AuditConfig         `yaml:"audit"`
	Server        ServerConfig        `yaml:"server"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// PIIDetectionConfig configures the external analyzer and its resilience.
type PIIDetectionConfig struct {
	Enabled        bool          `yaml:"enabled"`
	PresidioURL    string        `yaml:"presidio_url"`
	Entities       []string      `yaml:"entities"`
	ScoreThreshold float64       `yaml:"score_threshold"`
	Whitelist      []string      `yaml:"whitelist"`
	Languages      []string      `yaml:"languages"`
	Breaker        BreakerConfig `yaml:"breaker"`
}

// BreakerConfig tunes the detector client's circuit breaker.
type BreakerConfig struct {
	ErrorThreshold   int           `yaml:"error_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// MaskingConfig configures the response unmasker's display mode.
type MaskingConfig struct {
	ShowMarkers bool   `yaml:"show_markers"`
	MarkerText  string `yaml:"marker_text"`
}

// Provider is one forwarding target.
type Provider struct {
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
}

// AuditConfig configures the best-effort audit event sink.
type AuditConfig struct {
	Kafka KafkaConfig `yaml:"kafka"`
}

// KafkaConfig configures the Kafka audit producer. Empty Brokers disables
// Kafka streaming entirely — a LocalPublisher is used instead.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic"`
}

// ServerConfig configures the data-plane and control-plane listeners.
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
	GRPCAddr string `yaml:"grpc_addr"`
}

// LoggingConfig configures the ambient structured logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a YAML config file, substitutes environment references, and
// validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	data = substituteEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config: validating %s: %w", path, err)
	}

	return &cfg, nil
}

func substituteEnvVars(content []byte) []byte {
	return envVarPattern.ReplaceAllFunc(content, func(match []byte) []byte {
		groups := envVarPattern.FindSubmatch(match)
		if groups == nil {
			return match
		}

		varName := string(groups[1])
		hasDefault := len(groups) > 2 && groups[2] != nil
		defaultVal := ""
		if hasDefault {
			defaultVal = string(groups[2])
		}

		val, ok := os.LookupEnv(varName)
		if !ok || val == "" {
			if hasDefault {
				return []byte(defaultVal)
			}
			return []byte("")
		}
		return []byte(val)
	})
}

// Validate checks required fields and enumerated value ranges.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if cfg.Mode == "" {
		return fmt.Errorf("mode is required")
	}
	if cfg.Mode != "mask" && cfg.Mode != "route" {
		return fmt.Errorf("mode %q is not valid; must be mask or route", cfg.Mode)
	}

	if cfg.PIIDetection.Enabled && cfg.PIIDetection.PresidioURL == "" {
		return fmt.Errorf("pii_detection.presidio_url is required when pii_detection.enabled is true")
	}
	if cfg.PIIDetection.ScoreThreshold < 0 || cfg.PIIDetection.ScoreThreshold > 1 {
		return fmt.Errorf("pii_detection.score_threshold must be in [0,1], got %v", cfg.PIIDetection.ScoreThreshold)
	}

	if cfg.Logging.Level != "" {
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[cfg.Logging.Level] {
			return fmt.Errorf("logging.level %q is not valid", cfg.Logging.Level)
		}
	}
	if cfg.Logging.Format != "" && cfg.Logging.Format != "json" && cfg.Logging.Format != "text" {
		return fmt.Errorf("logging.format %q is not valid; must be json or text", cfg.Logging.Format)
	}

	for name, p := range cfg.Providers {
		if p.BaseURL == "" {
			return fmt.Errorf("providers.%s.base_url is required", name)
		}
	}

	return nil
}
