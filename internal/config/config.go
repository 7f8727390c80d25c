// Package config loads the application configuration file.
package config

import (
	"encoding/base64"
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the serve-time configuration. Zero values fall back to the
// defaults below, so a partial file is fine.
type Config struct {
	BotID string `yaml:"bot_id"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`

	Server struct {
		Addr            string        `yaml:"addr"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	// Redis is optional; when Addr is empty the file store (if
	// configured) or the in-memory adapters are used instead.
	Redis struct {
		Addr     string        `yaml:"addr"`
		Password string        `yaml:"password"`
		DB       int           `yaml:"db"`
		StateTTL time.Duration `yaml:"state_ttl"`
	} `yaml:"redis"`

	// File persists conversations as JSON files under Dir. Useful for
	// single-process deployments that should survive restarts without
	// Redis. Ignored when Redis is configured.
	File struct {
		Dir string `yaml:"dir"`
	} `yaml:"file"`

	Classifier struct {
		HighConfidence float64 `yaml:"high_confidence"`
		Floor          float64 `yaml:"floor"`
		BlendWeight    float64 `yaml:"blend_weight"`
	} `yaml:"classifier"`

	Supervisor struct {
		Threshold  float64 `yaml:"threshold"`
		MaxRetries int     `yaml:"max_retries"`
	} `yaml:"supervisor"`

	Engine struct {
		StepBudget  int           `yaml:"step_budget"`
		MaxDepth    int           `yaml:"max_depth"`
		TurnTimeout time.Duration `yaml:"turn_timeout"`
	} `yaml:"engine"`

	// Privacy hardens what reaches the state store. The encryption key
	// is never read from the file; set PARLEY_STATE_KEY to a base64
	// encoded 32-byte key to encrypt state at rest.
	Privacy struct {
		PIIKeyPatterns   []string `yaml:"pii_key_patterns"`
		PIIValuePatterns []string `yaml:"pii_value_patterns"`
	} `yaml:"privacy"`

	Paths struct {
		Patterns  string `yaml:"patterns"`
		Workflows string `yaml:"workflows"`
	} `yaml:"paths"`

	// StateKey is decoded from PARLEY_STATE_KEY, empty when unset.
	StateKey []byte `yaml:"-"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	var cfg Config
	cfg.BotID = "parley"
	cfg.Logging.Level = "info"
	cfg.Server.Addr = ":8080"
	cfg.Server.ShutdownTimeout = 10 * time.Second
	cfg.Redis.StateTTL = 24 * time.Hour
	cfg.Classifier.HighConfidence = 0.6
	cfg.Classifier.Floor = 0.2
	cfg.Classifier.BlendWeight = 0.5
	cfg.Supervisor.Threshold = 0.7
	cfg.Supervisor.MaxRetries = 1
	cfg.Engine.StepBudget = 50
	cfg.Engine.MaxDepth = 5
	cfg.Engine.TurnTimeout = 30 * time.Second
	cfg.Paths.Patterns = "patterns.yaml"
	cfg.Paths.Workflows = "workflows"
	return cfg
}

// Load reads a YAML config file over the defaults. An empty path
// returns the defaults untouched; REDIS_PASSWORD in the environment
// overrides the file so credentials stay out of it.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}
	if pw, ok := os.LookupEnv("REDIS_PASSWORD"); ok {
		cfg.Redis.Password = pw
	}
	if encoded, ok := os.LookupEnv("PARLEY_STATE_KEY"); ok {
		key, err := base64.StdEncoding.DecodeString(encoded)
		if err != nil {
			return cfg, fmt.Errorf("failed to decode PARLEY_STATE_KEY: %w", err)
		}
		if len(key) != 32 {
			return cfg, fmt.Errorf("PARLEY_STATE_KEY must decode to 32 bytes, got %d", len(key))
		}
		cfg.StateKey = key
	}
	return cfg, cfg.validate()
}

func (c Config) validate() error {
	if c.Classifier.Floor > c.Classifier.HighConfidence {
		return fmt.Errorf("classifier floor %.2f exceeds high confidence threshold %.2f",
			c.Classifier.Floor, c.Classifier.HighConfidence)
	}
	if c.Classifier.BlendWeight < 0 || c.Classifier.BlendWeight > 1 {
		return fmt.Errorf("classifier blend weight must be within [0,1], got %.2f", c.Classifier.BlendWeight)
	}
	if c.Supervisor.MaxRetries < 0 {
		return fmt.Errorf("supervisor max retries must not be negative")
	}
	if c.Engine.StepBudget <= 0 {
		return fmt.Errorf("engine step budget must be positive")
	}
	if c.Engine.MaxDepth <= 0 {
		return fmt.Errorf("engine max depth must be positive")
	}
	for _, p := range append(c.Privacy.PIIKeyPatterns, c.Privacy.PIIValuePatterns...) {
		if _, err := regexp.Compile(p); err != nil {
			return fmt.Errorf("invalid privacy pattern %q: %w", p, err)
		}
	}
	return nil
}
