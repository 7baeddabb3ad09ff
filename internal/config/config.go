// Package config loads runtime settings from the environment, an optional .env file
// and an optional YAML rules file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"invoice-audit/internal/core"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const defaultMaxBodyBytes = 10 << 20

// Config holds everything the binaries need to wire the audit service.
type Config struct {
	AppEnv         string
	LogLevel       string
	ListenAddr     string
	DatabaseURL    string
	OpenAIKey      string
	OpenAIModel    string
	AllowedOrigins string
	MaxBodyBytes   int64
	RulesFile      string
	Rules          core.RuleOptions
}

// rulesFile is the YAML shape of AUDIT_RULES_FILE. Unset keys keep their defaults.
type rulesFile struct {
	TreatZeroAsMissing  *bool `yaml:"treat_zero_as_missing"`
	CheckGSTIN          *bool `yaml:"check_gstin"`
	ConcurrentDetectors *bool `yaml:"concurrent_detectors"`
}

// Load reads .env when present and builds a Config. Environment variables take
// precedence over the rules file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		AppEnv:         getenv("APP_ENV", "production"),
		LogLevel:       os.Getenv("LOG_LEVEL"),
		ListenAddr:     getenv("LISTEN_ADDR", ":8080"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    getenv("OPENAI_MODEL", "gpt-4o"),
		AllowedOrigins: os.Getenv("ALLOWED_ORIGINS"),
		RulesFile:      os.Getenv("AUDIT_RULES_FILE"),
		Rules:          core.DefaultRuleOptions(),
	}

	maxBody, err := getenvInt("MAX_BODY_BYTES", defaultMaxBodyBytes)
	if err != nil {
		return nil, err
	}
	if maxBody <= 0 {
		return nil, fmt.Errorf("MAX_BODY_BYTES must be positive, got %d", maxBody)
	}
	cfg.MaxBodyBytes = int64(maxBody)

	if cfg.RulesFile != "" {
		if err := applyRulesFile(cfg.RulesFile, &cfg.Rules); err != nil {
			return nil, err
		}
	}

	overrides := []struct {
		key string
		dst *bool
	}{
		{"AUDIT_TREAT_ZERO_AS_MISSING", &cfg.Rules.TreatZeroAsMissing},
		{"AUDIT_CHECK_GSTIN", &cfg.Rules.CheckGSTIN},
		{"AUDIT_CONCURRENT", &cfg.Rules.Concurrent},
	}
	for _, o := range overrides {
		if err := getenvBool(o.key, o.dst); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// PersistenceEnabled reports whether audit runs are stored in Postgres.
func (c *Config) PersistenceEnabled() bool { return c.DatabaseURL != "" }

// InsightsEnabled reports whether an OpenAI key is configured.
func (c *Config) InsightsEnabled() bool { return c.OpenAIKey != "" }

func applyRulesFile(path string, rules *core.RuleOptions) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read rules file: %w", err)
	}
	var rf rulesFile
	if err := yaml.Unmarshal(data, &rf); err != nil {
		return fmt.Errorf("invalid rules file %s: %w", path, err)
	}
	if rf.TreatZeroAsMissing != nil {
		rules.TreatZeroAsMissing = *rf.TreatZeroAsMissing
	}
	if rf.CheckGSTIN != nil {
		rules.CheckGSTIN = *rf.CheckGSTIN
	}
	if rf.ConcurrentDetectors != nil {
		rules.Concurrent = *rf.ConcurrentDetectors
	}
	return nil
}

func getenv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getenvInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s must be an integer: %w", key, err)
	}
	return n, nil
}

func getenvBool(key string, dst *bool) error {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return errors.Join(fmt.Errorf("%s must be a boolean", key), err)
	}
	*dst = b
	return nil
}
