package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server struct {
		Port string `yaml:"port" env:"PORT"`
	} `yaml:"server"`
	Redis struct {
		Addr     string `yaml:"addr" env:"REDIS_ADDR"`
		Password string `yaml:"password" env:"REDIS_PASSWORD"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url" env:"POSTGRES_URL"`
	} `yaml:"postgres"`
	Templates struct {
		TTL string `yaml:"ttl"`
	} `yaml:"templates"`
	Grading struct {
		BaseURL    string   `yaml:"base_url" env:"GRADING_BASE_URL"`
		APIKey     string   `yaml:"api_key" env:"GROQ_API_KEY"`
		Model      string   `yaml:"model" env:"GRADING_MODEL"`
		Timeout    string   `yaml:"timeout"`
		MaxRetries int      `yaml:"max_retries"`
		MaxScore   int      `yaml:"max_score"`
		MaxTokens  int64    `yaml:"max_tokens"`
		Temp       *float64 `yaml:"temperature"`
	} `yaml:"grading"`
	Teacher struct {
		// Passphrase is a shared placeholder gate, not a credential.
		Passphrase     string `yaml:"passphrase" env:"TEACHER_PASSPHRASE"`
		PassphraseHash string `yaml:"passphrase_hash" env:"TEACHER_PASSPHRASE_HASH"`
	} `yaml:"teacher"`
}

// Load reads YAML config from path, then applies environment overrides.
// A missing file is not an error: defaults plus environment are enough to run.
func Load(path string) (Config, error) {
	cfg := Config{}
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, err
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, err
		}
	}
	if err := ApplyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields tagged with `env` when the variable is set.
func ApplyEnv(cfg *Config) error {
	if err := env.Parse(cfg); err != nil {
		return fmt.Errorf("parse env: %w", err)
	}
	return nil
}

// LoadDotEnv loads variables from .env files if present; existing environment wins.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	var existing []string
	for _, p := range paths {
		if _, err := os.Stat(p); err == nil {
			existing = append(existing, p)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	return godotenv.Load(existing...)
}

// TTLDuration parses a duration string or returns the fallback if empty.
func TTLDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	return fallback
}
