package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Identity backends.
const (
	IdentitySQLite = "sqlite"
	IdentityRedis  = "redis"
	IdentityMemory = "memory"
)

type Config struct {
	Server struct {
		Port string `yaml:"port"`
	} `yaml:"server"`
	Advisor struct {
		BaseURL string `yaml:"baseURL"`
		Token   string `yaml:"token"`
		Timeout string `yaml:"timeout"`
	} `yaml:"advisor"`
	Identity struct {
		Backend    string `yaml:"backend"`
		Key        string `yaml:"key"`
		SQLitePath string `yaml:"sqlitePath"`
	} `yaml:"identity"`
	Redis struct {
		Addr     string `yaml:"addr"`
		Password string `yaml:"password"`
		DB       int    `yaml:"db"`
		TTL      string `yaml:"ttl"`
	} `yaml:"redis"`
	Postgres struct {
		URL string `yaml:"url"`
	} `yaml:"postgres"`
	NATS struct {
		URL     string `yaml:"url"`
		Subject string `yaml:"subject"`
	} `yaml:"nats"`
	Quiz struct {
		TTL string `yaml:"ttl"`
	} `yaml:"quiz"`
	Session struct {
		Welcome string `yaml:"welcome"`
	} `yaml:"session"`
	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`
}

// Default returns the configuration used when no file is present.
func Default() Config {
	cfg := Config{}
	cfg.Server.Port = "8080"
	cfg.Advisor.BaseURL = "http://localhost:3000/api"
	cfg.Advisor.Timeout = "60s"
	cfg.Identity.Backend = IdentitySQLite
	cfg.Identity.Key = "default"
	cfg.Identity.SQLitePath = "./data/advisor.db"
	cfg.Redis.TTL = "720h"
	cfg.Quiz.TTL = "10m"
	cfg.Log.Level = "info"
	return cfg
}

// Load reads YAML config from path on top of the defaults, then applies
// environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	cfg.applyEnv()
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() {
	overrides := []struct {
		env    string
		target *string
	}{
		{"ADVISOR_BASE_URL", &c.Advisor.BaseURL},
		{"ADVISOR_TOKEN", &c.Advisor.Token},
		{"LOG_LEVEL", &c.Log.Level},
		{"PORT", &c.Server.Port},
	}
	for _, o := range overrides {
		if v := os.Getenv(o.env); v != "" {
			*o.target = v
		}
	}
}

// Validate checks the settings every command relies on.
func (c *Config) Validate() error {
	if c.Advisor.BaseURL == "" {
		return fmt.Errorf("advisor.baseURL cannot be empty")
	}
	switch c.Identity.Backend {
	case IdentitySQLite:
		if c.Identity.SQLitePath == "" {
			return fmt.Errorf("identity.sqlitePath cannot be empty for the sqlite backend")
		}
	case IdentityRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for the redis identity backend")
		}
	case IdentityMemory:
	default:
		return fmt.Errorf("unknown identity backend %q", c.Identity.Backend)
	}
	return nil
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
