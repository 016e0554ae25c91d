package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

type Server struct {
	Port              string `json:"port"`
	RequestTimeoutSec int    `json:"request_timeout_sec"`
}

type MarketData struct {
	APIKey            string `json:"api_key"`
	BaseURL           string `json:"base_url"`
	AttemptTimeoutSec int    `json:"attempt_timeout_sec"`
	QuoteCacheTTLSec  int    `json:"quote_cache_ttl_sec"`
}

type Redis struct {
	URL string `json:"url"`
}

type Journal struct {
	Path string `json:"path"`
}

type Auth struct {
	Secret      string `json:"secret"`
	TokenTTLMin int    `json:"token_ttl_min"`
}

type Log struct {
	Level string `json:"level"`
}

type Config struct {
	Server     Server     `json:"server"`
	MarketData MarketData `json:"marketdata"`
	Redis      Redis      `json:"redis"`
	Journal    Journal    `json:"journal"`
	Auth       Auth       `json:"auth"`
	Log        Log        `json:"log"`
}

func Default() Config {
	return Config{
		Server: Server{Port: "8080", RequestTimeoutSec: 15},
		MarketData: MarketData{
			BaseURL:           "https://api.polygon.io",
			AttemptTimeoutSec: 5,
			QuoteCacheTTLSec:  10,
		},
		Redis:   Redis{URL: "redis://localhost:6379/0"},
		Journal: Journal{Path: "data/journal.db"},
		Auth:    Auth{TokenTTLMin: 24 * 60},
		Log:     Log{Level: "info"},
	}
}

// Load reads JSON config from path. If path is empty or file does not exist,
// it returns defaults. Environment variables override select fields for secrecy.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		if _, err := os.Stat("config.json"); err == nil {
			path = "config.json"
		}
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil && !errors.Is(err, os.ErrNotExist) {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err == nil {
			if err := json.Unmarshal(b, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config: %w", err)
			}
		}
	}
	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("PORT"); v != "" {
		cfg.Server.Port = v
	}
	if v := os.Getenv("REQUEST_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Server.RequestTimeoutSec = x
		}
	}
	if v := os.Getenv("MARKETDATA_API_KEY"); v != "" {
		cfg.MarketData.APIKey = v
	}
	if v := os.Getenv("MARKETDATA_BASE_URL"); v != "" {
		cfg.MarketData.BaseURL = v
	}
	if v := os.Getenv("MARKETDATA_ATTEMPT_TIMEOUT_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.MarketData.AttemptTimeoutSec = x
		}
	}
	if v := os.Getenv("QUOTE_CACHE_TTL_SEC"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x >= 0 {
			cfg.MarketData.QuoteCacheTTLSec = x
		}
	}
	if v := os.Getenv("REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("JOURNAL_DB_PATH"); v != "" {
		cfg.Journal.Path = v
	}
	if v := os.Getenv("AUTH_SECRET"); v != "" {
		cfg.Auth.Secret = v
	}
	if v := os.Getenv("AUTH_TOKEN_TTL_MIN"); v != "" {
		var x int
		fmt.Sscanf(v, "%d", &x)
		if x > 0 {
			cfg.Auth.TokenTTLMin = x
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
}
