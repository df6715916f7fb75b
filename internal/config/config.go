// Copyright (c) 2026 John Earle
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

// Package config loads configuration from config.yaml and environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// AuthSource selects which headers carry the SPF/DKIM/DMARC verdicts.
// Upstream message sources vary: some surface everything in a single
// Authentication-Results header, others only set Received-SPF and
// DKIM-Signature.
type AuthSource string

const (
	AuthSourceResults   AuthSource = "authentication-results"
	AuthSourceDedicated AuthSource = "dedicated-headers"
)

// ListConfig holds the paths to the flat configuration lists. All three
// are required; a missing file is fatal at startup.
type ListConfig struct {
	Keywords   string `yaml:"keywords"`
	Extensions string `yaml:"extensions"`
	KnownURLs  string `yaml:"known_urls"`
}

// FeedConfig configures the external threat-feed collaborator.
type FeedConfig struct {
	URL        string `yaml:"url"`
	APIKeyFile string `yaml:"api_key_file"`
	RefreshURL string `yaml:"refresh_url"`
	HashFile   string `yaml:"hash_file"`
}

// RedirectConfig configures the optional redirect-trace collaborator.
type RedirectConfig struct {
	Enabled         bool
	PollInterval    time.Duration
	StabilityWindow time.Duration
	MaxWait         time.Duration
}

// LabelConfig maps classification tiers to provider label names.
type LabelConfig struct {
	Low    string `yaml:"low"`
	Medium string `yaml:"medium"`
	High   string `yaml:"high"`
}

// HeuristicsConfig holds the diagnostic evaluator inputs.
type HeuristicsConfig struct {
	Shorteners      []string `yaml:"shorteners"`
	SuspiciousTLDs  []string `yaml:"suspicious_tlds"`
	InternalDomains []string `yaml:"internal_domains"`
	ImportantNames  []string `yaml:"important_names"`
}

// Config holds all configuration for the scoring service.
type Config struct {
	// Provider
	CredentialsFile string
	TokenFile       string
	PollInterval    time.Duration
	PollLookback    time.Duration
	AuthSource      AuthSource

	Lists      ListConfig
	Feed       FeedConfig
	FeedAPIKey string // loaded from Feed.APIKeyFile
	Redirect   RedirectConfig
	Labels     LabelConfig
	Heuristics HeuristicsConfig

	FeedTimeout time.Duration

	// Redis
	RedisURL      string
	VerdictsQueue string

	// Postgres
	DatabaseURL string

	// Server (health check only)
	Port int
}

// rawConfig mirrors the YAML structure for unmarshalling.
type rawConfig struct {
	Provider struct {
		CredentialsFile string `yaml:"credentials_file"`
		TokenFile       string `yaml:"token_file"`
		AuthSource      string `yaml:"auth_source"`
	} `yaml:"provider"`
	Lists      ListConfig       `yaml:"lists"`
	Feed       FeedConfig       `yaml:"feed"`
	Labels     LabelConfig      `yaml:"labels"`
	Heuristics HeuristicsConfig `yaml:"heuristics"`
	Redirect   struct {
		Enabled         bool   `yaml:"enabled"`
		PollInterval    string `yaml:"poll_interval"`
		StabilityWindow string `yaml:"stability_window"`
		MaxWait         string `yaml:"max_wait"`
	} `yaml:"redirect"`
	Redis struct {
		URL    string `yaml:"url"`
		Queues struct {
			Verdicts string `yaml:"verdicts"`
		} `yaml:"queues"`
	} `yaml:"redis"`
	Database struct {
		URL string `yaml:"url"`
	} `yaml:"database"`
}

// Load reads configuration from config.yaml (with env var expansion) and
// environment variables for non-YAML settings. Configuration failures are
// fatal and reported before any message is processed.
func Load() (*Config, error) {
	configPath := envOrDefault("CONFIG_PATH", "config.yaml")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("read config file %s: %w", configPath, err)
	}

	// Expand ${VAR} references in the YAML
	expanded := os.ExpandEnv(string(data))

	var raw rawConfig
	if err := yaml.Unmarshal([]byte(expanded), &raw); err != nil {
		return nil, fmt.Errorf("parse config YAML: %w", err)
	}

	cfg := &Config{
		CredentialsFile: firstNonEmpty(raw.Provider.CredentialsFile, envOrDefault("CREDENTIALS_FILE", "credentials.json")),
		TokenFile:       firstNonEmpty(raw.Provider.TokenFile, envOrDefault("TOKEN_FILE", "token.json")),
		PollInterval:    envOrDefaultDuration("POLL_INTERVAL", 60*time.Second),
		PollLookback:    envOrDefaultDuration("POLL_LOOKBACK", 3*time.Hour),
		Lists:           raw.Lists,
		Feed:            raw.Feed,
		Labels:          raw.Labels,
		Heuristics:      raw.Heuristics,
		FeedTimeout:     envOrDefaultDuration("FEED_TIMEOUT", 15*time.Second),
		RedisURL:        firstNonEmpty(raw.Redis.URL, envOrDefault("REDIS_URL", "redis://localhost:6379/0")),
		VerdictsQueue:   firstNonEmpty(raw.Redis.Queues.Verdicts, envOrDefault("VERDICTS_QUEUE", "verdicts")),
		DatabaseURL:     firstNonEmpty(raw.Database.URL, os.Getenv("DATABASE_URL")),
		Port:            envOrDefaultInt("PORT", 8080),
	}

	switch AuthSource(raw.Provider.AuthSource) {
	case AuthSourceDedicated:
		cfg.AuthSource = AuthSourceDedicated
	case AuthSourceResults, "":
		cfg.AuthSource = AuthSourceResults
	default:
		return nil, fmt.Errorf("unknown provider.auth_source %q", raw.Provider.AuthSource)
	}

	// Tier labels default to the standard names.
	if cfg.Labels.Low == "" {
		cfg.Labels.Low = "Threat-Low"
	}
	if cfg.Labels.Medium == "" {
		cfg.Labels.Medium = "Threat-Medium"
	}
	if cfg.Labels.High == "" {
		cfg.Labels.High = "Threat-High"
	}

	cfg.Redirect = RedirectConfig{
		Enabled:         raw.Redirect.Enabled,
		PollInterval:    durationOrDefault(raw.Redirect.PollInterval, 200*time.Millisecond),
		StabilityWindow: durationOrDefault(raw.Redirect.StabilityWindow, 2*time.Second),
		MaxWait:         durationOrDefault(raw.Redirect.MaxWait, 30*time.Second),
	}

	// List files are required and must exist before the first message.
	for name, path := range map[string]string{
		"lists.keywords":   cfg.Lists.Keywords,
		"lists.extensions": cfg.Lists.Extensions,
		"lists.known_urls": cfg.Lists.KnownURLs,
	} {
		if path == "" {
			return nil, fmt.Errorf("%s is required", name)
		}
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}

	// The threat-feed API key lives in a local secret file. An empty path
	// is the valid no-auth mode; a configured but unreadable file is fatal.
	if cfg.Feed.APIKeyFile != "" {
		key, err := os.ReadFile(cfg.Feed.APIKeyFile)
		if err != nil {
			return nil, fmt.Errorf("read feed API key file: %w", err)
		}
		cfg.FeedAPIKey = strings.TrimSpace(string(key))
	}

	return cfg, nil
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envOrDefaultDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func durationOrDefault(v string, fallback time.Duration) time.Duration {
	if v == "" {
		return fallback
	}
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
