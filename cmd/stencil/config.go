package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/pflag"
)

// Config holds all stencil CLI configuration.
// Priority: flags > env vars > settings.json > defaults.
type Config struct {
	LogLevel    string `json:"log_level"`
	LogFormat   string `json:"log_format"`
	JournalPath string `json:"journal_path"`
	Locale      string `json:"locale"`
	ExprLang    string `json:"expr_lang"`
	MetricsAddr string `json:"metrics_addr"`
	IncludeDir  string `json:"include_dir"`
	Concurrency int    `json:"concurrency"`
}

func defaultConfig() Config {
	return Config{
		LogLevel:    "warn",
		LogFormat:   "text",
		Locale:      "en",
		ExprLang:    "expr",
		IncludeDir:  ".",
		Concurrency: 4,
	}
}

func stencilDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".stencil"
	}
	return filepath.Join(home, ".stencil")
}

func settingsPath() string {
	return filepath.Join(stencilDir(), "settings.json")
}

func loadConfig() Config {
	cfg := defaultConfig()

	// Layer 2: settings.json (ignore if missing).
	if data, err := os.ReadFile(settingsPath()); err == nil {
		_ = json.Unmarshal(data, &cfg)
	}

	// Layer 3: env vars override.
	if v := os.Getenv("STENCIL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("STENCIL_LOG_FORMAT"); v != "" {
		cfg.LogFormat = v
	}
	if v := os.Getenv("STENCIL_JOURNAL"); v != "" {
		cfg.JournalPath = v
	}
	if v := os.Getenv("STENCIL_LOCALE"); v != "" {
		cfg.Locale = v
	}
	if v := os.Getenv("STENCIL_EXPR_LANG"); v != "" {
		cfg.ExprLang = v
	}
	if v := os.Getenv("STENCIL_METRICS"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("STENCIL_INCLUDE_DIR"); v != "" {
		cfg.IncludeDir = v
	}
	if v := os.Getenv("STENCIL_CONCURRENCY"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Concurrency = n
		}
	}

	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return cfg
}

// applyFlags overrides cfg with every persistent flag the user set.
func applyFlags(cfg *Config, flags *pflag.FlagSet) {
	str := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	str("log-level", &cfg.LogLevel)
	str("log-format", &cfg.LogFormat)
	str("journal", &cfg.JournalPath)
	str("locale", &cfg.Locale)
	str("lang", &cfg.ExprLang)
	str("metrics-addr", &cfg.MetricsAddr)
	str("include-dir", &cfg.IncludeDir)
	if flags.Changed("concurrency") {
		cfg.Concurrency, _ = flags.GetInt("concurrency")
		if cfg.Concurrency <= 0 {
			cfg.Concurrency = 1
		}
	}
}
