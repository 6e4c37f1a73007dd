package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/viper"
)

type Config struct {
	Addr        string `mapstructure:"api_addr" validate:"required"` // API bind address, e.g., "127.0.0.1:8080" or ":8080" (Docker)
	LogDir      string `mapstructure:"log_dir" validate:"required"`
	LogConsole  bool   `mapstructure:"log_console"`
	DatabaseURL string `mapstructure:"database_url"` // empty means use in-memory store

	PlaylistURLs []string `mapstructure:"playlist_urls" validate:"dive,url"`
	OutputDir    string   `mapstructure:"output_dir" validate:"required"`

	// probing
	Concurrency       int           `mapstructure:"probe_concurrency" validate:"min=1,max=100"`
	HopTimeout        time.Duration `mapstructure:"hop_timeout" validate:"gt=0"`
	MaxHops           int           `mapstructure:"max_hops" validate:"min=1,max=20"`
	MinCompletedBytes int           `mapstructure:"min_completed_bytes" validate:"min=1"`
	MinTimedOutBPS    float64       `mapstructure:"min_timed_out_bps" validate:"gt=0"`
	UserAgent         string        `mapstructure:"user_agent" validate:"required"`
	FetchAttempts     int           `mapstructure:"playlist_fetch_attempts" validate:"min=1,max=10"`
	FetchBackoff      time.Duration `mapstructure:"playlist_fetch_backoff" validate:"min=0"`

	// output
	MarkFailed         bool   `mapstructure:"mark_failed"`
	FailedMarker       string `mapstructure:"failed_marker"`
	UseDereferencedURL bool   `mapstructure:"use_dereferenced_url"`

	// API mode
	RecheckInterval   time.Duration `mapstructure:"recheck_interval" validate:"min=0"` // 0 disables
	SlackWebhookURL   string        `mapstructure:"slack_webhook_url" validate:"omitempty,url"`
	AlertOnRecovery   bool          `mapstructure:"alert_on_recovery"`
	AlertCooldown     time.Duration `mapstructure:"alert_cooldown" validate:"min=0"`
	AlertPollInterval time.Duration `mapstructure:"alert_poll_interval" validate:"min=0"` // 0 disables
	AlertHostGroupMin int           `mapstructure:"alert_host_group_min" validate:"min=0"` // 0 disables
	PublicAPIKeys     []string      `mapstructure:"public_api_keys"`
	AdminAPIKeys      []string      `mapstructure:"admin_api_keys"`
	PublicRPM         int           `mapstructure:"public_rpm" validate:"min=1"`
	PublicBurst       int           `mapstructure:"public_burst" validate:"min=1"`
	AdminRPM          int           `mapstructure:"admin_rpm" validate:"min=1"`
	AdminBurst        int           `mapstructure:"admin_burst" validate:"min=1"`
	AllowedOrigins    []string      `mapstructure:"allowed_origins"`
}

var defaults = map[string]any{
	"api_addr":                "127.0.0.1:8080",
	"log_dir":                 "logs",
	"log_console":             false,
	"database_url":            "",
	"playlist_urls":           "",
	"output_dir":              ".",
	"probe_concurrency":       5,
	"hop_timeout":             "10s",
	"max_hops":                5,
	"min_completed_bytes":     30000,
	"min_timed_out_bps":       100000.0,
	"user_agent":              "iPlayTV/3.0.0",
	"playlist_fetch_attempts": 3,
	"playlist_fetch_backoff":  "1s",
	"mark_failed":             false,
	"failed_marker":           "[X] ",
	"use_dereferenced_url":    false,
	"recheck_interval":        "0s",
	"slack_webhook_url":       "",
	"alert_on_recovery":       true,
	"alert_cooldown":          "1h",
	"alert_poll_interval":     "0s",
	"alert_host_group_min":    3,
	"public_api_keys":         "",
	"admin_api_keys":          "",
	"public_rpm":              120,
	"public_burst":            60,
	"admin_rpm":               30,
	"admin_burst":             10,
	"allowed_origins":         "",
}

// NewViper returns a viper instance with defaults and environment binding.
// If file is empty, .playlistchecker.yaml is looked up in $HOME and the
// working directory; a missing file is not an error.
func NewViper(file string) (*viper.Viper, error) {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()

	if file != "" {
		v.SetConfigFile(file)
	} else {
		if home, err := homedir.Dir(); err == nil {
			v.AddConfigPath(home)
		}
		v.AddConfigPath(".")
		v.SetConfigName(".playlistchecker")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var nf viper.ConfigFileNotFoundError
		if file != "" || !errors.As(err, &nf) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}
	return v, nil
}

// FromViper decodes and validates the settings held by v.
func FromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("decode config: %w", err)
	}
	cfg.PlaylistURLs = cleanList(cfg.PlaylistURLs)
	cfg.PublicAPIKeys = cleanList(cfg.PublicAPIKeys)
	cfg.AdminAPIKeys = cleanList(cfg.AdminAPIKeys)
	cfg.AllowedOrigins = cleanList(cfg.AllowedOrigins)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Load reads the optional config file and the environment.
func Load(file string) (Config, error) {
	v, err := NewViper(file)
	if err != nil {
		return Config{}, err
	}
	return FromViper(v)
}

// FromEnv reads the environment only. Invalid settings fall back to defaults.
func FromEnv() Config {
	v := viper.New()
	for k, d := range defaults {
		v.SetDefault(k, d)
	}
	v.AutomaticEnv()
	if cfg, err := FromViper(v); err == nil {
		return cfg
	}
	d := viper.New()
	for k, val := range defaults {
		d.SetDefault(k, val)
	}
	cfg, _ := FromViper(d)
	return cfg
}

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// cleanList trims entries of a comma separated setting and drops empty ones.
func cleanList(in []string) []string {
	var out []string
	for _, s := range in {
		for _, part := range strings.Split(s, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
	}
	return out
}
