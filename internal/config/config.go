package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration (file + env overrides)
type Config struct {
	Server struct {
		Addr     string `mapstructure:"addr"`
		LogLevel string `mapstructure:"log_level"`
		Debug    bool   `mapstructure:"debug"`
	} `mapstructure:"server"`

	Sheets struct {
		SpreadsheetID       string `mapstructure:"spreadsheet_id"`
		CredentialsJSON     string `mapstructure:"credentials_json"`
		CredentialsFile     string `mapstructure:"credentials_file"`
		AdsTab              string `mapstructure:"ads_tab"`
		SitesTab            string `mapstructure:"sites_tab"`
		FetchTimeoutSeconds int    `mapstructure:"fetch_timeout_seconds"`
	} `mapstructure:"sheets"`

	Cache struct {
		FreshSeconds   int `mapstructure:"fresh_seconds"`
		StaleSeconds   int `mapstructure:"stale_seconds"`
		RefreshSeconds int `mapstructure:"refresh_seconds"`
	} `mapstructure:"cache"`

	Events struct {
		RateWindowSeconds  int `mapstructure:"rate_window_seconds"`
		RateMaxPerWindow   int `mapstructure:"rate_max_per_window"`
		DedupWindowSeconds int `mapstructure:"dedup_window_seconds"`
		DedupMaxEntries    int `mapstructure:"dedup_max_entries"`
	} `mapstructure:"events"`
}

func Load() Config {
	v := viper.New()
	v.SetConfigName("application")
	v.SetConfigType("yaml")
	v.AddConfigPath("configs")
	_ = v.ReadInConfig() // optional; env can fully configure

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Errorf("unable to decode config: %w", err))
	}
	validate(&cfg)
	return cfg
}

// Default returns a Config with every fallback applied and no sources read.
func Default() Config {
	var cfg Config
	validate(&cfg)
	return cfg
}

func validate(c *Config) {
	if c.Server.Addr == "" { c.Server.Addr = ":8080" }
	if c.Sheets.AdsTab == "" { c.Sheets.AdsTab = "network_ads" }
	if c.Sheets.SitesTab == "" { c.Sheets.SitesTab = "network_sites" }
	if c.Sheets.FetchTimeoutSeconds <= 0 { c.Sheets.FetchTimeoutSeconds = 10 }
	if c.Cache.FreshSeconds <= 0 { c.Cache.FreshSeconds = 60 }
	if c.Cache.StaleSeconds <= 0 { c.Cache.StaleSeconds = 300 }
	if c.Cache.RefreshSeconds <= 0 { c.Cache.RefreshSeconds = 60 }
	if c.Events.RateWindowSeconds <= 0 { c.Events.RateWindowSeconds = 60 }
	if c.Events.RateMaxPerWindow <= 0 { c.Events.RateMaxPerWindow = 30 }
	if c.Events.DedupWindowSeconds <= 0 { c.Events.DedupWindowSeconds = 90 }
	if c.Events.DedupMaxEntries <= 0 { c.Events.DedupMaxEntries = 4096 }
}

func (c Config) FetchTimeout() time.Duration {
	return time.Duration(c.Sheets.FetchTimeoutSeconds) * time.Second
}

func (c Config) FreshWindow() time.Duration {
	return time.Duration(c.Cache.FreshSeconds) * time.Second
}

func (c Config) StaleWindow() time.Duration {
	return time.Duration(c.Cache.StaleSeconds) * time.Second
}

func (c Config) RefreshInterval() time.Duration {
	return time.Duration(c.Cache.RefreshSeconds) * time.Second
}
