package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// PollConfig holds configuration for the poll command.
type PollConfig struct {
	FeedURL      string
	Interval     time.Duration
	FetchTimeout time.Duration
	MinLat       float64
	MaxLat       float64
	MinLon       float64
	MaxLon       float64
	Region       string
	WebhookURL   string
	DedupSize    int
	SeenFile     string
	MaxRetries   int
	RetryBackoff time.Duration
	Log          LogConfig
}

// LoadPoll merges config file, environment variables, and flags into PollConfig.
func LoadPoll(cfgFile string, flags *pflag.FlagSet) (PollConfig, error) {
	v, err := newViper(cfgFile, flags, map[string]interface{}{
		"feed-url":      "https://earthquake.usgs.gov/earthquakes/feed/v1.0/summary/all_hour.geojson",
		"interval":      time.Minute,
		"fetch-timeout": 15 * time.Second,
		"min-lat":       24.0,
		"max-lat":       46.0,
		"min-lon":       122.0,
		"max-lon":       153.0,
		"region":        "Japan",
		"dedup-size":    100,
		"max-retries":   3,
		"retry-backoff": 500 * time.Millisecond,
	})
	if err != nil {
		return PollConfig{}, err
	}

	cfg := PollConfig{
		FeedURL:      strings.TrimSpace(v.GetString("feed-url")),
		Interval:     v.GetDuration("interval"),
		FetchTimeout: v.GetDuration("fetch-timeout"),
		MinLat:       v.GetFloat64("min-lat"),
		MaxLat:       v.GetFloat64("max-lat"),
		MinLon:       v.GetFloat64("min-lon"),
		MaxLon:       v.GetFloat64("max-lon"),
		Region:       v.GetString("region"),
		WebhookURL:   strings.TrimSpace(v.GetString("webhook-url")),
		DedupSize:    v.GetInt("dedup-size"),
		SeenFile:     strings.TrimSpace(v.GetString("seen-file")),
		MaxRetries:   v.GetInt("max-retries"),
		RetryBackoff: v.GetDuration("retry-backoff"),
		Log:          loadLog(v),
	}

	if cfg.FeedURL == "" {
		return PollConfig{}, fmt.Errorf("feed-url is required")
	}
	if cfg.Interval <= 0 {
		return PollConfig{}, fmt.Errorf("interval must be greater than zero")
	}
	if cfg.DedupSize <= 0 {
		return PollConfig{}, fmt.Errorf("dedup-size must be greater than zero")
	}
	return cfg, nil
}
