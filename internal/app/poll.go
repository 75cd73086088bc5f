package app

import (
	"go.uber.org/zap"

	"guildgate/internal/config"
	"guildgate/internal/feed"
)

// PollApp wires the feed poller for the poll command.
type PollApp struct {
	Source   feed.Source
	Dedup    *feed.Deduper
	Notifier feed.Notifier
	Seen     *feed.SeenStore
	Poller   *feed.Poller
}

// NewPoll builds a PollApp from cfg and restores any persisted dedup window.
// Without a webhook url events are only logged.
func NewPoll(cfg config.PollConfig, logger *zap.Logger) (*PollApp, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	box := feed.BoundingBox{MinLat: cfg.MinLat, MaxLat: cfg.MaxLat, MinLon: cfg.MinLon, MaxLon: cfg.MaxLon}
	if err := box.Validate(); err != nil {
		return nil, err
	}

	var notifier feed.Notifier
	if cfg.WebhookURL != "" {
		n, err := feed.NewWebhookNotifier(cfg.WebhookURL, cfg.Region, cfg.FetchTimeout)
		if err != nil {
			return nil, err
		}
		notifier = n
	} else {
		logger.Warn("no webhook url configured, events will only be logged")
		notifier = feed.NewLogNotifier(cfg.Region, logger)
	}

	p := &PollApp{
		Source:   feed.NewClient(cfg.FeedURL, cfg.FetchTimeout),
		Dedup:    feed.NewDeduper(cfg.DedupSize),
		Notifier: notifier,
		Seen:     feed.NewSeenStore(cfg.SeenFile),
	}
	p.Poller = feed.NewPoller(feed.PollConfig{
		Interval:     cfg.Interval,
		Box:          box,
		MaxRetries:   cfg.MaxRetries,
		RetryBackoff: cfg.RetryBackoff,
	}, p.Source, p.Dedup, p.Notifier, p.Seen, logger)

	if err := p.Poller.Restore(); err != nil {
		return nil, err
	}
	return p, nil
}
