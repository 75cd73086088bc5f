package feed

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"guildgate/internal/metrics"
	"guildgate/internal/model"
)

// PollConfig holds runtime settings for the poller.
type PollConfig struct {
	Interval     time.Duration
	Box          BoundingBox
	MaxRetries   int
	RetryBackoff time.Duration
}

// PassStats summarizes one fetch-filter-notify pass.
type PassStats struct {
	Fetched  int
	InBox    int
	Eligible int
	Notified int
	Failed   int
}

// Poller fetches the feed on an interval and notifies each new in-box event once.
type Poller struct {
	cfg      PollConfig
	source   Source
	dedup    *Deduper
	notifier Notifier
	seen     *SeenStore
	logger   *zap.Logger
}

// NewPoller builds a Poller with its dependencies. seen may be nil.
func NewPoller(cfg PollConfig, source Source, dedup *Deduper, notifier Notifier, seen *SeenStore, logger *zap.Logger) *Poller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if dedup == nil {
		dedup = NewDeduper(DefaultDedupSize)
	}
	return &Poller{
		cfg:      cfg,
		source:   source,
		dedup:    dedup,
		notifier: notifier,
		seen:     seen,
		logger:   logger,
	}
}

// Restore loads the persisted dedup window, if any.
func (p *Poller) Restore() error {
	ids, ok, err := p.seen.Load()
	if err != nil {
		return err
	}
	if ok {
		p.dedup.Restore(ids)
		p.logger.Info("restored seen events", zap.Int("count", p.dedup.Size()))
	}
	return nil
}

// Run executes a pass immediately and then once per interval until ctx is
// done. Passes never overlap; a failed pass is logged and the loop continues.
func (p *Poller) Run(ctx context.Context) error {
	if p.source == nil {
		return fmt.Errorf("feed source is nil")
	}
	if p.notifier == nil {
		return fmt.Errorf("notifier is nil")
	}
	if p.cfg.Interval <= 0 {
		return fmt.Errorf("poll interval must be greater than zero")
	}

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	for {
		stats, err := p.RunOnce(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Warn("feed pass failed", zap.Error(err))
		} else {
			p.logger.Info("feed pass complete",
				zap.Int("fetched", stats.Fetched),
				zap.Int("in_box", stats.InBox),
				zap.Int("eligible", stats.Eligible),
				zap.Int("notified", stats.Notified),
				zap.Int("failed", stats.Failed),
			)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce fetches one batch, keeps in-box events not yet seen, and for each
// notifies first and records second, so a failure can cause a repeat
// notification but never a dropped one.
func (p *Poller) RunOnce(ctx context.Context) (PassStats, error) {
	var stats PassStats

	var events []model.FeedEvent
	policy := retryPolicy{
		maxRetries: p.cfg.MaxRetries,
		baseDelay:  p.cfg.RetryBackoff,
		budget:     p.cfg.Interval,
		logger:     p.logger,
	}
	err := policy.do(ctx, func(ctx context.Context) error {
		var err error
		events, err = p.source.Fetch(ctx)
		return err
	})
	if err != nil {
		return stats, fmt.Errorf("fetch feed: %w", err)
	}
	stats.Fetched = len(events)

	eligible := make([]model.FeedEvent, 0, len(events))
	batch := make(map[string]struct{}, len(events))
	for _, ev := range events {
		if !p.cfg.Box.Contains(ev.Latitude, ev.Longitude) {
			continue
		}
		stats.InBox++
		if _, dup := batch[ev.ID]; dup {
			continue
		}
		batch[ev.ID] = struct{}{}
		if !p.dedup.IsNew(ev.ID) {
			continue
		}
		eligible = append(eligible, ev)
	}
	stats.Eligible = len(eligible)

	for _, ev := range eligible {
		if ctx.Err() != nil {
			break
		}
		if err := p.notifier.Notify(ctx, ev); err != nil {
			stats.Failed++
			metrics.ObserveNotification("failed")
			p.logger.Warn("notify failed", zap.String("event", ev.ID), zap.Error(err))
			continue
		}
		p.dedup.Record(ev.ID)
		stats.Notified++
		metrics.ObserveNotification("sent")
	}
	metrics.SetSeenEvents(p.dedup.Size())

	if stats.Notified > 0 {
		if err := p.seen.Save(p.dedup.Snapshot()); err != nil {
			p.logger.Warn("save seen events failed", zap.Error(err))
		}
	}

	return stats, nil
}
