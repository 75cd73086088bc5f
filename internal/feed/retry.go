package feed

import (
	"context"
	"errors"
	"io"
	"net"
	"time"

	"go.uber.org/zap"
)

// Transient reports whether a fetch error is worth another attempt in the
// same pass: network failures, 429 and 5xx responses. Other statuses and
// undecodable bodies will not change on retry.
func Transient(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return false
	}
	var status *StatusError
	if errors.As(err, &status) {
		return status.Code == 429 || status.Code >= 500
	}
	if errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

// retryPolicy retries transient failures with doubling delays. The sum of
// all delays never exceeds budget, so one pass cannot outlast its tick.
type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	budget     time.Duration
	retryable  func(error) bool
	logger     *zap.Logger
}

func (p retryPolicy) do(ctx context.Context, fn func(context.Context) error) error {
	delay := p.baseDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}
	retryable := p.retryable
	if retryable == nil {
		retryable = Transient
	}
	logger := p.logger
	if logger == nil {
		logger = zap.NewNop()
	}

	var waited time.Duration
	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt > p.maxRetries || !retryable(err) {
			return err
		}
		if p.budget > 0 && waited+delay > p.budget {
			logger.Warn("retry budget exhausted",
				zap.Int("attempt", attempt),
				zap.Duration("waited", waited),
				zap.Error(err),
			)
			return err
		}

		logger.Warn("feed fetch attempt failed",
			zap.Int("attempt", attempt),
			zap.Duration("retry_in", delay),
			zap.Error(err),
		)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		waited += delay
		delay *= 2
	}
}
