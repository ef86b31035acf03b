// Package notify holds Notifier decorators shared by every delivery backend.
package notify

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"time"

	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/domain"
	"github.com/baechuer/real-time-ressys/services/webinar-service/internal/metrics"
	"github.com/rs/zerolog"
)

type Config struct {
	MaxAttempts  int
	InitialDelay time.Duration
	MaxDelay     time.Duration
}

// Retrying retries the wrapped notifier on Temporary() errors with exponential
// backoff and jitter. Permanent and unclassified errors return immediately.
type Retrying struct {
	next  domain.Notifier
	cfg   Config
	lg    zerolog.Logger
	sleep func(ctx context.Context, d time.Duration) error
}

func NewRetrying(next domain.Notifier, cfg Config, lg zerolog.Logger) *Retrying {
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.InitialDelay <= 0 {
		cfg.InitialDelay = 200 * time.Millisecond
	}
	if cfg.MaxDelay <= 0 {
		cfg.MaxDelay = 5 * time.Second
	}
	return &Retrying{
		next:  next,
		cfg:   cfg,
		lg:    lg.With().Str("component", "notify_retry").Logger(),
		sleep: sleepCtx,
	}
}

func (r *Retrying) Send(ctx context.Context, msg domain.Message) error {
	var lastErr error

	for attempt := 0; attempt < r.cfg.MaxAttempts; attempt++ {
		if attempt > 0 {
			metrics.RecordNotifyRetry()
			if err := r.sleep(ctx, r.delay(attempt-1)); err != nil {
				return errors.Join(lastErr, err)
			}
		}

		err := r.next.Send(ctx, msg)
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsTemporary(err) {
			return err
		}
		r.lg.Warn().Err(err).Str("to", msg.To).Int("attempt", attempt+1).Msg("notification failed; retrying")
	}
	return lastErr
}

// delay: exponential with +/-20% jitter, bounded by MaxDelay
func (r *Retrying) delay(attempt int) time.Duration {
	d := time.Duration(float64(r.cfg.InitialDelay) * math.Pow(2, float64(attempt)))
	if d > r.cfg.MaxDelay || d <= 0 {
		d = r.cfg.MaxDelay
	}
	if d/5 > 0 {
		d += time.Duration(rand.Int63n(int64(d/5))) - d/10
	}
	return d
}

// IsTemporary reports whether err carries a Temporary() marker set to true.
func IsTemporary(err error) bool {
	var t interface{ Temporary() bool }
	return errors.As(err, &t) && t.Temporary()
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
