package session

import (
	"context"
	"log/slog"
	"time"
)

// Janitor periodically drops sessions idle for longer than the TTL and hands
// their ids to onExpire so stored files can be removed.
type Janitor struct {
	store    *Store
	ttl      time.Duration
	interval time.Duration
	onExpire func(ctx context.Context, id string) error
	logger   *slog.Logger

	ticker *time.Ticker
	done   chan struct{}
}

func NewJanitor(store *Store, ttl time.Duration, onExpire func(context.Context, string) error, logger *slog.Logger) *Janitor {
	if logger == nil {
		logger = slog.Default()
	}
	return &Janitor{
		store:    store,
		ttl:      ttl,
		interval: max(ttl/4, time.Minute),
		onExpire: onExpire,
		logger:   logger,
		done:     make(chan struct{}),
	}
}

func (j *Janitor) Start() {
	j.ticker = time.NewTicker(j.interval)
	go func() {
		for {
			select {
			case <-j.done:
				return
			case <-j.ticker.C:
				j.Sweep(context.Background(), time.Now())
			}
		}
	}()
	j.logger.Info("session janitor started", "ttl", j.ttl, "interval", j.interval)
}

func (j *Janitor) Stop() {
	if j.ticker != nil {
		j.ticker.Stop()
	}
	close(j.done)
	j.logger.Info("session janitor stopped")
}

// Sweep expires idle sessions once and returns how many were dropped.
func (j *Janitor) Sweep(ctx context.Context, now time.Time) int {
	ids := j.store.Expired(now, j.ttl)
	for _, id := range ids {
		j.logger.Info("session expired", "session_id", id)
		if j.onExpire == nil {
			continue
		}
		if err := j.onExpire(ctx, id); err != nil {
			j.logger.Warn("failed to clean up expired session", "session_id", id, "error", err)
		}
	}
	return len(ids)
}
