// Package cleanup runs a periodic sweep that surfaces contests which have
// ended but whose rating pass has not been triggered yet. Processing stays
// an explicit admin action; the sweep only reports.
package cleanup

import (
	"context"
	"log/slog"
	"time"

	"github.com/audithq/contest-engine/internal/storage"
)

// Cleaner periodically reports ended-but-unprocessed contests
type Cleaner struct {
	repo     storage.Repository
	interval time.Duration
}

// NewCleaner creates a new cleanup worker
func NewCleaner(repo storage.Repository, interval time.Duration) *Cleaner {
	if interval <= 0 {
		interval = 5 * time.Minute
	}

	return &Cleaner{
		repo:     repo,
		interval: interval,
	}
}

// Start begins the worker in a goroutine
func (c *Cleaner) Start(ctx context.Context) {
	go c.run(ctx)
}

func (c *Cleaner) run(ctx context.Context) {
	slog.Info("contest sweep worker started", "interval", c.interval)

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	// Run immediately on start
	c.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			slog.Info("contest sweep worker stopped")
			return
		case <-ticker.C:
			c.sweep(ctx)
		}
	}
}

func (c *Cleaner) sweep(ctx context.Context) {
	contests, err := c.repo.ListEndedUnprocessed(ctx, time.Now().UTC())
	if err != nil {
		slog.Error("contest sweep failed", "error", err)
		return
	}

	for _, contest := range contests {
		slog.Warn("contest ended but ratings not processed",
			"contest_id", contest.ID,
			"name", contest.Name,
			"ended_at", contest.EndDate,
		)
	}
}
