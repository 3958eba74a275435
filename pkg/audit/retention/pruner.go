package retention

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mercator-hq/pulse/pkg/audit"
)

// Config configures retention.
type Config struct {
	// MaxAge removes records older than this. 0 keeps them forever.
	MaxAge time.Duration

	// MaxRecords keeps at most this many newest records. 0 is unlimited.
	MaxRecords int64

	// Schedule is a cron expression for automatic pruning, e.g.
	// "@every 1h" or "0 3 * * *". Empty disables scheduling.
	Schedule string
}

// Pruner enforces a retention Config on a storage backend.
type Pruner struct {
	storage audit.Storage
	config  Config
	logger  *slog.Logger
	now     func() time.Time
}

// NewPruner creates a pruner.
func NewPruner(storage audit.Storage, cfg Config, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Pruner{
		storage: storage,
		config:  cfg,
		logger:  logger.With("component", "audit.retention"),
		now:     time.Now,
	}
}

// Prune removes expired records first, then trims to MaxRecords. It
// returns the total number removed.
func (p *Pruner) Prune(ctx context.Context) (int64, error) {
	var total int64

	if p.config.MaxAge > 0 {
		cutoff := p.now().Add(-p.config.MaxAge)
		n, err := p.storage.Delete(ctx, &audit.Query{EndTime: &cutoff})
		if err != nil {
			return total, fmt.Errorf("prune by age: %w", err)
		}
		total += n
	}

	if p.config.MaxRecords > 0 {
		n, err := p.storage.Trim(ctx, p.config.MaxRecords)
		if err != nil {
			return total, fmt.Errorf("prune by count: %w", err)
		}
		total += n
	}

	if total > 0 {
		p.logger.Info("audit records pruned",
			"deleted", total,
			"max_age", p.config.MaxAge,
			"max_records", p.config.MaxRecords,
		)
	}
	return total, nil
}
