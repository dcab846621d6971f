// Package premium sweeps guilds whose premium is about to end.
package premium

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Expirer autoredeems or expires the premium of guilds ending before a time.
type Expirer interface {
	ProcessExpiring(ctx context.Context, before time.Time) (int, error)
}

// Worker runs premium expiry sweeps.
type Worker struct {
	expirer   Expirer
	lookahead time.Duration
	now       func() time.Time
	logger    *zap.Logger
}

// New creates a Worker. Autoredeem is attempted for guilds whose premium
// ends within lookahead.
func New(expirer Expirer, lookahead time.Duration, logger *zap.Logger) *Worker {
	return &Worker{
		expirer:   expirer,
		lookahead: lookahead,
		now:       time.Now,
		logger:    logger.Named("premium_worker"),
	}
}

// Run performs one sweep.
func (w *Worker) Run(ctx context.Context) error {
	before := w.now().Add(w.lookahead)

	processed, err := w.expirer.ProcessExpiring(ctx, before)
	if err != nil {
		return err
	}

	if processed > 0 {
		w.logger.Info("Processed expiring premium",
			zap.Int("guilds", processed),
			zap.Time("before", before))
	}

	return nil
}
