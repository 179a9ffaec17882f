package job

import (
	"context"
	"time"

	"github.com/Creedyfish/multitenant-backend/internal/rbac"
	"github.com/Creedyfish/multitenant-backend/internal/workflow"
	"github.com/Creedyfish/multitenant-backend/pkg/config"
	"github.com/Creedyfish/multitenant-backend/pkg/logger"
	"go.uber.org/zap"
)

// RetentionSweeper discards draft purchase requests older than the
// configured maximum age. It acts as the system principal so every
// discard flows through the same workflow and audit path as a
// user-triggered transition.
type RetentionSweeper struct {
	engine   *workflow.Engine
	maxAge   time.Duration
	interval time.Duration
}

// NewRetentionSweeper creates a sweeper from the retention config
func NewRetentionSweeper(engine *workflow.Engine, cfg *config.RetentionConfig) *RetentionSweeper {
	return &RetentionSweeper{
		engine:   engine,
		maxAge:   cfg.DraftMaxAge,
		interval: cfg.SweepInterval,
	}
}

// Run sweeps on the configured interval until the context is cancelled.
// One sweep runs immediately at startup.
func (s *RetentionSweeper) Run(ctx context.Context) {
	log := logger.FromContext(ctx)
	log.Info("Retention sweeper started",
		zap.Duration("draft_max_age", s.maxAge),
		zap.Duration("sweep_interval", s.interval))

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			log.Info("Retention sweeper stopped")
			return
		case <-ticker.C:
			s.Sweep(ctx)
		}
	}
}

// Sweep runs one pass. A failed discard of one draft does not stop the
// rest of the pass; a draft submitted between listing and discard simply
// loses the race and is skipped.
func (s *RetentionSweeper) Sweep(ctx context.Context) {
	log := logger.FromContext(ctx)
	cutoff := time.Now().UTC().Add(-s.maxAge)

	drafts, err := s.engine.StaleDrafts(ctx, cutoff)
	if err != nil {
		log.Error("Retention sweep failed to list stale drafts", zap.Error(err))
		return
	}
	if len(drafts) == 0 {
		return
	}

	system := rbac.SystemPrincipal()
	discarded := 0
	for _, draft := range drafts {
		if _, err := s.engine.Discard(ctx, draft.OrgID, system, draft.ID); err != nil {
			log.Warn("Retention sweep skipped draft",
				zap.Uint("request_id", draft.ID),
				zap.Uint("org_id", draft.OrgID),
				zap.Error(err))
			continue
		}
		discarded++
	}

	log.Info("Retention sweep completed",
		zap.Time("cutoff", cutoff),
		zap.Int("stale", len(drafts)),
		zap.Int("discarded", discarded))
}
