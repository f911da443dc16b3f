package reconciliation

import (
	"context"
	"time"

	"packhouse-backend/internal/apperr"
	"packhouse-backend/internal/config"
	"packhouse-backend/internal/models"
	"packhouse-backend/internal/store"
	"packhouse-backend/internal/tenant"
)

// Scheduler runs reconciliation for every enterprise on a fixed interval.
type Scheduler struct {
	engine   *Engine
	interval time.Duration
}

func NewScheduler(engine *Engine, interval time.Duration) *Scheduler {
	return &Scheduler{engine: engine, interval: interval}
}

// Start launches the ticker goroutine; it stops when ctx is cancelled. The
// returned channel is closed once the goroutine has exited.
func (s *Scheduler) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		t := time.NewTicker(s.interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-t.C:
				s.RunAll(ctx)
			}
		}
	}()
	return done
}

// RunAll reconciles each enterprise in turn. Failures are logged and do not
// stop the remaining enterprises.
func (s *Scheduler) RunAll(ctx context.Context) {
	var enterprises []models.Enterprise
	err := s.engine.store.Tx(ctx, func(tx store.Tx) error {
		var err error
		enterprises, err = tx.ListEnterprises()
		return err
	})
	if err != nil {
		config.LogError(s.engine.log, "reconciliation", "RunAll", "list enterprises", nil, err)
		return
	}
	for _, ent := range enterprises {
		if ctx.Err() != nil {
			return
		}
		_, err := s.engine.Run(ctx, tenant.System(ent.ID))
		switch {
		case err == nil:
		case apperr.KindOf(err) == apperr.KindConflict:
			s.engine.log.WithField("enterprise_id", ent.ID).Info("reconciliation already running, skipped")
		default:
			config.LogError(s.engine.log, "reconciliation", "RunAll", "scheduled run", ent.ID, err)
		}
	}
}
