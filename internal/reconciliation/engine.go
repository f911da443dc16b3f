// Package reconciliation cross-checks independently recorded operational
// facts and tracks the resulting alerts through their review lifecycle.
package reconciliation

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"packhouse-backend/internal/apperr"
	"packhouse-backend/internal/config"
	"packhouse-backend/internal/models"
	"packhouse-backend/internal/store"
	"packhouse-backend/internal/tenant"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

// RunLockTTL bounds how long a crashed run can block the next one.
const RunLockTTL = 5 * time.Minute

type Settings struct {
	Bands                  map[models.AlertType]Bands
	Workers                int
	ColdStorageMaxGapHours float64
}

// SettingsFrom builds engine settings from the service configuration.
func SettingsFrom(cfg *config.Config) (Settings, error) {
	bands, err := BandsFrom(cfg.ReconBands)
	if err != nil {
		return Settings{}, err
	}
	if cfg.ColdStorageMaxGapHours <= 0 {
		return Settings{}, fmt.Errorf("COLD_STORAGE_MAX_GAP_HOURS must be positive")
	}
	return Settings{Bands: bands, Workers: cfg.ReconWorkers, ColdStorageMaxGapHours: cfg.ColdStorageMaxGapHours}, nil
}

type RunSummary struct {
	RunID      string    `json:"run_id"`
	Findings   int       `json:"findings"`
	Created    int       `json:"created"`
	Updated    int       `json:"updated"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

type Engine struct {
	store    store.Store
	locker   Locker
	settings Settings
	log      *logrus.Logger
	now      func() time.Time
}

func NewEngine(st store.Store, locker Locker, settings Settings, log *logrus.Logger) *Engine {
	if settings.Workers < 1 {
		settings.Workers = 1
	}
	if settings.Bands == nil {
		settings.Bands = DefaultBands()
	}
	return &Engine{store: st, locker: locker, settings: settings, log: log, now: time.Now}
}

func (e *Engine) snapshot(ctx context.Context, enterpriseID uint) (Snapshot, error) {
	s := Snapshot{Now: e.now()}
	err := e.store.Tx(ctx, func(tx store.Tx) error {
		var err error
		if s.Batches, err = tx.ListBatches(enterpriseID); err != nil {
			return err
		}
		if s.Lots, err = tx.ListLots(enterpriseID); err != nil {
			return err
		}
		if s.Pallets, err = tx.ListPallets(enterpriseID); err != nil {
			return err
		}
		if s.Containers, err = tx.ListContainers(enterpriseID); err != nil {
			return err
		}
		if s.Invoices, err = tx.ListExportInvoices(enterpriseID); err != nil {
			return err
		}
		if s.Payments, err = tx.ListGrowerPayments(enterpriseID); err != nil {
			return err
		}
		s.Labour, err = tx.ListLabourEntries(enterpriseID)
		return err
	})
	return s, err
}

// Run executes every check for the scope's enterprise and upserts alerts.
// A second run for the same enterprise while one is active is a conflict.
func (e *Engine) Run(ctx context.Context, scope tenant.Scope) (*RunSummary, error) {
	release, err := e.locker.Acquire(ctx, fmt.Sprintf("recon:%d", scope.EnterpriseID))
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			config.LogError(e.log, "reconciliation", "Run", "release run lock", scope.EnterpriseID, err)
		}
	}()

	sum := &RunSummary{RunID: uuid.NewString(), StartedAt: e.now()}
	snap, err := e.snapshot(ctx, scope.EnterpriseID)
	if err != nil {
		return nil, fmt.Errorf("load reconciliation snapshot: %w", err)
	}
	findings := Findings(snap, checkOptions{ColdStorageMaxGapHours: e.settings.ColdStorageMaxGapHours})
	sum.Findings = len(findings)

	var created, updated atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.settings.Workers)
	for _, f := range findings {
		g.Go(func() error {
			outcome, err := e.upsert(gctx, scope.EnterpriseID, sum.RunID, f)
			if err != nil {
				return fmt.Errorf("upsert %s alert for %s %d: %w", f.Type, f.SubjectType, f.SubjectID, err)
			}
			switch outcome {
			case upsertCreated:
				created.Add(1)
			case upsertUpdated:
				updated.Add(1)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		config.LogError(e.log, "reconciliation", "Run", "upsert alerts", sum.RunID, err)
		return nil, err
	}

	sum.Created = int(created.Load())
	sum.Updated = int(updated.Load())
	sum.FinishedAt = e.now()
	e.log.WithFields(logrus.Fields{
		"enterprise_id": scope.EnterpriseID,
		"run_id":        sum.RunID,
		"findings":      sum.Findings,
		"created":       sum.Created,
		"updated":       sum.Updated,
	}).Info("reconciliation run finished")
	return sum, nil
}

type upsertOutcome int

const (
	upsertSkipped upsertOutcome = iota
	upsertCreated
	upsertUpdated
)

// upsert refreshes the active alert for the finding's subject in place, or
// opens a new one. Resolved and dismissed alerts are never touched. Active
// alerts whose variance fell below the bands are left for a user to close.
func (e *Engine) upsert(ctx context.Context, enterpriseID uint, runID string, f Finding) (upsertOutcome, error) {
	variance := f.Variance()
	sev, pct, ok := e.settings.Bands[f.Type].Classify(f.Expected, variance)
	if !ok {
		return upsertSkipped, nil
	}

	outcome := upsertSkipped
	err := e.store.Tx(ctx, func(tx store.Tx) error {
		now := e.now()
		existing, err := tx.FindActiveAlert(enterpriseID, f.Type, f.SubjectType, f.SubjectID)
		switch {
		case err == nil:
			existing.Severity = sev
			existing.Expected = f.Expected
			existing.Actual = f.Actual
			existing.Variance = variance
			existing.VariancePct = pct
			existing.Title = f.Title
			existing.RunID = runID
			existing.LastSeenAt = now
			outcome = upsertUpdated
			return tx.SaveAlert(existing)
		case apperr.KindOf(err) == apperr.KindNotFound:
			outcome = upsertCreated
			return tx.CreateAlert(&models.ReconciliationAlert{
				EnterpriseID: enterpriseID,
				AlertType:    f.Type,
				SubjectType:  f.SubjectType,
				SubjectID:    f.SubjectID,
				Severity:     sev,
				Expected:     f.Expected,
				Actual:       f.Actual,
				Variance:     variance,
				VariancePct:  pct,
				Unit:         f.Unit,
				Status:       models.AlertOpen,
				Title:        f.Title,
				RunID:        runID,
				LastSeenAt:   now,
			})
		default:
			return err
		}
	})
	if err != nil {
		return upsertSkipped, err
	}
	return outcome, nil
}
