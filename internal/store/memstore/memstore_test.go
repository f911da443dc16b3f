package memstore

import (
	"context"
	"errors"
	"testing"

	"packhouse-backend/internal/apperr"
	"packhouse-backend/internal/models"
	"packhouse-backend/internal/store"
)

func TestTxRollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()

	boom := errors.New("boom")
	err := s.Tx(ctx, func(tx store.Tx) error {
		if err := tx.CreateBatch(&models.Batch{EnterpriseID: 1, FruitType: "apple", Status: models.BatchReceived}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("Tx error = %v, want boom", err)
	}

	_ = s.Tx(ctx, func(tx store.Tx) error {
		batches, _ := tx.ListBatches(1)
		if len(batches) != 0 {
			t.Fatalf("expected rollback, found %d batches", len(batches))
		}
		return nil
	})
}

func TestAddPalletizedBoxesDetectsStaleCounter(t *testing.T) {
	s := New()
	ctx := context.Background()

	var lotID uint
	_ = s.Tx(ctx, func(tx store.Tx) error {
		lot := &models.Lot{EnterpriseID: 1, BatchID: 9, Grade: "A", CartonCount: 100, Status: models.LotPacked}
		if err := tx.CreateLot(lot); err != nil {
			return err
		}
		lotID = lot.ID
		return tx.AddPalletizedBoxes(1, lotID, 0, 40)
	})

	err := s.Tx(ctx, func(tx store.Tx) error {
		return tx.AddPalletizedBoxes(1, lotID, 0, 10)
	})
	if apperr.KindOf(err) != apperr.KindConflict {
		t.Fatalf("expected conflict, got %v", err)
	}

	_ = s.Tx(ctx, func(tx store.Tx) error {
		lot, err := tx.GetLot(1, lotID)
		if err != nil {
			t.Fatal(err)
		}
		if lot.PalletizedBoxes != 40 {
			t.Fatalf("palletized = %d, want 40", lot.PalletizedBoxes)
		}
		return nil
	})
}

func TestLookupsAreTenantScoped(t *testing.T) {
	s := New()
	ctx := context.Background()

	var id uint
	_ = s.Tx(ctx, func(tx store.Tx) error {
		b := &models.Batch{EnterpriseID: 1, FruitType: "pear", Status: models.BatchReceived}
		err := tx.CreateBatch(b)
		id = b.ID
		return err
	})

	err := s.Tx(ctx, func(tx store.Tx) error {
		_, err := tx.GetBatch(2, id)
		return err
	})
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("other tenant lookup: got %v, want not found", err)
	}
}

func TestFindActiveAlertSkipsClosedAlerts(t *testing.T) {
	s := New()
	ctx := context.Background()

	_ = s.Tx(ctx, func(tx store.Tx) error {
		return tx.CreateAlert(&models.ReconciliationAlert{
			EnterpriseID: 1, AlertType: models.AlertLotVsBatch, SubjectType: "batch", SubjectID: 5,
			Status: models.AlertResolved,
		})
	})

	err := s.Tx(ctx, func(tx store.Tx) error {
		_, err := tx.FindActiveAlert(1, models.AlertLotVsBatch, "batch", 5)
		return err
	})
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("resolved alert must not be returned as active, got %v", err)
	}
}
