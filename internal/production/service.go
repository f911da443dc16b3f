// Package production covers batch intake, splitting batches into lots and
// the batch lifecycle, keeping each batch's mass balance current.
package production

import (
	"context"
	"fmt"
	"time"

	"packhouse-backend/internal/apperr"
	"packhouse-backend/internal/audit"
	"packhouse-backend/internal/lifecycle"
	"packhouse-backend/internal/massbalance"
	"packhouse-backend/internal/models"
	"packhouse-backend/internal/store"
	"packhouse-backend/internal/tenant"
	"packhouse-backend/internal/units"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const autoWasteReason = "unaccounted processing loss"

type CreateBatchInput struct {
	GrowerName    string           `json:"grower_name" validate:"max=150"`
	FruitType     string           `json:"fruit_type" validate:"required,max=100"`
	Variety       string           `json:"variety" validate:"max=100"`
	GrossWeightKg *float64         `json:"gross_weight_kg" validate:"omitempty,gte=0"`
	TareWeightKg  *float64         `json:"tare_weight_kg" validate:"omitempty,gte=0"`
	BinCount      *int             `json:"bin_count" validate:"omitempty,gte=0"`
	BinTypeID     *uint            `json:"bin_type_id"`
	PricePerKg    *decimal.Decimal `json:"price_per_kg"`
	ReceivedAt    *time.Time       `json:"received_at"`
}

type LotInput struct {
	Grade       string   `json:"grade" validate:"required,max=50"`
	Size        *string  `json:"size" validate:"omitempty,max=30"`
	BoxSizeID   *uint    `json:"box_size_id"`
	BinTypeID   *uint    `json:"bin_type_id"`
	BinCount    *int     `json:"bin_count" validate:"omitempty,gte=0"`
	CartonCount *int     `json:"carton_count" validate:"omitempty,gte=0"`
	WeightKg    *float64 `json:"weight_kg" validate:"omitempty,gte=0"`
	WasteKg     *float64 `json:"waste_kg" validate:"omitempty,gte=0"`
	WasteReason string   `json:"waste_reason" validate:"max=255"`
	Notes       string   `json:"notes" validate:"max=500"`
}

// UpdateLotInput is a partial update; nil fields are left as they are.
type UpdateLotInput struct {
	Grade       *string           `json:"grade" validate:"omitempty,min=1,max=50"`
	Size        *string           `json:"size" validate:"omitempty,max=30"`
	BoxSizeID   *uint             `json:"box_size_id"`
	BinTypeID   *uint             `json:"bin_type_id"`
	BinCount    *int              `json:"bin_count" validate:"omitempty,gte=0"`
	CartonCount *int              `json:"carton_count" validate:"omitempty,gte=0"`
	WeightKg    *float64          `json:"weight_kg" validate:"omitempty,gte=0"`
	WasteKg     *float64          `json:"waste_kg" validate:"omitempty,gte=0"`
	WasteReason *string           `json:"waste_reason" validate:"omitempty,max=255"`
	Notes       *string           `json:"notes" validate:"omitempty,max=500"`
	Status      *models.LotStatus `json:"status" validate:"omitempty,oneof=packed returned"`
}

type WasteInput struct {
	WasteKg     float64 `json:"waste_kg" validate:"gte=0"`
	WasteReason string  `json:"waste_reason" validate:"max=255"`
}

// BatchResult is a batch with its lots, balance and the notices raised by
// the call that produced it.
type BatchResult struct {
	Batch              models.Batch        `json:"batch"`
	Lots               []models.Lot        `json:"lots"`
	Balance            massbalance.Balance `json:"balance"`
	UnallocatedCartons int                 `json:"unallocated_cartons"`
	Notices            []apperr.Notice     `json:"notices"`
}

type Service struct {
	store store.Store
	log   *logrus.Logger
	now   func() time.Time
}

func NewService(st store.Store, log *logrus.Logger) *Service {
	return &Service{store: st, log: log, now: time.Now}
}

func result(b models.Batch, lots []models.Lot, notices []apperr.Notice) *BatchResult {
	if notices == nil {
		notices = []apperr.Notice{}
	}
	if lots == nil {
		lots = []models.Lot{}
	}
	return &BatchResult{
		Batch:              b,
		Lots:               lots,
		Balance:            massbalance.Verify(b.NetWeightKg, lots, b.WasteKg),
		UnallocatedCartons: lifecycle.UnallocatedCartons(lots),
		Notices:            notices,
	}
}

func (s *Service) CreateBatch(ctx context.Context, scope tenant.Scope, in CreateBatchInput) (*BatchResult, error) {
	b := models.Batch{
		EnterpriseID:  scope.EnterpriseID,
		GrowerName:    in.GrowerName,
		FruitType:     in.FruitType,
		Variety:       in.Variety,
		GrossWeightKg: in.GrossWeightKg,
		BinCount:      in.BinCount,
		BinTypeID:     in.BinTypeID,
		PricePerKg:    in.PricePerKg,
		Status:        models.BatchReceived,
		ReceivedAt:    s.now(),
	}
	if in.ReceivedAt != nil {
		b.ReceivedAt = *in.ReceivedAt
	}
	if in.PricePerKg != nil && in.PricePerKg.IsNegative() {
		return nil, apperr.Validation("invalid_price", "price_per_kg must not be negative", "price_per_kg")
	}

	err := s.store.Tx(ctx, func(tx store.Tx) error {
		switch {
		case in.TareWeightKg != nil:
			b.TareWeightKg = *in.TareWeightKg
		case in.BinTypeID != nil && in.BinCount != nil:
			// no tare weighed: assume the empty weight of the delivered bins
			bt, err := tx.GetBinType(scope.EnterpriseID, *in.BinTypeID)
			if err != nil {
				return err
			}
			b.TareWeightKg = float64(*in.BinCount) * bt.TareWeightKg
		}
		b.RecomputeNet()

		if err := tx.CreateBatch(&b); err != nil {
			return err
		}
		return audit.WriteLog(tx, scope, audit.LogOptions{
			EntityType:  "batch",
			EntityID:    b.ID,
			Action:      models.AuditActionCreate,
			ToStatus:    string(b.Status),
			Description: fmt.Sprintf("Batch received: %s %s", b.FruitType, b.Variety),
			After:       b,
		})
	})
	if err != nil {
		return nil, err
	}

	var notices []apperr.Notice
	if b.TareExceedsGross() {
		notices = append(notices, apperr.Notice{
			Code:    apperr.NoticeTareExceedsGross,
			Message: fmt.Sprintf("tare %.3f kg exceeds gross %.3f kg", b.TareWeightKg, *b.GrossWeightKg),
		})
	}
	return result(b, nil, notices), nil
}

func (s *Service) GetBatch(ctx context.Context, scope tenant.Scope, batchID uint) (*BatchResult, error) {
	var out *BatchResult
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		b, err := tx.GetBatch(scope.EnterpriseID, batchID)
		if err != nil {
			return err
		}
		lots, err := tx.ListLotsByBatch(scope.EnterpriseID, b.ID)
		if err != nil {
			return err
		}
		out = result(*b, lots, nil)
		return nil
	})
	return out, err
}

// lotWeight derives a lot's weight from its box or bin selection. Cartons win
// over bins; a box lot with no cartons weighs 0 kg. Without either selector
// the weight is unknown.
func lotWeight(tx store.Tx, enterpriseID uint, l *models.Lot) error {
	switch {
	case l.BoxSizeID != nil && l.CartonCount > 0:
		box, err := tx.GetBoxSize(enterpriseID, *l.BoxSizeID)
		if err != nil {
			return err
		}
		w, err := units.CartonsToWeight(l.CartonCount, units.BoxSpecOf(*box))
		if err != nil {
			return err
		}
		l.WeightKg = &w
	case l.BinTypeID != nil && l.BinCount != nil:
		bt, err := tx.GetBinType(enterpriseID, *l.BinTypeID)
		if err != nil {
			return err
		}
		w, err := units.BinsToNetWeight(*l.BinCount, units.BinSpecOf(*bt))
		if err != nil {
			return err
		}
		l.WeightKg = &w
	case l.BoxSizeID != nil:
		zero := 0.0
		l.WeightKg = &zero
	default:
		l.WeightKg = nil
	}
	return nil
}

// refreshWaste recomputes the batch's auto-waste from its lots and stores it
// unless the weight is unknown or the lots are overweight.
func refreshWaste(tx store.Tx, b *models.Batch, lots []models.Lot) ([]apperr.Notice, error) {
	aw := massbalance.ComputeAutoWaste(b.NetWeightKg, lots)
	if !aw.Deferred && !aw.Overweight {
		b.WasteKg = aw.WasteKg
		if b.WasteReason == "" {
			b.WasteReason = autoWasteReason
		}
	}
	if err := tx.SaveBatch(b); err != nil {
		return nil, err
	}
	return aw.Notices(), nil
}

// CreateLotsFromBatch splits a batch into lots and refreshes its auto-waste.
func (s *Service) CreateLotsFromBatch(ctx context.Context, scope tenant.Scope, batchID uint, in []LotInput) (*BatchResult, []models.Lot, error) {
	if len(in) == 0 {
		return nil, nil, apperr.Validation("no_lots", "at least one lot is required", "lots")
	}
	var (
		out     *BatchResult
		created []models.Lot
	)
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		created = nil
		b, err := tx.GetBatch(scope.EnterpriseID, batchID)
		if err != nil {
			return err
		}
		if !lifecycle.AcceptsLots(b.Status) {
			return apperr.Precondition("batch_not_open", fmt.Sprintf("batch %d is %s and takes no more lots", b.ID, b.Status))
		}
		before := *b

		for i, li := range in {
			field := fmt.Sprintf("lots[%d]", i)
			if li.BoxSizeID == nil && li.BinTypeID == nil {
				return apperr.Validation("missing_selector", "a lot needs a box size or a bin type",
					field+".box_size_id", field+".bin_type_id")
			}
			if li.CartonCount != nil && *li.CartonCount > 0 && li.BoxSizeID == nil {
				return apperr.Validation("missing_selector", "cartons need a box size", field+".box_size_id")
			}
			lot := models.Lot{
				EnterpriseID: scope.EnterpriseID,
				BatchID:      b.ID,
				Grade:        li.Grade,
				Size:         li.Size,
				BoxSizeID:    li.BoxSizeID,
				BinTypeID:    li.BinTypeID,
				BinCount:     li.BinCount,
				WasteReason:  li.WasteReason,
				Notes:        li.Notes,
				Status:       models.LotPacked,
			}
			if li.CartonCount != nil {
				lot.CartonCount = *li.CartonCount
			}
			if li.WasteKg != nil {
				lot.WasteKg = *li.WasteKg
			}
			if li.WeightKg != nil {
				w := *li.WeightKg
				lot.WeightKg = &w
			} else if err := lotWeight(tx, scope.EnterpriseID, &lot); err != nil {
				return err
			}
			if err := tx.CreateLot(&lot); err != nil {
				return err
			}
			created = append(created, lot)
		}

		if b.Status == models.BatchReceived || b.Status == models.BatchGrading {
			res, err := lifecycle.Apply(b.Status, lifecycle.EventStartPacking, lifecycle.Facts{})
			if err != nil {
				return err
			}
			b.Status = res.To
		}

		lots, err := tx.ListLotsByBatch(scope.EnterpriseID, b.ID)
		if err != nil {
			return err
		}
		notices, err := refreshWaste(tx, b, lots)
		if err != nil {
			return err
		}
		if err := audit.WriteLog(tx, scope, audit.LogOptions{
			EntityType:  "batch",
			EntityID:    b.ID,
			Action:      models.AuditActionUpdate,
			FromStatus:  string(before.Status),
			ToStatus:    string(b.Status),
			Description: fmt.Sprintf("%d lots created, waste %.3f kg", len(created), b.WasteKg),
			Before:      before,
			After:       created,
		}); err != nil {
			return err
		}
		out = result(*b, lots, notices)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return out, created, nil
}

// UpdateLot applies a partial update and refreshes the owning batch's waste.
func (s *Service) UpdateLot(ctx context.Context, scope tenant.Scope, lotID uint, in UpdateLotInput) (*models.Lot, *BatchResult, error) {
	var (
		lot *models.Lot
		out *BatchResult
	)
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		var err error
		lot, err = tx.GetLot(scope.EnterpriseID, lotID)
		if err != nil {
			return err
		}
		b, err := tx.GetBatch(scope.EnterpriseID, lot.BatchID)
		if err != nil {
			return err
		}
		if b.Status == models.BatchCompleted || b.Status == models.BatchRejected {
			return apperr.Precondition("batch_locked", fmt.Sprintf("batch %d is %s, reopen it to edit lots", b.ID, b.Status))
		}
		before := *lot

		if lot.PalletizedBoxes > 0 {
			if in.BoxSizeID != nil && !sameUint(lot.BoxSizeID, in.BoxSizeID) {
				return apperr.Precondition("lot_palletized", "box size cannot change once cartons are on pallets")
			}
			if in.Size != nil && lot.Size != nil && *lot.Size != *in.Size {
				return apperr.Precondition("lot_palletized", "size cannot change once cartons are on pallets")
			}
			if in.Status != nil && *in.Status == models.LotReturned {
				return apperr.Precondition("lot_palletized", "a lot with cartons on pallets cannot be returned")
			}
		}
		if in.CartonCount != nil && *in.CartonCount < lot.PalletizedBoxes {
			return apperr.Validation("carton_count_below_palletized",
				fmt.Sprintf("carton_count %d is below the %d cartons already palletized", *in.CartonCount, lot.PalletizedBoxes),
				"carton_count")
		}

		reweigh := false
		if in.Grade != nil {
			lot.Grade = *in.Grade
		}
		if in.Size != nil {
			lot.Size = in.Size
		}
		if in.BoxSizeID != nil {
			lot.BoxSizeID, reweigh = in.BoxSizeID, true
		}
		if in.BinTypeID != nil {
			lot.BinTypeID, reweigh = in.BinTypeID, true
		}
		if in.BinCount != nil {
			lot.BinCount, reweigh = in.BinCount, true
		}
		if in.CartonCount != nil {
			lot.CartonCount, reweigh = *in.CartonCount, true
		}
		if in.WasteKg != nil {
			lot.WasteKg = *in.WasteKg
		}
		if in.WasteReason != nil {
			lot.WasteReason = *in.WasteReason
		}
		if in.Notes != nil {
			lot.Notes = *in.Notes
		}
		if in.Status != nil {
			lot.Status = *in.Status
		}
		if lot.CartonCount > 0 && lot.BoxSizeID == nil {
			return apperr.Validation("missing_selector", "cartons need a box size", "box_size_id")
		}
		// A closed batch has every carton on a pallet; keep it that way.
		if b.Status == models.BatchComplete && lot.Status != models.LotReturned && lot.AvailableBoxes() > 0 {
			return apperr.Precondition("batch_closed",
				fmt.Sprintf("batch %d is closed, lot %d would leave %d cartons unallocated", b.ID, lot.ID, lot.AvailableBoxes()))
		}

		switch {
		case in.WeightKg != nil:
			w := *in.WeightKg
			lot.WeightKg = &w
		case reweigh:
			if err := lotWeight(tx, scope.EnterpriseID, lot); err != nil {
				return err
			}
		}

		if err := tx.SaveLot(lot); err != nil {
			return err
		}
		lots, err := tx.ListLotsByBatch(scope.EnterpriseID, b.ID)
		if err != nil {
			return err
		}
		notices, err := refreshWaste(tx, b, lots)
		if err != nil {
			return err
		}
		if err := audit.WriteLog(tx, scope, audit.LogOptions{
			EntityType:  "lot",
			EntityID:    lot.ID,
			Action:      models.AuditActionUpdate,
			Description: "Lot updated",
			Before:      before,
			After:       lot,
		}); err != nil {
			return err
		}
		out = result(*b, lots, notices)
		return nil
	})
	if err != nil {
		return nil, nil, err
	}
	return lot, out, nil
}

func sameUint(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// SetWaste records the batch waste by hand, overriding the auto-waste figure.
func (s *Service) SetWaste(ctx context.Context, scope tenant.Scope, batchID uint, in WasteInput) (*BatchResult, error) {
	var out *BatchResult
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		b, err := tx.GetBatch(scope.EnterpriseID, batchID)
		if err != nil {
			return err
		}
		if b.Status == models.BatchCompleted || b.Status == models.BatchRejected {
			return apperr.Precondition("batch_locked", fmt.Sprintf("batch %d is %s", b.ID, b.Status))
		}
		before := *b
		b.WasteKg = in.WasteKg
		b.WasteReason = in.WasteReason
		if err := tx.SaveBatch(b); err != nil {
			return err
		}
		lots, err := tx.ListLotsByBatch(scope.EnterpriseID, b.ID)
		if err != nil {
			return err
		}
		if err := audit.WriteLog(tx, scope, audit.LogOptions{
			EntityType:  "batch",
			EntityID:    b.ID,
			Action:      models.AuditActionUpdate,
			Description: fmt.Sprintf("Waste set to %.3f kg", b.WasteKg),
			Before:      before,
			After:       b,
		}); err != nil {
			return err
		}
		out = result(*b, lots, nil)
		return nil
	})
	return out, err
}

// Transition moves a batch through its lifecycle.
func (s *Service) Transition(ctx context.Context, scope tenant.Scope, batchID uint, ev lifecycle.Event) (*BatchResult, error) {
	var out *BatchResult
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		b, err := tx.GetBatch(scope.EnterpriseID, batchID)
		if err != nil {
			return err
		}
		lots, err := tx.ListLotsByBatch(scope.EnterpriseID, b.ID)
		if err != nil {
			return err
		}
		res, err := lifecycle.Apply(b.Status, ev, lifecycle.Facts{
			UnallocatedCartons: lifecycle.UnallocatedCartons(lots),
			Balance:            massbalance.Verify(b.NetWeightKg, lots, b.WasteKg),
		})
		if err != nil {
			return err
		}
		b.Status = res.To
		if err := tx.SaveBatch(b); err != nil {
			return err
		}
		// finalize notices stay on record in the audit trail; reopen leaves them
		if err := audit.WriteLog(tx, scope, audit.LogOptions{
			EntityType:  "batch",
			EntityID:    b.ID,
			Action:      models.AuditActionTransition,
			FromStatus:  string(res.From),
			ToStatus:    string(res.To),
			Description: fmt.Sprintf("Batch %s", ev),
			After:       map[string]any{"notices": res.Notices},
		}); err != nil {
			return err
		}
		out = result(*b, lots, res.Notices)
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"enterprise_id": scope.EnterpriseID,
		"batch_id":      batchID,
		"event":         ev,
		"status":        out.Batch.Status,
		"notices":       len(out.Notices),
	}).Info("batch transition")
	return out, nil
}
