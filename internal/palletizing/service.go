package palletizing

import (
	"context"
	"fmt"
	"time"

	"packhouse-backend/internal/apperr"
	"packhouse-backend/internal/audit"
	"packhouse-backend/internal/models"
	"packhouse-backend/internal/store"
	"packhouse-backend/internal/tenant"

	"github.com/sirupsen/logrus"
)

type Assignment struct {
	LotID    uint    `json:"lot_id" validate:"required"`
	BoxCount int     `json:"box_count"`
	Size     *string `json:"size" validate:"omitempty,max=30"`
}

type CreateFromLotsInput struct {
	PalletTypeName     string       `json:"pallet_type_name" validate:"required"`
	CapacityBoxes      *int         `json:"capacity_boxes"`
	LotAssignments     []Assignment `json:"lot_assignments" validate:"dive"`
	Size               *string      `json:"size" validate:"omitempty,max=30"`
	AllowMixedSizes    bool         `json:"allow_mixed_sizes"`
	AllowMixedBoxTypes bool         `json:"allow_mixed_box_types"`
}

type AllocateInput struct {
	LotAssignments     []Assignment `json:"lot_assignments" validate:"dive"`
	AllowMixedSizes    bool         `json:"allow_mixed_sizes"`
	AllowMixedBoxTypes bool         `json:"allow_mixed_box_types"`
}

// PalletView is a pallet with the allocations that filled it.
type PalletView struct {
	models.Pallet
	Allocations []models.PalletAllocation `json:"allocations"`
}

type Service struct {
	store store.Store
	log   *logrus.Logger
	now   func() time.Time
}

func NewService(st store.Store, log *logrus.Logger) *Service {
	return &Service{store: st, log: log, now: time.Now}
}

// ResolveCapacity looks up a pallet type and returns its capacity for the box size.
func (s *Service) ResolveCapacity(ctx context.Context, scope tenant.Scope, palletTypeID uint, boxSizeID *uint) (int, error) {
	var capacity int
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		pt, err := tx.GetPalletType(scope.EnterpriseID, palletTypeID)
		if err != nil {
			return err
		}
		capacity = ResolveCapacity(*pt, boxSizeID)
		return nil
	})
	return capacity, err
}

// draft is the set of lots a request draws from, loaded inside one transaction.
type draft struct {
	lots     map[uint]*models.Lot
	resized  []uint
	pool     []Candidate
	requests []Request
}

func loadDraft(tx store.Tx, enterpriseID uint, as []Assignment) (*draft, error) {
	d := &draft{lots: make(map[uint]*models.Lot, len(as))}
	for i, a := range as {
		d.requests = append(d.requests, Request{LotID: a.LotID, Quantity: a.BoxCount})
		if _, ok := d.lots[a.LotID]; ok {
			continue
		}
		lot, err := tx.GetLot(enterpriseID, a.LotID)
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				// left out of the pool so the planner reports unknown_lot
				continue
			}
			return nil, err
		}
		if a.Size != nil {
			switch {
			case lot.Size == nil:
				size := *a.Size
				lot.Size = &size
				d.resized = append(d.resized, lot.ID)
			case *lot.Size != *a.Size:
				return nil, apperr.Validation("size_mismatch",
					fmt.Sprintf("lot %d is size %s, assignment says %s", lot.ID, *lot.Size, *a.Size),
					fmt.Sprintf("lot_assignments[%d].size", i))
			}
		}
		d.lots[lot.ID] = lot
		d.pool = append(d.pool, CandidateOf(*lot))
	}
	return d, nil
}

// sharedBoxSize returns the box size common to every drawn lot, or nil.
func (d *draft) sharedBoxSize() *uint {
	var shared *uint
	for _, r := range d.requests {
		lot, ok := d.lots[r.LotID]
		if !ok || r.Quantity <= 0 {
			continue
		}
		if lot.BoxSizeID == nil {
			return nil
		}
		if shared == nil {
			shared = lot.BoxSizeID
		} else if *shared != *lot.BoxSizeID {
			return nil
		}
	}
	return shared
}

// apply persists size overrides and moves each lot's palletized counter by
// the cartons drawn from it, keyed on the value read at the start.
func (d *draft) apply(tx store.Tx, enterpriseID uint, loads []Load) error {
	for _, id := range d.resized {
		if err := tx.SaveLot(d.lots[id]); err != nil {
			return err
		}
	}
	drawn := make(map[uint]int)
	var order []uint
	for _, l := range loads {
		for _, dr := range l.Draws {
			if _, ok := drawn[dr.LotID]; !ok {
				order = append(order, dr.LotID)
			}
			drawn[dr.LotID] += dr.Quantity
		}
	}
	for _, id := range order {
		lot := d.lots[id]
		if err := tx.AddPalletizedBoxes(enterpriseID, id, lot.PalletizedBoxes, drawn[id]); err != nil {
			return err
		}
		lot.PalletizedBoxes += drawn[id]
	}
	return nil
}

func recordDraws(tx store.Tx, enterpriseID, palletID uint, draws []Draw) ([]models.PalletAllocation, error) {
	out := make([]models.PalletAllocation, 0, len(draws))
	for _, dr := range draws {
		a := models.PalletAllocation{
			EnterpriseID: enterpriseID,
			PalletID:     palletID,
			LotID:        dr.LotID,
			BoxCount:     dr.Quantity,
		}
		if err := tx.CreateAllocation(&a); err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

// CreateFromLots builds as many new pallets as the requested cartons need.
func (s *Service) CreateFromLots(ctx context.Context, scope tenant.Scope, in CreateFromLotsInput) ([]PalletView, error) {
	var out []PalletView
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		out = nil

		pt, err := tx.FindPalletTypeByName(scope.EnterpriseID, in.PalletTypeName)
		if err != nil {
			return err
		}
		d, err := loadDraft(tx, scope.EnterpriseID, in.LotAssignments)
		if err != nil {
			return err
		}

		capacity := ResolveCapacity(*pt, d.sharedBoxSize())
		if in.CapacityBoxes != nil {
			if *in.CapacityBoxes < 1 {
				return apperr.Validation("invalid_capacity", "capacity_boxes must be positive", "capacity_boxes")
			}
			if *in.CapacityBoxes > capacity {
				return apperr.Validation("capacity_exceeds_pallet_type",
					fmt.Sprintf("capacity_boxes %d exceeds %s capacity %d", *in.CapacityBoxes, pt.Name, capacity), "capacity_boxes")
			}
			capacity = *in.CapacityBoxes
		}

		loads, err := PlanNew(d.pool, d.requests, capacity, FromPtr(in.Size), Options{
			AllowMixedSizes:    in.AllowMixedSizes,
			AllowMixedBoxTypes: in.AllowMixedBoxTypes,
		})
		if err != nil {
			return err
		}
		if err := d.apply(tx, scope.EnterpriseID, loads); err != nil {
			return err
		}

		for _, l := range loads {
			p := models.Pallet{
				EnterpriseID:  scope.EnterpriseID,
				PalletTypeID:  pt.ID,
				CapacityBoxes: capacity,
				CurrentBoxes:  l.Boxes,
				Size:          l.Size.Ptr(),
				BoxSizeID:     l.BoxSize.Ptr(),
				Status:        models.PalletOpen,
			}
			if err := tx.CreatePallet(&p); err != nil {
				return err
			}
			allocs, err := recordDraws(tx, scope.EnterpriseID, p.ID, l.Draws)
			if err != nil {
				return err
			}
			view := PalletView{Pallet: p, Allocations: allocs}
			if err := audit.WriteLog(tx, scope, audit.LogOptions{
				EntityType:  "pallet",
				EntityID:    p.ID,
				Action:      models.AuditActionCreate,
				Description: fmt.Sprintf("Pallet created with %d/%d cartons", p.CurrentBoxes, p.CapacityBoxes),
				After:       view,
			}); err != nil {
				return err
			}
			out = append(out, view)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.log.WithFields(logrus.Fields{
		"enterprise_id": scope.EnterpriseID,
		"pallet_type":   in.PalletTypeName,
		"pallets":       len(out),
	}).Info("pallets created from lots")
	return out, nil
}

// AllocateToPallet adds cartons to an open pallet without overflowing it.
func (s *Service) AllocateToPallet(ctx context.Context, scope tenant.Scope, palletID uint, in AllocateInput) (*PalletView, error) {
	var out PalletView
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		p, err := tx.GetPallet(scope.EnterpriseID, palletID)
		if err != nil {
			return err
		}
		if p.Status != models.PalletOpen {
			return apperr.Precondition("pallet_sealed", fmt.Sprintf("pallet %d is %s", p.ID, p.Status))
		}
		before := *p

		d, err := loadDraft(tx, scope.EnterpriseID, in.LotAssignments)
		if err != nil {
			return err
		}
		load, err := PlanExisting(Target{
			Capacity: p.CapacityBoxes,
			Current:  p.CurrentBoxes,
			Size:     FromPtr(p.Size),
			BoxSize:  FromPtr(p.BoxSizeID),
		}, d.pool, d.requests, Options{
			AllowMixedSizes:    in.AllowMixedSizes,
			AllowMixedBoxTypes: in.AllowMixedBoxTypes,
		})
		if err != nil {
			return err
		}
		if err := d.apply(tx, scope.EnterpriseID, []Load{load}); err != nil {
			return err
		}

		p.CurrentBoxes += load.Boxes
		p.Size = load.Size.Ptr()
		p.BoxSizeID = load.BoxSize.Ptr()
		if err := tx.SavePallet(p, before.CurrentBoxes); err != nil {
			return err
		}
		if _, err := recordDraws(tx, scope.EnterpriseID, p.ID, load.Draws); err != nil {
			return err
		}
		allocs, err := tx.ListAllocationsByPallet(scope.EnterpriseID, p.ID)
		if err != nil {
			return err
		}
		out = PalletView{Pallet: *p, Allocations: allocs}

		return audit.WriteLog(tx, scope, audit.LogOptions{
			EntityType:  "pallet",
			EntityID:    p.ID,
			Action:      models.AuditActionAllocate,
			Description: fmt.Sprintf("Allocated %d cartons (%d/%d)", load.Boxes, p.CurrentBoxes, p.CapacityBoxes),
			Before:      before,
			After:       out,
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Seal closes an open pallet to further allocation.
func (s *Service) Seal(ctx context.Context, scope tenant.Scope, palletID uint) (*models.Pallet, error) {
	var out models.Pallet
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		p, err := tx.GetPallet(scope.EnterpriseID, palletID)
		if err != nil {
			return err
		}
		if p.Status != models.PalletOpen {
			return apperr.Precondition("pallet_sealed", fmt.Sprintf("pallet %d is already sealed", p.ID))
		}
		if p.CurrentBoxes == 0 {
			return apperr.Precondition("pallet_empty", fmt.Sprintf("pallet %d has no cartons", p.ID))
		}
		now := s.now()
		p.Status = models.PalletSealed
		p.SealedAt = &now
		if err := tx.SavePallet(p, p.CurrentBoxes); err != nil {
			return err
		}
		out = *p
		return audit.WriteLog(tx, scope, audit.LogOptions{
			EntityType:  "pallet",
			EntityID:    p.ID,
			Action:      models.AuditActionTransition,
			FromStatus:  string(models.PalletOpen),
			ToStatus:    string(models.PalletSealed),
			Description: "Pallet sealed",
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// RecordColdStore stamps the time a sealed pallet entered cold storage. A nil
// at means now.
func (s *Service) RecordColdStore(ctx context.Context, scope tenant.Scope, palletID uint, at *time.Time) (*models.Pallet, error) {
	var out models.Pallet
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		p, err := tx.GetPallet(scope.EnterpriseID, palletID)
		if err != nil {
			return err
		}
		if p.Status != models.PalletSealed || p.SealedAt == nil {
			return apperr.Precondition("pallet_not_sealed", fmt.Sprintf("pallet %d must be sealed before cold storage", p.ID))
		}
		if p.ColdStoreInAt != nil {
			return apperr.Precondition("cold_store_recorded", fmt.Sprintf("pallet %d is already in cold storage", p.ID))
		}
		when := s.now()
		if at != nil {
			when = *at
		}
		if when.Before(*p.SealedAt) {
			return apperr.Validation("cold_store_before_seal", "cold store time precedes sealing", "at")
		}
		p.ColdStoreInAt = &when
		if err := tx.SavePallet(p, p.CurrentBoxes); err != nil {
			return err
		}
		out = *p
		return audit.WriteLog(tx, scope, audit.LogOptions{
			EntityType:  "pallet",
			EntityID:    p.ID,
			Action:      models.AuditActionUpdate,
			Description: "Pallet entered cold storage",
			After:       p,
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *Service) Get(ctx context.Context, scope tenant.Scope, palletID uint) (*PalletView, error) {
	var out PalletView
	err := s.store.Tx(ctx, func(tx store.Tx) error {
		p, err := tx.GetPallet(scope.EnterpriseID, palletID)
		if err != nil {
			return err
		}
		allocs, err := tx.ListAllocationsByPallet(scope.EnterpriseID, p.ID)
		if err != nil {
			return err
		}
		out = PalletView{Pallet: *p, Allocations: allocs}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
