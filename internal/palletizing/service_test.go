package palletizing

import (
	"context"
	"io"
	"testing"
	"time"

	"packhouse-backend/internal/apperr"
	"packhouse-backend/internal/models"
	"packhouse-backend/internal/store"
	"packhouse-backend/internal/store/memstore"
	"packhouse-backend/internal/tenant"

	"github.com/sirupsen/logrus"
)

var scope = tenant.Scope{EnterpriseID: 1, UserID: 7, UserName: "packer"}

type fixture struct {
	st   *memstore.Store
	svc  *Service
	box  uint
	lots []uint
}

func quietLogger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func strp(s string) *string { return &s }

// newFixture seeds one pallet type ("Euro", 240 cartons) and one lot per
// entry of cartons, all size M on the same box size.
func newFixture(t *testing.T, cartons ...int) *fixture {
	t.Helper()
	f := &fixture{st: memstore.New()}
	f.svc = NewService(f.st, quietLogger())
	err := f.st.Tx(context.Background(), func(tx store.Tx) error {
		box := models.BoxSize{EnterpriseID: 1, Name: "10kg", WeightKg: 10}
		if err := tx.CreateBoxSize(&box); err != nil {
			return err
		}
		f.box = box.ID
		if err := tx.CreatePalletType(&models.PalletType{EnterpriseID: 1, Name: "Euro", CapacityBoxes: 240}); err != nil {
			return err
		}
		for _, n := range cartons {
			lot := models.Lot{
				EnterpriseID: 1, BatchID: 1, Grade: "A", Size: strp("M"),
				BoxSizeID: &box.ID, CartonCount: n, Status: models.LotPacked,
			}
			if err := tx.CreateLot(&lot); err != nil {
				return err
			}
			f.lots = append(f.lots, lot.ID)
		}
		return nil
	})
	if err != nil {
		t.Fatal(err)
	}
	return f
}

func (f *fixture) lot(t *testing.T, id uint) models.Lot {
	t.Helper()
	var out models.Lot
	if err := f.st.Tx(context.Background(), func(tx store.Tx) error {
		l, err := tx.GetLot(1, id)
		if err == nil {
			out = *l
		}
		return err
	}); err != nil {
		t.Fatal(err)
	}
	return out
}

func (f *fixture) pallets(t *testing.T) []models.Pallet {
	t.Helper()
	var out []models.Pallet
	_ = f.st.Tx(context.Background(), func(tx store.Tx) error {
		var err error
		out, err = tx.ListPallets(1)
		return err
	})
	return out
}

func TestCreateFromLotsOverflow(t *testing.T) {
	f := newFixture(t, 300, 200)
	views, err := f.svc.CreateFromLots(context.Background(), scope, CreateFromLotsInput{
		PalletTypeName: "Euro",
		LotAssignments: []Assignment{{LotID: f.lots[0], BoxCount: 300}, {LotID: f.lots[1], BoxCount: 200}},
	})
	if err != nil {
		t.Fatalf("CreateFromLots: %v", err)
	}
	want := []int{240, 240, 20}
	if len(views) != len(want) {
		t.Fatalf("pallets = %d, want %d", len(views), len(want))
	}
	for i, v := range views {
		if v.CurrentBoxes != want[i] || v.CapacityBoxes != 240 || v.Status != models.PalletOpen {
			t.Errorf("pallet %d = %d/%d %s", i, v.CurrentBoxes, v.CapacityBoxes, v.Status)
		}
		if v.Size == nil || *v.Size != "M" || v.BoxSizeID == nil || *v.BoxSizeID != f.box {
			t.Errorf("pallet %d attributes not fixed by first lot", i)
		}
	}
	if got := f.lot(t, f.lots[0]).PalletizedBoxes; got != 300 {
		t.Errorf("lot 1 palletized = %d, want 300", got)
	}
	if got := f.lot(t, f.lots[1]).PalletizedBoxes; got != 200 {
		t.Errorf("lot 2 palletized = %d, want 200", got)
	}
}

func TestCreateFromLotsUsesBoxOverride(t *testing.T) {
	f := newFixture(t, 100)
	_ = f.st.Tx(context.Background(), func(tx store.Tx) error {
		return tx.CreatePalletType(&models.PalletType{
			EnterpriseID: 1, Name: "Chep", CapacityBoxes: 200,
			Capacities: []models.PalletTypeCapacity{{BoxSizeID: f.box, CapacityBoxes: 60}},
		})
	})
	views, err := f.svc.CreateFromLots(context.Background(), scope, CreateFromLotsInput{
		PalletTypeName: "Chep",
		LotAssignments: []Assignment{{LotID: f.lots[0], BoxCount: 100}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 || views[0].CapacityBoxes != 60 || views[1].CurrentBoxes != 40 {
		t.Fatalf("views = %+v", views)
	}
}

func TestCreateFromLotsCapacityBounds(t *testing.T) {
	f := newFixture(t, 100)
	over, zero := 241, 0
	for _, c := range []struct {
		capacity *int
		code     string
	}{
		{&over, "capacity_exceeds_pallet_type"},
		{&zero, "invalid_capacity"},
	} {
		_, err := f.svc.CreateFromLots(context.Background(), scope, CreateFromLotsInput{
			PalletTypeName: "Euro",
			CapacityBoxes:  c.capacity,
			LotAssignments: []Assignment{{LotID: f.lots[0], BoxCount: 10}},
		})
		if !apperr.Is(err, c.code) {
			t.Errorf("capacity %d: got %v, want %s", *c.capacity, err, c.code)
		}
	}

	short := 40
	views, err := f.svc.CreateFromLots(context.Background(), scope, CreateFromLotsInput{
		PalletTypeName: "Euro",
		CapacityBoxes:  &short,
		LotAssignments: []Assignment{{LotID: f.lots[0], BoxCount: 100}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if len(views) != 3 || views[2].CurrentBoxes != 20 {
		t.Fatalf("short pallets = %+v", views)
	}
}

func TestUnknownPalletType(t *testing.T) {
	f := newFixture(t, 10)
	_, err := f.svc.CreateFromLots(context.Background(), scope, CreateFromLotsInput{
		PalletTypeName: "Nope",
		LotAssignments: []Assignment{{LotID: f.lots[0], BoxCount: 1}},
	})
	if apperr.KindOf(err) != apperr.KindNotFound {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestAllocateRejectsIncompatibleLotWithoutChanges(t *testing.T) {
	f := newFixture(t, 50, 50)
	views, err := f.svc.CreateFromLots(context.Background(), scope, CreateFromLotsInput{
		PalletTypeName: "Euro",
		LotAssignments: []Assignment{{LotID: f.lots[0], BoxCount: 20}},
	})
	if err != nil {
		t.Fatal(err)
	}
	palletID := views[0].ID

	// re-size the second lot so it no longer matches the pallet
	_ = f.st.Tx(context.Background(), func(tx store.Tx) error {
		l, _ := tx.GetLot(1, f.lots[1])
		l.Size = strp("L")
		return tx.SaveLot(l)
	})

	_, err = f.svc.AllocateToPallet(context.Background(), scope, palletID, AllocateInput{
		LotAssignments: []Assignment{{LotID: f.lots[0], BoxCount: 5}, {LotID: f.lots[1], BoxCount: 5}},
	})
	if !apperr.Is(err, "mixed_sizes") {
		t.Fatalf("expected mixed_sizes, got %v", err)
	}
	if got := f.lot(t, f.lots[0]).PalletizedBoxes; got != 20 {
		t.Errorf("lot 1 palletized = %d, want unchanged 20", got)
	}
	if got := f.lot(t, f.lots[1]).PalletizedBoxes; got != 0 {
		t.Errorf("lot 2 palletized = %d, want unchanged 0", got)
	}
	if got := f.pallets(t)[0].CurrentBoxes; got != 20 {
		t.Errorf("pallet boxes = %d, want unchanged 20", got)
	}
}

func TestAllocateBoundsAndCapacity(t *testing.T) {
	f := newFixture(t, 300)
	views, err := f.svc.CreateFromLots(context.Background(), scope, CreateFromLotsInput{
		PalletTypeName: "Euro",
		LotAssignments: []Assignment{{LotID: f.lots[0], BoxCount: 230}},
	})
	if err != nil {
		t.Fatal(err)
	}
	id := views[0].ID

	if _, err := f.svc.AllocateToPallet(context.Background(), scope, id, AllocateInput{
		LotAssignments: []Assignment{{LotID: f.lots[0], BoxCount: 71}},
	}); !apperr.Is(err, "quantity_out_of_range") {
		t.Fatalf("above available: got %v", err)
	}
	if _, err := f.svc.AllocateToPallet(context.Background(), scope, id, AllocateInput{
		LotAssignments: []Assignment{{LotID: f.lots[0], BoxCount: 11}},
	}); apperr.KindOf(err) != apperr.KindPrecondition || !apperr.Is(err, "capacity_exceeded") {
		t.Fatalf("over capacity: got %v", err)
	}

	view, err := f.svc.AllocateToPallet(context.Background(), scope, id, AllocateInput{
		LotAssignments: []Assignment{{LotID: f.lots[0], BoxCount: 10}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if view.CurrentBoxes != 240 || len(view.Allocations) != 2 {
		t.Fatalf("pallet = %d boxes, %d allocations", view.CurrentBoxes, len(view.Allocations))
	}
	if got := f.lot(t, f.lots[0]).PalletizedBoxes; got != 240 {
		t.Fatalf("palletized = %d, want 240", got)
	}
}

func TestAssignmentSizeFillsMissingLotSize(t *testing.T) {
	f := newFixture(t)
	var lotID uint
	_ = f.st.Tx(context.Background(), func(tx store.Tx) error {
		l := models.Lot{EnterpriseID: 1, BatchID: 1, Grade: "B", BoxSizeID: &f.box, CartonCount: 10, Status: models.LotPacked}
		err := tx.CreateLot(&l)
		lotID = l.ID
		return err
	})

	views, err := f.svc.CreateFromLots(context.Background(), scope, CreateFromLotsInput{
		PalletTypeName: "Euro",
		LotAssignments: []Assignment{{LotID: lotID, BoxCount: 10, Size: strp("S")}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if lot := f.lot(t, lotID); lot.Size == nil || *lot.Size != "S" || lot.PalletizedBoxes != 10 {
		t.Fatalf("lot = %+v", lot)
	}
	if views[0].Size == nil || *views[0].Size != "S" {
		t.Fatal("pallet should take the assigned size")
	}

	_, err = f.svc.CreateFromLots(context.Background(), scope, CreateFromLotsInput{
		PalletTypeName: "Euro",
		LotAssignments: []Assignment{{LotID: lotID, BoxCount: 0, Size: strp("L")}},
	})
	if !apperr.Is(err, "size_mismatch") {
		t.Fatalf("expected size_mismatch, got %v", err)
	}
}

func TestSealAndColdStore(t *testing.T) {
	f := newFixture(t, 10)
	sealedAt := time.Date(2026, 3, 1, 8, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time { return sealedAt }

	views, err := f.svc.CreateFromLots(context.Background(), scope, CreateFromLotsInput{
		PalletTypeName: "Euro",
		LotAssignments: []Assignment{{LotID: f.lots[0], BoxCount: 10}},
	})
	if err != nil {
		t.Fatal(err)
	}
	id := views[0].ID

	if _, err := f.svc.RecordColdStore(context.Background(), scope, id, nil); !apperr.Is(err, "pallet_not_sealed") {
		t.Fatalf("cold store before seal: got %v", err)
	}
	p, err := f.svc.Seal(context.Background(), scope, id)
	if err != nil {
		t.Fatal(err)
	}
	if p.Status != models.PalletSealed || p.SealedAt == nil || !p.SealedAt.Equal(sealedAt) {
		t.Fatalf("sealed pallet = %+v", p)
	}
	if _, err := f.svc.AllocateToPallet(context.Background(), scope, id, AllocateInput{
		LotAssignments: []Assignment{{LotID: f.lots[0], BoxCount: 0}},
	}); !apperr.Is(err, "pallet_sealed") {
		t.Fatalf("allocate to sealed pallet: got %v", err)
	}

	early := sealedAt.Add(-time.Hour)
	if _, err := f.svc.RecordColdStore(context.Background(), scope, id, &early); !apperr.Is(err, "cold_store_before_seal") {
		t.Fatalf("cold store before seal time: got %v", err)
	}
	in := sealedAt.Add(3 * time.Hour)
	p, err = f.svc.RecordColdStore(context.Background(), scope, id, &in)
	if err != nil {
		t.Fatal(err)
	}
	if p.ColdStoreInAt == nil || !p.ColdStoreInAt.Equal(in) {
		t.Fatalf("cold store time = %v", p.ColdStoreInAt)
	}
}

func TestAllocationsAreAudited(t *testing.T) {
	f := newFixture(t, 10)
	if _, err := f.svc.CreateFromLots(context.Background(), scope, CreateFromLotsInput{
		PalletTypeName: "Euro",
		LotAssignments: []Assignment{{LotID: f.lots[0], BoxCount: 10}},
	}); err != nil {
		t.Fatal(err)
	}
	_ = f.st.Tx(context.Background(), func(tx store.Tx) error {
		logs, _ := tx.ListAudit(1, store.AuditFilter{EntityType: "pallet"})
		if len(logs) != 1 || logs[0].UserID != scope.UserID || logs[0].Action != models.AuditActionCreate {
			t.Fatalf("audit logs = %+v", logs)
		}
		return nil
	})
}
