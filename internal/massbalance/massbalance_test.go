package massbalance

import (
	"testing"

	"packhouse-backend/internal/apperr"
	"packhouse-backend/internal/models"
)

func kg(v float64) *float64 { return &v }

func lot(weight *float64, waste float64) models.Lot {
	return models.Lot{WeightKg: weight, WasteKg: waste}
}

func TestAutoWasteExampleBalancesBatch(t *testing.T) {
	lots := []models.Lot{lot(kg(600), 0), lot(kg(350), 0)}

	aw := ComputeAutoWaste(kg(1000), lots)
	if aw.Deferred || aw.Overweight {
		t.Fatalf("unexpected flags: %+v", aw)
	}
	if aw.WasteKg != 50 {
		t.Fatalf("auto waste = %v, want 50", aw.WasteKg)
	}

	bal := Verify(kg(1000), lots, aw.WasteKg)
	if !bal.Balanced || bal.DifferenceKg != 0 {
		t.Fatalf("expected balanced batch, got %+v", bal)
	}
}

func TestAutoWasteExcludesBatchWasteButCountsLotWaste(t *testing.T) {
	lots := []models.Lot{lot(kg(400), 25.5), lot(nil, 4.5)}
	aw := ComputeAutoWaste(kg(500), lots)
	if aw.WasteKg != 70 {
		t.Fatalf("auto waste = %v, want 70", aw.WasteKg)
	}
}

func TestAutoWasteDeferredWithoutIncomingWeight(t *testing.T) {
	aw := ComputeAutoWaste(nil, []models.Lot{lot(kg(10), 0)})
	if !aw.Deferred {
		t.Fatal("expected deferral when incoming net is unknown")
	}
	notices := aw.Notices()
	if len(notices) != 1 || notices[0].Code != apperr.NoticeWeightUnknown {
		t.Fatalf("notices = %+v", notices)
	}
	if Verify(nil, nil, 0).Known {
		t.Fatal("balance must be unknown without incoming weight")
	}
}

func TestOverweightIsReportedNotZeroed(t *testing.T) {
	aw := ComputeAutoWaste(kg(100), []models.Lot{lot(kg(120), 0)})
	if !aw.Overweight {
		t.Fatal("expected overweight")
	}
	if aw.WasteKg != -20 {
		t.Fatalf("waste = %v, want -20 (not clamped)", aw.WasteKg)
	}
	if n := aw.Notices(); len(n) != 1 || n[0].Code != apperr.NoticeOverweight {
		t.Fatalf("notices = %+v", n)
	}
}

func TestBalanceTolerance(t *testing.T) {
	cases := []struct {
		name     string
		incoming float64
		packed   float64
		waste    float64
		balanced bool
	}{
		{"exact", 1000, 950, 50, true},
		{"just inside", 1000, 950, 49.6, true},
		{"at tolerance", 1000, 950, 49.5, false},
		{"over by a kilo", 1000, 950, 51, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			bal := Verify(kg(tc.incoming), []models.Lot{lot(kg(tc.packed), 0)}, tc.waste)
			if bal.Balanced != tc.balanced {
				t.Fatalf("balanced = %v, want %v (diff %v)", bal.Balanced, tc.balanced, bal.DifferenceKg)
			}
		})
	}
}
