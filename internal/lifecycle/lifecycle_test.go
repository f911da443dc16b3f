package lifecycle

import (
	"testing"

	"packhouse-backend/internal/apperr"
	"packhouse-backend/internal/massbalance"
	"packhouse-backend/internal/models"
)

func TestTransitionTable(t *testing.T) {
	cases := []struct {
		from models.BatchStatus
		ev   Event
		to   models.BatchStatus
		ok   bool
	}{
		{models.BatchReceived, EventStartGrading, models.BatchGrading, true},
		{models.BatchReceived, EventStartPacking, models.BatchPacking, true},
		{models.BatchGrading, EventStartPacking, models.BatchPacking, true},
		{models.BatchPacking, EventClose, models.BatchComplete, true},
		{models.BatchGrading, EventClose, models.BatchComplete, true},
		{models.BatchComplete, EventFinalize, models.BatchCompleted, true},
		{models.BatchCompleted, EventReopen, models.BatchComplete, true},
		{models.BatchPacking, EventReject, models.BatchRejected, true},
		{models.BatchReceived, EventReject, models.BatchRejected, true},

		{models.BatchPacking, EventFinalize, "", false},
		{models.BatchComplete, EventReject, "", false},
		{models.BatchCompleted, EventClose, "", false},
		{models.BatchComplete, EventReopen, "", false},
		{models.BatchRejected, EventStartPacking, "", false},
	}
	for _, tc := range cases {
		res, err := Apply(tc.from, tc.ev, Facts{Balance: massbalance.Balance{Known: true, Balanced: true}})
		if tc.ok {
			if err != nil {
				t.Errorf("%s from %s: unexpected error %v", tc.ev, tc.from, err)
				continue
			}
			if res.To != tc.to {
				t.Errorf("%s from %s: to = %s, want %s", tc.ev, tc.from, res.To, tc.to)
			}
			continue
		}
		if apperr.KindOf(err) != apperr.KindPrecondition {
			t.Errorf("%s from %s: expected precondition error, got %v", tc.ev, tc.from, err)
		}
	}
}

func TestCloseRequiresFullAllocation(t *testing.T) {
	lots := []models.Lot{
		{CartonCount: 100, PalletizedBoxes: 100, Status: models.LotPacked},
		{CartonCount: 50, PalletizedBoxes: 20, Status: models.LotPacked},
		{CartonCount: 10, PalletizedBoxes: 0, Status: models.LotReturned},
	}
	_, err := Apply(models.BatchPacking, EventClose, Facts{UnallocatedCartons: UnallocatedCartons(lots)})
	if !apperr.Is(err, "unallocated_cartons") {
		t.Fatalf("expected unallocated_cartons, got %v", err)
	}

	lots[1].PalletizedBoxes = 50
	res, err := Apply(models.BatchPacking, EventClose, Facts{UnallocatedCartons: UnallocatedCartons(lots)})
	if err != nil {
		t.Fatalf("close after full allocation: %v", err)
	}
	if res.To != models.BatchComplete {
		t.Fatalf("to = %s", res.To)
	}
}

func TestFinalizeSurfacesImbalanceWithoutFailing(t *testing.T) {
	res, err := Apply(models.BatchComplete, EventFinalize, Facts{
		Balance: massbalance.Balance{Known: true, DifferenceKg: 12, Balanced: false},
	})
	if err != nil {
		t.Fatalf("finalize must not fail on imbalance: %v", err)
	}
	if res.To != models.BatchCompleted {
		t.Fatalf("to = %s", res.To)
	}
	if len(res.Notices) != 1 || res.Notices[0].Code != apperr.NoticeUnaccountedWeight {
		t.Fatalf("notices = %+v", res.Notices)
	}

	res, _ = Apply(models.BatchComplete, EventFinalize, Facts{Balance: massbalance.Balance{Known: true, Balanced: true}})
	if len(res.Notices) != 0 {
		t.Fatalf("balanced finalize should be silent, got %+v", res.Notices)
	}
}

func TestUnknownEvent(t *testing.T) {
	_, err := Apply(models.BatchReceived, Event("ship"), Facts{})
	if apperr.KindOf(err) != apperr.KindValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}
