// Package lifecycle is the batch state machine.
//
//	received -> grading -> packing -> complete -> completed
//	    \__________\_________\-> rejected        completed -> complete (reopen)
package lifecycle

import (
	"fmt"
	"slices"

	"packhouse-backend/internal/apperr"
	"packhouse-backend/internal/massbalance"
	"packhouse-backend/internal/models"
)

type Event string

const (
	EventStartGrading Event = "start-grading"
	EventStartPacking Event = "start-packing"
	EventClose        Event = "close"
	EventFinalize     Event = "finalize"
	EventReopen       Event = "reopen"
	EventReject       Event = "reject"
)

var preComplete = []models.BatchStatus{models.BatchReceived, models.BatchGrading, models.BatchPacking}

var transitions = map[Event]struct {
	from []models.BatchStatus
	to   models.BatchStatus
}{
	EventStartGrading: {[]models.BatchStatus{models.BatchReceived}, models.BatchGrading},
	EventStartPacking: {[]models.BatchStatus{models.BatchReceived, models.BatchGrading}, models.BatchPacking},
	EventClose:        {preComplete, models.BatchComplete},
	EventFinalize:     {[]models.BatchStatus{models.BatchComplete}, models.BatchCompleted},
	EventReopen:       {[]models.BatchStatus{models.BatchCompleted}, models.BatchComplete},
	EventReject:       {preComplete, models.BatchRejected},
}

// Facts are the batch figures the guards look at.
type Facts struct {
	UnallocatedCartons int
	Balance            massbalance.Balance
}

type Result struct {
	From    models.BatchStatus
	To      models.BatchStatus
	Notices []apperr.Notice
}

// Apply validates ev against the current status and the guards.
func Apply(from models.BatchStatus, ev Event, f Facts) (Result, error) {
	tr, ok := transitions[ev]
	if !ok {
		return Result{}, apperr.Validation("unknown_event", fmt.Sprintf("unknown batch event %q", ev), "event")
	}
	if !slices.Contains(tr.from, from) {
		return Result{}, apperr.Precondition("invalid_transition",
			fmt.Sprintf("cannot %s a batch in status %s", ev, from))
	}

	res := Result{From: from, To: tr.to}
	switch ev {
	case EventClose:
		if f.UnallocatedCartons > 0 {
			return Result{}, apperr.Precondition("unallocated_cartons",
				fmt.Sprintf("unallocated cartons remain: %d not on a pallet", f.UnallocatedCartons))
		}
	case EventFinalize:
		res.Notices = finalizeNotices(f.Balance)
	}
	return res, nil
}

func finalizeNotices(b massbalance.Balance) []apperr.Notice {
	if !b.Known {
		return []apperr.Notice{{
			Code:    apperr.NoticeWeightUnknown,
			Message: "incoming weight unknown, mass balance not verified",
		}}
	}
	if b.Balanced {
		return nil
	}
	return []apperr.Notice{{
		Code:    apperr.NoticeUnaccountedWeight,
		Message: fmt.Sprintf("unaccounted weight of %.3f kg", b.DifferenceKg),
	}}
}

// UnallocatedCartons counts packed cartons not yet on a pallet. Returned lots
// leave the packhouse and are not palletized.
func UnallocatedCartons(lots []models.Lot) int {
	n := 0
	for _, l := range lots {
		if l.Status == models.LotReturned {
			continue
		}
		if avail := l.AvailableBoxes(); avail > 0 {
			n += avail
		}
	}
	return n
}

// AcceptsLots reports whether lots may still be created on a batch.
func AcceptsLots(s models.BatchStatus) bool {
	return slices.Contains(preComplete, s)
}
