// Package massbalance reconciles a batch's incoming net weight against the
// weight packed into its lots and the waste recorded on lots and batch.
package massbalance

import (
	"fmt"
	"math"

	"packhouse-backend/internal/apperr"
	"packhouse-backend/internal/models"
)

// BalanceToleranceKg is the largest difference still considered balanced.
const BalanceToleranceKg = 0.5

// AutoWaste is the unaccounted weight of a batch before its own waste figure.
type AutoWaste struct {
	// Deferred is set when the incoming net weight is unknown.
	Deferred bool
	WasteKg  float64
	// Overweight is set when lots and lot waste exceed the incoming weight.
	Overweight bool
}

// Balance is the post-hoc check including the batch's recorded waste.
type Balance struct {
	Known        bool    `json:"known"`
	IncomingKg   float64 `json:"incoming_kg"`
	AccountedKg  float64 `json:"accounted_kg"`
	DifferenceKg float64 `json:"difference_kg"`
	Balanced     bool    `json:"balanced"`
}

func lotTotals(lots []models.Lot) (weight, waste float64) {
	for _, l := range lots {
		if l.WeightKg != nil {
			weight += *l.WeightKg
		}
		waste += l.WasteKg
	}
	return weight, waste
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// ComputeAutoWaste returns incoming − Σlot.weight − Σlot.waste.
func ComputeAutoWaste(incomingNetKg *float64, lots []models.Lot) AutoWaste {
	if incomingNetKg == nil {
		return AutoWaste{Deferred: true}
	}
	weight, waste := lotTotals(lots)
	w := round3(*incomingNetKg - weight - waste)
	return AutoWaste{WasteKg: w, Overweight: w < 0}
}

// Verify checks incoming against Σlot.weight + Σlot.waste + batch waste.
func Verify(incomingNetKg *float64, lots []models.Lot, batchWasteKg float64) Balance {
	weight, waste := lotTotals(lots)
	accounted := round3(weight + waste + batchWasteKg)
	if incomingNetKg == nil {
		return Balance{AccountedKg: accounted}
	}
	diff := round3(*incomingNetKg - accounted)
	return Balance{
		Known:        true,
		IncomingKg:   *incomingNetKg,
		AccountedKg:  accounted,
		DifferenceKg: diff,
		Balanced:     math.Abs(diff) < BalanceToleranceKg,
	}
}

// Notices describes the non-fatal conditions of an auto-waste computation.
func (a AutoWaste) Notices() []apperr.Notice {
	switch {
	case a.Deferred:
		return []apperr.Notice{{
			Code:    apperr.NoticeWeightUnknown,
			Message: "gross weight not recorded, waste calculation deferred",
		}}
	case a.Overweight:
		return []apperr.Notice{{
			Code:    apperr.NoticeOverweight,
			Message: fmt.Sprintf("lots exceed incoming net weight by %.3f kg, adjust weights manually", -a.WasteKg),
		}}
	}
	return nil
}
