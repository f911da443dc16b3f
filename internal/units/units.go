// Package units converts carton and bin counts to kilograms.
package units

import (
	"packhouse-backend/internal/apperr"
	"packhouse-backend/internal/models"
)

// BoxSpec is the weight of one packed carton.
type BoxSpec struct {
	WeightKg     float64
	TareWeightKg float64
}

// BinSpec is the gross and empty weight of one bin.
type BinSpec struct {
	DefaultWeightKg float64
	TareWeightKg    float64
}

func BoxSpecOf(b models.BoxSize) BoxSpec {
	return BoxSpec{WeightKg: b.WeightKg, TareWeightKg: b.TareWeightKg}
}

func BinSpecOf(b models.BinType) BinSpec {
	return BinSpec{DefaultWeightKg: b.DefaultWeightKg, TareWeightKg: b.TareWeightKg}
}

var errNegativeCount = apperr.Validation("negative_count", "count must not be negative", "count")

func CartonsToWeight(count int, box BoxSpec) (float64, error) {
	if count < 0 {
		return 0, errNegativeCount
	}
	return float64(count) * box.WeightKg, nil
}

// BinsToNetWeight returns the fruit weight of count bins, excluding bin tare.
func BinsToNetWeight(count int, bin BinSpec) (float64, error) {
	if count < 0 {
		return 0, errNegativeCount
	}
	return float64(count) * (bin.DefaultWeightKg - bin.TareWeightKg), nil
}
