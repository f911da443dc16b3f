package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type BatchStatus string

const (
	BatchReceived  BatchStatus = "received"
	BatchGrading   BatchStatus = "grading"
	BatchPacking   BatchStatus = "packing"
	BatchComplete  BatchStatus = "complete"  // production run closed
	BatchCompleted BatchStatus = "completed" // GRN finalized
	BatchRejected  BatchStatus = "rejected"
)

// Batch is one GRN intake of fruit from a grower.
type Batch struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	EnterpriseID uint   `gorm:"index;not null" json:"enterprise_id"`
	GrowerName   string `gorm:"size:150" json:"grower_name"`
	FruitType    string `gorm:"size:100;not null" json:"fruit_type"`
	Variety      string `gorm:"size:100" json:"variety"`

	// Net is derived from gross and tare and stays nil until gross is weighed.
	GrossWeightKg *float64 `json:"gross_weight_kg"`
	TareWeightKg  float64  `gorm:"not null;default:0" json:"tare_weight_kg"`
	NetWeightKg   *float64 `json:"net_weight_kg"`

	BinCount  *int  `json:"bin_count"`
	BinTypeID *uint `gorm:"index" json:"bin_type_id"`

	// Agreed grower price, used to cross-check payments.
	PricePerKg *decimal.Decimal `gorm:"type:numeric(14,4)" json:"price_per_kg"`

	WasteKg     float64     `gorm:"not null;default:0" json:"waste_kg"`
	WasteReason string      `gorm:"size:255" json:"waste_reason"`
	Status      BatchStatus `gorm:"size:20;index;not null" json:"status"`
	ReceivedAt  time.Time   `gorm:"index" json:"received_at"`
	CreatedAt   time.Time   `json:"created_at"`
	UpdatedAt   time.Time   `json:"updated_at"`
}

// RecomputeNet refreshes NetWeightKg from gross and tare. A tare heavier than
// the gross produces a negative net on purpose; see TareExceedsGross.
func (b *Batch) RecomputeNet() {
	if b.GrossWeightKg == nil {
		b.NetWeightKg = nil
		return
	}
	net := *b.GrossWeightKg - b.TareWeightKg
	b.NetWeightKg = &net
}

func (b Batch) TareExceedsGross() bool {
	return b.GrossWeightKg != nil && b.TareWeightKg > *b.GrossWeightKg
}
