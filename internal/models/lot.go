package models

import "time"

type LotStatus string

const (
	LotPacked   LotStatus = "packed"
	LotReturned LotStatus = "returned"
)

// Lot is a graded/sized subdivision of a batch, packed into cartons or bins.
type Lot struct {
	ID           uint    `gorm:"primaryKey" json:"id"`
	EnterpriseID uint    `gorm:"index;not null" json:"enterprise_id"`
	BatchID      uint    `gorm:"index;not null" json:"batch_id"`
	Grade        string  `gorm:"size:50;not null" json:"grade"`
	Size         *string `gorm:"size:30" json:"size"`

	// Carton based lots carry a box size, bin based lots a bin type.
	BoxSizeID *uint `gorm:"index" json:"box_size_id"`
	BinTypeID *uint `json:"bin_type_id"`
	BinCount  *int  `json:"bin_count"`

	CartonCount     int       `gorm:"not null;default:0" json:"carton_count"`
	WeightKg        *float64  `json:"weight_kg"`
	WasteKg         float64   `gorm:"not null;default:0" json:"waste_kg"`
	WasteReason     string    `gorm:"size:255" json:"waste_reason"`
	Notes           string    `gorm:"size:500" json:"notes"`
	PalletizedBoxes int       `gorm:"not null;default:0" json:"palletized_boxes"`
	Status          LotStatus `gorm:"size:20;not null" json:"status"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// AvailableBoxes is the number of cartons not yet on a pallet.
func (l Lot) AvailableBoxes() int {
	return l.CartonCount - l.PalletizedBoxes
}
