package models

import "time"

// BoxSize describes one carton specification; WeightKg is the gross unit weight.
type BoxSize struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	EnterpriseID uint      `gorm:"index;not null" json:"enterprise_id"`
	Name         string    `gorm:"size:100;not null" json:"name"`
	WeightKg     float64   `gorm:"not null" json:"weight_kg"`
	TareWeightKg float64   `gorm:"not null;default:0" json:"tare_weight_kg"`
	CreatedAt    time.Time `json:"created_at"`
}

type BinType struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	EnterpriseID    uint      `gorm:"index;not null" json:"enterprise_id"`
	Name            string    `gorm:"size:100;not null" json:"name"`
	DefaultWeightKg float64   `gorm:"not null" json:"default_weight_kg"`
	TareWeightKg    float64   `gorm:"not null;default:0" json:"tare_weight_kg"`
	CreatedAt       time.Time `json:"created_at"`
}

type PalletType struct {
	ID            uint   `gorm:"primaryKey" json:"id"`
	EnterpriseID  uint   `gorm:"not null;uniqueIndex:idx_pallet_type_name" json:"enterprise_id"`
	Name          string `gorm:"size:100;not null;uniqueIndex:idx_pallet_type_name" json:"name"`
	CapacityBoxes int    `gorm:"not null" json:"capacity_boxes"`

	Capacities []PalletTypeCapacity `gorm:"foreignKey:PalletTypeID" json:"capacities"`
	CreatedAt  time.Time            `json:"created_at"`
}

// PalletTypeCapacity overrides a pallet type's capacity for one box size.
type PalletTypeCapacity struct {
	ID            uint `gorm:"primaryKey" json:"id"`
	PalletTypeID  uint `gorm:"not null;uniqueIndex:idx_pallet_type_box" json:"pallet_type_id"`
	BoxSizeID     uint `gorm:"not null;uniqueIndex:idx_pallet_type_box" json:"box_size_id"`
	CapacityBoxes int  `gorm:"not null" json:"capacity_boxes"`
}
