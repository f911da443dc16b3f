package models

import "time"

type PalletStatus string

const (
	PalletOpen   PalletStatus = "open"
	PalletSealed PalletStatus = "sealed"
)

type Pallet struct {
	ID            uint         `gorm:"primaryKey" json:"id"`
	EnterpriseID  uint         `gorm:"index;not null" json:"enterprise_id"`
	PalletTypeID  uint         `gorm:"index;not null" json:"pallet_type_id"`
	CapacityBoxes int          `gorm:"not null" json:"capacity_boxes"`
	CurrentBoxes  int          `gorm:"not null;default:0" json:"current_boxes"`
	Size          *string      `gorm:"size:30" json:"size"`
	BoxSizeID     *uint        `json:"box_size_id"`
	Status        PalletStatus `gorm:"size:20;not null" json:"status"`
	ContainerID   *uint        `gorm:"index" json:"container_id"`
	SealedAt      *time.Time   `json:"sealed_at"`
	ColdStoreInAt *time.Time   `json:"cold_store_in_at"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

func (p Pallet) RemainingBoxes() int {
	return p.CapacityBoxes - p.CurrentBoxes
}

// PalletAllocation records cartons drawn from a lot onto a pallet.
type PalletAllocation struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	EnterpriseID uint      `gorm:"index;not null" json:"enterprise_id"`
	PalletID     uint      `gorm:"index;not null" json:"pallet_id"`
	LotID        uint      `gorm:"index;not null" json:"lot_id"`
	BoxCount     int       `gorm:"not null" json:"box_count"`
	CreatedAt    time.Time `json:"created_at"`
}
