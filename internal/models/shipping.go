package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Container is an export container with its manifest and declared value.
type Container struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	EnterpriseID    uint            `gorm:"index;not null" json:"enterprise_id"`
	Reference       string          `gorm:"size:50;not null" json:"reference"`
	ManifestCartons int             `gorm:"not null;default:0" json:"manifest_cartons"`
	ExportValue     decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"export_value"`
	Currency        string          `gorm:"size:3" json:"currency"`
	ShippedAt       *time.Time      `json:"shipped_at"`
	CreatedAt       time.Time       `json:"created_at"`
}

type ExportInvoice struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	EnterpriseID uint            `gorm:"index;not null" json:"enterprise_id"`
	ContainerID  uint            `gorm:"index;not null" json:"container_id"`
	Number       string          `gorm:"size:50" json:"number"`
	Amount       decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"amount"`
	Currency     string          `gorm:"size:3" json:"currency"`
	CreatedAt    time.Time       `json:"created_at"`
}
