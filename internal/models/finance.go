package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// GrowerPayment is money paid to a grower against a batch (GRN).
type GrowerPayment struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	EnterpriseID uint            `gorm:"index;not null" json:"enterprise_id"`
	BatchID      uint            `gorm:"index;not null" json:"batch_id"`
	Amount       decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"amount"`
	PaidAt       time.Time       `json:"paid_at"`
	CreatedAt    time.Time       `json:"created_at"`
}

// LabourEntry is one team's timesheet line with the cost that was booked for it.
type LabourEntry struct {
	ID           uint            `gorm:"primaryKey" json:"id"`
	EnterpriseID uint            `gorm:"index;not null" json:"enterprise_id"`
	WorkDate     time.Time       `gorm:"index" json:"work_date"`
	Team         string          `gorm:"size:100" json:"team"`
	Hours        float64         `gorm:"not null" json:"hours"`
	HourlyRate   decimal.Decimal `gorm:"type:numeric(14,4);not null" json:"hourly_rate"`
	RecordedCost decimal.Decimal `gorm:"type:numeric(18,4);not null" json:"recorded_cost"`
	CreatedAt    time.Time       `json:"created_at"`
}
