package models

import (
	"time"

	"github.com/shopspring/decimal"
)

type AlertType string

const (
	AlertGRNVsPayment      AlertType = "grn-vs-payment"
	AlertExportVsInvoice   AlertType = "export-vs-invoice"
	AlertLabourVsCost      AlertType = "labour-vs-cost"
	AlertPalletVsContainer AlertType = "pallet-vs-container"
	AlertLotVsBatch        AlertType = "lot-vs-batch"
	AlertColdStorageGap    AlertType = "cold-storage-gap"
)

var AlertTypes = []AlertType{
	AlertGRNVsPayment,
	AlertExportVsInvoice,
	AlertLabourVsCost,
	AlertPalletVsContainer,
	AlertLotVsBatch,
	AlertColdStorageGap,
}

type AlertSeverity string

const (
	SeverityCritical AlertSeverity = "critical"
	SeverityHigh     AlertSeverity = "high"
	SeverityMedium   AlertSeverity = "medium"
	SeverityLow      AlertSeverity = "low"
)

type AlertStatus string

const (
	AlertOpen         AlertStatus = "open"
	AlertAcknowledged AlertStatus = "acknowledged"
	AlertResolved     AlertStatus = "resolved"
	AlertDismissed    AlertStatus = "dismissed"
)

// VarianceUnit tells the presentation layer how to format a variance.
type VarianceUnit string

const (
	UnitCurrency VarianceUnit = "currency"
	UnitKg       VarianceUnit = "kg"
	UnitCartons  VarianceUnit = "cartons"
	UnitHours    VarianceUnit = "hours"
)

type ReconciliationAlert struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	EnterpriseID uint      `gorm:"not null;index:idx_alert_subject" json:"enterprise_id"`
	AlertType    AlertType `gorm:"size:40;not null;index:idx_alert_subject" json:"alert_type"`
	SubjectType  string    `gorm:"size:40;not null;index:idx_alert_subject" json:"subject_type"`
	SubjectID    uint      `gorm:"not null;index:idx_alert_subject" json:"subject_id"`

	Severity    AlertSeverity   `gorm:"size:20;not null" json:"severity"`
	Expected    decimal.Decimal `gorm:"type:numeric(18,4)" json:"expected"`
	Actual      decimal.Decimal `gorm:"type:numeric(18,4)" json:"actual"`
	Variance    decimal.Decimal `gorm:"type:numeric(18,4)" json:"variance"`
	VariancePct *float64        `json:"variance_pct"`
	Unit        VarianceUnit    `gorm:"size:20;not null" json:"unit"`
	Status      AlertStatus     `gorm:"size:20;not null;index" json:"status"`
	Title       string          `gorm:"size:255" json:"title"`
	RunID       string          `gorm:"size:36" json:"run_id"`
	Note        string          `gorm:"size:500" json:"note"`

	StatusChangedBy *uint      `json:"status_changed_by"`
	StatusChangedAt *time.Time `json:"status_changed_at"`
	LastSeenAt      time.Time  `json:"last_seen_at"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// IsActive reports whether reconciliation runs may still refresh the alert.
func (a ReconciliationAlert) IsActive() bool {
	return a.Status == AlertOpen || a.Status == AlertAcknowledged
}
