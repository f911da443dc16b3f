package models

import "time"

type AuditAction string

const (
	AuditActionCreate     AuditAction = "create"
	AuditActionUpdate     AuditAction = "update"
	AuditActionTransition AuditAction = "transition"
	AuditActionAllocate   AuditAction = "allocate"
)

// AuditLog is append-only: rows are never updated or deleted.
type AuditLog struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`

	EnterpriseID uint   `gorm:"index;not null" json:"enterprise_id"`
	UserID       uint   `json:"user_id"`
	UserName     string `gorm:"size:100" json:"user_name"`

	// e.g. "batch", "lot", "pallet", "reconciliation_alert"
	EntityType string `gorm:"size:50;index" json:"entity_type"`
	EntityID   uint   `gorm:"index" json:"entity_id"`

	Action      AuditAction `gorm:"size:20" json:"action"`
	FromStatus  string      `gorm:"size:20" json:"from_status"`
	ToStatus    string      `gorm:"size:20" json:"to_status"`
	Description string      `gorm:"size:255" json:"description"`

	BeforeData string `gorm:"type:jsonb" json:"before_data"`
	AfterData  string `gorm:"type:jsonb" json:"after_data"`
}
