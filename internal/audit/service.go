package audit

import (
	"encoding/json"
	"fmt"

	"packhouse-backend/internal/models"
	"packhouse-backend/internal/store"
	"packhouse-backend/internal/tenant"
)

type LogOptions struct {
	EntityType  string
	EntityID    uint
	Action      models.AuditAction
	FromStatus  string
	ToStatus    string
	Description string
	Before      any
	After       any
}

// WriteLog appends one history event inside tx, so it commits or rolls back
// together with the change it describes. A snapshot that cannot be encoded
// fails the write instead of being recorded as null.
func WriteLog(tx store.Tx, scope tenant.Scope, opts LogOptions) error {
	// jsonb columns reject empty strings
	beforeStr := "null"
	afterStr := "null"

	if opts.Before != nil {
		b, err := json.Marshal(opts.Before)
		if err != nil {
			return fmt.Errorf("encode %s %d before data: %w", opts.EntityType, opts.EntityID, err)
		}
		beforeStr = string(b)
	}
	if opts.After != nil {
		b, err := json.Marshal(opts.After)
		if err != nil {
			return fmt.Errorf("encode %s %d after data: %w", opts.EntityType, opts.EntityID, err)
		}
		afterStr = string(b)
	}

	log := models.AuditLog{
		EnterpriseID: scope.EnterpriseID,
		UserID:       scope.UserID,
		UserName:     scope.UserName,
		EntityType:   opts.EntityType,
		EntityID:     opts.EntityID,
		Action:       opts.Action,
		FromStatus:   opts.FromStatus,
		ToStatus:     opts.ToStatus,
		Description:  opts.Description,
		BeforeData:   beforeStr,
		AfterData:    afterStr,
	}

	if err := tx.AppendAudit(&log); err != nil {
		return fmt.Errorf("write audit log: %w", err)
	}
	return nil
}
