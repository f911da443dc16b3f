package reconciliation

import (
	"context"
	"fmt"
	"slices"

	"packhouse-backend/internal/apperr"
	"packhouse-backend/internal/audit"
	"packhouse-backend/internal/models"
	"packhouse-backend/internal/store"
	"packhouse-backend/internal/tenant"
)

// alertTransitions lists the statuses reachable from each status. Resolved
// and dismissed are terminal.
var alertTransitions = map[models.AlertStatus][]models.AlertStatus{
	models.AlertOpen:         {models.AlertAcknowledged, models.AlertDismissed},
	models.AlertAcknowledged: {models.AlertResolved, models.AlertDismissed},
}

type UpdateAlertInput struct {
	Status models.AlertStatus `json:"status" validate:"required,oneof=open acknowledged resolved dismissed"`
	Note   *string            `json:"note" validate:"omitempty,max=500"`
}

// UpdateAlert advances an alert on behalf of the scope's user.
func (e *Engine) UpdateAlert(ctx context.Context, scope tenant.Scope, alertID uint, in UpdateAlertInput) (*models.ReconciliationAlert, error) {
	var out models.ReconciliationAlert
	err := e.store.Tx(ctx, func(tx store.Tx) error {
		a, err := tx.GetAlert(scope.EnterpriseID, alertID)
		if err != nil {
			return err
		}
		if !slices.Contains(alertTransitions[a.Status], in.Status) {
			return apperr.Precondition("invalid_alert_transition",
				fmt.Sprintf("alert %d cannot move from %s to %s", a.ID, a.Status, in.Status))
		}
		from := a.Status
		now := e.now()
		a.Status = in.Status
		a.StatusChangedBy = &scope.UserID
		a.StatusChangedAt = &now
		if in.Note != nil {
			a.Note = *in.Note
		}
		if err := tx.SaveAlert(a); err != nil {
			return err
		}
		out = *a
		return audit.WriteLog(tx, scope, audit.LogOptions{
			EntityType:  "reconciliation_alert",
			EntityID:    a.ID,
			Action:      models.AuditActionTransition,
			FromStatus:  string(from),
			ToStatus:    string(a.Status),
			Description: fmt.Sprintf("Alert %s: %s", a.AlertType, a.Status),
		})
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}
