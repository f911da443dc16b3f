package reconciliation

import (
	"context"

	"packhouse-backend/internal/models"
	"packhouse-backend/internal/store"
	"packhouse-backend/internal/tenant"
)

type Dashboard struct {
	ByStatus   map[models.AlertStatus]int   `json:"by_status"`
	ByType     map[models.AlertType]int     `json:"by_type"`
	BySeverity map[models.AlertSeverity]int `json:"by_severity"`
	Alerts     []models.ReconciliationAlert `json:"alerts"`
}

// Dashboard counts alerts by status, and active alerts by type and severity.
// f narrows only the returned alert list.
func (e *Engine) Dashboard(ctx context.Context, scope tenant.Scope, f store.AlertFilter) (*Dashboard, error) {
	d := &Dashboard{
		ByStatus:   map[models.AlertStatus]int{},
		ByType:     map[models.AlertType]int{},
		BySeverity: map[models.AlertSeverity]int{},
	}
	err := e.store.Tx(ctx, func(tx store.Tx) error {
		all, err := tx.ListAlerts(scope.EnterpriseID, store.AlertFilter{})
		if err != nil {
			return err
		}
		for _, a := range all {
			d.ByStatus[a.Status]++
			if a.IsActive() {
				d.ByType[a.AlertType]++
				d.BySeverity[a.Severity]++
			}
		}
		d.Alerts, err = tx.ListAlerts(scope.EnterpriseID, f)
		return err
	})
	if err != nil {
		return nil, err
	}
	if d.Alerts == nil {
		d.Alerts = []models.ReconciliationAlert{}
	}
	return d, nil
}
