package reconciliation

import (
	"io"

	"packhouse-backend/internal/models"

	"github.com/xuri/excelize/v2"
)

const alertSheet = "Alerts"

var alertColumns = []any{
	"ID", "Type", "Subject", "Subject ID", "Severity", "Status",
	"Expected", "Actual", "Variance", "Variance %", "Unit", "Title", "Note", "Last Seen",
}

// WriteAlertsXLSX writes one row per alert, in the given order, to a single
// sheet workbook.
func WriteAlertsXLSX(w io.Writer, alerts []models.ReconciliationAlert) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), alertSheet); err != nil {
		return err
	}
	if err := f.SetSheetRow(alertSheet, "A1", &alertColumns); err != nil {
		return err
	}
	for i, a := range alerts {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		var pct any
		if a.VariancePct != nil {
			pct = *a.VariancePct
		}
		row := []any{
			a.ID, string(a.AlertType), a.SubjectType, a.SubjectID, string(a.Severity), string(a.Status),
			a.Expected.InexactFloat64(), a.Actual.InexactFloat64(), a.Variance.InexactFloat64(), pct,
			string(a.Unit), a.Title, a.Note, a.LastSeenAt.Format("2006-01-02 15:04"),
		}
		if err := f.SetSheetRow(alertSheet, cell, &row); err != nil {
			return err
		}
	}
	if err := f.SetColWidth(alertSheet, "L", "M", 40); err != nil {
		return err
	}
	return f.Write(w)
}
