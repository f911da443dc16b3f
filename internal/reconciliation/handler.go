package reconciliation

import (
	"bytes"
	"strings"

	"packhouse-backend/internal/auth"
	"packhouse-backend/internal/httpx"
	"packhouse-backend/internal/models"
	"packhouse-backend/internal/store"

	"github.com/gofiber/fiber/v2"
)

// GET /api/reconciliation/dashboard?status=open,acknowledged&type=lot-vs-batch
func DashboardHandler(e *Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, err := e.Dashboard(c.UserContext(), auth.Scope(c), alertFilter(c))
		if err != nil {
			return err
		}
		return c.JSON(d)
	}
}

// POST /api/reconciliation/run
func RunHandler(e *Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		sum, err := e.Run(c.UserContext(), auth.Scope(c))
		if err != nil {
			return err
		}
		return c.JSON(sum)
	}
}

// PATCH /api/reconciliation/alerts/:alertId
func UpdateAlertHandler(e *Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "alertId")
		if err != nil {
			return err
		}
		var body UpdateAlertInput
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		a, err := e.UpdateAlert(c.UserContext(), auth.Scope(c), id, body)
		if err != nil {
			return err
		}
		return c.JSON(a)
	}
}

// GET /api/reconciliation/alerts/export?status=open
func ExportAlertsHandler(e *Engine) fiber.Handler {
	return func(c *fiber.Ctx) error {
		d, err := e.Dashboard(c.UserContext(), auth.Scope(c), alertFilter(c))
		if err != nil {
			return err
		}
		var buf bytes.Buffer
		if err := WriteAlertsXLSX(&buf, d.Alerts); err != nil {
			return err
		}
		c.Set(fiber.HeaderContentType, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		c.Set(fiber.HeaderContentDisposition, `attachment; filename="reconciliation-alerts.xlsx"`)
		return c.Send(buf.Bytes())
	}
}

func alertFilter(c *fiber.Ctx) store.AlertFilter {
	var f store.AlertFilter
	for _, s := range splitList(c.Query("status")) {
		f.Statuses = append(f.Statuses, models.AlertStatus(s))
	}
	for _, t := range splitList(c.Query("type")) {
		f.Types = append(f.Types, models.AlertType(t))
	}
	return f
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
