package audit

import (
	"slices"
	"strconv"

	"packhouse-backend/internal/auth"
	"packhouse-backend/internal/models"
	"packhouse-backend/internal/store"

	"github.com/gofiber/fiber/v2"
)

type AuditLogResponse struct {
	ID          uint               `json:"id"`
	CreatedAt   string             `json:"created_at"`
	UserID      uint               `json:"user_id"`
	UserName    string             `json:"user_name"`
	EntityType  string             `json:"entity_type"`
	EntityID    uint               `json:"entity_id"`
	Action      models.AuditAction `json:"action"`
	FromStatus  string             `json:"from_status,omitempty"`
	ToStatus    string             `json:"to_status,omitempty"`
	Description string             `json:"description"`
}

// GET /api/audit-logs?entity_type=batch&entity_id=1&user_id=2
func ListAuditLogsHandler(st store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope := auth.Scope(c)

		f := store.AuditFilter{
			EntityType: c.Query("entity_type"),
			EntityID:   queryUint(c, "entity_id"),
			UserID:     queryUint(c, "user_id"),
		}

		var logs []models.AuditLog
		err := st.Tx(c.UserContext(), func(tx store.Tx) error {
			var err error
			logs, err = tx.ListAudit(scope.EnterpriseID, f)
			return err
		})
		if err != nil {
			return err
		}

		// newest first
		slices.Reverse(logs)

		resp := make([]AuditLogResponse, 0, len(logs))
		for _, log := range logs {
			resp = append(resp, AuditLogResponse{
				ID:          log.ID,
				CreatedAt:   log.CreatedAt.Format("2006-01-02 15:04:05"),
				UserID:      log.UserID,
				UserName:    log.UserName,
				EntityType:  log.EntityType,
				EntityID:    log.EntityID,
				Action:      log.Action,
				FromStatus:  log.FromStatus,
				ToStatus:    log.ToStatus,
				Description: log.Description,
			})
		}

		return c.JSON(resp)
	}
}

func queryUint(c *fiber.Ctx, key string) uint {
	v, err := strconv.ParseUint(c.Query(key), 10, 64)
	if err != nil {
		return 0
	}
	return uint(v)
}
