package production

import (
	"packhouse-backend/internal/auth"
	"packhouse-backend/internal/httpx"
	"packhouse-backend/internal/lifecycle"

	"github.com/gofiber/fiber/v2"
)

// POST /api/batches
func CreateBatchHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateBatchInput
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		res, err := svc.CreateBatch(c.UserContext(), auth.Scope(c), body)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(res)
	}
}

// GET /api/batches/:batchId
func GetBatchHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "batchId")
		if err != nil {
			return err
		}
		res, err := svc.GetBatch(c.UserContext(), auth.Scope(c), id)
		if err != nil {
			return err
		}
		return c.JSON(res)
	}
}

type lotsRequest struct {
	Lots []LotInput `json:"lots" validate:"dive"`
}

// POST /api/lots/from-batch/:batchId
func CreateLotsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "batchId")
		if err != nil {
			return err
		}
		var body []LotInput
		if err := c.BodyParser(&body); err != nil {
			return fiber.NewError(fiber.StatusBadRequest, "body must be a list of lots")
		}
		if err := httpx.Validate(&lotsRequest{Lots: body}); err != nil {
			return err
		}
		res, lots, err := svc.CreateLotsFromBatch(c.UserContext(), auth.Scope(c), id, body)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"lots":    lots,
			"batch":   res.Batch,
			"balance": res.Balance,
			"notices": res.Notices,
		})
	}
}

// PATCH /api/lots/:lotId
func UpdateLotHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "lotId")
		if err != nil {
			return err
		}
		var body UpdateLotInput
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		lot, res, err := svc.UpdateLot(c.UserContext(), auth.Scope(c), id, body)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"lot":     lot,
			"batch":   res.Batch,
			"balance": res.Balance,
			"notices": res.Notices,
		})
	}
}

// PUT /api/batches/:batchId/waste
func SetWasteHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "batchId")
		if err != nil {
			return err
		}
		var body WasteInput
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		res, err := svc.SetWaste(c.UserContext(), auth.Scope(c), id, body)
		if err != nil {
			return err
		}
		return c.JSON(res)
	}
}

// TransitionHandler serves POST /api/batches/:batchId/<event>.
func TransitionHandler(svc *Service, ev lifecycle.Event) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "batchId")
		if err != nil {
			return err
		}
		res, err := svc.Transition(c.UserContext(), auth.Scope(c), id, ev)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{
			"batch":   res.Batch,
			"balance": res.Balance,
			"notices": res.Notices,
		})
	}
}
