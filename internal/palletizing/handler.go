package palletizing

import (
	"strconv"
	"time"

	"packhouse-backend/internal/apperr"
	"packhouse-backend/internal/auth"
	"packhouse-backend/internal/httpx"

	"github.com/gofiber/fiber/v2"
)

// POST /api/pallets/from-lots
func CreateFromLotsHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateFromLotsInput
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		pallets, err := svc.CreateFromLots(c.UserContext(), auth.Scope(c), body)
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(fiber.Map{"pallets": pallets})
	}
}

// POST /api/pallets/:palletId/allocate
func AllocateHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "palletId")
		if err != nil {
			return err
		}
		var body AllocateInput
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		pallet, err := svc.AllocateToPallet(c.UserContext(), auth.Scope(c), id, body)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"pallet": pallet})
	}
}

// POST /api/pallets/:palletId/seal
func SealHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "palletId")
		if err != nil {
			return err
		}
		pallet, err := svc.Seal(c.UserContext(), auth.Scope(c), id)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"pallet": pallet})
	}
}

type coldStoreRequest struct {
	At *time.Time `json:"at"`
}

// POST /api/pallets/:palletId/cold-store
func ColdStoreHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "palletId")
		if err != nil {
			return err
		}
		var body coldStoreRequest
		if len(c.Body()) > 0 {
			if err := httpx.Bind(c, &body); err != nil {
				return err
			}
		}
		pallet, err := svc.RecordColdStore(c.UserContext(), auth.Scope(c), id, body.At)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"pallet": pallet})
	}
}

// GET /api/pallets/:palletId
func GetHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id, err := httpx.ParamID(c, "palletId")
		if err != nil {
			return err
		}
		pallet, err := svc.Get(c.UserContext(), auth.Scope(c), id)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"pallet": pallet})
	}
}

// GET /api/pallets/capacity?pallet_type_id=1&box_size_id=2
func CapacityHandler(svc *Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		typeID, err := strconv.ParseUint(c.Query("pallet_type_id"), 10, 64)
		if err != nil || typeID == 0 {
			return apperr.Validation("invalid_id", "invalid pallet_type_id", "pallet_type_id")
		}
		var boxSizeID *uint
		if raw := c.Query("box_size_id"); raw != "" {
			v, err := strconv.ParseUint(raw, 10, 64)
			if err != nil {
				return apperr.Validation("invalid_id", "invalid box_size_id", "box_size_id")
			}
			id := uint(v)
			boxSizeID = &id
		}
		capacity, err := svc.ResolveCapacity(c.UserContext(), auth.Scope(c), uint(typeID), boxSizeID)
		if err != nil {
			return err
		}
		return c.JSON(fiber.Map{"capacity_boxes": capacity})
	}
}
