package apperr

import (
	"errors"

	"github.com/gofiber/fiber/v2"
)

// Status maps an error kind to its HTTP status.
func Status(k Kind) int {
	switch k {
	case KindValidation:
		return fiber.StatusBadRequest
	case KindPrecondition:
		return fiber.StatusUnprocessableEntity
	case KindConflict:
		return fiber.StatusConflict
	case KindNotFound:
		return fiber.StatusNotFound
	default:
		return fiber.StatusInternalServerError
	}
}

// Render writes err as the JSON error body used by every handler.
func Render(c *fiber.Ctx, err error) error {
	var e *Error
	if errors.As(err, &e) {
		body := fiber.Map{
			"error": e.Message,
			"code":  e.Code,
		}
		if len(e.Fields) > 0 {
			body["fields"] = e.Fields
		}
		return c.Status(Status(e.Kind)).JSON(body)
	}
	var fe *fiber.Error
	if errors.As(err, &fe) {
		return c.Status(fe.Code).JSON(fiber.Map{"error": fe.Message})
	}
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "unexpected server error",
	})
}
