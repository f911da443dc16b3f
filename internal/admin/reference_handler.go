package admin

import (
	"errors"
	"fmt"
	"strings"

	"packhouse-backend/internal/apperr"
	"packhouse-backend/internal/audit"
	"packhouse-backend/internal/auth"
	"packhouse-backend/internal/httpx"
	"packhouse-backend/internal/models"
	"packhouse-backend/internal/store"

	"github.com/gofiber/fiber/v2"
)

type CreateBoxSizeRequest struct {
	Name         string  `json:"name" validate:"required,max=100"`
	WeightKg     float64 `json:"weight_kg" validate:"gt=0"`
	TareWeightKg float64 `json:"tare_weight_kg" validate:"gte=0"`
}

type CreateBinTypeRequest struct {
	Name            string  `json:"name" validate:"required,max=100"`
	DefaultWeightKg float64 `json:"default_weight_kg" validate:"gt=0"`
	TareWeightKg    float64 `json:"tare_weight_kg" validate:"gte=0"`
}

type PalletCapacityRequest struct {
	BoxSizeID     uint `json:"box_size_id" validate:"required"`
	CapacityBoxes int  `json:"capacity_boxes" validate:"gt=0"`
}

type CreatePalletTypeRequest struct {
	Name          string                  `json:"name" validate:"required,max=100"`
	CapacityBoxes int                     `json:"capacity_boxes" validate:"gt=0"`
	Capacities    []PalletCapacityRequest `json:"capacities" validate:"dive"`
}

// ----------------------------------------
// BOX SIZES
// ----------------------------------------

// POST /api/admin/box-sizes
func CreateBoxSizeHandler(st store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateBoxSizeRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		if body.TareWeightKg >= body.WeightKg {
			return apperr.Validation("tare_exceeds_weight", "tare must be below the carton weight", "tare_weight_kg")
		}
		scope := auth.Scope(c)
		box := models.BoxSize{
			EnterpriseID: scope.EnterpriseID,
			Name:         strings.TrimSpace(body.Name),
			WeightKg:     body.WeightKg,
			TareWeightKg: body.TareWeightKg,
		}
		err := st.Tx(c.UserContext(), func(tx store.Tx) error {
			if err := tx.CreateBoxSize(&box); err != nil {
				return err
			}
			return audit.WriteLog(tx, scope, audit.LogOptions{
				EntityType:  "box_size",
				EntityID:    box.ID,
				Action:      models.AuditActionCreate,
				Description: "Box size created: " + box.Name,
				After:       box,
			})
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(box)
	}
}

// GET /api/box-sizes
func ListBoxSizesHandler(st store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var out []models.BoxSize
		err := st.Tx(c.UserContext(), func(tx store.Tx) error {
			var err error
			out, err = tx.ListBoxSizes(auth.Scope(c).EnterpriseID)
			return err
		})
		if err != nil {
			return err
		}
		return c.JSON(out)
	}
}

// ----------------------------------------
// BIN TYPES
// ----------------------------------------

// POST /api/admin/bin-types
func CreateBinTypeHandler(st store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateBinTypeRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		if body.TareWeightKg >= body.DefaultWeightKg {
			return apperr.Validation("tare_exceeds_weight", "tare must be below the bin weight", "tare_weight_kg")
		}
		scope := auth.Scope(c)
		bin := models.BinType{
			EnterpriseID:    scope.EnterpriseID,
			Name:            strings.TrimSpace(body.Name),
			DefaultWeightKg: body.DefaultWeightKg,
			TareWeightKg:    body.TareWeightKg,
		}
		err := st.Tx(c.UserContext(), func(tx store.Tx) error {
			if err := tx.CreateBinType(&bin); err != nil {
				return err
			}
			return audit.WriteLog(tx, scope, audit.LogOptions{
				EntityType:  "bin_type",
				EntityID:    bin.ID,
				Action:      models.AuditActionCreate,
				Description: "Bin type created: " + bin.Name,
				After:       bin,
			})
		})
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(bin)
	}
}

// GET /api/bin-types
func ListBinTypesHandler(st store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var out []models.BinType
		err := st.Tx(c.UserContext(), func(tx store.Tx) error {
			var err error
			out, err = tx.ListBinTypes(auth.Scope(c).EnterpriseID)
			return err
		})
		if err != nil {
			return err
		}
		return c.JSON(out)
	}
}

// ----------------------------------------
// PALLET TYPES
// ----------------------------------------

// POST /api/admin/pallet-types
// Capacities override capacity_boxes for the listed box sizes.
func CreatePalletTypeHandler(st store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreatePalletTypeRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}
		scope := auth.Scope(c)
		pt := models.PalletType{
			EnterpriseID:  scope.EnterpriseID,
			Name:          strings.TrimSpace(body.Name),
			CapacityBoxes: body.CapacityBoxes,
		}

		err := st.Tx(c.UserContext(), func(tx store.Tx) error {
			seen := map[uint]bool{}
			for i, cp := range body.Capacities {
				field := fmt.Sprintf("capacities[%d].box_size_id", i)
				if seen[cp.BoxSizeID] {
					return apperr.Validation("duplicate_box_size", "box size listed twice", field)
				}
				seen[cp.BoxSizeID] = true
				if _, err := tx.GetBoxSize(scope.EnterpriseID, cp.BoxSizeID); err != nil {
					if apperr.KindOf(err) == apperr.KindNotFound {
						return apperr.Validation("unknown_box_size", fmt.Sprintf("box size %d does not exist", cp.BoxSizeID), field)
					}
					return err
				}
				pt.Capacities = append(pt.Capacities, models.PalletTypeCapacity{
					BoxSizeID:     cp.BoxSizeID,
					CapacityBoxes: cp.CapacityBoxes,
				})
			}
			if err := tx.CreatePalletType(&pt); err != nil {
				return err
			}
			return audit.WriteLog(tx, scope, audit.LogOptions{
				EntityType:  "pallet_type",
				EntityID:    pt.ID,
				Action:      models.AuditActionCreate,
				Description: "Pallet type created: " + pt.Name,
				After:       pt,
			})
		})
		if errors.Is(err, store.ErrConflict) {
			return apperr.Conflict("pallet_type_exists", fmt.Sprintf("pallet type %q already exists", pt.Name))
		}
		if err != nil {
			return err
		}
		return c.Status(fiber.StatusCreated).JSON(pt)
	}
}

// GET /api/pallet-types
func ListPalletTypesHandler(st store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var out []models.PalletType
		err := st.Tx(c.UserContext(), func(tx store.Tx) error {
			var err error
			out, err = tx.ListPalletTypes(auth.Scope(c).EnterpriseID)
			return err
		})
		if err != nil {
			return err
		}
		return c.JSON(out)
	}
}
