package auth

import (
	"errors"
	"strings"

	"packhouse-backend/internal/apperr"
	"packhouse-backend/internal/httpx"
	"packhouse-backend/internal/models"
	"packhouse-backend/internal/store"

	"github.com/gofiber/fiber/v2"
	"golang.org/x/crypto/bcrypt"
)

type RegisterEnterpriseRequest struct {
	Enterprise string `json:"enterprise" validate:"required,max=150"`
	Name       string `json:"name" validate:"required,max=100"`
	Email      string `json:"email" validate:"required,email"`
	Password   string `json:"password" validate:"required,min=8"`
}

type CreateUserRequest struct {
	Name     string          `json:"name" validate:"required,max=100"`
	Email    string          `json:"email" validate:"required,email"`
	Password string          `json:"password" validate:"required,min=8"`
	Role     models.UserRole `json:"role" validate:"required,oneof=admin operator"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// RegisterEnterpriseHandler bootstraps a tenant together with its first admin.
func RegisterEnterpriseHandler(st store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body RegisterEnterpriseRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "password could not be hashed")
		}

		ent := models.Enterprise{Name: strings.TrimSpace(body.Enterprise)}
		user := models.User{
			Name:         body.Name,
			Email:        strings.TrimSpace(strings.ToLower(body.Email)),
			PasswordHash: string(hash),
			Role:         models.RoleAdmin,
		}

		err = st.Tx(c.UserContext(), func(tx store.Tx) error {
			if err := tx.CreateEnterprise(&ent); err != nil {
				return err
			}
			user.EnterpriseID = ent.ID
			return tx.CreateUser(&user)
		})
		if errors.Is(err, store.ErrConflict) {
			return apperr.Conflict("already_registered", "enterprise name or email is already registered")
		}
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"enterprise_id": ent.ID,
			"user_id":       user.ID,
			"email":         user.Email,
			"role":          user.Role,
		})
	}
}

// CreateUserHandler adds a user to the caller's enterprise.
func CreateUserHandler(st store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body CreateUserRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}

		hash, err := bcrypt.GenerateFromPassword([]byte(body.Password), bcrypt.DefaultCost)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "password could not be hashed")
		}
		user := models.User{
			EnterpriseID: Scope(c).EnterpriseID,
			Name:         body.Name,
			Email:        strings.TrimSpace(strings.ToLower(body.Email)),
			PasswordHash: string(hash),
			Role:         body.Role,
		}

		err = st.Tx(c.UserContext(), func(tx store.Tx) error {
			return tx.CreateUser(&user)
		})
		if errors.Is(err, store.ErrConflict) {
			return apperr.Conflict("email_taken", "a user with this email already exists")
		}
		if err != nil {
			return err
		}

		return c.Status(fiber.StatusCreated).JSON(fiber.Map{
			"id":    user.ID,
			"email": user.Email,
			"role":  user.Role,
		})
	}
}

func LoginHandler(st store.Store, secret string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body LoginRequest
		if err := httpx.Bind(c, &body); err != nil {
			return err
		}

		var user *models.User
		err := st.Tx(c.UserContext(), func(tx store.Tx) error {
			var err error
			user, err = tx.FindUserByEmail(strings.TrimSpace(body.Email))
			return err
		})
		if err != nil {
			if apperr.KindOf(err) == apperr.KindNotFound {
				return fiber.NewError(fiber.StatusUnauthorized, "invalid email or password")
			}
			return err
		}

		if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(body.Password)); err != nil {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid email or password")
		}

		token, err := GenerateToken(secret, user)
		if err != nil {
			return fiber.NewError(fiber.StatusInternalServerError, "token could not be issued")
		}

		return c.JSON(fiber.Map{
			"token": token,
			"user": fiber.Map{
				"id":            user.ID,
				"name":          user.Name,
				"email":         user.Email,
				"role":          user.Role,
				"enterprise_id": user.EnterpriseID,
			},
		})
	}
}

func MeHandler(st store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		scope := Scope(c)

		var user *models.User
		err := st.Tx(c.UserContext(), func(tx store.Tx) error {
			var err error
			user, err = tx.GetUser(scope.UserID)
			return err
		})
		if err != nil {
			// token is still valid; answer from its claims
			return c.JSON(fiber.Map{
				"user_id":       scope.UserID,
				"role":          c.Locals(CtxUserRoleKey),
				"enterprise_id": scope.EnterpriseID,
			})
		}

		return c.JSON(fiber.Map{
			"user_id":       user.ID,
			"name":          user.Name,
			"email":         user.Email,
			"role":          user.Role,
			"enterprise_id": user.EnterpriseID,
		})
	}
}
