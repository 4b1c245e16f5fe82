package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/cottageplayer/backend/internal/middleware"
	"github.com/cottageplayer/backend/internal/models"
	"github.com/cottageplayer/backend/internal/services"
	"github.com/cottageplayer/backend/pkg/utils"
)

type UsersHandler struct {
	Accounts *services.AccountService
}

func NewUsersHandler(accounts *services.AccountService) *UsersHandler {
	return &UsersHandler{Accounts: accounts}
}

func (h *UsersHandler) List(c *fiber.Ctx) error {
	actor := middleware.GetCurrentUser(c)
	users, err := h.Accounts.List(c.Context(), actor)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, users)
}

type createUserRequest struct {
	Email string          `json:"email"`
	Name  string          `json:"name"`
	Role  models.UserRole `json:"role"`
}

// Create authorizes an account ahead of its first sign-in (or reactivates a
// deactivated one).
func (h *UsersHandler) Create(c *fiber.Ctx) error {
	actor := middleware.GetCurrentUser(c)

	var req createUserRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Email) == "" {
		return utils.Error(c, fiber.StatusBadRequest, "email is required")
	}
	if req.Role == "" {
		req.Role = models.UserRoleViewer
	}

	user, err := h.Accounts.AddOrActivate(c.Context(), actor, req.Email, req.Name, req.Role)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusCreated, user)
}

type setRoleRequest struct {
	Role models.UserRole `json:"role"`
}

func (h *UsersHandler) SetRole(c *fiber.Ctx) error {
	actor := middleware.GetCurrentUser(c)

	targetID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var req setRoleRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	user, err := h.Accounts.SetRole(c.Context(), actor, targetID, req.Role)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, user)
}

type setActiveRequest struct {
	Active *bool `json:"active"`
}

func (h *UsersHandler) SetActive(c *fiber.Ctx) error {
	actor := middleware.GetCurrentUser(c)

	targetID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	var req setActiveRequest
	if err := c.BodyParser(&req); err != nil || req.Active == nil {
		return utils.Error(c, fiber.StatusBadRequest, "active flag is required")
	}

	user, err := h.Accounts.SetActive(c.Context(), actor, targetID, *req.Active)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, user)
}

// Delete deactivates the account. Users are never hard-deleted so uploads
// and playlists keep a valid owner.
func (h *UsersHandler) Delete(c *fiber.Ctx) error {
	actor := middleware.GetCurrentUser(c)

	targetID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid user id")
	}

	if _, err := h.Accounts.SetActive(c.Context(), actor, targetID, false); err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "user deactivated"})
}
