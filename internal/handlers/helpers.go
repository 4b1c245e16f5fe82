package handlers

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/cottageplayer/backend/internal/services"
	"github.com/cottageplayer/backend/internal/session"
	"github.com/cottageplayer/backend/pkg/utils"
)

func parseUUID(value string) (uuid.UUID, error) {
	return uuid.Parse(strings.TrimSpace(value))
}

// serviceError maps the service error taxonomy onto HTTP statuses. Anything
// unrecognized is a generic 500 so storage details never leak to clients.
func serviceError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, services.ErrNotFound):
		return utils.Error(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, services.ErrForbidden):
		return utils.Error(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, services.ErrSignupDisabled):
		return utils.Error(c, fiber.StatusForbidden, "access pending: ask an admin to authorize your account")
	case errors.Is(err, services.ErrInvariantViolation):
		return utils.Error(c, fiber.StatusConflict, err.Error())
	case errors.Is(err, services.ErrIdentity), errors.Is(err, session.ErrInvalidSession):
		return utils.Error(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, services.ErrUnknownTag),
		errors.Is(err, services.ErrUnknownPlaylistName),
		errors.Is(err, services.ErrUnsupportedMedia),
		errors.Is(err, services.ErrInvalidRole):
		return utils.Error(c, fiber.StatusBadRequest, err.Error())
	default:
		return utils.Error(c, fiber.StatusInternalServerError, "internal error")
	}
}
