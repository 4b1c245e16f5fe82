package handlers

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/cottageplayer/backend/internal/middleware"
	"github.com/cottageplayer/backend/internal/services"
	"github.com/cottageplayer/backend/pkg/utils"
)

type PlaylistsHandler struct {
	Playlists *services.PlaylistService
}

func NewPlaylistsHandler(playlists *services.PlaylistService) *PlaylistsHandler {
	return &PlaylistsHandler{Playlists: playlists}
}

type createPlaylistRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

func (h *PlaylistsHandler) Create(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	var req createPlaylistRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Name) == "" {
		return utils.Error(c, fiber.StatusBadRequest, "name is required")
	}

	playlist, err := h.Playlists.Create(c.Context(), currentUser, req.Name, req.Description)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusCreated, playlist)
}

func (h *PlaylistsHandler) List(c *fiber.Ctx) error {
	playlists, err := h.Playlists.List(c.Context())
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, playlists)
}

func (h *PlaylistsHandler) Get(c *fiber.Ctx) error {
	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid playlist id")
	}

	playlist, err := h.Playlists.Get(c.Context(), id)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, playlist)
}

type updatePlaylistRequest struct {
	Name        *string `json:"name"`
	Description *string `json:"description"`
}

func (h *PlaylistsHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid playlist id")
	}

	var req updatePlaylistRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	playlist, err := h.Playlists.Update(c.Context(), currentUser, id, req.Name, req.Description)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, playlist)
}

func (h *PlaylistsHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid playlist id")
	}

	if err := h.Playlists.Delete(c.Context(), currentUser, id); err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "playlist deleted"})
}

func (h *PlaylistsHandler) AddItem(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	playlistID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid playlist id")
	}
	mediaID, err := parseUUID(c.Params("mediaID"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid media id")
	}

	if err := h.Playlists.AddItem(c.Context(), currentUser, playlistID, mediaID); err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "item added"})
}

func (h *PlaylistsHandler) RemoveItem(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	playlistID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid playlist id")
	}
	mediaID, err := parseUUID(c.Params("mediaID"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid media id")
	}

	if err := h.Playlists.RemoveItem(c.Context(), currentUser, playlistID, mediaID); err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "item removed"})
}

type setItemsRequest struct {
	MediaIDs []string `json:"mediaIDs"`
}

// SetItems replaces the playlist's ordered contents wholesale.
func (h *PlaylistsHandler) SetItems(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	playlistID, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid playlist id")
	}

	var req setItemsRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	mediaIDs := make([]uuid.UUID, 0, len(req.MediaIDs))
	for _, raw := range req.MediaIDs {
		id, err := parseUUID(raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid media id: "+raw)
		}
		mediaIDs = append(mediaIDs, id)
	}

	if err := h.Playlists.SetItems(c.Context(), currentUser, playlistID, mediaIDs); err != nil {
		return serviceError(c, err)
	}

	playlist, err := h.Playlists.Get(c.Context(), playlistID)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, playlist)
}
