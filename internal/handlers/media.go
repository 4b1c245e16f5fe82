package handlers

import (
	"mime"
	"path/filepath"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/cottageplayer/backend/internal/config"
	"github.com/cottageplayer/backend/internal/middleware"
	"github.com/cottageplayer/backend/internal/models"
	"github.com/cottageplayer/backend/internal/services"
	"github.com/cottageplayer/backend/pkg/utils"
)

type MediaHandler struct {
	Library *services.LibraryService
	Catalog config.LibraryConfig
}

func NewMediaHandler(library *services.LibraryService, catalog config.LibraryConfig) *MediaHandler {
	return &MediaHandler{Library: library, Catalog: catalog}
}

func (h *MediaHandler) Upload(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "file is required")
	}

	filename := filepath.Base(strings.TrimSpace(fileHeader.Filename))
	if filename == "" || filename == "." {
		return utils.Error(c, fiber.StatusBadRequest, "invalid filename")
	}

	contentType := fileHeader.Header.Get("Content-Type")
	if contentType == "" {
		contentType = mime.TypeByExtension(filepath.Ext(filename))
	}

	var tags []string
	for _, tag := range strings.Split(c.FormValue("tags"), ",") {
		if trimmed := strings.TrimSpace(tag); trimmed != "" {
			tags = append(tags, trimmed)
		}
	}

	stream, err := fileHeader.Open()
	if err != nil {
		return utils.Error(c, fiber.StatusInternalServerError, "failed opening uploaded file")
	}
	defer stream.Close()

	media, err := h.Library.Upload(c.Context(), currentUser, services.Upload{
		Reader:       stream,
		Size:         fileHeader.Size,
		Filename:     filename,
		ContentType:  contentType,
		DeclaredKind: models.MediaKind(strings.TrimSpace(c.FormValue("kind"))),
		Title:        strings.TrimSpace(c.FormValue("title")),
		Description:  strings.TrimSpace(c.FormValue("description")),
		Tags:         tags,
	})
	if err != nil {
		return serviceError(c, err)
	}

	return utils.Success(c, fiber.StatusCreated, media)
}

func (h *MediaHandler) List(c *fiber.Ctx) error {
	p := utils.ParsePagination(c)
	filter := services.Filter{Page: p.Page, Limit: p.Limit}

	if kind := strings.TrimSpace(c.Query("kind")); kind != "" {
		mediaKind := models.MediaKind(kind)
		filter.Kind = &mediaKind
	}
	if tag := strings.TrimSpace(c.Query("tag")); tag != "" {
		filter.Tag = &tag
	}
	if raw := strings.TrimSpace(c.Query("playlist")); raw != "" {
		playlistID, err := parseUUID(raw)
		if err != nil {
			return utils.Error(c, fiber.StatusBadRequest, "invalid playlist id")
		}
		filter.PlaylistID = &playlistID
	}

	items, total, err := h.Library.List(c.Context(), filter)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Paginated(c, items, p.Page, p.Limit, total)
}

func (h *MediaHandler) Get(c *fiber.Ctx) error {
	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid media id")
	}

	media, err := h.Library.Get(c.Context(), id)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, media)
}

// Content streams the bytes through the authenticated route; media is never
// mounted publicly.
func (h *MediaHandler) Content(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid media id")
	}

	media, reader, err := h.Library.Open(c.Context(), currentUser, id)
	if err != nil {
		return serviceError(c, err)
	}

	c.Set(fiber.HeaderContentType, media.MimeType)
	return c.SendStream(reader)
}

// ContentURL hands the client a presigned link for direct streaming of large
// media from the object store.
func (h *MediaHandler) ContentURL(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid media id")
	}

	url, err := h.Library.ContentURL(c.Context(), currentUser, id)
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"url":       url,
		"expiresIn": int(services.ContentURLTTL.Seconds()),
	})
}

// Thumbnail streams the preview image rendered at upload time.
func (h *MediaHandler) Thumbnail(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid media id")
	}

	reader, err := h.Library.Thumbnail(c.Context(), currentUser, id)
	if err != nil {
		return serviceError(c, err)
	}

	c.Set(fiber.HeaderContentType, "image/jpeg")
	return c.SendStream(reader)
}

type updateMediaRequest struct {
	Title       *string   `json:"title"`
	Description *string   `json:"description"`
	Tags        *[]string `json:"tags"`
}

func (h *MediaHandler) Update(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid media id")
	}

	var req updateMediaRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid request body")
	}

	media, err := h.Library.UpdateMetadata(c.Context(), currentUser, id, services.MetadataPatch{
		Title:       req.Title,
		Description: req.Description,
		Tags:        req.Tags,
	})
	if err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, media)
}

func (h *MediaHandler) Delete(c *fiber.Ctx) error {
	currentUser := middleware.GetCurrentUser(c)

	id, err := parseUUID(c.Params("id"))
	if err != nil {
		return utils.Error(c, fiber.StatusBadRequest, "invalid media id")
	}

	if err := h.Library.Delete(c.Context(), currentUser, id); err != nil {
		return serviceError(c, err)
	}
	return utils.Success(c, fiber.StatusOK, fiber.Map{"message": "media deleted"})
}

// Catalogs exposes the configured pill options so the client renders the
// same closed sets the server enforces.
func (h *MediaHandler) Catalogs(c *fiber.Ctx) error {
	return utils.Success(c, fiber.StatusOK, fiber.Map{
		"tags":          h.Catalog.TagCatalog,
		"playlistNames": h.Catalog.PlaylistNameCatalog,
	})
}
