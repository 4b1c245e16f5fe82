package services

import (
	"context"
	"errors"
	"bytes"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cottageplayer/backend/internal/authz"
	"github.com/cottageplayer/backend/internal/config"
	"github.com/cottageplayer/backend/internal/models"
	"github.com/cottageplayer/backend/pkg/logger"
	"github.com/cottageplayer/backend/pkg/utils"
)

// BlobStore is the boundary to the byte storage collaborator. The library
// only ever addresses blobs by the opaque object name it minted at upload.
type BlobStore interface {
	Put(ctx context.Context, objectName string, reader io.Reader, size int64, contentType string) error
	Get(ctx context.Context, objectName string) (io.ReadSeekCloser, error)
	Delete(ctx context.Context, objectName string) error
	PresignedGetURL(ctx context.Context, objectName string, expiry time.Duration) (string, error)
}

// ContentURLTTL bounds how long a direct content link stays valid.
const ContentURLTTL = 15 * time.Minute

// LibraryService is the media catalog: uploads, metadata, deletion and
// filtered listing.
type LibraryService struct {
	DB      *gorm.DB
	Blobs   BlobStore
	Library config.LibraryConfig
}

func NewLibraryService(db *gorm.DB, blobs BlobStore, library config.LibraryConfig) *LibraryService {
	return &LibraryService{DB: db, Blobs: blobs, Library: library}
}

type Upload struct {
	Reader      io.Reader
	Size        int64
	Filename    string
	ContentType string
	// DeclaredKind is optional; when set it must match the kind detected
	// from the content type.
	DeclaredKind models.MediaKind
	Title        string
	Description  string
	Tags         []string
}

type MetadataPatch struct {
	Title       *string
	Description *string
	Tags        *[]string
}

type Filter struct {
	Kind       *models.MediaKind
	Tag        *string
	PlaylistID *uuid.UUID
	Page       int
	Limit      int
}

// KindFromMime maps a mime type onto the media kind enum. image/gif gets its
// own kind so the UI can loop it inline.
func KindFromMime(mimeType string) (models.MediaKind, bool) {
	normalized := strings.ToLower(strings.TrimSpace(mimeType))
	switch {
	case normalized == "image/gif":
		return models.MediaKindGIF, true
	case strings.HasPrefix(normalized, "audio/"):
		return models.MediaKindAudio, true
	case strings.HasPrefix(normalized, "video/"):
		return models.MediaKindVideo, true
	case strings.HasPrefix(normalized, "image/"):
		return models.MediaKindImage, true
	default:
		return "", false
	}
}

// canonicalTag resolves a raw tag to its catalog spelling.
func (s *LibraryService) canonicalTag(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, tag := range s.Library.TagCatalog {
		if strings.EqualFold(tag, trimmed) {
			return tag, true
		}
	}
	return "", false
}

// normalizeTags enforces the closed tag catalog. Unknown tags either fail the
// whole call or are silently dropped, per configuration.
func (s *LibraryService) normalizeTags(tags []string) ([]string, error) {
	var normalized []string
	seen := map[string]bool{}
	for _, raw := range tags {
		if strings.TrimSpace(raw) == "" {
			continue
		}
		canonical, ok := s.canonicalTag(raw)
		if !ok {
			if s.Library.TagPolicy == config.TagPolicyDrop {
				continue
			}
			return nil, fmt.Errorf("%w: %q", ErrUnknownTag, raw)
		}
		if !seen[canonical] {
			seen[canonical] = true
			normalized = append(normalized, canonical)
		}
	}
	return normalized, nil
}

func (s *LibraryService) Upload(ctx context.Context, user *models.User, upload Upload) (*models.Media, error) {
	if d := authz.Authorize(user, authz.CapUpload); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	kind, ok := KindFromMime(upload.ContentType)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMedia, upload.ContentType)
	}
	if upload.DeclaredKind != "" && upload.DeclaredKind != kind {
		return nil, fmt.Errorf("%w: declared %q but content is %q", ErrUnsupportedMedia, upload.DeclaredKind, kind)
	}

	tags, err := s.normalizeTags(upload.Tags)
	if err != nil {
		return nil, err
	}

	filename := filepath.Base(strings.TrimSpace(upload.Filename))
	if filename == "" || filename == "." {
		return nil, fmt.Errorf("%w: missing filename", ErrUnsupportedMedia)
	}

	// Image kinds are buffered so the same bytes can feed the thumbnail
	// renderer after the blob write; everything else streams straight through.
	reader := upload.Reader
	var thumbSource []byte
	if kind == models.MediaKindImage || kind == models.MediaKindGIF {
		data, err := io.ReadAll(upload.Reader)
		if err != nil {
			return nil, err
		}
		thumbSource = data
		reader = bytes.NewReader(data)
	}

	objectName := fmt.Sprintf("%s/%s/%s", user.ID, uuid.New(), filename)
	if err := s.Blobs.Put(ctx, objectName, reader, upload.Size, upload.ContentType); err != nil {
		return nil, err
	}

	media := models.Media{
		Kind:         kind,
		MimeType:     upload.ContentType,
		OriginalName: filename,
		StoragePath:  objectName,
		Tags:         models.StringList(tags),
		Size:         upload.Size,
		UploaderID:   user.ID,
	}
	if thumbName := s.renderThumbnail(ctx, objectName, kind, thumbSource); thumbName != "" {
		media.ThumbnailPath = &thumbName
	}
	if upload.Title != "" {
		title := upload.Title
		media.Title = &title
	}
	if upload.Description != "" {
		description := upload.Description
		media.Description = &description
	}

	if err := s.DB.WithContext(ctx).Create(&media).Error; err != nil {
		// The row is the source of truth; blobs without one must not linger.
		_ = s.Blobs.Delete(ctx, objectName)
		if media.ThumbnailPath != nil {
			_ = s.Blobs.Delete(ctx, *media.ThumbnailPath)
		}
		return nil, err
	}

	logger.InfoWithUser(user.ID.String(), "media_uploaded", map[string]interface{}{
		"media_id": media.ID.String(),
		"kind":     string(kind),
		"size":     upload.Size,
	})
	return &media, nil
}

func (s *LibraryService) Get(ctx context.Context, id uuid.UUID) (*models.Media, error) {
	var media models.Media
	err := s.DB.WithContext(ctx).First(&media, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &media, nil
}

func (s *LibraryService) UpdateMetadata(ctx context.Context, user *models.User, id uuid.UUID, patch MetadataPatch) (*models.Media, error) {
	media, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := authz.CanManageMedia(user, media.UploaderID); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	updates := map[string]interface{}{}
	if patch.Title != nil {
		if trimmed := strings.TrimSpace(*patch.Title); trimmed == "" {
			updates["title"] = nil
			media.Title = nil
		} else {
			updates["title"] = trimmed
			media.Title = &trimmed
		}
	}
	if patch.Description != nil {
		if trimmed := strings.TrimSpace(*patch.Description); trimmed == "" {
			updates["description"] = nil
			media.Description = nil
		} else {
			updates["description"] = trimmed
			media.Description = &trimmed
		}
	}
	if patch.Tags != nil {
		tags, err := s.normalizeTags(*patch.Tags)
		if err != nil {
			return nil, err
		}
		media.Tags = models.StringList(tags)
		updates["tags"] = media.Tags
	}

	if len(updates) == 0 {
		return media, nil
	}
	if err := s.DB.WithContext(ctx).Model(&models.Media{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, err
	}
	return media, nil
}

// Delete removes the catalog row and every playlist membership referencing it
// in one transaction, then drops the blob. A dangling blob is storage garbage
// at worst; a dangling membership row would be corruption, so the row side
// goes first and atomically.
func (s *LibraryService) Delete(ctx context.Context, user *models.User, id uuid.UUID) error {
	media, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if d := authz.CanManageMedia(user, media.UploaderID); !d.Allowed {
		return fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("media_id = ?", id).Delete(&models.PlaylistItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Media{}, "id = ?", id).Error
	})
	if err != nil {
		return err
	}

	if err := s.Blobs.Delete(ctx, media.StoragePath); err != nil {
		return err
	}
	if media.ThumbnailPath != nil {
		_ = s.Blobs.Delete(ctx, *media.ThumbnailPath)
	}

	logger.InfoWithUser(user.ID.String(), "media_deleted", map[string]interface{}{
		"media_id": id.String(),
	})
	return nil
}

// List returns a fresh snapshot of the catalog matching the filter, newest
// first. Tag filtering is single-tag AND semantics over the JSON column.
func (s *LibraryService) List(ctx context.Context, filter Filter) ([]models.Media, int64, error) {
	query := s.DB.WithContext(ctx).Model(&models.Media{})

	if filter.Kind != nil {
		if !models.ValidMediaKind(*filter.Kind) {
			return nil, 0, fmt.Errorf("%w: %q", ErrUnsupportedMedia, *filter.Kind)
		}
		query = query.Where("kind = ?", *filter.Kind)
	}
	if filter.Tag != nil && *filter.Tag != "" {
		// Only catalog literals reach the LIKE pattern; an arbitrary string
		// could smuggle wildcards into it.
		canonical, ok := s.canonicalTag(*filter.Tag)
		if !ok {
			return nil, 0, fmt.Errorf("%w: %q", ErrUnknownTag, *filter.Tag)
		}
		// Tags are stored as a JSON array of catalog values, so an exact
		// quoted substring match is unambiguous.
		query = query.Where("tags LIKE ?", `%"`+canonical+`"%`)
	}
	if filter.PlaylistID != nil {
		query = query.
			Joins("JOIN playlist_items ON playlist_items.media_id = media.id").
			Where("playlist_items.playlist_id = ?", *filter.PlaylistID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 50
	}

	var items []models.Media
	err := utils.ApplyPagination(
		query.Order("media.created_at DESC"),
		utils.Pagination{Page: filter.Page, Limit: filter.Limit},
	).Find(&items).Error
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Open streams the media bytes for an authenticated viewer.
func (s *LibraryService) Open(ctx context.Context, user *models.User, id uuid.UUID) (*models.Media, io.ReadSeekCloser, error) {
	if d := authz.Authorize(user, authz.CapView); !d.Allowed {
		return nil, nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	media, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}

	reader, err := s.Blobs.Get(ctx, media.StoragePath)
	if err != nil {
		return nil, nil, err
	}
	return media, reader, nil
}

// ContentURL hands out a short-lived direct link so the browser can stream
// large media from the object store instead of proxying bytes through the app.
func (s *LibraryService) ContentURL(ctx context.Context, user *models.User, id uuid.UUID) (string, error) {
	if d := authz.Authorize(user, authz.CapView); !d.Allowed {
		return "", fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	media, err := s.Get(ctx, id)
	if err != nil {
		return "", err
	}
	return s.Blobs.PresignedGetURL(ctx, media.StoragePath, ContentURLTTL)
}

// Thumbnail streams the preview image, when one was rendered at upload time.
func (s *LibraryService) Thumbnail(ctx context.Context, user *models.User, id uuid.UUID) (io.ReadSeekCloser, error) {
	if d := authz.Authorize(user, authz.CapView); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	media, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if media.ThumbnailPath == nil {
		return nil, fmt.Errorf("%w: media has no thumbnail", ErrNotFound)
	}
	return s.Blobs.Get(ctx, *media.ThumbnailPath)
}
