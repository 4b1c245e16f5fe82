package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/cottageplayer/backend/internal/authz"
	"github.com/cottageplayer/backend/internal/models"
	"github.com/cottageplayer/backend/pkg/logger"
)

// PlaylistService owns playlists and their ordered membership rows.
type PlaylistService struct {
	DB *gorm.DB
	// NameCatalog, when non-empty, constrains playlist names to the
	// configured pill options.
	NameCatalog []string
}

func NewPlaylistService(db *gorm.DB, nameCatalog []string) *PlaylistService {
	return &PlaylistService{DB: db, NameCatalog: nameCatalog}
}

func (s *PlaylistService) validateName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty name", ErrUnknownPlaylistName)
	}
	if len(s.NameCatalog) == 0 {
		return trimmed, nil
	}
	for _, allowed := range s.NameCatalog {
		if strings.EqualFold(allowed, trimmed) {
			return allowed, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownPlaylistName, trimmed)
}

func (s *PlaylistService) Create(ctx context.Context, user *models.User, name, description string) (*models.Playlist, error) {
	if d := authz.Authorize(user, authz.CapManageOwnPlaylist); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	validName, err := s.validateName(name)
	if err != nil {
		return nil, err
	}

	playlist := models.Playlist{Name: validName, OwnerID: user.ID}
	if trimmed := strings.TrimSpace(description); trimmed != "" {
		playlist.Description = &trimmed
	}

	if err := s.DB.WithContext(ctx).Create(&playlist).Error; err != nil {
		return nil, err
	}

	logger.InfoWithUser(user.ID.String(), "playlist_created", map[string]interface{}{
		"playlist_id": playlist.ID.String(),
		"name":        validName,
	})
	return &playlist, nil
}

func (s *PlaylistService) Get(ctx context.Context, id uuid.UUID) (*models.Playlist, error) {
	var playlist models.Playlist
	err := s.DB.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("playlist_items.position ASC")
		}).
		Preload("Items.Media").
		First(&playlist, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &playlist, nil
}

func (s *PlaylistService) List(ctx context.Context) ([]models.Playlist, error) {
	var playlists []models.Playlist
	err := s.DB.WithContext(ctx).
		Preload("Items", func(db *gorm.DB) *gorm.DB {
			return db.Order("playlist_items.position ASC")
		}).
		Order("created_at ASC").
		Find(&playlists).Error
	if err != nil {
		return nil, err
	}
	return playlists, nil
}

// Update renames and/or re-describes a playlist. Owner or admin only.
func (s *PlaylistService) Update(ctx context.Context, user *models.User, id uuid.UUID, name, description *string) (*models.Playlist, error) {
	playlist, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if d := authz.CanManagePlaylist(user, playlist.OwnerID); !d.Allowed {
		return nil, fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	updates := map[string]interface{}{}
	if name != nil {
		validName, err := s.validateName(*name)
		if err != nil {
			return nil, err
		}
		updates["name"] = validName
		playlist.Name = validName
	}
	if description != nil {
		if trimmed := strings.TrimSpace(*description); trimmed == "" {
			updates["description"] = nil
			playlist.Description = nil
		} else {
			updates["description"] = trimmed
			playlist.Description = &trimmed
		}
	}

	if len(updates) == 0 {
		return playlist, nil
	}
	if err := s.DB.WithContext(ctx).Model(&models.Playlist{}).Where("id = ?", id).Updates(updates).Error; err != nil {
		return nil, err
	}
	return playlist, nil
}

// Delete removes the playlist and its membership rows. Media items are
// untouched.
func (s *PlaylistService) Delete(ctx context.Context, user *models.User, id uuid.UUID) error {
	playlist, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	if d := authz.CanManagePlaylist(user, playlist.OwnerID); !d.Allowed {
		return fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("playlist_id = ?", id).Delete(&models.PlaylistItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(&models.Playlist{}, "id = ?", id).Error
	})
}

// AddItem appends the media item at the end of the playlist. Adding an item
// that is already a member is a no-op.
func (s *PlaylistService) AddItem(ctx context.Context, user *models.User, playlistID, mediaID uuid.UUID) error {
	playlist, err := s.Get(ctx, playlistID)
	if err != nil {
		return err
	}
	if d := authz.CanManagePlaylist(user, playlist.OwnerID); !d.Allowed {
		return fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var media models.Media
		if err := tx.First(&media, "id = ?", mediaID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrNotFound
			}
			return err
		}

		var existing int64
		if err := tx.Model(&models.PlaylistItem{}).
			Where("playlist_id = ? AND media_id = ?", playlistID, mediaID).
			Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return nil
		}

		var count int64
		if err := tx.Model(&models.PlaylistItem{}).
			Where("playlist_id = ?", playlistID).
			Count(&count).Error; err != nil {
			return err
		}

		return tx.Create(&models.PlaylistItem{
			PlaylistID: playlistID,
			MediaID:    mediaID,
			Position:   int(count),
		}).Error
	})
}

// RemoveItem drops the membership row. Removing a non-member is a no-op.
func (s *PlaylistService) RemoveItem(ctx context.Context, user *models.User, playlistID, mediaID uuid.UUID) error {
	playlist, err := s.Get(ctx, playlistID)
	if err != nil {
		return err
	}
	if d := authz.CanManagePlaylist(user, playlist.OwnerID); !d.Allowed {
		return fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	return s.DB.WithContext(ctx).
		Where("playlist_id = ? AND media_id = ?", playlistID, mediaID).
		Delete(&models.PlaylistItem{}).Error
}

// SetItems replaces the ordered membership wholesale. Every referenced media
// item must exist or the call fails before anything changes.
func (s *PlaylistService) SetItems(ctx context.Context, user *models.User, playlistID uuid.UUID, mediaIDs []uuid.UUID) error {
	playlist, err := s.Get(ctx, playlistID)
	if err != nil {
		return err
	}
	if d := authz.CanManagePlaylist(user, playlist.OwnerID); !d.Allowed {
		return fmt.Errorf("%w: %s", ErrForbidden, d.Reason)
	}

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var found int64
		if len(mediaIDs) > 0 {
			if err := tx.Model(&models.Media{}).Where("id IN ?", mediaIDs).Count(&found).Error; err != nil {
				return err
			}
			if found != int64(len(dedupe(mediaIDs))) {
				return ErrNotFound
			}
		}

		if err := tx.Where("playlist_id = ?", playlistID).Delete(&models.PlaylistItem{}).Error; err != nil {
			return err
		}

		for position, mediaID := range dedupe(mediaIDs) {
			if err := tx.Create(&models.PlaylistItem{
				PlaylistID: playlistID,
				MediaID:    mediaID,
				Position:   position,
			}).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

func dedupe(ids []uuid.UUID) []uuid.UUID {
	seen := make(map[uuid.UUID]bool, len(ids))
	var out []uuid.UUID
	for _, id := range ids {
		if !seen[id] {
			seen[id] = true
			out = append(out, id)
		}
	}
	return out
}
