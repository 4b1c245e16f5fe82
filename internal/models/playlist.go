package models

import "github.com/google/uuid"

type Playlist struct {
	BaseModel
	Name        string    `json:"name" gorm:"type:varchar(255);not null"`
	Description *string   `json:"description,omitempty" gorm:"type:text"`
	OwnerID     uuid.UUID `json:"ownerID" gorm:"type:uuid;not null;index"`

	Owner User           `json:"-" gorm:"foreignKey:OwnerID;references:ID"`
	Items []PlaylistItem `json:"items,omitempty" gorm:"foreignKey:PlaylistID"`
}

func (PlaylistItem) TableName() string { return "playlist_items" }

// PlaylistItem is one membership row. The composite primary key makes a
// duplicate add a natural no-op at the application layer.
type PlaylistItem struct {
	PlaylistID uuid.UUID `json:"playlistID" gorm:"type:uuid;primaryKey"`
	MediaID    uuid.UUID `json:"mediaID" gorm:"type:uuid;primaryKey"`
	Position   int       `json:"position" gorm:"not null;default:0"`

	Media Media `json:"media,omitempty" gorm:"foreignKey:MediaID;references:ID"`
}
