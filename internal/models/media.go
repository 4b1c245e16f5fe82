package models

import (
	"database/sql/driver"
	"encoding/json"
	"errors"

	"github.com/google/uuid"
)

type MediaKind string

const (
	MediaKindAudio MediaKind = "audio"
	MediaKindVideo MediaKind = "video"
	MediaKindImage MediaKind = "image"
	MediaKindGIF   MediaKind = "gif"
)

func ValidMediaKind(value MediaKind) bool {
	switch value {
	case MediaKindAudio, MediaKindVideo, MediaKindImage, MediaKindGIF:
		return true
	default:
		return false
	}
}

// StringList stores a string slice as a JSON column so the same model works
// on both postgres and the sqlite test database.
type StringList []string

func (l StringList) Value() (driver.Value, error) {
	if l == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(l))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (l *StringList) Scan(value interface{}) error {
	if value == nil {
		*l = StringList{}
		return nil
	}

	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return errors.New("unsupported type for StringList")
	}

	if len(data) == 0 {
		*l = StringList{}
		return nil
	}
	return json.Unmarshal(data, (*[]string)(l))
}

// TableName is pinned because "media" does not pluralize cleanly and the
// catalog's list query joins against it by name.
func (Media) TableName() string { return "media" }

type Media struct {
	BaseModel
	Kind            MediaKind  `json:"kind" gorm:"type:varchar(10);not null;index"`
	MimeType        string     `json:"mimeType" gorm:"type:varchar(255);not null"`
	OriginalName    string     `json:"originalName" gorm:"type:varchar(255);not null"`
	Title           *string    `json:"title,omitempty" gorm:"type:varchar(255)"`
	Description     *string    `json:"description,omitempty" gorm:"type:text"`
	StoragePath     string     `json:"-" gorm:"type:text;not null"`
	ThumbnailPath   *string    `json:"-" gorm:"type:text"`
	Tags            StringList `json:"tags" gorm:"type:text;not null"`
	DurationSeconds *float64   `json:"durationSeconds,omitempty"`
	Size            int64      `json:"size" gorm:"not null;default:0"`
	UploaderID      uuid.UUID  `json:"uploaderID" gorm:"type:uuid;not null;index"`

	Uploader  User           `json:"-" gorm:"foreignKey:UploaderID;references:ID"`
	Playlists []PlaylistItem `json:"-" gorm:"foreignKey:MediaID"`
}
