package models

type UserRole string

const (
	UserRoleViewer   UserRole = "viewer"
	UserRoleUploader UserRole = "uploader"
	UserRoleAdmin    UserRole = "admin"
)

// ValidRole reports whether value is one of the three known roles.
// Anything else is rejected outright; there is no fallback role.
func ValidRole(value UserRole) bool {
	switch value {
	case UserRoleViewer, UserRoleUploader, UserRoleAdmin:
		return true
	default:
		return false
	}
}

type User struct {
	BaseModel
	Email   string   `json:"email" gorm:"type:varchar(255);uniqueIndex;not null"`
	Name    string   `json:"name" gorm:"type:varchar(255)"`
	Picture *string  `json:"picture,omitempty" gorm:"type:text"`
	Role    UserRole `json:"role" gorm:"type:varchar(20);not null;default:'viewer'"`
	Active  bool     `json:"active" gorm:"not null;default:true"`

	Media     []Media    `json:"-" gorm:"foreignKey:UploaderID"`
	Playlists []Playlist `json:"-" gorm:"foreignKey:OwnerID"`
}
