package users

import (
	"strings"
	"time"
)

// Profile is the persisted record backing a signed-in author.
type Profile struct {
	ID           string    `gorm:"column:id;primaryKey;size:190;not null"`
	Email        string    `gorm:"column:email;size:320;uniqueIndex"`
	Username     string    `gorm:"column:username;size:320"`
	DisplayName  string    `gorm:"column:display_name;size:320"`
	AvatarURL    string    `gorm:"column:avatar_url;size:512"`
	PasswordHash string    `gorm:"column:password_hash;size:190"`
	Admin        bool      `gorm:"column:admin;not null;default:false"`
	CreatedAt    time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// TableName exposes the table backing user profiles.
func (Profile) TableName() string {
	return "user_profiles"
}

// defaultUsername derives a username from the local part of an email address.
func defaultUsername(email string) string {
	email = strings.TrimSpace(email)
	if at := strings.Index(email, "@"); at > 0 {
		return email[:at]
	}
	return email
}

func normalize(value string) string {
	return strings.TrimSpace(value)
}
