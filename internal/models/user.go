package models

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User is a Discord identity. Profile fields are refreshed on every sign-in;
// IsStaff is derived from the staff allow-list at sign-in and persisted so the
// auth middleware never re-reads the list per request.
type User struct {
	ID            uuid.UUID      `gorm:"type:uuid;primaryKey" json:"id"`
	DiscordID     string         `gorm:"size:32;not null;uniqueIndex" json:"discordId"`
	Username      string         `gorm:"size:100;not null" json:"username"`
	Discriminator string         `gorm:"size:10" json:"discriminator,omitempty"`
	Avatar        string         `gorm:"size:255" json:"avatar,omitempty"`
	Email         string         `gorm:"size:255" json:"-"`
	IsStaff       bool           `gorm:"not null;default:false" json:"isStaff"`
	CreatedAt     time.Time      `json:"createdAt"`
	UpdatedAt     time.Time      `json:"updatedAt"`
	DeletedAt     gorm.DeletedAt `gorm:"index" json:"-"`
}
