package models

import (
	"time"

	"github.com/google/uuid"
)

// ReportUpdate is one audit-trail entry. A row exists only when a PATCH
// actually changed status or carried a non-empty note.
type ReportUpdate struct {
	ID        uuid.UUID `gorm:"type:uuid;primaryKey" json:"id"`
	ReportID  uuid.UUID `gorm:"type:uuid;not null;index" json:"reportId"`
	StaffID   uuid.UUID `gorm:"type:uuid;not null;index" json:"staffId"`
	Action    string    `gorm:"size:100;not null" json:"action"`
	Details   string    `gorm:"size:1000" json:"details,omitempty"`
	CreatedAt time.Time `json:"createdAt"`

	Staff *User `gorm:"foreignKey:StaffID" json:"staff,omitempty"`
}
