package models

import (
	"time"

	"github.com/google/uuid"
)

type ReportType string

const (
	ReportTypeDiscordUser    ReportType = "DISCORD_USER"
	ReportTypeDiscordServer  ReportType = "DISCORD_SERVER"
	ReportTypeSecurityIssue  ReportType = "SECURITY_ISSUE"
	ReportTypeDataProtection ReportType = "DATA_PROTECTION"
	ReportTypeSafeguarding   ReportType = "SAFEGUARDING"
	ReportTypeOther          ReportType = "OTHER"
)

func (t ReportType) Valid() bool {
	switch t {
	case ReportTypeDiscordUser, ReportTypeDiscordServer, ReportTypeSecurityIssue,
		ReportTypeDataProtection, ReportTypeSafeguarding, ReportTypeOther:
		return true
	}
	return false
}

type UrgencyLevel string

const (
	UrgencyLow      UrgencyLevel = "LOW"
	UrgencyMedium   UrgencyLevel = "MEDIUM"
	UrgencyHigh     UrgencyLevel = "HIGH"
	UrgencyCritical UrgencyLevel = "CRITICAL"
)

func (u UrgencyLevel) Valid() bool {
	switch u {
	case UrgencyLow, UrgencyMedium, UrgencyHigh, UrgencyCritical:
		return true
	}
	return false
}

type ReportStatus string

const (
	StatusOpen       ReportStatus = "OPEN"
	StatusInProgress ReportStatus = "IN_PROGRESS"
	StatusResolved   ReportStatus = "RESOLVED"
	StatusClosed     ReportStatus = "CLOSED"
	StatusEscalated  ReportStatus = "ESCALATED"
)

func (s ReportStatus) Valid() bool {
	switch s {
	case StatusOpen, StatusInProgress, StatusResolved, StatusClosed, StatusEscalated:
		return true
	}
	return false
}

// Report is a submitted incident. CaseNumber and ReferenceNumber are generated
// at creation and carry unique indexes; collisions surface as duplicate-key
// errors and the lifecycle service regenerates. Records expire 20 days after
// creation; retention is enforced store-side, never by the application.
type Report struct {
	ID              uuid.UUID    `gorm:"type:uuid;primaryKey" json:"id"`
	CaseNumber      string       `gorm:"size:20;not null;uniqueIndex" json:"caseNumber"`
	ReferenceNumber string       `gorm:"size:12;not null;uniqueIndex" json:"referenceNumber"`
	ReportType      ReportType   `gorm:"size:20;not null" json:"reportType"`
	UrgencyLevel    UrgencyLevel `gorm:"size:10;not null" json:"urgencyLevel"`
	Status          ReportStatus `gorm:"size:20;not null;default:'OPEN'" json:"status"`
	Title           string       `gorm:"size:100;not null" json:"title"`
	Description     string       `gorm:"size:2000;not null" json:"description"`
	Evidence        string       `gorm:"type:text" json:"evidence,omitempty"`
	ReporterID      *uuid.UUID   `gorm:"type:uuid;index" json:"reporterId,omitempty"`
	CreatedAt       time.Time    `gorm:"index" json:"createdAt"`
	UpdatedAt       time.Time    `json:"updatedAt"`

	Reporter *User          `gorm:"foreignKey:ReporterID" json:"reporter,omitempty"`
	Updates  []ReportUpdate `gorm:"foreignKey:ReportID" json:"updates,omitempty"`
}
