package services

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/cipher-systems/report-portal/internal/dto"
	"github.com/cipher-systems/report-portal/internal/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

var (
	ErrInvalidInput        = errors.New("invalid input")
	ErrForbidden           = errors.New("forbidden")
	ErrReportNotFound      = errors.New("report not found")
	ErrIdentifierExhausted = errors.New("identifier generation attempts exhausted")
)

// identifierAttempts bounds the regenerate-on-collision loop during Create.
const identifierAttempts = 3

const (
	titleMinLen       = 5
	titleMaxLen       = 100
	descriptionMinLen = 20
	descriptionMaxLen = 2000
	notesMaxLen       = 1000
)

// Notifier is the outbound dispatch contract. Both methods report delivery as
// a bool; callers never treat a failed delivery as an error.
type Notifier interface {
	NotifyNewReport(report *models.Report, reporter *models.User) bool
	NotifyStatusChange(caseNumber string, oldStatus, newStatus models.ReportStatus, staffUsername, notes string) bool
}

// ReportFilters narrows staff report listings.
type ReportFilters struct {
	Search  string
	Status  models.ReportStatus
	Urgency models.UrgencyLevel
	Type    models.ReportType
	Page    int
	Limit   int
}

type ReportService struct {
	db       *gorm.DB
	notifier Notifier

	// Identifier generators, swappable in tests to force collisions.
	genCase func() string
	genRef  func() string
}

func NewReportService(db *gorm.DB, notifier Notifier) *ReportService {
	return &ReportService{
		db:       db,
		notifier: notifier,
		genCase:  CaseNumber,
		genRef:   ReferenceNumber,
	}
}

// Create validates and persists a new report, classifying urgency once at
// creation. reporter is nil for anonymous submissions. Identifier collisions
// are retried with fresh identifiers up to identifierAttempts times; the
// notification is attempted after the insert and never fails the request.
func (s *ReportService) Create(req *dto.CreateReportRequest, reporter *models.User) (*models.Report, error) {
	if err := validateCreate(req); err != nil {
		return nil, err
	}

	urgency := ClassifyUrgency(req.ReportType, req.Description)

	report := &models.Report{
		ID:           uuid.New(),
		ReportType:   req.ReportType,
		UrgencyLevel: urgency,
		Status:       models.StatusOpen,
		Title:        strings.TrimSpace(req.Title),
		Description:  req.Description,
		Evidence:     strings.TrimSpace(req.Evidence),
	}
	if reporter != nil {
		report.ReporterID = &reporter.ID
	}

	created := false
	for attempt := 1; attempt <= identifierAttempts; attempt++ {
		report.CaseNumber = s.genCase()
		report.ReferenceNumber = s.genRef()

		err := s.db.Create(report).Error
		if err == nil {
			created = true
			break
		}
		if !isDuplicateKey(err) {
			return nil, fmt.Errorf("failed to create report: %w", err)
		}
		slog.Warn("identifier collision, regenerating",
			"action", "report_create", "attempt", attempt, "case_number", report.CaseNumber)
	}
	if !created {
		slog.Error("identifier generation exhausted",
			"action", "report_create", "attempts", identifierAttempts)
		return nil, ErrIdentifierExhausted
	}

	if ok := s.notifier.NotifyNewReport(report, reporter); !ok {
		slog.Warn("new report notification not delivered", "case_number", report.CaseNumber)
	}

	return report, nil
}

// Get returns a report with its full update history, newest update first.
// Staff see everything; a reporter sees only their own reports. Anonymous
// reports have no owner and are staff-only.
func (s *ReportService) Get(reportID uuid.UUID, actor *models.User) (*models.Report, error) {
	if actor == nil {
		return nil, ErrForbidden
	}

	var report models.Report
	err := s.db.
		Preload("Reporter").
		Preload("Updates", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at DESC")
		}).
		Preload("Updates.Staff").
		First(&report, "id = ?", reportID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to load report: %w", err)
	}

	if !actor.IsStaff && (report.ReporterID == nil || *report.ReporterID != actor.ID) {
		return nil, ErrForbidden
	}

	return &report, nil
}

// List returns a filtered page of reports, newest first. Staff only.
func (s *ReportService) List(filters ReportFilters, actor *models.User) ([]models.Report, *dto.Pagination, error) {
	if actor == nil || !actor.IsStaff {
		return nil, nil, ErrForbidden
	}

	page := filters.Page
	if page < 1 {
		page = 1
	}
	limit := filters.Limit
	if limit < 1 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	query := s.db.Model(&models.Report{})
	if filters.Search != "" {
		term := "%" + strings.ToLower(filters.Search) + "%"
		query = query.Where(
			"LOWER(title) LIKE ? OR LOWER(description) LIKE ? OR LOWER(case_number) LIKE ?",
			term, term, term)
	}
	if filters.Status != "" {
		query = query.Where("status = ?", filters.Status)
	}
	if filters.Urgency != "" {
		query = query.Where("urgency_level = ?", filters.Urgency)
	}
	if filters.Type != "" {
		query = query.Where("report_type = ?", filters.Type)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, nil, fmt.Errorf("failed to count reports: %w", err)
	}

	var reports []models.Report
	err := query.
		Preload("Reporter").
		Order("created_at DESC").
		Limit(limit).
		Offset((page - 1) * limit).
		Find(&reports).Error
	if err != nil {
		return nil, nil, fmt.Errorf("failed to list reports: %w", err)
	}

	totalPages := int((total + int64(limit) - 1) / int64(limit))
	return reports, &dto.Pagination{
		Page:       page,
		Limit:      limit,
		Total:      total,
		TotalPages: totalPages,
	}, nil
}

// UpdateStatus applies a staff status change and/or note. A PATCH that
// changes nothing is a no-op: no audit record, no notification. A status
// change produces exactly one ReportUpdate naming both statuses, with any
// note carried in its details; a note without a status change produces a
// "Note added" record. Only real status changes notify the webhook.
func (s *ReportService) UpdateStatus(reportID uuid.UUID, actor *models.User, req *dto.UpdateReportRequest) (*models.Report, error) {
	if actor == nil || !actor.IsStaff {
		return nil, ErrForbidden
	}

	if req.Status != "" && !req.Status.Valid() {
		return nil, fmt.Errorf("%w: status must be one of OPEN, IN_PROGRESS, RESOLVED, CLOSED, ESCALATED", ErrInvalidInput)
	}
	notes := strings.TrimSpace(req.Notes)
	if utf8.RuneCountInString(notes) > notesMaxLen {
		return nil, fmt.Errorf("%w: notes must be at most %d characters", ErrInvalidInput, notesMaxLen)
	}

	var report models.Report
	if err := s.db.First(&report, "id = ?", reportID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrReportNotFound
		}
		return nil, fmt.Errorf("failed to load report: %w", err)
	}

	oldStatus := report.Status
	statusChanged := req.Status != "" && req.Status != oldStatus

	if !statusChanged && notes == "" {
		return s.Get(reportID, actor)
	}

	update := models.ReportUpdate{
		ID:       uuid.New(),
		ReportID: report.ID,
		StaffID:  actor.ID,
		Details:  notes,
	}
	if statusChanged {
		update.Action = fmt.Sprintf("Status changed from %s to %s", oldStatus, req.Status)
	} else {
		update.Action = "Note added"
	}

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if statusChanged {
			if err := tx.Model(&report).Update("status", req.Status).Error; err != nil {
				return err
			}
		}
		return tx.Create(&update).Error
	})
	if err != nil {
		return nil, fmt.Errorf("failed to update report: %w", err)
	}

	if statusChanged {
		if ok := s.notifier.NotifyStatusChange(report.CaseNumber, oldStatus, req.Status, actor.Username, notes); !ok {
			slog.Warn("status change notification not delivered", "case_number", report.CaseNumber)
		}
	}

	return s.Get(reportID, actor)
}

func validateCreate(req *dto.CreateReportRequest) error {
	if !req.ReportType.Valid() {
		return fmt.Errorf("%w: reportType must be one of DISCORD_USER, DISCORD_SERVER, SECURITY_ISSUE, DATA_PROTECTION, SAFEGUARDING, OTHER", ErrInvalidInput)
	}
	if n := utf8.RuneCountInString(strings.TrimSpace(req.Title)); n < titleMinLen || n > titleMaxLen {
		return fmt.Errorf("%w: title must be between %d and %d characters", ErrInvalidInput, titleMinLen, titleMaxLen)
	}
	if n := utf8.RuneCountInString(req.Description); n < descriptionMinLen || n > descriptionMaxLen {
		return fmt.Errorf("%w: description must be between %d and %d characters", ErrInvalidInput, descriptionMinLen, descriptionMaxLen)
	}
	return nil
}

// isDuplicateKey detects unique-constraint violations across the postgres
// driver (TranslateError) and the sqlite driver used in tests.
func isDuplicateKey(err error) bool {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key") || strings.Contains(msg, "UNIQUE constraint failed")
}
