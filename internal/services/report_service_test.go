package services

import (
	"errors"
	"strings"
	"testing"

	"github.com/cipher-systems/report-portal/internal/dto"
	"github.com/cipher-systems/report-portal/internal/models"
	"github.com/glebarez/sqlite"
	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type statusChangeCall struct {
	caseNumber string
	oldStatus  models.ReportStatus
	newStatus  models.ReportStatus
	staff      string
	notes      string
}

// fakeNotifier records dispatch attempts; deliver=false simulates a failing
// webhook endpoint.
type fakeNotifier struct {
	deliver       bool
	newReports    int
	statusChanges []statusChangeCall
}

func (f *fakeNotifier) NotifyNewReport(_ *models.Report, _ *models.User) bool {
	f.newReports++
	return f.deliver
}

func (f *fakeNotifier) NotifyStatusChange(caseNumber string, oldStatus, newStatus models.ReportStatus, staff, notes string) bool {
	f.statusChanges = append(f.statusChanges, statusChangeCall{caseNumber, oldStatus, newStatus, staff, notes})
	return f.deliver
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	// :memory: is per-connection; keep the pool at one.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&models.User{}, &models.Report{}, &models.ReportUpdate{}); err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

func newTestService(t *testing.T) (*ReportService, *fakeNotifier, *gorm.DB) {
	t.Helper()
	db := newTestDB(t)
	notifier := &fakeNotifier{deliver: true}
	return NewReportService(db, notifier), notifier, db
}

func seedUser(t *testing.T, db *gorm.DB, discordID string, isStaff bool) *models.User {
	t.Helper()
	user := &models.User{
		ID:        uuid.New(),
		DiscordID: discordID,
		Username:  "user-" + discordID,
		IsStaff:   isStaff,
	}
	if err := db.Create(user).Error; err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return user
}

func validCreateRequest() *dto.CreateReportRequest {
	return &dto.CreateReportRequest{
		ReportType:  models.ReportTypeDiscordUser,
		Title:       "Spam in general chat",
		Description: "A user keeps flooding the general channel with advertisements.",
	}
}

func TestCreate_AssignsIdentifiersAndDefaults(t *testing.T) {
	svc, notifier, _ := newTestService(t)

	report, err := svc.Create(validCreateRequest(), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if !caseNumberPattern.MatchString(report.CaseNumber) {
		t.Fatalf("bad case number %q", report.CaseNumber)
	}
	if !referenceNumberPattern.MatchString(report.ReferenceNumber) {
		t.Fatalf("bad reference number %q", report.ReferenceNumber)
	}
	if report.Status != models.StatusOpen {
		t.Fatalf("expected status OPEN, got %s", report.Status)
	}
	if report.UrgencyLevel != models.UrgencyMedium {
		t.Fatalf("expected MEDIUM urgency, got %s", report.UrgencyLevel)
	}
	if report.ReporterID != nil {
		t.Fatal("anonymous report should have no reporter")
	}
	if notifier.newReports != 1 {
		t.Fatalf("expected exactly one notification, got %d", notifier.newReports)
	}
}

func TestCreate_AttachesAuthenticatedReporter(t *testing.T) {
	svc, _, db := newTestService(t)
	reporter := seedUser(t, db, "100200300", false)

	report, err := svc.Create(validCreateRequest(), reporter)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if report.ReporterID == nil || *report.ReporterID != reporter.ID {
		t.Fatalf("expected reporter %s, got %v", reporter.ID, report.ReporterID)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, notifier, db := newTestService(t)

	tests := []struct {
		name    string
		mutate  func(*dto.CreateReportRequest)
		wantErr bool
	}{
		{"4-char title fails", func(r *dto.CreateReportRequest) { r.Title = "abcd" }, true},
		{"5-char title succeeds", func(r *dto.CreateReportRequest) { r.Title = "abcde" }, false},
		{"101-char title fails", func(r *dto.CreateReportRequest) { r.Title = strings.Repeat("a", 101) }, true},
		{"19-char description fails", func(r *dto.CreateReportRequest) { r.Description = strings.Repeat("d", 19) }, true},
		{"20-char description succeeds", func(r *dto.CreateReportRequest) { r.Description = strings.Repeat("d", 20) }, false},
		{"2000-char description succeeds", func(r *dto.CreateReportRequest) { r.Description = strings.Repeat("d", 2000) }, false},
		{"2001-char description fails", func(r *dto.CreateReportRequest) { r.Description = strings.Repeat("d", 2001) }, true},
		{"unknown report type fails", func(r *dto.CreateReportRequest) { r.ReportType = "BAD_TYPE" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := validCreateRequest()
			tt.mutate(req)

			notificationsBefore := notifier.newReports
			countBefore := persisted(t, db)
			_, err := svc.Create(req, nil)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidInput) {
					t.Fatalf("expected ErrInvalidInput, got %v", err)
				}
				if notifier.newReports != notificationsBefore {
					t.Fatal("validation failure must not notify")
				}
				if persisted(t, db) != countBefore {
					t.Fatal("validation failure must not persist")
				}
			} else if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func persisted(t *testing.T, db *gorm.DB) int64 {
	t.Helper()
	var count int64
	if err := db.Model(&models.Report{}).Count(&count).Error; err != nil {
		t.Fatalf("count reports: %v", err)
	}
	return count
}

func TestCreate_RetriesOnIdentifierCollision(t *testing.T) {
	svc, _, _ := newTestService(t)

	// Occupy a case number, then hand the generator that number first and a
	// fresh one on the retry.
	first, err := svc.Create(validCreateRequest(), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	attempts := 0
	svc.genCase = func() string {
		attempts++
		if attempts == 1 {
			return first.CaseNumber
		}
		return CaseNumber()
	}

	report, err := svc.Create(validCreateRequest(), nil)
	if err != nil {
		t.Fatalf("create after collision: %v", err)
	}
	if report.CaseNumber == first.CaseNumber {
		t.Fatal("collision was not regenerated")
	}
	if attempts < 2 {
		t.Fatalf("expected a retry, generator called %d time(s)", attempts)
	}
}

func TestCreate_IdentifierExhaustion(t *testing.T) {
	svc, notifier, db := newTestService(t)

	first, err := svc.Create(validCreateRequest(), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	svc.genCase = func() string { return first.CaseNumber }

	notifier.newReports = 0
	_, err = svc.Create(validCreateRequest(), nil)
	if !errors.Is(err, ErrIdentifierExhausted) {
		t.Fatalf("expected ErrIdentifierExhausted, got %v", err)
	}
	if notifier.newReports != 0 {
		t.Fatal("exhausted create must not notify")
	}
	if got := persisted(t, db); got != 1 {
		t.Fatalf("expected 1 persisted report, got %d", got)
	}
}

func TestCreate_DispatchFailureStillSucceeds(t *testing.T) {
	svc, notifier, _ := newTestService(t)
	notifier.deliver = false

	report, err := svc.Create(validCreateRequest(), nil)
	if err != nil {
		t.Fatalf("create with failing dispatcher: %v", err)
	}
	if report.CaseNumber == "" || report.ReferenceNumber == "" {
		t.Fatal("expected valid identifiers despite dispatch failure")
	}
	if notifier.newReports != 1 {
		t.Fatalf("dispatch should still have been attempted once, got %d", notifier.newReports)
	}
}

func TestCreate_IdentifiersUniqueAcrossManyReports(t *testing.T) {
	svc, _, _ := newTestService(t)

	cases := make(map[string]struct{}, 1000)
	refs := make(map[string]struct{}, 1000)
	for i := 0; i < 1000; i++ {
		report, err := svc.Create(validCreateRequest(), nil)
		if err != nil {
			t.Fatalf("create #%d: %v", i, err)
		}
		if _, dup := cases[report.CaseNumber]; dup {
			t.Fatalf("duplicate case number %q", report.CaseNumber)
		}
		if _, dup := refs[report.ReferenceNumber]; dup {
			t.Fatalf("duplicate reference number %q", report.ReferenceNumber)
		}
		cases[report.CaseNumber] = struct{}{}
		refs[report.ReferenceNumber] = struct{}{}
	}
}

func TestUpdateStatus_NoOpChangesNothing(t *testing.T) {
	svc, notifier, db := newTestService(t)
	staff := seedUser(t, db, "staff-1", true)

	created, err := svc.Create(validCreateRequest(), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	report, err := svc.UpdateStatus(created.ID, staff, &dto.UpdateReportRequest{
		Status: models.StatusOpen, // unchanged
		Notes:  "   ",
	})
	if err != nil {
		t.Fatalf("no-op update: %v", err)
	}
	if report.Status != models.StatusOpen {
		t.Fatalf("status changed on no-op: %s", report.Status)
	}
	if len(report.Updates) != 0 {
		t.Fatalf("no-op produced %d update records", len(report.Updates))
	}
	if len(notifier.statusChanges) != 0 {
		t.Fatal("no-op must not notify")
	}
}

func TestUpdateStatus_StatusChange(t *testing.T) {
	svc, notifier, db := newTestService(t)
	staff := seedUser(t, db, "staff-1", true)

	created, err := svc.Create(validCreateRequest(), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	report, err := svc.UpdateStatus(created.ID, staff, &dto.UpdateReportRequest{
		Status: models.StatusInProgress,
		Notes:  "taking a look",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}

	if report.Status != models.StatusInProgress {
		t.Fatalf("expected IN_PROGRESS, got %s", report.Status)
	}
	if len(report.Updates) != 1 {
		t.Fatalf("expected exactly one update record, got %d", len(report.Updates))
	}
	action := report.Updates[0].Action
	if !strings.Contains(action, string(models.StatusOpen)) || !strings.Contains(action, string(models.StatusInProgress)) {
		t.Fatalf("action %q must name both old and new status", action)
	}
	if report.Updates[0].Details != "taking a look" {
		t.Fatalf("note lost: details = %q", report.Updates[0].Details)
	}

	if len(notifier.statusChanges) != 1 {
		t.Fatalf("expected one status notification, got %d", len(notifier.statusChanges))
	}
	call := notifier.statusChanges[0]
	if call.caseNumber != created.CaseNumber || call.oldStatus != models.StatusOpen || call.newStatus != models.StatusInProgress {
		t.Fatalf("unexpected notification %+v", call)
	}
}

func TestUpdateStatus_NoteOnly(t *testing.T) {
	svc, notifier, db := newTestService(t)
	staff := seedUser(t, db, "staff-1", true)

	created, err := svc.Create(validCreateRequest(), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	report, err := svc.UpdateStatus(created.ID, staff, &dto.UpdateReportRequest{
		Notes: "reporter contacted via DM",
	})
	if err != nil {
		t.Fatalf("note-only update: %v", err)
	}

	if len(report.Updates) != 1 {
		t.Fatalf("expected one update record, got %d", len(report.Updates))
	}
	if report.Updates[0].Action != "Note added" {
		t.Fatalf("expected action %q, got %q", "Note added", report.Updates[0].Action)
	}
	if len(notifier.statusChanges) != 0 {
		t.Fatal("note-only update must not notify")
	}
}

func TestUpdateStatus_OrderedNewestFirst(t *testing.T) {
	svc, _, db := newTestService(t)
	staff := seedUser(t, db, "staff-1", true)

	created, err := svc.Create(validCreateRequest(), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	steps := []models.ReportStatus{models.StatusInProgress, models.StatusEscalated, models.StatusResolved}
	for _, status := range steps {
		if _, err := svc.UpdateStatus(created.ID, staff, &dto.UpdateReportRequest{Status: status}); err != nil {
			t.Fatalf("update to %s: %v", status, err)
		}
	}

	report, err := svc.Get(created.ID, staff)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(report.Updates) != len(steps) {
		t.Fatalf("expected %d updates, got %d", len(steps), len(report.Updates))
	}
	if !strings.Contains(report.Updates[0].Action, string(models.StatusResolved)) {
		t.Fatalf("newest update should be first, got %q", report.Updates[0].Action)
	}
}

func TestUpdateStatus_Authorization(t *testing.T) {
	svc, _, db := newTestService(t)
	member := seedUser(t, db, "member-1", false)

	created, err := svc.Create(validCreateRequest(), member)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	// Even the report's own submitter cannot update status.
	_, err = svc.UpdateStatus(created.ID, member, &dto.UpdateReportRequest{Status: models.StatusClosed})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-staff, got %v", err)
	}

	_, err = svc.UpdateStatus(created.ID, nil, &dto.UpdateReportRequest{Status: models.StatusClosed})
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for anonymous, got %v", err)
	}
}

func TestUpdateStatus_UnknownReport(t *testing.T) {
	svc, _, db := newTestService(t)
	staff := seedUser(t, db, "staff-1", true)

	_, err := svc.UpdateStatus(uuid.New(), staff, &dto.UpdateReportRequest{Status: models.StatusClosed})
	if !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
}

func TestUpdateStatus_InvalidStatus(t *testing.T) {
	svc, _, db := newTestService(t)
	staff := seedUser(t, db, "staff-1", true)

	created, err := svc.Create(validCreateRequest(), nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	_, err = svc.UpdateStatus(created.ID, staff, &dto.UpdateReportRequest{Status: "ARCHIVED"})
	if !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGet_Visibility(t *testing.T) {
	svc, _, db := newTestService(t)
	staff := seedUser(t, db, "staff-1", true)
	owner := seedUser(t, db, "member-1", false)
	other := seedUser(t, db, "member-2", false)

	owned, err := svc.Create(validCreateRequest(), owner)
	if err != nil {
		t.Fatalf("create owned: %v", err)
	}
	anonymous, err := svc.Create(validCreateRequest(), nil)
	if err != nil {
		t.Fatalf("create anonymous: %v", err)
	}

	if _, err := svc.Get(owned.ID, owner); err != nil {
		t.Fatalf("owner should see own report: %v", err)
	}
	if _, err := svc.Get(owned.ID, staff); err != nil {
		t.Fatalf("staff should see any report: %v", err)
	}
	if _, err := svc.Get(owned.ID, other); !errors.Is(err, ErrForbidden) {
		t.Fatalf("stranger should be forbidden, got %v", err)
	}
	// An anonymous report is staff-only, even for a user who submitted a
	// structurally identical report themselves.
	if _, err := svc.Get(anonymous.ID, owner); !errors.Is(err, ErrForbidden) {
		t.Fatalf("anonymous report should be staff-only, got %v", err)
	}
	if _, err := svc.Get(anonymous.ID, staff); err != nil {
		t.Fatalf("staff should see anonymous report: %v", err)
	}
	if _, err := svc.Get(uuid.New(), staff); !errors.Is(err, ErrReportNotFound) {
		t.Fatalf("expected ErrReportNotFound, got %v", err)
	}
}

func TestList_StaffOnlyFiltersAndPagination(t *testing.T) {
	svc, _, db := newTestService(t)
	staff := seedUser(t, db, "staff-1", true)
	member := seedUser(t, db, "member-1", false)

	if _, _, err := svc.List(ReportFilters{}, member); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-staff, got %v", err)
	}

	mk := func(title, desc string) *models.Report {
		req := validCreateRequest()
		req.Title = title
		req.Description = desc
		report, err := svc.Create(req, nil)
		if err != nil {
			t.Fatalf("create %q: %v", title, err)
		}
		return report
	}

	mk("Spam in general chat", "A user keeps flooding the general channel with advertisements.")
	urgent := mk("Threats in voice chat", "Someone made a violent threat during a call yesterday evening.")
	mk("Profile impersonation", "A member copies another member's profile and nickname exactly.")

	reports, pagination, err := svc.List(ReportFilters{}, staff)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(reports) != 3 || pagination.Total != 3 {
		t.Fatalf("expected 3 reports, got %d (total %d)", len(reports), pagination.Total)
	}

	// Filter by urgency
	reports, _, err = svc.List(ReportFilters{Urgency: models.UrgencyCritical}, staff)
	if err != nil {
		t.Fatalf("list critical: %v", err)
	}
	if len(reports) != 1 || reports[0].ID != urgent.ID {
		t.Fatalf("urgency filter returned %d reports", len(reports))
	}

	// Search matches case numbers too
	reports, _, err = svc.List(ReportFilters{Search: urgent.CaseNumber}, staff)
	if err != nil {
		t.Fatalf("list by case number: %v", err)
	}
	if len(reports) != 1 || reports[0].ID != urgent.ID {
		t.Fatalf("case-number search returned %d reports", len(reports))
	}

	// Search is case-insensitive over titles
	reports, _, err = svc.List(ReportFilters{Search: "IMPERSONATION"}, staff)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("title search returned %d reports", len(reports))
	}

	// Pagination
	reports, pagination, err = svc.List(ReportFilters{Page: 2, Limit: 2}, staff)
	if err != nil {
		t.Fatalf("paged list: %v", err)
	}
	if len(reports) != 1 {
		t.Fatalf("expected 1 report on page 2, got %d", len(reports))
	}
	if pagination.TotalPages != 2 || pagination.Page != 2 || pagination.Limit != 2 {
		t.Fatalf("unexpected pagination %+v", pagination)
	}
}
