package dto

import "github.com/cipher-systems/report-portal/internal/models"

type CreateReportRequest struct {
	ReportType  models.ReportType `json:"reportType"`
	Title       string            `json:"title"`
	Description string            `json:"description"`
	Evidence    string            `json:"evidence,omitempty"`
}

type CreateReportResponse struct {
	Success         bool                `json:"success"`
	CaseNumber      string              `json:"caseNumber"`
	ReferenceNumber string              `json:"referenceNumber"`
	UrgencyLevel    models.UrgencyLevel `json:"urgencyLevel"`
}

type UpdateReportRequest struct {
	Status models.ReportStatus `json:"status,omitempty"`
	Notes  string              `json:"notes,omitempty"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
}

type ReportListResponse struct {
	Reports    []models.Report `json:"reports"`
	Pagination Pagination      `json:"pagination"`
}

type ReportResponse struct {
	Report *models.Report `json:"report"`
}
