package services

import (
	"strings"

	"github.com/cipher-systems/report-portal/internal/models"
)

var criticalKeywords = []string{
	"immediate", "urgent", "emergency", "suicide", "self-harm", "threat", "violence",
	"child", "minor", "underage", "abuse", "exploitation", "harassment",
}

var highKeywords = []string{
	"security breach", "data leak", "personal information", "privacy violation",
	"doxxing", "stalking", "discrimination", "hate speech",
}

// ClassifyUrgency assigns an urgency tier from the report category and a
// case-insensitive substring scan of the description. First match wins:
// critical keywords beat everything, safeguarding reports are always critical,
// security/data-protection reports sit at MEDIUM unless a high keyword lifts
// them, and everything else defaults to MEDIUM. LOW is never assigned
// automatically; it exists only as a stored value.
func ClassifyUrgency(reportType models.ReportType, description string) models.UrgencyLevel {
	desc := strings.ToLower(description)

	for _, keyword := range criticalKeywords {
		if strings.Contains(desc, keyword) {
			return models.UrgencyCritical
		}
	}

	if reportType == models.ReportTypeSafeguarding {
		return models.UrgencyCritical
	}

	if reportType == models.ReportTypeSecurityIssue || reportType == models.ReportTypeDataProtection {
		for _, keyword := range highKeywords {
			if strings.Contains(desc, keyword) {
				return models.UrgencyHigh
			}
		}
		return models.UrgencyMedium
	}

	for _, keyword := range highKeywords {
		if strings.Contains(desc, keyword) {
			return models.UrgencyHigh
		}
	}

	return models.UrgencyMedium
}
