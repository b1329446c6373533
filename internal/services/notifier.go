package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cipher-systems/report-portal/internal/models"
)

const (
	colorCritical     = 0xff0000
	colorHigh         = 0xff8c00
	colorMedium       = 0xffd700
	colorLow          = 0x00ff00
	colorStatusChange = 0x0099ff
	colorStaffInfo    = 0x2b2d31

	descriptionLimit = 500
)

// WebhookConfig carries the injected webhook endpoint settings. The URL is
// never read from ambient state so tests can point the notifier at a stub.
type WebhookConfig struct {
	URL     string
	Timeout time.Duration

	// HTTPClient overrides the default client when set.
	HTTPClient *http.Client
}

// DiscordNotifier delivers report events to a Discord channel webhook. Every
// invocation is exactly one POST: no retries, no queueing. Failures are logged
// and swallowed; a lost notification never fails the originating request.
type DiscordNotifier struct {
	url    string
	client *http.Client
}

func NewDiscordNotifier(cfg WebhookConfig) *DiscordNotifier {
	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 10 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &DiscordNotifier{url: cfg.URL, client: client}
}

// NotifyNewReport posts the new-report embed plus a staff-guidance embed.
// reporter is nil for anonymous submissions.
func (n *DiscordNotifier) NotifyNewReport(report *models.Report, reporter *models.User) bool {
	reporterValue := "Anonymous Report"
	if reporter != nil {
		name := reporter.Username
		if reporter.Discriminator != "" && reporter.Discriminator != "0" {
			name += "#" + reporter.Discriminator
		}
		reporterValue = fmt.Sprintf("**User:** %s\n**Discord ID:** %s", name, reporter.DiscordID)
	}

	reportEmbed := &discordgo.MessageEmbed{
		Title: "🚨 New Report Submitted",
		Color: urgencyColor(report.UrgencyLevel),
		Fields: []*discordgo.MessageEmbedField{
			{
				Name: "📋 Case Information",
				Value: fmt.Sprintf("**Case Number:** %s\n**Reference:** %s\n**Type:** %s\n**Urgency:** %s",
					report.CaseNumber, report.ReferenceNumber,
					formatReportType(report.ReportType), report.UrgencyLevel),
			},
			{
				Name: "📝 Report Details",
				Value: fmt.Sprintf("**Title:** %s\n**Description:** %s",
					report.Title, truncate(report.Description, descriptionLimit)),
			},
			{
				Name:   "👤 Reporter",
				Value:  reporterValue,
				Inline: true,
			},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: "Cipher Systems"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if report.Evidence != "" {
		reportEmbed.Fields = append(reportEmbed.Fields, &discordgo.MessageEmbedField{
			Name:  "Evidence Links",
			Value: truncate(report.Evidence, descriptionLimit),
		})
	}

	staffEmbed := &discordgo.MessageEmbed{
		Title:       "Staff Information",
		Description: "If you wish to claim this report, please consider a few things",
		Color:       colorStaffInfo,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:  "Conflict of Interest Policy",
				Value: "• You cannot accept the report if you have a conflict of interest or involvement\n• You cannot accept the report if it involves a friend",
			},
			{
				Name:  "Report Claiming Process",
				Value: "• Once you accept a report, make it very clear in this channel\n• Once making the case log, ensure it has the reference number provided below",
			},
			{
				Name:  "Reference Number",
				Value: "**" + report.ReferenceNumber + "**",
			},
		},
	}

	return n.send(&discordgo.WebhookParams{
		Username:  "Report Bot",
		AvatarURL: "https://cdn.discordapp.com/embed/avatars/0.png",
		Embeds:    []*discordgo.MessageEmbed{reportEmbed, staffEmbed},
	})
}

// NotifyStatusChange posts the status-update embed. Only called when the
// status actually changed; note-only updates do not notify.
func (n *DiscordNotifier) NotifyStatusChange(caseNumber string, oldStatus, newStatus models.ReportStatus, staffUsername, notes string) bool {
	embed := &discordgo.MessageEmbed{
		Title: "📊 Report Status Updated",
		Color: colorStatusChange,
		Fields: []*discordgo.MessageEmbedField{
			{
				Name:  "📋 Case Information",
				Value: "**Case Number:** " + caseNumber,
			},
			{
				Name:   "🔄 Status Change",
				Value:  fmt.Sprintf("**From:** %s\n**To:** %s", oldStatus, newStatus),
				Inline: true,
			},
			{
				Name:   "👮 Updated By",
				Value:  staffUsername,
				Inline: true,
			},
		},
		Footer:    &discordgo.MessageEmbedFooter{Text: "Cipher Systems - Status Update"},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}

	if notes != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "📝 Notes",
			Value: truncate(notes, descriptionLimit),
		})
	}

	return n.send(&discordgo.WebhookParams{
		Username:  "Report Bot",
		AvatarURL: "https://cdn.discordapp.com/embed/avatars/0.png",
		Embeds:    []*discordgo.MessageEmbed{embed},
	})
}

func (n *DiscordNotifier) send(params *discordgo.WebhookParams) bool {
	if n.url == "" {
		slog.Error("discord webhook URL not configured", "action", "webhook_dispatch")
		return false
	}

	body, err := json.Marshal(params)
	if err != nil {
		slog.Error("failed to marshal webhook payload", "error", err)
		return false
	}

	resp, err := n.client.Post(n.url, "application/json", bytes.NewReader(body))
	if err != nil {
		slog.Error("discord webhook request failed", "action", "webhook_dispatch", "error", err)
		return false
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		slog.Error("discord webhook rejected", "action", "webhook_dispatch", "status", resp.StatusCode)
		return false
	}
	return true
}

func urgencyColor(level models.UrgencyLevel) int {
	switch level {
	case models.UrgencyCritical:
		return colorCritical
	case models.UrgencyHigh:
		return colorHigh
	case models.UrgencyMedium:
		return colorMedium
	case models.UrgencyLow:
		return colorLow
	default:
		return 0x808080
	}
}

func formatReportType(t models.ReportType) string {
	return strings.ReplaceAll(string(t), "_", " ")
}

func truncate(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "..."
}
