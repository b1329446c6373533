package services

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cipher-systems/report-portal/internal/models"
	"github.com/google/uuid"
)

func sampleReport(urgency models.UrgencyLevel) *models.Report {
	return &models.Report{
		ID:              uuid.New(),
		CaseNumber:      "CASE-2026-123456",
		ReferenceNumber: "REF-00ABCDEF",
		ReportType:      models.ReportTypeDiscordUser,
		UrgencyLevel:    urgency,
		Status:          models.StatusOpen,
		Title:           "Spam in general chat",
		Description:     "A user keeps flooding the general channel with advertisements.",
	}
}

func captureWebhook(t *testing.T, status int) (*DiscordNotifier, *[]discordgo.WebhookParams) {
	t.Helper()
	var received []discordgo.WebhookParams
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var params discordgo.WebhookParams
		if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
			t.Errorf("decode webhook payload: %v", err)
		}
		received = append(received, params)
		w.WriteHeader(status)
	}))
	t.Cleanup(server.Close)

	notifier := NewDiscordNotifier(WebhookConfig{URL: server.URL, Timeout: 2 * time.Second})
	return notifier, &received
}

func TestNotifyNewReport_SendsOnePost(t *testing.T) {
	notifier, received := captureWebhook(t, http.StatusNoContent)

	if ok := notifier.NotifyNewReport(sampleReport(models.UrgencyCritical), nil); !ok {
		t.Fatal("expected delivery to succeed")
	}
	if len(*received) != 1 {
		t.Fatalf("expected exactly one POST, got %d", len(*received))
	}

	params := (*received)[0]
	if len(params.Embeds) != 2 {
		t.Fatalf("expected report + staff embeds, got %d", len(params.Embeds))
	}

	embed := params.Embeds[0]
	if embed.Color != colorCritical {
		t.Fatalf("expected critical color %#x, got %#x", colorCritical, embed.Color)
	}
	caseField := embed.Fields[0].Value
	for _, want := range []string{"CASE-2026-123456", "REF-00ABCDEF", "CRITICAL"} {
		if !strings.Contains(caseField, want) {
			t.Fatalf("case field %q missing %q", caseField, want)
		}
	}
	if !strings.Contains(embed.Fields[2].Value, "Anonymous Report") {
		t.Fatalf("expected anonymous reporter label, got %q", embed.Fields[2].Value)
	}
}

func TestNotifyNewReport_ReporterIdentity(t *testing.T) {
	notifier, received := captureWebhook(t, http.StatusOK)

	reporter := &models.User{
		ID:            uuid.New(),
		DiscordID:     "424242424242",
		Username:      "casebreaker",
		Discriminator: "0420",
	}
	notifier.NotifyNewReport(sampleReport(models.UrgencyHigh), reporter)

	value := (*received)[0].Embeds[0].Fields[2].Value
	if !strings.Contains(value, "casebreaker#0420") || !strings.Contains(value, "424242424242") {
		t.Fatalf("reporter field %q missing identity", value)
	}
}

func TestNotifyNewReport_TruncatesLongDescription(t *testing.T) {
	notifier, received := captureWebhook(t, http.StatusOK)

	report := sampleReport(models.UrgencyMedium)
	report.Description = strings.Repeat("x", 800)
	notifier.NotifyNewReport(report, nil)

	details := (*received)[0].Embeds[0].Fields[1].Value
	if !strings.Contains(details, strings.Repeat("x", 500)+"...") {
		t.Fatal("long description was not truncated with ellipsis")
	}
	if strings.Contains(details, strings.Repeat("x", 501)) {
		t.Fatal("description exceeds the 500 character limit")
	}
}

func TestNotifyNewReport_UrgencyColors(t *testing.T) {
	tests := []struct {
		urgency models.UrgencyLevel
		want    int
	}{
		{models.UrgencyCritical, colorCritical},
		{models.UrgencyHigh, colorHigh},
		{models.UrgencyMedium, colorMedium},
		{models.UrgencyLow, colorLow},
	}

	for _, tt := range tests {
		notifier, received := captureWebhook(t, http.StatusOK)
		notifier.NotifyNewReport(sampleReport(tt.urgency), nil)
		if got := (*received)[0].Embeds[0].Color; got != tt.want {
			t.Fatalf("urgency %s: expected color %#x, got %#x", tt.urgency, tt.want, got)
		}
	}
}

func TestNotifyStatusChange(t *testing.T) {
	notifier, received := captureWebhook(t, http.StatusOK)

	ok := notifier.NotifyStatusChange("CASE-2026-123456", models.StatusOpen, models.StatusInProgress, "modbot", "claimed")
	if !ok {
		t.Fatal("expected delivery to succeed")
	}

	embed := (*received)[0].Embeds[0]
	if embed.Color != colorStatusChange {
		t.Fatalf("expected status-change color, got %#x", embed.Color)
	}
	change := embed.Fields[1].Value
	if !strings.Contains(change, "OPEN") || !strings.Contains(change, "IN_PROGRESS") {
		t.Fatalf("status field %q missing old/new status", change)
	}
	if embed.Fields[2].Value != "modbot" {
		t.Fatalf("expected staff name, got %q", embed.Fields[2].Value)
	}
	notes := embed.Fields[3].Value
	if notes != "claimed" {
		t.Fatalf("expected notes field, got %q", notes)
	}
}

func TestNotify_FailuresReturnFalse(t *testing.T) {
	t.Run("non-2xx response", func(t *testing.T) {
		notifier, _ := captureWebhook(t, http.StatusInternalServerError)
		if notifier.NotifyNewReport(sampleReport(models.UrgencyMedium), nil) {
			t.Fatal("expected delivery failure on 500")
		}
	})

	t.Run("unreachable endpoint", func(t *testing.T) {
		notifier := NewDiscordNotifier(WebhookConfig{
			URL:     "http://127.0.0.1:1/webhook",
			Timeout: 500 * time.Millisecond,
		})
		if notifier.NotifyNewReport(sampleReport(models.UrgencyMedium), nil) {
			t.Fatal("expected delivery failure on network error")
		}
	})

	t.Run("missing URL", func(t *testing.T) {
		notifier := NewDiscordNotifier(WebhookConfig{})
		if notifier.NotifyStatusChange("CASE-2026-123456", models.StatusOpen, models.StatusClosed, "modbot", "") {
			t.Fatal("expected delivery failure without URL")
		}
	})
}
