package bot

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/tazhate/agendasync/internal/domain"
	"github.com/tazhate/agendasync/internal/service"
)

func TestFormatSyncAlert(t *testing.T) {
	batch := &service.BatchResult{
		RunID: "run-1",
		Results: []*service.SyncResult{
			{SourceID: 1, UserID: 10, Inserted: 3},
			{SourceID: 2, UserID: 10, URL: "https://cal.example/...(redacted)", Err: errors.New("http status 500 <bad>")},
		},
	}

	text := formatSyncAlert(batch)
	for _, want := range []string{"run-1", "1 ok, 1 failed", "source 2, user 10", "cal.example", "&lt;bad&gt;"} {
		if !strings.Contains(text, want) {
			t.Errorf("alert missing %q:\n%s", want, text)
		}
	}
	if strings.Contains(text, "source 1,") {
		t.Errorf("alert lists a healthy source:\n%s", text)
	}
}

func TestRetryKeyboard(t *testing.T) {
	var failed []*service.SyncResult
	for i := 1; i <= maxRetryButtons+3; i++ {
		failed = append(failed, &service.SyncResult{SourceID: int64(i), UserID: 7, Err: errors.New("x")})
	}

	kb := retryKeyboard(failed)
	if len(kb.InlineKeyboard) != maxRetryButtons+1 {
		t.Fatalf("rows = %d, want %d", len(kb.InlineKeyboard), maxRetryButtons+1)
	}
	first := kb.InlineKeyboard[0][0]
	if first.CallbackData == nil || *first.CallbackData != "retry:7:1" {
		t.Errorf("first button data = %v", first.CallbackData)
	}
	last := kb.InlineKeyboard[len(kb.InlineKeyboard)-1][0]
	if last.CallbackData == nil || *last.CallbackData != "syncall" {
		t.Errorf("last button data = %v", last.CallbackData)
	}
}

func TestParseRetry(t *testing.T) {
	tests := []struct {
		data         string
		user, source int64
		ok           bool
	}{
		{"retry:3:9", 3, 9, true},
		{"retry:3", 0, 0, false},
		{"retry:x:9", 0, 0, false},
		{"retry:3:9:1", 0, 0, false},
	}
	for _, tt := range tests {
		u, s, ok := parseRetry(strings.Split(tt.data, ":"))
		if ok != tt.ok || u != tt.user || s != tt.source {
			t.Errorf("parseRetry(%q) = %d, %d, %v", tt.data, u, s, ok)
		}
	}
}

func TestFormatSources(t *testing.T) {
	synced := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	sources := []*domain.Source{
		{ID: 1, UserID: 5, Label: "Work & Co", LastSyncedAt: &synced},
		{ID: 2, UserID: 5, Label: "Gym"},
	}

	text := formatSources(5, sources)
	for _, want := range []string{"user 5", "Work &amp; Co", "synced 2024-01-01 09:00 UTC", "never synced"} {
		if !strings.Contains(text, want) {
			t.Errorf("listing missing %q:\n%s", want, text)
		}
	}
	if kb := sourcesKeyboard(sources); kb == nil || len(kb.InlineKeyboard) != 2 {
		t.Errorf("keyboard = %+v", kb)
	}
	if sourcesKeyboard(nil) != nil {
		t.Error("empty listing should have no keyboard")
	}
	if got := formatSources(5, nil); !strings.Contains(got, "no sources") {
		t.Errorf("empty listing = %q", got)
	}
}
