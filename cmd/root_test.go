package cmd

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestCommandRegistration(t *testing.T) {
	wanted := []string{
		"login", "register", "logout", "whoami", "passwd",
		"chat", "history", "show", "export", "docs",
		"dashboard", "users", "latency", "health",
	}

	registered := make(map[string]bool)
	for _, cmd := range rootCmd.Commands() {
		registered[cmd.Name()] = true
	}

	for _, name := range wanted {
		if !registered[name] {
			t.Errorf("command %q is not registered", name)
		}
	}
}

func TestParseConversationID(t *testing.T) {
	tests := []struct {
		in      string
		want    int64
		wantErr bool
	}{
		{"42", 42, false},
		{"1", 1, false},
		{"0", 0, true},
		{"-3", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		got, err := parseConversationID(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("parseConversationID(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("parseConversationID(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestFormatDate(t *testing.T) {
	if got := formatDate(""); got != "—" {
		t.Errorf("formatDate(\"\") = %q", got)
	}
	if got := formatDate("2021-06-01T10:00:00Z"); got != "2021-06-01" {
		t.Errorf("formatDate(old) = %q", got)
	}
	recent := time.Now().Add(-time.Hour).Format(time.RFC3339)
	if got := formatDate(recent); len(got) == 0 {
		t.Error("formatDate(recent) is empty")
	}
	// Non-RFC3339 dates degrade to their date part
	if got := formatDate("2024-03-03 10:00:00"); got != "2024-03-03" {
		t.Errorf("formatDate(raw) = %q", got)
	}
}

func TestCollectDrafts(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.txt")
	if err := os.WriteFile(path, []byte("x"), 0644); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	drafts, err := collectDrafts([]string{path})
	if err != nil {
		t.Fatalf("collectDrafts() failed: %v", err)
	}
	if len(drafts) != 1 || drafts[0].Name != "notes.txt" {
		t.Errorf("drafts = %+v", drafts)
	}

	if _, err := collectDrafts([]string{filepath.Join(dir, "absent.pdf")}); err == nil {
		t.Error("collectDrafts() with a missing file succeeded")
	}

	if drafts, err := collectDrafts(nil); err != nil || drafts != nil {
		t.Errorf("collectDrafts(nil) = %v, %v", drafts, err)
	}
}

func TestDashboardRange(t *testing.T) {
	dashboardFrom, dashboardTo = "", ""
	from, to := dashboardRange()
	if _, err := time.Parse("2006-01-02", from); err != nil {
		t.Errorf("from = %q is not a date", from)
	}
	if _, err := time.Parse("2006-01-02", to); err != nil {
		t.Errorf("to = %q is not a date", to)
	}

	dashboardFrom, dashboardTo = "2024-01-01", "2024-02-01"
	defer func() { dashboardFrom, dashboardTo = "", "" }()
	from, to = dashboardRange()
	if from != "2024-01-01" || to != "2024-02-01" {
		t.Errorf("range = %s..%s", from, to)
	}
}
