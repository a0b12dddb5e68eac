package config

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"
)

func TestLog(t *testing.T) {
	// Just verify it doesn't panic
	s := &Settings{
		BaseDir:    "/tmp/dirsync",
		SourcesDir: "sources",
	}
	Log(s) // Should not panic
}

func TestLogWithLogger_MasksSecrets(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := &Settings{
		BaseDir:    "/tmp/dirsync",
		SourcesDir: "sources",
		Sheets: SheetsSettings{
			Enabled: true,
			BaseURL: "https://sheets.internal/api",
			Token:   "super-secret-token",
		},
		Notify: NotifySettings{
			WebhookURL: "https://chat.internal/hook/secret",
		},
	}

	LogWithLogger(s, logger)

	output := buf.String()
	if strings.Contains(output, "super-secret-token") {
		t.Error("Expected sheets token to be masked in log output")
	}
	if strings.Contains(output, "chat.internal") {
		t.Error("Expected webhook URL to be masked in log output")
	}
	if !strings.Contains(output, "sheets.base_url") {
		t.Error("Expected 'sheets.base_url' in log output")
	}
}

func TestLogWithLogger_SheetsDisabled(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, nil))

	s := &Settings{
		BaseDir:    "/tmp/dirsync",
		SourcesDir: "sources",
	}

	LogWithLogger(s, logger)

	output := buf.String()
	if !strings.Contains(output, "sheets.enabled") {
		t.Error("Expected 'sheets.enabled' in log output")
	}
	if strings.Contains(output, "sheets.base_url") {
		t.Error("Expected no sheets details when disabled")
	}
}

func TestSheetsSettingsLogValue(t *testing.T) {
	v := SheetsSettingsLogValue(SheetsSettings{
		Enabled: true,
		BaseURL: "https://sheets.internal/api",
		Token:   "secret",
	})

	if !strings.Contains(v.String(), "****") {
		t.Errorf("Expected masked token in log value, got: %s", v.String())
	}
	if strings.Contains(v.String(), "secret") {
		t.Errorf("Expected no raw token in log value, got: %s", v.String())
	}
}

func TestMask(t *testing.T) {
	if mask("") != "" {
		t.Error("Expected empty string to stay empty")
	}
	if mask("anything") != "****" {
		t.Errorf("Expected '****', got '%s'", mask("anything"))
	}
}
