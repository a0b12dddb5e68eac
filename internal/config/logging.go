package config

import (
	"context"
	"log/slog"
)

// Log logs the resolved settings in a granular way, masking secrets
func Log(s *Settings) {
	LogWithLogger(s, slog.Default())
}

// LogWithLogger logs the resolved settings using the provided logger
func LogWithLogger(s *Settings, logger *slog.Logger) {
	ctx := context.Background()
	logger.InfoContext(ctx, "Config: base_dir", "value", s.BaseDir)
	logger.InfoContext(ctx, "Config: sources_dir", "value", s.SourcesDir)
	if s.CategoryRules != "" {
		logger.InfoContext(ctx, "Config: category_rules", "value", s.CategoryRules)
	}
	if s.Org != "" {
		logger.InfoContext(ctx, "Config: org", "value", s.Org)
	}

	logger.InfoContext(ctx, "Config: sheets.enabled", "value", s.Sheets.Enabled)
	if s.Sheets.Enabled {
		logger.InfoContext(ctx, "Config: sheets.base_url", "value", s.Sheets.BaseURL)
		logger.InfoContext(ctx, "Config: sheets.token", "value", mask(s.Sheets.Token))
		logger.InfoContext(ctx, "Config: sheets.retry_count", "value", s.Sheets.RetryCount)
	}

	if s.Notify.WebhookURL != "" {
		logger.InfoContext(ctx, "Config: notify.webhook_url", "value", mask(s.Notify.WebhookURL))
	}
}

// SheetsSettingsLogValue returns a slog.Value for SheetsSettings with
// masked credentials
func SheetsSettingsLogValue(s SheetsSettings) slog.Value {
	return slog.GroupValue(
		slog.Bool("enabled", s.Enabled),
		slog.String("base_url", s.BaseURL),
		slog.String("token", mask(s.Token)),
	)
}

func mask(s string) string {
	if s == "" {
		return ""
	}
	return "****"
}
