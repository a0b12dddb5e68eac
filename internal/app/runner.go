package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mygovdir/dirsync/internal/config"
	"github.com/mygovdir/dirsync/internal/fingerprint"
	"github.com/mygovdir/dirsync/internal/notify"
	"github.com/mygovdir/dirsync/internal/pipeline"
	"github.com/mygovdir/dirsync/internal/reconcile"
	"github.com/mygovdir/dirsync/internal/schema"
	"github.com/mygovdir/dirsync/internal/sink"
	"github.com/mygovdir/dirsync/internal/source"
	"github.com/spf13/pflag"
)

// setup loads, validates and logs settings, and installs the default
// logger. Logging always goes to stderr so stdout stays clean for command
// output.
func setup(flags *pflag.FlagSet) (*config.Settings, error) {
	settings, err := config.LoadSettingsWithFlags(flags)
	if err != nil {
		return nil, fmt.Errorf("failed to load settings: %w", err)
	}
	if err := config.ValidateSettings(settings); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	handler := slog.NewTextHandler(os.Stderr, nil)
	slog.SetDefault(slog.New(handler))
	config.Log(settings)

	return settings, nil
}

// RunSync executes a sync run in the given mode. Batch files come from the
// positional args, or from the configured sources directory when none are
// given.
func RunSync(ctx context.Context, flags *pflag.FlagSet, args []string, mode pipeline.Mode, version string) error {
	settings, err := setup(flags)
	if err != nil {
		return err
	}
	slog.Info("Starting directory sync", "mode", mode.String(), "version", version)

	if err := os.MkdirAll(settings.BaseDir, 0755); err != nil {
		return fmt.Errorf("failed to create base directory: %w", err)
	}

	registry := schema.NewRegistry()
	if settings.CategoryRules != "" {
		if err := registry.LoadFile(settings.CategoryRules); err != nil {
			return err
		}
	}

	batches, err := collectBatches(settings, args)
	if err != nil {
		return err
	}

	searchIndex, err := sink.NewSearchIndex(settings.BaseDir)
	if err != nil {
		return err
	}
	defer func() {
		if err := searchIndex.Close(); err != nil {
			slog.Error("Failed to close search index", "error", err)
		}
	}()

	sinks := []reconcile.Sink{searchIndex}
	if settings.Sheets.Enabled {
		sinks = append(sinks, sink.NewSheets(sink.SheetsOptions{
			BaseURL:    settings.Sheets.BaseURL,
			Token:      settings.Sheets.Token,
			RetryCount: settings.Sheets.RetryCount,
			RetryWait:  settings.Sheets.RetryWait,
			RetryMax:   settings.Sheets.RetryMax,
			Timeout:    settings.Sheets.Timeout,
		}))
	}

	var notifier notify.Notifier = notify.Log{}
	if settings.Notify.WebhookURL != "" {
		notifier = notify.NewWebhook(settings.Notify.WebhookURL, settings.Notify.Timeout, settings.Notify.MaxWait)
	}

	storePath := filepath.Join(settings.BaseDir, fingerprint.StoreFilename)
	store, err := fingerprint.Load(storePath)
	if err != nil {
		return err
	}

	p, err := pipeline.New(pipeline.Options{
		Registry:    registry,
		Sinks:       sinks,
		State:       searchIndex,
		Store:       store,
		StorePath:   storePath,
		Notifier:    notifier,
		LockPath:    filepath.Join(settings.BaseDir, "run.lock"),
		LockTimeout: settings.LockTimeout,
		OrgFilter:   settings.Org,
	})
	if err != nil {
		return err
	}

	summary, err := p.Run(ctx, batches, mode)
	if err != nil {
		return err
	}

	fmt.Println(summary.Text())
	if summary.Failed() {
		return fmt.Errorf("sync completed with failures")
	}
	return nil
}

func collectBatches(settings *config.Settings, args []string) ([]source.Batch, error) {
	if len(args) > 0 {
		batches := make([]source.Batch, 0, len(args))
		for _, path := range args {
			batch, err := source.Load(path)
			if err != nil {
				return nil, err
			}
			batches = append(batches, batch)
		}
		return batches, nil
	}
	return source.LoadDir(settings.SourcesDir, source.NewFilter(settings.MaxFileSize))
}

// RunSearch queries the search index and prints matches to stdout.
func RunSearch(ctx context.Context, flags *pflag.FlagSet, query string) error {
	settings, err := setup(flags)
	if err != nil {
		return err
	}

	index, err := sink.NewSearchIndex(settings.BaseDir)
	if err != nil {
		return err
	}
	defer index.Close()

	results, err := index.Search(ctx, query, settings.Org, settings.Search.MaxResults)
	if err != nil {
		return fmt.Errorf("search failed: %w", err)
	}

	if results.Total == 0 {
		fmt.Printf("no results for %q\n", query)
		return nil
	}

	fmt.Printf("%d result(s) for %q:\n", results.Total, query)
	for i, hit := range results.Hits {
		name, _ := hit.Fields["person_name"].(string)
		position, _ := hit.Fields["position_name"].(string)
		org, _ := hit.Fields["org_id"].(string)
		email, _ := hit.Fields["person_email"].(string)
		fmt.Printf("%2d. %s | %s (%s) %s\n", i+1, name, position, org, email)
	}
	return nil
}

// RunStatus prints the fingerprint store contents.
func RunStatus(flags *pflag.FlagSet) error {
	settings, err := setup(flags)
	if err != nil {
		return err
	}

	store, err := fingerprint.Load(filepath.Join(settings.BaseDir, fingerprint.StoreFilename))
	if err != nil {
		return err
	}

	names := store.SourceNames()
	if len(names) == 0 {
		fmt.Println("no sources synced yet")
		return nil
	}
	sort.Strings(names)

	for _, name := range names {
		entry, _ := store.Get(name)
		fmt.Printf("%s  sha256=%s  task=%s  synced=%s  sinks=%s\n",
			name, shortDigest(entry.SHA256), entry.TaskID,
			entry.SyncedAt.Format("2006-01-02 15:04:05"), strings.Join(entry.Sinks, ","))
	}
	return nil
}

// shortDigest truncates a digest for display. A hand-edited store can
// carry entries shorter than a full sha256 hex string.
func shortDigest(s string) string {
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
