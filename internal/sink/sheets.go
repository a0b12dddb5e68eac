package sink

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/mygovdir/dirsync/internal/domain"
	"github.com/mygovdir/dirsync/internal/reconcile"
)

// SheetsOptions configures the spreadsheet mirror client.
type SheetsOptions struct {
	BaseURL    string
	Token      string
	RetryCount int
	RetryWait  time.Duration
	RetryMax   time.Duration
	Timeout    time.Duration
}

// Sheets mirrors directory records into one worksheet per organization
// through the sheet bridge HTTP API. Spreadsheets have no efficient point
// update, so any non-empty change set degrades to clearing the
// organization's data rows and appending the full new set; this is a
// property of the medium, applied at group granularity.
type Sheets struct {
	client *resty.Client
	now    func() time.Time
}

// NewSheets creates a sheets sink. Rate-limit and server-side errors are
// retried with exponential backoff and jitter, capped at opts.RetryMax,
// for at most opts.RetryCount attempts, after which the call fails loudly.
func NewSheets(opts SheetsOptions) *Sheets {
	client := resty.New().
		SetBaseURL(opts.BaseURL).
		SetTimeout(opts.Timeout).
		SetRetryCount(opts.RetryCount).
		SetRetryWaitTime(opts.RetryWait).
		SetRetryMaxWaitTime(opts.RetryMax).
		AddRetryCondition(func(resp *resty.Response, err error) bool {
			if err != nil {
				return false
			}
			return resp.StatusCode() == http.StatusTooManyRequests ||
				resp.StatusCode() >= http.StatusInternalServerError
		})
	if opts.Token != "" {
		client.SetAuthToken(opts.Token)
	}
	return &Sheets{client: client, now: time.Now}
}

// Name implements reconcile.Sink.
func (s *Sheets) Name() string {
	return "sheets"
}

// Ping implements reconcile.Sink.
func (s *Sheets) Ping(ctx context.Context) error {
	resp, err := s.client.R().SetContext(ctx).Get("/tabs")
	if err != nil {
		return fmt.Errorf("sheet bridge unreachable: %w", err)
	}
	if resp.IsError() {
		return fmt.Errorf("sheet bridge unhealthy: %s", resp.Status())
	}
	return nil
}

type ensureTabRequest struct {
	Header []string `json:"header"`
}

type appendRowsRequest struct {
	Rows [][]string `json:"rows"`
}

// Apply implements reconcile.Sink. The worksheet named after the org id is
// created with the canonical header if needed, its data rows are cleared,
// and the full snapshot is appended in sort order.
func (s *Sheets) Apply(ctx context.Context, cs reconcile.ChangeSet) (reconcile.SinkResult, error) {
	var result reconcile.SinkResult
	if cs.Empty() {
		return result, nil
	}

	if err := s.ensureTab(ctx, cs.OrgID); err != nil {
		return result, err
	}
	if err := s.clearRows(ctx, cs.OrgID); err != nil {
		return result, err
	}
	if err := s.appendRows(ctx, cs.OrgID, cs.Snapshot); err != nil {
		return result, err
	}

	result.Applied = len(cs.Added) + len(cs.Updated) + len(cs.Deleted)
	return result, nil
}

func (s *Sheets) ensureTab(ctx context.Context, tab string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(ensureTabRequest{Header: domain.Columns}).
		Put("/tabs/" + tab)
	if err != nil {
		return fmt.Errorf("failed to ensure worksheet %s: %w", tab, err)
	}
	if resp.IsError() {
		return fmt.Errorf("failed to ensure worksheet %s: %s", tab, resp.Status())
	}
	return nil
}

func (s *Sheets) clearRows(ctx context.Context, tab string) error {
	resp, err := s.client.R().
		SetContext(ctx).
		Post("/tabs/" + tab + "/clear")
	if err != nil {
		return fmt.Errorf("failed to clear worksheet %s: %w", tab, err)
	}
	if resp.IsError() {
		return fmt.Errorf("failed to clear worksheet %s: %s", tab, resp.Status())
	}
	return nil
}

func (s *Sheets) appendRows(ctx context.Context, tab string, records []domain.DirectoryRecord) error {
	syncedAt := s.now()
	rows := make([][]string, len(records))
	for i, rec := range records {
		rows[i] = rec.Row(syncedAt)
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(appendRowsRequest{Rows: rows}).
		Post("/tabs/" + tab + "/rows")
	if err != nil {
		return fmt.Errorf("failed to append rows to %s: %w", tab, err)
	}
	if resp.IsError() {
		return fmt.Errorf("failed to append rows to %s: %s", tab, resp.Status())
	}
	return nil
}
