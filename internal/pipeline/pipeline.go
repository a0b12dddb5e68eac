// Package pipeline sequences one sync run: validate, normalize, hash,
// reconcile per organization, dispatch to the sinks, and report. Each
// organization is an independent unit of work; one organization's failure
// is logged and reported, never allowed to abort the rest of the run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/mygovdir/dirsync/internal/content"
	"github.com/mygovdir/dirsync/internal/domain"
	"github.com/mygovdir/dirsync/internal/fingerprint"
	"github.com/mygovdir/dirsync/internal/normalize"
	"github.com/mygovdir/dirsync/internal/notify"
	"github.com/mygovdir/dirsync/internal/reconcile"
	"github.com/mygovdir/dirsync/internal/schema"
	"github.com/mygovdir/dirsync/internal/source"
)

// Mode selects between incremental reconciliation and full overwrite.
type Mode int

const (
	// ModeUpdate reconciles incrementally, short-circuiting unchanged
	// sources via the fingerprint store.
	ModeUpdate Mode = iota
	// ModeLoad rewrites every document regardless of stored hashes.
	ModeLoad
)

func (m Mode) String() string {
	if m == ModeLoad {
		return "load"
	}
	return "update"
}

// DefaultLockTimeout is how long a run waits for a previous run to finish.
const DefaultLockTimeout = 5 * time.Minute

// OrgOutcome is the per-organization result recorded in the run summary.
type OrgOutcome struct {
	OrgID   string
	Added   int
	Updated int
	Deleted int
	Err     error
}

// SourceOutcome records why a whole source was skipped.
type SourceOutcome struct {
	Source string
	Reason string
}

// RunSummary is the consolidated outcome of one pipeline run.
type RunSummary struct {
	TaskID  string
	Mode    Mode
	Orgs    []OrgOutcome
	Skipped []SourceOutcome
}

// Failed reports whether any organization failed.
func (s *RunSummary) Failed() bool {
	for _, o := range s.Orgs {
		if o.Err != nil {
			return true
		}
	}
	return false
}

// Text renders the notification body: one line per organization, skipped
// sources listed after.
func (s *RunSummary) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Directory sync (%s) task %s\n", s.Mode, s.TaskID)
	if len(s.Orgs) == 0 && len(s.Skipped) == 0 {
		b.WriteString("nothing to do\n")
	}
	for _, o := range s.Orgs {
		fmt.Fprintf(&b, "%s - Added: %d, Updated: %d, Deleted: %d", o.OrgID, o.Added, o.Updated, o.Deleted)
		if o.Err != nil {
			fmt.Fprintf(&b, " [FAILED: %v]", o.Err)
		}
		b.WriteByte('\n')
	}
	for _, sk := range s.Skipped {
		fmt.Fprintf(&b, "%s - skipped (%s)\n", sk.Source, sk.Reason)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Options wires a Pipeline.
type Options struct {
	Registry  *schema.Registry
	Sinks     []reconcile.Sink
	State     reconcile.StateSource
	Store     *fingerprint.Store
	StorePath string
	Notifier  notify.Notifier
	LockPath  string
	// LockTimeout bounds the wait for a previous run; zero means
	// DefaultLockTimeout.
	LockTimeout time.Duration
	// OrgFilter, when set, restricts the run to a single organization.
	OrgFilter string
}

// Pipeline is the sequential batch orchestrator.
type Pipeline struct {
	opts Options
	lock *RunLock
}

// New creates a pipeline from options.
func New(opts Options) (*Pipeline, error) {
	if opts.Registry == nil {
		return nil, fmt.Errorf("registry cannot be nil")
	}
	if len(opts.Sinks) == 0 {
		return nil, fmt.Errorf("at least one sink is required")
	}
	if opts.State == nil {
		return nil, fmt.Errorf("a reconciliation state source is required")
	}
	if opts.Store == nil {
		opts.Store = fingerprint.NewStore()
	}
	if opts.Notifier == nil {
		opts.Notifier = notify.Log{}
	}
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = DefaultLockTimeout
	}

	var lock *RunLock
	if opts.LockPath != "" {
		lock = NewRunLock(opts.LockPath)
	}
	return &Pipeline{opts: opts, lock: lock}, nil
}

// Run processes all batches and returns the consolidated summary. The
// returned error is non-nil only for run-level aborts (lock contention,
// unreachable sink); per-organization failures live in the summary.
func (p *Pipeline) Run(ctx context.Context, batches []source.Batch, mode Mode) (*RunSummary, error) {
	if p.lock != nil {
		if err := p.lock.Acquire(p.opts.LockTimeout); err != nil {
			return nil, fmt.Errorf("another sync run is active: %w", err)
		}
		defer func() {
			if err := p.lock.Release(); err != nil {
				slog.Error("Failed to release run lock", "error", err)
			}
		}()
	}

	summary := &RunSummary{TaskID: uuid.NewString(), Mode: mode}

	// An unreachable sink aborts the whole run before any fingerprint
	// moves; partial state must not be committed against a dead sink.
	for _, s := range p.opts.Sinks {
		if err := s.Ping(ctx); err != nil {
			abortErr := fmt.Errorf("sink %s unreachable: %w", s.Name(), err)
			p.notify(ctx, fmt.Sprintf("Directory sync aborted: %v", abortErr))
			return nil, abortErr
		}
	}

	for _, batch := range batches {
		p.runBatch(ctx, batch, mode, summary)
	}

	if p.opts.StorePath != "" {
		if err := p.opts.Store.Save(p.opts.StorePath); err != nil {
			slog.Error("Failed to save fingerprint store", "error", err)
		}
	}

	p.notify(ctx, summary.Text())
	return summary, nil
}

func (p *Pipeline) runBatch(ctx context.Context, batch source.Batch, mode Mode, summary *RunSummary) {
	log := slog.With("source", batch.Source)

	// Empty-batch guard: a scrape that returned nothing is far more
	// likely a broken site than a dissolved ministry. Feeding it to the
	// reconciler would delete every document for the organization.
	if len(batch.Records) == 0 {
		log.Warn("Empty batch, skipping to avoid mass deletion")
		summary.Skipped = append(summary.Skipped, SourceOutcome{Source: batch.Source, Reason: "empty batch"})
		return
	}

	// File-level short-circuit: a byte-identical batch file that every
	// sink already acknowledged cannot produce new work, so skip before
	// validation even runs.
	if mode == ModeUpdate && p.fileUnchanged(batch.Source, batch.FileSHA256) {
		log.Info("Source file unchanged since last run, skipping")
		summary.Skipped = append(summary.Skipped, SourceOutcome{Source: batch.Source, Reason: "no changes"})
		return
	}

	category, err := p.opts.Registry.Resolve(batch.Category)
	if err != nil {
		log.Warn("Unknown category, skipping", "category", batch.Category)
		summary.Skipped = append(summary.Skipped, SourceOutcome{Source: batch.Source, Reason: err.Error()})
		return
	}

	records := p.prepare(batch, category, log)
	if len(records) == 0 {
		log.Warn("No usable records after validation, skipping")
		summary.Skipped = append(summary.Skipped, SourceOutcome{Source: batch.Source, Reason: "no usable records"})
		return
	}

	digest := content.HashBatch(records)

	// Only sinks that have not acknowledged this digest get writes: a
	// sink that failed last run is replayed alone while the ones that
	// succeeded are left untouched.
	pending := p.opts.Sinks
	if mode == ModeUpdate {
		pending = p.pendingSinks(batch.Source, digest)
		if len(pending) == 0 {
			log.Info("Source unchanged since last run, skipping")
			summary.Skipped = append(summary.Skipped, SourceOutcome{Source: batch.Source, Reason: "no changes"})
			return
		}
	}

	sinkOK := make(map[string]bool, len(pending))
	for _, s := range pending {
		sinkOK[s.Name()] = true
	}

	for _, orgID := range orderedOrgIDs(records) {
		outcome := p.runOrg(ctx, orgID, groupFor(records, orgID), mode, pending, sinkOK)
		summary.Orgs = append(summary.Orgs, outcome)
	}

	// A sink acknowledges the digest only when every organization in the
	// source reached it, so a failed sink is retried on the next run
	// while the others stay acknowledged.
	acked := make([]string, 0, len(p.opts.Sinks))
	for _, s := range p.opts.Sinks {
		ok, wasPending := sinkOK[s.Name()]
		if wasPending && ok {
			acked = append(acked, s.Name())
			continue
		}
		if !wasPending && p.opts.Store.Acked(batch.Source, digest, s.Name()) {
			acked = append(acked, s.Name())
		}
	}
	if len(acked) > 0 {
		p.opts.Store.Advance(batch.Source, digest, batch.FileSHA256, summary.TaskID, acked)
	}
}

// fileUnchanged reports whether the raw batch file is byte-identical to
// the last run and every sink acknowledged that run.
func (p *Pipeline) fileUnchanged(source, fileDigest string) bool {
	if fileDigest == "" {
		return false
	}
	e, ok := p.opts.Store.Get(source)
	if !ok || e.FileSHA256 != fileDigest {
		return false
	}
	for _, s := range p.opts.Sinks {
		if !slices.Contains(e.Sinks, s.Name()) {
			return false
		}
	}
	return true
}

// isStateSource reports whether the sink doubles as the reconciliation
// state source.
func (p *Pipeline) isStateSource(s reconcile.Sink) bool {
	ss, ok := s.(reconcile.StateSource)
	return ok && ss == p.opts.State
}

func (p *Pipeline) pendingSinks(source, digest string) []reconcile.Sink {
	var pending []reconcile.Sink
	for _, s := range p.opts.Sinks {
		if !p.opts.Store.Acked(source, digest, s.Name()) {
			pending = append(pending, s)
		}
	}
	return pending
}

// prepare validates and normalizes raw records and converts them to typed
// records in stable sort order. Malformed records are repaired with
// warnings, never dropped; records with no organization id are unusable
// and skipped.
func (p *Pipeline) prepare(batch source.Batch, category schema.Category, log *slog.Logger) []domain.DirectoryRecord {
	validated := make([]map[string]any, 0, len(batch.Records))
	for i, raw := range batch.Records {
		fixed, repairs := category.Schema.Validate(raw)
		for _, repair := range repairs {
			log.Warn("Repaired malformed record", "record", i, "field", repair.Field, "reason", repair.Reason)
		}
		validated = append(validated, fixed)
	}

	normalized := normalize.Batch(validated, category)

	records := make([]domain.DirectoryRecord, 0, len(normalized))
	for i, m := range normalized {
		rec := domain.FromMap(m)
		if rec.OrgID == "" {
			log.Warn("Record has no org_id, skipping", "record", i)
			continue
		}
		if p.opts.OrgFilter != "" && rec.OrgID != p.opts.OrgFilter {
			continue
		}
		records = append(records, rec)
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Less(records[j]) })
	return records
}

// runOrg reconciles and applies one organization as a single logical unit
// of work against the pending sinks. Sinks that fail are marked in sinkOK
// so their acknowledgment is withheld.
func (p *Pipeline) runOrg(ctx context.Context, orgID string, incoming []domain.DirectoryRecord, mode Mode, sinks []reconcile.Sink, sinkOK map[string]bool) OrgOutcome {
	log := slog.With("org_id", orgID)

	existing, err := p.opts.State.Existing(ctx, orgID)
	if err != nil {
		log.Error("Failed to fetch existing documents", "error", err)
		for _, s := range sinks {
			sinkOK[s.Name()] = false
		}
		return OrgOutcome{OrgID: orgID, Err: fmt.Errorf("fetch existing: %w", err)}
	}

	var cs reconcile.ChangeSet
	if mode == ModeLoad {
		cs = reconcile.DiffFull(orgID, incoming, existing)
	} else {
		cs = reconcile.Diff(orgID, incoming, existing)
	}

	outcome := OrgOutcome{
		OrgID:   orgID,
		Added:   len(cs.Added),
		Updated: len(cs.Updated),
		Deleted: len(cs.Deleted),
	}

	apply := cs
	replay := cs.Empty()
	if replay {
		log.Info("No changes")
		// The state source is already current, but a sink that missed
		// or failed the previous run still needs the records. Rewrite
		// the full set for whoever is catching up.
		apply = reconcile.DiffFull(orgID, incoming, existing)
		if apply.Empty() {
			return outcome
		}
		log.Info("Replaying full set to sinks that missed the last run", "documents", len(apply.Snapshot))
	}

	for _, s := range sinks {
		if replay && p.isStateSource(s) {
			// Current by definition; rewriting it would churn document
			// versions for nothing.
			continue
		}
		result, err := s.Apply(ctx, apply)
		if err != nil {
			log.Error("Sink apply failed", "sink", s.Name(), "error", err)
			sinkOK[s.Name()] = false
			outcome.Err = fmt.Errorf("sink %s: %w", s.Name(), err)
			continue
		}
		if !result.OK() {
			for _, f := range result.Failed {
				log.Error("Document write failed", "sink", s.Name(), "doc_id", f.DocumentID, "error", f.Err)
			}
			sinkOK[s.Name()] = false
			outcome.Err = fmt.Errorf("sink %s: %d document(s) failed", s.Name(), len(result.Failed))
			continue
		}
		log.Info("Applied change set", "sink", s.Name(), "applied", result.Applied)
	}

	return outcome
}

func (p *Pipeline) notify(ctx context.Context, text string) {
	if err := p.opts.Notifier.Notify(ctx, text); err != nil {
		slog.Error("Failed to deliver run notification", "error", err)
	}
}

func orderedOrgIDs(records []domain.DirectoryRecord) []string {
	seen := make(map[string]bool)
	var ids []string
	for _, r := range records {
		if !seen[r.OrgID] {
			seen[r.OrgID] = true
			ids = append(ids, r.OrgID)
		}
	}
	sort.Strings(ids)
	return ids
}

func groupFor(records []domain.DirectoryRecord, orgID string) []domain.DirectoryRecord {
	var group []domain.DirectoryRecord
	for _, r := range records {
		if r.OrgID == orgID {
			group = append(group, r)
		}
	}
	return group
}
