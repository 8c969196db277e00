package syncer

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wonderfulspam/suitesync/pkg/analytics"
	"github.com/wonderfulspam/suitesync/pkg/backup"
	"github.com/wonderfulspam/suitesync/pkg/catalog"
	"github.com/wonderfulspam/suitesync/pkg/differ"
	"github.com/wonderfulspam/suitesync/pkg/scope"
	"github.com/wonderfulspam/suitesync/pkg/syncerr"
)

var tracer = otel.Tracer("github.com/wonderfulspam/suitesync/pkg/syncer")

// Request describes one sync run.
type Request struct {
	Source  string
	Targets []string
	// Categories are category names. Empty means every category.
	Categories []string
	Policy     scope.Policy
}

// Syncer drives fetch, diff, filter, backup and write for every
// (category, target) pair. It is not safe for concurrent use.
type Syncer struct {
	client  analytics.Client
	backups *backup.Manager
	company *analytics.Company
	state   State
	now     func() time.Time
}

type Option func(*Syncer)

// WithClock overrides the report time source.
func WithClock(now func() time.Time) Option {
	return func(s *Syncer) { s.now = now }
}

// New creates a Syncer. backups may be nil when only dry runs and
// comparisons are performed.
func New(client analytics.Client, backups *backup.Manager, opts ...Option) *Syncer {
	s := &Syncer{
		client:  client,
		backups: backups,
		state:   StateIdle,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// State returns the most recent state.
func (s *Syncer) State() State {
	return s.state
}

// Company returns the company resolved by Connect.
func (s *Syncer) Company() *analytics.Company {
	return s.company
}

// Connect authenticates once. Later calls return the cached company.
func (s *Syncer) Connect(ctx context.Context) (*analytics.Company, error) {
	if s.company != nil {
		return s.company, nil
	}

	company, err := s.client.Connect(ctx)
	if err != nil {
		if !errors.Is(err, syncerr.ErrConnection) {
			err = syncerr.Connection(err, "connect")
		}
		return nil, err
	}

	s.company = company
	if s.backups != nil {
		s.backups.SetCompany(company.Name)
	}
	s.transition(ctx, StateConnected, zap.String("company", company.Name))
	return company, nil
}

func (s *Syncer) transition(ctx context.Context, state State, fields ...zap.Field) {
	s.state = state
	otelzap.Ctx(ctx).Debug("Sync state", append([]zap.Field{zap.String("state", string(state))}, fields...)...)
}

// SyncCategory runs the sync pipeline for a single category.
func (s *Syncer) SyncCategory(ctx context.Context, category catalog.Category, source string, targets []string, policy scope.Policy) (*Report, error) {
	return s.Sync(ctx, Request{
		Source:     source,
		Targets:    targets,
		Categories: []string{string(category)},
		Policy:     policy,
	})
}

// run holds the per-call caches of one Sync.
type run struct {
	report    *Report
	sources   map[catalog.Category][]catalog.Item
	backedUp  map[string]bool
	backupErr map[string]error
}

// Sync runs every requested category against every target. Per-pair failures
// are recorded in the report and do not stop the run. A connection error
// stops the run and is returned with the partial report.
func (s *Syncer) Sync(ctx context.Context, req Request) (*Report, error) {
	categories, targets, err := validate(req)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "syncer.Sync", trace.WithAttributes(
		attribute.String("source", req.Source),
		attribute.StringSlice("targets", targets),
		attribute.Bool("dry_run", req.Policy.DryRun)))
	defer span.End()

	if _, err := s.Connect(ctx); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "connect failed")
		return nil, err
	}

	r := &run{
		report: &Report{
			RunID:      uuid.NewString(),
			Source:     req.Source,
			Targets:    targets,
			Categories: categories,
			Policy:     req.Policy,
			StartedAt:  s.now().UTC(),
			Backups:    map[string]string{},
		},
		sources:   map[catalog.Category][]catalog.Item{},
		backedUp:  map[string]bool{},
		backupErr: map[string]error{},
	}

	logger := otelzap.Ctx(ctx)
	logger.Info("Starting sync",
		zap.String("run_id", r.report.RunID),
		zap.String("source", req.Source),
		zap.Strings("targets", targets),
		zap.Bool("dry_run", req.Policy.DryRun))

	for _, category := range categories {
		if err := s.syncCategory(ctx, r, category, req.Policy); err != nil {
			r.report.Aborted = err.Error()
			s.finish(ctx, r.report)
			span.RecordError(err)
			span.SetStatus(codes.Error, "sync aborted")
			return r.report, err
		}
	}

	s.finish(ctx, r.report)
	summary := r.report.Summary()
	if summary.Failed > 0 {
		span.SetStatus(codes.Error, "sync finished with failures")
	}
	logger.Info("Sync finished",
		zap.String("run_id", r.report.RunID),
		zap.Int("successful", summary.Successful),
		zap.Int("failed", summary.Failed),
		zap.Int("created", summary.Created),
		zap.Int("updated", summary.Updated))
	return r.report, nil
}

func (s *Syncer) finish(ctx context.Context, report *Report) {
	report.FinishedAt = s.now().UTC()
	s.transition(ctx, StateReported, zap.String("run_id", report.RunID))
}

func validate(req Request) ([]catalog.Category, []string, error) {
	categories, err := catalog.ParseCategories(req.Categories)
	if err != nil {
		return nil, nil, err
	}
	if req.Source == "" {
		return nil, nil, errors.New("source report suite is required")
	}
	if len(req.Targets) == 0 {
		return nil, nil, errors.New("at least one target report suite is required")
	}

	seen := make(map[string]bool, len(req.Targets))
	targets := make([]string, 0, len(req.Targets))
	for _, target := range req.Targets {
		switch {
		case target == "":
			return nil, nil, errors.New("empty target report suite")
		case target == req.Source:
			return nil, nil, errors.WithHint(
				errors.Newf("target %q is the source", target),
				"a report suite cannot be synced onto itself")
		case seen[target]:
			continue
		}
		seen[target] = true
		targets = append(targets, target)
	}
	return categories, targets, nil
}

// syncCategory processes one category for every target. Only fatal errors
// are returned.
func (s *Syncer) syncCategory(ctx context.Context, r *run, category catalog.Category, policy scope.Policy) error {
	ctx, span := tracer.Start(ctx, "syncer.category")
	defer span.End()
	span.SetAttributes(attribute.String("category", string(category)))

	s.transition(ctx, StateForCategory, zap.String("category", string(category)))
	desc := catalog.MustDescribe(category)

	source, err := s.sourceItems(ctx, r, category)
	if err != nil {
		if errors.Is(err, syncerr.ErrConnection) {
			return err
		}
		for _, target := range r.report.Targets {
			r.report.Entries = append(r.report.Entries, failedEntry(category, target, err))
		}
		otelzap.Ctx(ctx).Error("Source fetch failed",
			zap.String("category", string(category)),
			zap.Error(err))
		return nil
	}

	for _, target := range r.report.Targets {
		entry, err := s.syncTarget(ctx, r, desc, source, target, policy)
		r.report.Entries = append(r.report.Entries, entry)
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *Syncer) sourceItems(ctx context.Context, r *run, category catalog.Category) ([]catalog.Item, error) {
	if items, ok := r.sources[category]; ok {
		return items, nil
	}
	items, err := s.client.Fetch(ctx, r.report.Source, category)
	if err != nil {
		return nil, err
	}
	r.sources[category] = items
	return items, nil
}

// syncTarget always returns the entry to record. The error is non-nil only
// when the run must stop.
func (s *Syncer) syncTarget(ctx context.Context, r *run, desc catalog.Descriptor, source []catalog.Item, target string, policy scope.Policy) (Entry, error) {
	category := desc.Category
	fields := []zap.Field{zap.String("category", string(category)), zap.String("target", target)}
	logger := otelzap.Ctx(ctx)

	s.transition(ctx, StateForTarget, fields...)

	if err := r.backupErr[target]; err != nil {
		s.transition(ctx, StateSkipped, fields...)
		return failedEntry(category, target, err), nil
	}

	items, err := s.client.Fetch(ctx, target, category)
	if err != nil {
		logger.Error("Target fetch failed", append(fields, zap.Error(err))...)
		return failedEntry(category, target, err), fatal(err)
	}
	s.transition(ctx, StateFetched, fields...)

	diff, err := differ.Compare(category, source, items)
	if err != nil {
		logger.Error("Diff failed", append(fields, zap.Error(err))...)
		return failedEntry(category, target, err), nil
	}
	s.transition(ctx, StateDiffed, fields...)

	selection := scope.Select(diff, desc, policy)
	s.transition(ctx, StateFiltered, fields...)

	entry := Entry{
		Category: category,
		Target:   target,
		Counts:   countsOf(selection),
		Diff:     diff,
	}
	entry.Preview, entry.PreviewMore = buildPreview(selection, desc)

	if !selection.Writes() {
		entry.Status = StatusInSync
		s.transition(ctx, StateSkipped, fields...)
		return entry, nil
	}

	if policy.DryRun {
		entry.Status = StatusPlanned
		logger.Info("Dry run: would write",
			append(fields,
				zap.Int("create", entry.Counts.Created),
				zap.Int("update", entry.Counts.Updated),
				zap.Int("carried", entry.Counts.Carried),
				zap.Int("retained", entry.Counts.Retained))...)
		s.transition(ctx, StateSkipped, fields...)
		return entry, nil
	}

	if err := s.checkpoint(ctx, r, target); err != nil {
		logger.Error("Backup failed, skipping target", append(fields, zap.Error(err))...)
		markFailed(&entry, err)
		return entry, fatal(err)
	}
	s.transition(ctx, StateBackedUp, fields...)

	if err := s.client.Write(ctx, target, category, selection.WriteSet()); err != nil {
		logger.Error("Write failed", append(fields, zap.Error(err))...)
		markFailed(&entry, err)
		return entry, fatal(err)
	}

	entry.Status = StatusWritten
	s.transition(ctx, StateWritten, fields...)
	logger.Info("Synced category",
		append(fields,
			zap.Int("created", entry.Counts.Created),
			zap.Int("updated", entry.Counts.Updated))...)
	return entry, nil
}

// checkpoint backs up target before its first write in this run. A failure
// is remembered so the target is skipped for every remaining category.
func (s *Syncer) checkpoint(ctx context.Context, r *run, target string) error {
	if r.backedUp[target] {
		return nil
	}
	if s.backups == nil {
		err := syncerr.BackupIncomplete(errors.New("no backup store configured"), target)
		r.backupErr[target] = err
		return err
	}

	_, ref, err := s.backups.Backup(ctx, target)
	if err != nil {
		r.backupErr[target] = err
		return err
	}
	r.backedUp[target] = true
	r.report.Backups[target] = ref
	return nil
}

func failedEntry(category catalog.Category, target string, err error) Entry {
	return Entry{
		Category:  category,
		Target:    target,
		Status:    StatusFailed,
		Error:     err.Error(),
		ErrorKind: syncerr.Kind(err),
	}
}

// markFailed turns a planned write into a failure. The creates and updates
// it would have made count as failed items.
func markFailed(entry *Entry, err error) {
	entry.Status = StatusFailed
	entry.Error = err.Error()
	entry.ErrorKind = syncerr.Kind(err)
	entry.Counts.Failed = entry.Counts.Created + entry.Counts.Updated
	entry.Counts.Created = 0
	entry.Counts.Updated = 0
}

// fatal returns err when it must stop the run.
func fatal(err error) error {
	if errors.Is(err, syncerr.ErrConnection) {
		return err
	}
	return nil
}

// Compare fetches every requested category from both environments and diffs
// them without writing anything. A fetch failure is recorded against the
// category; a connection error stops the comparison.
func (s *Syncer) Compare(ctx context.Context, a, b string, categoryNames []string) (*differ.ComparisonReport, error) {
	categories, err := catalog.ParseCategories(categoryNames)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "syncer.Compare")
	defer span.End()

	if _, err := s.Connect(ctx); err != nil {
		return nil, err
	}

	failures := map[catalog.Category]string{}
	capture := func(env string) (*catalog.Snapshot, error) {
		items := make(map[catalog.Category][]catalog.Item, len(categories))
		for _, c := range categories {
			fetched, err := s.client.Fetch(ctx, env, c)
			if err != nil {
				if errors.Is(err, syncerr.ErrConnection) {
					return nil, err
				}
				if _, seen := failures[c]; !seen {
					failures[c] = err.Error()
				}
				continue
			}
			items[c] = fetched
		}
		return catalog.NewSnapshot(env, s.now(), items), nil
	}

	left, err := capture(a)
	if err != nil {
		return nil, err
	}
	right, err := capture(b)
	if err != nil {
		return nil, err
	}

	report := differ.CompareSnapshots(left, right, categories)
	for c, msg := range failures {
		report.Errors[c] = msg
	}
	return report, nil
}
