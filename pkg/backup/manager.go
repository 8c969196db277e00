package backup

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/hashicorp/go-multierror"
	"github.com/uptrace/opentelemetry-go-extra/otelzap"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"github.com/wonderfulspam/suitesync/pkg/analytics"
	"github.com/wonderfulspam/suitesync/pkg/catalog"
	"github.com/wonderfulspam/suitesync/pkg/syncerr"
)

var tracer = otel.Tracer("github.com/wonderfulspam/suitesync/pkg/backup")

// Manager captures and replays artifacts through a remote client.
type Manager struct {
	client  analytics.Client
	store   Store
	company string
	now     func() time.Time
}

type ManagerOption func(*Manager)

// WithCompany records the company name in every artifact.
func WithCompany(name string) ManagerOption {
	return func(m *Manager) { m.company = name }
}

// WithClock overrides the capture time source.
func WithClock(now func() time.Time) ManagerOption {
	return func(m *Manager) { m.now = now }
}

func NewManager(client analytics.Client, store Store, opts ...ManagerOption) *Manager {
	m := &Manager{
		client: client,
		store:  store,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// SetCompany records the company name once it is known after connecting.
func (m *Manager) SetCompany(name string) {
	m.company = name
}

// Capture fetches every category of env. Any failed fetch fails the capture.
func (m *Manager) Capture(ctx context.Context, env string) (*Artifact, error) {
	categories := make(map[catalog.Category][]catalog.Item, len(catalog.All()))
	for _, c := range catalog.All() {
		items, err := m.client.Fetch(ctx, env, c)
		if err != nil {
			return nil, syncerr.BackupIncomplete(err, env)
		}
		categories[c] = items
	}

	artifact, err := NewArtifact(catalog.NewSnapshot(env, m.now(), categories), m.company)
	if err != nil {
		return nil, syncerr.BackupIncomplete(err, env)
	}
	return artifact, nil
}

// Backup captures env and persists the artifact. Nothing is persisted unless
// every category was fetched. The returned string is the store reference.
func (m *Manager) Backup(ctx context.Context, env string) (*Artifact, string, error) {
	ctx, span := tracer.Start(ctx, "backup.Backup")
	defer span.End()
	span.SetAttributes(attribute.String("environment", env))

	logger := otelzap.Ctx(ctx)
	logger.Info("Backing up report suite", zap.String("rsid", env))

	artifact, err := m.Capture(ctx, env)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "capture failed")
		return nil, "", err
	}

	data, err := artifact.Encode()
	if err != nil {
		return nil, "", syncerr.BackupIncomplete(err, env)
	}

	ref, err := m.store.Save(ctx, artifact.FileName(), data)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "save failed")
		return nil, "", syncerr.BackupIncomplete(err, env)
	}

	span.SetAttributes(attribute.String("artifact.id", artifact.ID))
	logger.Info("Backup saved",
		zap.String("rsid", env),
		zap.String("artifact_id", artifact.ID),
		zap.String("ref", ref))

	return artifact, ref, nil
}

// Load reads and decodes an artifact by store reference.
func (m *Manager) Load(ctx context.Context, ref string) (*Artifact, error) {
	data, err := m.store.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	artifact, err := DecodeArtifact(data)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", ref)
	}
	return artifact, nil
}

// List returns every stored artifact reference.
func (m *Manager) List(ctx context.Context) ([]string, error) {
	return m.store.List(ctx)
}

const (
	RestoreRestored = "restored"
	RestorePlanned  = "planned"
	RestoreAbsent   = "absent"
	RestoreFailed   = "failed"
)

type RestoreOptions struct {
	DryRun bool
}

// RestoreOutcome is the result for one (target, category).
type RestoreOutcome struct {
	Target   string           `json:"target" yaml:"target"`
	Category catalog.Category `json:"category" yaml:"category"`
	Status   string           `json:"status" yaml:"status"`
	Items    int              `json:"items" yaml:"items"`
	// Leftover lists target keys the artifact does not hold. Upsert categories
	// keep them after the restore.
	Leftover  []string `json:"leftover,omitempty" yaml:"leftover,omitempty"`
	Error     string   `json:"error,omitempty" yaml:"error,omitempty"`
	ErrorKind string   `json:"error_kind,omitempty" yaml:"error_kind,omitempty"`
}

type RestoreResult struct {
	ArtifactID  string           `json:"artifact_id" yaml:"artifact_id"`
	Environment string           `json:"environment" yaml:"environment"`
	CapturedAt  time.Time        `json:"captured_at" yaml:"captured_at"`
	DryRun      bool             `json:"dry_run" yaml:"dry_run"`
	Outcomes    []RestoreOutcome `json:"outcomes" yaml:"outcomes"`
}

// Failed counts failed outcomes.
func (r *RestoreResult) Failed() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Status == RestoreFailed {
			n++
		}
	}
	return n
}

// RestoreRef loads ref and restores it.
func (m *Manager) RestoreRef(ctx context.Context, ref string, targets, categories []string, opts RestoreOptions) (*RestoreResult, error) {
	// validate names before touching the store
	if _, err := catalog.ParseCategories(categories); err != nil {
		return nil, err
	}
	artifact, err := m.Load(ctx, ref)
	if err != nil {
		return nil, err
	}
	return m.Restore(ctx, artifact, targets, categories, opts)
}

// Restore writes the artifact's item lists verbatim to every target. No diff
// or scope filter is applied. Category names, the digest and the tool version
// are all checked before the first write. Write failures do not stop the
// remaining writes and are returned together; a connection error stops the
// restore.
func (m *Manager) Restore(ctx context.Context, artifact *Artifact, targets, categories []string, opts RestoreOptions) (*RestoreResult, error) {
	ctx, span := tracer.Start(ctx, "backup.Restore")
	defer span.End()

	requested, err := catalog.ParseCategories(categories)
	if err != nil {
		return nil, err
	}
	if len(targets) == 0 {
		return nil, errors.New("restore needs at least one target")
	}
	if err := artifact.Verify(); err != nil {
		return nil, err
	}

	span.SetAttributes(
		attribute.String("artifact.id", artifact.ID),
		attribute.StringSlice("targets", targets),
		attribute.Bool("dry_run", opts.DryRun))

	logger := otelzap.Ctx(ctx)
	result := &RestoreResult{
		ArtifactID:  artifact.ID,
		Environment: artifact.Environment,
		CapturedAt:  artifact.CapturedAt,
		DryRun:      opts.DryRun,
	}

	var merr *multierror.Error

	for _, target := range targets {
		for _, c := range requested {
			outcome := RestoreOutcome{Target: target, Category: c}

			items, ok := artifact.Categories[c]
			if ok {
				leftover, err := m.leftover(ctx, target, c, items)
				if err != nil {
					outcome.Status = RestoreFailed
					outcome.Error = err.Error()
					outcome.ErrorKind = syncerr.Kind(err)
					result.Outcomes = append(result.Outcomes, outcome)
					merr = multierror.Append(merr, err)
					span.SetStatus(codes.Error, "connection lost")
					return result, merr.ErrorOrNil()
				}
				outcome.Leftover = leftover
			}

			switch {
			case !ok:
				outcome.Status = RestoreAbsent
			case opts.DryRun:
				outcome.Status = RestorePlanned
				outcome.Items = len(items)
			default:
				outcome.Items = len(items)
				if err := m.client.Write(ctx, target, c, items); err != nil {
					outcome.Status = RestoreFailed
					outcome.Error = err.Error()
					outcome.ErrorKind = syncerr.Kind(err)
					result.Outcomes = append(result.Outcomes, outcome)
					merr = multierror.Append(merr, err)

					logger.Error("Restore write failed",
						zap.String("rsid", target),
						zap.String("category", string(c)),
						zap.Error(err))

					if errors.Is(err, syncerr.ErrConnection) {
						span.SetStatus(codes.Error, "connection lost")
						return result, merr.ErrorOrNil()
					}
					continue
				}
				outcome.Status = RestoreRestored
				logger.Info("Restored category",
					zap.String("rsid", target),
					zap.String("category", string(c)),
					zap.Int("items", len(items)),
					zap.Int("leftover", len(outcome.Leftover)))
			}

			result.Outcomes = append(result.Outcomes, outcome)
		}
	}

	if err := merr.ErrorOrNil(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "restore incomplete")
		return result, err
	}
	return result, nil
}

// leftover lists the keys of target's current c items that items lacks.
// Full-set categories are replaced on write and never have leftovers. Only a
// connection error is returned: a failed read just leaves the list unknown.
func (m *Manager) leftover(ctx context.Context, target string, c catalog.Category, items []catalog.Item) ([]string, error) {
	desc, err := catalog.Describe(c)
	if err != nil || !desc.Idempotent {
		return nil, nil
	}

	current, err := m.client.Fetch(ctx, target, c)
	if err != nil {
		if errors.Is(err, syncerr.ErrConnection) {
			return nil, err
		}
		otelzap.Ctx(ctx).Warn("Could not read target before restore",
			zap.String("rsid", target),
			zap.String("category", string(c)),
			zap.Error(err))
		return nil, nil
	}

	restored := make(map[string]bool, len(items))
	for _, item := range items {
		restored[item.Key] = true
	}
	var out []string
	for _, item := range current {
		if !restored[item.Key] {
			out = append(out, item.Key)
		}
	}
	return out, nil
}
