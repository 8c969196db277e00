package syncer

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonderfulspam/suitesync/pkg/analytics"
	"github.com/wonderfulspam/suitesync/pkg/backup"
	"github.com/wonderfulspam/suitesync/pkg/catalog"
	"github.com/wonderfulspam/suitesync/pkg/scope"
	"github.com/wonderfulspam/suitesync/pkg/syncerr"
)

func evar(key, name string, enabled bool) catalog.Item {
	return catalog.Item{
		Key:     key,
		Enabled: enabled,
		Name:    name,
		Fields:  map[string]any{"id": key, "name": name, "enabled": enabled, "type": "text_string"},
	}
}

func filters(t *testing.T, values ...any) []catalog.Item {
	t.Helper()
	items, err := catalog.FromRecords(catalog.MustDescribe(catalog.InternalURLFilters), values)
	require.NoError(t, err)
	return items
}

// newFixture seeds prod_rsid as source and dev_rsid/stg_rsid as targets.
// evar1 is changed on both targets, evar2 is missing from both and evar3 is
// disabled in the source.
func newFixture(t *testing.T) (*analytics.Simulation, *Syncer) {
	t.Helper()
	sim := analytics.NewSimulation(nil)

	sim.Seed("prod_rsid", catalog.EVars, []catalog.Item{
		evar("evar1", "Page Name", true),
		evar("evar2", "Campaign", true),
		evar("evar3", "Legacy", false),
	})
	sim.Seed("prod_rsid", catalog.InternalURLFilters, filters(t, "example.com", "shop.example.com"))

	for _, target := range []string{"dev_rsid", "stg_rsid"} {
		sim.Seed(target, catalog.EVars, []catalog.Item{
			evar("evar1", "Old Page Name", true),
			evar("evar9", "Target Only", true),
		})
		sim.Seed(target, catalog.InternalURLFilters, filters(t, "example.com"))
	}

	store, err := backup.NewFileStore(filepath.Join(t.TempDir(), "backups"))
	require.NoError(t, err)
	manager := backup.NewManager(sim, store)

	return sim, New(sim, manager)
}

func TestSync_WritesAndCheckpoints(t *testing.T) {
	sim, s := newFixture(t)

	report, err := s.Sync(context.Background(), Request{
		Source:     "prod_rsid",
		Targets:    []string{"dev_rsid", "stg_rsid"},
		Categories: []string{"evars"},
	})
	require.NoError(t, err)

	require.Len(t, report.Entries, 2)
	for _, entry := range report.Entries {
		assert.Equal(t, StatusWritten, entry.Status)
		assert.Equal(t, Counts{Created: 1, Updated: 1, Skipped: 1}, entry.Counts)
	}
	assert.Len(t, report.Backups, 2)
	assert.Len(t, sim.Writes(), 2)
	assert.Equal(t, StateReported, s.State())
	assert.NotEmpty(t, report.RunID)
	assert.False(t, report.FinishedAt.Before(report.StartedAt))

	// nothing is deleted from the target
	items, err := sim.Fetch(context.Background(), "dev_rsid", catalog.EVars)
	require.NoError(t, err)
	keys := make([]string, 0, len(items))
	for _, item := range items {
		keys = append(keys, item.Key)
	}
	assert.ElementsMatch(t, []string{"evar1", "evar2", "evar9"}, keys)
}

func TestSync_Idempotent(t *testing.T) {
	sim, s := newFixture(t)
	req := Request{Source: "prod_rsid", Targets: []string{"dev_rsid"}}

	_, err := s.Sync(context.Background(), req)
	require.NoError(t, err)
	writes := len(sim.Writes())

	report, err := s.Sync(context.Background(), req)
	require.NoError(t, err)

	assert.Len(t, sim.Writes(), writes, "second run must not write")
	assert.Empty(t, report.Backups)
	for _, entry := range report.Entries {
		assert.Equal(t, StatusInSync, entry.Status, "category %s", entry.Category)
		assert.Zero(t, entry.Counts.Created)
		assert.Zero(t, entry.Counts.Updated)
	}
}

func TestSync_DryRunMatchesRealRun(t *testing.T) {
	sim, s := newFixture(t)
	req := Request{
		Source:  "prod_rsid",
		Targets: []string{"dev_rsid", "stg_rsid"},
		Policy:  scope.Policy{}.With(scope.DryRun(true)),
	}

	planned, err := s.Sync(context.Background(), req)
	require.NoError(t, err)
	assert.Empty(t, sim.Writes())
	assert.Empty(t, planned.Backups)

	req.Policy = scope.Policy{}
	actual, err := s.Sync(context.Background(), req)
	require.NoError(t, err)

	require.Len(t, actual.Entries, len(planned.Entries))
	for i, p := range planned.Entries {
		a := actual.Entries[i]
		assert.NotEqual(t, StatusWritten, p.Status)
		assert.Equal(t, p.Counts, a.Counts, "%s/%s", p.Category, p.Target)
		if p.Status == StatusPlanned {
			assert.Equal(t, StatusWritten, a.Status)
		} else {
			assert.Equal(t, p.Status, a.Status)
		}
	}
}

func TestSync_IncludeDisabled(t *testing.T) {
	_, s := newFixture(t)

	report, err := s.SyncCategory(context.Background(), catalog.EVars, "prod_rsid", []string{"dev_rsid"},
		scope.Policy{}.With(scope.DryRun(true), scope.IncludeDisabled(true)))
	require.NoError(t, err)

	entry, ok := report.Entry(catalog.EVars, "dev_rsid")
	require.True(t, ok)
	assert.Equal(t, Counts{Created: 2, Updated: 1}, entry.Counts)
}

func TestSync_FullSetCategoryCarriesUnchanged(t *testing.T) {
	sim, s := newFixture(t)

	report, err := s.SyncCategory(context.Background(), catalog.InternalURLFilters, "prod_rsid", []string{"dev_rsid"}, scope.Policy{})
	require.NoError(t, err)

	entry, ok := report.Entry(catalog.InternalURLFilters, "dev_rsid")
	require.True(t, ok)
	assert.Equal(t, StatusWritten, entry.Status)
	assert.Equal(t, Counts{Created: 1, Skipped: 1, Carried: 1}, entry.Counts)

	items, err := sim.Fetch(context.Background(), "dev_rsid", catalog.InternalURLFilters)
	require.NoError(t, err)
	assert.Equal(t, filters(t, "example.com", "shop.example.com"), items)
}

func TestSync_WriteFailureIsolated(t *testing.T) {
	sim, s := newFixture(t)
	sim.FailWrite("stg_rsid", catalog.EVars, errors.New("503 service unavailable"))

	report, err := s.Sync(context.Background(), Request{
		Source:     "prod_rsid",
		Targets:    []string{"stg_rsid", "dev_rsid"},
		Categories: []string{"evars", "internal_url_filters"},
	})
	require.NoError(t, err)

	failed, ok := report.Entry(catalog.EVars, "stg_rsid")
	require.True(t, ok)
	assert.Equal(t, StatusFailed, failed.Status)
	assert.Equal(t, "remote_write", failed.ErrorKind)
	assert.Equal(t, Counts{Skipped: 1, Failed: 2}, failed.Counts)

	ok2, _ := report.Entry(catalog.EVars, "dev_rsid")
	assert.Equal(t, StatusWritten, ok2.Status)

	// the failed category does not stop later categories for the same target
	next, _ := report.Entry(catalog.InternalURLFilters, "stg_rsid")
	assert.Equal(t, StatusWritten, next.Status)

	summary := report.Summary()
	assert.Equal(t, 1, summary.Failed)
	assert.Equal(t, 3, summary.Successful)
}

func TestSync_BackupFailureSkipsTarget(t *testing.T) {
	sim, s := newFixture(t)
	// props is not synced but every category is captured by the backup
	sim.FailFetch("stg_rsid", catalog.Props, errors.New("timeout"))

	report, err := s.Sync(context.Background(), Request{
		Source:     "prod_rsid",
		Targets:    []string{"stg_rsid", "dev_rsid"},
		Categories: []string{"evars", "internal_url_filters"},
	})
	require.NoError(t, err)

	for _, c := range []catalog.Category{catalog.EVars, catalog.InternalURLFilters} {
		entry, ok := report.Entry(c, "stg_rsid")
		require.True(t, ok)
		assert.Equal(t, StatusFailed, entry.Status, "category %s", c)
		assert.Equal(t, "backup_incomplete", entry.ErrorKind)

		other, _ := report.Entry(c, "dev_rsid")
		assert.Equal(t, StatusWritten, other.Status)
	}

	// the category that triggered the backup keeps its diff and counts
	first, _ := report.Entry(catalog.EVars, "stg_rsid")
	assert.NotNil(t, first.Diff)
	assert.Equal(t, Counts{Skipped: 1, Failed: 2}, first.Counts)

	for _, w := range sim.Writes() {
		assert.NotEqual(t, "stg_rsid", w.RSID, "no write may reach a target without a backup")
	}
	assert.NotContains(t, report.Backups, "stg_rsid")
	assert.Contains(t, report.Backups, "dev_rsid")
}

func TestSync_ChangedOnlyKeepsFullSetLists(t *testing.T) {
	sim, s := newFixture(t)
	sim.Seed("prod_rsid", catalog.InternalURLFilters, filters(t, "a.example.com", "b.example.com", "new.example.com"))
	sim.Seed("dev_rsid", catalog.InternalURLFilters, filters(t, "a.example.com", "b.example.com", "c.example.com", "d.example.com"))

	req := Request{
		Source:     "prod_rsid",
		Targets:    []string{"dev_rsid"},
		Categories: []string{"internal_url_filters"},
		Policy:     scope.Policy{}.With(scope.ChangedOnly(true)),
	}
	want := filters(t, "a.example.com", "b.example.com", "new.example.com", "d.example.com")

	report, err := s.Sync(context.Background(), req)
	require.NoError(t, err)
	entry, ok := report.Entry(catalog.InternalURLFilters, "dev_rsid")
	require.True(t, ok)
	assert.Equal(t, StatusWritten, entry.Status)
	assert.Equal(t, Counts{Updated: 1, Skipped: 2, Carried: 2, Retained: 1}, entry.Counts)

	items, err := sim.Fetch(context.Background(), "dev_rsid", catalog.InternalURLFilters)
	require.NoError(t, err)
	assert.Equal(t, want, items)

	report, err = s.Sync(context.Background(), req)
	require.NoError(t, err)
	entry, _ = report.Entry(catalog.InternalURLFilters, "dev_rsid")
	assert.Equal(t, StatusInSync, entry.Status)
	assert.Zero(t, entry.Counts.Created)
	assert.Zero(t, entry.Counts.Updated)

	items, err = sim.Fetch(context.Background(), "dev_rsid", catalog.InternalURLFilters)
	require.NoError(t, err)
	assert.Equal(t, want, items)
}

func TestSync_ConnectionErrorAborts(t *testing.T) {
	sim, s := newFixture(t)
	sim.FailFetch("stg_rsid", catalog.EVars, syncerr.Connection(errors.New("token expired"), "fetch"))

	report, err := s.Sync(context.Background(), Request{
		Source:     "prod_rsid",
		Targets:    []string{"dev_rsid", "stg_rsid"},
		Categories: []string{"evars", "internal_url_filters"},
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, syncerr.ErrConnection))

	require.NotNil(t, report)
	require.Len(t, report.Entries, 2)
	assert.Equal(t, StatusWritten, report.Entries[0].Status)
	assert.Equal(t, "connection", report.Entries[1].ErrorKind)
	assert.NotEmpty(t, report.Aborted)
	assert.False(t, report.FinishedAt.IsZero())
}

func TestSync_SourceFetchFailureMarksEveryTarget(t *testing.T) {
	sim, s := newFixture(t)
	sim.FailFetch("prod_rsid", catalog.EVars, errors.New("500"))

	report, err := s.Sync(context.Background(), Request{
		Source:     "prod_rsid",
		Targets:    []string{"dev_rsid", "stg_rsid"},
		Categories: []string{"evars", "internal_url_filters"},
	})
	require.NoError(t, err)

	for _, target := range []string{"dev_rsid", "stg_rsid"} {
		entry, _ := report.Entry(catalog.EVars, target)
		assert.Equal(t, StatusFailed, entry.Status)
		assert.Equal(t, "remote_fetch", entry.ErrorKind)

		next, _ := report.Entry(catalog.InternalURLFilters, target)
		assert.Equal(t, StatusWritten, next.Status)
	}
}

func TestSync_SourceFetchedOncePerCategory(t *testing.T) {
	sim, s := newFixture(t)

	_, err := s.Sync(context.Background(), Request{
		Source:     "prod_rsid",
		Targets:    []string{"dev_rsid", "stg_rsid"},
		Categories: []string{"evars"},
		Policy:     scope.Policy{DryRun: true},
	})
	require.NoError(t, err)

	// one source fetch plus one per target
	assert.Equal(t, 3, sim.Fetches())
}

func TestSync_RejectsInvalidRequests(t *testing.T) {
	tests := []struct {
		name string
		req  Request
		kind error
	}{
		{name: "source is target", req: Request{Source: "prod_rsid", Targets: []string{"dev_rsid", "prod_rsid"}}},
		{name: "no targets", req: Request{Source: "prod_rsid"}},
		{name: "no source", req: Request{Targets: []string{"dev_rsid"}}},
		{
			name: "unknown category",
			req:  Request{Source: "prod_rsid", Targets: []string{"dev_rsid"}, Categories: []string{"segments"}},
			kind: syncerr.ErrUnknownCategory,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sim, s := newFixture(t)

			report, err := s.Sync(context.Background(), tt.req)
			require.Error(t, err)
			assert.Nil(t, report)
			if tt.kind != nil {
				assert.True(t, errors.Is(err, tt.kind))
			}
			assert.Zero(t, sim.Fetches())
			assert.Equal(t, StateIdle, s.State())
		})
	}
}

func TestSync_ConnectFailure(t *testing.T) {
	sim, s := newFixture(t)
	sim.FailConnect(errors.New("invalid_client"))

	_, err := s.Sync(context.Background(), Request{Source: "prod_rsid", Targets: []string{"dev_rsid"}})
	require.Error(t, err)
	assert.True(t, errors.Is(err, syncerr.ErrConnection))
	assert.Equal(t, StateIdle, s.State())
}

func TestSync_WithoutBackupManager(t *testing.T) {
	sim, _ := newFixture(t)
	s := New(sim, nil)

	report, err := s.SyncCategory(context.Background(), catalog.EVars, "prod_rsid", []string{"dev_rsid"}, scope.Policy{})
	require.NoError(t, err)

	entry, _ := report.Entry(catalog.EVars, "dev_rsid")
	assert.Equal(t, StatusFailed, entry.Status)
	assert.Equal(t, "backup_incomplete", entry.ErrorKind)
	assert.Empty(t, sim.Writes())
}

func TestSyncCategory_MatchesSync(t *testing.T) {
	_, a := newFixture(t)
	_, b := newFixture(t)
	policy := scope.Policy{DryRun: true}

	single, err := a.SyncCategory(context.Background(), catalog.EVars, "prod_rsid", []string{"dev_rsid"}, policy)
	require.NoError(t, err)
	full, err := b.Sync(context.Background(), Request{
		Source:     "prod_rsid",
		Targets:    []string{"dev_rsid"},
		Categories: []string{"EVars"},
		Policy:     policy,
	})
	require.NoError(t, err)

	require.Len(t, single.Entries, 1)
	require.Len(t, full.Entries, 1)
	assert.Equal(t, full.Entries[0].Status, single.Entries[0].Status)
	assert.Equal(t, full.Entries[0].Counts, single.Entries[0].Counts)
	assert.Equal(t, full.Entries[0].Diff, single.Entries[0].Diff)
}

func TestSync_PreviewIsCapped(t *testing.T) {
	sim := analytics.NewSimulation(nil)
	var source []catalog.Item
	for i := 1; i <= PreviewLimit+3; i++ {
		source = append(source, evar(fmt.Sprintf("evar%d", i), fmt.Sprintf("Var %d", i), true))
	}
	sim.Seed("prod_rsid", catalog.EVars, source)
	sim.AddSuite("dev_rsid")
	s := New(sim, nil, WithClock(func() time.Time { return time.Unix(0, 0) }))

	report, err := s.SyncCategory(context.Background(), catalog.EVars, "prod_rsid", []string{"dev_rsid"}, scope.Policy{DryRun: true})
	require.NoError(t, err)

	entry, _ := report.Entry(catalog.EVars, "dev_rsid")
	assert.Len(t, entry.Preview, PreviewLimit)
	assert.Equal(t, 3, entry.PreviewMore)
	assert.Equal(t, "evar1", entry.Preview[0].Key)
	assert.Equal(t, map[string]any{"type": "text_string"}, entry.Preview[0].Fields)
}

func TestCompare(t *testing.T) {
	sim, s := newFixture(t)
	sim.FailFetch("dev_rsid", catalog.Props, errors.New("500"))

	report, err := s.Compare(context.Background(), "prod_rsid", "dev_rsid", []string{"evars", "props"})
	require.NoError(t, err)

	require.Contains(t, report.Results, catalog.EVars)
	evars := report.Results[catalog.EVars]
	assert.Equal(t, []string{"evar2", "evar3"}, evars.OnlyInSource)
	assert.Equal(t, []string{"evar9"}, evars.OnlyInTarget)
	assert.Equal(t, []string{"evar1"}, evars.Changed)

	assert.Contains(t, report.Errors[catalog.Props], "props")
	assert.Empty(t, sim.Writes())
}
