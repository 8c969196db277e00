package backup

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wonderfulspam/suitesync/pkg/analytics"
	"github.com/wonderfulspam/suitesync/pkg/catalog"
	"github.com/wonderfulspam/suitesync/pkg/syncerr"
	"github.com/wonderfulspam/suitesync/pkg/version"
)

var fixedTime = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func seededSimulation(t *testing.T) *analytics.Simulation {
	t.Helper()
	sim := analytics.NewSimulation(nil)
	sim.Seed("dev_rsid", catalog.EVars, []catalog.Item{
		{Key: "evar1", Enabled: true, Name: "Page", Fields: map[string]any{"id": "evar1", "name": "Page", "enabled": true}},
		{Key: "evar2", Enabled: false, Name: "Old", Fields: map[string]any{"id": "evar2", "name": "Old", "enabled": false}},
	})
	desc := catalog.MustDescribe(catalog.InternalURLFilters)
	filters, err := catalog.FromRecords(desc, []any{"example.com", "shop.example.com"})
	require.NoError(t, err)
	sim.Seed("dev_rsid", catalog.InternalURLFilters, filters)
	sim.AddSuite("stg_rsid")

	_, err = sim.Connect(context.Background())
	require.NoError(t, err)
	return sim
}

func newTestManager(t *testing.T, sim *analytics.Simulation) (*Manager, *FileStore) {
	t.Helper()
	store, err := NewFileStore(filepath.Join(t.TempDir(), "backups"))
	require.NoError(t, err)
	return NewManager(sim, store, WithCompany("Example Co"), WithClock(func() time.Time { return fixedTime })), store
}

func TestBackup_PersistsEveryCategory(t *testing.T) {
	sim := seededSimulation(t)
	manager, store := newTestManager(t, sim)

	artifact, ref, err := manager.Backup(context.Background(), "dev_rsid")
	require.NoError(t, err)

	assert.Equal(t, "dev_rsid", artifact.Environment)
	assert.Equal(t, "Example Co", artifact.Company)
	assert.Equal(t, version.Version, artifact.ToolVersion)
	assert.Len(t, artifact.Categories, len(catalog.All()))
	assert.Len(t, artifact.Categories[catalog.EVars], 2)
	assert.Equal(t, "backup_dev_rsid_20260314_092653.json", filepath.Base(ref))

	refs, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{ref}, refs)

	loaded, err := manager.Load(context.Background(), ref)
	require.NoError(t, err)
	assert.Equal(t, artifact.ID, loaded.ID)
	assert.Equal(t, artifact.Digest, loaded.Digest)
	require.NoError(t, loaded.Verify())
}

func TestBackup_AllOrNothing(t *testing.T) {
	sim := seededSimulation(t)
	sim.FailFetch("dev_rsid", catalog.MarketingChannels, errors.New("timeout"))
	manager, store := newTestManager(t, sim)

	_, _, err := manager.Backup(context.Background(), "dev_rsid")
	require.Error(t, err)
	assert.True(t, errors.Is(err, syncerr.ErrBackupIncomplete))

	refs, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, refs, "a partial backup must not be persisted")
}

func TestBackup_SameSecondDoesNotOverwrite(t *testing.T) {
	sim := seededSimulation(t)
	manager, store := newTestManager(t, sim)

	_, first, err := manager.Backup(context.Background(), "dev_rsid")
	require.NoError(t, err)
	_, second, err := manager.Backup(context.Background(), "dev_rsid")
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	refs, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, refs, 2)
}

func TestRestore_RoundTrip(t *testing.T) {
	sim := seededSimulation(t)
	manager, _ := newTestManager(t, sim)
	ctx := context.Background()

	before, ref, err := manager.Backup(ctx, "dev_rsid")
	require.NoError(t, err)

	// drift: change an existing eVar and replace the filter list
	require.NoError(t, sim.Write(ctx, "dev_rsid", catalog.EVars, []catalog.Item{
		{Key: "evar1", Enabled: true, Fields: map[string]any{"id": "evar1", "name": "Changed", "enabled": true}},
	}))
	drifted, err := catalog.FromRecords(catalog.MustDescribe(catalog.InternalURLFilters), []any{"other.example.com"})
	require.NoError(t, err)
	require.NoError(t, sim.Write(ctx, "dev_rsid", catalog.InternalURLFilters, drifted))

	result, err := manager.RestoreRef(ctx, ref, []string{"dev_rsid"}, nil, RestoreOptions{})
	require.NoError(t, err)
	assert.Len(t, result.Outcomes, len(catalog.All()))
	assert.Equal(t, 0, result.Failed())

	after, err := manager.Capture(ctx, "dev_rsid")
	require.NoError(t, err)
	assert.Equal(t, before.Digest, after.Digest)
	assert.Equal(t, before.Categories, after.Categories)
}

func TestRestore_ReportsLeftoverKeys(t *testing.T) {
	sim := seededSimulation(t)
	manager, _ := newTestManager(t, sim)
	ctx := context.Background()

	_, ref, err := manager.Backup(ctx, "dev_rsid")
	require.NoError(t, err)

	// a later sync creates evar3 and rewrites the filter list
	require.NoError(t, sim.Write(ctx, "dev_rsid", catalog.EVars, []catalog.Item{
		{Key: "evar3", Enabled: true, Fields: map[string]any{"id": "evar3", "name": "New", "enabled": true}},
	}))
	grown, err := catalog.FromRecords(catalog.MustDescribe(catalog.InternalURLFilters), []any{"example.com", "shop.example.com", "new.example.com"})
	require.NoError(t, err)
	require.NoError(t, sim.Write(ctx, "dev_rsid", catalog.InternalURLFilters, grown))

	planned, err := manager.RestoreRef(ctx, ref, []string{"dev_rsid"}, []string{"evars"}, RestoreOptions{DryRun: true})
	require.NoError(t, err)
	require.Len(t, planned.Outcomes, 1)
	assert.Equal(t, []string{"evar3"}, planned.Outcomes[0].Leftover)

	result, err := manager.RestoreRef(ctx, ref, []string{"dev_rsid"}, []string{"evars", "internal_url_filters"}, RestoreOptions{})
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 2)

	assert.Equal(t, RestoreRestored, result.Outcomes[0].Status)
	assert.Equal(t, []string{"evar3"}, result.Outcomes[0].Leftover)
	assert.Equal(t, catalog.InternalURLFilters, result.Outcomes[1].Category)
	assert.Empty(t, result.Outcomes[1].Leftover, "full-set categories are replaced")

	evars, err := sim.Fetch(ctx, "dev_rsid", catalog.EVars)
	require.NoError(t, err)
	assert.Len(t, evars, 3, "the upsert keeps evar3")
	filters, err := sim.Fetch(ctx, "dev_rsid", catalog.InternalURLFilters)
	require.NoError(t, err)
	assert.Len(t, filters, 2)
}

func TestRestore_ConnectionErrorWhileReadingTargetStops(t *testing.T) {
	sim := seededSimulation(t)
	manager, _ := newTestManager(t, sim)
	ctx := context.Background()

	artifact, err := manager.Capture(ctx, "dev_rsid")
	require.NoError(t, err)
	sim.FailFetch("stg_rsid", catalog.EVars, syncerr.Connection(errors.New("token expired"), "fetch"))

	result, err := manager.Restore(ctx, artifact, []string{"stg_rsid"}, []string{"evars", "props"}, RestoreOptions{})
	require.Error(t, err)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, RestoreFailed, result.Outcomes[0].Status)
	assert.Empty(t, sim.Writes())
}

func TestRestore_UnknownCategoryFailsBeforeWrites(t *testing.T) {
	sim := seededSimulation(t)
	manager, _ := newTestManager(t, sim)
	ctx := context.Background()

	artifact, err := manager.Capture(ctx, "dev_rsid")
	require.NoError(t, err)

	_, err = manager.Restore(ctx, artifact, []string{"stg_rsid"}, []string{"evars", "classifications"}, RestoreOptions{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, syncerr.ErrUnknownCategory))
	assert.Empty(t, sim.Writes())
}

func TestRestore_RejectsTamperedArtifact(t *testing.T) {
	sim := seededSimulation(t)
	manager, _ := newTestManager(t, sim)
	ctx := context.Background()

	artifact, err := manager.Capture(ctx, "dev_rsid")
	require.NoError(t, err)
	artifact.Categories[catalog.EVars] = artifact.Categories[catalog.EVars][:1]

	_, err = manager.Restore(ctx, artifact, []string{"stg_rsid"}, nil, RestoreOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "digest mismatch")
	assert.Empty(t, sim.Writes())
}

func TestRestore_RejectsIncompatibleVersion(t *testing.T) {
	sim := seededSimulation(t)
	manager, _ := newTestManager(t, sim)
	ctx := context.Background()

	artifact, err := manager.Capture(ctx, "dev_rsid")
	require.NoError(t, err)
	artifact.ToolVersion = "99.0.0"

	_, err = manager.Restore(ctx, artifact, []string{"stg_rsid"}, nil, RestoreOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "incompatible version")
	assert.Empty(t, sim.Writes())
}

func TestRestore_DryRunAndAbsentCategories(t *testing.T) {
	sim := seededSimulation(t)
	manager, _ := newTestManager(t, sim)
	ctx := context.Background()

	artifact, err := manager.Capture(ctx, "dev_rsid")
	require.NoError(t, err)
	delete(artifact.Categories, catalog.Props)
	artifact.Digest, err = ComputeDigest(artifact.Categories)
	require.NoError(t, err)

	result, err := manager.Restore(ctx, artifact, []string{"stg_rsid"}, []string{"props", "evars"}, RestoreOptions{DryRun: true})
	require.NoError(t, err)
	require.Len(t, result.Outcomes, 2)

	assert.Equal(t, catalog.EVars, result.Outcomes[0].Category)
	assert.Equal(t, RestorePlanned, result.Outcomes[0].Status)
	assert.Equal(t, 2, result.Outcomes[0].Items)
	assert.Equal(t, RestoreAbsent, result.Outcomes[1].Status)
	assert.Empty(t, sim.Writes())
}

func TestRestore_WriteFailureDoesNotStopSiblings(t *testing.T) {
	sim := seededSimulation(t)
	sim.AddSuite("qa_rsid")
	manager, _ := newTestManager(t, sim)
	ctx := context.Background()

	artifact, err := manager.Capture(ctx, "dev_rsid")
	require.NoError(t, err)

	sim.FailWrite("stg_rsid", catalog.EVars, errors.New("500"))

	result, err := manager.Restore(ctx, artifact, []string{"stg_rsid", "qa_rsid"}, []string{"evars", "props"}, RestoreOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "write evars to stg_rsid")

	statuses := map[string]string{}
	for _, o := range result.Outcomes {
		statuses[o.Target+"/"+string(o.Category)] = o.Status
	}
	assert.Equal(t, map[string]string{
		"stg_rsid/evars": RestoreFailed,
		"stg_rsid/props": RestoreRestored,
		"qa_rsid/evars":  RestoreRestored,
		"qa_rsid/props":  RestoreRestored,
	}, statuses)
	assert.Equal(t, 1, result.Failed())
	assert.Equal(t, "remote_write", result.Outcomes[0].ErrorKind)
}

func TestDecodeArtifact_SchemaValidation(t *testing.T) {
	tests := []struct {
		name string
		doc  string
	}{
		{"not json", `{`},
		{"missing digest", `{"id":"a","environment":"e","captured_at":"2026-01-01T00:00:00Z","tool_version":"1.0.0","categories":{}}`},
		{"bad digest", `{"id":"a","environment":"e","captured_at":"2026-01-01T00:00:00Z","tool_version":"1.0.0","digest":"md5:x","categories":{}}`},
		{"unknown category", `{"id":"a","environment":"e","captured_at":"2026-01-01T00:00:00Z","tool_version":"1.0.0","digest":"sha256:` + strings.Repeat("0", 64) + `","categories":{"widgets":[]}}`},
		{"item without key", `{"id":"a","environment":"e","captured_at":"2026-01-01T00:00:00Z","tool_version":"1.0.0","digest":"sha256:` + strings.Repeat("0", 64) + `","categories":{"evars":[{"enabled":true,"fields":{}}]}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeArtifact([]byte(tt.doc))
			assert.Error(t, err)
		})
	}
}

func TestFileStore_LoadByName(t *testing.T) {
	dir := t.TempDir()
	store, err := NewFileStore(dir)
	require.NoError(t, err)

	ref, err := store.Save(context.Background(), "backup_x_20260101_000000.json", []byte(`{}`))
	require.NoError(t, err)

	data, err := store.Load(context.Background(), filepath.Base(ref))
	require.NoError(t, err)
	assert.Equal(t, `{}`, string(data))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestNewStore(t *testing.T) {
	store, err := NewStore(context.Background(), StoreConfig{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, store)

	_, err = NewStore(context.Background(), StoreConfig{Type: "s3"})
	assert.Error(t, err)

	_, err = NewStore(context.Background(), StoreConfig{Type: "ftp"})
	assert.Error(t, err)
}
