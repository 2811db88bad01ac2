package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkweli/amlscreen/internal/config"
	"github.com/mkweli/amlscreen/internal/infrastructure/monitoring/logging"
	prommetrics "github.com/mkweli/amlscreen/internal/infrastructure/monitoring/prometheus"
	"github.com/mkweli/amlscreen/pkg/errors"
	types "github.com/mkweli/amlscreen/pkg/types/sanction"
)

const (
	unFixture = `<CONSOLIDATED_LIST>
  <INDIVIDUALS><INDIVIDUAL>
    <DATAID>100</DATAID><FIRST_NAME>MOHAMMED</FIRST_NAME><SECOND_NAME>AL-FULAN</SECOND_NAME>
    <INDIVIDUAL_ALIAS><QUALITY>Good</QUALITY><ALIAS_NAME>Muhammad al Fulan</ALIAS_NAME></INDIVIDUAL_ALIAS>
  </INDIVIDUAL></INDIVIDUALS>
</CONSOLIDATED_LIST>`

	ukFixture = `<Designations><Designation>
  <UniqueID>SAN1</UniqueID>
  <Names><Name><Name6>Viktor PETROV</Name6><NameType>Primary Name</NameType></Name></Names>
  <IndividualEntityShip>Individual</IndividualEntityShip>
</Designation></Designations>`

	ofacFixture = `<sdnList><sdnEntry>
  <uid>9639</uid><firstName>Jon</firstName><lastName>SMITH</lastName><sdnType>Individual</sdnType>
</sdnEntry></sdnList>`

	euFixture = `<export><sanctionEntity logicalId="13">
  <subjectType code="person" />
  <nameAlias wholeName="Sergei AKSYONOV" strong="true" />
</sanctionEntity></export>`
)

func writeFixtures(t *testing.T, dir string) {
	t.Helper()
	for name, body := range map[string]string{
		"un.xml": unFixture, "uk.xml": ukFixture, "ofac.xml": ofacFixture, "eu.xml": euFixture,
	} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
	}
}

func testConfig(t *testing.T, dataDir string) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Sources.DataDir = dataDir
	cfg.Sources.UNFile = "un.xml"
	cfg.Sources.UKFile = "uk.xml"
	cfg.Sources.OFACFile = "ofac.xml"
	cfg.Sources.EUFile = "eu.xml"
	cfg.Snapshot.Enabled = true
	cfg.Snapshot.Path = filepath.Join(dataDir, "instance", "snapshot.json")
	require.NoError(t, cfg.Validate())
	return cfg
}

func newTestRepo(t *testing.T, dataDir string) *Repository {
	t.Helper()
	return New(testConfig(t, dataDir), logging.NewNopLogger(), prommetrics.New())
}

func TestReloadLoadsAllSources(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	repo := newTestRepo(t, dir)

	summary, err := repo.Reload(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.TotalRecords)
	require.Len(t, summary.Outcomes, 4)
	for _, o := range summary.Outcomes {
		assert.True(t, o.Parsed, "source %s", o.Source)
		assert.Equal(t, 1, o.RecordCount, "source %s", o.Source)
		assert.Empty(t, o.Error)
	}
	assert.NotEmpty(t, summary.Fingerprint)

	ix := repo.Index()
	assert.Equal(t, 4, ix.TotalRecords())
	_, ok := ix.Record("OFAC-9639")
	assert.True(t, ok)
	_, ok = ix.Record("EU-13")
	assert.True(t, ok)
}

func TestReloadSkipsUnchangedSources(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	repo := newTestRepo(t, dir)

	_, err := repo.Reload(context.Background())
	require.NoError(t, err)

	summary, err := repo.Reload(context.Background())
	require.NoError(t, err)
	for _, o := range summary.Outcomes {
		assert.True(t, o.Skipped, "source %s", o.Source)
		assert.False(t, o.Parsed)
		assert.Equal(t, 1, o.RecordCount)
	}
	assert.Equal(t, 4, summary.TotalRecords)
}

func TestReloadForceReparsesEverything(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	repo := newTestRepo(t, dir)

	_, err := repo.Reload(context.Background())
	require.NoError(t, err)

	summary, err := repo.Reload(context.Background(), types.AllSources...)
	require.NoError(t, err)
	for _, o := range summary.Outcomes {
		assert.True(t, o.Parsed, "source %s", o.Source)
	}
}

func TestReloadDeduplicatesRepeatedLocalIDs(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	dup := `<sdnList>
  <sdnEntry><uid>9639</uid><firstName>Jon</firstName><lastName>SMITH</lastName><sdnType>Individual</sdnType></sdnEntry>
  <sdnEntry><uid>9639</uid><firstName>Jonathan</firstName><lastName>SMITH</lastName><sdnType>Individual</sdnType></sdnEntry>
</sdnList>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ofac.xml"), []byte(dup), 0o644))
	repo := newTestRepo(t, dir)

	summary, err := repo.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, summary.TotalRecords)

	// The record set is keyed by (source, local id): the first entry wins
	// and every count agrees.
	ix := repo.Index()
	assert.Equal(t, 1, ix.PerSourceCounts()[types.SourceOFAC])
	rec, ok := ix.Record("OFAC-9639")
	require.True(t, ok)
	assert.Equal(t, "Jon SMITH", rec.PrimaryName)

	for _, o := range summary.Outcomes {
		if o.Source == types.SourceOFAC {
			assert.Equal(t, 1, o.RecordCount)
			require.Len(t, o.SkipNotes, 1)
			assert.Equal(t, "9639", o.SkipNotes[0].LocalID)
			assert.Equal(t, "duplicate identifier", o.SkipNotes[0].Reason)
		}
	}
}

func TestReloadSummaryCarriesSkipNotes(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	broken := `<CONSOLIDATED_LIST><INDIVIDUALS>
  <INDIVIDUAL><DATAID>100</DATAID><FIRST_NAME>MOHAMMED</FIRST_NAME></INDIVIDUAL>
  <INDIVIDUAL><FIRST_NAME>No Identifier</FIRST_NAME></INDIVIDUAL>
</INDIVIDUALS></CONSOLIDATED_LIST>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "un.xml"), []byte(broken), 0o644))
	repo := newTestRepo(t, dir)

	summary, err := repo.Reload(context.Background())
	require.NoError(t, err)

	for _, o := range summary.Outcomes {
		if o.Source == types.SourceUN {
			assert.Equal(t, 1, o.RecordCount)
			assert.Equal(t, 1, o.SkipCount)
			require.Len(t, o.SkipNotes, 1)
			assert.Equal(t, types.SourceUN, o.SkipNotes[0].Source)
			assert.Equal(t, "DATAID", o.SkipNotes[0].Field)
			assert.Equal(t, "missing identifier", o.SkipNotes[0].Reason)
		}
	}
}

func TestReloadForcesOnlyNamedSources(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	repo := newTestRepo(t, dir)

	_, err := repo.Reload(context.Background())
	require.NoError(t, err)

	summary, err := repo.Reload(context.Background(), types.SourceOFAC)
	require.NoError(t, err)
	for _, o := range summary.Outcomes {
		if o.Source == types.SourceOFAC {
			assert.True(t, o.Parsed)
		} else {
			assert.True(t, o.Skipped, "source %s", o.Source)
		}
	}
}

func TestReloadPicksUpChangedSource(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	repo := newTestRepo(t, dir)

	_, err := repo.Reload(context.Background())
	require.NoError(t, err)

	updated := `<sdnList>
  <sdnEntry><uid>9639</uid><firstName>Jon</firstName><lastName>SMITH</lastName><sdnType>Individual</sdnType></sdnEntry>
  <sdnEntry><uid>9640</uid><lastName>NOVA EXPORT LLC</lastName><sdnType>Entity</sdnType></sdnEntry>
</sdnList>`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ofac.xml"), []byte(updated), 0o644))

	summary, err := repo.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, summary.TotalRecords)
	for _, o := range summary.Outcomes {
		if o.Source == types.SourceOFAC {
			assert.True(t, o.Parsed)
			assert.Equal(t, 2, o.RecordCount)
		} else {
			assert.True(t, o.Skipped, "source %s", o.Source)
		}
	}
}

func TestReloadKeepsPreviousRecordsWhenSourceBreaks(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	repo := newTestRepo(t, dir)

	_, err := repo.Reload(context.Background())
	require.NoError(t, err)

	// EU file becomes garbage; its previously loaded record must survive.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "eu.xml"), []byte("<wrong-root/>"), 0o644))

	summary, err := repo.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, summary.TotalRecords)
	for _, o := range summary.Outcomes {
		if o.Source == types.SourceEU {
			assert.NotEmpty(t, o.Error)
			assert.False(t, o.Parsed)
		}
	}
	_, ok := repo.Index().Record("EU-13")
	assert.True(t, ok)
}

func TestDeletedSourceFileRetainsRecordsAndGoesStale(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	repo := newTestRepo(t, dir)

	_, err := repo.Reload(context.Background())
	require.NoError(t, err)
	require.NoError(t, os.Remove(filepath.Join(dir, "ofac.xml")))

	summary, err := repo.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 4, summary.TotalRecords, "previously loaded OFAC records survive")
	_, ok := repo.Index().Record("OFAC-9639")
	assert.True(t, ok)

	st := repo.Status()
	assert.Equal(t, []types.SourceList{types.SourceOFAC}, st.StaleSources)
	assert.True(t, st.IsStale)
}

func TestReloadMissingSourceIsReportedNotFatal(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	require.NoError(t, os.Remove(filepath.Join(dir, "uk.xml")))
	repo := newTestRepo(t, dir)

	summary, err := repo.Reload(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, summary.TotalRecords)
	for _, o := range summary.Outcomes {
		if o.Source == types.SourceUK {
			assert.NotEmpty(t, o.Error)
		}
	}
}

func TestReloadFailsWhenNothingLoadable(t *testing.T) {
	repo := newTestRepo(t, t.TempDir()) // no fixture files at all

	_, err := repo.Reload(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeSourceMissing))
}

func TestConcurrentReloadRejected(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	repo := newTestRepo(t, dir)

	repo.reloading.Store(true)
	_, err := repo.Reload(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeReloadInProgress))
	repo.reloading.Store(false)

	_, err = repo.Reload(context.Background())
	assert.NoError(t, err)
}

func TestIndexSwapIsAtomicForReaders(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	repo := newTestRepo(t, dir)

	_, err := repo.Reload(context.Background())
	require.NoError(t, err)

	held := repo.Index()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "un.xml"),
		[]byte(`<CONSOLIDATED_LIST><INDIVIDUALS/></CONSOLIDATED_LIST>`), 0o644))
	_, err = repo.Reload(context.Background())
	require.NoError(t, err)

	// The held generation still answers consistently.
	_, ok := held.Record("UN-100")
	assert.True(t, ok)
	// The new generation reflects the change.
	_, ok = repo.Index().Record("UN-100")
	assert.False(t, ok)
}

func TestSnapshotRoundTripThroughRestore(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	repo := newTestRepo(t, dir)

	summary, err := repo.Reload(context.Background())
	require.NoError(t, err)

	// A fresh repository over the same config restores without parsing.
	restored := newTestRepo(t, dir)
	ok, err := restored.RestoreFromDurable(context.Background())
	require.NoError(t, err)
	require.True(t, ok)

	assert.Equal(t, summary.TotalRecords, restored.Index().TotalRecords())
	assert.Equal(t, summary.Fingerprint, restored.Fingerprint())

	// All sources hash unchanged, so the next reload is a no-op.
	next, err := restored.Reload(context.Background())
	require.NoError(t, err)
	for _, o := range next.Outcomes {
		assert.True(t, o.Skipped, "source %s", o.Source)
	}
}

func TestRestoreCorruptSnapshotInvalidates(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	cfg := testConfig(t, dir)
	require.NoError(t, os.MkdirAll(filepath.Dir(cfg.Snapshot.Path), 0o755))
	require.NoError(t, os.WriteFile(cfg.Snapshot.Path, []byte("{broken"), 0o644))

	repo := New(cfg, logging.NewNopLogger(), prommetrics.New())
	ok, err := repo.RestoreFromDurable(context.Background())
	assert.False(t, ok)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeSnapshotCorrupt))

	// The corrupt file was removed.
	_, statErr := os.Stat(cfg.Snapshot.Path)
	assert.True(t, os.IsNotExist(statErr))
}

func TestRestoreWithoutSnapshotIsColdStart(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	repo := newTestRepo(t, dir)

	ok, err := repo.RestoreFromDurable(context.Background())
	require.NoError(t, err)
	assert.False(t, ok)
	assert.False(t, repo.Status().Ready)
}

func TestStatusStaleness(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	repo := newTestRepo(t, dir)

	st := repo.Status()
	assert.False(t, st.Ready)
	assert.Len(t, st.StaleSources, 4, "never-loaded sources are stale")
	assert.True(t, st.IsStale)

	_, err := repo.Reload(context.Background())
	require.NoError(t, err)

	st = repo.Status()
	assert.True(t, st.Ready)
	assert.Empty(t, st.StaleSources)
	assert.False(t, st.IsStale)
	assert.Equal(t, 4, st.TotalRecords)
	assert.Equal(t, 1, st.PerSourceCounts[types.SourceUN])

	// Advance the clock past the staleness window.
	repo.now = func() time.Time { return time.Now().Add(repo.cfg.Matching.StaleAfter + time.Hour) }
	st = repo.Status()
	assert.Len(t, st.StaleSources, 4)
	assert.True(t, st.IsStale)
}

func TestInvalidateSnapshot(t *testing.T) {
	dir := t.TempDir()
	writeFixtures(t, dir)
	repo := newTestRepo(t, dir)

	_, err := repo.Reload(context.Background())
	require.NoError(t, err)
	require.FileExists(t, repo.cfg.Snapshot.Path)

	require.NoError(t, repo.InvalidateSnapshot())
	_, statErr := os.Stat(repo.cfg.Snapshot.Path)
	assert.True(t, os.IsNotExist(statErr))

	// The live index is untouched.
	assert.True(t, repo.Status().Ready)
}
