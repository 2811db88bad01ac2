package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mkweli/amlscreen/internal/domain/sanction"
	"github.com/mkweli/amlscreen/pkg/errors"
	types "github.com/mkweli/amlscreen/pkg/types/sanction"
)

func sampleSnapshot(t *testing.T) *Snapshot {
	t.Helper()
	rec, err := sanction.NewRecord(types.SourceUN, "1", types.KindIndividual, "Mohammed Al-Fulan")
	require.NoError(t, err)
	rec.AddAlias("Muhammad Al Fulan", types.AliasStrongVariant)
	rec.DateOfBirth = &types.PartialDate{Year: 1975}

	return &Snapshot{
		LoadedAt:     time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC),
		Fingerprints: map[types.SourceList]string{types.SourceUN: "abc123"},
		Records:      []*sanction.Record{rec},
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	store := NewSnapshotStore(filepath.Join(t.TempDir(), "instance", "snap.json"))

	require.NoError(t, store.Save(sampleSnapshot(t)))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, snapshotVersion, got.Version)
	assert.True(t, got.LoadedAt.Equal(time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)))
	assert.Equal(t, "abc123", got.Fingerprints[types.SourceUN])
	require.Len(t, got.Records, 1)
	assert.Equal(t, "UN-1", got.Records[0].ID)
	assert.Equal(t, "mohammed al fulan", got.Records[0].NormalizedName)
	require.Len(t, got.Records[0].Aliases, 1)
	require.NotNil(t, got.Records[0].DateOfBirth)
	assert.Equal(t, 1975, got.Records[0].DateOfBirth.Year)
}

func TestLoadMissingIsNotFound(t *testing.T) {
	store := NewSnapshotStore(filepath.Join(t.TempDir(), "absent.json"))
	_, err := store.Load()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))
}

func TestLoadCorruptJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	_, err := NewSnapshotStore(path).Load()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeSnapshotCorrupt))
}

func TestLoadWrongVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	raw, err := json.Marshal(map[string]any{"version": 99, "records": []any{}})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, err = NewSnapshotStore(path).Load()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeSnapshotCorrupt))
}

func TestLoadInvalidRecord(t *testing.T) {
	path := filepath.Join(t.TempDir(), "snap.json")
	raw, err := json.Marshal(map[string]any{
		"version": snapshotVersion,
		"records": []any{map[string]any{"id": "", "normalized_name": ""}},
	})
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	_, err = NewSnapshotStore(path).Load()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.CodeSnapshotCorrupt))
}

func TestSaveReplacesAtomically(t *testing.T) {
	dir := t.TempDir()
	store := NewSnapshotStore(filepath.Join(dir, "snap.json"))
	require.NoError(t, store.Save(sampleSnapshot(t)))

	second := sampleSnapshot(t)
	second.Fingerprints[types.SourceUN] = "def456"
	require.NoError(t, store.Save(second))

	got, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, "def456", got.Fingerprints[types.SourceUN])

	// No temp files left behind.
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "snap.json", entries[0].Name())
}

func TestInvalidate(t *testing.T) {
	store := NewSnapshotStore(filepath.Join(t.TempDir(), "snap.json"))
	require.NoError(t, store.Save(sampleSnapshot(t)))
	require.NoError(t, store.Invalidate())

	_, err := store.Load()
	assert.True(t, errors.IsCode(err, errors.CodeNotFound))

	// Second invalidate is a no-op.
	require.NoError(t, store.Invalidate())
}
