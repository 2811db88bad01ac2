// Package storage persists the merged record set between process runs.
// The snapshot is a versioned JSON envelope written atomically (temp file
// then rename), so a crash mid-write leaves the previous snapshot intact.
// On startup a valid snapshot restores the repository without re-parsing
// any source file.
package storage

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/mkweli/amlscreen/internal/domain/sanction"
	"github.com/mkweli/amlscreen/pkg/errors"
	types "github.com/mkweli/amlscreen/pkg/types/sanction"
)

// snapshotVersion guards the envelope layout.  A snapshot written by an
// incompatible build is treated as corrupt and rebuilt from the sources.
const snapshotVersion = 1

// Snapshot is the persisted form of a fully-loaded repository.
type Snapshot struct {
	Version      int                         `json:"version"`
	LoadedAt     time.Time                   `json:"loaded_at"`
	Fingerprints map[types.SourceList]string `json:"fingerprints"`
	Records      []*sanction.Record          `json:"records"`
}

// SnapshotStore reads and writes the snapshot at a fixed path.
type SnapshotStore struct {
	path string
}

func NewSnapshotStore(path string) *SnapshotStore {
	return &SnapshotStore{path: path}
}

func (s *SnapshotStore) Path() string { return s.path }

// Save writes the snapshot atomically.  The temp file is created in the
// snapshot's directory so the rename never crosses filesystems.
func (s *SnapshotStore) Save(snap *Snapshot) error {
	snap.Version = snapshotVersion

	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "cannot create snapshot directory").
			WithDetail("dir=" + dir)
	}

	tmp, err := os.CreateTemp(dir, ".snapshot-*.json")
	if err != nil {
		return errors.Wrap(err, errors.CodeInternal, "cannot create snapshot temp file")
	}
	defer os.Remove(tmp.Name())

	enc := json.NewEncoder(tmp)
	if err := enc.Encode(snap); err != nil {
		tmp.Close()
		return errors.Wrap(err, errors.CodeInternal, "cannot encode snapshot")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "cannot flush snapshot")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrap(err, errors.CodeInternal, "cannot replace snapshot").
			WithDetail("path=" + s.path)
	}
	return nil
}

// Load reads and validates the snapshot.  A missing file returns
// CodeNotFound (a normal cold start); anything unreadable, undecodable, or
// of the wrong version returns CodeSnapshotCorrupt so the caller falls back
// to a full source reload.
func (s *SnapshotStore) Load() (*Snapshot, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.CodeNotFound, "no snapshot present").
				WithDetail("path=" + s.path)
		}
		return nil, errors.Wrap(err, errors.CodeSnapshotCorrupt, "cannot open snapshot").
			WithDetail("path=" + s.path)
	}
	defer f.Close()

	var snap Snapshot
	if err := json.NewDecoder(f).Decode(&snap); err != nil {
		return nil, errors.Wrap(err, errors.CodeSnapshotCorrupt, "snapshot is not valid JSON").
			WithDetail("path=" + s.path)
	}
	if snap.Version != snapshotVersion {
		return nil, errors.Newf(errors.CodeSnapshotCorrupt,
			"snapshot version %d is not supported", snap.Version)
	}
	for _, rec := range snap.Records {
		if rec == nil || rec.ID == "" || rec.NormalizedName == "" {
			return nil, errors.New(errors.CodeSnapshotCorrupt, "snapshot contains an invalid record")
		}
	}
	return &snap, nil
}

// Invalidate removes the snapshot file.  Removing an absent snapshot is
// not an error.
func (s *SnapshotStore) Invalidate() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, errors.CodeInternal, "cannot remove snapshot").
			WithDetail("path=" + s.path)
	}
	return nil
}
