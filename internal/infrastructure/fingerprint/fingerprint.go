// Package fingerprint detects source file changes between reloads by
// content hash.  A reload hashes each list file and compares against the
// fingerprint recorded at the last successful load; unchanged files can be
// skipped entirely, and the combined fingerprint identifies the exact data
// generation a screening decision was made against.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"sort"
	"sync"

	"github.com/mkweli/amlscreen/pkg/errors"
	types "github.com/mkweli/amlscreen/pkg/types/sanction"
)

// State classifies one source file relative to its last committed load.
type State string

const (
	// StateUnchanged means the file hashes identically to the committed
	// fingerprint; its records can be reused as-is.
	StateUnchanged State = "unchanged"

	// StateChanged means the file exists but its content differs (or the
	// source has never been loaded).
	StateChanged State = "changed"

	// StateMissing means the file cannot be read.
	StateMissing State = "missing"
)

// SourceCheck is the change-detection verdict for one source.
type SourceCheck struct {
	State       State
	Fingerprint string
	Err         error
}

// Detector tracks the committed per-source fingerprints.  Hashing and
// comparison are separated from committing so a failed parse never
// advances the recorded state.
type Detector struct {
	mu    sync.Mutex
	known map[types.SourceList]string
}

func NewDetector() *Detector {
	return &Detector{known: make(map[types.SourceList]string)}
}

// Seed installs fingerprints restored from a snapshot, replacing any
// committed state.
func (d *Detector) Seed(fingerprints map[types.SourceList]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.known = make(map[types.SourceList]string, len(fingerprints))
	for src, fp := range fingerprints {
		d.known[src] = fp
	}
}

// Check hashes the file at path and compares it against the committed
// fingerprint for src.  An unreadable file reports StateMissing with the
// underlying error attached; it is not fatal to the caller's reload.
func (d *Detector) Check(src types.SourceList, path string) SourceCheck {
	fp, err := HashFile(path)
	if err != nil {
		return SourceCheck{State: StateMissing, Err: err}
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.known[src] == fp {
		return SourceCheck{State: StateUnchanged, Fingerprint: fp}
	}
	return SourceCheck{State: StateChanged, Fingerprint: fp}
}

// CheckAll runs Check for every source in paths.
func (d *Detector) CheckAll(paths map[types.SourceList]string) map[types.SourceList]SourceCheck {
	out := make(map[types.SourceList]SourceCheck, len(paths))
	for src, path := range paths {
		out[src] = d.Check(src, path)
	}
	return out
}

// Commit records a fingerprint after the source's records were parsed and
// stored successfully.
func (d *Detector) Commit(src types.SourceList, fp string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.known[src] = fp
}

// Known returns a copy of the committed per-source fingerprints.
func (d *Detector) Known() map[types.SourceList]string {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make(map[types.SourceList]string, len(d.known))
	for src, fp := range d.known {
		out[src] = fp
	}
	return out
}

// Combined returns d's current combined fingerprint; see Combine.
func (d *Detector) Combined() string {
	return Combine(d.Known())
}

// HashFile returns the hex SHA-256 of the file's content.
func HashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", errors.Wrap(err, errors.CodeSourceMissing, "cannot open source file").
			WithDetail("path=" + path)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.Wrap(err, errors.CodeSourceMissing, "cannot read source file").
			WithDetail("path=" + path)
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// Combine folds per-source fingerprints into one stable hash identifying
// the loaded data generation.  Sources are folded in sorted order so the
// result is independent of map iteration.
func Combine(fingerprints map[types.SourceList]string) string {
	if len(fingerprints) == 0 {
		return ""
	}
	srcs := make([]string, 0, len(fingerprints))
	for src := range fingerprints {
		srcs = append(srcs, src.String())
	}
	sort.Strings(srcs)

	h := sha256.New()
	for _, src := range srcs {
		io.WriteString(h, src)
		io.WriteString(h, "=")
		io.WriteString(h, fingerprints[types.SourceList(src)])
		io.WriteString(h, ";")
	}
	return hex.EncodeToString(h.Sum(nil))
}
