// Package imagesync keeps a local registry mirror in step with upstream
// images, driven by content-digest comparison. The record store is a single
// JSON document owned by this package; records change only after a verified
// successful push.
package imagesync

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/moby/sys/atomicwriter"
)

// Status is an image's sync state as derived from digest comparison.
type Status string

const (
	StatusNew     Status = "new"     // no local digest recorded yet
	StatusCurrent Status = "current" // local mirror matches upstream
	StatusStale   Status = "stale"   // upstream moved since last sync
	StatusSynced  Status = "synced"  // pushed during this run
)

// ErrStoreCorrupt means the record store exists but cannot be parsed. This
// aborts the whole run; guessing at digest state risks silent re-pushes.
var ErrStoreCorrupt = errors.New("image record store is corrupt")

// Record is the persisted sync state for one logical image.
type Record struct {
	Upstream       string    `json:"upstream"`
	UpstreamDigest string    `json:"upstream_digest,omitempty"`
	LocalDigest    string    `json:"local_digest,omitempty"`
	SyncedAt       time.Time `json:"synced_at,omitzero"`
	Status         Status    `json:"status,omitempty"`
}

// Store is the on-disk record document plus its location.
type Store struct {
	Registry  string            `json:"registry"`
	LastCheck time.Time         `json:"last_check,omitzero"`
	Images    map[string]Record `json:"images"`

	path string
}

// LoadStore reads the record document at path. A missing file yields an
// empty store; an unparseable one fails with ErrStoreCorrupt.
func LoadStore(path string) (*Store, error) {
	s := &Store{path: path, Images: make(map[string]Record)}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s, nil
		}
		return nil, fmt.Errorf("read record store: %w", err)
	}

	if err := json.Unmarshal(data, s); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrStoreCorrupt, path, err)
	}
	if s.Images == nil {
		s.Images = make(map[string]Record)
	}
	return s, nil
}

// Save rewrites the document via write-to-temp-then-rename, so an
// interrupted process never leaves a partial file behind.
func (s *Store) Save() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create record store dir: %w", err)
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal record store: %w", err)
	}
	if err := atomicwriter.WriteFile(s.path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write record store: %w", err)
	}
	return nil
}

// Record returns the stored record for a logical image name.
func (s *Store) Record(name string) (Record, bool) {
	rec, ok := s.Images[name]
	return rec, ok
}

// SetSynced records a verified successful push: both digests move to the
// fetched upstream digest in one step.
func (s *Store) SetSynced(name, upstream, digest string, now time.Time) {
	s.Images[name] = Record{
		Upstream:       upstream,
		UpstreamDigest: digest,
		LocalDigest:    digest,
		SyncedAt:       now,
		Status:         StatusSynced,
	}
}

// Track registers a logical image without digest state, leaving it sync
// eligible as "new". Existing records are untouched.
func (s *Store) Track(name, upstream string) {
	if _, ok := s.Images[name]; ok {
		return
	}
	s.Images[name] = Record{Upstream: upstream, Status: StatusNew}
}
