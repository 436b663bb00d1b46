package twitter

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"path/filepath"
	"regexp"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// DefaultQueryIDTTL is how long a discovered snapshot is considered fresh.
const DefaultQueryIDTTL = 24 * time.Hour

// EnvQueryIDCache overrides the snapshot file location with an absolute path.
const EnvQueryIDCache = "BIRD_QUERYID_CACHE"

var validQueryID = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// DiscoverySources records which pages and bundles a refresh consulted.
type DiscoverySources struct {
	Pages   []string `json:"pages"`
	Bundles []string `json:"bundles"`
}

// Snapshot is the persisted operation-name → query-id mapping.
type Snapshot struct {
	FetchedAt time.Time         `json:"fetchedAt"`
	TTLMs     int64             `json:"ttlMs"`
	IDs       map[string]string `json:"ids"`
	Discovery DiscoverySources  `json:"discovery"`
}

// SnapshotInfo is a snapshot plus derived freshness.
type SnapshotInfo struct {
	Snapshot *Snapshot
	Age      time.Duration
	Fresh    bool
}

// discoverFunc resolves query ids for the requested operation names.
type discoverFunc func(ctx context.Context, names []string) (map[string]string, DiscoverySources, error)

// Store owns the snapshot: it loads it lazily from disk, serves lookups, and
// serializes refreshes so concurrent callers share one discovery run.
type Store struct {
	path     string
	ttl      time.Duration
	discover discoverFunc
	now      func() time.Time

	mu     sync.RWMutex
	loaded bool
	snap   *Snapshot

	group singleflight.Group
}

// NewStore builds a store persisting to path. A nil discoverer leaves the
// store lookup-only; Refresh then returns whatever is cached.
func NewStore(path string, ttl time.Duration, d *Discoverer) *Store {
	if ttl <= 0 {
		ttl = DefaultQueryIDTTL
	}
	s := &Store{path: path, ttl: ttl, now: time.Now}
	if d != nil {
		s.discover = d.Discover
	}
	return s
}

// DefaultCachePath returns the snapshot location, honoring EnvQueryIDCache.
func DefaultCachePath() string {
	if p := os.Getenv(EnvQueryIDCache); p != "" {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(".", ".bird", "queryids.json")
	}
	return filepath.Join(home, ".bird", "queryids.json")
}

// SnapshotInfo returns the current snapshot and freshness, or nil when no
// usable snapshot exists. The disk file is read once and memoized.
func (s *Store) SnapshotInfo() *SnapshotInfo {
	s.mu.Lock()
	if !s.loaded {
		s.snap = s.loadFile()
		s.loaded = true
	}
	snap := s.snap
	s.mu.Unlock()

	if snap == nil {
		return nil
	}
	age := s.now().Sub(snap.FetchedAt)
	ttl := time.Duration(snap.TTLMs) * time.Millisecond
	if ttl <= 0 {
		ttl = s.ttl
	}
	return &SnapshotInfo{Snapshot: snap, Age: age, Fresh: age < ttl}
}

// Lookup returns the cached identifier for name, if any.
func (s *Store) Lookup(name string) (string, bool) {
	info := s.SnapshotInfo()
	if info == nil {
		return "", false
	}
	id, ok := info.Snapshot.IDs[name]
	return id, ok
}

// Refresh resolves identifiers for names. A fresh snapshot short-circuits
// unless force is set. Overlapping calls collapse into a single discovery
// run; every caller receives that run's result. A refresh that resolves
// nothing leaves the previous snapshot untouched, on disk and in memory.
func (s *Store) Refresh(ctx context.Context, names []string, force bool) (*SnapshotInfo, error) {
	if !force {
		if info := s.SnapshotInfo(); info != nil && info.Fresh {
			return info, nil
		}
	}

	v, err, _ := s.group.Do("refresh", func() (any, error) {
		return s.refreshLocked(ctx, names, force)
	})
	info, _ := v.(*SnapshotInfo)
	return info, err
}

func (s *Store) refreshLocked(ctx context.Context, names []string, force bool) (*SnapshotInfo, error) {
	// A concurrent caller may have refreshed while we waited on the group.
	if !force {
		if info := s.SnapshotInfo(); info != nil && info.Fresh {
			return info, nil
		}
	}
	if s.discover == nil {
		return s.SnapshotInfo(), newError(ErrDiscoveryFailed, "no discoverer configured")
	}

	ids, sources, err := s.discover(ctx, names)
	if err != nil {
		return s.SnapshotInfo(), wrapError(ErrDiscoveryFailed, err, "query id discovery failed")
	}

	resolved := make(map[string]string, len(names))
	for _, name := range names {
		if id, ok := ids[name]; ok && validQueryID.MatchString(id) {
			resolved[name] = id
		}
	}
	if len(resolved) == 0 {
		// A failed refresh must never erase a working cache.
		return s.SnapshotInfo(), newError(ErrDiscoveryFailed, "discovery resolved no identifiers")
	}

	snap := &Snapshot{
		FetchedAt: s.now(),
		TTLMs:     s.ttl.Milliseconds(),
		IDs:       resolved,
		Discovery: sources,
	}
	if err := s.persist(snap); err != nil {
		log.Printf("[WARN] failed to persist query id snapshot: %s", err)
	}

	s.mu.Lock()
	s.snap = snap
	s.loaded = true
	s.mu.Unlock()

	return s.SnapshotInfo(), nil
}

// loadFile reads the snapshot from disk. A missing or corrupt file is treated
// as "no snapshot", never as an error.
func (s *Store) loadFile() *Snapshot {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return nil
	}
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		log.Printf("[WARN] ignoring corrupt query id snapshot at %s: %s", s.path, err)
		return nil
	}
	if snap.FetchedAt.IsZero() || len(snap.IDs) == 0 {
		return nil
	}
	for name, id := range snap.IDs {
		if !validQueryID.MatchString(id) {
			delete(snap.IDs, name)
		}
	}
	if len(snap.IDs) == 0 {
		return nil
	}
	return &snap
}

// persist replaces the snapshot file wholesale: write a sibling temp file,
// then rename over the target so readers never observe a partial write.
func (s *Store) persist(snap *Snapshot) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
