package store

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"

	"github.com/fortuna/iplstats/internal/dataset"
	"github.com/fortuna/iplstats/internal/matches"
)

// Snapshot is one derivation of the dataset. It is never mutated after it is built.
type Snapshot struct {
	Fingerprint string
	Source      string
	LoadedAt    time.Time
	Deliveries  int
	Matches     []matches.Match
	Teams       []string
	Stats       matches.Stats
}

// MatchStore derives the canonical match table and shares it between requests.
//
// With caching enabled the table is built once per dataset fingerprint: concurrent
// first requests wait on one derivation, later requests only compare fingerprints.
// With caching disabled every call reads and derives the dataset again.
type MatchStore struct {
	source  dataset.Source
	cache   bool
	mu      sync.Mutex
	current atomic.Pointer[Snapshot]
	loads   atomic.Int64
}

// NewMatchStore creates a store over source
func NewMatchStore(source dataset.Source, cache bool) *MatchStore {
	return &MatchStore{source: source, cache: cache}
}

// Source describes the underlying dataset
func (s *MatchStore) Source() string {
	return s.source.Describe()
}

// Loads returns how many times the dataset has been read and derived
func (s *MatchStore) Loads() int64 {
	return s.loads.Load()
}

// Current returns the cached snapshot without touching the dataset, or nil.
func (s *MatchStore) Current() *Snapshot {
	return s.current.Load()
}

// Snapshot returns a snapshot that matches the dataset's current fingerprint.
func (s *MatchStore) Snapshot(ctx context.Context) (*Snapshot, error) {
	snap, _, err := s.snapshot(ctx)
	return snap, err
}

// Refresh re-checks the dataset and reports whether a new snapshot was built.
func (s *MatchStore) Refresh(ctx context.Context) (bool, error) {
	_, reloaded, err := s.snapshot(ctx)
	return reloaded, err
}

func (s *MatchStore) snapshot(ctx context.Context) (*Snapshot, bool, error) {
	fingerprint, err := s.source.Fingerprint(ctx)
	if err != nil {
		return nil, false, err
	}

	if !s.cache {
		snap, err := s.build(ctx, fingerprint)
		return snap, err == nil, err
	}

	if snap := s.current.Load(); snap != nil && snap.Fingerprint == fingerprint {
		return snap, false, nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if snap := s.current.Load(); snap != nil && snap.Fingerprint == fingerprint {
		return snap, false, nil
	}

	snap, err := s.build(ctx, fingerprint)
	if err != nil {
		return nil, false, err
	}
	s.current.Store(snap)
	return snap, true, nil
}

func (s *MatchStore) build(ctx context.Context, fingerprint string) (*Snapshot, error) {
	start := time.Now()

	table, err := s.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", s.source.Describe(), err)
	}

	result := matches.Derive(table)
	s.loads.Add(1)

	snap := &Snapshot{
		Fingerprint: fingerprint,
		Source:      s.source.Describe(),
		LoadedAt:    time.Now(),
		Deliveries:  table.Len(),
		Matches:     result.Matches,
		Teams:       result.Teams,
		Stats:       result.Stats,
	}

	if s.cache {
		log.WithFields(log.Fields{
			"source":         snap.Source,
			"deliveries":     snap.Deliveries,
			"matches":        result.Stats.Kept,
			"teams":          len(snap.Teams),
			"too_few_teams":  result.Stats.TooFewTeams,
			"too_many_teams": result.Stats.TooManyTeams,
			"unknown_winner": result.Stats.UnknownWinner,
			"took":           time.Since(start).Round(time.Millisecond),
		}).Info("✓ Match table derived")
	}

	return snap, nil
}
