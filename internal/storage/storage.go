package storage

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/cartridge/dinosweep/internal/types"
)

var (
	// ErrNotFound indicates the requested resource does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a uniqueness violation.
	ErrConflict = errors.New("conflict")
)

// ResultStore captures the persistence operations the sweep relies on.
type ResultStore interface {
	CreateSweep(ctx context.Context, sweep types.Sweep) error
	GetSweep(ctx context.Context, id string) (types.Sweep, error)
	UpdateSweep(ctx context.Context, sweep types.Sweep) error
	ListSweeps(ctx context.Context) ([]types.Sweep, error)
	AppendEpisode(ctx context.Context, record types.EpisodeRecord) error
	ListEpisodes(ctx context.Context, sweepID string) ([]types.EpisodeRecord, error)
	Close() error
}

// MemoryStore is an in-memory ResultStore for development/testing.
type MemoryStore struct {
	mu       sync.RWMutex
	sweeps   map[string]types.Sweep
	episodes map[string][]types.EpisodeRecord // sweepID -> records in append order
	ids      map[string]struct{}
}

// NewMemoryStore constructs a MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sweeps:   make(map[string]types.Sweep),
		episodes: make(map[string][]types.EpisodeRecord),
		ids:      make(map[string]struct{}),
	}
}

// CreateSweep inserts a new sweep, enforcing uniqueness.
func (m *MemoryStore) CreateSweep(_ context.Context, sweep types.Sweep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.sweeps[sweep.ID]; exists {
		return ErrConflict
	}
	m.sweeps[sweep.ID] = cloneSweep(sweep)
	return nil
}

// GetSweep fetches a sweep by ID.
func (m *MemoryStore) GetSweep(_ context.Context, id string) (types.Sweep, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	sweep, ok := m.sweeps[id]
	if !ok {
		return types.Sweep{}, ErrNotFound
	}
	return cloneSweep(sweep), nil
}

// UpdateSweep replaces the stored sweep.
func (m *MemoryStore) UpdateSweep(_ context.Context, sweep types.Sweep) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sweeps[sweep.ID]; !ok {
		return ErrNotFound
	}
	m.sweeps[sweep.ID] = cloneSweep(sweep)
	return nil
}

// ListSweeps returns all sweeps, newest first.
func (m *MemoryStore) ListSweeps(_ context.Context) ([]types.Sweep, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]types.Sweep, 0, len(m.sweeps))
	for _, s := range m.sweeps {
		out = append(out, cloneSweep(s))
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

// AppendEpisode adds a finished episode to its sweep.
func (m *MemoryStore) AppendEpisode(_ context.Context, record types.EpisodeRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sweeps[record.SweepID]; !ok {
		return ErrNotFound
	}
	if _, exists := m.ids[record.ID]; exists {
		return ErrConflict
	}
	m.ids[record.ID] = struct{}{}
	m.episodes[record.SweepID] = append(m.episodes[record.SweepID], record)
	return nil
}

// ListEpisodes returns a sweep's episodes ordered by sequence.
func (m *MemoryStore) ListEpisodes(_ context.Context, sweepID string) ([]types.EpisodeRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.sweeps[sweepID]; !ok {
		return nil, ErrNotFound
	}
	out := make([]types.EpisodeRecord, len(m.episodes[sweepID]))
	copy(out, m.episodes[sweepID])
	sort.SliceStable(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

// Close implements ResultStore.
func (m *MemoryStore) Close() error {
	return nil
}

func cloneSweep(s types.Sweep) types.Sweep {
	s.JumpThresholds = append([]float64(nil), s.JumpThresholds...)
	s.DuckThresholds = append([]float64(nil), s.DuckThresholds...)
	s.JumpDeltas = append([]float64(nil), s.JumpDeltas...)
	if s.EndedAt != nil {
		t := *s.EndedAt
		s.EndedAt = &t
	}
	return s
}
