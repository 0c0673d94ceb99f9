package sweep

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cartridge/dinosweep/internal/actor"
	"github.com/cartridge/dinosweep/internal/env"
	"github.com/cartridge/dinosweep/internal/events"
	"github.com/cartridge/dinosweep/internal/game"
	"github.com/cartridge/dinosweep/internal/metrics"
	"github.com/cartridge/dinosweep/internal/policy"
	"github.com/cartridge/dinosweep/internal/storage"
	"github.com/cartridge/dinosweep/internal/types"
)

// stubSession plays one-step episodes: a running frame followed by a crash at the next
// scripted distance. Polling past the script fails.
type stubSession struct {
	distances []float64
	polls     int
	submitted []game.Action
	closed    int
	closeErr  error
}

func (s *stubSession) Poll(context.Context) (game.FrameState, error) {
	s.polls++
	episode := (s.polls - 1) / 2
	if episode >= len(s.distances) {
		return game.FrameState{}, errors.New("connection reset")
	}
	if s.polls%2 == 1 {
		return game.NewFrameState(false, 1, false, game.Position{X: 50, Y: 93}, 6), nil
	}
	return game.NewFrameState(true, s.distances[episode], false, game.Position{X: 50, Y: 93}, 7), nil
}

func (s *stubSession) Submit(_ context.Context, action game.Action) error {
	s.submitted = append(s.submitted, action)
	return nil
}

func (s *stubSession) Close() error {
	s.closed++
	return s.closeErr
}

var _ env.Session = (*stubSession)(nil)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishSweepStatus(ctx context.Context, payload events.SweepStatusEvent) error {
	return m.Called(ctx, payload).Error(0)
}

func (m *mockPublisher) PublishEpisode(ctx context.Context, payload events.EpisodeEvent) error {
	return m.Called(ctx, payload).Error(0)
}

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func newTestHarness(options ...Option) *Harness {
	base := []Option{WithIDs(sequentialIDs())}
	return NewHarness(policy.Threshold{}, actor.Options{}, zerolog.New(io.Discard), append(base, options...)...)
}

func twoByTwoGrid() Grid {
	return Grid{
		JumpThresholds: []float64{50, 100},
		DuckThresholds: []float64{75},
		JumpDeltas:     []float64{0.01},
		Tests:          2,
	}
}

func TestGridTuplesOrderAndTotal(t *testing.T) {
	g := Grid{
		JumpThresholds: []float64{1, 2},
		DuckThresholds: []float64{10, 20},
		JumpDeltas:     []float64{0.1, 0.2},
		Tests:          3,
	}
	tuples := g.Tuples()
	require.Len(t, tuples, 8)
	assert.Equal(t, game.ParameterTuple{JumpThreshold: 1, DuckThreshold: 10, JumpDelta: 0.1}, tuples[0])
	assert.Equal(t, game.ParameterTuple{JumpThreshold: 1, DuckThreshold: 10, JumpDelta: 0.2}, tuples[1])
	assert.Equal(t, game.ParameterTuple{JumpThreshold: 1, DuckThreshold: 20, JumpDelta: 0.1}, tuples[2])
	assert.Equal(t, game.ParameterTuple{JumpThreshold: 2, DuckThreshold: 10, JumpDelta: 0.1}, tuples[4])
	assert.Equal(t, 24, g.Total())
}

func TestGridValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Grid)
	}{
		{"empty jump thresholds", func(g *Grid) { g.JumpThresholds = nil }},
		{"empty duck thresholds", func(g *Grid) { g.DuckThresholds = []float64{} }},
		{"empty jump deltas", func(g *Grid) { g.JumpDeltas = nil }},
		{"zero tests", func(g *Grid) { g.Tests = 0 }},
		{"negative delta", func(g *Grid) { g.JumpDeltas = []float64{-0.1} }},
		{"non-finite threshold", func(g *Grid) { g.JumpThresholds = []float64{50, math.Inf(1)} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := twoByTwoGrid()
			tt.mutate(&g)
			assert.ErrorIs(t, g.Validate(), game.ErrConfiguration)
		})
	}
	assert.NoError(t, twoByTwoGrid().Validate())
	assert.NoError(t, DefaultGrid().Validate())
}

func TestHarnessMergesRepeatedAxisValues(t *testing.T) {
	grid := Grid{JumpThresholds: []float64{50, 50}, DuckThresholds: []float64{75}, JumpDeltas: []float64{0.01}, Tests: 2}
	require.NoError(t, grid.Validate())
	assert.Equal(t, 4, grid.Total())

	session := &stubSession{distances: []float64{100, 120, 300, 310}}
	stats, err := newTestHarness().Run(context.Background(), session, session, grid)
	require.NoError(t, err)

	key := game.ParameterTuple{JumpThreshold: 50, DuckThreshold: 75, JumpDelta: 0.01}
	assert.Equal(t, []game.ParameterTuple{key}, stats.Keys())
	assert.Equal(t, []float64{100, 120, 300, 310}, stats.Distances(key))
}

func TestDefaultGrid(t *testing.T) {
	g := DefaultGrid()
	assert.Equal(t, []float64{50, 61.11, 72.22, 83.33, 94.44, 105.56, 116.67, 127.78, 138.89, 150}, g.JumpThresholds)
	assert.Equal(t, []float64{75}, g.DuckThresholds)
	assert.Equal(t, []float64{0.01}, g.JumpDeltas)
	assert.Equal(t, 30, g.Total())
}

func TestLinspace(t *testing.T) {
	assert.Equal(t, []float64{0, 0.5, 1}, Linspace(0, 1, 3, 2))
	assert.Equal(t, []float64{7}, Linspace(7, 9, 1, 0))
	assert.Nil(t, Linspace(0, 1, 0, 2))
}

func TestAggregatorSnapshotIsDetached(t *testing.T) {
	agg := NewAggregator("s")
	a := game.ParameterTuple{JumpThreshold: 1}
	b := game.ParameterTuple{JumpThreshold: 2}
	agg.Record(b, 10)
	agg.Record(a, 20)
	agg.Record(b, 30)

	snap := agg.Snapshot()
	agg.Record(a, 40)

	assert.Equal(t, []game.ParameterTuple{b, a}, snap.Keys())
	assert.Equal(t, []float64{10, 30}, snap.Distances(b))
	assert.Equal(t, []float64{20}, snap.Distances(a))
	assert.Equal(t, 3, snap.Episodes())
	assert.Equal(t, 2, snap.Len())

	d := snap.Distances(b)
	d[0] = 999
	assert.Equal(t, []float64{10, 30}, snap.Distances(b))
}

func TestFromRecords(t *testing.T) {
	records := []types.EpisodeRecord{
		{Sequence: 1, JumpThreshold: 50, DuckThreshold: 75, JumpDelta: 0.01, FinalDistance: 100},
		{Sequence: 2, JumpThreshold: 50, DuckThreshold: 75, JumpDelta: 0.01, FinalDistance: 120},
		{Sequence: 3, JumpThreshold: 60, DuckThreshold: 75, JumpDelta: 0.01, FinalDistance: 90},
	}
	stats := FromRecords("s", records)
	assert.Equal(t, "s", stats.SweepID)
	require.Equal(t, 2, stats.Len())
	assert.Equal(t, []float64{100, 120}, stats.Distances(records[0].Params()))
	assert.Equal(t, []float64{90}, stats.Distances(records[2].Params()))
}

func TestHarnessRecordsEveryEpisode(t *testing.T) {
	session := &stubSession{distances: []float64{100, 120, 300, 310}}
	store := storage.NewMemoryStore()
	h := newTestHarness(WithStore(store))

	stats, err := h.Run(context.Background(), session, session, twoByTwoGrid())
	require.NoError(t, err)

	first := game.ParameterTuple{JumpThreshold: 50, DuckThreshold: 75, JumpDelta: 0.01}
	second := game.ParameterTuple{JumpThreshold: 100, DuckThreshold: 75, JumpDelta: 0.01}
	assert.Equal(t, []game.ParameterTuple{first, second}, stats.Keys())
	assert.Equal(t, []float64{100, 120}, stats.Distances(first))
	assert.Equal(t, []float64{300, 310}, stats.Distances(second))

	sweep, err := store.GetSweep(context.Background(), stats.SweepID)
	require.NoError(t, err)
	assert.Equal(t, types.SweepStateCompleted, sweep.State)
	assert.Equal(t, 4, sweep.CompletedEpisodes)
	assert.NotNil(t, sweep.EndedAt)

	records, err := store.ListEpisodes(context.Background(), stats.SweepID)
	require.NoError(t, err)
	require.Len(t, records, 4)
	for i, r := range records {
		assert.Equal(t, i+1, r.Sequence)
		assert.Equal(t, i%2, r.Episode)
		assert.Equal(t, 1, r.StepCount)
	}
	assert.Equal(t, stats.Distances(first), FromRecords(stats.SweepID, records).Distances(first))
}

func TestHarnessLogsPollTrace(t *testing.T) {
	var buf bytes.Buffer
	var forwarded []float64
	opts := actor.Options{Trace: func(distance, _ float64) { forwarded = append(forwarded, distance) }}
	h := NewHarness(policy.Threshold{}, opts, zerolog.New(&buf).Level(zerolog.TraceLevel), WithIDs(sequentialIDs()))

	session := &stubSession{distances: []float64{100, 120}}
	grid := Grid{JumpThresholds: []float64{50}, DuckThresholds: []float64{75}, JumpDeltas: []float64{0.01}, Tests: 2}
	_, err := h.Run(context.Background(), session, session, grid)
	require.NoError(t, err)

	assert.Equal(t, []float64{1, 100, 1, 120}, forwarded)

	var polls, finished int
	for _, line := range strings.Split(strings.TrimSpace(buf.String()), "\n") {
		switch {
		case strings.Contains(line, `"message":"Poll"`):
			polls++
			assert.Contains(t, line, `"level":"trace"`)
		case strings.Contains(line, `"message":"Episode finished"`):
			finished++
			assert.Contains(t, line, `"polls":2`)
			assert.Contains(t, line, `"max_speed":7`)
		}
	}
	assert.Equal(t, 4, polls)
	assert.Equal(t, 2, finished)
}

func TestHarnessAbortsOnEnvironmentError(t *testing.T) {
	session := &stubSession{distances: []float64{100, 120, 300}}
	store := storage.NewMemoryStore()
	h := newTestHarness(WithStore(store))

	stats, err := h.Run(context.Background(), session, session, twoByTwoGrid())
	require.Error(t, err)
	assert.ErrorIs(t, err, game.ErrEnvironmentUnavailable)
	assert.Equal(t, 3, stats.Episodes())

	sweep, getErr := store.GetSweep(context.Background(), stats.SweepID)
	require.NoError(t, getErr)
	assert.Equal(t, types.SweepStateFailed, sweep.State)
	assert.Contains(t, sweep.StatusMessage, "connection reset")
}

func TestHarnessInterrupted(t *testing.T) {
	session := &stubSession{distances: []float64{100}}
	store := storage.NewMemoryStore()
	h := newTestHarness(WithStore(store))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	stats, err := h.Run(ctx, session, session, twoByTwoGrid())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, stats.Episodes())

	sweep, getErr := store.GetSweep(context.Background(), stats.SweepID)
	require.NoError(t, getErr)
	assert.Equal(t, types.SweepStateInterrupted, sweep.State)
}

func TestHarnessPublishesProgress(t *testing.T) {
	session := &stubSession{distances: []float64{100, 120, 300, 310}}
	publisher := &mockPublisher{}
	publisher.On("PublishSweepStatus", mock.Anything, mock.MatchedBy(func(e events.SweepStatusEvent) bool {
		return e.State == "running" && e.TotalEpisodes == 4
	})).Return(nil).Once()
	publisher.On("PublishSweepStatus", mock.Anything, mock.MatchedBy(func(e events.SweepStatusEvent) bool {
		return e.State == "completed" && e.CompletedEpisodes == 4
	})).Return(nil).Once()
	publisher.On("PublishEpisode", mock.Anything, mock.AnythingOfType("events.EpisodeEvent")).
		Return(errors.New("broker down")).Times(4)

	h := newTestHarness(WithPublisher(publisher))
	_, err := h.Run(context.Background(), session, session, twoByTwoGrid())
	require.NoError(t, err)
	publisher.AssertExpectations(t)
}

func TestHarnessEmitsMetrics(t *testing.T) {
	var buf bytes.Buffer
	session := &stubSession{distances: []float64{100, 120, 300, 310}}
	h := newTestHarness(WithMetrics(metrics.NewCollector(zerolog.New(&buf))))

	_, err := h.Run(context.Background(), session, session, twoByTwoGrid())
	require.NoError(t, err)

	out := buf.String()
	assert.Equal(t, 4, strings.Count(out, `"metric":"episode_completed"`))
	assert.Equal(t, 2, strings.Count(out, `"metric":"cell_completed"`))
	assert.Equal(t, 2, strings.Count(out, `"metric":"sweep_state_transition"`))
}

func TestRunClosesSessionOnce(t *testing.T) {
	session := &stubSession{distances: []float64{100, 120, 300, 310}}
	opens := 0
	open := func(context.Context) (env.Session, error) {
		opens++
		return session, nil
	}

	stats, err := Run(context.Background(), open, newTestHarness(), twoByTwoGrid())
	require.NoError(t, err)
	assert.Equal(t, 4, stats.Episodes())
	assert.Equal(t, 1, opens)
	assert.Equal(t, 1, session.closed)
}

func TestRunClosesSessionOnceOnError(t *testing.T) {
	session := &stubSession{distances: []float64{100}, closeErr: errors.New("already gone")}
	open := func(context.Context) (env.Session, error) { return session, nil }

	stats, err := Run(context.Background(), open, newTestHarness(), twoByTwoGrid())
	assert.ErrorIs(t, err, game.ErrEnvironmentUnavailable)
	assert.Equal(t, 1, stats.Episodes())
	assert.Equal(t, 1, session.closed)
}

func TestRunRejectsConfigurationBeforeOpening(t *testing.T) {
	open := func(context.Context) (env.Session, error) {
		t.Fatal("opener must not be called")
		return nil, nil
	}
	_, err := Run(context.Background(), open, newTestHarness(), Grid{Tests: 1})
	assert.ErrorIs(t, err, game.ErrConfiguration)
}

func TestRunWrapsOpenFailure(t *testing.T) {
	open := func(context.Context) (env.Session, error) { return nil, errors.New("dial timeout") }
	_, err := Run(context.Background(), open, newTestHarness(), twoByTwoGrid())
	assert.ErrorIs(t, err, game.ErrEnvironmentUnavailable)
	assert.Contains(t, err.Error(), "dial timeout")
}

func TestHarnessAgainstSimulator(t *testing.T) {
	sim := env.NewSim(env.DefaultSimConfig())
	h := newTestHarness(WithNow(func() time.Time { return time.Unix(0, 0) }))
	grid := Grid{JumpThresholds: []float64{80, 120}, DuckThresholds: []float64{75}, JumpDeltas: []float64{0.01}, Tests: 1}

	stats, err := Run(context.Background(), func(context.Context) (env.Session, error) { return sim, nil }, h, grid)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Len())
	for _, k := range stats.Keys() {
		d := stats.Distances(k)
		require.Len(t, d, 1)
		assert.Greater(t, d[0], 0.0)
	}
}
