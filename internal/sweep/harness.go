package sweep

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/cartridge/dinosweep/internal/actor"
	"github.com/cartridge/dinosweep/internal/env"
	"github.com/cartridge/dinosweep/internal/events"
	"github.com/cartridge/dinosweep/internal/game"
	"github.com/cartridge/dinosweep/internal/metrics"
	"github.com/cartridge/dinosweep/internal/policy"
	"github.com/cartridge/dinosweep/internal/storage"
	"github.com/cartridge/dinosweep/internal/types"
)

// episodeTrace summarises the frames polled during one episode.
type episodeTrace struct {
	polls    int
	maxSpeed float64
}

func (t *episodeTrace) observe(speed float64) {
	t.polls++
	if speed > t.maxSpeed {
		t.maxSpeed = speed
	}
}

// Harness runs every grid cell a fixed number of times and aggregates final distances.
type Harness struct {
	policy    policy.Policy
	opts      actor.Options
	logger    zerolog.Logger
	store     storage.ResultStore
	events    events.Publisher
	collector *metrics.Collector
	now       func() time.Time
	newID     func() string
}

// Option customises a Harness.
type Option func(*Harness)

// WithStore persists the sweep and every finished episode.
func WithStore(store storage.ResultStore) Option {
	return func(h *Harness) { h.store = store }
}

// WithPublisher fans sweep progress out to a publisher.
func WithPublisher(publisher events.Publisher) Option {
	return func(h *Harness) { h.events = publisher }
}

// WithMetrics records per-episode and per-cell metrics.
func WithMetrics(collector *metrics.Collector) Option {
	return func(h *Harness) { h.collector = collector }
}

// WithNow allows tests to override the time source.
func WithNow(now func() time.Time) Option {
	return func(h *Harness) { h.now = now }
}

// WithIDs allows tests to override sweep and episode id generation.
func WithIDs(newID func() string) Option {
	return func(h *Harness) { h.newID = newID }
}

// NewHarness constructs a Harness deciding actions with p.
func NewHarness(p policy.Policy, opts actor.Options, logger zerolog.Logger, options ...Option) *Harness {
	h := &Harness{
		policy: p,
		opts:   opts,
		logger: logger,
		events: events.NoopPublisher{},
		now:    time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range options {
		opt(h)
	}
	return h
}

// Run plays grid.Tests episodes for every cell in grid order. The first episode error
// aborts the sweep; the distances recorded before it are returned with the error.
func (h *Harness) Run(ctx context.Context, source env.StateSource, sink env.ActionSink, grid Grid) (AggregateStats, error) {
	if err := grid.Validate(); err != nil {
		return AggregateStats{}, err
	}

	now := h.now()
	sweep := types.Sweep{
		ID:             h.newID(),
		State:          types.SweepStateRunning,
		JumpThresholds: grid.JumpThresholds,
		DuckThresholds: grid.DuckThresholds,
		JumpDeltas:     grid.JumpDeltas,
		Tests:          grid.Tests,
		TotalEpisodes:  grid.Total(),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if h.store != nil {
		if err := h.store.CreateSweep(ctx, sweep); err != nil {
			return AggregateStats{}, fmt.Errorf("create sweep: %w", err)
		}
	}
	h.publishStatus(ctx, sweep)
	if h.collector != nil {
		h.collector.SweepStateTransition(sweep.ID, "", string(sweep.State))
	}

	logger := h.logger.With().Str("sweep_id", sweep.ID).Logger()
	logger.Info().
		Int("cells", len(grid.Tuples())).
		Int("tests", grid.Tests).
		Int("total_episodes", sweep.TotalEpisodes).
		Msg("Starting sweep")

	agg := NewAggregator(sweep.ID)
	var trace episodeTrace
	opts := h.opts
	next := opts.Trace
	opts.Trace = func(distance, speed float64) {
		trace.observe(speed)
		logger.Trace().Float64("distance", distance).Float64("speed", speed).Msg("Poll")
		if next != nil {
			next(distance, speed)
		}
	}
	runner := actor.New(source, sink, h.policy, opts, logger)

	for _, params := range grid.Tuples() {
		logger.Info().
			Float64("jump_threshold", params.JumpThreshold).
			Float64("duck_threshold", params.DuckThreshold).
			Float64("jump_delta", params.JumpDelta).
			Int("tests", grid.Tests).
			Msg("Testing parameters")
		cellStart := h.now()

		for episode := 0; episode < grid.Tests; episode++ {
			episodeStart := h.now()
			trace = episodeTrace{}
			outcome, err := runner.RunEpisode(ctx, params)
			if err != nil {
				err = fmt.Errorf("episode %d of %s: %w", episode, params, err)
				h.finish(ctx, logger, &sweep, err)
				return agg.Snapshot(), err
			}

			agg.Record(params, outcome.FinalDistance)
			sweep.CompletedEpisodes++

			logger.Info().
				Int("episode", episode).
				Int("completed", sweep.CompletedEpisodes).
				Int("total", sweep.TotalEpisodes).
				Float64("distance", outcome.FinalDistance).
				Float64("speed", outcome.FinalSpeed).
				Float64("jump_threshold", params.JumpThreshold).
				Int("steps", outcome.StepCount).
				Int("polls", trace.polls).
				Float64("max_speed", trace.maxSpeed).
				Msg("Episode finished")

			if err := h.recordEpisode(ctx, sweep, episode, params, outcome); err != nil {
				h.finish(ctx, logger, &sweep, err)
				return agg.Snapshot(), err
			}
			if h.collector != nil {
				h.collector.EpisodeCompleted(sweep.ID, params, outcome.FinalDistance, outcome.StepCount, h.now().Sub(episodeStart))
			}
		}

		if h.collector != nil {
			h.collector.CellCompleted(sweep.ID, params, grid.Tests, h.now().Sub(cellStart))
		}
		if h.store != nil {
			sweep.UpdatedAt = h.now()
			if err := h.store.UpdateSweep(ctx, sweep); err != nil {
				logger.Error().Err(err).Msg("failed to record sweep progress")
			}
		}
	}

	h.finish(ctx, logger, &sweep, nil)
	return agg.Snapshot(), nil
}

func (h *Harness) recordEpisode(ctx context.Context, sweep types.Sweep, episode int, params game.ParameterTuple, outcome actor.Outcome) error {
	record := types.EpisodeRecord{
		ID:            h.newID(),
		SweepID:       sweep.ID,
		Sequence:      sweep.CompletedEpisodes,
		Episode:       episode,
		JumpThreshold: params.JumpThreshold,
		DuckThreshold: params.DuckThreshold,
		JumpDelta:     params.JumpDelta,
		FinalDistance: outcome.FinalDistance,
		FinalSpeed:    outcome.FinalSpeed,
		StepCount:     outcome.StepCount,
		CompletedAt:   h.now(),
	}
	if h.store != nil {
		if err := h.store.AppendEpisode(ctx, record); err != nil {
			return fmt.Errorf("record episode %d: %w", record.Sequence, err)
		}
	}
	if err := h.events.PublishEpisode(ctx, events.EpisodeEvent{
		SweepID:       sweep.ID,
		Sequence:      record.Sequence,
		Total:         sweep.TotalEpisodes,
		Episode:       episode,
		JumpThreshold: params.JumpThreshold,
		DuckThreshold: params.DuckThreshold,
		JumpDelta:     params.JumpDelta,
		FinalDistance: outcome.FinalDistance,
		FinalSpeed:    outcome.FinalSpeed,
		StepCount:     outcome.StepCount,
	}); err != nil {
		h.logger.Error().Err(err).Str("sweep_id", sweep.ID).Msg("failed to publish episode event")
	}
	return nil
}

// finish moves the sweep to its terminal state. Store and publish calls outlive ctx so an
// interrupted sweep is still marked.
func (h *Harness) finish(ctx context.Context, logger zerolog.Logger, sweep *types.Sweep, cause error) {
	ctx = context.WithoutCancel(ctx)
	from := sweep.State
	now := h.now()

	switch {
	case cause == nil:
		sweep.State = types.SweepStateCompleted
	case errors.Is(cause, context.Canceled), errors.Is(cause, context.DeadlineExceeded):
		sweep.State = types.SweepStateInterrupted
		sweep.StatusMessage = cause.Error()
	default:
		sweep.State = types.SweepStateFailed
		sweep.StatusMessage = cause.Error()
	}
	sweep.UpdatedAt = now
	sweep.EndedAt = &now

	if h.store != nil {
		if err := h.store.UpdateSweep(ctx, *sweep); err != nil {
			logger.Error().Err(err).Str("state", string(sweep.State)).Msg("failed to record sweep state")
		}
	}
	h.publishStatus(ctx, *sweep)
	if h.collector != nil {
		h.collector.SweepStateTransition(sweep.ID, string(from), string(sweep.State))
	}

	event := logger.Info()
	if cause != nil {
		event = logger.Error().Err(cause)
	}
	event.
		Str("state", string(sweep.State)).
		Int("completed", sweep.CompletedEpisodes).
		Int("total", sweep.TotalEpisodes).
		Msg("Sweep finished")
}

func (h *Harness) publishStatus(ctx context.Context, sweep types.Sweep) {
	if err := h.events.PublishSweepStatus(ctx, events.SweepStatusEvent{
		SweepID:           sweep.ID,
		State:             string(sweep.State),
		TotalEpisodes:     sweep.TotalEpisodes,
		CompletedEpisodes: sweep.CompletedEpisodes,
		LastError:         sweep.StatusMessage,
	}); err != nil {
		h.logger.Error().Err(err).Str("sweep_id", sweep.ID).Msg("failed to publish sweep status event")
	}
}
