package actor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/cartridge/dinosweep/internal/env"
	"github.com/cartridge/dinosweep/internal/game"
	"github.com/cartridge/dinosweep/internal/policy"
)

// State is the episode lifecycle position.
type State int

const (
	StateWaitingForStart State = iota
	StateRunning
	StateDone
)

func (s State) String() string {
	switch s {
	case StateWaitingForStart:
		return "waiting_for_start"
	case StateRunning:
		return "running"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome summarizes one completed episode.
type Outcome struct {
	FinalDistance float64 `json:"final_distance"`
	FinalSpeed    float64 `json:"final_speed"`
	StepCount     int     `json:"step_count"`
}

// Options controls episode start timing.
type Options struct {
	// StartDelay is waited after the initial start jump.
	StartDelay time.Duration
	// RetryDelay is waited after re-jumping over a leftover crash frame.
	RetryDelay time.Duration
	// Trace, if set, receives the distance and speed of every polled frame.
	Trace func(distance, speed float64)
}

// Actor plays episodes of the game with a policy.
type Actor struct {
	source env.StateSource
	sink   env.ActionSink
	policy policy.Policy
	opts   Options
	logger zerolog.Logger

	sleep        func(ctx context.Context, d time.Duration) error
	lastObserved game.FrameState
}

// New creates an actor reading state from source and sending actions to sink.
func New(source env.StateSource, sink env.ActionSink, p policy.Policy, opts Options, logger zerolog.Logger) *Actor {
	return &Actor{
		source: source,
		sink:   sink,
		policy: p,
		opts:   opts,
		logger: logger,
		sleep:  sleepContext,
	}
}

// LastObserved returns the last frame a decision was made on.
func (a *Actor) LastObserved() game.FrameState {
	return a.lastObserved
}

// RunEpisode plays one episode from the start jump until the game reports a crash.
// Environment failures end the episode and are returned without retry.
func (a *Actor) RunEpisode(ctx context.Context, params game.ParameterTuple) (Outcome, error) {
	var (
		acc   Accumulator
		state = StateWaitingForStart
		frame game.FrameState
		steps int
	)

	if err := a.submit(ctx, game.ActionJump); err != nil {
		return Outcome{}, err
	}
	if err := a.sleep(ctx, a.opts.StartDelay); err != nil {
		return Outcome{}, err
	}

	for state != StateDone {
		if err := ctx.Err(); err != nil {
			return Outcome{}, err
		}

		var err error
		frame, err = a.poll(ctx)
		if err != nil {
			return Outcome{}, err
		}
		if a.opts.Trace != nil {
			a.opts.Trace(frame.Distance, frame.Speed)
		}

		if state == StateWaitingForStart {
			if frame.Crashed {
				// Still showing the previous run's crash; press start again.
				if err := a.submit(ctx, game.ActionJump); err != nil {
					return Outcome{}, err
				}
				if err := a.sleep(ctx, a.opts.RetryDelay); err != nil {
					return Outcome{}, err
				}
				continue
			}
			state = StateRunning
		}

		if frame.Crashed {
			state = StateDone
			continue
		}
		if frame.Jumping {
			continue
		}

		action := a.policy.Decide(frame.Nearest(), params.JumpThreshold+acc.Value(), params.DuckThreshold)
		acc.Step(frame.Speed, params.JumpDelta)
		if err := a.submit(ctx, action); err != nil {
			return Outcome{}, err
		}
		a.lastObserved = frame
		steps++
	}

	a.logger.Debug().
		Str("params", params.String()).
		Int("steps", steps).
		Float64("distance", frame.Distance).
		Float64("threshold_drift", acc.Value()).
		Msg("episode finished")

	return Outcome{
		FinalDistance: frame.Distance,
		FinalSpeed:    frame.Speed,
		StepCount:     steps,
	}, nil
}

func (a *Actor) poll(ctx context.Context) (game.FrameState, error) {
	frame, err := a.source.Poll(ctx)
	if err != nil {
		return game.FrameState{}, environmentError("poll", err)
	}
	return frame, nil
}

func (a *Actor) submit(ctx context.Context, action game.Action) error {
	if !action.Valid() {
		return fmt.Errorf("submit: %w: %v", game.ErrInvalidAction, action)
	}
	if err := a.sink.Submit(ctx, action); err != nil {
		return environmentError("submit "+action.String(), err)
	}
	return nil
}

// environmentError tags untyped collaborator failures as ErrEnvironmentUnavailable.
func environmentError(op string, err error) error {
	switch {
	case errors.Is(err, game.ErrEnvironmentUnavailable),
		errors.Is(err, game.ErrInvalidAction),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %w", op, game.ErrEnvironmentUnavailable, err)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
