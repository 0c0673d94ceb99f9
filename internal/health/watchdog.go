package health

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/cartridge/dinosweep/internal/env"
	"github.com/cartridge/dinosweep/internal/game"
)

// Config holds stall detection configuration
type Config struct {
	CheckInterval time.Duration
	StallAfter    time.Duration
}

// StallRecorder receives stall observations.
type StallRecorder interface {
	EnvironmentStall(idle time.Duration)
}

// Watchdog wraps a Session and reports when no poll or submit has completed for longer
// than StallAfter. It only observes; the wrapped calls are never interrupted.
type Watchdog struct {
	env.Session

	config   Config
	recorder StallRecorder
	logger   zerolog.Logger
	now      func() time.Time

	lastActivity atomic.Int64
	stalled      atomic.Bool
}

// NewWatchdog wraps session. recorder may be nil.
func NewWatchdog(session env.Session, config Config, recorder StallRecorder, logger zerolog.Logger) *Watchdog {
	w := &Watchdog{
		Session:  session,
		config:   config,
		recorder: recorder,
		logger:   logger,
		now:      time.Now,
	}
	w.touch()
	return w
}

// Poll forwards to the wrapped session and records activity.
func (w *Watchdog) Poll(ctx context.Context) (game.FrameState, error) {
	frame, err := w.Session.Poll(ctx)
	w.touch()
	return frame, err
}

// Submit forwards to the wrapped session and records activity.
func (w *Watchdog) Submit(ctx context.Context, action game.Action) error {
	err := w.Session.Submit(ctx, action)
	w.touch()
	return err
}

// Idle reports how long ago the last call completed.
func (w *Watchdog) Idle() time.Duration {
	return w.now().Sub(time.Unix(0, w.lastActivity.Load()))
}

// Stalled reports whether the last check found the session idle.
func (w *Watchdog) Stalled() bool {
	return w.stalled.Load()
}

// Start begins the stall check loop
func (w *Watchdog) Start(ctx context.Context) {
	ticker := time.NewTicker(w.config.CheckInterval)
	defer ticker.Stop()

	w.logger.Info().
		Dur("check_interval", w.config.CheckInterval).
		Dur("stall_after", w.config.StallAfter).
		Msg("Starting environment watchdog")

	for {
		select {
		case <-ctx.Done():
			w.logger.Info().Msg("Environment watchdog stopped")
			return
		case <-ticker.C:
			w.check()
		}
	}
}

func (w *Watchdog) check() {
	idle := w.Idle()
	if idle < w.config.StallAfter {
		if w.stalled.Swap(false) {
			w.logger.Info().Dur("idle", idle).Msg("Environment responsive again")
		}
		return
	}
	// Report each stall once until activity resumes.
	if w.stalled.Swap(true) {
		return
	}
	w.logger.Warn().Dur("idle", idle).Msg("Environment stalled")
	if w.recorder != nil {
		w.recorder.EnvironmentStall(idle)
	}
}

func (w *Watchdog) touch() {
	w.lastActivity.Store(w.now().UnixNano())
}
