// Package metrics emits sweep measurements as structured log lines keyed by "metric".
package metrics

import (
	"time"

	"github.com/rs/zerolog"

	"github.com/cartridge/dinosweep/internal/game"
)

// Collector writes one log line per measurement.
type Collector struct {
	logger zerolog.Logger
}

func NewCollector(logger zerolog.Logger) *Collector {
	return &Collector{logger: logger}
}

func (c *Collector) emit(name string) *zerolog.Event {
	return c.logger.Info().Str("metric", name)
}

func withParams(e *zerolog.Event, p game.ParameterTuple) *zerolog.Event {
	return e.
		Float64("jump_threshold", p.JumpThreshold).
		Float64("duck_threshold", p.DuckThreshold).
		Float64("jump_delta", p.JumpDelta)
}

// EpisodeCompleted records one finished episode.
func (c *Collector) EpisodeCompleted(sweepID string, params game.ParameterTuple, distance float64, steps int, elapsed time.Duration) {
	withParams(c.emit("episode_completed").Str("sweep_id", sweepID), params).
		Float64("distance", distance).
		Int("steps", steps).
		Dur("elapsed", elapsed).
		Msg("Episode metric")
}

// CellCompleted records a grid cell whose episodes all finished.
func (c *Collector) CellCompleted(sweepID string, params game.ParameterTuple, episodes int, elapsed time.Duration) {
	withParams(c.emit("cell_completed").Str("sweep_id", sweepID), params).
		Int("episodes", episodes).
		Dur("elapsed", elapsed).
		Msg("Grid cell metric")
}

// SweepStateTransition records a sweep lifecycle change; from is empty on creation.
func (c *Collector) SweepStateTransition(sweepID, from, to string) {
	c.emit("sweep_state_transition").
		Str("sweep_id", sweepID).
		Str("from_state", from).
		Str("to_state", to).
		Msg("Sweep state transition metric")
}

// APIRequest records one served report request.
func (c *Collector) APIRequest(method, endpoint string, statusCode int, duration time.Duration) {
	c.emit("api_request").
		Str("method", method).
		Str("endpoint", endpoint).
		Int("status_code", statusCode).
		Dur("duration", duration).
		Msg("API request metric")
}

// EnvironmentStall records a watchdog stall; logged at warn level.
func (c *Collector) EnvironmentStall(idle time.Duration) {
	c.logger.Warn().
		Str("metric", "environment_stall").
		Dur("idle", idle).
		Msg("Environment stall metric")
}
