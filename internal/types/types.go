package types

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/cartridge/dinosweep/internal/game"
)

// SweepState enumerates the lifecycle states persisted for a sweep.
type SweepState string

const (
	SweepStateRunning     SweepState = "running"
	SweepStateCompleted   SweepState = "completed"
	SweepStateFailed      SweepState = "failed"
	SweepStateInterrupted SweepState = "interrupted"
)

// Terminal reports whether no further episodes will be recorded in this state.
func (s SweepState) Terminal() bool {
	switch s {
	case SweepStateCompleted, SweepStateFailed, SweepStateInterrupted:
		return true
	}
	return false
}

// Sweep captures the metadata of one grid search.
type Sweep struct {
	ID                string     `json:"id"`
	State             SweepState `json:"state"`
	StatusMessage     string     `json:"status_message,omitempty"`
	JumpThresholds    []float64  `json:"jump_thresholds"`
	DuckThresholds    []float64  `json:"duck_thresholds"`
	JumpDeltas        []float64  `json:"jump_deltas"`
	Tests             int        `json:"tests"`
	TotalEpisodes     int        `json:"total_episodes"`
	CompletedEpisodes int        `json:"completed_episodes"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	EndedAt           *time.Time `json:"ended_at,omitempty"`
}

// Validate ensures the sweep respects schema invariants.
func (s Sweep) Validate() error {
	if s.ID == "" {
		return errors.New("id is required")
	}
	switch s.State {
	case SweepStateRunning, SweepStateCompleted, SweepStateFailed, SweepStateInterrupted:
	default:
		return fmt.Errorf("invalid state %q", s.State)
	}
	if s.Tests < 1 {
		return errors.New("tests must be at least 1")
	}
	if s.CompletedEpisodes < 0 || s.CompletedEpisodes > s.TotalEpisodes {
		return fmt.Errorf("completed_episodes %d outside [0,%d]", s.CompletedEpisodes, s.TotalEpisodes)
	}
	return nil
}

// EpisodeRecord is one finished episode as persisted.
type EpisodeRecord struct {
	ID            string    `json:"id"`
	SweepID       string    `json:"sweep_id"`
	Sequence      int       `json:"sequence"`
	Episode       int       `json:"episode"`
	JumpThreshold float64   `json:"jump_threshold"`
	DuckThreshold float64   `json:"duck_threshold"`
	JumpDelta     float64   `json:"jump_delta"`
	FinalDistance float64   `json:"final_distance"`
	FinalSpeed    float64   `json:"final_speed"`
	StepCount     int       `json:"step_count"`
	CompletedAt   time.Time `json:"completed_at"`
}

// Params returns the grid cell the episode ran under.
func (e EpisodeRecord) Params() game.ParameterTuple {
	return game.ParameterTuple{
		JumpThreshold: e.JumpThreshold,
		DuckThreshold: e.DuckThreshold,
		JumpDelta:     e.JumpDelta,
	}
}

// Validate ensures the record respects schema invariants.
func (e EpisodeRecord) Validate() error {
	if e.ID == "" {
		return errors.New("id is required")
	}
	if e.SweepID == "" {
		return errors.New("sweep_id is required")
	}
	if e.Sequence < 1 {
		return errors.New("sequence must be positive")
	}
	if e.Episode < 0 {
		return errors.New("episode must be non-negative")
	}
	if e.StepCount < 0 {
		return errors.New("step_count must be non-negative")
	}
	for name, v := range map[string]float64{
		"jump_threshold": e.JumpThreshold,
		"duck_threshold": e.DuckThreshold,
		"jump_delta":     e.JumpDelta,
		"final_distance": e.FinalDistance,
	} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%s must be finite", name)
		}
	}
	return nil
}
