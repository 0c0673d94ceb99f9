package types

import (
	"math"
	"testing"
	"time"

	"github.com/cartridge/dinosweep/internal/game"
)

func TestSweepValidate(t *testing.T) {
	s := Sweep{ID: "s-1", State: SweepStateRunning, Tests: 2, TotalEpisodes: 4, CompletedEpisodes: 1}
	if err := s.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}

	bad := s
	bad.State = "paused"
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for unknown state")
	}

	bad = s
	bad.CompletedEpisodes = 5
	if err := bad.Validate(); err == nil {
		t.Fatalf("expected error for completed > total")
	}
}

func TestSweepStateTerminal(t *testing.T) {
	if SweepStateRunning.Terminal() {
		t.Fatalf("running must not be terminal")
	}
	for _, s := range []SweepState{SweepStateCompleted, SweepStateFailed, SweepStateInterrupted} {
		if !s.Terminal() {
			t.Fatalf("%s should be terminal", s)
		}
	}
}

func TestEpisodeRecordValidate(t *testing.T) {
	rec := EpisodeRecord{
		ID:            "ep-1",
		SweepID:       "s-1",
		Sequence:      1,
		JumpThreshold: 50,
		DuckThreshold: 75,
		JumpDelta:     0.01,
		FinalDistance: 412.5,
		StepCount:     300,
		CompletedAt:   time.Now(),
	}
	if err := rec.Validate(); err != nil {
		t.Fatalf("unexpected validation error: %v", err)
	}
	if got, want := rec.Params(), (game.ParameterTuple{JumpThreshold: 50, DuckThreshold: 75, JumpDelta: 0.01}); got != want {
		t.Fatalf("params = %v, want %v", got, want)
	}

	rec.FinalDistance = math.NaN()
	if err := rec.Validate(); err == nil {
		t.Fatalf("expected error for NaN distance")
	}
}
