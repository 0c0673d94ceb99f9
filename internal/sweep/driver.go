package sweep

import (
	"context"
	"errors"
	"fmt"

	"github.com/cartridge/dinosweep/internal/env"
	"github.com/cartridge/dinosweep/internal/game"
)

// Opener acquires a game session.
type Opener func(ctx context.Context) (env.Session, error)

// Run validates grid, opens one session, runs the harness on it and closes the session
// exactly once whatever the outcome. A failing Close is logged and does not replace the
// sweep result.
func Run(ctx context.Context, open Opener, h *Harness, grid Grid) (AggregateStats, error) {
	if err := grid.Validate(); err != nil {
		return AggregateStats{}, err
	}

	session, err := open(ctx)
	if err != nil {
		if errors.Is(err, game.ErrEnvironmentUnavailable) {
			return AggregateStats{}, fmt.Errorf("open environment: %w", err)
		}
		return AggregateStats{}, fmt.Errorf("open environment: %w: %w", game.ErrEnvironmentUnavailable, err)
	}
	defer func() {
		if cerr := session.Close(); cerr != nil {
			h.logger.Warn().Err(cerr).Msg("failed to close environment session")
		}
	}()

	return h.Run(ctx, session, session, grid)
}
