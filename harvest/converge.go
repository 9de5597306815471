package harvest

import (
	"context"
	"errors"
	"log/slog"

	"github.com/use-agent/jobharvest/config"
	"github.com/use-agent/jobharvest/dom"
	"github.com/use-agent/jobharvest/models"
)

// Converge scrolls the container's scrollable ancestor until the card count
// stays flat for NoGrowthThreshold consecutive rounds or MaxScrollRounds is
// spent. Running out of rounds is reported through exhausted, not as an
// error; the only errors are context cancellation and a session that
// cannot provide any scroll target.
func Converge(ctx context.Context, sess dom.Session, c *Container, cfg config.HarvestConfig) (state models.ScrollState, exhausted bool, err error) {
	logger := slog.Default()
	state.LastCardCount = countCards(ctx, c, cfg.CardSelector, 0)

	var target dom.Node
	for state.RoundsElapsed < cfg.MaxScrollRounds {
		if err := ctx.Err(); err != nil {
			return state, false, err
		}

		if target == nil || !target.Attached(ctx) {
			if target, err = scrollTarget(ctx, sess, c, cfg.AncestorDepth); err != nil {
				return state, false, err
			}
		}
		if err := target.ScrollBy(ctx, cfg.ScrollStep); err != nil {
			logger.Debug("scroll failed", "round", state.RoundsElapsed+1, "error", err)
			if errors.Is(err, dom.ErrStale) {
				target = nil
			}
		}

		before := state.LastCardCount
		current := before
		grew := dom.WaitFor(ctx, cfg.RoundTimeout, cfg.PollInterval, func() bool {
			current = countCards(ctx, c, cfg.CardSelector, current)
			return current > before
		})

		state.RoundsElapsed++
		state.LastCardCount = current
		if grew {
			state.ConsecutiveNoGrowthRounds = 0
		} else {
			state.ConsecutiveNoGrowthRounds++
		}
		logger.Debug("scroll round",
			"round", state.RoundsElapsed,
			"cards", current,
			"no_growth", state.ConsecutiveNoGrowthRounds,
		)

		if state.ConsecutiveNoGrowthRounds >= cfg.NoGrowthThreshold {
			return state, false, nil
		}
	}
	return state, true, nil
}

func scrollTarget(ctx context.Context, sess dom.Session, c *Container, depth int) (dom.Node, error) {
	scope, err := c.Scope(ctx)
	if err != nil {
		scope = nil
	}
	target, err := ScrollableAncestor(ctx, sess, scope, depth)
	if err != nil {
		return nil, models.NewHarvestError(models.ErrCodeSession, "no scroll target", err)
	}
	return target, nil
}

// countCards returns the number of cards in the container's scope, or last
// when the count cannot be read.
func countCards(ctx context.Context, c *Container, selector string, last int) int {
	scope, err := c.Scope(ctx)
	if err != nil {
		return last
	}
	n, err := dom.Count(ctx, scope, selector)
	if err != nil {
		return last
	}
	return n
}
