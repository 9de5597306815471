package harvest

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/jobharvest/config"
	"github.com/use-agent/jobharvest/dom"
	"github.com/use-agent/jobharvest/models"
)

// Accessor hands out cards by their discovery index. Handles are cached per
// index but re-queried from the container whenever they have detached, so
// a re-rendered list still yields the card at the same position.
//
// This relies on the page keeping card order across re-renders. A page that
// reorders already rendered cards would make an index point at a different
// listing.
type Accessor struct {
	c        *Container
	selector string
	retries  int
	backoff  time.Duration
	handles  map[int]dom.Node
}

// NewAccessor creates an Accessor over the container's cards.
func NewAccessor(c *Container, cfg config.HarvestConfig) *Accessor {
	retries := cfg.CardRetries
	if retries < 1 {
		retries = 1
	}
	return &Accessor{
		c:        c,
		selector: cfg.CardSelector,
		retries:  retries,
		backoff:  cfg.RetryBackoff,
		handles:  make(map[int]dom.Node),
	}
}

// Discover lists the cards currently rendered and seeds the handle table.
// It returns the number of indices to visit.
func (a *Accessor) Discover(ctx context.Context) (int, error) {
	scope, err := a.c.Scope(ctx)
	if err != nil {
		return 0, models.NewHarvestError(models.ErrCodeSession, "card scope unavailable", err)
	}
	cards, err := scope.QueryAll(ctx, a.selector)
	if err != nil {
		return 0, models.NewHarvestError(models.ErrCodeSession, "card listing failed", err)
	}
	for i, card := range cards {
		a.handles[i] = card
	}
	return len(cards), nil
}

// Card returns an attached element for idx, re-locating it if needed.
func (a *Accessor) Card(ctx context.Context, idx int) (dom.Node, error) {
	var card dom.Node
	err := a.Do(ctx, idx, func(n dom.Node) error {
		card = n
		return nil
	})
	return card, err
}

// Do runs fn against the card at idx. When the card is missing or fn fails
// with dom.ErrStale the card is re-located and fn retried, backing off a
// little longer each attempt. After the last attempt the error is
// CARD_UNAVAILABLE; other errors from fn are returned as-is.
func (a *Accessor) Do(ctx context.Context, idx int, fn func(dom.Node) error) error {
	var lastErr error
	for attempt := 0; attempt < a.retries; attempt++ {
		if attempt > 0 {
			if err := dom.Sleep(ctx, a.backoff*time.Duration(attempt)); err != nil {
				return err
			}
		}

		card, err := a.locate(ctx, idx)
		if err != nil {
			lastErr = err
			continue
		}
		err = fn(card)
		if err == nil {
			return nil
		}
		if !errors.Is(err, dom.ErrStale) {
			return err
		}
		delete(a.handles, idx)
		lastErr = err
		slog.Debug("card went stale, re-locating", "index", idx, "attempt", attempt+1)
	}
	return models.NewHarvestError(models.ErrCodeCardUnavailable,
		fmt.Sprintf("card %d unavailable after %d attempts", idx, a.retries), lastErr)
}

func (a *Accessor) locate(ctx context.Context, idx int) (dom.Node, error) {
	if h, ok := a.handles[idx]; ok && h.Attached(ctx) {
		return h, nil
	}
	delete(a.handles, idx)

	scope, err := a.c.Scope(ctx)
	if err != nil {
		return nil, err
	}
	cards, err := scope.QueryAll(ctx, a.selector)
	if err != nil {
		return nil, err
	}
	if idx >= len(cards) {
		return nil, fmt.Errorf("index %d beyond %d rendered cards: %w", idx, len(cards), dom.ErrNotFound)
	}
	a.handles[idx] = cards[idx]
	return cards[idx], nil
}
