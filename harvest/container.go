package harvest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/use-agent/jobharvest/config"
	"github.com/use-agent/jobharvest/dom"
	"github.com/use-agent/jobharvest/models"
	"github.com/use-agent/jobharvest/simhash"
)

// Container is the resolved parent of the card list.
type Container struct {
	Node dom.Node

	// Located is true when Node came from the explicit locator.
	Located bool

	// Fallback is true when an explicit locator was configured but the
	// heuristic scan had to be used.
	Fallback bool

	sess dom.Session
	cfg  config.HarvestConfig
}

// Scope returns the element cards are counted and fetched from: the
// container while it is attached, the container re-located through the
// explicit locator after a re-render, or else the document root. Once the
// locator stops matching, the document root is used for the rest of the run.
func (c *Container) Scope(ctx context.Context) (dom.Node, error) {
	if c.Node != nil && c.Node.Attached(ctx) {
		return c.Node, nil
	}
	if c.Located {
		n, err := c.sess.FindXPath(ctx, c.cfg.ContainerXPath, c.cfg.LocatorTimeout)
		if err == nil {
			c.Node = n
			return n, nil
		}
		slog.Warn("container locator lost after re-render, using document",
			"xpath", c.cfg.ContainerXPath, "error", err)
		c.Located = false
		c.Node = nil
	}
	return c.sess.Root(ctx)
}

// ResolveContainer finds the element holding the repeating cards. The
// explicit locator is tried first; otherwise cards are grouped under their
// nearest common parent and the largest group of structurally similar
// siblings wins, first in document order on ties.
func ResolveContainer(ctx context.Context, sess dom.Session, cfg config.HarvestConfig) (*Container, error) {
	logger := slog.Default()
	c := &Container{sess: sess, cfg: cfg}

	root, err := sess.Root(ctx)
	if err != nil {
		return nil, models.NewHarvestError(models.ErrCodeSession, "document unavailable", err)
	}

	var located dom.Node
	if cfg.ContainerXPath != "" {
		located, err = sess.FindXPath(ctx, cfg.ContainerXPath, cfg.LocatorTimeout)
		if err != nil {
			logger.Debug("container locator unresolved", "xpath", cfg.ContainerXPath, "error", err)
		}
	}

	rendered := dom.WaitFor(ctx, cfg.CardWaitTimeout, cfg.PollInterval, func() bool {
		n, err := dom.Count(ctx, root, cfg.CardSelector)
		return err == nil && n > 0
	})

	if located != nil {
		if n, err := dom.Count(ctx, located, cfg.CardSelector); err == nil && n > 0 {
			c.Node, c.Located = located, true
			return c, nil
		}
		logger.Warn("container locator holds no cards, scanning", "xpath", cfg.ContainerXPath)
	}
	c.Fallback = cfg.ContainerXPath != ""

	if !rendered {
		return nil, models.NewHarvestError(models.ErrCodeContainerNotFound,
			fmt.Sprintf("no %s rendered within %s", cfg.CardSelector, cfg.CardWaitTimeout), nil)
	}

	best, size, err := scanGroups(ctx, root, cfg)
	if err != nil {
		return nil, err
	}
	if best == nil || size < cfg.MinGroupSize {
		return nil, models.NewHarvestError(models.ErrCodeContainerNotFound,
			fmt.Sprintf("largest card group has %d similar items, need %d", size, cfg.MinGroupSize), nil)
	}
	c.Node = best
	return c, nil
}

type cardGroup struct {
	parent dom.Node
	items  []dom.Node
	keys   map[string]struct{}
}

// scanGroups climbs from every card to the first ancestor holding at least
// two cards and groups the children found on the way by that ancestor.
func scanGroups(ctx context.Context, root dom.Node, cfg config.HarvestConfig) (dom.Node, int, error) {
	cards, err := root.QueryAll(ctx, cfg.CardSelector)
	if err != nil {
		return nil, 0, models.NewHarvestError(models.ErrCodeSession, "card scan failed", err)
	}

	var order []*cardGroup
	groups := make(map[string]*cardGroup)
	counts := make(map[string]int)
	for _, card := range cards {
		item := card
		for depth := 0; depth < cfg.AncestorDepth; depth++ {
			parent, err := item.Parent(ctx)
			if err != nil {
				break
			}
			pk, err := parent.Key(ctx)
			if err != nil {
				break
			}
			n, cached := counts[pk]
			if !cached {
				if n, err = dom.Count(ctx, parent, cfg.CardSelector); err != nil {
					break
				}
				counts[pk] = n
			}
			if n < 2 {
				item = parent
				continue
			}
			ik, err := item.Key(ctx)
			if err != nil {
				break
			}
			g, ok := groups[pk]
			if !ok {
				g = &cardGroup{parent: parent, keys: make(map[string]struct{})}
				groups[pk] = g
				order = append(order, g)
			}
			if _, seen := g.keys[ik]; !seen {
				g.keys[ik] = struct{}{}
				g.items = append(g.items, item)
			}
			break
		}
	}

	var best dom.Node
	bestSize := 0
	for _, g := range order {
		size := similarItems(ctx, g.items, cfg.SimilarityThreshold)
		if size > bestSize {
			best, bestSize = g.parent, size
		}
	}
	return best, bestSize, nil
}

// similarItems returns the size of the largest subset of items whose
// markup shape is within threshold of one member.
func similarItems(ctx context.Context, items []dom.Node, threshold int) int {
	prints := make([]uint64, 0, len(items))
	for _, it := range items {
		h, err := it.HTML(ctx)
		if err != nil {
			continue
		}
		prints = append(prints, simhash.FingerprintStructure(h))
	}
	best := 0
	for _, a := range prints {
		n := 0
		for _, b := range prints {
			if simhash.Similar(a, b, threshold) {
				n++
			}
		}
		if n > best {
			best = n
		}
	}
	return best
}
