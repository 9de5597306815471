package harvest

import (
	"context"

	"github.com/use-agent/jobharvest/dom"
)

// ScrollableAncestor returns the nearest element at or above el, within
// maxDepth levels, that actually scrolls. It falls back to the document's
// scrolling element when none qualifies or el is nil. The only error is a
// session that cannot provide even the fallback.
func ScrollableAncestor(ctx context.Context, sess dom.Session, el dom.Node, maxDepth int) (dom.Node, error) {
	node := el
	for depth := 0; node != nil && depth <= maxDepth; depth++ {
		if ok, err := node.Scrollable(ctx); err == nil && ok {
			return node, nil
		}
		parent, err := node.Parent(ctx)
		if err != nil {
			break
		}
		node = parent
	}
	return sess.ScrollingElement(ctx)
}
