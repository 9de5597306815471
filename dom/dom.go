// Package dom defines the live-DOM primitives the harvesting core needs.
//
// A Session is passed explicitly through every call; nothing in the core
// holds a process-wide driver. Implementations live in browser (rod) and
// snapshot (parsed HTML).
package dom

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound reports that a query or locator matched nothing.
	ErrNotFound = errors.New("dom: element not found")

	// ErrStale reports that a held node is no longer attached to the document.
	ErrStale = errors.New("dom: stale element reference")
)

// Session is an already-navigated page.
type Session interface {
	// URL returns the current page URL, used as the base for relative links.
	URL(ctx context.Context) (string, error)

	// Root returns the document element.
	Root(ctx context.Context) (Node, error)

	// ScrollingElement returns document.scrollingElement, the fallback scroll target.
	ScrollingElement(ctx context.Context) (Node, error)

	// FindXPath resolves an XPath expression, waiting up to timeout for presence.
	FindXPath(ctx context.Context, expr string, timeout time.Duration) (Node, error)
}

// Node is a possibly-invalidated reference to an element. Every method other
// than Attached returns ErrStale once the element has left the document.
type Node interface {
	// Key identifies the underlying element while it stays attached.
	Key(ctx context.Context) (string, error)

	// QueryAll returns descendants matching a CSS selector in document order.
	QueryAll(ctx context.Context, selector string) ([]Node, error)

	// Text returns the rendered text of the element.
	Text(ctx context.Context) (string, error)

	// Attr returns an attribute value and whether it is present.
	Attr(ctx context.Context, name string) (string, bool, error)

	// HTML returns the outer HTML.
	HTML(ctx context.Context) (string, error)

	// Parent returns the parent element, or ErrNotFound for the root.
	Parent(ctx context.Context) (Node, error)

	// Attached reports whether the element is still connected to the document.
	Attached(ctx context.Context) bool

	// Scrollable reports whether the content overflows and the computed
	// overflow style permits scrolling.
	Scrollable(ctx context.Context) (bool, error)

	// ScrollBy advances scrollTop by ratio * clientHeight (negative scrolls up).
	ScrollBy(ctx context.Context, ratio float64) error
}

// First returns the first descendant of n matching selector, or ErrNotFound.
func First(ctx context.Context, n Node, selector string) (Node, error) {
	nodes, err := n.QueryAll(ctx, selector)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		return nil, ErrNotFound
	}
	return nodes[0], nil
}

// Count returns the number of descendants of n matching selector.
func Count(ctx context.Context, n Node, selector string) (int, error) {
	nodes, err := n.QueryAll(ctx, selector)
	if err != nil {
		return 0, err
	}
	return len(nodes), nil
}
