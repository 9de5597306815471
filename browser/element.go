package browser

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/cdp"

	"github.com/use-agent/jobharvest/dom"
)

// scrollableJS mirrors what a user could scroll: a vertical overflow style
// that permits scrolling and content taller than the box.
const scrollableJS = `() => {
	const s = getComputedStyle(this);
	const oy = s.overflowY || s.overflow;
	return (oy === 'auto' || oy === 'scroll' || oy === 'overlay') &&
		this.scrollHeight > this.clientHeight + 4;
}`

// staleMessages are CDP errors raised for nodes or objects that no longer exist.
var staleMessages = []string{
	"Could not find node with given id",
	"No node with given id found",
	"Could not find object with given id",
	"Cannot find context with specified id",
	"Execution context was destroyed",
	"Node is detached from document",
}

// element is a rod-backed dom.Node.
type element struct {
	el *rod.Element
}

var _ dom.Node = (*element)(nil)

// live returns the element bound to ctx, or ErrStale once it has left the
// document. A detached node keeps its remote object, so reads would still
// succeed against an orphan without this check.
func (e *element) live(ctx context.Context) (*rod.Element, error) {
	if !e.Attached(ctx) {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, dom.ErrStale
	}
	return e.el.Context(ctx), nil
}

func (e *element) Key(ctx context.Context) (string, error) {
	el, err := e.live(ctx)
	if err != nil {
		return "", err
	}
	node, err := el.Describe(0, false)
	if err != nil {
		return "", classify(ctx, err)
	}
	return strconv.Itoa(int(node.BackendNodeID)), nil
}

func (e *element) QueryAll(ctx context.Context, selector string) ([]dom.Node, error) {
	el, err := e.live(ctx)
	if err != nil {
		return nil, err
	}
	found, err := el.Elements(selector)
	if err != nil {
		return nil, classify(ctx, err)
	}
	nodes := make([]dom.Node, len(found))
	for i, f := range found {
		nodes[i] = &element{el: f}
	}
	return nodes, nil
}

func (e *element) Text(ctx context.Context) (string, error) {
	el, err := e.live(ctx)
	if err != nil {
		return "", err
	}
	text, err := el.Text()
	if err != nil {
		return "", classify(ctx, err)
	}
	return text, nil
}

func (e *element) Attr(ctx context.Context, name string) (string, bool, error) {
	el, err := e.live(ctx)
	if err != nil {
		return "", false, err
	}
	v, err := el.Attribute(name)
	if err != nil {
		return "", false, classify(ctx, err)
	}
	if v == nil {
		return "", false, nil
	}
	return *v, true, nil
}

func (e *element) HTML(ctx context.Context) (string, error) {
	el, err := e.live(ctx)
	if err != nil {
		return "", err
	}
	html, err := el.HTML()
	if err != nil {
		return "", classify(ctx, err)
	}
	return html, nil
}

func (e *element) Parent(ctx context.Context) (dom.Node, error) {
	el, err := e.live(ctx)
	if err != nil {
		return nil, err
	}
	res, err := el.Eval(`() => this.parentElement instanceof Element`)
	if err != nil {
		return nil, classify(ctx, err)
	}
	if !res.Value.Bool() {
		return nil, dom.ErrNotFound
	}
	parent, err := el.Parent()
	if err != nil {
		return nil, classify(ctx, err)
	}
	return &element{el: parent}, nil
}

func (e *element) Attached(ctx context.Context) bool {
	res, err := e.el.Context(ctx).Eval(`() => this.isConnected`)
	if err != nil {
		return false
	}
	return res.Value.Bool()
}

func (e *element) Scrollable(ctx context.Context) (bool, error) {
	el, err := e.live(ctx)
	if err != nil {
		return false, err
	}
	res, err := el.Eval(scrollableJS)
	if err != nil {
		return false, classify(ctx, err)
	}
	return res.Value.Bool(), nil
}

func (e *element) ScrollBy(ctx context.Context, ratio float64) error {
	el, err := e.live(ctx)
	if err != nil {
		return err
	}
	_, err = el.Eval(`(r) => { this.scrollTop += Math.round(this.clientHeight * r); }`, ratio)
	return classify(ctx, err)
}

// classify maps driver errors onto the dom sentinels. Context errors win
// over everything else.
func classify(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var gone *rod.ObjectNotFoundError
	if errors.As(err, &gone) || errors.Is(err, cdp.ErrObjNotFound) || isStaleMessage(err.Error()) {
		return fmt.Errorf("%w: %v", dom.ErrStale, err)
	}
	return err
}

func isStaleMessage(msg string) bool {
	for _, m := range staleMessages {
		if strings.Contains(msg, m) {
			return true
		}
	}
	return false
}
