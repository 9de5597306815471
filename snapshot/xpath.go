package snapshot

import (
	"strconv"
	"strings"

	"golang.org/x/net/html"

	"github.com/use-agent/jobharvest/dom"
)

// evalXPath walks an absolute path of element steps, each optionally
// carrying a 1-based position predicate: /html/body/div[2]/div.
func evalXPath(doc *html.Node, expr string) (*html.Node, error) {
	expr = strings.TrimSpace(expr)
	if !strings.HasPrefix(expr, "/") || strings.HasPrefix(expr, "//") {
		return nil, dom.ErrNotFound
	}
	cur := doc
	for _, step := range strings.Split(strings.TrimPrefix(expr, "/"), "/") {
		name, pos, ok := parseStep(step)
		if !ok {
			return nil, dom.ErrNotFound
		}
		next := nthChild(cur, name, pos)
		if next == nil {
			return nil, dom.ErrNotFound
		}
		cur = next
	}
	if cur == doc {
		return nil, dom.ErrNotFound
	}
	return cur, nil
}

func parseStep(step string) (name string, pos int, ok bool) {
	pos = 1
	name = step
	if i := strings.IndexByte(step, '['); i >= 0 {
		if !strings.HasSuffix(step, "]") {
			return "", 0, false
		}
		n, err := strconv.Atoi(step[i+1 : len(step)-1])
		if err != nil || n < 1 {
			return "", 0, false
		}
		name, pos = step[:i], n
	}
	if name == "" {
		return "", 0, false
	}
	return strings.ToLower(name), pos, true
}

func nthChild(parent *html.Node, name string, pos int) *html.Node {
	seen := 0
	for c := parent.FirstChild; c != nil; c = c.NextSibling {
		if c.Type != html.ElementNode {
			continue
		}
		if name != "*" && c.Data != name {
			continue
		}
		seen++
		if seen == pos {
			return c
		}
	}
	return nil
}
