package snapshot

import (
	"context"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"golang.org/x/net/html"

	"github.com/use-agent/jobharvest/dom"
)

type node struct {
	s *Session
	n *html.Node
}

func (e *node) attached() bool {
	top := e.n
	for top.Parent != nil {
		top = top.Parent
	}
	return top == e.s.doc.Nodes[0]
}

func (e *node) sel() *goquery.Selection {
	return e.s.doc.FindNodes(e.n)
}

func (e *node) Key(_ context.Context) (string, error) {
	if !e.attached() {
		return "", dom.ErrStale
	}
	return fmt.Sprintf("%p", e.n), nil
}

func (e *node) QueryAll(_ context.Context, selector string) ([]dom.Node, error) {
	if !e.attached() {
		return nil, dom.ErrStale
	}
	m, err := e.s.matcher(selector)
	if err != nil {
		return nil, err
	}
	matches := cascadia.QueryAll(e.n, m)
	out := make([]dom.Node, len(matches))
	for i, n := range matches {
		out[i] = &node{s: e.s, n: n}
	}
	return out, nil
}

func (e *node) Text(_ context.Context) (string, error) {
	if !e.attached() {
		return "", dom.ErrStale
	}
	var sb strings.Builder
	renderText(&sb, e.n)
	return strings.TrimSpace(sb.String()), nil
}

func (e *node) Attr(_ context.Context, name string) (string, bool, error) {
	if !e.attached() {
		return "", false, dom.ErrStale
	}
	v, ok := e.sel().Attr(name)
	return v, ok, nil
}

func (e *node) HTML(_ context.Context) (string, error) {
	if !e.attached() {
		return "", dom.ErrStale
	}
	return goquery.OuterHtml(e.sel())
}

func (e *node) Parent(_ context.Context) (dom.Node, error) {
	if !e.attached() {
		return nil, dom.ErrStale
	}
	p := e.n.Parent
	if p == nil || p.Type != html.ElementNode {
		return nil, dom.ErrNotFound
	}
	return &node{s: e.s, n: p}, nil
}

func (e *node) Attached(_ context.Context) bool {
	return e.attached()
}

func (e *node) Scrollable(_ context.Context) (bool, error) {
	if !e.attached() {
		return false, dom.ErrStale
	}
	style, _ := e.sel().Attr("style")
	style = strings.ToLower(strings.ReplaceAll(style, " ", ""))
	for _, decl := range strings.Split(style, ";") {
		switch decl {
		case "overflow:auto", "overflow:scroll", "overflow-y:auto", "overflow-y:scroll", "overflow-y:overlay":
			return true, nil
		}
	}
	return false, nil
}

func (e *node) ScrollBy(_ context.Context, ratio float64) error {
	if !e.attached() {
		return dom.ErrStale
	}
	e.s.scrolled(ratio)
	return nil
}

// blockTags end a line in rendered text, approximating innerText.
var blockTags = map[string]bool{
	"div": true, "p": true, "li": true, "ul": true, "ol": true, "br": true,
	"section": true, "article": true, "header": true, "footer": true, "tr": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
}

func renderText(sb *strings.Builder, n *html.Node) {
	switch n.Type {
	case html.TextNode:
		sb.WriteString(n.Data)
		return
	case html.ElementNode:
		if n.Data == "script" || n.Data == "style" {
			return
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		renderText(sb, c)
	}
	if n.Type == html.ElementNode && blockTags[n.Data] {
		sb.WriteByte('\n')
	}
}
