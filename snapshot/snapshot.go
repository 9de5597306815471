// Package snapshot implements dom.Session over a parsed HTML document.
//
// It serves offline replays of saved listing pages and lets incremental
// rendering be replayed deterministically through a scroll hook. There is
// no layout engine: an element counts as scrollable when its inline style
// permits scrolling.
package snapshot

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"

	"github.com/use-agent/jobharvest/dom"
)

// ScrollHook runs after every downward scroll; round counts from 1.
// It may mutate doc to simulate newly rendered or re-rendered cards.
type ScrollHook func(doc *goquery.Document, round int)

// Session is an offline dom.Session.
type Session struct {
	doc      *goquery.Document
	url      string
	hook     ScrollHook
	scrolls  int
	matchers map[string]cascadia.Matcher
}

// Option configures a Session.
type Option func(*Session)

// WithURL sets the page URL used to absolutize relative links.
func WithURL(u string) Option {
	return func(s *Session) { s.url = u }
}

// WithScrollHook installs a hook that runs on every downward scroll.
func WithScrollHook(h ScrollHook) Option {
	return func(s *Session) { s.hook = h }
}

// New parses an HTML document from r.
func New(r io.Reader, opts ...Option) (*Session, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("snapshot: parse html: %w", err)
	}
	s := &Session{
		doc:      doc,
		matchers: make(map[string]cascadia.Matcher),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// FromString parses an in-memory HTML document.
func FromString(src string, opts ...Option) (*Session, error) {
	return New(strings.NewReader(src), opts...)
}

// Open parses an HTML file saved from a listing page.
func Open(path string, opts ...Option) (*Session, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("snapshot: open %s: %w", path, err)
	}
	defer f.Close()
	return New(f, opts...)
}

// Document exposes the underlying document for scripted mutation.
func (s *Session) Document() *goquery.Document { return s.doc }

// Scrolls returns how many downward scrolls have been performed.
func (s *Session) Scrolls() int { return s.scrolls }

func (s *Session) URL(_ context.Context) (string, error) {
	return s.url, nil
}

func (s *Session) Root(_ context.Context) (dom.Node, error) {
	root := s.doc.Find("html")
	if root.Length() == 0 {
		return nil, dom.ErrNotFound
	}
	return &node{s: s, n: root.Nodes[0]}, nil
}

// ScrollingElement returns <html>, which is document.scrollingElement in
// standards mode.
func (s *Session) ScrollingElement(ctx context.Context) (dom.Node, error) {
	return s.Root(ctx)
}

// FindXPath resolves absolute positional paths such as
// /html/body/div[2]/div[1]. The document is static between scrolls, so the
// expression is evaluated once and timeout is not used.
func (s *Session) FindXPath(_ context.Context, expr string, _ time.Duration) (dom.Node, error) {
	n, err := evalXPath(s.doc.Nodes[0], expr)
	if err != nil {
		return nil, err
	}
	return &node{s: s, n: n}, nil
}

func (s *Session) matcher(selector string) (cascadia.Matcher, error) {
	if m, ok := s.matchers[selector]; ok {
		return m, nil
	}
	m, err := cascadia.ParseGroup(selector)
	if err != nil {
		return nil, fmt.Errorf("snapshot: invalid selector %q: %w", selector, err)
	}
	s.matchers[selector] = m
	return m, nil
}

func (s *Session) scrolled(ratio float64) {
	if ratio <= 0 {
		return
	}
	s.scrolls++
	if s.hook != nil {
		s.hook(s.doc, s.scrolls)
	}
}
