package extract

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/use-agent/jobharvest/dom"
	"github.com/use-agent/jobharvest/models"
)

// Strategy reads one candidate value from a card. An empty result means
// the strategy found nothing; the next one in the chain is tried.
type Strategy struct {
	Name string
	Read func(ctx context.Context, card dom.Node) (string, error)
}

// scope returns the card itself for an empty selector, else its descendants.
func scope(ctx context.Context, card dom.Node, sel string) ([]dom.Node, error) {
	if sel == "" {
		return []dom.Node{card}, nil
	}
	return card.QueryAll(ctx, sel)
}

// Text returns the first non-empty text among elements matching sel.
func Text(sel string) Strategy {
	return Strategy{
		Name: "text(" + sel + ")",
		Read: func(ctx context.Context, card dom.Node) (string, error) {
			nodes, err := scope(ctx, card, sel)
			if err != nil {
				return "", err
			}
			for _, n := range nodes {
				t, err := n.Text(ctx)
				if err != nil {
					return "", err
				}
				if strings.TrimSpace(t) != "" {
					return t, nil
				}
			}
			return "", nil
		},
	}
}

// TextAll joins the non-empty texts of every element matching sel.
func TextAll(sel string) Strategy {
	return Strategy{
		Name: "text-all(" + sel + ")",
		Read: func(ctx context.Context, card dom.Node) (string, error) {
			nodes, err := scope(ctx, card, sel)
			if err != nil {
				return "", err
			}
			return joinTexts(ctx, nodes)
		},
	}
}

// TextAllWithin finds the first element matching outer and joins the texts
// of its descendants matching inner.
func TextAllWithin(outer, inner string) Strategy {
	return Strategy{
		Name: "text-all(" + outer + " >> " + inner + ")",
		Read: func(ctx context.Context, card dom.Node) (string, error) {
			wrap, err := dom.First(ctx, card, outer)
			if err != nil {
				return "", err
			}
			nodes, err := wrap.QueryAll(ctx, inner)
			if err != nil {
				return "", err
			}
			return joinTexts(ctx, nodes)
		},
	}
}

func joinTexts(ctx context.Context, nodes []dom.Node) (string, error) {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		t, err := n.Text(ctx)
		if err != nil {
			return "", err
		}
		if t = strings.TrimSpace(t); t != "" {
			parts = append(parts, t)
		}
	}
	return strings.Join(parts, models.ListSeparator), nil
}

// Attr reads an attribute from the first element matching sel that carries
// a non-empty value. An empty sel reads the card's own attribute.
func Attr(sel, name string) Strategy {
	return Strategy{
		Name: "attr(" + sel + "@" + name + ")",
		Read: func(ctx context.Context, card dom.Node) (string, error) {
			nodes, err := scope(ctx, card, sel)
			if err != nil {
				return "", err
			}
			for _, n := range nodes {
				v, ok, err := n.Attr(ctx, name)
				if err != nil {
					return "", err
				}
				if ok && strings.TrimSpace(v) != "" {
					return v, nil
				}
			}
			return "", nil
		},
	}
}

// Match runs re over the card's full text and returns the first submatch,
// or the whole match when re has no groups.
func Match(re *regexp.Regexp) Strategy {
	return Strategy{
		Name: "match(" + re.String() + ")",
		Read: func(ctx context.Context, card dom.Node) (string, error) {
			t, err := card.Text(ctx)
			if err != nil {
				return "", err
			}
			m := re.FindStringSubmatch(t)
			switch {
			case m == nil:
				return "", nil
			case len(m) > 1:
				return m[1], nil
			default:
				return m[0], nil
			}
		},
	}
}

// Reject wraps s so that values matching re count as not found.
func Reject(s Strategy, re *regexp.Regexp) Strategy {
	return Strategy{
		Name: s.Name + " !~ " + re.String(),
		Read: func(ctx context.Context, card dom.Node) (string, error) {
			v, err := s.Read(ctx, card)
			if err != nil || re.MatchString(v) {
				return "", err
			}
			return v, nil
		},
	}
}

// fatal reports whether err must abort extraction of the whole card.
func fatal(err error) bool {
	return errors.Is(err, dom.ErrStale) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
