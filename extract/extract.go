// Package extract reads the card schema out of a rendered job card.
//
// Every field has an ordered chain of strategies; the first one that yields a
// non-empty value wins. Missing fields are left out of the result rather than
// reported as errors. Only a stale card or a cancelled context aborts a read.
package extract

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/use-agent/jobharvest/dom"
	"github.com/use-agent/jobharvest/models"
)

// Rule binds a field to its fallback chain.
type Rule struct {
	Field      models.Field
	Strategies []Strategy
}

// Schema is the ordered list of rules applied to every card.
type Schema []Rule

// Fields lists the fields a schema can produce.
func (s Schema) Fields() []models.Field {
	out := make([]models.Field, len(s))
	for i, r := range s {
		out[i] = r.Field
	}
	return out
}

// Extractor applies a Schema to cards.
type Extractor struct {
	schema Schema
	logger *slog.Logger
}

// New creates an Extractor for schema.
func New(schema Schema) *Extractor {
	return &Extractor{schema: schema, logger: slog.Default()}
}

// Schema returns the rules the extractor applies.
func (e *Extractor) Schema() Schema { return e.schema }

// Extract reads every schema field from card. The returned map holds only
// fields some strategy could read.
func (e *Extractor) Extract(ctx context.Context, card dom.Node) (models.RawFields, error) {
	raw := make(models.RawFields, len(e.schema))
	for _, rule := range e.schema {
		v, err := e.field(ctx, card, rule)
		if err != nil {
			return nil, err
		}
		raw.Set(rule.Field, v)
	}
	return raw, nil
}

func (e *Extractor) field(ctx context.Context, card dom.Node, rule Rule) (string, error) {
	for _, s := range rule.Strategies {
		v, err := s.Read(ctx, card)
		if err != nil {
			if fatal(err) {
				return "", err
			}
			if !errors.Is(err, dom.ErrNotFound) {
				e.logger.Debug("extraction strategy failed",
					"field", rule.Field,
					"strategy", s.Name,
					"error", err,
				)
			}
			continue
		}
		if strings.TrimSpace(v) != "" {
			return v, nil
		}
	}
	return "", nil
}
