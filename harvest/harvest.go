// Package harvest drives one keyword run over an already-navigated page:
// resolve the card container, scroll until rendering converges, then read
// every card by index and normalize it.
//
// A run is single-threaded and owns its ScrollState, its index space and
// its dedup set. Only CONTAINER_NOT_FOUND, session failures and context
// cancellation end a run early; card and field problems are counted on the
// report.
package harvest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/use-agent/jobharvest/config"
	"github.com/use-agent/jobharvest/dom"
	"github.com/use-agent/jobharvest/extract"
	"github.com/use-agent/jobharvest/models"
	"github.com/use-agent/jobharvest/normalize"
)

// optionalFields are reported as incomplete when absent.
var optionalFields = []models.Field{
	models.FieldCompany,
	models.FieldLocations,
	models.FieldSalary,
	models.FieldTags,
	models.FieldUpdatedAt,
	models.FieldCompanyLogo,
}

// Job identifies one keyword run.
type Job struct {
	RunID   string
	Keyword string
	Source  string

	// BaseURL resolves relative links when the session has no URL.
	BaseURL string
}

// Harvester runs the harvesting core with a fixed configuration.
type Harvester struct {
	cfg       config.HarvestConfig
	extractor *extract.Extractor
	logger    *slog.Logger
}

// New creates a Harvester.
func New(cfg config.HarvestConfig, extractor *extract.Extractor) *Harvester {
	return &Harvester{
		cfg:       cfg,
		extractor: extractor,
		logger:    slog.Default(),
	}
}

// Config returns the harvest configuration.
func (h *Harvester) Config() config.HarvestConfig { return h.cfg }

// WithConfig returns a copy of h using cfg.
func (h *Harvester) WithConfig(cfg config.HarvestConfig) *Harvester {
	cp := *h
	cp.cfg = cfg
	return &cp
}

// Run harvests the page held by sess. The report is always returned, also
// alongside an error, so callers can log what was observed.
func (h *Harvester) Run(ctx context.Context, sess dom.Session, job Job) (*models.RunReport, error) {
	start := time.Now()
	logger := h.logger.With("run_id", job.RunID, "keyword", job.Keyword)
	report := &models.RunReport{RunID: job.RunID, Keyword: job.Keyword, Records: []models.Record{}}
	fail := func(err error) (*models.RunReport, error) {
		report.Duration = time.Since(start)
		var he *models.HarvestError
		switch {
		case errors.As(err, &he):
			report.Error = he.ToDetail()
		case errors.Is(err, context.DeadlineExceeded):
			report.Error = &models.ErrorDetail{Code: models.ErrCodeTimeout, Message: err.Error()}
		default:
			report.Error = &models.ErrorDetail{Code: models.ErrCodeInternal, Message: err.Error()}
		}
		return report, err
	}

	base, err := sess.URL(ctx)
	if err != nil || base == "" {
		base = job.BaseURL
	}
	report.URL = base

	c, err := ResolveContainer(ctx, sess, h.cfg)
	if err != nil {
		logger.Warn("container not resolved", "error", err)
		return fail(err)
	}
	if c.Fallback {
		report.Note(models.NoteContainerFallback)
	}

	state, exhausted, err := Converge(ctx, sess, c, h.cfg)
	report.Scroll = state
	report.Exhausted = exhausted
	if err != nil {
		return fail(err)
	}
	if exhausted {
		report.Note(models.NoteConvergenceExhausted)
		logger.Info("scroll budget spent before convergence", "rounds", state.RoundsElapsed, "cards", state.LastCardCount)
	}

	acc := NewAccessor(c, h.cfg)
	total, err := acc.Discover(ctx)
	if err != nil {
		return fail(err)
	}
	report.Cards = total

	nctx := normalize.Context{BaseURL: base, Keyword: job.Keyword, Source: job.Source}
	seen := normalize.NewDeduper()
	for idx := 0; idx < total; idx++ {
		var raw models.RawFields
		err := acc.Do(ctx, idx, func(card dom.Node) error {
			var err error
			raw, err = h.extractor.Extract(ctx, card)
			return err
		})
		if err != nil {
			if models.IsCode(err, models.ErrCodeCardUnavailable) {
				report.Skipped++
				report.Note(models.NoteCardUnavailable)
				logger.Warn("card skipped", "index", idx, "error", err)
				continue
			}
			return fail(err)
		}

		if len(raw.Missing(optionalFields...)) > 0 {
			report.Incomplete++
			report.Note(models.NoteExtractionIncomplete)
		}

		rec, dropped := normalize.Record(raw, nctx)
		if dropped != nil {
			report.Dropped = append(report.Dropped, models.Drop{Index: idx, Reason: dropped.Error()})
			report.Note(models.NoteNormalizationDropped)
			logger.Warn("record dropped", "index", idx, "reason", dropped)
			continue
		}
		if !seen.Add(rec) {
			report.Duplicates++
			continue
		}
		report.Records = append(report.Records, *rec)
	}

	report.Duration = time.Since(start)
	logger.Info("keyword harvested",
		"cards", report.Cards,
		"records", len(report.Records),
		"skipped", report.Skipped,
		"dropped", len(report.Dropped),
		"duplicates", report.Duplicates,
		"rounds", report.Scroll.RoundsElapsed,
		"duration_ms", report.Duration.Milliseconds(),
	)
	return report, nil
}
