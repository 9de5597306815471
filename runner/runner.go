// Package runner orchestrates multi-keyword harvests: one tab per keyword,
// the harvesting core, optional AI enrichment and webhook delivery.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/use-agent/jobharvest/ai"
	"github.com/use-agent/jobharvest/config"
	"github.com/use-agent/jobharvest/harvest"
	"github.com/use-agent/jobharvest/models"
	"github.com/use-agent/jobharvest/webhook"
)

// locationQuery selects every city so the keyword alone scopes the search.
const locationQuery = "&locationName=All+Cities%2FProvinces&lowestLocationLevel=1"

var keywordSplit = regexp.MustCompile(`[,\n]+`)

// ParseKeywords splits s on commas and newlines, trims each keyword and
// drops blanks and repeats, keeping first-seen order.
func ParseKeywords(s string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, p := range keywordSplit.Split(s, -1) {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		if _, dup := seen[p]; dup {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

// SearchURL builds the explore page URL for keyword. An empty country uses
// the configured one.
func SearchURL(site config.SiteConfig, keyword, country string) string {
	if country == "" {
		country = site.Country
	}
	return strings.TrimRight(site.BaseURL, "/") + site.SearchPath +
		"?keyword=" + url.QueryEscape(keyword) +
		"&country=" + url.QueryEscape(country) +
		locationQuery
}

// Request describes one multi-keyword run.
type Request struct {
	Keywords []string
	Country  string

	// MaxScrolls and ContainerXPath override the harvest config when set.
	MaxScrolls     int
	ContainerXPath string

	AI       bool
	KeepTabs bool

	// Emit, when set, receives each keyword's outcome as soon as it is ready.
	Emit func(*Outcome) error
}

// Outcome is the result of one keyword.
type Outcome struct {
	Report  *models.RunReport
	Harvest time.Duration
	Enrich  time.Duration
}

// Runner serializes harvests over one Source.
type Runner struct {
	cfg       *config.Config
	source    Source
	harvester *harvest.Harvester
	enricher  *ai.Enricher
	notifier  *webhook.Notifier
	logger    *slog.Logger

	sem         chan struct{}
	busy        atomic.Bool
	runs        atomic.Int64
	mu          sync.Mutex
	lastKeyword string
}

// Option configures a Runner.
type Option func(*Runner)

// WithEnricher enables AI enrichment for requests that ask for it.
func WithEnricher(e *ai.Enricher) Option {
	return func(r *Runner) { r.enricher = e }
}

// WithNotifier delivers a webhook event after every keyword.
func WithNotifier(n *webhook.Notifier) Option {
	return func(r *Runner) { r.notifier = n }
}

// New creates a Runner.
func New(cfg *config.Config, source Source, harvester *harvest.Harvester, opts ...Option) *Runner {
	r := &Runner{
		cfg:       cfg,
		source:    source,
		harvester: harvester,
		logger:    slog.Default(),
		sem:       make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Status reports whether a run is in progress.
func (r *Runner) Status() models.SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()
	return models.SessionInfo{Busy: r.busy.Load(), Runs: r.runs.Load(), LastKeyword: r.lastKeyword}
}

// Run harvests every keyword in order. A keyword that fails, including one
// whose container cannot be found, is reported on its outcome and the next
// keyword still runs. Only cancellation of ctx or an Emit error stops the
// loop early.
func (r *Runner) Run(ctx context.Context, req Request) ([]*Outcome, error) {
	if len(req.Keywords) == 0 {
		return nil, models.NewHarvestError(models.ErrCodeInvalidInput, "no keywords", nil)
	}
	select {
	case r.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	r.busy.Store(true)
	defer func() {
		r.busy.Store(false)
		<-r.sem
	}()

	h := r.harvester.WithConfig(r.harvestConfig(req))
	var outcomes []*Outcome
	for _, kw := range req.Keywords {
		if err := ctx.Err(); err != nil {
			return outcomes, err
		}
		out, err := r.runKeyword(ctx, h, kw, req)
		if out != nil {
			outcomes = append(outcomes, out)
			r.notify(out.Report)
			if req.Emit != nil {
				if emitErr := req.Emit(out); emitErr != nil {
					return outcomes, fmt.Errorf("emit %q: %w", kw, emitErr)
				}
			}
		}
		if err != nil && ctx.Err() != nil {
			return outcomes, ctx.Err()
		}
	}

	if len(outcomes) > 1 {
		total := 0
		for _, o := range outcomes {
			total += len(o.Report.Records)
		}
		r.logger.Info("run finished", "keywords", len(outcomes), "records", total)
	}
	return outcomes, nil
}

func (r *Runner) harvestConfig(req Request) config.HarvestConfig {
	hcfg := r.harvester.Config()
	if req.MaxScrolls > 0 {
		hcfg.MaxScrollRounds = req.MaxScrolls
	}
	if req.ContainerXPath != "" {
		hcfg.ContainerXPath = req.ContainerXPath
	}
	return hcfg
}

func (r *Runner) runKeyword(ctx context.Context, h *harvest.Harvester, kw string, req Request) (*Outcome, error) {
	runID := uuid.NewString()
	target := SearchURL(r.cfg.Site, kw, req.Country)
	logger := r.logger.With("run_id", runID, "keyword", kw)
	logger.Info("opening tab", "url", target)

	r.runs.Add(1)
	r.mu.Lock()
	r.lastKeyword = kw
	r.mu.Unlock()

	start := time.Now()
	tab, err := r.source.Open(ctx, target)
	if err != nil {
		logger.Error("tab failed to open", "error", err)
		return failed(runID, kw, target, err, time.Since(start)), err
	}
	defer tab.Close(req.KeepTabs)

	report, err := h.Run(ctx, tab, harvest.Job{
		RunID:   runID,
		Keyword: kw,
		Source:  r.cfg.Site.Source,
		BaseURL: r.cfg.Site.BaseURL,
	})
	out := &Outcome{Report: report, Harvest: time.Since(start)}
	if err != nil {
		if models.IsCode(err, models.ErrCodeContainerNotFound) {
			logger.Warn("no job list on page, skipping keyword")
		}
		return out, err
	}

	if req.AI && len(report.Records) > 0 {
		if r.enricher == nil {
			logger.Warn("AI requested but no classifier configured")
			return out, nil
		}
		enrichStart := time.Now()
		enriched, err := r.enricher.Enrich(ctx, report.Records)
		out.Enrich = time.Since(enrichStart)
		if err != nil {
			return out, err
		}
		report.Records = enriched
	}
	return out, nil
}

func (r *Runner) notify(report *models.RunReport) {
	if r.notifier == nil {
		return
	}
	eventType := webhook.EventCompleted
	if report.Error != nil {
		eventType = webhook.EventFailed
	}
	r.notifier.DeliverAsync(webhook.NewEvent(eventType, report.RunID, report.Keyword, report))
}

func failed(runID, kw, target string, err error, d time.Duration) *Outcome {
	detail := &models.ErrorDetail{Code: models.ErrCodeNavigation, Message: err.Error()}
	var he *models.HarvestError
	if errors.As(err, &he) {
		detail = he.ToDetail()
	}
	return &Outcome{
		Report: &models.RunReport{
			RunID:   runID,
			Keyword: kw,
			URL:     target,
			Records: []models.Record{},
			Error:   detail,
		},
		Harvest: d,
	}
}
