package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/use-agent/jobharvest/config"
	"github.com/use-agent/jobharvest/dom"
	"github.com/use-agent/jobharvest/models"
)

// Unknown fills text fields the model could not classify.
const Unknown = "Unknown"

const systemPrompt = "You are a job-intelligence assistant. Given a job title, company, location, " +
	"and optional tags/salary, return a JSON with fields: cluster, category, seniority, " +
	"work_mode (remote/onsite/hybrid/unknown), languages (array of strings), and confidence (0-1). " +
	"Use concise, consistent cluster names (e.g., 'Social Media', 'Content', 'Graphic Design', " +
	"'Data', 'Sales', 'Customer Support', 'Engineering')."

const instruction = "Return ONLY valid JSON with these keys: cluster, category, seniority, work_mode, languages, confidence."

var jsonObjectRe = regexp.MustCompile(`\{[\s\S]*\}`)

// Enricher attaches an Enrichment to every record.
type Enricher struct {
	classifier Classifier
	retries    int
	backoff    time.Duration
	pause      time.Duration
	logger     *slog.Logger
}

// NewEnricher creates an Enricher with retry and pacing from cfg.
func NewEnricher(classifier Classifier, cfg config.AIConfig) *Enricher {
	retries := cfg.Retries
	if retries < 1 {
		retries = 1
	}
	return &Enricher{
		classifier: classifier,
		retries:    retries,
		backoff:    cfg.Backoff,
		pause:      cfg.Pause,
		logger:     slog.Default(),
	}
}

// Enrich returns copies of records with Enrichment set. A record whose
// classification keeps failing gets the Unknown enrichment; only context
// cancellation stops the loop, returning the records enriched so far.
func (e *Enricher) Enrich(ctx context.Context, records []models.Record) ([]models.Record, error) {
	out := make([]models.Record, 0, len(records))
	for i, rec := range records {
		if i > 0 {
			if err := dom.Sleep(ctx, e.pause); err != nil {
				return out, err
			}
		}
		enr, err := e.classify(ctx, rec)
		if err != nil {
			return out, err
		}
		rec.Enrichment = enr
		out = append(out, rec)
	}
	e.logger.Info("records enriched", "count", len(out))
	return out, nil
}

func (e *Enricher) classify(ctx context.Context, rec models.Record) (*models.Enrichment, error) {
	prompt := Prompt(rec)
	var lastErr error
	for attempt := 0; attempt < e.retries; attempt++ {
		if attempt > 0 {
			if err := dom.Sleep(ctx, e.backoff*time.Duration(attempt)); err != nil {
				return nil, err
			}
		}
		text, err := e.classifier.Classify(ctx, systemPrompt, prompt)
		if err == nil {
			var enr *models.Enrichment
			if enr, err = ParseEnrichment(text); err == nil {
				return enr, nil
			}
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		lastErr = err
		e.logger.Debug("classification attempt failed", "title", rec.Title, "attempt", attempt+1, "error", err)
	}
	e.logger.Warn("classification failed, marking unknown", "title", rec.Title, "error", lastErr)
	return UnknownEnrichment(), nil
}

// Prompt renders the per-record classification prompt.
func Prompt(rec models.Record) string {
	tags := "-"
	if len(rec.Tags) > 0 {
		tags = strings.Join(rec.Tags, ", ")
	}
	return fmt.Sprintf("TITLE: %s\nCOMPANY: %s\nLOCATION: %s\nSALARY: %s\nTAGS: %s\n\n%s",
		rec.Title, orDash(rec.Company), orDash(rec.Location), orDash(rec.Salary), tags, instruction)
}

// UnknownEnrichment is the fallback for records that could not be classified.
func UnknownEnrichment() *models.Enrichment {
	return &models.Enrichment{
		Cluster:   Unknown,
		Category:  Unknown,
		Seniority: Unknown,
		WorkMode:  models.WorkModeUnknown,
		Languages: []string{},
	}
}

// ParseEnrichment reads the first JSON object in text. Missing keys get
// defaults, work_mode is coerced into the known modes, a scalar languages
// value becomes a one-element list and confidence is clamped to [0, 1].
func ParseEnrichment(text string) (*models.Enrichment, error) {
	obj := jsonObjectRe.FindString(strings.TrimSpace(text))
	if obj == "" {
		return nil, fmt.Errorf("no JSON object in response %q", truncate(text, 80))
	}
	var raw map[string]any
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return nil, fmt.Errorf("decode classification: %w", err)
	}

	enr := &models.Enrichment{
		Cluster:    stringOr(raw["cluster"], Unknown),
		Category:   stringOr(raw["category"], Unknown),
		Seniority:  stringOr(raw["seniority"], Unknown),
		WorkMode:   models.ParseWorkMode(stringOr(raw["work_mode"], "")),
		Languages:  languages(raw["languages"]),
		Confidence: 0.5,
	}
	switch c := raw["confidence"].(type) {
	case float64:
		enr.Confidence = c
	case string:
		var f float64
		if _, err := fmt.Sscanf(c, "%g", &f); err == nil {
			enr.Confidence = f
		}
	}
	enr.Confidence = clamp(enr.Confidence)
	return enr, nil
}

func languages(v any) []string {
	switch t := v.(type) {
	case nil:
		return []string{}
	case []any:
		out := make([]string, 0, len(t))
		for _, item := range t {
			if s := strings.TrimSpace(fmt.Sprint(item)); s != "" {
				out = append(out, s)
			}
		}
		return out
	default:
		s := strings.TrimSpace(fmt.Sprint(t))
		if s == "" {
			return []string{}
		}
		return []string{s}
	}
}

func stringOr(v any, def string) string {
	s, ok := v.(string)
	if !ok || strings.TrimSpace(s) == "" {
		return def
	}
	return strings.TrimSpace(s)
}

func clamp(f float64) float64 {
	switch {
	case f != f, f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
