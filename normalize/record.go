package normalize

import (
	"errors"

	"github.com/use-agent/jobharvest/models"
)

// Drop reasons returned by Record.
var (
	ErrMissingTitle = errors.New("missing title")
	ErrMissingLink  = errors.New("missing link")
	ErrInvalidLink  = errors.New("link cannot be made absolute")
)

// Context carries the per-run values a record is normalized against.
type Context struct {
	BaseURL string
	Keyword string
	Source  string
}

// Record builds the canonical record for raw. When title or link cannot be
// produced it returns nil and the drop reason; the caller logs and counts it.
func Record(raw models.RawFields, c Context) (*models.Record, error) {
	title := Whitespace(raw[models.FieldTitle])
	if title == "" {
		return nil, ErrMissingTitle
	}
	href := Whitespace(raw[models.FieldLink])
	if href == "" {
		return nil, ErrMissingLink
	}
	link, ok := URL(href, c.BaseURL)
	if !ok {
		return nil, ErrInvalidLink
	}

	rec := &models.Record{
		Title:    title,
		Company:  Whitespace(raw[models.FieldCompany]),
		Location: Locations(raw[models.FieldLocations]),
		Salary:   Salary(raw[models.FieldSalary], title),
		Tags:     Tags(raw[models.FieldTags]),
		Link:     link,
		Posted:   Whitespace(raw[models.FieldUpdatedAt]),
		Source:   c.Source,
		Keyword:  c.Keyword,
		JobID:    Whitespace(raw[models.FieldJobID]),
	}
	if rec.Tags == nil {
		rec.Tags = []string{}
	}
	if logo, ok := URL(raw[models.FieldCompanyLogo], c.BaseURL); ok {
		rec.CompanyLogo = logo
	}
	return rec, nil
}

// Deduper folds records with the same (title, link) within one run. The
// first occurrence wins.
type Deduper struct {
	seen map[string]struct{}
}

// NewDeduper returns an empty Deduper.
func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[string]struct{})}
}

// Add reports whether r is new, remembering it if so.
func (d *Deduper) Add(r *models.Record) bool {
	k := r.DedupKey()
	if _, dup := d.seen[k]; dup {
		return false
	}
	d.seen[k] = struct{}{}
	return true
}

// Dedup returns records without (title, link) repeats, order preserved.
func Dedup(records []models.Record) []models.Record {
	d := NewDeduper()
	out := make([]models.Record, 0, len(records))
	for i := range records {
		if d.Add(&records[i]) {
			out = append(out, records[i])
		}
	}
	return out
}
