package models

import "strings"

// Field names a column of the card schema.
type Field string

const (
	FieldTitle       Field = "title"
	FieldLink        Field = "link"
	FieldCompany     Field = "company"
	FieldLocations   Field = "locations"
	FieldSalary      Field = "salary"
	FieldTags        Field = "tags"
	FieldUpdatedAt   Field = "updated_at"
	FieldCompanyLogo Field = "company_logo"
	FieldJobID       Field = "job_id"
)

// ListSeparator joins the values of multi-valued fields (tags, locations)
// inside a RawFields entry.
const ListSeparator = "\n"

// RawFields maps a field to the raw value read from one card. A field that
// no strategy could read is absent from the map, never an empty string.
type RawFields map[Field]string

// Get returns the raw value and whether it was extracted.
func (r RawFields) Get(f Field) (string, bool) {
	v, ok := r[f]
	return v, ok
}

// Set records v for f unless v is blank.
func (r RawFields) Set(f Field, v string) {
	if strings.TrimSpace(v) == "" {
		return
	}
	r[f] = v
}

// Missing returns the fields from want that were not extracted.
func (r RawFields) Missing(want ...Field) []Field {
	var out []Field
	for _, f := range want {
		if _, ok := r[f]; !ok {
			out = append(out, f)
		}
	}
	return out
}

// WorkMode is the AI-derived working arrangement of a listing.
type WorkMode string

const (
	WorkModeRemote  WorkMode = "remote"
	WorkModeOnsite  WorkMode = "onsite"
	WorkModeHybrid  WorkMode = "hybrid"
	WorkModeUnknown WorkMode = "unknown"
)

// ParseWorkMode maps free text onto one of the four work modes.
func ParseWorkMode(s string) WorkMode {
	switch t := strings.ToLower(strings.TrimSpace(s)); {
	case t == "remote" || strings.Contains(t, "wfh") || strings.Contains(t, "work from home"):
		return WorkModeRemote
	case t == "hybrid":
		return WorkModeHybrid
	case t == "onsite" || t == "on-site" || t == "on site" || t == "office" || t == "wfo":
		return WorkModeOnsite
	default:
		return WorkModeUnknown
	}
}

// Enrichment holds the fields added by the optional AI clustering step.
type Enrichment struct {
	Cluster    string   `json:"cluster"`
	Category   string   `json:"category"`
	Seniority  string   `json:"seniority"`
	WorkMode   WorkMode `json:"work_mode"`
	Languages  []string `json:"languages"`
	Confidence float64  `json:"confidence"`
}

// Record is the canonical, normalized representation of one listing.
// Link is always absolute. Enrichment stays nil when AI is disabled.
type Record struct {
	Title       string   `json:"title"`
	Company     string   `json:"company"`
	Location    string   `json:"location"`
	Salary      string   `json:"salary"`
	Tags        []string `json:"tags"`
	Link        string   `json:"link"`
	Posted      string   `json:"posted"`
	Source      string   `json:"source"`
	Keyword     string   `json:"keyword"`
	JobID       string   `json:"job_id,omitempty"`
	CompanyLogo string   `json:"company_logo,omitempty"`

	*Enrichment
}

// DedupKey is the (title, link) identity of a record within one run.
func (r *Record) DedupKey() string {
	return r.Title + "\x00" + r.Link
}
