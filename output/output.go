// Package output writes harvested records to CSV and JSON Lines files.
package output

import (
	"bufio"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/use-agent/jobharvest/models"
)

// bom makes spreadsheet applications read the CSV as UTF-8.
const bom = "\ufeff"

// joinSep joins list values inside a CSV cell.
const joinSep = ", "

var (
	baseColumns = []string{"title", "company", "location", "salary", "tags", "link", "posted", "source", "keyword", "job_id", "company_logo"}
	aiColumns   = []string{"cluster", "category", "seniority", "work_mode", "languages", "confidence"}
	slugStrip   = regexp.MustCompile(`[^a-z0-9]+`)
)

// Paths returns the CSV and JSONL paths for keyword under prefix.
func Paths(prefix, keyword string) (csvPath, jsonlPath string) {
	base := prefix + "_" + Slugify(keyword)
	return base + ".csv", base + ".jsonl"
}

// Slugify lowercases s, folds accents and joins alphanumeric runs with "-".
// An empty result becomes "jobs".
func Slugify(s string) string {
	var b strings.Builder
	for _, r := range norm.NFKD.String(strings.ToLower(s)) {
		if r < 0x80 {
			b.WriteRune(r)
		}
	}
	slug := strings.Trim(slugStrip.ReplaceAllString(b.String(), "-"), "-")
	if slug == "" {
		return "jobs"
	}
	return slug
}

// WriteCSV writes a header row and one row per record. AI columns are
// included when any record is enriched.
func WriteCSV(path string, records []models.Record) error {
	f, err := create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	if _, err := bw.WriteString(bom); err != nil {
		return err
	}
	w := csv.NewWriter(bw)

	enriched := anyEnriched(records)
	header := baseColumns
	if enriched {
		header = append(append([]string{}, baseColumns...), aiColumns...)
	}
	if err := w.Write(header); err != nil {
		return err
	}
	for _, r := range records {
		row := []string{
			r.Title, r.Company, r.Location, r.Salary, strings.Join(r.Tags, joinSep),
			r.Link, r.Posted, r.Source, r.Keyword, r.JobID, r.CompanyLogo,
		}
		if enriched {
			e := r.Enrichment
			if e == nil {
				e = &models.Enrichment{}
			}
			row = append(row, e.Cluster, e.Category, e.Seniority, string(e.WorkMode),
				strings.Join(e.Languages, joinSep), strconv.FormatFloat(e.Confidence, 'f', -1, 64))
		}
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	return bw.Flush()
}

// WriteJSONL writes one JSON object per line with non-ASCII and HTML
// characters left unescaped.
func WriteJSONL(path string, records []models.Record) error {
	f, err := create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	bw := bufio.NewWriter(f)
	enc := json.NewEncoder(bw)
	enc.SetEscapeHTML(false)
	for i := range records {
		if err := enc.Encode(&records[i]); err != nil {
			return fmt.Errorf("encode record %d: %w", i, err)
		}
	}
	return bw.Flush()
}

// ClusterCount is one line of the run summary.
type ClusterCount struct {
	Cluster string `json:"cluster"`
	Count   int    `json:"count"`
}

// Summarize counts records per cluster, most common first, ties by name,
// keeping the top 10. Records without enrichment count as Unknown.
func Summarize(records []models.Record) []ClusterCount {
	counts := make(map[string]int)
	for _, r := range records {
		cluster := "Unknown"
		if r.Enrichment != nil && r.Cluster != "" {
			cluster = r.Cluster
		}
		counts[cluster]++
	}
	out := make([]ClusterCount, 0, len(counts))
	for k, v := range counts {
		out = append(out, ClusterCount{Cluster: k, Count: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Cluster < out[j].Cluster
	})
	if len(out) > 10 {
		out = out[:10]
	}
	return out
}

func anyEnriched(records []models.Record) bool {
	for _, r := range records {
		if r.Enrichment != nil {
			return true
		}
	}
	return false
}

func create(path string) (*os.File, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create output dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create output file: %w", err)
	}
	return f, nil
}
