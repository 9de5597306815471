// Package normalize turns raw card fields into canonical records.
//
// Every function here is pure. Unparseable input degrades to cleaned text
// instead of failing, except for the mandatory title and link.
package normalize

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/text/unicode/norm"

	"github.com/use-agent/jobharvest/models"
)

// LocationSeparator joins the deduplicated locations of one listing.
const LocationSeparator = ", "

var invisible = strings.NewReplacer("\u200b", "", "\u200c", "", "\u200d", "", "\ufeff", "")

// Whitespace applies NFC, removes zero-width characters, collapses runs of
// whitespace (NBSP included) and trims.
func Whitespace(s string) string {
	if s == "" {
		return ""
	}
	s = invisible.Replace(norm.NFC.String(s))
	return strings.Join(strings.Fields(s), " ")
}

// URL resolves raw against base and returns an absolute http(s) URL.
func URL(raw, base string) (string, bool) {
	raw = Whitespace(raw)
	if raw == "" {
		return "", false
	}
	ref, err := url.Parse(raw)
	if err != nil {
		return "", false
	}
	if !ref.IsAbs() {
		b, err := url.Parse(base)
		if err != nil || !b.IsAbs() {
			return "", false
		}
		ref = b.ResolveReference(ref)
	}
	if (ref.Scheme != "http" && ref.Scheme != "https") || ref.Host == "" {
		return "", false
	}
	return ref.String(), true
}

var (
	locationDelims       = regexp.MustCompile(`\s*[·•,/|\n]\s*`)
	locationPlaceholders = regexp.MustCompile(`(?i)all\s+cities\s*/\s*provinces|semua\s+kota\s*/\s*provinsi`)
)

// SplitLocations splits a location string on common delimiters, drops
// placeholders and returns the parts deduplicated in first-seen order.
func SplitLocations(raw string) []string {
	raw = locationPlaceholders.ReplaceAllString(raw, "")
	var out []string
	seen := make(map[string]struct{})
	for _, p := range locationDelims.Split(raw, -1) {
		t := strings.Trim(Whitespace(p), " ,")
		if t == "" || t == "-" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// Locations is SplitLocations joined with LocationSeparator.
func Locations(raw string) string {
	return strings.Join(SplitLocations(raw), LocationSeparator)
}

// Tags splits a multi-valued tags entry into cleaned, unique tags.
func Tags(raw string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, p := range strings.Split(raw, models.ListSeparator) {
		t := Whitespace(p)
		if t == "" {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}
