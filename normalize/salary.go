package normalize

import (
	"math"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Undisclosed is the display value for listings that hide their salary.
const Undisclosed = "Gaji Tidak Ditampilkan"

var (
	undisclosedRe = regexp.MustCompile(`(?i)tidak\s+ditampilkan|not\s+disclosed|undisclosed`)

	amount   = `(\d[\d.,]*)\s*(jt|juta|rb|ribu|k)?\b`
	currency = `(\brp\.?|\bidr|\busd|\bsgd|\$)`
	salaryRe = regexp.MustCompile(`(?i)` + currency + `\s*` + amount +
		`(?:\s*(?:-|–|—|to|s/d|sampai)\s*(?:rp\.?|idr|usd|sgd|\$)?\s*` + amount + `)?` +
		`\s*(\+)?(?:\s*/\s*(bulan|month|bln|tahun|year|jam|hour))?`)

	idPrinter = message.NewPrinter(language.Indonesian)
	enPrinter = message.NewPrinter(language.English)
)

// Salary turns free salary text into a display string such as
// "Rp 5.000.000 - 7.000.000" or "USD 1,500 - 2,000". A leading copy of
// title is removed first. Text that cannot be parsed is returned cleaned.
func Salary(raw, title string) string {
	t := Whitespace(raw)
	if t == "" {
		return ""
	}
	if title = Whitespace(title); title != "" && len(t) > len(title) && strings.EqualFold(t[:len(title)], title) {
		t = strings.TrimSpace(t[len(title):])
	}
	if undisclosedRe.MatchString(t) {
		return Undisclosed
	}

	m := salaryRe.FindStringSubmatch(t)
	if m == nil {
		return t
	}
	cur := canonicalCurrency(m[1])
	lowMult, highMult := multiplier(m[3]), multiplier(m[5])
	if lowMult == 1 && m[4] != "" {
		// "5 - 7 jt": the unit written once applies to both ends.
		lowMult = highMult
	}
	low, ok := parseNumber(m[2], lowMult)
	if !ok {
		return t
	}

	out := cur + " " + formatAmount(cur, low)
	if m[4] != "" {
		high, ok := parseNumber(m[4], highMult)
		if !ok {
			return t
		}
		if high != low {
			out += " - " + formatAmount(cur, high)
		}
	}
	if m[6] != "" {
		out += "+"
	}
	if m[7] != "" {
		out += "/" + strings.ToLower(m[7])
	}
	return out
}

func canonicalCurrency(s string) string {
	switch strings.ToLower(strings.TrimSuffix(s, ".")) {
	case "rp", "idr":
		return "Rp"
	case "sgd":
		return "SGD"
	default:
		return "USD"
	}
}

func multiplier(unit string) float64 {
	switch strings.ToLower(unit) {
	case "jt", "juta":
		return 1e6
	case "rb", "ribu", "k":
		return 1e3
	default:
		return 1
	}
}

// parseNumber reads digits with mixed separators. Exactly three digits after
// the last separator mark it as a thousands separator; otherwise it is the
// decimal point and every earlier separator groups thousands.
func parseNumber(s string, mult float64) (int64, bool) {
	s = strings.Trim(s, ".,")
	if s == "" {
		return 0, false
	}
	intPart, frac := s, ""
	if i := strings.LastIndexAny(s, ".,"); i >= 0 && len(s)-i-1 != 3 {
		intPart, frac = s[:i], s[i+1:]
	}
	digits := strings.NewReplacer(".", "", ",", "").Replace(intPart)
	if frac != "" {
		digits += "." + frac
	}
	v, err := strconv.ParseFloat(digits, 64)
	if err != nil {
		return 0, false
	}
	f := math.Round(v * mult)
	if math.IsNaN(f) || math.IsInf(f, 0) || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}

func formatAmount(cur string, v int64) string {
	if cur == "Rp" {
		return idPrinter.Sprintf("%d", v)
	}
	return enPrinter.Sprintf("%d", v)
}
