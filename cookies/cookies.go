// Package cookies decodes the cookie formats accepted by --cookies: a JSON
// array or object, JSON lines, a Netscape cookies.txt file, or an inline
// "a=1; b=2" header string.
package cookies

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/use-agent/jobharvest/models"
)

// DefaultDomain is applied to cookies that do not name one.
const DefaultDomain = "glints.com"

// Load resolves arg as a file path when such a file exists and as a header
// string otherwise. Cookies without a name are dropped.
func Load(arg, domain string) ([]models.Cookie, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return nil, nil
	}
	if domain == "" {
		domain = DefaultDomain
	}
	if info, err := os.Stat(arg); err == nil && info.Mode().IsRegular() {
		raw, err := os.ReadFile(arg)
		if err != nil {
			return nil, fmt.Errorf("read cookies file: %w", err)
		}
		return Parse(string(raw), domain), nil
	}
	return ParseHeader(arg, domain), nil
}

// Parse decodes file contents, trying JSON, then JSON lines, then Netscape.
func Parse(raw, domain string) []models.Cookie {
	if out, ok := parseJSON(raw, domain); ok {
		return out
	}
	if out := parseJSONLines(raw, domain); len(out) > 0 {
		return out
	}
	return parseNetscape(raw, domain)
}

// ParseHeader decodes a Cookie header value.
func ParseHeader(s, domain string) []models.Cookie {
	var out []models.Cookie
	for _, part := range strings.Split(s, ";") {
		name, value, ok := strings.Cut(part, "=")
		if !ok {
			continue
		}
		c := models.Cookie{Name: strings.TrimSpace(name), Value: strings.TrimSpace(value)}
		if c.Name == "" {
			continue
		}
		out = append(out, withDefaults(c, domain))
	}
	return out
}

func parseJSON(raw, domain string) ([]models.Cookie, bool) {
	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return nil, false
	}
	var items []any
	switch t := v.(type) {
	case map[string]any:
		items = []any{t}
	case []any:
		items = t
	default:
		return nil, false
	}
	var out []models.Cookie
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			if c, ok := fromMap(m, domain); ok {
				out = append(out, c)
			}
		}
	}
	return out, true
}

func parseJSONLines(raw, domain string) []models.Cookie {
	var out []models.Cookie
	sc := bufio.NewScanner(strings.NewReader(raw))
	sc.Buffer(make([]byte, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		var m map[string]any
		if err := json.Unmarshal([]byte(line), &m); err != nil {
			continue
		}
		if c, ok := fromMap(m, domain); ok {
			out = append(out, c)
		}
	}
	return out
}

// parseNetscape reads domain, flag, path, secure, expiry, name, value
// tab-separated columns.
func parseNetscape(raw, domain string) []models.Cookie {
	var out []models.Cookie
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "\t")
		if len(parts) < 7 {
			continue
		}
		c := models.Cookie{
			Domain: strings.TrimPrefix(parts[0], "."),
			Path:   parts[2],
			Secure: strings.EqualFold(parts[3], "TRUE"),
			Name:   parts[5],
			Value:  parts[6],
		}
		if exp, err := strconv.ParseInt(parts[4], 10, 64); err == nil {
			c.Expiry = exp
		}
		if c.Name == "" {
			continue
		}
		out = append(out, withDefaults(c, domain))
	}
	return out
}

func fromMap(m map[string]any, domain string) (models.Cookie, bool) {
	c := models.Cookie{
		Name:     str(m["name"]),
		Value:    str(m["value"]),
		Domain:   str(m["domain"]),
		Path:     str(m["path"]),
		SameSite: str(m["sameSite"]),
	}
	if c.Name == "" {
		return c, false
	}
	if b, ok := m["secure"].(bool); ok {
		c.Secure = b
	}
	for _, key := range []string{"expiry", "expires", "expirationDate"} {
		if exp, ok := epoch(m[key]); ok {
			c.Expiry = exp
			break
		}
	}
	return withDefaults(c, domain), true
}

func withDefaults(c models.Cookie, domain string) models.Cookie {
	if c.Domain == "" {
		c.Domain = domain
	}
	if c.Path == "" {
		c.Path = "/"
	}
	return c
}

func str(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(t)
	default:
		return fmt.Sprint(t)
	}
}

// epoch truncates numeric or numeric-string expiry values to whole seconds.
func epoch(v any) (int64, bool) {
	switch t := v.(type) {
	case float64:
		if t > 0 {
			return int64(t), true
		}
	case string:
		if f, err := strconv.ParseFloat(strings.TrimSpace(t), 64); err == nil && f > 0 {
			return int64(f), true
		}
	}
	return 0, false
}
