package simhash

import (
	"sort"
	"strings"

	"golang.org/x/net/html"
)

// FingerprintStructure computes a SimHash over the markup shape of an
// element: tag names in document order, each tagged with its data-*
// attribute names. Text and attribute values are ignored, so two job cards
// rendered from the same template fingerprint alike even when their
// contents differ.
func FingerprintStructure(htmlStr string) uint64 {
	tokens := structureTokens(htmlStr)
	if shingles := makeShingles(tokens, 3); shingles != nil {
		return Fingerprint(shingles)
	}
	return Fingerprint(tokens)
}

// SameStructure reports whether two fragments are within threshold bits of
// each other.
func SameStructure(a, b string, threshold int) bool {
	return Similar(FingerprintStructure(a), FingerprintStructure(b), threshold)
}

func structureTokens(htmlStr string) []string {
	z := html.NewTokenizer(strings.NewReader(htmlStr))
	var tokens []string
	for {
		switch z.Next() {
		case html.ErrorToken:
			return tokens
		case html.StartTagToken, html.SelfClosingTagToken:
			name, hasAttr := z.TagName()
			tok := string(name)
			var dataAttrs []string
			for hasAttr {
				var key []byte
				key, _, hasAttr = z.TagAttr()
				if strings.HasPrefix(string(key), "data-") {
					dataAttrs = append(dataAttrs, string(key))
				}
			}
			if len(dataAttrs) > 0 {
				sort.Strings(dataAttrs)
				tok += "@" + strings.Join(dataAttrs, "@")
			}
			tokens = append(tokens, tok)
		}
	}
}

func makeShingles(tokens []string, n int) []string {
	if len(tokens) < n {
		return nil
	}
	shingles := make([]string, 0, len(tokens)-n+1)
	for i := 0; i <= len(tokens)-n; i++ {
		shingles = append(shingles, strings.Join(tokens[i:i+n], "_"))
	}
	return shingles
}
