package simhash

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	cardA = `<div data-gtm-job-id="1"><h3><a href="/jobs/1">Backend Engineer</a></h3><p>PT Maju</p><span>Jakarta</span></div>`
	cardB = `<div data-gtm-job-id="2"><h3><a href="/jobs/2">Data Analyst</a></h3><p>CV Sentosa</p><span>Bandung</span></div>`
)

func TestFingerprint(t *testing.T) {
	assert.Zero(t, Fingerprint(nil), "no tokens")
	assert.NotZero(t, Fingerprint([]string{"div"}))
	assert.Equal(t, Fingerprint([]string{"div", "h3", "a"}), Fingerprint([]string{"div", "h3", "a"}))
}

func TestFingerprint_OrderInsensitive(t *testing.T) {
	// Votes are summed, so only the multiset of tokens matters.
	assert.Equal(t, Fingerprint([]string{"div", "h3", "a"}), Fingerprint([]string{"a", "div", "h3"}))
}

func TestDistance(t *testing.T) {
	tests := []struct {
		name string
		a, b uint64
		want int
	}{
		{"identical", 0xFF, 0xFF, 0},
		{"all different", 0, ^uint64(0), 64},
		{"one bit", 0, 1, 1},
		{"high bit", 1 << 63, 0, 1},
		{"two bits", 0b1010, 0b0110, 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Distance(tt.a, tt.b))
		})
	}
}

func TestSimilar_ThresholdIsInclusive(t *testing.T) {
	a := FingerprintStructure(cardA)
	b := FingerprintStructure(`<table><tr><td>x</td></tr><tr><td>y</td></tr></table>`)
	d := Distance(a, b)
	require.Positive(t, d)

	assert.True(t, Similar(a, b, d))
	assert.False(t, Similar(a, b, d-1))
}

func TestFingerprintStructure_SameTemplate(t *testing.T) {
	assert.Equal(t, FingerprintStructure(cardA), FingerprintStructure(cardB),
		"text and attribute values must not affect the fingerprint")
	assert.True(t, SameStructure(cardA, cardB, 0))
}

func TestFingerprintStructure_CardVersusOtherShapes(t *testing.T) {
	tests := []struct {
		name  string
		other string
	}{
		{"banner", `<section><table><tr><td>A</td><td>B</td></tr><tr><td>C</td></tr></table></section>`},
		{"pagination", `<nav><ul><li><button>1</button></li><li><button>2</button></li></ul></nav>`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.False(t, SameStructure(cardA, tt.other, 3))
		})
	}
}

func TestFingerprintStructure_DataAttributesCount(t *testing.T) {
	plain := `<div><h3><a href="/jobs/1">Backend Engineer</a></h3><p>PT Maju</p><span>Jakarta</span></div>`
	assert.NotEqual(t, FingerprintStructure(cardA), FingerprintStructure(plain))
}

func TestFingerprintStructure_Degenerate(t *testing.T) {
	assert.Zero(t, FingerprintStructure(""))
	assert.Zero(t, FingerprintStructure("just text"))
	assert.NotZero(t, FingerprintStructure("<li></li>"), "fewer tokens than a shingle still fingerprint")
}

func TestStructureTokens(t *testing.T) {
	tokens := structureTokens(`<div data-b="x" class="c" data-a="y"><a href="/">t</a><img src="x"/></div>`)
	assert.Equal(t, []string{"div@data-a@data-b", "a", "img"}, tokens)
}

func TestMakeShingles(t *testing.T) {
	assert.Equal(t, []string{"a_b_c", "b_c_d"}, makeShingles([]string{"a", "b", "c", "d"}, 3))
	assert.Nil(t, makeShingles([]string{"a", "b"}, 3))
}
