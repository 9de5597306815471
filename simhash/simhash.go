// Package simhash fingerprints token sequences so near-identical inputs land
// a few bits apart. The container resolver uses it to tell a run of job cards
// rendered from one template from unrelated siblings.
package simhash

import (
	"hash/fnv"
	"math/bits"
)

// Fingerprint folds tokens into a 64-bit SimHash: the FNV-64a hash of every
// token votes on each bit and the majority wins. No tokens fingerprint as 0.
func Fingerprint(tokens []string) uint64 {
	var votes [64]int
	for _, tok := range tokens {
		h := fnv.New64a()
		h.Write([]byte(tok))
		sum := h.Sum64()
		for bit := range votes {
			if sum>>bit&1 == 1 {
				votes[bit]++
			} else {
				votes[bit]--
			}
		}
	}

	var fp uint64
	for bit, v := range votes {
		if v > 0 {
			fp |= 1 << bit
		}
	}
	return fp
}

// Distance returns the Hamming distance between two fingerprints.
func Distance(a, b uint64) int {
	return bits.OnesCount64(a ^ b)
}

// Similar reports whether a and b differ in at most threshold bits.
func Similar(a, b uint64, threshold int) bool {
	return Distance(a, b) <= threshold
}
