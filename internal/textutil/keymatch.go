package textutil

import (
	"math"
	"regexp"
	"strings"
)

var tokenSplitPattern = regexp.MustCompile(`[^a-z0-9]+`)

// Tokenize lowercases text and splits it on non-alphanumeric runs.
func Tokenize(text string) []string {
	raw := tokenSplitPattern.Split(strings.ToLower(text), -1)
	tokens := make([]string, 0, len(raw))
	for _, token := range raw {
		if token != "" {
			tokens = append(tokens, token)
		}
	}
	return tokens
}

type vector struct {
	counts map[string]float64
	norm   float64
}

func newVector(text string) vector {
	counts := make(map[string]float64)
	for _, token := range Tokenize(text) {
		counts[token]++
	}
	var norm float64
	for _, c := range counts {
		norm += c * c
	}
	return vector{counts: counts, norm: math.Sqrt(norm)}
}

// KeySimilarity returns the cosine similarity of the token vectors of a and b.
func KeySimilarity(a, b string) float64 {
	va, vb := newVector(a), newVector(b)
	if va.norm == 0 || vb.norm == 0 {
		return 0
	}
	var dot float64
	for token, count := range va.counts {
		dot += count * vb.counts[token]
	}
	return dot / (va.norm * vb.norm)
}

// MatchKey finds the key in keys that best names want. Exact and
// token-equivalent matches win outright; otherwise the most similar key at or
// above threshold is returned.
func MatchKey(want string, keys []string, threshold float64) (string, bool) {
	for _, key := range keys {
		if key == want {
			return key, true
		}
	}
	wantToken := SanitizeToken(want)
	for _, key := range keys {
		if SanitizeToken(key) == wantToken {
			return key, true
		}
	}
	best, bestScore := "", 0.0
	for _, key := range keys {
		score := KeySimilarity(want, key)
		if score > bestScore || (score == bestScore && key < best) {
			best, bestScore = key, score
		}
	}
	if best == "" || bestScore < threshold {
		return "", false
	}
	return best, true
}
