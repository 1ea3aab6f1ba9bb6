package common

import (
	"sort"
	"strings"
)

// NormalizeName lower-cases a column name and folds spaces, hyphens, dots and
// slashes into single underscores.
func NormalizeName(name string) string {
	name = strings.ToLower(strings.TrimSpace(name))
	var sb strings.Builder
	sb.Grow(len(name))
	lastUnderscore := false
	for _, r := range name {
		switch r {
		case ' ', '-', '.', '/', '\t', '_':
			if !lastUnderscore {
				sb.WriteByte('_')
			}
			lastUnderscore = true
		default:
			sb.WriteRune(r)
			lastUnderscore = false
		}
	}
	return strings.Trim(sb.String(), "_")
}

// Levenshtein returns the edit distance between a and b.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// Suggest returns candidates within maxDistance edits of target, closest first.
func Suggest(target string, candidates []string, maxDistance int) []string {
	type scored struct {
		name string
		dist int
	}
	var hits []scored
	for _, c := range candidates {
		if c == target {
			continue
		}
		if d := Levenshtein(target, c); d <= maxDistance {
			hits = append(hits, scored{c, d})
		}
	}
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].dist != hits[j].dist {
			return hits[i].dist < hits[j].dist
		}
		return hits[i].name < hits[j].name
	})
	out := make([]string, len(hits))
	for i, h := range hits {
		out[i] = h.name
	}
	return out
}
