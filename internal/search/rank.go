package search

import (
	"sort"
	"strings"

	"github.com/runger/flare/internal/source"
)

// ShortcutCount is the number of leading results given numbered accelerators.
const ShortcutCount = 5

// Rank orders items for display. With a non-empty query items are stably
// sorted by edit distance between the lower-cased query and their search
// text; with an empty query append order is kept. The first ShortcutCount
// items get shortcuts 1..ShortcutCount, all others 0. items is not modified.
func Rank(query string, items []source.Item) []source.Item {
	out := make([]source.Item, len(items))
	copy(out, items)

	q := strings.ToLower(strings.TrimSpace(query))
	if q != "" {
		dist := make([]int, len(out))
		for i, it := range out {
			dist[i] = levenshtein(q, strings.ToLower(it.SearchText()))
		}
		idx := make([]int, len(out))
		for i := range idx {
			idx[i] = i
		}
		sort.SliceStable(idx, func(a, b int) bool { return dist[idx[a]] < dist[idx[b]] })
		sorted := make([]source.Item, len(out))
		for i, j := range idx {
			sorted[i] = out[j]
		}
		out = sorted
	}

	for i := range out {
		if i < ShortcutCount {
			out[i].Shortcut = i + 1
		} else {
			out[i].Shortcut = 0
		}
	}
	return out
}

// levenshtein computes the edit distance between a and b over runes.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

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
