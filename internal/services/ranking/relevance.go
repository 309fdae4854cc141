// Package ranking bounds the knowledge handed to a model. Keyword relevance
// with recency backfill serves chat; priority tiers with per-source caps
// serve the summary digest. Both are deterministic.
package ranking

import (
	"sort"
	"strings"
	"time"
)

// Document is anything that can be keyword-scored and ordered by recency
type Document interface {
	SearchableText() string
	RankDate() *time.Time
}

// ScoredItem pairs a document with its keyword-match count for one ranking pass
type ScoredItem[T Document] struct {
	Item  T
	Score int
}

// Caps is the selection budget for one document type
type Caps struct {
	Relevant int // Keyword matches admitted first
	Recent   int // Most recent documents always admitted after the matches
	Total    int // Hard size of the blended selection
}

// Caps per note type
var (
	DailyNoteCaps    = Caps{Relevant: 15, Recent: 10, Total: 20}
	StockNoteCaps    = Caps{Relevant: 40, Recent: 20, Total: 50}
	WeeklyNoteCaps   = Caps{Relevant: 10, Recent: 5, Total: 12}
	ResearchItemCaps = Caps{Relevant: 25, Recent: 10, Total: 30}
)

// Score counts keywords found (case-insensitive substring) in text
func Score(text string, keywords []string) int {
	if len(keywords) == 0 || text == "" {
		return 0
	}
	lower := strings.ToLower(text)
	score := 0
	for _, k := range keywords {
		if k != "" && strings.Contains(lower, strings.ToLower(k)) {
			score++
		}
	}
	return score
}

// Rank scores every item and orders by score desc, then date desc with undated
// items last. Ties keep their input order.
func Rank[T Document](items []T, keywords []string) []ScoredItem[T] {
	scored := make([]ScoredItem[T], len(items))
	for i, item := range items {
		scored[i] = ScoredItem[T]{Item: item, Score: Score(item.SearchableText(), keywords)}
	}
	sort.SliceStable(scored, func(i, j int) bool {
		if scored[i].Score != scored[j].Score {
			return scored[i].Score > scored[j].Score
		}
		return newer(scored[i].Item.RankDate(), scored[j].Item.RankDate())
	})
	return scored
}

// SelectBlend takes up to caps.Relevant keyword matches, then the caps.Recent most
// recent of the remaining documents, then keeps backfilling by recency until
// caps.Total. The result always has min(caps.Total, len(items)) entries.
func SelectBlend[T Document](items []T, keywords []string, caps Caps) []T {
	if caps.Total <= 0 || len(items) == 0 {
		return []T{}
	}

	ranked := Rank(items, keywords)

	selected := make([]T, 0, min(caps.Total, len(items)))
	taken := make([]bool, len(ranked))
	for i, s := range ranked {
		if s.Score == 0 || len(selected) == caps.Relevant || len(selected) == caps.Total {
			break
		}
		selected = append(selected, s.Item)
		taken[i] = true
	}

	// Recency pool over everything not yet admitted, matches included
	pool := make([]T, 0, len(ranked)-len(selected))
	for i, s := range ranked {
		if !taken[i] {
			pool = append(pool, s.Item)
		}
	}
	SortByRecency(pool)

	want := max(caps.Recent, caps.Total-len(selected))
	for _, item := range pool {
		if want == 0 || len(selected) == caps.Total {
			break
		}
		selected = append(selected, item)
		want--
	}
	return selected
}

// SortByRecency orders documents newest first, undated last, stable
func SortByRecency[T Document](items []T) {
	sort.SliceStable(items, func(i, j int) bool {
		return newer(items[i].RankDate(), items[j].RankDate())
	})
}

// newer reports whether a strictly sorts before b: dated before undated, then later first
func newer(a, b *time.Time) bool {
	switch {
	case a == nil:
		return false
	case b == nil:
		return true
	default:
		return a.After(*b)
	}
}
