package search

import (
	"log/slog"
	"strings"

	"github.com/mmcdole/recall/internal/domain"
	"github.com/sahilm/fuzzy"
)

// Snapshotter is any view whose loaded cards can be searched
type Snapshotter interface {
	Snapshot() domain.QueueSnapshot
}

// FilterItem represents a searchable card
type FilterItem struct {
	Card  domain.Card
	Title string // Single-line list text
	Kind  domain.Kind
}

// FilterResult represents a search result with match metadata
type FilterResult struct {
	FilterItem
	MatchedIndexes []int
	Score          int // Higher is better
}

// FilterIndex implements sahilm/fuzzy.Source over card list texts
type FilterIndex struct {
	items       []FilterItem
	lowerTitles []string
}

// NewFilterIndex indexes cards listed under kind
func NewFilterIndex(kind domain.Kind, cards []domain.Card) *FilterIndex {
	idx := &FilterIndex{}
	idx.Add(kind, cards)
	return idx
}

// Add appends cards to the index
func (idx *FilterIndex) Add(kind domain.Kind, cards []domain.Card) {
	for _, c := range cards {
		title := c.ListText()
		idx.items = append(idx.items, FilterItem{Card: c, Title: title, Kind: kind})
		idx.lowerTitles = append(idx.lowerTitles, strings.ToLower(title))
	}
}

// String returns the lowercase title at index i (implements fuzzy.Source)
func (idx *FilterIndex) String(i int) string { return idx.lowerTitles[i] }

// Len returns the number of items (implements fuzzy.Source)
func (idx *FilterIndex) Len() int { return len(idx.items) }

// Filter returns the indexed cards matching query, best first
func (idx *FilterIndex) Filter(query string) []FilterResult {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || idx.Len() == 0 {
		return nil
	}

	matches := fuzzy.FindFrom(query, idx)
	results := make([]FilterResult, len(matches))
	for i, m := range matches {
		results[i] = FilterResult{
			FilterItem:     idx.items[m.Index],
			MatchedIndexes: m.MatchedIndexes,
			Score:          m.Score,
		}
	}
	return results
}

// Service searches the cards currently loaded in a set of views.
// It never fetches; only pages already in memory are searched.
type Service struct {
	views  []Snapshotter
	logger *slog.Logger
}

// NewService creates a search service over views
func NewService(views []Snapshotter, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{views: views, logger: logger}
}

// FilterLoaded fuzzy-filters the loaded cards of every view.
// A card listed by several views is reported once, under the first view.
func (s *Service) FilterLoaded(query string) []FilterResult {
	if strings.TrimSpace(query) == "" {
		return nil
	}

	idx := &FilterIndex{}
	seen := make(map[string]bool)
	for _, v := range s.views {
		snap := v.Snapshot()
		var fresh []domain.Card
		for _, c := range snap.CurrentPage {
			if seen[c.ID] {
				continue
			}
			seen[c.ID] = true
			fresh = append(fresh, c)
		}
		idx.Add(snap.Kind, fresh)
	}

	results := idx.Filter(query)
	s.logger.Debug("filtered loaded cards", "query", query, "indexed", idx.Len(), "matches", len(results))
	return results
}

// RankLoaded ranks the loaded cards of every view by front and back text
func (s *Service) RankLoaded(query string) []domain.Card {
	var cards []domain.Card
	seen := make(map[string]bool)
	for _, v := range s.views {
		for _, c := range v.Snapshot().CurrentPage {
			if !seen[c.ID] {
				seen[c.ID] = true
				cards = append(cards, c)
			}
		}
	}
	return Rank(query, cards)
}
