package search

import (
	"sort"
	"strings"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"github.com/mmcdole/recall/internal/domain"
)

// Rank orders cards by how well their front and back match query.
// Cards matching neither side are dropped.
func Rank(query string, cards []domain.Card) []domain.Card {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" || len(cards) == 0 {
		return nil
	}

	type rankedCard struct {
		card  domain.Card
		score int
	}

	ranked := make([]rankedCard, 0, len(cards))
	for _, c := range cards {
		front := strings.ToLower(domain.ShortenText(c.Front))
		back := strings.ToLower(domain.ShortenText(c.Back))

		score, ok := matchScore(query, front)
		if backScore, backOK := matchScore(query, back); backOK && (!ok || backScore+5 < score) {
			// Back-side matches rank just behind equal front-side ones
			score, ok = backScore+5, true
		}
		if ok {
			ranked = append(ranked, rankedCard{card: c, score: score})
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].score < ranked[j].score
	})

	out := make([]domain.Card, len(ranked))
	for i, r := range ranked {
		out[i] = r.card
	}
	return out
}

// matchScore scores text against query. Lower is better.
func matchScore(query, text string) (int, bool) {
	switch {
	case text == query:
		return 0, true
	case strings.HasPrefix(text, query):
		return 10, true
	case strings.Contains(text, query):
		return 50, true
	}

	if matches := fuzzy.RankFindFold(query, []string{text}); len(matches) > 0 {
		return 100 + matches[0].Distance, true
	}
	return 0, false
}

// Suggest returns the candidates closest to a misspelled query by edit distance
func Suggest(query string, candidates []string, maxDistance int) []string {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return nil
	}

	type suggestion struct {
		text string
		dist int
	}
	var out []suggestion
	for _, c := range candidates {
		d := fuzzy.LevenshteinDistance(query, strings.ToLower(c))
		if d <= maxDistance {
			out = append(out, suggestion{text: c, dist: d})
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].dist < out[j].dist })

	texts := make([]string, len(out))
	for i, s := range out {
		texts[i] = s.text
	}
	return texts
}
