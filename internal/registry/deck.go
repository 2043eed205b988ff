package registry

import (
	"context"

	"github.com/mmcdole/recall/internal/domain"
	"github.com/mmcdole/recall/internal/queue"
)

// ReviewFunc grades one card of a deck
type ReviewFunc func(ctx context.Context, card domain.Card, grade domain.Grade) (*domain.Card, error)

// Deck binds a reviewable view to its grading action
type Deck struct {
	Kind   domain.Kind
	Title  string
	Queue  *queue.Cache
	Review ReviewFunc
}

// ReviewKinds lists the reviewable views in study order
var ReviewKinds = []domain.Kind{domain.KindOutstanding, domain.KindCram, domain.KindQueued}

// Deck returns the deck of a reviewable view. ok is false for memorized and all.
func (r *Registry) Deck(kind domain.Kind) (Deck, bool) {
	m := r.mutations
	switch kind {
	case domain.KindOutstanding:
		return Deck{Kind: kind, Title: "Outstanding cards", Queue: r.Outstanding(), Review: m.Grade}, true
	case domain.KindCram:
		return Deck{Kind: kind, Title: "Crammed cards", Queue: r.Cram(), Review: m.ReviewCrammed}, true
	case domain.KindQueued:
		return Deck{Kind: kind, Title: "Queued cards", Queue: r.Queued(), Review: m.Memorize}, true
	default:
		return Deck{}, false
	}
}

// Decks returns every reviewable deck in study order
func (r *Registry) Decks() []Deck {
	decks := make([]Deck, 0, len(ReviewKinds))
	for _, kind := range ReviewKinds {
		if d, ok := r.Deck(kind); ok {
			decks = append(decks, d)
		}
	}
	return decks
}

// Progress summarizes how much study is left
type Progress struct {
	Scheduled int // Outstanding cards due for review
	Cram      int
	Queued    int // Cards never studied
}

// Total returns the number of cards awaiting any kind of study
func (p Progress) Total() int {
	return p.Scheduled + p.Cram + p.Queued
}

// Progress returns the last known counts of the reviewable views
func (r *Registry) Progress() Progress {
	return Progress{
		Scheduled: r.Outstanding().Snapshot().Count,
		Cram:      r.Cram().Snapshot().Count,
		Queued:    r.Queued().Snapshot().Count,
	}
}

// Empty reports whether the server confirmed the deck has no cards
func (d Deck) Empty() bool {
	return d.Queue.Snapshot().Empty()
}
