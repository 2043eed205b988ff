package category

import (
	"slices"
	"sort"
	"strings"
	"sync"
)

// Selection is an observable set of selected category identifiers.
// It implements domain.CategoryFilter.
type Selection struct {
	mu       sync.RWMutex
	selected []string
	nextID   int
	subs     map[int]func([]string)
}

// NewSelection creates a selection holding ids
func NewSelection(ids ...string) *Selection {
	return &Selection{
		selected: normalize(ids),
		subs:     make(map[int]func([]string)),
	}
}

// Selected returns a copy of the current selection, sorted
func (s *Selection) Selected() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.selected)
}

// Set replaces the selection. Subscribers are notified only when the set changes.
func (s *Selection) Set(ids []string) bool {
	next := normalize(ids)

	s.mu.Lock()
	if slices.Equal(s.selected, next) {
		s.mu.Unlock()
		return false
	}
	s.selected = next
	subs := make([]func([]string), 0, len(s.subs))
	for _, fn := range s.subs {
		subs = append(subs, fn)
	}
	s.mu.Unlock()

	for _, fn := range subs {
		fn(slices.Clone(next))
	}
	return true
}

// Subscribe registers fn for selection changes
func (s *Selection) Subscribe(fn func(selected []string)) func() {
	s.mu.Lock()
	id := s.nextID
	s.nextID++
	s.subs[id] = fn
	s.mu.Unlock()

	return func() {
		s.mu.Lock()
		delete(s.subs, id)
		s.mu.Unlock()
	}
}

// ParseIDs splits a comma-separated list of identifiers
func ParseIDs(raw string) []string {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	return normalize(strings.Split(raw, ","))
}

// normalize trims, drops blanks and duplicates, and sorts
func normalize(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Strings(out)
	return out
}
