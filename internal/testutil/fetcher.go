// Package testutil holds in-memory fakes shared by package tests.
package testutil

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/mmcdole/recall/internal/domain"
)

// FetchCall records one FetchPage invocation
type FetchCall struct {
	Kind       domain.Kind
	Index      int
	Categories []string
}

type pageKey struct {
	kind  domain.Kind
	index int
}

// FakeFetcher serves deterministic pages from per-kind totals.
// Card IDs are "<kind>-<n>" with n counting from zero across pages.
type FakeFetcher struct {
	PageSize int

	mu     sync.Mutex
	totals map[domain.Kind]int
	fails  map[pageKey]error
	gates  map[pageKey]chan struct{}
	calls  []FetchCall
}

// NewFakeFetcher creates a fetcher serving pageSize items per page
func NewFakeFetcher(pageSize int) *FakeFetcher {
	return &FakeFetcher{
		PageSize: pageSize,
		totals:   make(map[domain.Kind]int),
		fails:    make(map[pageKey]error),
		gates:    make(map[pageKey]chan struct{}),
	}
}

// SetTotal sets how many cards a view holds
func (f *FakeFetcher) SetTotal(kind domain.Kind, n int) {
	f.mu.Lock()
	f.totals[kind] = n
	f.mu.Unlock()
}

// FailNext makes the next fetch of kind/index return err
func (f *FakeFetcher) FailNext(kind domain.Kind, index int, err error) {
	f.mu.Lock()
	f.fails[pageKey{kind, index}] = err
	f.mu.Unlock()
}

// Block holds the next fetch of kind/index until release is called or
// the request context ends.
func (f *FakeFetcher) Block(kind domain.Kind, index int) (release func()) {
	gate := make(chan struct{})
	f.mu.Lock()
	f.gates[pageKey{kind, index}] = gate
	f.mu.Unlock()

	var once sync.Once
	return func() { once.Do(func() { close(gate) }) }
}

// Calls returns the recorded fetches of kind
func (f *FakeFetcher) Calls(kind domain.Kind) []FetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []FetchCall
	for _, c := range f.calls {
		if c.Kind == kind {
			out = append(out, c)
		}
	}
	return out
}

// Indexes returns the page indexes fetched for kind, in call order
func (f *FakeFetcher) Indexes(kind domain.Kind) []int {
	calls := f.Calls(kind)
	out := make([]int, 0, len(calls))
	for _, c := range calls {
		out = append(out, c.Index)
	}
	return out
}

// ResetCalls forgets recorded fetches
func (f *FakeFetcher) ResetCalls() {
	f.mu.Lock()
	f.calls = nil
	f.mu.Unlock()
}

// FetchPage implements domain.PageFetcher
func (f *FakeFetcher) FetchPage(ctx context.Context, kind domain.Kind, pageIndex int, categories []string) (domain.Page, error) {
	key := pageKey{kind, pageIndex}

	f.mu.Lock()
	f.calls = append(f.calls, FetchCall{Kind: kind, Index: pageIndex, Categories: slices.Clone(categories)})
	gate := f.gates[key]
	delete(f.gates, key)
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.Page{}, ctx.Err()
		}
	}

	f.mu.Lock()
	err := f.fails[key]
	delete(f.fails, key)
	total := f.totals[kind]
	f.mu.Unlock()

	if err != nil {
		return domain.Page{}, err
	}
	return BuildPage(kind, pageIndex, f.PageSize, total), nil
}

// BuildPage returns page pageIndex of a view holding total cards
func BuildPage(kind domain.Kind, pageIndex, pageSize, total int) domain.Page {
	start := pageIndex * pageSize
	end := min(start+pageSize, total)

	var items []domain.Card
	for i := start; i < end; i++ {
		items = append(items, domain.Card{
			ID:         CardID(kind, i),
			Front:      fmt.Sprintf("front %d", i),
			Back:       fmt.Sprintf("back %d", i),
			Membership: kind.Membership(),
		})
	}

	return domain.Page{
		Index:       pageIndex,
		Items:       items,
		TotalCount:  total,
		HasNext:     end < total,
		HasPrevious: pageIndex > 0,
	}
}

// CardID returns the identifier FakeFetcher assigns to the n-th card of kind
func CardID(kind domain.Kind, n int) string {
	return fmt.Sprintf("%s-%d", kind, n)
}
