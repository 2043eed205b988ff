package queue

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/mmcdole/recall/internal/adapter"
	"github.com/mmcdole/recall/internal/category"
	"github.com/mmcdole/recall/internal/domain"
	"github.com/mmcdole/recall/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pageSize = 50

func newCache(t *testing.T, fetcher domain.PageFetcher, opts ...Option) *Cache {
	t.Helper()
	opts = append([]Option{WithLogger(adapter.NullLogger()), WithPageSize(pageSize)}, opts...)
	c := New(domain.KindQueued, fetcher, opts...)
	t.Cleanup(c.Close)
	return c
}

func wait(t *testing.T, c *Cache) domain.QueueSnapshot {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Wait(ctx))
	return c.Snapshot()
}

func ids(cards []domain.Card) []string {
	out := make([]string, 0, len(cards))
	for _, c := range cards {
		out = append(out, c.ID)
	}
	return out
}

// ctxIgnoringFetcher delivers responses even after the request is cancelled
type ctxIgnoringFetcher struct {
	*testutil.FakeFetcher
	active  atomic.Int32
	maxSeen atomic.Int32
}

func (f *ctxIgnoringFetcher) FetchPage(_ context.Context, kind domain.Kind, idx int, cats []string) (domain.Page, error) {
	n := f.active.Add(1)
	defer f.active.Add(-1)
	for {
		seen := f.maxSeen.Load()
		if n <= seen || f.maxSeen.CompareAndSwap(seen, n) {
			break
		}
	}
	return f.FakeFetcher.FetchPage(context.Background(), kind, idx, cats)
}

func TestCache_InitialState(t *testing.T) {
	f := testutil.NewFakeFetcher(pageSize)
	c := newCache(t, f)

	snap := c.Snapshot()
	assert.Equal(t, domain.StatusIdle, snap.Status)
	assert.Empty(t, snap.CurrentPage)
	assert.True(t, snap.IsFirst)
	assert.True(t, snap.IsLast)
	assert.False(t, snap.IsLoading)
	assert.False(t, snap.Empty())
	assert.Empty(t, f.Calls(domain.KindQueued))
}

func TestCache_PagingSixtyItems(t *testing.T) {
	f := testutil.NewFakeFetcher(pageSize)
	f.SetTotal(domain.KindQueued, 60)
	c := newCache(t, f)

	c.Load()
	snap := wait(t, c)
	assert.Equal(t, domain.StatusReady, snap.Status)
	assert.Len(t, snap.CurrentPage, 50)
	assert.Equal(t, 60, snap.Count)
	assert.True(t, snap.IsFirst)
	assert.False(t, snap.IsLast)

	c.NextPage()
	snap = wait(t, c)
	assert.Len(t, snap.CurrentPage, 10)
	assert.Equal(t, testutil.CardID(domain.KindQueued, 50), snap.CurrentPage[0].ID)
	assert.Equal(t, 1, snap.ActiveIndex)
	assert.False(t, snap.IsFirst)
	assert.True(t, snap.IsLast)

	// Past the end: nothing changes and nothing is fetched
	c.NextPage()
	snap = wait(t, c)
	assert.Equal(t, 1, snap.ActiveIndex)
	assert.Equal(t, []int{0, 1}, f.Indexes(domain.KindQueued))

	// Back to a cached page: no fetch
	c.PrevPage()
	snap = wait(t, c)
	assert.Equal(t, 0, snap.ActiveIndex)
	assert.Len(t, snap.CurrentPage, 50)
	assert.True(t, snap.IsFirst)
	assert.Equal(t, []int{0, 1}, f.Indexes(domain.KindQueued))

	// Before the start: no-op
	c.PrevPage()
	snap = wait(t, c)
	assert.Equal(t, 0, snap.ActiveIndex)
	assert.Equal(t, []int{0, 1}, f.Indexes(domain.KindQueued))
}

func TestCache_NextPageMountsWhenEmpty(t *testing.T) {
	f := testutil.NewFakeFetcher(pageSize)
	f.SetTotal(domain.KindQueued, 60)
	c := newCache(t, f)

	c.NextPage()
	snap := wait(t, c)
	assert.Equal(t, 0, snap.ActiveIndex)
	assert.Len(t, snap.CurrentPage, 50)
	assert.Equal(t, []int{0}, f.Indexes(domain.KindQueued))
}

func TestCache_LoadIsIdempotent(t *testing.T) {
	f := testutil.NewFakeFetcher(pageSize)
	f.SetTotal(domain.KindQueued, 10)
	c := newCache(t, f)

	c.Load()
	c.Load()
	wait(t, c)
	c.Load()
	wait(t, c)
	assert.Equal(t, []int{0}, f.Indexes(domain.KindQueued))
}

func TestCache_EmptyQueue(t *testing.T) {
	f := testutil.NewFakeFetcher(pageSize)
	c := newCache(t, f)

	c.Load()
	snap := wait(t, c)
	assert.Equal(t, 0, snap.Count)
	assert.True(t, snap.IsFirst)
	assert.True(t, snap.IsLast)
	assert.True(t, snap.Empty())
	assert.Empty(t, snap.CurrentPage)

	c.NextPage()
	c.LoadMore()
	wait(t, c)
	assert.Equal(t, []int{0}, f.Indexes(domain.KindQueued))
}

func TestCache_ShortPageIsLast(t *testing.T) {
	// Server pages of 10 while the cache expects 50
	f := testutil.NewFakeFetcher(10)
	f.SetTotal(domain.KindQueued, 60)
	c := newCache(t, f)

	c.Load()
	snap := wait(t, c)
	assert.True(t, snap.IsLast)

	c.NextPage()
	wait(t, c)
	assert.Equal(t, []int{0}, f.Indexes(domain.KindQueued))
}

func TestCache_LoadMoreAccumulates(t *testing.T) {
	f := testutil.NewFakeFetcher(pageSize)
	f.SetTotal(domain.KindQueued, 120)
	c := newCache(t, f)

	c.Load()
	wait(t, c)

	c.LoadMore()
	snap := wait(t, c)
	assert.Equal(t, domain.ModeAccumulating, snap.Mode)
	assert.Len(t, snap.CurrentPage, 100)
	assert.Equal(t, testutil.CardID(domain.KindQueued, 0), snap.CurrentPage[0].ID)
	assert.Equal(t, testutil.CardID(domain.KindQueued, 99), snap.CurrentPage[99].ID)

	// The mode sticks for plain NextPage too
	c.NextPage()
	snap = wait(t, c)
	assert.Len(t, snap.CurrentPage, 120)
	assert.True(t, snap.IsLast)

	c.LoadMore()
	snap = wait(t, c)
	assert.Len(t, snap.CurrentPage, 120)
	assert.Equal(t, []int{0, 1, 2}, f.Indexes(domain.KindQueued))

	c.GoToFirst()
	snap = wait(t, c)
	assert.Equal(t, domain.ModePaged, snap.Mode)
	assert.Len(t, snap.CurrentPage, 50)
	assert.Equal(t, 0, snap.ActiveIndex)
}

func TestCache_LoadMoreIsMonotonic(t *testing.T) {
	f := testutil.NewFakeFetcher(pageSize)
	f.SetTotal(domain.KindQueued, 500)
	c := newCache(t, f)

	prev := 0
	for i := 0; i < 5; i++ {
		c.LoadMore()
		snap := wait(t, c)
		require.Greater(t, len(snap.CurrentPage), prev)
		// Earlier items keep their positions
		assert.Equal(t, testutil.CardID(domain.KindQueued, 0), snap.CurrentPage[0].ID)
		prev = len(snap.CurrentPage)
	}
	assert.Equal(t, 250, prev)
}

func TestCache_LoadMoreFromLaterPageKeepsPrefix(t *testing.T) {
	f := testutil.NewFakeFetcher(pageSize)
	f.SetTotal(domain.KindQueued, 200)
	c := newCache(t, f)

	c.Load()
	wait(t, c)
	c.NextPage()
	before := wait(t, c)
	require.Equal(t, testutil.CardID(domain.KindQueued, 50), before.CurrentPage[0].ID)

	c.LoadMore()
	after := wait(t, c)
	assert.Equal(t, domain.ModeAccumulating, after.Mode)
	assert.Equal(t, 2, after.ActiveIndex)
	require.Len(t, after.CurrentPage, 100)
	assert.Equal(t, ids(before.CurrentPage), ids(after.CurrentPage[:50]))

	c.LoadMore()
	after = wait(t, c)
	require.Len(t, after.CurrentPage, 150)
	assert.Equal(t, testutil.CardID(domain.KindQueued, 50), after.CurrentPage[0].ID)

	// Stepping back never drops below the page accumulation started on
	c.PrevPage()
	c.PrevPage()
	c.PrevPage()
	after = wait(t, c)
	assert.Equal(t, 1, after.ActiveIndex)
	assert.Equal(t, ids(before.CurrentPage), ids(after.CurrentPage))

	// A reset accumulates from the first page again
	c.GoToFirst()
	wait(t, c)
	c.LoadMore()
	after = wait(t, c)
	require.Len(t, after.CurrentPage, 100)
	assert.Equal(t, testutil.CardID(domain.KindQueued, 0), after.CurrentPage[0].ID)
}

func TestCache_GoToFirstRefetches(t *testing.T) {
	f := testutil.NewFakeFetcher(pageSize)
	f.SetTotal(domain.KindQueued, 200)
	c := newCache(t, f)

	c.Load()
	wait(t, c)
	c.NextPage()
	wait(t, c)

	f.SetTotal(domain.KindQueued, 199)
	c.GoToFirst()
	snap := wait(t, c)
	assert.Equal(t, 0, snap.ActiveIndex)
	assert.Equal(t, 199, snap.Count)
	assert.Equal(t, []int{0, 1, 0}, f.Indexes(domain.KindQueued))

	// Page 1 was discarded by the reset
	c.NextPage()
	wait(t, c)
	assert.Equal(t, []int{0, 1, 0, 1}, f.Indexes(domain.KindQueued))
}

func TestCache_ErrorKeepsLastGoodState(t *testing.T) {
	f := testutil.NewFakeFetcher(pageSize)
	f.SetTotal(domain.KindQueued, 60)
	c := newCache(t, f)

	c.Load()
	before := wait(t, c)

	f.FailNext(domain.KindQueued, 1, domain.ErrServerOffline)
	c.NextPage()
	snap := wait(t, c)
	assert.Equal(t, domain.StatusError, snap.Status)
	assert.ErrorIs(t, snap.Err, domain.ErrServerOffline)
	assert.False(t, snap.IsLoading)
	assert.Equal(t, 0, snap.ActiveIndex)
	assert.Equal(t, 60, snap.Count)
	assert.Equal(t, ids(before.CurrentPage), ids(snap.CurrentPage))

	// No automatic retry; the next navigation tries again
	assert.Equal(t, []int{0, 1}, f.Indexes(domain.KindQueued))
	c.NextPage()
	snap = wait(t, c)
	assert.Equal(t, domain.StatusReady, snap.Status)
	assert.NoError(t, snap.Err)
	assert.Equal(t, 1, snap.ActiveIndex)
}

func TestCache_MountFailure(t *testing.T) {
	f := testutil.NewFakeFetcher(pageSize)
	f.SetTotal(domain.KindQueued, 5)
	f.FailNext(domain.KindQueued, 0, domain.ErrAuthFailed)
	c := newCache(t, f)

	c.Load()
	snap := wait(t, c)
	assert.Equal(t, domain.StatusError, snap.Status)
	assert.ErrorIs(t, snap.Err, domain.ErrAuthFailed)
	assert.Empty(t, snap.CurrentPage)
	assert.False(t, snap.Empty())
}

func TestCache_StaleResponseDiscarded(t *testing.T) {
	f := &ctxIgnoringFetcher{FakeFetcher: testutil.NewFakeFetcher(pageSize)}
	f.SetTotal(domain.KindQueued, 200)
	c := newCache(t, f)

	c.Load()
	wait(t, c)

	release := f.Block(domain.KindQueued, 1)
	c.NextPage()
	assert.True(t, c.Snapshot().IsLoading)

	c.GoToFirst()
	c.GoToFirst()
	snap := c.Snapshot()
	assert.True(t, snap.IsLoading)
	assert.Empty(t, snap.CurrentPage)

	release()
	snap = wait(t, c)
	assert.Equal(t, 0, snap.ActiveIndex)
	assert.Equal(t, testutil.CardID(domain.KindQueued, 0), snap.CurrentPage[0].ID)
	assert.Equal(t, domain.StatusReady, snap.Status)
	assert.Equal(t, []int{0, 1, 0}, f.Indexes(domain.KindQueued))
	assert.Equal(t, int32(1), f.maxSeen.Load())

	// The stale page 1 never entered the cache
	f.ResetCalls()
	c.NextPage()
	wait(t, c)
	assert.Equal(t, []int{1}, f.Indexes(domain.KindQueued))
}

func TestCache_GoToFirstCancelsInFlight(t *testing.T) {
	f := testutil.NewFakeFetcher(pageSize)
	f.SetTotal(domain.KindQueued, 200)
	c := newCache(t, f)

	c.Load()
	wait(t, c)

	// Never released: only cancellation ends it
	f.Block(domain.KindQueued, 1)
	c.NextPage()
	c.GoToFirst()

	snap := wait(t, c)
	assert.Equal(t, domain.StatusReady, snap.Status)
	assert.NoError(t, snap.Err)
	assert.Equal(t, []int{0, 1, 0}, f.Indexes(domain.KindQueued))
}

func TestCache_CoalescesDuplicateNavigation(t *testing.T) {
	f := testutil.NewFakeFetcher(pageSize)
	f.SetTotal(domain.KindQueued, 200)
	c := newCache(t, f)

	release := f.Block(domain.KindQueued, 0)
	c.NextPage()
	c.NextPage()
	c.Load()
	c.NextPage()
	release()
	wait(t, c)
	assert.Equal(t, []int{0}, f.Indexes(domain.KindQueued))

	release = f.Block(domain.KindQueued, 1)
	c.NextPage()
	c.NextPage()
	c.LoadMore()
	release()
	snap := wait(t, c)
	assert.Equal(t, []int{0, 1}, f.Indexes(domain.KindQueued))
	assert.Equal(t, 1, snap.ActiveIndex)
}

func TestCache_QueuedIntentRunsAfterSettle(t *testing.T) {
	f := testutil.NewFakeFetcher(pageSize)
	f.SetTotal(domain.KindQueued, 200)
	c := newCache(t, f)

	c.Load()
	wait(t, c)
	c.NextPage()
	wait(t, c)

	release := f.Block(domain.KindQueued, 2)
	c.NextPage()
	c.PrevPage()
	release()

	snap := wait(t, c)
	assert.Equal(t, 1, snap.ActiveIndex)
	assert.Equal(t, []int{0, 1, 2}, f.Indexes(domain.KindQueued))
}

func TestCache_QueuedIntentDroppedAfterFailure(t *testing.T) {
	f := testutil.NewFakeFetcher(pageSize)
	f.SetTotal(domain.KindQueued, 200)
	c := newCache(t, f)

	c.Load()
	wait(t, c)
	c.NextPage()
	wait(t, c)

	release := f.Block(domain.KindQueued, 2)
	f.FailNext(domain.KindQueued, 2, errors.New("boom"))
	c.NextPage()
	c.PrevPage()
	release()

	snap := wait(t, c)
	assert.Equal(t, domain.StatusError, snap.Status)
	assert.Equal(t, 1, snap.ActiveIndex)
	assert.Equal(t, []int{0, 1, 2}, f.Indexes(domain.KindQueued))
}

func TestCache_MaxPagesEvictsFarthest(t *testing.T) {
	f := testutil.NewFakeFetcher(pageSize)
	f.SetTotal(domain.KindQueued, 500)
	c := newCache(t, f, WithMaxPages(2))

	c.Load()
	wait(t, c)
	c.NextPage()
	wait(t, c)
	c.NextPage()
	wait(t, c)

	// Page 1 stayed cached, page 0 was evicted
	c.PrevPage()
	snap := wait(t, c)
	assert.Equal(t, 1, snap.ActiveIndex)
	assert.Equal(t, []int{0, 1, 2}, f.Indexes(domain.KindQueued))

	c.PrevPage()
	snap = wait(t, c)
	assert.Equal(t, 0, snap.ActiveIndex)
	assert.Equal(t, []int{0, 1, 2, 0}, f.Indexes(domain.KindQueued))
}

func TestCache_MaxPagesIgnoredWhenAccumulating(t *testing.T) {
	f := testutil.NewFakeFetcher(pageSize)
	f.SetTotal(domain.KindQueued, 500)
	c := newCache(t, f, WithMaxPages(1))

	for i := 0; i < 4; i++ {
		c.LoadMore()
		wait(t, c)
	}
	snap := c.Snapshot()
	assert.Len(t, snap.CurrentPage, 200)
}

func TestCache_CategorySelectionResets(t *testing.T) {
	f := testutil.NewFakeFetcher(pageSize)
	f.SetTotal(domain.KindQueued, 200)
	sel := category.NewSelection("a")
	c := newCache(t, f, WithCategories(sel))

	c.Load()
	wait(t, c)
	c.NextPage()
	wait(t, c)

	sel.Set([]string{"c", "b"})
	snap := wait(t, c)
	assert.Equal(t, 0, snap.ActiveIndex)

	calls := f.Calls(domain.KindQueued)
	require.Len(t, calls, 3)
	assert.Equal(t, []string{"a"}, calls[0].Categories)
	assert.Equal(t, []string{"b", "c"}, calls[2].Categories)
	assert.Equal(t, 0, calls[2].Index)

	// Setting the same selection again is not a change
	sel.Set([]string{"b", "c"})
	wait(t, c)
	assert.Len(t, f.Calls(domain.KindQueued), 3)
}

func TestCache_Subscribe(t *testing.T) {
	f := testutil.NewFakeFetcher(pageSize)
	f.SetTotal(domain.KindQueued, 60)
	c := newCache(t, f)

	var mu sync.Mutex
	var seen []domain.QueueSnapshot
	unsubscribe := c.Subscribe(func(s domain.QueueSnapshot) {
		mu.Lock()
		seen = append(seen, s)
		mu.Unlock()
	})

	c.Load()
	wait(t, c)

	mu.Lock()
	// The loading snapshot is skipped if the fetch settles first
	require.NotEmpty(t, seen)
	require.LessOrEqual(t, len(seen), 2)
	last := seen[len(seen)-1]
	assert.False(t, last.IsLoading)
	assert.Equal(t, domain.StatusReady, last.Status)
	assert.Len(t, last.CurrentPage, 50)
	if len(seen) == 2 {
		assert.True(t, seen[0].IsLoading)
		assert.Equal(t, domain.StatusLoading, seen[0].Status)
	}
	delivered := len(seen)
	mu.Unlock()

	unsubscribe()
	c.NextPage()
	wait(t, c)

	mu.Lock()
	assert.Len(t, seen, delivered)
	mu.Unlock()
}

func TestCache_SubscribeSlowObserverEndsOnLatest(t *testing.T) {
	f := testutil.NewFakeFetcher(pageSize)
	f.SetTotal(domain.KindQueued, 60)
	c := newCache(t, f)

	var mu sync.Mutex
	var last domain.QueueSnapshot
	c.Subscribe(func(s domain.QueueSnapshot) {
		if s.IsLoading {
			time.Sleep(50 * time.Millisecond)
		}
		mu.Lock()
		last = s
		mu.Unlock()
	})

	c.Load()
	snap := wait(t, c)

	mu.Lock()
	defer mu.Unlock()
	assert.False(t, last.IsLoading)
	assert.Len(t, last.CurrentPage, 50)
	assert.Equal(t, ids(snap.CurrentPage), ids(last.CurrentPage))
}

func TestCache_CloseStopsNavigation(t *testing.T) {
	f := testutil.NewFakeFetcher(pageSize)
	f.SetTotal(domain.KindQueued, 60)
	c := newCache(t, f)

	f.Block(domain.KindQueued, 0)
	c.Load()
	c.Close()
	wait(t, c)

	c.NextPage()
	c.GoToFirst()
	snap := wait(t, c)
	assert.False(t, snap.IsLoading)
	assert.Equal(t, []int{0}, f.Indexes(domain.KindQueued))
}

func TestCache_FetchTimeout(t *testing.T) {
	f := testutil.NewFakeFetcher(pageSize)
	f.SetTotal(domain.KindQueued, 60)
	c := newCache(t, f, WithFetchTimeout(20*time.Millisecond))

	f.Block(domain.KindQueued, 0)
	c.Load()
	snap := wait(t, c)
	assert.Equal(t, domain.StatusError, snap.Status)
	assert.ErrorIs(t, snap.Err, context.DeadlineExceeded)
}

func TestCache_SnapshotIsCallerOwned(t *testing.T) {
	f := testutil.NewFakeFetcher(pageSize)
	f.SetTotal(domain.KindQueued, 10)
	c := newCache(t, f)

	c.Load()
	snap := wait(t, c)
	snap.CurrentPage[0].ID = "mutated"

	assert.Equal(t, testutil.CardID(domain.KindQueued, 0), c.Snapshot().CurrentPage[0].ID)
}
