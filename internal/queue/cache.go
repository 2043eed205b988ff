package queue

import (
	"context"
	"errors"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/mmcdole/recall/internal/domain"
)

// intent is a navigation request deferred until the in-flight fetch settles
type intent int

const (
	intentNone intent = iota
	intentNext
	intentPrev
	intentFirst
)

// request is the single in-flight fetch of a cache
type request struct {
	epoch  uint64
	index  int
	cancel context.CancelFunc
}

// Cache is the paging cache of one card view.
//
// Navigation methods never block: fetches run on a goroutine and results are
// published through Snapshot and Subscribe. At most one fetch is in flight;
// responses issued before the last GoToFirst are discarded.
type Cache struct {
	kind         domain.Kind
	fetcher      domain.PageFetcher
	filter       domain.CategoryFilter
	logger       *slog.Logger
	pageSize     int
	maxPages     int
	fetchTimeout time.Duration

	ctx         context.Context
	cancel      context.CancelFunc
	unsubscribe func()

	mu        sync.Mutex
	pages     map[int]domain.Page
	active    int
	base      int // first page of the accumulated list
	mode      domain.PageMode
	count     int
	status    domain.QueueStatus
	err       error
	epoch     uint64
	inflight  *request
	queued    intent
	idle      chan struct{} // open while a fetch is in flight or queued
	observers map[int]func(domain.QueueSnapshot)
	nextObs   int
	seq       uint64 // stamps each published snapshot
	closed    bool

	notifyMu  sync.Mutex
	delivered uint64 // seq of the last snapshot handed to observers
}

// Option configures a Cache
type Option func(*Cache)

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cache) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithPageSize sets the server page size. A page shorter than this is
// treated as the last one even if the server reports a next link.
func WithPageSize(n int) Option {
	return func(c *Cache) {
		c.pageSize = n
	}
}

// WithMaxPages caps the pages kept in paged mode (0 = unlimited).
// Pages farthest from the active page are evicted first.
func WithMaxPages(n int) Option {
	return func(c *Cache) {
		c.maxPages = n
	}
}

// WithFetchTimeout bounds each page request (0 = no timeout)
func WithFetchTimeout(d time.Duration) Option {
	return func(c *Cache) {
		c.fetchTimeout = d
	}
}

// WithCategories filters every request by the filter's selection and resets
// the cache to the first page whenever the selection changes.
func WithCategories(filter domain.CategoryFilter) Option {
	return func(c *Cache) {
		c.filter = filter
	}
}

// New creates an empty cache for kind. Nothing is fetched until Load,
// NextPage, LoadMore or GoToFirst is called.
func New(kind domain.Kind, fetcher domain.PageFetcher, opts ...Option) *Cache {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Cache{
		kind:      kind,
		fetcher:   fetcher,
		logger:    slog.Default(),
		ctx:       ctx,
		cancel:    cancel,
		pages:     make(map[int]domain.Page),
		observers: make(map[int]func(domain.QueueSnapshot)),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("kind", kind)

	if c.filter != nil {
		c.unsubscribe = c.filter.Subscribe(func([]string) {
			c.logger.Debug("category selection changed")
			c.GoToFirst()
		})
	}
	return c
}

// Kind returns the view this cache pages through
func (c *Cache) Kind() domain.Kind {
	return c.kind
}

// Load fetches the first page unless something is loaded or loading
func (c *Cache) Load() {
	c.update(func() bool {
		if c.closed || c.inflight != nil || len(c.pages) > 0 {
			return false
		}
		c.startLocked(0)
		return true
	})
}

// NextPage advances to the following page. No-op on the last page.
// With nothing loaded it fetches the first page.
func (c *Cache) NextPage() {
	c.update(func() bool {
		if c.closed {
			return false
		}
		if c.inflight != nil {
			return c.deferNextLocked()
		}
		return c.nextLocked()
	})
}

// PrevPage steps back one page. No-op on the first page, and in
// accumulating mode on the page accumulation started from.
func (c *Cache) PrevPage() {
	c.update(func() bool {
		if c.closed || c.active == 0 {
			return false
		}
		if c.mode == domain.ModeAccumulating && c.active <= c.base {
			return false
		}
		if c.inflight != nil {
			if c.inflight.epoch == c.epoch && c.inflight.index == c.active-1 {
				return false
			}
			// A pending reset already implies the first page
			if c.queued == intentFirst {
				return false
			}
			c.queued = intentPrev
			return false
		}
		return c.prevLocked()
	})
}

// LoadMore switches the cache to accumulating mode and advances one page.
// Accumulation starts from the active page, so the items on screen stay a
// prefix of the list. The mode holds until GoToFirst.
func (c *Cache) LoadMore() {
	c.update(func() bool {
		if c.closed {
			return false
		}
		changed := c.mode != domain.ModeAccumulating
		if changed {
			c.base = c.active
		}
		c.mode = domain.ModeAccumulating
		if c.inflight != nil {
			return c.deferNextLocked() || changed
		}
		return c.nextLocked() || changed
	})
}

// GoToFirst discards every page, leaves accumulating mode and fetches the
// first page. A fetch already in flight is cancelled and its result ignored.
func (c *Cache) GoToFirst() {
	c.update(func() bool {
		if c.closed {
			return false
		}
		c.epoch++
		clear(c.pages)
		c.active = 0
		c.base = 0
		c.mode = domain.ModePaged
		c.err = nil

		if c.inflight != nil {
			c.inflight.cancel()
			c.queued = intentFirst
			c.status = domain.StatusLoading
			c.logger.Debug("reset while loading, first page queued", "epoch", c.epoch)
			return true
		}
		c.startLocked(0)
		return true
	})
}

// Snapshot returns a consistent copy of the cache state
func (c *Cache) Snapshot() domain.QueueSnapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn to receive a snapshot after every state change.
// Snapshots arrive in order; one superseded before delivery is skipped.
// fn runs outside the cache lock, possibly on a fetch goroutine, and must
// not call back into this cache synchronously.
func (c *Cache) Subscribe(fn func(domain.QueueSnapshot)) func() {
	c.mu.Lock()
	id := c.nextObs
	c.nextObs++
	c.observers[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.observers, id)
		c.mu.Unlock()
	}
}

// Wait blocks until no fetch is in flight or queued
func (c *Cache) Wait(ctx context.Context) error {
	for {
		c.mu.Lock()
		idle := c.idle
		c.mu.Unlock()
		if idle == nil {
			return nil
		}

		select {
		case <-idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Close cancels in-flight work. Later navigation is ignored.
func (c *Cache) Close() {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return
	}
	c.closed = true
	c.queued = intentNone
	unsubscribe := c.unsubscribe
	c.unsubscribe = nil
	c.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	c.cancel()
}

// update runs fn under the lock and notifies observers if it changed state
func (c *Cache) update(fn func() bool) {
	c.mu.Lock()
	if !fn() {
		c.mu.Unlock()
		return
	}
	seq, snap, observers := c.publishLocked()
	c.mu.Unlock()

	c.notify(seq, observers, snap)
}

// deferNextLocked handles NextPage and LoadMore while a fetch is in flight
func (c *Cache) deferNextLocked() bool {
	if c.inflight.epoch == c.epoch {
		target := c.active + 1
		if len(c.pages) == 0 {
			target = 0
		}
		if c.inflight.index == target {
			return false
		}
		if len(c.pages) > 0 && c.isLastLocked() {
			return false
		}
	}
	c.queued = intentNext
	return false
}

// nextLocked advances when idle. Returns whether state changed.
func (c *Cache) nextLocked() bool {
	if len(c.pages) == 0 {
		c.startLocked(0)
		return true
	}
	if c.isLastLocked() {
		return false
	}
	return c.moveLocked(c.active + 1)
}

// prevLocked steps back when idle. Returns whether state changed.
func (c *Cache) prevLocked() bool {
	if c.active == 0 || len(c.pages) == 0 {
		return false
	}
	return c.moveLocked(c.active - 1)
}

// moveLocked activates a cached page or starts fetching it
func (c *Cache) moveLocked(target int) bool {
	if _, ok := c.pages[target]; ok {
		c.active = target
		c.status = domain.StatusReady
		c.err = nil
		c.evictLocked()
		return true
	}
	c.startLocked(target)
	return true
}

// startLocked issues the fetch of index under the current epoch
func (c *Cache) startLocked(index int) {
	var (
		ctx    context.Context
		cancel context.CancelFunc
	)
	if c.fetchTimeout > 0 {
		ctx, cancel = context.WithTimeout(c.ctx, c.fetchTimeout)
	} else {
		ctx, cancel = context.WithCancel(c.ctx)
	}

	req := &request{epoch: c.epoch, index: index, cancel: cancel}
	c.inflight = req
	c.status = domain.StatusLoading
	if c.idle == nil {
		c.idle = make(chan struct{})
	}

	var categories []string
	if c.filter != nil {
		categories = c.filter.Selected()
	}

	c.logger.Debug("fetching page", "index", index, "epoch", req.epoch)
	go c.fetch(ctx, req, categories)
}

func (c *Cache) fetch(ctx context.Context, req *request, categories []string) {
	page, err := c.fetcher.FetchPage(ctx, c.kind, req.index, categories)
	req.cancel()

	c.mu.Lock()
	if c.inflight == req {
		c.inflight = nil
	}

	if c.closed {
		c.settleLocked()
		c.mu.Unlock()
		return
	}

	switch {
	case req.epoch != c.epoch:
		c.logger.Debug("discarding stale page", "index", req.index, "epoch", req.epoch, "current", c.epoch)
	case err != nil:
		c.err = err
		c.status = domain.StatusError
		// Navigation queued behind a failed fetch is dropped; only a reset survives
		if c.queued != intentFirst {
			c.queued = intentNone
		}
		if errors.Is(err, context.DeadlineExceeded) {
			c.logger.Error("page fetch timed out", "error", err, "index", req.index)
		} else {
			c.logger.Error("page fetch failed", "error", err, "index", req.index)
		}
	default:
		c.pages[req.index] = page
		c.count = page.TotalCount
		c.active = req.index
		c.err = nil
		c.status = domain.StatusReady
		c.evictLocked()
		c.logger.Debug("page loaded", "index", req.index, "items", len(page.Items), "count", page.TotalCount)
	}

	c.drainLocked()
	seq, snap, observers := c.publishLocked()
	c.mu.Unlock()

	// Wait returns only after observers have seen the settled state
	c.notify(seq, observers, snap)

	c.mu.Lock()
	c.settleLocked()
	c.mu.Unlock()
}

// drainLocked runs the queued intent once no fetch is in flight
func (c *Cache) drainLocked() {
	if c.inflight != nil {
		return
	}
	next := c.queued
	c.queued = intentNone

	switch next {
	case intentFirst:
		c.startLocked(0)
	case intentNext:
		c.nextLocked()
	case intentPrev:
		c.prevLocked()
	}
}

// settleLocked releases Wait callers when nothing is in flight
func (c *Cache) settleLocked() {
	if c.inflight == nil && c.idle != nil {
		close(c.idle)
		c.idle = nil
	}
}

// isLastLocked reports whether no page follows the active one
func (c *Cache) isLastLocked() bool {
	page, ok := c.pages[c.active]
	if !ok || !page.HasNext {
		return true
	}
	return c.pageSize > 0 && len(page.Items) < c.pageSize
}

// evictLocked trims cached pages to maxPages in paged mode
func (c *Cache) evictLocked() {
	if c.maxPages <= 0 || c.mode != domain.ModePaged {
		return
	}
	for len(c.pages) > c.maxPages {
		victim, farthest := -1, -1
		for idx := range c.pages {
			if idx == c.active {
				continue
			}
			d := idx - c.active
			if d < 0 {
				d = -d
			}
			if d > farthest || (d == farthest && idx > victim) {
				victim, farthest = idx, d
			}
		}
		if victim < 0 {
			return
		}
		delete(c.pages, victim)
		c.logger.Debug("evicted page", "index", victim)
	}
}

func (c *Cache) snapshotLocked() domain.QueueSnapshot {
	snap := domain.QueueSnapshot{
		Kind:        c.kind,
		Count:       c.count,
		ActiveIndex: c.active,
		IsFirst:     c.active == 0,
		IsLast:      c.isLastLocked(),
		IsLoading:   c.inflight != nil,
		Status:      c.status,
		Mode:        c.mode,
		Err:         c.err,
	}

	if c.mode == domain.ModeAccumulating {
		var items []domain.Card
		for i := c.base; i <= c.active; i++ {
			if page, ok := c.pages[i]; ok {
				items = append(items, page.Items...)
			}
		}
		snap.CurrentPage = items
	} else if page, ok := c.pages[c.active]; ok {
		snap.CurrentPage = slices.Clone(page.Items)
	}

	if snap.CurrentPage == nil {
		snap.CurrentPage = []domain.Card{}
	}
	return snap
}

// publishLocked stamps the current state for delivery
func (c *Cache) publishLocked() (uint64, domain.QueueSnapshot, []func(domain.QueueSnapshot)) {
	c.seq++
	return c.seq, c.snapshotLocked(), c.observersLocked()
}

func (c *Cache) observersLocked() []func(domain.QueueSnapshot) {
	out := make([]func(domain.QueueSnapshot), 0, len(c.observers))
	for _, fn := range c.observers {
		out = append(out, fn)
	}
	return out
}

// notify delivers snap unless a newer snapshot has already been delivered
func (c *Cache) notify(seq uint64, observers []func(domain.QueueSnapshot), snap domain.QueueSnapshot) {
	c.notifyMu.Lock()
	defer c.notifyMu.Unlock()
	if seq <= c.delivered {
		return
	}
	c.delivered = seq
	for _, fn := range observers {
		fn(snap)
	}
}
