package registry

import (
	"context"
	"errors"
	"log/slog"

	"github.com/mmcdole/recall/internal/domain"
	"github.com/mmcdole/recall/internal/mutation"
	"github.com/mmcdole/recall/internal/queue"
)

// Registry composes one cache per card view with the mutation coordinator.
// Create one per authenticated session and Close it on logout.
type Registry struct {
	caches    map[domain.Kind]*queue.Cache
	mutations *mutation.Coordinator
	logger    *slog.Logger
}

type config struct {
	logger    *slog.Logger
	cacheOpts []queue.Option
}

// Option configures a Registry
type Option func(*config)

// WithLogger sets the logger shared by every cache
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithCacheOptions applies opts to each of the five caches
func WithCacheOptions(opts ...queue.Option) Option {
	return func(c *config) {
		c.cacheOpts = append(c.cacheOpts, opts...)
	}
}

// New builds the five caches and the coordinator. filter may be nil; when
// set, a selection change resets every cache to its first page.
func New(fetcher domain.PageFetcher, writer domain.CardWriter, filter domain.CategoryFilter, opts ...Option) *Registry {
	cfg := &config{logger: slog.Default()}
	for _, opt := range opts {
		opt(cfg)
	}

	r := &Registry{
		caches: make(map[domain.Kind]*queue.Cache, len(domain.Kinds)),
		logger: cfg.logger,
	}

	resetters := make(map[domain.Kind]mutation.Resetter, len(domain.Kinds))
	for _, kind := range domain.Kinds {
		cacheOpts := append([]queue.Option{queue.WithLogger(cfg.logger)}, cfg.cacheOpts...)
		if filter != nil {
			cacheOpts = append(cacheOpts, queue.WithCategories(filter))
		}
		c := queue.New(kind, fetcher, cacheOpts...)
		r.caches[kind] = c
		resetters[kind] = c
	}

	r.mutations = mutation.NewCoordinator(writer, resetters, cfg.logger)
	return r
}

// Queued returns the cache of cards not yet memorized
func (r *Registry) Queued() *queue.Cache { return r.caches[domain.KindQueued] }

// Outstanding returns the cache of cards due for review
func (r *Registry) Outstanding() *queue.Cache { return r.caches[domain.KindOutstanding] }

// Cram returns the cache of cards marked for cramming
func (r *Registry) Cram() *queue.Cache { return r.caches[domain.KindCram] }

// Memorized returns the cache of memorized cards
func (r *Registry) Memorized() *queue.Cache { return r.caches[domain.KindMemorized] }

// All returns the cache of every card
func (r *Registry) All() *queue.Cache { return r.caches[domain.KindAll] }

// Queue returns the cache of kind, or nil for an unknown kind
func (r *Registry) Queue(kind domain.Kind) *queue.Cache {
	return r.caches[kind]
}

// Mutations returns the review actions
func (r *Registry) Mutations() *mutation.Coordinator {
	return r.mutations
}

// Load mounts every cache
func (r *Registry) Load() {
	for _, kind := range domain.Kinds {
		r.caches[kind].Load()
	}
}

// GoToFirst resets every cache
func (r *Registry) GoToFirst() {
	for _, kind := range domain.Kinds {
		r.caches[kind].GoToFirst()
	}
}

// Wait blocks until every cache is idle
func (r *Registry) Wait(ctx context.Context) error {
	for _, kind := range domain.Kinds {
		if err := r.caches[kind].Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Errors returns the last fetch failure of each failing cache
func (r *Registry) Errors() map[domain.Kind]error {
	out := make(map[domain.Kind]error)
	for _, kind := range domain.Kinds {
		if err := r.caches[kind].Snapshot().Err; err != nil {
			out[kind] = err
		}
	}
	return out
}

// AuthFailed reports whether any cache was refused by the server
func (r *Registry) AuthFailed() bool {
	for _, err := range r.Errors() {
		if errors.Is(err, domain.ErrAuthFailed) {
			return true
		}
	}
	return false
}

// Close cancels all in-flight work
func (r *Registry) Close() {
	for _, kind := range domain.Kinds {
		r.caches[kind].Close()
	}
	r.logger.Debug("registry closed")
}
