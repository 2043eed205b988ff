package refresh

import (
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/mmcdole/recall/internal/domain"
)

// Target is a cache the refresher can reload
type Target interface {
	Snapshot() domain.QueueSnapshot
	GoToFirst()
}

// Refresher periodically reloads the due-card view so cards that become due
// while the client is open show up without user action.
type Refresher struct {
	target    Target
	interval  time.Duration
	scheduler *gocron.Scheduler
	logger    *slog.Logger

	mu      sync.Mutex
	running bool
}

// New creates a refresher for target. An interval of zero disables it.
func New(target Target, interval time.Duration, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()
	return &Refresher{
		target:    target,
		interval:  interval,
		scheduler: s,
		logger:    logger,
	}
}

// Start schedules the refresh job without blocking
func (r *Refresher) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running || r.interval <= 0 {
		return nil
	}
	if _, err := r.scheduler.Every(r.interval).WaitForSchedule().Do(r.Tick); err != nil {
		return fmt.Errorf("failed to schedule refresh: %w", err)
	}
	r.scheduler.StartAsync()
	r.running = true
	r.logger.Info("refresher started", "interval", r.interval)
	return nil
}

// Stop cancels future refreshes
func (r *Refresher) Stop() {
	r.mu.Lock()
	defer r.mu.Unlock()

	if !r.running {
		return
	}
	r.scheduler.Stop()
	r.scheduler.Clear()
	r.running = false
	r.logger.Info("refresher stopped")
}

// Tick reloads the target when the user is looking at its first page.
// A reader paging deeper or scrolling an accumulated list is left alone.
func (r *Refresher) Tick() {
	snap := r.target.Snapshot()
	switch {
	case snap.Status == domain.StatusIdle:
		return
	case snap.IsLoading:
		return
	case snap.ActiveIndex != 0 || snap.Mode == domain.ModeAccumulating:
		r.logger.Debug("refresh skipped, reader is past the first page", "kind", snap.Kind)
		return
	}
	r.logger.Debug("refreshing", "kind", snap.Kind)
	r.target.GoToFirst()
}
