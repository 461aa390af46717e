package scheduler

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"tubefeed/internal/models"
	"tubefeed/internal/store"
	"tubefeed/pkg/tasks"
)

// Clock abstracts wall time so due-time selection is testable.
type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

// RealClock returns the wall clock.
func RealClock() Clock { return realClock{} }

// Scheduler periodically scans enabled collection sources and enqueues a
// refresh job for each one that is due. It only produces jobs; all media
// work happens in the worker pool. Constructed explicitly with its
// interval and clock, started and stopped by the process lifecycle.
type Scheduler struct {
	store           store.Store
	queue           tasks.TaskEnqueuer
	clock           Clock
	checkInterval   time.Duration
	defaultInterval time.Duration
	maxRetry        int
}

func New(st store.Store, queue tasks.TaskEnqueuer, clock Clock, checkInterval, defaultInterval time.Duration, maxRetry int) *Scheduler {
	return &Scheduler{
		store:           st,
		queue:           queue,
		clock:           clock,
		checkInterval:   checkInterval,
		defaultInterval: defaultInterval,
		maxRetry:        maxRetry,
	}
}

// Run ticks until the context is cancelled. The first scan happens
// immediately so a restart does not delay overdue refreshes by a full
// check interval.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.checkInterval)
	defer ticker.Stop()

	if err := s.Tick(ctx); err != nil {
		log.Printf("Scheduler tick failed: %v", err)
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := s.Tick(ctx); err != nil {
				log.Printf("Scheduler tick failed: %v", err)
			}
		}
	}
}

// Tick runs one scan: select due collections and enqueue one refresh job
// each. A collection with a refresh still in flight is never selected,
// so slow refreshes cannot pile up.
func (s *Scheduler) Tick(ctx context.Context) error {
	sources, err := s.store.ListEnabledCollectionSources(ctx)
	if err != nil {
		return fmt.Errorf("failed to list collection sources: %w", err)
	}

	now := s.clock.Now()
	queued := 0
	for _, src := range sources {
		if !s.Due(&src, now) {
			continue
		}
		task, err := tasks.NewRefreshCollectionTask(src.ID)
		if err != nil {
			return err
		}
		if _, err := s.queue.Enqueue(task, asynq.MaxRetry(s.maxRetry)); err != nil {
			return fmt.Errorf("failed to enqueue refresh for %s: %w", src.ID, err)
		}
		if err := s.store.MarkCollectionRefreshRequested(ctx, src.ID, now); err != nil {
			return fmt.Errorf("failed to mark refresh requested for %s: %w", src.ID, err)
		}
		queued++
	}

	if queued > 0 {
		log.Printf("Queued %d collection refreshes", queued)
	}
	return nil
}

// Due reports whether a collection should be refreshed now: never
// refreshed, or past its effective interval, and with no refresh already
// in flight.
func (s *Scheduler) Due(src *models.CollectionSource, now time.Time) bool {
	if refreshInFlight(src) {
		return false
	}
	if src.LastRefreshedAt == nil {
		return true
	}
	return now.Sub(*src.LastRefreshedAt) >= src.RefreshInterval(s.defaultInterval)
}

// refreshInFlight reports whether a refresh job was enqueued and has not
// completed yet; completion always advances last_refreshed_at.
func refreshInFlight(src *models.CollectionSource) bool {
	if src.RefreshRequestedAt == nil {
		return false
	}
	if src.LastRefreshedAt == nil {
		return true
	}
	return src.RefreshRequestedAt.After(*src.LastRefreshedAt)
}
