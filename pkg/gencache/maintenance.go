package gencache

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// evictTargetPct sets the post-eviction target at 80% of the budget, so a
// single pass leaves headroom instead of re-triggering on the next insert.
const evictTargetPct = 80

// Maintainer runs the two cache maintenance operations, expiry sweep and
// size-budget eviction, on a background worker fed by a job queue. Both
// operations are idempotent delete-where statements, so redundant or
// concurrent passes are harmless.
type Maintainer struct {
	store  EntryStore
	policy Policy
	log    zerolog.Logger
	jobs   chan struct{}
	done   chan struct{}
	wg     sync.WaitGroup
	now    func() time.Time
}

// NewMaintainer starts the maintenance worker.
func NewMaintainer(store EntryStore, policy Policy, logger zerolog.Logger) *Maintainer {
	m := &Maintainer{
		store:  store,
		policy: policy,
		log:    logger.With().Str("component", "gencache-maintenance").Logger(),
		jobs:   make(chan struct{}, 1),
		done:   make(chan struct{}),
		now:    time.Now,
	}
	m.wg.Add(1)
	go m.run()
	return m
}

// Schedule requests a maintenance pass without blocking the caller. A pass
// already queued absorbs the request.
func (m *Maintainer) Schedule() {
	select {
	case m.jobs <- struct{}{}:
	default:
	}
}

// RunOnce runs both maintenance operations synchronously. External
// schedulers (cron, CLI) call this directly; tests use it to drain
// scheduled work deterministically.
func (m *Maintainer) RunOnce(ctx context.Context) {
	if n, err := m.SweepExpired(ctx); err != nil {
		m.log.Error().Err(err).Msg("expiry sweep failed")
	} else if n > 0 {
		m.log.Debug().Int64("deleted", n).Msg("expiry sweep")
	}

	if n, err := m.EnforceBudget(ctx); err != nil {
		m.log.Error().Err(err).Msg("budget eviction failed")
	} else if n > 0 {
		m.log.Debug().Int64("evicted", n).Msg("budget eviction")
	}
}

// SweepExpired deletes all entries whose expiry has passed and returns the
// count deleted.
func (m *Maintainer) SweepExpired(ctx context.Context) (int64, error) {
	return m.store.DeleteExpired(ctx, m.now())
}

// EnforceBudget estimates the cache footprint as entry count times the
// per-entry unit cost. When the estimate exceeds the budget it deletes the
// least recently accessed entries until the count reaches 80% of budget.
func (m *Maintainer) EnforceBudget(ctx context.Context) (int64, error) {
	count, err := m.store.Count(ctx)
	if err != nil {
		return 0, err
	}

	used := count * EntryUnitCost
	if used <= int64(m.policy.MaxBudgetUnits) {
		return 0, nil
	}

	target := int64(m.policy.MaxBudgetUnits) * evictTargetPct / 100 / EntryUnitCost
	return m.store.DeleteOldest(ctx, count-target)
}

// Close stops the worker after the in-flight pass, if any, completes.
func (m *Maintainer) Close() {
	close(m.done)
	m.wg.Wait()
}

func (m *Maintainer) run() {
	defer m.wg.Done()
	for {
		select {
		case <-m.done:
			return
		case <-m.jobs:
			m.RunOnce(context.Background())
		}
	}
}
