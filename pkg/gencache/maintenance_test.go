package gencache

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestMaintainer(t *testing.T, store EntryStore, policy Policy) (*Maintainer, *fakeClock) {
	t.Helper()
	m := NewMaintainer(store, policy, zerolog.Nop())
	clock := newFakeClock()
	m.now = clock.Now
	t.Cleanup(m.Close)
	return m, clock
}

func TestSweepExpired(t *testing.T) {
	store := newTestStore(t)
	m, clock := newTestMaintainer(t, store, testPolicy())
	ctx := context.Background()
	now := clock.Now()

	for i := 0; i < 3; i++ {
		e := testEntry(fmt.Sprintf("dead%d", i), 0, now.Add(-48*time.Hour))
		e.ExpiresAt = now.Add(-time.Hour)
		_, err := store.Insert(ctx, e)
		require.NoError(t, err)
	}
	_, err := store.Insert(ctx, testEntry("live", 0, now))
	require.NoError(t, err)

	n, err := m.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)

	// Idempotent: a second pass finds nothing.
	n, err = m.SweepExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestEnforceBudgetEvictsLRU(t *testing.T) {
	store := newTestStore(t)
	policy := testPolicy()
	policy.MaxBudgetUnits = 10
	m, clock := newTestMaintainer(t, store, policy)
	ctx := context.Background()
	base := clock.Now()

	// 15 entries against a 10-unit budget; target is 8 (80%).
	for i := 0; i < 15; i++ {
		e := testEntry(fmt.Sprintf("k%02d", i), 0, base.Add(time.Duration(i)*time.Minute))
		_, err := store.Insert(ctx, e)
		require.NoError(t, err)
	}

	n, err := m.EnforceBudget(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(8), count)

	// The oldest-accessed entries are exactly the ones that went.
	for i := 0; i < 7; i++ {
		_, err := store.Get(ctx, fmt.Sprintf("k%02d", i), 0)
		assert.ErrorIs(t, err, ErrNotFound, "k%02d should be evicted", i)
	}
	for i := 7; i < 15; i++ {
		_, err := store.Get(ctx, fmt.Sprintf("k%02d", i), 0)
		assert.NoError(t, err, "k%02d should survive", i)
	}
}

func TestEnforceBudgetUnderBudgetIsNoop(t *testing.T) {
	store := newTestStore(t)
	m, clock := newTestMaintainer(t, store, testPolicy())
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := store.Insert(ctx, testEntry(fmt.Sprintf("k%d", i), 0, clock.Now()))
		require.NoError(t, err)
	}

	n, err := m.EnforceBudget(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(5), count)
}

func TestScheduleNeverBlocks(t *testing.T) {
	store := newTestStore(t)
	m, _ := newTestMaintainer(t, store, testPolicy())

	done := make(chan struct{})
	go func() {
		for i := 0; i < 100; i++ {
			m.Schedule()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Schedule blocked the caller")
	}
}

func TestScheduledPassRuns(t *testing.T) {
	store := newTestStore(t)
	m, clock := newTestMaintainer(t, store, testPolicy())
	ctx := context.Background()

	e := testEntry("dead", 0, clock.Now().Add(-48*time.Hour))
	e.ExpiresAt = clock.Now().Add(-time.Hour)
	_, err := store.Insert(ctx, e)
	require.NoError(t, err)

	m.Schedule()

	deadline := time.After(5 * time.Second)
	for {
		count, err := store.Count(ctx)
		require.NoError(t, err)
		if count == 0 {
			return
		}
		select {
		case <-deadline:
			t.Fatal("scheduled maintenance pass never ran")
		case <-time.After(10 * time.Millisecond):
		}
	}
}

func TestRunOncePerformsBothPasses(t *testing.T) {
	store := newTestStore(t)
	policy := testPolicy()
	policy.MaxBudgetUnits = 4
	m, clock := newTestMaintainer(t, store, policy)
	ctx := context.Background()
	base := clock.Now()

	expired := testEntry("dead", 0, base.Add(-48*time.Hour))
	expired.ExpiresAt = base.Add(-time.Hour)
	_, err := store.Insert(ctx, expired)
	require.NoError(t, err)

	for i := 0; i < 6; i++ {
		_, err := store.Insert(ctx, testEntry(fmt.Sprintf("k%d", i), 0, base.Add(time.Duration(i)*time.Minute)))
		require.NoError(t, err)
	}

	m.RunOnce(ctx)

	count, err := store.Count(ctx)
	require.NoError(t, err)
	// Sweep removes the expired row, eviction trims the rest to 80% of 4.
	assert.Equal(t, int64(3), count)

	_, err = store.Get(ctx, "dead", 0)
	assert.ErrorIs(t, err, ErrNotFound)
}
