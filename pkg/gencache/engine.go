package gencache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/sessionforge/sessionforge/pkg/models"
)

// EntryUnitCost is the approximate budget-unit footprint charged per entry.
// Exact byte accounting is deliberately not attempted; the budget is an
// entry-count budget scaled by this constant.
const EntryUnitCost = 1

// Policy is the immutable cache configuration an Engine is built with.
// Separate engines may run with different policies side by side.
type Policy struct {
	Enabled        bool
	TTL            time.Duration
	MaxBudgetUnits int
}

// HitSink receives a notification for every cache hit. Implementations must
// tolerate being called concurrently; errors are logged and discarded, a
// failing sink never affects cache behavior.
type HitSink interface {
	RecordHit(ctx context.Context, ev models.HitEvent) error
}

// Lookup is the result of a cache read.
type Lookup struct {
	Hit      bool
	Artifact json.RawMessage
	Entry    *models.CacheEntry
}

// Engine orchestrates read-through lookup, collision handling, and
// write-once insertion over an EntryStore. It is strictly an optimization
// for its callers: no storage fault ever propagates out of Get or Put.
type Engine struct {
	store  EntryStore
	policy Policy
	maint  *Maintainer
	sink   HitSink
	log    zerolog.Logger
	now    func() time.Time
}

// NewEngine wires an Engine. The maintainer and sink are optional; a nil
// maintainer disables opportunistic maintenance scheduling and a nil sink
// disables hit analytics.
func NewEngine(store EntryStore, policy Policy, maint *Maintainer, sink HitSink, logger zerolog.Logger) *Engine {
	return &Engine{
		store:  store,
		policy: policy,
		maint:  maint,
		sink:   sink,
		log:    logger.With().Str("component", "gencache").Logger(),
		now:    time.Now,
	}
}

// Get looks up the cached artifact for the request. It returns a miss when
// caching is disabled, when no live entry exists, when the stored entry has
// expired (the stale row is deleted on the way out), when the full-request
// hash disagrees with the stored one (a key collision, also deleted), or
// when the store misbehaves in any way.
func (e *Engine) Get(ctx context.Context, params models.OutlineParams, fields map[string]any) Lookup {
	if !e.policy.Enabled {
		return Lookup{}
	}

	cacheKey := DeriveCacheKey(params)
	requestHash := DeriveRequestHash(params, fields)

	entry, err := e.store.Get(ctx, cacheKey, params.VariantIndex)
	if errors.Is(err, ErrNotFound) {
		return Lookup{}
	}
	if err != nil {
		e.log.Error().Err(err).
			Str("cache_key_prefix", KeyPrefix(cacheKey)).
			Msg("cache lookup failed, treating as miss")
		return Lookup{}
	}

	now := e.now()
	if entry.Expired(now) {
		// Lazy expiration; the maintenance sweep is only a backstop.
		if err := e.store.Delete(ctx, cacheKey, params.VariantIndex); err != nil {
			e.log.Error().Err(err).
				Str("cache_key_prefix", KeyPrefix(cacheKey)).
				Msg("failed to delete expired entry")
		}
		return Lookup{}
	}

	if entry.RequestHash != requestHash {
		// Two distinct full requests reduced to the same narrow key. Should
		// be statistically negligible; a recurring warning here means the
		// semantic key is undersized.
		e.log.Warn().
			Str("cache_key_prefix", KeyPrefix(cacheKey)).
			Int("variant", params.VariantIndex).
			Msg("cache key collision, discarding stored entry")
		if err := e.store.Delete(ctx, cacheKey, params.VariantIndex); err != nil {
			e.log.Error().Err(err).
				Str("cache_key_prefix", KeyPrefix(cacheKey)).
				Msg("failed to delete colliding entry")
		}
		return Lookup{}
	}

	if err := e.store.Touch(ctx, cacheKey, params.VariantIndex, now); err != nil {
		e.log.Error().Err(err).
			Str("cache_key_prefix", KeyPrefix(cacheKey)).
			Msg("cache hit bookkeeping failed, treating as miss")
		return Lookup{}
	}
	entry.HitCount++
	entry.LastAccessed = now

	e.notifyHit(ctx, cacheKey, entry, params)

	return Lookup{Hit: true, Artifact: entry.Artifact, Entry: entry}
}

// Put stores a freshly generated artifact. The expiry is fixed once, at
// insert time; reads never extend it. If a concurrent caller inserted the
// same pair first, the earlier entry is kept and this call silently
// returns. Storage errors are logged and swallowed: failing to cache a
// result never fails the request that already holds its artifact.
func (e *Engine) Put(ctx context.Context, params models.OutlineParams, fields map[string]any, artifact json.RawMessage) {
	if !e.policy.Enabled {
		return
	}

	cacheKey := DeriveCacheKey(params)
	now := e.now()

	entry := models.CacheEntry{
		CacheKey:     cacheKey,
		VariantIndex: params.VariantIndex,
		RequestHash:  DeriveRequestHash(params, fields),
		Artifact:     artifact,
		CreatedAt:    now,
		LastAccessed: now,
		ExpiresAt:    now.Add(e.policy.TTL),
	}

	inserted, err := e.store.Insert(ctx, entry)
	if err != nil {
		e.log.Error().Err(err).
			Str("cache_key_prefix", KeyPrefix(cacheKey)).
			Msg("cache insert failed, dropping artifact")
		return
	}
	if !inserted {
		e.log.Debug().
			Str("cache_key_prefix", KeyPrefix(cacheKey)).
			Int("variant", params.VariantIndex).
			Msg("entry already cached, keeping first writer")
		return
	}

	if e.maint != nil {
		e.maint.Schedule()
	}
}

// Stats aggregates cache counters for observability. Pure read.
func (e *Engine) Stats(ctx context.Context) (models.CacheStats, error) {
	stats, err := e.store.Stats(ctx)
	if err != nil {
		return models.CacheStats{}, fmt.Errorf("cache stats: %w", err)
	}
	stats.BudgetUnitsUsed = stats.TotalEntries * EntryUnitCost
	return stats, nil
}

// Clear wipes all entries. A disabled cache stays untouched.
func (e *Engine) Clear(ctx context.Context) (int64, error) {
	if !e.policy.Enabled {
		return 0, nil
	}
	n, err := e.store.Clear(ctx)
	if err != nil {
		return 0, fmt.Errorf("clear cache: %w", err)
	}
	return n, nil
}

func (e *Engine) notifyHit(ctx context.Context, cacheKey string, entry *models.CacheEntry, params models.OutlineParams) {
	if e.sink == nil {
		return
	}
	ev := models.HitEvent{
		CacheKeyPrefix: KeyPrefix(cacheKey),
		VariantIndex:   entry.VariantIndex,
		HitCount:       entry.HitCount,
		Category:       params.Category,
		SessionType:    params.SessionType,
	}
	if err := e.sink.RecordHit(ctx, ev); err != nil {
		e.log.Debug().Err(err).Msg("hit sink failed")
	}
}
