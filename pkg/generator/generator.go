package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sessionforge/sessionforge/pkg/gencache"
	"github.com/sessionforge/sessionforge/pkg/genlog"
	"github.com/sessionforge/sessionforge/pkg/models"
)

// Generator produces a session outline for a request. It is expensive and
// non-deterministic; the whole point of the cache is to not call it twice
// for semantically identical requests.
type Generator func(ctx context.Context, req models.OutlineRequest) (json.RawMessage, error)

// CachedGenerator wraps a Generator with read-through caching: lookup
// first, invoke on miss, persist the fresh artifact, and log every
// invocation. The cache stays a pure optimization: a cache fault never
// fails a generation, and a generation failure is returned untouched.
type CachedGenerator struct {
	engine   *gencache.Engine
	generate Generator
	genlog   *genlog.Logger
	log      zerolog.Logger
}

// New wires a CachedGenerator. The generation log is optional.
func New(engine *gencache.Engine, generate Generator, glog *genlog.Logger, logger zerolog.Logger) *CachedGenerator {
	return &CachedGenerator{
		engine:   engine,
		generate: generate,
		genlog:   glog,
		log:      logger.With().Str("component", "generator").Logger(),
	}
}

// Generate returns the outline for the request and whether it came from
// the cache.
func (g *CachedGenerator) Generate(ctx context.Context, req models.OutlineRequest) (json.RawMessage, bool, error) {
	start := time.Now()

	if lookup := g.engine.Get(ctx, req.Params, req.Fields); lookup.Hit {
		g.record(ctx, req, true, time.Since(start))
		return lookup.Artifact, true, nil
	}

	artifact, err := g.generate(ctx, req)
	if err != nil {
		return nil, false, fmt.Errorf("generate outline: %w", err)
	}

	g.engine.Put(ctx, req.Params, req.Fields, artifact)
	g.record(ctx, req, false, time.Since(start))
	return artifact, false, nil
}

func (g *CachedGenerator) record(ctx context.Context, req models.OutlineRequest, hit bool, latency time.Duration) {
	if g.genlog == nil {
		return
	}
	rec := models.GenRecord{
		RequestID:      uuid.NewString(),
		CacheKeyPrefix: gencache.KeyPrefix(gencache.DeriveCacheKey(req.Params)),
		VariantIndex:   req.Params.VariantIndex,
		Category:       req.Params.Category,
		SessionType:    req.Params.SessionType,
		CacheHit:       hit,
		LatencyMs:      latency.Milliseconds(),
		CreatedAt:      time.Now().UTC(),
	}
	if err := g.genlog.Record(ctx, rec); err != nil {
		g.log.Debug().Err(err).Msg("generation log write failed")
	}
}
