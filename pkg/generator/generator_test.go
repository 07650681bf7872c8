package generator

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sessionforge/sessionforge/pkg/gencache"
	"github.com/sessionforge/sessionforge/pkg/genlog"
	"github.com/sessionforge/sessionforge/pkg/models"
)

func testRequest() models.OutlineRequest {
	return models.OutlineRequest{
		Params: models.OutlineParams{
			Category:        "leadership",
			SessionType:     "workshop",
			DesiredOutcome:  "team alignment",
			DurationMinutes: 90,
			VariantIndex:    0,
		},
		Fields: map[string]any{"title": "Q3 offsite"},
	}
}

func newTestEngine(t *testing.T) *gencache.Engine {
	t.Helper()
	store, err := gencache.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	policy := gencache.Policy{Enabled: true, TTL: 24 * time.Hour, MaxBudgetUnits: 100}
	return gencache.NewEngine(store, policy, nil, nil, zerolog.Nop())
}

func TestGenerateCachesResult(t *testing.T) {
	var calls atomic.Int64
	gen := func(ctx context.Context, req models.OutlineRequest) (json.RawMessage, error) {
		calls.Add(1)
		return json.RawMessage(`{"blocks":["intro","exercise"]}`), nil
	}

	g := New(newTestEngine(t), gen, nil, zerolog.Nop())
	ctx := context.Background()
	req := testRequest()

	artifact, cached, err := g.Generate(ctx, req)
	require.NoError(t, err)
	assert.False(t, cached, "first call must invoke the generator")
	assert.JSONEq(t, `{"blocks":["intro","exercise"]}`, string(artifact))

	artifact, cached, err = g.Generate(ctx, req)
	require.NoError(t, err)
	assert.True(t, cached, "second call must be served from cache")
	assert.JSONEq(t, `{"blocks":["intro","exercise"]}`, string(artifact))

	assert.Equal(t, int64(1), calls.Load(), "generator invoked exactly once")
}

func TestGenerateErrorPropagates(t *testing.T) {
	genErr := errors.New("model overloaded")
	gen := func(ctx context.Context, req models.OutlineRequest) (json.RawMessage, error) {
		return nil, genErr
	}

	g := New(newTestEngine(t), gen, nil, zerolog.Nop())
	_, cached, err := g.Generate(context.Background(), testRequest())
	assert.False(t, cached)
	assert.ErrorIs(t, err, genErr)
}

func TestGenerateFailedGenerationNotCached(t *testing.T) {
	var calls atomic.Int64
	gen := func(ctx context.Context, req models.OutlineRequest) (json.RawMessage, error) {
		if calls.Add(1) == 1 {
			return nil, errors.New("transient failure")
		}
		return json.RawMessage(`"recovered"`), nil
	}

	g := New(newTestEngine(t), gen, nil, zerolog.Nop())
	ctx := context.Background()
	req := testRequest()

	_, _, err := g.Generate(ctx, req)
	require.Error(t, err)

	artifact, cached, err := g.Generate(ctx, req)
	require.NoError(t, err)
	assert.False(t, cached, "failure must not have been cached")
	assert.Equal(t, `"recovered"`, string(artifact))
}

func TestGenerateRecordsInvocations(t *testing.T) {
	glog, err := genlog.New(models.GenLogConfig{
		Enabled:       true,
		DBPath:        filepath.Join(t.TempDir(), "genlog.db"),
		RetentionDays: 30,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = glog.Close() })

	gen := func(ctx context.Context, req models.OutlineRequest) (json.RawMessage, error) {
		return json.RawMessage(`"ok"`), nil
	}

	g := New(newTestEngine(t), gen, glog, zerolog.Nop())
	ctx := context.Background()
	req := testRequest()

	_, _, err = g.Generate(ctx, req)
	require.NoError(t, err)
	_, _, err = g.Generate(ctx, req)
	require.NoError(t, err)

	records, err := glog.Query(ctx, models.GenQueryOpts{})
	require.NoError(t, err)
	require.Len(t, records, 2)

	hits := 0
	for _, r := range records {
		require.NotEmpty(t, r.RequestID)
		assert.Equal(t, "leadership", r.Category)
		if r.CacheHit {
			hits++
		}
	}
	assert.Equal(t, 1, hits, "one miss, one hit")
}
