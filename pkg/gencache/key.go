package gencache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/sessionforge/sessionforge/pkg/models"
)

// keyPrefixLen is how many hex characters of a cache key are exposed to
// logs and analytics. Never the full key.
const keyPrefixLen = 8

// DeriveCacheKey reduces a generation request to a stable cache key: a
// SHA-256 digest over only the fields that materially affect the generated
// outline. Canonical JSON keeps the digest order-independent (encoding/json
// sorts map keys lexicographically, recursively), so logically identical
// requests built from differently-ordered inputs still collide.
func DeriveCacheKey(params models.OutlineParams) string {
	return digest(semanticFields(params))
}

// DeriveRequestHash digests the entire request: the semantic parameters
// plus every extra field the client sent. It is a safety net used only to
// detect the rare case where two distinct requests collide on the narrower
// cache key; it never drives lookup.
func DeriveRequestHash(params models.OutlineParams, extra map[string]any) string {
	return digest(map[string]any{
		"params": semanticFields(params),
		"fields": extra,
	})
}

// SourceFingerprint derives a short stable fingerprint from retrieval
// citations, so changing the evidence set invalidates the cache even when
// the literal request did not change. Citation order does not matter.
func SourceFingerprint(refs []models.SourceRef) string {
	if len(refs) == 0 {
		return ""
	}
	parts := make([]string, len(refs))
	for i, r := range refs {
		parts[i] = fmt.Sprintf("%s=%.4f", r.ID, r.Score)
	}
	sort.Strings(parts)
	sum := sha256.Sum256([]byte(strings.Join(parts, ";")))
	return hex.EncodeToString(sum[:8])
}

// KeyPrefix returns the loggable prefix of a cache key.
func KeyPrefix(cacheKey string) string {
	if len(cacheKey) > keyPrefixLen {
		return cacheKey[:keyPrefixLen]
	}
	return cacheKey
}

func semanticFields(params models.OutlineParams) map[string]any {
	return map[string]any{
		"category":        params.Category,
		"session_type":    params.SessionType,
		"desired_outcome": params.DesiredOutcome,
		"duration":        params.DurationMinutes,
		"audience":        params.AudienceID,
		"tone":            params.ToneID,
		"location":        params.LocationID,
		"variant":         params.VariantIndex,
		"instructions":    params.Instructions,
		"sources":         SourceFingerprint(params.SourceRefs),
	}
}

func digest(fields map[string]any) string {
	data, err := json.Marshal(fields)
	if err != nil {
		// Request payloads are plain JSON values; if a caller sneaks in an
		// unmarshalable one, hash the error text rather than panic.
		data = []byte(err.Error())
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
