package models

// OutlineParams holds the fields of a generation request that materially
// affect the generated outline. Only these fields participate in cache key
// derivation; display-only titles and client metadata stay out so that
// logically identical requests share a key.
type OutlineParams struct {
	Category        string      `json:"category"`
	SessionType     string      `json:"session_type"`
	DesiredOutcome  string      `json:"desired_outcome"`
	DurationMinutes int         `json:"duration_minutes"`
	AudienceID      string      `json:"audience_id,omitempty"`
	ToneID          string      `json:"tone_id,omitempty"`
	LocationID      string      `json:"location_id,omitempty"`
	VariantIndex    int         `json:"variant_index"`
	Instructions    string      `json:"instructions,omitempty"`
	SourceRefs      []SourceRef `json:"source_refs,omitempty"`
}

// SourceRef cites a retrieval-augmentation source that was fed to the
// generator, with its similarity score. A changed evidence set must change
// the derived cache key even when the literal request did not.
type SourceRef struct {
	ID    string  `json:"id"`
	Score float64 `json:"score"`
}

// OutlineRequest is a full inbound generation request: the semantic
// parameters plus the raw request fields exactly as the client sent them.
// Fields is a generic mapping so arbitrary extra fields (titles, client
// metadata) participate in collision hashing without the cache knowing
// their shape.
type OutlineRequest struct {
	Params OutlineParams  `json:"params"`
	Fields map[string]any `json:"fields,omitempty"`
}
