package merkle

import (
	"encoding/json"
	"time"
)

// Bucket types.
const (
	TypePrompt  = "prompt"
	TypeVerdict = "verdict"
)

// Bucket is the hashed content of a node.
//
// A prompt bucket carries what was sent upstream; a verdict bucket carries
// the shaped payload that was returned to the caller.
type Bucket struct {
	Type        string          `json:"type"`
	Revision    string          `json:"revision,omitempty"`
	Model       string          `json:"model,omitempty"`
	Ingredients string          `json:"ingredients,omitempty"`
	Prompt      string          `json:"prompt,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`

	// Epoch is the cache window a verdict was fetched in. Identical answers
	// fetched in different windows hash to different nodes, so a refetched
	// verdict gets its own CreatedAt.
	Epoch int64 `json:"epoch,omitempty"`
}

// PromptBucket builds the root bucket for an outbound prompt.
func PromptBucket(revision, model, ingredients, prompt string) Bucket {
	return Bucket{
		Type:        TypePrompt,
		Revision:    revision,
		Model:       model,
		Ingredients: ingredients,
		Prompt:      prompt,
	}
}

// VerdictBucket builds the child bucket for a shaped upstream answer.
func VerdictBucket(payload json.RawMessage) Bucket {
	return Bucket{
		Type:    TypeVerdict,
		Payload: payload,
	}
}

// CacheEpoch returns the index of the ttl-long window containing t. It is 0
// when ttl is not positive.
func CacheEpoch(t time.Time, ttl time.Duration) int64 {
	if ttl <= 0 {
		return 0
	}
	return t.UnixNano() / int64(ttl)
}
