// Package analysis relays ingredient lists to the upstream language model:
// it builds the prompt for the active revision, queries upstream once,
// shapes the answer and records the exchange.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/papercomputeco/foodlens/pkg/merkle"
	"github.com/papercomputeco/foodlens/pkg/prompt"
)

// Querier sends a prompt upstream and returns the JSON body.
type Querier interface {
	Query(ctx context.Context, prompt, model string) (json.RawMessage, error)
}

// Profile is the active revision and model.
type Profile struct {
	Revision prompt.Revision
	Model    string
}

// Options are the optional collaborators of a Service.
type Options struct {
	// Storer records every prompt and verdict. Nil disables recording.
	Storer merkle.Storer

	// CacheTTL reuses a recorded verdict for an identical prompt younger than
	// the TTL. Zero disables the cache. Requires Storer.
	CacheTTL time.Duration

	// Metrics may be nil.
	Metrics *Metrics
}

// Result is a shaped analysis.
type Result struct {
	Body        json.RawMessage
	Revision    string
	Model       string
	PromptHash  string
	VerdictHash string
	Cached      bool
}

// Service is safe for concurrent use.
type Service struct {
	querier Querier
	profile atomic.Pointer[Profile]
	opts    Options
	logger  *zap.Logger
}

// New creates a Service.
func New(querier Querier, profile Profile, opts Options, logger *zap.Logger) (*Service, error) {
	if opts.CacheTTL > 0 && opts.Storer == nil {
		return nil, fmt.Errorf("cache requires a record store")
	}

	s := &Service{
		querier: querier,
		opts:    opts,
		logger:  logger,
	}
	s.profile.Store(&profile)
	return s, nil
}

// Profile returns the active profile.
func (s *Service) Profile() Profile {
	return *s.profile.Load()
}

// SetProfile swaps the active profile. In-flight analyses keep the profile
// they started with.
func (s *Service) SetProfile(p Profile) {
	s.profile.Store(&p)
	s.logger.Info("analysis profile updated",
		zap.String("revision", p.Revision.Name),
		zap.String("model", p.Model),
	)
}

// Analyze relays ingredients upstream and shapes the answer for the caller.
func (s *Service) Analyze(ctx context.Context, ingredients string) (*Result, error) {
	p := s.Profile()
	text := p.Revision.Build(ingredients)
	promptNode := merkle.NewNode(merkle.PromptBucket(p.Revision.Name, p.Model, ingredients, text), nil)

	result := &Result{
		Revision:   p.Revision.Name,
		Model:      p.Model,
		PromptHash: promptNode.Hash,
	}

	if cached := s.lookup(ctx, promptNode); cached != nil {
		s.opts.Metrics.observe(p.Revision.Name, outcomeCached)
		s.logger.Debug("serving cached verdict",
			zap.String("prompt_hash", truncate(promptNode.Hash, 16)),
			zap.String("verdict_hash", truncate(cached.Hash, 16)),
		)
		result.Body = cached.Bucket.Payload
		result.VerdictHash = cached.Hash
		result.Cached = true
		return result, nil
	}

	s.logger.Debug("querying upstream",
		zap.String("revision", p.Revision.Name),
		zap.String("model", p.Model),
		zap.Int("prompt_size", len(text)),
		zap.String("ingredients_preview", truncate(ingredients, 50)),
	)

	start := time.Now()
	payload, err := s.querier.Query(ctx, text, p.Model)
	s.opts.Metrics.observeUpstream(p.Model, time.Since(start))
	if err != nil {
		s.opts.Metrics.observe(p.Revision.Name, outcomeUpstream)
		return nil, newUpstreamError("upstream request failed", err)
	}

	body, err := shapeResponse(p.Revision.Shape, payload)
	if err != nil {
		s.opts.Metrics.observe(p.Revision.Name, outcomeShape)
		s.logger.Warn("unexpected upstream payload",
			zap.String("revision", p.Revision.Name),
			zap.String("payload_preview", truncate(string(payload), 200)),
			zap.Error(err),
		)
		return nil, newUpstreamError("unexpected upstream response", err)
	}

	s.opts.Metrics.observe(p.Revision.Name, outcomeOK)
	result.Body = body
	result.VerdictHash = s.record(ctx, promptNode, body)
	return result, nil
}

// lookup returns a fresh recorded verdict for the prompt, or nil.
func (s *Service) lookup(ctx context.Context, promptNode *merkle.Node) *merkle.Node {
	if s.opts.CacheTTL <= 0 || s.opts.Storer == nil {
		return nil
	}

	latest, err := merkle.Latest(ctx, s.opts.Storer, promptNode.Hash)
	if err != nil {
		s.logger.Warn("cache lookup failed", zap.Error(err))
		return nil
	}
	if latest == nil || time.Since(latest.CreatedAt) > s.opts.CacheTTL {
		return nil
	}
	return latest
}

// record stores the exchange and returns the verdict hash. Failures are
// logged and never fail the analysis.
// With the cache on, verdicts carry the cache epoch, so a verdict refetched
// after the TTL is a new node with a fresh CreatedAt even when the upstream
// repeats itself.
func (s *Service) record(ctx context.Context, promptNode *merkle.Node, body json.RawMessage) string {
	bucket := merkle.VerdictBucket(body)
	bucket.Epoch = merkle.CacheEpoch(time.Now(), s.opts.CacheTTL)
	verdict := merkle.NewNode(bucket, promptNode)
	if s.opts.Storer == nil {
		return verdict.Hash
	}

	for _, node := range []*merkle.Node{promptNode, verdict} {
		if _, err := s.opts.Storer.Put(ctx, node); err != nil {
			s.opts.Metrics.recordFailed()
			s.logger.Error("failed to record analysis", zap.String("type", node.Bucket.Type), zap.Error(err))
			return verdict.Hash
		}
	}

	s.logger.Info("analysis recorded",
		zap.String("prompt_hash", truncate(promptNode.Hash, 16)),
		zap.String("verdict_hash", truncate(verdict.Hash, 16)),
	)
	return verdict.Hash
}

// truncate shortens s to maxLen runes for log previews.
func truncate(s string, maxLen int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	return string([]rune(s)[:maxLen]) + "..."
}
