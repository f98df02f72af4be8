package relay

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/papercomputeco/foodlens/pkg/llm"
	"github.com/papercomputeco/foodlens/pkg/merkle"
)

// HistoryResponse is the chain of records ending at a given node.
type HistoryResponse struct {
	// Entries in chronological order (prompt first, up to and including the requested node)
	Entries []HistoryEntry `json:"entries"`
	// HeadHash is the hash of the node that was requested
	HeadHash string `json:"head_hash"`
	// Depth is the number of entries in the history
	Depth int `json:"depth"`
}

// HistoryEntry is a flattened record node.
type HistoryEntry struct {
	Hash        string          `json:"hash"`
	ParentHash  *string         `json:"parent_hash,omitempty"`
	Type        string          `json:"type"`
	Revision    string          `json:"revision,omitempty"`
	Model       string          `json:"model,omitempty"`
	Ingredients string          `json:"ingredients,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
}

// handleRecordStats returns counts of recorded prompts and verdicts.
func (r *Relay) handleRecordStats(c *fiber.Ctx) error {
	ctx := c.UserContext()

	nodes, err := r.storer.List(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to list nodes"})
	}

	roots, err := r.storer.Roots(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to get roots"})
	}

	leaves, err := r.storer.Leaves(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to get leaves"})
	}

	return c.JSON(map[string]any{
		"total_nodes": len(nodes),
		"root_count":  len(roots),
		"leaf_count":  len(leaves),
	})
}

// handleGetNode returns a single node by its hash.
func (r *Relay) handleGetNode(c *fiber.Ctx) error {
	hash := c.Params("hash")

	node, err := r.storer.Get(c.UserContext(), hash)
	if err != nil {
		return r.lookupError(c, hash, err)
	}

	return c.JSON(node)
}

// handleListHistories returns every prompt→verdict chain, one per leaf.
func (r *Relay) handleListHistories(c *fiber.Ctx) error {
	ctx := c.UserContext()

	leaves, err := r.storer.Leaves(ctx)
	if err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to get leaves"})
	}

	histories := make([]HistoryResponse, 0, len(leaves))
	for _, leaf := range leaves {
		history, err := r.buildHistory(ctx, leaf.Hash)
		if err != nil {
			r.logger.Warn("failed to build history for leaf", zap.String("hash", leaf.Hash), zap.Error(err))
			continue
		}
		histories = append(histories, *history)
	}

	return c.JSON(map[string]any{
		"count":     len(histories),
		"histories": histories,
	})
}

// handleGetHistory returns the chain of records leading up to a given node.
func (r *Relay) handleGetHistory(c *fiber.Ctx) error {
	hash := c.Params("hash")

	history, err := r.buildHistory(c.UserContext(), hash)
	if err != nil {
		return r.lookupError(c, hash, err)
	}

	return c.JSON(history)
}

func (r *Relay) buildHistory(ctx context.Context, hash string) (*HistoryResponse, error) {
	// Ancestry is newest first
	ancestry, err := merkle.Ancestry(ctx, r.storer, hash)
	if err != nil {
		return nil, err
	}

	entries := make([]HistoryEntry, len(ancestry))
	for i, node := range ancestry {
		entries[len(ancestry)-1-i] = HistoryEntry{
			Hash:        node.Hash,
			ParentHash:  node.ParentHash,
			Type:        node.Bucket.Type,
			Revision:    node.Bucket.Revision,
			Model:       node.Bucket.Model,
			Ingredients: node.Bucket.Ingredients,
			Payload:     node.Bucket.Payload,
			CreatedAt:   node.CreatedAt,
		}
	}

	return &HistoryResponse{
		Entries:  entries,
		HeadHash: hash,
		Depth:    len(entries),
	}, nil
}

func (r *Relay) lookupError(c *fiber.Ctx, hash string, err error) error {
	var notFound merkle.ErrNotFound
	if errors.As(err, &notFound) {
		return c.Status(fiber.StatusNotFound).JSON(llm.ErrorResponse{Error: "node not found"})
	}

	r.logger.Error("failed to read record", zap.String("hash", hash), zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(llm.ErrorResponse{Error: "failed to read record"})
}
