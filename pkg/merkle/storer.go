package merkle

import (
	"context"
	"errors"
	"fmt"
)

// Storer defines the interface for persisting and retrieving nodes in a Merkle DAG from a storage backend.
// De-duplication happens automatically via content-addressing: identical content with
// identical parents produces identical hashes and is stored once.
type Storer interface {
	// Put stores a node. If the node already exists (by hash), this is a no-op
	// and the original CreatedAt is kept. It reports whether the node was new.
	Put(ctx context.Context, node *Node) (bool, error)

	// Get retrieves a node by its hash. Returns ErrNotFound if the node doesn't exist.
	Get(ctx context.Context, hash string) (*Node, error)

	// Has checks if a node exists by its hash.
	Has(ctx context.Context, hash string) (bool, error)

	// GetByParent retrieves all nodes that have the given parent hash.
	// Pass nil to get root nodes (nodes with no parent).
	GetByParent(ctx context.Context, parentHash *string) ([]*Node, error)

	// List returns all nodes in the store.
	List(ctx context.Context) ([]*Node, error)

	// Roots returns all root nodes (nodes with no parent).
	Roots(ctx context.Context) ([]*Node, error)

	// Leaves returns all leaf nodes (nodes with no children).
	Leaves(ctx context.Context) ([]*Node, error)

	// Close closes the store and releases any resources.
	Close() error
}

// ErrNotFound is returned when a node doesn't exist in the store.
type ErrNotFound struct {
	Hash string
}

func (e ErrNotFound) Error() string {
	if e.Hash == "" {
		return "node not found"
	}

	return "node not found: " + e.Hash
}

// ErrNilNode is returned by Put when given a nil node.
var ErrNilNode = errors.New("cannot store nil node")

// Ancestry returns the path from a node back to its root (node first, root last).
func Ancestry(ctx context.Context, s Storer, hash string) ([]*Node, error) {
	var path []*Node
	seen := make(map[string]bool)

	current := hash
	for {
		if seen[current] {
			return nil, fmt.Errorf("cycle detected at %s", current)
		}
		seen[current] = true

		node, err := s.Get(ctx, current)
		if err != nil {
			return nil, err
		}
		path = append(path, node)

		if node.ParentHash == nil {
			return path, nil
		}
		current = *node.ParentHash
	}
}

// Latest returns the most recently stored child of the given node, or nil
// when it has none.
func Latest(ctx context.Context, s Storer, parentHash string) (*Node, error) {
	children, err := s.GetByParent(ctx, &parentHash)
	if err != nil {
		return nil, err
	}

	var latest *Node
	for _, child := range children {
		if latest == nil || child.CreatedAt.After(latest.CreatedAt) {
			latest = child
		}
	}
	return latest, nil
}
