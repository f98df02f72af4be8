// Package merkle is a content-addressed record of analyses. Each prompt sent
// upstream is a root node and each verdict returned for it is a child, so
// identical prompts collapse onto one root and differing answers branch.
package merkle

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"time"
)

// Node represents a single content-addressed node in a Merkle DAG
type Node struct {
	// Hash is the content-addressed identifier (SHA-256, hex-encoded)
	Hash string `json:"hash"`

	// ParentHash links to the previous node hash.
	// This will be nil for root nodes.
	ParentHash *string `json:"parent_hash"`

	// Bucket is the hashable content for the node
	Bucket Bucket `json:"content"`

	// CreatedAt is when the node was first stored. It is not part of the hash.
	CreatedAt time.Time `json:"created_at"`
}

// NewNode creates a new node with the computed hash for the provided bucket
func NewNode(bucket Bucket, parent *Node) *Node {
	n := &Node{
		Bucket:    bucket,
		CreatedAt: time.Now().UTC(),
	}

	if parent != nil {
		parentHash := parent.Hash
		n.ParentHash = &parentHash
	}

	n.Hash = n.computeHash()
	return n
}

// IsRoot reports whether the node has no parent.
func (n *Node) IsRoot() bool {
	return n.ParentHash == nil
}

// Verify recomputes the hash and reports whether it matches the stored one.
func (n *Node) Verify() bool {
	return n.computeHash() == n.Hash
}

type input struct {
	Content Bucket `json:"content"`
	Parent  string `json:"parent,omitempty"`
}

func (n *Node) computeHash() string {
	i := &input{
		Content: n.Bucket,
	}

	if n.ParentHash != nil {
		i.Parent = *n.ParentHash
	}

	// Canonical JSON encoding for deterministic hashing
	data, err := json.Marshal(i)
	if err != nil {
		panic("failed to marshal hash input: " + err.Error())
	}

	h := sha256.Sum256(data)
	return hex.EncodeToString(h[:])
}
