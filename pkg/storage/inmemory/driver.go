// Package inmemory is a merkle.Storer kept entirely in process memory.
package inmemory

import (
	"context"
	"sort"
	"sync"

	"github.com/papercomputeco/foodlens/pkg/merkle"
)

// Driver stores nodes in maps guarded by a RWMutex.
type Driver struct {
	mu       sync.RWMutex
	nodes    map[string]*merkle.Node
	children map[string][]string
}

var _ merkle.Storer = (*Driver)(nil)

// NewDriver creates an empty in-memory store.
func NewDriver() *Driver {
	return &Driver{
		nodes:    make(map[string]*merkle.Node),
		children: make(map[string][]string),
	}
}

func (d *Driver) Put(_ context.Context, node *merkle.Node) (bool, error) {
	if node == nil {
		return false, merkle.ErrNilNode
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.nodes[node.Hash]; ok {
		return false, nil
	}

	stored := *node
	d.nodes[node.Hash] = &stored
	if node.ParentHash != nil {
		d.children[*node.ParentHash] = append(d.children[*node.ParentHash], node.Hash)
	}
	return true, nil
}

func (d *Driver) Get(_ context.Context, hash string) (*merkle.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	node, ok := d.nodes[hash]
	if !ok {
		return nil, merkle.ErrNotFound{Hash: hash}
	}
	cp := *node
	return &cp, nil
}

func (d *Driver) Has(_ context.Context, hash string) (bool, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	_, ok := d.nodes[hash]
	return ok, nil
}

func (d *Driver) GetByParent(_ context.Context, parentHash *string) ([]*merkle.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if parentHash == nil {
		return d.filter(func(n *merkle.Node) bool { return n.ParentHash == nil }), nil
	}

	result := make([]*merkle.Node, 0, len(d.children[*parentHash]))
	for _, hash := range d.children[*parentHash] {
		cp := *d.nodes[hash]
		result = append(result, &cp)
	}
	sortByCreation(result)
	return result, nil
}

func (d *Driver) List(_ context.Context) ([]*merkle.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.filter(func(*merkle.Node) bool { return true }), nil
}

func (d *Driver) Roots(ctx context.Context) ([]*merkle.Node, error) {
	return d.GetByParent(ctx, nil)
}

func (d *Driver) Leaves(_ context.Context) ([]*merkle.Node, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	return d.filter(func(n *merkle.Node) bool { return len(d.children[n.Hash]) == 0 }), nil
}

func (d *Driver) Close() error {
	return nil
}

// filter must be called with the lock held.
func (d *Driver) filter(keep func(*merkle.Node) bool) []*merkle.Node {
	result := make([]*merkle.Node, 0)
	for _, node := range d.nodes {
		if keep(node) {
			cp := *node
			result = append(result, &cp)
		}
	}
	sortByCreation(result)
	return result
}

func sortByCreation(nodes []*merkle.Node) {
	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].CreatedAt.Equal(nodes[j].CreatedAt) {
			return nodes[i].Hash < nodes[j].Hash
		}
		return nodes[i].CreatedAt.Before(nodes[j].CreatedAt)
	})
}
