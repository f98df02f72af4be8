// Package redis is a merkle.Storer backed by Redis, so several relay
// instances can share one record of analyses.
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	goredis "github.com/redis/go-redis/v9"

	"github.com/papercomputeco/foodlens/pkg/merkle"
)

// The hash tag puts every key in one cluster slot, which Put's transaction
// needs when the client is a cluster client.
const defaultPrefix = "{foodlens}"

// Driver stores each node as a JSON string and keeps set indexes for
// membership, roots and children.
type Driver struct {
	client goredis.UniversalClient
	prefix string
}

var _ merkle.Storer = (*Driver)(nil)

// NewDriver connects to the given Redis URL (or plain host:port) and pings it.
func NewDriver(ctx context.Context, addr string) (*Driver, error) {
	opts, err := ParseURL(addr)
	if err != nil {
		return nil, err
	}

	client := goredis.NewUniversalClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &Driver{client: client, prefix: defaultPrefix}, nil
}

func (d *Driver) nodeKey(hash string) string     { return d.prefix + ":node:" + hash }
func (d *Driver) childrenKey(hash string) string { return d.prefix + ":children:" + hash }
func (d *Driver) allKey() string                 { return d.prefix + ":nodes" }
func (d *Driver) rootsKey() string               { return d.prefix + ":roots" }

func (d *Driver) Put(ctx context.Context, node *merkle.Node) (bool, error) {
	if node == nil {
		return false, merkle.ErrNilNode
	}

	data, err := json.Marshal(node)
	if err != nil {
		return false, fmt.Errorf("marshal node: %w", err)
	}

	// The index writes are idempotent and share the transaction with SETNX,
	// so a node key never exists without its index entries and a repeated Put
	// repairs any that are missing.
	var setNX *goredis.BoolCmd
	_, err = d.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		setNX = pipe.SetNX(ctx, d.nodeKey(node.Hash), data, 0)
		pipe.SAdd(ctx, d.allKey(), node.Hash)
		if node.ParentHash == nil {
			pipe.SAdd(ctx, d.rootsKey(), node.Hash)
		} else {
			pipe.SAdd(ctx, d.childrenKey(*node.ParentHash), node.Hash)
		}
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("store node: %w", err)
	}
	return setNX.Val(), nil
}

func (d *Driver) Get(ctx context.Context, hash string) (*merkle.Node, error) {
	data, err := d.client.Get(ctx, d.nodeKey(hash)).Bytes()
	if errors.Is(err, goredis.Nil) {
		return nil, merkle.ErrNotFound{Hash: hash}
	}
	if err != nil {
		return nil, fmt.Errorf("get node: %w", err)
	}

	var node merkle.Node
	if err := json.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("unmarshal node %s: %w", hash, err)
	}
	return &node, nil
}

func (d *Driver) Has(ctx context.Context, hash string) (bool, error) {
	n, err := d.client.Exists(ctx, d.nodeKey(hash)).Result()
	if err != nil {
		return false, fmt.Errorf("check node: %w", err)
	}
	return n > 0, nil
}

func (d *Driver) GetByParent(ctx context.Context, parentHash *string) ([]*merkle.Node, error) {
	key := d.rootsKey()
	if parentHash != nil {
		key = d.childrenKey(*parentHash)
	}
	return d.members(ctx, key)
}

func (d *Driver) List(ctx context.Context) ([]*merkle.Node, error) {
	return d.members(ctx, d.allKey())
}

func (d *Driver) Roots(ctx context.Context) ([]*merkle.Node, error) {
	return d.GetByParent(ctx, nil)
}

func (d *Driver) Leaves(ctx context.Context) ([]*merkle.Node, error) {
	hashes, err := d.client.SMembers(ctx, d.allKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("list nodes: %w", err)
	}

	counts := make([]*goredis.IntCmd, len(hashes))
	_, err = d.client.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, hash := range hashes {
			counts[i] = pipe.SCard(ctx, d.childrenKey(hash))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("count children: %w", err)
	}

	leaves := make([]string, 0, len(hashes))
	for i, hash := range hashes {
		if counts[i].Val() == 0 {
			leaves = append(leaves, hash)
		}
	}
	return d.load(ctx, leaves)
}

func (d *Driver) Close() error {
	return d.client.Close()
}

func (d *Driver) members(ctx context.Context, key string) ([]*merkle.Node, error) {
	hashes, err := d.client.SMembers(ctx, key).Result()
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", key, err)
	}
	return d.load(ctx, hashes)
}

func (d *Driver) load(ctx context.Context, hashes []string) ([]*merkle.Node, error) {
	nodes := make([]*merkle.Node, 0, len(hashes))
	if len(hashes) == 0 {
		return nodes, nil
	}

	keys := make([]string, len(hashes))
	for i, hash := range hashes {
		keys[i] = d.nodeKey(hash)
	}

	values, err := d.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("load nodes: %w", err)
	}

	for i, v := range values {
		s, ok := v.(string)
		if !ok {
			continue
		}
		var node merkle.Node
		if err := json.Unmarshal([]byte(s), &node); err != nil {
			return nil, fmt.Errorf("unmarshal node %s: %w", hashes[i], err)
		}
		nodes = append(nodes, &node)
	}

	sort.SliceStable(nodes, func(i, j int) bool {
		if nodes[i].CreatedAt.Equal(nodes[j].CreatedAt) {
			return nodes[i].Hash < nodes[j].Hash
		}
		return nodes[i].CreatedAt.Before(nodes[j].CreatedAt)
	})
	return nodes, nil
}
