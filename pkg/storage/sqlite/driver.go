// Package sqlite is a merkle.Storer backed by a SQLite database file.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/papercomputeco/foodlens/pkg/merkle"
)

const schema = `
CREATE TABLE IF NOT EXISTS nodes (
	hash        TEXT PRIMARY KEY,
	parent_hash TEXT,
	content     TEXT NOT NULL,
	created_at  INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_nodes_parent ON nodes(parent_hash);
`

const selectColumns = `SELECT hash, parent_hash, content, created_at FROM nodes`

// Driver stores nodes in a single SQLite table.
type Driver struct {
	db *sql.DB
}

var _ merkle.Storer = (*Driver)(nil)

// NewDriver opens (creating if needed) the database at path.
// Use ":memory:" for an in-memory database.
func NewDriver(ctx context.Context, path string) (*Driver, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Every connection to ":memory:" is a separate database.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Driver{db: db}, nil
}

func (d *Driver) Put(ctx context.Context, node *merkle.Node) (bool, error) {
	if node == nil {
		return false, merkle.ErrNilNode
	}

	content, err := json.Marshal(node.Bucket)
	if err != nil {
		return false, fmt.Errorf("marshal content: %w", err)
	}

	createdAt := node.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	res, err := d.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO nodes (hash, parent_hash, content, created_at) VALUES (?, ?, ?, ?)`,
		node.Hash, node.ParentHash, string(content), createdAt.UnixNano(),
	)
	if err != nil {
		return false, fmt.Errorf("insert node: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (d *Driver) Get(ctx context.Context, hash string) (*merkle.Node, error) {
	row := d.db.QueryRowContext(ctx, selectColumns+` WHERE hash = ?`, hash)
	node, err := scanNode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, merkle.ErrNotFound{Hash: hash}
	}
	if err != nil {
		return nil, err
	}
	return node, nil
}

func (d *Driver) Has(ctx context.Context, hash string) (bool, error) {
	var exists int
	err := d.db.QueryRowContext(ctx, `SELECT 1 FROM nodes WHERE hash = ?`, hash).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("query node: %w", err)
	}
	return true, nil
}

func (d *Driver) GetByParent(ctx context.Context, parentHash *string) ([]*merkle.Node, error) {
	if parentHash == nil {
		return d.query(ctx, selectColumns+` WHERE parent_hash IS NULL ORDER BY created_at, hash`)
	}
	return d.query(ctx, selectColumns+` WHERE parent_hash = ? ORDER BY created_at, hash`, *parentHash)
}

func (d *Driver) List(ctx context.Context) ([]*merkle.Node, error) {
	return d.query(ctx, selectColumns+` ORDER BY created_at, hash`)
}

func (d *Driver) Roots(ctx context.Context) ([]*merkle.Node, error) {
	return d.GetByParent(ctx, nil)
}

func (d *Driver) Leaves(ctx context.Context) ([]*merkle.Node, error) {
	return d.query(ctx, selectColumns+`
		WHERE hash NOT IN (SELECT parent_hash FROM nodes WHERE parent_hash IS NOT NULL)
		ORDER BY created_at, hash`)
}

func (d *Driver) Close() error {
	return d.db.Close()
}

func (d *Driver) query(ctx context.Context, query string, args ...any) ([]*merkle.Node, error) {
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query nodes: %w", err)
	}
	defer rows.Close()

	nodes := make([]*merkle.Node, 0)
	for rows.Next() {
		node, err := scanNode(rows)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, node)
	}
	return nodes, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanNode(s scanner) (*merkle.Node, error) {
	var (
		node       merkle.Node
		parentHash sql.NullString
		content    string
		createdAt  int64
	)

	if err := s.Scan(&node.Hash, &parentHash, &content, &createdAt); err != nil {
		return nil, err
	}

	if parentHash.Valid {
		node.ParentHash = &parentHash.String
	}
	if err := json.Unmarshal([]byte(content), &node.Bucket); err != nil {
		return nil, fmt.Errorf("unmarshal content of %s: %w", node.Hash, err)
	}
	node.CreatedAt = time.Unix(0, createdAt).UTC()

	return &node, nil
}
