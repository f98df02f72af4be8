package mergecmder

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/foodlens/pkg/config"
	"github.com/papercomputeco/foodlens/pkg/merkle"
	"github.com/papercomputeco/foodlens/pkg/storage"
)

const mergeLongDesc string = `Merge analysis records from one or more stores into a target store.

A store is either a SQLite database path or a redis:// (rediss://,
redis-sentinel://) URL, so this also moves records between backends.
Content-addressing makes this a simple union: records that already
exist in the target are skipped (deduped by hash).

Examples:
  foodlens merge --into merged.db relay-a.db relay-b.db
  foodlens merge --into redis://localhost:6379/0 foodlens.db`

const mergeShortDesc string = "Merge analysis record stores"

type mergeCommander struct {
	into string
}

func NewMergeCmd() *cobra.Command {
	cmder := &mergeCommander{}

	cmd := &cobra.Command{
		Use:   "merge --into <store> <sources...>",
		Short: mergeShortDesc,
		Long:  mergeLongDesc,
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmder.run(cmd.Context(), cmd, args)
		},
	}

	cmd.Flags().StringVarP(&cmder.into, "into", "i", "", "Target store (SQLite path or Redis URL)")

	return cmd
}

func (c *mergeCommander) run(ctx context.Context, cmd *cobra.Command, sources []string) error {
	if c.into == "" {
		return errors.New("--into is required")
	}

	target, err := openStore(ctx, c.into)
	if err != nil {
		return fmt.Errorf("could not open target store %s: %w", c.into, err)
	}
	defer target.Close()

	var totalNew, totalDuped int

	for _, src := range sources {
		srcNew, srcDuped, err := mergeFrom(ctx, target, src)
		if err != nil {
			return err
		}

		totalNew += srcNew
		totalDuped += srcDuped

		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %d new, %d already existed\n", src, srcNew, srcDuped)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Merged %d new records from %d sources (%d already existed) into %s\n",
		totalNew, len(sources), totalDuped, c.into)

	return nil
}

func mergeFrom(ctx context.Context, target merkle.Storer, location string) (int, int, error) {
	source, err := openStore(ctx, location)
	if err != nil {
		return 0, 0, fmt.Errorf("could not open source store %s: %w", location, err)
	}
	defer source.Close()

	nodes, err := source.List(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("could not list records from %s: %w", location, err)
	}

	var added, duped int
	for _, n := range nodes {
		if !n.Verify() {
			return added, duped, fmt.Errorf("refusing record %s from %s: hash does not match content", n.Hash, location)
		}
		isNew, err := target.Put(ctx, n)
		if err != nil {
			return added, duped, fmt.Errorf("could not put record %s: %w", n.Hash, err)
		}
		if isNew {
			added++
		} else {
			duped++
		}
	}
	return added, duped, nil
}

// openStore maps a location to a record backend: Redis URLs by scheme,
// anything else as a SQLite path.
func openStore(ctx context.Context, location string) (merkle.Storer, error) {
	cfg := config.Storage{Backend: config.StorageSQLite, Path: location}
	if strings.HasPrefix(location, "redis://") ||
		strings.HasPrefix(location, "rediss://") ||
		strings.HasPrefix(location, "redis-sentinel://") ||
		strings.HasPrefix(location, "rediss-sentinel://") {
		cfg = config.Storage{Backend: config.StorageRedis, RedisURL: location}
	}
	return storage.Open(ctx, cfg)
}
