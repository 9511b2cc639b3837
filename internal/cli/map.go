package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlcoll/internal/mapstore"
)

// MapOptions holds flags for the map commands.
type MapOptions struct {
	*RootOptions
	Null bool // put: store NULL instead of the value argument
}

// NewMapCommand creates the map command group.
func NewMapCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MapOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "map",
		Short: "Read and write persistent maps",
		Long: `Read and write persistent string maps.

Examples:
  sqlcoll map put sessions alice online
  sqlcoll map put sessions bob --null
  sqlcoll map get sessions alice
  sqlcoll map list sessions --format json
  sqlcoll map drop sessions archive`,
	}

	put := &cobra.Command{
		Use:   "put <id> <key> [value]",
		Short: "Store a value and print the previous one",
		Args:  cobra.RangeArgs(2, 3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMapPut(cmd, opts, args)
		},
	}
	put.Flags().BoolVar(&opts.Null, "null", false, "store NULL")

	cmd.AddCommand(
		put,
		&cobra.Command{
			Use:   "get <id> <key>",
			Short: "Print the value stored under a key",
			Args:  cobra.ExactArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMapGet(cmd, opts, args[0], args[1])
			},
		},
		&cobra.Command{
			Use:   "remove <id> <key>...",
			Short: "Remove keys and print the removed entries",
			Args:  cobra.MinimumNArgs(2),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMapRemove(cmd, opts, args[0], args[1:])
			},
		},
		&cobra.Command{
			Use:   "list <id>",
			Short: "Print every entry ordered by key",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMapList(cmd, opts, args[0])
			},
		},
		&cobra.Command{
			Use:   "size <id>",
			Short: "Print the number of entries",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMapSize(cmd, opts, args[0])
			},
		},
		&cobra.Command{
			Use:   "clear <id>",
			Short: "Remove every entry",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMapClear(cmd, opts, args[0])
			},
		},
		&cobra.Command{
			Use:   "drop <id>...",
			Short: "Drop the tables of one or more maps",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runMapDrop(cmd, opts, args)
			},
		},
	)

	return cmd
}

// withMap opens the map named id and runs fn with it.
func withMap(cmd *cobra.Command, opts *MapOptions, id string, fn func(ctx context.Context, s *session, f *OutputFormatter, m *mapstore.Store) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	f := opts.formatter(cmd)

	sess, err := openSession(ctx, opts.RootOptions)
	if err != nil {
		return err
	}
	defer sess.Close()

	m, err := sess.mapStore(ctx, id)
	if err != nil {
		return err
	}
	f.VerboseLog("map %s in table %s", m.ID(), m.Table())
	return fn(ctx, sess, f, m)
}

func runMapPut(cmd *cobra.Command, opts *MapOptions, args []string) error {
	id, key := args[0], args[1]
	var value *string
	switch {
	case opts.Null && len(args) == 3:
		return NewExitError(ExitCommandError, "--null and a value are mutually exclusive")
	case !opts.Null && len(args) == 2:
		return NewExitError(ExitCommandError, "a value or --null is required")
	case !opts.Null:
		value = &args[2]
	}

	return withMap(cmd, opts, id, func(ctx context.Context, _ *session, f *OutputFormatter, m *mapstore.Store) error {
		prev, existed, err := m.Put(ctx, key, value)
		if err != nil {
			return storageError(f, "put", err)
		}
		return f.Success(valueResult{Key: key, Value: prev, Existed: existed})
	})
}

func runMapGet(cmd *cobra.Command, opts *MapOptions, id, key string) error {
	return withMap(cmd, opts, id, func(ctx context.Context, _ *session, f *OutputFormatter, m *mapstore.Store) error {
		v, ok, err := m.Get(ctx, key)
		if err != nil {
			return storageError(f, "get", err)
		}
		if !ok {
			return notFound(f, fmt.Sprintf("key %q not found", key))
		}
		return f.Success(valueResult{Key: key, Value: v, Existed: true})
	})
}

func runMapRemove(cmd *cobra.Command, opts *MapOptions, id string, keys []string) error {
	return withMap(cmd, opts, id, func(ctx context.Context, _ *session, f *OutputFormatter, m *mapstore.Store) error {
		removed, err := m.RemoveAllMatchesTx(ctx, nil, keys, nil)
		if err != nil {
			return storageError(f, "remove", err)
		}
		f.VerboseLog("removed %d of %d keys", len(removed), len(keys))
		return f.Success(mapEntries(removed))
	})
}

func runMapList(cmd *cobra.Command, opts *MapOptions, id string) error {
	return withMap(cmd, opts, id, func(ctx context.Context, _ *session, f *OutputFormatter, m *mapstore.Store) error {
		entries, err := m.Entries(ctx)
		if err != nil {
			return storageError(f, "list", err)
		}
		return f.Success(mapEntries(entries))
	})
}

func runMapSize(cmd *cobra.Command, opts *MapOptions, id string) error {
	return withMap(cmd, opts, id, func(ctx context.Context, _ *session, f *OutputFormatter, m *mapstore.Store) error {
		n, err := m.Size(ctx)
		if err != nil {
			return storageError(f, "size", err)
		}
		return f.Success(n)
	})
}

func runMapClear(cmd *cobra.Command, opts *MapOptions, id string) error {
	return withMap(cmd, opts, id, func(ctx context.Context, _ *session, f *OutputFormatter, m *mapstore.Store) error {
		if err := m.Clear(ctx); err != nil {
			return storageError(f, "clear", err)
		}
		return f.Success("cleared " + id)
	})
}

func runMapDrop(cmd *cobra.Command, opts *MapOptions, ids []string) error {
	return withMap(cmd, opts, ids[0], func(ctx context.Context, sess *session, f *OutputFormatter, first *mapstore.Store) error {
		maps := []dropper{first}
		for _, id := range ids[1:] {
			m, err := sess.mapStore(ctx, id)
			if err != nil {
				return err
			}
			maps = append(maps, m)
		}
		if err := dropAll(ctx, maps); err != nil {
			return storageError(f, "drop", err)
		}
		return f.Success(fmt.Sprintf("dropped %d map(s)", len(ids)))
	})
}
