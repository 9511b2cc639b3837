package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/sqlcoll/internal/queuestore"
	"github.com/roach88/sqlcoll/internal/record"
	"github.com/roach88/sqlcoll/internal/txn"
)

// QueueOptions holds flags for the queue commands.
type QueueOptions struct {
	*RootOptions
	Null bool // add: append one NULL entry
}

// NewQueueCommand creates the queue command group.
func NewQueueCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueueOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "queue",
		Short: "Read and write persistent FIFO queues",
		Long: `Read and write persistent FIFO queues.

Examples:
  sqlcoll queue add jobs build test deploy
  sqlcoll queue peek jobs
  sqlcoll queue poll jobs
  sqlcoll queue list jobs --format yaml`,
	}

	add := &cobra.Command{
		Use:   "add <id> [content]...",
		Short: "Append entries to the tail",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQueueAdd(cmd, opts, args[0], args[1:])
		},
	}
	add.Flags().BoolVar(&opts.Null, "null", false, "append a NULL entry")

	cmd.AddCommand(
		add,
		&cobra.Command{
			Use:   "poll <id>",
			Short: "Remove and print the head",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runQueueHead(cmd, opts, args[0], true)
			},
		},
		&cobra.Command{
			Use:   "peek <id>",
			Short: "Print the head without removing it",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runQueueHead(cmd, opts, args[0], false)
			},
		},
		&cobra.Command{
			Use:   "list <id>",
			Short: "Print every entry in FIFO order",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runQueueList(cmd, opts, args[0])
			},
		},
		&cobra.Command{
			Use:   "size <id>",
			Short: "Print the number of entries",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runQueueSize(cmd, opts, args[0])
			},
		},
		&cobra.Command{
			Use:   "clear <id>",
			Short: "Remove every entry",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runQueueClear(cmd, opts, args[0])
			},
		},
		&cobra.Command{
			Use:   "drop <id>...",
			Short: "Drop the tables of one or more queues",
			Args:  cobra.MinimumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				return runQueueDrop(cmd, opts, args)
			},
		},
	)

	return cmd
}

// withQueue opens the queue named id and runs fn with it.
func withQueue(cmd *cobra.Command, opts *QueueOptions, id string, fn func(ctx context.Context, s *session, f *OutputFormatter, q *queuestore.Store) error) error {
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

	q, err := sess.queueStore(ctx, id)
	if err != nil {
		return err
	}
	f.VerboseLog("queue %s in table %s", q.ID(), q.Table())
	return fn(ctx, sess, f, q)
}

func runQueueAdd(cmd *cobra.Command, opts *QueueOptions, id string, values []string) error {
	var contents []*string
	switch {
	case opts.Null && len(values) != 0:
		return NewExitError(ExitCommandError, "--null and contents are mutually exclusive")
	case opts.Null:
		contents = []*string{nil}
	case len(values) == 0:
		return NewExitError(ExitCommandError, "at least one content or --null is required")
	default:
		for i := range values {
			contents = append(contents, &values[i])
		}
	}

	return withQueue(cmd, opts, id, func(ctx context.Context, _ *session, f *OutputFormatter, q *queuestore.Store) error {
		if _, err := q.AddAll(ctx, contents); err != nil {
			return storageError(f, "add", err)
		}
		return f.Success(fmt.Sprintf("added %d entr%s", len(contents), plural(len(contents), "y", "ies")))
	})
}

func runQueueHead(cmd *cobra.Command, opts *QueueOptions, id string, remove bool) error {
	op := "peek"
	if remove {
		op = "poll"
	}
	return withQueue(cmd, opts, id, func(ctx context.Context, _ *session, f *OutputFormatter, q *queuestore.Store) error {
		var (
			e   *record.QueueEntry
			err error
		)
		if remove {
			e, err = q.PollTx(ctx, nil, nil)
		} else {
			e, err = q.PeekTx(ctx, nil, nil)
		}
		if err != nil {
			return storageError(f, op, err)
		}
		if e == nil {
			return notFound(f, fmt.Sprintf("queue %q is empty", id))
		}
		return f.Success(queueEntries{*e})
	})
}

func runQueueList(cmd *cobra.Command, opts *QueueOptions, id string) error {
	return withQueue(cmd, opts, id, func(ctx context.Context, _ *session, f *OutputFormatter, q *queuestore.Store) error {
		entries := queueEntries{}
		err := q.ForEach(ctx, nil, func(_ context.Context, _ *txn.Tx, e record.QueueEntry) error {
			entries = append(entries, e)
			return nil
		})
		if err != nil {
			return storageError(f, "list", err)
		}
		return f.Success(entries)
	})
}

func runQueueSize(cmd *cobra.Command, opts *QueueOptions, id string) error {
	return withQueue(cmd, opts, id, func(ctx context.Context, _ *session, f *OutputFormatter, q *queuestore.Store) error {
		n, err := q.Size(ctx)
		if err != nil {
			return storageError(f, "size", err)
		}
		return f.Success(n)
	})
}

func runQueueClear(cmd *cobra.Command, opts *QueueOptions, id string) error {
	return withQueue(cmd, opts, id, func(ctx context.Context, _ *session, f *OutputFormatter, q *queuestore.Store) error {
		n, err := q.Clear(ctx)
		if err != nil {
			return storageError(f, "clear", err)
		}
		return f.Success(fmt.Sprintf("removed %d entr%s", n, plural(int(n), "y", "ies")))
	})
}

func runQueueDrop(cmd *cobra.Command, opts *QueueOptions, ids []string) error {
	return withQueue(cmd, opts, ids[0], func(ctx context.Context, sess *session, f *OutputFormatter, first *queuestore.Store) error {
		queues := []dropper{first}
		for _, id := range ids[1:] {
			q, err := sess.queueStore(ctx, id)
			if err != nil {
				return err
			}
			queues = append(queues, q)
		}
		if err := dropAll(ctx, queues); err != nil {
			return storageError(f, "drop", err)
		}
		return f.Success(fmt.Sprintf("dropped %d queue(s)", len(ids)))
	})
}

func plural(n int, one, many string) string {
	if n == 1 {
		return one
	}
	return many
}
