package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/hashicorp/go-multierror"

	"github.com/roach88/sqlcoll/internal/mapstore"
	"github.com/roach88/sqlcoll/internal/queuestore"
	"github.com/roach88/sqlcoll/internal/record"
	"github.com/roach88/sqlcoll/internal/sqldb"
	"github.com/roach88/sqlcoll/internal/txn"
)

// nullText is how text output shows a NULL value.
const nullText = "(null)"

// session is an open database with a coordinator over it.
type session struct {
	db    *sqldb.DB
	coord *txn.Coordinator
	opts  *RootOptions
}

func openSession(ctx context.Context, opts *RootOptions) (*session, error) {
	db, err := sqldb.Open(ctx, opts.Config.DB)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open database", err)
	}
	return &session{db: db, coord: txn.NewCoordinator(db, db.Dialect, nil), opts: opts}, nil
}

func (s *session) Close() error {
	return s.db.Close()
}

func (s *session) mapStore(ctx context.Context, id string) (*mapstore.Store, error) {
	m, err := mapstore.New(ctx, s.coord, mapstore.Options{ID: id, Retry: s.opts.Config.Retry.Policy()})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open map", err)
	}
	return m, nil
}

func (s *session) queueStore(ctx context.Context, id string) (*queuestore.Store, error) {
	q, err := queuestore.New(ctx, s.coord, queuestore.Options{ID: id, Retry: s.opts.Config.Retry.Policy()})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to open queue", err)
	}
	return q, nil
}

// dropper is a collection whose table can be dropped.
type dropper interface {
	Drop(ctx context.Context) error
}

// dropAll drops every collection and reports all failures together.
func dropAll(ctx context.Context, collections []dropper) error {
	var result *multierror.Error
	for _, c := range collections {
		if err := c.Drop(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// storageError reports a failed store operation.
func storageError(f *OutputFormatter, op string, err error) error {
	_ = f.Error(CodeStorage, fmt.Sprintf("%s failed", op), err.Error())
	return WrapExitError(ExitCommandError, op+" failed", err)
}

// notFound reports a lookup miss.
func notFound(f *OutputFormatter, message string) error {
	_ = f.Error(CodeNotFound, message, nil)
	return NewExitError(ExitFailure, message)
}

func showValue(v *string) string {
	if v == nil {
		return nullText
	}
	return *v
}

// valueResult is the outcome of a single-key map operation.
type valueResult struct {
	Key     string  `json:"key" yaml:"key"`
	Value   *string `json:"value" yaml:"value"`
	Existed bool    `json:"existed" yaml:"existed"`
}

func (r valueResult) String() string {
	if !r.Existed {
		return r.Key + " (absent)"
	}
	return r.Key + "\t" + showValue(r.Value)
}

// mapEntries renders as one "key<TAB>value" line per entry.
type mapEntries []record.MapEntry

func (es mapEntries) String() string {
	lines := make([]string, 0, len(es))
	for _, e := range es {
		lines = append(lines, e.Key+"\t"+showValue(e.Value))
	}
	return strings.Join(lines, "\n")
}

// queueEntries renders as one "seq<TAB>content" line per entry.
type queueEntries []record.QueueEntry

func (es queueEntries) String() string {
	lines := make([]string, 0, len(es))
	for _, e := range es {
		lines = append(lines, fmt.Sprintf("%d\t%s", e.SeqID, showValue(e.Content)))
	}
	return strings.Join(lines, "\n")
}
