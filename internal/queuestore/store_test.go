package queuestore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/sqlcoll/internal/record"
	"github.com/roach88/sqlcoll/internal/retry"
	"github.com/roach88/sqlcoll/internal/sqldb"
	"github.com/roach88/sqlcoll/internal/testutil"
	"github.com/roach88/sqlcoll/internal/txn"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

// createTestStore returns a queue store over a fresh SQLite database.
func createTestStore(t *testing.T) (*Store, *sqldb.DB) {
	t.Helper()
	coord, db := testutil.NewCoordinator(t)
	s, err := New(context.Background(), coord, Options{
		ID:    "test",
		Retry: retry.Policy{ShouldRetry: retry.MaxAttempts(3), Interval: -1},
		Now:   testutil.NewDeterministicClock(epoch).Now,
	})
	require.NoError(t, err, "New() failed")
	return s, db
}

func strs(vs ...string) []*string {
	out := make([]*string, len(vs))
	for i := range vs {
		out[i] = &vs[i]
	}
	return out
}

func addAll(t *testing.T, s *Store, vs ...string) {
	t.Helper()
	ok, err := s.AddAll(context.Background(), strs(vs...))
	require.NoError(t, err)
	require.True(t, ok)
}

func contents(t *testing.T, s *Store) []string {
	t.Helper()
	entries, err := s.Entries(context.Background())
	require.NoError(t, err)
	out := []string{}
	for _, e := range entries {
		if e.Content == nil {
			out = append(out, "<nil>")
			continue
		}
		out = append(out, *e.Content)
	}
	return out
}

func TestNew_TableName(t *testing.T) {
	s, _ := createTestStore(t)
	assert.Equal(t, "t_queue_test", s.Table())
	assert.Equal(t, "test", s.ID())
}

func TestQueue_FIFO(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	for _, v := range []string{"a", "b", "c"} {
		ok, err := s.Add(ctx, testutil.Str(v))
		require.NoError(t, err)
		assert.True(t, ok)
	}

	for _, want := range []string{"a", "b", "c"} {
		v, ok, err := s.Poll(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, want, *v)
	}

	empty, err := s.IsEmpty(ctx)
	require.NoError(t, err)
	assert.True(t, empty)
}

func TestQueue_EmptyContract(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	v, ok, err := s.Poll(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)

	v, ok, err = s.Peek(ctx)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Nil(t, v)

	_, err = s.Element(ctx)
	assert.ErrorIs(t, err, record.ErrNoSuchElement)

	_, err = s.Remove(ctx)
	assert.ErrorIs(t, err, record.ErrNoSuchElement)
}

func TestQueue_PeekElementDoNotRemove(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	addAll(t, s, "a", "b")

	v, ok, err := s.Peek(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", *v)

	v, err = s.Element(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", *v)

	v, err = s.Remove(ctx)
	require.NoError(t, err)
	assert.Equal(t, "a", *v)

	assert.Equal(t, []string{"b"}, contents(t, s))
}

func TestQueue_NullContent(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	_, err := s.Offer(ctx, nil)
	require.NoError(t, err)

	v, ok, err := s.Poll(ctx)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Nil(t, v)
}

func TestAddAll_Empty(t *testing.T) {
	s, _ := createTestStore(t)

	ok, err := s.AddAll(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestAddAllTx_EmptyStillCallsNext(t *testing.T) {
	s, _ := createTestStore(t)

	called := false
	ok, err := s.AddAllTx(context.Background(), nil, nil, func(ctx context.Context, tx *txn.Tx, changed bool) error {
		called = true
		assert.NotNil(t, tx)
		assert.False(t, changed)
		return nil
	})
	require.NoError(t, err)
	assert.False(t, ok)
	assert.True(t, called, "next runs for an empty input")
}

func TestAddAll_LargerThanBatch(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	vs := make([]string, batchSize*2+7)
	for i := range vs {
		vs[i] = "v"
	}
	addAll(t, s, vs...)

	n, err := s.Size(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(vs), n)

	removed, err := s.RemoveAllMatches(ctx, strs("v"), MatchIn)
	require.NoError(t, err)
	assert.Len(t, removed, len(vs))
}

func TestSizeAfterAndElementAfter(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	addAll(t, s, "a", "b", "c")

	first, err := s.ElementAfter(ctx, Head)
	require.NoError(t, err)
	require.NotNil(t, first)
	assert.Equal(t, "a", *first.Content)

	n, err := s.SizeAfter(ctx, first.SeqID)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	second, err := s.ElementAfter(ctx, first.SeqID)
	require.NoError(t, err)
	assert.Equal(t, "b", *second.Content)
	assert.Greater(t, second.SeqID, first.SeqID)

	byID, err := s.ElementBy(ctx, second.SeqID)
	require.NoError(t, err)
	assert.Equal(t, second, byID)

	missing, err := s.ElementBy(ctx, 9999)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestSeqIDNotReused(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	addAll(t, s, "a")

	first, err := s.RemoveAfter(ctx, Head)
	require.NoError(t, err)
	require.NotNil(t, first)

	addAll(t, s, "b")
	second, err := s.ElementAfter(ctx, Head)
	require.NoError(t, err)
	assert.Greater(t, second.SeqID, first.SeqID)
}

func TestRemoveBy(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	addAll(t, s, "a", "b")

	e, err := s.ElementAfter(ctx, Head)
	require.NoError(t, err)

	removed, err := s.RemoveBy(ctx, e.SeqID)
	require.NoError(t, err)
	assert.Equal(t, e, removed)

	removed, err = s.RemoveBy(ctx, e.SeqID)
	require.NoError(t, err)
	assert.Nil(t, removed)

	assert.Equal(t, []string{"b"}, contents(t, s))
}

func TestRemoveFirstMatch(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	addAll(t, s, "a", "b", "a", "c")

	ok, err := s.RemoveValue(ctx, testutil.Str("a"))
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, []string{"b", "a", "c"}, contents(t, s))

	ok, err = s.RemoveValue(ctx, testutil.Str("zzz"))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestContains(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	addAll(t, s, "a", "b")

	found, err := s.Contains(ctx, testutil.Str("b"))
	require.NoError(t, err)
	assert.True(t, found)

	found, err = s.Contains(ctx, testutil.Str("c"))
	require.NoError(t, err)
	assert.False(t, found)

	all, err := s.ContainsAll(ctx, strs("a", "b", "a"))
	require.NoError(t, err)
	assert.True(t, all)

	all, err = s.ContainsAll(ctx, strs("a", "c"))
	require.NoError(t, err)
	assert.False(t, all)

	all, err = s.ContainsAll(ctx, nil)
	require.NoError(t, err)
	assert.True(t, all)
}

func TestContains_BlankAndNullShareDigest(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	addAll(t, s, " ")

	found, err := s.Contains(ctx, nil)
	require.NoError(t, err)
	assert.True(t, found)
}

func TestRemoveAll(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	addAll(t, s, "a", "b", "a", "c")

	changed, err := s.RemoveAll(ctx, strs("a", "c"))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"b"}, contents(t, s))

	changed, err = s.RemoveAll(ctx, strs("zzz"))
	require.NoError(t, err)
	assert.False(t, changed)
}

func TestRetainAll(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	addAll(t, s, "a", "b", "a", "c")

	changed, err := s.RetainAll(ctx, strs("a"))
	require.NoError(t, err)
	assert.True(t, changed)
	assert.Equal(t, []string{"a", "a"}, contents(t, s))
}

func TestRemoveAllMatches_EmptyInputIsNoop(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	addAll(t, s, "a", "b")

	for _, m := range []Match{MatchIn, MatchNotIn} {
		removed, err := s.RemoveAllMatches(ctx, nil, m)
		require.NoError(t, err, m.String())
		assert.Empty(t, removed, m.String())
	}
	assert.Equal(t, []string{"a", "b"}, contents(t, s))
}

func TestClear_Twice(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	addAll(t, s, "a", "b")

	n, err := s.Clear(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	n, err = s.Clear(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	size, err := s.Size(ctx)
	require.NoError(t, err)
	assert.Zero(t, size)
}

func TestWriteTimestamp(t *testing.T) {
	s, db := createTestStore(t)
	addAll(t, s, "a", "b")

	var ts []int64
	rows, err := db.Query(`SELECT write_ts FROM t_queue_test ORDER BY seq_id`)
	require.NoError(t, err)
	defer rows.Close()
	for rows.Next() {
		var v int64
		require.NoError(t, rows.Scan(&v))
		ts = append(ts, v)
	}
	require.NoError(t, rows.Err())

	want := epoch.Add(time.Millisecond).UnixMilli()
	assert.Equal(t, []int64{want, want}, ts, "one batch shares a timestamp")
}

func TestPollTx_ContinuationErrorRollsBack(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	addAll(t, s, "a")
	errAbort := errors.New("abort")

	_, err := s.PollTx(ctx, nil, func(ctx context.Context, tx *txn.Tx, e *record.QueueEntry) error {
		require.NotNil(t, e)
		n, err := s.SizeTx(ctx, tx, nil)
		require.NoError(t, err)
		assert.Zero(t, n)
		return errAbort
	})
	assert.ErrorIs(t, err, errAbort)
	assert.Equal(t, []string{"a"}, contents(t, s))
}

func TestParticipantCalls_CommitTogether(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	addAll(t, s, "a")

	err := txn.Do(ctx, s.coord, nil, func(tx *txn.Tx) error {
		if _, err := s.AddTx(ctx, tx, testutil.Str("b"), nil); err != nil {
			return err
		}
		_, err := s.RemoveTx(ctx, tx, nil)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, contents(t, s))
}

func TestParticipant_RequiredHeadOnEmptiedQueue(t *testing.T) {
	tests := []struct {
		name string
		call func(s *Store, ctx context.Context, tx *txn.Tx, next txn.Next[*record.QueueEntry]) (*record.QueueEntry, error)
	}{
		{"element", (*Store).ElementTx},
		{"remove", (*Store).RemoveTx},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, _ := createTestStore(t)
			ctx := context.Background()
			addAll(t, s, "a")

			err := txn.Do(ctx, s.coord, nil, func(tx *txn.Tx) error {
				e, err := s.PollTx(ctx, tx, nil)
				require.NoError(t, err)
				require.NotNil(t, e)

				called := false
				e, err = tt.call(s, ctx, tx, func(context.Context, *txn.Tx, *record.QueueEntry) error {
					called = true
					return nil
				})
				assert.ErrorIs(t, err, record.ErrNoSuchElement)
				assert.Nil(t, e)
				assert.False(t, called)
				return err
			})
			assert.ErrorIs(t, err, record.ErrNoSuchElement)
			assert.Equal(t, []string{"a"}, contents(t, s), "owner rolled back the poll")
		})
	}
}

func TestPoll_ConcurrentPollersNeverShareRows(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	const total = 40
	vs := make([]string, total)
	for i := range vs {
		vs[i] = string(rune('A' + i))
	}
	addAll(t, s, vs...)

	var (
		mu   sync.Mutex
		seen = map[string]int{}
		wg   sync.WaitGroup
	)
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				v, ok, err := s.Poll(ctx)
				if !assert.NoError(t, err) || !ok {
					return
				}
				mu.Lock()
				seen[*v]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Len(t, seen, total)
	for v, n := range seen {
		assert.Equal(t, 1, n, "%s polled twice", v)
	}
}

func TestIterator_RemoveLaw(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	addAll(t, s, "x", "y", "z")

	it, err := s.Iterator(ctx)
	require.NoError(t, err)
	v, err := it.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, "x", *v)
	require.NoError(t, it.Remove(ctx))

	var rest []string
	for it.HasNext() {
		v, err := it.Next(ctx)
		require.NoError(t, err)
		rest = append(rest, *v)
	}
	assert.Equal(t, []string{"y", "z"}, rest)
	assert.Equal(t, []string{"y", "z"}, contents(t, s))
}

func TestForEach(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	addAll(t, s, "a", "b", "c")

	var got []string
	err := s.ForEach(ctx, nil, func(ctx context.Context, tx *txn.Tx, e record.QueueEntry) error {
		got = append(got, *e.Content)
		if *e.Content == "b" {
			_, err := s.RemoveByTx(ctx, tx, e.SeqID, nil)
			return err
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "c"}, got)
	assert.Equal(t, []string{"a", "c"}, contents(t, s))
}

func TestForEach_ErrorRollsBack(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()
	addAll(t, s, "a", "b")
	errStop := errors.New("stop")

	err := s.ForEach(ctx, nil, func(ctx context.Context, tx *txn.Tx, e record.QueueEntry) error {
		if _, err := s.RemoveByTx(ctx, tx, e.SeqID, nil); err != nil {
			return err
		}
		return errStop
	})
	assert.ErrorIs(t, err, errStop)
	assert.Equal(t, []string{"a", "b"}, contents(t, s))
}

// createFlakyStore returns a queue store whose first failures statements
// containing match fail with testutil.ErrTransient.
func createFlakyStore(t *testing.T, match string, failures int) (*Store, *testutil.FlakyDB) {
	t.Helper()
	coord, db := testutil.NewFlakyCoordinator(t, match, failures)
	s, err := New(context.Background(), coord, Options{
		ID:    "test",
		Retry: retry.Policy{ShouldRetry: retry.MaxAttempts(3), Interval: -1},
		Now:   testutil.NewDeterministicClock(epoch).Now,
	})
	require.NoError(t, err, "New() failed")
	return s, db
}

func TestAddAll_RetriesTransientFailure(t *testing.T) {
	s, db := createFlakyStore(t, "INSERT INTO", 2)

	addAll(t, s, "a", "b")
	assert.Equal(t, 2, db.Failed())
	assert.Equal(t, []string{"a", "b"}, contents(t, s))
}

func TestPoll_RetriesTransientFailure(t *testing.T) {
	s, db := createFlakyStore(t, "DELETE FROM", 1)
	addAll(t, s, "a", "b")

	v, ok, err := s.Poll(context.Background())
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "a", *v)
	assert.Equal(t, 1, db.Failed())
	assert.Equal(t, []string{"b"}, contents(t, s))
}

func TestAddAll_RetryExhaustedRollsBack(t *testing.T) {
	s, db := createFlakyStore(t, "INSERT INTO", 3)

	ok, err := s.AddAll(context.Background(), strs("a"))
	assert.ErrorIs(t, err, testutil.ErrTransient)
	assert.False(t, ok)
	assert.Equal(t, 3, db.Failed())
	assert.Empty(t, contents(t, s))
}

func TestDrop(t *testing.T) {
	s, _ := createTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.Drop(ctx))
	_, err := s.Size(ctx)
	assert.Error(t, err)
}
