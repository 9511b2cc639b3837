package cli

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestQueueFIFO(t *testing.T) {
	dsn := testDSN(t)

	out, err := execute(t, "--dsn", dsn, "queue", "add", "q", "a", "b", "c")
	require.NoError(t, err)
	assert.Equal(t, "added 3 entries\n", out)

	out, err = execute(t, "--dsn", dsn, "queue", "peek", "q")
	require.NoError(t, err)
	assert.Equal(t, "1\ta\n", out)

	for i, want := range []string{"1\ta\n", "2\tb\n", "3\tc\n"} {
		out, err := execute(t, "--dsn", dsn, "queue", "poll", "q")
		require.NoError(t, err, "poll %d", i)
		assert.Equal(t, want, out)
	}

	out, err = execute(t, "--dsn", dsn, "queue", "poll", "q")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "Error [E001]: queue \"q\" is empty\n", out)
}

func TestQueueAdd_ArgumentErrors(t *testing.T) {
	dsn := testDSN(t)

	_, err := execute(t, "--dsn", dsn, "queue", "add", "q")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "--dsn", dsn, "queue", "add", "q", "x", "--null")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestQueueListYAML(t *testing.T) {
	dsn := testDSN(t)
	_, err := execute(t, "--dsn", dsn, "queue", "add", "q", "a", "b")
	require.NoError(t, err)
	out, err := execute(t, "--dsn", dsn, "queue", "add", "q", "--null")
	require.NoError(t, err)
	assert.Equal(t, "added 1 entry\n", out)

	out, err = execute(t, "--dsn", dsn, "--format", "yaml", "queue", "list", "q")
	require.NoError(t, err)

	var resp struct {
		Status string `yaml:"status"`
		Data   []struct {
			SeqID   int64   `yaml:"seq_id"`
			Content *string `yaml:"content"`
		} `yaml:"data"`
	}
	require.NoError(t, yaml.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 3)
	assert.Equal(t, "a", *resp.Data[0].Content)
	assert.Equal(t, "b", *resp.Data[1].Content)
	assert.Nil(t, resp.Data[2].Content)
	assert.Less(t, resp.Data[0].SeqID, resp.Data[1].SeqID)
}

func TestQueueSizeClear(t *testing.T) {
	dsn := testDSN(t)
	_, err := execute(t, "--dsn", dsn, "queue", "add", "q", "a", "b")
	require.NoError(t, err)

	out, err := execute(t, "--dsn", dsn, "queue", "size", "q")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	out, err = execute(t, "--dsn", dsn, "queue", "clear", "q")
	require.NoError(t, err)
	assert.Equal(t, "removed 2 entries\n", out)
}

func TestQueueDrop(t *testing.T) {
	dsn := testDSN(t)
	_, err := execute(t, "--dsn", dsn, "queue", "add", "q1", "a")
	require.NoError(t, err)

	out, err := execute(t, "--dsn", dsn, "queue", "drop", "q1", "q2", "q3")
	require.NoError(t, err)
	assert.Equal(t, "dropped 3 queue(s)\n", out)
}

type failingDrop struct{ err error }

func (f failingDrop) Drop(context.Context) error { return f.err }

func TestDropAll_AccumulatesErrors(t *testing.T) {
	errA, errB := errors.New("a failed"), errors.New("b failed")

	err := dropAll(context.Background(), []dropper{failingDrop{errA}, failingDrop{}, failingDrop{errB}})
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)

	assert.NoError(t, dropAll(context.Background(), []dropper{failingDrop{}}))
}
