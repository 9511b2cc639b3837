package cli

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapPutGet(t *testing.T) {
	dsn := testDSN(t)

	out, err := execute(t, "--dsn", dsn, "map", "put", "m", "k", "v1")
	require.NoError(t, err)
	assert.Equal(t, "k (absent)\n", out)

	out, err = execute(t, "--dsn", dsn, "map", "put", "m", "k", "v2")
	require.NoError(t, err)
	assert.Equal(t, "k\tv1\n", out)

	out, err = execute(t, "--dsn", dsn, "map", "get", "m", "k")
	require.NoError(t, err)
	assert.Equal(t, "k\tv2\n", out)
}

func TestMapPutNull(t *testing.T) {
	dsn := testDSN(t)

	_, err := execute(t, "--dsn", dsn, "map", "put", "m", "k", "--null")
	require.NoError(t, err)

	out, err := execute(t, "--dsn", dsn, "map", "get", "m", "k")
	require.NoError(t, err)
	assert.Equal(t, "k\t(null)\n", out)
}

func TestMapPut_ArgumentErrors(t *testing.T) {
	dsn := testDSN(t)

	_, err := execute(t, "--dsn", dsn, "map", "put", "m", "k")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "--dsn", dsn, "map", "put", "m", "k", "v", "--null")
	assert.Equal(t, ExitCommandError, GetExitCode(err))

	_, err = execute(t, "--dsn", dsn, "map", "put", "m", " ", "v")
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestMapGet_Missing(t *testing.T) {
	out, err := execute(t, "--dsn", testDSN(t), "map", "get", "m", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitFailure, GetExitCode(err))
	assert.Equal(t, "Error [E001]: key \"nope\" not found\n", out)
}

func TestMapListJSON(t *testing.T) {
	dsn := testDSN(t)
	for _, kv := range [][2]string{{"b", "2"}, {"a", "1"}} {
		_, err := execute(t, "--dsn", dsn, "map", "put", "m", kv[0], kv[1])
		require.NoError(t, err)
	}

	out, err := execute(t, "--dsn", dsn, "--format", "json", "map", "list", "m")
	require.NoError(t, err)

	var resp struct {
		Status string `json:"status"`
		Data   []struct {
			Key   string  `json:"key"`
			Value *string `json:"value"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "a", resp.Data[0].Key)
	assert.Equal(t, "1", *resp.Data[0].Value)
	assert.Equal(t, "b", resp.Data[1].Key)
}

func TestMapRemoveSizeClear(t *testing.T) {
	dsn := testDSN(t)
	for _, k := range []string{"a", "b", "c"} {
		_, err := execute(t, "--dsn", dsn, "map", "put", "m", k, k)
		require.NoError(t, err)
	}

	out, err := execute(t, "--dsn", dsn, "map", "remove", "m", "a", "zzz")
	require.NoError(t, err)
	assert.Equal(t, "a\ta\n", out)

	out, err = execute(t, "--dsn", dsn, "map", "size", "m")
	require.NoError(t, err)
	assert.Equal(t, "2\n", out)

	_, err = execute(t, "--dsn", dsn, "map", "clear", "m")
	require.NoError(t, err)

	out, err = execute(t, "--dsn", dsn, "map", "size", "m")
	require.NoError(t, err)
	assert.Equal(t, "0\n", out)
}

func TestMapDrop(t *testing.T) {
	dsn := testDSN(t)
	_, err := execute(t, "--dsn", dsn, "map", "put", "m1", "k", "v")
	require.NoError(t, err)

	out, err := execute(t, "--dsn", dsn, "map", "drop", "m1", "m2")
	require.NoError(t, err)
	assert.Equal(t, "dropped 2 map(s)\n", out)

	out, err = execute(t, "--dsn", dsn, "map", "size", "m1")
	require.NoError(t, err)
	assert.Equal(t, "0\n", out, "a dropped map is recreated empty")
}
