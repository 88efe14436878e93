package store

import (
	"context"
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/require"
)

func Test_LocalKV_SaveGetRoundTrip(t *testing.T) {
	fs := afero.NewMemMapFs()
	kv := newLocalKVOnFs(fs, "/data")
	ctx := context.Background()

	require.NoError(t, kv.Save(ctx, []byte("demo"), []byte(`{"name":"demo"}`)))

	got, err := kv.Get(ctx, []byte("demo"))
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"demo"}`, string(got))
}

func Test_LocalKV_SaveRejectsDuplicateKey(t *testing.T) {
	fs := afero.NewMemMapFs()
	kv := newLocalKVOnFs(fs, "/data")
	ctx := context.Background()

	require.NoError(t, kv.Save(ctx, []byte("demo"), []byte("v1")))
	require.Error(t, kv.Save(ctx, []byte("demo"), []byte("v2")))
}

func Test_LocalKV_UpdateRequiresExistingKey(t *testing.T) {
	fs := afero.NewMemMapFs()
	kv := newLocalKVOnFs(fs, "/data")
	ctx := context.Background()

	require.Error(t, kv.Update(ctx, []byte("missing"), []byte("v1")))

	require.NoError(t, kv.Save(ctx, []byte("demo"), []byte("v1")))
	require.NoError(t, kv.Update(ctx, []byte("demo"), []byte("v2")))
	got, err := kv.Get(ctx, []byte("demo"))
	require.NoError(t, err)
	require.Equal(t, "v2", string(got))
}

func Test_LocalKV_UpsertCreatesOrOverwrites(t *testing.T) {
	fs := afero.NewMemMapFs()
	kv := newLocalKVOnFs(fs, "/data")
	ctx := context.Background()

	require.NoError(t, kv.Upsert(ctx, []byte("demo"), []byte("v1")))
	require.NoError(t, kv.Upsert(ctx, []byte("demo"), []byte("v2")))
	got, err := kv.Get(ctx, []byte("demo"))
	require.NoError(t, err)
	require.Equal(t, "v2", string(got))
}

func Test_LocalKV_DeleteRemovesKey(t *testing.T) {
	fs := afero.NewMemMapFs()
	kv := newLocalKVOnFs(fs, "/data")
	ctx := context.Background()

	require.NoError(t, kv.Save(ctx, []byte("demo"), []byte("v1")))
	require.NoError(t, kv.Delete(ctx, []byte("demo")))
	_, err := kv.Get(ctx, []byte("demo"))
	require.Error(t, err)
}

func Test_LocalKV_KeysWithUnsafeCharactersAreSanitizedForFilenames(t *testing.T) {
	fs := afero.NewMemMapFs()
	kv := newLocalKVOnFs(fs, "/data")
	ctx := context.Background()

	require.NoError(t, kv.Save(ctx, []byte("default/workflow:demo"), []byte("v1")))
	got, err := kv.Get(ctx, []byte("default/workflow:demo"))
	require.NoError(t, err)
	require.Equal(t, "v1", string(got))
}

func Test_LocalKV_SaveJSONAndDataDir(t *testing.T) {
	fs := afero.NewMemMapFs()
	kv := newLocalKVOnFs(fs, "/data")
	ctx := context.Background()
	require.Equal(t, "/data", kv.DataDir())

	require.NoError(t, kv.SaveJSON(ctx, []byte("demo"), map[string]any{"name": "demo"}))
	got, err := kv.Get(ctx, []byte("demo"))
	require.NoError(t, err)
	require.JSONEq(t, `{"name":"demo"}`, string(got))
}
