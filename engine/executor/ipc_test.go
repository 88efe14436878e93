package executor

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/fluxweave/fluxweave/engine/core"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T) (*IPCServer, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "cluster-memory.sock")
	srv := NewIPCServer(path)
	require.NoError(t, srv.Start(t.Context()))
	t.Cleanup(func() { _ = srv.Close(context.Background()) })
	return srv, path
}

func Test_IPC_PutGetRoundTrip(t *testing.T) {
	_, path := newTestServer(t)
	client := newIPCClient(path)

	require.NoError(t, client.Put(t.Context(), "k1", "hello", "ns1"))

	v, err := client.Get(t.Context(), "k1", "ns1")
	require.NoError(t, err)
	require.Equal(t, "hello", v)
}

func Test_IPC_GetMissingKeyReturnsNotFound(t *testing.T) {
	_, path := newTestServer(t)
	client := newIPCClient(path)

	_, err := client.Get(t.Context(), "missing", "ns1")
	require.Error(t, err)
	var coreErr *core.Error
	require.ErrorAs(t, err, &coreErr)
	require.Equal(t, core.CodeResourceNotFound, coreErr.Code)
}

func Test_IPC_DeleteRemovesKey(t *testing.T) {
	_, path := newTestServer(t)
	client := newIPCClient(path)

	require.NoError(t, client.Put(t.Context(), "k1", 42, "ns1"))
	require.NoError(t, client.Delete(t.Context(), "k1", "ns1"))

	_, err := client.Get(t.Context(), "k1", "ns1")
	require.Error(t, err)
}

func Test_IPC_ClearRemovesEverything(t *testing.T) {
	_, path := newTestServer(t)
	client := newIPCClient(path)

	require.NoError(t, client.Put(t.Context(), "k1", 1, "a"))
	require.NoError(t, client.Put(t.Context(), "k2", 2, "b"))
	require.NoError(t, client.Clear(t.Context()))

	_, err := client.Get(t.Context(), "k1", "a")
	require.Error(t, err)
	_, err = client.Get(t.Context(), "k2", "b")
	require.Error(t, err)
}

func Test_IPC_DefaultNamespace(t *testing.T) {
	_, path := newTestServer(t)
	client := newIPCClient(path)

	require.NoError(t, client.Put(t.Context(), "k1", "v", ""))
	v, err := client.Get(t.Context(), "k1", "")
	require.NoError(t, err)
	require.Equal(t, "v", v)
}

func Test_IPC_ServerRejectsConnectionsAfterClose(t *testing.T) {
	srv, path := newTestServer(t)
	require.NoError(t, srv.Close(t.Context()))

	client := newIPCClient(path)
	_, err := client.Get(t.Context(), "k1", "ns1")
	require.Error(t, err)
	var coreErr *core.Error
	require.ErrorAs(t, err, &coreErr)
	require.Equal(t, core.CodeWorkflowExecutionError, coreErr.Code)
}
