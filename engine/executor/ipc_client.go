package executor

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/fluxweave/fluxweave/engine/core"
)

// ipcClient is a ClusterMemory backed by the Unix-socket IPC server; it
// dials a fresh connection per request, matching the reference client
// (a known simplification the original flags with its own TODO to reuse a
// single connection per stage).
type ipcClient struct {
	path string
}

func newIPCClient(path string) *ipcClient {
	return &ipcClient{path: path}
}

func (c *ipcClient) Get(ctx context.Context, key, namespace string) (any, error) {
	resp, err := c.send(ctx, ipcRequest{Operation: "get", Args: []any{key, resolveNamespace(namespace)}})
	if err != nil {
		return nil, err
	}
	return resp.Result, nil
}

func (c *ipcClient) Put(ctx context.Context, key string, value any, namespace string) error {
	_, err := c.send(ctx, ipcRequest{Operation: "put", Args: []any{key, value, resolveNamespace(namespace)}})
	return err
}

func (c *ipcClient) Delete(ctx context.Context, key, namespace string) error {
	_, err := c.send(ctx, ipcRequest{Operation: "delete", Args: []any{key, resolveNamespace(namespace)}})
	return err
}

func (c *ipcClient) Clear(ctx context.Context) error {
	_, err := c.send(ctx, ipcRequest{Operation: "clear"})
	return err
}

func (c *ipcClient) send(ctx context.Context, req ipcRequest) (ipcResponse, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", c.path)
	if err != nil {
		return ipcResponse{}, core.NewError(
			fmt.Errorf("lost connection to executor: %w", err),
			core.CodeWorkflowExecutionError,
			map[string]any{"path": c.path},
		)
	}
	defer conn.Close()

	payload, err := encodeRequest(req)
	if err != nil {
		return ipcResponse{}, err
	}
	if err := writeMessage(conn, payload); err != nil {
		return ipcResponse{}, err
	}
	raw, err := readMessage(conn)
	if err != nil {
		return ipcResponse{}, err
	}
	resp, err := decodeResponse(raw)
	if err != nil {
		return ipcResponse{}, err
	}
	if resp.Err != "" {
		if resp.NotFound {
			return ipcResponse{}, core.NewError(errors.New(resp.Err), core.CodeResourceNotFound, nil)
		}
		return ipcResponse{}, errors.New(resp.Err)
	}
	return resp, nil
}
