package executor

import (
	"bytes"
	"encoding/binary"
	"encoding/gob"
	"fmt"
	"io"
)

func init() {
	// gob needs every concrete type that flows through an `any` field
	// registered up front; these cover the shapes cluster-memory values and
	// request args actually take (stage outputs are JSON-like after
	// core.AsMapDefault round-trips, plus the scalars stages pass directly).
	gob.Register([]any{})
	gob.Register(map[string]any{})
	gob.Register(int(0))
	gob.Register(int64(0))
	gob.Register(float64(0))
	gob.Register(string(""))
	gob.Register(bool(false))
}

// lengthPrefixSize is the width, in bytes, of the big-endian length prefix
// that precedes every IPC payload (spec §4.4.1: "4-byte big-endian length
// prefix + payload").
const lengthPrefixSize = 4

// maxMessageSize bounds a single IPC payload; the reference implementation
// notes 4 bytes of length allows up to 4GB, but a co-process KV store never
// legitimately needs that much in one request, so this is a defensive cap
// rather than a protocol limit.
const maxMessageSize = 64 << 20 // 64MiB

// ipcRequest is the wire shape of a cluster-memory operation. gob, not a
// pack third-party codec, carries it: the payload is an arbitrary
// caller-supplied Go value (StageResources.Extras, workflow output, etc.),
// and none of the serialization libraries bound in SPEC_FULL §3
// (protobuf/structpb, yaml) round-trip an `any` without a schema.
type ipcRequest struct {
	Operation string
	Args      []any
}

type ipcResponse struct {
	Result   any
	Err      string
	NotFound bool
}

func writeMessage(w io.Writer, payload []byte) error {
	if len(payload) > maxMessageSize {
		return fmt.Errorf("ipc message too large: %d bytes", len(payload))
	}
	var prefix [lengthPrefixSize]byte
	binary.BigEndian.PutUint32(prefix[:], uint32(len(payload)))
	if _, err := w.Write(prefix[:]); err != nil {
		return err
	}
	_, err := w.Write(payload)
	return err
}

func readMessage(r io.Reader) ([]byte, error) {
	var prefix [lengthPrefixSize]byte
	if _, err := io.ReadFull(r, prefix[:]); err != nil {
		return nil, err
	}
	size := binary.BigEndian.Uint32(prefix[:])
	if size > maxMessageSize {
		return nil, fmt.Errorf("ipc message too large: %d bytes", size)
	}
	buf := make([]byte, size)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func encodeRequest(req ipcRequest) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(req); err != nil {
		return nil, fmt.Errorf("failed to encode ipc request: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeRequest(raw []byte) (ipcRequest, error) {
	var req ipcRequest
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&req); err != nil {
		return ipcRequest{}, fmt.Errorf("failed to decode ipc request: %w", err)
	}
	return req, nil
}

func encodeResponse(resp ipcResponse) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(resp); err != nil {
		return nil, fmt.Errorf("failed to encode ipc response: %w", err)
	}
	return buf.Bytes(), nil
}

func decodeResponse(raw []byte) (ipcResponse, error) {
	var resp ipcResponse
	if err := gob.NewDecoder(bytes.NewReader(raw)).Decode(&resp); err != nil {
		return ipcResponse{}, fmt.Errorf("failed to decode ipc response: %w", err)
	}
	return resp, nil
}
