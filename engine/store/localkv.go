package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/fluxweave/fluxweave/engine/core"
	"github.com/spf13/afero"
)

// LocalKV is a single-node, filesystem-backed implementation of
// engine/core.Store: one file per key under a data directory, which is
// the local/dev-mode persistence engine/service's ApplicationContext
// reaches for when no Postgres DSN is configured, instead of defaulting
// silently to an in-memory store that loses data on restart.
type LocalKV struct {
	fs      afero.Fs
	dataDir string
	mu      sync.Mutex
}

// NewLocalKV roots a LocalKV at dataDir, creating it if necessary.
func NewLocalKV(dataDir string) (*LocalKV, error) {
	fs := afero.NewOsFs()
	if err := fs.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("localkv: create data dir: %w", err)
	}
	return &LocalKV{fs: fs, dataDir: dataDir}, nil
}

// newLocalKVOnFs is the test seam: callers pass an afero.NewMemMapFs() to
// exercise LocalKV without touching the real filesystem.
func newLocalKVOnFs(fs afero.Fs, dataDir string) *LocalKV {
	return &LocalKV{fs: fs, dataDir: dataDir}
}

func (l *LocalKV) path(key []byte) string {
	return filepath.Join(l.dataDir, encodeKeyForFilename(key))
}

func encodeKeyForFilename(key []byte) string {
	out := make([]byte, 0, len(key))
	for _, b := range key {
		switch {
		case b >= 'a' && b <= 'z', b >= 'A' && b <= 'Z', b >= '0' && b <= '9', b == '-', b == '_', b == '.':
			out = append(out, b)
		default:
			out = append(out, '_')
		}
	}
	if len(out) == 0 {
		return "_empty_key_"
	}
	return string(out)
}

func (l *LocalKV) Get(_ context.Context, key []byte) ([]byte, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	data, err := afero.ReadFile(l.fs, l.path(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("localkv: key not found: %w", err)
		}
		return nil, err
	}
	return data, nil
}

func (l *LocalKV) Save(_ context.Context, key, value []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.path(key)
	if _, err := l.fs.Stat(p); err == nil {
		return fmt.Errorf("localkv: key already exists")
	}
	return afero.WriteFile(l.fs, p, value, 0o644)
}

func (l *LocalKV) SaveJSON(ctx context.Context, key []byte, obj any) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("localkv: marshal: %w", err)
	}
	return l.Save(ctx, key, data)
}

func (l *LocalKV) Update(_ context.Context, key, value []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	p := l.path(key)
	if _, err := l.fs.Stat(p); err != nil {
		return fmt.Errorf("localkv: key not found: %w", err)
	}
	return afero.WriteFile(l.fs, p, value, 0o644)
}

func (l *LocalKV) UpdateJSON(ctx context.Context, key []byte, obj any) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("localkv: marshal: %w", err)
	}
	return l.Update(ctx, key, data)
}

func (l *LocalKV) Upsert(_ context.Context, key, value []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return afero.WriteFile(l.fs, l.path(key), value, 0o644)
}

func (l *LocalKV) UpsertJSON(ctx context.Context, key []byte, obj any) error {
	data, err := json.Marshal(obj)
	if err != nil {
		return fmt.Errorf("localkv: marshal: %w", err)
	}
	return l.Upsert(ctx, key, data)
}

func (l *LocalKV) Delete(_ context.Context, key []byte) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fs.Remove(l.path(key))
}

func (l *LocalKV) Close() error { return nil }

func (l *LocalKV) CloseWithContext(_ context.Context) error { return nil }

func (l *LocalKV) DataDir() string { return l.dataDir }

var _ core.Store = (*LocalKV)(nil)
