package config

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestManager_Creation(t *testing.T) {
	t.Run("Should create manager with default service", func(t *testing.T) {
		manager := NewManager(nil)
		require.NotNil(t, manager)
		require.NotNil(t, manager.Service)
		assert.Equal(t, 100*time.Millisecond, manager.debounce)
		require.NoError(t, manager.Close(context.Background()))
	})

	t.Run("Should configure debounce duration", func(t *testing.T) {
		manager := NewManager(nil)
		defer manager.Close(context.Background())
		manager.SetDebounce(500 * time.Millisecond)
		assert.Equal(t, 500*time.Millisecond, manager.debounce)
	})
}

func TestManager_Load(t *testing.T) {
	t.Run("Should load configuration from sources", func(t *testing.T) {
		manager := NewManager(nil)
		defer manager.Close(context.Background())
		cfg, err := manager.Load(context.Background(), NewDefaultProvider())
		require.NoError(t, err)
		require.NotNil(t, cfg)
		assert.Equal(t, "0.0.0.0", cfg.Server.Host)
		assert.Equal(t, 5001, cfg.Server.Port)
	})

	t.Run("Should store configuration atomically and return it via Get", func(t *testing.T) {
		manager := NewManager(nil)
		defer manager.Close(context.Background())
		assert.Nil(t, manager.Get())
		cfg, err := manager.Load(context.Background(), NewDefaultProvider())
		require.NoError(t, err)
		assert.Equal(t, cfg, manager.Get())
	})

	t.Run("Should let later sources override earlier ones", func(t *testing.T) {
		manager := NewManager(nil)
		defer manager.Close(context.Background())

		tmpDir := t.TempDir()
		yamlPath := filepath.Join(tmpDir, "config.yaml")
		yamlContent := "server:\n  host: yaml.example.com\n  port: 9090\n"
		require.NoError(t, os.WriteFile(yamlPath, []byte(yamlContent), 0o600))

		cfg, err := manager.Load(context.Background(), NewDefaultProvider(), NewYAMLProvider(yamlPath))
		require.NoError(t, err)
		assert.Equal(t, "yaml.example.com", cfg.Server.Host)
		assert.Equal(t, 9090, cfg.Server.Port)
	})

	t.Run("Should reject an unsupported broker kind", func(t *testing.T) {
		manager := NewManager(nil)
		defer manager.Close(context.Background())
		_, err := manager.Load(context.Background(),
			NewDefaultProvider(),
			NewCLIProvider(map[string]any{"broker": map[string]any{"kind": "carrier-pigeon"}}),
		)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "configuration validation failed")
	})
}

func TestManager_Get(t *testing.T) {
	t.Run("Should handle concurrent reads safely", func(t *testing.T) {
		manager := NewManager(nil)
		defer manager.Close(context.Background())
		_, err := manager.Load(context.Background(), NewDefaultProvider())
		require.NoError(t, err)

		var wg sync.WaitGroup
		for range 100 {
			wg.Add(1)
			go func() {
				defer wg.Done()
				assert.NotNil(t, manager.Get())
			}()
		}
		wg.Wait()
	})
}

func TestManager_Reload(t *testing.T) {
	t.Run("Should reload without error and preserve a valid config", func(t *testing.T) {
		manager := NewManager(nil)
		defer manager.Close(context.Background())
		_, err := manager.Load(context.Background(), NewDefaultProvider())
		require.NoError(t, err)
		require.NoError(t, manager.Reload(context.Background()))
		assert.NotNil(t, manager.Get())
	})
}

func TestManager_OnChange(t *testing.T) {
	t.Run("Should not fire callbacks when reloaded config is unchanged", func(t *testing.T) {
		manager := NewManager(nil)
		defer manager.Close(context.Background())
		_, err := manager.Load(context.Background(), NewDefaultProvider())
		require.NoError(t, err)

		var called bool
		manager.OnChange(func(_ *Config) { called = true })
		require.NoError(t, manager.Reload(context.Background()))
		assert.False(t, called)
	})

	t.Run("Should fire callbacks when a watched file changes", func(t *testing.T) {
		manager := NewManager(nil)
		manager.SetDebounce(10 * time.Millisecond)
		defer manager.Close(context.Background())

		tmpDir := t.TempDir()
		yamlPath := filepath.Join(tmpDir, "config.yaml")
		require.NoError(t, os.WriteFile(yamlPath, []byte("server:\n  port: 9090\n"), 0o600))

		_, err := manager.Load(context.Background(), NewDefaultProvider(), NewYAMLProvider(yamlPath))
		require.NoError(t, err)

		done := make(chan struct{})
		manager.OnChange(func(cfg *Config) {
			if cfg.Server.Port == 9091 {
				close(done)
			}
		})

		time.Sleep(600 * time.Millisecond) // past the poll interval's first tick
		require.NoError(t, os.WriteFile(yamlPath, []byte("server:\n  port: 9091\n"), 0o600))

		select {
		case <-done:
		case <-time.After(3 * time.Second):
			t.Fatal("expected OnChange callback after file update")
		}
	})
}
