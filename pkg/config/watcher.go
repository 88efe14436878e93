package config

import (
	"context"
	"os"
	"strings"
	"time"
)

// pollInterval is how often a watched file's mtime is checked. No
// third-party filesystem-event watcher is present in this pack's dependency
// set, so file watching is done by stdlib polling rather than fsnotify.
const pollInterval = 500 * time.Millisecond

func readFile(path string) ([]byte, error) {
	return os.ReadFile(path)
}

// watchFile polls path's modification time and invokes onChange whenever it
// advances, until ctx is canceled.
func watchFile(ctx context.Context, path string, onChange func()) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	lastMod := info.ModTime()
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				info, err := os.Stat(path)
				if err != nil {
					continue
				}
				if info.ModTime().After(lastMod) {
					lastMod = info.ModTime()
					onChange()
				}
			}
		}
	}()
	return nil
}

// envKeyToPath converts FLUXWEAVE_SERVER_PORT (with prefix FLUXWEAVE_) into
// the dotted koanf key "server.port".
func envKeyToPath(prefix, key string) string {
	trimmed := strings.TrimPrefix(key, prefix)
	trimmed = strings.ToLower(trimmed)
	return strings.ReplaceAll(trimmed, "_", ".")
}
