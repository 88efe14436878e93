package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func Test_Version_And_StoreDir(t *testing.T) {
	t.Run("Should read version from env or fallback", func(t *testing.T) {
		t.Setenv("FLUXWEAVE_VERSION", "v1.2.3")
		assert.Equal(t, "v1.2.3", GetVersion())
		os.Unsetenv("FLUXWEAVE_VERSION")
		assert.Equal(t, "v0", GetVersion())
	})
	t.Run("Should resolve store dir", func(t *testing.T) {
		assert.Equal(t, ".fluxweave", GetStoreDir(""))
		base := t.TempDir()
		assert.Equal(t, filepath.Join(base, ".fluxweave"), GetStoreDir(base))
	})
}

func Test_Stringers_And_Status(t *testing.T) {
	t.Run("Should stringify types", func(t *testing.T) {
		assert.Equal(t, "dispatched", EvtType("dispatched").String())
		assert.Equal(t, "manual", SourceType("manual").String())
	})
	t.Run("Should report terminal states", func(t *testing.T) {
		assert.False(t, StatusPending.IsTerminal())
		assert.False(t, StatusRunning.IsTerminal())
		assert.True(t, StatusFinished.IsTerminal())
		assert.True(t, StatusFailed.IsTerminal())
		assert.True(t, StatusCanceled.IsTerminal())
	})
}
