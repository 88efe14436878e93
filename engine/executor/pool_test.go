package executor

import (
	"context"
	"testing"
	"time"

	"github.com/fluxweave/fluxweave/engine/core"
	"github.com/stretchr/testify/require"
)

func Test_Pool_AcquireRelease(t *testing.T) {
	p := newPool(1, Capacity{"cpus": 2})
	release, err := p.acquire(t.Context(), map[string]float64{"cpus": 2})
	require.NoError(t, err)
	release()

	release2, err := p.acquire(t.Context(), map[string]float64{"cpus": 2})
	require.NoError(t, err)
	release2()
}

func Test_Pool_InsufficientResourcesFailsBeforeSubmission(t *testing.T) {
	p := newPool(4, Capacity{"cpus": 1})
	_, err := p.acquire(t.Context(), map[string]float64{"cpus": 2})
	require.Error(t, err)
	var coreErr *core.Error
	require.ErrorAs(t, err, &coreErr)
	require.Equal(t, core.CodeResourceExhausted, coreErr.Code)
}

func Test_Pool_UntrackedResourceIsUnbounded(t *testing.T) {
	p := newPool(1, Capacity{"cpus": 1})
	release, err := p.acquire(t.Context(), map[string]float64{"gpus": 100})
	require.NoError(t, err)
	release()
}

func Test_Pool_SecondAcquireWaitsForSemaphoreSlot(t *testing.T) {
	p := newPool(1, Capacity{})
	release1, err := p.acquire(t.Context(), nil)
	require.NoError(t, err)

	acquired := make(chan struct{})
	go func() {
		release2, err := p.acquire(context.Background(), nil)
		require.NoError(t, err)
		close(acquired)
		release2()
	}()

	select {
	case <-acquired:
		t.Fatal("second acquire should not complete while first holds the only slot")
	case <-time.After(50 * time.Millisecond):
	}

	release1()
	select {
	case <-acquired:
	case <-time.After(time.Second):
		t.Fatal("second acquire did not complete after release")
	}
}
