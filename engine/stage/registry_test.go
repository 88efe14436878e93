package stage_test

import (
	"testing"

	"github.com/fluxweave/fluxweave/engine/stage"
	"github.com/stretchr/testify/require"
)

func Test_Registry_RegisterAndLookup(t *testing.T) {
	reg := stage.NewRegistry()
	reg.Register(stage.Target{Name: "square", ParamNames: []string{"x"}})

	target, err := reg.Lookup("square")
	require.NoError(t, err)
	require.Equal(t, "square", target.Name)
	require.Contains(t, reg.Names(), "square")
}

func Test_Registry_LookupUnknownFails(t *testing.T) {
	reg := stage.NewRegistry()
	_, err := reg.Lookup("nope")
	require.Error(t, err)
}
