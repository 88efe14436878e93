package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fluxweave/fluxweave/engine/api"
	"github.com/fluxweave/fluxweave/engine/bus"
	"github.com/fluxweave/fluxweave/engine/executor"
	"github.com/fluxweave/fluxweave/engine/stage"
	"github.com/fluxweave/fluxweave/engine/store"
	"github.com/fluxweave/fluxweave/engine/workflow"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

// echoTarget returns its kwargs unchanged, enough for the run-submission
// tests below (they don't assert on stage output, only run-lifecycle
// plumbing).
func echoTarget() stage.Target {
	return stage.Target{
		Name:          "echo",
		HasVarKeyword: true,
		Fn: func(_ context.Context, _ []stage.Value, kwargs map[string]stage.Value) (any, error) {
			return kwargs, nil
		},
	}
}

func newTestServer(t *testing.T) (*gin.Engine, *store.ResourceStore) {
	t.Helper()
	backend := store.NewMemory()
	resourceStore := store.NewResourceStore(backend)

	registry := stage.NewRegistry()
	registry.Register(echoTarget())

	local := executor.NewLocal(executor.LocalConfig{
		Workers:             1,
		ClusterMemorySocket: filepath.Join(t.TempDir(), "cm.sock"),
		Registry:            registry,
	})
	require.NoError(t, local.Start(context.Background()))
	t.Cleanup(func() { _ = local.Close(context.Background()) })

	eventBus := bus.NewEventBus(bus.NewMemoryBroker(8), bus.NewCallbackGroup())

	rt := &workflow.Runtime{
		Loader:           resourceStore,
		ConfigMerger:     resourceStore,
		RunStore:         resourceStore,
		Bus:              eventBus,
		Registry:         registry,
		Executor:         local,
		ExecutorName:     "local",
		RunRetention:     time.Minute,
		Strategy:         workflow.StrategyGroupByGroup,
		DefaultNamespace: store.DefaultNamespace,
	}

	deps := &api.Dependencies{Store: resourceStore, Runtime: rt}
	return api.NewRouter(deps, "/api/v0"), resourceStore
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)
	return rec
}

func Test_Workflows_CreateGetListDelete(t *testing.T) {
	r, _ := newTestServer(t)

	createBody := api.WorkflowCreateRequest{
		Name: "demo",
		Stages: []api.StageDTO{
			{Type: "simple", Target: "echo", Name: "s1"},
		},
	}
	rec := doJSON(t, r, http.MethodPost, "/api/v0/workflows", createBody)
	require.Equal(t, http.StatusCreated, rec.Code)
	require.NotEmpty(t, rec.Header().Get("Location"))

	var created api.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	dataMap, ok := created.Data.(map[string]any)
	require.True(t, ok)
	metadata := dataMap["metadata"].(map[string]any)
	uid := metadata["uid"].(string)
	require.NotEmpty(t, uid)

	getRec := doJSON(t, r, http.MethodGet, "/api/v0/workflows/"+uid, nil)
	require.Equal(t, http.StatusOK, getRec.Code)

	listRec := doJSON(t, r, http.MethodGet, "/api/v0/workflows", nil)
	require.Equal(t, http.StatusOK, listRec.Code)

	delRec := doJSON(t, r, http.MethodDelete, "/api/v0/workflows/"+uid, nil)
	require.Equal(t, http.StatusOK, delRec.Code)

	missingRec := doJSON(t, r, http.MethodGet, "/api/v0/workflows/"+uid, nil)
	require.Equal(t, http.StatusNotFound, missingRec.Code)
}

func Test_Workflows_CreateRejectsCyclicDependency(t *testing.T) {
	r, _ := newTestServer(t)
	createBody := api.WorkflowCreateRequest{
		Name: "cyclic",
		Stages: []api.StageDTO{
			{Type: "simple", Target: "echo", Name: "a", DependsOn: []string{"b"}},
			{Type: "simple", Target: "echo", Name: "b", DependsOn: []string{"a"}},
		},
	}
	rec := doJSON(t, r, http.MethodPost, "/api/v0/workflows", createBody)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_Workflows_RunWaitsAndReturnsFinishedRun(t *testing.T) {
	r, _ := newTestServer(t)
	createBody := api.WorkflowCreateRequest{
		Name: "runnable",
		Stages: []api.StageDTO{
			{Type: "simple", Target: "echo", Name: "s1"},
		},
	}
	createRec := doJSON(t, r, http.MethodPost, "/api/v0/workflows", createBody)
	require.Equal(t, http.StatusCreated, createRec.Code)
	var created api.Response
	require.NoError(t, json.Unmarshal(createRec.Body.Bytes(), &created))
	uid := created.Data.(map[string]any)["metadata"].(map[string]any)["uid"].(string)

	runRec := doJSON(t, r, http.MethodPost, "/api/v0/workflows/"+uid+"/run", api.RunRequest{Payload: map[string]any{"x": 1}})
	require.Equal(t, http.StatusOK, runRec.Code)

	var resp api.Response
	require.NoError(t, json.Unmarshal(runRec.Body.Bytes(), &resp))
	runData := resp.Data.(map[string]any)
	require.Equal(t, "finished", runData["state"])
}

func Test_Configs_CreateAndSelectorJoin(t *testing.T) {
	r, resourceStore := newTestServer(t)
	_ = resourceStore

	createBody := api.ConfigCreateRequest{
		Name: "cfg1",
		Selector: api.SelectorDTO{
			Type:  "name",
			Value: map[string]string{"name": "demo"},
		},
		Data: map[string]any{"region": "us-east"},
	}
	rec := doJSON(t, r, http.MethodPost, "/api/v0/configs", createBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	listRec := doJSON(t, r, http.MethodGet, "/api/v0/configs", nil)
	require.Equal(t, http.StatusOK, listRec.Code)
}

func Test_Triggers_CreateGetDelete(t *testing.T) {
	r, _ := newTestServer(t)
	createBody := api.TriggerCreateRequest{
		Name: "on-event",
		Type: "condition",
		Rule: map[string]any{"eq": []any{map[string]any{"var": "type"}, "com.event.x"}},
		Action: api.ActionDTO{
			Target: "run_workflow",
			Parameters: map[string]any{"workflow": "demo"},
		},
	}
	rec := doJSON(t, r, http.MethodPost, "/api/v0/triggers", createBody)
	require.Equal(t, http.StatusCreated, rec.Code)

	var created api.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	dataMap := created.Data.(map[string]any)
	metadata := dataMap["metadata"].(map[string]any)
	uid := metadata["uid"].(string)

	getRec := doJSON(t, r, http.MethodGet, "/api/v0/triggers/"+uid, nil)
	require.Equal(t, http.StatusOK, getRec.Code)

	delRec := doJSON(t, r, http.MethodDelete, "/api/v0/triggers/"+uid, nil)
	require.Equal(t, http.StatusOK, delRec.Code)
}

func Test_Triggers_CreateRejectsUnknownType(t *testing.T) {
	r, _ := newTestServer(t)
	rec := doJSON(t, r, http.MethodPost, "/api/v0/triggers", api.TriggerCreateRequest{Name: "bad", Type: "unknown"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func Test_Status_ReportsEmptyWithoutController(t *testing.T) {
	r, _ := newTestServer(t)
	rec := doJSON(t, r, http.MethodGet, "/api/v0/status", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func Test_Plugin_ReturnsNotImplemented(t *testing.T) {
	r, _ := newTestServer(t)
	rec := doJSON(t, r, http.MethodGet, "/api/v0/plugin/demo", nil)
	require.Equal(t, http.StatusNotImplemented, rec.Code)
}
