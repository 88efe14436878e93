package api

import (
	"fmt"

	"github.com/fluxweave/fluxweave/engine/core"
	"github.com/fluxweave/fluxweave/engine/stage"
	"github.com/fluxweave/fluxweave/engine/store"
	"github.com/fluxweave/fluxweave/engine/workflow"
	"github.com/gin-gonic/gin"
)

// registerWorkflows wires GET/POST /workflows, GET/PUT/DELETE
// /workflows/{id}, POST /workflows/{id}/run, GET /workflows/{id}/run, and
// GET/DELETE /workflows/run/{id} (spec §6).
func registerWorkflows(apiBase *gin.RouterGroup, deps *Dependencies) {
	group := apiBase.Group("/workflows")
	group.GET("", deps.listWorkflows)
	group.POST("", deps.createWorkflow)
	group.GET("/:id", deps.getWorkflow)
	group.PUT("/:id", deps.updateWorkflow)
	group.DELETE("/:id", deps.deleteWorkflow)
	group.POST("/:id/run", deps.runWorkflow)
	group.GET("/:id/run", deps.listWorkflowRuns)
	group.GET("/run/:run_id", deps.getRun)
	group.DELETE("/run/:run_id", deps.deleteRun)
}

func (d *Dependencies) listWorkflows(c *gin.Context) {
	workflows, err := d.Store.ListWorkflows(c.Request.Context())
	if err != nil {
		RespondWithError(c, err)
		return
	}
	items := make([]any, len(workflows))
	for i, wf := range workflows {
		items[i] = workflowToDTO(wf)
	}
	RespondOK(c, newListEnvelope(items, len(items)))
}

func (d *Dependencies) createWorkflow(c *gin.Context) {
	var req WorkflowCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, core.NewError(err, core.CodeValidationError, nil))
		return
	}
	stages := make([]stage.Stage, len(req.Stages))
	for i, s := range req.Stages {
		stages[i] = stageFromDTO(s)
	}
	res := workflow.NewResource(req.Name, stages)
	res.Metadata.UID = core.MustNewID().String()
	if err := validateGraph(res); err != nil {
		RespondWithError(c, err)
		return
	}
	if _, err := d.Store.PutWorkflow(c.Request.Context(), res); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondCreated(c, fmt.Sprintf("/workflows/%s", res.Metadata.UID), workflowToDTO(res))
}

func (d *Dependencies) getWorkflow(c *gin.Context) {
	res, err := d.Store.GetWorkflow(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, workflowToDTO(res))
}

func (d *Dependencies) updateWorkflow(c *gin.Context) {
	existing, err := d.Store.GetWorkflow(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	var req WorkflowCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, core.NewError(err, core.CodeValidationError, nil))
		return
	}
	stages := make([]stage.Stage, len(req.Stages))
	for i, s := range req.Stages {
		stages[i] = stageFromDTO(s)
	}
	patch := workflow.NewResource(req.Name, stages)
	patch.Metadata.UID = existing.Metadata.UID
	if err := validateGraph(patch); err != nil {
		RespondWithError(c, err)
		return
	}
	// uid and created_at survive via the store's Immutable-field merge
	// (spec §4.8); only updated_at and the submitted fields actually
	// change. Re-fetch to respond with the merged record rather than the
	// unmerged patch.
	if _, err := d.Store.PutWorkflow(c.Request.Context(), patch); err != nil {
		RespondWithError(c, err)
		return
	}
	saved, err := d.Store.GetWorkflow(c.Request.Context(), patch.Metadata.UID)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, workflowToDTO(saved))
}

func (d *Dependencies) deleteWorkflow(c *gin.Context) {
	if err := d.Store.DeleteWorkflow(c.Request.Context(), c.Param("id")); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondNoContent(c)
}

func (d *Dependencies) runWorkflow(c *gin.Context) {
	var req RunRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			RespondWithError(c, core.NewError(err, core.CodeValidationError, nil))
			return
		}
	}
	run, err := d.Runtime.RunWorkflow(c.Request.Context(), c.Param("id"), workflow.RunOptions{
		Input:     req.Payload,
		Namespace: req.Namespace,
		Source:    core.SourceAPI,
		Wait:      req.waitOrDefault(),
	})
	if err != nil {
		RespondWithError(c, err)
		return
	}
	if req.waitOrDefault() {
		RespondOK(c, runToDTO(run))
		return
	}
	RespondAccepted(c, runToDTO(run))
}

func (d *Dependencies) listWorkflowRuns(c *gin.Context) {
	namespace := c.Query("namespace")
	if namespace == "" {
		namespace = store.DefaultNamespace
	}
	runs, err := d.Store.ListRunsByWorkflow(c.Request.Context(), namespace, c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	items := make([]any, len(runs))
	for i, run := range runs {
		items[i] = runToDTO(run)
	}
	RespondOK(c, newListEnvelope(items, len(items)))
}

func (d *Dependencies) getRun(c *gin.Context) {
	namespace := c.Query("namespace")
	if namespace == "" {
		namespace = store.DefaultNamespace
	}
	run, err := d.Store.GetRun(c.Request.Context(), namespace, c.Param("run_id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, runToDTO(run))
}

func (d *Dependencies) deleteRun(c *gin.Context) {
	namespace := c.Query("namespace")
	if namespace == "" {
		namespace = store.DefaultNamespace
	}
	if err := d.Store.DeleteRun(c.Request.Context(), namespace, c.Param("run_id")); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondNoContent(c)
}

// validateGraph compiles res and walks its levels once, surfacing a
// CyclicDependency at submission time rather than at run time (spec §6
// scenario 3: "creation or compilation raises CyclicDependency; no run is
// created").
func validateGraph(res *workflow.Resource) error {
	graph, err := workflow.ToGraph(res)
	if err != nil {
		return err
	}
	_, err = graph.Levels()
	return err
}
