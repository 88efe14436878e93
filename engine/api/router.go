package api

import (
	"github.com/fluxweave/fluxweave/engine/service"
	"github.com/fluxweave/fluxweave/engine/store"
	"github.com/fluxweave/fluxweave/engine/workflow"
	"github.com/gin-gonic/gin"
)

// Dependencies collects everything the route handlers call into: the
// resource store (doubling as the workflow/config/trigger CRUD use-case
// layer, since no separate use-case package exists in this port), the
// workflow runtime (for the run endpoints), and the service controller
// (for the status endpoint). The artifact store has no HTTP surface in
// spec §6's route list, so it isn't threaded through here.
type Dependencies struct {
	Store      *store.ResourceStore
	Runtime    *workflow.Runtime
	Controller *service.Controller
}

// NewRouter builds the gin engine serving every route in spec §6, rooted
// at apiBasePath (e.g. "/api/v0"), grounded on the teacher's
// Register(apiBase *gin.RouterGroup) per-resource registration idiom.
func NewRouter(deps *Dependencies, apiBasePath string) *gin.Engine {
	r := gin.New()
	r.Use(ErrorHandler())

	apiBase := r.Group(apiBasePath)
	registerWorkflows(apiBase, deps)
	registerConfigs(apiBase, deps)
	registerTriggers(apiBase, deps)
	registerStatus(apiBase, deps)
	registerPlugin(apiBase)
	return r
}
