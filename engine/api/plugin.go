package api

import (
	"fmt"
	"net/http"

	"github.com/fluxweave/fluxweave/engine/core"
	"github.com/gin-gonic/gin"
)

// registerPlugin wires GET /plugin/{name} and GET /plugin/{name}/files
// (spec §6). Plugin discovery/install mechanics are an explicit Non-goal
// ("treated as external collaborators, named only by their interface"),
// so both routes exist only to report a stable 501 contract rather than
// implement the plugin system.
func registerPlugin(apiBase *gin.RouterGroup) {
	group := apiBase.Group("/plugin")
	group.GET("/:name", notImplementedPlugin)
	group.GET("/:name/files", notImplementedPlugin)
}

func notImplementedPlugin(c *gin.Context) {
	problem := core.NormalizeProblem(&core.Problem{
		Status:   http.StatusNotImplemented,
		Title:    "Not Implemented",
		Detail:   fmt.Sprintf("plugin %q: discovery/install mechanics are not implemented by this server", c.Param("name")),
		Instance: c.Request.URL.Path,
	})
	c.AbortWithStatusJSON(http.StatusNotImplemented, core.BuildProblemBody(problem))
}
