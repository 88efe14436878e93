package api

import (
	"fmt"

	"github.com/fluxweave/fluxweave/engine/core"
	"github.com/fluxweave/fluxweave/engine/store"
	"github.com/gin-gonic/gin"
)

// registerConfigs wires GET/POST /configs, GET/PUT/DELETE /configs/{id}
// (spec §6), the ConfigResource side of the selector-join config system
// (spec §4.6).
func registerConfigs(apiBase *gin.RouterGroup, deps *Dependencies) {
	group := apiBase.Group("/configs")
	group.GET("", deps.listConfigs)
	group.POST("", deps.createConfig)
	group.GET("/:id", deps.getConfig)
	group.PUT("/:id", deps.updateConfig)
	group.DELETE("/:id", deps.deleteConfig)
}

func (d *Dependencies) listConfigs(c *gin.Context) {
	configs, err := d.Store.ListConfigs(c.Request.Context())
	if err != nil {
		RespondWithError(c, err)
		return
	}
	items := make([]any, len(configs))
	for i, cfg := range configs {
		items[i] = configToDTO(cfg)
	}
	RespondOK(c, newListEnvelope(items, len(items)))
}

func (d *Dependencies) createConfig(c *gin.Context) {
	var req ConfigCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, core.NewError(err, core.CodeValidationError, nil))
		return
	}
	res := configFromCreateRequest(req)
	res.Metadata.UID = core.MustNewID().String()
	if _, err := d.Store.PutConfig(c.Request.Context(), res); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondCreated(c, fmt.Sprintf("/configs/%s", res.Metadata.Name), configToDTO(res))
}

func configFromCreateRequest(req ConfigCreateRequest) *store.ConfigResource {
	return &store.ConfigResource{
		Kind: "config",
		Metadata: store.ConfigMeta{
			Name:        req.Name,
			Annotations: req.Annotations,
		},
		Spec: store.ConfigSpec{
			Selector: store.Selector{
				Type:  req.Selector.Type,
				Kind:  req.Selector.Kind,
				Value: req.Selector.Value,
			},
			Data: req.Data,
		},
	}
}

func (d *Dependencies) getConfig(c *gin.Context) {
	res, err := d.Store.GetConfig(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, configToDTO(res))
}

func (d *Dependencies) updateConfig(c *gin.Context) {
	if _, err := d.Store.GetConfig(c.Request.Context(), c.Param("id")); err != nil {
		RespondWithError(c, err)
		return
	}
	var req ConfigCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, core.NewError(err, core.CodeValidationError, nil))
		return
	}
	req.Name = c.Param("id")
	res := configFromCreateRequest(req)
	// uid and created_at survive via the store's Immutable-field merge
	// (spec §4.8); re-fetch to respond with the merged record.
	if _, err := d.Store.PutConfig(c.Request.Context(), res); err != nil {
		RespondWithError(c, err)
		return
	}
	saved, err := d.Store.GetConfig(c.Request.Context(), req.Name)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, configToDTO(saved))
}

func (d *Dependencies) deleteConfig(c *gin.Context) {
	if err := d.Store.DeleteConfig(c.Request.Context(), c.Param("id")); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondNoContent(c)
}
