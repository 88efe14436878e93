package api

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// registerStatus wires GET /status (service lifecycle snapshot, spec §6)
// and GET /metrics (Prometheus exposition, engine/infra/monitoring.Config's
// default path).
func registerStatus(apiBase *gin.RouterGroup, deps *Dependencies) {
	apiBase.GET("/status", deps.getStatus)
	apiBase.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// StatusDTO is the GET /status response: the lifecycle state of every
// service the controller supervises (engine/service.Controller.Status).
type StatusDTO struct {
	Services []serviceStatusDTO `json:"services"`
}

type serviceStatusDTO struct {
	Name  string `json:"name"`
	State string `json:"state"`
}

func (d *Dependencies) getStatus(c *gin.Context) {
	if d.Controller == nil {
		RespondOK(c, StatusDTO{})
		return
	}
	statuses := d.Controller.Status()
	items := make([]serviceStatusDTO, len(statuses))
	for i, s := range statuses {
		items[i] = serviceStatusDTO{Name: s.Name, State: s.State}
	}
	RespondOK(c, StatusDTO{Services: items})
}
