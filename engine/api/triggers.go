package api

import (
	"fmt"

	"github.com/fluxweave/fluxweave/engine/core"
	"github.com/fluxweave/fluxweave/engine/trigger"
	"github.com/gin-gonic/gin"
)

// registerTriggers wires GET/POST /triggers, GET/PUT/DELETE
// /triggers/{id} (spec §6) over TriggerRuleResource (spec §3, §4.7).
func registerTriggers(apiBase *gin.RouterGroup, deps *Dependencies) {
	group := apiBase.Group("/triggers")
	group.GET("", deps.listTriggers)
	group.POST("", deps.createTrigger)
	group.GET("/:id", deps.getTrigger)
	group.PUT("/:id", deps.updateTrigger)
	group.DELETE("/:id", deps.deleteTrigger)
}

func (d *Dependencies) listTriggers(c *gin.Context) {
	rules, err := d.Store.ListTriggerRules(c.Request.Context())
	if err != nil {
		RespondWithError(c, err)
		return
	}
	items := make([]any, len(rules))
	for i, rule := range rules {
		items[i] = triggerToDTO(rule)
	}
	RespondOK(c, newListEnvelope(items, len(items)))
}

func (d *Dependencies) createTrigger(c *gin.Context) {
	var req TriggerCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, core.NewError(err, core.CodeValidationError, nil))
		return
	}
	res, err := triggerFromCreateRequest(req)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	res.Metadata.UID = core.MustNewID().String()
	if _, err := d.Store.PutTriggerRule(c.Request.Context(), res); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondCreated(c, fmt.Sprintf("/triggers/%s", res.Metadata.UID), triggerToDTO(res))
}

func triggerFromCreateRequest(req TriggerCreateRequest) (*trigger.Resource, error) {
	typ := trigger.Type(req.Type)
	if typ != trigger.TypeCondition && typ != trigger.TypeSchedule {
		return nil, core.NewError(
			fmt.Errorf("trigger: unknown type %q, want %q or %q", req.Type, trigger.TypeCondition, trigger.TypeSchedule),
			core.CodeValidationError,
			nil,
		)
	}
	rule := req.Rule
	if typ == trigger.TypeSchedule {
		exprs, err := scheduleRuleFromAny(req.Rule)
		if err != nil {
			return nil, core.NewError(err, core.CodeValidationError, nil)
		}
		rule = exprs
	}
	return trigger.NewResource(req.Name, trigger.Spec{
		Type: typ,
		Rule: rule,
		Action: trigger.Action{
			Target:     req.Action.Target,
			Parameters: req.Action.Parameters,
		},
	}), nil
}

func triggerToDTO(res *trigger.Resource) TriggerDTO {
	return TriggerDTO{
		Kind:     res.Kind,
		Metadata: metadataToDTO(res.Metadata),
		Type:     string(res.Spec.Type),
		Rule:     res.Spec.Rule,
		Action: ActionDTO{
			Target:     res.Spec.Action.Target,
			Parameters: res.Spec.Action.Parameters,
		},
	}
}

func (d *Dependencies) getTrigger(c *gin.Context) {
	res, err := d.Store.GetTriggerRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, triggerToDTO(res))
}

func (d *Dependencies) updateTrigger(c *gin.Context) {
	existing, err := d.Store.GetTriggerRule(c.Request.Context(), c.Param("id"))
	if err != nil {
		RespondWithError(c, err)
		return
	}
	var req TriggerCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondWithError(c, core.NewError(err, core.CodeValidationError, nil))
		return
	}
	updated, err := triggerFromCreateRequest(req)
	if err != nil {
		RespondWithError(c, err)
		return
	}
	updated.Metadata.UID = existing.Metadata.UID
	if _, err := d.Store.PutTriggerRule(c.Request.Context(), updated); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondOK(c, triggerToDTO(updated))
}

func (d *Dependencies) deleteTrigger(c *gin.Context) {
	if err := d.Store.DeleteTriggerRule(c.Request.Context(), c.Param("id")); err != nil {
		RespondWithError(c, err)
		return
	}
	RespondNoContent(c)
}
