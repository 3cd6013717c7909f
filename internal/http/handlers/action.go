package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/rewardcore-backend/internal/http/response"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/services"
)

type ActionHandler struct {
	catalog services.CatalogService
}

func NewActionHandler(catalog services.CatalogService) *ActionHandler {
	return &ActionHandler{catalog: catalog}
}

func (h *ActionHandler) ListActions(c *gin.Context) {
	specs, err := h.catalog.List(dbctx.Context{Ctx: c.Request.Context()}, c.Query("status"), parseLimit(c, 200))
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	response.RespondOK(c, gin.H{"actions": specs})
}

func (h *ActionHandler) GetAction(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	spec, err := h.catalog.Get(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	response.RespondOK(c, spec)
}

func (h *ActionHandler) Promote(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	spec, err := h.catalog.Promote(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	response.RespondOK(c, spec)
}

func (h *ActionHandler) Retire(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	spec, err := h.catalog.Retire(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	response.RespondOK(c, spec)
}
