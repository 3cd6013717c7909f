package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/rewardcore-backend/internal/http/response"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/services"
)

type SynthesisHandler struct {
	synthesis services.SynthesisService
}

func NewSynthesisHandler(synthesis services.SynthesisService) *SynthesisHandler {
	return &SynthesisHandler{synthesis: synthesis}
}

type triggerSynthesisRequest struct {
	TriggeredBy string `json:"triggered_by,omitempty"`
}

func (h *SynthesisHandler) Trigger(c *gin.Context) {
	var req triggerSynthesisRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
			return
		}
	}
	run, err := h.synthesis.Trigger(dbctx.Context{Ctx: c.Request.Context()}, req.TriggeredBy)
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	response.RespondAccepted(c, run)
}

func (h *SynthesisHandler) GetRun(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	run, err := h.synthesis.Get(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	response.RespondOK(c, run)
}

func (h *SynthesisHandler) ListRuns(c *gin.Context) {
	runs, err := h.synthesis.List(dbctx.Context{Ctx: c.Request.Context()}, parseLimit(c, 50))
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	response.RespondOK(c, gin.H{"runs": runs})
}
