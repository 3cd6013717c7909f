package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/rewardcore-backend/internal/http/response"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/services"
)

type OutcomeHandler struct {
	outcomes services.OutcomeService
}

func NewOutcomeHandler(outcomes services.OutcomeService) *OutcomeHandler {
	return &OutcomeHandler{outcomes: outcomes}
}

func (h *OutcomeHandler) Record(c *gin.Context) {
	decisionID, ok := parseUUIDParam(c, "id")
	if !ok {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	var in services.OutcomeInput
	if err := c.ShouldBindJSON(&in); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	outcome, err := h.outcomes.Record(dbctx.Context{Ctx: c.Request.Context()}, decisionID, in)
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	response.RespondAccepted(c, gin.H{
		"outcome_id":  outcome.ID,
		"decision_id": outcome.DecisionID,
		"applied":     outcome.Applied,
	})
}

func (h *OutcomeHandler) ListByDecision(c *gin.Context) {
	decisionID, ok := parseUUIDParam(c, "id")
	if !ok {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	outcomes, err := h.outcomes.ListByDecision(dbctx.Context{Ctx: c.Request.Context()}, decisionID)
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	response.RespondOK(c, gin.H{"outcomes": outcomes})
}
