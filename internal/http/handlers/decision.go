package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/rewardcore-backend/internal/http/response"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/policy"
	"github.com/yungbote/rewardcore-backend/internal/services"
)

type DecisionHandler struct {
	decisions services.DecisionService
}

func NewDecisionHandler(decisions services.DecisionService) *DecisionHandler {
	return &DecisionHandler{decisions: decisions}
}

type decideRequest struct {
	UserID uuid.UUID             `json:"user_id"`
	Signup *policy.SignupContext `json:"signup_context,omitempty"`
}

type decisionResponse struct {
	DecisionID       uuid.UUID  `json:"decision_id"`
	Kind             string     `json:"kind"`
	ActionID         *uuid.UUID `json:"action_id,omitempty"`
	ActionKey        string     `json:"action_key,omitempty"`
	Title            string     `json:"title,omitempty"`
	RewardType       string     `json:"reward_type,omitempty"`
	Intensity        string     `json:"intensity,omitempty"`
	PresentationHint string     `json:"presentation_hint,omitempty"`
	Explored         bool       `json:"explored"`
	WindowExpiresAt  time.Time  `json:"window_expires_at"`
}

func (h *DecisionHandler) Decide(c *gin.Context) {
	var req decideRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	out, err := h.decisions.Decide(dbctx.Context{Ctx: c.Request.Context()}, services.DecideInput{
		UserID: req.UserID,
		Signup: req.Signup,
	})
	if err != nil {
		response.RespondFailure(c, err)
		return
	}

	resp := decisionResponse{
		DecisionID:       out.Decision.ID,
		Kind:             out.Decision.Kind,
		ActionID:         out.Decision.ActionID,
		ActionKey:        out.Decision.ActionKey,
		PresentationHint: out.Decision.PresentationHint,
		Explored:         out.Decision.Explored,
		WindowExpiresAt:  out.Decision.WindowExpiresAt,
	}
	if out.Action != nil {
		resp.Title = out.Action.Title
		resp.RewardType = out.Action.RewardType
		resp.Intensity = out.Action.Intensity
	}
	response.RespondOK(c, resp)
}

func (h *DecisionHandler) GetDecision(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	decision, err := h.decisions.Get(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	response.RespondOK(c, decision)
}

func (h *DecisionHandler) ListUserDecisions(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "id")
	if !ok {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	decisions, err := h.decisions.ListByUser(dbctx.Context{Ctx: c.Request.Context()}, userID, parseLimit(c, 50))
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	response.RespondOK(c, gin.H{"decisions": decisions})
}
