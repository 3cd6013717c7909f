package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/rewardcore-backend/internal/http/response"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/services"
)

type ProfileHandler struct {
	profiles services.ProfileService
}

func NewProfileHandler(profiles services.ProfileService) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

func (h *ProfileHandler) GetProfile(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "id")
	if !ok {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	profile, err := h.profiles.GetPublic(dbctx.Context{Ctx: c.Request.Context()}, userID)
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	response.RespondOK(c, profile)
}

func (h *ProfileHandler) RefreshProfile(c *gin.Context) {
	userID, ok := parseUUIDParam(c, "id")
	if !ok {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	job, queued, err := h.profiles.Refresh(dbctx.Context{Ctx: c.Request.Context()}, userID)
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	payload := gin.H{"queued": queued}
	if job != nil {
		payload["job_id"] = job.ID
	}
	response.RespondAccepted(c, payload)
}
