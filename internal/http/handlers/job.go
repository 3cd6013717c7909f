package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/yungbote/rewardcore-backend/internal/http/response"
	"github.com/yungbote/rewardcore-backend/internal/platform/apierr"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/services"
)

type JobHandler struct {
	jobs services.JobService
}

func NewJobHandler(jobs services.JobService) *JobHandler {
	return &JobHandler{jobs: jobs}
}

func (h *JobHandler) GetJob(c *gin.Context) {
	id, ok := parseUUIDParam(c, "id")
	if !ok {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", nil)
		return
	}
	job, err := h.jobs.GetByID(dbctx.Context{Ctx: c.Request.Context()}, id)
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	if job == nil {
		response.RespondFailure(c, apierr.ErrNotFound)
		return
	}
	response.RespondOK(c, job)
}

func (h *JobHandler) ListRecent(c *gin.Context) {
	jobs, err := h.jobs.ListRecent(dbctx.Context{Ctx: c.Request.Context()}, c.Query("type"), parseLimit(c, 50))
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	response.RespondOK(c, gin.H{"jobs": jobs})
}
