package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/rewardcore-backend/internal/http/response"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/services"
)

const maxIngestBodyBytes = 1 << 20

type EventHandler struct {
	events services.EventService
}

func NewEventHandler(events services.EventService) *EventHandler {
	return &EventHandler{events: events}
}

type ingestEventsRequest struct {
	UserID uuid.UUID             `json:"user_id"`
	Events []services.EventInput `json:"events"`
	// Single-event shorthand, used when Events is empty.
	Event *services.EventInput `json:"event,omitempty"`
}

func (h *EventHandler) Ingest(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxIngestBodyBytes)
	var req ingestEventsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	batch := req.Events
	if len(batch) == 0 && req.Event != nil {
		batch = []services.EventInput{*req.Event}
	}

	res, err := h.events.Ingest(dbctx.Context{Ctx: c.Request.Context()}, req.UserID, batch)
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	payload := gin.H{
		"accepted": res.Accepted,
		"deduped":  res.Deduped,
		"rejected": res.Rejected,
	}
	if res.JobID != nil {
		payload["state_update_job_id"] = res.JobID
	}
	response.RespondOK(c, payload)
}
