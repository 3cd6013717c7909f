package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/yungbote/rewardcore-backend/internal/http/response"
	"github.com/yungbote/rewardcore-backend/internal/platform/dbctx"
	"github.com/yungbote/rewardcore-backend/internal/services"
)

type AuthHandler struct {
	auth services.AuthService
}

func NewAuthHandler(auth services.AuthService) *AuthHandler {
	return &AuthHandler{auth: auth}
}

type issueTokenRequest struct {
	KeyID  string `json:"key_id"`
	Secret string `json:"secret"`
}

func (h *AuthHandler) IssueToken(c *gin.Context) {
	var req issueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	grant, err := h.auth.IssueToken(dbctx.Context{Ctx: c.Request.Context()}, req.KeyID, req.Secret)
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	response.RespondOK(c, grant)
}

type createAccountRequest struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

func (h *AuthHandler) CreateAccount(c *gin.Context) {
	var req createAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	created, err := h.auth.CreateAccount(dbctx.Context{Ctx: c.Request.Context()}, req.Name, req.Scopes)
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	response.RespondCreated(c, created)
}

func (h *AuthHandler) ListAccounts(c *gin.Context) {
	accounts, err := h.auth.ListAccounts(dbctx.Context{Ctx: c.Request.Context()}, parseLimit(c, 100))
	if err != nil {
		response.RespondFailure(c, err)
		return
	}
	response.RespondOK(c, gin.H{"accounts": accounts})
}

type setDisabledRequest struct {
	Disabled bool `json:"disabled"`
}

func (h *AuthHandler) SetAccountDisabled(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_id", err)
		return
	}
	var req setDisabledRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.RespondError(c, http.StatusBadRequest, "invalid_json", err)
		return
	}
	if err := h.auth.SetAccountDisabled(dbctx.Context{Ctx: c.Request.Context()}, id, req.Disabled); err != nil {
		response.RespondFailure(c, err)
		return
	}
	response.RespondOK(c, gin.H{"ok": true})
}
