package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/lapdesk/lapdesk-backend/internal/response"
	"github.com/lapdesk/lapdesk-backend/internal/service"
)

// AuthHandler handles owner token issuance.
type AuthHandler struct {
	authService *service.AuthService
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// IssueToken godoc
// POST /api/v1/auth/token
// Mints an anonymous owner token. No credentials; one token per browser.
func (h *AuthHandler) IssueToken(c *gin.Context) {
	token, ownerID, err := h.authService.IssueOwnerToken(c.Request.Context())
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, gin.H{
		"token":    token,
		"owner_id": ownerID,
	})
}
