package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/lapdesk/lapdesk-backend/internal/middleware"
	"github.com/lapdesk/lapdesk-backend/internal/model"
	"github.com/lapdesk/lapdesk-backend/internal/response"
	"github.com/lapdesk/lapdesk-backend/internal/service"
	"github.com/lapdesk/lapdesk-backend/internal/validator"
)

// ShareHandler handles shared result endpoints.
type ShareHandler struct {
	sessionService *service.SessionService
	shareService   *service.ShareService
}

// NewShareHandler creates a new ShareHandler.
func NewShareHandler(sessionService *service.SessionService, shareService *service.ShareService) *ShareHandler {
	return &ShareHandler{
		sessionService: sessionService,
		shareService:   shareService,
	}
}

// Create godoc
// POST /api/v1/shares
// Publishes the owner's session results under an opaque id.
func (h *ShareHandler) Create(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.CreateShareRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	state, err := h.sessionService.State(claims.OwnerID)
	if err != nil {
		if errors.Is(err, service.ErrNoActiveSession) {
			response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	result, err := h.shareService.Create(c.Request.Context(), claims.OwnerID, state, req)
	if err != nil {
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, result)
}

// Get godoc
// GET /api/v1/shares/:share_id
// Returns a published result. Public, no token required.
func (h *ShareHandler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("share_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	result, err := h.shareService.Get(c.Request.Context(), id)
	if err != nil {
		if errors.Is(err, service.ErrShareNotFound) {
			response.Fail(c, http.StatusNotFound, response.ErrShareNotFound)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, result)
}

// Delete godoc
// DELETE /api/v1/shares/:share_id
// Removes a published result. The owner deletes freely; others need the
// passcode set at publish time.
func (h *ShareHandler) Delete(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	id, err := uuid.Parse(c.Param("share_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	var req model.DeleteShareRequest
	if c.Request.ContentLength > 0 {
		if fields := validator.Bind(c, &req); fields != nil {
			response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
			return
		}
	}

	err = h.shareService.Delete(c.Request.Context(), id, claims.OwnerID, req.Passcode)
	switch {
	case err == nil:
		response.Success(c, http.StatusOK, gin.H{})
	case errors.Is(err, service.ErrShareNotFound):
		response.Fail(c, http.StatusNotFound, response.ErrShareNotFound)
	case errors.Is(err, service.ErrPasscodeRequired):
		response.Fail(c, http.StatusForbidden, response.ErrPasscodeRequired)
	case errors.Is(err, service.ErrInvalidPasscode):
		response.Fail(c, http.StatusForbidden, response.ErrInvalidPasscode)
	default:
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
	}
}
