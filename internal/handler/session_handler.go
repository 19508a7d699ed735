package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/lapdesk/lapdesk-backend/internal/middleware"
	"github.com/lapdesk/lapdesk-backend/internal/model"
	"github.com/lapdesk/lapdesk-backend/internal/response"
	"github.com/lapdesk/lapdesk-backend/internal/service"
	"github.com/lapdesk/lapdesk-backend/internal/timer"
	"github.com/lapdesk/lapdesk-backend/internal/validator"
)

// SessionHandler handles the exam session lifecycle endpoints.
type SessionHandler struct {
	sessionService *service.SessionService
}

// NewSessionHandler creates a new SessionHandler.
func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{sessionService: sessionService}
}

// Start godoc
// POST /api/v1/sessions/start
// Starts a fresh exam run, replacing any previous one for this owner.
func (h *SessionHandler) Start(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.StartSessionRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	state, err := h.sessionService.Start(c.Request.Context(), claims.OwnerID, req.Config())
	if err != nil {
		var ve *timer.ValidationError
		if errors.As(err, &ve) {
			response.FailWithMessage(c, http.StatusUnprocessableEntity, response.ErrInvalidConfig, ve.Message)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusCreated, model.NewSessionState(state))
}

// State godoc
// GET /api/v1/sessions/state
// Returns the full current session view.
func (h *SessionHandler) State(c *gin.Context) {
	h.respondState(c, func(ownerID string) (timer.State, error) {
		return h.sessionService.State(ownerID)
	})
}

// Lap godoc
// POST /api/v1/sessions/lap
// Records a lap on one question, or toggles its batch selection.
func (h *SessionHandler) Lap(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.LapRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	state, err := h.sessionService.RecordLap(claims.OwnerID, req.Question, req.Answer)
	if err != nil {
		h.failState(c, err)
		return
	}

	response.Success(c, http.StatusOK, model.NewSessionState(state))
}

// SetBatchMode godoc
// PUT /api/v1/sessions/batch-mode
// Enables or disables batch selection mode.
func (h *SessionHandler) SetBatchMode(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.BatchModeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	state, err := h.sessionService.SetBatchMode(claims.OwnerID, req.Enabled)
	if err != nil {
		h.failState(c, err)
		return
	}

	response.Success(c, http.StatusOK, model.NewSessionState(state))
}

// RecordBatch godoc
// POST /api/v1/sessions/batch-record
// Splits the accumulated interval equally across the batch selection.
func (h *SessionHandler) RecordBatch(c *gin.Context) {
	h.respondState(c, h.sessionService.RecordBatch)
}

// TogglePause godoc
// POST /api/v1/sessions/pause
// Pauses or resumes the running clock.
func (h *SessionHandler) TogglePause(c *gin.Context) {
	h.respondState(c, h.sessionService.TogglePause)
}

// Finish godoc
// POST /api/v1/sessions/finish
// Ends the exam early and moves the session into review.
func (h *SessionHandler) Finish(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	state, err := h.sessionService.Finish(c.Request.Context(), claims.OwnerID)
	if err != nil {
		h.failState(c, err)
		return
	}

	response.Success(c, http.StatusOK, model.NewSessionState(state))
}

// Continue godoc
// POST /api/v1/sessions/continue
// Returns a reviewing session to active solving.
func (h *SessionHandler) Continue(c *gin.Context) {
	h.respondState(c, h.sessionService.Continue)
}

// Restart godoc
// POST /api/v1/sessions/restart
// Discards the current run and its snapshots.
func (h *SessionHandler) Restart(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	state, err := h.sessionService.Restart(c.Request.Context(), claims.OwnerID)
	if err != nil {
		h.failState(c, err)
		return
	}

	response.Success(c, http.StatusOK, model.NewSessionState(state))
}

// Grade godoc
// POST /api/v1/sessions/grade
// Applies an answer key to a reviewing session.
func (h *SessionHandler) Grade(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	var req model.GradeRequest
	if fields := validator.Bind(c, &req); fields != nil {
		response.FailWithFields(c, http.StatusBadRequest, response.ErrValidation, fields)
		return
	}

	key := make(map[int]string, len(req.AnswerKey))
	for numStr, answer := range req.AnswerKey {
		num, err := strconv.Atoi(numStr)
		if err != nil {
			response.Fail(c, http.StatusBadRequest, response.ErrInvalidPayload)
			return
		}
		key[num] = answer
	}

	state, err := h.sessionService.Grade(claims.OwnerID, key)
	if err != nil {
		h.failState(c, err)
		return
	}

	response.Success(c, http.StatusOK, model.NewSessionState(state))
}

// Resume godoc
// POST /api/v1/sessions/resume
// Restores the owner's session from its snapshot, paused.
func (h *SessionHandler) Resume(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	state, err := h.sessionService.Resume(c.Request.Context(), claims.OwnerID)
	if err != nil {
		if errors.Is(err, service.ErrNoSnapshot) {
			response.Fail(c, http.StatusNotFound, response.ErrNoSnapshot)
			return
		}
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	response.Success(c, http.StatusOK, model.NewSessionState(state))
}

// respondState handles the common claims-check / call / render shape shared
// by the body-less session endpoints.
func (h *SessionHandler) respondState(c *gin.Context, op func(ownerID string) (timer.State, error)) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	state, err := op(claims.OwnerID)
	if err != nil {
		h.failState(c, err)
		return
	}

	response.Success(c, http.StatusOK, model.NewSessionState(state))
}

func (h *SessionHandler) failState(c *gin.Context, err error) {
	if errors.Is(err, service.ErrNoActiveSession) {
		response.Fail(c, http.StatusNotFound, response.ErrNoActiveSession)
		return
	}
	response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
}
