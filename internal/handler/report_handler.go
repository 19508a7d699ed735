package handler

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"github.com/lapdesk/lapdesk-backend/internal/middleware"
	"github.com/lapdesk/lapdesk-backend/internal/response"
	"github.com/lapdesk/lapdesk-backend/internal/service"
)

// ReportHandler handles post-exam analysis endpoints.
type ReportHandler struct {
	sessionService *service.SessionService
	reportService  *service.ReportService
	log            zerolog.Logger
}

// NewReportHandler creates a new ReportHandler.
func NewReportHandler(sessionService *service.SessionService, reportService *service.ReportService, log zerolog.Logger) *ReportHandler {
	return &ReportHandler{
		sessionService: sessionService,
		reportService:  reportService,
		log:            log.With().Str("component", "report_handler").Logger(),
	}
}

// GetReport godoc
// GET /api/v1/sessions/report
// Returns the analysis report for the owner's session.
func (h *ReportHandler) GetReport(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
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

	response.Success(c, http.StatusOK, h.reportService.Build(state))
}

// DownloadCSV godoc
// GET /api/v1/sessions/report/csv
// Streams the per-question breakdown as a CSV download.
func (h *ReportHandler) DownloadCSV(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
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

	filename := fmt.Sprintf("exam-report-%s.csv", time.Now().Format("2006-01-02"))
	c.Header("Content-Type", "text/csv")
	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename=%q`, filename))

	if err := h.reportService.WriteCSV(c.Writer, state); err != nil {
		h.log.Error().Err(err).Str("owner_id", claims.OwnerID).Msg("CSV write failed")
	}
}
