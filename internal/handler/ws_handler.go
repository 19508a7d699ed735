package handler

import (
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/lapdesk/lapdesk-backend/internal/config"
	"github.com/lapdesk/lapdesk-backend/internal/middleware"
	"github.com/lapdesk/lapdesk-backend/internal/model"
	"github.com/lapdesk/lapdesk-backend/internal/service"
	"github.com/lapdesk/lapdesk-backend/internal/timer"
	ws "github.com/lapdesk/lapdesk-backend/internal/websocket"
)

// statePushInterval is the cadence of unsolicited state frames while a
// connection is open.
const statePushInterval = time.Second

// buildUpgrader creates a WebSocket upgrader with origin validation.
// An empty allow list permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// WSHandler streams live session state and accepts timing actions over
// WebSocket.
type WSHandler struct {
	rdb            *redis.Client
	sessionService *service.SessionService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(rdb *redis.Client, sessionService *service.SessionService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		rdb:            rdb,
		sessionService: sessionService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// wsSignal is sent from the read loop to the single writer goroutine.
type wsSignal struct {
	event  ws.Event
	errMsg string
}

// SessionStream godoc
// WS /ws/v1/sessions/stream
// Upgrades to WebSocket for live state pushes and low-latency lap actions.
func (h *WSHandler) SessionStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	ownerID := claims.OwnerID

	if _, err := h.sessionService.State(ownerID); err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "no active session"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("owner_id", ownerID).Logger()
	wsLog.Info().Msg("Owner connected")

	// Time-up events come through Redis pub/sub so every connection for the
	// owner sees them, whichever server instance fired the clock.
	pubsub := h.rdb.Subscribe(c.Request.Context(), config.CacheKey.SessionEventChannel(ownerID))
	defer pubsub.Close()

	signals := make(chan wsSignal, 16)
	done := make(chan struct{})
	go h.readLoop(conn, ownerID, wsLog, signals, done)

	ticker := time.NewTicker(statePushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			wsLog.Info().Msg("Owner disconnected")
			return

		case <-ticker.C:
			if !h.pushState(conn, ownerID, ws.EventState) {
				return
			}

		case sig := <-signals:
			switch sig.event {
			case ws.EventPong:
				if ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}) != nil {
					return
				}
			case ws.EventError:
				if ws.WriteError(conn, sig.errMsg) != nil {
					return
				}
			default:
				if !h.pushState(conn, ownerID, ws.EventState) {
					return
				}
			}

		case msg, ok := <-pubsub.Channel():
			if !ok {
				return
			}
			var ev struct {
				Event string `json:"event"`
			}
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				continue
			}
			if ev.Event == string(timer.EventTimeUp) {
				if !h.pushState(conn, ownerID, ws.EventTimeUp) {
					return
				}
			}
		}
	}
}

// readLoop consumes client actions. Mutations go through the session
// service; the writer goroutine is signalled to push the updated state.
func (h *WSHandler) readLoop(conn *websocket.Conn, ownerID string, wsLog zerolog.Logger, signals chan<- wsSignal, done chan<- struct{}) {
	defer close(done)

	for {
		var raw json.RawMessage
		if err := ws.ReadJSON(conn, &raw); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			}
			return
		}

		var envelope ws.RequestEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			signals <- wsSignal{event: ws.EventError, errMsg: "invalid message"}
			continue
		}

		switch envelope.Action {
		case ws.ActionPing:
			signals <- wsSignal{event: ws.EventPong}

		case ws.ActionLap:
			var req ws.LapRequest
			if err := json.Unmarshal(raw, &req); err != nil || req.Question < 1 {
				signals <- wsSignal{event: ws.EventError, errMsg: "invalid lap payload"}
				continue
			}
			if _, err := h.sessionService.RecordLap(ownerID, req.Question, req.Answer); err != nil {
				signals <- wsSignal{event: ws.EventError, errMsg: "no active session"}
				continue
			}
			signals <- wsSignal{event: ws.EventState}

		case ws.ActionBatchRecord:
			if _, err := h.sessionService.RecordBatch(ownerID); err != nil {
				signals <- wsSignal{event: ws.EventError, errMsg: "no active session"}
				continue
			}
			signals <- wsSignal{event: ws.EventState}

		case ws.ActionTogglePause:
			if _, err := h.sessionService.TogglePause(ownerID); err != nil {
				signals <- wsSignal{event: ws.EventError, errMsg: "no active session"}
				continue
			}
			signals <- wsSignal{event: ws.EventState}

		default:
			wsLog.Warn().Str("action", string(envelope.Action)).Msg("Unknown action")
			signals <- wsSignal{event: ws.EventError, errMsg: "unknown action: " + string(envelope.Action)}
		}
	}
}

// pushState writes one state frame. Returns false when the connection is
// gone.
func (h *WSHandler) pushState(conn *websocket.Conn, ownerID string, event ws.Event) bool {
	state, err := h.sessionService.State(ownerID)
	if err != nil {
		return ws.WriteError(conn, "no active session") == nil
	}

	view := model.NewSessionState(state)
	if event == ws.EventTimeUp {
		return ws.WriteTyped(conn, ws.TimeUpResponse{Event: ws.EventTimeUp, State: view}) == nil
	}
	return ws.WriteTyped(conn, ws.StateResponse{Event: ws.EventState, State: view}) == nil
}
