package handler

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"ai-docinsight-be/internal/constant"
	"ai-docinsight-be/internal/dto"
	"ai-docinsight-be/internal/pkg/logger"
	"ai-docinsight-be/internal/pkg/serverutils"
	"ai-docinsight-be/internal/service"
	internalWS "ai-docinsight-be/internal/websocket"
	"ai-docinsight-be/pkg/events"
	pktNats "ai-docinsight-be/pkg/nats"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// SessionHandler owns the websocket session surface: the upgrade endpoint
// plus the inbound event dispatch into the analysis and document services.
type SessionHandler struct {
	hub           *internalWS.Hub
	analysis      service.IAnalysisService
	documents     service.IDocumentService
	publisher     *pktNats.Publisher
	debounceDelay time.Duration
	logger        logger.ILogger
}

func NewSessionHandler(
	hub *internalWS.Hub,
	analysis service.IAnalysisService,
	documents service.IDocumentService,
	publisher *pktNats.Publisher,
	debounceDelay time.Duration,
	log logger.ILogger,
) *SessionHandler {
	return &SessionHandler{
		hub:           hub,
		analysis:      analysis,
		documents:     documents,
		publisher:     publisher,
		debounceDelay: debounceDelay,
		logger:        log,
	}
}

// ServeWs upgrades the connection and binds it to a prompt session. The
// session id is client-supplied so reconnects resume the same prompt state;
// absent one, a fresh id is minted.
func (h *SessionHandler) ServeWs(c *fiber.Ctx) error {
	userID := c.Query("user_id")
	if userID == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Missing user_id query parameter"})
	}

	sessionID := c.Query("session_id")
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	if websocket.IsWebSocketUpgrade(c) {
		return websocket.New(func(conn *websocket.Conn) {
			h.logger.Info("SessionHandler", "Starting WebSocket session", map[string]interface{}{
				"user_id":    userID,
				"session_id": sessionID,
			})
			internalWS.ServeWs(h.hub, conn, userID, sessionID, h, h.debounceDelay)
			h.logger.Info("SessionHandler", "WebSocket session ended", map[string]interface{}{
				"user_id":    userID,
				"session_id": sessionID,
			})
		})(c)
	}
	return fiber.ErrUpgradeRequired
}

// HandleEvent implements websocket.EventHandler.
func (h *SessionHandler) HandleEvent(userID, sessionID, event string, data json.RawMessage) {
	switch event {
	case constant.EventUpdateUserText:
		h.handleUpdateUserText(userID, sessionID, data)
	case constant.EventUploadDocument:
		h.handleUploadDocument(userID, data)
	case constant.EventRequestAnalysis:
		// AI calls can take seconds; keep the read pump responsive.
		go h.handleRequestAnalysis(userID, sessionID, data)
	case constant.EventUpdateSystemTemplate:
		h.handleUpdateTemplate(userID, sessionID, data)
	default:
		h.logger.Warn("SessionHandler", "Unknown inbound event", map[string]interface{}{
			"user_id": userID,
			"event":   event,
		})
	}
}

func (h *SessionHandler) handleUpdateUserText(userID, sessionID string, data json.RawMessage) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		h.pushError(userID, sessionID, "Invalid update_user_text payload")
		return
	}
	if err := h.analysis.UpdateUserText(userID, sessionID, payload.Text); err != nil {
		h.pushError(userID, sessionID, err.Error())
	}
}

func (h *SessionHandler) handleUploadDocument(userID string, data json.RawMessage) {
	var payload dto.UploadDocumentRequest
	if err := json.Unmarshal(data, &payload); err != nil {
		h.pushError(userID, "", "Invalid upload_document payload")
		return
	}
	if payload.Name == "" || payload.Text == "" {
		h.pushError(userID, "", "Document name and text are required")
		return
	}

	if _, err := h.documents.Upload(context.Background(), userID, &payload); err != nil {
		h.pushError(userID, "", err.Error())
	}
}

func (h *SessionHandler) handleRequestAnalysis(userID, sessionID string, data json.RawMessage) {
	var payload struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(data, &payload); err != nil || payload.Query == "" {
		h.pushError(userID, sessionID, "Invalid request_analysis payload")
		return
	}

	response, err := h.analysis.RequestAnalysis(context.Background(), &dto.AnalyzeRequest{
		UserId:    userID,
		SessionId: sessionID,
		Query:     payload.Query,
	})
	if err != nil {
		var rateLimited *service.RateLimitedError
		if errors.As(err, &rateLimited) {
			h.hub.Push(userID, constant.EventAnalysisError, map[string]interface{}{
				"session_id":  sessionID,
				"message":     "Rate limit exceeded. Please slow down.",
				"retry_after": int(rateLimited.RetryAfter.Seconds()),
			})
			h.publishEvent(events.TypeRateLimited, map[string]interface{}{
				"user_id": userID,
			})
			return
		}
		h.pushError(userID, sessionID, err.Error())
		h.publishEvent(events.TypeAnalysisFailed, map[string]interface{}{
			"user_id":    userID,
			"session_id": sessionID,
		})
		return
	}

	if response.Stale {
		// A newer request already owns the session; the result is dropped.
		return
	}

	h.publishEvent(events.TypeAnalysisCompleted, map[string]interface{}{
		"user_id":    userID,
		"session_id": sessionID,
		"from_cache": response.FromCache,
	})
}

func (h *SessionHandler) handleUpdateTemplate(userID, sessionID string, data json.RawMessage) {
	var payload struct {
		Template string `json:"template"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		h.pushError(userID, sessionID, "Invalid update_system_template payload")
		return
	}
	if err := h.analysis.UpdateTemplate(userID, sessionID, payload.Template); err != nil {
		h.pushError(userID, sessionID, err.Error())
	}
}

func (h *SessionHandler) pushError(userID, sessionID, message string) {
	h.hub.Push(userID, constant.EventAnalysisError, map[string]interface{}{
		"session_id": sessionID,
		"message":    message,
	})
}

// publishEvent forwards lifecycle events to NATS when a publisher is wired.
func (h *SessionHandler) publishEvent(eventType string, data map[string]interface{}) {
	if h.publisher == nil {
		return
	}
	evt := events.BaseEvent{
		Type:       eventType,
		Data:       data,
		OccurredAt: time.Now(),
	}
	if err := h.publisher.Publish(context.Background(), evt); err != nil {
		h.logger.Warn("SessionHandler", "Failed to publish lifecycle event", map[string]interface{}{
			"type":  eventType,
			"error": err.Error(),
		})
	}
}

// Announce pushes an operational notice to every connected client, across
// instances when redis fan-out is configured.
func (h *SessionHandler) Announce(c *fiber.Ctx) error {
	var req dto.AnnounceRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, err.Error())
	}
	if req.Message == "" {
		return fiber.NewError(fiber.StatusBadRequest, "Message is required")
	}

	h.hub.Broadcast(constant.EventSystemAnnouncement, map[string]interface{}{
		"message": req.Message,
	})
	return c.JSON(serverutils.SuccessResponse("Announcement broadcast", nil))
}

// RegisterRoutes registers the websocket endpoint and the broadcast surface.
func (h *SessionHandler) RegisterRoutes(router fiber.Router) {
	router.Get("/ws", h.ServeWs)
	router.Post("/announce", h.Announce)
}
