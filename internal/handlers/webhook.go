package handlers

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/glowagent/omnigate/internal/dispatch"
	"github.com/glowagent/omnigate/internal/feed"
	"github.com/glowagent/omnigate/internal/meta"
	"github.com/glowagent/omnigate/internal/ttlcache"
)

const webhookMaxBodyBytes int64 = 1 << 20 // 1 MiB

// WebhookConfig carries the webhook-facing credentials and tuning.
type WebhookConfig struct {
	VerifyToken  string
	AppSecret    string
	ReplayWindow time.Duration
}

// WebhookHandler receives Meta webhook callbacks: the GET subscription
// handshake and the POST event delivery. POST acknowledges immediately
// after enqueueing; Meta enforces a short response SLA, so the response
// never waits for processing.
type WebhookHandler struct {
	logger *slog.Logger
	cfg    WebhookConfig
	dedupe *ttlcache.Cache
	queue  *dispatch.Queue
	feed   *feed.Feed
	now    func() time.Time
}

// NewWebhookHandler creates the webhook handler. dedupe is the pre-queue
// event-id cache; it is distinct from the queue's one-reply cache.
func NewWebhookHandler(log *slog.Logger, cfg WebhookConfig, dedupe *ttlcache.Cache, queue *dispatch.Queue, f *feed.Feed) *WebhookHandler {
	if log == nil {
		log = slog.Default()
	}
	return &WebhookHandler{
		logger: log.With(slog.String("handler", "webhook")),
		cfg:    cfg,
		dedupe: dedupe,
		queue:  queue,
		feed:   f,
		now:    time.Now,
	}
}

// Register registers the webhook routes.
func (h *WebhookHandler) Register(e *echo.Echo) {
	e.GET("/api/webhook", h.Verify)
	e.POST("/api/webhook", h.Receive)
}

// Verify answers Meta's subscription handshake: echo the challenge iff the
// mode is "subscribe" and the token matches.
func (h *WebhookHandler) Verify(c echo.Context) error {
	mode := c.QueryParam("hub.mode")
	token := c.QueryParam("hub.verify_token")
	challenge := c.QueryParam("hub.challenge")

	if mode == "subscribe" && h.cfg.VerifyToken != "" && token == h.cfg.VerifyToken {
		return c.String(http.StatusOK, challenge)
	}
	return c.String(http.StatusForbidden, "Forbidden")
}

// Receive validates, normalizes, and enqueues one webhook delivery.
// Response codes are part of the provider contract: anything Meta should
// not retry is success-coded even when nothing was processed.
func (h *WebhookHandler) Receive(c echo.Context) error {
	correlationID := c.Request().Header.Get("x-correlation-id")
	if correlationID == "" {
		correlationID = uuid.NewString()
	}

	rawBody, err := io.ReadAll(io.LimitReader(c.Request().Body, webhookMaxBodyBytes+1))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("read body: %v", err))
	}
	if int64(len(rawBody)) > webhookMaxBodyBytes {
		return echo.NewHTTPError(http.StatusRequestEntityTooLarge, fmt.Sprintf("payload too large: max %d bytes", webhookMaxBodyBytes))
	}

	signature := c.Request().Header.Get("x-hub-signature-256")
	if !meta.VerifySignature(rawBody, signature, h.cfg.AppSecret) {
		h.logger.Error("invalid_signature", slog.String("correlation_id", correlationID))
		return c.JSON(http.StatusUnauthorized, map[string]any{"error": "invalid_signature"})
	}

	event, err := meta.Normalize(rawBody)
	if err != nil {
		return c.JSON(http.StatusBadRequest, map[string]any{"error": "invalid_json"})
	}
	if event == nil {
		// Status callbacks and other non-message payloads: acknowledge so
		// Meta does not retry, but never enqueue.
		return c.JSON(http.StatusOK, map[string]any{"ignored": true})
	}

	h.feed.PublishInbound(event)

	age := h.now().UnixMilli() - event.TimestampMs
	if age > h.cfg.ReplayWindow.Milliseconds() {
		return c.JSON(http.StatusAccepted, map[string]any{"replay": true})
	}

	if h.dedupe.Has(event.EventID) {
		return c.JSON(http.StatusOK, map[string]any{"duplicate": true})
	}
	h.dedupe.Set(event.EventID)

	h.queue.Enqueue(dispatch.Job{Event: event, CorrelationID: correlationID})
	return c.JSON(http.StatusOK, map[string]any{"accepted": true, "correlationId": correlationID})
}
