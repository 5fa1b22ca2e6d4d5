package handlers

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/glowagent/omnigate/internal/feed"
)

const (
	sseBuffer            = 128
	sseHeartbeatInterval = 20 * time.Second
)

// FeedHandler serves the dashboard's read-only view of gateway traffic:
// the recent-message snapshot and a live event stream.
type FeedHandler struct {
	logger *slog.Logger
	feed   *feed.Feed
}

// NewFeedHandler creates a FeedHandler.
func NewFeedHandler(log *slog.Logger, f *feed.Feed) *FeedHandler {
	if log == nil {
		log = slog.Default()
	}
	return &FeedHandler{
		logger: log.With(slog.String("handler", "feed")),
		feed:   f,
	}
}

// Register registers the feed routes.
func (h *FeedHandler) Register(e *echo.Echo) {
	e.GET("/api/messages", h.ListMessages)
	e.GET("/api/events", h.StreamEvents)
}

// ListMessages returns the buffered messages, most recent first.
func (h *FeedHandler) ListMessages(c echo.Context) error {
	return c.JSON(http.StatusOK, h.feed.Snapshot())
}

// StreamEvents streams feed messages to the dashboard over SSE. The first
// frame is always {"type":"connected"}; a periodic ping keeps intermediary
// proxies from closing the connection.
func (h *FeedHandler) StreamEvents(c echo.Context) error {
	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set(echo.HeaderCacheControl, "no-cache")
	c.Response().Header().Set(echo.HeaderConnection, "keep-alive")
	c.Response().WriteHeader(http.StatusOK)

	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return echo.NewHTTPError(http.StatusInternalServerError, "streaming not supported")
	}
	writer := bufio.NewWriter(c.Response().Writer)

	// Subscribe before the first frame so nothing pushed after the client
	// sees "connected" can be missed.
	stream, cancel := h.feed.Subscribe(sseBuffer)
	defer cancel()

	if err := writeSSEJSON(writer, flusher, map[string]any{"type": "connected"}); err != nil {
		return nil
	}

	heartbeat := time.NewTicker(sseHeartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-c.Request().Context().Done():
			return nil
		case <-heartbeat.C:
			if err := writeSSEJSON(writer, flusher, map[string]any{"type": "ping"}); err != nil {
				return nil
			}
		case msg, ok := <-stream:
			if !ok {
				// Dropped by the feed for falling behind.
				return nil
			}
			if err := writeSSEJSON(writer, flusher, msg); err != nil {
				return nil
			}
		}
	}
}

func writeSSEJSON(writer *bufio.Writer, flusher http.Flusher, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := writer.WriteString("data: "); err != nil {
		return err
	}
	if _, err := writer.Write(data); err != nil {
		return err
	}
	if _, err := writer.WriteString("\n\n"); err != nil {
		return err
	}
	if err := writer.Flush(); err != nil {
		return err
	}
	flusher.Flush()
	return nil
}
