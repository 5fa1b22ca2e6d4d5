package meta

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"
)

// Graph caps a text message body at 4096 characters; longer replies are
// truncated silently rather than rejected.
const maxBodyRunes = 4096

// Sender delivers replies through the Graph API send endpoint.
type Sender struct {
	logger        *slog.Logger
	baseURL       string
	accessToken   string
	phoneNumberID string
	client        *http.Client
}

// NewSender creates a Graph API sender. Empty credentials are allowed: Send
// then logs a dry run instead of calling out, so the gateway stays usable in
// local development.
func NewSender(log *slog.Logger, baseURL, accessToken, phoneNumberID string) *Sender {
	if log == nil {
		log = slog.Default()
	}
	return &Sender{
		logger:        log.With(slog.String("component", "meta_sender")),
		baseURL:       baseURL,
		accessToken:   accessToken,
		phoneNumberID: phoneNumberID,
		client:        &http.Client{Timeout: 15 * time.Second},
	}
}

type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Text             sendText `json:"text"`
}

type sendText struct {
	Body string `json:"body"`
}

// Send posts the reply text to the event's sender. With missing credentials
// it logs the intended delivery and returns nil.
func (s *Sender) Send(ctx context.Context, event *Event, text string) error {
	text = truncateRunes(text, maxBodyRunes)

	if s.accessToken == "" || s.phoneNumberID == "" {
		s.logger.Info("reply_dry_run",
			slog.String("to", event.SenderID),
			slog.String("text", text))
		return nil
	}

	body, err := json.Marshal(sendRequest{
		MessagingProduct: "whatsapp",
		To:               event.SenderID,
		Text:             sendText{Body: text},
	})
	if err != nil {
		return fmt.Errorf("encode send request: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", s.baseURL, s.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build send request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.accessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("send message: graph api status %d: %s", resp.StatusCode, detail)
	}
	return nil
}

func truncateRunes(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}
