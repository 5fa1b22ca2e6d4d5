package meta

import (
	"encoding/json"
	"strconv"
	"time"
)

// Webhook payload shape for message events. Meta nests the interesting part
// under entry[0].changes[0].value; everything else (delivery statuses, read
// receipts, empty change sets) lacks messages[0] and is not an inbound
// message.
type webhookPayload struct {
	Entry []webhookEntry `json:"entry"`
}

type webhookEntry struct {
	Changes []webhookChange `json:"changes"`
}

type webhookChange struct {
	Value webhookValue `json:"value"`
}

type webhookValue struct {
	MessagingProduct string           `json:"messaging_product"`
	Contacts         []webhookContact `json:"contacts"`
	Messages         []webhookMessage `json:"messages"`
}

type webhookContact struct {
	Profile struct {
		Name string `json:"name"`
	} `json:"profile"`
}

type webhookMessage struct {
	ID        string `json:"id"`
	From      string `json:"from"`
	Type      string `json:"type"`
	Timestamp string `json:"timestamp"`
	Text      *struct {
		Body string `json:"body"`
	} `json:"text"`
	Image    *mediaRef `json:"image"`
	Document *mediaRef `json:"document"`
	Audio    *mediaRef `json:"audio"`
}

type mediaRef struct {
	ID string `json:"id"`
}

// Normalize parses a raw webhook body into a canonical Event. It returns an
// error only for malformed JSON. A well-formed payload that carries no
// inbound message (status callbacks, empty changes) yields (nil, nil) and
// must be acknowledged without entering the pipeline.
func Normalize(raw []byte) (*Event, error) {
	var payload webhookPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, err
	}

	if len(payload.Entry) == 0 || len(payload.Entry[0].Changes) == 0 {
		return nil, nil
	}
	value := payload.Entry[0].Changes[0].Value
	if len(value.Messages) == 0 {
		return nil, nil
	}
	message := value.Messages[0]

	platform := PlatformInstagramOrMessenger
	if value.MessagingProduct == "whatsapp" {
		platform = PlatformWhatsApp
	}

	text := ""
	if message.Text != nil {
		text = message.Text.Body
	}

	contactName := "Unknown"
	if len(value.Contacts) > 0 && value.Contacts[0].Profile.Name != "" {
		contactName = value.Contacts[0].Profile.Name
	}

	return &Event{
		EventID:        message.ID,
		Platform:       platform,
		SenderID:       message.From,
		ContactName:    contactName,
		ConversationID: ConversationKey(platform, message.From),
		MessageType:    MessageType(message.Type),
		Text:           text,
		Attachments:    mapAttachments(message),
		TimestampMs:    parseTimestampMs(message.Timestamp),
	}, nil
}

func mapAttachments(message webhookMessage) []Attachment {
	switch MessageType(message.Type) {
	case MessageTypeImage:
		if message.Image != nil {
			return []Attachment{{Type: "image", MediaID: message.Image.ID}}
		}
	case MessageTypeDocument:
		if message.Document != nil {
			return []Attachment{{Type: "pdf_or_file", MediaID: message.Document.ID}}
		}
	case MessageTypeAudio:
		if message.Audio != nil {
			return []Attachment{{Type: "audio", MediaID: message.Audio.ID}}
		}
	}
	return []Attachment{}
}

// parseTimestampMs converts the provider's seconds-since-epoch string to
// milliseconds, falling back to the current time when absent or garbled.
func parseTimestampMs(ts string) int64 {
	if ts != "" {
		if seconds, err := strconv.ParseInt(ts, 10, 64); err == nil {
			return seconds * 1000
		}
	}
	return time.Now().UnixMilli()
}
