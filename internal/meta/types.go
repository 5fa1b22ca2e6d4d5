// Package meta speaks the Meta (WhatsApp Cloud / Instagram / Messenger)
// webhook and Graph API dialect: signature verification, event
// normalization, and outbound delivery.
package meta

import "strings"

// Platform identifies the messaging product an event arrived on.
type Platform string

const (
	PlatformWhatsApp Platform = "whatsapp"
	// PlatformInstagramOrMessenger is a single bucket: the webhook payload
	// does not disambiguate Instagram from Messenger at this layer, so the
	// gateway does not invent a heuristic.
	PlatformInstagramOrMessenger Platform = "instagram_or_messenger"
)

func (p Platform) String() string {
	return string(p)
}

// MessageType classifies the inbound message body.
type MessageType string

const (
	MessageTypeText     MessageType = "text"
	MessageTypeImage    MessageType = "image"
	MessageTypeDocument MessageType = "document"
	MessageTypeAudio    MessageType = "audio"
)

// Attachment references provider-hosted media by id; the gateway never
// downloads the bytes.
type Attachment struct {
	Type    string `json:"type"`
	MediaID string `json:"mediaId"`
}

// Event is the canonical shape of one inbound message, immutable once
// normalized.
type Event struct {
	EventID        string
	Platform       Platform
	SenderID       string
	ContactName    string
	ConversationID string
	MessageType    MessageType
	Text           string
	Attachments    []Attachment
	TimestampMs    int64
}

// ConversationKey derives the id grouping all turns with one counterpart.
func ConversationKey(platform Platform, senderID string) string {
	return strings.Join([]string{string(platform), senderID}, ":")
}
