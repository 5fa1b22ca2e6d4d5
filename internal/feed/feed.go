// Package feed maintains the dashboard-facing projection of gateway
// traffic: a rolling buffer of recent messages and a best-effort fan-out to
// live subscribers. It has no bearing on delivery guarantees.
package feed

import (
	"log/slog"
	"sync"
	"time"

	"github.com/glowagent/omnigate/internal/meta"
)

const maxMessages = 200

// Message is the dashboard projection of one inbound or outbound message.
// JSON keys match what the console UI renders.
type Message struct {
	ID          string `json:"id"`
	ContactName string `json:"contactName"`
	LastMessage string `json:"lastMessage"`
	Timestamp   string `json:"timestamp"`
	Platform    string `json:"platform"`
	Unread      bool   `json:"unread"`
	Avatar      string `json:"avatar"`
}

type subscriber struct {
	ch chan Message
}

// Feed is the rolling message buffer plus subscriber registry. Publishing
// never blocks: a subscriber whose buffer is full is dropped silently so a
// slow dashboard can never backpressure the pipeline.
type Feed struct {
	mu          sync.Mutex
	logger      *slog.Logger
	messages    []Message // newest first
	subscribers map[int]*subscriber
	nextID      int
}

// New creates an empty feed.
func New(log *slog.Logger) *Feed {
	if log == nil {
		log = slog.Default()
	}
	return &Feed{
		logger:      log.With(slog.String("component", "feed")),
		subscribers: make(map[int]*subscriber),
	}
}

// Push prepends the message, trims the buffer to its cap, and broadcasts to
// every live subscriber.
func (f *Feed) Push(msg Message) {
	f.mu.Lock()
	f.messages = append([]Message{msg}, f.messages...)
	if len(f.messages) > maxMessages {
		f.messages = f.messages[:maxMessages]
	}

	for id, sub := range f.subscribers {
		select {
		case sub.ch <- msg:
		default:
			// Buffer full: the subscriber is too slow, drop it.
			delete(f.subscribers, id)
			close(sub.ch)
			f.logger.Warn("subscriber_dropped", slog.Int("subscriber_id", id))
		}
	}
	f.mu.Unlock()
}

// Snapshot returns the buffered messages, most recent first.
func (f *Feed) Snapshot() []Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Message, len(f.messages))
	copy(out, f.messages)
	return out
}

// Subscribe registers a live observer with the given channel buffer. The
// returned cancel is idempotent and must be called when the observer
// disconnects; the channel is closed either by cancel or by the feed when
// the observer falls behind.
func (f *Feed) Subscribe(buffer int) (<-chan Message, func()) {
	if buffer <= 0 {
		buffer = 16
	}
	f.mu.Lock()
	id := f.nextID
	f.nextID++
	sub := &subscriber{ch: make(chan Message, buffer)}
	f.subscribers[id] = sub
	f.mu.Unlock()

	cancel := func() {
		f.mu.Lock()
		defer f.mu.Unlock()
		if current, ok := f.subscribers[id]; ok && current == sub {
			delete(f.subscribers, id)
			close(sub.ch)
		}
	}
	return sub.ch, cancel
}

// PublishInbound projects a normalized inbound event onto the feed.
func (f *Feed) PublishInbound(event *meta.Event) {
	text := event.Text
	if text == "" {
		text = "[" + string(event.MessageType) + "]"
	}
	avatar := "IG"
	if event.Platform == meta.PlatformWhatsApp {
		avatar = "WA"
	}
	f.Push(Message{
		ID:          event.EventID,
		ContactName: event.ContactName,
		LastMessage: text,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Platform:    platformLabel(event.Platform),
		Unread:      true,
		Avatar:      avatar,
	})
}

// PublishOutbound projects a sent reply onto the feed.
func (f *Feed) PublishOutbound(event *meta.Event, text string) {
	f.Push(Message{
		ID:          "out_" + time.Now().UTC().Format("20060102T150405.000000000"),
		ContactName: "OmniAgent",
		LastMessage: text,
		Timestamp:   time.Now().UTC().Format(time.RFC3339),
		Platform:    platformLabel(event.Platform),
		Unread:      false,
		Avatar:      "OA",
	})
}

// platformLabel collapses the internal platform bucket onto the two labels
// the dashboard knows.
func platformLabel(p meta.Platform) string {
	if p == meta.PlatformWhatsApp {
		return "whatsapp"
	}
	return "messenger"
}
