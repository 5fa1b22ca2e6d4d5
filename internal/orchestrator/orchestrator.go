// Package orchestrator composes the routed agent identity, the conversation
// transcript, and the reasoning provider into exactly one outbound reply
// per job.
package orchestrator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/glowagent/omnigate/internal/agentrouter"
	"github.com/glowagent/omnigate/internal/chat"
	"github.com/glowagent/omnigate/internal/history"
	"github.com/glowagent/omnigate/internal/meta"
)

const (
	// Canned acknowledgments, sent when the reasoning call is skipped.
	fileAcknowledgment    = "Recibí tu archivo. Puedo procesar texto e imágenes; para OCR avanzado aún no está habilitado."
	genericAcknowledgment = "Gracias por escribir. Un agente te responderá pronto."
	emptyReplyFallback    = "Gracias por tu mensaje."

	replyTemperature float32 = 0.4
)

// Sender delivers the composed reply.
type Sender interface {
	Send(ctx context.Context, event *meta.Event, text string) error
}

// Publisher observes every sent reply (dashboard feed). May be nil.
type Publisher interface {
	PublishOutbound(event *meta.Event, text string)
}

// Outcome reports how a job was handled.
type Outcome struct {
	Route      agentrouter.Decision
	SkippedLLM bool
}

// Orchestrator handles one inbound event at a time; the dispatch queue
// guarantees it is never invoked concurrently.
type Orchestrator struct {
	logger    *slog.Logger
	router    *agentrouter.Router
	history   *history.Store
	provider  chat.Provider // nil when no reasoning credential is configured
	sender    Sender
	publisher Publisher
}

// New creates an orchestrator. provider may be nil: every text message then
// gets the generic canned acknowledgment instead of a generated reply.
func New(log *slog.Logger, router *agentrouter.Router, hist *history.Store, provider chat.Provider, sender Sender) *Orchestrator {
	if log == nil {
		log = slog.Default()
	}
	return &Orchestrator{
		logger:   log.With(slog.String("component", "orchestrator")),
		router:   router,
		history:  hist,
		provider: provider,
		sender:   sender,
	}
}

// SetPublisher registers an optional observer for sent replies.
func (o *Orchestrator) SetPublisher(p Publisher) {
	o.publisher = p
}

// Respond routes the event, consults history, and sends exactly one reply.
// Non-text messages and missing reasoning credentials short-circuit to
// canned acknowledgments without calling the provider. Provider failures
// propagate to the caller, which owns the log-and-drop policy.
//
// The user and model turns are appended to history before the send
// completes: a failed send can leave a turn whose reply was never
// delivered. Kept deliberately so a later retry of the same conversation
// still sees what the model composed.
func (o *Orchestrator) Respond(ctx context.Context, event *meta.Event, correlationID string) (Outcome, error) {
	route := o.router.Route(event.Text)
	transcript := o.history.Get(event.ConversationID)

	if event.MessageType != meta.MessageTypeText {
		if err := o.send(ctx, event, fileAcknowledgment); err != nil {
			return Outcome{}, err
		}
		return Outcome{Route: route, SkippedLLM: true}, nil
	}

	if o.provider == nil {
		if err := o.send(ctx, event, genericAcknowledgment); err != nil {
			return Outcome{}, err
		}
		return Outcome{Route: route, SkippedLLM: true}, nil
	}

	temp := replyTemperature
	messages := make([]chat.Message, 0, len(transcript)+1)
	for _, turn := range transcript {
		messages = append(messages, chat.Message{Role: string(turn.Role), Content: turn.Text})
	}
	messages = append(messages, chat.Message{Role: string(history.RoleUser), Content: event.Text})

	result, err := o.provider.Generate(ctx, chat.Request{
		System:      fmt.Sprintf("Eres %s. Responde breve y útil.", route.AgentID),
		Messages:    messages,
		Temperature: &temp,
	})
	if err != nil {
		return Outcome{}, fmt.Errorf("generate reply: %w", err)
	}

	output := result.Message.Content
	if output == "" {
		output = emptyReplyFallback
	}

	o.history.Append(event.ConversationID, history.Turn{Role: history.RoleUser, Text: event.Text})
	o.history.Append(event.ConversationID, history.Turn{Role: history.RoleModel, Text: output})

	if err := o.send(ctx, event, output); err != nil {
		return Outcome{}, err
	}

	o.logger.Info("reply_sent",
		slog.String("correlation_id", correlationID),
		slog.String("route", route.AgentID),
		slog.String("event_id", event.EventID))
	return Outcome{Route: route, SkippedLLM: false}, nil
}

func (o *Orchestrator) send(ctx context.Context, event *meta.Event, text string) error {
	if err := o.sender.Send(ctx, event, text); err != nil {
		return fmt.Errorf("send reply: %w", err)
	}
	if o.publisher != nil {
		o.publisher.PublishOutbound(event, text)
	}
	return nil
}
