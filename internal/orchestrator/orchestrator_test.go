package orchestrator

import (
	"context"
	"errors"
	"testing"

	"github.com/glowagent/omnigate/internal/agentrouter"
	"github.com/glowagent/omnigate/internal/chat"
	"github.com/glowagent/omnigate/internal/history"
	"github.com/glowagent/omnigate/internal/meta"
)

type fakeSender struct {
	sent []string
	err  error
}

func (s *fakeSender) Send(_ context.Context, _ *meta.Event, text string) error {
	if s.err != nil {
		return s.err
	}
	s.sent = append(s.sent, text)
	return nil
}

type fakeProvider struct {
	reply string
	err   error
	calls int
	last  chat.Request
}

func (p *fakeProvider) Generate(_ context.Context, req chat.Request) (chat.Result, error) {
	p.calls++
	p.last = req
	if p.err != nil {
		return chat.Result{}, p.err
	}
	return chat.Result{Message: chat.Message{Role: "model", Content: p.reply}}, nil
}

func textEvent(text string) *meta.Event {
	return &meta.Event{
		EventID:        "wamid.m1",
		Platform:       meta.PlatformWhatsApp,
		SenderID:       "u1",
		ConversationID: "whatsapp:u1",
		MessageType:    meta.MessageTypeText,
		Text:           text,
	}
}

func TestNonTextShortCircuit(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{reply: "should not be used"}
	sender := &fakeSender{}
	hist := history.NewStore(12)
	o := New(nil, agentrouter.New(nil), hist, provider, sender)

	event := textEvent("")
	event.MessageType = meta.MessageTypeImage
	event.Attachments = []meta.Attachment{{Type: "image", MediaID: "media-1"}}

	outcome, err := o.Respond(context.Background(), event, "corr-1")
	if err != nil {
		t.Fatalf("Respond returned error: %v", err)
	}
	if !outcome.SkippedLLM {
		t.Error("SkippedLLM = false for non-text message")
	}
	if provider.calls != 0 {
		t.Errorf("provider called %d times for non-text message", provider.calls)
	}
	if len(sender.sent) != 1 || sender.sent[0] != fileAcknowledgment {
		t.Errorf("sent = %v, want the file acknowledgment", sender.sent)
	}
	if len(hist.Get(event.ConversationID)) != 0 {
		t.Error("non-text message mutated history")
	}
}

func TestNilProviderSendsCannedReply(t *testing.T) {
	t.Parallel()

	sender := &fakeSender{}
	o := New(nil, agentrouter.New(nil), history.NewStore(12), nil, sender)

	outcome, err := o.Respond(context.Background(), textEvent("hola"), "corr-2")
	if err != nil {
		t.Fatalf("Respond returned error: %v", err)
	}
	if !outcome.SkippedLLM {
		t.Error("SkippedLLM = false without a provider")
	}
	if len(sender.sent) != 1 || sender.sent[0] != genericAcknowledgment {
		t.Errorf("sent = %v, want the generic acknowledgment", sender.sent)
	}
}

func TestGeneratedReplyFlowsThroughHistoryAndSender(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{reply: "El plan pro cuesta 10 USD."}
	sender := &fakeSender{}
	hist := history.NewStore(12)
	o := New(nil, agentrouter.New(nil), hist, provider, sender)

	outcome, err := o.Respond(context.Background(), textEvent("precio del plan pro?"), "corr-3")
	if err != nil {
		t.Fatalf("Respond returned error: %v", err)
	}
	if outcome.SkippedLLM {
		t.Error("SkippedLLM = true for a normal text message")
	}
	if outcome.Route.AgentID != "sales-agent" {
		t.Errorf("route = %q, want sales-agent", outcome.Route.AgentID)
	}
	if provider.last.System != "Eres sales-agent. Responde breve y útil." {
		t.Errorf("system instruction = %q", provider.last.System)
	}
	if len(sender.sent) != 1 || sender.sent[0] != "El plan pro cuesta 10 USD." {
		t.Errorf("sent = %v", sender.sent)
	}

	turns := hist.Get("whatsapp:u1")
	if len(turns) != 2 {
		t.Fatalf("history len = %d, want 2", len(turns))
	}
	if turns[0].Role != history.RoleUser || turns[1].Role != history.RoleModel {
		t.Errorf("history roles = %v", turns)
	}
}

func TestHistoryIsPassedToProvider(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{reply: "ok"}
	hist := history.NewStore(12)
	hist.Append("whatsapp:u1", history.Turn{Role: history.RoleUser, Text: "primer mensaje"})
	hist.Append("whatsapp:u1", history.Turn{Role: history.RoleModel, Text: "primera respuesta"})
	o := New(nil, agentrouter.New(nil), hist, provider, &fakeSender{})

	if _, err := o.Respond(context.Background(), textEvent("segundo"), "corr-4"); err != nil {
		t.Fatalf("Respond returned error: %v", err)
	}
	if len(provider.last.Messages) != 3 {
		t.Fatalf("provider saw %d messages, want 3 (history + current turn)", len(provider.last.Messages))
	}
	if provider.last.Messages[2].Content != "segundo" {
		t.Errorf("last message = %q, want the current user turn", provider.last.Messages[2].Content)
	}
}

func TestProviderErrorPropagatesWithoutHistoryWrite(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{err: errors.New("quota exceeded")}
	sender := &fakeSender{}
	hist := history.NewStore(12)
	o := New(nil, agentrouter.New(nil), hist, provider, sender)

	if _, err := o.Respond(context.Background(), textEvent("hola"), "corr-5"); err == nil {
		t.Fatal("Respond swallowed the provider error")
	}
	if len(sender.sent) != 0 {
		t.Errorf("sent = %v after a provider failure", sender.sent)
	}
	if len(hist.Get("whatsapp:u1")) != 0 {
		t.Error("provider failure mutated history")
	}
}

func TestSendFailureLeavesHistoryAppended(t *testing.T) {
	t.Parallel()

	// History is written before the send completes; a send failure leaves a
	// turn whose reply never reached the user. Kept as the documented
	// ordering of the pipeline.
	provider := &fakeProvider{reply: "respuesta"}
	sender := &fakeSender{err: errors.New("network down")}
	hist := history.NewStore(12)
	o := New(nil, agentrouter.New(nil), hist, provider, sender)

	if _, err := o.Respond(context.Background(), textEvent("hola"), "corr-6"); err == nil {
		t.Fatal("Respond swallowed the send error")
	}
	if len(hist.Get("whatsapp:u1")) != 2 {
		t.Error("history was not appended before the failed send")
	}
}

func TestEmptyProviderReplyFallsBack(t *testing.T) {
	t.Parallel()

	provider := &fakeProvider{reply: ""}
	sender := &fakeSender{}
	o := New(nil, agentrouter.New(nil), history.NewStore(12), provider, sender)

	if _, err := o.Respond(context.Background(), textEvent("hola"), "corr-7"); err != nil {
		t.Fatalf("Respond returned error: %v", err)
	}
	if len(sender.sent) != 1 || sender.sent[0] != emptyReplyFallback {
		t.Errorf("sent = %v, want the empty-reply fallback", sender.sent)
	}
}
