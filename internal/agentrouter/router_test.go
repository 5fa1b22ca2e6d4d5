package agentrouter

import "testing"

func TestRouteKeywordMatch(t *testing.T) {
	t.Parallel()

	r := New(nil)
	tests := []struct {
		text string
		want string
	}{
		{text: "¿Cuál es el precio del plan pro?", want: "sales-agent"},
		{text: "quiero una cita mañana", want: "agenda-agent"},
		{text: "tengo un fallo con mi cuenta", want: "support-agent"},
		{text: "hola, ¿cómo están?", want: FallbackAgentID},
		{text: "", want: FallbackAgentID},
	}

	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got := r.Route(tt.text)
			if got.AgentID != tt.want {
				t.Errorf("Route(%q).AgentID = %q, want %q", tt.text, got.AgentID, tt.want)
			}
		})
	}
}

func TestRouteIsCaseInsensitive(t *testing.T) {
	t.Parallel()

	r := New(nil)
	if got := r.Route("PRECIO por favor"); got.AgentID != "sales-agent" {
		t.Errorf("AgentID = %q, want sales-agent", got.AgentID)
	}
}

func TestRoutePrecedenceIsDeclarationOrder(t *testing.T) {
	t.Parallel()

	// Overlapping keyword sets: first declared rule must win, even if a
	// later rule matches more keywords.
	r := New([]Rule{
		{AgentID: "first", Keywords: []string{"alpha"}},
		{AgentID: "second", Keywords: []string{"alpha", "beta", "gamma"}},
	})
	got := r.Route("alpha beta gamma")
	if got.AgentID != "first" {
		t.Errorf("AgentID = %q, want first (declaration order breaks ties)", got.AgentID)
	}
}

func TestRouteConfidenceAndReason(t *testing.T) {
	t.Parallel()

	r := New(nil)

	hit := r.Route("precio")
	if hit.Confidence != keywordConfidence || hit.Reason != "keyword:sales-agent" {
		t.Errorf("keyword decision = %+v", hit)
	}

	miss := r.Route("nada relevante")
	if miss.Confidence != fallbackConfidence || miss.Reason != "fallback-general" {
		t.Errorf("fallback decision = %+v", miss)
	}
}
