// Package agentrouter classifies inbound text onto a target agent by
// keyword. It is deliberately a small, explainable first-match classifier,
// not a scored model: rule order is the tie-break and must be preserved.
package agentrouter

import "strings"

const (
	keywordConfidence  = 0.8
	fallbackConfidence = 0.5

	// FallbackAgentID handles anything no rule matched.
	FallbackAgentID = "general-agent"
)

// Decision labels where a message should be handled and why.
type Decision struct {
	AgentID    string
	Confidence float64
	Reason     string
}

// Rule binds an agent to the keywords that select it.
type Rule struct {
	AgentID  string
	Keywords []string
}

// DefaultRules are evaluated in declaration order.
var DefaultRules = []Rule{
	{AgentID: "sales-agent", Keywords: []string{"precio", "cotización", "compra", "plan"}},
	{AgentID: "agenda-agent", Keywords: []string{"agenda", "horario", "cita", "disponible"}},
	{AgentID: "support-agent", Keywords: []string{"error", "fallo", "ayuda", "soporte"}},
}

// Router routes text through an ordered rule list.
type Router struct {
	rules []Rule
}

// New creates a router over the given rules; nil uses DefaultRules.
func New(rules []Rule) *Router {
	if rules == nil {
		rules = DefaultRules
	}
	return &Router{rules: rules}
}

// Route returns the first rule (in declaration order) with any keyword
// substring-matching the lowercased text, or the fallback agent at lower
// confidence. It never fails.
func (r *Router) Route(text string) Decision {
	normalized := strings.ToLower(text)
	for _, rule := range r.rules {
		for _, keyword := range rule.Keywords {
			if strings.Contains(normalized, keyword) {
				return Decision{
					AgentID:    rule.AgentID,
					Confidence: keywordConfidence,
					Reason:     "keyword:" + rule.AgentID,
				}
			}
		}
	}
	return Decision{
		AgentID:    FallbackAgentID,
		Confidence: fallbackConfidence,
		Reason:     "fallback-general",
	}
}
