// Package history keeps a bounded rolling transcript per conversation.
package history

import "sync"

// Role identifies who produced a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one entry in a conversation transcript.
type Turn struct {
	Role Role
	Text string
}

// Store maps conversation ids to their most recent turns, capped at
// maxMessages by dropping the oldest. Conversations are created lazily on
// first append and live for the process lifetime.
type Store struct {
	mu          sync.Mutex
	maxMessages int
	transcripts map[string][]Turn
}

// NewStore creates a store capped at maxMessages turns per conversation.
func NewStore(maxMessages int) *Store {
	if maxMessages <= 0 {
		maxMessages = 12
	}
	return &Store{
		maxMessages: maxMessages,
		transcripts: make(map[string][]Turn),
	}
}

// Append adds a turn to the end of the conversation's transcript, evicting
// from the front when the cap is exceeded.
func (s *Store) Append(conversationID string, turn Turn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := append(s.transcripts[conversationID], turn)
	if overflow := len(turns) - s.maxMessages; overflow > 0 {
		turns = turns[overflow:]
	}
	s.transcripts[conversationID] = turns
}

// Get returns a copy of the conversation's transcript in append order. An
// unknown conversation yields an empty, non-nil slice so callers never
// special-case missing conversations.
func (s *Store) Get(conversationID string) []Turn {
	s.mu.Lock()
	defer s.mu.Unlock()
	turns := s.transcripts[conversationID]
	out := make([]Turn, len(turns))
	copy(out, turns)
	return out
}
