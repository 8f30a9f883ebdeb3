// Package session holds the transcript of a single multi-turn conversation.
//
// A Session starts with at most one system turn and then alternates strictly
// between user and assistant turns. It performs no I/O; callers pass
// Transcript() to a completion provider and append the reply.
//
// A Session is owned by one goroutine at a time and is not safe for
// concurrent mutation.
package session

import (
	"fmt"
	"strings"

	"github.com/google/uuid"

	"rag-chat/internal/domain"
)

type Session struct {
	id    string
	turns []domain.Turn
}

// New creates a session seeded with systemPrompt. A blank prompt yields an
// empty transcript.
func New(systemPrompt string) *Session {
	s := &Session{}
	s.init(systemPrompt)
	return s
}

// Restore rebuilds a session from client-held history. History must not
// contain system turns, must start with a user turn and must alternate.
func Restore(systemPrompt string, history []domain.Turn) (*Session, error) {
	s := New(systemPrompt)
	for i, t := range history {
		var err error
		switch {
		case !t.Role.Valid():
			err = newError(ErrorInvalidRole, fmt.Sprintf("unknown role %q", t.Role))
		case t.Role == domain.RoleSystem:
			err = newError(ErrorInvalidRole, "system_turn_in_history")
		case t.Role == domain.RoleUser:
			err = s.AppendUser(t.Content)
		default:
			err = s.AppendAssistant(t.Content)
		}
		if err != nil {
			return nil, fmt.Errorf("session: restore turn %d: %w", i, err)
		}
	}
	return s, nil
}

func (s *Session) init(systemPrompt string) {
	s.id = newID()
	s.turns = nil
	if strings.TrimSpace(systemPrompt) != "" {
		s.turns = []domain.Turn{{Role: domain.RoleSystem, Content: systemPrompt}}
	}
}

func (s *Session) ID() string {
	return s.id
}

// AppendUser appends a user turn. Content is stored verbatim.
func (s *Session) AppendUser(text string) error {
	if strings.TrimSpace(text) == "" {
		return newError(ErrorInvalidInput, "empty_message")
	}
	if s.last() == domain.RoleUser {
		return newError(ErrorOutOfOrder, "previous_turn_is_user")
	}
	s.turns = append(s.turns, domain.Turn{Role: domain.RoleUser, Content: text})
	return nil
}

// AppendAssistant appends the reply to the pending user turn. Empty text is
// accepted.
func (s *Session) AppendAssistant(text string) error {
	if s.last() != domain.RoleUser {
		return newError(ErrorOutOfOrder, "no_pending_user_turn")
	}
	s.turns = append(s.turns, domain.Turn{Role: domain.RoleAssistant, Content: text})
	return nil
}

// Transcript returns a copy of the turns in insertion order.
func (s *Session) Transcript() []domain.Turn {
	out := make([]domain.Turn, len(s.turns))
	copy(out, s.turns)
	return out
}

// History is Transcript without the leading system turn.
func (s *Session) History() []domain.Turn {
	turns := s.turns
	if len(turns) > 0 && turns[0].Role == domain.RoleSystem {
		turns = turns[1:]
	}
	out := make([]domain.Turn, len(turns))
	copy(out, turns)
	return out
}

// Reset clears the transcript, reseeds it with systemPrompt and assigns a new ID.
func (s *Session) Reset(systemPrompt string) {
	s.init(systemPrompt)
}

func (s *Session) Len() int {
	return len(s.turns)
}

// Exchanges counts completed user/assistant pairs.
func (s *Session) Exchanges() int {
	n := 0
	for _, t := range s.turns {
		if t.Role == domain.RoleAssistant {
			n++
		}
	}
	return n
}

// Pending reports whether the last turn is a user turn still awaiting a reply.
func (s *Session) Pending() bool {
	return s.last() == domain.RoleUser
}

// DiscardPending removes a trailing unanswered user turn and reports whether
// one was removed.
func (s *Session) DiscardPending() bool {
	if !s.Pending() {
		return false
	}
	s.turns = s.turns[:len(s.turns)-1]
	return true
}

func (s *Session) last() domain.Role {
	if len(s.turns) == 0 {
		return ""
	}
	return s.turns[len(s.turns)-1].Role
}

var newID = func() string {
	return uuid.NewString()
}
