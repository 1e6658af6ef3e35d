package agent

import (
	"github.com/google/uuid"

	"github.com/ankitagj/vani-ai/internal/persist"
)

// Role identifies the speaker of a turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Turn is one utterance. Text is mutable while it is being incrementally
// revealed during playback and immutable once committed.
type Turn struct {
	Role      Role
	Text      string
	committed bool
}

// Committed reports whether the turn's text is final.
func (t *Turn) Committed() bool { return t.committed }

// Session is one active conversation, owned exclusively by the orchestrator
// event loop; no field may be touched from another goroutine.
type Session struct {
	ID       string
	Language string
	Turns    []*Turn

	committed int
}

// NewSession creates a fresh session in the default language.
func NewSession(defaultLanguage string) *Session {
	return &Session{ID: uuid.NewString(), Language: defaultLanguage}
}

// History returns the committed turns as reasoning context.
func (s *Session) History() []HistoryMessage {
	out := make([]HistoryMessage, 0, len(s.Turns))
	for _, t := range s.Turns {
		if !t.committed {
			continue
		}
		out = append(out, HistoryMessage{Role: string(t.Role), Text: t.Text})
	}
	return out
}

// AppendUser appends a committed user turn.
func (s *Session) AppendUser(text string) *Turn {
	t := &Turn{Role: RoleUser, Text: text, committed: true}
	s.Turns = append(s.Turns, t)
	s.committed++
	return t
}

// AppendAssistant appends the empty assistant placeholder whose text is
// filled incrementally during playback.
func (s *Session) AppendAssistant() *Turn {
	t := &Turn{Role: RoleAssistant}
	s.Turns = append(s.Turns, t)
	return t
}

// AppendAssistantCommitted appends an assistant turn that is final
// immediately (apology messages that are never spoken).
func (s *Session) AppendAssistantCommitted(text string) *Turn {
	t := &Turn{Role: RoleAssistant, Text: text, committed: true}
	s.Turns = append(s.Turns, t)
	s.committed++
	return t
}

// Commit finalizes a turn with its full text.
func (s *Session) Commit(t *Turn, fullText string) {
	if t.committed {
		return
	}
	t.Text = fullText
	t.committed = true
	s.committed++
}

// CommittedCount returns the number of committed turns.
func (s *Session) CommittedCount() int { return s.committed }

// Snapshot produces the persisted view of the conversation. Only committed
// turns are included.
func (s *Session) Snapshot(ended bool) persist.Snapshot {
	snap := persist.Snapshot{
		SessionID: s.ID,
		Language:  s.Language,
		Ended:     ended,
	}
	for _, t := range s.Turns {
		if !t.committed {
			continue
		}
		snap.Turns = append(snap.Turns, persist.Turn{Role: string(t.Role), Text: t.Text})
	}
	return snap
}
