package chat

import "time"

// Role identifies who produced a turn.
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one entry of the conversation. Failure carries the error type name
// when a model turn records a failed invocation instead of an answer.
type Turn struct {
	Role    Role      `json:"role"`
	Content string    `json:"content"`
	Failure string    `json:"failure,omitempty"`
	At      time.Time `json:"at"`
}

// Conversation is an append-only list of turns. It is not safe for
// concurrent use; Session guards it.
type Conversation struct {
	turns []Turn
}

// Reset drops every turn.
func (c *Conversation) Reset() {
	c.turns = nil
}

// Append adds turn at the end. Turns are never deduplicated or capped.
func (c *Conversation) Append(turn Turn) {
	c.turns = append(c.turns, turn)
}

// All returns a copy of the turns, oldest first.
func (c *Conversation) All() []Turn {
	out := make([]Turn, len(c.turns))
	copy(out, c.turns)
	return out
}

func (c *Conversation) Len() int { return len(c.turns) }

// Last returns the most recent turn.
func (c *Conversation) Last() (Turn, bool) {
	if len(c.turns) == 0 {
		return Turn{}, false
	}
	return c.turns[len(c.turns)-1], true
}
