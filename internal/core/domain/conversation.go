package domain

import (
	"fmt"
	"time"
)

// Role identifies who authored a conversation message.
type Role string

// Message roles.
const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// IsValid returns true if the role is recognised.
func (r Role) IsValid() bool {
	return r == RoleUser || r == RoleAssistant
}

// String returns the string representation.
func (r Role) String() string {
	return string(r)
}

// Message is a single immutable turn in a session.
type Message struct {
	ID        string
	SessionID string
	Role      Role
	Content   string
	Timestamp time.Time
}

// NewMessage validates and creates a message.
func NewMessage(id, sessionID string, role Role, content string, ts time.Time) (*Message, error) {
	if id == "" {
		return nil, fmt.Errorf("%w: message id is required", ErrInvalidInput)
	}
	if sessionID == "" {
		return nil, fmt.Errorf("%w: session id is required", ErrInvalidInput)
	}
	if !role.IsValid() {
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidInput, role)
	}
	return &Message{
		ID:        id,
		SessionID: sessionID,
		Role:      role,
		Content:   content,
		Timestamp: ts,
	}, nil
}

// Session is a conversation thread.
type Session struct {
	ID        string
	CreatedAt time.Time
	UpdatedAt time.Time

	// MessageCount is the number of messages recorded.
	MessageCount int

	// Messages is populated only when a caller asks for the full thread.
	Messages []Message
}
