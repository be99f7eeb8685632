package session

import (
	"errors"
	"time"
)

// Common errors for session operations.
var (
	ErrNotFound       = errors.New("session not found")
	ErrEmptySessionID = errors.New("session ID cannot be empty")
)

// Role identifies the author of a message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Session is one teacher's conversation with the assistant.
type Session struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	Subjects  []string  `json:"subjects,omitempty"`
	Grades    []int     `json:"grades,omitempty"`
	Language  string    `json:"language,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Message is one turn in a session.
type Message struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Intent    string    `json:"intent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
