package memory

import (
	"errors"
	"time"
)

// Common errors for memory operations.
var (
	ErrEmptySessionID = errors.New("session ID cannot be empty")
	ErrEmptyContent   = errors.New("content cannot be empty")
)

// ItemType categorizes a memory item.
type ItemType string

const (
	// TypeFact is something observed about the teacher or classroom.
	TypeFact ItemType = "fact"

	// TypePreference is a teaching-style preference; weighted highest
	// during retrieval because preferences drive personalization.
	TypePreference ItemType = "preference"

	// TypeContext is a record of what happened in the conversation;
	// weighted lowest.
	TypeContext ItemType = "context"
)

// Metadata captures the classification state at the time an item was stored.
type Metadata struct {
	Intent     string   `json:"intent,omitempty"`
	Subjects   []string `json:"subjects,omitempty"`
	Grades     []int    `json:"grades,omitempty"`
	Confidence int      `json:"confidence,omitempty"`
}

// Item is one stored fact, preference, or context note.
//
// Items are immutable after insert except for UsageCount, which only
// increases. Deletion happens only through the retention sweep.
type Item struct {
	ID         string    `json:"id"`
	SessionID  string    `json:"session_id"`
	Content    string    `json:"content"`
	Type       ItemType  `json:"type"`
	CreatedAt  time.Time `json:"created_at"`
	UsageCount int       `json:"usage_count"`
	Metadata   Metadata  `json:"metadata"`
}

// Stats summarizes one session's memory collection.
type Stats struct {
	TotalItems      int        `json:"total_items"`
	FactCount       int        `json:"fact_count"`
	PreferenceCount int        `json:"preference_count"`
	ContextCount    int        `json:"context_count"`
	AverageUsage    float64    `json:"average_usage"`
	OldestItem      *time.Time `json:"oldest_item,omitempty"`
	NewestItem      *time.Time `json:"newest_item,omitempty"`
}
