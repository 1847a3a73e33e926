// Package memory provides the long-term memory service: the write pipeline
// (extraction, deduplication, reconciliation) and the retrieval pipeline
// (embed, search, hydrate) for a conversational agent's memory layer.
package memory

import "time"

// Source identifies the provenance of a memory's underlying fact.
type Source string

const (
	// SourceUserMessage marks a fact extracted from the user's turn.
	SourceUserMessage Source = "user_message"

	// SourceAssistantMessage marks a fact extracted from the assistant's turn.
	SourceAssistantMessage Source = "assistant_message"

	// SourceConversation marks a fact that required both sides of the turn.
	SourceConversation Source = "conversation"
)

// Memory is the single first-class entity the service stores and retrieves.
//
// ID is assigned at creation and is immutable for the lifetime of the row;
// an UPDATE reuses the target's ID and discards the candidate's transient
// one. Embedding is cached on the struct for debugging — the authoritative
// copy lives in the vector index.
type Memory struct {
	// ID is an opaque, globally-unique identifier. It also serves as the
	// vector index id for this memory.
	ID string `json:"memory_id"`

	// Source is the provenance tag of this fact. Accepted as any string;
	// the three constants above are the conventional values (spec.md §9:
	// the enumeration is not enforced).
	Source Source `json:"source"`

	// Content is the atomic factual statement. Never empty.
	Content string `json:"content"`

	// Type is a short free-form category label ("preference", "fact", ...).
	Type string `json:"type"`

	// Timestamp is the creation or last-update instant, in UTC.
	Timestamp time.Time `json:"timestamp"`

	// UserID scopes this memory to a user. Opaque; never parsed.
	UserID string `json:"user_id,omitempty"`

	// Embedding is the cached vector for this memory's content.
	// Omitted from JSON only when empty.
	Embedding []float32 `json:"embedding,omitempty"`

	// Score is the similarity score from a search operation. Zero outside
	// of a Retrieve result.
	Score float64 `json:"score,omitempty"`
}

// Turn is one exchange of a prior conversation: what the user said and how
// the assistant replied.
type Turn struct {
	User      string
	Assistant string
}
