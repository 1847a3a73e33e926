// Package extract turns a conversation turn into candidate memories: a
// single LLM call, a strict JSON contract, and a bounded retry loop to
// absorb transient model flakiness.
package extract

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/oceanbase/durablemem-go/pkg/llmclient"
)

// Mode selects which side of the conversation the extractor is permitted to
// mine for facts.
type Mode string

const (
	// ModeUser extracts only from the user's turn.
	ModeUser Mode = "user"

	// ModeAgent extracts only from the assistant's turn.
	ModeAgent Mode = "agent"

	// ModeBoth extracts from either side, tagging provenance accordingly.
	ModeBoth Mode = "both"
)

// Turn is one exchange of a prior conversation.
type Turn struct {
	User      string
	Assistant string
}

// Candidate is a prospective fact emitted by the extractor. It already
// carries a fresh id and creation timestamp; user_id is filled in by the
// caller once the candidate is handed to the write pipeline.
type Candidate struct {
	ID        string
	Source    string
	Content   string
	Type      string
	Timestamp time.Time
}

// ErrValidation indicates the LLM response was not a well-formed memories
// object after code-fence stripping.
var ErrValidation = errors.New("extract: invalid response")

// Extractor turns conversation input into candidate memories via an LLM
// call and a strict JSON contract.
type Extractor struct {
	llm        llmclient.Provider
	maxRetries int
	backoff    time.Duration
}

// Config configures an Extractor.
type Config struct {
	// MaxRetries caps validation-failure retries. Defaults to 3.
	MaxRetries int

	// Backoff is the fixed delay between retries. Defaults to 10s.
	Backoff time.Duration
}

// New creates an Extractor backed by the given LLM client.
func New(llm llmclient.Provider, cfg *Config) *Extractor {
	maxRetries := 3
	backoff := 10 * time.Second
	if cfg != nil {
		if cfg.MaxRetries > 0 {
			maxRetries = cfg.MaxRetries
		}
		if cfg.Backoff > 0 {
			backoff = cfg.Backoff
		}
	}
	return &Extractor{llm: llm, maxRetries: maxRetries, backoff: backoff}
}

// Extract composes a single prompt from the recent turns and the current
// turn, calls the LLM once per attempt, and returns the parsed candidates.
// An empty candidate list is a valid outcome, not an error.
func (e *Extractor) Extract(ctx context.Context, recentTurns []Turn, userMessage, assistantMessage string, mode Mode) ([]Candidate, error) {
	systemPrompt := systemPromptFor(mode)
	userPrompt := renderTurn(recentTurns, userMessage, assistantMessage)

	var lastErr error
	for attempt := 0; attempt <= e.maxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(e.backoff):
			}
		}

		response, err := e.llm.Complete(ctx, systemPrompt, userPrompt)
		if err != nil {
			lastErr = err
			continue
		}

		candidates, err := parseCandidates(response)
		if err != nil {
			lastErr = err
			continue
		}
		return candidates, nil
	}
	return nil, fmt.Errorf("extract: exhausted %d retries: %w", e.maxRetries, lastErr)
}

func parseCandidates(response string) ([]Candidate, error) {
	response = stripCodeFences(response)

	var parsed struct {
		Memories []struct {
			Source  string `json:"source"`
			Content string `json:"content"`
			Type    string `json:"type"`
		} `json:"memories"`
	}
	if err := json.Unmarshal([]byte(response), &parsed); err != nil {
		return nil, fmt.Errorf("%w: invalid JSON: %v", ErrValidation, err)
	}
	if parsed.Memories == nil {
		return nil, fmt.Errorf("%w: missing memories array", ErrValidation)
	}

	now := time.Now().UTC()
	candidates := make([]Candidate, 0, len(parsed.Memories))
	for _, m := range parsed.Memories {
		candidates = append(candidates, Candidate{
			ID:        uuid.NewString(),
			Source:    m.Source,
			Content:   m.Content,
			Type:      m.Type,
			Timestamp: now,
		})
	}
	return candidates, nil
}

func stripCodeFences(response string) string {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	return strings.TrimSpace(response)
}

func renderTurn(recentTurns []Turn, userMessage, assistantMessage string) string {
	var b strings.Builder
	if len(recentTurns) > 0 {
		b.WriteString("Recent conversation:\n")
		for _, t := range recentTurns {
			fmt.Fprintf(&b, "user: %s\nassistant: %s\n", t.User, t.Assistant)
		}
		b.WriteString("\n")
	}
	b.WriteString("Current turn:\n")
	fmt.Fprintf(&b, "user: %s\nassistant: %s\n", userMessage, assistantMessage)
	return b.String()
}

const responseContract = `Return strictly:
{"memories":[{"source":"user_message"|"assistant_message"|"conversation","content":"...","type":"..."}]}

Extract only durable, user-useful facts. Omit pleasantries and small talk.
If nothing qualifies, return {"memories":[]}.`

func systemPromptFor(mode Mode) string {
	switch mode {
	case ModeUser:
		return "You extract durable facts from the user's side of a conversation only. " +
			"Assistant text is context, never a source of facts.\n\n" + responseContract
	case ModeAgent:
		return "You extract durable facts from the assistant's side of a conversation only, " +
			"limited to decisions or agreed context the assistant committed to.\n\n" + responseContract
	default:
		return "You extract durable facts from either side of a conversation. " +
			"Assistant-derived facts qualify only when they encode a decision or agreed context.\n\n" + responseContract
	}
}
