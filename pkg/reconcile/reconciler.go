// Package reconcile decides what a batch of candidate memories should do to
// the store: become a new row, overwrite an existing one, delete an existing
// one, or be discarded as a duplicate. One LLM call judges the whole batch
// against its neighbors; this package also executes the resulting decisions
// against the metadata store and vector index.
package reconcile

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/oceanbase/durablemem-go/pkg/llmclient"
	"github.com/oceanbase/durablemem-go/pkg/memory"
	"github.com/oceanbase/durablemem-go/pkg/metastore"
	"github.com/oceanbase/durablemem-go/pkg/vectorindex"
)

// Op is a reconciler decision for one candidate.
type Op string

const (
	OpAdd    Op = "ADD"
	OpUpdate Op = "UPDATE"
	OpDelete Op = "DELETE"
	OpNoop   Op = "NOOP"
)

// Neighbor is an existing memory near a candidate, surfaced to the LLM so it
// can judge overlap.
type Neighbor struct {
	MemoryID string
	Content  string
}

// Record is one candidate submitted for a reconciliation decision, together
// with the neighbors found for it during the concurrent search phase.
type Record struct {
	CandidateID string
	Content     string
	Type        string
	Neighbors   []Neighbor
}

// Operation is the reconciler's decision for one candidate.
type Operation struct {
	CandidateID    string
	Op             Op
	TargetMemoryID string
	Confidence     float64
}

// Reconciler decides and executes memory operations for a batch of
// candidates.
type Reconciler struct {
	llm        llmclient.Provider
	maxRetries int
}

// Config configures a Reconciler.
type Config struct {
	// MaxRetries caps validation-failure retries on Decide. Defaults to 3.
	MaxRetries int
}

// New creates a Reconciler backed by the given LLM client.
func New(llm llmclient.Provider, cfg *Config) *Reconciler {
	maxRetries := 3
	if cfg != nil && cfg.MaxRetries > 0 {
		maxRetries = cfg.MaxRetries
	}
	return &Reconciler{llm: llm, maxRetries: maxRetries}
}

// Decide makes one LLM call, at temperature 0, to judge every record in the
// batch. The returned slice has exactly one Operation per input record: a
// candidate the LLM omits from its response defaults to NOOP, and any
// candidate_id in the response that does not match a submitted record is
// discarded.
//
// UPDATE and DELETE operations whose target_memory_id is null or does not
// belong to that candidate's neighbor set are downgraded to NOOP.
func (r *Reconciler) Decide(ctx context.Context, records []Record) ([]Operation, error) {
	if len(records) == 0 {
		return nil, nil
	}

	prompt := renderDecisionPrompt(records)

	var lastErr error
	for attempt := 0; attempt <= r.maxRetries; attempt++ {
		response, err := r.llm.Complete(ctx, decisionSystemPrompt, prompt, llmclient.WithTemperature(0))
		if err != nil {
			lastErr = err
			continue
		}

		ops, err := parseOperations(response, records)
		if err != nil {
			lastErr = err
			continue
		}
		return ops, nil
	}
	return nil, memory.NewError("Decide", memory.KindReconciler, fmt.Errorf("exhausted %d retries: %w", r.maxRetries, lastErr))
}

func parseOperations(response string, records []Record) ([]Operation, error) {
	response = strings.TrimSpace(response)
	response = strings.TrimPrefix(response, "```json")
	response = strings.TrimPrefix(response, "```")
	response = strings.TrimSuffix(response, "```")
	response = strings.TrimSpace(response)

	var parsed struct {
		Operations []struct {
			CandidateID    string  `json:"candidate_id"`
			Operation      string  `json:"operation"`
			TargetMemoryID *string `json:"target_memory_id"`
			Confidence     float64 `json:"confidence"`
		} `json:"operations"`
	}
	if err := json.Unmarshal([]byte(response), &parsed); err != nil {
		return nil, fmt.Errorf("reconcile: invalid JSON: %w", err)
	}

	neighborsByCandidate := make(map[string]map[string]bool, len(records))
	order := make([]string, 0, len(records))
	for _, rec := range records {
		neighborSet := make(map[string]bool, len(rec.Neighbors))
		for _, n := range rec.Neighbors {
			neighborSet[n.MemoryID] = true
		}
		neighborsByCandidate[rec.CandidateID] = neighborSet
		order = append(order, rec.CandidateID)
	}

	decided := make(map[string]Operation, len(records))
	for _, item := range parsed.Operations {
		neighborSet, known := neighborsByCandidate[item.CandidateID]
		if !known {
			continue
		}

		op := Operation{
			CandidateID: item.CandidateID,
			Op:          Op(strings.ToUpper(item.Operation)),
			Confidence:  item.Confidence,
		}

		switch op.Op {
		case OpUpdate, OpDelete:
			if item.TargetMemoryID == nil || !neighborSet[*item.TargetMemoryID] {
				op.Op = OpNoop
				op.TargetMemoryID = ""
			} else {
				op.TargetMemoryID = *item.TargetMemoryID
			}
		case OpAdd, OpNoop:
			op.TargetMemoryID = ""
		default:
			op.Op = OpNoop
		}

		decided[item.CandidateID] = op
	}

	ops := make([]Operation, 0, len(order))
	for _, candidateID := range order {
		if op, ok := decided[candidateID]; ok {
			ops = append(ops, op)
			continue
		}
		ops = append(ops, Operation{CandidateID: candidateID, Op: OpNoop})
	}
	return ops, nil
}

const decisionSystemPrompt = `You reconcile candidate memories against their nearest existing neighbors.
For each candidate, decide exactly one operation:
- ADD: the candidate is novel, no neighbor already captures it
- UPDATE: a neighbor should be overwritten with the candidate's content (set target_memory_id to that neighbor's memory_id)
- DELETE: a neighbor is contradicted or superseded and should be removed (set target_memory_id to that neighbor's memory_id)
- NOOP: the candidate duplicates a neighbor and nothing should change

target_memory_id must be null for ADD and NOOP, and must be one of the candidate's listed neighbor memory_ids for UPDATE and DELETE.

Return strictly:
{"operations":[{"candidate_id":"...","operation":"ADD"|"UPDATE"|"DELETE"|"NOOP","target_memory_id":null|"...","confidence":0.0}]}

Include exactly one entry per candidate_id given.`

func renderDecisionPrompt(records []Record) string {
	var b strings.Builder
	b.WriteString("Candidates:\n")
	for _, rec := range records {
		fmt.Fprintf(&b, "- candidate_id=%s type=%s content=%q\n", rec.CandidateID, rec.Type, rec.Content)
		if len(rec.Neighbors) == 0 {
			b.WriteString("  neighbors: none\n")
			continue
		}
		b.WriteString("  neighbors:\n")
		for _, n := range rec.Neighbors {
			fmt.Fprintf(&b, "    memory_id=%s content=%q\n", n.MemoryID, n.Content)
		}
	}
	return b.String()
}

// Execute applies a single decided operation against the metadata store and
// vector index. candidate, which carries its embedding, comes from the write
// pipeline's in-flight batch, keyed by the same candidate_id the operation
// carries.
//
// Returns ok=false (with a non-nil error) when the operation fails, including
// when it left the two stores inconsistent with each other; callers need not
// abort the remainder of the batch.
func (r *Reconciler) Execute(ctx context.Context, op Operation, candidate *memory.Memory, store metastore.Store, index vectorindex.Index) (bool, error) {
	switch op.Op {
	case OpNoop:
		return true, nil

	case OpAdd:
		row := memory.ToMetastoreMemory(candidate)
		if err := store.Insert(ctx, row); err != nil {
			return false, memory.NewError("Execute", memory.KindReconciler, err)
		}
		if err := index.Insert(ctx, candidate.ID, candidate.Embedding, memory.PayloadFor(candidate)); err != nil {
			// Compensate: the metadata row has no matching vector, remove it
			// rather than leave a half-written memory.
			_ = store.Delete(ctx, candidate.ID)
			return false, memory.NewError("Execute", memory.KindReconciler, err)
		}
		return true, nil

	case OpUpdate:
		overwritten := *candidate
		overwritten.ID = op.TargetMemoryID
		row := memory.ToMetastoreMemory(&overwritten)
		if err := store.Update(ctx, row); err != nil {
			return false, memory.NewError("Execute", memory.KindReconciler, err)
		}
		if err := index.Update(ctx, op.TargetMemoryID, overwritten.Embedding, memory.PayloadFor(&overwritten)); err != nil {
			return false, memory.NewError("Execute", memory.KindInconsistentUpdate, err)
		}
		return true, nil

	case OpDelete:
		storeErr := store.Delete(ctx, op.TargetMemoryID)
		indexErr := index.Delete(ctx, op.TargetMemoryID)
		if storeErr != nil || indexErr != nil {
			return false, memory.NewError("Execute", memory.KindInconsistentDelete, fmt.Errorf("store=%v index=%v", storeErr, indexErr))
		}
		return true, nil

	default:
		return true, nil
	}
}
