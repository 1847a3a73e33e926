package memory

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/oceanbase/durablemem-go/pkg/embedclient"
	"github.com/oceanbase/durablemem-go/pkg/extract"
	"github.com/oceanbase/durablemem-go/pkg/llmclient"
	"github.com/oceanbase/durablemem-go/pkg/metastore"
	"github.com/oceanbase/durablemem-go/pkg/reconcile"
	"github.com/oceanbase/durablemem-go/pkg/vectorindex"
)

// neighborTopK is the number of nearest neighbors fetched per candidate
// during reconciliation.
const neighborTopK = 5

// defaultMaxConcurrentSearch bounds how many per-candidate neighbor
// searches run at once when the caller leaves it unset.
const defaultMaxConcurrentSearch = 10

// Service is the long-term memory service: extraction, reconciliation, and
// retrieval wired against a metadata store and vector index.
type Service struct {
	embed      embedclient.Provider
	store      metastore.Store
	index      vectorindex.Index
	extractor  *extract.Extractor
	reconciler *reconcile.Reconciler

	maxConcurrentSearch int
}

// New wires a Service from its collaborators, pinging the metadata store
// and vector index so construction fails fast if either is unreachable.
//
// llm is used to build the default extractor and reconciler when extractor
// or reconciler is nil; at least one of (llm) or (extractor and reconciler)
// must be supplied.
func New(ctx context.Context, llm llmclient.Provider, embed embedclient.Provider, store metastore.Store, index vectorindex.Index, extractor *extract.Extractor, reconciler *reconcile.Reconciler, maxConcurrentSearch int) (*Service, error) {
	if extractor == nil {
		extractor = extract.New(llm, nil)
	}
	if reconciler == nil {
		reconciler = reconcile.New(llm, nil)
	}
	if maxConcurrentSearch <= 0 {
		maxConcurrentSearch = defaultMaxConcurrentSearch
	}

	if err := store.Ping(ctx); err != nil {
		return nil, NewError("New", KindConnection, err)
	}
	ok, err := index.Ping(ctx)
	if err != nil {
		return nil, NewError("New", KindConnection, err)
	}
	if !ok {
		return nil, NewError("New", KindConnection, fmt.Errorf("vector index not ready"))
	}

	return &Service{
		embed:               embed,
		store:               store,
		index:               index,
		extractor:           extractor,
		reconciler:          reconciler,
		maxConcurrentSearch: maxConcurrentSearch,
	}, nil
}

// Write extracts candidate facts from the given turn, reconciles each
// against its nearest existing neighbors, and applies the resulting
// operations. It returns the memories that were added or updated; deletions
// and no-ops are not returned.
//
// An empty result with a nil error is the expected outcome for a turn that
// contains nothing worth remembering (spec.md's greeting-only scenario).
func (s *Service) Write(ctx context.Context, recentTurns []Turn, userMessage, assistantMessage, userID string, opts ...WriteOption) ([]Memory, error) {
	options := applyWriteOptions(opts)

	extractTurns := make([]extract.Turn, len(recentTurns))
	for i, t := range recentTurns {
		extractTurns[i] = extract.Turn{User: t.User, Assistant: t.Assistant}
	}

	candidates, err := s.extractor.Extract(ctx, extractTurns, userMessage, assistantMessage, options.Mode)
	if err != nil {
		return nil, NewError("Write", KindExtraction, err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	contents := make([]string, len(candidates))
	for i, c := range candidates {
		contents[i] = c.Content
	}
	embeddings, err := s.embed.EmbedBatch(ctx, contents)
	if err != nil {
		return nil, NewError("Write", KindEmbedding, err)
	}
	if len(embeddings) != len(candidates) {
		return nil, NewError("Write", KindEmbedding, fmt.Errorf("embedded %d of %d candidates", len(embeddings), len(candidates)))
	}

	candidateMemories := make([]*Memory, len(candidates))
	for i, c := range candidates {
		candidateMemories[i] = &Memory{
			ID:        c.ID,
			Source:    Source(c.Source),
			Content:   c.Content,
			Type:      c.Type,
			Timestamp: c.Timestamp,
			UserID:    userID,
			Embedding: embeddings[i],
		}
	}

	neighbors := make([][]vectorindex.SearchResult, len(candidates))
	maxWorkers := s.maxConcurrentSearch
	if len(candidates) < maxWorkers {
		maxWorkers = len(candidates)
	}
	sem := semaphore.NewWeighted(int64(maxWorkers))
	group, groupCtx := errgroup.WithContext(ctx)
	for i := range candidates {
		i := i
		group.Go(func() error {
			if err := sem.Acquire(groupCtx, 1); err != nil {
				return err
			}
			defer sem.Release(1)

			var filter vectorindex.Payload
			if userID != "" {
				filter = vectorindex.Payload{"user_id": userID}
			}
			results, err := s.index.Search(groupCtx, embeddings[i], neighborTopK, filter)
			if err != nil {
				return err
			}
			neighbors[i] = results
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	records := make([]reconcile.Record, len(candidates))
	for i, c := range candidates {
		candidateID := "temp_" + strconv.Itoa(i)
		rec := reconcile.Record{CandidateID: candidateID, Content: c.Content, Type: c.Type}
		for _, n := range neighbors[i] {
			memoryID, _ := n.Payload["memory_id"].(string)
			content, _ := n.Payload["content"].(string)
			rec.Neighbors = append(rec.Neighbors, reconcile.Neighbor{MemoryID: memoryID, Content: content})
		}
		records[i] = rec
	}

	operations, err := s.reconciler.Decide(ctx, records)
	if err != nil {
		return nil, err
	}

	var results []Memory
	for i, op := range operations {
		ok, err := s.reconciler.Execute(ctx, op, candidateMemories[i], s.store, s.index)
		if err != nil {
			// The error is dropped: a failed operation is left out of the
			// result and does not abort the rest of the batch.
			continue
		}
		if !ok {
			continue
		}
		switch op.Op {
		case reconcile.OpAdd:
			results = append(results, *candidateMemories[i])
		case reconcile.OpUpdate:
			updated := *candidateMemories[i]
			updated.ID = op.TargetMemoryID
			results = append(results, updated)
		}
	}
	return results, nil
}

// Retrieve embeds query, searches the vector index, hydrates matches from
// the metadata store, and re-sorts by search score descending (ties broken
// by the vector index's original ordering), truncated to topK.
func (s *Service) Retrieve(ctx context.Context, query string, topK int, filter vectorindex.Payload) ([]Memory, error) {
	embedding, err := s.embed.Embed(ctx, query)
	if err != nil {
		return nil, NewError("Retrieve", KindEmbedding, err)
	}

	hits, err := s.index.Search(ctx, embedding, topK, filter)
	if err != nil {
		return nil, err
	}
	if len(hits) == 0 {
		return nil, nil
	}

	ids := make([]string, len(hits))
	scoreByID := make(map[string]float64, len(hits))
	rankByID := make(map[string]int, len(hits))
	for i, h := range hits {
		ids[i] = h.ID
		scoreByID[h.ID] = h.Score
		rankByID[h.ID] = i
	}

	rows, err := s.store.GetByIDs(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]Memory, 0, len(rows))
	for _, row := range rows {
		m := fromMetastoreMemory(row)
		m.Score = scoreByID[row.ID]
		results = append(results, *m)
	}

	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return rankByID[results[i].ID] < rankByID[results[j].ID]
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// ForgetUser deletes every memory scoped to userID from both the metadata
// store and the vector index, returning the metadata store's count of rows
// removed.
func (s *Service) ForgetUser(ctx context.Context, userID string) (int, error) {
	count, err := s.store.DeleteAllForUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	if _, err := s.index.DeleteAllForUser(ctx, userID); err != nil {
		return int(count), NewError("ForgetUser", KindInconsistentDelete, err)
	}
	return int(count), nil
}
