package memory_test

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/durablemem-go/pkg/embedclient/hashembed"
	"github.com/oceanbase/durablemem-go/pkg/extract"
	"github.com/oceanbase/durablemem-go/pkg/llmclient"
	"github.com/oceanbase/durablemem-go/pkg/memory"
	"github.com/oceanbase/durablemem-go/pkg/metastore/sqlite"
	"github.com/oceanbase/durablemem-go/pkg/reconcile"
	"github.com/oceanbase/durablemem-go/pkg/vectorindex"
	"github.com/oceanbase/durablemem-go/pkg/vectorindex/localindex"
)

// scriptedLLM returns one scripted response per call, in order: the write
// pipeline calls the extractor once, then, when there are candidates, the
// reconciler once.
type scriptedLLM struct {
	responses []string
	calls     int
}

func (s *scriptedLLM) Complete(_ context.Context, _, _ string, _ ...llmclient.Option) (string, error) {
	r := s.responses[s.calls]
	s.calls++
	return r, nil
}
func (s *scriptedLLM) Close() error { return nil }

func newTestService(t *testing.T, llm llmclient.Provider) *memory.Service {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.NewClient(ctx, &sqlite.Config{DBPath: ":memory:?cache=shared"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })

	index, err := localindex.New(ctx, &localindex.Config{DBPath: fmt.Sprintf("./test_service_%s.db", t.Name()), Dimensions: 256})
	require.NoError(t, err)
	t.Cleanup(func() { _ = index.Close() })

	embed := hashembed.NewClient(&hashembed.Config{Dimensions: 256})

	var extractor *extract.Extractor
	var reconciler *reconcile.Reconciler
	if llm != nil {
		extractor = extract.New(llm, &extract.Config{MaxRetries: 1})
		reconciler = reconcile.New(llm, &reconcile.Config{MaxRetries: 1})
	}

	svc, err := memory.New(ctx, llm, embed, store, index, extractor, reconciler, 4)
	require.NoError(t, err)
	return svc
}

func TestWrite_GreetingOnlyProducesEmptyResult(t *testing.T) {
	llm := &scriptedLLM{responses: []string{`{"memories":[]}`}}
	svc := newTestService(t, llm)

	result, err := svc.Write(context.Background(), nil, "hi there", "hello!", "u1")
	require.NoError(t, err)
	assert.Empty(t, result)
}

func TestWrite_FirstFactIsAdded(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"memories":[{"source":"user_message","content":"likes dark roast coffee","type":"preference"}]}`,
		`{"operations":[{"candidate_id":"temp_0","operation":"ADD","target_memory_id":null,"confidence":0.9}]}`,
	}}
	svc := newTestService(t, llm)

	result, err := svc.Write(context.Background(), nil, "I like dark roast coffee", "Noted!", "u1")
	require.NoError(t, err)
	require.Len(t, result, 1)
	assert.Equal(t, "likes dark roast coffee", result[0].Content)
	assert.Equal(t, "u1", result[0].UserID)
}

func TestWrite_RedundantRestateIsNoop(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"memories":[{"source":"user_message","content":"likes dark roast coffee","type":"preference"}]}`,
		`{"operations":[{"candidate_id":"temp_0","operation":"ADD","target_memory_id":null,"confidence":0.9}]}`,
		`{"memories":[{"source":"user_message","content":"likes dark roast coffee","type":"preference"}]}`,
		`{"operations":[{"candidate_id":"temp_0","operation":"NOOP","target_memory_id":null,"confidence":0.9}]}`,
	}}
	svc := newTestService(t, llm)
	ctx := context.Background()

	first, err := svc.Write(ctx, nil, "I like dark roast coffee", "Noted!", "u1")
	require.NoError(t, err)
	require.Len(t, first, 1)

	second, err := svc.Write(ctx, nil, "I like dark roast coffee", "Got it again!", "u1")
	require.NoError(t, err)
	assert.Empty(t, second)
}

func TestRetrieve_OrdersByScoreDescendingAndTruncates(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"memories":[{"source":"user_message","content":"apple","type":"fact"},{"source":"user_message","content":"apple pie recipe","type":"fact"},{"source":"user_message","content":"unrelated submarine facts","type":"fact"}]}`,
		`{"operations":[` +
			`{"candidate_id":"temp_0","operation":"ADD","target_memory_id":null,"confidence":0.9},` +
			`{"candidate_id":"temp_1","operation":"ADD","target_memory_id":null,"confidence":0.9},` +
			`{"candidate_id":"temp_2","operation":"ADD","target_memory_id":null,"confidence":0.9}` +
			`]}`,
	}}
	svc := newTestService(t, llm)
	ctx := context.Background()

	_, err := svc.Write(ctx, nil, "apple, apple pie recipe, unrelated submarine facts", "ok", "u1")
	require.NoError(t, err)

	results, err := svc.Retrieve(ctx, "apple", 2, vectorindex.Payload{"user_id": "u1"})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.GreaterOrEqual(t, results[0].Score, results[1].Score)
}

func TestForgetUser_ThenRetrieveIsEmpty(t *testing.T) {
	llm := &scriptedLLM{responses: []string{
		`{"memories":[{"source":"user_message","content":"likes dark roast coffee","type":"preference"}]}`,
		`{"operations":[{"candidate_id":"temp_0","operation":"ADD","target_memory_id":null,"confidence":0.9}]}`,
	}}
	svc := newTestService(t, llm)
	ctx := context.Background()

	_, err := svc.Write(ctx, nil, "I like dark roast coffee", "Noted!", "u1")
	require.NoError(t, err)

	count, err := svc.ForgetUser(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := svc.Retrieve(ctx, "coffee", 10, vectorindex.Payload{"user_id": "u1"})
	require.NoError(t, err)
	assert.Empty(t, results)
}
