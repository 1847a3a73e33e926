package reconcile_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/durablemem-go/pkg/llmclient"
	"github.com/oceanbase/durablemem-go/pkg/memory"
	"github.com/oceanbase/durablemem-go/pkg/metastore"
	"github.com/oceanbase/durablemem-go/pkg/reconcile"
	"github.com/oceanbase/durablemem-go/pkg/vectorindex"
)

type stubLLM struct {
	response string
}

func (s *stubLLM) Complete(_ context.Context, _, _ string, _ ...llmclient.Option) (string, error) {
	return s.response, nil
}
func (s *stubLLM) Close() error { return nil }

type fakeStore struct {
	rows map[string]*metastore.Memory
}

func newFakeStore() *fakeStore { return &fakeStore{rows: map[string]*metastore.Memory{}} }

func (f *fakeStore) EnsureSchema(context.Context) error { return nil }
func (f *fakeStore) Insert(_ context.Context, m *metastore.Memory) error {
	f.rows[m.ID] = m
	return nil
}
func (f *fakeStore) Update(_ context.Context, m *metastore.Memory) error {
	if _, ok := f.rows[m.ID]; !ok {
		return metastore.ErrNotFound
	}
	f.rows[m.ID] = m
	return nil
}
func (f *fakeStore) Delete(_ context.Context, id string) error {
	delete(f.rows, id)
	return nil
}
func (f *fakeStore) GetByIDs(_ context.Context, ids []string) ([]*metastore.Memory, error) {
	var out []*metastore.Memory
	for _, id := range ids {
		if m, ok := f.rows[id]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}
func (f *fakeStore) DeleteAllForUser(_ context.Context, userID string) (int64, error) {
	var n int64
	for id, m := range f.rows {
		if m.UserID == userID {
			delete(f.rows, id)
			n++
		}
	}
	return n, nil
}
func (f *fakeStore) Ping(context.Context) error { return nil }
func (f *fakeStore) Close() error                { return nil }

type fakeIndex struct {
	vectors map[string][]float32
	payload map[string]vectorindex.Payload
}

func newFakeIndex() *fakeIndex {
	return &fakeIndex{vectors: map[string][]float32{}, payload: map[string]vectorindex.Payload{}}
}

func (f *fakeIndex) Insert(_ context.Context, id string, vector []float32, payload vectorindex.Payload) error {
	if _, ok := f.vectors[id]; ok {
		return vectorindex.ErrAlreadyExists
	}
	f.vectors[id] = vector
	f.payload[id] = payload
	return nil
}
func (f *fakeIndex) Update(_ context.Context, id string, vector []float32, payload vectorindex.Payload) error {
	if vector != nil {
		f.vectors[id] = vector
	}
	if payload != nil {
		f.payload[id] = payload
	}
	return nil
}
func (f *fakeIndex) Search(context.Context, []float32, int, vectorindex.Payload) ([]vectorindex.SearchResult, error) {
	return nil, nil
}
func (f *fakeIndex) Delete(_ context.Context, id string) error {
	delete(f.vectors, id)
	delete(f.payload, id)
	return nil
}
func (f *fakeIndex) DeleteAllForUser(context.Context, string) (int64, error) { return 0, nil }
func (f *fakeIndex) Dimensions() int                                        { return 3 }
func (f *fakeIndex) Ping(context.Context) (bool, error)                     { return true, nil }
func (f *fakeIndex) Close() error                                           { return nil }

func TestDecide_MissingCandidateDefaultsNoop(t *testing.T) {
	llm := &stubLLM{response: `{"operations":[]}`}
	r := reconcile.New(llm, nil)

	ops, err := r.Decide(context.Background(), []reconcile.Record{{CandidateID: "temp_0", Content: "x"}})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, reconcile.OpNoop, ops[0].Op)
}

func TestDecide_UpdateWithUnknownTargetDowngradesToNoop(t *testing.T) {
	llm := &stubLLM{response: `{"operations":[{"candidate_id":"temp_0","operation":"UPDATE","target_memory_id":"not-a-neighbor","confidence":0.9}]}`}
	r := reconcile.New(llm, nil)

	records := []reconcile.Record{{
		CandidateID: "temp_0",
		Content:     "x",
		Neighbors:   []reconcile.Neighbor{{MemoryID: "m1", Content: "y"}},
	}}
	ops, err := r.Decide(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, reconcile.OpNoop, ops[0].Op)
}

func TestDecide_UpdateWithValidTargetPasses(t *testing.T) {
	llm := &stubLLM{response: `{"operations":[{"candidate_id":"temp_0","operation":"UPDATE","target_memory_id":"m1","confidence":0.9}]}`}
	r := reconcile.New(llm, nil)

	records := []reconcile.Record{{
		CandidateID: "temp_0",
		Content:     "x",
		Neighbors:   []reconcile.Neighbor{{MemoryID: "m1", Content: "y"}},
	}}
	ops, err := r.Decide(context.Background(), records)
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, reconcile.OpUpdate, ops[0].Op)
	assert.Equal(t, "m1", ops[0].TargetMemoryID)
}

func TestDecide_ExtraCandidateIDsDiscarded(t *testing.T) {
	llm := &stubLLM{response: `{"operations":[{"candidate_id":"temp_99","operation":"ADD","confidence":0.5}]}`}
	r := reconcile.New(llm, nil)

	ops, err := r.Decide(context.Background(), []reconcile.Record{{CandidateID: "temp_0", Content: "x"}})
	require.NoError(t, err)
	require.Len(t, ops, 1)
	assert.Equal(t, "temp_0", ops[0].CandidateID)
	assert.Equal(t, reconcile.OpNoop, ops[0].Op)
}

func TestExecute_Add(t *testing.T) {
	store := newFakeStore()
	index := newFakeIndex()
	r := reconcile.New(&stubLLM{}, nil)

	candidate := &memory.Memory{ID: "c1", Content: "likes tea", Type: "preference", Timestamp: time.Now(), UserID: "u1", Embedding: []float32{1, 0, 0}}
	op := reconcile.Operation{CandidateID: "temp_0", Op: reconcile.OpAdd}

	ok, err := r.Execute(context.Background(), op, candidate, store, index)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, store.rows, "c1")
	assert.Contains(t, index.vectors, "c1")
}

func TestExecute_UpdateOverwritesTarget(t *testing.T) {
	store := newFakeStore()
	index := newFakeIndex()
	require.NoError(t, store.Insert(context.Background(), &metastore.Memory{ID: "m1", Content: "old", UserID: "u1"}))
	require.NoError(t, index.Insert(context.Background(), "m1", []float32{1, 0, 0}, vectorindex.Payload{"memory_id": "m1"}))

	r := reconcile.New(&stubLLM{}, nil)
	candidate := &memory.Memory{ID: "c1", Content: "new content", Type: "fact", Timestamp: time.Now(), UserID: "u1", Embedding: []float32{0, 1, 0}}
	op := reconcile.Operation{CandidateID: "temp_0", Op: reconcile.OpUpdate, TargetMemoryID: "m1"}

	ok, err := r.Execute(context.Background(), op, candidate, store, index)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "new content", store.rows["m1"].Content)
	assert.Equal(t, []float32{0, 1, 0}, index.vectors["m1"])
}

func TestExecute_Delete(t *testing.T) {
	store := newFakeStore()
	index := newFakeIndex()
	require.NoError(t, store.Insert(context.Background(), &metastore.Memory{ID: "m1", UserID: "u1"}))
	require.NoError(t, index.Insert(context.Background(), "m1", []float32{1, 0, 0}, vectorindex.Payload{}))

	r := reconcile.New(&stubLLM{}, nil)
	op := reconcile.Operation{CandidateID: "temp_0", Op: reconcile.OpDelete, TargetMemoryID: "m1"}

	ok, err := r.Execute(context.Background(), op, &memory.Memory{ID: "c1"}, store, index)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.NotContains(t, store.rows, "m1")
	assert.NotContains(t, index.vectors, "m1")
}

func TestExecute_Noop(t *testing.T) {
	store := newFakeStore()
	index := newFakeIndex()
	r := reconcile.New(&stubLLM{}, nil)

	ok, err := r.Execute(context.Background(), reconcile.Operation{Op: reconcile.OpNoop}, &memory.Memory{ID: "c1"}, store, index)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Empty(t, store.rows)
	assert.Empty(t, index.vectors)
}
