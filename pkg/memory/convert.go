package memory

import (
	"github.com/oceanbase/durablemem-go/pkg/metastore"
	"github.com/oceanbase/durablemem-go/pkg/vectorindex"
)

// ToMetastoreMemory converts a memory.Memory to metastore.Memory.
//
// The two types are kept separate (rather than sharing one struct) so that
// pkg/metastore never imports pkg/memory, avoiding an import cycle now that
// pkg/memory depends on pkg/metastore for storage. Exported so pkg/reconcile,
// which also operates on both types, can reuse it rather than duplicate the
// field mapping.
func ToMetastoreMemory(m *Memory) *metastore.Memory {
	return &metastore.Memory{
		ID:        m.ID,
		Source:    string(m.Source),
		Content:   m.Content,
		Type:      m.Type,
		Timestamp: m.Timestamp,
		UserID:    m.UserID,
		Embedding: m.Embedding,
	}
}

// fromMetastoreMemory converts a metastore.Memory back to memory.Memory.
func fromMetastoreMemory(m *metastore.Memory) *Memory {
	return &Memory{
		ID:        m.ID,
		Source:    Source(m.Source),
		Content:   m.Content,
		Type:      m.Type,
		Timestamp: m.Timestamp,
		UserID:    m.UserID,
		Embedding: m.Embedding,
	}
}

// PayloadFor builds the vector index payload for a memory: a superset of
// its identifying fields, sufficient for the reconciler to judge overlap
// without touching the metadata store.
func PayloadFor(m *Memory) vectorindex.Payload {
	return vectorindex.Payload{
		"memory_id": m.ID,
		"content":   m.Content,
		"type":      m.Type,
		"source":    string(m.Source),
		"timestamp": m.Timestamp.UTC().Format(timestampFormat),
		"user_id":   m.UserID,
	}
}

const timestampFormat = "2006-01-02T15:04:05.000Z07:00"
