// Package localindex provides an in-process, brute-force vectorindex.Index
// suited to local development, tests, and small collections. It persists
// vectors as JSON-encoded rows in a SQLite side table so that a process
// restart does not lose the index, while search itself happens in memory:
// SQLite has no native vector operations, so there is nothing to push the
// similarity computation down into.
package localindex

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/oceanbase/durablemem-go/pkg/vectorindex"
)

// Index implements vectorindex.Index with an in-memory map backed by a
// SQLite table for durability.
type Index struct {
	db         *sql.DB
	tableName  string
	dimensions int
	metric     vectorindex.Metric

	mu      sync.RWMutex
	vectors map[string][]float32
	payload map[string]vectorindex.Payload
}

// Config configures a localindex.Index.
type Config struct {
	// DBPath is the path to the SQLite database file backing this index.
	DBPath string

	// TableName is the name of the side table to use. Defaults to "vectors".
	TableName string

	// Dimensions is the vector dimension D every upserted vector must match.
	Dimensions int

	// Metric selects the similarity function. Defaults to MetricCosine.
	Metric vectorindex.Metric
}

// New creates a localindex.Index, loading any previously persisted vectors
// into memory.
func New(ctx context.Context, cfg *Config) (*Index, error) {
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("localindex: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("localindex: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("localindex: %w", err)
	}

	tableName := cfg.TableName
	if tableName == "" {
		tableName = "vectors"
	}
	metric := cfg.Metric
	if metric == "" {
		metric = vectorindex.MetricCosine
	}

	idx := &Index{
		db:         db,
		tableName:  tableName,
		dimensions: cfg.Dimensions,
		metric:     metric,
		vectors:    make(map[string][]float32),
		payload:    make(map[string]vectorindex.Payload),
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			vector TEXT NOT NULL,
			payload TEXT NOT NULL
		)
	`, tableName)
	if _, err := db.ExecContext(ctx, createTable); err != nil {
		return nil, fmt.Errorf("localindex: create table: %w", err)
	}

	if err := idx.load(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) load(ctx context.Context) error {
	rows, err := idx.db.QueryContext(ctx, fmt.Sprintf("SELECT id, vector, payload FROM %s", idx.tableName))
	if err != nil {
		return fmt.Errorf("localindex: load: %w", err)
	}
	defer func() { _ = rows.Close() }()

	idx.mu.Lock()
	defer idx.mu.Unlock()
	for rows.Next() {
		var id, vectorJSON, payloadJSON string
		if err := rows.Scan(&id, &vectorJSON, &payloadJSON); err != nil {
			return fmt.Errorf("localindex: load: %w", err)
		}
		var vec []float32
		if err := json.Unmarshal([]byte(vectorJSON), &vec); err != nil {
			return fmt.Errorf("localindex: load: parse vector: %w", err)
		}
		var payload vectorindex.Payload
		if err := json.Unmarshal([]byte(payloadJSON), &payload); err != nil {
			return fmt.Errorf("localindex: load: parse payload: %w", err)
		}
		idx.vectors[id] = vec
		idx.payload[id] = payload
	}
	return rows.Err()
}

// Insert adds vector and payload under a fresh id. Returns
// vectorindex.ErrAlreadyExists if id is already present.
func (idx *Index) Insert(ctx context.Context, id string, vector []float32, payload vectorindex.Payload) error {
	if idx.dimensions != 0 && len(vector) != idx.dimensions {
		return fmt.Errorf("localindex: Insert: vector has %d dimensions, want %d", len(vector), idx.dimensions)
	}

	idx.mu.RLock()
	_, exists := idx.vectors[id]
	idx.mu.RUnlock()
	if exists {
		return fmt.Errorf("localindex: Insert: %w: %s", vectorindex.ErrAlreadyExists, id)
	}

	if err := idx.persist(ctx, id, vector, payload); err != nil {
		return fmt.Errorf("localindex: Insert: %w", err)
	}

	idx.mu.Lock()
	idx.vectors[id] = vector
	idx.payload[id] = payload
	idx.mu.Unlock()
	return nil
}

// Update replaces the vector and/or payload of an existing entry. A nil
// vector or payload leaves that field as it was.
func (idx *Index) Update(ctx context.Context, id string, vector []float32, payload vectorindex.Payload) error {
	idx.mu.Lock()
	if vector == nil {
		vector = idx.vectors[id]
	}
	if payload == nil {
		payload = idx.payload[id]
	}
	idx.mu.Unlock()

	if idx.dimensions != 0 && len(vector) != idx.dimensions {
		return fmt.Errorf("localindex: Update: vector has %d dimensions, want %d", len(vector), idx.dimensions)
	}

	if err := idx.persist(ctx, id, vector, payload); err != nil {
		return fmt.Errorf("localindex: Update: %w", err)
	}

	idx.mu.Lock()
	idx.vectors[id] = vector
	idx.payload[id] = payload
	idx.mu.Unlock()
	return nil
}

func (idx *Index) persist(ctx context.Context, id string, vector []float32, payload vectorindex.Payload) error {
	vectorJSON, err := json.Marshal(vector)
	if err != nil {
		return err
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, vector, payload) VALUES (?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET vector = excluded.vector, payload = excluded.payload
	`, idx.tableName)
	_, err = idx.db.ExecContext(ctx, query, id, string(vectorJSON), string(payloadJSON))
	return err
}

// Search returns the topK closest vectors to query, filtered by equality on
// payload fields.
func (idx *Index) Search(_ context.Context, query []float32, topK int, filter vectorindex.Payload) ([]vectorindex.SearchResult, error) {
	idx.mu.RLock()
	defer idx.mu.RUnlock()

	results := make([]vectorindex.SearchResult, 0, len(idx.vectors))
	for id, vec := range idx.vectors {
		payload := idx.payload[id]
		if !matches(payload, filter) {
			continue
		}
		score, err := score(idx.metric, query, vec)
		if err != nil {
			return nil, fmt.Errorf("localindex: Search: %w", err)
		}
		results = append(results, vectorindex.SearchResult{ID: id, Score: score, Payload: payload})
	}

	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results, nil
}

// Delete removes the vector with the given id.
func (idx *Index) Delete(ctx context.Context, id string) error {
	if _, err := idx.db.ExecContext(ctx, fmt.Sprintf("DELETE FROM %s WHERE id = ?", idx.tableName), id); err != nil {
		return fmt.Errorf("localindex: Delete: %w", err)
	}

	idx.mu.Lock()
	delete(idx.vectors, id)
	delete(idx.payload, id)
	idx.mu.Unlock()
	return nil
}

// DeleteAllForUser removes every entry whose payload user_id equals uid.
func (idx *Index) DeleteAllForUser(ctx context.Context, uid string) (int64, error) {
	idx.mu.Lock()
	var ids []string
	for id, payload := range idx.payload {
		if payload["user_id"] == uid {
			ids = append(ids, id)
		}
	}
	for _, id := range ids {
		delete(idx.vectors, id)
		delete(idx.payload, id)
	}
	idx.mu.Unlock()

	if len(ids) == 0 {
		return 0, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf("DELETE FROM %s WHERE id IN (%s)", idx.tableName, strings.Join(placeholders, ","))
	if _, err := idx.db.ExecContext(ctx, query, args...); err != nil {
		return 0, fmt.Errorf("localindex: DeleteAllForUser: %w", err)
	}
	return int64(len(ids)), nil
}

// Dimensions returns the configured vector dimension.
func (idx *Index) Dimensions() int {
	return idx.dimensions
}

// Ping reports whether the backing SQLite connection is alive and the
// index was initialized with a configured dimension.
func (idx *Index) Ping(ctx context.Context) (bool, error) {
	if err := idx.db.PingContext(ctx); err != nil {
		return false, err
	}
	return idx.dimensions > 0, nil
}

// Close closes the backing SQLite connection.
func (idx *Index) Close() error {
	if idx.db != nil {
		return idx.db.Close()
	}
	return nil
}

// matches applies filter as a conjunction of equality predicates over
// payload. The "type" key is a sentinel reserved for the caller's own
// bookkeeping and is never matched against, even if present in filter.
func matches(payload, filter vectorindex.Payload) bool {
	for k, v := range filter {
		if k == "type" {
			continue
		}
		if payload[k] != v {
			return false
		}
	}
	return true
}

func score(metric vectorindex.Metric, a, b []float32) (float64, error) {
	if len(a) != len(b) {
		return 0, fmt.Errorf("%w: query has %d dimensions, stored vector has %d", vectorindex.ErrDimMismatch, len(a), len(b))
	}

	switch metric {
	case vectorindex.MetricL2:
		var sumSq float64
		for i := range a {
			d := float64(a[i]) - float64(b[i])
			sumSq += d * d
		}
		dist := math.Sqrt(sumSq)
		return 1.0 / (1.0 + dist), nil

	case vectorindex.MetricIP:
		var dot float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
		}
		return dot, nil

	case vectorindex.MetricCosine, "":
		var dot, normA, normB float64
		for i := range a {
			dot += float64(a[i]) * float64(b[i])
			normA += float64(a[i]) * float64(a[i])
			normB += float64(b[i]) * float64(b[i])
		}
		if normA == 0 || normB == 0 {
			return 0, nil
		}
		cos := dot / (math.Sqrt(normA) * math.Sqrt(normB))
		if cos < 0 {
			cos = 0
		}
		if cos > 1 {
			cos = 1
		}
		return cos, nil

	default:
		return 0, fmt.Errorf("localindex: unknown metric %q", metric)
	}
}
