// Package pgvector provides a vectorindex.Index backed by PostgreSQL's
// pgvector extension, via pgx and the pgvector-go vector type.
package pgvector

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/oceanbase/durablemem-go/pkg/vectorindex"
)

// Index implements vectorindex.Index using a pgvector-enabled PostgreSQL
// table, one row per vector with its payload stored as JSONB.
type Index struct {
	pool       *pgxpool.Pool
	tableName  string
	dimensions int
	metric     vectorindex.Metric
}

// Config configures a pgvector.Index.
type Config struct {
	// DSN is a libpq connection string or URL.
	DSN string

	// TableName is the name of the table to use. Defaults to "memory_vectors".
	TableName string

	// Dimensions is the vector dimension D. Required.
	Dimensions int

	// Metric selects the similarity function. Defaults to MetricCosine.
	Metric vectorindex.Metric
}

// New creates a pgvector.Index, enabling the vector extension and ensuring
// its schema exists.
func New(ctx context.Context, cfg *Config) (*Index, error) {
	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgvector index: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("pgvector index: %w", err)
	}

	tableName := cfg.TableName
	if tableName == "" {
		tableName = "memory_vectors"
	}
	metric := cfg.Metric
	if metric == "" {
		metric = vectorindex.MetricCosine
	}

	idx := &Index{pool: pool, tableName: tableName, dimensions: cfg.Dimensions, metric: metric}
	if err := idx.ensureSchema(ctx); err != nil {
		return nil, err
	}
	return idx, nil
}

func (idx *Index) ensureSchema(ctx context.Context) error {
	if _, err := idx.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("pgvector index: create extension: %w", err)
	}

	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			payload JSONB NOT NULL
		)
	`, idx.tableName, idx.dimensions)
	if _, err := idx.pool.Exec(ctx, createTable); err != nil {
		return fmt.Errorf("pgvector index: create table: %w", err)
	}

	opClass := idx.opClass()
	createIndex := fmt.Sprintf(`
		CREATE INDEX IF NOT EXISTS idx_%s_embedding ON %s USING ivfflat (embedding %s) WITH (lists = 100)
	`, idx.tableName, idx.tableName, opClass)
	if _, err := idx.pool.Exec(ctx, createIndex); err != nil {
		// IVF indexes require rows to train on; tolerate failure on an empty table.
		return nil
	}
	return nil
}

func (idx *Index) opClass() string {
	switch idx.metric {
	case vectorindex.MetricL2:
		return "vector_l2_ops"
	case vectorindex.MetricIP:
		return "vector_ip_ops"
	default:
		return "vector_cosine_ops"
	}
}

func (idx *Index) orderExpr() string {
	switch idx.metric {
	case vectorindex.MetricL2:
		return "embedding <-> $1"
	case vectorindex.MetricIP:
		return "embedding <#> $1"
	default:
		return "embedding <=> $1"
	}
}

// scoreFromDistance converts the raw pgvector distance operator result into
// a larger-is-better score consistent with the configured metric.
func (idx *Index) scoreFromDistance(distance float64) float64 {
	switch idx.metric {
	case vectorindex.MetricL2:
		return 1.0 / (1.0 + distance)
	case vectorindex.MetricIP:
		// pgvector's <#> returns the negative inner product.
		return -distance
	default:
		cos := 1.0 - distance
		if cos < 0 {
			cos = 0
		}
		if cos > 1 {
			cos = 1
		}
		return cos
	}
}

// Insert adds vector and payload under a fresh id.
func (idx *Index) Insert(ctx context.Context, id string, vector []float32, payload vectorindex.Payload) error {
	if len(vector) != idx.dimensions {
		return fmt.Errorf("pgvector index: Insert: vector has %d dimensions, want %d", len(vector), idx.dimensions)
	}
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("pgvector index: Insert: %w", err)
	}

	query := fmt.Sprintf("INSERT INTO %s (id, embedding, payload) VALUES ($1, $2, $3) ON CONFLICT (id) DO NOTHING", idx.tableName)
	tag, err := idx.pool.Exec(ctx, query, id, pgv.NewVector(vector), payloadJSON)
	if err != nil {
		return fmt.Errorf("pgvector index: Insert: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("pgvector index: Insert: %w: %s", vectorindex.ErrAlreadyExists, id)
	}
	return nil
}

// Update replaces the vector and/or payload of an existing entry.
func (idx *Index) Update(ctx context.Context, id string, vector []float32, payload vectorindex.Payload) error {
	if vector != nil {
		if len(vector) != idx.dimensions {
			return fmt.Errorf("pgvector index: Update: vector has %d dimensions, want %d", len(vector), idx.dimensions)
		}
		query := fmt.Sprintf("UPDATE %s SET embedding = $1 WHERE id = $2", idx.tableName)
		if _, err := idx.pool.Exec(ctx, query, pgv.NewVector(vector), id); err != nil {
			return fmt.Errorf("pgvector index: Update: %w", err)
		}
	}
	if payload != nil {
		payloadJSON, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("pgvector index: Update: %w", err)
		}
		query := fmt.Sprintf("UPDATE %s SET payload = $1 WHERE id = $2", idx.tableName)
		if _, err := idx.pool.Exec(ctx, query, payloadJSON, id); err != nil {
			return fmt.Errorf("pgvector index: Update: %w", err)
		}
	}
	return nil
}

// Search returns the topK closest vectors to query, filtered by equality on
// payload fields via a JSONB containment predicate.
func (idx *Index) Search(ctx context.Context, query []float32, topK int, filter vectorindex.Payload) ([]vectorindex.SearchResult, error) {
	if len(query) != idx.dimensions {
		return nil, fmt.Errorf("%w: query has %d dimensions, index has %d", vectorindex.ErrDimMismatch, len(query), idx.dimensions)
	}

	// "type" is a sentinel key reserved for the caller's own bookkeeping and
	// is never matched against, even if present in filter.
	var effectiveFilter vectorindex.Payload
	for k, v := range filter {
		if k == "type" {
			continue
		}
		if effectiveFilter == nil {
			effectiveFilter = vectorindex.Payload{}
		}
		effectiveFilter[k] = v
	}

	whereClause := ""
	args := []interface{}{pgv.NewVector(query)}
	if len(effectiveFilter) > 0 {
		filterJSON, err := json.Marshal(effectiveFilter)
		if err != nil {
			return nil, fmt.Errorf("pgvector index: Search: %w", err)
		}
		whereClause = "WHERE payload @> $2"
		args = append(args, filterJSON)
	}

	sqlQuery := fmt.Sprintf(`
		SELECT id, payload, %s AS distance
		FROM %s
		%s
		ORDER BY %s
		LIMIT %d
	`, idx.orderExpr(), idx.tableName, whereClause, idx.orderExpr(), topK)

	rows, err := idx.pool.Query(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("pgvector index: Search: %w", err)
	}
	defer rows.Close()

	var results []vectorindex.SearchResult
	for rows.Next() {
		var id string
		var payloadJSON []byte
		var distance float64
		if err := rows.Scan(&id, &payloadJSON, &distance); err != nil {
			return nil, fmt.Errorf("pgvector index: Search: %w", err)
		}
		var payload vectorindex.Payload
		if err := json.Unmarshal(payloadJSON, &payload); err != nil {
			return nil, fmt.Errorf("pgvector index: Search: %w", err)
		}
		results = append(results, vectorindex.SearchResult{
			ID:      id,
			Score:   idx.scoreFromDistance(distance),
			Payload: payload,
		})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector index: Search: %w", err)
	}
	return results, nil
}

// Delete removes the vector with the given id.
func (idx *Index) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = $1", idx.tableName)
	if _, err := idx.pool.Exec(ctx, query, id); err != nil {
		return fmt.Errorf("pgvector index: Delete: %w", err)
	}
	return nil
}

// DeleteAllForUser removes every entry whose payload user_id equals uid.
func (idx *Index) DeleteAllForUser(ctx context.Context, uid string) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE payload @> $1`, idx.tableName)
	filterJSON, err := json.Marshal(vectorindex.Payload{"user_id": uid})
	if err != nil {
		return 0, fmt.Errorf("pgvector index: DeleteAllForUser: %w", err)
	}
	tag, err := idx.pool.Exec(ctx, query, filterJSON)
	if err != nil {
		return 0, fmt.Errorf("pgvector index: DeleteAllForUser: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Dimensions returns the configured vector dimension.
func (idx *Index) Dimensions() int {
	return idx.dimensions
}

// Ping reports whether the database connection is alive and the index was
// initialized with a configured dimension.
func (idx *Index) Ping(ctx context.Context) (bool, error) {
	if err := idx.pool.Ping(ctx); err != nil {
		return false, err
	}
	return idx.dimensions > 0, nil
}

// Close closes the connection pool.
func (idx *Index) Close() error {
	if idx.pool != nil {
		idx.pool.Close()
	}
	return nil
}
