// Package sqlite provides a metastore.Store backed by SQLite.
//
// SQLite is a lightweight, file-based database suitable for local
// development, tests, and small-scale deployments. Embeddings are stored as
// JSON arrays in a TEXT column; this store never performs similarity
// search itself, that is the vector index's job, but it persists the
// embedding so the index can be rebuilt from the metadata store alone.
package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/oceanbase/durablemem-go/pkg/metastore"
)

// Client implements metastore.Store using SQLite as the backend.
type Client struct {
	db        *sql.DB
	tableName string
}

// Config contains configuration for creating a SQLite metadata store.
type Config struct {
	// DBPath is the path to the SQLite database file.
	DBPath string

	// TableName is the name of the table to use. Defaults to "memories".
	TableName string
}

// NewClient creates a new SQLite metadata store client and ensures its
// schema exists.
func NewClient(ctx context.Context, cfg *Config) (*Client, error) {
	dbDir := filepath.Dir(cfg.DBPath)
	if dbDir != "" && dbDir != "." {
		if err := os.MkdirAll(dbDir, 0755); err != nil {
			return nil, fmt.Errorf("sqlite metastore: create directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", cfg.DBPath+"?_foreign_keys=1&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("sqlite metastore: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("sqlite metastore: %w", err)
	}

	tableName := cfg.TableName
	if tableName == "" {
		tableName = "memories"
	}

	client := &Client{db: db, tableName: tableName}
	if err := client.EnsureSchema(ctx); err != nil {
		return nil, err
	}
	return client, nil
}

// EnsureSchema creates the backing table and the four secondary indexes
// named by the metadata store's access patterns: by user, by type, by
// source, by time range.
func (c *Client) EnsureSchema(ctx context.Context) error {
	createTable := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			content TEXT NOT NULL,
			type TEXT NOT NULL,
			timestamp DATETIME NOT NULL,
			user_id TEXT NOT NULL,
			embedding TEXT NOT NULL
		)
	`, c.tableName)
	if _, err := c.db.ExecContext(ctx, createTable); err != nil {
		return fmt.Errorf("sqlite metastore: EnsureSchema: %w", err)
	}

	indexes := []string{
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_user ON %s(user_id)", c.tableName, c.tableName),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_type ON %s(type)", c.tableName, c.tableName),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_source ON %s(source)", c.tableName, c.tableName),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_timestamp ON %s(timestamp)", c.tableName, c.tableName),
	}
	for _, idx := range indexes {
		if _, err := c.db.ExecContext(ctx, idx); err != nil {
			return fmt.Errorf("sqlite metastore: EnsureSchema: %w", err)
		}
	}
	return nil
}

// Insert adds a new memory row.
func (c *Client) Insert(ctx context.Context, m *metastore.Memory) error {
	embeddingJSON, err := json.Marshal(m.Embedding)
	if err != nil {
		return fmt.Errorf("sqlite metastore: Insert: %w", err)
	}

	query := fmt.Sprintf(`
		INSERT INTO %s (id, source, content, type, timestamp, user_id, embedding)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, c.tableName)

	_, err = c.db.ExecContext(ctx, query,
		m.ID, m.Source, m.Content, m.Type, m.Timestamp, m.UserID, string(embeddingJSON))
	if err != nil {
		return fmt.Errorf("sqlite metastore: Insert: %w", err)
	}
	return nil
}

// Update overwrites the content, type, embedding and timestamp of the row
// with the given ID.
func (c *Client) Update(ctx context.Context, m *metastore.Memory) error {
	embeddingJSON, err := json.Marshal(m.Embedding)
	if err != nil {
		return fmt.Errorf("sqlite metastore: Update: %w", err)
	}

	query := fmt.Sprintf(`
		UPDATE %s SET content = ?, type = ?, timestamp = ?, embedding = ?
		WHERE id = ?
	`, c.tableName)

	result, err := c.db.ExecContext(ctx, query, m.Content, m.Type, m.Timestamp, string(embeddingJSON), m.ID)
	if err != nil {
		return fmt.Errorf("sqlite metastore: Update: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite metastore: Update: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("sqlite metastore: Update: %w: %s", metastore.ErrNotFound, m.ID)
	}
	return nil
}

// Delete removes the row with the given ID.
func (c *Client) Delete(ctx context.Context, id string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE id = ?", c.tableName)
	_, err := c.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("sqlite metastore: Delete: %w", err)
	}
	return nil
}

// GetByIDs retrieves rows for the given IDs.
func (c *Client) GetByIDs(ctx context.Context, ids []string) ([]*metastore.Memory, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}

	query := fmt.Sprintf(`
		SELECT id, source, content, type, timestamp, user_id, embedding
		FROM %s WHERE id IN (%s)
	`, c.tableName, strings.Join(placeholders, ","))

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite metastore: GetByIDs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var results []*metastore.Memory
	for rows.Next() {
		m, err := scanMemory(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite metastore: GetByIDs: %w", err)
		}
		results = append(results, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite metastore: GetByIDs: %w", err)
	}
	return results, nil
}

// DeleteAllForUser removes every row scoped to userID.
func (c *Client) DeleteAllForUser(ctx context.Context, userID string) (int64, error) {
	query := fmt.Sprintf("DELETE FROM %s WHERE user_id = ?", c.tableName)
	result, err := c.db.ExecContext(ctx, query, userID)
	if err != nil {
		return 0, fmt.Errorf("sqlite metastore: DeleteAllForUser: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("sqlite metastore: DeleteAllForUser: %w", err)
	}
	return rows, nil
}

// Ping verifies the database connection is alive.
func (c *Client) Ping(ctx context.Context) error {
	return c.db.PingContext(ctx)
}

// Close closes the database connection.
func (c *Client) Close() error {
	if c.db != nil {
		return c.db.Close()
	}
	return nil
}

func scanMemory(rows *sql.Rows) (*metastore.Memory, error) {
	var m metastore.Memory
	var embeddingStr string
	if err := rows.Scan(&m.ID, &m.Source, &m.Content, &m.Type, &m.Timestamp, &m.UserID, &embeddingStr); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(embeddingStr), &m.Embedding); err != nil {
		return nil, fmt.Errorf("parse embedding: %w", err)
	}
	return &m, nil
}
