// Package config loads and validates the service's configuration: the
// choice of LLM, embedding, metadata store and vector index collaborators,
// plus the ambient knobs (debug logging, fan-out concurrency).
//
// Each collaborator group is represented as a map keyed by provider name so
// that "exactly one provider per group" is a structural invariant the
// caller fills in, and Validate checks rather than something encoded as a
// separate enum plus a big switch.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/oceanbase/durablemem-go/pkg/memory"
)

// LLMConfig configures an LLM collaborator (extraction and reconciliation).
type LLMConfig struct {
	APIKey  string `json:"api_key"`
	Model   string `json:"model"`
	BaseURL string `json:"base_url,omitempty"`
}

// EmbeddingConfig configures an embedding collaborator.
type EmbeddingConfig struct {
	APIKey     string `json:"api_key,omitempty"`
	Model      string `json:"model,omitempty"`
	BaseURL    string `json:"base_url,omitempty"`
	Dimensions int    `json:"dimensions,omitempty"`
}

// MetadataStoreConfig configures a metadata store collaborator.
type MetadataStoreConfig struct {
	// DBPath is used by the sqlite provider.
	DBPath string `json:"db_path,omitempty"`

	// DSN is used by the postgres provider.
	DSN string `json:"dsn,omitempty"`

	TableName string `json:"table_name,omitempty"`
}

// VectorIndexConfig configures a vector index collaborator.
type VectorIndexConfig struct {
	// DBPath is used by the localindex provider.
	DBPath string `json:"db_path,omitempty"`

	// DSN is used by the pgvector provider.
	DSN string `json:"dsn,omitempty"`

	TableName  string `json:"table_name,omitempty"`
	Dimensions int    `json:"dimensions"`
	Metric     string `json:"metric,omitempty"`
}

// Config is the complete configuration for a memory service instance.
//
// Example:
//
//	cfg := &config.Config{
//	    LLM: map[string]config.LLMConfig{
//	        "openai": {APIKey: "sk-...", Model: "gpt-4o-mini"},
//	    },
//	    Embedding: map[string]config.EmbeddingConfig{
//	        "openai": {APIKey: "sk-...", Model: "text-embedding-3-small", Dimensions: 1536},
//	    },
//	    MetadataStore: map[string]config.MetadataStoreConfig{
//	        "sqlite": {DBPath: "./durablemem.db"},
//	    },
//	    VectorIndex: map[string]config.VectorIndexConfig{
//	        "localindex": {DBPath: "./durablemem.db", Dimensions: 1536},
//	    },
//	}
type Config struct {
	// LLM must carry exactly one entry, keyed by provider name
	// ("openai", "anthropic").
	LLM map[string]LLMConfig `json:"llm"`

	// Embedding must carry exactly one entry, keyed by provider name
	// ("openai", "hashembed").
	Embedding map[string]EmbeddingConfig `json:"embedding"`

	// MetadataStore must carry exactly one entry, keyed by provider name
	// ("sqlite", "postgres").
	MetadataStore map[string]MetadataStoreConfig `json:"metadata_store"`

	// VectorIndex must carry exactly one entry, keyed by provider name
	// ("localindex", "pgvector").
	VectorIndex map[string]VectorIndexConfig `json:"vector_index"`

	// Debug enables debug-level structured logging.
	Debug bool `json:"debug,omitempty"`

	// MaxConcurrentNeighborSearch caps the number of candidates whose
	// nearest-neighbor search runs concurrently during a write. Zero means
	// the service picks min(candidates, 10).
	MaxConcurrentNeighborSearch int `json:"max_concurrent_neighbor_search,omitempty"`
}

// Validate checks that every collaborator group carries exactly one entry.
func (c *Config) Validate() error {
	if err := validateGroup("llm", len(c.LLM)); err != nil {
		return err
	}
	if err := validateGroup("embedding", len(c.Embedding)); err != nil {
		return err
	}
	if err := validateGroup("metadata_store", len(c.MetadataStore)); err != nil {
		return err
	}
	if err := validateGroup("vector_index", len(c.VectorIndex)); err != nil {
		return err
	}
	return nil
}

func validateGroup(name string, count int) error {
	switch {
	case count == 0:
		return memory.NewError("Validate", memory.KindConfig,
			fmt.Errorf("%w: %s group has no provider configured", memory.ErrInvalidConfig, name))
	case count > 1:
		return memory.NewError("Validate", memory.KindConfig,
			fmt.Errorf("%w: %s group", memory.ErrMultipleProviders, name))
	default:
		return nil
	}
}

// LoadFromEnv loads configuration from environment variables, first
// searching for a .env file up to five directory levels above the current
// working directory.
//
// Supported environment variables:
//   - LLM_PROVIDER (openai, anthropic), LLM_API_KEY, LLM_MODEL, LLM_BASE_URL
//   - EMBEDDING_PROVIDER (openai, hashembed), EMBEDDING_API_KEY,
//     EMBEDDING_MODEL, EMBEDDING_BASE_URL, EMBEDDING_DIMENSIONS
//   - METADATA_STORE_PROVIDER (sqlite, postgres), SQLITE_PATH, POSTGRES_DSN
//   - VECTOR_INDEX_PROVIDER (localindex, pgvector), VECTOR_INDEX_DB_PATH,
//     VECTOR_INDEX_DSN, VECTOR_INDEX_DIMENSIONS, VECTOR_INDEX_METRIC
//   - DEBUG (true/false)
func LoadFromEnv() (*Config, error) {
	if envPath, found := FindEnvFile(); found {
		_ = godotenv.Load(envPath)
	} else {
		_ = godotenv.Load()
	}

	llmProvider := getEnvOrDefault("LLM_PROVIDER", "openai")
	llmModel := getEnvOrDefault("LLM_MODEL", "gpt-4o-mini")
	if llmProvider == "anthropic" && os.Getenv("LLM_MODEL") == "" {
		llmModel = "claude-3-5-sonnet-20240620"
	}

	embeddingProvider := getEnvOrDefault("EMBEDDING_PROVIDER", "openai")
	dims, _ := strconv.Atoi(getEnvOrDefault("EMBEDDING_DIMENSIONS", "1536"))

	cfg := &Config{
		LLM: map[string]LLMConfig{
			llmProvider: {
				APIKey:  os.Getenv("LLM_API_KEY"),
				Model:   llmModel,
				BaseURL: os.Getenv("LLM_BASE_URL"),
			},
		},
		Embedding: map[string]EmbeddingConfig{
			embeddingProvider: {
				APIKey:     os.Getenv("EMBEDDING_API_KEY"),
				Model:      os.Getenv("EMBEDDING_MODEL"),
				BaseURL:    os.Getenv("EMBEDDING_BASE_URL"),
				Dimensions: dims,
			},
		},
		Debug: getEnvOrDefault("DEBUG", "false") == "true",
	}

	metastoreProvider := getEnvOrDefault("METADATA_STORE_PROVIDER", "sqlite")
	switch metastoreProvider {
	case "postgres":
		cfg.MetadataStore = map[string]MetadataStoreConfig{
			"postgres": {DSN: os.Getenv("POSTGRES_DSN"), TableName: getEnvOrDefault("METADATA_STORE_TABLE", "memories")},
		}
	default:
		cfg.MetadataStore = map[string]MetadataStoreConfig{
			"sqlite": {DBPath: getEnvOrDefault("SQLITE_PATH", "./durablemem.db"), TableName: getEnvOrDefault("METADATA_STORE_TABLE", "memories")},
		}
	}

	vectorIndexProvider := getEnvOrDefault("VECTOR_INDEX_PROVIDER", "localindex")
	switch vectorIndexProvider {
	case "pgvector":
		cfg.VectorIndex = map[string]VectorIndexConfig{
			"pgvector": {
				DSN:        os.Getenv("VECTOR_INDEX_DSN"),
				TableName:  getEnvOrDefault("VECTOR_INDEX_TABLE", "memory_vectors"),
				Dimensions: dims,
				Metric:     getEnvOrDefault("VECTOR_INDEX_METRIC", "cosine"),
			},
		}
	default:
		cfg.VectorIndex = map[string]VectorIndexConfig{
			"localindex": {
				DBPath:     getEnvOrDefault("VECTOR_INDEX_DB_PATH", "./durablemem.db"),
				TableName:  getEnvOrDefault("VECTOR_INDEX_TABLE", "vectors"),
				Dimensions: dims,
				Metric:     getEnvOrDefault("VECTOR_INDEX_METRIC", "cosine"),
			},
		}
	}

	return cfg, nil
}

// LoadFromJSON loads configuration from a JSON file.
func LoadFromJSON(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, memory.NewError("LoadFromJSON", memory.KindConfig, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, memory.NewError("LoadFromJSON", memory.KindConfig, err)
	}
	return &cfg, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// FindEnvFile searches the current directory, then up to five parent
// directories, for a .env or .env.example file.
func FindEnvFile() (string, bool) {
	if _, err := os.Stat(".env"); err == nil {
		return ".env", true
	}
	if _, err := os.Stat(".env.example"); err == nil {
		return ".env.example", true
	}

	dir, _ := os.Getwd()
	for i := 0; i < 5; i++ {
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent

		envPath := filepath.Join(dir, ".env")
		envExamplePath := filepath.Join(dir, ".env.example")

		if _, err := os.Stat(envPath); err == nil {
			return envPath, true
		}
		if _, err := os.Stat(envExamplePath); err == nil {
			return envExamplePath, true
		}
	}

	return "", false
}
