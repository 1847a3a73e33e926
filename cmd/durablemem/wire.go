package main

import (
	"context"
	"fmt"

	"github.com/oceanbase/durablemem-go/pkg/config"
	"github.com/oceanbase/durablemem-go/pkg/embedclient"
	embedhash "github.com/oceanbase/durablemem-go/pkg/embedclient/hashembed"
	embedopenai "github.com/oceanbase/durablemem-go/pkg/embedclient/openai"
	"github.com/oceanbase/durablemem-go/pkg/llmclient"
	llmanthropic "github.com/oceanbase/durablemem-go/pkg/llmclient/anthropic"
	llmopenai "github.com/oceanbase/durablemem-go/pkg/llmclient/openai"
	"github.com/oceanbase/durablemem-go/pkg/memory"
	"github.com/oceanbase/durablemem-go/pkg/metastore"
	metapostgres "github.com/oceanbase/durablemem-go/pkg/metastore/postgres"
	metasqlite "github.com/oceanbase/durablemem-go/pkg/metastore/sqlite"
	"github.com/oceanbase/durablemem-go/pkg/obslog"
	"github.com/oceanbase/durablemem-go/pkg/vectorindex"
	"github.com/oceanbase/durablemem-go/pkg/vectorindex/localindex"
	"github.com/oceanbase/durablemem-go/pkg/vectorindex/pgvector"
)

// buildService loads configuration from the environment and wires a
// memory.Service from the selected providers. Construction alone never
// imports pkg/config into pkg/memory: only this process-boundary package
// knows how to turn a config.Config into live collaborators.
func buildService(ctx context.Context) (*memory.Service, error) {
	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log, err := obslog.New(cfg.Debug)
	if err != nil {
		return nil, err
	}
	log.Info("wiring memory service", "llm", providerName(cfg.LLM), "embedding", providerName(cfg.Embedding),
		"metadata_store", providerName(cfg.MetadataStore), "vector_index", providerName(cfg.VectorIndex))

	llm, err := buildLLM(cfg)
	if err != nil {
		return nil, err
	}
	embed, err := buildEmbedder(cfg)
	if err != nil {
		return nil, err
	}
	store, err := buildMetastore(ctx, cfg)
	if err != nil {
		return nil, err
	}
	index, err := buildVectorIndex(ctx, cfg)
	if err != nil {
		return nil, err
	}

	return memory.New(ctx, llm, embed, store, index, nil, nil, cfg.MaxConcurrentNeighborSearch)
}

func buildLLM(cfg *config.Config) (llmclient.Provider, error) {
	for provider, c := range cfg.LLM {
		switch provider {
		case "anthropic":
			return llmanthropic.NewClient(&llmanthropic.Config{APIKey: c.APIKey, Model: c.Model, BaseURL: c.BaseURL})
		default:
			return llmopenai.NewClient(&llmopenai.Config{APIKey: c.APIKey, Model: c.Model, BaseURL: c.BaseURL})
		}
	}
	return nil, fmt.Errorf("durablemem: no LLM provider configured")
}

func buildEmbedder(cfg *config.Config) (embedclient.Provider, error) {
	for provider, c := range cfg.Embedding {
		switch provider {
		case "hashembed":
			return embedhash.NewClient(&embedhash.Config{Dimensions: c.Dimensions}), nil
		default:
			return embedopenai.NewClient(&embedopenai.Config{APIKey: c.APIKey, Model: c.Model, BaseURL: c.BaseURL, Dimensions: c.Dimensions})
		}
	}
	return nil, fmt.Errorf("durablemem: no embedding provider configured")
}

func buildMetastore(ctx context.Context, cfg *config.Config) (metastore.Store, error) {
	for provider, c := range cfg.MetadataStore {
		switch provider {
		case "postgres":
			return metapostgres.NewClient(ctx, &metapostgres.Config{DSN: c.DSN, TableName: c.TableName})
		default:
			return metasqlite.NewClient(ctx, &metasqlite.Config{DBPath: c.DBPath, TableName: c.TableName})
		}
	}
	return nil, fmt.Errorf("durablemem: no metadata store provider configured")
}

func buildVectorIndex(ctx context.Context, cfg *config.Config) (vectorindex.Index, error) {
	for provider, c := range cfg.VectorIndex {
		metric := vectorindex.Metric(c.Metric)
		switch provider {
		case "pgvector":
			return pgvector.New(ctx, &pgvector.Config{DSN: c.DSN, TableName: c.TableName, Dimensions: c.Dimensions, Metric: metric})
		default:
			return localindex.New(ctx, &localindex.Config{DBPath: c.DBPath, TableName: c.TableName, Dimensions: c.Dimensions, Metric: metric})
		}
	}
	return nil, fmt.Errorf("durablemem: no vector index provider configured")
}

// providerName returns the single key of a one-entry provider map, or
// "none" if the map is empty. Config.Validate rejects anything else before
// buildService reaches this point.
func providerName[T any](group map[string]T) string {
	for name := range group {
		return name
	}
	return "none"
}
