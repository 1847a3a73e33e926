package config_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oceanbase/durablemem-go/pkg/config"
	"github.com/oceanbase/durablemem-go/pkg/memory"
)

func validConfig() *config.Config {
	return &config.Config{
		LLM:           map[string]config.LLMConfig{"openai": {APIKey: "k", Model: "gpt-4o-mini"}},
		Embedding:     map[string]config.EmbeddingConfig{"openai": {Model: "text-embedding-3-small", Dimensions: 1536}},
		MetadataStore: map[string]config.MetadataStoreConfig{"sqlite": {DBPath: "./durablemem.db"}},
		VectorIndex:   map[string]config.VectorIndexConfig{"localindex": {DBPath: "./durablemem.db", Dimensions: 1536}},
	}
}

func TestValidate_ExactlyOneProviderPerGroupPasses(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_ZeroProvidersFails(t *testing.T) {
	cfg := validConfig()
	cfg.LLM = map[string]config.LLMConfig{}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, memory.ErrInvalidConfig)
}

func TestValidate_MultipleProvidersFails(t *testing.T) {
	cfg := validConfig()
	cfg.VectorIndex = map[string]config.VectorIndexConfig{
		"localindex": {DBPath: "a"},
		"pgvector":   {DSN: "b"},
	}

	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorIs(t, err, memory.ErrMultipleProviders)
}

func TestValidate_ErrorKindIsConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Embedding = nil

	err := cfg.Validate()
	var merr *memory.Error
	require.True(t, errors.As(err, &merr))
	assert.Equal(t, memory.KindConfig, merr.Kind)
}

func TestFindEnvFile_FindsDotEnvInCurrentDirectory(t *testing.T) {
	dir := t.TempDir()
	envPath := filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(envPath, []byte("LLM_PROVIDER=openai\n"), 0644))

	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(cwd)

	found, ok := config.FindEnvFile()
	assert.True(t, ok)
	assert.Equal(t, ".env", found)
}

func TestFindEnvFile_NoneFound(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(cwd)

	_, ok := config.FindEnvFile()
	assert.False(t, ok)
}

func TestLoadFromEnv_DefaultsToSQLiteAndLocalindex(t *testing.T) {
	dir := t.TempDir()
	cwd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	defer os.Chdir(cwd)

	os.Clearenv()
	cfg, err := config.LoadFromEnv()
	require.NoError(t, err)

	require.Contains(t, cfg.MetadataStore, "sqlite")
	require.Contains(t, cfg.VectorIndex, "localindex")
	require.Contains(t, cfg.LLM, "openai")
	require.Contains(t, cfg.Embedding, "openai")
}
