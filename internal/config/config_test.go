package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkilian/pqdataset/internal/storage"
)

func TestDefaultConfigIsValid(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, "parquet", cfg.Write.Codec)
	assert.True(t, cfg.Write.WriteIndex)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"unknown storage", func(c *Config) { c.Storage.Type = "ftp" }},
		{"local without path", func(c *Config) { c.Storage.Path = "" }},
		{"s3 without bucket", func(c *Config) { c.Storage.Type = StorageS3 }},
		{"unknown codec", func(c *Config) { c.Write.Codec = "csv" }},
		{"zero chunk rows", func(c *Config) { c.Write.ChunkRows = 0 }},
		{"zero concurrency", func(c *Config) { c.Read.Concurrency = 0 }},
		{"negative cache", func(c *Config) { c.Read.CacheBytes = -1 }},
		{"bad level", func(c *Config) { c.Log.Level = "loud" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestLoadFromFile(t *testing.T) {
	dir := t.TempDir()

	yamlPath := filepath.Join(dir, "pqds.yaml")
	require.NoError(t, os.WriteFile(yamlPath, []byte(`
storage:
  type: s3
  s3:
    bucket: data
    endpoint: http://localhost:9000
    use_path_style: true
write:
  codec: sqlite
  chunk_rows: 500
read:
  concurrency: 4
log:
  level: debug
`), 0644))

	cfg, err := LoadFromFile(yamlPath)
	require.NoError(t, err)
	assert.Equal(t, StorageS3, cfg.Storage.Type)
	assert.Equal(t, "data", cfg.Storage.S3.Bucket)
	assert.True(t, cfg.Storage.S3.UsePathStyle)
	assert.Equal(t, "sqlite", cfg.Write.Codec)
	assert.Equal(t, 500, cfg.Write.ChunkRows)
	assert.True(t, cfg.Write.WriteIndex, "unset keys keep their defaults")
	assert.Equal(t, 4, cfg.Read.Concurrency)
	assert.Equal(t, "debug", cfg.Log.Level)
	require.NoError(t, cfg.Validate())

	jsonPath := filepath.Join(dir, "pqds.json")
	require.NoError(t, os.WriteFile(jsonPath, []byte(`{"write": {"chunk_rows": 7, "write_index": false}}`), 0644))
	cfg, err = LoadFromFile(jsonPath)
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Write.ChunkRows)
	assert.False(t, cfg.Write.WriteIndex)

	_, err = LoadFromFile(filepath.Join(dir, "pqds.toml"))
	assert.Error(t, err)
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("PQDS_STORAGE_PATH", "/srv/data")
	t.Setenv("PQDS_WRITE_CODEC", "sqlite")
	t.Setenv("PQDS_WRITE_INDEX", "false")
	t.Setenv("PQDS_WRITE_CHUNK_ROWS", "42")
	t.Setenv("PQDS_READ_CACHE_BYTES", "0")

	cfg := DefaultConfig()
	require.NoError(t, LoadFromEnv(cfg))
	assert.Equal(t, "/srv/data", cfg.Storage.Path)
	assert.Equal(t, "sqlite", cfg.Write.Codec)
	assert.False(t, cfg.Write.WriteIndex)
	assert.Equal(t, 42, cfg.Write.ChunkRows)
	assert.Equal(t, int64(0), cfg.Read.CacheBytes)
}

func TestLoadFromEnvRejectsMalformedNumbers(t *testing.T) {
	t.Setenv("PQDS_READ_CONCURRENCY", "many")
	assert.Error(t, LoadFromEnv(DefaultConfig()))
}

func TestOpenLocalStorage(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.Storage.Path = dir

	st, err := cfg.OpenStorage(context.Background())
	require.NoError(t, err)
	local, ok := st.(*storage.LocalStorage)
	require.True(t, ok)
	assert.Equal(t, dir, local.BasePath())

	exec := cfg.Executor()
	assert.Equal(t, cfg.Read.Concurrency, exec.Concurrency)

	_, err = cfg.Logger()
	assert.NoError(t, err)
}
