package integration

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkilian/pqdataset"
	"github.com/arkilian/pqdataset/internal/config"
	"github.com/arkilian/pqdataset/internal/executor"
)

// TestS3EndToEnd runs against a real bucket, e.g. MinIO with
// PQDS_S3_ENDPOINT=http://localhost:9000 and PQDS_S3_USE_PATH_STYLE=true.
func TestS3EndToEnd(t *testing.T) {
	bucket := os.Getenv("PQDS_TEST_S3_BUCKET")
	if bucket == "" {
		t.Skip("PQDS_TEST_S3_BUCKET not set")
	}
	ctx := context.Background()

	cfg := config.DefaultConfig()
	require.NoError(t, config.LoadFromEnv(cfg))
	cfg.Storage.Type = config.StorageS3
	cfg.Storage.S3.Bucket = bucket
	require.NoError(t, cfg.Validate())

	st, err := cfg.OpenStorage(ctx)
	require.NoError(t, err)
	prefix := "pqds-it/" + uuid.NewString()
	t.Cleanup(func() {
		objects, err := st.ListObjects(ctx, prefix)
		if err != nil {
			return
		}
		for _, obj := range objects {
			st.Delete(ctx, obj)
		}
	})

	opts := []pqdataset.Option{
		pqdataset.WithStorage(st),
		pqdataset.WithExecutorConfig(executor.Config{Concurrency: 4, DownloadDir: t.TempDir(), MaxCacheBytes: 1 << 24}),
	}
	table := eventsTable(500)
	rec, err := pqdataset.WriteDataset(ctx, prefix, table, true,
		append(opts, pqdataset.WithChunkPolicy(pqdataset.NumChunks(4)))...)
	require.NoError(t, err)
	assert.Equal(t, 4, rec.NumPartitions())

	res, err := pqdataset.ReadDataset(ctx, prefix, opts...)
	require.NoError(t, err)
	assert.True(t, table.Equal(res.Frame))
}
