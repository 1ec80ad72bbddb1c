package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	t.Setenv("DATA_ROOT", t.TempDir())

	cfg := Load()

	require.Equal(t, 4096, cfg.QueueSize)
	require.Equal(t, 50*time.Millisecond, cfg.EnqueueWait)
	require.Equal(t, DropNewest, cfg.DropPolicy)
	require.Equal(t, 1, cfg.Workers)
	require.Equal(t, 2*time.Second, cfg.FlushInterval)
	require.Equal(t, 64, cfg.FlushThreshold)
	require.Equal(t, 30*time.Second, cfg.SnapshotInterval)
	require.Equal(t, ":8080", cfg.HTTPAddr)
	require.Equal(t, "firehose-monitor", cfg.ServiceName)
	require.NotEmpty(t, cfg.InstanceID)
	require.False(t, cfg.ArchiveEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DATA_ROOT", t.TempDir())
	t.Setenv("QUEUE_SIZE", "128")
	t.Setenv("QUEUE_DROP_POLICY", "OLDEST")
	t.Setenv("ENQUEUE_WAIT", "10ms")
	t.Setenv("WORKERS", "4")
	t.Setenv("ARCHIVE_BUCKET", "my-archive")
	t.Setenv("AWS_REGION", "ap-northeast-2")
	t.Setenv("LOG_SAMPLE_N", "4")

	cfg := Load()

	require.Equal(t, 128, cfg.QueueSize)
	require.Equal(t, DropOldest, cfg.DropPolicy, "policy parse is case-insensitive")
	require.Equal(t, 10*time.Millisecond, cfg.EnqueueWait)
	require.Equal(t, 4, cfg.Workers)
	require.Equal(t, uint32(4), cfg.LogSampleN)
	require.True(t, cfg.ArchiveEnabled())
}
