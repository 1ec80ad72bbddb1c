package worker

import (
	"bytes"
	"io"
	"regexp"
	"testing"
	"time"

	"firehose-monitor/internal/metrics"
	"firehose-monitor/internal/model"
	"firehose-monitor/internal/stats"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
	"github.com/stretchr/testify/require"
)

func decodeArtifact(t *testing.T, data []byte) stats.Snapshot {
	t.Helper()
	gz, err := gzip.NewReader(bytes.NewReader(data))
	require.NoError(t, err)
	raw, err := io.ReadAll(gz)
	require.NoError(t, err)
	require.NoError(t, gz.Close())

	var snap stats.Snapshot
	require.NoError(t, json.Unmarshal(raw, &snap))
	return snap
}

func TestEncodeSnapshotGZRoundTrip(t *testing.T) {
	m := metrics.New()
	agg := stats.NewAggregator(m)
	agg.Update(&model.Event{
		Author:    "did:plc:a",
		CreatedAt: time.Now().UTC(),
		Text:      "hello #Go",
		Hashtags:  []string{"Go"},
		Links:     []string{"https://x.test/p"},
	})

	data, err := NewEncoder().EncodeSnapshotGZ(agg.Snapshot(3))
	require.NoError(t, err)

	snap := decodeArtifact(t, data)
	require.Equal(t, uint64(1), snap.TotalPosts)
	require.Equal(t, 1, snap.UniqueAuthors)
	require.Equal(t, 3, snap.QueueDepth)
	require.Equal(t, uint64(1), snap.Hashtags["go"])
	require.Equal(t, uint64(1), snap.Domains["x.test"])
}

func TestEncodeSnapshotGZIndependentResults(t *testing.T) {
	enc := NewEncoder()
	m := metrics.New()
	agg := stats.NewAggregator(m)

	first, err := enc.EncodeSnapshotGZ(agg.Snapshot(0))
	require.NoError(t, err)
	firstCopy := append([]byte(nil), first...)

	agg.Update(&model.Event{Author: "a", CreatedAt: time.Now(), Text: "x"})
	second, err := enc.EncodeSnapshotGZ(agg.Snapshot(0))
	require.NoError(t, err)

	// pool 버퍼 재사용이 이전 결과를 덮어쓰면 안 된다.
	require.Equal(t, firstCopy, first)
	require.Equal(t, uint64(0), decodeArtifact(t, first).TotalPosts)
	require.Equal(t, uint64(1), decodeArtifact(t, second).TotalPosts)
}

var artifactNameRe = regexp.MustCompile(`^\d+_monitor1_\d{6}\.json\.gz$`)

func TestArtifactNames(t *testing.T) {
	a := NewArtifactName("monitor1")
	b := NewArtifactName("monitor1")

	require.Regexp(t, artifactNameRe, a)
	require.Regexp(t, artifactNameRe, b)
	require.NotEqual(t, a, b, "consecutive artifacts must not collide")
}

func TestBuildObjectKey(t *testing.T) {
	key := BuildObjectKey("analytics", "123_m_000001.json.gz")
	require.Regexp(t, `^analytics/dt=\d{4}-\d{2}-\d{2}/hr=\d{2}/123_m_000001\.json\.gz$`, key)
}
