package display

import (
	"bytes"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"firehose-monitor/internal/metrics"
	"firehose-monitor/internal/stats"

	"github.com/stretchr/testify/require"
)

func TestRenderSummary(t *testing.T) {
	snap := stats.Snapshot{
		ElapsedSeconds:  125,
		QueueDepth:      3,
		TotalPosts:      1234,
		UniqueAuthors:   42,
		PostsThisMinute: 17,
		PostsThisHour:   900,
		Hashtags:        map[string]uint64{"go": 9, "rust": 2},
		Domains:         map[string]uint64{"x.test": 5},
		TopAuthors:      []stats.CountEntry{{Key: "did:plc:a", Count: 7}},
		Processing:      &stats.ProcessingStats{AvgMS: 1.5, MinMS: 0.2, MaxMS: 4.1, Samples: 99},
		Resources:       &stats.ResourceSample{RSSBytes: 42 * 1024 * 1024, CPUPercent: 3.2},
		Recent: []stats.RecentPost{
			{SeenAt: time.Date(2026, 8, 23, 10, 30, 0, 0, time.UTC), Author: "did:plc:a", Text: "hello"},
		},
	}

	var out bytes.Buffer
	sink := NewSink(nil, nil, time.Second, &out)
	sink.Render(snap)

	text := out.String()
	require.Contains(t, text, "1,234 total")
	require.Contains(t, text, "queue 3")
	require.Contains(t, text, "42 unique")
	require.Contains(t, text, "#go 9")
	require.Contains(t, text, "x.test 5")
	require.Contains(t, text, "active: did:plc:a 7")
	require.Contains(t, text, "proc avg 1.50ms (n=99)")
	require.Contains(t, text, "hello")
	require.NotContains(t, text, "degraded", "no drop counters, no degraded line")
}

func TestRenderTruncatesOnRuneBoundary(t *testing.T) {
	snap := stats.Snapshot{
		Hashtags: map[string]uint64{},
		Domains:  map[string]uint64{},
		Recent: []stats.RecentPost{
			{SeenAt: time.Date(2026, 8, 23, 10, 30, 0, 0, time.UTC), Author: "a", Text: strings.Repeat("한", 70)},
		},
	}

	var out bytes.Buffer
	NewSink(nil, nil, time.Second, &out).Render(snap)

	text := out.String()
	require.True(t, utf8.ValidString(text), "multi-byte text must not be split mid-rune")
	require.Contains(t, text, strings.Repeat("한", 60)+"…")
	require.NotContains(t, text, strings.Repeat("한", 61))
}

func TestRenderDegradedLine(t *testing.T) {
	snap := stats.Snapshot{
		Hashtags: map[string]uint64{},
		Domains:  map[string]uint64{},
		Counters: metrics.Counters{
			DroppedQueueFull:  10,
			PersistRowsDrop:   2,
			RejectedMalformed: 7,
		},
	}

	var out bytes.Buffer
	NewSink(nil, nil, time.Second, &out).Render(snap)

	text := out.String()
	require.Contains(t, text, "degraded: 12 dropped")
	require.Contains(t, text, "7 malformed")
}
