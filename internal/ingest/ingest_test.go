package ingest

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	"firehose-monitor/internal/config"
	"firehose-monitor/internal/metrics"
	"firehose-monitor/internal/model"

	"github.com/stretchr/testify/require"
)

func rawPost(author, text string) model.RawPost {
	return model.RawPost{
		Author: author,
		Record: map[string]any{
			"createdAt": "2026-08-23T10:30:00Z",
			"text":      text,
		},
	}
}

func newTestIngestor(queueCap int, policy config.DropPolicy) (*Ingestor, chan *model.Event, *metrics.Metrics) {
	cfg := config.Config{
		EnqueueWait: 5 * time.Millisecond,
		DropPolicy:  policy,
	}
	m := metrics.New()
	queue := make(chan *model.Event, queueCap)
	return New(cfg, m, nil, queue), queue, m
}

func TestReceiveMalformedCountsAndDoesNotEnqueue(t *testing.T) {
	ing, queue, m := newTestIngestor(4, config.DropNewest)

	ing.Receive(context.Background(), model.RawPost{Author: "a", Record: map[string]any{"text": "no timestamp"}})
	ing.Receive(context.Background(), model.RawPost{Record: map[string]any{"createdAt": "2026-08-23T10:30:00Z", "text": "no author"}})

	c := m.Read()
	require.Equal(t, int64(2), c.RejectedMalformed)
	require.Equal(t, int64(0), c.EventsIngested)
	require.Len(t, queue, 0)
}

func TestReceiveEnqueuesValidPayload(t *testing.T) {
	ing, queue, m := newTestIngestor(4, config.DropNewest)

	ing.Receive(context.Background(), rawPost("did:plc:a", "hello #Go"))

	require.Equal(t, int64(1), m.Read().EventsIngested)
	require.Len(t, queue, 1)

	ev := <-queue
	require.Equal(t, "did:plc:a", ev.Author)
	require.Equal(t, []string{"Go"}, ev.Hashtags)
}

func TestQueueSaturationDropsExactlyOne(t *testing.T) {
	ing, queue, m := newTestIngestor(2, config.DropNewest)
	ctx := context.Background()

	ing.Receive(ctx, rawPost("a", "one"))
	ing.Receive(ctx, rawPost("a", "two"))
	// 큐 포화 상태에서 세 번째 payload 는 bounded wait 후 버려진다.
	ing.Receive(ctx, rawPost("a", "three"))

	c := m.Read()
	require.Equal(t, int64(1), c.DroppedQueueFull)
	require.Equal(t, int64(2), c.EventsIngested)
	require.Len(t, queue, 2)

	first := <-queue
	require.Equal(t, "one", first.Text, "drop-newest keeps the queued events")

	// 자리가 생기면 후속 payload 는 정상 수용된다.
	ing.Receive(ctx, rawPost("a", "four"))
	c = m.Read()
	require.Equal(t, int64(1), c.DroppedQueueFull)
	require.Equal(t, int64(3), c.EventsIngested)
	require.Len(t, queue, 2)
}

func TestQueueSaturationDropOldest(t *testing.T) {
	ing, queue, m := newTestIngestor(2, config.DropOldest)
	ctx := context.Background()

	ing.Receive(ctx, rawPost("a", "one"))
	ing.Receive(ctx, rawPost("a", "two"))
	ing.Receive(ctx, rawPost("a", "three"))

	c := m.Read()
	require.Equal(t, int64(1), c.DroppedQueueFull)
	require.Equal(t, int64(3), c.EventsIngested)
	require.Len(t, queue, 2)

	// 가장 오래된 "one" 이 밀려나고 새 이벤트가 들어간다.
	require.Equal(t, "two", (<-queue).Text)
	require.Equal(t, "three", (<-queue).Text)
}

func TestRunStopsOnSourceEOF(t *testing.T) {
	src := NewChanSource(4)
	cfg := config.Config{EnqueueWait: 5 * time.Millisecond, DropPolicy: config.DropNewest}
	m := metrics.New()
	queue := make(chan *model.Event, 4)
	ing := New(cfg, m, src, queue)

	src.C <- rawPost("a", "hello")
	close(src.C)

	done := make(chan struct{})
	go func() {
		ing.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after source EOF")
	}
	require.Equal(t, int64(1), m.Read().EventsIngested)
}

func TestRunStopsOnCancel(t *testing.T) {
	src := NewChanSource(0)
	cfg := config.Config{EnqueueWait: 5 * time.Millisecond, DropPolicy: config.DropNewest}
	ing := New(cfg, metrics.New(), src, make(chan *model.Event, 1))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		ing.Run(ctx)
		close(done)
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

// errSource 는 복구 불가능한 오류만 반환하는 Source.
type errSource struct{ err error }

func (s errSource) Next(ctx context.Context) (model.RawPost, error) {
	return model.RawPost{}, s.err
}

func TestRunStopsOnRepeatedSourceError(t *testing.T) {
	cfg := config.Config{EnqueueWait: 5 * time.Millisecond, DropPolicy: config.DropNewest}
	ing := New(cfg, metrics.New(), errSource{err: errors.New("broken pipe")}, make(chan *model.Event, 1))

	done := make(chan struct{})
	go func() {
		ing.Run(context.Background())
		close(done)
	}()

	// 같은 오류가 반복되는 소스를 영원히 재시도하면 안 된다.
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run spins on a permanently failing source")
	}
}

func TestOversizedLineDoesNotHaltIngestion(t *testing.T) {
	// 1MB 한도를 넘는 줄 뒤에 정상 레코드가 따라오는 스트림.
	input := strings.Repeat("x", 2*1024*1024) + "\n" +
		`{"author":"did:plc:a","record":{"createdAt":"2026-08-23T10:30:00Z","text":"after the bad line"}}` + "\n"
	src := NewJSONLSource(strings.NewReader(input))
	cfg := config.Config{EnqueueWait: 5 * time.Millisecond, DropPolicy: config.DropNewest}
	m := metrics.New()
	queue := make(chan *model.Event, 4)
	ing := New(cfg, m, src, queue)

	done := make(chan struct{})
	go func() {
		ing.Run(context.Background())
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not reach EOF past the oversized line")
	}

	c := m.Read()
	require.Equal(t, int64(1), c.RejectedMalformed, "oversized line counted as malformed")
	require.Equal(t, int64(1), c.EventsIngested, "following record still ingested")

	ev := <-queue
	require.Equal(t, "did:plc:a", ev.Author)
	require.Equal(t, "after the bad line", ev.Text)
}

func TestJSONLSourceSkipsOversizedLine(t *testing.T) {
	input := strings.Repeat("y", maxLineBytes+1) + "\n" +
		`{"author":"did:plc:b","record":{"createdAt":"2026-08-23T10:30:00Z","text":"ok"}}`
	src := NewJSONLSource(strings.NewReader(input))
	ctx := context.Background()

	// 초과 길이 줄은 빈 RawPost — 오류가 latch 되지 않는다.
	raw, err := src.Next(ctx)
	require.NoError(t, err)
	require.Empty(t, raw.Author)
	require.Nil(t, raw.Record)

	raw, err = src.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "did:plc:b", raw.Author)

	_, err = src.Next(ctx)
	require.ErrorIs(t, err, io.EOF)
}

func TestJSONLSource(t *testing.T) {
	input := strings.Join([]string{
		`{"author":"did:plc:a","record":{"createdAt":"2026-08-23T10:30:00Z","text":"hi"}}`,
		`not json at all`,
	}, "\n")
	src := NewJSONLSource(strings.NewReader(input))
	ctx := context.Background()

	raw, err := src.Next(ctx)
	require.NoError(t, err)
	require.Equal(t, "did:plc:a", raw.Author)
	require.Equal(t, "hi", raw.Record["text"])

	// 깨진 줄도 에러 없이 빈 RawPost 로 흘러나온다.
	raw, err = src.Next(ctx)
	require.NoError(t, err)
	require.Empty(t, raw.Author)

	_, err = src.Next(ctx)
	require.ErrorIs(t, err, io.EOF)
}
