// internal/ingest/ingest.go
package ingest

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"time"

	"firehose-monitor/internal/config"
	"firehose-monitor/internal/metrics"
	"firehose-monitor/internal/model"
	"firehose-monitor/internal/pool"

	"github.com/rs/zerolog/log"
)

// Ingestor
// ------------------------------------------------------------
// 업스트림 Source 에서 raw payload 를 당겨와 검증하고,
// Event 로 정규화해 내부 큐에 넣는다.
//
// 수집 경로의 철칙 두 가지:
//   - malformed payload 는 절대 파이프라인을 멈추지 않는다 (drop + count)
//   - 큐가 가득 차도 무한정 블로킹하지 않는다 (bounded wait → drop)
//
// 업스트림 소스 자체가 backpressure 에 민감할 수 있기 때문에
// 여기서 막히면 구독 연결이 끊어진다.
type Ingestor struct {
	cfg     config.Config
	metrics *metrics.Metrics
	src     Source
	queue   chan *model.Event // drop-oldest 정책 때문에 수신도 가능해야 한다
}

func New(cfg config.Config, m *metrics.Metrics, src Source, queue chan *model.Event) *Ingestor {
	return &Ingestor{
		cfg:     cfg,
		metrics: m,
		src:     src,
		queue:   queue,
	}
}

// 소스 오류가 이 횟수만큼 연속되면 일시적 오류가 아니라고 보고
// 수집을 끝낸다. 회복 불가능한 소스를 붙잡고 spin 하지 않기 위함.
const maxSourceErrStreak = 5

// Run 은 소스가 끝나거나 ctx 가 취소될 때까지 수집 루프를 돈다.
// 복귀 시점에는 더 이상 큐에 쓰지 않는다 — 호출자(Manager)가
// 그 후에 큐를 닫는다.
func (i *Ingestor) Run(ctx context.Context) {
	errStreak := 0

	for {
		raw, err := i.src.Next(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				log.Info().Msg("ingest: source closed")
				return
			}
			// 일시적 소스 오류는 수집을 멈출 이유가 아니지만,
			// 같은 오류만 반복되는 소스는 끝난 것으로 취급한다.
			errStreak++
			if errStreak >= maxSourceErrStreak {
				log.Error().Err(err).Int("consecutive", errStreak).
					Msg("ingest: source failing repeatedly, stopping")
				return
			}
			log.Warn().Err(err).Msg("ingest: source error")
			continue
		}
		errStreak = 0

		i.Receive(ctx, raw)
	}
}

// Receive 는 payload 1건을 검증→정규화→enqueue 한다.
// 어떤 경우에도 에러를 호출자에게 올리지 않는다.
func (i *Ingestor) Receive(ctx context.Context, raw model.RawPost) {
	ev := pool.EventPool.Get().(*model.Event)
	pool.ResetEvent(ev)

	if err := normalize(raw, ev); err != nil {
		pool.PutEvent(ev)
		atomic.AddInt64(&i.metrics.EventsRejectedMalformedTotal, 1)
		log.Debug().Err(err).Str("author", raw.Author).Msg("ingest: payload rejected")
		return
	}

	i.enqueue(ctx, ev)
}

// enqueue 는 bounded-wait-then-drop 정책으로 이벤트를 큐에 넣는다.
//
//  1. 즉시 시도
//  2. 실패 시 EnqueueWait 만큼만 대기
//  3. 그래도 자리가 없으면 DropPolicy 에 따라
//     newest: 들어오려던 이벤트를 버린다
//     oldest: 가장 오래 대기 중인 이벤트를 꺼내 버리고 새 이벤트를 넣는다
//
// 어느 쪽이든 버려진 레코드 1건당 drop 카운터 +1.
func (i *Ingestor) enqueue(ctx context.Context, ev *model.Event) {
	select {
	case i.queue <- ev:
		atomic.AddInt64(&i.metrics.EventsIngestedTotal, 1)
		return
	default:
	}

	timer := time.NewTimer(i.cfg.EnqueueWait)
	defer timer.Stop()

	select {
	case i.queue <- ev:
		atomic.AddInt64(&i.metrics.EventsIngestedTotal, 1)
		return

	case <-ctx.Done():
		i.drop(ev)
		return

	case <-timer.C:
	}

	if i.cfg.DropPolicy == config.DropOldest {
		select {
		case old := <-i.queue:
			i.drop(old)
		default:
			// 대기 중 소비자가 큐를 비웠다면 버릴 것이 없다.
		}
		// 수집 goroutine 은 단일 producer 이므로 여기서는 자리가 있다.
		select {
		case i.queue <- ev:
			atomic.AddInt64(&i.metrics.EventsIngestedTotal, 1)
		default:
			i.drop(ev)
		}
		return
	}

	i.drop(ev)
}

func (i *Ingestor) drop(ev *model.Event) {
	pool.PutEvent(ev)
	atomic.AddInt64(&i.metrics.EventsDroppedQueueFullTotal, 1)
}
