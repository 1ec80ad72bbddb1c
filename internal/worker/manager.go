// internal/worker/manager.go
package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"firehose-monitor/internal/config"
	"firehose-monitor/internal/metrics"
	"firehose-monitor/internal/model"
	"firehose-monitor/internal/pool"
	"firehose-monitor/internal/stats"
	"firehose-monitor/internal/store"

	"github.com/rs/zerolog/log"
)

// Manager 는 파이프라인의 가운데 토막이다.
//
//	Ingestor → EventCh → (Aggregator.Update + Router.Route) → 디스크
//
// EventCh 소비 goroutine 은 Workers 개 (작은 고정 풀). 이벤트 1건은
// 집계와 라우팅을 모두 마친 뒤 풀로 반환된다 — 두 소비자 모두
// 읽기 전용이고 같은 goroutine 안에서 순차 실행되므로 공유 소유권
// 문제가 없다.
//
// Shutdown 은 graceful: EventCh 를 닫고 worker 들이 남은 이벤트를
// 전부 비울 때까지 기다린 다음, 버퍼된 작성자 row 를 모두 flush 한다.
// 버퍼에 있던 데이터가 조용히 사라지는 일은 없다.
type Manager struct {
	cfg     config.Config
	metrics *metrics.Metrics
	agg     *stats.Aggregator
	router  *store.Router

	EventCh chan *model.Event // Ingestor 가 push

	ctx    context.Context
	cancel context.CancelFunc

	wg       sync.WaitGroup
	stopOnce sync.Once
}

func NewManager(cfg config.Config, m *metrics.Metrics, agg *stats.Aggregator, router *store.Router) *Manager {
	return &Manager{
		cfg:     cfg,
		metrics: m,
		agg:     agg,
		router:  router,
		EventCh: make(chan *model.Event, cfg.QueueSize),
	}
}

// Start 는 worker 풀과 라우터 flush tick 루프를 띄운다.
func (m *Manager) Start() {
	m.ctx, m.cancel = context.WithCancel(context.Background())

	for i := 0; i < m.cfg.Workers; i++ {
		m.wg.Add(1)
		go m.processLoop()
	}

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		m.router.Run(m.ctx)
	}()
}

// Depth 는 캡처 시점 큐 길이. 스냅샷과 admin 표면이 쓴다.
func (m *Manager) Depth() int {
	return len(m.EventCh)
}

// Shutdown 은 EventCh 를 닫고 모든 worker 가 잔여 이벤트를
// 처리할 때까지 기다린 뒤, 작성자 버퍼를 전부 flush 한다.
// 여러 번 불려도 안전하다.
//
// processLoop 가 ctx 를 보지 않으므로 cancel 순서는 무관하다:
// cancel 은 router 의 tick 루프만 멈추고, 잔여 이벤트는 끝까지
// 소비된 뒤 마지막 FlushAll 로 디스크에 닿는다.
func (m *Manager) Shutdown() {
	m.stopOnce.Do(func() {
		close(m.EventCh)
	})
	m.cancel()
	m.wg.Wait()
	m.router.FlushAll()
}

// processLoop 는 EventCh 가 닫혀 비워질 때까지 이벤트를 소비한다.
// ctx 를 보지 않는 것이 의도다: shutdown 시에도 큐에 남은 이벤트는
// 전부 집계/영속을 거쳐야 한다.
func (m *Manager) processLoop() {
	defer m.wg.Done()

	for ev := range m.EventCh {
		start := time.Now()
		m.agg.Update(ev)
		m.router.Route(ev)
		m.agg.ObserveProcessing(time.Since(start))
		atomic.AddInt64(&m.metrics.EventsProcessedTotal, 1)
		pool.PutEvent(ev)
	}

	log.Debug().Msg("worker: event channel drained")
}
