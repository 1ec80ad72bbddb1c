// internal/worker/scheduler.go
package worker

import (
	"context"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"firehose-monitor/internal/config"
	"firehose-monitor/internal/metrics"
	"firehose-monitor/internal/stats"

	"github.com/rs/zerolog/log"
)

// backlog 1회 처리 상한. 스케줄러 tick 이 업로드 재시도에
// 잡아먹히지 않게 한다.
const archiveBatch = 3

// Scheduler
// ------------------------------------------------------------
// 고정 주기로 Analytics Snapshot 을 캡처해 로컬 아티팩트로
// 기록하는 타이머 경로. 수집량과 무관하게 발화한다 — 이벤트가
// 0건인 구간에도 0 delta 스냅샷이 남아야 한다.
//
// 한 tick 의 순서:
//  1. Aggregator.Snapshot (큐 깊이 포함)
//  2. JSON+gzip 인코딩 → <unix>_<instance>_<counter>.json.gz
//  3. Aggregator.Rollover — 저트래픽 구간의 버킷 전진 보장
//  4. (아카이브 설정 시) backlog 업로드
//
// 어떤 단계가 실패해도 다음 주기로 계속 간다. 스냅샷 1회
// 유실은 허용되지만 스케줄러가 죽는 것은 허용되지 않는다.
type Scheduler struct {
	cfg     config.Config
	metrics *metrics.Metrics
	agg     *stats.Aggregator
	encoder *Encoder
	arch    *Archiver // nil 이면 아카이브 비활성
	depth   func() int
	dir     string // DATA_ROOT/analytics
}

func NewScheduler(cfg config.Config, m *metrics.Metrics, agg *stats.Aggregator, arch *Archiver, depth func() int, dir string) *Scheduler {
	return &Scheduler{
		cfg:     cfg,
		metrics: m,
		agg:     agg,
		encoder: NewEncoder(),
		arch:    arch,
		depth:   depth,
		dir:     dir,
	}
}

// Run 은 ctx 취소까지 주기 캡처 루프를 돈다.
func (s *Scheduler) Run(ctx context.Context) {
	ticker := time.NewTicker(s.cfg.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Capture(ctx)
		}
	}
}

// Capture 는 스냅샷 1회를 기록한다. shutdown 경로가 마지막
// 스냅샷을 남길 때도 직접 호출한다.
func (s *Scheduler) Capture(ctx context.Context) {
	snap := s.agg.Snapshot(s.depth())

	data, err := s.encoder.EncodeSnapshotGZ(snap)
	if err != nil {
		atomic.AddInt64(&s.metrics.SnapshotErrorsTotal, 1)
		log.Error().Err(err).Msg("snapshot: encode failed, skipping interval")
		return
	}

	name := NewArtifactName(s.cfg.InstanceID)
	if err := os.WriteFile(filepath.Join(s.dir, name), data, 0o644); err != nil {
		atomic.AddInt64(&s.metrics.SnapshotErrorsTotal, 1)
		log.Error().Err(err).Str("artifact", name).Msg("snapshot: write failed, skipping interval")
		return
	}
	atomic.AddInt64(&s.metrics.SnapshotsWrittenTotal, 1)

	// 캡처 후 버킷 전진. 이벤트가 전혀 없어도 분/시 카운트가
	// 경과 시간을 따라가게 한다.
	s.agg.Rollover()

	log.Info().
		Str("artifact", name).
		Uint64("total_posts", snap.TotalPosts).
		Int("queue_depth", snap.QueueDepth).
		Msg("snapshot: captured")

	if s.arch != nil {
		s.arch.ProcessBacklog(ctx, archiveBatch)
	}
}
