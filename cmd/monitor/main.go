package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"firehose-monitor/internal/config"
	"firehose-monitor/internal/display"
	"firehose-monitor/internal/ingest"
	"firehose-monitor/internal/logger"
	"firehose-monitor/internal/metrics"
	"firehose-monitor/internal/server"
	"firehose-monitor/internal/stats"
	"firehose-monitor/internal/store"
	"firehose-monitor/internal/worker"

	"github.com/rs/zerolog/log"
)

func main() {

	// ====================================================================
	// Config / Logger / Metrics
	// ====================================================================
	//
	// 설정 오류와 데이터 루트 접근 불가만이 유일한 fatal 경로다.
	// 이후의 모든 오류(불량 payload, 큐 포화, 쓰기 실패, 스냅샷
	// 실패)는 카운터로 집계되고 프로세스는 계속 돈다.
	// ====================================================================
	cfg := config.Load()
	logger.Init(cfg)
	m := metrics.New()

	usersDir := filepath.Join(cfg.DataRoot, store.UsersDir)
	analyticsDir := filepath.Join(cfg.DataRoot, store.AnalyticsDir)
	for _, dir := range []string{usersDir, analyticsDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			log.Fatal().Err(err).Str("dir", dir).Msg("data root unavailable")
		}
	}

	// ====================================================================
	// 파이프라인 조립
	// ====================================================================
	//
	//  Source → Ingestor → EventCh → worker(Aggregator + Router) → 디스크
	//  Scheduler ─(타이머)→ Aggregator.Snapshot → analytics 아티팩트
	//  Sink / admin HTTP ─(pull)→ Aggregator.Snapshot
	// ====================================================================
	agg := stats.NewAggregator(m)
	router := store.NewRouter(cfg, m)

	mgr := worker.NewManager(cfg, m, agg, router)
	mgr.Start()

	var arch *worker.Archiver
	if cfg.ArchiveEnabled() {
		a, err := worker.NewArchiver(cfg, m, analyticsDir)
		if err != nil {
			log.Fatal().Err(err).Msg("archiver init failed")
		}
		arch = a
	}

	bgCtx, bgCancel := context.WithCancel(context.Background())

	sched := worker.NewScheduler(cfg, m, agg, arch, mgr.Depth, analyticsDir)
	go sched.Run(bgCtx)

	sink := display.NewSink(agg, mgr.Depth, cfg.DisplayRefresh, os.Stdout)
	go sink.Run(bgCtx)

	// ====================================================================
	// admin HTTP (/health /metrics /stats) — 읽기 전용
	// ====================================================================
	srv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      server.NewRouter(m, agg, mgr.Depth),
		ReadTimeout:  8 * time.Second,
		WriteTimeout: 8 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("admin http terminated")
		}
	}()

	// ====================================================================
	// 수집 시작
	// ====================================================================
	//
	// 스트림 구독 클라이언트는 외부 collaborator 다. 기본 구성은
	// stdin 으로 들어오는 JSONL (줄당 {"author":..,"record":{..}})
	// 을 읽는다 — 구독 프로세스와 파이프로 연결하는 형태.
	// ====================================================================
	ingestCtx, ingestCancel := context.WithCancel(context.Background())
	ing := ingest.New(cfg, m, ingest.NewJSONLSource(os.Stdin), mgr.EventCh)

	ingestDone := make(chan struct{})
	go func() {
		ing.Run(ingestCtx)
		close(ingestDone)
	}()

	log.Info().
		Str("data_root", cfg.DataRoot).
		Str("http", cfg.HTTPAddr).
		Bool("archive", cfg.ArchiveEnabled()).
		Msg("monitor started")

	// ====================================================================
	// 종료 대기: 신호 또는 소스 EOF
	// ====================================================================
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)

	select {
	case sig := <-sigCh:
		log.Info().Str("signal", sig.String()).Msg("shutdown signal received")
	case <-ingestDone:
		log.Info().Msg("stream source ended")
	}

	// ====================================================================
	// Graceful shutdown
	// ====================================================================
	//
	//  1) admin HTTP 중단 (새 읽기 요청 차단)
	//  2) 수집 중단 → 수집 루프 복귀 대기
	//  3) 큐 drain + 작성자 버퍼 전부 flush (Manager.Shutdown)
	//  4) 마지막 스냅샷
	//
	// 버퍼에 있던 데이터가 flush 없이 사라지는 일은 없어야 한다.
	// ====================================================================
	shCtx, shCancel := context.WithTimeout(context.Background(), 10*time.Second)
	if err := srv.Shutdown(shCtx); err != nil {
		log.Error().Err(err).Msg("admin http shutdown")
	}
	shCancel()

	ingestCancel()
	<-ingestDone

	mgr.Shutdown()
	sched.Capture(context.Background())
	bgCancel()

	log.Info().Msg("shutdown complete")
}
