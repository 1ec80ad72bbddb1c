// internal/logger/log.go
package logger

import (
	"io"
	"os"
	"strings"

	"firehose-monitor/internal/config"

	stdlog "log"

	"github.com/rs/zerolog"
	zlog "github.com/rs/zerolog/log"
)

// Init
//
// 시작 시 한 번 호출되는 로거 초기화.
//
//   - LOG_PRETTY=true  → 콘솔 포맷 (로컬 개발용)
//   - LOG_PRETTY=false → JSON 포맷 (수집 시스템용)
//
// 모든 로그에 service / instance 필드가 붙고,
// LOG_SAMPLE_N > 1 이면 Debug/Info 는 N개 중 1개만 기록한다.
// Warn/Error 는 샘플링하지 않는다 — 장애 로그는 하나도 버리지 않는다.
func Init(cfg config.Config) {
	level := zerolog.InfoLevel
	if l, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(cfg.LogLevel))); err == nil {
		level = l
	}
	zerolog.SetGlobalLevel(level)

	var w io.Writer
	if cfg.LogPretty {
		w = zerolog.ConsoleWriter{
			Out:        os.Stderr,
			TimeFormat: "15:04:05",
		}
	} else {
		w = os.Stderr
	}

	base := zerolog.New(w).
		Level(level).
		With().
		Timestamp().
		Str("service", cfg.ServiceName).
		Str("instance", cfg.InstanceID).
		Logger()

	logger := base
	if cfg.LogSampleN > 1 {
		logger = base.Sample(&zerolog.LevelSampler{
			DebugSampler: &zerolog.BasicSampler{N: cfg.LogSampleN},
			InfoSampler:  &zerolog.BasicSampler{N: cfg.LogSampleN},
		})
	}

	zlog.Logger = logger

	// 표준 log 패키지를 쓰는 코드도 같은 출력 경로를 타게 한다.
	stdlog.SetFlags(0)
	stdlog.SetOutput(zlog.Logger)
}
