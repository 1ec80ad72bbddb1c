// internal/config/config.go
package config

import (
	"crypto/rand"
	"encoding/hex"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DropPolicy 는 큐 포화 시 어떤 레코드를 버릴지 결정한다.
// 업스트림 문서에 정책이 명시되어 있지 않으므로 추측 대신
// 설정으로 노출한다.
type DropPolicy string

const (
	// DropNewest: bounded-wait 이후에도 자리가 없으면 "들어오려던" 레코드를 버린다.
	DropNewest DropPolicy = "newest"
	// DropOldest: 큐에서 가장 오래 대기 중인 레코드를 꺼내 버리고 새 레코드를 넣는다.
	DropOldest DropPolicy = "oldest"
)

// Config
//
// 프로세스 실행에 필요한 모든 설정 값을 보관하는 구조체.
// 시작 시점에 Load() 로 한 번 초기화되고 이후 변경되지 않는다.
// 필수 값 누락이나 형식 오류는 즉시 종료(fail-fast)한다 —
// 런타임 중에 설정 문제를 겪지 않기 위한 보호 전략.
type Config struct {

	// ---------------------------
	// 데이터 루트 / 식별자
	// ---------------------------

	DataRoot    string // 사용자 로그 + analytics 아티팩트가 저장될 루트 (필수)
	ServiceName string // 로그 공통 필드용 서비스명
	InstanceID  string // 프로세스 고유 ID (hostname 기반, 실패 시 랜덤 hex)

	// ---------------------------
	// ingest 큐 / drop 정책
	// ---------------------------

	QueueSize   int           // 내부 이벤트 큐 용량
	EnqueueWait time.Duration // 큐 full 시 자리 대기 상한 (이 시간 이후 drop)
	DropPolicy  DropPolicy    // newest | oldest
	Workers     int           // 집계/영속 처리 goroutine 수

	// ---------------------------
	// 영속(flush) 파라미터
	// ---------------------------

	FlushInterval     time.Duration // 작성자 버퍼 주기 flush 간격
	FlushThreshold    int           // 버퍼 row 수가 이 값에 도달하면 즉시 flush
	PersistMaxRetries int           // 연속 실패 허용 횟수 (초과 시 해당 버퍼 row drop)

	// ---------------------------
	// 스냅샷 / 표시
	// ---------------------------

	SnapshotInterval time.Duration // analytics 스냅샷 주기 (기본 수십 초)
	DisplayRefresh   time.Duration // 터미널 sink 갱신 주기 (core 주기와 독립)

	// ---------------------------
	// admin HTTP
	// ---------------------------

	HTTPAddr string // /health /metrics /stats bind 주소

	// ---------------------------
	// 로깅
	// ---------------------------

	LogLevel   string // zerolog 레벨 문자열
	LogPretty  bool   // true 면 콘솔 포맷, false 면 JSON
	LogSampleN uint32 // Debug/Info 샘플링 비율 (N개 중 1개, 0/1 = 샘플링 없음)

	// ---------------------------
	// 스냅샷 아카이브 (선택)
	// ---------------------------
	// ArchiveBucket 이 비어 있으면 아카이브 전체가 비활성화된다.
	// SDK retry 는 0 으로 고정하고 재시도는 애플리케이션 레벨
	// (S3AppRetries)에서만 수행한다 — 이중 재시도로 인한 지연 예측
	// 불가를 피하기 위함.

	AWSRegion     string
	ArchiveBucket string
	ArchivePrefix string
	S3Timeout     time.Duration // PutObject 시도당 timeout
	S3AppRetries  int
}

// Load 는 .env / .env.dev 가 있으면 먼저 읽은 뒤(로컬 개발 편의)
// 환경 변수 기반으로 Config 를 초기화한다.
func Load() Config {
	for _, f := range []string{".env", ".env.dev"} {
		if _, err := os.Stat(f); err == nil {
			_ = godotenv.Overload(f)
		}
	}

	// uint32 변환 전에 검증한다. 음수가 wrap 되면 거대한 샘플링
	// 분모가 되어 로그가 사실상 전부 사라진다.
	logSampleN := defInt("LOG_SAMPLE_N", 0)
	if logSampleN < 0 {
		log.Fatalf("invalid LOG_SAMPLE_N=%d: must be >= 0", logSampleN)
	}

	cfg := Config{
		DataRoot:    must("DATA_ROOT"),
		ServiceName: def("SERVICE_NAME", "firehose-monitor"),
		InstanceID:  fallbackInstanceID(),

		QueueSize:   defInt("QUEUE_SIZE", 4096),
		EnqueueWait: defDur("ENQUEUE_WAIT", 50*time.Millisecond),
		DropPolicy:  dropPolicy(def("QUEUE_DROP_POLICY", string(DropNewest))),
		Workers:     defInt("WORKERS", 1),

		FlushInterval:     defDur("FLUSH_INTERVAL", 2*time.Second),
		FlushThreshold:    defInt("FLUSH_THRESHOLD", 64),
		PersistMaxRetries: defInt("PERSIST_MAX_RETRIES", 5),

		SnapshotInterval: defDur("SNAPSHOT_INTERVAL", 30*time.Second),
		DisplayRefresh:   defDur("DISPLAY_REFRESH", 1*time.Second),

		HTTPAddr: def("HTTP_ADDR", ":8080"),

		LogLevel:   def("LOG_LEVEL", "info"),
		LogPretty:  defBool("LOG_PRETTY", false),
		LogSampleN: uint32(logSampleN),

		AWSRegion:     os.Getenv("AWS_REGION"),
		ArchiveBucket: os.Getenv("ARCHIVE_BUCKET"),
		ArchivePrefix: def("ARCHIVE_PREFIX", "analytics"),
		S3Timeout:     defDur("S3_TIMEOUT", 5*time.Second),
		S3AppRetries:  defInt("S3_APP_RETRIES", 3),
	}

	if cfg.QueueSize <= 0 {
		log.Fatalf("invalid QUEUE_SIZE=%d: must be positive", cfg.QueueSize)
	}
	if cfg.Workers <= 0 {
		log.Fatalf("invalid WORKERS=%d: must be positive", cfg.Workers)
	}
	if cfg.ArchiveBucket != "" && cfg.AWSRegion == "" {
		log.Fatalf("ARCHIVE_BUCKET is set but AWS_REGION is empty")
	}

	return cfg
}

// ArchiveEnabled 는 스냅샷 S3 아카이브 활성 여부.
func (c Config) ArchiveEnabled() bool {
	return c.ArchiveBucket != ""
}

func dropPolicy(v string) DropPolicy {
	switch DropPolicy(strings.ToLower(strings.TrimSpace(v))) {
	case DropNewest:
		return DropNewest
	case DropOldest:
		return DropOldest
	default:
		log.Fatalf("invalid QUEUE_DROP_POLICY=%q: want newest|oldest", v)
		return DropNewest // unreachable
	}
}

// must / def / defInt / defDur / defBool
//
// 공통 패턴. 필수 값은 없으면 즉시 종료, 튜닝 값은 기본값으로 대체.
// 형식이 잘못된 경우는 둘 다 즉시 종료한다.
func must(key string) string {
	v := os.Getenv(key)
	if v == "" {
		log.Fatalf("missing required env: %s", key)
	}
	return v
}

func def(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Fatalf("invalid int env %s=%q: %v", key, v, err)
	}
	return n
}

func defDur(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Fatalf("invalid duration env %s=%q: %v", key, v, err)
	}
	return d
}

func defBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Fatalf("invalid bool env %s=%q: %v", key, v, err)
	}
	return b
}

// fallbackInstanceID
//
// 이 모니터 프로세스를 식별하는 고유 값.
//   - 기본: hostname
//   - fallback: 12자리 랜덤 hex
func fallbackInstanceID() string {
	if h, err := os.Hostname(); err == nil && h != "" {
		return h
	}
	var b [6]byte
	if _, err := rand.Read(b[:]); err == nil {
		return hex.EncodeToString(b[:])
	}
	return strconv.FormatInt(time.Now().UnixNano(), 10)
}
