package metrics

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// Metrics 는 파이프라인 상태를 나타내는 카운터 모음이다.
//
// Prometheus exporter 가 아니라, 운영자가 성능 저하 원인을 분석할 때
// 보는 내부 카운터들이다. 모든 필드는 atomic 으로만 접근하며,
// 스냅샷에도 그대로 포함되어 "프로세스를 죽이지 않고도" 유실 규모를
// 관측할 수 있게 한다.
type Metrics struct {
	// ======================
	// Ingest 레벨 지표
	// ======================

	// EventsIngestedTotal
	// - 검증을 통과해 내부 큐에 정상 진입한 이벤트 수.
	EventsIngestedTotal int64

	// EventsRejectedMalformedTotal
	// - 최소 shape 검증(author / createdAt / body-or-media)에 실패해
	//   버려진 payload 수. 업스트림 불량 데이터는 "예상되는 일"이므로
	//   에러가 아니라 카운터로만 남긴다.
	EventsRejectedMalformedTotal int64

	// EventsDroppedQueueFullTotal
	// - 큐가 가득 차 bounded-wait 이후에도 자리를 얻지 못해 drop 된 수.
	//   drop 정책(newest/oldest)과 무관하게 "버려진 레코드 1건 = +1".
	//   이 값이 계속 증가하면 집계/영속 단계가 수집 속도를 못 따라가는 신호.
	EventsDroppedQueueFullTotal int64

	// ======================
	// 집계 / 처리 지표
	// ======================

	// EventsProcessedTotal
	// - Aggregator.Update 와 Store.Route 를 모두 통과한 이벤트 수.
	EventsProcessedTotal int64

	// ======================
	// Persistence 레벨 지표
	// ======================

	// PersistWriteErrorsTotal
	// - 작성자별 로그 파일 append 또는 metadata 갱신 실패 "시도" 횟수.
	//   실패한 버퍼는 다음 flush tick 에 재시도되므로 retry 가 있으면
	//   같은 버퍼로도 여러 번 증가할 수 있다.
	PersistWriteErrorsTotal int64

	// PersistRowsDroppedTotal
	// - 연속 실패 한도를 초과해 결국 버려진 row 수.
	//   0 이 아니면 특정 작성자 디렉토리에 영구적 쓰기 장애가 있다는 뜻.
	PersistRowsDroppedTotal int64

	// PersistFlushTotal
	// - 실행된 flush 횟수 (threshold flush + tick flush 합산).
	PersistFlushTotal int64

	// ======================
	// Snapshot / Archive 지표
	// ======================

	// SnapshotsWrittenTotal
	// - 로컬 analytics 디렉토리에 정상 기록된 스냅샷 아티팩트 수.
	SnapshotsWrittenTotal int64

	// SnapshotErrorsTotal
	// - 직렬화 또는 아티팩트 쓰기 실패 횟수. 스케줄러는 실패해도
	//   다음 주기로 계속 진행한다 (스냅샷 1회 유실은 허용, 스케줄러
	//   crash 는 불허).
	SnapshotErrorsTotal int64

	// ArchiveUploadErrorsTotal
	// - S3 아카이브 PutObject 실패 "시도" 횟수 (재시도 포함).
	ArchiveUploadErrorsTotal int64

	// ArchiveUploadedTotal
	// - S3 로 업로드 완료된 아티팩트 수 (backlog 재업로드 포함).
	ArchiveUploadedTotal int64
}

func New() *Metrics {
	return &Metrics{}
}

// Counters 는 스냅샷에 포함되는 카운터 복사본이다.
type Counters struct {
	EventsIngested    int64 `json:"events_ingested_total"`
	RejectedMalformed int64 `json:"events_rejected_malformed_total"`
	DroppedQueueFull  int64 `json:"events_dropped_queue_full_total"`
	EventsProcessed   int64 `json:"events_processed_total"`
	PersistErrors     int64 `json:"persist_write_errors_total"`
	PersistRowsDrop   int64 `json:"persist_rows_dropped_total"`
	PersistFlushes    int64 `json:"persist_flush_total"`
	SnapshotsWritten  int64 `json:"snapshots_written_total"`
	SnapshotErrors    int64 `json:"snapshot_errors_total"`
	ArchiveErrors     int64 `json:"archive_upload_errors_total"`
	ArchiveUploaded   int64 `json:"archive_uploaded_total"`
}

// Read 는 현재 카운터 값들의 일관된 복사본을 돌려준다.
func (m *Metrics) Read() Counters {
	return Counters{
		EventsIngested:    atomic.LoadInt64(&m.EventsIngestedTotal),
		RejectedMalformed: atomic.LoadInt64(&m.EventsRejectedMalformedTotal),
		DroppedQueueFull:  atomic.LoadInt64(&m.EventsDroppedQueueFullTotal),
		EventsProcessed:   atomic.LoadInt64(&m.EventsProcessedTotal),
		PersistErrors:     atomic.LoadInt64(&m.PersistWriteErrorsTotal),
		PersistRowsDrop:   atomic.LoadInt64(&m.PersistRowsDroppedTotal),
		PersistFlushes:    atomic.LoadInt64(&m.PersistFlushTotal),
		SnapshotsWritten:  atomic.LoadInt64(&m.SnapshotsWrittenTotal),
		SnapshotErrors:    atomic.LoadInt64(&m.SnapshotErrorsTotal),
		ArchiveErrors:     atomic.LoadInt64(&m.ArchiveUploadErrorsTotal),
		ArchiveUploaded:   atomic.LoadInt64(&m.ArchiveUploadedTotal),
	}
}

func (m *Metrics) String() string {
	c := m.Read()

	var sb strings.Builder
	sb.Grow(256)

	fmt.Fprintf(&sb, "events_ingested_total=%d\n", c.EventsIngested)
	fmt.Fprintf(&sb, "events_rejected_malformed_total=%d\n", c.RejectedMalformed)
	fmt.Fprintf(&sb, "events_dropped_queue_full_total=%d\n", c.DroppedQueueFull)
	fmt.Fprintf(&sb, "events_processed_total=%d\n", c.EventsProcessed)

	fmt.Fprintf(&sb, "persist_write_errors_total=%d\n", c.PersistErrors)
	fmt.Fprintf(&sb, "persist_rows_dropped_total=%d\n", c.PersistRowsDrop)
	fmt.Fprintf(&sb, "persist_flush_total=%d\n", c.PersistFlushes)

	fmt.Fprintf(&sb, "snapshots_written_total=%d\n", c.SnapshotsWritten)
	fmt.Fprintf(&sb, "snapshot_errors_total=%d\n", c.SnapshotErrors)
	fmt.Fprintf(&sb, "archive_upload_errors_total=%d\n", c.ArchiveErrors)
	fmt.Fprintf(&sb, "archive_uploaded_total=%d\n", c.ArchiveUploaded)

	return sb.String()
}
