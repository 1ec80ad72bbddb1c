// internal/worker/file_util.go
package worker

import (
	"fmt"
	"sync/atomic"
)

// 스냅샷 아티팩트 파일명 규칙:
//
//	<unix>_<instance>_<counter>.json.gz
//
// 예:
//
//	1764721594_monitor1_000042.json.gz
//
// 문자열 정렬 = 캡처 시각 정렬이므로, 아카이브 backlog 에서
// 가장 오래된 것부터 처리할 때 그대로 쓴다. timestamp +
// instance + counter 조합이라 연속 스냅샷끼리 덮어쓸 일이 없다.
var globalCounter uint64

// NextCounter 는 파일명용 순차 번호를 원자적으로 생성한다.
// 1e6 에서 wrap 하지만 timestamp 조합 덕에 충돌하지 않는다.
func NextCounter() uint64 {
	return atomic.AddUint64(&globalCounter, 1) % 1_000_000
}

// NewArtifactName 은 새 스냅샷 아티팩트 파일명을 만든다.
func NewArtifactName(instanceID string) string {
	return fmt.Sprintf("%d_%s_%06d.json.gz", Unix(), instanceID, NextCounter())
}

// BuildObjectKey 는 아카이브 객체 키를 만든다.
//
//	<prefix>/dt=<YYYY-MM-DD>/hr=<HH>/<filename>
//
// 파티션 스캔을 쓰는 쿼리 엔진(Athena 류)의 표준 구조.
func BuildObjectKey(prefix, filename string) string {
	return fmt.Sprintf("%s/dt=%s/hr=%s/%s", prefix, DT(), HR(), filename)
}
