// internal/worker/timecache.go
package worker

import (
	"sync/atomic"
	"time"
)

// 1초 ticker 로 현재 UTC epoch seconds 와 파티션 문자열을 캐싱한다.
// 아티팩트 파일명과 아카이브 키 생성이 초당 수천 번 time.Now 를
// 부르지 않게 하기 위한 장치. 초 단위 정밀도면 충분하다.

var (
	unixSec atomic.Int64

	dtVal atomic.Value // "YYYY-MM-DD" (UTC)
	hrVal atomic.Value // "HH" (UTC)
)

func init() {
	refresh()

	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()

		for range ticker.C {
			refresh()
		}
	}()
}

func refresh() {
	now := time.Now().UTC()
	unixSec.Store(now.Unix())
	dtVal.Store(now.Format("2006-01-02"))
	hrVal.Store(now.Format("15"))
}

// Unix returns current UTC epoch seconds (cached, 1-second precision).
func Unix() int64 {
	return unixSec.Load()
}

// DT returns "YYYY-MM-DD" (UTC).
func DT() string {
	return dtVal.Load().(string)
}

// HR returns "HH" (UTC).
func HR() string {
	return hrVal.Load().(string)
}
