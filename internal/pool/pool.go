package pool

import (
	"bytes"
	"sync"

	"firehose-monitor/internal/model"

	"github.com/klauspost/compress/gzip"
)

// ---------------------------------------------------------------
// Pool 구성 목적
//
// firehose 는 초당 수천 건의 게시물 이벤트를 흘려보내므로
// 이벤트 객체 생성과 스냅샷 직렬화 버퍼 할당이 매우 빈번하다.
// 아래 Pool 들은 GC 부담을 줄이기 위한 재사용 장치다.
// ---------------------------------------------------------------

var (
	// EventPool:
	//   - model.Event 재사용.
	//   - 이벤트는 집계 → 영속 라우팅까지 마친 뒤 worker 루프에서 반환된다.
	EventPool = sync.Pool{
		New: func() any { return new(model.Event) },
	}

	// BufferPool:
	//   - 스냅샷 gzip 결과를 담는 임시 버퍼.
	//   - 초기 용량 64KB (해시태그/도메인 맵이 커져도 대부분 수용).
	BufferPool = sync.Pool{
		New: func() any {
			return bytes.NewBuffer(make([]byte, 0, 64*1024))
		},
	}

	// GzipPool:
	//   - gzip.Writer 재사용. BestSpeed — 스냅샷 주기가 짧아
	//     압축률보다 쓰기 지연이 중요하다.
	GzipPool = sync.Pool{
		New: func() any {
			w, _ := gzip.NewWriterLevel(nil, gzip.BestSpeed)
			return w
		},
	}
)

// 이보다 큰 버퍼는 Pool 에 돌려주지 않고 GC 에 맡긴다.
const MaxBufferCap = 1 * 1024 * 1024 // 1MB

// ResetEvent 는 Event 를 재사용 가능하도록 zeroing 한다.
// slice 필드도 함께 끊어 이전 이벤트의 데이터가 새 이벤트로
// 새어 나가지 않게 한다.
func ResetEvent(e *model.Event) {
	*e = model.Event{}
}

// PutEvent 는 처리 완료된 이벤트를 풀에 반환한다.
// 반환 이후 호출자는 이벤트를 다시 참조해서는 안 된다.
func PutEvent(e *model.Event) {
	ResetEvent(e)
	EventPool.Put(e)
}

// PutBuffer 는 스냅샷 인코딩 버퍼를 반환한다.
// 초대형 스냅샷 결과는 풀로 돌리지 않는다.
func PutBuffer(buf *bytes.Buffer) {
	if buf.Cap() <= MaxBufferCap {
		buf.Reset()
		BufferPool.Put(buf)
	}
}
