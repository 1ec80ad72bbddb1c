package worker

import (
	"bytes"

	"firehose-monitor/internal/pool"
	"firehose-monitor/internal/stats"

	json "github.com/goccy/go-json"
	"github.com/klauspost/compress/gzip"
)

// Encoder 는 Analytics Snapshot 을 JSON → gzip 으로 직렬화한다.
// bytes.Buffer / gzip.Writer 는 pool 에서 재사용하고, 결과는
// 호출자 소유의 새 slice 로 복사해 넘긴다 — pool 버퍼를 그대로
// 반환하면 다음 인코딩이 데이터를 덮어쓴다.
type Encoder struct{}

func NewEncoder() *Encoder {
	return &Encoder{}
}

// EncodeSnapshotGZ 는 스냅샷 1개를 압축 JSON 바이트로 변환한다.
func (e *Encoder) EncodeSnapshotGZ(snap stats.Snapshot) ([]byte, error) {
	buf := pool.BufferPool.Get().(*bytes.Buffer)
	buf.Reset()

	gz := pool.GzipPool.Get().(*gzip.Writer)
	gz.Reset(buf)

	enc := json.NewEncoder(gz)
	if err := enc.Encode(snap); err != nil {
		_ = gz.Close()
		pool.GzipPool.Put(gz)
		pool.PutBuffer(buf)
		return nil, err
	}

	if err := gz.Close(); err != nil {
		pool.GzipPool.Put(gz)
		pool.PutBuffer(buf)
		return nil, err
	}
	pool.GzipPool.Put(gz)

	raw := buf.Bytes()
	data := make([]byte, len(raw))
	copy(data, raw)

	pool.PutBuffer(buf)
	return data, nil
}
