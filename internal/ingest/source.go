// internal/ingest/source.go
package ingest

import (
	"bufio"
	"bytes"
	"context"
	"io"

	"firehose-monitor/internal/model"

	json "github.com/goccy/go-json"
)

// Source
// ------------------------------------------------------------
// 업스트림 스트림 구독 계층의 추상화. firehose 클라이언트가
// 디코딩한 레코드를 넘겨주는 opaque 한 공급자이며, 전달 보장은
// at-least-once / 작성자 간 순서 없음으로 가정한다 (중복은
// 그냥 이중 카운트된다).
//
// 스트림 종료 시 io.EOF, 취소 시 ctx.Err() 를 반환한다.
type Source interface {
	Next(ctx context.Context) (model.RawPost, error)
}

// ChanSource 는 채널 기반 Source 구현. 테스트와 in-process
// 구독 클라이언트 연결에 쓴다. 채널이 닫히면 io.EOF.
type ChanSource struct {
	C chan model.RawPost
}

func NewChanSource(buf int) *ChanSource {
	return &ChanSource{C: make(chan model.RawPost, buf)}
}

func (s *ChanSource) Next(ctx context.Context) (model.RawPost, error) {
	select {
	case <-ctx.Done():
		return model.RawPost{}, ctx.Err()
	case raw, ok := <-s.C:
		if !ok {
			return model.RawPost{}, io.EOF
		}
		return raw, nil
	}
}

// 이 길이를 넘는 줄은 payload 로 취급하지 않고 통째로 버린다.
const maxLineBytes = 1024 * 1024

// JSONLSource 는 JSONL 스트림(줄당 {"author":..,"record":{..}})을
// 읽는 Source. 구독 클라이언트를 별도 프로세스로 돌리고 파이프로
// 연결하는 구성을 지원한다. 디코딩 불가능한 줄도 일단 RawPost 로
// 넘긴다 — malformed 판정과 카운트는 Ingestor 의 몫이다.
//
// 길이 초과 줄도 같은 취급이다: 개행까지 전부 소비한 뒤 빈
// RawPost 로 흘려보내므로, 불량 줄 하나가 스트림의 나머지를
// 막는 일은 없다 (bufio.Scanner 는 ErrTooLong 에서 영구히
// 멈추기 때문에 쓰지 않는다).
type JSONLSource struct {
	r *bufio.Reader
}

func NewJSONLSource(r io.Reader) *JSONLSource {
	return &JSONLSource{r: bufio.NewReaderSize(r, 64*1024)}
}

func (s *JSONLSource) Next(ctx context.Context) (model.RawPost, error) {
	if err := ctx.Err(); err != nil {
		return model.RawPost{}, err
	}

	line, ok, err := s.readLine()
	if err != nil {
		return model.RawPost{}, err
	}
	if !ok {
		// 길이 초과 줄. Ingestor 가 거부 카운트를 올리고 다음 줄로 간다.
		return model.RawPost{}, nil
	}

	var parsed struct {
		Author string         `json:"author"`
		Record map[string]any `json:"record"`
	}
	// 깨진 줄은 빈 RawPost 로 흘려보낸다. Ingestor 가 거부 카운트를 올린다.
	_ = json.Unmarshal(line, &parsed)

	return model.RawPost{Author: parsed.Author, Record: parsed.Record}, nil
}

// readLine 은 다음 줄 하나를 읽는다. maxLineBytes 를 넘는 줄은
// 메모리에 쌓지 않고 개행까지 소비한 뒤 ok=false 로 돌려준다.
// 스트림이 끝나면 io.EOF.
func (s *JSONLSource) readLine() (line []byte, ok bool, err error) {
	oversize := false

	for {
		frag, rerr := s.r.ReadSlice('\n')

		if !oversize {
			line = append(line, frag...)
			if len(line) > maxLineBytes {
				oversize = true
				line = nil
			}
		}

		switch rerr {
		case bufio.ErrBufferFull:
			continue
		case nil:
		case io.EOF:
			if len(frag) == 0 && len(line) == 0 && !oversize {
				return nil, false, io.EOF
			}
			// 개행 없이 끝난 마지막 줄은 그대로 처리한다.
		default:
			return nil, false, rerr
		}

		if oversize {
			return nil, false, nil
		}
		return bytes.TrimRight(line, "\r\n"), true, nil
	}
}
