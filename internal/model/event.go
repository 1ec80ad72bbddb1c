// internal/model/event.go
package model

import "time"

// MediaKind
// ------------------------------------------------------------
// 게시물에 첨부된 미디어 종류. 업스트림 embed 의 mime 을
// ingest 단계에서 image/video 로 정규화한다.
type MediaKind string

const (
	MediaImage MediaKind = "image"
	MediaVideo MediaKind = "video"
)

// Media 는 게시물에 첨부된 미디어 디스크립터 하나를 나타낸다.
type Media struct {
	Kind MediaKind `json:"kind"` // image / video
	URL  string    `json:"url"`  // blob ref 또는 CDN URL
}

// Event
// ------------------------------------------------------------
// 스트림에서 관측된 게시물 1건의 정규화 표현.
// Ingestor 가 raw payload 검증 후 생성하며, 생성 이후에는
// 수정하지 않는다 (Aggregator / Store 는 읽기만 한다).
//
// Hashtags 는 원문 케이스 그대로 보관한다.
// 집계 시점에 case-fold 하므로 여기서 미리 소문자화하지 않는다.
type Event struct {
	Author    string    `json:"author"`     // 작성자 식별자 (DID 등 opaque string)
	CreatedAt time.Time `json:"created_at"` // 게시물 생성 시각 (업스트림 선언값)
	Text      string    `json:"text"`       // 본문
	Links     []string  `json:"links"`      // 본문에서 추출된 하이퍼링크
	Hashtags  []string  `json:"hashtags"`   // "#tag" 의 tag 부분
	Media     []Media   `json:"media"`      // 첨부 미디어 목록

	// reply/repost 연결 정보. 비어 있으면 일반 게시물.
	ReplyParent string `json:"reply_parent,omitempty"`
	ReplyRoot   string `json:"reply_root,omitempty"`
}

// IsReply 는 이 이벤트가 답글인지 여부.
func (e *Event) IsReply() bool {
	return e.ReplyParent != "" || e.ReplyRoot != ""
}

// RawPost
// ------------------------------------------------------------
// 업스트림 스트림 소스가 전달하는 디코딩된 원본 payload.
// Record 는 느슨한 구조(map)이므로 Ingestor 의 검증을 통과해야만
// Event 로 승격된다. 검증 실패 payload 는 버려진다.
type RawPost struct {
	Author string         // 작성자 식별자 (op path 에서 분리되어 전달됨)
	Record map[string]any // 디코딩된 게시물 레코드 본문
}
