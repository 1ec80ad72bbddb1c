// internal/stats/snapshot.go
package stats

import (
	"sort"
	"time"

	"firehose-monitor/internal/metrics"
)

// RecentPost 는 표시용 최근 게시물 요약이다.
type RecentPost struct {
	SeenAt time.Time `json:"seen_at"`
	Author string    `json:"author"`
	Text   string    `json:"text"`
}

// ResourceSample 은 캡처 시점의 프로세스 리소스 사용량이다.
// 샘플링 실패 시 스냅샷에서 생략된다.
type ResourceSample struct {
	RSSBytes   uint64  `json:"rss_bytes"`
	CPUPercent float64 `json:"cpu_percent"`
}

// ProcessingStats 는 최근 이벤트 처리 시간(집계+영속 라우팅)의
// 요약이다. 샘플이 없으면 스냅샷에서 생략된다.
type ProcessingStats struct {
	AvgMS   float64 `json:"avg_ms"`
	MinMS   float64 `json:"min_ms"`
	MaxMS   float64 `json:"max_ms"`
	Samples int     `json:"samples"`
}

// Snapshot
// ------------------------------------------------------------
// Running Statistics 의 point-in-time 복사본.
// 생성 이후 불변이며, analytics 아티팩트 / admin /stats 응답 /
// 터미널 sink 가 공유한다.
type Snapshot struct {
	CapturedAt     time.Time `json:"captured_at"`
	ElapsedSeconds float64   `json:"elapsed_seconds"`
	QueueDepth     int       `json:"queue_depth"`

	TotalPosts    uint64 `json:"total_posts"`
	UniqueAuthors int    `json:"unique_authors"`

	PostsThisMinute uint64    `json:"posts_this_minute"`
	PostsThisHour   uint64    `json:"posts_this_hour"`
	MinuteStart     time.Time `json:"minute_start"`
	HourStart       time.Time `json:"hour_start"`
	MinuteHistory   []uint64  `json:"minute_history"` // 닫힌 분 버킷, 오래된 것부터

	PostsWithLinks uint64 `json:"posts_with_links"`
	PostsWithMedia uint64 `json:"posts_with_media"`
	Replies        uint64 `json:"replies"`

	Hashtags   map[string]uint64 `json:"hashtags"`
	Domains    map[string]uint64 `json:"domains"`
	MediaKinds map[string]uint64 `json:"media_kinds"`

	Recent     []RecentPost `json:"recent,omitempty"`
	TopAuthors []CountEntry `json:"top_authors,omitempty"` // 최다 게시 작성자 상위 5명

	Counters   metrics.Counters `json:"counters"`
	Resources  *ResourceSample  `json:"resources,omitempty"`
	Processing *ProcessingStats `json:"processing,omitempty"`
}

// CountEntry 는 TopCounts 정렬 결과 항목이다.
type CountEntry struct {
	Key   string `json:"key"`
	Count uint64 `json:"count"`
}

// TopCounts 는 카운트 내림차순 상위 n개를 반환한다.
// 동률은 키 오름차순 — 표시 결과가 호출마다 흔들리지 않게 한다.
func TopCounts(m map[string]uint64, n int) []CountEntry {
	entries := make([]CountEntry, 0, len(m))
	for k, v := range m {
		entries = append(entries, CountEntry{Key: k, Count: v})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].Count != entries[j].Count {
			return entries[i].Count > entries[j].Count
		}
		return entries[i].Key < entries[j].Key
	})
	if len(entries) > n {
		entries = entries[:n]
	}
	return entries
}
