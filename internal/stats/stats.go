// internal/stats/stats.go
package stats

import (
	"strings"
	"sync"
	"time"

	"firehose-monitor/internal/metrics"
	"firehose-monitor/internal/model"
)

// 최근 게시물 링 크기 (터미널 sink 표시용).
const recentSize = 5

// 분 단위 rate 히스토리 보관 길이 (최근 60분).
const minuteHistorySize = 60

// 스냅샷에 싣는 최다 게시 작성자 수.
const topAuthorsSize = 5

// 처리 시간 샘플 링 크기 (최근 100건).
const procSampleSize = 100

// Aggregator
// ------------------------------------------------------------
// Running Statistics 의 유일한 소유자.
//
// 모든 변경은 Update 를 통해서만 일어나고, 읽기는 Snapshot 이
// 복사본을 만들어 반환한다. 내부 map/slice 는 절대 밖으로
// 새어 나가지 않는다.
//
// 시간 버킷은 "처리 시점 wall clock" 기준으로 lazy 하게 전진한다.
// 이벤트가 들고 오는 createdAt 은 업스트림 선언값이라 신뢰할 수
// 없으므로 rate 계산에는 쓰지 않는다. 트래픽이 없는 구간에서도
// 버킷이 전진하도록 Snapshot Scheduler 가 Rollover 를 호출한다.
type Aggregator struct {
	mu sync.Mutex

	now     func() time.Time // 테스트에서 교체 가능
	started time.Time
	metrics *metrics.Metrics

	totalPosts uint64
	authors    map[string]uint64 // 작성자별 누적 게시물 수

	minuteCount   uint64
	hourCount     uint64
	minuteStart   time.Time // 분 경계 (Truncate(minute))
	hourStart     time.Time // 시 경계 (Truncate(hour))
	minuteHistory []uint64  // 닫힌 분 버킷들의 카운트, 오래된 것부터

	postsWithLinks uint64
	postsWithMedia uint64
	replies        uint64

	hashtags   map[string]uint64
	domains    map[string]uint64
	mediaKinds map[string]uint64

	recent []RecentPost // 최신 먼저

	procTimes []time.Duration // 이벤트 처리 시간 샘플 링
	procIdx   int             // 링이 가득 찬 뒤의 덮어쓰기 위치
}

func NewAggregator(m *metrics.Metrics) *Aggregator {
	return newAggregator(m, time.Now)
}

func newAggregator(m *metrics.Metrics, now func() time.Time) *Aggregator {
	start := now()
	return &Aggregator{
		now:         now,
		started:     start,
		metrics:     m,
		authors:     make(map[string]uint64),
		minuteStart: start.Truncate(time.Minute),
		hourStart:   start.Truncate(time.Hour),
		hashtags:    make(map[string]uint64),
		domains:     make(map[string]uint64),
		mediaKinds:  make(map[string]uint64),
	}
}

// Update 는 이벤트 1건을 통계에 반영한다. Running Statistics 의
// 유일한 mutator. 이벤트는 읽기만 하고 보관하지 않는다
// (recent 표시용 텍스트는 복사해서 가진다).
func (a *Aggregator) Update(ev *model.Event) {
	a.mu.Lock()
	defer a.mu.Unlock()

	now := a.now()
	a.roll(now)

	a.totalPosts++
	a.minuteCount++
	a.hourCount++
	a.authors[ev.Author]++

	if len(ev.Links) > 0 {
		a.postsWithLinks++
	}
	if len(ev.Media) > 0 {
		a.postsWithMedia++
	}
	if ev.IsReply() {
		a.replies++
	}

	// 해시태그는 case-fold 후 카운트. 같은 레코드에 같은 태그가
	// 두 번 있으면 두 번 센다 — 추적 대상은 사용량이지 distinct 여부가 아니다.
	for _, tag := range ev.Hashtags {
		a.hashtags[strings.ToLower(tag)]++
	}
	for _, link := range ev.Links {
		if d := model.DomainOf(link); d != "" {
			a.domains[d]++
		}
	}
	for _, m := range ev.Media {
		a.mediaKinds[string(m.Kind)]++
	}

	a.pushRecent(RecentPost{
		SeenAt: now,
		Author: ev.Author,
		Text:   ev.Text,
	})
}

// ObserveProcessing 은 이벤트 1건의 집계+영속 처리 시간을 기록한다.
// 최근 procSampleSize 건만 링에 유지한다.
func (a *Aggregator) ObserveProcessing(d time.Duration) {
	a.mu.Lock()
	if len(a.procTimes) < procSampleSize {
		a.procTimes = append(a.procTimes, d)
	} else {
		a.procTimes[a.procIdx] = d
		a.procIdx++
		if a.procIdx == procSampleSize {
			a.procIdx = 0
		}
	}
	a.mu.Unlock()
}

// Rollover 는 이벤트 도착 없이도 시간 버킷을 전진시킨다.
// Snapshot Scheduler 가 주기마다 호출해 저트래픽 구간에서도
// 분/시 카운트가 경과 시간을 반영하게 한다.
func (a *Aggregator) Rollover() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.roll(a.now())
}

// roll 은 분/시 버킷 경계를 now 까지 전진시킨다. 호출자가 락을 쥔다.
// 경계를 넘을 때만 0으로 리셋되고, 버킷 중간에서는 절대 리셋되지 않는다.
func (a *Aggregator) roll(now time.Time) {
	// 오래 멈춰 있던 경우(60분 초과) 분 단위 루프를 돌지 않고 fast-forward.
	if now.Sub(a.minuteStart) > minuteHistorySize*time.Minute {
		a.minuteHistory = a.minuteHistory[:0]
		a.minuteCount = 0
		a.minuteStart = now.Truncate(time.Minute)
	} else {
		for next := a.minuteStart.Add(time.Minute); !next.After(now); next = a.minuteStart.Add(time.Minute) {
			a.minuteHistory = append(a.minuteHistory, a.minuteCount)
			if len(a.minuteHistory) > minuteHistorySize {
				a.minuteHistory = a.minuteHistory[1:]
			}
			a.minuteCount = 0
			a.minuteStart = next
		}
	}

	if hs := now.Truncate(time.Hour); hs.After(a.hourStart) {
		a.hourCount = 0
		a.hourStart = hs
	}
}

func (a *Aggregator) pushRecent(p RecentPost) {
	a.recent = append([]RecentPost{p}, a.recent...)
	if len(a.recent) > recentSize {
		a.recent = a.recent[:recentSize]
	}
}

// Snapshot 은 현재 상태의 불변 복사본을 만든다.
//
// 락 구간은 "복사"만 담당한다 (copy-then-release). 카운터 읽기와
// 리소스 샘플링(gopsutil)은 락 해제 후에 수행해 Update 경로를
// 막지 않는다. queueDepth 는 캡처 시점 내부 큐 길이로, 호출자가
// 넘겨준다.
func (a *Aggregator) Snapshot(queueDepth int) Snapshot {
	a.mu.Lock()

	now := a.now()
	a.roll(now)

	snap := Snapshot{
		CapturedAt:     now,
		ElapsedSeconds: now.Sub(a.started).Seconds(),
		QueueDepth:     queueDepth,

		TotalPosts:    a.totalPosts,
		UniqueAuthors: len(a.authors),

		PostsThisMinute: a.minuteCount,
		PostsThisHour:   a.hourCount,
		MinuteStart:     a.minuteStart,
		HourStart:       a.hourStart,
		MinuteHistory:   append([]uint64(nil), a.minuteHistory...),

		PostsWithLinks: a.postsWithLinks,
		PostsWithMedia: a.postsWithMedia,
		Replies:        a.replies,

		Hashtags:   copyCounts(a.hashtags),
		Domains:    copyCounts(a.domains),
		MediaKinds: copyCounts(a.mediaKinds),

		Recent:     append([]RecentPost(nil), a.recent...),
		TopAuthors: TopCounts(a.authors, topAuthorsSize),
		Processing: a.processingLocked(),
	}

	a.mu.Unlock()

	snap.Counters = a.metrics.Read()
	snap.Resources = sampleResources()
	return snap
}

// processingLocked 는 처리 시간 링의 avg/min/max 를 계산한다.
// 호출자가 락을 쥔다. 샘플이 없으면 nil.
func (a *Aggregator) processingLocked() *ProcessingStats {
	if len(a.procTimes) == 0 {
		return nil
	}

	min, max := a.procTimes[0], a.procTimes[0]
	var sum time.Duration
	for _, d := range a.procTimes {
		sum += d
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}

	n := len(a.procTimes)
	return &ProcessingStats{
		AvgMS:   sum.Seconds() * 1000 / float64(n),
		MinMS:   min.Seconds() * 1000,
		MaxMS:   max.Seconds() * 1000,
		Samples: n,
	}
}

func copyCounts(src map[string]uint64) map[string]uint64 {
	dst := make(map[string]uint64, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}
