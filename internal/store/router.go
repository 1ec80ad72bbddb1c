// internal/store/router.go
package store

import (
	"context"
	"os"
	"path/filepath"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"firehose-monitor/internal/config"
	"firehose-monitor/internal/metrics"
	"firehose-monitor/internal/model"

	"github.com/rs/zerolog/log"
)

// Router
// ------------------------------------------------------------
// 이벤트를 작성자별 on-disk 레코드로 라우팅한다.
//
// 이벤트마다 바로 쓰지 않고 작성자별 메모리 버퍼에 row 를 쌓은 뒤,
// 버퍼가 FlushThreshold 에 도달하거나 flush tick 이 오면 묶어서
// append 한다 — 이벤트당 1 write 로 인한 I/O stall 을 피하면서
// 작성자당 메모리 증가를 제한하는 구조.
//
// 락 규칙: buffers map 은 shard 해석 순간에만 잠그고,
// 실제 쓰기는 작성자별 버퍼 락 아래에서 일어난다. 서로 다른
// 작성자끼리는 경합하지 않는다.
//
// 한 작성자의 쓰기 실패는 그 작성자에게만 격리된다: row 는
// 버퍼에 남아 다음 tick 에 재시도되고, 연속 실패가
// PersistMaxRetries 를 넘으면 해당 row 들을 버리고 카운트한다
// (쓸 수 없는 디렉토리 하나가 메모리를 무한히 키우지 못하게).
type Router struct {
	cfg      config.Config
	metrics  *metrics.Metrics
	usersDir string

	mu      sync.Mutex
	buffers map[string]*authorBuf
}

// authorBuf 는 작성자 1명의 대기 중인 row 들과 메타데이터를 담는다.
type authorBuf struct {
	mu sync.Mutex

	dir   string
	posts [][]string
	links [][]string
	media [][]string

	meta     Metadata
	metaDirt bool
	failures int // 연속 flush 실패 횟수
}

func NewRouter(cfg config.Config, m *metrics.Metrics) *Router {
	return &Router{
		cfg:      cfg,
		metrics:  m,
		usersDir: filepath.Join(cfg.DataRoot, UsersDir),
		buffers:  make(map[string]*authorBuf),
	}
}

// Route 는 이벤트 1건을 작성자 버퍼에 반영한다.
// post row 1개, 링크당 link row, 미디어당 media row 를 쌓고
// 메타데이터(last-seen, post count)를 갱신한다.
func (r *Router) Route(ev *model.Event) {
	buf := r.resolve(ev.Author)

	ts := ev.CreatedAt.UTC().Format(time.RFC3339)

	buf.mu.Lock()

	buf.posts = append(buf.posts, []string{
		ts,
		cleanText(ev.Text),
		ev.ReplyParent,
		ev.ReplyRoot,
		strconv.Itoa(len(ev.Links)),
		strconv.Itoa(len(ev.Media)),
		strconv.Itoa(len(ev.Hashtags)),
	})
	for _, link := range ev.Links {
		buf.links = append(buf.links, []string{ts, link, model.DomainOf(link)})
	}
	for _, m := range ev.Media {
		buf.media = append(buf.media, []string{ts, string(m.Kind), m.URL})
	}

	if buf.meta.FirstSeen.IsZero() || ev.CreatedAt.Before(buf.meta.FirstSeen) {
		buf.meta.FirstSeen = ev.CreatedAt
	}
	if ev.CreatedAt.After(buf.meta.LastSeen) {
		buf.meta.LastSeen = ev.CreatedAt
	}
	buf.metaDirt = true

	// threshold flush. tick 을 기다리지 않고 바로 비운다.
	if len(buf.posts) >= r.cfg.FlushThreshold {
		r.flushLocked(buf)
	}

	buf.mu.Unlock()
}

// resolve 는 작성자 shard 를 찾거나 만든다. map 락은 여기서만 잡는다.
func (r *Router) resolve(author string) *authorBuf {
	r.mu.Lock()
	buf, ok := r.buffers[author]
	if !ok {
		dir := filepath.Join(r.usersDir, SanitizeAuthor(author))
		buf = &authorBuf{dir: dir}
		// 이전 세션의 메타데이터가 있으면 post count 를 이어 간다.
		if meta, ok := readMetadata(dir); ok {
			buf.meta = meta
		} else {
			buf.meta = Metadata{Author: author}
		}
		r.buffers[author] = buf
	}
	r.mu.Unlock()
	return buf
}

// Run 은 주기 flush tick 루프를 돈다. ctx 취소 시 복귀하며,
// 남은 버퍼는 호출자가 FlushAll 로 비운다.
func (r *Router) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.FlushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.FlushAll()
		}
	}
}

// FlushAll 은 모든 작성자 버퍼를 flush 한다. shutdown 경로와
// flush tick 이 공유한다.
func (r *Router) FlushAll() {
	r.mu.Lock()
	bufs := make([]*authorBuf, 0, len(r.buffers))
	for _, b := range r.buffers {
		bufs = append(bufs, b)
	}
	r.mu.Unlock()

	for _, b := range bufs {
		b.mu.Lock()
		r.flushLocked(b)
		b.mu.Unlock()
	}
}

// flushLocked 는 버퍼 하나를 디스크에 반영한다. 호출자가 버퍼 락을 쥔다.
//
// 카테고리별로 독립적으로 append 해서, posts 가 성공하고 links 가
// 실패한 경우 links 만 재시도 대상으로 남는다. 메타데이터의
// post count 는 posts.csv append 가 성공한 다음에만 증가한다 —
// "metadata post count == post log row 수" 불변식의 근거.
//
// 재시도는 실패한 카테고리의 row 전체를 다시 append 하므로
// 영속은 at-least-once 다: append 도중 디스크에 일부가 닿은 채
// 실패하면 재시도에서 그 row 들이 중복될 수 있다 (appendCSV 가
// 단일 write 로 창을 줄이지만 0으로 만들지는 못한다).
func (r *Router) flushLocked(b *authorBuf) {
	if len(b.posts) == 0 && len(b.links) == 0 && len(b.media) == 0 && !b.metaDirt {
		return
	}

	var firstErr error

	if err := os.MkdirAll(b.dir, 0o755); err != nil {
		firstErr = err
	} else {
		if len(b.posts) > 0 {
			if err := appendCSV(filepath.Join(b.dir, postsFile), postHeaders, b.posts); err != nil {
				firstErr = err
			} else {
				b.meta.PostCount += int64(len(b.posts))
				b.metaDirt = true
				b.posts = nil
			}
		}
		if len(b.links) > 0 {
			if err := appendCSV(filepath.Join(b.dir, linksFile), linkHeaders, b.links); err != nil && firstErr == nil {
				firstErr = err
			} else if err == nil {
				b.links = nil
			}
		}
		if len(b.media) > 0 {
			if err := appendCSV(filepath.Join(b.dir, mediaFile), mediaHeaders, b.media); err != nil && firstErr == nil {
				firstErr = err
			} else if err == nil {
				b.media = nil
			}
		}
		if b.metaDirt && firstErr == nil {
			if err := writeMetadata(b.dir, b.meta); err != nil {
				firstErr = err
			} else {
				b.metaDirt = false
			}
		}
	}

	if firstErr == nil {
		b.failures = 0
		atomic.AddInt64(&r.metrics.PersistFlushTotal, 1)
		return
	}

	// 실패: row 는 남겨 두고 다음 tick 에 재시도한다. 이 실패가
	// 다른 작성자의 라우팅이나 집계를 막는 일은 없다.
	atomic.AddInt64(&r.metrics.PersistWriteErrorsTotal, 1)
	b.failures++
	log.Warn().Err(firstErr).Str("dir", b.dir).Int("failures", b.failures).
		Msg("store: flush failed, will retry")

	if b.failures > r.cfg.PersistMaxRetries {
		dropped := len(b.posts) + len(b.links) + len(b.media)
		b.posts, b.links, b.media = nil, nil, nil
		b.failures = 0
		atomic.AddInt64(&r.metrics.PersistRowsDroppedTotal, int64(dropped))
		log.Error().Str("dir", b.dir).Int("rows", dropped).
			Msg("store: retry limit exceeded, dropping buffered rows")
	}
}

// PendingRows 는 아직 flush 되지 않은 row 수 합계 (관측용).
func (r *Router) PendingRows() int {
	r.mu.Lock()
	bufs := make([]*authorBuf, 0, len(r.buffers))
	for _, b := range r.buffers {
		bufs = append(bufs, b)
	}
	r.mu.Unlock()

	total := 0
	for _, b := range bufs {
		b.mu.Lock()
		total += len(b.posts) + len(b.links) + len(b.media)
		b.mu.Unlock()
	}
	return total
}
