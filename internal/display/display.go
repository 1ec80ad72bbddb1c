// internal/display/display.go
package display

import (
	"context"
	"fmt"
	"io"
	"time"

	"firehose-monitor/internal/stats"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

// Sink
// ------------------------------------------------------------
// 터미널 표시 collaborator 의 stub. 자기 주기(DisplayRefresh)로
// Aggregator 의 스냅샷을 pull 해 요약 한 토막을 그린다.
// core 상태는 절대 변경하지 않는다 — 읽기 경로는 snapshot 뿐이다.
type Sink struct {
	agg      *stats.Aggregator
	depth    func() int
	interval time.Duration
	out      io.Writer
}

func NewSink(agg *stats.Aggregator, depth func() int, interval time.Duration, out io.Writer) *Sink {
	return &Sink{
		agg:      agg,
		depth:    depth,
		interval: interval,
		out:      out,
	}
}

// Run 은 ctx 취소까지 갱신 루프를 돈다.
func (s *Sink) Run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.Render(s.agg.Snapshot(s.depth()))
		}
	}
}

var (
	header = color.New(color.FgHiBlue, color.Bold)
	label  = color.New(color.FgCyan)
	warn   = color.New(color.FgYellow)
)

// Render 는 스냅샷 하나를 요약해 출력한다.
func (s *Sink) Render(snap stats.Snapshot) {
	uptime := time.Duration(snap.ElapsedSeconds * float64(time.Second)).Truncate(time.Second)

	header.Fprintf(s.out, "── firehose monitor · up %s ──\n", uptime)

	label.Fprint(s.out, "posts: ")
	fmt.Fprintf(s.out, "%s total · %s/min · %s/hr · queue %d\n",
		humanize.Comma(int64(snap.TotalPosts)),
		humanize.Comma(int64(snap.PostsThisMinute)),
		humanize.Comma(int64(snap.PostsThisHour)),
		snap.QueueDepth,
	)

	label.Fprint(s.out, "authors: ")
	fmt.Fprintf(s.out, "%s unique · %s replies · %s with links · %s with media\n",
		humanize.Comma(int64(snap.UniqueAuthors)),
		humanize.Comma(int64(snap.Replies)),
		humanize.Comma(int64(snap.PostsWithLinks)),
		humanize.Comma(int64(snap.PostsWithMedia)),
	)

	if top := stats.TopCounts(snap.Hashtags, 3); len(top) > 0 {
		label.Fprint(s.out, "hashtags: ")
		for i, e := range top {
			if i > 0 {
				fmt.Fprint(s.out, " · ")
			}
			fmt.Fprintf(s.out, "#%s %d", e.Key, e.Count)
		}
		fmt.Fprintln(s.out)
	}

	if top := stats.TopCounts(snap.Domains, 3); len(top) > 0 {
		label.Fprint(s.out, "domains: ")
		for i, e := range top {
			if i > 0 {
				fmt.Fprint(s.out, " · ")
			}
			fmt.Fprintf(s.out, "%s %d", e.Key, e.Count)
		}
		fmt.Fprintln(s.out)
	}

	if len(snap.TopAuthors) > 0 {
		label.Fprint(s.out, "active: ")
		for i, e := range snap.TopAuthors {
			if i > 0 {
				fmt.Fprint(s.out, " · ")
			}
			fmt.Fprintf(s.out, "%s %d", e.Key, e.Count)
		}
		fmt.Fprintln(s.out)
	}

	if dropped := snap.Counters.DroppedQueueFull + snap.Counters.PersistRowsDrop; dropped > 0 {
		warn.Fprintf(s.out, "degraded: %s dropped (queue %s · persist rows %s) · %s malformed\n",
			humanize.Comma(dropped),
			humanize.Comma(snap.Counters.DroppedQueueFull),
			humanize.Comma(snap.Counters.PersistRowsDrop),
			humanize.Comma(snap.Counters.RejectedMalformed),
		)
	}

	if snap.Resources != nil {
		label.Fprint(s.out, "process: ")
		fmt.Fprintf(s.out, "rss %s · cpu %.1f%%",
			humanize.IBytes(snap.Resources.RSSBytes),
			snap.Resources.CPUPercent,
		)
		if snap.Processing != nil {
			fmt.Fprintf(s.out, " · proc avg %.2fms (n=%d)", snap.Processing.AvgMS, snap.Processing.Samples)
		}
		fmt.Fprintln(s.out)
	}

	for _, p := range snap.Recent {
		fmt.Fprintf(s.out, "  %s %-20.20s %s\n", p.SeenAt.Format("15:04:05"), p.Author, truncate(p.Text, 60))
	}
}

// truncate 는 rune 경계에서 자른다. 바이트 단위로 자르면
// 멀티바이트 문자가 깨진 채 터미널로 나간다.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
