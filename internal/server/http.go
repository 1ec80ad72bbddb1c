// internal/server/http.go
package server

import (
	"net/http"

	"firehose-monitor/internal/metrics"
	"firehose-monitor/internal/stats"

	"github.com/gin-gonic/gin"
	json "github.com/goccy/go-json"
)

// NewRouter 는 읽기 전용 admin 표면을 만든다.
//
//   - /health  : liveness 체크용 단순 응답
//   - /metrics : 운영 카운터 plain-text 덤프
//   - /stats   : 현재 Running Statistics 스냅샷 (JSON)
//
// 세 endpoint 모두 core 상태를 변경하지 않는다. /stats 는
// Aggregator 의 snapshot 경로를 그대로 타므로 호출이 Update 를
// 오래 막는 일도 없다.
func NewRouter(m *metrics.Metrics, agg *stats.Aggregator, depth func() int) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	r := gin.New()
	r.Use(gin.Recovery())

	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "ok")
	})

	r.GET("/metrics", func(c *gin.Context) {
		c.String(http.StatusOK, m.String())
	})

	r.GET("/stats", func(c *gin.Context) {
		snap := agg.Snapshot(depth())
		body, err := json.Marshal(snap)
		if err != nil {
			c.Status(http.StatusInternalServerError)
			return
		}
		c.Data(http.StatusOK, "application/json; charset=utf-8", body)
	})

	return r
}
