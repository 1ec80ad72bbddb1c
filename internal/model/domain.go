// internal/model/domain.go
package model

import (
	"net/url"
	"strings"
)

// DomainOf 는 링크 URL 에서 호스트명을 추출한다.
// 파싱 불가능하거나 호스트가 없는 값은 빈 문자열 — 호출자는
// 빈 값을 집계에서 제외한다.
func DomainOf(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	host := u.Hostname()
	if host == "" {
		return ""
	}
	return strings.ToLower(host)
}
