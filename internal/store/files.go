// internal/store/files.go
package store

import (
	"bytes"
	"encoding/csv"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	json "github.com/goccy/go-json"
)

// 데이터 루트 하위 디렉토리 이름.
const (
	UsersDir     = "users"
	AnalyticsDir = "analytics"
)

// 작성자별 로그 파일명. 모두 append 전용 CSV 이며 metadata 만
// 통째로 덮어쓴다.
const (
	postsFile = "posts.csv"
	linksFile = "links.csv"
	mediaFile = "media.csv"
	metaFile  = "metadata.json"
)

var (
	postHeaders  = []string{"timestamp", "text", "reply_parent", "reply_root", "link_count", "media_count", "hashtag_count"}
	linkHeaders  = []string{"timestamp", "url", "domain"}
	mediaHeaders = []string{"timestamp", "kind", "url"}
)

// 파일시스템에서 문제를 일으키는 문자들. DID 의 ':' 포함.
var unsafePathRe = regexp.MustCompile(`[<>:"/\\|?*]`)

// 연속 공백/개행 축약용.
var spaceRe = regexp.MustCompile(`\s+`)

// SanitizeAuthor 는 작성자 식별자를 디렉토리명으로 쓸 수 있게 치환한다.
func SanitizeAuthor(author string) string {
	return unsafePathRe.ReplaceAllString(author, "_")
}

// cleanText 는 CSV row 에 넣을 본문을 한 줄로 정리한다.
// 따옴표 이스케이프는 encoding/csv 가 처리하므로 여기서는
// 공백 정규화만 한다.
func cleanText(s string) string {
	return spaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// Metadata 는 작성자 1명의 요약 레코드다. flush 마다 통째로
// 다시 쓴다. PostCount 는 posts.csv 에 실제로 append 된 row 수와
// 항상 일치해야 한다.
type Metadata struct {
	Author    string    `json:"author"`
	FirstSeen time.Time `json:"first_seen"`
	LastSeen  time.Time `json:"last_seen"`
	PostCount int64     `json:"post_count"`
}

func readMetadata(dir string) (Metadata, bool) {
	data, err := os.ReadFile(filepath.Join(dir, metaFile))
	if err != nil {
		return Metadata{}, false
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return Metadata{}, false
	}
	return meta, true
}

func writeMetadata(dir string, meta Metadata) error {
	data, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(dir, metaFile), data, 0o644)
}

// appendCSV 는 rows 를 path 에 append 한다. 파일이 새로 만들어지는
// 경우에만 헤더를 먼저 쓴다.
//
// row 전체를 메모리에서 인코딩한 뒤 단일 write 로 내보낸다.
// 영속 보장은 at-least-once: write 가 실패하면 호출자가 row 를
// 그대로 들고 재시도하므로, 부분 write 후 실패한 희귀한 경우에는
// 같은 row 가 중복 기록될 수 있다 (row 유실보다 중복을 택한다).
func appendCSV(path string, headers []string, rows [][]string) error {
	info, statErr := os.Stat(path)
	isNew := statErr != nil || info.Size() == 0

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if isNew {
		if err := w.Write(headers); err != nil {
			return err
		}
	}
	for _, row := range rows {
		if err := w.Write(row); err != nil {
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return err
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	if _, err := f.Write(buf.Bytes()); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
