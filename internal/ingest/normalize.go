// internal/ingest/normalize.go
package ingest

import (
	"errors"
	"regexp"
	"strings"
	"time"

	"firehose-monitor/internal/model"
)

// 최소 shape 검증 실패 사유. 호출자는 종류를 구분하지 않고
// 거부 카운터만 올리지만, debug 로그에는 사유가 남는다.
var (
	errNoAuthor    = errors.New("missing author")
	errNoTimestamp = errors.New("missing or invalid createdAt")
	errEmptyPost   = errors.New("no text and no media")
)

var hashtagRe = regexp.MustCompile(`#(\w+)`)

// normalize 는 느슨한 raw payload 를 검증하고 Event 로 승격한다.
// 실패하면 ev 는 쓰지 않은 것으로 간주해야 한다.
//
// 요구 필드: author, createdAt(RFC3339), 본문 또는 미디어.
// 그 외 필드는 있으면 추출하고 없으면 조용히 넘어간다 —
// 업스트림 payload 의 결손은 예외가 아니라 일상이다.
func normalize(raw model.RawPost, ev *model.Event) error {
	if strings.TrimSpace(raw.Author) == "" {
		return errNoAuthor
	}
	if raw.Record == nil {
		return errNoTimestamp
	}

	createdRaw, _ := raw.Record["createdAt"].(string)
	createdAt, err := time.Parse(time.RFC3339, createdRaw)
	if err != nil {
		return errNoTimestamp
	}

	text, _ := raw.Record["text"].(string)
	media := extractMedia(raw.Record)
	if strings.TrimSpace(text) == "" && len(media) == 0 {
		return errEmptyPost
	}

	ev.Author = raw.Author
	ev.CreatedAt = createdAt
	ev.Text = text
	ev.Media = media
	ev.Links = extractLinks(raw.Record)
	ev.Hashtags = extractHashtags(text)
	ev.ReplyParent, ev.ReplyRoot = extractReply(raw.Record)

	return nil
}

// extractHashtags 는 본문에서 "#tag" 의 tag 부분을 추출한다.
// 케이스는 보존한다 — fold 는 집계 단계 책임.
func extractHashtags(text string) []string {
	matches := hashtagRe.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	tags := make([]string, 0, len(matches))
	for _, m := range matches {
		tags = append(tags, m[1])
	}
	return tags
}

// extractLinks 는 richtext facet 에서 link feature 의 uri 를 모은다.
// 구조: facets[].features[].{$type, uri}
func extractLinks(record map[string]any) []string {
	facets, _ := record["facets"].([]any)
	var links []string
	for _, f := range facets {
		facet, _ := f.(map[string]any)
		features, _ := facet["features"].([]any)
		for _, ft := range features {
			feature, _ := ft.(map[string]any)
			if feature["$type"] != "app.bsky.richtext.facet#link" {
				continue
			}
			if uri, _ := feature["uri"].(string); uri != "" {
				links = append(links, uri)
			}
		}
	}
	return links
}

// extractMedia 는 embed 블록에서 미디어 디스크립터를 모은다.
// images embed 는 mime 기준으로 kind 를 정하고, video embed 는
// 항목 1개짜리 video 로 취급한다.
func extractMedia(record map[string]any) []model.Media {
	embed, _ := record["embed"].(map[string]any)
	if embed == nil {
		return nil
	}

	switch embed["$type"] {
	case "app.bsky.embed.images":
		images, _ := embed["images"].([]any)
		media := make([]model.Media, 0, len(images))
		for _, im := range images {
			img, _ := im.(map[string]any)
			if img == nil {
				continue
			}
			mime, _ := img["mime"].(string)
			url, _ := img["url"].(string)
			media = append(media, model.Media{Kind: kindFromMime(mime), URL: url})
		}
		if len(media) == 0 {
			return nil
		}
		return media

	case "app.bsky.embed.video":
		url, _ := embed["url"].(string)
		return []model.Media{{Kind: model.MediaVideo, URL: url}}
	}

	return nil
}

func kindFromMime(mime string) model.MediaKind {
	if strings.HasPrefix(mime, "video/") {
		return model.MediaVideo
	}
	return model.MediaImage
}

// extractReply 는 reply.parent.uri / reply.root.uri 를 읽는다.
func extractReply(record map[string]any) (parent, root string) {
	reply, _ := record["reply"].(map[string]any)
	if reply == nil {
		return "", ""
	}
	if p, _ := reply["parent"].(map[string]any); p != nil {
		parent, _ = p["uri"].(string)
	}
	if r, _ := reply["root"].(map[string]any); r != nil {
		root, _ = r["uri"].(string)
	}
	return parent, root
}
