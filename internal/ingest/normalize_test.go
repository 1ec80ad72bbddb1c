package ingest

import (
	"testing"
	"time"

	"firehose-monitor/internal/model"

	"github.com/stretchr/testify/require"
)

func validRecord() map[string]any {
	return map[string]any{
		"createdAt": "2026-08-23T10:30:00Z",
		"text":      "check https://x.test #Foo and #bar_baz",
		"facets": []any{
			map[string]any{
				"features": []any{
					map[string]any{"$type": "app.bsky.richtext.facet#link", "uri": "https://x.test/page"},
					map[string]any{"$type": "app.bsky.richtext.facet#mention", "did": "did:plc:z"},
				},
			},
		},
		"embed": map[string]any{
			"$type": "app.bsky.embed.images",
			"images": []any{
				map[string]any{"mime": "image/jpeg", "url": "https://cdn.test/1.jpg"},
				map[string]any{"mime": "video/mp4", "url": "https://cdn.test/2.mp4"},
			},
		},
		"reply": map[string]any{
			"parent": map[string]any{"uri": "at://parent"},
			"root":   map[string]any{"uri": "at://root"},
		},
	}
}

func TestNormalizeExtractsEverything(t *testing.T) {
	var ev model.Event
	err := normalize(model.RawPost{Author: "did:plc:a", Record: validRecord()}, &ev)
	require.NoError(t, err)

	require.Equal(t, "did:plc:a", ev.Author)
	require.Equal(t, time.Date(2026, 8, 23, 10, 30, 0, 0, time.UTC), ev.CreatedAt.UTC())
	require.Equal(t, []string{"Foo", "bar_baz"}, ev.Hashtags, "case preserved at normalize time")
	require.Equal(t, []string{"https://x.test/page"}, ev.Links, "mention feature ignored")
	require.Equal(t, []model.Media{
		{Kind: model.MediaImage, URL: "https://cdn.test/1.jpg"},
		{Kind: model.MediaVideo, URL: "https://cdn.test/2.mp4"},
	}, ev.Media)
	require.Equal(t, "at://parent", ev.ReplyParent)
	require.Equal(t, "at://root", ev.ReplyRoot)
	require.True(t, ev.IsReply())
}

func TestNormalizeVideoEmbed(t *testing.T) {
	var ev model.Event
	rec := map[string]any{
		"createdAt": "2026-08-23T10:30:00Z",
		"embed": map[string]any{
			"$type": "app.bsky.embed.video",
			"url":   "https://cdn.test/v.mp4",
		},
	}
	// 본문이 비어도 미디어가 있으면 유효하다.
	err := normalize(model.RawPost{Author: "a", Record: rec}, &ev)
	require.NoError(t, err)
	require.Equal(t, []model.Media{{Kind: model.MediaVideo, URL: "https://cdn.test/v.mp4"}}, ev.Media)
	require.Empty(t, ev.Hashtags)
	require.False(t, ev.IsReply())
}

func TestNormalizeRejections(t *testing.T) {
	cases := []struct {
		name string
		raw  model.RawPost
		want error
	}{
		{"no author", model.RawPost{Author: "  ", Record: validRecord()}, errNoAuthor},
		{"nil record", model.RawPost{Author: "a"}, errNoTimestamp},
		{"bad timestamp", model.RawPost{Author: "a", Record: map[string]any{
			"createdAt": "yesterday", "text": "hi",
		}}, errNoTimestamp},
		{"missing timestamp", model.RawPost{Author: "a", Record: map[string]any{
			"text": "hi",
		}}, errNoTimestamp},
		{"empty post", model.RawPost{Author: "a", Record: map[string]any{
			"createdAt": "2026-08-23T10:30:00Z", "text": "   ",
		}}, errEmptyPost},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			var ev model.Event
			require.ErrorIs(t, normalize(tc.raw, &ev), tc.want)
		})
	}
}

func TestExtractHashtags(t *testing.T) {
	require.Equal(t, []string{"go", "Go2", "x_y"}, extractHashtags("love #go, #Go2 and #x_y!"))
	require.Nil(t, extractHashtags("no tags here"))
}
