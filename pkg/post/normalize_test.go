package post

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// decode mirrors how the API client hands posts to Normalize
func decode(t *testing.T, s string) map[string]interface{} {
	t.Helper()
	dec := json.NewDecoder(bytes.NewReader([]byte(s)))
	dec.UseNumber()
	var m map[string]interface{}
	require.NoError(t, dec.Decode(&m))
	return m
}

func TestNormalizeDanbooruPost(t *testing.T) {
	raw := decode(t, `{
		"id": 7034512,
		"created_at": "2024-01-02T03:04:05.123-05:00",
		"score": 31,
		"fav_count": 12,
		"rating": "s",
		"tag_string": "1girl sky  cloud",
		"file_url": "https://cdn.example/data/ab/cd/abcd.PNG"
	}`)

	p, err := Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, int64(7034512), p.ID)
	assert.Equal(t, "png", p.Extension)
	assert.Equal(t, []string{"1girl", "sky", "cloud"}, p.Tags)
	assert.Equal(t, int64(31), p.Score)
	assert.Equal(t, int64(12), p.Favorites)
	assert.Equal(t, RatingSensitive, p.Rating)
	assert.True(t, p.CreatedAt.Equal(time.Date(2024, 1, 2, 8, 4, 5, 123000000, time.UTC)))
}

func TestNormalizeGelbooruPost(t *testing.T) {
	raw := decode(t, `{
		"id": "9001",
		"created_at": "Sat Oct 12 18:42:13 -0500 2024",
		"score": 5,
		"rating": "general",
		"tags": "landscape mountain",
		"file_url": "https://img.example/images/aa/bb/x.jpeg?123"
	}`)

	p, err := Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, int64(9001), p.ID)
	assert.Equal(t, "jpeg", p.Extension)
	assert.Equal(t, RatingGeneral, p.Rating)
	assert.Equal(t, int64(0), p.Favorites)
	assert.True(t, p.CreatedAt.Equal(time.Date(2024, 10, 12, 23, 42, 13, 0, time.UTC)))
}

func TestNormalizeNestedFileAndCategorizedTags(t *testing.T) {
	raw := decode(t, `{
		"id": 12,
		"created_at": "2023-05-01T00:00:00Z",
		"score": {"up": 10, "down": -2, "total": 8},
		"fav_count": 3,
		"rating": "q",
		"file": {"url": "https://static.example/data/12.webm", "ext": "webm"},
		"tags": {
			"meta": ["animated"],
			"artist": ["someone"],
			"general": ["fox", "snow"],
			"species": ["canine"]
		}
	}`)

	p, err := Normalize(raw)
	require.NoError(t, err)

	assert.Equal(t, "https://static.example/data/12.webm", p.FileURL)
	assert.Equal(t, "webm", p.Extension)
	assert.Equal(t, int64(8), p.Score)
	assert.Equal(t, []string{"fox", "snow", "canine", "someone", "animated"}, p.Tags)
}

func TestTagEncodingsProduceSameTags(t *testing.T) {
	flat := decode(t, `{"id": 1, "created_at": "2023-05-01T00:00:00Z", "rating": "s",
		"file_url": "https://x/1.png", "tag_string": "fox snow canine"}`)
	categorized := decode(t, `{"id": 1, "created_at": "2023-05-01T00:00:00Z", "rating": "s",
		"file_url": "https://x/1.png", "tags": {"general": ["fox", "snow"], "species": ["canine"]}}`)

	a, err := Normalize(flat)
	require.NoError(t, err)
	b, err := Normalize(categorized)
	require.NoError(t, err)

	assert.ElementsMatch(t, a.Tags, b.Tags)
}

func TestNormalizeErrors(t *testing.T) {
	tests := []struct {
		name   string
		raw    string
		kind   ErrorKind
		wantID int64
	}{
		{"missing id", `{"rating": "s"}`, KindInvalidID, 0},
		{"non numeric id", `{"id": "abc"}`, KindInvalidID, 0},
		{"zero id", `{"id": 0}`, KindInvalidID, 0},
		{"id beyond int64", `{"id": 9.3e18}`, KindInvalidID, 0},
		{"no file url", `{"id": 5, "tag_string": "a"}`, KindMissingFileURL, 5},
		{"withheld file", `{"id": 5, "file": {"url": null}}`, KindNoFileAccess, 5},
		{"empty nested url", `{"id": 5, "file": {"url": ""}}`, KindNoFileAccess, 5},
		{"no extension", `{"id": 5, "file_url": "https://x/data/abcd"}`, KindNoExtension, 5},
		{"no tags", `{"id": 5, "file_url": "https://x/5.png"}`, KindNoTags, 5},
		{"bad score", `{"id": 5, "file_url": "https://x/5.png", "tag_string": "a", "score": "lots"}`, KindInvalidScore, 5},
		{"score beyond int64", `{"id": 5, "file_url": "https://x/5.png", "tag_string": "a", "score": -9.3e18}`, KindInvalidScore, 5},
		{"missing rating", `{"id": 5, "file_url": "https://x/5.png", "tag_string": "a"}`, KindMissingRating, 5},
		{"bad rating", `{"id": 5, "file_url": "https://x/5.png", "tag_string": "a", "rating": "x"}`, KindInvalidRating, 5},
		{"missing timestamp", `{"id": 5, "file_url": "https://x/5.png", "tag_string": "a", "rating": "s"}`, KindUnparseableTimestamp, 5},
		{"bad timestamp", `{"id": 5, "file_url": "https://x/5.png", "tag_string": "a", "rating": "s", "created_at": "yesterday"}`, KindUnparseableTimestamp, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := Normalize(decode(t, tt.raw))
			require.Error(t, err)
			assert.Equal(t, Post{}, p)

			var nerr *NormalizationError
			require.True(t, errors.As(err, &nerr))
			assert.Equal(t, tt.kind, nerr.Kind)
			assert.Equal(t, tt.wantID, nerr.ID)
		})
	}
}

func TestNormalizeDefaults(t *testing.T) {
	raw := decode(t, `{"id": 5, "file_url": "https://x/5.gif", "tag_string": "",
		"rating": "e", "created_at": 1700000000}`)

	p, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, int64(0), p.Score)
	assert.Equal(t, int64(0), p.Favorites)
	assert.Empty(t, p.Tags)
	assert.Equal(t, time.Unix(1700000000, 0).UTC(), p.CreatedAt)
}

func TestFileURLPrefersTopLevel(t *testing.T) {
	raw := decode(t, `{"id": 5, "file_url": "https://x/top.png", "file": {"url": "https://x/nested.jpg"},
		"tag_string": "a", "rating": "s", "created_at": "2023-05-01T00:00:00Z"}`)

	p, err := Normalize(raw)
	require.NoError(t, err)
	assert.Equal(t, "https://x/top.png", p.FileURL)
}

func TestExtension(t *testing.T) {
	assert.Equal(t, "png", Extension("https://x/a/b.c/file.PNG"))
	assert.Equal(t, "jpg", Extension("https://x/file.tar.jpg?x=1.gif"))
	assert.Equal(t, "", Extension("https://x/dir.d/file"))
	assert.Equal(t, "", Extension("https://x/file."))
}

func TestParseRating(t *testing.T) {
	for in, want := range map[string]Rating{
		"s": RatingSensitive, "safe": RatingSensitive, "Sensitive": RatingSensitive,
		"g": RatingGeneral, "general": RatingGeneral,
		"questionable": RatingQuestionable, "E": RatingExplicit,
	} {
		got, err := ParseRating(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}

	_, err := ParseRating("")
	assert.Error(t, err)
	_, err = ParseRating("unknown")
	assert.Error(t, err)
}
