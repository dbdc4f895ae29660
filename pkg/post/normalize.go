package post

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/url"
	"path"
	"strconv"
	"strings"
	"time"
)

// errNoMatch tells the table walker to try the next extractor for a field
var errNoMatch = errors.New("no match")

// errNoFileAccess marks a file object whose URL is withheld by the remote
var errNoFileAccess = errors.New("file url withheld")

// extractor reads one canonical field from one raw key.
// Extract returns errNoMatch when the value has a shape it does not handle.
type extractor[T any] struct {
	Key     string
	Extract func(v interface{}) (T, error)
}

// extract walks table in order; the first extractor that does not return
// errNoMatch decides the field. found is false when no extractor matched.
func extract[T any](raw map[string]interface{}, table []extractor[T]) (val T, key string, found bool, err error) {
	for _, ex := range table {
		v, ok := raw[ex.Key]
		if !ok {
			continue
		}
		val, err = ex.Extract(v)
		if errors.Is(err, errNoMatch) {
			continue
		}
		return val, ex.Key, true, err
	}
	var zero T
	return zero, "", false, nil
}

// TagCategories is the order in which categorized tag lists are flattened
var TagCategories = []string{
	"general", "species", "character", "copyright", "artist", "invalid", "lore", "meta",
}

// LegacyTimeLayout is the textual date format used by older APIs
const LegacyTimeLayout = "Mon Jan 02 15:04:05 -0700 2006"

var timeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999Z0700",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05",
	LegacyTimeLayout,
}

var (
	idTable = []extractor[int64]{
		{Key: "id", Extract: toInt64},
	}

	fileURLTable = []extractor[string]{
		{Key: "file_url", Extract: nonEmptyString},
		{Key: "file", Extract: nestedFileURL},
	}

	tagTable = []extractor[[]string]{
		{Key: "tag_string", Extract: flatTags},
		{Key: "tags", Extract: flatTags},
		{Key: "tags", Extract: categorizedTags},
	}

	scoreTable = []extractor[int64]{
		{Key: "score", Extract: scoreValue},
	}

	favoritesTable = []extractor[int64]{
		{Key: "fav_count", Extract: toInt64},
	}

	ratingTable = []extractor[Rating]{
		{Key: "rating", Extract: ratingValue},
	}

	createdAtTable = []extractor[time.Time]{
		{Key: "created_at", Extract: timestamp},
	}
)

// Normalize converts one raw API post into a Post. Failures are returned as
// *NormalizationError and never as a zero-valued Post.
func Normalize(raw map[string]interface{}) (Post, error) {
	var p Post

	id, _, found, err := extract(raw, idTable)
	if !found || err != nil || id <= 0 {
		return Post{}, &NormalizationError{Kind: KindInvalidID, Field: "id", Err: err}
	}
	p.ID = id

	fail := func(kind ErrorKind, field string, err error) (Post, error) {
		return Post{}, &NormalizationError{Kind: kind, ID: id, Field: field, Err: err}
	}

	fileURL, key, found, err := extract(raw, fileURLTable)
	switch {
	case errors.Is(err, errNoFileAccess):
		return fail(KindNoFileAccess, key, nil)
	case !found || err != nil:
		return fail(KindMissingFileURL, "file_url", err)
	}
	ext := Extension(fileURL)
	if ext == "" {
		return fail(KindNoExtension, key, nil)
	}
	p.FileURL = fileURL
	p.Extension = ext

	tags, key, found, err := extract(raw, tagTable)
	if !found || err != nil {
		return fail(KindNoTags, "tags", err)
	}
	p.Tags = tags

	score, key, _, err := extract(raw, scoreTable)
	if err != nil {
		return fail(KindInvalidScore, key, err)
	}
	p.Score = score

	favs, key, _, err := extract(raw, favoritesTable)
	if err != nil {
		return fail(KindInvalidFavorites, key, err)
	}
	p.Favorites = favs

	rating, key, found, err := extract(raw, ratingTable)
	switch {
	case !found:
		return fail(KindMissingRating, "rating", nil)
	case err != nil:
		return fail(KindInvalidRating, key, err)
	}
	p.Rating = rating

	created, key, found, err := extract(raw, createdAtTable)
	if !found || err != nil {
		if key == "" {
			key = "created_at"
		}
		return fail(KindUnparseableTimestamp, key, err)
	}
	p.CreatedAt = created

	return p, nil
}

// Extension returns the lower-cased text after the last "." of the URL's
// final path segment, or "" when there is none.
func Extension(fileURL string) string {
	p := fileURL
	if u, err := url.Parse(fileURL); err == nil {
		p = u.Path
	}
	base := path.Base(p)
	i := strings.LastIndexByte(base, '.')
	if i < 0 || i == len(base)-1 {
		return ""
	}
	return strings.ToLower(base[i+1:])
}

// integral reports whether f is a whole number that converts to int64 exactly
func integral(f float64) bool {
	return f == math.Trunc(f) && f >= math.MinInt64 && f < math.MaxInt64
}

func toInt64(v interface{}) (int64, error) {
	switch n := v.(type) {
	case json.Number:
		if i, err := n.Int64(); err == nil {
			return i, nil
		}
		f, err := n.Float64()
		if err != nil || !integral(f) {
			return 0, fmt.Errorf("not an integer: %s", n)
		}
		return int64(f), nil
	case float64:
		if !integral(n) {
			return 0, fmt.Errorf("not an integer: %v", n)
		}
		return int64(n), nil
	case int:
		return int64(n), nil
	case int64:
		return n, nil
	case string:
		i, err := strconv.ParseInt(strings.TrimSpace(n), 10, 64)
		if err != nil {
			return 0, fmt.Errorf("not an integer: %q", n)
		}
		return i, nil
	case nil:
		return 0, nil
	default:
		return 0, fmt.Errorf("unexpected %T", v)
	}
}

func nonEmptyString(v interface{}) (string, error) {
	s, ok := v.(string)
	if !ok || s == "" {
		return "", errNoMatch
	}
	return s, nil
}

// nestedFileURL reads {"file": {"url": ...}}. A null or empty url means the
// remote hides the file from this account.
func nestedFileURL(v interface{}) (string, error) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return "", errNoMatch
	}
	u, ok := obj["url"]
	if !ok {
		return "", errNoMatch
	}
	s, _ := u.(string)
	if s == "" {
		return "", errNoFileAccess
	}
	return s, nil
}

func flatTags(v interface{}) ([]string, error) {
	s, ok := v.(string)
	if !ok {
		return nil, errNoMatch
	}
	return strings.Fields(s), nil
}

func categorizedTags(v interface{}) ([]string, error) {
	obj, ok := v.(map[string]interface{})
	if !ok {
		return nil, errNoMatch
	}
	tags := []string{}
	for _, category := range TagCategories {
		list, ok := obj[category].([]interface{})
		if !ok {
			continue
		}
		for _, item := range list {
			if s, ok := item.(string); ok && s != "" {
				tags = append(tags, s)
			}
		}
	}
	return tags, nil
}

func scoreValue(v interface{}) (int64, error) {
	if obj, ok := v.(map[string]interface{}); ok {
		total, ok := obj["total"]
		if !ok {
			return 0, fmt.Errorf("score object without total")
		}
		return toInt64(total)
	}
	return toInt64(v)
}

func ratingValue(v interface{}) (Rating, error) {
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("unexpected %T", v)
	}
	return ParseRating(s)
}

func timestamp(v interface{}) (time.Time, error) {
	switch t := v.(type) {
	case string:
		return ParseTimestamp(t)
	case json.Number, float64, int64:
		secs, err := toInt64(t)
		if err != nil {
			return time.Time{}, err
		}
		return time.Unix(secs, 0).UTC(), nil
	case map[string]interface{}:
		// {"json_class": "Time", "s": 1700000000, "n": 0}
		if s, ok := t["s"]; ok {
			secs, err := toInt64(s)
			if err != nil {
				return time.Time{}, err
			}
			return time.Unix(secs, 0).UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unexpected timestamp %T", v)
}

// ParseTimestamp accepts ISO-8601 variants and then the legacy layout
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}
