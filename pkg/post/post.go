// Package post turns raw API post objects into canonical Post values.
package post

import (
	"fmt"
	"strings"
	"time"
)

// Rating is the content rating of a post
type Rating string

const (
	RatingGeneral      Rating = "g"
	RatingSensitive    Rating = "s"
	RatingQuestionable Rating = "q"
	RatingExplicit     Rating = "e"
)

// ParseRating maps the rating spellings used by booru APIs onto a Rating.
// Only the first letter is significant, so "safe" and "s" are equal.
func ParseRating(s string) (Rating, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "", fmt.Errorf("empty rating")
	}
	switch Rating(s[:1]) {
	case RatingGeneral:
		return RatingGeneral, nil
	case RatingSensitive:
		return RatingSensitive, nil
	case RatingQuestionable:
		return RatingQuestionable, nil
	case RatingExplicit:
		return RatingExplicit, nil
	default:
		return "", fmt.Errorf("unknown rating %q", s)
	}
}

// Post is a normalized post. ID is positive and FileURL/Extension are non-empty.
type Post struct {
	ID        int64
	FileURL   string
	Extension string
	Tags      []string
	Score     int64
	Favorites int64
	Rating    Rating
	CreatedAt time.Time
}

// ErrorKind classifies why a raw post could not be normalized
type ErrorKind string

const (
	KindInvalidID            ErrorKind = "invalid_id"
	KindMissingFileURL       ErrorKind = "missing_file_url"
	KindNoFileAccess         ErrorKind = "no_file_access"
	KindNoExtension          ErrorKind = "no_extension"
	KindNoTags               ErrorKind = "no_tags"
	KindInvalidScore         ErrorKind = "invalid_score"
	KindInvalidFavorites     ErrorKind = "invalid_favorites"
	KindMissingRating        ErrorKind = "missing_rating"
	KindInvalidRating        ErrorKind = "invalid_rating"
	KindUnparseableTimestamp ErrorKind = "unparseable_timestamp"
)

// NormalizationError reports a post that was skipped. ID is set whenever the
// id itself was readable, so the crawl cursor can still move past the post.
type NormalizationError struct {
	Kind  ErrorKind
	ID    int64
	Field string
	Err   error
}

func (e *NormalizationError) Error() string {
	msg := fmt.Sprintf("post %d: %s", e.ID, e.Kind)
	if e.Field != "" {
		msg += " (" + e.Field + ")"
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *NormalizationError) Unwrap() error {
	return e.Err
}
