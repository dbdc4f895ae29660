package filter

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"boorudl/pkg/post"
)

// Section is a named search policy. It is read-only once a crawl starts.
type Section struct {
	Name         string
	Tags         []string
	Days         int
	Ratings      []post.Rating
	MinScore     int64
	MinFaves     int64
	IgnoreTags   []string
	AllowedTypes []string
	// Endpoints names the endpoints to crawl; empty means all of them
	Endpoints []string
}

const day = 24 * time.Hour

// MaxDays is the longest window a time.Duration can hold
const MaxDays = int(math.MaxInt64 / int64(day))

// Window is the retention window of the section, capped at MaxDays
func (s Section) Window() time.Duration {
	if s.Days > MaxDays {
		return time.Duration(MaxDays) * day
	}
	return time.Duration(s.Days) * day
}

// Validate checks the invariants every section must hold
func (s Section) Validate() error {
	var errs []error
	if s.Name == "" {
		errs = append(errs, errors.New("section name is required"))
	}
	if s.Days <= 0 {
		errs = append(errs, fmt.Errorf("section %s: days must be positive", s.Name))
	} else if s.Days > MaxDays {
		errs = append(errs, fmt.Errorf("section %s: days must be at most %d", s.Name, MaxDays))
	}
	if len(s.Ratings) == 0 {
		errs = append(errs, fmt.Errorf("section %s: at least one rating is required", s.Name))
	}
	if len(s.AllowedTypes) == 0 {
		errs = append(errs, fmt.Errorf("section %s: at least one allowed type is required", s.Name))
	}
	return errors.Join(errs...)
}

// SearchTags builds the remote search: the section's tags first, then a score
// floor, then the rating when exactly one is accepted. The result is cut to
// maxTags from the end, so user tags are the last to be dropped.
func SearchTags(s Section, maxTags int) []string {
	tags := make([]string, 0, len(s.Tags)+2)
	tags = append(tags, s.Tags...)
	if s.MinScore > 0 {
		tags = append(tags, "score:>="+strconv.FormatInt(s.MinScore, 10))
	}
	if len(s.Ratings) == 1 {
		tags = append(tags, "rating:"+string(s.Ratings[0]))
	}
	if maxTags > 0 && len(tags) > maxTags {
		tags = tags[:maxTags]
	}
	return tags
}
