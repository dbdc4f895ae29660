// Package filter decides which normalized posts a section keeps.
package filter

import (
	"slices"
	"strings"
	"time"

	"boorudl/pkg/post"
)

// Verdict is the outcome of evaluating one post
type Verdict int

const (
	Accept Verdict = iota
	Reject
	// StopPagination means the post and everything older is outside the window
	StopPagination
)

func (v Verdict) String() string {
	switch v {
	case Accept:
		return "accept"
	case Reject:
		return "reject"
	case StopPagination:
		return "stop"
	default:
		return "unknown"
	}
}

// Reason explains a Reject or StopPagination verdict
type Reason string

const (
	ReasonNone       Reason = ""
	ReasonExtension  Reason = "extension"
	ReasonTimeWindow Reason = "time_window"
	ReasonRating     Reason = "rating"
	ReasonFavorites  Reason = "favorites"
	ReasonScore      Reason = "score"
	ReasonBlacklist  Reason = "blacklist"
)

// Decision is the result of Evaluate. Tag is the offending tag for blacklist rejections.
type Decision struct {
	Verdict Verdict
	Reason  Reason
	Tag     string
}

// Blacklist is the set of tags rejected in every section unless the section
// ignores them. Membership is exact and case-sensitive.
type Blacklist map[string]struct{}

// NewBlacklist builds a Blacklist from tags
func NewBlacklist(tags ...string) Blacklist {
	b := make(Blacklist, len(tags))
	for _, t := range tags {
		b[t] = struct{}{}
	}
	return b
}

// Contains reports whether tag is blacklisted
func (b Blacklist) Contains(tag string) bool {
	_, ok := b[tag]
	return ok
}

// Evaluate runs the filter checks in a fixed order and stops at the first
// that fails. It depends only on its arguments.
func Evaluate(p post.Post, s Section, blacklist Blacklist, now time.Time) Decision {
	if !slices.ContainsFunc(s.AllowedTypes, func(t string) bool { return strings.EqualFold(t, p.Extension) }) {
		return Decision{Verdict: Reject, Reason: ReasonExtension}
	}

	// A post exactly on the boundary is kept
	if now.Sub(p.CreatedAt) > s.Window() {
		return Decision{Verdict: StopPagination, Reason: ReasonTimeWindow}
	}

	if !slices.Contains(s.Ratings, p.Rating) {
		return Decision{Verdict: Reject, Reason: ReasonRating}
	}

	if p.Favorites < s.MinFaves {
		return Decision{Verdict: Reject, Reason: ReasonFavorites}
	}

	if p.Score < s.MinScore {
		return Decision{Verdict: Reject, Reason: ReasonScore}
	}

	for _, tag := range p.Tags {
		if blacklist.Contains(tag) && !slices.Contains(s.IgnoreTags, tag) {
			return Decision{Verdict: Reject, Reason: ReasonBlacklist, Tag: tag}
		}
	}

	return Decision{Verdict: Accept}
}
