package booru

import (
	"net/url"
	"strconv"
	"strings"
)

// Endpoint is one configured remote site. It is immutable after configuration.
type Endpoint struct {
	Name     string
	BaseURL  string
	Dialect  Dialect
	Username string
	APIKey   string

	// FullPageSize overrides the dialect's full page threshold when > 0
	FullPageSize int
	// Limit overrides the dialect's requested page size when > 0
	Limit int
}

// HasCredentials reports whether HTTP Basic auth should be sent
func (e Endpoint) HasCredentials() bool {
	return e.Username != "" && e.APIKey != ""
}

// WithDialect returns a copy of e using d
func (e Endpoint) WithDialect(d Dialect) Endpoint {
	e.Dialect = d
	return e
}

// PostsURL is the listing URL for e's dialect
func (e Endpoint) PostsURL() string {
	return strings.TrimRight(e.BaseURL, "/") + e.Dialect.postsPath()
}

// Host returns the host:port of the endpoint, used as the throttling key
func (e Endpoint) Host() string {
	u, err := url.Parse(e.BaseURL)
	if err != nil {
		return e.BaseURL
	}
	return u.Host
}

// MinFullPage is the page size below which a page is considered the last one
func (e Endpoint) MinFullPage() int {
	if e.FullPageSize > 0 {
		return e.FullPageSize
	}
	return e.Dialect.DefaultFullPageSize()
}

// PageLimit is the page size requested from the remote
func (e Endpoint) PageLimit() int {
	if e.Limit > 0 {
		return e.Limit
	}
	return e.Dialect.DefaultLimit()
}

// Query describes one page request
type Query struct {
	// Tags are the search tags, most important first
	Tags []string
	// Before is the exclusive upper bound on post ids
	Before int64
}

// Params builds the dialect-specific query string for q.
// Tags beyond the dialect's limit are dropped from the end.
func (e Endpoint) Params(q Query) url.Values {
	tags := q.Tags
	if max := e.Dialect.MaxSearchTags(); len(tags) > max {
		tags = tags[:max]
	}

	v := url.Values{}
	switch e.Dialect {
	case DialectGelbooru:
		v.Set("page", "dapi")
		v.Set("s", "post")
		v.Set("q", "index")
		v.Set("json", "1")
		if q.Before > 0 {
			// gelbooru has no page cursor, so bound ids through a metatag
			tags = append(append([]string(nil), tags...), "id:<"+strconv.FormatInt(q.Before, 10))
		}
	default:
		v.Set("page", "b"+strconv.FormatInt(q.Before, 10))
	}
	v.Set("tags", strings.Join(tags, " "))
	if limit := e.PageLimit(); limit > 0 {
		v.Set("limit", strconv.Itoa(limit))
	}
	return v
}
