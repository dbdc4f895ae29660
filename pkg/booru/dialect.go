package booru

import (
	"fmt"
	"strings"
)

// Dialect identifies the request/response shape of a remote API
type Dialect string

const (
	// DialectDanbooru is the /posts.json API with b<id> page cursors
	DialectDanbooru Dialect = "danbooru"
	// DialectGelbooru is the /index.php?page=dapi API
	DialectGelbooru Dialect = "gelbooru"
	// DialectUnknown marks an endpoint whose shape has not been detected
	DialectUnknown Dialect = "unknown"
)

// ParseDialect converts a configured dialect name. An empty name is unknown.
func ParseDialect(s string) (Dialect, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "danbooru", "moebooru":
		return DialectDanbooru, nil
	case "gelbooru":
		return DialectGelbooru, nil
	case "", "unknown", "auto":
		return DialectUnknown, nil
	default:
		return DialectUnknown, fmt.Errorf("unsupported dialect %q", s)
	}
}

// Known reports whether requests can be built for d
func (d Dialect) Known() bool {
	return d == DialectDanbooru || d == DialectGelbooru
}

// MaxSearchTags is the number of tags the remote accepts in one search
func (d Dialect) MaxSearchTags() int {
	switch d {
	case DialectDanbooru:
		return 4
	case DialectGelbooru:
		return 2
	default:
		return 0
	}
}

// DefaultLimit is the page size requested when the endpoint sets none
func (d Dialect) DefaultLimit() int {
	switch d {
	case DialectDanbooru:
		return 320
	case DialectGelbooru:
		return 100
	default:
		return 0
	}
}

// DefaultFullPageSize is the smallest page that is not treated as the last one
func (d Dialect) DefaultFullPageSize() int {
	switch d {
	case DialectDanbooru:
		return 300
	case DialectGelbooru:
		return 100
	default:
		return 0
	}
}

func (d Dialect) postsPath() string {
	if d == DialectGelbooru {
		return "/index.php"
	}
	return "/posts.json"
}

func (d Dialect) String() string {
	return string(d)
}
