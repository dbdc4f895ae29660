package booru

import (
	"bytes"
	"context"
	"io"
	"net/url"
	"strings"
)

// Detect probes baseURL once per known dialect and returns the first one whose
// listing answers with at least one post object. It returns DialectUnknown
// otherwise.
func Detect(ctx context.Context, c *Client, baseURL string) Dialect {
	for _, d := range []Dialect{DialectDanbooru, DialectGelbooru} {
		if ctx.Err() != nil {
			return DialectUnknown
		}

		ep := Endpoint{Name: baseURL, BaseURL: baseURL, Dialect: d}
		params := url.Values{"limit": {"1"}}
		if d == DialectGelbooru {
			params = ep.Params(Query{})
			params.Set("limit", "1")
		}

		resp, err := c.do(ctx, ep, strings.TrimRight(baseURL, "/")+d.postsPath()+"?"+params.Encode(), false)
		if err != nil {
			c.logger.DebugWithFields("dialect probe failed", map[string]interface{}{
				"url":     baseURL,
				"dialect": d.String(),
				"error":   err.Error(),
			})
			continue
		}

		body, readErr := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
		resp.Body.Close()
		if readErr != nil || !looksLikeJSON(body) {
			continue
		}
		// error objects and empty listings decode fine but prove nothing
		if page, err := decodePage(body); err == nil && len(page.Posts) > 0 {
			return d
		}
	}
	return DialectUnknown
}

func looksLikeJSON(body []byte) bool {
	body = bytes.TrimSpace(body)
	return len(body) > 0 && (body[0] == '[' || body[0] == '{')
}
