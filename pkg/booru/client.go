package booru

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"boorudl/pkg/errors"
	"boorudl/pkg/logger"
)

// Limiter throttles requests per remote host
type Limiter interface {
	Wait(ctx context.Context, host string) error
}

// ResponseObserver is notified of every API response status. Code is 0 on network failure.
type ResponseObserver func(endpoint string, code int)

// Page is one decoded listing response. Posts are left as raw JSON objects.
type Page struct {
	Posts []map[string]interface{}
}

// Client issues GET requests against booru APIs
type Client struct {
	httpClient *http.Client
	userAgent  string
	limiter    Limiter
	observe    ResponseObserver
	logger     logger.Logger
}

// Option configures a Client
type Option func(*Client)

// WithLimiter gates every request through l
func WithLimiter(l Limiter) Option {
	return func(c *Client) { c.limiter = l }
}

// WithObserver registers fn to receive response status codes
func WithObserver(fn ResponseObserver) Option {
	return func(c *Client) { c.observe = fn }
}

// WithHTTPClient replaces the underlying http.Client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a new booru API client
func NewClient(timeout time.Duration, userAgent string, log logger.Logger, opts ...Option) *Client {
	if log == nil {
		log = logger.GetLogger()
	}

	c := &Client{
		httpClient: &http.Client{Timeout: timeout},
		userAgent:  userAgent,
		logger:     log,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch requests one listing page from ep. Any non-200 status is returned as
// an *errors.Error carrying the code; the client never retries.
func (c *Client) Fetch(ctx context.Context, ep Endpoint, q Query) (*Page, error) {
	if !ep.Dialect.Known() {
		return nil, fmt.Errorf("endpoint %s: cannot query dialect %s", ep.Name, ep.Dialect)
	}

	u := ep.PostsURL() + "?" + ep.Params(q).Encode()
	resp, err := c.do(ctx, ep, u, true)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Network(err)
	}

	page, err := decodePage(body)
	if err != nil {
		return nil, &errors.Error{
			Type:    errors.ErrorTypeParsing,
			Message: fmt.Sprintf("decode %s: %v", ep.Name, err),
			Code:    resp.StatusCode,
		}
	}
	return page, nil
}

// Stream opens fileURL for reading. Credentials for ep are only sent when the
// file lives on ep's own host. The caller must close the returned body.
func (c *Client) Stream(ctx context.Context, ep Endpoint, fileURL string) (io.ReadCloser, error) {
	sameHost := false
	if u, err := url.Parse(fileURL); err == nil {
		sameHost = u.Host == ep.Host()
	}

	resp, err := c.do(ctx, ep, fileURL, sameHost)
	if err != nil {
		return nil, err
	}
	return resp.Body, nil
}

// do performs a throttled GET. The response is only returned for status 200.
func (c *Client) do(ctx context.Context, ep Endpoint, rawURL string, withAuth bool) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &errors.Error{
			Type:    errors.ErrorTypeUnknown,
			Message: fmt.Sprintf("failed to create request: %v", err),
		}
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json, */*;q=0.8")
	if withAuth && ep.HasCredentials() {
		req.SetBasicAuth(ep.Username, ep.APIKey)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx, req.URL.Host); err != nil {
			return nil, err
		}
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		logger.LogRequest(c.logger, req.Method, rawURL, 0, time.Since(start))
		c.notify(ep.Name, 0)
		return nil, errors.Network(err)
	}

	logger.LogRequest(c.logger, req.Method, rawURL, resp.StatusCode, time.Since(start))
	c.notify(ep.Name, resp.StatusCode)

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return nil, errors.FromStatus(resp.StatusCode, rawURL)
	}
	return resp, nil
}

func (c *Client) notify(endpoint string, code int) {
	if c.observe != nil {
		c.observe(endpoint, code)
	}
}

// decodePage accepts a bare list of posts, or an object wrapping the list in
// "posts" or "post". An object without either key is an empty page.
func decodePage(body []byte) (*Page, error) {
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return &Page{}, nil
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw interface{}
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}

	switch v := raw.(type) {
	case []interface{}:
		return pageFromList(v)
	case map[string]interface{}:
		for _, key := range []string{"posts", "post"} {
			inner, ok := v[key]
			if !ok {
				continue
			}
			switch list := inner.(type) {
			case []interface{}:
				return pageFromList(list)
			case map[string]interface{}:
				return &Page{Posts: []map[string]interface{}{list}}, nil
			case nil:
				return &Page{}, nil
			default:
				return nil, fmt.Errorf("%q is %T, want list", key, inner)
			}
		}
		return &Page{}, nil
	case nil:
		return &Page{}, nil
	default:
		return nil, fmt.Errorf("unexpected top-level %T", raw)
	}
}

func pageFromList(list []interface{}) (*Page, error) {
	posts := make([]map[string]interface{}, 0, len(list))
	for i, item := range list {
		obj, ok := item.(map[string]interface{})
		if !ok {
			return nil, fmt.Errorf("item %d is %T, want object", i, item)
		}
		posts = append(posts, obj)
	}
	return &Page{Posts: posts}, nil
}
