package booru

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boorudl/pkg/errors"
	"boorudl/pkg/logger"
)

type recordingLimiter struct {
	mu    sync.Mutex
	hosts []string
}

func (l *recordingLimiter) Wait(ctx context.Context, host string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.hosts = append(l.hosts, host)
	return nil
}

func newTestClient(opts ...Option) *Client {
	return NewClient(5*time.Second, "boorudl-test", logger.NewNopLogger(), opts...)
}

func TestFetchDecodesShapes(t *testing.T) {
	tests := []struct {
		name  string
		body  string
		count int
	}{
		{"bare list", `[{"id": 3}, {"id": 2}]`, 2},
		{"posts wrapper", `{"posts": [{"id": 3}]}`, 1},
		{"post wrapper", `{"@attributes": {"count": 1}, "post": [{"id": 9}]}`, 1},
		{"single post object", `{"post": {"id": 9}}`, 1},
		{"empty gelbooru", `{"@attributes": {"count": 0}}`, 0},
		{"empty list", `[]`, 0},
		{"empty body", ``, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			ep := Endpoint{Name: "t", BaseURL: server.URL, Dialect: DialectDanbooru}
			page, err := newTestClient().Fetch(context.Background(), ep, Query{Before: 10})
			require.NoError(t, err)
			assert.Len(t, page.Posts, tt.count)
		})
	}
}

func TestFetchKeepsNumbersExact(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"id": 9007199254740993}]`))
	}))
	defer server.Close()

	ep := Endpoint{Name: "t", BaseURL: server.URL, Dialect: DialectDanbooru}
	page, err := newTestClient().Fetch(context.Background(), ep, Query{})
	require.NoError(t, err)
	assert.Equal(t, "9007199254740993", page.Posts[0]["id"].(interface{ String() string }).String())
}

func TestFetchSendsRequest(t *testing.T) {
	var gotPath, gotPage, gotTags, gotUA, gotUser, gotPass string
	var hadAuth bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotPage = r.URL.Query().Get("page")
		gotTags = r.URL.Query().Get("tags")
		gotUA = r.Header.Get("User-Agent")
		gotUser, gotPass, hadAuth = r.BasicAuth()
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	limiter := &recordingLimiter{}
	ep := Endpoint{Name: "t", BaseURL: server.URL, Dialect: DialectDanbooru, Username: "alice", APIKey: "secret"}
	_, err := newTestClient(WithLimiter(limiter)).Fetch(context.Background(), ep, Query{Tags: []string{"sky"}, Before: 77})
	require.NoError(t, err)

	assert.Equal(t, "/posts.json", gotPath)
	assert.Equal(t, "b77", gotPage)
	assert.Equal(t, "sky", gotTags)
	assert.Equal(t, "boorudl-test", gotUA)
	assert.True(t, hadAuth)
	assert.Equal(t, "alice", gotUser)
	assert.Equal(t, "secret", gotPass)
	assert.Equal(t, []string{ep.Host()}, limiter.hosts)
}

func TestFetchWithoutCredentialsSendsNoAuth(t *testing.T) {
	var hadAuth bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, hadAuth = r.BasicAuth()
		w.Write([]byte(`[]`))
	}))
	defer server.Close()

	ep := Endpoint{Name: "t", BaseURL: server.URL, Dialect: DialectGelbooru, Username: "alice"}
	_, err := newTestClient().Fetch(context.Background(), ep, Query{})
	require.NoError(t, err)
	assert.False(t, hadAuth)
}

func TestFetchNon200IsTransportError(t *testing.T) {
	var calls int32
	var observed []int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer server.Close()

	ep := Endpoint{Name: "t", BaseURL: server.URL, Dialect: DialectDanbooru}
	c := newTestClient(WithObserver(func(endpoint string, code int) {
		observed = append(observed, code)
	}))
	_, err := c.Fetch(context.Background(), ep, Query{})

	require.Error(t, err)
	assert.Equal(t, 503, errors.StatusCode(err))
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls), "client must not retry")
	assert.Equal(t, []int{503}, observed)
}

func TestFetchInvalidJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html>nope</html>`))
	}))
	defer server.Close()

	ep := Endpoint{Name: "t", BaseURL: server.URL, Dialect: DialectDanbooru}
	_, err := newTestClient().Fetch(context.Background(), ep, Query{})

	var e *errors.Error
	require.ErrorAs(t, err, &e)
	assert.Equal(t, errors.ErrorTypeParsing, e.Type)
}

func TestFetchUnknownDialect(t *testing.T) {
	_, err := newTestClient().Fetch(context.Background(), Endpoint{Name: "x"}, Query{})
	assert.Error(t, err)
}

func TestStreamAuthOnlyOnSameHost(t *testing.T) {
	var fileAuth bool
	files := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _, fileAuth = r.BasicAuth()
		w.Write([]byte("PNGDATA"))
	}))
	defer files.Close()

	ep := Endpoint{Name: "t", BaseURL: "https://api.example", Dialect: DialectDanbooru, Username: "u", APIKey: "k"}
	body, err := newTestClient().Stream(context.Background(), ep, files.URL+"/data/1.png")
	require.NoError(t, err)
	defer body.Close()

	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "PNGDATA", string(data))
	assert.False(t, fileAuth)
}

func TestDetect(t *testing.T) {
	danbooru := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/posts.json" {
			w.Write([]byte(`[{"id": 1}]`))
			return
		}
		http.NotFound(w, r)
	}))
	defer danbooru.Close()

	gelbooru := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/index.php" && r.URL.Query().Get("page") == "dapi" {
			w.Write([]byte(`{"@attributes": {"count": 1}, "post": [{"id": 1}]}`))
			return
		}
		http.NotFound(w, r)
	}))
	defer gelbooru.Close()

	html := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(strings.Repeat("<p>hi</p>", 3)))
	}))
	defer html.Close()

	c := newTestClient()
	ctx := context.Background()
	assert.Equal(t, DialectDanbooru, Detect(ctx, c, danbooru.URL))
	assert.Equal(t, DialectGelbooru, Detect(ctx, c, gelbooru.URL+"/"))
	assert.Equal(t, DialectUnknown, Detect(ctx, c, html.URL))
}

func TestDetectRejectsEmptyOrErrorJSON(t *testing.T) {
	for _, body := range []string{
		`{"success": false, "message": "not a booru"}`,
		`[]`,
		`{}`,
		`null`,
		`{"posts": []}`,
	} {
		t.Run(body, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.Write([]byte(body))
			}))
			defer server.Close()

			assert.Equal(t, DialectUnknown, Detect(context.Background(), newTestClient(), server.URL))
		})
	}
}
