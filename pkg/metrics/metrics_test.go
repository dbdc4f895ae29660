package metrics

import (
	"io"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounters(t *testing.T) {
	r := New()

	r.PostSearched("foxes", "danbooru")
	r.PostSearched("foxes", "danbooru")
	r.PostRejected("foxes", "danbooru", "score")
	r.PostUnreadable("danbooru", "no_file_access")
	r.Download("foxes", "danbooru", "downloaded", 2048)
	r.Download("foxes", "danbooru", "already_exists", 0)
	r.APIResponse("danbooru", 200)
	r.APIResponse("danbooru", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(r.postsSearched.WithLabelValues("foxes", "danbooru")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.postsRejected.WithLabelValues("foxes", "danbooru", "score")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.postsSkipped.WithLabelValues("danbooru", "no_file_access")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.downloads.WithLabelValues("foxes", "danbooru", "already_exists")))
	assert.Equal(t, 2048.0, testutil.ToFloat64(r.downloadBytes.WithLabelValues("danbooru")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.apiRequests.WithLabelValues("danbooru", "0")))
}

func TestRecorderWorkers(t *testing.T) {
	r := New()

	r.WorkerStarted()
	r.WorkerStarted()
	assert.Equal(t, 2.0, testutil.ToFloat64(r.workersActive))

	r.WorkerFinished("short-page")
	assert.Equal(t, 1.0, testutil.ToFloat64(r.workersActive))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.workersDone.WithLabelValues("short-page")))
}

func TestRecordersAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.PostSearched("s", "e")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.postsSearched.WithLabelValues("s", "e")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.ThrottleDelay("danbooru.example", 300*time.Millisecond)
	r.PostSearched("foxes", "danbooru")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `boorudl_posts_searched_total{endpoint="danbooru",section="foxes"} 1`)
	assert.Contains(t, string(body), "boorudl_rate_limit_delay_seconds_bucket")
}
