package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boorudl/pkg/booru"
	"boorudl/pkg/crawler"
	"boorudl/pkg/filter"
	"boorudl/pkg/logger"
	"boorudl/pkg/ui"
)

func TestSelectSections(t *testing.T) {
	all := []filter.Section{{Name: "sky"}, {Name: "sea"}, {Name: "city"}}

	got, err := selectSections(all, nil)
	require.NoError(t, err)
	assert.Len(t, got, 3)

	got, err = selectSections(all, []string{"city", "sky"})
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, "city", got[0].Name)
	assert.Equal(t, "sky", got[1].Name)

	_, err = selectSections(all, []string{"forest"})
	assert.ErrorContains(t, err, `unknown section "forest"`)
}

func TestSelectEndpoints(t *testing.T) {
	all := []booru.Endpoint{{Name: "dan"}, {Name: "gel"}}

	got, err := selectEndpoints(all, []string{"gel"})
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "gel", got[0].Name)

	_, err = selectEndpoints(all, []string{"moe"})
	assert.Error(t, err)
}

func TestDetectDialects(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/posts.json" {
			w.Write([]byte(`[{"id": 1}]`))
			return
		}
		http.NotFound(w, r)
	}))
	defer server.Close()

	silent := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer silent.Close()

	log := logger.NewTestLogger()
	client := booru.NewClient(5*time.Second, "boorudl-test", log)
	endpoints := []booru.Endpoint{
		{Name: "auto", BaseURL: server.URL, Dialect: booru.DialectUnknown},
		{Name: "fixed", BaseURL: silent.URL, Dialect: booru.DialectGelbooru},
		{Name: "dead", BaseURL: silent.URL, Dialect: booru.DialectUnknown},
	}

	out := detectDialects(context.Background(), client, endpoints, log)

	assert.Equal(t, booru.DialectDanbooru, out[0].Dialect)
	assert.Equal(t, booru.DialectGelbooru, out[1].Dialect)
	assert.Equal(t, booru.DialectUnknown, out[2].Dialect)
	assert.Equal(t, booru.DialectUnknown, endpoints[0].Dialect, "input is not modified")
	assert.True(t, log.HasMessage("Detected API dialect"))
	assert.True(t, log.HasMessage("Could not detect API dialect"))
}

func TestReport(t *testing.T) {
	var buf bytes.Buffer
	old := ui.Out
	ui.Out = &buf
	defer func() { ui.Out = old }()

	ok := crawler.Summary{
		RunID:   "run-1",
		Results: []crawler.Result{{Section: "sky", Endpoint: "dan", Reason: crawler.ReasonShortPage}},
	}
	assert.NoError(t, report(ok))
	assert.Contains(t, buf.String(), "sky")

	failed := crawler.Summary{
		RunID:   "run-2",
		Results: []crawler.Result{{Section: "sky", Endpoint: "dan", Reason: crawler.ReasonFetchError, Err: errors.New("status 500")}},
		Failed:  1,
	}
	assert.ErrorIs(t, report(failed), errRunFailed)
}

func TestCommandLineFlags(t *testing.T) {
	outputDir, workers, logLevel = "/tmp/out", 3, "debug"
	defer func() { outputDir, workers, logLevel = "", 0, "" }()

	flags := commandLineFlags()
	assert.Equal(t, "/tmp/out", flags["output"])
	assert.Equal(t, 3, flags["workers"])
	assert.Equal(t, "debug", flags["log-level"])
	assert.NotContains(t, flags, "metrics-addr")
}
