package ui

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"boorudl/pkg/crawler"
)

func sampleSummary() crawler.Summary {
	return crawler.Summary{
		RunID: "0190b6c8-run",
		Results: []crawler.Result{
			{
				Section:   "sky",
				Endpoint:  "dan",
				Reason:    crawler.ReasonShortPage,
				Telemetry: crawler.Telemetry{Searched: 40, Downloaded: 7, Duplicates: 3, Elapsed: 2 * time.Second},
			},
			{
				Section:  "sky",
				Endpoint: "gel",
				Reason:   crawler.ReasonFetchError,
				Err:      errors.New("status 502"),
			},
		},
		Failed:  1,
		Elapsed: 3 * time.Second,
	}
}

func TestSummaryTable(t *testing.T) {
	out := SummaryTable(sampleSummary())

	for _, want := range []string{"SECTION", "sky", "dan", "gel", "40", "short-page", "fetch-error: status 502", "0190b6c8-run", "1 worker(s) failed"} {
		assert.Contains(t, out, want)
	}
}

func TestSummaryTableOK(t *testing.T) {
	s := sampleSummary()
	s.Results = s.Results[:1]
	s.Failed = 0

	var buf bytes.Buffer
	PrintSummary(&buf, s)
	assert.Contains(t, buf.String(), "OK")
	assert.NotContains(t, buf.String(), "failed")
}

type fakeSender struct {
	titles, messages []string
}

func (f *fakeSender) Send(title, message string) error {
	f.titles = append(f.titles, title)
	f.messages = append(f.messages, message)
	return errors.New("no display")
}

func TestNotifierRunFinished(t *testing.T) {
	sender := &fakeSender{}
	NewNotifierWithSender(sender).RunFinished(sampleSummary())

	require.Len(t, sender.titles, 1)
	assert.Equal(t, "boorudl: 1 worker(s) failed", sender.titles[0])
	assert.Equal(t, "7 new, 3 already present, 40 searched in 3s", sender.messages[0])

	// A notifier without a sender is a no-op
	NewNotifierWithSender(nil).RunFinished(sampleSummary())
}

func TestPrintHelpers(t *testing.T) {
	var buf bytes.Buffer
	old := Out
	Out = &buf
	defer func() { Out = old }()

	PrintInfo("Output", "./downloads")
	PrintError("Crawl failed", errors.New("boom"))
	PrintWarning("careful")

	out := buf.String()
	assert.Contains(t, out, "Output")
	assert.Contains(t, out, "./downloads")
	assert.Contains(t, out, "Crawl failed: boom")
	assert.Contains(t, out, "careful")
}
