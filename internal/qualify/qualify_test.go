package qualify

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/outreach-cli/internal/config"
	"github.com/sells-group/outreach-cli/internal/model"
	"github.com/sells-group/outreach-cli/pkg/anthropic"
)

func testScraper() *Scraper {
	return NewScraper(config.QualifierConfig{
		RatePerSec: 1000,
		Timeout:    5 * time.Second,
		MaxChars:   200,
	})
}

func TestScrapeReturnsVisibleText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "OutreachBot")
		_, _ = w.Write([]byte(`<html><head><style>body{color:red}</style></head>
<body><nav>Home | About</nav><h1>Rosie&#39;s Bakery</h1>
<p>Fresh bread &amp; pastries daily.</p>
<script>track()</script><footer>Copyright</footer></body></html>`))
	}))
	defer srv.Close()

	text, err := testScraper().Scrape(context.Background(), srv.URL)
	require.NoError(t, err)

	assert.Contains(t, text, "Rosie's Bakery")
	assert.Contains(t, text, "Fresh bread & pastries daily.")
	assert.NotContains(t, text, "track()")
	assert.NotContains(t, text, "Home | About")
	assert.NotContains(t, text, "Copyright")
}

func TestScrapeTruncatesToBudget(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<p>" + strings.Repeat("word ", 500) + "</p>"))
	}))
	defer srv.Close()

	text, err := testScraper().Scrape(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(text), 200)
}

func TestScrapeTruncatesAtRuneBoundary(t *testing.T) {
	// "é" is two bytes; the leading "a" offsets the runs so the 200-byte
	// limit falls mid-rune unless the cut backs up.
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<p>a" + strings.Repeat("é", 300) + "</p>"))
	}))
	defer srv.Close()

	text, err := testScraper().Scrape(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(text), 200)
	assert.True(t, utf8.ValidString(text))
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "héllo", truncate("héllo", 10))
	assert.Equal(t, "h", truncate("héllo", 2), "cut backs off a split rune")
	assert.Equal(t, "hé", truncate("héllo", 3))
}

func TestScrapeRetriesTransientStatus(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("<p>back up</p>"))
	}))
	defer srv.Close()

	text, err := testScraper().Scrape(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.Equal(t, "back up", text)
	assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
}

func TestScrapeDoesNotRetryClientErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testScraper().Scrape(context.Background(), srv.URL)
	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestScrapeRejectsEmptyPages(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html><body><script>only()</script></body></html>"))
	}))
	defer srv.Close()

	_, err := testScraper().Scrape(context.Background(), srv.URL)
	assert.Error(t, err)
}

func TestStripHTML(t *testing.T) {
	got := stripHTML(`<div>Hello   <b>world</b>&nbsp;&gt;&lt;</div>`)
	assert.Equal(t, `Hello world > <`, got)
}

func TestParseVerdict(t *testing.T) {
	assert.Equal(t, model.ClientTypeVIP, parseVerdict(" VIP \n"))
	assert.Equal(t, model.ClientTypeNormal, parseVerdict("normal"))
	assert.Equal(t, model.ClientTypeCheckManual, parseVerdict("Check Manual"))
	assert.Equal(t, model.ClientTypeCheckManual, parseVerdict("I am not sure about this one."))
}

func TestClassifyDirect(t *testing.T) {
	ai := &mockAI{}
	ai.On("CreateMessage", mock.Anything, mock.MatchedBy(func(req anthropic.MessageRequest) bool {
		return strings.Contains(req.Messages[0].Content, "Rosie")
	})).Return(textResponse("VIP"), nil)
	ai.On("CreateMessage", mock.Anything, mock.Anything).Return(textResponse("Normal"), nil)

	r := &Runner{AI: ai, Claude: config.AnthropicConfig{HaikuModel: "haiku", NoBatch: true}}
	report := &model.RunReport{}

	verdicts := r.classify(context.Background(), []candidate{
		{lead: model.Lead{Row: 2, ClientName: "Rosie"}, text: "bakery"},
		{lead: model.Lead{Row: 3, ClientName: "Al"}, text: "plumbing"},
	}, report)

	assert.Equal(t, []string{model.ClientTypeVIP, model.ClientTypeNormal}, verdicts)
	assert.Equal(t, 0, report.Failures)
}

func TestClassifyBatch(t *testing.T) {
	ai := &mockAI{}
	ai.On("CreateBatch", mock.Anything, mock.MatchedBy(func(req anthropic.BatchRequest) bool {
		return len(req.Requests) == 2 && req.Requests[0].CustomID == "0"
	})).Return(&anthropic.BatchResponse{ID: "batch-1", ProcessingStatus: "in_progress"}, nil)
	ai.On("GetBatch", mock.Anything, "batch-1").
		Return(&anthropic.BatchResponse{ID: "batch-1", ProcessingStatus: "ended"}, nil)
	ai.On("GetBatchResults", mock.Anything, "batch-1").
		Return(batchResults(map[string]string{"0": "Normal", "1": "VIP"}), nil)

	r := &Runner{AI: ai, Claude: config.AnthropicConfig{HaikuModel: "haiku", SmallBatchThreshold: 2}}
	report := &model.RunReport{}

	verdicts := r.classify(context.Background(), []candidate{
		{lead: model.Lead{Row: 2}, text: "a"},
		{lead: model.Lead{Row: 3}, text: "b"},
	}, report)

	assert.Equal(t, []string{model.ClientTypeNormal, model.ClientTypeVIP}, verdicts)
}

func TestClassifyDirectCallFailureChecksManually(t *testing.T) {
	ai := &mockAI{}
	ai.On("CreateMessage", mock.Anything, mock.Anything).
		Return(nil, assert.AnError)

	r := &Runner{AI: ai, Claude: config.AnthropicConfig{HaikuModel: "haiku", NoBatch: true}}
	report := &model.RunReport{}

	verdicts := r.classify(context.Background(), []candidate{
		{lead: model.Lead{Row: 2}, text: "a"},
	}, report)

	assert.Equal(t, []string{model.ClientTypeCheckManual}, verdicts)
	assert.Equal(t, 1, report.Failures)
}
