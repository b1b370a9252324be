package quizsite

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func get(t *testing.T, srv *httptest.Server, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := srv.Client().Get(srv.URL + path)
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, body
}

func TestPages(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(NewServer(DefaultBank()))
	t.Cleanup(srv.Close)

	testCases := []struct {
		path  string
		title string
		check func(t *testing.T, doc *goquery.Document)
	}{
		{"/", "Main Menu", func(t *testing.T, doc *goquery.Document) {
			a := doc.Find("a").FilterFunction(func(_ int, s *goquery.Selection) bool {
				return s.Text() == "General"
			})
			require.Equal(t, 1, a.Length())
			assert.Equal(t, "general.html", a.AttrOr("href", ""))
		}},
		{"/general.html", "NDT Categories", func(t *testing.T, doc *goquery.Document) {
			assert.Equal(t, "Lem Tek 18 based Quiz - BM", doc.Find("#quiz-bm-link").Text())
		}},
		{"/quiz_bm.html", "LemTek Quiz - BM", func(t *testing.T, doc *goquery.Document) {
			assert.Equal(t, "Loading...", doc.Find("#q-number").Text())
			assert.Equal(t, "quiz.js", doc.Find("script").AttrOr("src", ""))
		}},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.path, func(t *testing.T) {
			t.Parallel()

			resp, body := get(t, srv, tc.path)
			require.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

			doc, err := goquery.NewDocumentFromReader(strings.NewReader(string(body)))
			require.NoError(t, err)
			assert.Equal(t, tc.title, doc.Find("title").Text())
			tc.check(t, doc)
		})
	}
}

func TestQuizData(t *testing.T) {
	t.Parallel()

	bank := DefaultBank()
	srv := httptest.NewServer(NewServer(bank, WithSeed(7)))
	t.Cleanup(srv.Close)

	resp, body := get(t, srv, "/quiz_data.json?count=5")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.True(t, gjson.ValidBytes(body))
	assert.Equal(t, int64(5), gjson.GetBytes(body, "#").Int())
	for _, q := range gjson.GetBytes(body, "#.question").Array() {
		assert.NotEmpty(t, q.String())
	}

	_, body = get(t, srv, "/quiz_data.json")
	assert.Equal(t, int64(len(bank)), gjson.GetBytes(body, "#").Int())

	for _, count := range []string{"0", "100000"} {
		resp, body = get(t, srv, "/quiz_data.json?count="+count)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, int64(len(bank)), gjson.GetBytes(body, "#").Int(), "count=%s selects the whole bank", count)
	}

	resp, _ = get(t, srv, "/quiz_data.json?count=-1")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = get(t, srv, "/quiz_data.json?count=many")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Contains(t, gjson.GetBytes(body, "error").String(), "count")
}

func TestScoreEndpoint(t *testing.T) {
	t.Parallel()

	bank := DefaultBank()
	srv := httptest.NewServer(NewServer(bank))
	t.Cleanup(srv.Close)

	sheet := `{"answers":[{"question":` + quote(bank[0].Question) + `,"selected":` + quote(bank[0].Answer) +
		`},{"question":` + quote(bank[1].Question) + `,"selected":"nope"}],"total":4}`
	resp, err := srv.Client().Post(srv.URL+"/score", "application/json", strings.NewReader(sheet))
	require.NoError(t, err)
	defer resp.Body.Close() //nolint:errcheck
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, int64(1), gjson.GetBytes(body, "correct").Int())
	assert.Equal(t, int64(2), gjson.GetBytes(body, "answered").Int())
	assert.Equal(t, int64(4), gjson.GetBytes(body, "total").Int())
	assert.Equal(t, 25.0, gjson.GetBytes(body, "percent").Float())

	resp2, err := srv.Client().Post(srv.URL+"/score", "application/json", strings.NewReader("{"))
	require.NoError(t, err)
	_ = resp2.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp2.StatusCode)
}

func TestRequestMetrics(t *testing.T) {
	t.Parallel()

	reg := prometheus.NewRegistry()
	s := NewServer(DefaultBank(), WithRegisterer(reg))
	srv := httptest.NewServer(s)
	t.Cleanup(srv.Close)

	get(t, srv, "/")
	get(t, srv, "/")
	resp, _ := get(t, srv, "/missing")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	assert.Equal(t, 2.0, testutil.ToFloat64(s.requests.WithLabelValues("/", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(s.requests.WithLabelValues("unmatched", "404")))
	count, err := testutil.GatherAndCount(reg, "quizsite_requests_total")
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `\"`) + `"`
}
