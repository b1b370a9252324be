package static

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/PuerkitoBio/goquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/quizsmoke/common"
	"github.com/liuxd6825/quizsmoke/quizsite"
)

func newSession(t *testing.T) (common.Session, string) {
	t.Helper()

	srv := httptest.NewServer(quizsite.NewServer(quizsite.DefaultBank()))
	t.Cleanup(srv.Close)

	s, err := New(nil, srv.Client()).Provision(context.Background(), common.NewLaunchOptions())
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s, srv.URL + "/"
}

func TestQuizFlow(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, root := newSession(t)

	require.NoError(t, s.Navigate(ctx, root))
	title, err := s.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Main Menu", title)

	text, err := s.Text(ctx, common.LinkText("General"))
	require.NoError(t, err)
	assert.Contains(t, text, "General")

	require.NoError(t, s.Click(ctx, common.Text("General")))
	title, err = s.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "NDT Categories", title)

	require.NoError(t, s.Click(ctx, common.LinkText("Lem Tek 18 based Quiz - BM")))
	title, err = s.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "LemTek Quiz - BM", title)

	visible, err := s.Visible(ctx, common.ID("q-number"))
	require.NoError(t, err)
	assert.True(t, visible)

	visible, err = s.Visible(ctx, common.ID("result-container"))
	require.NoError(t, err)
	assert.False(t, visible)

	text, err = s.Text(ctx, common.ID("q-number"))
	require.NoError(t, err)
	assert.Equal(t, "Loading...", text)
}

func TestElementNotFound(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, root := newSession(t)
	require.NoError(t, s.Navigate(ctx, root))

	err := s.Click(ctx, common.Text("Advanced"))
	var nf *common.ElementNotFoundError
	require.ErrorAs(t, err, &nf)
	assert.Equal(t, common.Text("Advanced"), nf.Locator)

	n, err := s.Count(ctx, common.ID("q-number"))
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestNavigationFailure(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, root := newSession(t)

	err := s.Navigate(ctx, root+"nope.html")
	assert.Equal(t, common.NavigationFailure, common.KindOf(err))

	err = s.Navigate(ctx, "http://127.0.0.1:1/")
	assert.Equal(t, common.NavigationFailure, common.KindOf(err))
}

func TestClosedSession(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s, root := newSession(t)
	require.NoError(t, s.Close())
	require.NoError(t, s.Close())

	assert.ErrorIs(t, s.Navigate(ctx, root), common.ErrSessionClosed)
	_, err := s.Title(ctx)
	assert.ErrorIs(t, err, common.ErrSessionClosed)
}

func TestFindFirstMatch(t *testing.T) {
	t.Parallel()

	const page = `<html><head><title>General</title></head><body>
		<ul>
			<li id="first"><a href="/a">General</a></li>
			<li><a href="/b"> General </a></li>
			<li><span>General <b>Knowledge</b></span></li>
		</ul>
		<p id="dup">one</p><p id="dup">two</p>
	</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)

	testCases := []struct {
		name  string
		loc   common.Locator
		count int
		first string
	}{
		{"text_innermost", common.Text("General"), 2, "a"},
		{"link", common.LinkText("General"), 2, "a"},
		{"id_duplicates", common.ID("dup"), 2, "p"},
		{"text_spans_children", common.Text("General Knowledge"), 1, "span"},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			sel, err := Find(doc, tc.loc)
			require.NoError(t, err)
			require.Equal(t, tc.count, sel.Length())
			assert.Equal(t, tc.first, goquery.NodeName(sel.First()))
		})
	}

	sel, err := Find(doc, common.Text("General"))
	require.NoError(t, err)
	assert.Equal(t, "/a", sel.First().AttrOr("href", ""))
}

func TestFindSkipsHead(t *testing.T) {
	t.Parallel()

	const page = `<html><head><title>NDT Categories</title>
		<script>var heading = "NDT Categories";</script></head>
		<body>
			<style>h1::after { content: "NDT Categories"; }</style>
			<h1>NDT Categories</h1>
			<script>NDT Categories</script>
		</body></html>`
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	require.NoError(t, err)

	sel, err := Find(doc, common.Text("NDT Categories"))
	require.NoError(t, err)
	require.Equal(t, 1, sel.Length())
	assert.Equal(t, "h1", goquery.NodeName(sel.First()))
}

func TestClickNonLink(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`<html><head><title>T</title></head><body><button>Go</button></body></html>`))
	}))
	t.Cleanup(srv.Close)

	ctx := context.Background()
	s, err := New(nil, nil).Provision(ctx, common.NewLaunchOptions())
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	require.NoError(t, s.Navigate(ctx, srv.URL))
	require.NoError(t, s.Click(ctx, common.Text("Go")))
	title, err := s.Title(ctx)
	require.NoError(t, err)
	assert.Equal(t, "T", title)
}
