package common

import (
	"context"
	"strings"
	"testing"

	"github.com/antchfx/htmlquery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocatorXPath(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		loc  Locator
		want string
	}{
		{"id", ID("q-number"), `//*[@id="q-number"]`},
		{"link", LinkText("General"), `//a[normalize-space(.)="General"]`},
		{
			"text", Text("General"),
			`//body//*[not(self::script or self::style)][normalize-space(.)="General"]` +
				`[not(.//*[normalize-space(.)="General"])]`,
		},
		{"double_quote", ID(`a"b`), `//*[@id='a"b']`},
		{"both_quotes", ID(`it's "x"`), `//*[@id=concat("it's ", '"', "x", '"')]`},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			got, err := tc.loc.XPath()
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestLocatorXPathMatches(t *testing.T) {
	t.Parallel()

	const page = `<html><head><title>NDT Categories</title><style>/* NDT Categories */</style></head>
		<body>
			<h1>NDT Categories</h1>
			<ul><li><a href="quiz_bm.html">Lem Tek 18 based Quiz - BM</a></li></ul>
			<script>NDT Categories</script>
		</body></html>`
	doc, err := htmlquery.Parse(strings.NewReader(page))
	require.NoError(t, err)

	testCases := []struct {
		name  string
		loc   Locator
		count int
		first string
	}{
		{"heading_repeats_title", Text("NDT Categories"), 1, "h1"},
		{"innermost_anchor", Text("Lem Tek 18 based Quiz - BM"), 1, "a"},
		{"link", LinkText("Lem Tek 18 based Quiz - BM"), 1, "a"},
		{"title_only", Text("Main Menu"), 0, ""},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			xp, err := tc.loc.XPath()
			require.NoError(t, err)
			nodes, err := htmlquery.QueryAll(doc, xp)
			require.NoError(t, err)
			require.Len(t, nodes, tc.count)
			if tc.count > 0 {
				assert.Equal(t, tc.first, nodes[0].Data)
			}
		})
	}
}

func TestLocatorValidate(t *testing.T) {
	t.Parallel()

	assert.NoError(t, Text("General").Validate())
	assert.ErrorIs(t, Locator{Strategy: "css", Value: "#x"}.Validate(), ErrUnknownStrategy)
	assert.Error(t, ID("").Validate())

	_, err := Locator{Strategy: "xpath", Value: "//a"}.XPath()
	assert.ErrorIs(t, err, ErrUnknownStrategy)
}

func TestLocatorString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "#q-number", ID("q-number").String())
	assert.Equal(t, `text="Lem Tek 18 based Quiz - BM"`, Text("Lem Tek 18 based Quiz - BM").String())
}

func TestNormalizeSpace(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "Lem Tek 18 based Quiz - BM", NormalizeSpace("\n  Lem Tek 18\tbased  Quiz - BM \n"))
	assert.Equal(t, "", NormalizeSpace(" \t "))
}

func TestSessionState(t *testing.T) {
	t.Parallel()

	var calls int
	s := newFakeSession()
	require.NoError(t, s.Check())
	assert.NoError(t, s.CloseOnce(func() error { calls++; return nil }))
	assert.NoError(t, s.CloseOnce(func() error { calls++; return nil }))
	assert.Equal(t, 1, calls)
	assert.True(t, s.Closed())
	assert.ErrorIs(t, s.Check(), ErrSessionClosed)
	_, err := s.Title(context.Background())
	assert.ErrorIs(t, err, ErrSessionClosed)
}
