package env

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestLookupBool(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		env  map[string]string
		def  bool
		want bool
	}{
		{name: "unset", env: nil, def: true, want: true},
		{name: "false", env: map[string]string{Headless: "false"}, def: true, want: false},
		{name: "padded", env: map[string]string{Headless: " 1 "}, def: false, want: true},
		{name: "garbage", env: map[string]string{Headless: "nope"}, def: true, want: true},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, LookupBool(MapLookup(tt.env), Headless, tt.def))
		})
	}
}

func TestIsRemoteBrowser(t *testing.T) {
	t.Parallel()

	u, ok := IsRemoteBrowser(EmptyLookup, BrowserWSURL)
	assert.False(t, ok)
	assert.Empty(t, u)

	u, ok = IsRemoteBrowser(MapLookup(map[string]string{
		BrowserWSURL: ",ws://127.0.0.1:9222/devtools/browser/a, ws://other",
	}), BrowserWSURL)
	assert.True(t, ok)
	assert.Equal(t, "ws://127.0.0.1:9222/devtools/browser/a", u)

	_, ok = IsRemoteBrowser(MapLookup(map[string]string{BrowserWSURL: " , "}), BrowserWSURL)
	assert.False(t, ok)
}
