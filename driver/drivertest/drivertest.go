// Package drivertest holds the behavior every automation backend must
// share, run against the bundled quiz site.
package drivertest

import (
	"context"
	"net/http/httptest"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/quizsmoke/chromium"
	"github.com/liuxd6825/quizsmoke/common"
	"github.com/liuxd6825/quizsmoke/env"
	"github.com/liuxd6825/quizsmoke/quizsite"
)

// SkipWithoutBrowser skips browser tests in -short mode or when no
// Chromium based browser is installed.
func SkipWithoutBrowser(t *testing.T) {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	if !chromium.Available(env.Lookup) {
		t.Skip("no Chromium based browser found, set " + env.ExecutablePath)
	}
}

// Server starts the quiz site and returns its root URL.
func Server(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(quizsite.NewServer(quizsite.DefaultBank()))
	t.Cleanup(srv.Close)
	return srv.URL + "/"
}

// Run provisions a session with prov and checks navigation, locators,
// expectations and teardown against the quiz site.
func Run(t *testing.T, prov common.Provisioner, opts *common.LaunchOptions) {
	t.Helper()

	root := Server(t)
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	s, err := prov.Provision(ctx, opts)
	require.NoError(t, err)
	closed := false
	t.Cleanup(func() {
		if !closed {
			_ = s.Close()
		}
	})
	assert.NotEmpty(t, s.ID())
	var pid int
	if po, ok := s.(common.ProcessOwner); ok && !opts.IsRemote() {
		pid = po.Pid()
		assert.NotZero(t, pid, "local browser pid")
		assert.True(t, chromium.ProcessRunning(pid))
	}

	require.NoError(t, s.Navigate(ctx, root))
	require.NoError(t, common.Expect(ctx, s, common.TitleMatches(regexp.MustCompile("Main Menu")), common.ExpectOptions{}))

	text, err := s.Text(ctx, common.LinkText("General"))
	require.NoError(t, err)
	assert.Contains(t, text, "General")

	require.NoError(t, s.Click(ctx, common.Text("General")))
	require.NoError(t, common.Expect(ctx, s, common.TitleEquals("NDT Categories"),
		common.ExpectOptions{Timeout: 5 * time.Second}))

	require.NoError(t, s.Click(ctx, common.Text("Lem Tek 18 based Quiz - BM")))
	require.NoError(t, common.Expect(ctx, s, common.TitleEquals("LemTek Quiz - BM"),
		common.ExpectOptions{Timeout: 5 * time.Second}))
	require.NoError(t, common.Expect(ctx, s, common.ElementVisible(common.ID("q-number")),
		common.ExpectOptions{Timeout: 5 * time.Second}))
	require.NoError(t, common.Expect(ctx, s, common.ElementTextContains(common.ID("q-number"), "Question"),
		common.ExpectOptions{Timeout: 10 * time.Second}))

	err = s.Click(ctx, common.Text("No such entry"))
	assert.Equal(t, common.ElementNotFound, common.KindOf(err), "got %v", err)

	n, err := s.Count(ctx, common.ID("q-number"))
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, s.Close())
	closed = true
	require.NoError(t, s.Close())
	assert.ErrorIs(t, s.Navigate(ctx, root), common.ErrSessionClosed)

	if p, ok := s.(common.Prober); ok && !opts.IsRemote() {
		assert.Eventually(t, func() bool { return !p.Alive(ctx) }, 10*time.Second, 100*time.Millisecond,
			"browser still running after Close")
	}
	if pid != 0 {
		assert.Eventually(t, func() bool { return !chromium.ProcessRunning(pid) }, 10*time.Second, 100*time.Millisecond,
			"browser process %d still running after Close", pid)
	}
}
