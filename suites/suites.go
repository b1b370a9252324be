// Package suites holds what the Playwright-style and Selenium-style smoke
// suites share: where the quiz application lives, how sessions are
// launched, and when a suite cannot run on this machine.
package suites

import (
	"context"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/sirupsen/logrus"

	"github.com/liuxd6825/quizsmoke/chromium"
	"github.com/liuxd6825/quizsmoke/common"
	"github.com/liuxd6825/quizsmoke/driver"
	"github.com/liuxd6825/quizsmoke/driver/pw"
	"github.com/liuxd6825/quizsmoke/driver/wd"
	"github.com/liuxd6825/quizsmoke/env"
	"github.com/liuxd6825/quizsmoke/log"
	"github.com/liuxd6825/quizsmoke/quizsite"
)

// StartSite returns QUIZSMOKE_BASE_URL when set. Otherwise it serves the
// bundled quiz site and returns its root URL; stop shuts it down.
func StartSite(lookup env.LookupFunc) (baseURL string, stop func()) {
	if u, ok := lookup(env.BaseURL); ok && u != "" {
		return u, func() {}
	}
	srv := httptest.NewServer(quizsite.NewServer(quizsite.DefaultBank()))
	return srv.URL + "/", srv.Close
}

// BaseURL is StartSite bound to the lifetime of tb.
func BaseURL(tb testing.TB) string {
	tb.Helper()
	u, stop := StartSite(env.Lookup)
	tb.Cleanup(stop)
	return u
}

// LaunchOptions returns the launch options of backend: headless unless
// QUIZSMOKE_HEADLESS says otherwise, the local browser binary, or the
// remote browser or WebDriver server configured for backend.
func LaunchOptions(lookup env.LookupFunc, backend string) *common.LaunchOptions {
	opts := common.NewLaunchOptions()
	opts.Headless = env.LookupBool(lookup, env.Headless, true)
	if u, ok := env.IsRemoteBrowser(lookup, driver.RemoteURLKey(backend)); ok {
		opts.RemoteURL = u
		return opts
	}
	opts.ExecutablePath = chromium.ExecutablePath(lookup)
	if p, ok := lookup(env.ChromeDriver); ok {
		opts.DriverPath = p
	}
	return opts
}

// Provisioner returns the provisioner of backend logging through a
// logger configured from QUIZSMOKE_LOG.
func Provisioner(lookup env.LookupFunc, backend string) (common.Provisioner, error) {
	l := logrus.New()
	l.SetLevel(logrus.WarnLevel)
	logger, err := log.NewFromEnv(l, "", lookup)
	if err != nil {
		return nil, err
	}
	return driver.New(backend, logger, lookup)
}

// Unrunnable returns why backend cannot run here, or "" when it can.
func Unrunnable(lookup env.LookupFunc, backend string) string {
	if testing.Short() {
		return "skipping browser suite in short mode"
	}
	if _, ok := env.IsRemoteBrowser(lookup, driver.RemoteURLKey(backend)); ok {
		return ""
	}
	if !chromium.Available(lookup) {
		return "no Chromium based browser found, set " + env.ExecutablePath
	}
	switch backend {
	case wd.Name:
		if _, err := chromium.ResolveDriver(context.Background(), "", "", lookup, nil); err != nil {
			return fmt.Sprintf("no chromedriver: %v", err)
		}
	case pw.Name:
		if !pw.DriverInstalled(lookup) {
			return "no Playwright driver installed, run `quizsmoke install`"
		}
	}
	return ""
}

// SkipUnlessRunnable skips t when backend cannot run here.
func SkipUnlessRunnable(t *testing.T, backend string) {
	t.Helper()
	if reason := Unrunnable(env.Lookup, backend); reason != "" {
		t.Skip(reason)
	}
}
