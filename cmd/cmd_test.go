package cmd

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/liuxd6825/quizsmoke/env"
	"github.com/liuxd6825/quizsmoke/errext/exitcodes"
	"github.com/liuxd6825/quizsmoke/testutils"
)

type testState struct {
	*globalState
	stdOut, stdErr *bytes.Buffer
	hook           *testutils.SimpleLogrusHook
	cancel         context.CancelFunc
}

func newTestState(t *testing.T, environ map[string]string) *testState {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	mu := &sync.Mutex{}
	stdOut, stdErr := &bytes.Buffer{}, &bytes.Buffer{}
	logger, hook := testutils.NewLogger()
	logger.SetLevel(logrus.InfoLevel)

	lookup := env.MapLookup(environ)
	defaultFlags := globalFlags{
		configFilePath: "/home/quiz/" + defaultConfigFileName,
		logOutput:      "none",
	}
	gs := &globalState{
		ctx:          ctx,
		fs:           afero.NewMemMapFs(),
		stdout:       &consoleWriter{stdOut, false, mu},
		stderr:       &consoleWriter{stdErr, false, mu},
		logger:       logger,
		lookupEnv:    lookup,
		signalNotify: func(chan<- os.Signal, ...os.Signal) {},
		signalStop:   func(chan<- os.Signal) {},

		installPlaywright: func(bool) error { return nil },

		defaultFlags: defaultFlags,
		flags:        consolidateGlobalFlags(defaultFlags, lookup),
	}
	return &testState{globalState: gs, stdOut: stdOut, stdErr: stdErr, hook: hook, cancel: cancel}
}

func (ts *testState) execute(args ...string) int {
	c := newRootCommand(ts.globalState)
	c.cmd.SetArgs(args)
	code := c.execute()
	// the logger output is reset by the root command
	ts.logger.SetOutput(io.Discard)
	return code
}

func TestVersion(t *testing.T) {
	t.Parallel()

	ts := newTestState(t, nil)
	require.Equal(t, 0, ts.execute("version"))
	assert.Contains(t, ts.stdOut.String(), "quizsmoke v0.")

	ts = newTestState(t, nil)
	require.Equal(t, 0, ts.execute("version", "--json"))
	out := ts.stdOut.String()
	assert.True(t, gjson.Valid(out))
	assert.Equal(t, "static", gjson.Get(out, "backends.#(==static)").String())
}

func TestRunLocalSite(t *testing.T) {
	t.Parallel()

	summary := "/home/quiz/summary.json"
	metricsFile := "/home/quiz/quizsmoke.prom"

	ts := newTestState(t, map[string]string{env.TracesMetadata: "team=qa"})
	require.NoError(t, ts.fs.MkdirAll("/home/quiz", 0o755))
	code := ts.execute("run", "--no-color", "--log-output", "none",
		"--local-site", "--backend", "static", "--expect-timeout", "2s",
		"--summary-export", summary, "--metrics-file", metricsFile,
		"has-title", "get-started-link", "root-idempotent")
	require.Equal(t, 0, code, ts.hook.Drain())

	assert.Contains(t, ts.stdOut.String(), "3 passed")

	b, err := afero.ReadFile(ts.fs, summary)
	require.NoError(t, err)
	assert.Equal(t, int64(3), gjson.GetBytes(b, "passed").Int())
	assert.Equal(t, "static", gjson.GetBytes(b, "backend").String())
	assert.Len(t, gjson.GetBytes(b, "run_id").String(), 36)

	b, err = afero.ReadFile(ts.fs, metricsFile)
	require.NoError(t, err)
	assert.Contains(t, string(b), `quizsmoke_scenarios_total{backend="static",result="passed",scenario="has-title"} 1`)
}

func TestRunSharedFailure(t *testing.T) {
	t.Parallel()

	dead := httptest.NewServer(http.NotFoundHandler())
	deadURL := dead.URL + "/"
	dead.Close()

	ts := newTestState(t, map[string]string{env.BaseURL: deadURL})
	code := ts.execute("run", "--no-color", "--backend", "static", "--shared", "--timeout", "2s",
		"has-title", "root-idempotent")
	assert.Equal(t, int(exitcodes.ScenariosHaveFailed), code)
	assert.Contains(t, ts.stdOut.String(), "NavigationFailure")
	assert.True(t, ts.hook.Contains("2 of 2 scenarios have failed"))
}

func TestRunInvalidConfig(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		name string
		env  map[string]string
		args []string
	}{
		{"unknown_backend", nil, []string{"run", "--backend", "lynx"}},
		{"unknown_scenario", nil, []string{"run", "--backend", "static", "checkout"}},
		{"bad_base_url", map[string]string{env.BaseURL: "quiz.local"}, []string{"run"}},
		{"bad_env_duration", map[string]string{"QUIZSMOKE_TIMEOUT": "soon"}, []string{"run"}},
		{"missing_config", nil, []string{"run", "--config", "/nonexistent/quizsmoke.yaml"}},
		{"bad_traces_output", nil, []string{"run", "--backend", "static", "--traces-output", "jaeger"}},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			ts := newTestState(t, tc.env)
			assert.Equal(t, int(exitcodes.InvalidConfig), ts.execute(tc.args...))
		})
	}
}

func TestRunConfigFile(t *testing.T) {
	t.Parallel()

	fn := "/etc/quizsmoke/quizsmoke.yaml"
	ts := newTestState(t, map[string]string{env.Config: fn})
	require.NoError(t, afero.WriteFile(ts.fs, fn, []byte("backend: lynx\n"), 0o600))
	assert.Equal(t, int(exitcodes.InvalidConfig), ts.execute("run"))
	assert.True(t, ts.hook.Contains(`unknown backend "lynx"`))

	ts = newTestState(t, nil)
	require.NoError(t, afero.WriteFile(ts.fs, ts.flags.configFilePath, []byte("backend: static\nshared: true\n"), 0o600))
	require.NoError(t, ts.fs.MkdirAll("/out", 0o755))
	require.Equal(t, 0, ts.execute("run", "--local-site", "--summary-export", "/out/summary.json", "has-title"),
		ts.hook.Drain())
	b, err := afero.ReadFile(ts.fs, "/out/summary.json")
	require.NoError(t, err)
	assert.Equal(t, "static", gjson.GetBytes(b, "backend").String(), "default config file read from the state filesystem")
	assert.True(t, gjson.GetBytes(b, "shared_session").Bool())
}

func TestInvalidLogOutput(t *testing.T) {
	t.Parallel()

	ts := newTestState(t, nil)
	assert.Equal(t, -1, ts.execute("version", "--log-output", "syslog"))
}

func TestInstall(t *testing.T) {
	t.Parallel()

	ts := newTestState(t, nil)
	require.Equal(t, 0, ts.execute("install"))

	ts = newTestState(t, nil)
	ts.installPlaywright = func(bool) error { return errors.New("no network") }
	assert.Equal(t, int(exitcodes.CannotProvision), ts.execute("install"))
}

func TestServe(t *testing.T) {
	t.Parallel()

	ts := newTestState(t, nil)
	addrC := make(chan string, 1)
	c := &cmdServe{gs: ts.globalState, address: "127.0.0.1:0", seed: 1, ready: func(a string) { addrC <- a }}

	errC := make(chan error, 1)
	go func() { errC <- c.run(nil, nil) }()

	var addr string
	select {
	case addr = <-addrC:
	case err := <-errC:
		t.Fatalf("serve stopped early: %v", err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not start")
	}

	resp, err := http.Get("http://" + addr + "/")
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "<title>Main Menu</title>")

	resp, err = http.Get("http://" + addr + "/metrics")
	require.NoError(t, err)
	body, err = io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	assert.Contains(t, string(body), `quizsite_requests_total{code="200"`)

	ts.cancel()
	select {
	case err := <-errC:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("serve did not shut down")
	}
}
