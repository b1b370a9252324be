package scenario

import (
	"context"
	"errors"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/liuxd6825/quizsmoke/common"
	"github.com/liuxd6825/quizsmoke/driver/static"
	"github.com/liuxd6825/quizsmoke/log"
	"github.com/liuxd6825/quizsmoke/metrics"
	"github.com/liuxd6825/quizsmoke/quizsite"
	"github.com/liuxd6825/quizsmoke/testutils"
	"github.com/liuxd6825/quizsmoke/trace"
)

func newSite(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(quizsite.NewServer(quizsite.DefaultBank()))
	t.Cleanup(srv.Close)
	return srv.URL + "/"
}

func fastTimeouts() *common.TimeoutSettings {
	ts := common.NewTimeoutSettings(nil)
	ts.SetDefaultTimeout(5 * time.Second)
	ts.SetDefaultExpectTimeout(500 * time.Millisecond)
	return ts
}

// countingProvisioner counts the sessions it hands out and closes.
type countingProvisioner struct {
	common.Provisioner
	provisions atomic.Int32
	closes     atomic.Int32
	err        error
}

func (p *countingProvisioner) Provision(ctx context.Context, opts *common.LaunchOptions) (common.Session, error) {
	if p.err != nil {
		return nil, &common.ProvisionError{Backend: p.Name(), Err: p.err}
	}
	s, err := p.Provisioner.Provision(ctx, opts)
	if err != nil {
		return nil, err
	}
	p.provisions.Add(1)
	return &countingSession{Session: s, closes: &p.closes}, nil
}

type countingSession struct {
	common.Session
	closes *atomic.Int32
	once   atomic.Bool
}

func (s *countingSession) Close() error {
	if s.once.CompareAndSwap(false, true) {
		s.closes.Add(1)
	}
	return s.Session.Close()
}

func TestParseBaseURL(t *testing.T) {
	t.Parallel()

	testCases := []struct {
		in     string
		want   string
		expErr bool
	}{
		{in: "http://localhost:8000/", want: "http://localhost:8000/"},
		{in: "http://localhost:8000", want: "http://localhost:8000/"},
		{in: "https://quiz.example.com/app", want: "https://quiz.example.com/app/"},
		{in: "localhost:8000", expErr: true},
		{in: "ftp://quiz.example.com/", expErr: true},
		{in: "http://", expErr: true},
		{in: "http://%zz", expErr: true},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.in, func(t *testing.T) {
			t.Parallel()
			u, err := ParseBaseURL(tc.in)
			if tc.expErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, u.String())
		})
	}
}

func TestRunnerURL(t *testing.T) {
	t.Parallel()

	r, err := NewRunner("http://localhost:8000/app", "static")
	require.NoError(t, err)
	assert.Equal(t, "http://localhost:8000/app/", r.URL("/"))
	assert.Equal(t, "http://localhost:8000/app/general.html", r.URL("/general.html"))
	assert.Equal(t, "http://localhost:8000/app/quiz_data.json?count=2", r.URL("quiz_data.json?count=2"))
}

func TestStepString(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `navigate to "/"`, Navigate("/").String())
	assert.Equal(t, `click text="General"`, Click(common.Text("General")).String())
	assert.Equal(t, `expect title to be "NDT Categories"`, Eventually(common.TitleEquals("NDT Categories")).String())
	assert.Equal(t, `expect #q-number to contain text "Question" within 10s`,
		Expect(common.ElementTextContains(common.ID("q-number"), "Question"), 10*time.Second).String())
	assert.Equal(t, `check title to be "Main Menu"`, Expect(common.TitleEquals("Main Menu"), 0).String())
}

func TestSelect(t *testing.T) {
	t.Parallel()

	all := Quiz()
	got, err := Select(all)
	require.NoError(t, err)
	assert.Equal(t, []string{"has-title", "get-started-link", "quiz-question", "root-idempotent"}, Names(got))

	got, err = Select(all, "root-idempotent", "has-title")
	require.NoError(t, err)
	assert.Equal(t, []string{"root-idempotent", "has-title"}, Names(got))

	_, err = Select(all, "checkout")
	var uerr *UnknownScenarioError
	require.ErrorAs(t, err, &uerr)
	assert.Equal(t, "checkout", uerr.Name)
}

func TestRunQuizScenarios(t *testing.T) {
	t.Parallel()

	base := newSite(t)
	ctx := context.Background()
	prov := static.New(log.NewNullLogger(), nil)

	testCases := []struct {
		scenario Scenario
		passed   bool
	}{
		{QuizHasTitle(), true},
		{QuizGetStartedLink(), true},
		{QuizRootIdempotent(), true},
	}
	for _, tc := range testCases {
		tc := tc
		t.Run(tc.scenario.Name, func(t *testing.T) {
			t.Parallel()

			r, err := NewRunner(base, static.Name, WithTimeouts(fastTimeouts()))
			require.NoError(t, err)
			s, err := prov.Provision(ctx, common.NewLaunchOptions())
			require.NoError(t, err)
			defer s.Close() //nolint:errcheck

			res := r.Run(ctx, s, tc.scenario)
			assert.Equal(t, tc.passed, res.Passed, "%v", res.Err)
			assert.Equal(t, -1, res.FailedStep)
			assert.Len(t, res.Steps, len(tc.scenario.Steps))
			assert.Equal(t, static.Name, res.Backend)
		})
	}
}

func TestRunStopsAtFirstFailure(t *testing.T) {
	t.Parallel()

	base := newSite(t)
	ctx := context.Background()
	logger, hook := testutils.NewLogger()
	r, err := NewRunner(base, static.Name,
		WithTimeouts(fastTimeouts()),
		WithLogger(log.New(logger, "")),
	)
	require.NoError(t, err)

	s, err := static.New(log.NewNullLogger(), nil).Provision(ctx, common.NewLaunchOptions())
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	// Without a script engine the question counter never leaves "Loading...".
	sc := QuizQuestion()
	sc.Steps[4].Timeout = 300 * time.Millisecond
	sc.Steps = append(sc.Steps, Navigate("/"))

	res := r.Run(ctx, s, sc)
	require.False(t, res.Passed)
	assert.Equal(t, 4, res.FailedStep)
	assert.Len(t, res.Steps, 5)
	assert.Equal(t, common.AssertionTimeout, res.Kind())

	var terr *common.AssertionTimeoutError
	require.ErrorAs(t, res.Err, &terr)
	assert.Equal(t, "Loading...", terr.Observed)
	assert.True(t, hook.Contains("failed in"))
}

func TestRunMissingElement(t *testing.T) {
	t.Parallel()

	base := newSite(t)
	ctx := context.Background()
	r, err := NewRunner(base, static.Name, WithTimeouts(fastTimeouts()))
	require.NoError(t, err)
	s, err := static.New(log.NewNullLogger(), nil).Provision(ctx, common.NewLaunchOptions())
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	res := r.Run(ctx, s, Scenario{Name: "missing", Steps: []Step{
		Navigate("/"),
		Click(common.Text("Advanced")),
	}})
	assert.Equal(t, common.ElementNotFound, res.Kind())
	assert.Equal(t, 1, res.FailedStep)
}

func TestRunRecordsSpansAndMetrics(t *testing.T) {
	t.Parallel()

	base := newSite(t)
	ctx := context.Background()

	rec := tracetest.NewSpanRecorder()
	tp := trace.NewSDKTracerProvider(sdktrace.WithSpanProcessor(rec))
	defer tp.Shutdown(ctx) //nolint:errcheck
	m := metrics.NewRegistry()

	r, err := NewRunner(base, static.Name,
		WithTimeouts(fastTimeouts()),
		WithTracer(trace.NewTracer(tp, nil)),
		WithMetrics(m),
	)
	require.NoError(t, err)
	s, err := static.New(log.NewNullLogger(), nil).Provision(ctx, common.NewLaunchOptions())
	require.NoError(t, err)
	defer s.Close() //nolint:errcheck

	res := r.Run(ctx, s, QuizHasTitle())
	require.True(t, res.Passed, "%v", res.Err)

	spans := rec.Ended()
	require.Len(t, spans, 3)
	assert.Equal(t, "navigate", spans[0].Name())
	assert.Equal(t, "expect", spans[1].Name())
	assert.Equal(t, "scenario has-title", spans[2].Name())

	n, err := testutil.GatherAndCount(m.Gatherer(), "quizsmoke_scenarios_total")
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRunAll(t *testing.T) {
	t.Parallel()

	base := newSite(t)
	scenarios := []Scenario{QuizHasTitle(), QuizGetStartedLink(), QuizRootIdempotent()}

	t.Run("per_scenario", func(t *testing.T) {
		t.Parallel()

		prov := &countingProvisioner{Provisioner: static.New(log.NewNullLogger(), nil)}
		r, err := NewRunner(base, static.Name, WithTimeouts(fastTimeouts()))
		require.NoError(t, err)

		results, err := r.RunAll(context.Background(), prov, common.NewLaunchOptions(), scenarios, false, nil)
		require.NoError(t, err)
		require.Len(t, results, 3)
		for _, res := range results {
			assert.True(t, res.Passed, "%s: %v", res.Scenario, res.Err)
		}
		assert.Equal(t, int32(3), prov.provisions.Load())
		assert.Equal(t, int32(3), prov.closes.Load())
	})
	t.Run("shared", func(t *testing.T) {
		t.Parallel()

		prov := &countingProvisioner{Provisioner: static.New(log.NewNullLogger(), nil)}
		r, err := NewRunner(base, static.Name, WithTimeouts(fastTimeouts()))
		require.NoError(t, err)

		results, err := r.RunAll(context.Background(), prov, common.NewLaunchOptions(), scenarios, true, nil)
		require.NoError(t, err)
		require.Len(t, results, 3)
		for _, res := range results {
			assert.True(t, res.Passed, "%s: %v", res.Scenario, res.Err)
		}
		assert.Equal(t, int32(1), prov.provisions.Load())
		assert.Equal(t, int32(1), prov.closes.Load())
	})
	t.Run("provision_failure", func(t *testing.T) {
		t.Parallel()

		for _, shared := range []bool{false, true} {
			prov := &countingProvisioner{
				Provisioner: static.New(log.NewNullLogger(), nil),
				err:         errors.New("no browser"),
			}
			r, err := NewRunner(base, static.Name)
			require.NoError(t, err)

			results, err := r.RunAll(context.Background(), prov, common.NewLaunchOptions(), scenarios, shared, nil)
			require.NoError(t, err)
			require.Len(t, results, 3)
			for _, res := range results {
				assert.False(t, res.Passed)
				assert.Equal(t, common.ProvisionFailure, res.Kind())
			}
		}
	})
}
