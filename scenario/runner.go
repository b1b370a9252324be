package scenario

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	oteltrace "go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/liuxd6825/quizsmoke/common"
	"github.com/liuxd6825/quizsmoke/log"
	"github.com/liuxd6825/quizsmoke/metrics"
	"github.com/liuxd6825/quizsmoke/trace"
)

// Runner executes scenarios against a session.
type Runner struct {
	base     *url.URL
	backend  string
	logger   *log.Logger
	tracer   *trace.Tracer
	metrics  *metrics.Registry
	timeouts *common.TimeoutSettings
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the category logger.
func WithLogger(l *log.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithTracer records a span per scenario and per step.
func WithTracer(t *trace.Tracer) Option {
	return func(r *Runner) { r.tracer = t }
}

// WithMetrics counts scenarios and steps in m.
func WithMetrics(m *metrics.Registry) Option {
	return func(r *Runner) { r.metrics = m }
}

// WithTimeouts sets the navigation, action and expect timeouts.
func WithTimeouts(ts *common.TimeoutSettings) Option {
	return func(r *Runner) { r.timeouts = ts }
}

// NewRunner returns a runner resolving navigation paths against baseURL
// and labelling results with backend.
func NewRunner(baseURL, backend string, opts ...Option) (*Runner, error) {
	base, err := ParseBaseURL(baseURL)
	if err != nil {
		return nil, err
	}
	r := &Runner{
		base:     base,
		backend:  backend,
		logger:   log.NewNullLogger(),
		tracer:   trace.NewTracer(noop.NewTracerProvider(), nil),
		timeouts: common.NewTimeoutSettings(nil),
	}
	for _, o := range opts {
		o(r)
	}
	return r, nil
}

// ParseBaseURL parses an absolute http(s) URL. A missing trailing slash
// is added so relative paths resolve below it.
func ParseBaseURL(s string) (*url.URL, error) {
	u, err := url.Parse(s)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", s, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid base URL %q: scheme must be http or https", s)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid base URL %q: missing host", s)
	}
	if !strings.HasSuffix(u.Path, "/") {
		u.Path += "/"
	}
	return u, nil
}

// URL resolves path against the base URL. "/" is the base URL itself.
func (r *Runner) URL(path string) string {
	ref, err := url.Parse(strings.TrimPrefix(path, "/"))
	if err != nil {
		return r.base.String()
	}
	return r.base.ResolveReference(ref).String()
}

// Run executes the steps of sc in order and stops at the first failure.
func (r *Runner) Run(ctx context.Context, s common.Session, sc Scenario) Result {
	category := "Scenario:" + sc.Name
	start := time.Now()

	ctx, span := r.tracer.Start(ctx, "scenario "+sc.Name, oteltrace.WithAttributes(
		attribute.String("scenario.name", sc.Name),
		attribute.String("scenario.backend", r.backend),
		attribute.String("session.id", s.ID()),
	))

	r.logger.Debugf(category, "start sid:%s backend:%s steps:%d", s.ID(), r.backend, len(sc.Steps))

	res := Result{Scenario: sc.Name, Backend: r.backend, FailedStep: -1}
	for i, st := range sc.Steps {
		sr := r.runStep(ctx, s, category, st)
		res.Steps = append(res.Steps, sr)
		if sr.Err != nil {
			res.FailedStep = i
			res.Err = fmt.Errorf("step %d, %s: %w", i+1, sr.Step, sr.Err)
			break
		}
	}
	res.Passed = res.Err == nil
	res.Duration = time.Since(start)

	trace.End(span, res.Err)
	r.metrics.ObserveScenario(sc.Name, r.backend, res.Passed)
	if res.Passed {
		r.logger.Infof(category, "passed in %s", res.Duration)
	} else {
		r.logger.Errorf(category, "failed in %s: %v", res.Duration, res.Err)
	}
	return res
}

func (r *Runner) runStep(ctx context.Context, s common.Session, category string, st Step) StepResult {
	desc := st.String()
	start := time.Now()

	ctx, span := r.tracer.Start(ctx, string(st.Kind), oteltrace.WithAttributes(
		attribute.String("step.description", desc),
	))
	r.logger.Debugf(category, "%s", desc)

	err := r.do(ctx, s, st)

	sr := StepResult{Step: desc, Kind: st.Kind, Passed: err == nil, Err: err, Duration: time.Since(start)}
	trace.End(span, err)
	r.metrics.ObserveStep(string(st.Kind), sr.Passed, sr.Duration)
	if err != nil {
		r.logger.Debugf(category, "%s failed after %s: %v", desc, sr.Duration, err)
	}
	return sr
}

func (r *Runner) do(ctx context.Context, s common.Session, st Step) error {
	switch st.Kind {
	case KindNavigate:
		ctx, cancel := context.WithTimeout(ctx, r.timeouts.NavigationTimeout())
		defer cancel()
		return s.Navigate(ctx, r.URL(st.Path))
	case KindClick:
		ctx, cancel := context.WithTimeout(ctx, r.timeouts.Timeout())
		defer cancel()
		return s.Click(ctx, st.Locator)
	case KindExpect:
		timeout := st.Timeout
		if st.DefaultTimeout {
			timeout = r.timeouts.ExpectTimeout()
		}
		if timeout == 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeouts.Timeout())
			defer cancel()
		}
		return common.Expect(ctx, s, st.Expectation, common.ExpectOptions{Timeout: timeout})
	default:
		return fmt.Errorf("unknown step kind %q", st.Kind)
	}
}
