package scenario

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/liuxd6825/quizsmoke/common"
	"github.com/liuxd6825/quizsmoke/fixture"
)

// RunAll runs scenarios with sessions from prov. With shared set, one
// session serves every scenario and is closed after the last one;
// otherwise each scenario gets its own session, closed right after it.
// A session that cannot be provisioned fails the scenarios it was meant
// for. The returned error joins the teardown failures.
func (r *Runner) RunAll(
	ctx context.Context, prov common.Provisioner, opts *common.LaunchOptions,
	scenarios []Scenario, shared bool, pids *fixture.PIDs,
) ([]Result, error) {
	if shared {
		return r.runShared(ctx, prov, opts, scenarios, pids)
	}

	results := make([]Result, 0, len(scenarios))
	var errs []error
	for _, sc := range scenarios {
		if err := ctx.Err(); err != nil {
			results = append(results, r.failed(sc, err))
			continue
		}
		s, err := r.provision(ctx, prov, opts)
		if err != nil {
			results = append(results, r.failed(sc, err))
			continue
		}
		pids.Register(s)
		results = append(results, r.Run(ctx, s, sc))
		if err := s.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing session of %s: %w", sc.Name, err))
		}
	}
	return results, errors.Join(errs...)
}

func (r *Runner) runShared(
	ctx context.Context, prov common.Provisioner, opts *common.LaunchOptions,
	scenarios []Scenario, pids *fixture.PIDs,
) ([]Result, error) {
	results := make([]Result, 0, len(scenarios))

	pctx, cancel := context.WithTimeout(ctx, launchTimeout(opts))
	defer cancel()
	f := fixture.NewShared(prov, opts, pids)
	if _, err := f.Acquire(pctx); err != nil {
		for _, sc := range scenarios {
			results = append(results, r.failed(sc, err))
		}
		return results, nil
	}
	r.logger.Debugf("Scenario:RunAll", "shared %s session for %d scenarios", prov.Name(), len(scenarios))

	var errs []error
	for _, sc := range scenarios {
		s, err := f.Acquire(ctx)
		if err != nil {
			results = append(results, r.failed(sc, err))
			continue
		}
		results = append(results, r.Run(ctx, s, sc))
		if err := f.Release(); err != nil {
			errs = append(errs, err)
		}
	}
	if err := f.Release(); err != nil {
		errs = append(errs, fmt.Errorf("closing shared session: %w", err))
	}
	return results, errors.Join(errs...)
}

func (r *Runner) provision(ctx context.Context, prov common.Provisioner, opts *common.LaunchOptions) (common.Session, error) {
	ctx, cancel := context.WithTimeout(ctx, launchTimeout(opts))
	defer cancel()
	return prov.Provision(ctx, opts)
}

func launchTimeout(opts *common.LaunchOptions) time.Duration {
	if opts.Timeout > 0 {
		return opts.Timeout
	}
	return common.DefaultTimeout
}

func (r *Runner) failed(sc Scenario, err error) Result {
	r.logger.Errorf("Scenario:"+sc.Name, "not run: %v", err)
	r.metrics.ObserveScenario(sc.Name, r.backend, false)
	return Result{Scenario: sc.Name, Backend: r.backend, Err: err, FailedStep: -1}
}
