package common

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// ExpectOptions bounds the evaluation of an Expectation.
type ExpectOptions struct {
	// Timeout of zero evaluates the expectation once.
	Timeout time.Duration
	// Interval between two evaluations, DefaultPollInterval when zero.
	Interval time.Duration
}

// Expect evaluates exp against s.
//
// With a zero timeout a failed predicate yields an AssertionMismatchError.
// Otherwise exp is polled until it holds or the timeout elapses, which
// yields an AssertionTimeoutError carrying the last observation. Missing
// elements are retried while polling; a closed session or a canceled ctx
// stops the poll right away.
func Expect(ctx context.Context, s Session, exp Expectation, opts ExpectOptions) error {
	if opts.Timeout < 0 {
		opts.Timeout = 0
	}
	if opts.Timeout == 0 {
		obs, err := exp.Evaluate(ctx, s)
		if err != nil {
			return err
		}
		if !obs.OK {
			return &AssertionMismatchError{Expectation: exp.Describe(), Observed: obs.Value}
		}
		return nil
	}

	interval := opts.Interval
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	pctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var (
		last    Observation
		hasLast bool
		lastErr error
	)
	op := func() error {
		obs, err := exp.Evaluate(pctx, s)
		if err != nil {
			if errors.Is(err, ErrSessionClosed) {
				return backoff.Permanent(err)
			}
			lastErr = err
			return err
		}
		last, hasLast, lastErr = obs, true, nil
		if !obs.OK {
			return errNotYet
		}
		return nil
	}
	b := backoff.WithContext(backoff.NewConstantBackOff(interval), pctx)
	err := backoff.Retry(op, b)
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrSessionClosed) {
		return err
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	terr := &AssertionTimeoutError{
		Expectation: exp.Describe(),
		Timeout:     opts.Timeout,
		Observed:    last.Value,
		HasObserved: hasLast,
	}
	if lastErr != nil && !errors.Is(lastErr, context.DeadlineExceeded) {
		terr.LastErr = lastErr
	}
	return terr
}

var errNotYet = errors.New("expectation not met yet")
