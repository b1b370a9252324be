package common

import (
	"context"
	"sync"
	"sync/atomic"
)

// Session is a handle to one running browser page or WebDriver session.
// A session is used by one test at a time; Close is idempotent and every
// other method returns ErrSessionClosed once it has been called.
type Session interface {
	ID() string
	// Navigate loads url and blocks until the engine reports the load as
	// complete.
	Navigate(ctx context.Context, url string) error
	Title(ctx context.Context) (string, error)
	// Count returns the number of elements matched by loc.
	Count(ctx context.Context, loc Locator) (int, error)
	// Click clicks the first element matched by loc in document order.
	Click(ctx context.Context, loc Locator) error
	Visible(ctx context.Context, loc Locator) (bool, error)
	Text(ctx context.Context, loc Locator) (string, error)
	Close() error
}

// Provisioner starts sessions for one automation backend.
type Provisioner interface {
	Name() string
	Provision(ctx context.Context, opts *LaunchOptions) (Session, error)
}

// ProcessOwner is implemented by sessions that spawned a local browser.
type ProcessOwner interface {
	Pid() int
}

// SessionState tracks whether a session has been closed. Embed it in
// session implementations and call Check at the start of every operation.
type SessionState struct {
	closed    atomic.Bool
	closeOnce sync.Once
	closeErr  error
}

// Check returns ErrSessionClosed after Close has been called.
func (s *SessionState) Check() error {
	if s.closed.Load() {
		return ErrSessionClosed
	}
	return nil
}

// Closed reports whether the session has been closed.
func (s *SessionState) Closed() bool {
	return s.closed.Load()
}

// CloseOnce marks the state closed and runs fn exactly once. Later calls
// return the error of the first one.
func (s *SessionState) CloseOnce(fn func() error) error {
	s.closeOnce.Do(func() {
		s.closed.Store(true)
		if fn != nil {
			s.closeErr = fn()
		}
	})
	return s.closeErr
}
