// Package fixture scopes browser sessions to a single test or to a whole
// suite, and guarantees they are released on every path.
package fixture

import (
	"context"
	"fmt"
	"sync"

	"github.com/liuxd6825/quizsmoke/common"
)

// Shared is a reference counted session shared by the tests of a suite.
// The session is provisioned by the first Acquire and closed by the Release
// that drops the count to zero. A Shared fixture is single use: once its
// session has been closed, Acquire fails with common.ErrSessionClosed.
type Shared struct {
	prov common.Provisioner
	opts *common.LaunchOptions
	pids *PIDs

	mu    sync.Mutex
	sess  common.Session
	refs  int
	spent bool
}

// NewShared returns a fixture provisioning with prov and opts. pids, if
// not nil, records the browser process of the session.
func NewShared(prov common.Provisioner, opts *common.LaunchOptions, pids *PIDs) *Shared {
	return &Shared{prov: prov, opts: opts, pids: pids}
}

// Acquire returns the shared session, provisioning it on first use, and
// takes a reference that must be given back with Release.
func (f *Shared) Acquire(ctx context.Context) (common.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.spent {
		return nil, common.ErrSessionClosed
	}
	if f.sess == nil {
		s, err := f.prov.Provision(ctx, f.opts)
		if err != nil {
			return nil, err
		}
		f.sess = s
		f.pids.Register(s)
	}
	f.refs++
	return f.sess, nil
}

// Release gives back a reference. The last one closes the session.
func (f *Shared) Release() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.refs == 0 {
		return fmt.Errorf("release without acquire: %w", common.ErrSessionClosed)
	}
	f.refs--
	if f.refs > 0 {
		return nil
	}
	f.spent = true
	s := f.sess
	f.sess = nil
	return s.Close()
}

// Refs returns the number of references held.
func (f *Shared) Refs() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.refs
}

// Session returns the session while a reference is held, nil otherwise.
func (f *Shared) Session() common.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.sess
}
