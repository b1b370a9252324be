package fixture

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/liuxd6825/quizsmoke/common"
)

// PerTest provisions a session owned by t. It is closed when t and its
// subtests complete, whatever their outcome. A provisioning failure fails
// t immediately.
func PerTest(t testing.TB, prov common.Provisioner, opts *common.LaunchOptions, pids *PIDs) common.Session {
	t.Helper()

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = common.DefaultTimeout
	}
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	s, err := prov.Provision(ctx, opts)
	require.NoError(t, err, "provisioning %s session", prov.Name())
	pids.Register(s)

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing %s session %s: %v", prov.Name(), s.ID(), err)
		}
	})
	return s
}

// Use acquires the shared session for t and releases it when t completes.
func Use(t testing.TB, f *Shared) common.Session {
	t.Helper()

	s, err := f.Acquire(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := f.Release(); err != nil {
			t.Errorf("releasing shared session: %v", err)
		}
	})
	return s
}
