package fixture

import (
	"context"
	"errors"
	"os"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/liuxd6825/quizsmoke/common"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type fakeSession struct {
	common.SessionState
	id     string
	pid    int
	closes *atomic.Int32
}

func (f *fakeSession) ID() string { return f.id }

func (f *fakeSession) Pid() int { return f.pid }

func (f *fakeSession) Navigate(context.Context, string) error { return f.Check() }

func (f *fakeSession) Title(context.Context) (string, error) { return "", f.Check() }

func (f *fakeSession) Count(context.Context, common.Locator) (int, error) { return 0, f.Check() }

func (f *fakeSession) Click(context.Context, common.Locator) error { return f.Check() }

func (f *fakeSession) Visible(context.Context, common.Locator) (bool, error) { return false, f.Check() }

func (f *fakeSession) Text(context.Context, common.Locator) (string, error) { return "", f.Check() }

func (f *fakeSession) Close() error {
	return f.CloseOnce(func() error {
		f.closes.Add(1)
		return nil
	})
}

type fakeProvisioner struct {
	provisions atomic.Int32
	closes     atomic.Int32
	pid        int
	err        error
}

func (p *fakeProvisioner) Name() string { return "fake" }

func (p *fakeProvisioner) Provision(context.Context, *common.LaunchOptions) (common.Session, error) {
	if p.err != nil {
		return nil, &common.ProvisionError{Backend: "fake", Err: p.err}
	}
	p.provisions.Add(1)
	return &fakeSession{id: "s", pid: p.pid, closes: &p.closes}, nil
}

func TestShared(t *testing.T) {
	t.Parallel()

	prov := &fakeProvisioner{}
	f := NewShared(prov, common.NewLaunchOptions(), nil)
	ctx := context.Background()

	s1, err := f.Acquire(ctx)
	require.NoError(t, err)
	s2, err := f.Acquire(ctx)
	require.NoError(t, err)
	assert.Same(t, s1, s2)
	assert.Equal(t, int32(1), prov.provisions.Load())
	assert.Equal(t, 2, f.Refs())

	require.NoError(t, f.Release())
	assert.Equal(t, int32(0), prov.closes.Load(), "closed while still referenced")
	require.NoError(t, s1.Navigate(ctx, "http://x"))

	require.NoError(t, f.Release())
	assert.Equal(t, int32(1), prov.closes.Load())
	assert.Nil(t, f.Session())
	assert.ErrorIs(t, s1.Navigate(ctx, "http://x"), common.ErrSessionClosed)

	_, err = f.Acquire(ctx)
	assert.ErrorIs(t, err, common.ErrSessionClosed)
	assert.Equal(t, int32(1), prov.provisions.Load(), "a spent fixture must not provision again")

	assert.ErrorIs(t, f.Release(), common.ErrSessionClosed)
}

func TestSharedProvisionFailure(t *testing.T) {
	t.Parallel()

	prov := &fakeProvisioner{err: errors.New("no browser")}
	f := NewShared(prov, common.NewLaunchOptions(), nil)

	_, err := f.Acquire(context.Background())
	assert.Equal(t, common.ProvisionFailure, common.KindOf(err))
	assert.Zero(t, f.Refs())
}

func TestPerTest(t *testing.T) {
	t.Parallel()

	prov := &fakeProvisioner{pid: os.Getpid()}
	pids := &PIDs{}
	var s common.Session
	t.Run("owner", func(t *testing.T) {
		s = PerTest(t, prov, common.NewLaunchOptions(), pids)
		require.NoError(t, s.Navigate(context.Background(), "http://x"))
	})
	assert.Equal(t, int32(1), prov.closes.Load())
	assert.ErrorIs(t, s.Navigate(context.Background(), "http://x"), common.ErrSessionClosed)
	assert.Equal(t, []int{os.Getpid()}, pids.All())
}

func TestUse(t *testing.T) {
	t.Parallel()

	prov := &fakeProvisioner{}
	f := NewShared(prov, common.NewLaunchOptions(), nil)
	hold, err := f.Acquire(context.Background())
	require.NoError(t, err)

	for _, name := range []string{"first", "second"} {
		t.Run(name, func(t *testing.T) {
			s := Use(t, f)
			assert.Same(t, hold, s)
			assert.Equal(t, 2, f.Refs())
		})
	}
	assert.Equal(t, 1, f.Refs())
	require.NoError(t, f.Release())
	assert.Equal(t, int32(1), prov.provisions.Load())
	assert.Equal(t, int32(1), prov.closes.Load())
}

func TestPIDs(t *testing.T) {
	t.Parallel()

	var nilPIDs *PIDs
	nilPIDs.Register(&fakeSession{pid: 1})

	p := &PIDs{}
	p.Register(&fakeSession{pid: 0})
	p.Register(&fakeSession{pid: os.Getpid()})
	assert.Equal(t, []int{os.Getpid()}, p.All())
	assert.Equal(t, []int{os.Getpid()}, p.Running())
}
