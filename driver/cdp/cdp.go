// Package cdp drives Chromium over the DevTools protocol with chromedp.
package cdp

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/chromedp"
	"github.com/tidwall/gjson"

	"github.com/liuxd6825/quizsmoke/chromium"
	"github.com/liuxd6825/quizsmoke/common"
	"github.com/liuxd6825/quizsmoke/env"
	"github.com/liuxd6825/quizsmoke/log"
)

// Name of the backend.
const Name = "cdp"

// Provisioner launches Chromium, or connects to a running one, through
// chromedp.
type Provisioner struct {
	logger *log.Logger
	lookup env.LookupFunc
}

// New returns a chromedp provisioner.
func New(logger *log.Logger, lookup env.LookupFunc) *Provisioner {
	return &Provisioner{logger: logger, lookup: lookup}
}

// Name implements common.Provisioner.
func (p *Provisioner) Name() string { return Name }

// Provision implements common.Provisioner.
func (p *Provisioner) Provision(ctx context.Context, opts *common.LaunchOptions) (_ common.Session, rerr error) {
	if err := opts.Validate(); err != nil {
		return nil, &common.ProvisionError{Backend: Name, Err: err}
	}

	var (
		allocCtx    context.Context
		allocCancel context.CancelFunc
	)
	if opts.IsRemote() {
		allocCtx, allocCancel = chromedp.NewRemoteAllocator(context.Background(), opts.RemoteURL)
	} else {
		execOpts, err := p.execAllocatorOptions(opts)
		if err != nil {
			return nil, &common.ProvisionError{Backend: Name, Err: err}
		}
		allocCtx, allocCancel = chromedp.NewExecAllocator(context.Background(), execOpts...)
	}

	ctxOpts := []chromedp.ContextOption{
		chromedp.WithLogf(func(format string, args ...any) { p.logger.Debugf("cdp:Browser", format, args...) }),
		chromedp.WithErrorf(func(format string, args ...any) { p.logger.Errorf("cdp:Browser", format, args...) }),
	}
	if opts.Debug {
		ctxOpts = append(ctxOpts, chromedp.WithDebugf(func(format string, args ...any) {
			p.logger.Tracef("cdp:Protocol", format, args...)
		}))
	}
	tabCtx, tabCancel := chromedp.NewContext(allocCtx, ctxOpts...)
	defer func() {
		if rerr != nil {
			tabCancel()
			allocCancel()
		}
	}()

	if err := startBrowser(ctx, tabCtx, opts.Timeout, func(c context.Context) error {
		return chromedp.Run(c)
	}); err != nil {
		return nil, &common.ProvisionError{Backend: Name, Err: err}
	}

	c := chromedp.FromContext(tabCtx)
	s := &Session{
		ctx:         tabCtx,
		cancel:      tabCancel,
		allocCancel: allocCancel,
		remote:      opts.IsRemote(),
		timeouts:    common.NewTimeoutSettings(nil),
		logger:      p.logger,
		slowMo:      opts.SlowMo,
	}
	s.timeouts.SetDefaultTimeout(opts.Timeout)
	if c.Target != nil {
		s.id = string(c.Target.TargetID)
	}
	if c.Browser != nil {
		if proc := c.Browser.Process(); proc != nil {
			s.pid = proc.Pid
		}
	}
	p.logger.Debugf("cdp:Provision", "sid:%s pid:%d remote:%t", s.id, s.pid, s.remote)

	return s, nil
}

// startBrowser makes the first run on tabCtx, which starts the browser or
// connects to it. The browser lives as long as the context of that first
// run, so it gets tabCtx itself and startup is bounded from outside: on
// timeout or when ctx is done the error is returned and the caller cancels
// tabCtx.
func startBrowser(ctx, tabCtx context.Context, timeout time.Duration, run func(context.Context) error) error {
	done := make(chan error, 1)
	go func() { done <- run(tabCtx) }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("browser did not start within %s: %w", timeout, context.DeadlineExceeded)
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Provisioner) execAllocatorOptions(opts *common.LaunchOptions) ([]chromedp.ExecAllocatorOption, error) {
	path := opts.ExecutablePath
	if path == "" {
		path = chromium.ExecutablePath(p.lookup)
	}
	if path == "" {
		return nil, errors.New("no Chromium based browser found, set " + env.ExecutablePath)
	}

	// chromedp brings its own remote debugging and user data dir flags.
	out := []chromedp.ExecAllocatorOption{chromedp.ExecPath(path)}
	for name, value := range chromium.PrepareFlags(opts) {
		switch value.(type) {
		case string, bool:
			out = append(out, chromedp.Flag(name, value))
		default:
			return nil, fmt.Errorf(`invalid browser command line flag: "%s=%v"`, name, value)
		}
	}
	if len(opts.Env) > 0 {
		envs := make([]string, 0, len(opts.Env))
		for k, v := range opts.Env {
			envs = append(envs, k+"="+v)
		}
		out = append(out, chromedp.Env(envs...))
	}
	return out, nil
}

// Session is a chromedp browser tab.
type Session struct {
	common.SessionState

	id          string
	pid         int
	remote      bool
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	timeouts    *common.TimeoutSettings
	logger      *log.Logger
	slowMo      time.Duration
}

// ID implements common.Session.
func (s *Session) ID() string { return s.id }

// Pid implements common.ProcessOwner. It is zero for remote browsers.
func (s *Session) Pid() int { return s.pid }

// Alive implements common.Prober.
func (s *Session) Alive(context.Context) bool {
	if s.pid == 0 {
		return !s.Closed()
	}
	return chromium.ProcessRunning(s.pid)
}

// run executes actions on the tab, bounded by timeout and ctx.
func (s *Session) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	if err := s.Check(); err != nil {
		return err
	}
	rctx, cancel := context.WithTimeout(s.ctx, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if s.slowMo > 0 {
		actions = append([]chromedp.Action{chromedp.Sleep(s.slowMo)}, actions...)
	}
	err := chromedp.Run(rctx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

// Navigate implements common.Session. chromedp.Navigate returns once the
// page fired its load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	s.logger.Debugf("cdp:Navigate", "sid:%s url:%q", s.id, url)
	err := s.run(ctx, s.timeouts.NavigationTimeout(), chromedp.Navigate(url))
	if err != nil {
		if errors.Is(err, common.ErrSessionClosed) {
			return err
		}
		return &common.NavigationError{URL: url, Err: err}
	}
	return nil
}

// Title implements common.Session.
func (s *Session) Title(ctx context.Context) (string, error) {
	var title string
	if err := s.run(ctx, s.timeouts.Timeout(), chromedp.Title(&title)); err != nil {
		return "", err
	}
	return title, nil
}

// probe evaluates loc in the page and returns the raw JSON result of
// probeScript.
func (s *Session) probe(ctx context.Context, loc common.Locator) (gjson.Result, error) {
	xp, err := loc.XPath()
	if err != nil {
		return gjson.Result{}, err
	}
	var raw []byte
	if err := s.run(ctx, s.timeouts.Timeout(), chromedp.Evaluate(probeScript(xp), &raw)); err != nil {
		return gjson.Result{}, err
	}
	return gjson.ParseBytes(raw), nil
}

// Count implements common.Session.
func (s *Session) Count(ctx context.Context, loc common.Locator) (int, error) {
	res, err := s.probe(ctx, loc)
	if err != nil {
		return 0, err
	}
	return int(res.Get("count").Int()), nil
}

func (s *Session) found(ctx context.Context, loc common.Locator) (gjson.Result, error) {
	res, err := s.probe(ctx, loc)
	if err != nil {
		return res, err
	}
	if res.Get("count").Int() == 0 {
		return res, &common.ElementNotFoundError{Locator: loc}
	}
	return res, nil
}

// Click implements common.Session.
func (s *Session) Click(ctx context.Context, loc common.Locator) error {
	if _, err := s.found(ctx, loc); err != nil {
		return err
	}
	xp, _ := loc.XPath()
	var nodes []*cdp.Node
	err := s.run(ctx, s.timeouts.Timeout(),
		chromedp.Nodes(xp, &nodes, chromedp.BySearch, chromedp.NodeVisible),
		chromedp.ActionFunc(func(ctx context.Context) error {
			if len(nodes) == 0 {
				return &common.ElementNotFoundError{Locator: loc}
			}
			return chromedp.MouseClickNode(nodes[0]).Do(ctx)
		}),
	)
	if err != nil {
		return fmt.Errorf("clicking %s: %w", loc, err)
	}
	s.logger.Debugf("cdp:Click", "sid:%s %s", s.id, loc)
	return nil
}

// Visible implements common.Session.
func (s *Session) Visible(ctx context.Context, loc common.Locator) (bool, error) {
	res, err := s.found(ctx, loc)
	if err != nil {
		return false, err
	}
	return res.Get("visible").Bool(), nil
}

// Text implements common.Session.
func (s *Session) Text(ctx context.Context, loc common.Locator) (string, error) {
	res, err := s.found(ctx, loc)
	if err != nil {
		return "", err
	}
	return common.NormalizeSpace(res.Get("text").String()), nil
}

// Close implements common.Session. Closing a remote session only
// disconnects from the browser.
func (s *Session) Close() error {
	return s.CloseOnce(func() error {
		s.logger.Debugf("cdp:Close", "sid:%s pid:%d", s.id, s.pid)
		var err error
		if !s.remote {
			err = chromedp.Cancel(s.ctx)
		}
		s.cancel()
		s.allocCancel()
		if err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("closing browser: %w", err)
		}
		return nil
	})
}

var (
	_ common.Session      = &Session{}
	_ common.ProcessOwner = &Session{}
	_ common.Prober       = &Session{}
)
