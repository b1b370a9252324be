// Package pw drives Chromium with github.com/playwright-community/playwright-go.
// Each session owns a Playwright driver, a browser and a single page.
package pw

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/playwright-community/playwright-go"

	"github.com/liuxd6825/quizsmoke/chromium"
	"github.com/liuxd6825/quizsmoke/common"
	"github.com/liuxd6825/quizsmoke/env"
	"github.com/liuxd6825/quizsmoke/log"
)

// Name of the backend.
const Name = "playwright"

// Provisioner starts Playwright sessions.
type Provisioner struct {
	logger *log.Logger
}

// New returns a Playwright provisioner.
func New(logger *log.Logger) *Provisioner {
	return &Provisioner{logger: logger}
}

// Name implements common.Provisioner.
func (p *Provisioner) Name() string { return Name }

// Install downloads the Playwright driver and Chromium.
func Install(verbose bool) error {
	return playwright.Install(&playwright.RunOptions{ //nolint:wrapcheck
		Browsers: []string{"chromium"},
		Verbose:  verbose,
	})
}

// DriverInstalled reports whether a Playwright driver is present, either
// in PLAYWRIGHT_DRIVER_PATH or in the user cache directory Install uses.
func DriverInstalled(lookup env.LookupFunc) bool {
	dir, ok := lookup("PLAYWRIGHT_DRIVER_PATH")
	if !ok || dir == "" {
		cache, err := os.UserCacheDir()
		if err != nil {
			return false
		}
		dir = filepath.Join(cache, "ms-playwright-go")
	}
	entries, err := os.ReadDir(dir)
	return err == nil && len(entries) > 0
}

// LaunchOptions maps opts to Playwright's launch options. Playwright
// decides on headless mode itself, so the headless flag is not passed as an
// argument.
func LaunchOptions(opts *common.LaunchOptions) (playwright.BrowserTypeLaunchOptions, error) {
	lopts := *opts
	lopts.IgnoreDefaultArgs = append(append([]string{}, opts.IgnoreDefaultArgs...), "headless")
	args, err := chromium.ParseArgs(chromium.PrepareFlags(&lopts))
	if err != nil {
		return playwright.BrowserTypeLaunchOptions{}, err
	}
	out := playwright.BrowserTypeLaunchOptions{
		Args:            args,
		Headless:        playwright.Bool(opts.Headless),
		ChromiumSandbox: playwright.Bool(!opts.NoSandbox),
		Timeout:         playwright.Float(ms(opts.Timeout)),
	}
	if opts.ExecutablePath != "" {
		out.ExecutablePath = playwright.String(opts.ExecutablePath)
	}
	if opts.SlowMo > 0 {
		out.SlowMo = playwright.Float(ms(opts.SlowMo))
	}
	if len(opts.Env) > 0 {
		out.Env = opts.Env
	}
	return out, nil
}

// Provision implements common.Provisioner.
func (p *Provisioner) Provision(ctx context.Context, opts *common.LaunchOptions) (_ common.Session, rerr error) {
	if err := opts.Validate(); err != nil {
		return nil, &common.ProvisionError{Backend: Name, Err: err}
	}
	if err := ctx.Err(); err != nil {
		return nil, &common.ProvisionError{Backend: Name, Err: err}
	}
	lopts, err := LaunchOptions(opts)
	if err != nil {
		return nil, &common.ProvisionError{Backend: Name, Err: err}
	}

	var pw *playwright.Playwright
	driverPid, err := chromium.TrackSpawn(os.Getpid(), "node", func() error {
		var err error
		pw, err = playwright.Run(&playwright.RunOptions{SkipInstallBrowsers: true, Verbose: opts.Debug})
		return err
	})
	if err != nil {
		return nil, &common.ProvisionError{Backend: Name, Err: fmt.Errorf("starting playwright driver: %w", err)}
	}
	defer func() {
		if rerr != nil {
			_ = pw.Stop()
		}
	}()

	var browser playwright.Browser
	if opts.IsRemote() {
		browser, err = pw.Chromium.ConnectOverCDP(opts.RemoteURL, playwright.BrowserTypeConnectOverCDPOptions{
			Timeout: lopts.Timeout,
		})
	} else {
		browser, err = pw.Chromium.Launch(lopts)
	}
	if err != nil {
		return nil, &common.ProvisionError{Backend: Name, Err: err}
	}
	page, err := browser.NewPage()
	if err != nil {
		_ = browser.Close()
		return nil, &common.ProvisionError{Backend: Name, Err: fmt.Errorf("opening page: %w", err)}
	}

	s := &Session{
		id:       uuid.NewString(),
		pw:       pw,
		browser:  browser,
		page:     page,
		remote:   opts.IsRemote(),
		timeouts: common.NewTimeoutSettings(nil),
		logger:   p.logger,
	}
	if !s.remote {
		// The Playwright driver launches the browser as its child.
		s.pid = chromium.FirstChild(driverPid)
	}
	s.timeouts.SetDefaultTimeout(opts.Timeout)
	p.logger.Debugf("pw:Provision", "sid:%s browser:%s pid:%d", s.id, browser.Version(), s.pid)

	return s, nil
}

// Session is a Playwright page in its own browser.
type Session struct {
	common.SessionState

	id       string
	pid      int
	pw       *playwright.Playwright
	browser  playwright.Browser
	page     playwright.Page
	remote   bool
	timeouts *common.TimeoutSettings
	logger   *log.Logger
}

// ID implements common.Session.
func (s *Session) ID() string { return s.id }

// Pid implements common.ProcessOwner. It is zero for remote browsers.
func (s *Session) Pid() int { return s.pid }

// Alive implements common.Prober. A launched browser is alive while its
// process runs.
func (s *Session) Alive(context.Context) bool {
	if s.pid != 0 {
		return chromium.ProcessRunning(s.pid)
	}
	return s.browser.IsConnected()
}

func (s *Session) timeout(ctx context.Context, def time.Duration) *float64 {
	return playwright.Float(ms(common.TimeoutFromContext(ctx, def)))
}

// Navigate implements common.Session. It waits for the load event.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.Check(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return &common.NavigationError{URL: url, Err: err}
	}
	s.logger.Debugf("pw:Navigate", "sid:%s url:%q", s.id, url)
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateLoad,
		Timeout:   s.timeout(ctx, s.timeouts.NavigationTimeout()),
	})
	if err != nil {
		return &common.NavigationError{URL: url, Err: friendly(err)}
	}
	return nil
}

// Title implements common.Session.
func (s *Session) Title(ctx context.Context) (string, error) {
	if err := s.Check(); err != nil {
		return "", err
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.page.Title() //nolint:wrapcheck
}

func (s *Session) locator(loc common.Locator) (playwright.Locator, error) {
	xp, err := loc.XPath()
	if err != nil {
		return nil, err
	}
	return s.page.Locator("xpath=" + xp), nil
}

// first resolves loc to its first match, failing when there is none.
func (s *Session) first(ctx context.Context, loc common.Locator) (playwright.Locator, error) {
	if err := s.Check(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	l, err := s.locator(loc)
	if err != nil {
		return nil, err
	}
	n, err := l.Count()
	if err != nil {
		return nil, fmt.Errorf("counting %s: %w", loc, err)
	}
	if n == 0 {
		return nil, &common.ElementNotFoundError{Locator: loc}
	}
	return l.First(), nil
}

// Count implements common.Session.
func (s *Session) Count(ctx context.Context, loc common.Locator) (int, error) {
	if err := s.Check(); err != nil {
		return 0, err
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	l, err := s.locator(loc)
	if err != nil {
		return 0, err
	}
	return l.Count() //nolint:wrapcheck
}

// Click implements common.Session.
func (s *Session) Click(ctx context.Context, loc common.Locator) error {
	l, err := s.first(ctx, loc)
	if err != nil {
		return err
	}
	s.logger.Debugf("pw:Click", "sid:%s %s", s.id, loc)
	if err := l.Click(playwright.LocatorClickOptions{Timeout: s.timeout(ctx, s.timeouts.Timeout())}); err != nil {
		return fmt.Errorf("clicking %s: %w", loc, friendly(err))
	}
	return nil
}

// Visible implements common.Session.
func (s *Session) Visible(ctx context.Context, loc common.Locator) (bool, error) {
	l, err := s.first(ctx, loc)
	if err != nil {
		return false, err
	}
	return l.IsVisible() //nolint:wrapcheck
}

// Text implements common.Session.
func (s *Session) Text(ctx context.Context, loc common.Locator) (string, error) {
	l, err := s.first(ctx, loc)
	if err != nil {
		return "", err
	}
	text, err := l.InnerText(playwright.LocatorInnerTextOptions{
		Timeout: s.timeout(ctx, s.timeouts.Timeout()),
	})
	if err != nil {
		return "", fmt.Errorf("reading text of %s: %w", loc, friendly(err))
	}
	return common.NormalizeSpace(text), nil
}

// Close implements common.Session.
func (s *Session) Close() error {
	return s.CloseOnce(func() error {
		s.logger.Debugf("pw:Close", "sid:%s", s.id)
		err := s.page.Close()
		err = errors.Join(err, s.browser.Close())
		err = errors.Join(err, s.pw.Stop())
		if err != nil {
			return fmt.Errorf("closing playwright session: %w", err)
		}
		return nil
	})
}

// friendly marks Playwright timeouts as deadline errors.
func friendly(err error) error {
	if errors.Is(err, playwright.ErrTimeout) {
		return fmt.Errorf("%w: %w", context.DeadlineExceeded, err)
	}
	return err
}

func ms(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}

var (
	_ common.Session      = &Session{}
	_ common.ProcessOwner = &Session{}
	_ common.Prober       = &Session{}
)
