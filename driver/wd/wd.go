// Package wd drives Chrome through chromedriver with the WebDriver
// protocol, using github.com/tebeka/selenium.
package wd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tebeka/selenium"
	"github.com/tebeka/selenium/chrome"

	"github.com/liuxd6825/quizsmoke/chromium"
	"github.com/liuxd6825/quizsmoke/common"
	"github.com/liuxd6825/quizsmoke/env"
	"github.com/liuxd6825/quizsmoke/log"
)

// Name of the backend.
const Name = "selenium"

// Provisioner starts a chromedriver per session, or opens sessions on a
// remote WebDriver server.
type Provisioner struct {
	logger *log.Logger
	lookup env.LookupFunc
}

// New returns a WebDriver provisioner.
func New(logger *log.Logger, lookup env.LookupFunc) *Provisioner {
	return &Provisioner{logger: logger, lookup: lookup}
}

// Name implements common.Provisioner.
func (p *Provisioner) Name() string { return Name }

// Capabilities returns the W3C capabilities requesting Chrome with the
// shared launch flags.
func Capabilities(opts *common.LaunchOptions, browserPath string) (selenium.Capabilities, error) {
	flags := chromium.PrepareFlags(opts)
	args, err := chromium.ParseArgs(flags)
	if err != nil {
		return nil, err
	}
	caps := selenium.Capabilities{"browserName": "chrome"}
	caps.AddChrome(chrome.Capabilities{
		Path: browserPath,
		Args: args,
		W3C:  true,
	})
	return caps, nil
}

// Provision implements common.Provisioner.
func (p *Provisioner) Provision(ctx context.Context, opts *common.LaunchOptions) (_ common.Session, rerr error) {
	if err := opts.Validate(); err != nil {
		return nil, &common.ProvisionError{Backend: Name, Err: err}
	}
	selenium.SetDebug(opts.Debug)

	browserPath := opts.ExecutablePath
	if browserPath == "" && !opts.IsRemote() {
		browserPath = chromium.ExecutablePath(p.lookup)
	}
	caps, err := Capabilities(opts, browserPath)
	if err != nil {
		return nil, &common.ProvisionError{Backend: Name, Err: err}
	}

	s := &Session{
		logger:   p.logger,
		timeouts: common.NewTimeoutSettings(nil),
		slowMo:   opts.SlowMo,
	}
	s.timeouts.SetDefaultTimeout(opts.Timeout)

	urlPrefix := opts.RemoteURL
	if !opts.IsRemote() {
		info, err := chromium.ResolveDriver(ctx, opts.DriverPath, browserPath, p.lookup, p.logger)
		if err != nil {
			return nil, &common.ProvisionError{Backend: Name, Err: err}
		}
		port, err := freePort()
		if err != nil {
			return nil, &common.ProvisionError{Backend: Name, Err: err}
		}
		svcOpts := []selenium.ServiceOption{selenium.Output(io.Discard)}
		if opts.Debug {
			svcOpts = []selenium.ServiceOption{selenium.Output(p.logger.Writer("wd:chromedriver"))}
		}
		var svc *selenium.Service
		s.driverPid, err = chromium.TrackSpawn(os.Getpid(), info.Path, func() error {
			var err error
			svc, err = selenium.NewChromeDriverService(info.Path, port, svcOpts...)
			return err
		})
		if err != nil {
			return nil, &common.ProvisionError{Backend: Name, Err: fmt.Errorf("starting chromedriver: %w", err)}
		}
		s.service = svc
		urlPrefix = fmt.Sprintf("http://127.0.0.1:%d", port)
		defer func() {
			if rerr != nil {
				_ = svc.Stop()
			}
		}()
	}
	s.endpoint = strings.TrimSuffix(urlPrefix, "/")

	wd, err := newRemote(ctx, caps, urlPrefix, opts.Timeout)
	if err != nil {
		return nil, &common.ProvisionError{Backend: Name, Err: err}
	}
	s.wd = wd
	s.id = wd.SessionID()
	if err := wd.SetPageLoadTimeout(s.timeouts.NavigationTimeout()); err != nil {
		_ = wd.Quit()
		return nil, &common.ProvisionError{Backend: Name, Err: err}
	}
	// chromedriver launches the browser as its child.
	s.pid = chromium.FirstChild(s.driverPid)
	p.logger.Debugf("wd:Provision", "sid:%s endpoint:%s driver-pid:%d pid:%d", s.id, s.endpoint, s.driverPid, s.pid)

	return s, nil
}

// newRemote opens a session, bounded by timeout and ctx. selenium.NewRemote
// takes no context, so an abandoned attempt is left to finish on its own
// and its session is quit.
func newRemote(ctx context.Context, caps selenium.Capabilities, urlPrefix string, timeout time.Duration) (selenium.WebDriver, error) {
	type result struct {
		wd  selenium.WebDriver
		err error
	}
	ch := make(chan result, 1)
	go func() {
		wd, err := selenium.NewRemote(caps, urlPrefix)
		ch <- result{wd, err}
	}()

	tctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	select {
	case r := <-ch:
		if r.err != nil {
			return nil, fmt.Errorf("opening WebDriver session: %w", r.err)
		}
		return r.wd, nil
	case <-tctx.Done():
		go func() {
			if r := <-ch; r.err == nil {
				_ = r.wd.Quit()
			}
		}()
		return nil, fmt.Errorf("opening WebDriver session: %w", tctx.Err())
	}
}

func freePort() (int, error) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return 0, fmt.Errorf("finding a free port: %w", err)
	}
	defer l.Close() //nolint:errcheck
	return l.Addr().(*net.TCPAddr).Port, nil
}

// Session is a WebDriver session.
type Session struct {
	common.SessionState

	id        string
	pid       int
	driverPid int
	wd        selenium.WebDriver
	service   *selenium.Service
	endpoint  string
	timeouts  *common.TimeoutSettings
	logger    *log.Logger
	slowMo    time.Duration
}

// ID implements common.Session.
func (s *Session) ID() string { return s.id }

// Pid implements common.ProcessOwner. It is zero for remote sessions and
// when the browser process could not be told apart from others.
func (s *Session) Pid() int { return s.pid }

// Alive implements common.Prober. A local session is alive while its
// browser process runs, or while its chromedriver answers status requests
// when the browser pid is unknown.
func (s *Session) Alive(ctx context.Context) bool {
	if s.pid != 0 {
		return chromium.ProcessRunning(s.pid)
	}
	if s.service == nil {
		return !s.Closed()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint+"/status", nil)
	if err != nil {
		return false
	}
	client := &http.Client{Timeout: time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	_ = resp.Body.Close()
	return true
}

func (s *Session) before(ctx context.Context) error {
	if err := s.Check(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.slowMo > 0 {
		time.Sleep(s.slowMo)
	}
	return nil
}

// Navigate implements common.Session. The WebDriver get command returns
// once the document is fully loaded.
func (s *Session) Navigate(ctx context.Context, url string) error {
	if err := s.before(ctx); err != nil {
		if errors.Is(err, common.ErrSessionClosed) {
			return err
		}
		return &common.NavigationError{URL: url, Err: err}
	}
	s.logger.Debugf("wd:Navigate", "sid:%s url:%q", s.id, url)
	if err := s.wd.Get(url); err != nil {
		return &common.NavigationError{URL: url, Err: err}
	}
	return nil
}

// Title implements common.Session.
func (s *Session) Title(ctx context.Context) (string, error) {
	if err := s.before(ctx); err != nil {
		return "", err
	}
	return s.wd.Title() //nolint:wrapcheck
}

func (s *Session) elements(loc common.Locator) ([]selenium.WebElement, error) {
	xp, err := loc.XPath()
	if err != nil {
		return nil, err
	}
	els, err := s.wd.FindElements(selenium.ByXPATH, xp)
	if err != nil {
		return nil, fmt.Errorf("finding %s: %w", loc, err)
	}
	return els, nil
}

func (s *Session) first(ctx context.Context, loc common.Locator) (selenium.WebElement, error) {
	if err := s.before(ctx); err != nil {
		return nil, err
	}
	els, err := s.elements(loc)
	if err != nil {
		return nil, err
	}
	if len(els) == 0 {
		return nil, &common.ElementNotFoundError{Locator: loc}
	}
	return els[0], nil
}

// Count implements common.Session.
func (s *Session) Count(ctx context.Context, loc common.Locator) (int, error) {
	if err := s.before(ctx); err != nil {
		return 0, err
	}
	els, err := s.elements(loc)
	if err != nil {
		return 0, err
	}
	return len(els), nil
}

// Click implements common.Session.
func (s *Session) Click(ctx context.Context, loc common.Locator) error {
	el, err := s.first(ctx, loc)
	if err != nil {
		return err
	}
	s.logger.Debugf("wd:Click", "sid:%s %s", s.id, loc)
	if err := el.Click(); err != nil {
		return fmt.Errorf("clicking %s: %w", loc, err)
	}
	return nil
}

// Visible implements common.Session.
func (s *Session) Visible(ctx context.Context, loc common.Locator) (bool, error) {
	el, err := s.first(ctx, loc)
	if err != nil {
		return false, err
	}
	return el.IsDisplayed() //nolint:wrapcheck
}

// Text implements common.Session.
func (s *Session) Text(ctx context.Context, loc common.Locator) (string, error) {
	el, err := s.first(ctx, loc)
	if err != nil {
		return "", err
	}
	text, err := el.Text()
	if err != nil {
		return "", fmt.Errorf("reading text of %s: %w", loc, err)
	}
	return common.NormalizeSpace(text), nil
}

// Close implements common.Session. It quits the WebDriver session, which
// closes the browser, then stops the local chromedriver.
func (s *Session) Close() error {
	return s.CloseOnce(func() error {
		s.logger.Debugf("wd:Close", "sid:%s", s.id)
		err := s.wd.Quit()
		if s.service != nil {
			err = errors.Join(err, s.service.Stop())
		}
		if err != nil {
			return fmt.Errorf("closing WebDriver session: %w", err)
		}
		return nil
	})
}

var (
	_ common.Session      = &Session{}
	_ common.ProcessOwner = &Session{}
	_ common.Prober       = &Session{}
)
