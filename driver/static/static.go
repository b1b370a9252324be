// Package static is a JavaScript-free backend that fetches pages over HTTP
// and evaluates locators on the parsed document. It follows links when an
// anchor is clicked and never runs scripts, so expectations on script
// rendered content time out. It needs no browser and keeps the scenario
// runner testable everywhere.
package static

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"

	"github.com/liuxd6825/quizsmoke/common"
	"github.com/liuxd6825/quizsmoke/log"
)

// Name of the backend.
const Name = "static"

// Provisioner creates static sessions.
type Provisioner struct {
	logger *log.Logger
	client *http.Client
}

// New returns a static provisioner. A nil client uses a fresh http.Client.
func New(logger *log.Logger, client *http.Client) *Provisioner {
	return &Provisioner{logger: logger, client: client}
}

// Name implements common.Provisioner.
func (p *Provisioner) Name() string { return Name }

// Provision implements common.Provisioner.
func (p *Provisioner) Provision(_ context.Context, opts *common.LaunchOptions) (common.Session, error) {
	if err := opts.Validate(); err != nil {
		return nil, &common.ProvisionError{Backend: Name, Err: err}
	}
	client := p.client
	if client == nil {
		client = &http.Client{Timeout: opts.Timeout}
	}
	s := &Session{
		id:     uuid.NewString(),
		client: client,
		logger: p.logger,
	}
	p.logger.Debugf("static:Provision", "sid:%s", s.id)
	return s, nil
}

// Session is a page loaded over plain HTTP.
type Session struct {
	common.SessionState

	id     string
	client *http.Client
	logger *log.Logger

	mu  sync.Mutex
	url *url.URL
	doc *goquery.Document
}

// ID implements common.Session.
func (s *Session) ID() string { return s.id }

// Navigate implements common.Session.
func (s *Session) Navigate(ctx context.Context, rawURL string) error {
	if err := s.Check(); err != nil {
		return err
	}
	s.logger.Debugf("static:Navigate", "sid:%s url:%q", s.id, rawURL)

	u, doc, err := s.fetch(ctx, rawURL)
	if err != nil {
		return &common.NavigationError{URL: rawURL, Err: err}
	}
	s.mu.Lock()
	s.url, s.doc = u, doc
	s.mu.Unlock()
	return nil
}

func (s *Session) fetch(ctx context.Context, rawURL string) (*url.URL, *goquery.Document, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, nil, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, nil, err
	}
	defer resp.Body.Close() //nolint:errcheck

	if resp.StatusCode >= http.StatusBadRequest {
		return nil, nil, fmt.Errorf("unexpected status %s", resp.Status)
	}
	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("parsing document: %w", err)
	}
	return resp.Request.URL, doc, nil
}

func (s *Session) document() (*url.URL, *goquery.Document, error) {
	if err := s.Check(); err != nil {
		return nil, nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.doc == nil {
		return nil, nil, fmt.Errorf("no page loaded")
	}
	return s.url, s.doc, nil
}

// Title implements common.Session.
func (s *Session) Title(context.Context) (string, error) {
	_, doc, err := s.document()
	if err != nil {
		return "", err
	}
	return common.NormalizeSpace(doc.Find("head title").First().Text()), nil
}

// Count implements common.Session.
func (s *Session) Count(_ context.Context, loc common.Locator) (int, error) {
	_, doc, err := s.document()
	if err != nil {
		return 0, err
	}
	sel, err := Find(doc, loc)
	if err != nil {
		return 0, err
	}
	return sel.Length(), nil
}

func (s *Session) first(loc common.Locator) (*url.URL, *goquery.Selection, error) {
	u, doc, err := s.document()
	if err != nil {
		return nil, nil, err
	}
	sel, err := Find(doc, loc)
	if err != nil {
		return nil, nil, err
	}
	if sel.Length() == 0 {
		return nil, nil, &common.ElementNotFoundError{Locator: loc}
	}
	return u, sel.First(), nil
}

// Click implements common.Session. Clicking an anchor, or an element inside
// one, loads its href. Other clicks have no effect without scripts.
func (s *Session) Click(ctx context.Context, loc common.Locator) error {
	base, el, err := s.first(loc)
	if err != nil {
		return err
	}
	a := el.Closest("a[href]")
	if a.Length() == 0 {
		s.logger.Debugf("static:Click", "sid:%s %s is not a link, ignoring", s.id, loc)
		return nil
	}
	href, _ := a.Attr("href")
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return fmt.Errorf("clicking %s: %w", loc, err)
	}
	return s.Navigate(ctx, base.ResolveReference(ref).String())
}

// Visible implements common.Session. Without layout information an element
// counts as visible unless it or an ancestor is hidden by attribute or
// inline style.
func (s *Session) Visible(_ context.Context, loc common.Locator) (bool, error) {
	_, el, err := s.first(loc)
	if err != nil {
		return false, err
	}
	for n := el; n.Length() > 0; n = n.Parent() {
		if hidden(n) {
			return false, nil
		}
	}
	return true, nil
}

// Text implements common.Session.
func (s *Session) Text(_ context.Context, loc common.Locator) (string, error) {
	_, el, err := s.first(loc)
	if err != nil {
		return "", err
	}
	return common.NormalizeSpace(el.Text()), nil
}

// Close implements common.Session.
func (s *Session) Close() error {
	return s.CloseOnce(func() error {
		s.logger.Debugf("static:Close", "sid:%s", s.id)
		s.client.CloseIdleConnections()
		return nil
	})
}

func hidden(n *goquery.Selection) bool {
	if _, ok := n.Attr("hidden"); ok {
		return true
	}
	style, _ := n.Attr("style")
	style = strings.ReplaceAll(strings.ToLower(style), " ", "")
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

var _ common.Session = &Session{}
