package common

import (
	"context"
	"sync"
	"testing"

	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// fakeSession serves canned titles and element texts. Each call to a text
// getter pops the next value until one is left.
type fakeSession struct {
	SessionState

	mu      sync.Mutex
	titles  []string
	texts   map[string][]string
	visible map[string]bool
	clicks  []Locator
}

func newFakeSession() *fakeSession {
	return &fakeSession{
		texts:   make(map[string][]string),
		visible: make(map[string]bool),
	}
}

func (f *fakeSession) ID() string { return "fake" }

func (f *fakeSession) Navigate(context.Context, string) error { return f.Check() }

func (f *fakeSession) Title(context.Context) (string, error) {
	if err := f.Check(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	return pop(&f.titles), nil
}

func (f *fakeSession) Count(_ context.Context, loc Locator) (int, error) {
	if err := f.Check(); err != nil {
		return 0, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.texts[loc.String()]; ok {
		return 1, nil
	}
	return 0, nil
}

func (f *fakeSession) Click(_ context.Context, loc Locator) error {
	if err := f.Check(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.clicks = append(f.clicks, loc)
	return nil
}

func (f *fakeSession) Visible(_ context.Context, loc Locator) (bool, error) {
	if err := f.Check(); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.visible[loc.String()]
	if !ok {
		return false, &ElementNotFoundError{Locator: loc}
	}
	return v, nil
}

func (f *fakeSession) Text(_ context.Context, loc Locator) (string, error) {
	if err := f.Check(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	vals, ok := f.texts[loc.String()]
	if !ok || len(vals) == 0 {
		return "", &ElementNotFoundError{Locator: loc}
	}
	v := pop(&vals)
	f.texts[loc.String()] = vals
	return v, nil
}

func (f *fakeSession) Close() error { return f.CloseOnce(nil) }

func pop(vals *[]string) string {
	if len(*vals) == 0 {
		return ""
	}
	v := (*vals)[0]
	if len(*vals) > 1 {
		*vals = (*vals)[1:]
	}
	return v
}

var _ Session = &fakeSession{}
