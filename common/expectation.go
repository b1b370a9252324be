package common

import (
	"context"
	"fmt"
	"regexp"
	"strings"
)

// Observation is the result of evaluating an Expectation once.
type Observation struct {
	// Value is what was observed, rendered for error messages.
	Value string
	// OK is true when the predicate holds.
	OK bool
}

// Expectation is a predicate over page or element state.
type Expectation interface {
	// Describe returns a human readable description, e.g.
	// `title to match /Main Menu/`.
	Describe() string
	Evaluate(ctx context.Context, s Session) (Observation, error)
}

type titleEquals struct{ want string }

// TitleEquals expects the page title to equal want exactly.
func TitleEquals(want string) Expectation { return titleEquals{want} }

func (e titleEquals) Describe() string { return fmt.Sprintf("title to be %q", e.want) }

func (e titleEquals) Evaluate(ctx context.Context, s Session) (Observation, error) {
	title, err := s.Title(ctx)
	if err != nil {
		return Observation{}, err
	}
	return Observation{Value: title, OK: title == e.want}, nil
}

type titleMatches struct{ re *regexp.Regexp }

// TitleMatches expects the page title to match re.
func TitleMatches(re *regexp.Regexp) Expectation { return titleMatches{re} }

func (e titleMatches) Describe() string { return fmt.Sprintf("title to match /%s/", e.re) }

func (e titleMatches) Evaluate(ctx context.Context, s Session) (Observation, error) {
	title, err := s.Title(ctx)
	if err != nil {
		return Observation{}, err
	}
	return Observation{Value: title, OK: e.re.MatchString(title)}, nil
}

type elementVisible struct{ loc Locator }

// ElementVisible expects the first element matched by loc to be visible.
func ElementVisible(loc Locator) Expectation { return elementVisible{loc} }

func (e elementVisible) Describe() string { return e.loc.String() + " to be visible" }

func (e elementVisible) Evaluate(ctx context.Context, s Session) (Observation, error) {
	visible, err := s.Visible(ctx, e.loc)
	if err != nil {
		return Observation{}, err
	}
	v := "hidden"
	if visible {
		v = "visible"
	}
	return Observation{Value: v, OK: visible}, nil
}

type elementTextContains struct {
	loc Locator
	sub string
}

// ElementTextContains expects the text of the first element matched by loc
// to contain sub.
func ElementTextContains(loc Locator, sub string) Expectation {
	return elementTextContains{loc, sub}
}

func (e elementTextContains) Describe() string {
	return fmt.Sprintf("%s to contain text %q", e.loc, e.sub)
}

func (e elementTextContains) Evaluate(ctx context.Context, s Session) (Observation, error) {
	text, err := s.Text(ctx, e.loc)
	if err != nil {
		return Observation{}, err
	}
	return Observation{Value: text, OK: strings.Contains(text, e.sub)}, nil
}
