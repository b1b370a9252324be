// Package scenario runs smoke scenarios: strictly linear lists of
// navigation, interaction and expectation steps against one session.
package scenario

import (
	"fmt"
	"time"

	"github.com/liuxd6825/quizsmoke/common"
)

// StepKind names what a step does.
type StepKind string

// Step kinds.
const (
	KindNavigate StepKind = "navigate"
	KindClick    StepKind = "click"
	KindExpect   StepKind = "expect"
)

// Step is one action of a scenario.
type Step struct {
	Kind        StepKind
	Path        string
	Locator     common.Locator
	Expectation common.Expectation

	// Timeout bounds an expect step. Zero evaluates the expectation once.
	Timeout time.Duration
	// DefaultTimeout makes an expect step use the runner's expect timeout.
	DefaultTimeout bool
}

// Navigate loads path, resolved against the runner's base URL.
func Navigate(path string) Step {
	return Step{Kind: KindNavigate, Path: path}
}

// Click clicks the first element matched by loc.
func Click(loc common.Locator) Step {
	return Step{Kind: KindClick, Locator: loc}
}

// Expect polls exp for up to timeout.
func Expect(exp common.Expectation, timeout time.Duration) Step {
	return Step{Kind: KindExpect, Expectation: exp, Timeout: timeout}
}

// Eventually polls exp for up to the runner's expect timeout.
func Eventually(exp common.Expectation) Step {
	return Step{Kind: KindExpect, Expectation: exp, DefaultTimeout: true}
}

func (s Step) String() string {
	switch s.Kind {
	case KindNavigate:
		return fmt.Sprintf("navigate to %q", s.Path)
	case KindClick:
		return "click " + s.Locator.String()
	case KindExpect:
		switch {
		case s.DefaultTimeout:
			return "expect " + s.Expectation.Describe()
		case s.Timeout > 0:
			return fmt.Sprintf("expect %s within %s", s.Expectation.Describe(), s.Timeout)
		default:
			return "check " + s.Expectation.Describe()
		}
	default:
		return string(s.Kind)
	}
}

// Scenario is a named list of steps run in order against one session.
type Scenario struct {
	Name        string
	Description string
	Steps       []Step
}

// StepResult is the outcome of one step.
type StepResult struct {
	Step     string
	Kind     StepKind
	Passed   bool
	Err      error
	Duration time.Duration
}

// Result is the outcome of a scenario. FailedStep is the index of the
// step that failed, -1 when all passed.
type Result struct {
	Scenario   string
	Backend    string
	Passed     bool
	Err        error
	FailedStep int
	Duration   time.Duration
	Steps      []StepResult
}

// Kind classifies the failure of the scenario.
func (r Result) Kind() common.ErrorKind {
	return common.KindOf(r.Err)
}
