package scenario

import (
	"fmt"
	"regexp"
	"time"

	"github.com/liuxd6825/quizsmoke/common"
)

// QuestionTimeout is how long the quiz page may take to render its first
// question.
const QuestionTimeout = 10 * time.Second

// The quiz application's titles and entries.
const (
	MenuTitle     = "Main Menu"
	CategoryTitle = "NDT Categories"
	QuizTitle     = "LemTek Quiz - BM"
	CategoryEntry = "General"
	QuizEntry     = "Lem Tek 18 based Quiz - BM"
	QuestionID    = "q-number"
)

// QuizHasTitle checks the title of the main menu.
func QuizHasTitle() Scenario {
	return Scenario{
		Name:        "has-title",
		Description: "the main menu title matches /Main Menu/",
		Steps: []Step{
			Navigate("/"),
			Eventually(common.TitleMatches(regexp.MustCompile(MenuTitle))),
		},
	}
}

// QuizGetStartedLink walks from the main menu to the quiz page.
func QuizGetStartedLink() Scenario {
	return Scenario{
		Name:        "get-started-link",
		Description: "the menu leads to the categories and then to the quiz",
		Steps: []Step{
			Navigate("/"),
			Click(common.Text(CategoryEntry)),
			Eventually(common.TitleEquals(CategoryTitle)),
			Click(common.Text(QuizEntry)),
			Eventually(common.TitleEquals(QuizTitle)),
			Eventually(common.ElementVisible(common.ID(QuestionID))),
		},
	}
}

// QuizQuestion waits for the quiz page to render its first question.
func QuizQuestion() Scenario {
	return Scenario{
		Name:        "quiz-question",
		Description: "the quiz page renders a question within 10s",
		Steps: []Step{
			Navigate("/"),
			Expect(common.ElementTextContains(common.LinkText(CategoryEntry), CategoryEntry), 0),
			Click(common.LinkText(CategoryEntry)),
			Click(common.LinkText(QuizEntry)),
			Expect(common.ElementTextContains(common.ID(QuestionID), "Question"), QuestionTimeout),
		},
	}
}

// QuizRootIdempotent navigates to the main menu twice and compares titles.
func QuizRootIdempotent() Scenario {
	return Scenario{
		Name:        "root-idempotent",
		Description: "navigating to the main menu twice yields the same title",
		Steps: []Step{
			Navigate("/"),
			Expect(common.TitleEquals(MenuTitle), 0),
			Navigate("/"),
			Expect(common.TitleEquals(MenuTitle), 0),
		},
	}
}

// Quiz returns the built-in quiz scenarios.
func Quiz() []Scenario {
	return []Scenario{
		QuizHasTitle(),
		QuizGetStartedLink(),
		QuizQuestion(),
		QuizRootIdempotent(),
	}
}

// Select returns the scenarios named in names, in the given order. An
// empty names selects all of them.
func Select(all []Scenario, names ...string) ([]Scenario, error) {
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]Scenario, len(all))
	for _, sc := range all {
		byName[sc.Name] = sc
	}
	out := make([]Scenario, 0, len(names))
	for _, n := range names {
		sc, ok := byName[n]
		if !ok {
			return nil, &UnknownScenarioError{Name: n, Known: Names(all)}
		}
		out = append(out, sc)
	}
	return out, nil
}

// Names returns the names of scenarios.
func Names(scenarios []Scenario) []string {
	out := make([]string, len(scenarios))
	for i, sc := range scenarios {
		out[i] = sc.Name
	}
	return out
}

// UnknownScenarioError is returned by Select for names it does not know.
type UnknownScenarioError struct {
	Name  string
	Known []string
}

func (e *UnknownScenarioError) Error() string {
	return fmt.Sprintf("unknown scenario %q, should be one of %v", e.Name, e.Known)
}
