// Package report renders the outcome of a smoke run as a JSON summary and
// as colored console text.
package report

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/liuxd6825/quizsmoke/lib/types"
	"github.com/liuxd6825/quizsmoke/scenario"
)

// NewRunID returns a new random run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Summary is the exported outcome of a run.
type Summary struct {
	RunID     string            `json:"run_id"`
	Backend   string            `json:"backend"`
	BaseURL   string            `json:"base_url"`
	Shared    bool              `json:"shared_session"`
	StartedAt time.Time         `json:"started_at"`
	Duration  types.Duration    `json:"duration"`
	Passed    int               `json:"passed"`
	Failed    int               `json:"failed"`
	Kinds     map[string]int    `json:"failure_kinds,omitempty"`
	Scenarios []ScenarioSummary `json:"scenarios"`
}

// ScenarioSummary is the exported outcome of a scenario.
type ScenarioSummary struct {
	Name       string         `json:"name"`
	Passed     bool           `json:"passed"`
	Kind       string         `json:"kind,omitempty"`
	Error      string         `json:"error,omitempty"`
	FailedStep int            `json:"failed_step"`
	Duration   types.Duration `json:"duration"`
	Steps      []StepSummary  `json:"steps"`
}

// StepSummary is the exported outcome of a step.
type StepSummary struct {
	Step     string         `json:"step"`
	Kind     string         `json:"kind"`
	Passed   bool           `json:"passed"`
	Duration types.Duration `json:"duration"`
}

// Meta describes the run a summary is built for.
type Meta struct {
	RunID     string
	Backend   string
	BaseURL   string
	Shared    bool
	StartedAt time.Time
}

// NewSummary builds a summary from the results of a run.
func NewSummary(meta Meta, results []scenario.Result) *Summary {
	s := &Summary{
		RunID:     meta.RunID,
		Backend:   meta.Backend,
		BaseURL:   meta.BaseURL,
		Shared:    meta.Shared,
		StartedAt: meta.StartedAt,
		Scenarios: make([]ScenarioSummary, 0, len(results)),
	}
	if !meta.StartedAt.IsZero() {
		s.Duration = types.Duration(time.Since(meta.StartedAt))
	}
	for _, r := range results {
		ss := ScenarioSummary{
			Name:       r.Scenario,
			Passed:     r.Passed,
			FailedStep: r.FailedStep,
			Duration:   types.Duration(r.Duration),
			Steps:      make([]StepSummary, 0, len(r.Steps)),
		}
		for _, st := range r.Steps {
			ss.Steps = append(ss.Steps, StepSummary{
				Step:     st.Step,
				Kind:     string(st.Kind),
				Passed:   st.Passed,
				Duration: types.Duration(st.Duration),
			})
		}
		if r.Passed {
			s.Passed++
		} else {
			s.Failed++
			ss.Kind = r.Kind().String()
			if r.Err != nil {
				ss.Error = r.Err.Error()
			}
			if s.Kinds == nil {
				s.Kinds = make(map[string]int)
			}
			s.Kinds[ss.Kind]++
		}
		s.Scenarios = append(s.Scenarios, ss)
	}
	return s
}

// OK reports whether every scenario passed.
func (s *Summary) OK() bool {
	return s.Failed == 0
}

// WriteJSON writes the indented JSON summary to w.
func (s *Summary) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// Export writes the JSON summary to the file at path on fs.
func (s *Summary) Export(fs afero.Fs, path string) (err error) {
	f, err := fs.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0o666)
	if err != nil {
		return fmt.Errorf("creating summary file: %w", err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()
	return s.WriteJSON(f)
}

// WriteText writes a human readable summary to w.
func (s *Summary) WriteText(w io.Writer, noColor bool) error {
	green := color.New(color.FgGreen)
	red := color.New(color.FgRed)
	faint := color.New(color.Faint)
	if noColor {
		green.DisableColor()
		red.DisableColor()
		faint.DisableColor()
	}

	if _, err := fmt.Fprintf(w, "\n  run %s  backend=%s  base_url=%s\n\n", s.RunID, s.Backend, s.BaseURL); err != nil {
		return err
	}
	for _, sc := range s.Scenarios {
		mark := green.Sprint("✓")
		if !sc.Passed {
			mark = red.Sprint("✗")
		}
		if _, err := fmt.Fprintf(w, "  %s %s %s\n", mark, sc.Name, faint.Sprintf("(%s)", sc.Duration)); err != nil {
			return err
		}
		if !sc.Passed {
			if _, err := fmt.Fprintf(w, "      %s %s\n", red.Sprint(sc.Kind), sc.Error); err != nil {
				return err
			}
		}
	}

	totals := green.Sprintf("%d passed", s.Passed)
	if s.Failed > 0 {
		totals += ", " + red.Sprintf("%d failed", s.Failed)
	}
	if _, err := fmt.Fprintf(w, "\n  %s in %s\n", totals, s.Duration); err != nil {
		return err
	}
	if len(s.Kinds) > 0 {
		kinds := make([]string, 0, len(s.Kinds))
		for k := range s.Kinds {
			kinds = append(kinds, k)
		}
		sort.Strings(kinds)
		for _, k := range kinds {
			if _, err := fmt.Fprintf(w, "  %s: %d\n", k, s.Kinds[k]); err != nil {
				return err
			}
		}
	}
	return nil
}
