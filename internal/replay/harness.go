package replay

import (
	"context"
	"errors"
	"fmt"

	"github.com/solvelab/tandem/internal/attempt"
	"github.com/solvelab/tandem/internal/history"
	"github.com/solvelab/tandem/internal/model"
	"github.com/solvelab/tandem/internal/orchestrator"
)

// #region types

// StepResult captures what a live session would compute at one retry index:
// the role decision and the history block handed to that attempt.
type StepResult struct {
	Index    int    `json:"index"`
	Decision string `json:"decision"`
	History  string `json:"history"`
	Strategy string `json:"strategy"` // strategy label as recorded
}

// Divergence reports one mismatch between a fixture's expectations and the
// replayed steps.
type Divergence struct {
	Index int    `json:"index"`
	Field string `json:"field"` // "decision" | "history"
	Want  string `json:"want"`
	Got   string `json:"got"`
}

// replayHandle satisfies model.Handle with a fixed name. Replay only reads
// model names; generation is out of scope here.
type replayHandle struct{ name string }

func (h replayHandle) Generate(context.Context, []model.Message) (model.Response, error) {
	return model.Response{}, errors.New("replay handles do not generate")
}

func (h replayHandle) ModelName() string { return h.name }

// #endregion

// #region replay

// Replay recomputes, for each recorded attempt, the role decision and the
// history block a fresh session would produce at that index. Operates
// entirely in-memory. Divergence from the recorded strategy labels means
// the rotation policy or the history format drifted since the session ran.
func Replay(f *Fixture) ([]StepResult, error) {
	if f.MainModel == "" || f.AdvisorModel == "" {
		return nil, fmt.Errorf("fixture %q names no model pair", f.Description)
	}

	orch := orchestrator.NewWithHandles(replayHandle{f.MainModel}, replayHandle{f.AdvisorModel})

	summaries := make([]attempt.Summary, len(f.Attempts))
	for i := range f.Attempts {
		summaries[i] = f.Attempts[i].ToSummary()
	}

	results := make([]StepResult, 0, len(f.Attempts))
	for i := range f.Attempts {
		decision, err := orch.DecideRoles(i)
		if err != nil {
			return nil, fmt.Errorf("replay step %d: %w", i, err)
		}
		results = append(results, StepResult{
			Index:    i,
			Decision: decision.Description,
			History:  history.Format(summaries[:i]),
			Strategy: f.Attempts[i].Strategy,
		})
	}
	return results, nil
}

// FinalHistory renders the block a further attempt would receive after all
// recorded attempts.
func FinalHistory(f *Fixture) string {
	summaries := make([]attempt.Summary, len(f.Attempts))
	for i := range f.Attempts {
		summaries[i] = f.Attempts[i].ToSummary()
	}
	return history.Format(summaries)
}

// Diff compares replayed steps against the fixture's expectations. Decision
// expectations default to the recorded strategy labels when the fixture does
// not pin them explicitly. ExpectedHistory, when set, is checked against
// FinalHistory and reported at index len(Attempts), the step that would
// consume it.
func Diff(f *Fixture, results []StepResult) []Divergence {
	expected := f.ExpectedDecisions
	if len(expected) == 0 {
		expected = make([]string, len(f.Attempts))
		for i := range f.Attempts {
			expected[i] = f.Attempts[i].Strategy
		}
	}

	n := len(results)
	if len(expected) < n {
		n = len(expected)
	}

	var divs []Divergence
	for i := 0; i < n; i++ {
		if results[i].Decision != expected[i] {
			divs = append(divs, Divergence{Index: i, Field: "decision", Want: expected[i], Got: results[i].Decision})
		}
	}

	if f.ExpectedHistory != "" {
		if got := FinalHistory(f); got != f.ExpectedHistory {
			divs = append(divs, Divergence{Index: len(f.Attempts), Field: "history", Want: f.ExpectedHistory, Got: got})
		}
	}
	return divs
}

// #endregion
