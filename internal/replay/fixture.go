package replay

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/solvelab/tandem/internal/attempt"
)

// #region fixture-types

// Fixture is the top-level JSON structure for a replay fixture. It records
// one session's attempt summaries plus the model pair that produced them,
// so the role rotation and history rendering can be recomputed offline.
type Fixture struct {
	Description       string           `json:"description"`
	MainModel         string           `json:"main_model"`
	AdvisorModel      string           `json:"advisor_model"`
	Attempts          []FixtureAttempt `json:"attempts"`
	ExpectedDecisions []string         `json:"expected_decisions,omitempty"`
	ExpectedHistory   string           `json:"expected_history,omitempty"`
}

// FixtureAttempt mirrors attempt.Summary with JSON tags.
type FixtureAttempt struct {
	Strategy      string    `json:"strategy"`
	Actions       int       `json:"actions"`
	FailedMethods []string  `json:"failed_methods"`
	KeyFindings   []string  `json:"key_findings"`
	Timestamp     time.Time `json:"timestamp"`
}

// ToSummary converts a FixtureAttempt to a domain attempt.Summary.
func (fa *FixtureAttempt) ToSummary() attempt.Summary {
	return attempt.Summary{
		Strategy:      fa.Strategy,
		Actions:       fa.Actions,
		FailedMethods: fa.FailedMethods,
		KeyFindings:   fa.KeyFindings,
		Timestamp:     fa.Timestamp,
	}
}

// FromSummary converts a domain attempt.Summary to its fixture form.
func FromSummary(s attempt.Summary) FixtureAttempt {
	return FixtureAttempt{
		Strategy:      s.Strategy,
		Actions:       s.Actions,
		FailedMethods: s.FailedMethods,
		KeyFindings:   s.KeyFindings,
		Timestamp:     s.Timestamp,
	}
}

// #endregion

// #region fixture-io

// LoadFixture reads and parses a JSON fixture file.
func LoadFixture(path string) (*Fixture, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read fixture %s: %w", path, err)
	}
	var f Fixture
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse fixture %s: %w", path, err)
	}
	return &f, nil
}

// SaveFixture writes a fixture as indented JSON, readable enough to edit
// expectations by hand.
func SaveFixture(path string, f *Fixture) error {
	data, err := json.MarshalIndent(f, "", "  ")
	if err != nil {
		return fmt.Errorf("encode fixture: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write fixture %s: %w", path, err)
	}
	return nil
}

// #endregion
