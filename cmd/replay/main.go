package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/solvelab/tandem/internal/journal"
	"github.com/solvelab/tandem/internal/replay"
)

// #region main

func main() {
	fixturePath := flag.String("fixture", "", "path to fixture JSON (fixture mode)")
	dbPath := flag.String("db", "", "path to session journal db (journal mode)")
	sessionID := flag.String("session", "", "session id to replay (journal mode)")
	exportPath := flag.String("export", "", "write the assembled fixture to this path (journal mode)")
	jsonOut := flag.Bool("json", false, "emit steps and divergences as JSON")
	flag.Parse()

	fixtureMode := *fixturePath != ""
	journalMode := *dbPath != "" || *sessionID != ""
	if fixtureMode == journalMode || (journalMode && (*dbPath == "" || *sessionID == "")) {
		fmt.Fprintln(os.Stderr, "usage: replay --fixture path/to/session.json [--json]")
		fmt.Fprintln(os.Stderr, "       replay --db path/to/journal.db --session <id> [--export out.json] [--json]")
		os.Exit(2)
	}

	var (
		f   *replay.Fixture
		err error
	)
	if fixtureMode {
		f, err = replay.LoadFixture(*fixturePath)
	} else {
		f, err = fixtureFromJournal(*dbPath, *sessionID)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "assemble fixture: %v\n", err)
		os.Exit(2)
	}

	if *exportPath != "" {
		if err := replay.SaveFixture(*exportPath, f); err != nil {
			fmt.Fprintf(os.Stderr, "export fixture: %v\n", err)
			os.Exit(2)
		}
		fmt.Fprintf(os.Stderr, "fixture written to %s\n", *exportPath)
	}

	results, err := replay.Replay(f)
	if err != nil {
		fmt.Fprintf(os.Stderr, "replay: %v\n", err)
		os.Exit(2)
	}
	divs := replay.Diff(f, results)

	if *jsonOut {
		os.Exit(printJSON(f, results, divs))
	}
	os.Exit(printComparison(results, divs))
}

// #endregion main

// #region journal-extract

// fixtureFromJournal assembles a replay fixture from one recorded session.
// The strategy labels the runner logged become the expected decisions, so
// replaying immediately answers "would today's build decide the same way".
func fixtureFromJournal(dbPath, sessionID string) (*replay.Fixture, error) {
	store, err := journal.Open(dbPath)
	if err != nil {
		return nil, err
	}
	defer store.Close()

	sess, err := store.Session(sessionID)
	if err != nil {
		return nil, err
	}
	rows, err := store.SessionAttempts(sessionID)
	if err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("session %s has no recorded attempts", sessionID)
	}

	f := &replay.Fixture{
		Description:  fmt.Sprintf("session %s: %s", sess.SessionID, sess.Task),
		MainModel:    sess.MainModel,
		AdvisorModel: sess.AdvisorModel,
	}
	for _, r := range rows {
		f.Attempts = append(f.Attempts, replay.FixtureAttempt{
			Strategy:      r.Strategy,
			Actions:       r.Actions,
			FailedMethods: r.FailedMethods,
			KeyFindings:   r.KeyFindings,
			Timestamp:     r.CreatedAt,
		})
		f.ExpectedDecisions = append(f.ExpectedDecisions, r.Strategy)
	}
	return f, nil
}

// #endregion journal-extract

// #region output

// printComparison prints a per-step table and returns the exit code.
func printComparison(results []replay.StepResult, divs []replay.Divergence) int {
	decisionDivs := make(map[int]replay.Divergence, len(divs))
	historyDrift := false
	for _, d := range divs {
		if d.Field == "history" {
			historyDrift = true
			continue
		}
		decisionDivs[d.Index] = d
	}

	fmt.Printf("%-5s| %-6s| %s\n", "Step", "Match", "Replayed decision")
	fmt.Printf("%-5s+%-6s+%s\n", "-----", "-------", "------------------")

	matches := 0
	for _, r := range results {
		if d, ok := decisionDivs[r.Index]; ok {
			fmt.Printf("%-5d| %-6s| %s\n", r.Index, "DIFF", r.Decision)
			fmt.Printf("%-5s| %-6s| expected: %s\n", "", "", d.Want)
			continue
		}
		matches++
		fmt.Printf("%-5d| %-6s| %s\n", r.Index, "OK", r.Decision)
	}

	if historyDrift {
		fmt.Println("\nhistory: DIFF (final block no longer matches the recorded expectation)")
	}
	fmt.Printf("\nSummary: %d steps, %d match, %d diverge\n", len(results), matches, len(divs))

	if len(divs) > 0 {
		return 1
	}
	return 0
}

func printJSON(f *replay.Fixture, results []replay.StepResult, divs []replay.Divergence) int {
	report := struct {
		Description string              `json:"description"`
		Steps       []replay.StepResult `json:"steps"`
		Divergences []replay.Divergence `json:"divergences,omitempty"`
	}{f.Description, results, divs}

	data, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		fmt.Fprintf(os.Stderr, "encode report: %v\n", err)
		return 2
	}
	fmt.Println(string(data))

	if len(divs) > 0 {
		return 1
	}
	return 0
}

// #endregion output
