package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/solvelab/tandem/internal/journal"
)

// #region main

func main() {
	dbPath := flag.String("db", "", "path to the session journal db")
	last := flag.Int("last", 20, "show N most recent sessions")
	sessionID := flag.String("session", "", "show single session detail")
	jsonOut := flag.Bool("json", false, "output as JSON instead of table")
	flag.Parse()

	if *dbPath == "" {
		fmt.Fprintln(os.Stderr, "usage: inspect --db path/to/journal.db [--last N] [--session id] [--json]")
		os.Exit(2)
	}

	store, err := journal.Open(*dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open db: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	if *sessionID != "" {
		err = runDetailMode(store, *sessionID, *jsonOut)
	} else {
		err = runListMode(store, *last, *jsonOut)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// #endregion main

// #region list-mode

type sessionRow struct {
	SessionID string `json:"session_id"`
	Task      string `json:"task"`
	Backend   string `json:"backend"`
	Models    string `json:"models"`
	Attempts  int    `json:"attempts"`
	Outcome   string `json:"outcome"`
	StartedAt string `json:"started_at"`
	Age       string `json:"age"`
}

func runListMode(store *journal.Store, last int, jsonOut bool) error {
	sessions, err := store.RecentSessions(last)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(os.Stderr, "no sessions found")
		return nil
	}

	rows := make([]sessionRow, len(sessions))
	for i, s := range sessions {
		rows[i] = sessionRow{
			SessionID: s.SessionID,
			Task:      s.Task,
			Backend:   s.Backend,
			Models:    s.MainModel + " + " + s.AdvisorModel,
			Attempts:  s.Attempts,
			Outcome:   s.Outcome,
			StartedAt: s.StartedAt.Format(time.RFC3339),
			Age:       humanize.Time(s.StartedAt),
		}
	}

	if jsonOut {
		return printJSON(rows)
	}

	fmt.Printf("%-8s  %-9s  %3s  %-7s  %-14s  %-32s  %s\n",
		"Session", "Outcome", "Att", "Backend", "Started", "Models", "Task")
	fmt.Printf("%-8s  %-9s  %3s  %-7s  %-14s  %-32s  %s\n",
		"--------", "---------", "---", "-------", "--------------", "--------------------------------", "--------------------")
	for _, r := range rows {
		fmt.Printf("%-8s  %-9s  %3d  %-7s  %-14s  %-32s  %s\n",
			shortID(r.SessionID), r.Outcome, r.Attempts, r.Backend,
			clip(r.Age, 14), clip(r.Models, 32), clip(r.Task, 48))
	}
	return nil
}

// #endregion list-mode

// #region detail-mode

type attemptRow struct {
	Num       int      `json:"attempt"`
	Outcome   string   `json:"outcome"`
	Actions   int      `json:"actions"`
	Failed    []string `json:"failed_methods,omitempty"`
	Findings  []string `json:"key_findings,omitempty"`
	Strategy  string   `json:"strategy"`
	CreatedAt string   `json:"created_at"`
}

type sessionDetail struct {
	SessionID string       `json:"session_id"`
	Task      string       `json:"task"`
	Backend   string       `json:"backend"`
	Main      string       `json:"main_model"`
	Advisor   string       `json:"advisor_model"`
	StartedAt string       `json:"started_at"`
	Outcome   string       `json:"outcome"`
	Attempts  []attemptRow `json:"attempts"`
}

func runDetailMode(store *journal.Store, sessionID string, jsonOut bool) error {
	sess, err := store.Session(sessionID)
	if err != nil {
		return err
	}
	attempts, err := store.SessionAttempts(sessionID)
	if err != nil {
		return err
	}

	out := sessionDetail{
		SessionID: sess.SessionID,
		Task:      sess.Task,
		Backend:   sess.Backend,
		Main:      sess.MainModel,
		Advisor:   sess.AdvisorModel,
		StartedAt: sess.StartedAt.Format(time.RFC3339),
		Outcome:   sess.Outcome,
	}
	for _, a := range attempts {
		out.Attempts = append(out.Attempts, attemptRow{
			Num:       a.AttemptNum + 1,
			Outcome:   a.Outcome,
			Actions:   a.Actions,
			Failed:    a.FailedMethods,
			Findings:  a.KeyFindings,
			Strategy:  a.Strategy,
			CreatedAt: a.CreatedAt.Format(time.RFC3339),
		})
	}

	if jsonOut {
		return printJSON(out)
	}

	fmt.Printf("Session:  %s\n", out.SessionID)
	fmt.Printf("Task:     %s\n", out.Task)
	fmt.Printf("Backend:  %s\n", out.Backend)
	fmt.Printf("Main:     %s\n", out.Main)
	fmt.Printf("Advisor:  %s\n", out.Advisor)
	fmt.Printf("Started:  %s (%s)\n", out.StartedAt, humanize.Time(sess.StartedAt))
	fmt.Printf("Outcome:  %s (%d attempts)\n", out.Outcome, sess.Attempts)

	if len(out.Attempts) == 0 {
		fmt.Println("\nno attempts recorded")
		return nil
	}

	fmt.Printf("\n%3s  %-9s  %7s  %6s  %8s  %s\n",
		"#", "Outcome", "Actions", "Failed", "Findings", "Strategy")
	for _, a := range out.Attempts {
		fmt.Printf("%3d  %-9s  %7d  %6d  %8d  %s\n",
			a.Num, a.Outcome, a.Actions, len(a.Failed), len(a.Findings), a.Strategy)
	}
	return nil
}

// #endregion detail-mode

// #region output

func printJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	fmt.Println(string(data))
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func clip(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-3]) + "..."
}

// #endregion output
