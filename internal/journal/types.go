package journal

import "time"

// #region outcomes
// Outcome states. A session starts as running and is finalized exactly once;
// attempt rows carry solved or failed.
const (
	OutcomeRunning   = "running"
	OutcomeSolved    = "solved"
	OutcomeFailed    = "failed"
	OutcomeExhausted = "exhausted"
	OutcomeAborted   = "aborted"
)

// #endregion outcomes

// #region session-record
// SessionRecord is one task-solving session as persisted in the journal.
type SessionRecord struct {
	SessionID    string
	Task         string
	Backend      string
	MainModel    string
	AdvisorModel string
	StartedAt    time.Time
	Outcome      string
	Attempts     int
}

// #endregion session-record

// #region attempt-record
// AttemptRecord is one finished attempt within a session.
type AttemptRecord struct {
	SessionID     string
	AttemptNum    int
	Strategy      string
	PrimaryModel  string
	AdvisorModel  string
	Actions       int
	FailedMethods []string
	KeyFindings   []string
	Outcome       string
	CreatedAt     time.Time
}

// #endregion attempt-record
