package journal

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id    TEXT PRIMARY KEY,
	task          TEXT NOT NULL,
	backend       TEXT NOT NULL,
	main_model    TEXT NOT NULL,
	advisor_model TEXT NOT NULL,
	started_at    TEXT NOT NULL,
	outcome       TEXT NOT NULL DEFAULT 'running',
	attempts      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS attempts (
	id             INTEGER PRIMARY KEY AUTOINCREMENT,
	session_id     TEXT NOT NULL,
	attempt_num    INTEGER NOT NULL,
	strategy       TEXT NOT NULL,
	primary_model  TEXT NOT NULL,
	advisor_model  TEXT NOT NULL,
	actions        INTEGER NOT NULL,
	failed_methods TEXT NOT NULL DEFAULT '[]',
	key_findings   TEXT NOT NULL DEFAULT '[]',
	outcome        TEXT NOT NULL,
	created_at     TEXT NOT NULL,
	FOREIGN KEY (session_id) REFERENCES sessions(session_id)
);

CREATE INDEX IF NOT EXISTS idx_attempts_session
ON attempts(session_id, attempt_num);
`

// #endregion schema

// #region store-struct
// Store persists sessions and their attempts in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// Open opens a SQLite journal and runs migrations.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// #region close
// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// #endregion close

// #region db-accessor
// DB returns the underlying *sql.DB for use by other packages.
func (s *Store) DB() *sql.DB {
	return s.db
}

// #endregion db-accessor

// #region begin-session
// BeginSession inserts a new running session and returns its record.
func (s *Store) BeginSession(task, backend, mainModel, advisorModel string) (SessionRecord, error) {
	rec := SessionRecord{
		SessionID:    uuid.New().String(),
		Task:         task,
		Backend:      backend,
		MainModel:    mainModel,
		AdvisorModel: advisorModel,
		StartedAt:    time.Now().UTC(),
		Outcome:      OutcomeRunning,
	}

	_, err := s.db.Exec(
		`INSERT INTO sessions (session_id, task, backend, main_model, advisor_model, started_at, outcome, attempts)
		 VALUES (?, ?, ?, ?, ?, ?, ?, 0)`,
		rec.SessionID, rec.Task, rec.Backend, rec.MainModel, rec.AdvisorModel,
		rec.StartedAt.Format(time.RFC3339Nano), rec.Outcome,
	)
	if err != nil {
		return SessionRecord{}, fmt.Errorf("insert session: %w", err)
	}
	return rec, nil
}

// #endregion begin-session

// #region record-attempt
// RecordAttempt persists a single finished attempt row.
func (s *Store) RecordAttempt(rec AttemptRecord) error {
	failedJSON, err := marshalStrings(rec.FailedMethods)
	if err != nil {
		return fmt.Errorf("marshal failed methods: %w", err)
	}
	findingsJSON, err := marshalStrings(rec.KeyFindings)
	if err != nil {
		return fmt.Errorf("marshal key findings: %w", err)
	}

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}

	_, err = s.db.Exec(
		`INSERT INTO attempts
		 (session_id, attempt_num, strategy, primary_model, advisor_model,
		  actions, failed_methods, key_findings, outcome, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		rec.SessionID, rec.AttemptNum, rec.Strategy, rec.PrimaryModel, rec.AdvisorModel,
		rec.Actions, failedJSON, findingsJSON, rec.Outcome,
		createdAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert attempt: %w", err)
	}
	return nil
}

// #endregion record-attempt

// #region finish-session
// FinishSession finalizes a session's outcome and attempt count.
func (s *Store) FinishSession(sessionID, outcome string, attempts int) error {
	res, err := s.db.Exec(
		`UPDATE sessions SET outcome = ?, attempts = ? WHERE session_id = ?`,
		outcome, attempts, sessionID,
	)
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish session: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("session %s not found", sessionID)
	}
	return nil
}

// #endregion finish-session

// #region recent-sessions
// RecentSessions returns the most recently started sessions.
func (s *Store) RecentSessions(limit int) ([]SessionRecord, error) {
	rows, err := s.db.Query(
		`SELECT session_id, task, backend, main_model, advisor_model, started_at, outcome, attempts
		 FROM sessions ORDER BY rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var startedStr string
		if err := rows.Scan(&rec.SessionID, &rec.Task, &rec.Backend, &rec.MainModel,
			&rec.AdvisorModel, &startedStr, &rec.Outcome, &rec.Attempts); err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		rec.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion recent-sessions

// #region session-lookup
// Session returns the stored record for one session.
func (s *Store) Session(sessionID string) (SessionRecord, error) {
	var rec SessionRecord
	var startedStr string
	err := s.db.QueryRow(
		`SELECT session_id, task, backend, main_model, advisor_model, started_at, outcome, attempts
		 FROM sessions WHERE session_id = ?`, sessionID,
	).Scan(&rec.SessionID, &rec.Task, &rec.Backend, &rec.MainModel,
		&rec.AdvisorModel, &startedStr, &rec.Outcome, &rec.Attempts)
	if err == sql.ErrNoRows {
		return SessionRecord{}, fmt.Errorf("session %s not found", sessionID)
	}
	if err != nil {
		return SessionRecord{}, fmt.Errorf("load session: %w", err)
	}
	rec.StartedAt, _ = time.Parse(time.RFC3339Nano, startedStr)
	return rec, nil
}

// #endregion session-lookup

// #region session-attempts
// SessionAttempts returns every attempt of a session in attempt order.
func (s *Store) SessionAttempts(sessionID string) ([]AttemptRecord, error) {
	rows, err := s.db.Query(
		`SELECT session_id, attempt_num, strategy, primary_model, advisor_model,
		        actions, failed_methods, key_findings, outcome, created_at
		 FROM attempts WHERE session_id = ? ORDER BY attempt_num ASC`, sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("list attempts: %w", err)
	}
	defer rows.Close()

	var records []AttemptRecord
	for rows.Next() {
		var rec AttemptRecord
		var failedJSON, findingsJSON, createdStr string
		if err := rows.Scan(&rec.SessionID, &rec.AttemptNum, &rec.Strategy,
			&rec.PrimaryModel, &rec.AdvisorModel, &rec.Actions,
			&failedJSON, &findingsJSON, &rec.Outcome, &createdStr); err != nil {
			return nil, fmt.Errorf("scan attempt: %w", err)
		}
		rec.FailedMethods = unmarshalStrings(failedJSON)
		rec.KeyFindings = unmarshalStrings(findingsJSON)
		rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// #endregion session-attempts

// #region json-helpers
func marshalStrings(v []string) (string, error) {
	if len(v) == 0 {
		return "[]", nil
	}
	b, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// unmarshalStrings tolerates malformed rows; a bad column reads as empty.
func unmarshalStrings(s string) []string {
	var out []string
	if err := json.Unmarshal([]byte(s), &out); err != nil {
		return nil
	}
	return out
}

// #endregion json-helpers
