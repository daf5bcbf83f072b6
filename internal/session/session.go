package session

// #region imports
import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/solvelab/tandem/internal/attempt"
	"github.com/solvelab/tandem/internal/journal"
	"github.com/solvelab/tandem/internal/model"
	"github.com/solvelab/tandem/internal/orchestrator"
)

// #endregion

// #region attempt-types

// Attempt is everything one attempt execution receives: the role assignment
// for this retry index, the rendered history of prior failures, and the task.
type Attempt struct {
	Index    int
	Primary  model.Handle
	Advisor  model.Handle
	Strategy string
	History  string
	Task     string
}

// AttemptFunc executes one attempt and reports (result, solved, err). A
// returned error aborts the session; an unsolved result continues the loop.
type AttemptFunc func(ctx context.Context, a Attempt) (attempt.Result, bool, error)

// Outcome is the final state of a session run.
type Outcome struct {
	Solved        bool
	Attempts      int
	SessionID     string
	FinalStrategy string
}

// #endregion

// #region runner

// Runner drives the bounded retry loop around an orchestrator. The journal
// is optional; a nil store disables persistence.
type Runner struct {
	orch       *orchestrator.Orchestrator
	journal    *journal.Store
	maxRetries int
}

// NewRunner wires a session runner. maxRetries counts retries after the
// first attempt, so the loop executes at most maxRetries+1 attempts.
func NewRunner(orch *orchestrator.Orchestrator, jr *journal.Store, maxRetries int) *Runner {
	return &Runner{orch: orch, journal: jr, maxRetries: maxRetries}
}

// #endregion

// #region run

// Run executes attempts 0..maxRetries until fn reports solved, ctx is
// canceled, or the budget is exhausted. Each attempt sees the formatted
// history of every prior failed attempt. Attempts are strictly sequential;
// exhaustion is a normal outcome, not an error.
func (r *Runner) Run(ctx context.Context, task string, fn AttemptFunc) (Outcome, error) {
	if fn == nil {
		return Outcome{}, errors.New("attempt function is nil")
	}

	first, err := r.orch.DecideRoles(0)
	if err != nil {
		return Outcome{}, err
	}

	var sessionID string
	if r.journal != nil {
		rec, err := r.journal.BeginSession(task, r.orch.Backend(),
			first.Primary.ModelName(), first.Advisor.ModelName())
		if err != nil {
			return Outcome{}, fmt.Errorf("begin journal session: %w", err)
		}
		sessionID = rec.SessionID
	}

	outcome := Outcome{SessionID: sessionID}
	for i := 0; i <= r.maxRetries; i++ {
		select {
		case <-ctx.Done():
			r.finish(sessionID, journal.OutcomeAborted, outcome.Attempts)
			return outcome, ctx.Err()
		default:
		}

		decision, err := r.orch.DecideRoles(i)
		if err != nil {
			r.finish(sessionID, journal.OutcomeAborted, outcome.Attempts)
			return outcome, err
		}
		log.Printf("[SESSION] attempt %d/%d: %s", i+1, r.maxRetries+1, decision.Description)

		res, solved, err := fn(ctx, Attempt{
			Index:    i,
			Primary:  decision.Primary,
			Advisor:  decision.Advisor,
			Strategy: decision.Description,
			History:  r.orch.FormattedHistory(),
			Task:     task,
		})
		if err != nil {
			r.finish(sessionID, journal.OutcomeAborted, outcome.Attempts)
			return outcome, fmt.Errorf("attempt %d: %w", i, err)
		}

		outcome.Attempts = i + 1
		outcome.FinalStrategy = decision.Description

		if solved {
			outcome.Solved = true
			r.journalAttempt(sessionID, i, decision,
				attempt.Summarize(res, decision.Description), journal.OutcomeSolved)
			r.finish(sessionID, journal.OutcomeSolved, outcome.Attempts)
			log.Printf("[SESSION] solved on attempt %d", i+1)
			return outcome, nil
		}

		// Failed attempt: fold into history so the next attempt sees it.
		sum := r.orch.RecordAttempt(res, decision.Description)
		r.journalAttempt(sessionID, i, decision, sum, journal.OutcomeFailed)
	}

	r.finish(sessionID, journal.OutcomeExhausted, outcome.Attempts)
	log.Printf("[SESSION] budget exhausted after %d attempts", outcome.Attempts)
	return outcome, nil
}

// #endregion

// #region journal-writes

// journalAttempt persists one attempt row. Journal write failures are logged
// and do not interrupt the session.
func (r *Runner) journalAttempt(sessionID string, index int, d orchestrator.Decision, sum attempt.Summary, outcome string) {
	if r.journal == nil {
		return
	}
	err := r.journal.RecordAttempt(journal.AttemptRecord{
		SessionID:     sessionID,
		AttemptNum:    index,
		Strategy:      sum.Strategy,
		PrimaryModel:  d.Primary.ModelName(),
		AdvisorModel:  d.Advisor.ModelName(),
		Actions:       sum.Actions,
		FailedMethods: sum.FailedMethods,
		KeyFindings:   sum.KeyFindings,
		Outcome:       outcome,
		CreatedAt:     sum.Timestamp,
	})
	if err != nil {
		log.Printf("[SESSION] journal write failed: %v", err)
	}
}

func (r *Runner) finish(sessionID, outcome string, attempts int) {
	if r.journal == nil {
		return
	}
	if err := r.journal.FinishSession(sessionID, outcome, attempts); err != nil {
		log.Printf("[SESSION] journal finalize failed: %v", err)
	}
}

// #endregion
