package orchestrator

// #region imports
import (
	"errors"
	"fmt"
	"log"

	"github.com/solvelab/tandem/internal/attempt"
	"github.com/solvelab/tandem/internal/config"
	"github.com/solvelab/tandem/internal/history"
	"github.com/solvelab/tandem/internal/model"
)

// #endregion

// #region errors

// ErrInvalidRetryIndex reports a negative retry index. Negative indices are
// a caller contract violation, not a recoverable condition.
var ErrInvalidRetryIndex = errors.New("retry index must be non-negative")

// #endregion

// #region decision

// Decision assigns the session's two model handles to roles for one retry.
// Recomputed fresh per index and never stored.
type Decision struct {
	Primary     model.Handle
	Advisor     model.Handle
	Description string
}

// #endregion

// #region orchestrator-struct

// Orchestrator owns the two long-lived model handles of a solving session
// and accumulates one summary per finished attempt. It decides which handle
// drives each retry; executing attempts belongs to the caller.
type Orchestrator struct {
	main     model.Handle
	advisor  model.Handle
	backend  string
	attempts []attempt.Summary
}

// #endregion

// #region constructors

// New resolves the configured backend and creates exactly two model handles,
// bound for the session's lifetime. Provider errors (model.ErrConfiguration,
// model.ErrConnection) surface unchanged.
func New(cfg *config.Config) (*Orchestrator, error) {
	main, err := model.NewMainHandle(cfg)
	if err != nil {
		return nil, err
	}
	advisor, err := model.NewAdvisorHandle(cfg)
	if err != nil {
		return nil, err
	}
	log.Printf("[ORCH] session ready: backend=%s main=%s advisor=%s",
		cfg.Backend, main.ModelName(), advisor.ModelName())
	o := NewWithHandles(main, advisor)
	o.backend = cfg.Backend
	return o, nil
}

// NewWithHandles wires an orchestrator around existing handles.
func NewWithHandles(main, advisor model.Handle) *Orchestrator {
	return &Orchestrator{main: main, advisor: advisor}
}

// Backend reports the configured backend selector, or "" for handle-injected
// orchestrators.
func (o *Orchestrator) Backend() string {
	return o.backend
}

// #endregion

// #region decide-roles

// DecideRoles assigns primary and advisor for the given retry index. The
// assignment alternates strictly by parity: even indices keep the main model
// driving, odd indices swap the pair so the advisor drives.
//
// Pure apart from an informational log line: the same index always yields
// the same handle identities. Any non-negative index is valid; the caller
// owns the retry budget.
func (o *Orchestrator) DecideRoles(retryIndex int) (Decision, error) {
	if retryIndex < 0 {
		return Decision{}, fmt.Errorf("%w: got %d", ErrInvalidRetryIndex, retryIndex)
	}

	primary, advisor := o.main, o.advisor
	if retryIndex%2 == 1 {
		primary, advisor = o.advisor, o.main
		log.Printf("[ORCH] retry %d: roles swapped → %s drives", retryIndex, primary.ModelName())
	}

	desc := fmt.Sprintf("%s (primary) + %s (advisor)", primary.ModelName(), advisor.ModelName())
	if retryIndex > 0 {
		desc += fmt.Sprintf(" [retry %d]", retryIndex)
	}

	return Decision{Primary: primary, Advisor: advisor, Description: desc}, nil
}

// #endregion

// #region attempt-history

// RecordAttempt summarizes a finished attempt and appends it to the session
// history. Returns the summary it recorded.
func (o *Orchestrator) RecordAttempt(res attempt.Result, strategy string) attempt.Summary {
	s := attempt.Summarize(res, strategy)
	o.attempts = append(o.attempts, s)
	log.Printf("[ORCH] attempt %d recorded: strategy=%q actions=%d failed=%d findings=%d",
		len(o.attempts), strategy, s.Actions, len(s.FailedMethods), len(s.KeyFindings))
	return s
}

// History returns a copy of the recorded summaries in attempt order.
func (o *Orchestrator) History() []attempt.Summary {
	out := make([]attempt.Summary, len(o.attempts))
	copy(out, o.attempts)
	return out
}

// FormattedHistory renders the recorded history as the context block for the
// next attempt.
func (o *Orchestrator) FormattedHistory() string {
	return history.Format(o.attempts)
}

// Attempts returns the number of recorded attempts.
func (o *Orchestrator) Attempts() int {
	return len(o.attempts)
}

// #endregion
