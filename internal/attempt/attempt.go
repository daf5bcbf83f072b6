package attempt

// #region imports
import (
	"fmt"
	"strings"
	"time"

	"github.com/solvelab/tandem/internal/model"
)

// #endregion

// #region limits

// Summary bounds. The formatter applies the same bounds at render time, so
// hand-built summaries never overflow a prompt either.
const (
	MaxFailedMethods = 10
	MaxKeyFindings   = 5
)

// #endregion

// #region keywords

// failureKeywords mark an action log entry as a failed method. Matching is
// case-insensitive substring search over the rendered entry; the set covers
// the localized markers bilingual task harnesses emit alongside the English
// ones. The set is fixed so every session classifies identically.
var failureKeywords = []string{
	"failed",
	"error",
	"失败",
	"错误",
}

// #endregion

// #region types

// Result is the raw outcome of a single attempt, as handed back by the
// attempt executor. ActionLog and Findings hold opaque records; rendering
// is best-effort and never fails.
type Result struct {
	Messages  []model.Message
	ActionLog []interface{}
	Findings  []interface{}
	StartedAt time.Time
}

// Summary condenses one attempt into the form injected into the next
// attempt's context. Immutable once built.
type Summary struct {
	Strategy      string
	Actions       int
	FailedMethods []string
	KeyFindings   []string
	Timestamp     time.Time
}

// #endregion

// #region summarize

// Summarize converts a raw attempt result into a Summary. It is total over
// its input: nil slices, absent findings, and zero timestamps degrade to
// empty fields rather than errors.
func Summarize(res Result, strategy string) Summary {
	var failed []string
	for _, entry := range res.ActionLog {
		text := render(entry)
		if isFailure(text) {
			failed = append(failed, text)
		}
	}
	if len(failed) > MaxFailedMethods {
		failed = failed[:MaxFailedMethods]
	}

	var findings []string
	for _, f := range res.Findings {
		findings = append(findings, render(f))
	}
	if len(findings) > MaxKeyFindings {
		findings = findings[:MaxKeyFindings]
	}

	actions := 0
	for _, m := range res.Messages {
		if m.ActionProducing() {
			actions++
		}
	}

	return Summary{
		Strategy:      strategy,
		Actions:       actions,
		FailedMethods: failed,
		KeyFindings:   findings,
		Timestamp:     res.StartedAt,
	}
}

// #endregion

// #region classification

// isFailure reports whether a rendered log entry carries a failure marker.
// Order and duplicates of matching entries are preserved by the caller.
func isFailure(entry string) bool {
	lower := strings.ToLower(entry)
	for _, kw := range failureKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// render turns an opaque record into text. Strings pass through verbatim.
func render(v interface{}) string {
	return fmt.Sprint(v)
}

// #endregion
