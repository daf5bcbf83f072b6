package history

import (
	"fmt"
	"strings"
	"testing"

	"github.com/solvelab/tandem/internal/attempt"
)

func TestFormat_EmptyHistory(t *testing.T) {
	if got := Format(nil); got != "" {
		t.Errorf("Format(nil) = %q, want empty string", got)
	}
	if got := Format([]attempt.Summary{}); got != "" {
		t.Errorf("Format(empty) = %q, want empty string", got)
	}
}

func TestFormat_SingleSummary(t *testing.T) {
	hist := []attempt.Summary{
		{
			Strategy:      "sql injection",
			Actions:       3,
			FailedMethods: []string{"union select probe", "comment bypass"},
			KeyFindings:   []string{"login form strips quotes"},
		},
	}

	want := "## 📜 Prior attempt history (do not repeat these failed approaches)\n" +
		"\n" +
		"### Attempt 1: sql injection\n" +
		"- **Actions taken**: 3\n" +
		"- **Methods that already failed**:\n" +
		"  - ❌ union select probe\n" +
		"  - ❌ comment bypass\n" +
		"- **Key findings**:\n" +
		"  - 💡 login form strips quotes\n" +
		"\n" +
		"**⚠️ Important**: all methods listed above have already failed. You must take a fundamentally different approach.\n"

	if got := Format(hist); got != want {
		t.Errorf("Format mismatch:\ngot:\n%s\nwant:\n%s", got, want)
	}
}

func TestFormat_OmitsEmptySections(t *testing.T) {
	hist := []attempt.Summary{{Strategy: "quiet attempt", Actions: 0}}

	got := Format(hist)

	if strings.Contains(got, "Methods that already failed") {
		t.Error("empty failed methods should omit the section")
	}
	if strings.Contains(got, "Key findings") {
		t.Error("empty key findings should omit the section")
	}
	if !strings.Contains(got, "### Attempt 1: quiet attempt") {
		t.Error("missing attempt section header")
	}
	if !strings.Contains(got, "- **Actions taken**: 0") {
		t.Error("missing actions line")
	}
}

func TestFormat_ClosingNoteExactlyOnce(t *testing.T) {
	hist := []attempt.Summary{
		{Strategy: "first", Actions: 1, FailedMethods: []string{"a failed"}},
		{Strategy: "second", Actions: 2, FailedMethods: []string{"b failed"}},
		{Strategy: "third", Actions: 3},
	}

	got := Format(hist)

	if n := strings.Count(got, closing); n != 1 {
		t.Errorf("closing note appears %d times, want exactly 1", n)
	}
	if n := strings.Count(got, heading); n != 1 {
		t.Errorf("heading appears %d times, want exactly 1", n)
	}
}

func TestFormat_TruncatesAtRender(t *testing.T) {
	var methods []string
	for i := 0; i < 12; i++ {
		methods = append(methods, fmt.Sprintf("method %d failed", i))
	}
	var findings []string
	for i := 0; i < 7; i++ {
		findings = append(findings, fmt.Sprintf("finding %d", i))
	}
	hist := []attempt.Summary{
		{Strategy: "oversized", Actions: 12, FailedMethods: methods, KeyFindings: findings},
	}

	got := Format(hist)

	if n := strings.Count(got, "❌"); n != 10 {
		t.Errorf("rendered %d failed-method bullets, want 10", n)
	}
	if n := strings.Count(got, "💡"); n != 5 {
		t.Errorf("rendered %d finding bullets, want 5", n)
	}
	if strings.Contains(got, "method 10 failed") {
		t.Error("bullet beyond the bound should not render")
	}
}

func TestFormat_ChronologicalOrder(t *testing.T) {
	hist := []attempt.Summary{
		{Strategy: "alpha", Actions: 1},
		{Strategy: "beta", Actions: 2},
	}

	got := Format(hist)

	first := strings.Index(got, "### Attempt 1: alpha")
	second := strings.Index(got, "### Attempt 2: beta")
	if first == -1 || second == -1 {
		t.Fatalf("missing section headers:\n%s", got)
	}
	if first > second {
		t.Error("sections out of chronological order")
	}
}

func TestFormat_Deterministic(t *testing.T) {
	hist := []attempt.Summary{
		{Strategy: "alpha", Actions: 1, FailedMethods: []string{"x failed"}, KeyFindings: []string{"y"}},
		{Strategy: "beta", Actions: 2},
	}

	if Format(hist) != Format(hist) {
		t.Error("formatting the same history twice should be byte-identical")
	}
}
