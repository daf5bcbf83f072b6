package history

// #region imports
import (
	"fmt"
	"strings"

	"github.com/solvelab/tandem/internal/attempt"
)

// #endregion

// #region format

const (
	heading = "## 📜 Prior attempt history (do not repeat these failed approaches)"
	closing = "**⚠️ Important**: all methods listed above have already failed. You must take a fundamentally different approach."
)

// Format renders attempt summaries into a single text block for injection
// into the next attempt's context. Empty history yields an empty string.
// Output is deterministic: identical history, byte-identical text. The block
// itself is opaque downstream; nothing in this package reads it back.
func Format(history []attempt.Summary) string {
	if len(history) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(heading)
	b.WriteString("\n\n")

	for i, s := range history {
		fmt.Fprintf(&b, "### Attempt %d: %s\n", i+1, s.Strategy)
		fmt.Fprintf(&b, "- **Actions taken**: %d\n", s.Actions)
		if len(s.FailedMethods) > 0 {
			b.WriteString("- **Methods that already failed**:\n")
			for _, m := range truncate(s.FailedMethods, attempt.MaxFailedMethods) {
				fmt.Fprintf(&b, "  - ❌ %s\n", m)
			}
		}
		if len(s.KeyFindings) > 0 {
			b.WriteString("- **Key findings**:\n")
			for _, f := range truncate(s.KeyFindings, attempt.MaxKeyFindings) {
				fmt.Fprintf(&b, "  - 💡 %s\n", f)
			}
		}
		b.WriteString("\n")
	}

	b.WriteString(closing)
	b.WriteString("\n")
	return b.String()
}

// truncate bounds a bullet list without copying. Summaries built by the
// recorder are already bounded; hand-built ones may not be.
func truncate(entries []string, max int) []string {
	if len(entries) > max {
		return entries[:max]
	}
	return entries
}

// #endregion
