package cli

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/solvelab/tandem/internal/attempt"
	"github.com/solvelab/tandem/internal/model"
	"github.com/solvelab/tandem/internal/session"
)

// replyHandle is a scripted model.Handle that returns one fixed reply.
type replyHandle struct {
	name  string
	reply model.Message
	err   error
	calls int
	last  []model.Message
}

func (h *replyHandle) Generate(_ context.Context, msgs []model.Message) (model.Response, error) {
	h.calls++
	h.last = msgs
	if h.err != nil {
		return model.Response{}, h.err
	}
	return model.Response{Message: h.reply, Model: h.name}, nil
}

func (h *replyHandle) ModelName() string { return h.name }

func assistant(content string) model.Message {
	return model.Message{Role: model.RoleAssistant, Content: content}
}

func TestResolveTask_Inline(t *testing.T) {
	task, err := resolveTask("find the flag", "")
	if err != nil {
		t.Fatalf("resolveTask: %v", err)
	}
	if task != "find the flag" {
		t.Errorf("unexpected task %q", task)
	}
}

func TestResolveTask_FromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "task.txt")
	if err := os.WriteFile(path, []byte("  recover the admin password\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	task, err := resolveTask("", path)
	if err != nil {
		t.Fatalf("resolveTask: %v", err)
	}
	if task != "recover the admin password" {
		t.Errorf("expected trimmed file content, got %q", task)
	}
}

func TestResolveTask_BothSourcesRejected(t *testing.T) {
	if _, err := resolveTask("a", "b.txt"); err == nil {
		t.Fatal("expected error when both sources are set")
	}
}

func TestResolveTask_NoSource(t *testing.T) {
	if _, err := resolveTask("", ""); err == nil {
		t.Fatal("expected error when no source is set")
	}
}

func TestResolveTask_EmptyFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.txt")
	if err := os.WriteFile(path, []byte("  \n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if _, err := resolveTask("", path); err == nil {
		t.Fatal("expected error for empty task file")
	}
}

func TestExecutorAttempt_SolvedOnMarker(t *testing.T) {
	primary := &replyHandle{name: "solver", reply: assistant("probing the login form\nflag{c4ptur3d} found")}
	advisor := &replyHandle{name: "critic", reply: assistant("unused")}
	e := &executor{marker: "flag{"}

	res, solved, err := e.attempt(context.Background(), session.Attempt{
		Index: 0, Primary: primary, Advisor: advisor, Task: "find the flag",
	})
	if err != nil {
		t.Fatalf("attempt: %v", err)
	}
	if !solved {
		t.Fatal("expected marker to count as solved")
	}
	if advisor.calls != 0 {
		t.Errorf("advisor should not be consulted on success, called %d times", advisor.calls)
	}
	if len(res.Messages) != 1 {
		t.Errorf("expected 1 recorded message, got %d", len(res.Messages))
	}
}

func TestExecutorAttempt_ConsultsAdvisorOnFailure(t *testing.T) {
	primary := &replyHandle{name: "solver", reply: assistant("tried default credentials\nlogin failed")}
	advisor := &replyHandle{name: "critic", reply: assistant("The solver assumed default credentials.\nTry the API surface instead.")}
	e := &executor{marker: "flag{"}

	res, solved, err := e.attempt(context.Background(), session.Attempt{
		Index: 1, Primary: primary, Advisor: advisor,
		Task: "break into the panel", History: "## prior history block",
	})
	if err != nil {
		t.Fatalf("attempt: %v", err)
	}
	if solved {
		t.Fatal("reply without the marker must not count as solved")
	}

	if len(primary.last) != 3 {
		t.Fatalf("primary should see system+history+task, got %d messages", len(primary.last))
	}
	if primary.last[1].Content != "## prior history block" {
		t.Errorf("history not threaded to the primary: %q", primary.last[1].Content)
	}
	if primary.last[2].Content != "break into the panel" {
		t.Errorf("task not threaded to the primary: %q", primary.last[2].Content)
	}

	if advisor.calls != 1 {
		t.Fatalf("advisor consulted %d times, want 1", advisor.calls)
	}
	critiqueReq := advisor.last[len(advisor.last)-1].Content
	if !strings.Contains(critiqueReq, "break into the panel") || !strings.Contains(critiqueReq, "login failed") {
		t.Errorf("critique request missing task or attempt: %q", critiqueReq)
	}

	if len(res.Findings) != 1 {
		t.Fatalf("expected 1 finding, got %d", len(res.Findings))
	}
	if res.Findings[0] != "advisor: The solver assumed default credentials." {
		t.Errorf("unexpected finding %v", res.Findings[0])
	}
	if len(res.Messages) != 2 {
		t.Errorf("expected reply and critique recorded, got %d messages", len(res.Messages))
	}
}

func TestExecutorAttempt_EmptyMarkerRunsFullBudget(t *testing.T) {
	primary := &replyHandle{name: "solver", reply: assistant("flag{found} but nobody asked")}
	advisor := &replyHandle{name: "critic", reply: assistant("keep going")}
	e := &executor{}

	_, solved, err := e.attempt(context.Background(), session.Attempt{
		Index: 0, Primary: primary, Advisor: advisor, Task: "task",
	})
	if err != nil {
		t.Fatalf("attempt: %v", err)
	}
	if solved {
		t.Fatal("empty marker must never report solved")
	}
	if advisor.calls != 1 {
		t.Errorf("advisor should still critique, called %d times", advisor.calls)
	}
}

func TestExecutorAttempt_PrimaryFailureAborts(t *testing.T) {
	boom := errors.New("boom")
	primary := &replyHandle{name: "solver", err: boom}
	advisor := &replyHandle{name: "critic"}
	e := &executor{marker: "flag{"}

	_, _, err := e.attempt(context.Background(), session.Attempt{
		Index: 0, Primary: primary, Advisor: advisor, Task: "task",
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected primary error to surface, got: %v", err)
	}
	if advisor.calls != 0 {
		t.Errorf("advisor consulted after primary failure")
	}
}

func TestExecutorAttempt_AdvisorFailureTolerated(t *testing.T) {
	primary := &replyHandle{name: "solver", reply: assistant("attempt failed")}
	advisor := &replyHandle{name: "critic", err: errors.New("endpoint down")}
	e := &executor{marker: "flag{"}

	res, solved, err := e.attempt(context.Background(), session.Attempt{
		Index: 2, Primary: primary, Advisor: advisor, Task: "task",
	})
	if err != nil {
		t.Fatalf("advisor failure must not abort the attempt: %v", err)
	}
	if solved {
		t.Fatal("unexpected solve")
	}
	if len(res.Findings) != 0 {
		t.Errorf("no findings expected without a critique, got %v", res.Findings)
	}
	if len(res.Messages) != 1 {
		t.Errorf("only the primary reply should be recorded, got %d messages", len(res.Messages))
	}
}

func TestLogActions_NarrationAndToolCalls(t *testing.T) {
	var res attempt.Result
	logActions(&res, model.Message{
		Role:    model.RoleAssistant,
		Content: "scanning ports\n\n   \nfound 22 open",
		ToolCalls: []model.ToolCall{
			{Name: "run_shell", Arguments: `{"cmd":"nmap -p- target"}`},
		},
	})

	want := []string{
		"scanning ports",
		"found 22 open",
		`run_shell({"cmd":"nmap -p- target"})`,
	}
	if len(res.ActionLog) != len(want) {
		t.Fatalf("expected %d entries, got %d: %v", len(want), len(res.ActionLog), res.ActionLog)
	}
	for i, w := range want {
		if res.ActionLog[i] != w {
			t.Errorf("entry %d: got %v, want %q", i, res.ActionLog[i], w)
		}
	}
}

func TestFirstLine_SkipsBlanksAndBoundsRunes(t *testing.T) {
	if got := firstLine("\n\n  \nthe point\nmore"); got != "the point" {
		t.Errorf("expected first non-empty line, got %q", got)
	}

	long := strings.Repeat("错", 250)
	got := firstLine(long)
	if runes := []rune(got); len(runes) != 200 {
		t.Errorf("expected 200 runes, got %d", len(runes))
	}
	if !strings.HasPrefix(long, got) {
		t.Error("truncation must keep a clean prefix")
	}
}
