package cli

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/solvelab/tandem/internal/attempt"
	"github.com/solvelab/tandem/internal/config"
	"github.com/solvelab/tandem/internal/journal"
	"github.com/solvelab/tandem/internal/model"
	"github.com/solvelab/tandem/internal/orchestrator"
	"github.com/solvelab/tandem/internal/session"
)

// solveFlags holds CLI flag values that override config settings. Only flags
// explicitly changed by the user are applied (checked via cmd.Flags().Changed).
var solveFlags struct {
	configPath    string
	task          string
	taskFile      string
	maxRetries    int
	journalPath   string
	successMarker string
}

var solveCmd = &cobra.Command{
	Use:   "solve",
	Short: "Run a task through the two-model retry loop",
	Long: `Run a task through the two-model retry loop. The primary model works the
task, the advisor critiques every failed attempt, and the pair swaps roles
on each retry. Prior failures are summarized into the next attempt's context.`,
	RunE: runSolve,
}

func init() {
	solveCmd.Flags().StringVar(&solveFlags.configPath, "config", "", "path to a tandem config file (default: TANDEM_* environment)")
	solveCmd.Flags().StringVar(&solveFlags.task, "task", "", "task text to solve")
	solveCmd.Flags().StringVar(&solveFlags.taskFile, "task-file", "", "read the task text from a file")
	solveCmd.Flags().IntVar(&solveFlags.maxRetries, "max-retries", 0, "override session max_retries from config")
	solveCmd.Flags().StringVar(&solveFlags.journalPath, "journal", "", "override the sqlite journal path from config (empty disables journaling)")
	solveCmd.Flags().StringVar(&solveFlags.successMarker, "success-marker", "", "substring of a primary reply that counts as solved (empty: run the whole budget)")
}

func runSolve(cmd *cobra.Command, args []string) error {
	task, err := resolveTask(solveFlags.task, solveFlags.taskFile)
	if err != nil {
		return err
	}

	cfg, err := config.LoadOrEnv(solveFlags.configPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cmd.Flags().Changed("max-retries") {
		cfg.Session.MaxRetries = solveFlags.maxRetries
	}
	if cmd.Flags().Changed("journal") {
		cfg.Session.Journal = solveFlags.journalPath
	}

	orch, err := orchestrator.New(cfg)
	if err != nil {
		return fmt.Errorf("create orchestrator: %w", err)
	}

	var jr *journal.Store
	if cfg.Session.Journal != "" {
		jr, err = journal.Open(cfg.Session.Journal)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer jr.Close()
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	exec := &executor{marker: solveFlags.successMarker}
	runner := session.NewRunner(orch, jr, cfg.Session.MaxRetries)

	outcome, err := runner.Run(ctx, task, exec.attempt)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return fmt.Errorf("interrupted after %d attempt(s)", outcome.Attempts)
		}
		return fmt.Errorf("session: %w", err)
	}

	if outcome.Solved {
		fmt.Printf("solved in %d attempt(s) by %s\n", outcome.Attempts, outcome.FinalStrategy)
	} else {
		fmt.Printf("budget exhausted after %d attempt(s); last pairing: %s\n", outcome.Attempts, outcome.FinalStrategy)
	}
	if outcome.SessionID != "" {
		fmt.Printf("journaled as session %s\n", outcome.SessionID)
	}
	return nil
}

// resolveTask picks the task text from --task or --task-file.
func resolveTask(inline, file string) (string, error) {
	switch {
	case inline != "" && file != "":
		return "", errors.New("--task and --task-file are mutually exclusive")
	case inline != "":
		return inline, nil
	case file != "":
		data, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read task file: %w", err)
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			return "", fmt.Errorf("task file %s is empty", file)
		}
		return text, nil
	default:
		return "", errors.New("provide a task with --task or --task-file")
	}
}

// #region executor

const solverPrompt = `You are the primary solver in a two-model tandem. Work the task
step by step, narrate every action on its own line, and say plainly when an
approach fails. Quote the requested completion proof verbatim once you have it.`

const advisorPrompt = `You are the advisor in a two-model tandem. Read the solver's
attempt, name its weakest assumption, and propose one fundamentally different
approach. Keep the critique short.`

// executor turns one decided attempt into model calls: the primary works the
// task, and when the success marker is absent the advisor's critique is
// folded into the attempt findings for the next round.
type executor struct {
	marker string
}

func (e *executor) attempt(ctx context.Context, a session.Attempt) (attempt.Result, bool, error) {
	res := attempt.Result{StartedAt: time.Now().UTC()}

	msgs := []model.Message{{Role: model.RoleSystem, Content: solverPrompt}}
	if a.History != "" {
		msgs = append(msgs, model.Message{Role: model.RoleUser, Content: a.History})
	}
	msgs = append(msgs, model.Message{Role: model.RoleUser, Content: a.Task})

	reply, err := a.Primary.Generate(ctx, msgs)
	if err != nil {
		return res, false, fmt.Errorf("primary generate: %w", err)
	}
	res.Messages = append(res.Messages, reply.Message)
	logActions(&res, reply.Message)

	if e.marker != "" && strings.Contains(reply.Message.Content, e.marker) {
		return res, true, nil
	}

	critique, err := a.Advisor.Generate(ctx, []model.Message{
		{Role: model.RoleSystem, Content: advisorPrompt},
		{Role: model.RoleUser, Content: fmt.Sprintf("Task:\n%s\n\nSolver attempt:\n%s", a.Task, reply.Message.Content)},
	})
	if err != nil {
		// The critique is advisory; a dead advisor must not end the session.
		log.Printf("[SOLVE] advisor unavailable on attempt %d: %v", a.Index+1, err)
		return res, false, nil
	}
	res.Messages = append(res.Messages, critique.Message)
	if line := firstLine(critique.Message.Content); line != "" {
		res.Findings = append(res.Findings, "advisor: "+line)
	}
	return res, false, nil
}

// logActions records the narrated steps and proposed tool calls of a reply.
func logActions(res *attempt.Result, msg model.Message) {
	for _, line := range strings.Split(msg.Content, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			res.ActionLog = append(res.ActionLog, line)
		}
	}
	for _, tc := range msg.ToolCalls {
		res.ActionLog = append(res.ActionLog, fmt.Sprintf("%s(%s)", tc.Name, tc.Arguments))
	}
}

// firstLine returns the first non-empty line, bounded so one verbose critique
// cannot dominate the next attempt's context.
func firstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			if runes := []rune(line); len(runes) > 200 {
				return string(runes[:200])
			}
			return line
		}
	}
	return ""
}

// #endregion
