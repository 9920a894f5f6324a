package cmd

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/core"
	"github.com/weftlabs/weft/internal/dispatch"
	"github.com/weftlabs/weft/internal/gates"
	"github.com/weftlabs/weft/internal/hooks"
	"github.com/weftlabs/weft/internal/match"
	"github.com/weftlabs/weft/internal/scheduler"
	"github.com/weftlabs/weft/internal/validate"
)

var (
	runWorkflow  string
	runDryRun    bool
	runApprove   bool
	runWorkspace string
)

var runCmd = &cobra.Command{
	Use:   "run <task description>",
	Short: "Execute a workflow for a task",
	Long: `Run matches the task description against the installed workflows (or
uses --workflow to pick one explicitly) and executes it: steps are
dispatched to their agents wave by wave, outputs are validated, quality
gates are decided at wave barriers, and the outcome is recorded.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		task := strings.Join(args, " ")
		st, err := openStore()
		if err != nil {
			return err
		}

		var def *core.Definition
		if runWorkflow != "" {
			def, err = st.Get(runWorkflow)
		} else {
			defs, lerr := st.List()
			if lerr != nil {
				return lerr
			}
			m := &match.Matcher{MinScore: cfg.Match.MinScore}
			best, merr := m.Best(defs, task)
			if merr != nil {
				return merr
			}
			def = best.Definition
			log.Info("matched workflow", "workflow", def.Name, "score", fmt.Sprintf("%.1f", best.Score))
		}
		if err != nil {
			return err
		}

		recorder, err := openRecorder()
		if err != nil {
			return err
		}
		defer recorder.Close()

		workspace := runWorkspace
		if workspace == "" {
			workspace = cfg.WorkspaceDir
		}

		var dispatcher core.Dispatcher
		if runDryRun || len(cfg.Agents) == 0 {
			if !runDryRun {
				log.Warn("no agents configured, running in dry-run mode")
			}
			dispatcher = dispatch.DryRun(func(agent, action string) []string {
				for i := range def.Steps {
					if def.Steps[i].Agent == agent && def.Steps[i].Action == action {
						return def.Steps[i].Outputs
					}
				}
				return nil
			}, log)
		} else {
			dispatcher = &dispatch.Command{Agents: cfg.Agents, Logger: log}
		}

		sched := &scheduler.Scheduler{
			Dispatcher: dispatcher,
			Recorder:   recorder,
			Hooks:      hooks.NewRunner(log),
			Gates: &gates.Evaluator{
				Workspace:       workspace,
				Approver:        terminalApprover(),
				ApprovalTimeout: cfg.Gates.ApprovalTimeout,
				AutoApprove:     runApprove || cfg.Gates.AutoApprove,
				Logger:          log,
			},
			Validator:          validate.New(workspace),
			Logger:             log,
			MaxParallel:        cfg.MaxParallel,
			DefaultStepTimeout: cfg.StepTimeout,
			Workspace:          workspace,
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		rec, runErr := sched.Run(ctx, def, task)
		if rec != nil {
			printRecord(rec)
			if uerr := st.RecordUsage(def.Name, rec.Succeeded()); uerr != nil {
				log.Warn("updating usage statistics failed", "error", uerr)
			}
		}
		return runErr
	},
}

// terminalApprover prompts on the terminal for manual gate decisions.
func terminalApprover() core.Approver {
	return core.ApproverFunc(func(ctx context.Context, gate core.QualityGate) (bool, error) {
		prompt := gate.Description
		if prompt == "" {
			prompt = gate.Name
		}
		fmt.Printf("gate %q requires approval: %s [y/N] ", gate.Name, prompt)

		answers := make(chan string, 1)
		go func() {
			reader := bufio.NewReader(os.Stdin)
			line, _ := reader.ReadString('\n')
			answers <- strings.TrimSpace(line)
		}()
		select {
		case <-ctx.Done():
			fmt.Println()
			return false, ctx.Err()
		case answer := <-answers:
			return answer == "y" || answer == "Y" || answer == "yes", nil
		}
	})
}

func printRecord(rec *core.Record) {
	fmt.Printf("\nrun %s: %s in %s\n", rec.ID, rec.Outcome, rec.Duration().Round(timeRound))
	for _, s := range rec.Steps {
		line := fmt.Sprintf("  %-20s %-10s", s.StepID, s.Status)
		if s.Duration() > 0 {
			line += fmt.Sprintf(" %8s", s.Duration().Round(timeRound))
		}
		if s.Reason != "" {
			line += "  " + s.Reason
		}
		fmt.Println(line)
	}
	for _, g := range rec.Gates {
		verdict := "passed"
		if !g.Passed {
			verdict = "failed: " + g.Reason
		}
		fmt.Printf("  gate %-15s %s\n", g.Name, verdict)
	}
}

func init() {
	runCmd.Flags().StringVarP(&runWorkflow, "workflow", "W", "",
		"run this workflow instead of matching the description")
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false,
		"do not dispatch to agents, materialize placeholder outputs")
	runCmd.Flags().BoolVarP(&runApprove, "yes", "y", false,
		"approve all manual gates without prompting")
	runCmd.Flags().StringVar(&runWorkspace, "workspace", "",
		"workspace directory (default from config)")
	rootCmd.AddCommand(runCmd)
}
