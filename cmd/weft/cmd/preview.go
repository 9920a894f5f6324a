package cmd

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/core"
	"github.com/weftlabs/weft/internal/match"
)

var previewWorkflow string

var previewCmd = &cobra.Command{
	Use:   "preview <task description>",
	Short: "Show the execution plan for a task without running it",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		task := strings.Join(args, " ")
		st, err := openStore()
		if err != nil {
			return err
		}

		var def *core.Definition
		if previewWorkflow != "" {
			def, err = st.Get(previewWorkflow)
			if err != nil {
				return err
			}
		} else {
			defs, err := st.List()
			if err != nil {
				return err
			}
			m := &match.Matcher{MinScore: cfg.Match.MinScore}
			best, err := m.Best(defs, task)
			if err != nil {
				return err
			}
			def = best.Definition
			fmt.Printf("matched %q (score %.1f, %s relevance)\n\n", def.Name, best.Score, best.Relevance)
		}

		graph, err := core.NewGraph(def)
		if err != nil {
			return err
		}
		if _, err := graph.TopoSort(); err != nil {
			return err
		}

		fmt.Printf("%s v%s: %s\n", def.Name, def.Version, def.Description)
		for waveNum, wave := range graph.Waves() {
			fmt.Printf("wave %d (up to %d in parallel):\n", waveNum, cfg.MaxParallel)
			for _, id := range wave {
				step, _ := def.Step(id)
				fmt.Printf("  %s: %s -> %s (timeout %s)\n",
					id, step.Agent, step.Action, step.TimeoutOr(cfg.StepTimeout))
				for _, rule := range step.Validation {
					fmt.Printf("    validates %s\n", rule.Describe())
				}
			}
			for _, id := range wave {
				for _, g := range def.GatesAfter(id) {
					fmt.Printf("  [gate] %s (%s) after %s\n", g.Name, g.Type, id)
				}
			}
		}
		if d := def.EstimatedDurationValue(); d > 0 {
			fmt.Printf("estimated duration: %s\n", d.Round(time.Second))
		}
		return nil
	},
}

func init() {
	previewCmd.Flags().StringVarP(&previewWorkflow, "workflow", "W", "",
		"preview this workflow instead of matching the description")
	rootCmd.AddCommand(previewCmd)
}
