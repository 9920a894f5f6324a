package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/learn"
)

var (
	learnList bool
	learnMin  int
)

var learnCmd = &cobra.Command{
	Use:   "learn",
	Short: "Mine run history for recurring patterns",
	Long: `Learn scans recorded ad-hoc runs for recurring agent sequences and
drafts a workflow for every pattern seen at least the configured number
of times. Drafts are written to the pending tier and never executed
until promoted with 'weft promote'.`,
	RunE: func(_ *cobra.Command, _ []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}

		if learnList {
			pending, err := st.Pending()
			if err != nil {
				return err
			}
			if len(pending) == 0 {
				fmt.Println("no drafts pending review")
				return nil
			}
			for _, def := range pending {
				fmt.Printf("%-32s agents=%s\n", def.Name, strings.Join(def.AgentsRequired, ","))
				fmt.Printf("  %s\n", def.Description)
			}
			return nil
		}

		recorder, err := openRecorder()
		if err != nil {
			return err
		}
		defer recorder.Close()

		minOccurrences := cfg.Learning.MinOccurrences
		if learnMin > 0 {
			minOccurrences = learnMin
		}
		engine := &learn.Engine{
			Recorder:       recorder,
			Store:          st,
			Logger:         log,
			MinOccurrences: minOccurrences,
			MaxRecords:     cfg.Learning.MaxRecords,
		}
		drafts, err := engine.Mine(context.Background())
		if err != nil {
			return err
		}
		if len(drafts) == 0 {
			fmt.Println("no new patterns found")
			return nil
		}
		for _, d := range drafts {
			fmt.Printf("drafted %q from %d runs (agents: %s)\n",
				d.Definition.Name, d.Occurrences, strings.Join(d.Agents, " -> "))
		}
		fmt.Println("\nreview with 'weft learn --list', install with 'weft promote <name>'")
		return nil
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Suggest workflow improvements from run history",
	RunE: func(_ *cobra.Command, _ []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		recorder, err := openRecorder()
		if err != nil {
			return err
		}
		defer recorder.Close()

		engine := &learn.Engine{
			Recorder:   recorder,
			Store:      st,
			Logger:     log,
			MaxRecords: cfg.Learning.MaxRecords,
		}
		hints, err := engine.Analyze(context.Background())
		if err != nil {
			return err
		}
		if len(hints) == 0 {
			fmt.Println("nothing to report")
			return nil
		}
		for _, h := range hints {
			target := h.Workflow
			if h.Step != "" {
				target += "/" + h.Step
			}
			fmt.Printf("[%s] %-32s %s\n", h.Severity, target, h.Message)
		}
		return nil
	},
}

var promoteCmd = &cobra.Command{
	Use:   "promote <draft>",
	Short: "Install a learned draft as a user workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		def, err := st.Promote(args[0])
		if err != nil {
			return err
		}
		fmt.Printf("promoted %q to user workflows\n", def.Name)
		return nil
	},
}

func init() {
	learnCmd.Flags().BoolVarP(&learnList, "list", "l", false,
		"list drafts pending review instead of mining")
	learnCmd.Flags().IntVar(&learnMin, "min", 0,
		"override the occurrence threshold for this pass")
	rootCmd.AddCommand(learnCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(promoteCmd)
}
