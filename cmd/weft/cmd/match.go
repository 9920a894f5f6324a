package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/match"
)

var matchAll bool

var matchCmd = &cobra.Command{
	Use:   "match <task description>",
	Short: "Find workflows matching a task description",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		description := strings.Join(args, " ")
		st, err := openStore()
		if err != nil {
			return err
		}
		defs, err := st.List()
		if err != nil {
			return err
		}

		m := &match.Matcher{MinScore: cfg.Match.MinScore}
		if !matchAll {
			best, err := m.Best(defs, description)
			if err != nil {
				return err
			}
			fmt.Printf("%s (score %.1f, %s relevance)\n", best.Definition.Name, best.Score, best.Relevance)
			fmt.Printf("  matched: %s\n", strings.Join(best.MatchedTypes, ", "))
			return nil
		}

		ranked := m.Rank(defs, description)
		if len(ranked) == 0 {
			fmt.Println("no matching workflows")
			return nil
		}
		for _, c := range ranked {
			fmt.Printf("%-28s %6.1f  %-6s  %s\n",
				c.Definition.Name, c.Score, c.Relevance, strings.Join(c.MatchedTypes, ", "))
		}
		return nil
	},
}

func init() {
	matchCmd.Flags().BoolVarP(&matchAll, "all", "a", false,
		"show every candidate, not just the best match")
	rootCmd.AddCommand(matchCmd)
}
