package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/core"
)

var showYAML bool

var showCmd = &cobra.Command{
	Use:   "show <workflow>",
	Short: "Show a workflow definition",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		def, err := st.Get(args[0])
		if err != nil {
			return err
		}
		if showYAML {
			return printDefinition(def)
		}

		fmt.Printf("%s v%s (%s)\n", def.Name, def.Version, def.Source)
		fmt.Printf("  %s\n", def.Description)
		if len(def.TaskTypes) > 0 {
			fmt.Printf("  task types: %s\n", strings.Join(def.TaskTypes, ", "))
		}
		fmt.Printf("  agents: %s\n", strings.Join(def.AgentsRequired, ", "))
		fmt.Println("  steps:")
		graph, err := core.NewGraph(def)
		if err != nil {
			return err
		}
		for waveNum, wave := range graph.Waves() {
			for _, id := range wave {
				step, _ := def.Step(id)
				deps := ""
				if len(step.DependsOn) > 0 {
					deps = " <- " + strings.Join(step.DependsOn, ", ")
				}
				opt := ""
				if !step.IsRequired() {
					opt = " (optional)"
				}
				fmt.Printf("    wave %d: %s [%s/%s]%s%s\n", waveNum, id, step.Agent, step.Action, deps, opt)
			}
		}
		for _, g := range def.QualityGates {
			fmt.Printf("  gate %s after %s (%s)\n", g.Name, g.AfterStep, g.Type)
		}
		return nil
	},
}

func init() {
	showCmd.Flags().BoolVar(&showYAML, "yaml", false, "print the raw YAML definition")
	rootCmd.AddCommand(showCmd)
}
