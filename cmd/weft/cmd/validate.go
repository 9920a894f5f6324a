package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/core"
	"github.com/weftlabs/weft/internal/store"
)

var validateCmd = &cobra.Command{
	Use:   "validate <file-or-workflow>",
	Short: "Validate a workflow definition",
	Long: `Validate runs the full load-time pipeline on a workflow: schema checks,
dependency graph construction, cycle detection, and concurrent output
conflict detection. The argument is a YAML file path, or the name of an
installed workflow.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		arg := args[0]

		if isYAMLPath(arg) {
			def, err := store.LoadFile(arg, core.SourceUser)
			if err != nil {
				return err
			}
			fmt.Printf("%s: valid (%d steps, %d gates)\n", def.Name, len(def.Steps), len(def.QualityGates))
			return nil
		}

		st, err := openStore()
		if err != nil {
			return err
		}
		def, err := st.Get(arg)
		if err != nil {
			return err
		}
		// Stored definitions were validated at load; re-run explicitly
		// so the user sees the current file, not the cache.
		if err := core.ValidateDefinition(def); err != nil {
			return err
		}
		fmt.Printf("%s: valid (%d steps, %d gates)\n", def.Name, len(def.Steps), len(def.QualityGates))
		return nil
	},
}

func isYAMLPath(arg string) bool {
	return strings.HasSuffix(arg, ".yaml") || strings.HasSuffix(arg, ".yml")
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
