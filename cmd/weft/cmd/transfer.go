package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var exportOutput string

var exportCmd = &cobra.Command{
	Use:   "export <workflow>",
	Short: "Export a workflow as canonical YAML",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		data, err := st.Export(args[0])
		if err != nil {
			return err
		}
		if exportOutput == "" || exportOutput == "-" {
			fmt.Print(string(data))
			return nil
		}
		if err := os.WriteFile(exportOutput, data, 0o644); err != nil {
			return fmt.Errorf("writing %s: %w", exportOutput, err)
		}
		fmt.Printf("exported %q to %s\n", args[0], exportOutput)
		return nil
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Import a workflow from YAML",
	Long: `Import validates external YAML and installs it as a user workflow.
Usage statistics are reset on import so a shared workflow starts with a
clean record. Use - to read from stdin.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		data, err := readInput(args[0])
		if err != nil {
			return fmt.Errorf("reading %s: %w", args[0], err)
		}
		def, err := st.Import(data)
		if err != nil {
			return err
		}
		fmt.Printf("imported workflow %q v%s\n", def.Name, def.Version)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "",
		"write to a file instead of stdout")
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(importCmd)
}
