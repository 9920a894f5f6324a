package cmd

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/core"
	"github.com/weftlabs/weft/internal/store"
)

var createFromFile string

var createCmd = &cobra.Command{
	Use:   "create <name>",
	Short: "Create a user workflow",
	Long: `Create installs a new user workflow. With --file the definition is read
from YAML (use - for stdin); otherwise a minimal single-step skeleton
named after the argument is written for editing.`,
	Args: cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		if createFromFile != "" {
			data, err := readInput(createFromFile)
			if err != nil {
				return fmt.Errorf("reading %s: %w", createFromFile, err)
			}
			def, err := st.Import(data)
			if err != nil {
				return err
			}
			fmt.Printf("created workflow %q\n", def.Name)
			return nil
		}

		def := skeleton(args[0])
		if err := st.Save(def); err != nil {
			return err
		}
		fmt.Printf("created workflow %q, edit it with: weft edit %s\n", def.Name, def.Name)
		return nil
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <workflow>",
	Short: "Edit a user workflow in $EDITOR",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		def, err := st.Get(args[0])
		if err != nil {
			return err
		}
		if def.Source == core.SourceSystem {
			return core.ErrReadOnly(def.Name)
		}

		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "vi"
		}
		path := userWorkflowPath(st, def.Name)
		edit := exec.Command(editor, path)
		edit.Stdin, edit.Stdout, edit.Stderr = os.Stdin, os.Stdout, os.Stderr
		if err := edit.Run(); err != nil {
			return fmt.Errorf("running editor: %w", err)
		}

		// Reject the edit if it broke the definition.
		if _, err := store.LoadFile(path, core.SourceUser); err != nil {
			return err
		}
		fmt.Printf("workflow %q updated\n", def.Name)
		return nil
	},
}

var deleteForce bool

var deleteCmd = &cobra.Command{
	Use:   "delete <workflow>",
	Short: "Delete a user workflow",
	Args:  cobra.ExactArgs(1),
	RunE: func(_ *cobra.Command, args []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		if !deleteForce {
			fmt.Printf("delete workflow %q? [y/N] ", args[0])
			var answer string
			fmt.Scanln(&answer)
			if answer != "y" && answer != "Y" {
				fmt.Println("aborted")
				return nil
			}
		}
		if err := st.Delete(args[0]); err != nil {
			return err
		}
		fmt.Printf("deleted workflow %q\n", args[0])
		return nil
	},
}

func skeleton(name string) *core.Definition {
	return &core.Definition{
		Name:        name,
		Version:     "0.1.0",
		Description: "Describe what this workflow does",
		TaskTypes:   []string{name},
		AgentsRequired: []string{
			"general",
		},
		Steps: []core.Step{
			{
				ID:     "main",
				Agent:  "general",
				Action: "Do the work",
			},
		},
	}
}

func userWorkflowPath(st *store.Store, name string) string {
	return st.Root() + "/templates/custom/" + name + ".yaml"
}

func init() {
	createCmd.Flags().StringVarP(&createFromFile, "file", "f", "",
		"read the definition from a YAML file (- for stdin)")
	deleteCmd.Flags().BoolVarP(&deleteForce, "force", "f", false,
		"delete without confirmation")
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(editCmd)
	rootCmd.AddCommand(deleteCmd)
}
