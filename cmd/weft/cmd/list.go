package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var listWatch bool

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List available workflows",
	RunE: func(cmd *cobra.Command, _ []string) error {
		st, err := openStore()
		if err != nil {
			return err
		}
		if err := printCatalog(); err != nil {
			return err
		}
		if !listWatch {
			return nil
		}

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		log.Info("watching for workflow changes, press Ctrl-C to stop")
		err = st.Watch(ctx, func() {
			fmt.Println("---")
			if err := printCatalog(); err != nil {
				log.Error("refreshing catalog failed", "error", err)
			}
		})
		if ctx.Err() != nil {
			return nil
		}
		return err
	},
}

func printCatalog() error {
	st, err := openStore()
	if err != nil {
		return err
	}
	defs, err := st.List()
	if err != nil {
		return err
	}
	if len(defs) == 0 {
		fmt.Println("no workflows found")
		return nil
	}
	for _, def := range defs {
		printDefinitionSummary(def)
	}
	pending, err := st.Pending()
	if err != nil {
		return err
	}
	if len(pending) > 0 {
		fmt.Printf("\n%d draft(s) pending review (weft learn --list):\n", len(pending))
		for _, def := range pending {
			fmt.Printf("  %s\n", def.Name)
		}
	}
	return nil
}

func init() {
	listCmd.Flags().BoolVarP(&listWatch, "watch", "w", false,
		"keep running and reprint when workflow files change")
	rootCmd.AddCommand(listCmd)
}
