package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/weftlabs/weft/internal/config"
	"github.com/weftlabs/weft/internal/logging"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string
	noColor   bool
	quiet     bool

	// Version info - set via SetVersion()
	appVersion string
	appCommit  string
	appDate    string

	cfg *config.Config
	log *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "weft",
	Short: "Workflow engine for coordinating delegated agent tasks",
	Long: `weft coordinates named external agents through declarative multi-step
workflows. Workflows are YAML definitions with dependency-ordered steps,
per-step output validation, quality gates between execution waves, and
lifecycle hooks. Execution history feeds an offline learning engine that
drafts new workflows from recurring ad-hoc patterns.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func Execute() error {
	err := rootCmd.Execute()
	if err != nil && log != nil {
		log.Error("command failed", "error", err)
	} else if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
	}
	return err
}

func SetVersion(version, commit, date string) {
	appVersion = version
	appCommit = commit
	appDate = date
}

func init() {
	rootCmd.PersistentPreRunE = func(_ *cobra.Command, _ []string) error {
		return initConfig()
	}
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: .weft/config.yaml)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "auto",
		"log format (auto, text, json)")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"disable colored output")
	rootCmd.PersistentFlags().BoolVarP(&quiet, "quiet", "q", false,
		"suppress non-essential output")
}

func initConfig() error {
	loader := config.NewLoader()
	if cfgFile != "" {
		loader = loader.WithConfigFile(cfgFile)
	}
	flags := rootCmd.PersistentFlags()
	// Binding never fails for flags that exist.
	_ = loader.Bind("log.level", flags.Lookup("log-level"))
	_ = loader.Bind("log.format", flags.Lookup("log-format"))
	_ = loader.Bind("no_color", flags.Lookup("no-color"))
	_ = loader.Bind("quiet", flags.Lookup("quiet"))

	c, err := loader.Load()
	if err != nil {
		return err
	}
	cfg = c

	level := cfg.Log.Level
	if cfg.Quiet {
		level = "error"
	}
	log = logging.New(logging.Config{
		Level:   level,
		Format:  cfg.Log.Format,
		NoColor: cfg.NoColor,
	})
	return nil
}
