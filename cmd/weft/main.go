package main

import (
	"os"

	"github.com/weftlabs/weft/cmd/weft/cmd"
	"github.com/weftlabs/weft/internal/core"
)

// Version information - set by goreleaser at build time
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	cmd.SetVersion(version, commit, date)

	if err := cmd.Execute(); err != nil {
		os.Exit(core.ExitCode(err))
	}
}
