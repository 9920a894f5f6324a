package cmd

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/weftlabs/weft/internal/core"
	"github.com/weftlabs/weft/internal/history"
	"github.com/weftlabs/weft/internal/store"
)

// timeRound is the display resolution for durations.
const timeRound = time.Millisecond

func openStore() (*store.Store, error) {
	return store.New(cfg.WorkflowsDir, log)
}

func openRecorder() (core.Recorder, error) {
	return history.Open(cfg.History)
}

// readInput reads from a file path, or stdin when path is "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}

func printDefinitionSummary(def *core.Definition) {
	required := 0
	for i := range def.Steps {
		if def.Steps[i].IsRequired() {
			required++
		}
	}
	fmt.Printf("%-28s %-8s %-7s steps=%d/%d required  used=%d  success=%.0f%%\n",
		def.Name, def.Source, orDefault(string(def.Priority), "medium"),
		required, len(def.Steps), def.UsageCount, def.SuccessRate*100)
}

func printDefinition(def *core.Definition) error {
	var buf strings.Builder
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(def); err != nil {
		return fmt.Errorf("encoding workflow: %w", err)
	}
	enc.Close()
	fmt.Print(buf.String())
	return nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
