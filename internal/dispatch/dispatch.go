// Package dispatch provides the built-in agent dispatchers.
package dispatch

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/weftlabs/weft/internal/core"
	"github.com/weftlabs/weft/internal/fsutil"
	"github.com/weftlabs/weft/internal/logging"
)

// DryRun returns a dispatcher that performs no real work: it reports
// success for every step and materializes declared outputs as
// placeholder files so downstream validation and gates have something
// to look at.
func DryRun(outputs func(agent, action string) []string, logger *logging.Logger) core.Dispatcher {
	if logger == nil {
		logger = logging.NewNop()
	}
	return core.DispatcherFunc(func(ctx context.Context, req core.DispatchRequest) core.DispatchResult {
		if err := ctx.Err(); err != nil {
			return core.DispatchResult{Status: core.DispatchTimedOut, Reason: err.Error()}
		}
		outs := outputs(req.Agent, req.Action)
		for _, out := range outs {
			path := out
			if !filepath.IsAbs(path) {
				path = filepath.Join(req.Workspace, path)
			}
			if err := fsutil.EnsureDir(filepath.Dir(path)); err != nil {
				return core.DispatchResult{Status: core.DispatchFailed, Reason: err.Error()}
			}
			content := fmt.Sprintf("# placeholder produced by dry run\n# agent: %s\n# action: %s\n", req.Agent, req.Action)
			if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
				return core.DispatchResult{Status: core.DispatchFailed, Reason: err.Error()}
			}
		}
		logger.Info("dry-run delegation", "agent", req.Agent, "action", req.Action)
		return core.DispatchResult{Status: core.DispatchSucceeded, Outputs: outs}
	})
}

// Command dispatches steps by running a configured shell command per
// agent. The step details travel in the environment:
//
//	WEFT_AGENT, WEFT_ACTION, WEFT_INPUTS, WEFT_WORKSPACE
//
// Exit status zero is success; a killed process whose context deadline
// fired is a timeout.
type Command struct {
	// Agents maps agent name to the command line to run.
	Agents map[string]string

	Logger *logging.Logger
}

// Delegate implements core.Dispatcher.
func (c *Command) Delegate(ctx context.Context, req core.DispatchRequest) core.DispatchResult {
	cmdline, ok := c.Agents[req.Agent]
	if !ok {
		return core.DispatchResult{
			Status: core.DispatchFailed,
			Reason: fmt.Sprintf("no command configured for agent %q", req.Agent),
		}
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", cmdline)
	cmd.Dir = req.Workspace
	cmd.Env = append(os.Environ(),
		"WEFT_AGENT="+req.Agent,
		"WEFT_ACTION="+req.Action,
		"WEFT_INPUTS="+strings.Join(req.Inputs, string(os.PathListSeparator)),
		"WEFT_WORKSPACE="+req.Workspace,
	)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	if c.Logger != nil {
		c.Logger.Debug("running agent command", "agent", req.Agent, "command", cmdline)
	}
	err := cmd.Run()
	if err == nil {
		return core.DispatchResult{Status: core.DispatchSucceeded}
	}
	if ctx.Err() == context.DeadlineExceeded {
		return core.DispatchResult{Status: core.DispatchTimedOut, Reason: "agent command killed after timeout"}
	}
	reason := err.Error()
	if msg := strings.TrimSpace(stderr.String()); msg != "" {
		reason = fmt.Sprintf("%v: %s", err, lastLine(msg))
	}
	return core.DispatchResult{Status: core.DispatchFailed, Reason: reason}
}

func lastLine(s string) string {
	lines := strings.Split(s, "\n")
	return lines[len(lines)-1]
}
