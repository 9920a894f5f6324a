package dispatch

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/weftlabs/weft/internal/core"
)

func TestDryRun_MaterializesOutputs(t *testing.T) {
	ws := t.TempDir()
	d := DryRun(func(agent, action string) []string {
		return []string{"reports/summary.md"}
	}, nil)

	res := d.Delegate(context.Background(), core.DispatchRequest{
		Agent:     "analyst",
		Action:    "summarize the findings",
		Workspace: ws,
	})
	if res.Status != core.DispatchSucceeded {
		t.Fatalf("Delegate() status = %v, want %v (reason %q)", res.Status, core.DispatchSucceeded, res.Reason)
	}
	data, err := os.ReadFile(filepath.Join(ws, "reports", "summary.md"))
	if err != nil {
		t.Fatalf("reading placeholder: %v", err)
	}
	if !strings.Contains(string(data), "analyst") {
		t.Errorf("placeholder does not name the agent: %q", data)
	}
}

func TestCommand_UnknownAgentFails(t *testing.T) {
	c := &Command{Agents: map[string]string{}}
	res := c.Delegate(context.Background(), core.DispatchRequest{Agent: "ghost", Workspace: t.TempDir()})
	if res.Status != core.DispatchFailed {
		t.Errorf("Delegate() status = %v, want %v", res.Status, core.DispatchFailed)
	}
	if !strings.Contains(res.Reason, "ghost") {
		t.Errorf("Delegate() reason = %q, want it to name the agent", res.Reason)
	}
}

func TestCommand_ExitStatus(t *testing.T) {
	ws := t.TempDir()
	c := &Command{Agents: map[string]string{
		"ok":   "test -n \"$WEFT_AGENT\" && test -d \"$WEFT_WORKSPACE\"",
		"bad":  "echo 'boom: disk on fire' >&2; exit 3",
		"slow": "sleep 10",
	}}

	res := c.Delegate(context.Background(), core.DispatchRequest{Agent: "ok", Workspace: ws})
	if res.Status != core.DispatchSucceeded {
		t.Errorf("ok: status = %v, want %v (reason %q)", res.Status, core.DispatchSucceeded, res.Reason)
	}

	res = c.Delegate(context.Background(), core.DispatchRequest{Agent: "bad", Workspace: ws})
	if res.Status != core.DispatchFailed {
		t.Errorf("bad: status = %v, want %v", res.Status, core.DispatchFailed)
	}
	if !strings.Contains(res.Reason, "disk on fire") {
		t.Errorf("bad: reason = %q, want stderr tail included", res.Reason)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	res = c.Delegate(ctx, core.DispatchRequest{Agent: "slow", Workspace: ws})
	if res.Status != core.DispatchTimedOut {
		t.Errorf("slow: status = %v, want %v (reason %q)", res.Status, core.DispatchTimedOut, res.Reason)
	}
}
