// Package hooks runs workflow lifecycle actions before, after, and on
// failure of a run.
package hooks

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/weftlabs/weft/internal/core"
	"github.com/weftlabs/weft/internal/logging"
)

// Runner dispatches hook actions to registered handlers.
type Runner struct {
	logger *logging.Logger

	mu       sync.RWMutex
	handlers map[string]core.HookHandler
}

// NewRunner returns a Runner with the builtin handlers registered.
func NewRunner(logger *logging.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	r := &Runner{logger: logger, handlers: make(map[string]core.HookHandler)}
	r.Register("log", core.HookHandlerFunc(func(ctx context.Context, action core.HookAction, rc core.RunContext) error {
		msg := action.Params["message"]
		if msg == "" {
			msg = action.Description
		}
		logger.Info("workflow hook",
			"workflow", rc.WorkflowName,
			"run", rc.RecordID,
			"message", msg)
		return nil
	}))
	return r
}

// Register installs a handler for the given action name.
func (r *Runner) Register(action string, h core.HookHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[action] = h
}

// Actions lists the registered action names, sorted.
func (r *Runner) Actions() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.handlers))
	for n := range r.handlers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// RunPhase executes every hook of the phase in declaration order. A
// failing optional hook is logged and skipped; a failing required hook
// returns HOOK_FAILED and stops the phase.
func (r *Runner) RunPhase(ctx context.Context, hooks core.Hooks, phase core.HookPhase, rc core.RunContext) error {
	for _, action := range hooks.ForPhase(phase) {
		if err := r.runOne(ctx, action, rc); err != nil {
			if action.Required {
				return core.ErrHookFailed(phase, action.Action, err.Error()).WithCause(err)
			}
			r.logger.Warn("optional hook failed",
				"phase", string(phase),
				"action", action.Action,
				"error", err)
		}
	}
	return nil
}

func (r *Runner) runOne(ctx context.Context, action core.HookAction, rc core.RunContext) error {
	r.mu.RLock()
	h, ok := r.handlers[action.Action]
	r.mu.RUnlock()
	if !ok {
		return fmt.Errorf("no handler registered for action %q", action.Action)
	}
	return h.Execute(ctx, action, rc)
}
