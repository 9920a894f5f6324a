// Package validate checks step outputs against the validation rules a
// workflow declares.
package validate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"golang.org/x/net/html"
	"gopkg.in/yaml.v3"

	"github.com/weftlabs/weft/internal/core"
	"github.com/weftlabs/weft/internal/fsutil"
)

// CustomCheckFunc implements a named custom validation rule. It
// receives the workspace-resolved path and the rule's parameters and
// returns a failure reason, empty on success.
type CustomCheckFunc func(path string, params map[string]string) (reason string, err error)

// Validator evaluates validation rules against files in a workspace.
type Validator struct {
	// Workspace is the directory relative rule paths resolve against.
	Workspace string

	mu     sync.RWMutex
	custom map[string]CustomCheckFunc
}

// New returns a Validator rooted at workspace.
func New(workspace string) *Validator {
	return &Validator{Workspace: workspace, custom: make(map[string]CustomCheckFunc)}
}

// RegisterCheck installs a custom check under name, replacing any
// previous registration.
func (v *Validator) RegisterCheck(name string, fn CustomCheckFunc) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.custom[name] = fn
}

// Checks lists the registered custom check names, sorted.
func (v *Validator) Checks() []string {
	v.mu.RLock()
	defer v.mu.RUnlock()
	names := make([]string, 0, len(v.custom))
	for n := range v.custom {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Evaluate runs every rule and returns one result per rule, in
// declaration order. Rules never abort evaluation of later rules.
func (v *Validator) Evaluate(rules []core.Rule) []core.ValidationResult {
	results := make([]core.ValidationResult, 0, len(rules))
	for _, rule := range rules {
		reason := v.evaluateOne(rule)
		results = append(results, core.ValidationResult{
			Rule:   rule.Describe(),
			Passed: reason == "",
			Reason: reason,
		})
	}
	return results
}

// AllPassed reports whether every result passed.
func AllPassed(results []core.ValidationResult) bool {
	for _, r := range results {
		if !r.Passed {
			return false
		}
	}
	return true
}

// evaluateOne returns a failure reason, empty when the rule passes.
// Unknown variants fail closed.
func (v *Validator) evaluateOne(rule core.Rule) string {
	switch r := rule.Variant().(type) {
	case core.OutputExists:
		if !fsutil.Exists(v.resolve(r.Path)) {
			return fmt.Sprintf("expected output %s does not exist", r.Path)
		}
		return ""
	case core.MinLines:
		data, err := os.ReadFile(v.resolve(r.Path))
		if err != nil {
			return fmt.Sprintf("cannot read %s: %v", r.Path, err)
		}
		if n := fsutil.CountLines(data); n < r.N {
			return fmt.Sprintf("%s has %d lines, need at least %d", r.Path, n, r.N)
		}
		return ""
	case core.MaxLines:
		data, err := os.ReadFile(v.resolve(r.Path))
		if err != nil {
			return fmt.Sprintf("cannot read %s: %v", r.Path, err)
		}
		if n := fsutil.CountLines(data); n > r.N {
			return fmt.Sprintf("%s has %d lines, allowed at most %d", r.Path, n, r.N)
		}
		return ""
	case core.SyntaxValid:
		return v.checkSyntax(r)
	case core.CustomCheck:
		return v.runCustom(r)
	default:
		return fmt.Sprintf("unknown validation rule %s", rule.Describe())
	}
}

func (v *Validator) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(v.Workspace, path)
}

func (v *Validator) checkSyntax(r core.SyntaxValid) string {
	data, err := os.ReadFile(v.resolve(r.Path))
	if err != nil {
		return fmt.Sprintf("cannot read %s: %v", r.Path, err)
	}
	switch strings.ToLower(r.Language) {
	case "json":
		if !json.Valid(data) {
			return fmt.Sprintf("%s is not valid JSON", r.Path)
		}
	case "yaml", "yml":
		var doc any
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Sprintf("%s is not valid YAML: %v", r.Path, err)
		}
	case "html":
		if _, err := html.Parse(strings.NewReader(string(data))); err != nil {
			return fmt.Sprintf("%s is not parseable HTML: %v", r.Path, err)
		}
	default:
		// Fail closed rather than rubber-stamp a language we cannot
		// actually check.
		return fmt.Sprintf("no syntax checker for language %q", r.Language)
	}
	return ""
}

func (v *Validator) runCustom(r core.CustomCheck) string {
	v.mu.RLock()
	fn, ok := v.custom[r.Name]
	v.mu.RUnlock()
	if !ok {
		return fmt.Sprintf("custom check %q is not registered", r.Name)
	}
	path := ""
	if p, ok := r.Params["file"]; ok {
		path = v.resolve(p)
	}
	reason, err := fn(path, r.Params)
	if err != nil {
		return fmt.Sprintf("custom check %q errored: %v", r.Name, err)
	}
	return reason
}
