package core

import (
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"
)

// RuleVariant is the closed set of validation rule kinds. Dispatch is
// by type switch; an unrecognized kind is a load-time error.
type RuleVariant interface {
	ruleVariant()
	Tag() string
}

// OutputExists checks that a declared artifact was produced.
type OutputExists struct {
	Path string
}

// MinLines checks that an artifact has at least N lines (inclusive).
type MinLines struct {
	Path string
	N    int
}

// MaxLines checks that an artifact has at most N lines (inclusive).
type MaxLines struct {
	Path string
	N    int
}

// SyntaxValid delegates to a language-specific syntax checker.
type SyntaxValid struct {
	Path     string
	Language string
}

// CustomCheck invokes a named predicate from the validator registry.
type CustomCheck struct {
	Name   string
	Params map[string]string
}

func (OutputExists) ruleVariant() {}
func (MinLines) ruleVariant()     {}
func (MaxLines) ruleVariant()     {}
func (SyntaxValid) ruleVariant()  {}
func (CustomCheck) ruleVariant()  {}

func (OutputExists) Tag() string { return "output_exists" }
func (MinLines) Tag() string     { return "min_lines" }
func (MaxLines) Tag() string     { return "max_lines" }
func (SyntaxValid) Tag() string  { return "syntax_valid" }
func (CustomCheck) Tag() string  { return "custom" }

// Rule wraps a RuleVariant for YAML (de)serialization. The wire form
// matches the definition file format: {type, file, value, language,
// check, params}.
type Rule struct {
	v RuleVariant
}

// NewRule wraps a variant.
func NewRule(v RuleVariant) Rule { return Rule{v: v} }

// Variant returns the wrapped variant.
func (r Rule) Variant() RuleVariant { return r.v }

// Tag returns the wire tag of the wrapped variant, or "" when unset.
func (r Rule) Tag() string {
	if r.v == nil {
		return ""
	}
	return r.v.Tag()
}

// Describe returns a short human-readable form of the rule.
func (r Rule) Describe() string {
	switch v := r.v.(type) {
	case OutputExists:
		return fmt.Sprintf("output_exists(%s)", v.Path)
	case MinLines:
		return fmt.Sprintf("min_lines(%s, %d)", v.Path, v.N)
	case MaxLines:
		return fmt.Sprintf("max_lines(%s, %d)", v.Path, v.N)
	case SyntaxValid:
		return fmt.Sprintf("syntax_valid(%s, %s)", v.Path, v.Language)
	case CustomCheck:
		return fmt.Sprintf("custom(%s)", v.Name)
	default:
		return "unknown"
	}
}

// ruleDoc is the wire representation of a rule.
type ruleDoc struct {
	Type     string            `yaml:"type" json:"type"`
	File     string            `yaml:"file,omitempty" json:"file,omitempty"`
	Value    int               `yaml:"value,omitempty" json:"value,omitempty"`
	Language string            `yaml:"language,omitempty" json:"language,omitempty"`
	Check    string            `yaml:"check,omitempty" json:"check,omitempty"`
	Params   map[string]string `yaml:"params,omitempty" json:"params,omitempty"`
}

// UnmarshalYAML decodes a rule from its wire form. Unknown rule types
// fail loudly so a typo never becomes a silently passing rule.
func (r *Rule) UnmarshalYAML(node *yaml.Node) error {
	var doc ruleDoc
	if err := node.Decode(&doc); err != nil {
		return err
	}
	v, err := doc.variant()
	if err != nil {
		return err
	}
	r.v = v
	return nil
}

// MarshalYAML encodes the rule in its wire form.
func (r Rule) MarshalYAML() (interface{}, error) {
	return r.doc()
}

func (doc ruleDoc) variant() (RuleVariant, error) {
	switch doc.Type {
	case "output_exists":
		return OutputExists{Path: doc.File}, nil
	case "min_lines":
		return MinLines{Path: doc.File, N: doc.Value}, nil
	case "max_lines":
		return MaxLines{Path: doc.File, N: doc.Value}, nil
	case "syntax_valid":
		return SyntaxValid{Path: doc.File, Language: doc.Language}, nil
	case "custom":
		return CustomCheck{Name: doc.Check, Params: doc.Params}, nil
	default:
		return nil, fmt.Errorf("unknown validation rule type %q", doc.Type)
	}
}

func (r Rule) doc() (ruleDoc, error) {
	switch v := r.v.(type) {
	case OutputExists:
		return ruleDoc{Type: v.Tag(), File: v.Path}, nil
	case MinLines:
		return ruleDoc{Type: v.Tag(), File: v.Path, Value: v.N}, nil
	case MaxLines:
		return ruleDoc{Type: v.Tag(), File: v.Path, Value: v.N}, nil
	case SyntaxValid:
		return ruleDoc{Type: v.Tag(), File: v.Path, Language: v.Language}, nil
	case CustomCheck:
		return ruleDoc{Type: v.Tag(), Check: v.Name, Params: v.Params}, nil
	default:
		return ruleDoc{}, fmt.Errorf("rule has no variant")
	}
}

// MarshalJSON encodes the rule in its wire form.
func (r Rule) MarshalJSON() ([]byte, error) {
	doc, err := r.doc()
	if err != nil {
		return nil, err
	}
	return json.Marshal(doc)
}

// UnmarshalJSON decodes a rule from its wire form.
func (r *Rule) UnmarshalJSON(data []byte) error {
	var doc ruleDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	v, err := doc.variant()
	if err != nil {
		return err
	}
	r.v = v
	return nil
}
