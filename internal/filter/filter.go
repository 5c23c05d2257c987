// Package filter decides which attributes reach the metrics document. Rules
// are compiled once at startup into an immutable, ordered list; the first
// matching rule wins and unmatched attributes get the default action.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/fllarpy/mbean-bridge/domain/mbean"
)

// Action is the disposition of a rule.
type Action int

const (
	Include Action = iota
	Exclude
)

func (a Action) String() string {
	if a == Exclude {
		return "exclude"
	}
	return "include"
}

func parseAction(s string) (Action, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "include", "whitelist":
		return Include, nil
	case "exclude", "blacklist":
		return Exclude, nil
	}
	return Include, fmt.Errorf("unknown action %q", s)
}

// Syntax selects how patterns are interpreted.
type Syntax string

const (
	SyntaxGlob  Syntax = "glob"
	SyntaxRegex Syntax = "regex"
)

// RuleSpec is the configured, uncompiled form of a rule.
type RuleSpec struct {
	Action    string `mapstructure:"action" yaml:"action"`
	Object    string `mapstructure:"object" yaml:"object"`
	Attribute string `mapstructure:"attribute" yaml:"attribute"`
	Syntax    string `mapstructure:"syntax" yaml:"syntax"`
}

// Options carries the settings that apply to the whole rule list.
type Options struct {
	// DefaultAction applies when no rule matches. Empty means include.
	DefaultAction string
	// Syntax is used by rules that do not name their own. Empty means glob.
	Syntax string
	// Blacklist and Whitelist are object patterns compiled ahead of the
	// explicit rules: blacklist entries as excludes, then whitelist entries
	// as includes.
	Blacklist []string
	Whitelist []string
}

// ConfigError reports a malformed rule. It is fatal at startup.
type ConfigError struct {
	Index int
	Rule  RuleSpec
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("filter rule %d (%s %q %q): %v", e.Index, e.Rule.Action, e.Rule.Object, e.Rule.Attribute, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

type matcher func(string) bool

// Rule is a compiled rule.
type Rule struct {
	Action    Action
	Object    string
	Attribute string
	Syntax    Syntax

	matchObject    matcher
	matchAttribute matcher
}

func (r *Rule) matches(object, attribute string) bool {
	if r.matchObject != nil && !r.matchObject(object) {
		return false
	}
	if r.matchAttribute != nil && !r.matchAttribute(attribute) {
		return false
	}
	return true
}

// Engine evaluates a compiled rule list. It is immutable and safe for
// concurrent use.
type Engine struct {
	rules         []Rule
	defaultAction Action
}

// Compile validates and compiles the rule list.
func Compile(specs []RuleSpec, opts Options) (*Engine, error) {
	defaultAction, err := parseAction(opts.DefaultAction)
	if err != nil {
		return nil, &ConfigError{Index: -1, Rule: RuleSpec{Action: opts.DefaultAction}, Err: err}
	}
	syntax := Syntax(strings.ToLower(opts.Syntax))
	if syntax == "" {
		syntax = SyntaxGlob
	}

	all := make([]RuleSpec, 0, len(opts.Blacklist)+len(opts.Whitelist)+len(specs))
	for _, p := range opts.Blacklist {
		all = append(all, RuleSpec{Action: "exclude", Object: p})
	}
	for _, p := range opts.Whitelist {
		all = append(all, RuleSpec{Action: "include", Object: p})
	}
	all = append(all, specs...)

	e := &Engine{defaultAction: defaultAction, rules: make([]Rule, 0, len(all))}
	for i, spec := range all {
		rule, err := compileRule(spec, syntax)
		if err != nil {
			return nil, &ConfigError{Index: i, Rule: spec, Err: err}
		}
		e.rules = append(e.rules, rule)
	}
	return e, nil
}

func compileRule(spec RuleSpec, fallback Syntax) (Rule, error) {
	action, err := parseAction(spec.Action)
	if err != nil {
		return Rule{}, err
	}
	if spec.Object == "" && spec.Attribute == "" {
		return Rule{}, fmt.Errorf("rule needs an object or attribute pattern")
	}
	syntax := Syntax(strings.ToLower(spec.Syntax))
	if syntax == "" {
		syntax = fallback
	}

	rule := Rule{Action: action, Object: spec.Object, Attribute: spec.Attribute, Syntax: syntax}
	if spec.Object != "" {
		if rule.matchObject, err = compilePattern(spec.Object, syntax); err != nil {
			return Rule{}, err
		}
	}
	if spec.Attribute != "" {
		if rule.matchAttribute, err = compilePattern(spec.Attribute, syntax); err != nil {
			return Rule{}, err
		}
	}
	return rule, nil
}

func compilePattern(pattern string, syntax Syntax) (matcher, error) {
	switch syntax {
	case SyntaxGlob:
		if !doublestar.ValidatePattern(pattern) {
			return nil, fmt.Errorf("invalid glob %q", pattern)
		}
		return func(s string) bool {
			ok, _ := doublestar.Match(pattern, s)
			return ok
		}, nil
	case SyntaxRegex:
		re, err := regexp.Compile("^(?:" + pattern + ")$")
		if err != nil {
			return nil, fmt.Errorf("invalid regex %q: %w", pattern, err)
		}
		return re.MatchString, nil
	}
	return nil, fmt.Errorf("unknown pattern syntax %q", syntax)
}

// IsIncluded reports whether the attribute of object passes the rules.
func (e *Engine) IsIncluded(object mbean.ObjectName, attribute string) bool {
	if e == nil {
		return true
	}
	name := object.String()
	for i := range e.rules {
		if e.rules[i].matches(name, attribute) {
			return e.rules[i].Action == Include
		}
	}
	return e.defaultAction == Include
}

// ObjectExcluded reports whether no attribute of object can pass: some rule
// without an attribute pattern excludes it before any rule could include one
// of its attributes. The snapshot builder uses it to skip listing attributes.
func (e *Engine) ObjectExcluded(object mbean.ObjectName) bool {
	if e == nil {
		return false
	}
	name := object.String()
	for i := range e.rules {
		r := &e.rules[i]
		if r.matchObject != nil && !r.matchObject(name) {
			continue
		}
		if r.matchAttribute != nil {
			if r.Action == Include {
				return false
			}
			continue
		}
		return r.Action == Exclude
	}
	return e.defaultAction == Exclude
}

// Rules returns a copy of the compiled rules in evaluation order.
func (e *Engine) Rules() []Rule {
	return append([]Rule(nil), e.rules...)
}

// DefaultAction reports the action applied when no rule matches.
func (e *Engine) DefaultAction() Action {
	return e.defaultAction
}
