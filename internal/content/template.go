package content

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/osteele/liquid"
)

var (
	// Matches every output expression: {{ var }}, {{- var | filter -}}, {{ a.b }}
	outputPattern = regexp.MustCompile(`\{\{-?(.*?)-?\}\}`)
	tagPattern    = regexp.MustCompile(`\{%.*?%\}`)
	identPattern  = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)
)

// Engine compiles Liquid template sources.
type Engine struct {
	liquid *liquid.Engine
}

// NewEngine creates a template engine.
func NewEngine() *Engine {
	return &Engine{liquid: liquid.NewEngine()}
}

// Template is a compiled message template.
type Template struct {
	source string
	tpl    *liquid.Template
	vars   []string
}

// Compile parses source once and records the placeholders it references.
// Only bare variables, optionally piped through filters, are accepted;
// anything else fails with ErrUnsupportedPlaceholder.
func (e *Engine) Compile(source string) (*Template, error) {
	if err := checkPlaceholders(source); err != nil {
		return nil, err
	}
	tpl, err := e.liquid.ParseString(source)
	if err != nil {
		return nil, fmt.Errorf("parse template %q: %w", source, err)
	}
	return &Template{source: source, tpl: tpl, vars: placeholders(source)}, nil
}

// Source returns the uncompiled template text.
func (t *Template) Source() string { return t.source }

// Vars returns the placeholder names in order of first appearance.
func (t *Template) Vars() []string {
	out := make([]string, len(t.vars))
	copy(out, t.vars)
	return out
}

// Check returns a MissingContextKeyError for the first placeholder without
// a value in ctx.
func (t *Template) Check(ctx map[string]string) error {
	for _, v := range t.vars {
		if _, ok := ctx[v]; !ok {
			return &MissingContextKeyError{Key: v}
		}
	}
	return nil
}

// Execute substitutes ctx into the template. Extra keys are ignored.
func (t *Template) Execute(ctx map[string]string) (string, error) {
	if err := t.Check(ctx); err != nil {
		return "", err
	}
	bindings := make(liquid.Bindings, len(ctx))
	for k, v := range ctx {
		bindings[k] = v
	}
	out, err := t.tpl.RenderString(bindings)
	if err != nil {
		return "", fmt.Errorf("render template: %w", err)
	}
	return out, nil
}

func checkPlaceholders(source string) error {
	if tag := tagPattern.FindString(source); tag != "" {
		return fmt.Errorf("%w: tag %s in %q", ErrUnsupportedPlaceholder, tag, source)
	}
	for _, m := range outputPattern.FindAllStringSubmatch(source, -1) {
		if !identPattern.MatchString(outputVar(m[1])) {
			return fmt.Errorf("%w: %s in %q", ErrUnsupportedPlaceholder, m[0], source)
		}
	}
	return nil
}

// outputVar returns the expression of an output block ahead of any filters.
func outputVar(expr string) string {
	head, _, _ := strings.Cut(expr, "|")
	return strings.TrimSpace(head)
}

func placeholders(source string) []string {
	var vars []string
	seen := make(map[string]bool)
	for _, m := range outputPattern.FindAllStringSubmatch(source, -1) {
		name := outputVar(m[1])
		if seen[name] {
			continue
		}
		seen[name] = true
		vars = append(vars, name)
	}
	return vars
}
