// Package patcher rewrites absolute file paths recorded by ScriptingListener
// into a portable placeholder so a block can be replayed on another machine.
package patcher

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultPlaceholder replaces every recognized path literal.
const DefaultPlaceholder = "{TMP_JSX}"

// RuleSpec is the configurable form of a rewrite rule. Replacement is used
// literally; "%s" in it is replaced with the placeholder.
type RuleSpec struct {
	Pattern     string `yaml:"pattern"`
	Replacement string `yaml:"replacement"`
}

// Rule is a compiled (pattern, replacement) pair.
type Rule struct {
	Pattern     *regexp.Regexp
	Replacement string
}

// DefaultRuleSpecs covers drive-letter paths with backslashes (single or
// escaped) and forward slashes, each inside `new File(...)` and a bare
// `File(...)` call. Order matters: the qualified form goes first.
var DefaultRuleSpecs = []RuleSpec{
	{Pattern: `new File\("[A-Za-z]:\\\\?[^"]+"\)`, Replacement: `new File("%s")`},
	{Pattern: `\bFile\("[A-Za-z]:\\\\?[^"]+"\)`, Replacement: `File("%s")`},
	{Pattern: `new File\("[A-Za-z]:/[^"]+"\)`, Replacement: `new File("%s")`},
	{Pattern: `\bFile\("[A-Za-z]:/[^"]+"\)`, Replacement: `File("%s")`},
}

var (
	tripleDoubleQuotes = regexp.MustCompile(`"{3,}`)
	tripleSingleQuotes = regexp.MustCompile(`'{3,}`)
)

// Rewriter applies path rules in declared order.
type Rewriter struct {
	placeholder string
	rules       []Rule
}

// New compiles specs against placeholder. Empty arguments fall back to the
// defaults.
func New(placeholder string, specs []RuleSpec) (*Rewriter, error) {
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}
	if len(specs) == 0 {
		specs = DefaultRuleSpecs
	}

	rules := make([]Rule, 0, len(specs))
	for _, spec := range specs {
		re, err := regexp.Compile(spec.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid path pattern %q: %w", spec.Pattern, err)
		}
		rules = append(rules, Rule{
			Pattern:     re,
			Replacement: strings.ReplaceAll(spec.Replacement, "%s", placeholder),
		})
	}

	// A replacement that any rule matches again would break idempotence.
	for _, rule := range rules {
		for _, other := range rules {
			if other.Pattern.MatchString(rule.Replacement) {
				return nil, fmt.Errorf("path pattern %q matches replacement %q", other.Pattern, rule.Replacement)
			}
		}
	}
	return &Rewriter{placeholder: placeholder, rules: rules}, nil
}

// Placeholder returns the token written in place of recognized paths.
func (r *Rewriter) Placeholder() string {
	return r.placeholder
}

// Rewrite replaces path literals and collapses runs of three or more quotes
// left by the capture format. It is idempotent.
func (r *Rewriter) Rewrite(text string) string {
	out, _ := r.RewriteCount(text)
	return out
}

// RewriteCount is Rewrite that also reports how many literals were replaced.
func (r *Rewriter) RewriteCount(text string) (string, int) {
	// Quotes first, so a collapsed `File("""C:/x""")` is still caught below.
	text = tripleDoubleQuotes.ReplaceAllLiteralString(text, `"`)
	text = tripleSingleQuotes.ReplaceAllLiteralString(text, `'`)

	count := 0
	for _, rule := range r.rules {
		count += len(rule.Pattern.FindAllStringIndex(text, -1))
		text = rule.Pattern.ReplaceAllLiteralString(text, rule.Replacement)
	}
	return text, count
}
