// Package filter classifies recorded listener blocks and drops the ones that
// cannot be replayed.
package filter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/sokinpui/jsxkit/model"
)

// DefaultBlacklist lists the telemetry, host-state and plugin dispatch
// events ScriptingListener records alongside real edits.
var DefaultBlacklist = []string{
	"hostFocusChanged",
	"layersFiltered",
	"pluginRun",
	"nglProfileChanged",
	"featureInfo",
	"AdobeScriptAutomation Scripts",
}

// MarkerPrefix starts the comment that replaces a skipped block.
const MarkerPrefix = "// Skipped telemetry/state block containing: "

// Rule is one compiled blacklist keyword.
type Rule struct {
	Keyword string
	pattern *regexp.Regexp
}

// Filter classifies blocks against an ordered blacklist.
type Filter struct {
	rules  []Rule
	dialog DialogPolicy
}

// New compiles keywords into whole-word, case-sensitive rules. Duplicates are
// ignored after their first occurrence.
func New(keywords []string, dialog DialogPolicy) (*Filter, error) {
	if _, err := ParseDialogPolicy(string(dialog)); err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(keywords))
	rules := make([]Rule, 0, len(keywords))
	for _, key := range keywords {
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		re, err := regexp.Compile(`\b` + regexp.QuoteMeta(key) + `\b`)
		if err != nil {
			return nil, fmt.Errorf("invalid blacklist keyword %q: %w", key, err)
		}
		rules = append(rules, Rule{Keyword: key, pattern: re})
	}
	return &Filter{rules: rules, dialog: dialog}, nil
}

// Rules returns the compiled rules in evaluation order.
func (f *Filter) Rules() []Rule {
	return f.rules
}

// Classify returns a copy of block marked Kept or Skipped. The first matching
// rule decides the reason; later rules are not evaluated.
func (f *Filter) Classify(block model.LogBlock) model.LogBlock {
	for _, rule := range f.rules {
		if rule.pattern.MatchString(block.Text) {
			block.Disposition = model.Skipped
			block.Reason = rule.Keyword
			return block
		}
	}
	block.Disposition = model.Kept
	block.Reason = ""
	return block
}

// Normalize applies the dialog policy to a kept block's text.
func (f *Filter) Normalize(text string) string {
	return f.dialog.Apply(text)
}

// Marker is the single-line comment standing in for a skipped block.
func Marker(reason string) string {
	return MarkerPrefix + reason
}
