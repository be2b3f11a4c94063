package filter

import (
	"fmt"
	"regexp"
	"strings"
)

// DialogPolicy decides what happens to executeAction dialog modes in kept blocks.
type DialogPolicy string

const (
	// DialogKeep leaves statements untouched. Recorded calls already use
	// DialogModes.NO, which is the non-interactive form.
	DialogKeep DialogPolicy = "keep"
	// DialogForceNo rewrites every DialogModes.<X> to DialogModes.NO.
	DialogForceNo DialogPolicy = "force-no"
	// DialogStrip removes executeAction(..., DialogModes.NO) statements.
	DialogStrip DialogPolicy = "strip"
	// DialogComment turns those statements into block comments.
	DialogComment DialogPolicy = "comment"
)

var (
	anyDialogModeRegex = regexp.MustCompile(`DialogModes\.\w+`)

	// executeNoDialogRegex matches executeAction( ... , DialogModes.NO ) across lines.
	executeNoDialogRegex = regexp.MustCompile(`executeAction\([\s\S]*?,\s*DialogModes\.NO\s*\)\s*;?`)
)

// ParseDialogPolicy validates a policy name. Empty means DialogKeep.
func ParseDialogPolicy(name string) (DialogPolicy, error) {
	switch p := DialogPolicy(strings.ToLower(strings.TrimSpace(name))); p {
	case "":
		return DialogKeep, nil
	case DialogKeep, DialogForceNo, DialogStrip, DialogComment:
		return p, nil
	default:
		return "", fmt.Errorf("unknown dialog policy %q (want keep, force-no, strip or comment)", name)
	}
}

// Apply rewrites text according to the policy.
func (p DialogPolicy) Apply(text string) string {
	switch p {
	case DialogForceNo:
		return anyDialogModeRegex.ReplaceAllString(text, "DialogModes.NO")
	case DialogStrip:
		return executeNoDialogRegex.ReplaceAllString(text, "")
	case DialogComment:
		return executeNoDialogRegex.ReplaceAllStringFunc(text, func(stmt string) string {
			return "/* removed executeAction: " + strings.ReplaceAll(stmt, "*/", `*\/`) + " */"
		})
	default:
		return text
	}
}
