package decompile

import (
	"strings"

	"github.com/sokinpui/jsxkit/internal/filter"
	"github.com/sokinpui/jsxkit/model"
)

// BoundaryComment separates reassembled blocks.
const BoundaryComment = "// ---- block boundary ----"

// Boundary is BoundaryComment with its surrounding blank lines.
const Boundary = "\n\n" + BoundaryComment + "\n\n"

// Preamble and Postamble wrap the output when wrapping is engaged. The
// {INPUT}/{OUTPUT} placeholders are left for the caller to fill in.
const Preamble = `// Auto-generated JSX from ScriptingListenerJS.log
// NOTE: This file contains extracted ActionManager blocks cleaned.
// Replace {INPUT} and {OUTPUT} with actual POSIX paths before running, or use a wrapper to inject them.

function safeExec(id, desc, mode, name) {
    try {
        executeAction(id, desc, mode);
        $.writeln((name || "executeAction") + " executed.");
    } catch (e) {
        $.writeln("Skipped " + (name || "executeAction") + " : " + e.toString());
    }
}

// caller must replace these placeholders
var INPUT_PATH = "{INPUT}";
var OUTPUT_PATH = "{OUTPUT}";

try {
`

const Postamble = `
    $.writeln("cleaned script finished.");
} catch (fatal) {
    alert("Fatal error in cleaned script: " + fatal.toString());
}
`

// Reassemble joins classified blocks in their original order. Kept blocks
// contribute their text, skipped blocks a one-line marker.
func Reassemble(blocks []model.LogBlock) string {
	sections := make([]string, 0, len(blocks))
	for _, b := range blocks {
		switch b.Disposition {
		case model.Skipped:
			sections = append(sections, filter.Marker(b.Reason))
		default:
			sections = append(sections, b.Text)
		}
	}
	return strings.Join(sections, Boundary)
}

// Wrap surrounds body with Preamble and Postamble.
func Wrap(body string) string {
	return Preamble + body + Postamble
}

// Sections splits reassembled output back into its boundary-separated parts.
func Sections(output string) []string {
	if output == "" {
		return nil
	}
	return strings.Split(output, Boundary)
}
