// Package compose assembles an action sequence into a single ExtendScript
// file ready to be run by Photoshop.
package compose

import (
	"fmt"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/sokinpui/jsxkit/internal/fragment"
	"github.com/sokinpui/jsxkit/internal/fs"
	"github.com/sokinpui/jsxkit/model"
)

// ActionsMarker is where the action body goes in the wrapper.
const ActionsMarker = "__ACTIONS__"

// DefaultSuffix is the extension of composed scripts.
const DefaultSuffix = ".jsx"

// Wrapper declares the two path variables and traps any error with an alert.
const Wrapper = `
// Auto-generated JSX wrapper: actions will be executed sequentially
try {
    var INPUT_PATH = "` + fragment.InputToken + `";
    var OUTPUT_PATH = "` + fragment.OutputToken + `";

    // start actions
` + ActionsMarker + `

} catch (e) {
    if (e && e.toString) {
        alert("Error in script: " + e.toString());
    }
}
`

// Options configures a Composer.
type Options struct {
	// TempDir receives composed scripts. Empty means os.TempDir().
	TempDir string
	// Suffix of composed script files. Empty means DefaultSuffix.
	Suffix string
}

// Composer turns action sequences into script files.
type Composer struct {
	opts     Options
	resolver *fs.PathResolver
	logger   *zap.Logger
}

// New creates a Composer. A nil logger is replaced by a no-op one.
func New(opts Options, resolver *fs.PathResolver, logger *zap.Logger) *Composer {
	if opts.Suffix == "" {
		opts.Suffix = DefaultSuffix
	}
	if resolver == nil {
		resolver = fs.NewPathResolver("")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Composer{opts: opts, resolver: resolver, logger: logger}
}

// Render builds the script text without touching the filesystem.
//
// Tokens are substituted in a single pass so path values are never scanned
// again. Paths that contain a token, or a body that contains the actions
// marker, are rejected with model.ErrTokenCollision.
func (c *Composer) Render(seq model.ActionSequence, inputPath, outputPath string) (model.ComposedScript, error) {
	input := fs.Portable(c.resolver.Resolve(inputPath))
	output := fs.Portable(c.resolver.Resolve(outputPath))

	for _, p := range []string{input, output} {
		if tok := findToken(p); tok != "" {
			return model.ComposedScript{}, fmt.Errorf("%w: path %q contains %s", model.ErrTokenCollision, p, tok)
		}
	}

	parts := make([]string, 0, 3)
	for _, frag := range seq.Fragments() {
		parts = append(parts, frag.Text)
	}
	body := strings.Join(parts, "\n")
	if strings.Contains(body, ActionsMarker) {
		return model.ComposedScript{}, fmt.Errorf("%w: action body contains %s", model.ErrTokenCollision, ActionsMarker)
	}

	text := strings.Replace(Wrapper, ActionsMarker, body, 1)
	text = strings.NewReplacer(
		fragment.InputToken, fragment.EscapeJSString(input),
		fragment.OutputToken, fragment.EscapeJSString(output),
	).Replace(text)

	return model.ComposedScript{Text: text, Input: input, Output: output, SaveAs: fragment.SaveBranch(output)}, nil
}

// Compose renders seq and persists it to a uniquely named temporary file.
// The file is left in place; removing it is up to the caller.
func (c *Composer) Compose(seq model.ActionSequence, inputPath, outputPath string) (model.ComposedScript, error) {
	script, err := c.Render(seq, inputPath, outputPath)
	if err != nil {
		return model.ComposedScript{}, err
	}

	f, err := os.CreateTemp(c.opts.TempDir, "jsxkit-*"+c.opts.Suffix)
	if err != nil {
		return model.ComposedScript{}, fmt.Errorf("%w: failed to create temp script: %v", model.ErrIOFailure, err)
	}
	if _, err := f.WriteString(script.Text); err != nil {
		f.Close()
		return model.ComposedScript{}, fmt.Errorf("%w: failed to write %s: %v", model.ErrIOFailure, f.Name(), err)
	}
	if err := f.Close(); err != nil {
		return model.ComposedScript{}, fmt.Errorf("%w: failed to close %s: %v", model.ErrIOFailure, f.Name(), err)
	}

	script.Path = f.Name()
	c.logger.Info("Composed script",
		zap.String("script", script.Path),
		zap.String("input", script.Input),
		zap.String("output", script.Output),
		zap.String("save_as", script.SaveAs),
		zap.String("middle", seq.Middle.Kind.String()))
	return script, nil
}

func findToken(s string) string {
	for _, tok := range []string{fragment.InputToken, fragment.OutputToken, ActionsMarker} {
		if strings.Contains(s, tok) {
			return tok
		}
	}
	return ""
}
