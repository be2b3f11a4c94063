package jsxkit

import (
	"fmt"

	"github.com/sokinpui/jsxkit/internal/compose"
	"github.com/sokinpui/jsxkit/internal/decompile"
	"github.com/sokinpui/jsxkit/internal/filter"
	"github.com/sokinpui/jsxkit/internal/fragment"
	"github.com/sokinpui/jsxkit/internal/fs"
	"github.com/sokinpui/jsxkit/model"
)

// ComposeConfig for using the composer as a library.
type ComposeConfig struct {
	// Middle is an external fragment (.jsx, .jsxbin or markdown recipe).
	// Empty selects the built-in half resize.
	Middle string
	// TempDir receives the script. Empty means the OS temp directory.
	TempDir string
	// DryRun renders the script without writing it.
	DryRun bool
}

// DecompileConfig for using the transformer as a library.
type DecompileConfig struct {
	// Blacklist replaces the default telemetry keywords when non-empty.
	Blacklist []string
	// DialogPolicy is one of keep, force-no, strip, comment. Empty means keep.
	DialogPolicy string
	// Placeholder replaces absolute file literals. Empty means {TMP_JSX}.
	Placeholder string
	// Wrap adds the standalone preamble/postamble.
	Wrap bool
}

// Compose builds the open, middle, save/close script for input and output.
// It returns the script path (empty on a dry run) and its text.
func Compose(input, output string, config ComposeConfig) (path, text string, err error) {
	resolver := fs.NewPathResolver("")
	seq, err := fragment.New(resolver, nil).Sequence(config.Middle)
	if err != nil {
		return "", "", err
	}

	c := compose.New(compose.Options{TempDir: config.TempDir}, resolver, nil)
	if config.DryRun {
		script, err := c.Render(seq, input, output)
		if err != nil {
			return "", "", err
		}
		return "", script.Text, nil
	}

	script, err := c.Compose(seq, input, output)
	if err != nil {
		return "", "", err
	}
	return script.Path, script.Text, nil
}

// Decompile turns a raw ScriptingListener log into a replayable fragment.
// It returns the fragment and a map of outcomes: "Kept" and "Skipped"
// list block indices, the latter with their reasons.
func Decompile(raw string, config DecompileConfig) (string, map[string][]string, error) {
	policy, err := filter.ParseDialogPolicy(config.DialogPolicy)
	if err != nil {
		return "", nil, err
	}
	t, err := decompile.New(decompile.Options{
		Blacklist:    config.Blacklist,
		DialogPolicy: policy,
		Placeholder:  config.Placeholder,
		Wrap:         config.Wrap,
	}, nil)
	if err != nil {
		return "", nil, fmt.Errorf("failed to initialize transformer: %w", err)
	}

	res := t.Run(raw)
	outcomes := map[string][]string{
		"Kept":    {},
		"Skipped": {},
	}
	for _, b := range res.Blocks {
		if b.Disposition == model.Skipped {
			outcomes["Skipped"] = append(outcomes["Skipped"], fmt.Sprintf("%d: %s", b.Index, b.Reason))
		} else {
			outcomes["Kept"] = append(outcomes["Kept"], fmt.Sprintf("%d", b.Index))
		}
	}
	return res.Text, outcomes, nil
}
