package main

import (
	"github.com/spf13/cobra"

	"github.com/sokinpui/jsxkit/internal/app"
	"github.com/sokinpui/jsxkit/internal/tui"
	"github.com/sokinpui/jsxkit/internal/ui"
	"github.com/sokinpui/jsxkit/model"
)

var composeCmd = &cobra.Command{
	Use:   "compose",
	Short: "Compose a script for one image and dispatch it to Photoshop",
	Long: `Builds the open, middle and save/close stages into a temporary .jsx
script and launches Photoshop on it. The middle stage is the built-in half
resize unless --jsx names a .jsx, .jsxbin or markdown recipe.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnimated(cmd, app.CommandCompose, "Composing")
	},
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Process every image in a directory",
	Long: `Composes and dispatches a script per image, waits for each output to
appear, then moves the source image into the finish directory.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runAnimated(cmd, app.CommandRun, "Processing images")
	},
}

var decompileCmd = &cobra.Command{
	Use:   "decompile [LOG]",
	Short: "Turn a ScriptingListener log into a reusable fragment",
	Long: `Splits the log into blocks, drops telemetry blocks, replaces absolute
file literals with a placeholder and writes the result to --output or stdout.
Without LOG the log is read from stdin when piped, otherwise the clipboard.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 1 {
			flags.LogPath = args[0]
		}
		if flags.Out == "" {
			// The fragment goes to stdout; the summary must not interleave with it.
			return runPlain(cmd, app.CommandDecompile, "")
		}
		return runAnimated(cmd, app.CommandDecompile, "Decompiling")
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List dispatched jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlain(cmd, app.CommandStatus, "")
	},
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Delete the scripts of finished jobs",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runPlain(cmd, app.CommandClean, "Clean Summary")
	},
}

func newApp() (*app.App, error) {
	return app.New(flags, cfg, logger)
}

// runAnimated executes command behind the spinner.
func runAnimated(cmd *cobra.Command, command app.Command, label string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	_, err = tui.Run(label, func(progress func(string)) (model.Summary, error) {
		a.SetProgressCallback(progress)
		return a.Execute(cmd.Context(), command)
	}, flags.NoAnimation)
	return err
}

// runPlain executes command without the spinner. An empty title prints
// only the message.
func runPlain(cmd *cobra.Command, command app.Command, title string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	summary, err := a.Execute(cmd.Context(), command)
	if err != nil {
		return err
	}
	if title == "" {
		if summary.Message != "" {
			ui.Success("%s", summary.Message)
		}
		for _, s := range summary.Skipped {
			ui.Path("skipped %s", s)
		}
		return nil
	}
	ui.PrintSummary(title, summary.Created, summary.Modified, summary.Skipped, summary.Failed, summary.Message)
	return nil
}
