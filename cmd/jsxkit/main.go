package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sokinpui/jsxkit/cli"
	"github.com/sokinpui/jsxkit/internal/app"
	"github.com/sokinpui/jsxkit/internal/config"
	"github.com/sokinpui/jsxkit/internal/logging"
	"github.com/sokinpui/jsxkit/internal/ui"
)

var (
	flags = &cli.Config{}

	logger *zap.Logger
	cfg    *config.Config
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "jsxkit",
	Short: "Compose and replay Photoshop action scripts",
	Long: `jsxkit builds ExtendScript action scripts from fragments, hands them to
Photoshop, and turns ScriptingListener logs into reusable fragments.

Example:
  jsxkit compose -i cat.jpg --wait
  jsxkit decompile ~/Desktop/ScriptingListenerJS.log -o open.jsx`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Keep the spinner line clean: only warnings reach stderr while it runs.
		var err error
		logger, err = logging.New(flags.Verbose, !flags.NoAnimation)
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(flags.ConfigFile)
		if err != nil {
			return err
		}
		logger.Debug("Loaded configuration",
			zap.String("photoshop", cfg.Photoshop.Executable),
			zap.String("temp_dir", cfg.Compose.TempDir))
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	cli.BindGlobalFlags(rootCmd.PersistentFlags(), flags)

	cli.BindComposeFlags(composeCmd.Flags(), flags)
	cli.BindRunFlags(runCmd.Flags(), flags)
	cli.BindDecompileFlags(decompileCmd.Flags(), flags)

	rootCmd.AddCommand(composeCmd)
	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(decompileCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(cleanCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		ui.Error("Error: %v", err)
		var detailed *app.DetailedError
		if errors.As(err, &detailed) && flags.Verbose {
			fmt.Fprintf(os.Stderr, "\n--- Stack Trace ---\n%s\n", detailed.Stack)
		}
		os.Exit(1)
	}
}
