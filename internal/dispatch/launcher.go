// Package dispatch hands composed scripts to Photoshop and watches for the
// files they produce.
package dispatch

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/sokinpui/jsxkit/model"
)

const (
	// DefaultFallbackName is tried when the configured executable is missing.
	DefaultFallbackName = "Photoshop.exe"
	// DefaultRunFlag makes Photoshop run the given script.
	DefaultRunFlag = "-r"
)

// LauncherConfig configures how the external application is started.
type LauncherConfig struct {
	Executable   string
	FallbackName string
	RunFlag      string
}

// Launcher starts the external application without waiting for it.
type Launcher struct {
	config LauncherConfig
	logger *zap.Logger

	// start is swapped in tests.
	start func(cmd *exec.Cmd) error
}

// NewLauncher creates a Launcher. Empty fields take their defaults.
func NewLauncher(config LauncherConfig, logger *zap.Logger) *Launcher {
	if config.FallbackName == "" {
		config.FallbackName = DefaultFallbackName
	}
	if config.RunFlag == "" {
		config.RunFlag = DefaultRunFlag
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Launcher{
		config: config,
		logger: logger,
		start:  func(cmd *exec.Cmd) error { return cmd.Start() },
	}
}

// Executable returns the program Dispatch will run: the configured path when
// it exists on disk, otherwise the bare fallback name for the OS to resolve.
func (l *Launcher) Executable() string {
	if l.config.Executable != "" {
		if _, err := os.Stat(l.config.Executable); err == nil {
			return l.config.Executable
		}
	}
	return l.config.FallbackName
}

// Dispatch starts the application on scriptPath and returns as soon as the
// process exists. Success means "started", not "script finished".
func (l *Launcher) Dispatch(ctx context.Context, scriptPath string) (model.Handle, error) {
	if err := ctx.Err(); err != nil {
		return model.Handle{}, err
	}

	exe := l.Executable()
	if exe != l.config.Executable {
		l.logger.Warn("Configured executable not found, falling back to bare name",
			zap.String("configured", l.config.Executable),
			zap.String("fallback", exe))
	}

	// Not exec.CommandContext: the application must outlive this process.
	cmd := exec.Command(exe, l.config.RunFlag, scriptPath)
	if err := l.start(cmd); err != nil {
		return model.Handle{}, fmt.Errorf("%w: %s: %v", model.ErrLaunchFailure, exe, err)
	}

	h := model.Handle{
		ID:         uuid.NewString(),
		Script:     scriptPath,
		Executable: exe,
		StartedAt:  time.Now(),
	}
	if cmd.Process != nil {
		h.PID = cmd.Process.Pid
		// Fire-and-forget: drop our reference instead of waiting.
		_ = cmd.Process.Release()
	}

	l.logger.Info("Dispatched script",
		zap.String("id", h.ID),
		zap.Int("pid", h.PID),
		zap.String("executable", exe),
		zap.String("script", scriptPath))
	return h, nil
}
