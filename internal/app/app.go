package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sokinpui/jsxkit/cli"
	"github.com/sokinpui/jsxkit/internal/compose"
	"github.com/sokinpui/jsxkit/internal/config"
	"github.com/sokinpui/jsxkit/internal/decompile"
	"github.com/sokinpui/jsxkit/internal/dispatch"
	"github.com/sokinpui/jsxkit/internal/filter"
	"github.com/sokinpui/jsxkit/internal/fragment"
	"github.com/sokinpui/jsxkit/internal/fs"
	"github.com/sokinpui/jsxkit/internal/nvim"
	"github.com/sokinpui/jsxkit/internal/source"
	"github.com/sokinpui/jsxkit/internal/state"
	"github.com/sokinpui/jsxkit/model"
)

// Command selects the operation Execute runs.
type Command string

const (
	CommandCompose   Command = "compose"
	CommandRun       Command = "run"
	CommandDecompile Command = "decompile"
	CommandStatus    Command = "status"
	CommandClean     Command = "clean"
)

// ProgressUpdate is a callback function to report progress.
type ProgressUpdate func(msg string)

// Dispatcher launches a composed script.
type Dispatcher interface {
	Dispatch(ctx context.Context, scriptPath string) (model.Handle, error)
}

// Awaiter waits for the marker a dispatched script leaves behind.
type Awaiter interface {
	Await(ctx context.Context, h model.Handle, marker string) (model.Completion, error)
}

// App orchestrates the entire application logic.
type App struct {
	opts             *cli.Config
	cfg              *config.Config
	logger           *zap.Logger
	journal          *state.Manager
	pathResolver     *fs.PathResolver
	sourceProvider   *source.SourceProvider
	library          *fragment.Library
	composer         *compose.Composer
	dispatcher       Dispatcher
	newAwaiter       func(dispatch.WaitOptions) Awaiter
	review           func(paths []string) error
	stdout           io.Writer
	progressCallback ProgressUpdate
}

// DetailedError enhances a standard error with a stack trace.
type DetailedError struct {
	Err   error
	Stack []byte
}

func (e *DetailedError) Error() string {
	return e.Err.Error()
}

func (e *DetailedError) Unwrap() error {
	return e.Err
}

// New creates a new App instance.
func New(opts *cli.Config, cfg *config.Config, logger *zap.Logger) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	journal, err := state.New(cfg.StateDir)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize journal: %w", err)
	}
	pathResolver := fs.NewPathResolver("")

	return &App{
		opts:           opts,
		cfg:            cfg,
		logger:         logger,
		journal:        journal,
		pathResolver:   pathResolver,
		sourceProvider: source.New(),
		library:        fragment.New(pathResolver, logger),
		composer: compose.New(compose.Options{
			TempDir: fs.ExpandHome(cfg.Compose.TempDir),
			Suffix:  cfg.Compose.Suffix,
		}, pathResolver, logger),
		dispatcher: dispatch.NewLauncher(cfg.LauncherConfig(), logger),
		newAwaiter: func(o dispatch.WaitOptions) Awaiter {
			return dispatch.NewWaiter(o, logger)
		},
		review: reviewInNeovim,
		stdout: os.Stdout,
	}, nil
}

// SetProgressCallback sets a function to be called for progress updates.
func (a *App) SetProgressCallback(cb ProgressUpdate) {
	a.progressCallback = cb
}

func (a *App) progress(format string, args ...interface{}) {
	if a.progressCallback != nil {
		a.progressCallback(fmt.Sprintf(format, args...))
	}
}

// Execute runs cmd with centralized panic recovery.
func (a *App) Execute(ctx context.Context, cmd Command) (summary model.Summary, err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("Internal panic", zap.Any("panic", r), zap.String("command", string(cmd)))
			err = &DetailedError{
				Err:   fmt.Errorf("internal panic: %v", r),
				Stack: debug.Stack(),
			}
		}
	}()

	switch cmd {
	case CommandCompose:
		return a.composeOne(ctx)
	case CommandRun:
		return a.runBatch(ctx)
	case CommandDecompile:
		return a.decompileLog()
	case CommandStatus:
		return a.status()
	case CommandClean:
		return a.clean()
	default:
		return model.Summary{}, fmt.Errorf("unknown command %q", cmd)
	}
}

// --- Composer path ---

// composeOne handles `jsxkit compose`: build, write, dispatch and
// optionally wait for a single image.
func (a *App) composeOne(ctx context.Context) (model.Summary, error) {
	if a.opts.Input == "" {
		return model.Summary{}, fmt.Errorf("%w: no input image given", model.ErrNotFound)
	}
	input, err := a.pathResolver.ResolveExisting(a.opts.Input)
	if err != nil {
		return model.Summary{}, fmt.Errorf("input image: %w", err)
	}
	output := a.opts.Output
	if output == "" {
		output = DefaultOutputPath(input, "", a.cfg.Compose.OutputSuffix)
	}
	output = a.pathResolver.Resolve(output)

	seq, err := a.library.Sequence(a.middlePath())
	if err != nil {
		return model.Summary{}, err
	}

	if a.opts.DryRun {
		script, err := a.composer.Render(seq, input, output)
		if err != nil {
			return model.Summary{}, err
		}
		fmt.Fprint(a.stdout, script.Text)
		return model.Summary{Message: "Dry run: script printed, nothing dispatched."}, nil
	}

	script, h, err := a.dispatchOne(ctx, seq, input, output)
	if err != nil {
		return model.Summary{}, err
	}

	if !a.opts.Wait {
		summary := model.Summary{
			Created: []string{script.Path},
			Message: fmt.Sprintf("Dispatched job %s to %s.", h.ID, h.Executable),
		}
		a.relativizeSummaryPaths(&summary)
		return summary, nil
	}

	completion, err := a.await(ctx, h, output)
	if err != nil {
		return model.Summary{}, err
	}
	summary := model.Summary{}
	switch completion {
	case model.Completed:
		summary.Created = []string{output}
		summary.Message = fmt.Sprintf("Job %s completed.", h.ID)
	case model.TimedOut:
		summary.Skipped = []string{output}
		summary.Message = fmt.Sprintf("Job %s %v; script left at %s.", h.ID, model.ErrTimeoutWaiting, script.Path)
	}
	a.relativizeSummaryPaths(&summary)
	return summary, nil
}

// runBatch handles `jsxkit run`: every image in the input directory is
// composed, dispatched and awaited in turn, then moved to the finish dir.
func (a *App) runBatch(ctx context.Context) (model.Summary, error) {
	if err := a.opts.ValidateRun(); err != nil {
		return model.Summary{}, err
	}
	inputDir, err := a.pathResolver.ResolveExisting(a.opts.InputDir)
	if err != nil {
		return model.Summary{}, fmt.Errorf("input directory: %w", err)
	}
	outputDir := a.pathResolver.Resolve(a.opts.OutputDir)
	finishDir := a.pathResolver.Resolve(a.opts.FinishDir)
	for _, dir := range []string{outputDir, finishDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return model.Summary{}, fmt.Errorf("%w: failed to create %s: %v", model.ErrIOFailure, dir, err)
		}
	}

	exts := cli.NormalizeExtensions(a.opts.Extensions)
	if len(exts) == 0 {
		exts = cli.NormalizeExtensions(a.cfg.Batch.Extensions)
	}
	images, err := fs.FindFiles(inputDir, exts)
	if err != nil {
		return model.Summary{}, fmt.Errorf("%w: %v", model.ErrIOFailure, err)
	}
	if len(images) == 0 {
		return model.Summary{Message: fmt.Sprintf("No images matching %s in %s.", strings.Join(exts, ", "), inputDir)}, nil
	}

	seq, err := a.library.Sequence(a.middlePath())
	if err != nil {
		return model.Summary{}, err
	}

	summary := model.Summary{}
	for i, image := range images {
		a.progress("[%d/%d] %s", i+1, len(images), filepath.Base(image))
		output := DefaultOutputPath(image, outputDir, a.cfg.Batch.OutputSuffix)

		_, h, err := a.dispatchOne(ctx, seq, image, output)
		if err != nil {
			if errors.Is(err, model.ErrLaunchFailure) {
				// The application is not reachable; later images would fail too.
				return model.Summary{}, err
			}
			a.logger.Error("Failed to compose script", zap.String("image", image), zap.Error(err))
			summary.Failed = append(summary.Failed, image)
			continue
		}

		completion, err := a.await(ctx, h, output)
		if err != nil {
			return model.Summary{}, err
		}
		if completion == model.TimedOut {
			summary.Skipped = append(summary.Skipped, image)
			continue
		}

		if err := fs.Move(image, filepath.Join(finishDir, filepath.Base(image))); err != nil {
			a.logger.Error("Failed to move processed image", zap.String("image", image), zap.Error(err))
			summary.Failed = append(summary.Failed, image)
			continue
		}
		summary.Created = append(summary.Created, output)
		summary.Modified = append(summary.Modified, image)
	}

	summary.Message = fmt.Sprintf("Processed %d of %d image(s).", len(summary.Created), len(images))
	a.relativizeSummaryPaths(&summary)
	return summary, nil
}

// dispatchOne composes a script for input/output, launches it and records
// the job.
func (a *App) dispatchOne(ctx context.Context, seq model.ActionSequence, input, output string) (model.ComposedScript, model.Handle, error) {
	script, err := a.composer.Compose(seq, input, output)
	if err != nil {
		return model.ComposedScript{}, model.Handle{}, err
	}
	if err := fs.EnsureParentDir(output); err != nil {
		return script, model.Handle{}, fmt.Errorf("%w: %v", model.ErrIOFailure, err)
	}

	h, err := a.dispatcher.Dispatch(ctx, script.Path)
	if err != nil {
		return script, model.Handle{}, err
	}
	if _, err := a.journal.Record(h, input, output); err != nil {
		a.logger.Warn("Failed to journal job", zap.String("id", h.ID), zap.Error(err))
	}
	return script, h, nil
}

// await waits for output to appear and journals the outcome. Interruption
// is returned as an error; a timeout is not.
func (a *App) await(ctx context.Context, h model.Handle, output string) (model.Completion, error) {
	opts := a.cfg.WaitOptions()
	if a.opts.Timeout > 0 {
		opts.Timeout = a.opts.Timeout
	}
	opts.Heartbeat = func(elapsed time.Duration) {
		a.progress("waiting for %s (%s)", filepath.Base(output), elapsed.Round(time.Second))
	}

	completion, err := a.newAwaiter(opts).Await(ctx, h, output)
	if completion == model.TimedOut {
		a.logger.Warn("Output did not appear",
			zap.String("id", h.ID),
			zap.Duration("timeout", opts.Timeout),
			zap.Error(fmt.Errorf("%w: %s", model.ErrTimeoutWaiting, output)))
	}
	if serr := a.journal.SetStatus(h.ID, state.StatusFor(completion)); serr != nil {
		a.logger.Warn("Failed to update job status", zap.String("id", h.ID), zap.Error(serr))
	}
	if err != nil {
		return completion, fmt.Errorf("waiting for %s: %w", output, err)
	}
	return completion, nil
}

func (a *App) middlePath() string {
	if a.opts.JSX != "" {
		return a.opts.JSX
	}
	return fs.ExpandHome(a.cfg.Compose.Middle)
}

// DefaultOutputPath returns <stem><suffix><ext> inside dir, or next to
// input when dir is empty.
func DefaultOutputPath(input, dir, suffix string) string {
	if dir == "" {
		dir = filepath.Dir(input)
	}
	base := filepath.Base(input)
	ext := filepath.Ext(base)
	stem := strings.TrimSuffix(base, ext)
	return filepath.Join(dir, stem+suffix+ext)
}

// --- Transformer path ---

// decompileLog handles `jsxkit decompile`.
func (a *App) decompileLog() (model.Summary, error) {
	if err := a.opts.ValidateDecompile(); err != nil {
		return model.Summary{}, err
	}
	raw, err := a.sourceProvider.GetContent(a.opts.LogPath)
	if err != nil {
		return model.Summary{}, err
	}
	if strings.TrimSpace(raw) == "" {
		return model.Summary{Message: "Source is empty. Nothing to process."}, nil
	}

	t, err := a.newTransformer()
	if err != nil {
		return model.Summary{}, err
	}
	res := t.Run(raw)

	summary := model.Summary{
		Message: fmt.Sprintf("%d block(s): %d kept, %d skipped, %d path(s) rewritten.",
			len(res.Blocks), res.Kept, res.Skipped, res.Rewritten),
	}
	for _, b := range res.Blocks {
		if b.Disposition == model.Skipped {
			summary.Skipped = append(summary.Skipped, fmt.Sprintf("block %d: %s", b.Index, b.Reason))
		}
	}

	if a.opts.Out == "" {
		fmt.Fprint(a.stdout, res.Text)
		return summary, nil
	}

	out := a.pathResolver.Resolve(a.opts.Out)
	if err := fs.EnsureParentDir(out); err != nil {
		return model.Summary{}, fmt.Errorf("%w: %v", model.ErrIOFailure, err)
	}
	if err := os.WriteFile(out, []byte(res.Text), 0644); err != nil {
		return model.Summary{}, fmt.Errorf("%w: failed to write %s: %v", model.ErrIOFailure, out, err)
	}
	summary.Created = []string{out}
	a.logger.Info("Wrote fragment", zap.String("path", out))

	if a.opts.Review {
		if err := a.review([]string{out}); err != nil {
			return model.Summary{}, fmt.Errorf("review: %w", err)
		}
	}

	a.relativizeSummaryPaths(&summary)
	return summary, nil
}

func (a *App) newTransformer() (*decompile.Transformer, error) {
	dc := a.cfg.Decompile
	policyName := dc.DialogPolicy
	if a.opts.DialogPolicy != "" {
		policyName = a.opts.DialogPolicy
	}
	policy, err := filter.ParseDialogPolicy(policyName)
	if err != nil {
		return nil, err
	}
	return decompile.New(decompile.Options{
		Blacklist:    dc.Blacklist,
		DialogPolicy: policy,
		Placeholder:  dc.Placeholder,
		PathRules:    dc.PathRules,
		Wrap:         dc.Wrap || a.opts.Wrap,
	}, a.logger)
}

func reviewInNeovim(paths []string) error {
	manager, err := nvim.New("")
	if err != nil {
		return err
	}
	defer manager.Close()

	if _, failed := manager.OpenFiles(paths, nil); len(failed) > 0 {
		return fmt.Errorf("failed to open %s", strings.Join(failed, ", "))
	}
	return nil
}

// --- Journal ---

// status lists journaled jobs, oldest first.
func (a *App) status() (model.Summary, error) {
	jobs := a.journal.Jobs()
	if len(jobs) == 0 {
		return model.Summary{Message: "No jobs recorded."}, nil
	}
	for _, job := range jobs {
		ts := time.Unix(job.Timestamp, 0).Format(time.RFC3339)
		fmt.Fprintf(a.stdout, "%s  %-11s  %s  %s -> %s\n", job.ID, job.Status, ts, job.Input, job.Output)
	}
	return model.Summary{Message: fmt.Sprintf("%d job(s) recorded.", len(jobs))}, nil
}

// clean deletes the scripts of finished jobs.
func (a *App) clean() (model.Summary, error) {
	removed, err := a.journal.Clean()
	summary := model.Summary{
		Modified: removed,
		Message:  fmt.Sprintf("Removed %d script(s) of finished jobs.", len(removed)),
	}
	if err != nil {
		return summary, err
	}
	a.relativizeSummaryPaths(&summary)
	return summary, nil
}

// relativizeSummaryPaths converts absolute file paths in a summary to be
// relative to the current working directory for cleaner display.
func (a *App) relativizeSummaryPaths(summary *model.Summary) {
	wd, err := os.Getwd()
	if err != nil {
		return
	}

	makeRelative := func(paths []string) []string {
		out := make([]string, len(paths))
		for i, p := range paths {
			if !filepath.IsAbs(p) {
				out[i] = p
				continue
			}
			rel, err := filepath.Rel(wd, p)
			if err != nil || strings.HasPrefix(rel, "..") {
				out[i] = p
			} else {
				out[i] = rel
			}
		}
		return out
	}

	summary.Created = makeRelative(summary.Created)
	summary.Modified = makeRelative(summary.Modified)
	summary.Failed = makeRelative(summary.Failed)
	summary.Skipped = makeRelative(summary.Skipped)
}
