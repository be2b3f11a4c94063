package app

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/jsxkit/cli"
	"github.com/sokinpui/jsxkit/internal/config"
	"github.com/sokinpui/jsxkit/internal/dispatch"
	"github.com/sokinpui/jsxkit/internal/state"
	"github.com/sokinpui/jsxkit/model"
)

type fakeDispatcher struct {
	scripts []string
	err     error
	panics  bool
}

func (f *fakeDispatcher) Dispatch(_ context.Context, script string) (model.Handle, error) {
	if f.panics {
		panic("launcher exploded")
	}
	if f.err != nil {
		return model.Handle{}, f.err
	}
	f.scripts = append(f.scripts, script)
	return model.Handle{
		ID:         filepath.Base(script),
		Script:     script,
		Executable: "Photoshop.exe",
		StartedAt:  time.Now(),
	}, nil
}

type fakeAwaiter struct {
	completion model.Completion
	markers    *[]string
}

func (f fakeAwaiter) Await(_ context.Context, _ model.Handle, marker string) (model.Completion, error) {
	*f.markers = append(*f.markers, marker)
	return f.completion, nil
}

type harness struct {
	app        *App
	dispatcher *fakeDispatcher
	stdout     *bytes.Buffer
	waitOpts   dispatch.WaitOptions
	markers    []string
	reviewed   []string
	tempDir    string
}

func newHarness(t *testing.T, opts *cli.Config, completion model.Completion) *harness {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.StateDir = t.TempDir()
	cfg.Compose.TempDir = t.TempDir()

	a, err := New(opts, cfg, nil)
	require.NoError(t, err)

	h := &harness{app: a, dispatcher: &fakeDispatcher{}, stdout: &bytes.Buffer{}, tempDir: cfg.Compose.TempDir}
	a.dispatcher = h.dispatcher
	a.stdout = h.stdout
	a.newAwaiter = func(o dispatch.WaitOptions) Awaiter {
		h.waitOpts = o
		return fakeAwaiter{completion: completion, markers: &h.markers}
	}
	a.review = func(paths []string) error {
		h.reviewed = append(h.reviewed, paths...)
		return nil
	}
	return h
}

func writeFile(t *testing.T, path, content string) string {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func tempScripts(t *testing.T, dir string) []string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join(dir, "jsxkit-*.jsx"))
	require.NoError(t, err)
	return matches
}

func TestCompose_MissingInput(t *testing.T) {
	h := newHarness(t, &cli.Config{Input: filepath.Join(t.TempDir(), "missing.jpg")}, model.Completed)

	_, err := h.app.Execute(context.Background(), CommandCompose)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNotFound))
	assert.Empty(t, tempScripts(t, h.tempDir))
	assert.Empty(t, h.dispatcher.scripts)
}

func TestCompose_MissingMiddleWritesNothing(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "a.jpg"), "img")
	h := newHarness(t, &cli.Config{Input: input, JSX: filepath.Join(dir, "nope.jsx")}, model.Completed)

	_, err := h.app.Execute(context.Background(), CommandCompose)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNotFound))
	assert.Empty(t, tempScripts(t, h.tempDir))
}

func TestCompose_DryRun(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "a.jpg"), "img")
	h := newHarness(t, &cli.Config{Input: input, DryRun: true}, model.Completed)

	summary, err := h.app.Execute(context.Background(), CommandCompose)
	require.NoError(t, err)
	assert.Contains(t, summary.Message, "Dry run")
	assert.Contains(t, h.stdout.String(), filepath.ToSlash(input))
	assert.Contains(t, h.stdout.String(), filepath.ToSlash(filepath.Join(dir, "a_resized.jpg")))
	assert.Empty(t, h.dispatcher.scripts)
	assert.Empty(t, tempScripts(t, h.tempDir))
}

func TestCompose_DispatchAndWait(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "b.png"), "img")
	output := filepath.Join(dir, "out", "b_small.png")
	h := newHarness(t, &cli.Config{Input: input, Output: output, Wait: true, Timeout: 5 * time.Second}, model.Completed)

	summary, err := h.app.Execute(context.Background(), CommandCompose)
	require.NoError(t, err)
	require.Len(t, h.dispatcher.scripts, 1)
	assert.Equal(t, []string{output}, h.markers)
	assert.Equal(t, 5*time.Second, h.waitOpts.Timeout)
	assert.NotNil(t, h.waitOpts.Heartbeat)
	assert.Contains(t, summary.Message, "completed")

	info, err := os.Stat(filepath.Join(dir, "out"))
	require.NoError(t, err)
	assert.True(t, info.IsDir(), "output directory is created before dispatch")

	jobs := h.app.journal.Jobs()
	require.Len(t, jobs, 1)
	assert.Equal(t, state.StatusCompleted, jobs[0].Status)
	assert.Equal(t, input, jobs[0].Input)
}

func TestCompose_TimeoutIsNotAnError(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "a.jpg"), "img")
	h := newHarness(t, &cli.Config{Input: input, Wait: true}, model.TimedOut)

	summary, err := h.app.Execute(context.Background(), CommandCompose)
	require.NoError(t, err)
	assert.Contains(t, summary.Message, model.ErrTimeoutWaiting.Error())
	assert.Contains(t, summary.Message, "script left at")
	assert.Equal(t, []string{filepath.Join(dir, "a_resized.jpg")}, h.markers)
	assert.Equal(t, 600*time.Second, h.waitOpts.Timeout)
	assert.Equal(t, state.StatusTimedOut, h.app.journal.Jobs()[0].Status)
}

func TestCompose_LaunchFailure(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "a.jpg"), "img")
	h := newHarness(t, &cli.Config{Input: input}, model.Completed)
	h.dispatcher.err = model.ErrLaunchFailure

	_, err := h.app.Execute(context.Background(), CommandCompose)
	assert.True(t, errors.Is(err, model.ErrLaunchFailure))
	assert.Empty(t, h.app.journal.Jobs())
}

func TestExecute_RecoversPanic(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "a.jpg"), "img")
	h := newHarness(t, &cli.Config{Input: input}, model.Completed)
	h.dispatcher.panics = true

	_, err := h.app.Execute(context.Background(), CommandCompose)
	var detailed *DetailedError
	require.True(t, errors.As(err, &detailed))
	assert.Contains(t, detailed.Error(), "launcher exploded")
	assert.NotEmpty(t, detailed.Stack)
}

func TestRun_Batch(t *testing.T) {
	root := t.TempDir()
	inDir := filepath.Join(root, "in")
	writeFile(t, filepath.Join(inDir, "a.jpg"), "a")
	writeFile(t, filepath.Join(inDir, "b.PNG"), "b")
	writeFile(t, filepath.Join(inDir, "notes.txt"), "n")
	outDir := filepath.Join(root, "out")
	finishDir := filepath.Join(root, "done")

	h := newHarness(t, &cli.Config{InputDir: inDir, OutputDir: outDir, FinishDir: finishDir}, model.Completed)
	var progress []string
	h.app.SetProgressCallback(func(msg string) { progress = append(progress, msg) })

	summary, err := h.app.Execute(context.Background(), CommandRun)
	require.NoError(t, err)

	assert.Equal(t, []string{filepath.Join(outDir, "a.jpg"), filepath.Join(outDir, "b.PNG")}, h.markers)
	assert.Len(t, h.dispatcher.scripts, 2)
	assert.Equal(t, []string{"[1/2] a.jpg", "[2/2] b.PNG"}, progress)
	assert.Equal(t, "Processed 2 of 2 image(s).", summary.Message)

	assert.FileExists(t, filepath.Join(finishDir, "a.jpg"))
	assert.FileExists(t, filepath.Join(finishDir, "b.PNG"))
	assert.FileExists(t, filepath.Join(inDir, "notes.txt"))
	assert.NoFileExists(t, filepath.Join(inDir, "a.jpg"))
}

func TestRun_TimedOutImageStays(t *testing.T) {
	root := t.TempDir()
	inDir := filepath.Join(root, "in")
	writeFile(t, filepath.Join(inDir, "a.jpg"), "a")

	h := newHarness(t, &cli.Config{InputDir: inDir, OutputDir: filepath.Join(root, "out"), FinishDir: filepath.Join(root, "done")}, model.TimedOut)

	summary, err := h.app.Execute(context.Background(), CommandRun)
	require.NoError(t, err)
	assert.Len(t, summary.Skipped, 1)
	assert.Empty(t, summary.Created)
	assert.FileExists(t, filepath.Join(inDir, "a.jpg"))
}

func TestRun_BatchOutputSuffixFromConfig(t *testing.T) {
	root := t.TempDir()
	inDir := filepath.Join(root, "in")
	writeFile(t, filepath.Join(inDir, "a.jpg"), "a")
	outDir := filepath.Join(root, "out")

	h := newHarness(t, &cli.Config{InputDir: inDir, OutputDir: outDir, FinishDir: filepath.Join(root, "done")}, model.Completed)
	h.app.cfg.Batch.OutputSuffix = "_web"

	_, err := h.app.Execute(context.Background(), CommandRun)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(outDir, "a_web.jpg")}, h.markers)
}

func TestRun_LaunchFailureAborts(t *testing.T) {
	root := t.TempDir()
	inDir := filepath.Join(root, "in")
	writeFile(t, filepath.Join(inDir, "a.jpg"), "a")
	writeFile(t, filepath.Join(inDir, "b.jpg"), "b")

	h := newHarness(t, &cli.Config{InputDir: inDir, OutputDir: filepath.Join(root, "out"), FinishDir: filepath.Join(root, "done")}, model.Completed)
	h.dispatcher.err = model.ErrLaunchFailure

	_, err := h.app.Execute(context.Background(), CommandRun)
	assert.True(t, errors.Is(err, model.ErrLaunchFailure))
	assert.Empty(t, h.markers)
}

func TestRun_ValidatesDirs(t *testing.T) {
	h := newHarness(t, &cli.Config{InputDir: "in"}, model.Completed)
	_, err := h.app.Execute(context.Background(), CommandRun)
	assert.Error(t, err)
}

const listenerLog = "// =======================================================\n" +
	"var idplugin = stringIDToTypeID( \"x\" );\npluginRun(idplugin);\n" +
	"// =======================================================\n" +
	"var desc = new ActionDescriptor();\n" +
	"desc.putPath( charIDToTypeID( \"null\" ), new File(\"C:\\\\Users\\\\x\\\\f.psd\") );\n" +
	"executeAction( charIDToTypeID( \"Opn \" ), desc, DialogModes.NO );\n"

func TestDecompile_ToFileWithReview(t *testing.T) {
	dir := t.TempDir()
	logPath := writeFile(t, filepath.Join(dir, "ScriptingListenerJS.log"), listenerLog)
	out := filepath.Join(dir, "fragments", "open.jsx")

	h := newHarness(t, &cli.Config{LogPath: logPath, Out: out, Review: true}, model.Completed)
	summary, err := h.app.Execute(context.Background(), CommandDecompile)
	require.NoError(t, err)

	assert.Equal(t, "2 block(s): 1 kept, 1 skipped, 1 path(s) rewritten.", summary.Message)
	assert.Equal(t, []string{"block 0: pluginRun"}, summary.Skipped)
	assert.Equal(t, []string{out}, h.reviewed)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	text := string(data)
	assert.Contains(t, text, "// Skipped telemetry/state block containing: pluginRun")
	assert.Contains(t, text, `new File("{TMP_JSX}")`)
	assert.NotContains(t, text, "idplugin")
}

func TestDecompile_ToStdoutWithPolicy(t *testing.T) {
	dir := t.TempDir()
	logPath := writeFile(t, filepath.Join(dir, "ScriptingListenerJS.log"), listenerLog)

	h := newHarness(t, &cli.Config{LogPath: logPath, DialogPolicy: "comment", Wrap: true}, model.Completed)
	_, err := h.app.Execute(context.Background(), CommandDecompile)
	require.NoError(t, err)

	got := h.stdout.String()
	assert.Contains(t, got, "/* removed executeAction:")
	assert.Contains(t, got, "{INPUT}")
}

func TestDecompile_InvalidPolicy(t *testing.T) {
	dir := t.TempDir()
	logPath := writeFile(t, filepath.Join(dir, "ScriptingListenerJS.log"), listenerLog)
	h := newHarness(t, &cli.Config{LogPath: logPath, DialogPolicy: "maybe"}, model.Completed)

	_, err := h.app.Execute(context.Background(), CommandDecompile)
	assert.Error(t, err)
}

func TestStatusAndClean(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "a.jpg"), "img")
	h := newHarness(t, &cli.Config{Input: input, Wait: true}, model.Completed)

	_, err := h.app.Execute(context.Background(), CommandCompose)
	require.NoError(t, err)
	require.Len(t, h.dispatcher.scripts, 1)
	script := h.dispatcher.scripts[0]
	assert.FileExists(t, script)

	summary, err := h.app.Execute(context.Background(), CommandStatus)
	require.NoError(t, err)
	assert.Equal(t, "1 job(s) recorded.", summary.Message)
	assert.Contains(t, h.stdout.String(), "completed")

	summary, err = h.app.Execute(context.Background(), CommandClean)
	require.NoError(t, err)
	assert.Equal(t, "Removed 1 script(s) of finished jobs.", summary.Message)
	assert.NoFileExists(t, script)
	assert.Empty(t, h.app.journal.Jobs())
}

func TestClean_DispatchedJobWithOutput(t *testing.T) {
	dir := t.TempDir()
	input := writeFile(t, filepath.Join(dir, "a.jpg"), "img")
	h := newHarness(t, &cli.Config{Input: input}, model.Completed)

	_, err := h.app.Execute(context.Background(), CommandCompose)
	require.NoError(t, err)
	require.Len(t, h.dispatcher.scripts, 1)
	script := h.dispatcher.scripts[0]

	summary, err := h.app.Execute(context.Background(), CommandClean)
	require.NoError(t, err)
	assert.Equal(t, "Removed 0 script(s) of finished jobs.", summary.Message)
	assert.FileExists(t, script, "output not written yet")

	writeFile(t, filepath.Join(dir, "a_resized.jpg"), "result")
	summary, err = h.app.Execute(context.Background(), CommandClean)
	require.NoError(t, err)
	assert.Equal(t, "Removed 1 script(s) of finished jobs.", summary.Message)
	assert.NoFileExists(t, script)
	assert.Empty(t, h.app.journal.Jobs())
}

func TestDefaultOutputPath(t *testing.T) {
	assert.Equal(t, filepath.Join("photos", "cat_resized.jpg"), DefaultOutputPath(filepath.Join("photos", "cat.jpg"), "", "_resized"))
	assert.Equal(t, filepath.Join("out", "cat_resized.png"), DefaultOutputPath(filepath.Join("photos", "cat.png"), "out", "_resized"))
}
