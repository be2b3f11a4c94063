package fragment

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/jsxkit/internal/fs"
	"github.com/sokinpui/jsxkit/model"
)

func newTestLibrary(t *testing.T) (*Library, string) {
	t.Helper()
	dir := t.TempDir()
	return New(fs.NewPathResolver(dir), nil), dir
}

func TestSequence_Default(t *testing.T) {
	lib, _ := newTestLibrary(t)

	seq, err := lib.Sequence("")
	require.NoError(t, err)

	frags := seq.Fragments()
	require.Len(t, frags, 3)
	assert.Equal(t, model.StageOpen, frags[0].Stage)
	assert.Equal(t, OpenScript, frags[0].Text)
	assert.Equal(t, model.StageMiddle, frags[1].Stage)
	assert.Equal(t, ResizeHalfScript, frags[1].Text)
	assert.Equal(t, model.StageClose, frags[2].Stage)
	assert.Equal(t, SaveCloseScript, frags[2].Text)
	for _, f := range frags {
		assert.Equal(t, model.BuiltIn, f.Kind)
	}
}

func TestLoadExternal_Binary(t *testing.T) {
	lib, dir := newTestLibrary(t)
	path := filepath.Join(dir, "paint.jsxbin")
	payload := "@JSXBIN@ES@2.0@MyBbyBn0ABJAnASzBjBBBneBhBf0DzACC"
	require.NoError(t, os.WriteFile(path, []byte(payload), 0644))

	frag, err := lib.Resolve(model.Operation{Stage: model.StageMiddle, Path: "paint.jsxbin"})
	require.NoError(t, err)

	portable := fs.Portable(path)
	assert.Equal(t, model.ExternalBinary, frag.Kind)
	assert.Equal(t, portable, frag.Source)
	assert.Contains(t, frag.Text, `var includedFile = new File("`+portable+`");`)
	assert.Contains(t, frag.Text, "if (!includedFile.exists) throw(")
	assert.Contains(t, frag.Text, "$.evalFile(includedFile);")
	assert.NotContains(t, frag.Text, "@JSXBIN", "binary payload must not be inlined")
}

func TestLoadExternal_Text(t *testing.T) {
	lib, dir := newTestLibrary(t)
	path := filepath.Join(dir, "effect.jsx")
	script := "var src = new File(\"__INPUT__\");\nvar dst = \"__OUTPUT__\";\n"
	require.NoError(t, os.WriteFile(path, []byte(script), 0644))

	frag, err := lib.LoadExternal(path)
	require.NoError(t, err)

	assert.Equal(t, model.ExternalText, frag.Kind)
	assert.Contains(t, frag.Text, `new File("{input}")`)
	assert.Contains(t, frag.Text, `var dst = "{output}";`)
	assert.NotContains(t, frag.Text, "__INPUT__")
	assert.NotContains(t, frag.Text, "__OUTPUT__")

	portable := fs.Portable(path)
	assert.True(t, strings.HasPrefix(frag.Text, "\n// ----- begin included file: "+portable+" -----\n"))
	assert.True(t, strings.HasSuffix(frag.Text, "\n// ----- end included file: "+portable+" -----\n"))
}

func TestLoadExternal_ShortTextFile(t *testing.T) {
	lib, dir := newTestLibrary(t)
	path := filepath.Join(dir, "tiny.jsx")
	require.NoError(t, os.WriteFile(path, []byte("x();"), 0644))

	frag, err := lib.LoadExternal(path)
	require.NoError(t, err)
	assert.Equal(t, model.ExternalText, frag.Kind)
	assert.Contains(t, frag.Text, "x();")
}

func TestLoadExternal_MarkdownRecipe(t *testing.T) {
	lib, dir := newTestLibrary(t)
	path := filepath.Join(dir, "recipe.md")
	recipe := "# Oil paint\n\n```jsx\napp.activeDocument.flatten();\n```\n\nthen\n\n```js\nsaveTo(\"__OUTPUT__\");\n```\n"
	require.NoError(t, os.WriteFile(path, []byte(recipe), 0644))

	frag, err := lib.LoadExternal(path)
	require.NoError(t, err)
	assert.Equal(t, model.ExternalText, frag.Kind)
	assert.Contains(t, frag.Text, "app.activeDocument.flatten();\n// then\nsaveTo(\"{output}\");")
	assert.NotContains(t, frag.Text, "# Oil paint")
}

func TestLoadExternal_MarkdownHintsBecomeComments(t *testing.T) {
	lib, dir := newTestLibrary(t)
	path := filepath.Join(dir, "recipe.md")
	recipe := "Flatten all layers before painting:\n\n```jsx\napp.activeDocument.flatten();\n```\n\n```jsx\napp.refresh();\n```\n"
	require.NoError(t, os.WriteFile(path, []byte(recipe), 0644))

	frag, err := lib.LoadExternal(path)
	require.NoError(t, err)
	assert.Contains(t, frag.Text, "// Flatten all layers before painting:\napp.activeDocument.flatten();\napp.refresh();")
}

func TestLoadExternal_MarkdownWithoutScript(t *testing.T) {
	lib, dir := newTestLibrary(t)
	path := filepath.Join(dir, "empty.md")
	require.NoError(t, os.WriteFile(path, []byte("# nothing\n"), 0644))

	_, err := lib.LoadExternal(path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrIOFailure))
}

func TestLoadExternal_Missing(t *testing.T) {
	lib, _ := newTestLibrary(t)

	_, err := lib.Sequence("does-not-exist.jsx")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrNotFound))
}

func TestLoadExternal_Directory(t *testing.T) {
	lib, dir := newTestLibrary(t)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "folder.jsx"), 0755))

	_, err := lib.LoadExternal("folder.jsx")
	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrIOFailure))
}

func TestBuild_RejectsBadOrder(t *testing.T) {
	lib, _ := newTestLibrary(t)

	_, err := lib.Build([]model.Operation{
		{Stage: model.StageMiddle},
		{Stage: model.StageOpen},
		{Stage: model.StageClose},
	})
	assert.Error(t, err)

	_, err = lib.Build([]model.Operation{{Stage: model.StageOpen}})
	assert.Error(t, err)

	_, err = lib.Resolve(model.Operation{Stage: "rotate"})
	assert.Error(t, err)
}

func TestSaveBranch(t *testing.T) {
	testCases := map[string]string{
		"b.png":          "png",
		"C:/out/B.PNG":   "png",
		"a.jpg":          "jpeg",
		"a.JPEG":         "jpeg",
		"a.tif":          "psd",
		"noext":          "psd",
		"dir.png/file":   "psd",
		"archive.tar.gz": "psd",
	}
	for path, want := range testCases {
		assert.Equal(t, want, SaveBranch(path), path)
	}
}

func TestLoadExternal_BinaryPathIsEscaped(t *testing.T) {
	lib, dir := newTestLibrary(t)
	sub := filepath.Join(dir, `my "best" fx`)
	require.NoError(t, os.MkdirAll(sub, 0755))
	path := filepath.Join(sub, "paint.jsxbin")
	require.NoError(t, os.WriteFile(path, []byte("@JSXBIN@ES@2.0@MyBb"), 0644))

	frag, err := lib.LoadExternal(path)
	require.NoError(t, err)

	escaped := strings.ReplaceAll(fs.Portable(path), `"`, `\"`)
	assert.Contains(t, frag.Text, `var includedFile = new File("`+escaped+`");`)
	assert.Contains(t, frag.Text, `"Included jsxbin not found: " + "`+escaped+`"`)
	assert.NotContains(t, frag.Text, `my "best" fx`)
}

func TestEscapeJSString(t *testing.T) {
	assert.Equal(t, `C:\\in\\a.jpg`, EscapeJSString(`C:\in\a.jpg`))
	assert.Equal(t, `/tmp/say \"hi\".png`, EscapeJSString(`/tmp/say "hi".png`))
	assert.Equal(t, "/plain/path.jpg", EscapeJSString("/plain/path.jpg"))
}
