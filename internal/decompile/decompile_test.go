package decompile

import (
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sokinpui/jsxkit/internal/filter"
	"github.com/sokinpui/jsxkit/internal/parser"
	"github.com/sokinpui/jsxkit/model"
)

const delimiter = "// =======================================================\n"

func TestRun_PluginAndPathScenario(t *testing.T) {
	raw := delimiter +
		"var idplugin = stringIDToTypeID( \"x\" );\npluginRun(idplugin);\n" +
		delimiter +
		"var desc = new ActionDescriptor();\n" +
		"desc.putPath( charIDToTypeID( \"null\" ), new File(\"C:\\Users\\x\\f.txt\") );\n" +
		"executeAction(actionA, desc, DialogModes.NO);\n"

	tr, err := New(Options{}, nil)
	require.NoError(t, err)
	res := tr.Run(raw)

	require.Len(t, res.Blocks, 2)
	assert.Equal(t, 1, res.Kept)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Rewritten)

	sections := Sections(res.Text)
	require.Len(t, sections, 2)
	assert.Equal(t, "// Skipped telemetry/state block containing: pluginRun", sections[0])
	assert.NotContains(t, res.Text, "idplugin", "skipped text must be discarded")

	kept := sections[1]
	assert.Contains(t, kept, `new File("{TMP_JSX}")`)
	assert.NotContains(t, kept, `C:\Users`)
	assert.Contains(t, kept, "executeAction(actionA, desc, DialogModes.NO);")
}

func TestRun_BlockCountPreserved(t *testing.T) {
	for _, n := range []int{0, 1, 2, 7} {
		t.Run(fmt.Sprintf("%d blocks", n), func(t *testing.T) {
			var b strings.Builder
			for i := 0; i < n; i++ {
				b.WriteString(delimiter)
				if i%3 == 1 {
					fmt.Fprintf(&b, "stringIDToTypeID( \"featureInfo\" ); // %d\n", i)
				} else {
					fmt.Fprintf(&b, "var step%d = new File(\"D:/in/%d.jpg\");\n", i, i)
				}
				b.WriteString("\n   \n" + delimiter) // empty block in between
			}
			raw := b.String()

			require.Len(t, parser.Segment(raw), n)

			tr, err := New(Options{}, nil)
			require.NoError(t, err)
			res := tr.Run(raw)

			assert.Len(t, res.Blocks, n)
			assert.Len(t, Sections(res.Text), n)
			assert.Equal(t, n, res.Kept+res.Skipped)
		})
	}
}

func TestRun_OrderPreserved(t *testing.T) {
	raw := delimiter + "first();\n" + delimiter + "hostFocusChanged();\n" + delimiter + "third();\n"

	tr, err := New(Options{}, nil)
	require.NoError(t, err)
	res := tr.Run(raw)

	assert.Equal(t, "first();"+Boundary+filter.Marker("hostFocusChanged")+Boundary+"third();", res.Text)
	for i, b := range res.Blocks {
		assert.Equal(t, i, b.Index)
	}
}

func TestRun_Wrap(t *testing.T) {
	tr, err := New(Options{Wrap: true}, nil)
	require.NoError(t, err)
	res := tr.Run(delimiter + "step();\n")

	assert.True(t, strings.HasPrefix(res.Text, Preamble))
	assert.True(t, strings.HasSuffix(res.Text, Postamble))
	assert.Contains(t, res.Text, "step();")
}

func TestRun_DialogPolicy(t *testing.T) {
	raw := delimiter + "executeAction( idX, desc, DialogModes.ALL );\n"

	keep, err := New(Options{}, nil)
	require.NoError(t, err)
	assert.Contains(t, keep.Run(raw).Text, "DialogModes.ALL")

	force, err := New(Options{DialogPolicy: filter.DialogForceNo}, nil)
	require.NoError(t, err)
	assert.Contains(t, force.Run(raw).Text, "DialogModes.NO")
}

func TestRun_CustomBlacklist(t *testing.T) {
	tr, err := New(Options{Blacklist: []string{"historyStateChanged"}}, nil)
	require.NoError(t, err)

	res := tr.Run(delimiter + "historyStateChanged();\n" + delimiter + "pluginRun();\n")
	require.Len(t, res.Blocks, 2)
	assert.Equal(t, model.Skipped, res.Blocks[0].Disposition)
	assert.Equal(t, model.Kept, res.Blocks[1].Disposition, "custom blacklist replaces the default one")
}

func TestNew_InvalidOptions(t *testing.T) {
	_, err := New(Options{DialogPolicy: "maybe"}, nil)
	assert.Error(t, err)
}

func TestReassemble_Empty(t *testing.T) {
	assert.Equal(t, "", Reassemble(nil))
	assert.Nil(t, Sections(""))
}

func TestRun_FailingBlockIsContained(t *testing.T) {
	tr, err := New(Options{}, nil)
	require.NoError(t, err)
	rewrite := tr.rewrite
	tr.rewrite = func(s string) (string, int) {
		if strings.Contains(s, "second") {
			panic("unterminated literal")
		}
		return rewrite(s)
	}

	raw := delimiter + "first();\n" + delimiter + "second();\n" + delimiter + "third(new File(\"C:/in/a.jpg\"));\n"
	res := tr.Run(raw)

	require.Len(t, res.Blocks, 3)
	assert.Equal(t, model.Kept, res.Blocks[0].Disposition)
	assert.Equal(t, model.Skipped, res.Blocks[1].Disposition)
	assert.Equal(t, "error: unterminated literal", res.Blocks[1].Reason)
	assert.Equal(t, model.Kept, res.Blocks[2].Disposition)
	assert.Equal(t, 2, res.Kept)
	assert.Equal(t, 1, res.Skipped)
	assert.Equal(t, 1, res.Rewritten)

	assert.Contains(t, res.Text, "first();")
	assert.Contains(t, res.Text, `third(new File("{TMP_JSX}"));`)
	assert.NotContains(t, res.Text, "second();")
}
