// Package fragment resolves action stages to ExtendScript fragments: the
// built-in catalog plus external .jsx, .jsxbin and markdown recipe files.
package fragment

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/sokinpui/jsxkit/internal/fs"
	"github.com/sokinpui/jsxkit/internal/parser"
	"github.com/sokinpui/jsxkit/model"
)

// headerSize is how much of an external file is read to detect JSXBIN.
const headerSize = 8

var placeholderReplacer = strings.NewReplacer(
	InputPlaceholder, InputToken,
	OutputPlaceholder, OutputToken,
)

// Library resolves operations to fragments. The catalog is fixed; external
// files are read on every call.
type Library struct {
	resolver *fs.PathResolver
	logger   *zap.Logger
}

// New creates a Library resolving relative paths against resolver. A nil
// logger is replaced by a no-op one.
func New(resolver *fs.PathResolver, logger *zap.Logger) *Library {
	if resolver == nil {
		resolver = fs.NewPathResolver("")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Library{resolver: resolver, logger: logger}
}

// Resolve returns the fragment for one operation.
func (l *Library) Resolve(op model.Operation) (model.Fragment, error) {
	switch op.Stage {
	case model.StageOpen:
		return builtIn(model.StageOpen, OpenScript), nil
	case model.StageClose:
		return builtIn(model.StageClose, SaveCloseScript), nil
	case model.StageMiddle:
		if strings.TrimSpace(op.Path) == "" {
			return builtIn(model.StageMiddle, ResizeHalfScript), nil
		}
		return l.LoadExternal(op.Path)
	default:
		return model.Fragment{}, fmt.Errorf("unknown stage %q", op.Stage)
	}
}

// Build resolves an operation list that must be exactly open, middle, close.
// The first failing stage aborts the build.
func (l *Library) Build(ops []model.Operation) (model.ActionSequence, error) {
	want := []model.Stage{model.StageOpen, model.StageMiddle, model.StageClose}
	if len(ops) != len(want) {
		return model.ActionSequence{}, fmt.Errorf("expected %d operations (open, middle, close), got %d", len(want), len(ops))
	}

	frags := make([]model.Fragment, len(ops))
	for i, op := range ops {
		if op.Stage != want[i] {
			return model.ActionSequence{}, fmt.Errorf("operation %d must be %q, got %q", i, want[i], op.Stage)
		}
		frag, err := l.Resolve(op)
		if err != nil {
			return model.ActionSequence{}, fmt.Errorf("failed to resolve %s stage: %w", op.Stage, err)
		}
		frags[i] = frag
	}

	return model.ActionSequence{Open: frags[0], Middle: frags[1], Close: frags[2]}, nil
}

// Sequence builds the standard sequence. An empty middlePath selects the
// built-in half resize.
func (l *Library) Sequence(middlePath string) (model.ActionSequence, error) {
	return l.Build([]model.Operation{
		{Stage: model.StageOpen},
		{Stage: model.StageMiddle, Path: middlePath},
		{Stage: model.StageClose},
	})
}

// LoadExternal reads a middle-stage file. JSXBIN payloads become a
// load-and-execute stub, markdown recipes contribute their script blocks, and
// anything else is read as ExtendScript text.
func (l *Library) LoadExternal(path string) (model.Fragment, error) {
	abs, err := l.resolver.ResolveExisting(path)
	if err != nil {
		return model.Fragment{}, fmt.Errorf("fragment file: %w", err)
	}
	portable := fs.Portable(abs)

	head, err := readHeader(abs)
	if err != nil {
		return model.Fragment{}, err
	}

	if bytes.HasPrefix(head, []byte(BinaryMagic)) {
		l.logger.Debug("Loaded binary fragment", zap.String("path", portable))
		return model.Fragment{
			Kind:   model.ExternalBinary,
			Stage:  model.StageMiddle,
			Text:   fmt.Sprintf(binaryStubFormat, EscapeJSString(portable)),
			Source: portable,
		}, nil
	}

	data, err := os.ReadFile(abs)
	if err != nil {
		return model.Fragment{}, fmt.Errorf("%w: failed to read %s: %v", model.ErrIOFailure, abs, err)
	}

	text := string(data)
	if isMarkdown(abs) {
		text, err = recipeScript(data)
		if err != nil {
			return model.Fragment{}, fmt.Errorf("%w: %s: %v", model.ErrIOFailure, abs, err)
		}
	}

	l.logger.Debug("Loaded text fragment", zap.String("path", portable), zap.Int("bytes", len(text)))
	return model.Fragment{
		Kind:   model.ExternalText,
		Stage:  model.StageMiddle,
		Text:   wrapIncluded(Normalize(text), portable),
		Source: portable,
	}, nil
}

// Normalize rewrites external placeholder spellings to canonical tokens.
func Normalize(text string) string {
	return placeholderReplacer.Replace(text)
}

func builtIn(stage model.Stage, text string) model.Fragment {
	return model.Fragment{Kind: model.BuiltIn, Stage: stage, Text: text}
}

func readHeader(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", model.ErrIOFailure, path, err)
	}
	defer f.Close()

	head := make([]byte, headerSize)
	n, err := io.ReadFull(f, head)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, fmt.Errorf("%w: failed to read file header: %s: %v", model.ErrIOFailure, path, err)
	}
	return head[:n], nil
}

func isMarkdown(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".md", ".markdown":
		return true
	}
	return false
}

func recipeScript(source []byte) (string, error) {
	blocks, err := parser.ExtractScriptBlocks(source)
	if err != nil {
		return "", err
	}
	if len(blocks) == 0 {
		return "", errors.New("no script blocks")
	}

	// The paragraph introducing a block is kept as a one-line comment above it.
	parts := make([]string, len(blocks))
	for i, b := range blocks {
		code := strings.TrimRight(b.Content, "\n")
		if hint := strings.Join(strings.Fields(b.Hint), " "); hint != "" {
			code = "// " + hint + "\n" + code
		}
		parts[i] = code
	}
	return strings.Join(parts, "\n"), nil
}

func wrapIncluded(text, source string) string {
	return fmt.Sprintf(includeBeginFormat, source) + text + fmt.Sprintf(includeEndFormat, source)
}
