package parser

import (
	"bytes"
	"strings"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"
)

// ScriptLangs are the fence info strings treated as ExtendScript.
var ScriptLangs = []string{"jsx", "js", "javascript", "extendscript"}

// CodeBlock represents a parsed code block from markdown content.
type CodeBlock struct {
	// Hint is the content of the paragraph immediately preceding the code block.
	Hint string
	// Lang is the language identifier of the code block (e.g., "jsx").
	Lang string
	// Content is the raw text inside the code block.
	Content string
}

// ExtractCodeBlocks uses a markdown AST to find all fenced code blocks
// and their preceding paragraph, which is treated as a hint.
func ExtractCodeBlocks(source []byte) ([]CodeBlock, error) {
	var blocks []CodeBlock
	parser := goldmark.DefaultParser()
	root := parser.Parse(text.NewReader(source))

	walker := func(node ast.Node, entering bool) (ast.WalkStatus, error) {
		if !entering {
			return ast.WalkContinue, nil
		}

		fencedCodeBlock, ok := node.(*ast.FencedCodeBlock)
		if !ok {
			return ast.WalkContinue, nil
		}

		var block CodeBlock
		block.Lang = string(fencedCodeBlock.Language(source))

		var content bytes.Buffer
		lines := fencedCodeBlock.Lines()
		for i := 0; i < lines.Len(); i++ {
			line := lines.At(i)
			content.Write(line.Value(source))
		}
		block.Content = content.String()

		if prev := fencedCodeBlock.PreviousSibling(); prev != nil {
			if p, ok := prev.(*ast.Paragraph); ok {
				block.Hint = strings.TrimSpace(string(p.Text(source)))
			}
		}

		blocks = append(blocks, block)
		return ast.WalkSkipChildren, nil
	}

	if err := ast.Walk(root, walker); err != nil {
		return nil, err
	}

	return blocks, nil
}

// ExtractScriptBlocks returns the fenced blocks tagged with one of ScriptLangs,
// in document order.
func ExtractScriptBlocks(source []byte) ([]CodeBlock, error) {
	all, err := ExtractCodeBlocks(source)
	if err != nil {
		return nil, err
	}

	var scripts []CodeBlock
	for _, block := range all {
		if isScriptLang(block.Lang) {
			scripts = append(scripts, block)
		}
	}
	return scripts, nil
}

func isScriptLang(lang string) bool {
	lang = strings.ToLower(strings.TrimSpace(lang))
	for _, l := range ScriptLangs {
		if lang == l {
			return true
		}
	}
	return false
}
