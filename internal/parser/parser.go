package parser

import (
	"regexp"
	"strings"

	"github.com/sokinpui/jsxkit/model"
)

// delimiterRegex matches the separator ScriptingListener writes between
// recorded steps, e.g. "// =======================================================".
var delimiterRegex = regexp.MustCompile(`//\s*={3,}\s*`)

// Segment splits a raw listener log into delimiter-bounded blocks.
// Whitespace-only pieces are dropped; the remaining blocks are trimmed and
// numbered in order. Calling Segment again on the same input yields the same
// blocks.
func Segment(raw string) []model.LogBlock {
	raw = strings.ReplaceAll(raw, "\r\n", "\n")
	pieces := delimiterRegex.Split(raw, -1)

	blocks := make([]model.LogBlock, 0, len(pieces))
	for _, piece := range pieces {
		text := strings.TrimSpace(piece)
		if text == "" {
			continue
		}
		blocks = append(blocks, model.LogBlock{
			Index: len(blocks),
			Text:  text,
		})
	}
	return blocks
}

// CountDelimiters reports how many separator lines raw contains.
func CountDelimiters(raw string) int {
	return len(delimiterRegex.FindAllStringIndex(raw, -1))
}
