// Package decompile turns a ScriptingListener log into a reusable fragment:
// segment, drop non-reproducible blocks, make paths portable, reassemble.
package decompile

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/sokinpui/jsxkit/internal/filter"
	"github.com/sokinpui/jsxkit/internal/parser"
	"github.com/sokinpui/jsxkit/internal/patcher"
	"github.com/sokinpui/jsxkit/model"
)

// Options configures a Transformer. Zero values select the defaults.
type Options struct {
	Blacklist    []string
	DialogPolicy filter.DialogPolicy
	Placeholder  string
	PathRules    []patcher.RuleSpec
	Wrap         bool
}

// Result is the outcome of one transformer run.
type Result struct {
	Text      string
	Blocks    []model.LogBlock
	Kept      int
	Skipped   int
	Rewritten int // Path literals replaced across all kept blocks.
}

// Transformer runs the decompile pipeline. It holds only read-only
// configuration and can be reused.
type Transformer struct {
	filter  *filter.Filter
	rewrite func(string) (string, int)
	wrap    bool
	logger  *zap.Logger
}

// New builds a Transformer. A nil logger is replaced by a no-op one.
func New(opts Options, logger *zap.Logger) (*Transformer, error) {
	blacklist := opts.Blacklist
	if len(blacklist) == 0 {
		blacklist = filter.DefaultBlacklist
	}
	f, err := filter.New(blacklist, opts.DialogPolicy)
	if err != nil {
		return nil, err
	}
	r, err := patcher.New(opts.Placeholder, opts.PathRules)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Transformer{filter: f, rewrite: r.RewriteCount, wrap: opts.Wrap, logger: logger}, nil
}

// Run transforms raw. Failures are contained per block: a block that cannot
// be processed is reported as skipped and the rest continue.
func (t *Transformer) Run(raw string) Result {
	blocks := parser.Segment(raw)
	t.logger.Debug("Segmented log",
		zap.Int("delimiters", parser.CountDelimiters(raw)),
		zap.Int("blocks", len(blocks)))

	res := Result{Blocks: make([]model.LogBlock, 0, len(blocks))}
	for _, b := range blocks {
		out, rewritten := t.process(b)
		res.Blocks = append(res.Blocks, out)
		if out.Disposition == model.Skipped {
			res.Skipped++
			continue
		}
		res.Kept++
		res.Rewritten += rewritten
	}

	res.Text = Reassemble(res.Blocks)
	if t.wrap {
		res.Text = Wrap(res.Text)
	}
	t.logger.Info("Decompiled log",
		zap.Int("kept", res.Kept),
		zap.Int("skipped", res.Skipped),
		zap.Int("paths_rewritten", res.Rewritten))
	return res
}

func (t *Transformer) process(b model.LogBlock) (out model.LogBlock, rewritten int) {
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("Block processing failed", zap.Int("block", b.Index), zap.Any("panic", r))
			out = b
			out.Disposition = model.Skipped
			out.Reason = fmt.Sprintf("error: %v", r)
			rewritten = 0
		}
	}()

	out = t.filter.Classify(b)
	if out.Disposition == model.Skipped {
		t.logger.Info("Skipped block", zap.Int("block", out.Index), zap.String("reason", out.Reason))
		return out, 0
	}

	out.Text, rewritten = t.rewrite(t.filter.Normalize(out.Text))
	return out, rewritten
}
