package cli

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Config holds all the command-line flag values.
type Config struct {
	ConfigFile  string
	Verbose     bool
	NoAnimation bool

	// compose
	Input   string
	Output  string
	JSX     string
	DryRun  bool
	Wait    bool
	Timeout time.Duration

	// run
	InputDir   string
	OutputDir  string
	FinishDir  string
	Extensions []string

	// decompile
	LogPath      string
	Out          string
	Wrap         bool
	DialogPolicy string
	Review       bool
}

// BindGlobalFlags defines the flags shared by every command.
func BindGlobalFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.ConfigFile, "config", "", "Path to a YAML config file (default .jsxkit.yaml if present).")
	fs.BoolVarP(&cfg.Verbose, "verbose", "v", false, "Enable debug logging.")
	fs.BoolVar(&cfg.NoAnimation, "no-animation", false, "Disable loading spinner and progress updates.")
}

// BindComposeFlags defines the flags of `jsxkit compose`.
func BindComposeFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVarP(&cfg.Input, "input", "i", "", "Image to process.")
	fs.StringVarP(&cfg.Output, "output", "o", "", "Where Photoshop saves the result (default <stem>_resized<ext> next to the input).")
	fs.StringVar(&cfg.JSX, "jsx", "", "External middle fragment (.jsx, .jsxbin or markdown recipe).")
	fs.BoolVar(&cfg.DryRun, "dry-run", false, "Print the composed script instead of dispatching it.")
	fs.BoolVarP(&cfg.Wait, "wait", "w", false, "Wait until the output file appears.")
	fs.DurationVar(&cfg.Timeout, "timeout", 0, "Override the configured wait timeout (e.g. 5m).")
}

// BindRunFlags defines the flags of `jsxkit run`.
func BindRunFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.InputDir, "input-dir", "", "Directory of images to process.")
	fs.StringVar(&cfg.OutputDir, "output-dir", "", "Directory that receives processed images.")
	fs.StringVar(&cfg.FinishDir, "finish-dir", "", "Directory that receives source images once processed.")
	fs.StringVar(&cfg.JSX, "jsx", "", "External middle fragment (.jsx, .jsxbin or markdown recipe).")
	fs.StringSliceVarP(&cfg.Extensions, "extension", "e", []string{}, "Image extensions to pick up (e.g. 'jpg', 'png').")
	fs.DurationVar(&cfg.Timeout, "timeout", 0, "Override the configured per-image wait timeout.")
}

// BindDecompileFlags defines the flags of `jsxkit decompile`.
func BindDecompileFlags(fs *pflag.FlagSet, cfg *Config) {
	fs.StringVarP(&cfg.Out, "output", "o", "", "Write the fragment to this file instead of stdout.")
	fs.BoolVar(&cfg.Wrap, "wrap", false, "Wrap the fragment in the standalone preamble/postamble.")
	fs.StringVar(&cfg.DialogPolicy, "dialog-policy", "", "Dialog handling for kept blocks: keep, force-no, strip, comment.")
	fs.BoolVar(&cfg.Review, "review", false, "Open the written fragment in the running Neovim instance.")
}

// ValidateRun checks that the batch directories are set and distinct.
func (c *Config) ValidateRun() error {
	dirs := map[string]string{
		"--input-dir":  c.InputDir,
		"--output-dir": c.OutputDir,
		"--finish-dir": c.FinishDir,
	}
	for flag, v := range dirs {
		if v == "" {
			return fmt.Errorf("error: %s is required", flag)
		}
	}
	if c.InputDir == c.FinishDir {
		return fmt.Errorf("error: --input-dir and --finish-dir must differ")
	}
	return nil
}

// ValidateDecompile rejects flag combinations that cannot work together.
func (c *Config) ValidateDecompile() error {
	if c.Review && c.Out == "" {
		return fmt.Errorf("error: --review requires --output")
	}
	return nil
}

// NormalizeExtensions prefixes every extension with a dot and lowercases it.
func NormalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, ext := range exts {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" {
			continue
		}
		if ext[0] != '.' {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out
}
