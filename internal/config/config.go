package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/sokinpui/jsxkit/internal/dispatch"
	"github.com/sokinpui/jsxkit/internal/filter"
	"github.com/sokinpui/jsxkit/internal/patcher"
)

// DefaultFileName is looked up in the working directory when no --config is given.
const DefaultFileName = ".jsxkit.yaml"

// Environment overrides.
const (
	EnvPhotoshop = "JSXKIT_PHOTOSHOP"
	EnvTempDir   = "JSXKIT_TEMP_DIR"
)

// Config holds all jsxkit configuration.
type Config struct {
	Photoshop PhotoshopConfig `yaml:"photoshop"`
	Compose   ComposeConfig   `yaml:"compose"`
	Decompile DecompileConfig `yaml:"decompile"`
	Await     AwaitConfig     `yaml:"await"`
	Batch     BatchConfig     `yaml:"batch"`
	// StateDir holds the dispatch journal directory. Empty means the git
	// root, falling back to the working directory.
	StateDir string `yaml:"state_dir"`
}

// PhotoshopConfig configures the dispatch shim.
type PhotoshopConfig struct {
	Executable   string `yaml:"executable"`
	FallbackName string `yaml:"fallback_name"`
	RunFlag      string `yaml:"run_flag"`
}

// ComposeConfig configures where composed scripts go and the default middle
// stage. OutputSuffix is appended to the image stem when no --output is
// given; an empty Middle means the built-in resize.
type ComposeConfig struct {
	TempDir      string `yaml:"temp_dir"`
	Suffix       string `yaml:"suffix"`
	OutputSuffix string `yaml:"output_suffix"`
	Middle       string `yaml:"middle"`
}

// DecompileConfig configures the log transformer.
type DecompileConfig struct {
	Blacklist    []string           `yaml:"blacklist"`
	PathRules    []patcher.RuleSpec `yaml:"path_rules"`
	Placeholder  string             `yaml:"placeholder"`
	DialogPolicy string             `yaml:"dialog_policy"`
	Wrap         bool               `yaml:"wrap"`
}

// AwaitConfig bounds the completion wait. Durations use Go syntax ("10m", "1s").
type AwaitConfig struct {
	Timeout   string `yaml:"timeout"`
	Poll      string `yaml:"poll"`
	Heartbeat string `yaml:"heartbeat"`
}

// BatchConfig configures `jsxkit run`. Outputs keep the source file name
// unless OutputSuffix is set.
type BatchConfig struct {
	Extensions   []string `yaml:"extensions"`
	OutputSuffix string   `yaml:"output_suffix"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() *Config {
	return &Config{
		Photoshop: PhotoshopConfig{
			Executable:   `C:\Program Files\Adobe\Adobe Photoshop 2023\Photoshop.exe`,
			FallbackName: dispatch.DefaultFallbackName,
			RunFlag:      dispatch.DefaultRunFlag,
		},
		Compose: ComposeConfig{
			Suffix:       ".jsx",
			OutputSuffix: "_resized",
		},
		Decompile: DecompileConfig{
			Blacklist:    append([]string(nil), filter.DefaultBlacklist...),
			Placeholder:  patcher.DefaultPlaceholder,
			DialogPolicy: string(filter.DialogKeep),
		},
		Await: AwaitConfig{
			Timeout:   dispatch.DefaultTimeout.String(),
			Poll:      dispatch.DefaultPollInterval.String(),
			Heartbeat: dispatch.DefaultHeartbeatInterval.String(),
		},
		Batch: BatchConfig{
			Extensions: []string{".jpg", ".png"},
		},
	}
}

// Load reads .env (if present), then the yaml file at path merged over the
// defaults, then the environment overrides. An empty path tries
// DefaultFileName and silently skips it when absent.
func Load(path string) (*Config, error) {
	// A missing .env is fine; variables may come from the real environment.
	_ = godotenv.Load()

	cfg := DefaultConfig()

	explicit := path != ""
	if !explicit {
		path = DefaultFileName
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
		// No config file; defaults apply.
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v, ok := os.LookupEnv(EnvPhotoshop); ok && v != "" {
		c.Photoshop.Executable = v
	}
	if v, ok := os.LookupEnv(EnvTempDir); ok && v != "" {
		c.Compose.TempDir = v
	}
}

// Validate checks values that would otherwise fail late.
func (c *Config) Validate() error {
	if _, err := filter.ParseDialogPolicy(c.Decompile.DialogPolicy); err != nil {
		return err
	}
	for name, v := range map[string]string{
		"await.timeout":   c.Await.Timeout,
		"await.poll":      c.Await.Poll,
		"await.heartbeat": c.Await.Heartbeat,
	} {
		if _, err := parseDuration(v); err != nil {
			return fmt.Errorf("invalid %s: %w", name, err)
		}
	}
	return nil
}

// WaitOptions converts the await section for the dispatch package.
func (c *Config) WaitOptions() dispatch.WaitOptions {
	timeout, _ := parseDuration(c.Await.Timeout)
	poll, _ := parseDuration(c.Await.Poll)
	heartbeat, _ := parseDuration(c.Await.Heartbeat)
	return dispatch.WaitOptions{
		Timeout:           timeout,
		PollInterval:      poll,
		HeartbeatInterval: heartbeat,
	}
}

// LauncherConfig converts the photoshop section for the dispatch package.
func (c *Config) LauncherConfig() dispatch.LauncherConfig {
	return dispatch.LauncherConfig{
		Executable:   c.Photoshop.Executable,
		FallbackName: c.Photoshop.FallbackName,
		RunFlag:      c.Photoshop.RunFlag,
	}
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, err
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}
