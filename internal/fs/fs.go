package fs

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sokinpui/jsxkit/model"
)

// PathResolver turns user supplied paths into absolute ones.
type PathResolver struct {
	baseDir string
}

// NewPathResolver creates a PathResolver rooted at baseDir, or at the current
// working directory when baseDir is empty.
func NewPathResolver(baseDir string) *PathResolver {
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			// This is unlikely to fail, but if it does, it's a critical error.
			panic(fmt.Sprintf("could not get current working directory: %v", err))
		}
		baseDir = wd
	}
	return &PathResolver{baseDir: baseDir}
}

// Resolve expands a leading ~ and makes the path absolute.
func (r *PathResolver) Resolve(path string) string {
	path = ExpandHome(path)
	if filepath.IsAbs(path) {
		return filepath.Clean(path)
	}
	return filepath.Join(r.baseDir, path)
}

// ResolveExisting resolves a path and fails with model.ErrNotFound when
// nothing is there.
func (r *PathResolver) ResolveExisting(path string) (string, error) {
	abs := r.Resolve(path)
	if _, err := os.Stat(abs); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", model.ErrNotFound, abs)
		}
		return "", fmt.Errorf("%w: stat %s: %v", model.ErrIOFailure, abs, err)
	}
	return abs, nil
}

// ExpandHome replaces a leading ~ with the user's home directory.
func ExpandHome(path string) string {
	if path != "~" && !strings.HasPrefix(path, "~/") && !strings.HasPrefix(path, `~\`) {
		return path
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(home, path[1:])
}

// Portable returns the forward-slash form the scripting runtime accepts on
// every platform.
func Portable(path string) string {
	return filepath.ToSlash(path)
}

// FindFiles lists regular files directly inside dir whose extension is in
// extensions (case-insensitive). An empty list means no filter.
func FindFiles(dir string, extensions []string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read directory %s: %w", dir, err)
	}

	var files []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if !HasAllowedExtension(entry.Name(), extensions) {
			continue
		}
		files = append(files, filepath.Join(dir, entry.Name()))
	}
	sort.Strings(files)
	return files, nil
}

// HasAllowedExtension reports whether path ends in one of extensions.
// Extensions are expected with their leading dot.
func HasAllowedExtension(path string, extensions []string) bool {
	if len(extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowedExt := range extensions {
		if ext == strings.ToLower(allowedExt) {
			return true
		}
	}
	return false
}

// EnsureParentDir creates the directory that will hold path.
func EnsureParentDir(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory %s: %w", dir, err)
	}
	return nil
}

// Move relocates src to dst, creating dst's directory. It falls back to
// copy-and-remove when a rename crosses devices.
func Move(src, dst string) error {
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("%w: %s", model.ErrNotFound, src)
	}
	if err := EnsureParentDir(dst); err != nil {
		return err
	}
	if err := os.Rename(src, dst); err == nil {
		return nil
	}

	if err := copyFile(src, dst); err != nil {
		return err
	}
	return os.Remove(src)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", src, err)
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return fmt.Errorf("failed to copy %s to %s: %w", src, dst, err)
	}
	return out.Close()
}
