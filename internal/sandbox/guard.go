// Package sandbox confines all agent file access to the target project
// directory. Every read, write and listing goes through a Guard rooted at
// the resolved target path; anything outside it is rejected.
package sandbox

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// ViolationError reports an attempted access outside the sandbox root.
type ViolationError struct {
	Path string
	Root string
}

func (e *ViolationError) Error() string {
	return fmt.Sprintf("sandbox: path %q escapes root %q", e.Path, e.Root)
}

// Guard confines file operations to a single directory tree.
type Guard struct {
	root string
}

// NewGuard resolves dir (following symlinks) and returns a Guard rooted
// there. dir must exist and be a directory.
func NewGuard(dir string) (*Guard, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("sandbox: resolve %s: %w", dir, err)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return nil, fmt.Errorf("sandbox: resolve %s: %w", dir, err)
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return nil, fmt.Errorf("sandbox: stat %s: %w", resolved, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("sandbox: %s is not a directory", resolved)
	}
	return &Guard{root: resolved}, nil
}

// Root returns the resolved sandbox root.
func (g *Guard) Root() string { return g.root }

// Allowed reports whether path resolves to the root or a descendant of it.
func (g *Guard) Allowed(path string) bool {
	_, err := g.resolve(path)
	return err == nil
}

// resolve turns path into an absolute path and verifies it stays under
// the root. Non-existent files are checked through their deepest existing
// ancestor so writes to new files still get vetted.
func (g *Guard) resolve(path string) (string, error) {
	abs := path
	if !filepath.IsAbs(abs) {
		abs = filepath.Join(g.root, path)
	}
	abs = filepath.Clean(abs)

	// Resolve symlinks on the deepest existing ancestor.
	probe := abs
	var tail []string
	for {
		resolved, err := filepath.EvalSymlinks(probe)
		if err == nil {
			probe = resolved
			break
		}
		if !os.IsNotExist(err) {
			return "", fmt.Errorf("sandbox: resolve %s: %w", path, err)
		}
		parent := filepath.Dir(probe)
		if parent == probe {
			break
		}
		tail = append([]string{filepath.Base(probe)}, tail...)
		probe = parent
	}
	resolved := filepath.Join(append([]string{probe}, tail...)...)

	if resolved != g.root && !strings.HasPrefix(resolved, g.root+string(filepath.Separator)) {
		log.Warn().Str("path", path).Str("root", g.root).Msg("sandbox: access denied")
		return "", &ViolationError{Path: path, Root: g.root}
	}
	return resolved, nil
}

// ReadFile reads a file confined to the sandbox. Relative paths are
// interpreted against the root.
func (g *Guard) ReadFile(path string) ([]byte, error) {
	resolved, err := g.resolve(path)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return nil, fmt.Errorf("sandbox: read %s: %w", path, err)
	}
	return data, nil
}

// WriteFile writes a file confined to the sandbox, creating parent
// directories as needed.
func (g *Guard) WriteFile(path string, data []byte) error {
	resolved, err := g.resolve(path)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0750); err != nil {
		return fmt.Errorf("sandbox: create parent of %s: %w", path, err)
	}
	if err := os.WriteFile(resolved, data, 0600); err != nil {
		return fmt.Errorf("sandbox: write %s: %w", path, err)
	}
	return nil
}

// ListFiles walks the sandbox and returns root-relative paths of regular
// files matching ext (empty ext matches everything). Hidden directories
// and common vendored trees are skipped.
func (g *Guard) ListFiles(ext string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(g.root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if path != g.root && (strings.HasPrefix(name, ".") || name == "__pycache__" || name == "node_modules" || name == "venv") {
				return filepath.SkipDir
			}
			return nil
		}
		if ext != "" && !strings.HasSuffix(name, ext) {
			return nil
		}
		rel, relErr := filepath.Rel(g.root, path)
		if relErr != nil {
			return relErr
		}
		files = append(files, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("sandbox: list files: %w", err)
	}
	return files, nil
}
