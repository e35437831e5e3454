// Package tools implements the sandboxed tool surface agents act
// through. Every filesystem tool resolves paths inside a single
// workspace root; paths that escape it are rejected before any I/O.
package tools

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/appforge/appforge/internal/errors"
)

// Workspace is a directory sandbox. All tool paths are relative to its
// root and may not resolve outside it.
type Workspace struct {
	root         string
	maxReadBytes int
	locks        *pathLocks
}

// NewWorkspace creates a workspace rooted at dir. The directory is
// created if it does not exist.
func NewWorkspace(dir string, maxReadBytes int) (*Workspace, error) {
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve workspace root: %w", err)
	}
	if err := os.MkdirAll(abs, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create workspace root: %w", err)
	}
	if maxReadBytes <= 0 {
		maxReadBytes = 256 * 1024
	}
	return &Workspace{root: abs, maxReadBytes: maxReadBytes, locks: newPathLocks()}, nil
}

// Root returns the absolute workspace root.
func (w *Workspace) Root() string {
	return w.root
}

// resolve maps a workspace-relative path to an absolute one, rejecting
// anything that escapes the root.
func (w *Workspace) resolve(rel string) (string, error) {
	if rel == "" {
		return "", errors.New(errors.ErrCodeToolInvalidArgs, "path must not be empty")
	}
	abs := filepath.Join(w.root, filepath.FromSlash(rel))
	abs = filepath.Clean(abs)
	if abs != w.root && !strings.HasPrefix(abs, w.root+string(filepath.Separator)) {
		return "", errors.NewToolPathEscapeError(rel)
	}
	return abs, nil
}

// Exists reports whether a regular file exists at the given path.
// Escaping paths simply report false.
func (w *Workspace) Exists(rel string) bool {
	abs, err := w.resolve(rel)
	if err != nil {
		return false
	}
	info, err := os.Stat(abs)
	return err == nil && info.Mode().IsRegular()
}

// ReadFile returns the contents of one file, truncated at the read cap.
func (w *Workspace) ReadFile(rel string) (string, bool, error) {
	abs, err := w.resolve(rel)
	if err != nil {
		return "", false, err
	}
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, errors.New(errors.ErrCodeToolFileNotFound,
				fmt.Sprintf("file not found: %s", rel))
		}
		return "", false, errors.Wrap(errors.ErrCodeFileReadFailed,
			fmt.Sprintf("failed to read %s", rel), err)
	}
	truncated := false
	if len(data) > w.maxReadBytes {
		data = data[:w.maxReadBytes]
		truncated = true
	}
	return string(data), truncated, nil
}

// WriteFile writes content to a file, creating parent directories as
// needed. Writes to the same path are serialized; distinct paths may
// write concurrently.
func (w *Workspace) WriteFile(rel, content string) error {
	abs, err := w.resolve(rel)
	if err != nil {
		return err
	}

	unlock := w.locks.lock(abs)
	defer unlock()

	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return errors.Wrap(errors.ErrCodeToolWriteFailed,
			fmt.Sprintf("failed to create parent directory for %s", rel), err)
	}
	if err := os.WriteFile(abs, []byte(content), 0o644); err != nil {
		return errors.Wrap(errors.ErrCodeToolWriteFailed,
			fmt.Sprintf("failed to write %s", rel), err)
	}
	return nil
}

// ListDir returns the sorted entries of a directory. Directories get a
// trailing slash.
func (w *Workspace) ListDir(rel string) ([]string, error) {
	if rel == "" || rel == "." {
		rel = "."
	}
	abs, err := w.resolve(rel)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New(errors.ErrCodeToolFileNotFound,
				fmt.Sprintf("directory not found: %s", rel))
		}
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed,
			fmt.Sprintf("failed to list %s", rel), err)
	}

	names := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() {
			name += "/"
		}
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

// SearchMatch is one hit from a workspace search.
type SearchMatch struct {
	Path string `json:"path"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// Search scans every regular file under the root for a literal
// substring and returns up to maxMatches hits in path order.
func (w *Workspace) Search(query string, maxMatches int) ([]SearchMatch, error) {
	if query == "" {
		return nil, errors.New(errors.ErrCodeToolInvalidArgs, "query must not be empty")
	}
	if maxMatches <= 0 {
		maxMatches = 100
	}

	var matches []SearchMatch
	err := filepath.WalkDir(w.root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			// Skip hidden and vendored directories.
			if path != w.root && (strings.HasPrefix(d.Name(), ".") || d.Name() == "node_modules" || d.Name() == "vendor") {
				return filepath.SkipDir
			}
			return nil
		}
		if len(matches) >= maxMatches {
			return filepath.SkipAll
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil
		}
		if !strings.Contains(string(data), query) {
			return nil
		}

		rel, err := filepath.Rel(w.root, path)
		if err != nil {
			return nil
		}
		for i, line := range strings.Split(string(data), "\n") {
			if strings.Contains(line, query) {
				matches = append(matches, SearchMatch{
					Path: filepath.ToSlash(rel),
					Line: i + 1,
					Text: strings.TrimSpace(line),
				})
				if len(matches) >= maxMatches {
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeFileReadFailed, "search failed", err)
	}
	return matches, nil
}
