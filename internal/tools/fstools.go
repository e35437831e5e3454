package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/appforge/appforge/internal/errors"
)

func decodeArgs(args []byte, v any) error {
	if err := json.Unmarshal(args, v); err != nil {
		return errors.Wrap(errors.ErrCodeToolInvalidArgs, "invalid tool arguments", err)
	}
	return nil
}

func objectSchema(props map[string]any, required ...string) map[string]any {
	s := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		s["required"] = required
	}
	return s
}

// ReadFileTool reads one file from the workspace.
type ReadFileTool struct {
	WS *Workspace
}

func (t *ReadFileTool) Name() string        { return "fs_read" }
func (t *ReadFileTool) Description() string { return "Read a file from the project workspace" }
func (t *ReadFileTool) ReadOnly() bool      { return true }

func (t *ReadFileTool) InputSchema() map[string]any {
	return objectSchema(map[string]any{
		"path": map[string]any{"type": "string", "description": "Workspace-relative file path"},
	}, "path")
}

func (t *ReadFileTool) Invoke(_ context.Context, args []byte) (string, error) {
	var in struct {
		Path string `json:"path"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	content, truncated, err := t.WS.ReadFile(in.Path)
	if err != nil {
		return "", err
	}
	if truncated {
		content += "\n[output truncated]"
	}
	return content, nil
}

// ReadFilesTool reads several files in one call. Missing files become
// per-file error sections instead of failing the whole call.
type ReadFilesTool struct {
	WS *Workspace
}

func (t *ReadFilesTool) Name() string { return "fs_read_files" }
func (t *ReadFilesTool) Description() string {
	return "Read multiple files from the project workspace in one call"
}
func (t *ReadFilesTool) ReadOnly() bool { return true }

func (t *ReadFilesTool) InputSchema() map[string]any {
	return objectSchema(map[string]any{
		"paths": map[string]any{
			"type":  "array",
			"items": map[string]any{"type": "string"},
		},
	}, "paths")
}

func (t *ReadFilesTool) Invoke(_ context.Context, args []byte) (string, error) {
	var in struct {
		Paths []string `json:"paths"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	if len(in.Paths) == 0 {
		return "", errors.New(errors.ErrCodeToolInvalidArgs, "paths must not be empty")
	}

	var b strings.Builder
	for _, path := range in.Paths {
		fmt.Fprintf(&b, "=== %s ===\n", path)
		content, truncated, err := t.WS.ReadFile(path)
		if err != nil {
			fmt.Fprintf(&b, "[error: %v]\n", err)
			continue
		}
		b.WriteString(content)
		if truncated {
			b.WriteString("\n[output truncated]")
		}
		b.WriteString("\n")
	}
	return b.String(), nil
}

// WriteFileTool writes one file into the workspace.
type WriteFileTool struct {
	WS *Workspace
}

func (t *WriteFileTool) Name() string { return "fs_write" }
func (t *WriteFileTool) Description() string {
	return "Write a file into the project workspace, creating parent directories"
}
func (t *WriteFileTool) ReadOnly() bool { return false }

func (t *WriteFileTool) InputSchema() map[string]any {
	return objectSchema(map[string]any{
		"path":    map[string]any{"type": "string", "description": "Workspace-relative file path"},
		"content": map[string]any{"type": "string", "description": "Complete file contents"},
	}, "path", "content")
}

func (t *WriteFileTool) Invoke(_ context.Context, args []byte) (string, error) {
	var in struct {
		Path    string `json:"path"`
		Content string `json:"content"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	if err := t.WS.WriteFile(in.Path, in.Content); err != nil {
		return "", err
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(in.Content), in.Path), nil
}

// ListDirTool lists a workspace directory.
type ListDirTool struct {
	WS *Workspace
}

func (t *ListDirTool) Name() string        { return "fs_list" }
func (t *ListDirTool) Description() string { return "List entries of a workspace directory" }
func (t *ListDirTool) ReadOnly() bool      { return true }

func (t *ListDirTool) InputSchema() map[string]any {
	return objectSchema(map[string]any{
		"path": map[string]any{"type": "string", "description": "Workspace-relative directory, defaults to the root"},
	})
}

func (t *ListDirTool) Invoke(_ context.Context, args []byte) (string, error) {
	var in struct {
		Path string `json:"path"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	if in.Path == "" {
		in.Path = "."
	}
	entries, err := t.WS.ListDir(in.Path)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "(empty)", nil
	}
	return strings.Join(entries, "\n"), nil
}

// SearchTool searches workspace files for a literal substring.
type SearchTool struct {
	WS *Workspace
}

func (t *SearchTool) Name() string        { return "fs_search" }
func (t *SearchTool) Description() string { return "Search workspace files for a literal string" }
func (t *SearchTool) ReadOnly() bool      { return true }

func (t *SearchTool) InputSchema() map[string]any {
	return objectSchema(map[string]any{
		"query":       map[string]any{"type": "string"},
		"max_matches": map[string]any{"type": "integer"},
	}, "query")
}

func (t *SearchTool) Invoke(_ context.Context, args []byte) (string, error) {
	var in struct {
		Query      string `json:"query"`
		MaxMatches int    `json:"max_matches"`
	}
	if err := decodeArgs(args, &in); err != nil {
		return "", err
	}
	matches, err := t.WS.Search(in.Query, in.MaxMatches)
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "no matches", nil
	}
	var b strings.Builder
	for _, m := range matches {
		fmt.Fprintf(&b, "%s:%d: %s\n", m.Path, m.Line, m.Text)
	}
	return b.String(), nil
}
