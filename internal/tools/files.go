package tools

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// ReadFileTool reads a file's content, grounded on the original's
// tools/file_operations.py read operation.
type ReadFileTool struct{ Root string }

func (ReadFileTool) Name() string { return "read_file" }
func (ReadFileTool) Description() string {
	return "Reads a file's content. Params: {\"path\": string}."
}

func (t ReadFileTool) Execute(_ context.Context, params map[string]interface{}) (string, error) {
	path, ok := params["path"].(string)
	if !ok || path == "" {
		return "", fmt.Errorf("read_file: missing required string parameter 'path'")
	}
	resolved, err := t.resolve(path)
	if err != nil {
		return "", err
	}
	data, err := os.ReadFile(resolved)
	if err != nil {
		return "", fmt.Errorf("read_file: %w", err)
	}
	return string(data), nil
}

// CreateFileTool writes content to a file, creating parent directories
// as needed.
type CreateFileTool struct{ Root string }

func (CreateFileTool) Name() string { return "create_file" }
func (CreateFileTool) Description() string {
	return "Creates or overwrites a file. Params: {\"path\": string, \"content\": string}."
}

func (t CreateFileTool) Execute(_ context.Context, params map[string]interface{}) (string, error) {
	path, ok := params["path"].(string)
	if !ok || path == "" {
		return "", fmt.Errorf("create_file: missing required string parameter 'path'")
	}
	content, _ := params["content"].(string)

	resolved, err := t.resolve(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(filepath.Dir(resolved), 0o755); err != nil {
		return "", fmt.Errorf("create_file: %w", err)
	}
	if err := os.WriteFile(resolved, []byte(content), 0o644); err != nil {
		return "", fmt.Errorf("create_file: %w", err)
	}
	return fmt.Sprintf("wrote %d bytes to %s", len(content), path), nil
}

// ListFilesTool lists entries in a directory.
type ListFilesTool struct{ Root string }

func (ListFilesTool) Name() string { return "list_files" }
func (ListFilesTool) Description() string {
	return "Lists files in a directory. Params: {\"path\"?: string}."
}

func (t ListFilesTool) Execute(_ context.Context, params map[string]interface{}) (string, error) {
	path, _ := params["path"].(string)
	if path == "" {
		path = "."
	}
	resolved, err := t.resolveRoot(path)
	if err != nil {
		return "", err
	}
	entries, err := os.ReadDir(resolved)
	if err != nil {
		return "", fmt.Errorf("list_files: %w", err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	sort.Strings(names)
	return strings.Join(names, "\n"), nil
}

func (t ReadFileTool) resolve(path string) (string, error) { return resolveWithin(t.Root, path) }
func (t CreateFileTool) resolve(path string) (string, error) { return resolveWithin(t.Root, path) }
func (t ListFilesTool) resolveRoot(path string) (string, error) { return resolveWithin(t.Root, path) }

// resolveWithin joins path under root (if root is set) and rejects
// attempts to escape it via "..".
func resolveWithin(root, path string) (string, error) {
	if root == "" {
		return path, nil
	}
	full := filepath.Join(root, path)
	rel, err := filepath.Rel(root, full)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", fmt.Errorf("path escapes allowed root: %s", path)
	}
	return full, nil
}
