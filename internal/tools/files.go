package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// defaultMaxReadBytes caps file_read when config leaves it unset.
const defaultMaxReadBytes = 256 * 1024

func registerFileTools(reg *Registry, deps *Deps) {
	reg.MustRegister(&Tool{
		Name:        "file_read",
		Description: "Read a file under the configured homelab roots",
		Schema: Schema{
			Required: []string{"path"},
			Properties: map[string]Property{
				"path": {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Path string `json:"path"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			abs, err := allowedPath(deps, in.Path)
			if err != nil {
				return nil, err
			}

			info, err := os.Stat(abs)
			if err != nil {
				if os.IsNotExist(err) {
					return notFound("file", in.Path), nil
				}
				return nil, err
			}
			if info.IsDir() {
				return nil, errors.New("validation: path is a directory, use file_list")
			}

			maxBytes := deps.Cfg.Homelab.MaxReadBytes
			if maxBytes <= 0 {
				maxBytes = defaultMaxReadBytes
			}
			data, err := os.ReadFile(abs)
			if err != nil {
				return nil, fmt.Errorf("failed to read %s: %w", abs, err)
			}
			truncated := false
			if len(data) > maxBytes {
				data = data[:maxBytes]
				truncated = true
			}
			return map[string]any{
				"path":      abs,
				"content":   string(data),
				"size":      info.Size(),
				"truncated": truncated,
			}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "file_write",
		Description: "Write a file under the configured homelab roots, creating parent dirs",
		Schema: Schema{
			Required: []string{"path", "content"},
			Properties: map[string]Property{
				"path":    {Type: "string"},
				"content": {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Path    string `json:"path"`
				Content string `json:"content"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			abs, err := allowedPath(deps, in.Path)
			if err != nil {
				return nil, err
			}
			if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
				return nil, fmt.Errorf("failed to create parent dirs: %w", err)
			}
			if err := os.WriteFile(abs, []byte(in.Content), 0o644); err != nil {
				return nil, fmt.Errorf("failed to write %s: %w", abs, err)
			}
			return map[string]any{"path": abs, "bytes": len(in.Content)}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "file_list",
		Description: "List a directory under the configured homelab roots",
		Schema: Schema{
			Required: []string{"path"},
			Properties: map[string]Property{
				"path": {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Path string `json:"path"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			abs, err := allowedPath(deps, in.Path)
			if err != nil {
				return nil, err
			}

			entries, err := os.ReadDir(abs)
			if err != nil {
				if os.IsNotExist(err) {
					return notFound("directory", in.Path), nil
				}
				return nil, err
			}

			type item struct {
				Name  string `json:"name"`
				IsDir bool   `json:"is_dir"`
				Size  int64  `json:"size,omitempty"`
			}
			items := make([]item, 0, len(entries))
			for _, e := range entries {
				it := item{Name: e.Name(), IsDir: e.IsDir()}
				if info, err := e.Info(); err == nil && !e.IsDir() {
					it.Size = info.Size()
				}
				items = append(items, it)
			}
			sort.Slice(items, func(i, j int) bool { return items[i].Name < items[j].Name })
			return map[string]any{"path": abs, "entries": items, "count": len(items)}, nil
		},
	})
}

// allowedPath resolves a path and verifies it sits under one of the
// configured homelab roots. An empty root list disables the file tools.
func allowedPath(deps *Deps, raw string) (string, error) {
	roots := deps.Cfg.Homelab.FileRoots
	if len(roots) == 0 {
		return "", errors.New("validation: no homelab file roots configured")
	}
	abs, err := filepath.Abs(raw)
	if err != nil {
		return "", fmt.Errorf("validation: bad path: %w", err)
	}
	abs = filepath.Clean(abs)

	for _, root := range roots {
		rootAbs, err := filepath.Abs(root)
		if err != nil {
			continue
		}
		rootAbs = filepath.Clean(rootAbs)
		if abs == rootAbs || strings.HasPrefix(abs, rootAbs+string(filepath.Separator)) {
			return abs, nil
		}
	}
	return "", fmt.Errorf("validation: %s is outside the allowed roots", abs)
}
