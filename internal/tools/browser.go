package tools

import (
	"context"
	"encoding/json"
)

func registerBrowserTools(reg *Registry, deps *Deps) {
	reg.MustRegister(&Tool{
		Name:        "browser_fetch",
		Description: "Load a page in the headless browser and extract title and text",
		Schema: Schema{
			Required: []string{"url"},
			Properties: map[string]Property{
				"url": {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				URL string `json:"url"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			return deps.Browser.Fetch(ctx, in.URL)
		},
	})

	reg.MustRegister(&Tool{
		Name:        "browser_screenshot",
		Description: "Screenshot a page to a PNG under the data dir",
		Schema: Schema{
			Required: []string{"url"},
			Properties: map[string]Property{
				"url":  {Type: "string"},
				"path": {Type: "string", Description: "Output path; defaults next to the store"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				URL  string `json:"url"`
				Path string `json:"path"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			path, err := deps.Browser.Screenshot(ctx, in.URL, in.Path)
			if err != nil {
				return nil, err
			}
			return map[string]any{"path": path}, nil
		},
	})
}
