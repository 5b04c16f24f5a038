package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"jaybrain/internal/store"
)

func registerProfileTools(reg *Registry, deps *Deps) {
	reg.MustRegister(&Tool{
		Name:        "profile_get",
		Description: "Read the user profile",
		Schema:      Schema{},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			profile, err := loadProfile(deps.Cfg.ProfilePath())
			if err != nil {
				return nil, err
			}
			return profile, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "profile_update",
		Description: "Update profile values by dotted key path (e.g. preferences.tone)",
		Schema: Schema{
			Required: []string{"updates"},
			Properties: map[string]Property{
				"updates": {Type: "object", Description: "Dotted-key → value map"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Updates map[string]any `json:"updates"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			if len(in.Updates) == 0 {
				return nil, errors.New("validation: updates must be non-empty")
			}

			path := deps.Cfg.ProfilePath()
			profile, err := loadProfile(path)
			if err != nil {
				return nil, err
			}
			for key, value := range in.Updates {
				if err := setDotted(profile, key, value); err != nil {
					return nil, err
				}
			}
			if err := saveProfile(path, profile); err != nil {
				return nil, err
			}
			return profile, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "onboarding_status",
		Description: "Completed onboarding steps",
		Schema:      Schema{},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			steps, err := deps.Store.OnboardingSteps()
			if err != nil {
				return nil, err
			}
			return map[string]any{"completed_steps": steps, "count": len(steps)}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "onboarding_complete_step",
		Description: "Mark an onboarding step complete; repeating a step is a conflict",
		Schema: Schema{
			Required: []string{"step"},
			Properties: map[string]Property{
				"step": {Type: "string"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Step string `json:"step"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			if err := deps.Store.CompleteOnboardingStep(in.Step); err != nil {
				if errors.Is(err, store.ErrDuplicateStep) {
					return statusResult{Status: "already_completed", Detail: in.Step}, nil
				}
				return nil, err
			}
			return statusResult{Status: "completed", Detail: in.Step}, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "personality_get",
		Description: "Read the personality configuration",
		Schema:      Schema{},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			raw, err := deps.Store.PersonalityConfig()
			if err != nil {
				return nil, err
			}
			if raw == "" {
				return map[string]any{}, nil
			}
			var cfg map[string]any
			if err := json.Unmarshal([]byte(raw), &cfg); err != nil {
				return nil, fmt.Errorf("failed to parse personality config: %w", err)
			}
			return cfg, nil
		},
	})

	reg.MustRegister(&Tool{
		Name:        "personality_set",
		Description: "Replace the personality configuration",
		Schema: Schema{
			Required: []string{"config"},
			Properties: map[string]Property{
				"config": {Type: "object"},
			},
		},
		Handler: func(ctx context.Context, args json.RawMessage) (any, error) {
			var in struct {
				Config map[string]any `json:"config"`
			}
			if err := decode(args, &in); err != nil {
				return nil, err
			}
			raw, err := json.Marshal(in.Config)
			if err != nil {
				return nil, err
			}
			if err := deps.Store.SetPersonalityConfig(string(raw)); err != nil {
				return nil, err
			}
			return statusResult{Status: "saved"}, nil
		},
	})
}

// loadProfile reads profile.yaml; a missing file is an empty profile.
func loadProfile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return map[string]any{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read profile: %w", err)
	}
	profile := map[string]any{}
	if err := yaml.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	return profile, nil
}

// saveProfile writes atomically: temp file in the same dir, then rename.
func saveProfile(path string, profile map[string]any) error {
	data, err := yaml.Marshal(profile)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("failed to write profile: %w", err)
	}
	return os.Rename(tmp, path)
}

// setDotted writes value at a dotted key path, creating maps along the way.
// A non-map value in the middle of the path is a validation error.
func setDotted(root map[string]any, key string, value any) error {
	parts := strings.Split(key, ".")
	node := root
	for i, part := range parts {
		if part == "" {
			return fmt.Errorf("validation: bad key path %q", key)
		}
		if i == len(parts)-1 {
			node[part] = value
			return nil
		}
		next, ok := node[part]
		if !ok {
			child := map[string]any{}
			node[part] = child
			node = child
			continue
		}
		child, ok := next.(map[string]any)
		if !ok {
			return fmt.Errorf("validation: %s is not a section", strings.Join(parts[:i+1], "."))
		}
		node = child
	}
	return nil
}
