// Package tools defines the tool surface: named operations with JSON-shaped
// inputs and outputs, registered once at startup and dispatched by the MCP
// server. Handlers return Go errors; the transport layer renders them.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"jaybrain/internal/logging"
)

// Property describes one parameter in a tool's input schema.
type Property struct {
	Type        string         `json:"type"`
	Description string         `json:"description,omitempty"`
	Default     any            `json:"default,omitempty"`
	Enum        []any          `json:"enum,omitempty"`
	Items       *PropertyItems `json:"items,omitempty"`
}

// PropertyItems describes array element schemas.
type PropertyItems struct {
	Type string `json:"type"`
}

// Schema is the JSON schema for a tool's arguments.
type Schema struct {
	Required   []string            `json:"required,omitempty"`
	Properties map[string]Property `json:"properties"`
}

// MarshalInputSchema renders the schema as a JSON-schema object.
func (s Schema) MarshalInputSchema() json.RawMessage {
	props := s.Properties
	if props == nil {
		props = map[string]Property{}
	}
	obj := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(s.Required) > 0 {
		obj["required"] = s.Required
	}
	data, _ := json.Marshal(obj)
	return data
}

// Handler executes a tool. args is the raw JSON argument object.
type Handler func(ctx context.Context, args json.RawMessage) (any, error)

// Tool is one named operation.
type Tool struct {
	Name        string
	Description string
	Schema      Schema
	Handler     Handler
}

// Registry holds the tool set. Thread-safe; registration happens at startup
// but nothing prevents later additions.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]*Tool
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]*Tool)}
}

// Register adds a tool. Duplicate names are an error.
func (r *Registry) Register(t *Tool) error {
	if t.Name == "" {
		return fmt.Errorf("validation: tool name must be non-empty")
	}
	if t.Handler == nil {
		return fmt.Errorf("validation: tool %s has no handler", t.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[t.Name]; exists {
		return fmt.Errorf("tool already registered: %s", t.Name)
	}
	r.tools[t.Name] = t
	logging.ToolsDebug("Registered tool: %s", t.Name)
	return nil
}

// MustRegister registers and panics on error. For static startup wiring.
func (r *Registry) MustRegister(t *Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Get returns a tool by name, or nil.
func (r *Registry) Get(name string) *Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name]
}

// All returns every tool, sorted by name.
func (r *Registry) All() []*Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute dispatches one call with timing and panic containment. A panicking
// handler fails that call only.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (result any, err error) {
	tool := r.Get(name)
	if tool == nil {
		return nil, fmt.Errorf("unknown tool: %s", name)
	}

	start := time.Now()
	defer func() {
		if rec := recover(); rec != nil {
			logging.ToolsError("Tool %s panicked: %v", name, rec)
			err = fmt.Errorf("tool %s panicked: %v", name, rec)
		}
		logging.ToolsDebug("%s completed in %s", name, time.Since(start).Round(time.Millisecond))
	}()

	if len(args) == 0 {
		args = json.RawMessage("{}")
	}
	return tool.Handler(ctx, args)
}

// decode unmarshals tool arguments strictly enough to catch typos in
// required fields while tolerating extras.
func decode[T any](args json.RawMessage, into *T) error {
	if err := json.Unmarshal(args, into); err != nil {
		return fmt.Errorf("validation: bad arguments: %w", err)
	}
	return nil
}
