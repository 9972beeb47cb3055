// Package tools defines the agent-facing tool surface: a registry of
// named tools with JSON-schema validated arguments, the dispatcher that
// routes calls and shapes the uniform response envelope, and the
// handler sets that drive the DAW transports, the catalog, and the
// shared stores.
package tools

import (
	"context"
	"fmt"
	"sort"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/haasonsaas/livebridge/internal/daw"
)

// Needs declares which preconditions the dispatcher checks before a
// handler runs. Bridge gates on the OSC client being configured;
// Catalog gates on the populated event. The TCP transport needs no
// declaration: it connects lazily on first use and surfaces
// Disconnected itself.
type Needs struct {
	Bridge  bool
	Catalog bool
}

// Result is a handler's successful outcome: a one-line human summary
// plus an optional structured payload.
type Result struct {
	Message string
	Data    any
}

// Handler executes one tool call with validated arguments.
type Handler func(ctx context.Context, args Args) (*Result, error)

// Tool is one registry entry.
type Tool struct {
	Name        string
	Description string
	// Schema is the JSON schema for the argument object. Empty means the
	// tool takes no arguments.
	Schema      string
	Needs       Needs
	ErrorPrefix string
	Handler     Handler

	compiled *jsonschema.Schema
}

// Registry is the tool table, built once at startup and read-only
// afterwards.
type Registry struct {
	tools map[string]*Tool
	order []string
}

func NewRegistry() *Registry {
	return &Registry{tools: map[string]*Tool{}}
}

// Register compiles the tool's schema and adds it. Names are unique.
func (r *Registry) Register(t Tool) error {
	if t.Name == "" {
		return fmt.Errorf("tools: tool needs a name")
	}
	if t.Handler == nil {
		return fmt.Errorf("tools: %s has no handler", t.Name)
	}
	if _, dup := r.tools[t.Name]; dup {
		return fmt.Errorf("tools: %s registered twice", t.Name)
	}
	if t.Schema != "" {
		compiled, err := jsonschema.CompileString(t.Name+".schema.json", t.Schema)
		if err != nil {
			return fmt.Errorf("tools: %s schema: %w", t.Name, err)
		}
		t.compiled = compiled
	}
	if t.ErrorPrefix == "" {
		t.ErrorPrefix = t.Name + " failed"
	}
	r.tools[t.Name] = &t
	r.order = append(r.order, t.Name)
	return nil
}

func (r *Registry) mustRegister(t Tool) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Get looks up one tool.
func (r *Registry) Get(name string) (*Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// List returns the tools in registration order.
func (r *Registry) List() []*Tool {
	out := make([]*Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Names returns the sorted tool names.
func (r *Registry) Names() []string {
	out := make([]string, len(r.order))
	copy(out, r.order)
	sort.Strings(out)
	return out
}

func (r *Registry) Len() int { return len(r.tools) }

// Args is a validated argument object with typed accessors. Accessors
// fail with InvalidInput naming the offending field, so handlers stay
// free of repetitive type-switching.
type Args map[string]any

func (a Args) Int(key string) (int, error) {
	v, present := a[key]
	if !present {
		return 0, daw.E(daw.KindInvalidInput, "missing required argument %q", key)
	}
	n, ok := toInt(v)
	if !ok {
		return 0, daw.E(daw.KindInvalidInput, "argument %q must be an integer", key)
	}
	return n, nil
}

func (a Args) IntOr(key string, def int) (int, error) {
	if _, present := a[key]; !present {
		return def, nil
	}
	return a.Int(key)
}

func (a Args) Float(key string) (float64, error) {
	v, present := a[key]
	if !present {
		return 0, daw.E(daw.KindInvalidInput, "missing required argument %q", key)
	}
	f, ok := toFloat(v)
	if !ok {
		return 0, daw.E(daw.KindInvalidInput, "argument %q must be a number", key)
	}
	return f, nil
}

func (a Args) FloatOr(key string, def float64) (float64, error) {
	if _, present := a[key]; !present {
		return def, nil
	}
	return a.Float(key)
}

func (a Args) String(key string) (string, error) {
	v, present := a[key]
	if !present {
		return "", daw.E(daw.KindInvalidInput, "missing required argument %q", key)
	}
	s, ok := v.(string)
	if !ok {
		return "", daw.E(daw.KindInvalidInput, "argument %q must be a string", key)
	}
	return s, nil
}

func (a Args) StringOr(key, def string) (string, error) {
	if _, present := a[key]; !present {
		return def, nil
	}
	return a.String(key)
}

func (a Args) BoolOr(key string, def bool) (bool, error) {
	v, present := a[key]
	if !present {
		return def, nil
	}
	b, ok := v.(bool)
	if !ok {
		return false, daw.E(daw.KindInvalidInput, "argument %q must be a boolean", key)
	}
	return b, nil
}

func (a Args) List(key string) ([]any, error) {
	v, present := a[key]
	if !present {
		return nil, daw.E(daw.KindInvalidInput, "missing required argument %q", key)
	}
	list, ok := v.([]any)
	if !ok {
		return nil, daw.E(daw.KindInvalidInput, "argument %q must be an array", key)
	}
	return list, nil
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case int:
		return n, true
	case int64:
		return int(n), true
	case float64:
		if n != float64(int(n)) {
			return 0, false
		}
		return int(n), true
	}
	return 0, false
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}
