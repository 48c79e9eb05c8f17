// Package toolregistry declares the narrow interface the core consumes for
// the external Tool Registry (spec.md §6) and provides an in-memory
// reference implementation used by the demo driver (the Tool Executor's
// tests use their own fake registry). The registry implementation proper (HTTP gateway, sandboxed
// process pool, etc.) is an external collaborator the host application
// supplies.
package toolregistry

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/aletheialabs/hplan-core/runtime/agent/tools"
)

// ErrUnknownTool is returned by Execute when no handler is registered
// under the requested name.
var ErrUnknownTool = errors.New("toolregistry: unknown tool")

// ErrInvalidArgs is returned by Execute when args fail the tool's
// registered Parameters schema.
var ErrInvalidArgs = errors.New("toolregistry: invalid args")

// Handler runs one tool invocation and returns its result.
type Handler func(ctx context.Context, args map[string]any) (any, error)

// Registry is an in-memory toolexec.Registry-compatible implementation: a
// name-to-handler map guarded by a mutex, matching the §6 contract
// (list_tools, execute).
type Registry struct {
	mu       sync.RWMutex
	handlers map[tools.Ident]Handler
	specs    map[tools.Ident]tools.ToolSpec
	schemas  map[tools.Ident]*jsonschema.Schema
}

// New constructs an empty Registry.
func New() *Registry {
	return &Registry{
		handlers: make(map[tools.Ident]Handler),
		specs:    make(map[tools.Ident]tools.ToolSpec),
		schemas:  make(map[tools.Ident]*jsonschema.Schema),
	}
}

// Register adds (or replaces) the handler for the given tool spec. Name is
// taken from spec.Name and is assumed already canonical (normalization is
// the Tool Executor's job, not the registry's). When spec.Parameters is
// non-empty it is compiled as a JSON Schema and every call's args are
// validated against it before the handler runs; a schema that fails to
// compile is ignored (args pass through unvalidated) rather than
// panicking a caller at registration time.
func (r *Registry) Register(spec tools.ToolSpec, h Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[spec.Name] = h
	r.specs[spec.Name] = spec
	delete(r.schemas, spec.Name)
	if len(spec.Parameters) == 0 {
		return
	}
	resourceName := fmt.Sprintf("%s.json", spec.Name)
	c := jsonschema.NewCompiler()
	if err := c.AddResource(resourceName, anyMap(spec.Parameters)); err != nil {
		return
	}
	schema, err := c.Compile(resourceName)
	if err != nil {
		return
	}
	r.schemas[spec.Name] = schema
}

// anyMap widens a map[string]any to the any value jsonschema.AddResource
// expects (it re-decodes via encoding/json-shaped values internally).
func anyMap(m map[string]any) any { return map[string]any(m) }

// ListTools returns the registered ToolSpecs. When allowlist is non-empty,
// only specs whose name appears in it are returned.
func (r *Registry) ListTools(allowlist ...tools.Ident) []tools.ToolSpec {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var allowed map[tools.Ident]struct{}
	if len(allowlist) > 0 {
		allowed = make(map[tools.Ident]struct{}, len(allowlist))
		for _, name := range allowlist {
			allowed[name] = struct{}{}
		}
	}

	out := make([]tools.ToolSpec, 0, len(r.specs))
	for name, spec := range r.specs {
		if allowed != nil {
			if _, ok := allowed[name]; !ok {
				continue
			}
		}
		out = append(out, spec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Execute dispatches to the handler registered under name, or
// ErrUnknownTool if none is registered. When the tool was registered with
// a Parameters schema, args is validated against it first and
// ErrInvalidArgs is returned (wrapping the schema validator's own error)
// without invoking the handler.
func (r *Registry) Execute(ctx context.Context, name tools.Ident, args map[string]any) (any, error) {
	r.mu.RLock()
	h, ok := r.handlers[name]
	schema := r.schemas[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTool, name)
	}
	if schema != nil {
		if err := schema.Validate(anyMap(args)); err != nil {
			return nil, fmt.Errorf("%w: %s: %s", ErrInvalidArgs, name, err)
		}
	}
	return h(ctx, args)
}
