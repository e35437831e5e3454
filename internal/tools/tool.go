package tools

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/appforge/appforge/internal/errors"
	"github.com/appforge/appforge/internal/provider"
)

// Tool is one callable capability exposed to an agent.
type Tool interface {
	Name() string
	Description() string

	// InputSchema is a JSON Schema object describing the arguments.
	InputSchema() map[string]any

	// ReadOnly reports whether the tool mutates the workspace. Only
	// read-only tools are dispatched concurrently.
	ReadOnly() bool

	// Invoke executes the tool with raw JSON arguments.
	Invoke(ctx context.Context, args []byte) (string, error)
}

// Result is the outcome of one tool call. A failed call carries Err;
// the agent loop feeds it back to the model as an error observation
// rather than aborting.
type Result struct {
	CallID string
	Name   string
	Output string
	Err    error
}

// Registry holds the tools available to an agent, in registration order.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty tool registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool. Re-registering a name is a programming error.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := t.Name()
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	r.tools[name] = t
	r.order = append(r.order, name)
	return nil
}

// Get returns a tool by name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// Definitions returns the provider-facing tool definitions in
// registration order. When readOnly is true, mutating tools are
// excluded; this is how the context agent gets a read-only surface.
func (r *Registry) Definitions(readOnly bool) []provider.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var defs []provider.Tool
	for _, name := range r.order {
		t := r.tools[name]
		if readOnly && !t.ReadOnly() {
			continue
		}
		defs = append(defs, provider.Tool{
			Name:        t.Name(),
			Description: t.Description(),
			InputSchema: t.InputSchema(),
		})
	}
	return defs
}

// Dispatch executes a turn's tool calls and returns results in call
// order. Read-only calls run concurrently; mutating calls run
// sequentially after them, in the order the model emitted them.
// Individual tool failures land in Result.Err and never abort the
// dispatch.
func (r *Registry) Dispatch(ctx context.Context, calls []provider.ToolCall) ([]Result, error) {
	results := make([]Result, len(calls))

	var writes []int
	g, gctx := errgroup.WithContext(ctx)

	for i, call := range calls {
		results[i] = Result{CallID: call.ID, Name: call.Name}

		t, ok := r.Get(call.Name)
		if !ok {
			results[i].Err = errors.New(errors.ErrCodeToolUnknown,
				fmt.Sprintf("unknown tool: %s", call.Name))
			continue
		}

		if !t.ReadOnly() {
			writes = append(writes, i)
			continue
		}

		i, call, t := i, call, t
		g.Go(func() error {
			out, err := t.Invoke(gctx, call.Arguments)
			results[i].Output = out
			results[i].Err = err
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, i := range writes {
		t, _ := r.Get(calls[i].Name)
		out, err := t.Invoke(ctx, calls[i].Arguments)
		results[i].Output = out
		results[i].Err = err
	}

	return results, nil
}
