package forkline

import (
	"context"
	"fmt"
	"reflect"
	"time"

	"golang.org/x/sync/errgroup"
)

// Tool is an external capability invoked by name with loosely-typed
// arguments. Tools make no retry promises of their own.
type Tool interface {
	Name() string
	Call(ctx context.Context, args map[string]any) (any, error)
}

// ToolFunc adapts a function to the Tool interface.
type ToolFunc struct {
	name string
	fn   func(ctx context.Context, args map[string]any) (any, error)
}

// NewToolFunc creates a ToolFunc with the given name.
func NewToolFunc(name string, fn func(ctx context.Context, args map[string]any) (any, error)) *ToolFunc {
	return &ToolFunc{name: name, fn: fn}
}

func (t *ToolFunc) Name() string {
	return t.name
}

func (t *ToolFunc) Call(ctx context.Context, args map[string]any) (any, error) {
	return t.fn(ctx, args)
}

// Call pairs a tool with the arguments for one invocation.
type Call struct {
	Tool Tool
	Args map[string]any
}

// Result is the outcome of one call in a dispatch batch. Exactly one of
// Value and Err is meaningful.
type Result struct {
	Tool  string
	Value any
	Err   error
}

// DispatchOptions configures a dispatch batch.
type DispatchOptions struct {
	// Timeout bounds each individual call. Zero means no per-call timeout.
	Timeout time.Duration

	// Concurrency caps the number of calls in flight. Zero means all calls
	// run at once.
	Concurrency int
}

// Dispatch runs independent calls concurrently and joins their results. A
// failed or timed-out call yields a tagged *ToolError in its slot; it never
// aborts the rest of the batch. Results are returned in call order.
func Dispatch(ctx context.Context, calls []Call, opts DispatchOptions) []Result {
	results := make([]Result, len(calls))

	group, ctx := errgroup.WithContext(ctx)
	if opts.Concurrency > 0 {
		group.SetLimit(opts.Concurrency)
	}
	for i, call := range calls {
		i, call := i, call
		group.Go(func() error {
			results[i] = runCall(ctx, call, opts.Timeout)
			// Individual failures are captured in the result slot, so the
			// group itself never errors and sibling calls keep running.
			return nil
		})
	}
	group.Wait()

	return results
}

// FirstNonEmpty tries calls in priority order until one returns a non-empty
// result, short-circuiting the remaining sources. Empty means a nil value,
// an error, or a zero-length slice or map.
func FirstNonEmpty(ctx context.Context, calls []Call, opts DispatchOptions) Result {
	var last Result
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return Result{Tool: call.Tool.Name(), Err: &ToolError{Tool: call.Tool.Name(), Wrapped: err}}
		}
		last = runCall(ctx, call, opts.Timeout)
		if last.Err == nil && !isEmptyResult(last.Value) {
			return last
		}
	}
	return last
}

func runCall(ctx context.Context, call Call, timeout time.Duration) Result {
	name := call.Tool.Name()
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	value, err := func() (value any, err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic: %v", r)
			}
		}()
		return call.Tool.Call(ctx, call.Args)
	}()

	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	if err != nil {
		return Result{Tool: name, Err: &ToolError{Tool: name, Wrapped: err}}
	}
	return Result{Tool: name, Value: value}
}

func isEmptyResult(value any) bool {
	if value == nil {
		return true
	}
	switch rv := reflect.ValueOf(value); rv.Kind() {
	case reflect.String, reflect.Slice, reflect.Map:
		return rv.Len() == 0
	default:
		return false
	}
}
