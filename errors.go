package forkline

import (
	"context"
	"errors"
	"fmt"
)

// SchemaError indicates a node update referenced an undeclared channel.
// It is fatal: the turn aborts before the offending checkpoint is written.
type SchemaError struct {
	Channel string
	Reason  string
}

func (e *SchemaError) Error() string {
	if e.Reason != "" {
		return fmt.Sprintf("schema error: channel %q: %s", e.Channel, e.Reason)
	}
	return fmt.Sprintf("schema error: undeclared channel %q", e.Channel)
}

// RoutingError indicates a routing function returned a target outside its
// declared set. Graph construction validates declared targets, so hitting
// this at runtime means the routing function itself is buggy; it is treated
// as an unrecoverable engine failure.
type RoutingError struct {
	From   string
	Target string
}

func (e *RoutingError) Error() string {
	return fmt.Sprintf("routing error: %q picked undeclared target %q", e.From, e.Target)
}

// ToolError tags the failure of one tool call within a dispatch batch. The
// batch itself carries on; the calling node decides how to degrade.
type ToolError struct {
	Tool    string
	Wrapped error
}

func (e *ToolError) Error() string {
	return fmt.Sprintf("tool %q: %v", e.Tool, e.Wrapped)
}

func (e *ToolError) Unwrap() error {
	return e.Wrapped
}

// Timeout reports whether the underlying call timed out.
func (e *ToolError) Timeout() bool {
	return errors.Is(e.Wrapped, context.DeadlineExceeded)
}

// IsFatal reports whether an error must abort the turn rather than be
// surfaced to a node for graceful degradation.
func IsFatal(err error) bool {
	var schemaErr *SchemaError
	var routingErr *RoutingError
	return errors.As(err, &schemaErr) || errors.As(err, &routingErr)
}
