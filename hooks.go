package forkline

import (
	"context"
	"time"
)

// Hooks defines the callback interface for turn execution events.
type Hooks interface {
	BeforeTurn(ctx context.Context, event *TurnEvent)
	AfterTurn(ctx context.Context, event *TurnEvent)
	BeforeNode(ctx context.Context, event *NodeEvent)
	AfterNode(ctx context.Context, event *NodeEvent)
}

// TurnEvent provides context for turn-level hooks.
type TurnEvent struct {
	ThreadID    string
	GraphName   string
	StartTime   time.Time
	EndTime     time.Time
	Duration    time.Duration
	Checkpoints int
	Error       error
}

// NodeEvent provides context for node-level hooks.
type NodeEvent struct {
	ThreadID     string
	GraphName    string
	NodeName     string
	StartTime    time.Time
	EndTime      time.Time
	Duration     time.Duration
	CheckpointID string
	Error        error
}

// BaseHooks provides a default implementation that does nothing. Embed it
// to implement only the hooks you care about.
type BaseHooks struct{}

func (BaseHooks) BeforeTurn(ctx context.Context, event *TurnEvent) {}
func (BaseHooks) AfterTurn(ctx context.Context, event *TurnEvent)  {}
func (BaseHooks) BeforeNode(ctx context.Context, event *NodeEvent) {}
func (BaseHooks) AfterNode(ctx context.Context, event *NodeEvent)  {}

// HookChain fans events out to multiple hook implementations in order.
type HookChain struct {
	hooks []Hooks
}

// NewHookChain creates a chain from the given hooks.
func NewHookChain(hooks ...Hooks) *HookChain {
	return &HookChain{hooks: hooks}
}

// Add appends a hook to the chain.
func (c *HookChain) Add(hook Hooks) {
	c.hooks = append(c.hooks, hook)
}

func (c *HookChain) BeforeTurn(ctx context.Context, event *TurnEvent) {
	for _, hook := range c.hooks {
		hook.BeforeTurn(ctx, event)
	}
}

func (c *HookChain) AfterTurn(ctx context.Context, event *TurnEvent) {
	for _, hook := range c.hooks {
		hook.AfterTurn(ctx, event)
	}
}

func (c *HookChain) BeforeNode(ctx context.Context, event *NodeEvent) {
	for _, hook := range c.hooks {
		hook.BeforeNode(ctx, event)
	}
}

func (c *HookChain) AfterNode(ctx context.Context, event *NodeEvent) {
	for _, hook := range c.hooks {
		hook.AfterNode(ctx, event)
	}
}
