// Package nodes contains the business nodes of the conversation graph and
// the graph wiring that connects them. Nodes receive their collaborators
// through an explicit Deps value at construction; there are no package-level
// clients, so every test can build an independent instance.
package nodes

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/forkline-ai/forkline"
	"github.com/forkline-ai/forkline/order"
)

// Preferences are a user's long-term food preferences, persisted across
// conversations.
type Preferences struct {
	DietaryRestrictions    []string `json:"dietary_restrictions,omitempty"`
	Allergies              []string `json:"allergies,omitempty"`
	FavoriteCuisines       []string `json:"favorite_cuisines,omitempty"`
	DislikedCuisines       []string `json:"disliked_cuisines,omitempty"`
	DefaultBudgetPerPerson float64  `json:"default_budget_per_person,omitempty"`
}

// Empty reports whether no preference is set.
func (p Preferences) Empty() bool {
	return len(p.DietaryRestrictions) == 0 &&
		len(p.Allergies) == 0 &&
		len(p.FavoriteCuisines) == 0 &&
		len(p.DislikedCuisines) == 0 &&
		p.DefaultBudgetPerPerson == 0
}

// PreferenceStore persists user preferences between conversations.
type PreferenceStore interface {
	GetPreferences(ctx context.Context, userID string) (Preferences, error)
	UpdatePreferences(ctx context.Context, userID string, update Preferences) (Preferences, error)
}

// MemoryPreferences is an in-memory preference store.
type MemoryPreferences struct {
	mutex sync.RWMutex
	prefs map[string]Preferences
}

// NewMemoryPreferences creates an empty in-memory preference store.
func NewMemoryPreferences() *MemoryPreferences {
	return &MemoryPreferences{prefs: map[string]Preferences{}}
}

func (s *MemoryPreferences) GetPreferences(ctx context.Context, userID string) (Preferences, error) {
	s.mutex.RLock()
	defer s.mutex.RUnlock()
	return s.prefs[userID], nil
}

func (s *MemoryPreferences) UpdatePreferences(ctx context.Context, userID string, update Preferences) (Preferences, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	current := s.prefs[userID]
	current.DietaryRestrictions = mergeUnique(current.DietaryRestrictions, update.DietaryRestrictions)
	current.Allergies = mergeUnique(current.Allergies, update.Allergies)
	current.FavoriteCuisines = mergeUnique(current.FavoriteCuisines, update.FavoriteCuisines)
	current.DislikedCuisines = mergeUnique(current.DislikedCuisines, update.DislikedCuisines)
	if update.DefaultBudgetPerPerson > 0 {
		current.DefaultBudgetPerPerson = update.DefaultBudgetPerPerson
	}
	s.prefs[userID] = current
	return current, nil
}

// mergeUnique appends new values into a fresh slice. Copying matters: the
// current slice may still be referenced by a Preferences value handed to an
// earlier caller, and appending in place could write through it.
func mergeUnique(current, update []string) []string {
	if len(update) == 0 {
		return current
	}
	merged := append([]string(nil), current...)
	seen := make(map[string]bool, len(merged))
	for _, v := range merged {
		seen[v] = true
	}
	for _, v := range update {
		if !seen[v] {
			seen[v] = true
			merged = append(merged, v)
		}
	}
	return merged
}

// Notifier is the approval collaborator boundary: the approval node hands it
// a fully-formed action description. The engine never inspects approval
// outcomes; a later turn's input carries the resolution.
type Notifier interface {
	NotifyApproval(ctx context.Context, threadID string, action order.PendingAction) error
}

// LogNotifier logs approval requests. It stands in for a real delivery
// channel (Slack, email) in local use.
type LogNotifier struct {
	Logger *slog.Logger
}

func (n LogNotifier) NotifyApproval(ctx context.Context, threadID string, action order.PendingAction) error {
	n.Logger.Info("approval requested",
		"thread_id", threadID,
		"action_id", action.ActionID,
		"action_type", action.ActionType)
	return nil
}

// Deps carries every collaborator the nodes need.
type Deps struct {
	Preferences   PreferenceStore
	VendorSources []forkline.Tool
	MenuSources   []forkline.Tool
	Quotes        forkline.Tool
	Notifier      Notifier
	Logger        *slog.Logger

	// ToolTimeout bounds each dispatched tool call. Defaults to 10s.
	ToolTimeout time.Duration
}

func (d Deps) toolTimeout() time.Duration {
	if d.ToolTimeout > 0 {
		return d.ToolTimeout
	}
	return 10 * time.Second
}
