package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/forkline-ai/forkline"
)

// dietaryKeywords maps a canonical dietary restriction to the phrases that
// imply it in user text.
var dietaryKeywords = map[string][]string{
	"vegetarian":  {"vegetarian", "veggie", "no meat"},
	"vegan":       {"vegan", "plant-based"},
	"gluten-free": {"gluten-free", "gluten free", "no gluten", "celiac"},
	"halal":       {"halal"},
	"kosher":      {"kosher"},
	"pescatarian": {"pescatarian"},
	"keto":        {"keto", "low-carb", "low carb"},
	"paleo":       {"paleo"},
	"dairy-free":  {"dairy-free", "dairy free", "no dairy", "lactose intolerant"},
}

var allergyKeywords = map[string][]string{
	"nuts":      {"nut allergy", "allergic to nuts", "no nuts", "nut-free", "peanut allergy"},
	"shellfish": {"shellfish allergy", "allergic to shellfish", "no shellfish"},
	"dairy":     {"dairy allergy", "allergic to dairy"},
	"eggs":      {"egg allergy", "allergic to eggs"},
	"soy":       {"soy allergy", "allergic to soy"},
	"wheat":     {"wheat allergy", "allergic to wheat"},
	"fish":      {"fish allergy", "allergic to fish"},
	"sesame":    {"sesame allergy", "allergic to sesame"},
}

// ExtractPreferences scans user text for dietary restrictions and allergies.
// Matching is case-insensitive substring matching against known phrases.
func ExtractPreferences(text string) Preferences {
	lowered := strings.ToLower(text)
	var out Preferences
	for restriction, phrases := range dietaryKeywords {
		for _, phrase := range phrases {
			if strings.Contains(lowered, phrase) {
				out.DietaryRestrictions = append(out.DietaryRestrictions, restriction)
				break
			}
		}
	}
	for allergy, phrases := range allergyKeywords {
		for _, phrase := range phrases {
			if strings.Contains(lowered, phrase) {
				out.Allergies = append(out.Allergies, allergy)
				break
			}
		}
	}
	return out
}

// PreferencesNode loads the user's stored preferences at the start of each
// turn and learns new ones mentioned in the latest user message. It is the
// graph entrypoint.
func PreferencesNode(deps Deps) forkline.Node {
	return forkline.NewNodeFunc("preferences", func(ctx context.Context, state forkline.State, events forkline.EventSink) (forkline.State, error) {
		userID := state.StringValue(forkline.ChannelUserID)
		if userID == "" {
			return nil, nil
		}
		update := forkline.State{}
		updated := false

		if msg, ok := forkline.LastUserMessage(state.Messages(forkline.ChannelMessages)); ok {
			if found := ExtractPreferences(msg.Content); !found.Empty() {
				merged, err := deps.Preferences.UpdatePreferences(ctx, userID, found)
				if err != nil {
					return nil, fmt.Errorf("failed to save preferences: %w", err)
				}
				events.Emit(forkline.Event{
					Type:    forkline.EventStatus,
					Message: "learned new preferences",
				})
				update[forkline.ChannelUserPreferences] = merged
				update[forkline.ChannelPreferencesUpdated] = true
				updated = true
			}
		}
		if !updated {
			prefs, err := deps.Preferences.GetPreferences(ctx, userID)
			if err != nil {
				return nil, fmt.Errorf("failed to load preferences: %w", err)
			}
			if prefs.Empty() {
				return nil, nil
			}
			update[forkline.ChannelUserPreferences] = prefs
			update[forkline.ChannelPreferencesUpdated] = false
		}
		return update, nil
	})
}

// decodePreferences tolerates the map form preferences take after a
// round-trip through a durable checkpoint store.
func decodePreferences(value any) Preferences {
	switch v := value.(type) {
	case Preferences:
		return v
	case *Preferences:
		if v != nil {
			return *v
		}
	case map[string]any:
		var out Preferences
		out.DietaryRestrictions = stringSlice(v["dietary_restrictions"])
		out.Allergies = stringSlice(v["allergies"])
		out.FavoriteCuisines = stringSlice(v["favorite_cuisines"])
		out.DislikedCuisines = stringSlice(v["disliked_cuisines"])
		if budget, ok := v["default_budget_per_person"].(float64); ok {
			out.DefaultBudgetPerPerson = budget
		}
		return out
	}
	return Preferences{}
}

func stringSlice(value any) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	}
	return nil
}
