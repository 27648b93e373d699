package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/forkline-ai/forkline"
	"github.com/forkline-ai/forkline/order"
	"github.com/forkline-ai/forkline/tools"
)

const maxVendorOptions = 5

// VendorSearchNode fans the search out to every configured vendor source
// concurrently, merges the results, and presents the top options. A failing
// source degrades the result set instead of failing the turn.
func VendorSearchNode(deps Deps) forkline.Node {
	return forkline.NewNodeFunc("vendor_search", func(ctx context.Context, state forkline.State, events forkline.EventSink) (forkline.State, error) {
		orderCtx, found := order.Decode(state[forkline.ChannelFoodOrder])
		if !found {
			orderCtx = order.NewContext()
		}
		orderCtx = orderCtx.Clone()

		prefs := decodePreferences(state[forkline.ChannelUserPreferences])
		query := searchQuery(orderCtx, prefs)

		events.Emit(forkline.Event{
			Type:    forkline.EventStatus,
			Message: fmt.Sprintf("searching %d vendor sources", len(deps.VendorSources)),
		})

		calls := make([]forkline.Call, 0, len(deps.VendorSources))
		for _, source := range deps.VendorSources {
			calls = append(calls, forkline.Call{
				Tool: source,
				Args: map[string]any{
					"query":    query,
					"location": orderCtx.DeliveryAddress,
					"limit":    maxVendorOptions,
				},
			})
		}
		results := forkline.Dispatch(ctx, calls, forkline.DispatchOptions{Timeout: deps.toolTimeout()})
		for _, result := range results {
			if result.Err != nil {
				deps.Logger.Warn("vendor source failed",
					"source", result.Tool,
					"error", result.Err)
			}
		}

		merged := order.MergeVendors(tools.VendorResults(results), maxVendorOptions)
		merged = dropDisliked(merged, prefs.DislikedCuisines)
		if len(merged) == 0 {
			return forkline.State{
				forkline.ChannelMessages: []forkline.Message{
					forkline.AssistantMessage("I could not find any vendors for that search. Try different cuisines or loosen the requirements."),
				},
			}, nil
		}

		orderCtx.VendorOptions = merged
		orderCtx.Complete(order.StepSearchVendors)
		orderCtx.CurrentStep = order.StepSelectVendor

		return forkline.State{
			forkline.ChannelFoodOrder: orderCtx,
			forkline.ChannelMessages: []forkline.Message{
				forkline.AssistantMessage(formatVendorOptions(merged)),
			},
		}, nil
	})
}

// searchQuery builds the search text from cuisine preferences and dietary
// restrictions; liked cuisines come first so term matching favors them. An
// empty query asks sources for their full local selection.
func searchQuery(orderCtx *order.Context, prefs Preferences) string {
	var terms []string
	terms = append(terms, orderCtx.CuisinePreferences...)
	terms = append(terms, prefs.FavoriteCuisines...)
	terms = append(terms, orderCtx.DietaryRestrictions...)
	return strings.Join(terms, " ")
}

func dropDisliked(vendors []order.Vendor, disliked []string) []order.Vendor {
	if len(disliked) == 0 {
		return vendors
	}
	kept := vendors[:0]
	for _, vendor := range vendors {
		if !vendorMatchesAny(vendor, disliked) {
			kept = append(kept, vendor)
		}
	}
	return kept
}

func vendorMatchesAny(vendor order.Vendor, terms []string) bool {
	for _, term := range terms {
		lowered := strings.ToLower(term)
		for _, category := range vendor.Categories {
			if strings.Contains(strings.ToLower(category), lowered) {
				return true
			}
		}
	}
	return false
}

func formatVendorOptions(vendors []order.Vendor) string {
	var b strings.Builder
	b.WriteString("Here are the best options I found:\n")
	for i, vendor := range vendors {
		fmt.Fprintf(&b, "%d. %s", i+1, vendor.Name)
		if vendor.Rating != nil {
			fmt.Fprintf(&b, " (%.1f stars)", *vendor.Rating)
		}
		if len(vendor.Categories) > 0 {
			fmt.Fprintf(&b, " - %s", strings.Join(vendor.Categories, ", "))
		}
		b.WriteString("\n")
	}
	b.WriteString("Which one would you like? Reply with a number or a name.")
	return b.String()
}
