package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/forkline-ai/forkline"
	"github.com/forkline-ai/forkline/order"
	"github.com/forkline-ai/forkline/tools"
)

// feeMultiplier approximates tax plus service fee on top of the food
// subtotal, used to pick items that keep the final total inside budget.
const feeMultiplier = 1.25

// OrderBuilderNode assembles line items from the selected vendor's menu and
// prices the order. Menu sources are tried in priority order; the first one
// with a non-empty menu wins. When the validator has just rejected the order,
// the builder reports the problems and ends the turn instead of rebuilding
// the same order again.
func OrderBuilderNode(deps Deps) forkline.Node {
	return forkline.NewNodeFunc("order_builder", func(ctx context.Context, state forkline.State, events forkline.EventSink) (forkline.State, error) {
		orderCtx, found := order.Decode(state[forkline.ChannelFoodOrder])
		if !found || orderCtx.SelectedVendor == nil {
			return forkline.State{
				forkline.ChannelMessages: []forkline.Message{
					forkline.AssistantMessage("I need a selected vendor before I can build the order. Want me to search for vendors first?"),
				},
			}, nil
		}
		orderCtx = orderCtx.Clone()

		if len(orderCtx.ValidationErrors) > 0 {
			return reportValidationProblems(orderCtx), nil
		}

		events.Emit(forkline.Event{
			Type:    forkline.EventStatus,
			Message: "fetching menu for " + orderCtx.SelectedVendor.Name,
		})

		calls := make([]forkline.Call, 0, len(deps.MenuSources))
		for _, source := range deps.MenuSources {
			calls = append(calls, forkline.Call{
				Tool: source,
				Args: map[string]any{"vendor_id": orderCtx.SelectedVendor.ID},
			})
		}
		result := forkline.FirstNonEmpty(ctx, calls, forkline.DispatchOptions{Timeout: deps.toolTimeout()})
		if result.Err != nil {
			return nil, fmt.Errorf("failed to fetch menu for %s: %w", orderCtx.SelectedVendor.Name, result.Err)
		}
		menu, ok := result.Value.(*tools.Menu)
		if !ok || menu == nil || len(menu.Items) == 0 {
			return forkline.State{
				forkline.ChannelMessages: []forkline.Message{
					forkline.AssistantMessage(fmt.Sprintf("I could not find a menu for %s. Pick a different vendor?", orderCtx.SelectedVendor.Name)),
				},
			}, nil
		}

		orderCtx.LineItems = buildLineItems(menu, orderCtx)
		orderCtx.ComputePricing()
		orderCtx.ValidationErrors = nil
		orderCtx.ValidationWarnings = nil
		orderCtx.Complete(order.StepBuildOrder)
		orderCtx.CurrentStep = order.StepReviewOrder

		return forkline.State{
			forkline.ChannelFoodOrder: orderCtx,
			forkline.ChannelMessages: []forkline.Message{
				forkline.AssistantMessage(formatOrderSummary(orderCtx)),
			},
		}, nil
	})
}

// buildLineItems picks the best menu item per person within budget: the most
// expensive item whose price, after estimated fees, stays under the
// per-person allowance. Falls back to the cheapest item when nothing fits.
func buildLineItems(menu *tools.Menu, orderCtx *order.Context) []order.LineItem {
	allowance := 0.0
	if orderCtx.Headcount > 0 && orderCtx.BudgetTotal > 0 {
		allowance = orderCtx.BudgetTotal / float64(orderCtx.Headcount) / feeMultiplier
	}

	var pick *tools.MenuItem
	var cheapest *tools.MenuItem
	for i := range menu.Items {
		item := &menu.Items[i]
		if cheapest == nil || item.Price < cheapest.Price {
			cheapest = item
		}
		if allowance > 0 && item.Price > allowance {
			continue
		}
		if pick == nil || item.Price > pick.Price {
			pick = item
		}
	}
	if pick == nil {
		pick = cheapest
	}

	notes := ""
	if len(orderCtx.DietaryRestrictions) > 0 {
		notes = "dietary: " + strings.Join(orderCtx.DietaryRestrictions, ", ")
	}
	quantity := orderCtx.Headcount
	if quantity <= 0 {
		quantity = 1
	}
	return []order.LineItem{{
		ID:       pick.ID,
		Name:     pick.Name,
		Quantity: quantity,
		Price:    pick.Price,
		Notes:    notes,
	}}
}

func reportValidationProblems(orderCtx *order.Context) forkline.State {
	var b strings.Builder
	b.WriteString("The order has problems I cannot fix on my own:\n")
	for _, problem := range orderCtx.ValidationErrors {
		b.WriteString("- " + problem + "\n")
	}
	b.WriteString("Adjust the budget or requirements and I will rebuild it.")
	return forkline.State{
		forkline.ChannelFoodOrder: orderCtx,
		forkline.ChannelMessages: []forkline.Message{
			forkline.AssistantMessage(b.String()),
		},
	}
}

func formatOrderSummary(orderCtx *order.Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Here is the order from %s:\n", orderCtx.SelectedVendor.Name)
	for _, item := range orderCtx.LineItems {
		fmt.Fprintf(&b, "- %dx %s at $%.2f\n", item.Quantity, item.Name, item.Price)
	}
	fmt.Fprintf(&b, "Subtotal $%.2f, tax $%.2f, delivery $%.2f, service fee $%.2f.\n",
		orderCtx.Subtotal, orderCtx.Tax, orderCtx.DeliveryFee, orderCtx.ServiceFee)
	fmt.Fprintf(&b, "Total: $%.2f", orderCtx.Total)
	if orderCtx.Headcount > 0 {
		fmt.Fprintf(&b, " ($%.2f per person)", orderCtx.PerPerson())
	}
	return b.String()
}
