package nodes

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/forkline-ai/forkline"
	"github.com/forkline-ai/forkline/order"
	"github.com/forkline-ai/forkline/tools"
)

var approveWords = []string{"confirm", "approve", "yes", "go ahead", "place the order", "place it", "submit"}
var rejectWords = []string{"cancel", "reject", "no, ", "don't", "do not"}

func saysAny(text string, words []string) bool {
	lowered := strings.ToLower(text)
	for _, word := range words {
		if strings.Contains(lowered, word) {
			return true
		}
	}
	return false
}

// OrderSubmitNode runs the two submission phases. The first visit takes a
// delivery quote and parks the order behind a pending approval action. A
// later visit resolves it from the user's reply: approval submits the order
// and starts tracking, rejection cancels it.
func OrderSubmitNode(deps Deps) forkline.Node {
	return forkline.NewNodeFunc("order_submit", func(ctx context.Context, state forkline.State, events forkline.EventSink) (forkline.State, error) {
		orderCtx, found := order.Decode(state[forkline.ChannelFoodOrder])
		if !found {
			return forkline.State{
				forkline.ChannelMessages: []forkline.Message{
					forkline.AssistantMessage("No food order in progress."),
				},
			}, nil
		}
		orderCtx = orderCtx.Clone()

		if orderCtx.Status == order.StatusPendingApproval {
			return resolveApproval(state, orderCtx, events)
		}
		return requestQuote(ctx, deps, state, orderCtx, events)
	})
}

func requestQuote(ctx context.Context, deps Deps, state forkline.State, orderCtx *order.Context, events forkline.EventSink) (forkline.State, error) {
	if orderCtx.SelectedVendor == nil {
		return forkline.State{
			forkline.ChannelMessages: []forkline.Message{
				forkline.AssistantMessage("No restaurant selected. Let me help you find one."),
			},
		}, nil
	}
	if orderCtx.DeliveryAddress == "" {
		return forkline.State{
			forkline.ChannelMessages: []forkline.Message{
				forkline.AssistantMessage("I need a delivery address. Where should I send the food?"),
			},
		}, nil
	}

	events.Emit(forkline.Event{
		Type:    forkline.EventStatus,
		Message: "getting delivery quote",
	})

	subtotalCents := int(orderCtx.Subtotal * 100)
	if subtotalCents < 100 {
		subtotalCents = 2500
	}
	result := forkline.Dispatch(ctx, []forkline.Call{{
		Tool: deps.Quotes,
		Args: map[string]any{
			"vendor_id":      orderCtx.SelectedVendor.ID,
			"address":        orderCtx.DeliveryAddress,
			"subtotal_cents": subtotalCents,
		},
	}}, forkline.DispatchOptions{Timeout: deps.toolTimeout()})[0]
	if result.Err != nil {
		return forkline.State{
			forkline.ChannelFoodOrder: orderCtx,
			forkline.ChannelMessages: []forkline.Message{
				forkline.AssistantMessage(fmt.Sprintf("Couldn't get a delivery quote: %v. Would you like to try again?", result.Err)),
			},
		}, nil
	}
	quote, ok := result.Value.(*tools.Quote)
	if !ok || quote == nil {
		return forkline.State{
			forkline.ChannelFoodOrder: orderCtx,
			forkline.ChannelMessages: []forkline.Message{
				forkline.AssistantMessage("The delivery service returned no quote. Would you like to try again?"),
			},
		}, nil
	}

	orderCtx.QuoteID = quote.QuoteID
	orderCtx.TrackingURL = quote.TrackingURL
	// The quoted fee replaces the estimate from ComputePricing.
	orderCtx.DeliveryFee = float64(quote.FeeCents) / 100
	orderCtx.Total = math.Round((orderCtx.Subtotal+orderCtx.Tax+orderCtx.DeliveryFee+orderCtx.ServiceFee)*100) / 100
	orderCtx.Status = order.StatusPendingApproval
	orderCtx.Complete(order.StepConfirmOrder)
	orderCtx.CurrentStep = order.StepSubmitOrder

	action := order.NewPendingAction("food_order",
		fmt.Sprintf("Food order from %s for %d people - $%.2f",
			orderCtx.SelectedVendor.Name, orderCtx.Headcount, orderCtx.Total),
		map[string]any{
			"order_id": orderCtx.OrderID,
			"quote_id": quote.QuoteID,
			"vendor":   orderCtx.SelectedVendor.Name,
			"total":    orderCtx.Total,
		})

	return forkline.State{
		forkline.ChannelFoodOrder:      orderCtx,
		forkline.ChannelPendingActions: []order.PendingAction{action},
		forkline.ChannelNeedsApproval:  true,
	}, nil
}

func resolveApproval(state forkline.State, orderCtx *order.Context, events forkline.EventSink) (forkline.State, error) {
	msg, ok := forkline.LastUserMessage(state.Messages(forkline.ChannelMessages))
	if !ok {
		return forkline.State{
			forkline.ChannelMessages: []forkline.Message{
				forkline.AssistantMessage("The order is waiting for your approval. Reply \"confirm\" to place it or \"cancel\" to drop it."),
			},
		}, nil
	}

	actions := order.DecodeActions(state[forkline.ChannelPendingActions])

	switch {
	case saysAny(msg.Content, rejectWords):
		orderCtx.Status = order.StatusCancelled
		for i := range actions {
			actions[i].Status = order.ActionRejected
		}
		events.Emit(forkline.Event{Type: forkline.EventStatus, Message: "order cancelled"})
		return forkline.State{
			forkline.ChannelFoodOrder:      orderCtx,
			forkline.ChannelPendingActions: actions,
			forkline.ChannelNeedsApproval:  false,
			forkline.ChannelMessages: []forkline.Message{
				forkline.AssistantMessage("Okay, I cancelled the order. Nothing was placed."),
			},
		}, nil

	case saysAny(msg.Content, approveWords):
		now := time.Now().UTC()
		orderCtx.Status = order.StatusSubmitted
		orderCtx.SubmittedAt = &now
		orderCtx.Complete(order.StepSubmitOrder)
		orderCtx.CurrentStep = order.StepTrackOrder
		for i := range actions {
			actions[i].Status = order.ActionApproved
		}
		events.Emit(forkline.Event{Type: forkline.EventStatus, Message: "order submitted"})
		return forkline.State{
			forkline.ChannelFoodOrder:      orderCtx,
			forkline.ChannelPendingActions: actions,
			forkline.ChannelNeedsApproval:  false,
		}, nil

	default:
		return forkline.State{
			forkline.ChannelMessages: []forkline.Message{
				forkline.AssistantMessage("I did not catch that. Reply \"confirm\" to place the order or \"cancel\" to drop it."),
			},
		}, nil
	}
}
