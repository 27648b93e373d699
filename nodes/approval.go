package nodes

import (
	"context"
	"fmt"
	"strings"

	"github.com/forkline-ai/forkline"
	"github.com/forkline-ai/forkline/order"
)

// ApprovalNode is the last stop before the turn ends on the order track. It
// notifies the approval channel about newly pending actions and tells the
// user what happens next. It never decides approvals itself.
func ApprovalNode(deps Deps) forkline.Node {
	return forkline.NewNodeFunc("approval", func(ctx context.Context, state forkline.State, events forkline.EventSink) (forkline.State, error) {
		orderCtx, found := order.Decode(state[forkline.ChannelFoodOrder])
		if !found {
			return forkline.State{
				forkline.ChannelMessages: []forkline.Message{
					forkline.AssistantMessage("No food order in progress."),
				},
			}, nil
		}

		switch orderCtx.Status {
		case order.StatusPendingApproval:
			actions := order.DecodeActions(state[forkline.ChannelPendingActions])
			threadID := state.StringValue(forkline.ChannelSessionID)
			for _, action := range actions {
				if action.Status != order.ActionPending {
					continue
				}
				if err := deps.Notifier.NotifyApproval(ctx, threadID, action); err != nil {
					deps.Logger.Warn("approval notification failed",
						"action_id", action.ActionID,
						"error", err)
				}
			}
			return forkline.State{
				forkline.ChannelMessages: []forkline.Message{
					forkline.AssistantMessage(formatApprovalRequest(orderCtx)),
				},
			}, nil

		case order.StatusCancelled:
			// The submit node already told the user the order was dropped.
			return nil, nil

		case order.StatusSubmitted:
			reply := fmt.Sprintf("Order placed with %s. Total $%.2f.", vendorName(orderCtx), orderCtx.Total)
			if orderCtx.TrackingURL != "" {
				reply += " Track it here: " + orderCtx.TrackingURL
			}
			return forkline.State{
				forkline.ChannelMessages: []forkline.Message{forkline.AssistantMessage(reply)},
			}, nil

		default:
			return forkline.State{
				forkline.ChannelMessages: []forkline.Message{
					forkline.AssistantMessage("Reply \"confirm\" to place the order or \"cancel\" to drop it."),
				},
			}, nil
		}
	})
}

func formatApprovalRequest(orderCtx *order.Context) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Ready to place this order from %s:\n", vendorName(orderCtx))
	for _, item := range orderCtx.LineItems {
		fmt.Fprintf(&b, "- %dx %s at $%.2f\n", item.Quantity, item.Name, item.Price)
	}
	fmt.Fprintf(&b, "Delivery to %s on %s", orderCtx.DeliveryAddress, orderCtx.EventDate)
	if orderCtx.EventTime != "" {
		fmt.Fprintf(&b, " at %s", orderCtx.EventTime)
	}
	fmt.Fprintf(&b, ".\nTotal $%.2f including delivery.\n", orderCtx.Total)
	b.WriteString("Reply \"confirm\" to place it or \"cancel\" to drop it.")
	return b.String()
}
