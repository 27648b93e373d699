package nodes

import (
	"context"
	"strings"

	"github.com/forkline-ai/forkline"
	"github.com/forkline-ai/forkline/order"
)

// OrderValidatorNode checks the built order against its requirements and
// budget. Errors push the workflow back to the build step; a clean pass
// moves it to confirmation. Validation problems are state, not node
// failures: the turn always completes with a checkpoint.
func OrderValidatorNode(deps Deps) forkline.Node {
	return forkline.NewNodeFunc("order_validator", func(ctx context.Context, state forkline.State, events forkline.EventSink) (forkline.State, error) {
		orderCtx, found := order.Decode(state[forkline.ChannelFoodOrder])
		if !found {
			return forkline.State{
				forkline.ChannelMessages: []forkline.Message{
					forkline.AssistantMessage("No food order in progress."),
				},
			}, nil
		}
		orderCtx = orderCtx.Clone()

		validation := orderCtx.Validate()
		orderCtx.ValidationErrors = validation.Errors
		orderCtx.ValidationWarnings = validation.Warnings

		if !validation.OK() {
			orderCtx.CurrentStep = order.StepBuildOrder
			events.Emit(forkline.Event{
				Type:    forkline.EventStatus,
				Message: "validation failed",
			})
			return forkline.State{
				forkline.ChannelFoodOrder: orderCtx,
				forkline.ChannelMessages: []forkline.Message{
					forkline.AssistantMessage(formatValidationMessage(validation)),
				},
			}, nil
		}

		orderCtx.Complete(order.StepReviewOrder)
		orderCtx.CurrentStep = order.StepConfirmOrder

		reply := formatOrderSummary(orderCtx)
		if len(validation.Warnings) > 0 {
			reply += "\n" + formatValidationMessage(validation)
		}
		return forkline.State{
			forkline.ChannelFoodOrder: orderCtx,
			forkline.ChannelMessages: []forkline.Message{
				forkline.AssistantMessage(reply),
			},
		}, nil
	})
}

func formatValidationMessage(validation order.Validation) string {
	var lines []string
	if len(validation.Errors) > 0 {
		lines = append(lines, "Issues to fix before ordering:")
		for _, e := range validation.Errors {
			lines = append(lines, "- "+e)
		}
	}
	if len(validation.Warnings) > 0 {
		lines = append(lines, "Warnings:")
		for _, w := range validation.Warnings {
			lines = append(lines, "- "+w)
		}
	}
	if len(validation.Errors) > 0 {
		lines = append(lines, "Please address the issues above before continuing.")
	} else if len(validation.Warnings) > 0 {
		lines = append(lines, "You can proceed, but please review the warnings above.")
	}
	return strings.Join(lines, "\n")
}
