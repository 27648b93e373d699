package nodes

import (
	"github.com/forkline-ai/forkline"
	"github.com/forkline-ai/forkline/order"
)

// Node names, used by routes and tests.
const (
	NamePreferences    = "preferences"
	NameRouter         = "router"
	NameExecutor       = "executor"
	NameVendorSearch   = "vendor_search"
	NameOrderBuilder   = "order_builder"
	NameOrderValidator = "order_validator"
	NameOrderSubmit    = "order_submit"
	NameApproval       = "approval"
)

// jumpNodes maps a user-requested step to the node that serves it. Only
// these steps accept direct jumps.
var jumpNodes = map[order.Step]string{
	order.StepSearchVendors: NameVendorSearch,
	order.StepBuildOrder:    NameOrderBuilder,
	order.StepReviewOrder:   NameOrderValidator,
	order.StepSubmitOrder:   NameOrderSubmit,
}

// stepNodes maps the order's current step to the node that advances it.
var stepNodes = map[order.Step]string{
	order.StepGatherRequirements: NameExecutor,
	order.StepSearchVendors:      NameVendorSearch,
	order.StepSelectVendor:       NameExecutor,
	order.StepBuildOrder:         NameOrderBuilder,
	order.StepReviewOrder:        NameOrderValidator,
	order.StepConfirmOrder:       NameOrderSubmit,
	order.StepSubmitOrder:        NameOrderSubmit,
	order.StepTrackOrder:         NameExecutor,
}

// routeAfterRouter picks the node that handles this turn. Conversational
// intents go to the executor; the food-order track routes on the order's
// current step, with requested-step jumps taking precedence.
func routeAfterRouter(snapshot forkline.State) string {
	if snapshot.StringValue(forkline.ChannelIntent) != IntentFoodOrder {
		return NameExecutor
	}
	orderCtx, found := order.Decode(snapshot[forkline.ChannelFoodOrder])
	if !found {
		return NameExecutor
	}
	if requested := order.Step(snapshot.StringValue(forkline.ChannelRequestedStep)); requested != "" {
		if node, ok := jumpNodes[requested]; ok && order.CanJumpTo(requested) {
			return node
		}
	}
	if node, ok := stepNodes[orderCtx.CurrentStep]; ok {
		return node
	}
	return NameExecutor
}

// routeAfterBuilder sends a freshly built order to validation. When the
// builder could only report unfixable validation problems, the turn ends so
// the user can adjust the order.
func routeAfterBuilder(snapshot forkline.State) string {
	orderCtx, found := order.Decode(snapshot[forkline.ChannelFoodOrder])
	if !found {
		return forkline.End
	}
	if len(orderCtx.ValidationErrors) > 0 || orderCtx.CurrentStep != order.StepReviewOrder {
		return forkline.End
	}
	return NameOrderValidator
}

// routeAfterValidation re-enters the builder on errors so the problems get
// reported against the build step; a clean order moves on to approval.
func routeAfterValidation(snapshot forkline.State) string {
	orderCtx, found := order.Decode(snapshot[forkline.ChannelFoodOrder])
	if !found {
		return forkline.End
	}
	if len(orderCtx.ValidationErrors) > 0 {
		return NameOrderBuilder
	}
	return NameApproval
}

// Build wires the conversation graph from its dependencies.
func Build(deps Deps) (*forkline.Graph, error) {
	return forkline.NewGraph(forkline.GraphOptions{
		Name:   "forkline",
		Schema: Schema(),
		Entry:  NamePreferences,
		Nodes: []forkline.Node{
			PreferencesNode(deps),
			RouterNode(deps),
			ExecutorNode(deps),
			VendorSearchNode(deps),
			OrderBuilderNode(deps),
			OrderValidatorNode(deps),
			OrderSubmitNode(deps),
			ApprovalNode(deps),
		},
		Edges: []forkline.Edge{
			{From: NamePreferences, To: NameRouter},
			{From: NameExecutor, To: forkline.End},
			{From: NameVendorSearch, To: forkline.End},
			{From: NameOrderSubmit, To: NameApproval},
			{From: NameApproval, To: forkline.End},
		},
		Routes: []forkline.Route{
			{
				From: NameRouter,
				Targets: []string{
					NameExecutor, NameVendorSearch, NameOrderBuilder,
					NameOrderValidator, NameOrderSubmit,
				},
				Pick: routeAfterRouter,
			},
			{
				From:    NameOrderBuilder,
				Targets: []string{NameOrderValidator, forkline.End},
				Pick:    routeAfterBuilder,
			},
			{
				From:    NameOrderValidator,
				Targets: []string{NameApproval, NameOrderBuilder, forkline.End},
				Pick:    routeAfterValidation,
			},
		},
	})
}
