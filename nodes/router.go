package nodes

import (
	"context"
	"strings"

	"github.com/forkline-ai/forkline"
	"github.com/forkline-ai/forkline/order"
)

// Recognized intents.
const (
	IntentGeneral     = "general"
	IntentFoodOrder   = "food_order"
	IntentReservation = "reservation"
	IntentPoll        = "poll"
	IntentBudget      = "budget"
)

var intentKeywords = []struct {
	intent   string
	keywords []string
}{
	{IntentFoodOrder, []string{
		"order food", "food order", "order lunch", "order dinner", "order breakfast",
		"catering", "cater", "delivery", "deliver", "doordash", "feed the team",
		"order from", "place an order",
	}},
	{IntentReservation, []string{
		"reservation", "reserve a table", "book a table", "book a restaurant",
	}},
	{IntentPoll, []string{
		"poll", "vote", "survey the team",
	}},
	{IntentBudget, []string{
		"budget report", "spending", "how much have we spent", "expense",
	}},
}

// ClassifyIntent maps user text onto one of the recognized intents. An order
// already in flight keeps the conversation on the food-order track unless
// the new message clearly asks for something else.
func ClassifyIntent(text string, orderActive bool) string {
	lowered := strings.ToLower(text)
	for _, entry := range intentKeywords {
		for _, keyword := range entry.keywords {
			if strings.Contains(lowered, keyword) {
				return entry.intent
			}
		}
	}
	if orderActive {
		return IntentFoodOrder
	}
	return IntentGeneral
}

// RouterNode classifies the latest user message and writes the intent
// channel. The conditional route out of the router reads that channel.
func RouterNode(deps Deps) forkline.Node {
	return forkline.NewNodeFunc("router", func(ctx context.Context, state forkline.State, events forkline.EventSink) (forkline.State, error) {
		msg, ok := forkline.LastUserMessage(state.Messages(forkline.ChannelMessages))
		if !ok {
			return forkline.State{forkline.ChannelIntent: IntentGeneral}, nil
		}

		orderActive := false
		if orderCtx, found := order.Decode(state[forkline.ChannelFoodOrder]); found {
			orderActive = orderCtx.Status == order.StatusDraft || orderCtx.Status == order.StatusPendingApproval
		}

		intent := ClassifyIntent(msg.Content, orderActive)
		events.Emit(forkline.Event{
			Type:    forkline.EventStatus,
			Message: "classified intent: " + intent,
		})
		return forkline.State{forkline.ChannelIntent: intent}, nil
	})
}
