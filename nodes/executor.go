package nodes

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/forkline-ai/forkline"
	"github.com/forkline-ai/forkline/order"
)

var (
	headcountPattern = regexp.MustCompile(`(?i)\b(\d+)\s*(?:people|person|persons|ppl|guests|folks|team members)\b`)
	datePattern      = regexp.MustCompile(`\b(\d{4}-\d{2}-\d{2})\b`)
	timePattern      = regexp.MustCompile(`\b(\d{1,2}:\d{2})\b`)
	perPersonPattern = regexp.MustCompile(`(?i)\$(\d+(?:\.\d{1,2})?)\s*(?:/|per\s+)(?:person|head|pp)\b`)
	budgetPattern    = regexp.MustCompile(`(?i)(?:budget(?:\s+(?:is|of))?\s*\$?|\$)(\d+(?:\.\d{1,2})?)\s*(?:total|budget|\b)`)
	addressPattern   = regexp.MustCompile(`(?i)(?:deliver(?:ed|y)?\s+to|address\s+is|drop\s+off\s+at)\s+(.+?)(?:\.|$)`)
	ordinalPattern   = regexp.MustCompile(`(?i)\b(?:number|option|#)?\s*(\d+)\b`)
)

// parseRequirements fills missing order requirements from free text. Fields
// already set on the order are never overwritten.
func parseRequirements(text string, orderCtx *order.Context) {
	if orderCtx.Headcount == 0 {
		if m := headcountPattern.FindStringSubmatch(text); m != nil {
			if n, err := strconv.Atoi(m[1]); err == nil {
				orderCtx.Headcount = n
			}
		}
	}
	if orderCtx.EventDate == "" {
		if m := datePattern.FindStringSubmatch(text); m != nil {
			orderCtx.EventDate = m[1]
		}
	}
	if orderCtx.EventTime == "" {
		if m := timePattern.FindStringSubmatch(text); m != nil {
			orderCtx.EventTime = m[1]
		}
	}
	if orderCtx.BudgetPerPerson == 0 {
		if m := perPersonPattern.FindStringSubmatch(text); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				orderCtx.BudgetPerPerson = v
			}
		}
	}
	if orderCtx.BudgetTotal == 0 {
		// Strip any per-person amount first so it is not mistaken for the total.
		remainder := perPersonPattern.ReplaceAllString(text, "")
		if m := budgetPattern.FindStringSubmatch(remainder); m != nil {
			if v, err := strconv.ParseFloat(m[1], 64); err == nil {
				orderCtx.BudgetTotal = v
			}
		}
	}
	if orderCtx.DeliveryAddress == "" {
		if m := addressPattern.FindStringSubmatch(text); m != nil {
			orderCtx.DeliveryAddress = strings.TrimSpace(m[1])
		}
	}
	if orderCtx.BudgetTotal == 0 && orderCtx.BudgetPerPerson > 0 && orderCtx.Headcount > 0 {
		orderCtx.BudgetTotal = orderCtx.BudgetPerPerson * float64(orderCtx.Headcount)
	}
}

func missingRequirements(orderCtx *order.Context) []string {
	var missing []string
	if orderCtx.Headcount == 0 {
		missing = append(missing, "how many people you are feeding")
	}
	if orderCtx.EventDate == "" {
		missing = append(missing, "the delivery date (YYYY-MM-DD)")
	}
	if orderCtx.DeliveryAddress == "" {
		missing = append(missing, "the delivery address")
	}
	if orderCtx.BudgetTotal == 0 {
		missing = append(missing, "your total budget")
	}
	return missing
}

// resolveVendorSelection matches the user's reply against the vendor options
// presented last turn, by position ("2", "option 2") or by name.
func resolveVendorSelection(text string, options []order.Vendor) (order.Vendor, bool) {
	lowered := strings.ToLower(text)
	for _, vendor := range options {
		if strings.Contains(lowered, strings.ToLower(vendor.Name)) {
			return vendor, true
		}
	}
	if m := ordinalPattern.FindStringSubmatch(text); m != nil {
		if n, err := strconv.Atoi(m[1]); err == nil && n >= 1 && n <= len(options) {
			return options[n-1], true
		}
	}
	return order.Vendor{}, false
}

// ExecutorNode is the conversational responder. Outside the food-order flow
// it answers directly; inside it, it handles the steps that need a user
// reply: gathering requirements, resolving a vendor choice, and reporting
// tracking status.
func ExecutorNode(deps Deps) forkline.Node {
	return forkline.NewNodeFunc("executor", func(ctx context.Context, state forkline.State, events forkline.EventSink) (forkline.State, error) {
		intent := state.StringValue(forkline.ChannelIntent)
		if intent != IntentFoodOrder {
			return respondGeneral(state, intent), nil
		}

		orderCtx, found := order.Decode(state[forkline.ChannelFoodOrder])
		if !found {
			orderCtx = order.NewContext()
		}
		orderCtx = orderCtx.Clone()

		switch orderCtx.CurrentStep {
		case order.StepGatherRequirements:
			return gatherRequirements(state, orderCtx, deps)
		case order.StepSelectVendor:
			return selectVendor(state, orderCtx, events)
		case order.StepTrackOrder:
			return trackOrder(orderCtx), nil
		default:
			reply := fmt.Sprintf("Your order is at the %s step. Tell me what you would like to change.",
				strings.ReplaceAll(string(orderCtx.CurrentStep), "_", " "))
			return forkline.State{
				forkline.ChannelMessages: []forkline.Message{forkline.AssistantMessage(reply)},
			}, nil
		}
	})
}

func respondGeneral(state forkline.State, intent string) forkline.State {
	var reply string
	switch intent {
	case IntentReservation:
		reply = "I can help plan team meals, but reservations are handled separately for now. Want me to set up a food delivery instead?"
	case IntentPoll:
		reply = "Polls are not wired up yet. I can order food for the team if you tell me headcount, date, address, and budget."
	case IntentBudget:
		reply = "I track budgets per order. Start an order and I will keep the total against your budget."
	default:
		reply = "Hi! I coordinate team food orders. Tell me something like \"order lunch for 12 people on 2026-09-05, $200 budget, deliver to 500 Main St\"."
	}
	return forkline.State{
		forkline.ChannelMessages: []forkline.Message{forkline.AssistantMessage(reply)},
	}
}

func gatherRequirements(state forkline.State, orderCtx *order.Context, deps Deps) (forkline.State, error) {
	if msg, ok := forkline.LastUserMessage(state.Messages(forkline.ChannelMessages)); ok {
		parseRequirements(msg.Content, orderCtx)
	}
	prefs := decodePreferences(state[forkline.ChannelUserPreferences])
	if orderCtx.BudgetPerPerson == 0 && prefs.DefaultBudgetPerPerson > 0 {
		orderCtx.BudgetPerPerson = prefs.DefaultBudgetPerPerson
	}
	if len(orderCtx.DietaryRestrictions) == 0 && len(prefs.DietaryRestrictions) > 0 {
		orderCtx.DietaryRestrictions = append([]string(nil), prefs.DietaryRestrictions...)
	}

	var reply, plan string
	if missing := missingRequirements(orderCtx); len(missing) > 0 {
		plan = "collect the remaining order requirements"
		reply = "Got it so far. I still need " + strings.Join(missing, ", ") + "."
	} else {
		orderCtx.Complete(order.StepGatherRequirements)
		orderCtx.CurrentStep = order.StepSearchVendors
		plan = fmt.Sprintf("search vendors for %d people within $%.2f", orderCtx.Headcount, orderCtx.BudgetTotal)
		reply = fmt.Sprintf("Great, ordering for %d people on %s to %s with a $%.2f budget. Say \"go\" and I will search for vendors.",
			orderCtx.Headcount, orderCtx.EventDate, orderCtx.DeliveryAddress, orderCtx.BudgetTotal)
	}
	return forkline.State{
		forkline.ChannelFoodOrder:   orderCtx,
		forkline.ChannelCurrentPlan: plan,
		forkline.ChannelMessages:    []forkline.Message{forkline.AssistantMessage(reply)},
	}, nil
}

func selectVendor(state forkline.State, orderCtx *order.Context, events forkline.EventSink) (forkline.State, error) {
	msg, ok := forkline.LastUserMessage(state.Messages(forkline.ChannelMessages))
	if !ok || len(orderCtx.VendorOptions) == 0 {
		return forkline.State{
			forkline.ChannelMessages: []forkline.Message{
				forkline.AssistantMessage("Which vendor would you like? Reply with a number or a name."),
			},
		}, nil
	}
	vendor, matched := resolveVendorSelection(msg.Content, orderCtx.VendorOptions)
	if !matched {
		return forkline.State{
			forkline.ChannelMessages: []forkline.Message{
				forkline.AssistantMessage("I could not match that to one of the options. Reply with a number or the vendor's name."),
			},
		}, nil
	}
	selected := vendor
	orderCtx.SelectedVendor = &selected
	orderCtx.Complete(order.StepSelectVendor)
	orderCtx.CurrentStep = order.StepBuildOrder
	events.Emit(forkline.Event{
		Type:    forkline.EventStatus,
		Message: "vendor selected: " + vendor.Name,
	})
	reply := fmt.Sprintf("%s it is. Say \"build the order\" and I will put together a menu for %d people.",
		vendor.Name, orderCtx.Headcount)
	return forkline.State{
		forkline.ChannelFoodOrder:   orderCtx,
		forkline.ChannelCurrentPlan: "build an order from " + vendor.Name,
		forkline.ChannelMessages:    []forkline.Message{forkline.AssistantMessage(reply)},
	}, nil
}

func trackOrder(orderCtx *order.Context) forkline.State {
	var reply string
	switch {
	case orderCtx.TrackingURL != "":
		reply = fmt.Sprintf("Your order from %s is on its way. Track it here: %s",
			vendorName(orderCtx), orderCtx.TrackingURL)
	case orderCtx.Status == order.StatusSubmitted:
		reply = fmt.Sprintf("Your order from %s has been submitted. I will share tracking once the courier is assigned.",
			vendorName(orderCtx))
	default:
		reply = "There is no submitted order to track yet."
	}
	return forkline.State{
		forkline.ChannelMessages: []forkline.Message{forkline.AssistantMessage(reply)},
	}
}

func vendorName(orderCtx *order.Context) string {
	if orderCtx.SelectedVendor != nil {
		return orderCtx.SelectedVendor.Name
	}
	return "the vendor"
}
