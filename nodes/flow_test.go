package nodes

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/forkline-ai/forkline"
	"github.com/forkline-ai/forkline/order"
	"github.com/forkline-ai/forkline/tools"
)

func rated(v float64) *float64 { return &v }

func testDeps(t *testing.T) Deps {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	catalog := tools.NewCatalogSource("catalog", []order.Vendor{
		{ID: "v-thai", Name: "Thai Garden", Rating: rated(4.7), Categories: []string{"thai"}},
		{ID: "v-pizza", Name: "Slice House", Rating: rated(4.5), Categories: []string{"pizza"}},
	})
	menus := tools.NewCatalogMenus("catalog", map[string]*tools.Menu{
		"v-thai": {VendorID: "v-thai", Items: []tools.MenuItem{
			{ID: "m-pad", Name: "Pad Thai Tray", Price: 12.00},
			{ID: "m-curry", Name: "Green Curry Tray", Price: 16.00},
			{ID: "m-duck", Name: "Roast Duck Tray", Price: 28.00},
		}},
	})

	return Deps{
		Preferences:   NewMemoryPreferences(),
		VendorSources: []forkline.Tool{tools.NewSearchTool(catalog)},
		MenuSources:   []forkline.Tool{tools.NewMenuTool(menus)},
		Quotes:        tools.NewQuoteTool(tools.NewFlatRateQuotes("flatrate", 799)),
		Notifier:      LogNotifier{Logger: logger},
		Logger:        logger,
	}
}

func newFlowThreads(t *testing.T) *forkline.Threads {
	t.Helper()
	graph, err := Build(testDeps(t))
	require.NoError(t, err)
	engine, err := forkline.NewEngine(forkline.EngineOptions{
		Graph: graph,
		Store: forkline.NewMemoryStore(),
	})
	require.NoError(t, err)
	return forkline.NewThreads(engine)
}

func turnInput(threadID, text string) forkline.State {
	return forkline.State{
		forkline.ChannelMessages:  []forkline.Message{forkline.UserMessage(text)},
		forkline.ChannelSessionID: threadID,
		forkline.ChannelUserID:    "u-planner",
	}
}

func lastReply(t *testing.T, snapshot forkline.State) string {
	t.Helper()
	msg, ok := forkline.LastAssistantMessage(snapshot.Messages(forkline.ChannelMessages))
	require.True(t, ok, "expected an assistant reply")
	return msg.Content
}

func decodeOrder(t *testing.T, snapshot forkline.State) *order.Context {
	t.Helper()
	orderCtx, ok := order.Decode(snapshot[forkline.ChannelFoodOrder])
	require.True(t, ok, "expected an order context in state")
	return orderCtx
}

func TestFoodOrderFlow(t *testing.T) {
	threads := newFlowThreads(t)
	ctx := context.Background()
	const threadID = "t-lunch"

	turn := func(text string) *forkline.TurnResult {
		result, err := threads.SubmitTurn(ctx, threadID, turnInput(threadID, text), forkline.NullSink{})
		require.NoError(t, err)
		return result
	}

	// Requirements arrive in one message, so the order advances to search.
	result := turn("Order lunch for 10 people on 2026-09-12, $250 budget, deliver to 500 Main St.")
	orderCtx := decodeOrder(t, result.Snapshot)
	require.Equal(t, order.StepSearchVendors, orderCtx.CurrentStep)
	require.Equal(t, 10, orderCtx.Headcount)
	require.Equal(t, 250.0, orderCtx.BudgetTotal)
	require.Equal(t, "500 Main St", orderCtx.DeliveryAddress)

	result = turn("go")
	require.Contains(t, lastReply(t, result.Snapshot), "1. Thai Garden")
	orderCtx = decodeOrder(t, result.Snapshot)
	require.Equal(t, order.StepSelectVendor, orderCtx.CurrentStep)
	require.Len(t, orderCtx.VendorOptions, 2)

	result = turn("Thai Garden sounds great")
	orderCtx = decodeOrder(t, result.Snapshot)
	require.Equal(t, order.StepBuildOrder, orderCtx.CurrentStep)
	require.Equal(t, "v-thai", orderCtx.SelectedVendor.ID)
	require.Equal(t, "build an order from Thai Garden",
		result.Snapshot.StringValue(forkline.ChannelCurrentPlan))

	// Build runs straight through validation to the confirmation prompt.
	result = turn("build the order")
	orderCtx = decodeOrder(t, result.Snapshot)
	require.Equal(t, order.StepConfirmOrder, orderCtx.CurrentStep)
	require.Len(t, orderCtx.LineItems, 1)
	require.Equal(t, "Green Curry Tray", orderCtx.LineItems[0].Name)
	require.Equal(t, 10, orderCtx.LineItems[0].Quantity)
	require.InDelta(t, 196.80, orderCtx.Total, 0.001)
	require.Empty(t, orderCtx.ValidationErrors)
	require.Contains(t, lastReply(t, result.Snapshot), "confirm")

	// First confirm takes the delivery quote and parks the order for approval.
	result = turn("confirm")
	orderCtx = decodeOrder(t, result.Snapshot)
	require.Equal(t, order.StatusPendingApproval, orderCtx.Status)
	require.Equal(t, order.StepSubmitOrder, orderCtx.CurrentStep)
	require.NotEmpty(t, orderCtx.QuoteID)
	require.InDelta(t, 204.79, orderCtx.Total, 0.001)
	actions := order.DecodeActions(result.Snapshot[forkline.ChannelPendingActions])
	require.Len(t, actions, 1)
	require.Equal(t, order.ActionPending, actions[0].Status)
	require.Contains(t, lastReply(t, result.Snapshot), "Ready to place this order from Thai Garden")

	// Second confirm approves the pending action and submits.
	result = turn("confirm")
	orderCtx = decodeOrder(t, result.Snapshot)
	require.Equal(t, order.StatusSubmitted, orderCtx.Status)
	require.Equal(t, order.StepTrackOrder, orderCtx.CurrentStep)
	require.NotNil(t, orderCtx.SubmittedAt)
	actions = order.DecodeActions(result.Snapshot[forkline.ChannelPendingActions])
	require.Equal(t, order.ActionApproved, actions[0].Status)
	require.Contains(t, lastReply(t, result.Snapshot), "Order placed with Thai Garden")

	result = turn("when does the delivery arrive?")
	require.Contains(t, lastReply(t, result.Snapshot), "on its way")
}

// A turn with no food-order signal runs preferences, router, and executor,
// then ends.
func TestGeneralTurnNodeSequence(t *testing.T) {
	threads := newFlowThreads(t)

	const threadID = "t-hello"
	result, err := threads.SubmitTurn(context.Background(), threadID, turnInput(threadID, "hi"), forkline.NullSink{})
	require.NoError(t, err)

	require.Len(t, result.Checkpoints, 4)
	var sequence []string
	for _, checkpoint := range result.Checkpoints[:3] {
		sequence = append(sequence, checkpoint.NextNodes...)
	}
	require.Equal(t, []string{NamePreferences, NameRouter, NameExecutor}, sequence)
	require.Empty(t, result.Checkpoints[3].NextNodes)
	require.Equal(t, IntentGeneral, result.Snapshot.StringValue(forkline.ChannelIntent))
	require.Contains(t, lastReply(t, result.Snapshot), "food orders")
}

// stalledSource blocks until the per-call timeout cancels it.
type stalledSource struct{ name string }

func (s stalledSource) Name() string { return s.name }

func (s stalledSource) Search(ctx context.Context, query, location string, limit int) ([]order.Vendor, error) {
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestVendorSearchSurvivesFailingSources(t *testing.T) {
	deps := testDeps(t)
	deps.ToolTimeout = 50 * time.Millisecond
	deps.VendorSources = append(deps.VendorSources,
		tools.NewSearchTool(tools.NewFailingSource("flaky", errors.New("upstream down"))),
		tools.NewSearchTool(stalledSource{name: "stalled"}),
	)
	graph, err := Build(deps)
	require.NoError(t, err)
	engine, err := forkline.NewEngine(forkline.EngineOptions{
		Graph: graph,
		Store: forkline.NewMemoryStore(),
	})
	require.NoError(t, err)
	threads := forkline.NewThreads(engine)

	ctx := context.Background()
	const threadID = "t-degraded"
	turn := func(text string) *forkline.TurnResult {
		result, err := threads.SubmitTurn(ctx, threadID, turnInput(threadID, text), forkline.NullSink{})
		require.NoError(t, err)
		return result
	}

	turn("Order lunch for 8 people on 2026-09-12, $200 budget, deliver to 9 Elm St.")
	result := turn("go")

	// The surviving catalog source carries the turn, rating-sorted.
	orderCtx := decodeOrder(t, result.Snapshot)
	require.Equal(t, order.StepSelectVendor, orderCtx.CurrentStep)
	require.Len(t, orderCtx.VendorOptions, 2)
	require.Equal(t, "Thai Garden", orderCtx.VendorOptions[0].Name)
	require.Equal(t, "Slice House", orderCtx.VendorOptions[1].Name)
	require.Contains(t, lastReply(t, result.Snapshot), "1. Thai Garden")
}

// The approval turn must not write through shared slices into checkpoints
// persisted before it; a branch from the pending-approval point has to see
// the action still pending.
func TestApprovalDoesNotRewriteHistory(t *testing.T) {
	graph, err := Build(testDeps(t))
	require.NoError(t, err)
	store := forkline.NewMemoryStore()
	engine, err := forkline.NewEngine(forkline.EngineOptions{Graph: graph, Store: store})
	require.NoError(t, err)
	threads := forkline.NewThreads(engine)

	ctx := context.Background()
	const threadID = "t-history"
	turn := func(text string) *forkline.TurnResult {
		result, err := threads.SubmitTurn(ctx, threadID, turnInput(threadID, text), forkline.NullSink{})
		require.NoError(t, err)
		return result
	}

	turn("Order lunch for 6 people on 2026-11-02, $150 budget, deliver to 77 Pine St.")
	turn("go")
	turn("option 1")
	turn("build it")
	quoted := turn("confirm")
	tip := quoted.Checkpoints[len(quoted.Checkpoints)-1]
	pending := order.DecodeActions(tip.State[forkline.ChannelPendingActions])
	require.Len(t, pending, 1)
	require.Equal(t, order.ActionPending, pending[0].Status)

	turn("confirm")

	stored, err := store.Get(ctx, threadID, tip.ID)
	require.NoError(t, err)
	require.NotNil(t, stored)
	actions := order.DecodeActions(stored.State[forkline.ChannelPendingActions])
	require.Len(t, actions, 1)
	require.Equal(t, order.ActionPending, actions[0].Status)
	require.Equal(t, order.StatusPendingApproval, decodeOrder(t, stored.State).Status)
}

func TestFoodOrderRejection(t *testing.T) {
	threads := newFlowThreads(t)
	ctx := context.Background()
	const threadID = "t-cancel"

	turn := func(text string) *forkline.TurnResult {
		result, err := threads.SubmitTurn(ctx, threadID, turnInput(threadID, text), forkline.NullSink{})
		require.NoError(t, err)
		return result
	}

	turn("Order dinner for 4 people on 2026-10-01, $120 budget, deliver to 12 Oak Ave.")
	turn("go")
	turn("option 1")
	turn("build it")
	result := turn("confirm")
	require.Equal(t, order.StatusPendingApproval, decodeOrder(t, result.Snapshot).Status)

	result = turn("cancel that, we found leftovers")
	orderCtx := decodeOrder(t, result.Snapshot)
	require.Equal(t, order.StatusCancelled, orderCtx.Status)
	actions := order.DecodeActions(result.Snapshot[forkline.ChannelPendingActions])
	require.Equal(t, order.ActionRejected, actions[0].Status)
	require.Contains(t, lastReply(t, result.Snapshot), "cancelled")
}

func TestFoodOrderOverBudgetReportsProblems(t *testing.T) {
	deps := testDeps(t)
	graph, err := Build(deps)
	require.NoError(t, err)
	engine, err := forkline.NewEngine(forkline.EngineOptions{
		Graph: graph,
		Store: forkline.NewMemoryStore(),
	})
	require.NoError(t, err)
	threads := forkline.NewThreads(engine)
	ctx := context.Background()
	const threadID = "t-tight"

	turn := func(text string) *forkline.TurnResult {
		result, err := threads.SubmitTurn(ctx, threadID, turnInput(threadID, text), forkline.NullSink{})
		require.NoError(t, err)
		return result
	}

	// A $30 budget for 10 people cannot cover even the cheapest tray.
	turn("Order lunch for 10 people on 2026-09-12, $30 budget, deliver to 500 Main St.")
	turn("go")
	turn("Thai Garden")
	result := turn("build the order")

	orderCtx := decodeOrder(t, result.Snapshot)
	require.Equal(t, order.StepBuildOrder, orderCtx.CurrentStep)
	require.NotEmpty(t, orderCtx.ValidationErrors)
	require.Contains(t, lastReply(t, result.Snapshot), "problems I cannot fix on my own")
}
