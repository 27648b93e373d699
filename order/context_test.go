package order

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewContext(t *testing.T) {
	ctx := NewContext()
	require.NotEmpty(t, ctx.OrderID)
	require.Equal(t, StepGatherRequirements, ctx.CurrentStep)
	require.Equal(t, StatusDraft, ctx.Status)
	require.False(t, ctx.CreatedAt.IsZero())
}

func TestComputePricing(t *testing.T) {
	t.Run("small order pays delivery", func(t *testing.T) {
		ctx := NewContext()
		ctx.LineItems = []LineItem{{Name: "Sandwich", Quantity: 2, Price: 10.00}}
		ctx.ComputePricing()

		require.Equal(t, 20.00, ctx.Subtotal)
		require.Equal(t, 1.60, ctx.Tax)
		require.Equal(t, 5.99, ctx.DeliveryFee)
		require.Equal(t, 3.00, ctx.ServiceFee)
		require.Equal(t, 30.59, ctx.Total)
	})

	t.Run("delivery waived at fifty dollars", func(t *testing.T) {
		ctx := NewContext()
		ctx.LineItems = []LineItem{{Name: "Tray", Quantity: 5, Price: 10.00}}
		ctx.ComputePricing()

		require.Equal(t, 50.00, ctx.Subtotal)
		require.Equal(t, 0.0, ctx.DeliveryFee)
		require.Equal(t, 61.50, ctx.Total)
	})

	t.Run("fractional cents round", func(t *testing.T) {
		ctx := NewContext()
		ctx.LineItems = []LineItem{{Name: "Taco", Quantity: 3, Price: 3.33}}
		ctx.ComputePricing()

		require.Equal(t, 9.99, ctx.Subtotal)
		require.Equal(t, 0.80, ctx.Tax)
		require.Equal(t, 1.50, ctx.ServiceFee)
	})
}

func TestPerPerson(t *testing.T) {
	ctx := NewContext()
	ctx.Total = 100
	require.Equal(t, 0.0, ctx.PerPerson())
	ctx.Headcount = 4
	require.Equal(t, 25.0, ctx.PerPerson())
}

func TestComplete(t *testing.T) {
	ctx := NewContext()
	ctx.Complete(StepGatherRequirements)
	ctx.Complete(StepSearchVendors)
	ctx.Complete(StepGatherRequirements)
	require.Equal(t, []Step{StepGatherRequirements, StepSearchVendors}, ctx.CompletedSteps)
}

func TestHasRequirements(t *testing.T) {
	ctx := NewContext()
	require.False(t, ctx.HasRequirements())

	ctx.Headcount = 8
	ctx.EventDate = "2026-09-12"
	ctx.DeliveryAddress = "500 Main St"
	require.False(t, ctx.HasRequirements())

	ctx.BudgetTotal = 250
	require.True(t, ctx.HasRequirements())
}

func TestCloneIsolation(t *testing.T) {
	rating := 4.5
	ctx := NewContext()
	ctx.DietaryRestrictions = []string{"vegetarian"}
	ctx.SelectedVendor = &Vendor{ID: "v1", Name: "Thai Garden", Rating: &rating}
	ctx.LineItems = []LineItem{{Name: "Pad Thai", Quantity: 2, Price: 12.50}}

	clone := ctx.Clone()
	clone.DietaryRestrictions[0] = "vegan"
	clone.SelectedVendor.Name = "changed"
	clone.LineItems[0].Quantity = 9

	require.Equal(t, "vegetarian", ctx.DietaryRestrictions[0])
	require.Equal(t, "Thai Garden", ctx.SelectedVendor.Name)
	require.Equal(t, 2, ctx.LineItems[0].Quantity)
}

func TestDecode(t *testing.T) {
	t.Run("passthrough pointer", func(t *testing.T) {
		ctx := NewContext()
		got, ok := Decode(ctx)
		require.True(t, ok)
		require.Same(t, ctx, got)
	})

	t.Run("generic map from a store", func(t *testing.T) {
		ctx := NewContext()
		ctx.Headcount = 12
		ctx.CurrentStep = StepReviewOrder
		ctx.LineItems = []LineItem{{Name: "Pizza", Quantity: 3, Price: 18.00}}

		data, err := json.Marshal(ctx)
		require.NoError(t, err)
		var raw map[string]any
		require.NoError(t, json.Unmarshal(data, &raw))

		got, ok := Decode(raw)
		require.True(t, ok)
		require.Equal(t, ctx.OrderID, got.OrderID)
		require.Equal(t, 12, got.Headcount)
		require.Equal(t, StepReviewOrder, got.CurrentStep)
		require.Len(t, got.LineItems, 1)
	})

	t.Run("absent or foreign values", func(t *testing.T) {
		_, ok := Decode(nil)
		require.False(t, ok)
		_, ok = Decode("not an order")
		require.False(t, ok)
	})
}

func TestDecodeActions(t *testing.T) {
	action := NewPendingAction("food_order", "Submit order", map[string]any{"order_id": "o1"})

	t.Run("typed slice", func(t *testing.T) {
		got := DecodeActions([]PendingAction{action})
		require.Len(t, got, 1)
		require.Equal(t, action.ActionID, got[0].ActionID)
	})

	t.Run("copies the typed slice", func(t *testing.T) {
		stored := []PendingAction{action}
		got := DecodeActions(stored)
		got[0].Status = ActionApproved
		require.Equal(t, ActionPending, stored[0].Status)
	})

	t.Run("generic slice from a store", func(t *testing.T) {
		data, err := json.Marshal([]PendingAction{action})
		require.NoError(t, err)
		var raw []any
		require.NoError(t, json.Unmarshal(data, &raw))

		got := DecodeActions(raw)
		require.Len(t, got, 1)
		require.Equal(t, ActionPending, got[0].Status)
		require.Equal(t, "food_order", got[0].ActionType)
	})

	t.Run("absent", func(t *testing.T) {
		require.Nil(t, DecodeActions(nil))
	})
}
