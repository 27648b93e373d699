package order

import (
	"math"
	"time"

	"github.com/google/uuid"
)

// Status is the lifecycle of an order being assembled and submitted.
type Status string

const (
	StatusDraft           Status = "draft"
	StatusPendingApproval Status = "pending_approval"
	StatusSubmitted       Status = "submitted"
	StatusCancelled       Status = "cancelled"
)

// LineItem is one item on the order.
type LineItem struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
	Notes    string  `json:"notes,omitempty"`
}

// Context tracks an active food order through the workflow. It lives in the
// food_order state channel (overwrite policy) and is mutated by exactly one
// node per engine step.
type Context struct {
	OrderID string `json:"order_id"`

	CurrentStep    Step   `json:"current_step"`
	CompletedSteps []Step `json:"completed_steps,omitempty"`

	// Requirements, gathered first.
	Headcount           int      `json:"headcount,omitempty"`
	EventDate           string   `json:"event_date,omitempty"` // YYYY-MM-DD
	EventTime           string   `json:"event_time,omitempty"` // HH:MM
	DeliveryAddress     string   `json:"delivery_address,omitempty"`
	BudgetTotal         float64  `json:"budget_total,omitempty"`
	BudgetPerPerson     float64  `json:"budget_per_person,omitempty"`
	DietaryRestrictions []string `json:"dietary_restrictions,omitempty"`
	CuisinePreferences  []string `json:"cuisine_preferences,omitempty"`

	VendorOptions  []Vendor `json:"vendor_options,omitempty"`
	SelectedVendor *Vendor  `json:"selected_vendor,omitempty"`

	LineItems           []LineItem `json:"line_items,omitempty"`
	SpecialInstructions string     `json:"special_instructions,omitempty"`

	// Pricing, computed when the order is built.
	Subtotal    float64 `json:"subtotal,omitempty"`
	Tax         float64 `json:"tax,omitempty"`
	DeliveryFee float64 `json:"delivery_fee,omitempty"`
	ServiceFee  float64 `json:"service_fee,omitempty"`
	Total       float64 `json:"total,omitempty"`

	ValidationErrors   []string `json:"validation_errors,omitempty"`
	ValidationWarnings []string `json:"validation_warnings,omitempty"`

	Status      Status     `json:"status"`
	CreatedAt   time.Time  `json:"created_at"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`

	QuoteID     string `json:"quote_id,omitempty"`
	TrackingURL string `json:"tracking_url,omitempty"`
}

// NewContext creates a fresh order context at the first workflow step.
func NewContext() *Context {
	return &Context{
		OrderID:     uuid.NewString(),
		CurrentStep: StepGatherRequirements,
		Status:      StatusDraft,
		CreatedAt:   time.Now().UTC(),
	}
}

// Clone returns a deep copy so one node's mutation never leaks into a
// checkpointed snapshot.
func (c *Context) Clone() *Context {
	clone := *c
	clone.CompletedSteps = append([]Step(nil), c.CompletedSteps...)
	clone.DietaryRestrictions = append([]string(nil), c.DietaryRestrictions...)
	clone.CuisinePreferences = append([]string(nil), c.CuisinePreferences...)
	clone.VendorOptions = append([]Vendor(nil), c.VendorOptions...)
	clone.LineItems = append([]LineItem(nil), c.LineItems...)
	clone.ValidationErrors = append([]string(nil), c.ValidationErrors...)
	clone.ValidationWarnings = append([]string(nil), c.ValidationWarnings...)
	if c.SelectedVendor != nil {
		vendor := *c.SelectedVendor
		clone.SelectedVendor = &vendor
	}
	if c.SubmittedAt != nil {
		at := *c.SubmittedAt
		clone.SubmittedAt = &at
	}
	return &clone
}

// Complete records a step as done. Completed steps grow monotonically.
func (c *Context) Complete(step Step) {
	for _, done := range c.CompletedSteps {
		if done == step {
			return
		}
	}
	c.CompletedSteps = append(c.CompletedSteps, step)
}

// HasRequirements reports whether the fields gathered in the first step are
// all present.
func (c *Context) HasRequirements() bool {
	return c.Headcount > 0 && c.EventDate != "" && c.DeliveryAddress != "" && c.BudgetTotal > 0
}

// ComputePricing recalculates the order's totals from its line items.
// Tax is 8%, delivery is waived at a $50 subtotal, and the service fee is
// 15% of the subtotal.
func (c *Context) ComputePricing() {
	subtotal := 0.0
	for _, item := range c.LineItems {
		subtotal += item.Price * float64(item.Quantity)
	}
	c.Subtotal = round2(subtotal)
	c.Tax = round2(subtotal * 0.08)
	if subtotal < 50 {
		c.DeliveryFee = 5.99
	} else {
		c.DeliveryFee = 0
	}
	c.ServiceFee = round2(subtotal * 0.15)
	c.Total = round2(c.Subtotal + c.Tax + c.DeliveryFee + c.ServiceFee)
}

// PerPerson returns the per-person cost, or 0 when headcount is unknown.
func (c *Context) PerPerson() float64 {
	if c.Headcount <= 0 {
		return 0
	}
	return c.Total / float64(c.Headcount)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
