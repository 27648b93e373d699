package order

import (
	"fmt"
	"strings"
)

// Validation is the outcome of reviewing an order. Errors route the
// workflow back to build_order; warnings are informational only and never
// block progress.
type Validation struct {
	Errors   []string
	Warnings []string
}

// OK reports whether the order may proceed to confirmation.
func (v Validation) OK() bool {
	return len(v.Errors) == 0
}

// Validate runs the review_order rule set: required fields, total against
// the declared budget (with a warning above 90% of budget), and per-person
// cost against the per-person budget. Dietary restrictions produce a
// verification warning, never an error.
func (c *Context) Validate() Validation {
	var v Validation

	if c.Headcount < 1 {
		v.Errors = append(v.Errors, "Headcount must be specified (how many people?)")
	}
	if c.DeliveryAddress == "" {
		v.Errors = append(v.Errors, "Delivery address must be specified")
	}
	if c.EventDate == "" {
		v.Errors = append(v.Errors, "Delivery date must be specified")
	}
	if c.SelectedVendor == nil {
		v.Errors = append(v.Errors, "No restaurant selected")
	}

	if c.Total > 0 && c.BudgetTotal > 0 {
		if c.Total > c.BudgetTotal {
			overage := c.Total - c.BudgetTotal
			v.Errors = append(v.Errors, fmt.Sprintf(
				"Order exceeds budget by $%.2f ($%.2f vs $%.2f budget)",
				overage, c.Total, c.BudgetTotal))
		} else if c.Total > c.BudgetTotal*0.9 {
			pct := c.Total / c.BudgetTotal * 100
			v.Warnings = append(v.Warnings, fmt.Sprintf(
				"Order is at %.0f%% of budget ($%.2f of $%.2f)",
				pct, c.Total, c.BudgetTotal))
		}
	}

	if c.Total > 0 && c.BudgetPerPerson > 0 && c.Headcount > 0 {
		perPerson := c.PerPerson()
		if perPerson > c.BudgetPerPerson {
			v.Errors = append(v.Errors, fmt.Sprintf(
				"Per-person cost $%.2f exceeds budget of $%.2f/person",
				perPerson, c.BudgetPerPerson))
		}
	}

	if len(c.DietaryRestrictions) > 0 && len(c.LineItems) > 0 {
		v.Warnings = append(v.Warnings, fmt.Sprintf(
			"Dietary restrictions noted: %s. Please verify with the restaurant that the order accommodates these needs.",
			strings.Join(c.DietaryRestrictions, ", ")))
	}

	return v
}
