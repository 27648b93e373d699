// Package order models the food-order sub-workflow: its step machine,
// requirement and pricing fields, and the validation rules applied at
// review time.
package order

// Step is a position in the food-order workflow.
type Step string

const (
	StepGatherRequirements Step = "gather_requirements"
	StepSearchVendors      Step = "search_vendors"
	StepSelectVendor       Step = "select_vendor"
	StepBuildOrder         Step = "build_order"
	StepReviewOrder        Step = "review_order"
	StepConfirmOrder       Step = "confirm_order"
	StepSubmitOrder        Step = "submit_order"
	StepTrackOrder         Step = "track_order"
)

// Steps lists the workflow steps in required order.
var Steps = []Step{
	StepGatherRequirements,
	StepSearchVendors,
	StepSelectVendor,
	StepBuildOrder,
	StepReviewOrder,
	StepConfirmOrder,
	StepSubmitOrder,
	StepTrackOrder,
}

// transitions is the step machine as data: for each step, the steps it may
// move to next. The only backward edge is review_order -> build_order, taken
// when validation fails.
var transitions = map[Step][]Step{
	StepGatherRequirements: {StepSearchVendors},
	StepSearchVendors:      {StepSelectVendor},
	StepSelectVendor:       {StepBuildOrder},
	StepBuildOrder:         {StepReviewOrder},
	StepReviewOrder:        {StepConfirmOrder, StepBuildOrder},
	StepConfirmOrder:       {StepSubmitOrder},
	StepSubmitOrder:        {StepTrackOrder},
	StepTrackOrder:         {},
}

// jumpTargets are the steps a user may jump to directly by carrying an
// explicit requested step in the turn input, bypassing normal sequencing.
var jumpTargets = map[Step]bool{
	StepSearchVendors: true,
	StepBuildOrder:    true,
	StepReviewOrder:   true,
	StepSubmitOrder:   true,
}

// Valid reports whether s is a declared workflow step.
func (s Step) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// CanTransition reports whether the step machine allows moving from s to
// next.
func (s Step) CanTransition(next Step) bool {
	for _, allowed := range transitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// CanJumpTo reports whether requested is a valid jump target for a
// user-initiated correction.
func CanJumpTo(requested Step) bool {
	return jumpTargets[requested]
}
