package forkline

// Well-known channel names shared by the conversation schema, the nodes,
// and the thread manager's history reporting. The merge engine itself never
// special-cases any of these; it only follows declared merge policies.
const (
	ChannelMessages           = "messages"
	ChannelIntent             = "intent"
	ChannelCurrentPlan        = "current_plan"
	ChannelPendingActions     = "pending_actions"
	ChannelNeedsApproval      = "needs_approval"
	ChannelFoodOrder          = "food_order"
	ChannelRequestedStep      = "requested_step"
	ChannelUserPreferences    = "user_preferences"
	ChannelPreferencesUpdated = "preferences_updated"
	ChannelSessionID          = "session_id"
	ChannelUserID             = "user_id"
	ChannelSourceChannel      = "source_channel"
)
