package nodes

import "github.com/forkline-ai/forkline"

var conversationSchema = mustSchema(
	forkline.Channel{Name: forkline.ChannelMessages, Policy: forkline.Append},
	forkline.Channel{Name: forkline.ChannelIntent},
	forkline.Channel{Name: forkline.ChannelCurrentPlan},
	forkline.Channel{Name: forkline.ChannelPendingActions},
	forkline.Channel{Name: forkline.ChannelNeedsApproval},
	forkline.Channel{Name: forkline.ChannelFoodOrder},
	forkline.Channel{Name: forkline.ChannelRequestedStep},
	forkline.Channel{Name: forkline.ChannelUserPreferences},
	forkline.Channel{Name: forkline.ChannelPreferencesUpdated},
	forkline.Channel{Name: forkline.ChannelSessionID},
	forkline.Channel{Name: forkline.ChannelUserID},
	forkline.Channel{Name: forkline.ChannelSourceChannel},
)

// Schema declares every channel the conversation graph may write. Messages
// accumulate across turns; everything else is replaced wholesale on write.
func Schema() *forkline.Schema {
	return conversationSchema
}

func mustSchema(channels ...forkline.Channel) *forkline.Schema {
	schema, err := forkline.NewSchema(channels...)
	if err != nil {
		panic(err)
	}
	return schema
}
