package order

import "encoding/json"

// Decode extracts an order context from a state channel value. Values read
// from a durable store arrive as generic JSON maps; values set within the
// current process are *Context already. The bool is false when the value is
// absent or not an order context.
func Decode(value any) (*Context, bool) {
	switch v := value.(type) {
	case nil:
		return nil, false
	case *Context:
		return v, true
	case Context:
		return &v, true
	case map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return nil, false
		}
		var c Context
		if err := json.Unmarshal(data, &c); err != nil {
			return nil, false
		}
		return &c, true
	default:
		return nil, false
	}
}

// DecodeActions extracts pending actions from a state channel value,
// tolerating the generic JSON shape a durable store returns. The result is
// always a fresh slice: snapshot values share backing arrays with persisted
// checkpoints, so callers must never receive the stored slice itself.
func DecodeActions(value any) []PendingAction {
	switch v := value.(type) {
	case nil:
		return nil
	case []PendingAction:
		return append([]PendingAction(nil), v...)
	case []any:
		data, err := json.Marshal(v)
		if err != nil {
			return nil
		}
		var actions []PendingAction
		if err := json.Unmarshal(data, &actions); err != nil {
			return nil
		}
		return actions
	default:
		return nil
	}
}
