package forkline

import (
	"encoding/json"
	"fmt"
	"sort"
)

// State is a snapshot of a conversation's channel values. Snapshots are
// value-copied on every merge so that checkpointed states stay immutable.
type State map[string]any

// Clone returns a shallow copy of the state.
func (s State) Clone() State {
	clone := make(State, len(s))
	for k, v := range s {
		clone[k] = v
	}
	return clone
}

// MergePolicy determines how an update to a channel combines with the
// channel's current value.
type MergePolicy int

const (
	// Overwrite replaces the current value with the update (last write wins).
	Overwrite MergePolicy = iota

	// Append treats the channel as an ordered sequence of Messages and
	// appends update entries, skipping entries whose ID was already seen.
	Append
)

// Channel declares one named field of the state with its merge policy.
type Channel struct {
	Name   string
	Policy MergePolicy
}

// Schema declares the set of channels a state may contain. Updates that
// reference an undeclared channel are rejected with a *SchemaError.
type Schema struct {
	channels map[string]Channel
}

// NewSchema builds a schema from channel declarations. Duplicate channel
// names are an error.
func NewSchema(channels ...Channel) (*Schema, error) {
	byName := make(map[string]Channel, len(channels))
	for _, ch := range channels {
		if ch.Name == "" {
			return nil, fmt.Errorf("channel name required")
		}
		if _, ok := byName[ch.Name]; ok {
			return nil, fmt.Errorf("duplicate channel %q", ch.Name)
		}
		byName[ch.Name] = ch
	}
	return &Schema{channels: byName}, nil
}

// ChannelNames returns the declared channel names, sorted.
func (s *Schema) ChannelNames() []string {
	names := make([]string, 0, len(s.channels))
	for name := range s.channels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Declares reports whether the schema declares the named channel.
func (s *Schema) Declares(name string) bool {
	_, ok := s.channels[name]
	return ok
}

// Apply merges a partial update into the current snapshot and returns a new
// snapshot. Keys absent from the update are left untouched. Each present key
// is combined according to its channel's merge policy; apply is idempotent,
// so re-applying the same update produces the same result.
func (s *Schema) Apply(current State, update State) (State, error) {
	for key := range update {
		if !s.Declares(key) {
			return nil, &SchemaError{Channel: key}
		}
	}
	next := current.Clone()
	for key, value := range update {
		ch := s.channels[key]
		switch ch.Policy {
		case Append:
			merged, err := appendMessages(next[key], value)
			if err != nil {
				return nil, &SchemaError{Channel: key, Reason: err.Error()}
			}
			next[key] = merged
		default:
			next[key] = value
		}
	}
	return next, nil
}

// appendMessages merges an update into an ordered message sequence,
// deduplicating by message ID so replayed updates are skipped.
func appendMessages(current, update any) ([]Message, error) {
	existing, err := asMessages(current)
	if err != nil {
		return nil, err
	}
	incoming, err := asMessages(update)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(existing))
	merged := make([]Message, 0, len(existing)+len(incoming))
	for _, msg := range existing {
		seen[msg.ID] = true
		merged = append(merged, msg)
	}
	for _, msg := range incoming {
		if msg.ID != "" && seen[msg.ID] {
			continue
		}
		seen[msg.ID] = true
		merged = append(merged, msg)
	}
	return merged, nil
}

func asMessages(value any) ([]Message, error) {
	switch v := value.(type) {
	case nil:
		return nil, nil
	case []Message:
		return v, nil
	case Message:
		return []Message{v}, nil
	case map[string]any:
		// A single message that round-tripped through a durable store.
		msg, err := messageFromMap(v)
		if err != nil {
			return nil, err
		}
		return []Message{msg}, nil
	case []any:
		msgs := make([]Message, 0, len(v))
		for _, item := range v {
			switch entry := item.(type) {
			case Message:
				msgs = append(msgs, entry)
			case map[string]any:
				msg, err := messageFromMap(entry)
				if err != nil {
					return nil, err
				}
				msgs = append(msgs, msg)
			default:
				return nil, fmt.Errorf("expected Message, got %T", item)
			}
		}
		return msgs, nil
	default:
		return nil, fmt.Errorf("expected message sequence, got %T", value)
	}
}

func messageFromMap(m map[string]any) (Message, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return Message{}, err
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		return Message{}, err
	}
	return msg, nil
}

// Messages returns the message sequence stored under the given channel, or
// nil if the channel is empty.
func (s State) Messages(channel string) []Message {
	msgs, _ := asMessages(s[channel])
	return msgs
}

// StringValue returns the string stored under key, or "" when absent or of
// another type.
func (s State) StringValue(key string) string {
	v, _ := s[key].(string)
	return v
}

// BoolValue returns the bool stored under key, defaulting to false.
func (s State) BoolValue(key string) bool {
	v, _ := s[key].(bool)
	return v
}
