package stage

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vmihailenco/msgpack/v5"
)

// ErrNotAnEvent is returned for payloads that decode to something other than
// an object, such as the plain status strings test emitters send.
var ErrNotAnEvent = errors.New("payload is not an event")

// =============================================================================
// Codec Interface
// =============================================================================

// Codec converts events to and from wire payloads.
type Codec interface {
	// Encode produces the tagged form {"type":..,"data":..,"label":..}
	Encode(ev Event) ([]byte, error)

	// Decode accepts the tagged form and the legacy single-key form
	Decode(data []byte) (Event, error)

	// Name returns the codec name (for debugging/logging)
	Name() string
}

// NewCodec returns the codec registered under name.
func NewCodec(name string) (Codec, error) {
	switch name {
	case "", "json":
		return NewJSONCodec(), nil
	case "msgpack":
		return NewMsgpackCodec(), nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// wireEvent is the tagged payload shape shared by both codecs.
type wireEvent struct {
	Type  string `json:"type" msgpack:"type"`
	Data  any    `json:"data,omitempty" msgpack:"data,omitempty"`
	Label string `json:"label,omitempty" msgpack:"label,omitempty"`
}

func toWire(ev Event) wireEvent {
	w := wireEvent{Type: string(ev.Kind), Label: ev.Label}
	switch {
	case ev.Kind == KindEnd:
	case ev.Kind.textual():
		w.Data = ev.Text
	default:
		w.Data = ev.Number
	}
	return w
}

// =============================================================================
// JSONCodec Implementation
// =============================================================================

// JSONCodec uses JSON encoding.
type JSONCodec struct{}

// NewJSONCodec creates a new JSON codec
func NewJSONCodec() *JSONCodec {
	return &JSONCodec{}
}

func (c *JSONCodec) Encode(ev Event) ([]byte, error) {
	if ev.Kind == "" {
		return nil, fmt.Errorf("event kind is empty")
	}
	data, err := json.Marshal(toWire(ev))
	if err != nil {
		return nil, fmt.Errorf("json marshal failed: %w", err)
	}
	return data, nil
}

func (c *JSONCodec) Decode(data []byte) (Event, error) {
	if len(data) == 0 {
		return Event{}, fmt.Errorf("data is empty")
	}
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		// Plain text frames are status chatter, not malformed events.
		if data[0] != '{' && data[0] != '[' {
			return Event{}, ErrNotAnEvent
		}
		return Event{}, fmt.Errorf("json unmarshal failed: %w", err)
	}
	return eventFromAny(raw)
}

func (c *JSONCodec) Name() string {
	return "json"
}

// =============================================================================
// MsgpackCodec Implementation
// =============================================================================

// MsgpackCodec uses MessagePack encoding.
type MsgpackCodec struct{}

// NewMsgpackCodec creates a new MessagePack codec
func NewMsgpackCodec() *MsgpackCodec {
	return &MsgpackCodec{}
}

func (c *MsgpackCodec) Encode(ev Event) ([]byte, error) {
	if ev.Kind == "" {
		return nil, fmt.Errorf("event kind is empty")
	}
	data, err := msgpack.Marshal(toWire(ev))
	if err != nil {
		return nil, fmt.Errorf("msgpack marshal failed: %w", err)
	}
	return data, nil
}

func (c *MsgpackCodec) Decode(data []byte) (Event, error) {
	if len(data) == 0 {
		return Event{}, fmt.Errorf("data is empty")
	}
	var raw any
	if err := msgpack.Unmarshal(data, &raw); err != nil {
		return Event{}, fmt.Errorf("msgpack unmarshal failed: %w", err)
	}
	return eventFromAny(raw)
}

func (c *MsgpackCodec) Name() string {
	return "msgpack"
}

// =============================================================================
// Shared decoding
// =============================================================================

func eventFromAny(raw any) (Event, error) {
	var fields map[string]any
	switch m := raw.(type) {
	case map[string]any:
		fields = m
	case map[any]any:
		fields = make(map[string]any, len(m))
		for k, v := range m {
			if ks, ok := k.(string); ok {
				fields[ks] = v
			}
		}
	default:
		return Event{}, ErrNotAnEvent
	}

	ev := Event{}
	if label, ok := fields["label"].(string); ok {
		ev.Label = label
	}

	var data any
	if t, ok := fields["type"]; ok {
		kind, ok := t.(string)
		if !ok || kind == "" {
			return Event{}, fmt.Errorf("event type must be a non-empty string, got %T", t)
		}
		ev.Kind = Kind(kind)
		data = fields["data"]
	} else {
		for _, k := range legacyKinds {
			if v, ok := fields[string(k)]; ok {
				ev.Kind = k
				data = v
				break
			}
		}
		if ev.Kind == "" {
			return Event{}, ErrNotAnEvent
		}
	}

	switch v := data.(type) {
	case nil:
	case string:
		ev.Text = v
	default:
		n, ok := toFloat(v)
		if !ok {
			return Event{}, fmt.Errorf("%s: unsupported data type %T", ev.Kind, data)
		}
		ev.Number = n
	}
	return ev, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case bool:
		if n {
			return 1, true
		}
		return 0, true
	default:
		return 0, false
	}
}
