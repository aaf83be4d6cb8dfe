package message

import (
	"fmt"
	"time"

	"mcl/mclerr"
)

// Message is a schema-validated, map-like value: a field map tagged with
// its Descriptor, carrying the two reserved, automatically-managed keys
// "name" and "timestamp" (spec.md §3).
type Message struct {
	desc   *Descriptor
	fields map[string]interface{}
}

// nowSeconds returns the current time as seconds since the Unix epoch,
// matching the Python source's float timestamp (spec.md §3).
func nowSeconds() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// New constructs an empty Message: every mandatory key is present with a
// nil value, "name" is set to desc.Name, and "timestamp" is set to now.
func New(desc *Descriptor) (*Message, error) {
	fields := make(map[string]interface{}, len(desc.Mandatory))
	for _, field := range desc.Mandatory {
		fields[field] = nil
	}
	return NewFromMap(desc, fields)
}

// NewFromMap constructs a Message from a map of field values. The key set
// after construction must be a superset of desc.Mandatory.
func NewFromMap(desc *Descriptor, fields map[string]interface{}) (*Message, error) {
	m := &Message{desc: desc, fields: make(map[string]interface{}, len(fields)+2)}
	if err := m.apply(fields, true); err != nil {
		return nil, err
	}
	if err := m.checkMandatory(); err != nil {
		return nil, err
	}
	return m, nil
}

// NewFromPairs constructs a Message from alternating key/value arguments,
// e.g. NewFromPairs(desc, "A", 1, "B", 2).
func NewFromPairs(desc *Descriptor, pairs ...interface{}) (*Message, error) {
	if len(pairs)%2 != 0 {
		return nil, mclerr.New(mclerr.ConfigError, "message.NewFromPairs",
			fmt.Errorf("odd number of arguments: %d", len(pairs)))
	}
	fields := make(map[string]interface{}, len(pairs)/2)
	for i := 0; i < len(pairs); i += 2 {
		key, ok := pairs[i].(string)
		if !ok {
			return nil, mclerr.New(mclerr.ConfigError, "message.NewFromPairs",
				fmt.Errorf("key at position %d is not a string", i))
		}
		fields[key] = pairs[i+1]
	}
	return NewFromMap(desc, fields)
}

// NewFromBytes decodes data with codec and constructs a Message bound to
// desc from the result.
func NewFromBytes(desc *Descriptor, data []byte, codec Codec) (*Message, error) {
	fields, err := codec.Decode(data)
	if err != nil {
		return nil, err
	}
	return NewFromMap(desc, fields)
}

// Descriptor returns the message's bound descriptor.
func (m *Message) Descriptor() *Descriptor { return m.desc }

// Name returns the descriptor name recorded under the reserved "name" key.
func (m *Message) Name() string {
	name, _ := m.fields["name"].(string)
	return name
}

// Timestamp returns the value recorded under the reserved "timestamp" key.
func (m *Message) Timestamp() float64 {
	ts, _ := m.fields["timestamp"].(float64)
	return ts
}

// Get returns the value for key and whether it was present.
func (m *Message) Get(key string) (interface{}, bool) {
	v, ok := m.fields[key]
	return v, ok
}

// Set assigns a single field. Assigning "name" any value other than its
// current one fails once the message is constructed; assigning the current
// value is accepted and changes nothing (spec.md §3).
func (m *Message) Set(key string, value interface{}) error {
	return m.apply(map[string]interface{}{key: value}, false)
}

// Update merges fields into the message. "timestamp" is refreshed to now
// unless fields explicitly supplies a "timestamp" entry (including nil or
// zero), matching spec.md §3's update semantics.
func (m *Message) Update(fields map[string]interface{}) error {
	return m.apply(fields, false)
}

// Map returns a shallow copy of the message's field map.
func (m *Message) Map() map[string]interface{} {
	out := make(map[string]interface{}, len(m.fields))
	for k, v := range m.fields {
		out[k] = v
	}
	return out
}

// Keys returns the message's current key set.
func (m *Message) Keys() []string {
	keys := make([]string, 0, len(m.fields))
	for k := range m.fields {
		keys = append(keys, k)
	}
	return keys
}

// Encode serializes the message's field map via codec.
func (m *Message) Encode(codec Codec) ([]byte, error) {
	return codec.Encode(m.fields)
}

// apply merges incoming into the message's field map, enforcing the
// "name" read-only rule and the timestamp-refresh rule. When initial is
// true this is first construction, so "name" may be set for the first
// time instead of merely validated.
func (m *Message) apply(incoming map[string]interface{}, initial bool) error {
	_, suppliedTimestamp := incoming["timestamp"]

	for key, value := range incoming {
		if key == "name" {
			if initial {
				if value != nil {
					if s, ok := value.(string); !ok || s != m.desc.Name {
						return mclerr.New(mclerr.SchemaError, "message.apply",
							fmt.Errorf("name %v does not match descriptor %q", value, m.desc.Name))
					}
				}
				continue // forced below regardless
			}
			if existing, ok := m.fields["name"]; ok {
				if s, ok := value.(string); !ok || s != existing {
					return mclerr.New(mclerr.SchemaError, "message.apply",
						fmt.Errorf("key %q is read-only", key))
				}
				continue
			}
		}
		m.fields[key] = value
	}

	// "name" is always forced to the descriptor name; it cannot be
	// introduced any other way (reserved key, spec.md §3).
	m.fields["name"] = m.desc.Name

	if suppliedTimestamp {
		// Caller explicitly supplied a timestamp in this update
		// (including nil or zero) -- honour it verbatim.
		return nil
	}
	m.fields["timestamp"] = nowSeconds()
	return nil
}

// checkMandatory verifies keys(m) is a superset of desc.Mandatory
// (spec.md §3 invariant).
func (m *Message) checkMandatory() error {
	var missing []string
	for _, field := range m.desc.Mandatory {
		if _, ok := m.fields[field]; !ok {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return mclerr.New(mclerr.SchemaError, "message.checkMandatory",
			fmt.Errorf("%q is missing mandatory fields: %v", m.desc.Name, missing))
	}
	return nil
}
