package message

import (
	"fmt"

	"mcl/connection"
	"mcl/mclerr"
)

// reserved keys are automatically managed by Message and may not be used as
// mandatory field names (spec.md §3).
var reserved = map[string]bool{
	"mandatory":  true,
	"connection": true,
	"name":       true,
	"timestamp":  true,
}

// Descriptor is a message type's schema: a unique name, an ordered tuple of
// mandatory field names, and the Connection it is bound to (spec.md §3).
type Descriptor struct {
	Name       string
	Mandatory  []string
	Connection *connection.Connection
}

// NewDescriptor validates and builds a Descriptor. Field names must be
// distinct and disjoint from the reserved names "mandatory", "connection",
// "name", "timestamp" (spec.md §3).
func NewDescriptor(name string, mandatory []string, conn *connection.Connection) (*Descriptor, error) {
	if name == "" {
		return nil, mclerr.New(mclerr.ConfigError, "message.NewDescriptor", fmt.Errorf("name must not be empty"))
	}
	if conn == nil {
		return nil, mclerr.New(mclerr.ConfigError, "message.NewDescriptor", fmt.Errorf("connection must not be nil"))
	}
	seen := make(map[string]bool, len(mandatory))
	for _, field := range mandatory {
		if reserved[field] {
			return nil, mclerr.New(mclerr.ConfigError, "message.NewDescriptor",
				fmt.Errorf("field name %q is reserved", field))
		}
		if seen[field] {
			return nil, mclerr.New(mclerr.ConfigError, "message.NewDescriptor",
				fmt.Errorf("duplicate field name %q", field))
		}
		seen[field] = true
	}
	copied := make([]string, len(mandatory))
	copy(copied, mandatory)
	return &Descriptor{Name: name, Mandatory: copied, Connection: conn}, nil
}

// HasMandatory reports whether field is part of the mandatory tuple.
func (d *Descriptor) HasMandatory(field string) bool {
	for _, m := range d.Mandatory {
		if m == field {
			return true
		}
	}
	return false
}
