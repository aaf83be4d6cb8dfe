// Package connection implements the immutable UDP connection descriptor
// from spec.md §4.B: the bundle of transport parameters (multicast group,
// port, topic filter, bound message type name) shared by broadcasters,
// listeners, and the log-file format.
package connection

import (
	"fmt"
	"strconv"
	"strings"

	"mcl/mclerr"
)

// DefaultPort is the default UDP multicast port (spec.md §6).
const DefaultPort = 26000

// MinPort and MaxPort bound the legal port range (spec.md §6).
const (
	MinPort = 1024
	MaxPort = 65535
)

// TopicDelimiter separates topics inside a topic string; individual topics
// must not contain it (spec.md §4.B, §6).
const TopicDelimiter = ","

// fieldDelimiter separates the group/port/topics/message fields in the
// line-oriented string form consumed by the network configuration file
// (spec.md §6). It is distinct from TopicDelimiter so a topic list and the
// surrounding fields never collide.
const fieldDelimiter = ";"

// Connection is an immutable bundle of UDP multicast transport parameters.
// Two Connections are equal iff their ToMap() representations are equal
// (spec.md §4.B).
type Connection struct {
	group   string
	port    int
	topics  []string // nil means "no filter"; matches spec.md's null
	message string   // "" means no bound message descriptor
}

// New validates and constructs a Connection. port <= 0 selects DefaultPort.
// topics may be nil, a single string, or a list of strings; none may
// contain TopicDelimiter.
func New(group string, port int, topics []string, message string) (*Connection, error) {
	if group == "" {
		return nil, mclerr.New(mclerr.ConfigError, "connection.New", fmt.Errorf("group must not be empty"))
	}
	if port <= 0 {
		port = DefaultPort
	}
	if port < MinPort || port > MaxPort {
		return nil, mclerr.New(mclerr.ConfigError, "connection.New",
			fmt.Errorf("port %d must be in [%d, %d]", port, MinPort, MaxPort))
	}
	for _, t := range topics {
		if strings.Contains(t, TopicDelimiter) {
			return nil, mclerr.New(mclerr.ConfigError, "connection.New",
				fmt.Errorf("topic %q must not contain delimiter %q", t, TopicDelimiter))
		}
	}
	var normalized []string
	if len(topics) > 0 {
		normalized = append(normalized, topics...)
	}
	return &Connection{group: group, port: port, topics: normalized, message: message}, nil
}

// Group returns the multicast group address.
func (c *Connection) Group() string { return c.group }

// Port returns the UDP port.
func (c *Connection) Port() int { return c.port }

// Topics returns the configured topic filter, or nil if unset.
func (c *Connection) Topics() []string {
	if c.topics == nil {
		return nil
	}
	out := make([]string, len(c.topics))
	copy(out, c.topics)
	return out
}

// Message returns the bound message descriptor name, or "" if none.
func (c *Connection) Message() string { return c.message }

// ToMap returns a configuration-serializable representation.
func (c *Connection) ToMap() map[string]interface{} {
	m := map[string]interface{}{
		"group": c.group,
		"port":  c.port,
	}
	if len(c.topics) > 0 {
		m["topics"] = c.Topics()
	} else {
		m["topics"] = nil
	}
	if c.message != "" {
		m["message"] = c.message
	} else {
		m["message"] = nil
	}
	return m
}

// FromMap reconstructs a Connection from its ToMap representation.
func FromMap(m map[string]interface{}) (*Connection, error) {
	group, _ := m["group"].(string)
	port := DefaultPort
	switch v := m["port"].(type) {
	case int:
		port = v
	case float64:
		port = int(v)
	}
	var topics []string
	switch v := m["topics"].(type) {
	case []string:
		topics = v
	case []interface{}:
		for _, item := range v {
			if s, ok := item.(string); ok {
				topics = append(topics, s)
			}
		}
	case string:
		if v != "" {
			topics = []string{v}
		}
	}
	message, _ := m["message"].(string)
	return New(group, port, topics, message)
}

// Equal reports whether two connections have identical ToMap representations
// (spec.md §4.B: "Equality is by to_map()").
func (c *Connection) Equal(other *Connection) bool {
	if other == nil {
		return false
	}
	if c.group != other.group || c.port != other.port || c.message != other.message {
		return false
	}
	if len(c.topics) != len(other.topics) {
		return false
	}
	for i := range c.topics {
		if c.topics[i] != other.topics[i] {
			return false
		}
	}
	return true
}

// String renders the line-oriented descriptor form consumed by the network
// configuration file (spec.md §6): "group;port;topic1,topic2;message".
func (c *Connection) String() string {
	topics := strings.Join(c.topics, TopicDelimiter)
	return strings.Join([]string{c.group, strconv.Itoa(c.port), topics, c.message}, fieldDelimiter)
}

// FromString parses the line-oriented descriptor form produced by String.
// Trailing fields may be omitted.
func FromString(s string) (*Connection, error) {
	fields := strings.Split(s, fieldDelimiter)
	if len(fields) == 0 || fields[0] == "" {
		return nil, mclerr.New(mclerr.FormatError, "connection.FromString", fmt.Errorf("missing group field in %q", s))
	}
	group := fields[0]
	port := DefaultPort
	if len(fields) > 1 && fields[1] != "" {
		p, err := strconv.Atoi(fields[1])
		if err != nil {
			return nil, mclerr.New(mclerr.FormatError, "connection.FromString", fmt.Errorf("invalid port in %q: %w", s, err))
		}
		port = p
	}
	var topics []string
	if len(fields) > 2 && fields[2] != "" {
		topics = strings.Split(fields[2], TopicDelimiter)
	}
	message := ""
	if len(fields) > 3 {
		message = fields[3]
	}
	return New(group, port, topics, message)
}
