package message

import (
	"fmt"

	"mcl/internal/clog"
	"mcl/mclerr"
	"mcl/transport"
)

// Broadcaster is a RawBroadcaster overlay bound to a Descriptor: Send
// requires the message be an instance of that same Descriptor, encodes it via codec,
// and forwards the result to the wrapped RawBroadcaster (spec.md §4.F).
type Broadcaster struct {
	desc  *Descriptor
	topic string
	codec Codec
	raw   *transport.RawBroadcaster
}

// NewBroadcaster opens a RawBroadcaster bound to desc.Connection and wraps
// it as a typed overlay for desc. codec defaults to DefaultCodec when nil.
func NewBroadcaster(desc *Descriptor, topic string, codec Codec) (*Broadcaster, error) {
	if codec == nil {
		codec = DefaultCodec
	}
	raw, err := transport.NewRawBroadcaster(desc.Connection, codec)
	if err != nil {
		return nil, err
	}
	return &Broadcaster{desc: desc, topic: topic, codec: codec, raw: raw}, nil
}

// Send encodes m and publishes it, failing if m is not an instance of the
// overlay's bound descriptor (spec.md §4.F).
func (b *Broadcaster) Send(m *Message) error {
	if m.Descriptor() != b.desc {
		return mclerr.New(mclerr.SchemaError, "message.Broadcaster.Send",
			fmt.Errorf("message descriptor %q does not match broadcaster descriptor %q", m.Descriptor().Name, b.desc.Name))
	}
	data, err := m.Encode(b.codec)
	if err != nil {
		return err
	}
	return b.raw.Publish(b.topic, data)
}

// Close closes the underlying RawBroadcaster.
func (b *Broadcaster) Close() error { return b.raw.Close() }

// Listener is a RawListener overlay bound to a Descriptor: each received
// payload is decoded into a Message instance before being delivered to
// subscribers; decode failures are dropped (spec.md §4.F).
type Listener struct {
	desc  *Descriptor
	codec Codec
	raw   *transport.RawListener
	onErr func(error)
}

// NewListener opens a RawListener bound to desc.Connection, filtered to
// topics, and wraps it as a typed overlay for desc. codec defaults to
// DefaultCodec when nil.
func NewListener(desc *Descriptor, topics []string, codec Codec) (*Listener, error) {
	if codec == nil {
		codec = DefaultCodec
	}
	raw, err := transport.NewRawListener(desc.Connection, topics, codec)
	if err != nil {
		return nil, err
	}
	return &Listener{desc: desc, codec: codec, raw: raw}, nil
}

// OnDecodeError registers a callback invoked, in addition to the always-on
// log line, when a received payload fails to decode into the bound
// descriptor's shape. Decode failures are always logged and dropped
// regardless of whether a callback is registered.
func (l *Listener) OnDecodeError(cb func(error)) { l.onErr = cb }

// Subscribe registers cb to receive every successfully decoded message.
func (l *Listener) Subscribe(cb func(topic string, m *Message)) bool {
	return l.raw.Subscribe(func(d transport.Datagram) {
		m, err := NewFromBytes(l.desc, d.Payload, l.codec)
		if err != nil {
			clog.WarnErr(fmt.Sprintf("message.Listener: decoding %q payload", l.desc.Name), err)
			if l.onErr != nil {
				l.onErr(err)
			}
			return
		}
		cb(d.Topic, m)
	})
}

// Close closes the underlying RawListener.
func (l *Listener) Close() error { return l.raw.Close() }
