// Package transport implements the UDP multicast raw broadcaster and
// listener from spec.md §4.D: fragmentation, reassembly, and the
// publish-subscribe delivery surface they sit on top of (pubsub.Publisher).
package transport

import (
	"encoding/base64"
	"errors"

	jsoniter "github.com/json-iterator/go"

	"mcl/mclerr"
)

var errMalformedFrame = errors.New("malformed frame")

// Codec is transport's view of an external serialization collaborator: a
// byte-array encoder/decoder for map-like values. It is structurally
// identical to message.Codec so any message.Codec implementation (the
// package that bridges transport to typed Message values) satisfies it
// without transport importing message (spec.md §1, §4.F).
type Codec interface {
	Encode(fields map[string]interface{}) ([]byte, error)
	Decode(data []byte) (map[string]interface{}, error)
}

// defaultCodec is transport's own frame codec, used when callers that
// construct a RawBroadcaster/RawListener directly (bypassing the typed
// overlays in package message) do not supply one. It mirrors
// message.JSONCodec without importing package message.
type defaultCodec struct{}

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

func (defaultCodec) Encode(fields map[string]interface{}) ([]byte, error) {
	data, err := jsonAPI.Marshal(fields)
	if err != nil {
		return nil, mclerr.New(mclerr.FormatError, "transport.defaultCodec.Encode", err)
	}
	return data, nil
}

func (defaultCodec) Decode(data []byte) (map[string]interface{}, error) {
	var fields map[string]interface{}
	if err := jsonAPI.Unmarshal(data, &fields); err != nil {
		return nil, mclerr.New(mclerr.FormatError, "transport.defaultCodec.Decode", err)
	}
	return fields, nil
}

// UDPPort is the default multicast port used when a Connection does not
// override it (spec.md §6).
const UDPPort = 26000

// AllowedMulticastHops bounds how many router hops a broadcast may travel
// (spec.md §4.D).
const AllowedMulticastHops = 3

// MTU is the payload size threshold above which publish fragments data into
// multiple packets (spec.md §4.D).
const MTU = 60000

// MTUMax is the largest single UDP datagram RawListener will attempt to
// read, large enough to hold one MTU-sized fragment plus frame overhead
// (spec.md §4.D).
const MTUMax = 65000

// ReadTimeoutMillis is how long, in milliseconds, a single blocking read waits before RawListener's
// service loop rechecks its stop signal (spec.md §4.D).
const ReadTimeoutMillis = 200

// frame is the wire format of a single UDP datagram: a topic, this
// fragment's 1-based index, the total fragment count, and the fragment's
// payload bytes (spec.md §4.D).
type frame struct {
	Topic   string
	Packet  int
	Packets int
	Payload []byte
}

func encodeFrame(f frame, codec Codec) ([]byte, error) {
	fields := map[string]interface{}{
		"topic":   f.Topic,
		"packet":  f.Packet,
		"packets": f.Packets,
		"payload": base64.StdEncoding.EncodeToString(f.Payload),
	}
	return codec.Encode(fields)
}

func decodeFrame(data []byte, codec Codec) (frame, error) {
	fields, err := codec.Decode(data)
	if err != nil {
		return frame{}, err
	}
	topic, _ := fields["topic"].(string)
	packet, err1 := asInt(fields["packet"])
	packets, err2 := asInt(fields["packets"])
	if err1 != nil || err2 != nil {
		return frame{}, mclerr.New(mclerr.FormatError, "transport.decodeFrame", errMalformedFrame)
	}
	payload, err := asBytes(fields["payload"])
	if err != nil {
		return frame{}, err
	}
	return frame{Topic: topic, Packet: packet, Packets: packets, Payload: payload}, nil
}

func asInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case float64:
		return int(n), nil
	default:
		return 0, errMalformedFrame
	}
}

func asBytes(v interface{}) ([]byte, error) {
	s, ok := v.(string)
	if !ok {
		if v == nil {
			return nil, nil
		}
		return nil, mclerr.New(mclerr.FormatError, "transport.decodeFrame", errMalformedFrame)
	}
	payload, err := base64.StdEncoding.DecodeString(s)
	if err != nil {
		return nil, mclerr.New(mclerr.FormatError, "transport.decodeFrame", err)
	}
	return payload, nil
}
