package message

import (
	jsoniter "github.com/json-iterator/go"

	"mcl/mclerr"
)

// Codec is the external serialization collaborator spec.md §1 carves out of
// scope: a byte-array encoder/decoder for map-like values. The typed
// overlays depend only on this interface, and the transport only on its
// structurally identical transport.Codec, never on a concrete encoding, so
// the wire format can be swapped without touching them. The log writer and
// reader do not use a Codec: they store the payload bytes they are given.
type Codec interface {
	Encode(fields map[string]interface{}) ([]byte, error)
	Decode(data []byte) (map[string]interface{}, error)
}

// JSONCodec is the default Codec, backed by json-iterator/go in
// standard-library-compatible mode.
type JSONCodec struct{}

var jsonAPI = jsoniter.ConfigCompatibleWithStandardLibrary

// Encode serializes fields as JSON.
func (JSONCodec) Encode(fields map[string]interface{}) ([]byte, error) {
	data, err := jsonAPI.Marshal(fields)
	if err != nil {
		return nil, mclerr.New(mclerr.FormatError, "message.JSONCodec.Encode", err)
	}
	return data, nil
}

// Decode deserializes data into a map-like value.
func (JSONCodec) Decode(data []byte) (map[string]interface{}, error) {
	var fields map[string]interface{}
	if err := jsonAPI.Unmarshal(data, &fields); err != nil {
		return nil, mclerr.New(mclerr.FormatError, "message.JSONCodec.Decode", err)
	}
	return fields, nil
}

// DefaultCodec is the package-wide default, mirroring the corpus convention
// of a package-level default instance for a pluggable external collaborator.
var DefaultCodec Codec = JSONCodec{}
