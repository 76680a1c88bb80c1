// Package codec serializes cached values to the bytes stored inside
// the wire envelope. The profile cache defaults to JSON (the shape the
// profile store already speaks); msgpack and CBOR are available when
// durable-tier size matters, protobuf when profiles are generated
// types.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
