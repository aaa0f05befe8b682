// Package codec converts cached query results to and from bytes. Every query
// endpoint has its own Codec; JSON is the default.
package codec

// Codec encodes/decodes values V to []byte for storage.
type Codec[V any] interface {
	Encode(V) ([]byte, error)
	Decode([]byte) (V, error)
}
