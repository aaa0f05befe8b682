package blog

import (
	"fmt"

	"github.com/unkn0wn-root/tagcache/codec"
)

// Encoding names the codec used to store post results in the provider.
// The users table is always stored as JSON.
type Encoding string

const (
	EncodingJSON    Encoding = "json"
	EncodingMsgpack Encoding = "msgpack"
	EncodingCBOR    Encoding = "cbor"
)

type options struct {
	encoding  Encoding
	maxDecode int
}

type Option func(*options)

// WithEncoding selects the storage codec for post queries; JSON by default.
func WithEncoding(e Encoding) Option { return func(o *options) { o.encoding = e } }

// WithMaxDecode refuses cached payloads larger than n bytes. Useful with a
// shared Redis provider.
func WithMaxDecode(n int) Option { return func(o *options) { o.maxDecode = n } }

func codecFor[R any](o options) (codec.Codec[R], error) {
	var c codec.Codec[R]
	switch o.encoding {
	case "", EncodingJSON:
		c = codec.JSON[R]{}
	case EncodingMsgpack:
		c = codec.Msgpack[R]{}
	case EncodingCBOR:
		cb, err := codec.NewCBOR[R](true)
		if err != nil {
			return nil, err
		}
		c = cb
	default:
		return nil, fmt.Errorf("blog: unknown encoding %q", o.encoding)
	}
	if o.maxDecode > 0 {
		c = codec.Limit[R]{Inner: c, MaxDecode: o.maxDecode}
	}
	return c, nil
}
