package codec

import "google.golang.org/protobuf/proto"

// Protobuf stores proto.Message results. ctor must return a fresh, non-nil
// message, e.g. func() *pb.Post { return &pb.Post{} }.
type Protobuf[T proto.Message] struct {
	new func() T
	opt proto.MarshalOptions
}

func NewProtobuf[T proto.Message](ctor func() T) Protobuf[T] {
	return Protobuf[T]{new: ctor, opt: proto.MarshalOptions{Deterministic: true}}
}

func (c Protobuf[T]) Encode(v T) ([]byte, error) {
	return c.opt.Marshal(v)
}

func (c Protobuf[T]) Decode(b []byte) (T, error) {
	m := c.new()
	err := proto.Unmarshal(b, m)
	return m, err
}
