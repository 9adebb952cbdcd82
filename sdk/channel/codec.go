package channel

import (
	"fmt"

	"google.golang.org/grpc/encoding"
)

// rawCodec passes request and response bodies through unchanged. Requests
// are serialized by the caller so the bytes sent on every attempt are
// exactly the bytes that were signed.
type rawCodec struct{}

var _ encoding.Codec = rawCodec{}

func (rawCodec) Marshal(v interface{}) ([]byte, error) {
	switch b := v.(type) {
	case []byte:
		return b, nil
	case *[]byte:
		return *b, nil
	default:
		return nil, fmt.Errorf("raw codec: cannot marshal %T", v)
	}
}

func (rawCodec) Unmarshal(data []byte, v interface{}) error {
	b, ok := v.(*[]byte)
	if !ok {
		return fmt.Errorf("raw codec: cannot unmarshal into %T", v)
	}
	*b = append((*b)[:0], data...)
	return nil
}

func (rawCodec) Name() string { return "raw" }

// RawCodec returns the codec used by channels. Test servers use it with
// grpc.ForceServerCodec.
func RawCodec() encoding.Codec { return rawCodec{} }
