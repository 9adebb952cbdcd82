package ledger

import (
	"time"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/ledgerlink/ledger-sdk/pkg/errors"
)

// Field is one decoded protobuf field. Varint is set for varint and fixed
// types, Bytes for length-delimited ones.
type Field struct {
	Num    protowire.Number
	Type   protowire.Type
	Varint uint64
	Bytes  []byte
}

// DecodeFields splits a protobuf message into its top-level fields. Groups
// are rejected.
func DecodeFields(b []byte) ([]Field, error) {
	var out []Field
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, errors.Wrap(protowire.ParseError(n), "decode tag")
		}
		b = b[n:]
		f := Field{Num: num, Type: typ}
		switch typ {
		case protowire.VarintType:
			v, m := protowire.ConsumeVarint(b)
			if m < 0 {
				return nil, errors.Wrap(protowire.ParseError(m), "decode varint")
			}
			f.Varint, n = v, m
		case protowire.Fixed32Type:
			v, m := protowire.ConsumeFixed32(b)
			if m < 0 {
				return nil, errors.Wrap(protowire.ParseError(m), "decode fixed32")
			}
			f.Varint, n = uint64(v), m
		case protowire.Fixed64Type:
			v, m := protowire.ConsumeFixed64(b)
			if m < 0 {
				return nil, errors.Wrap(protowire.ParseError(m), "decode fixed64")
			}
			f.Varint, n = v, m
		case protowire.BytesType:
			v, m := protowire.ConsumeBytes(b)
			if m < 0 {
				return nil, errors.Wrap(protowire.ParseError(m), "decode bytes")
			}
			f.Bytes, n = v, m
		default:
			return nil, errors.Errorf("unsupported wire type %d for field %d", typ, num)
		}
		b = b[n:]
		out = append(out, f)
	}
	return out, nil
}

// AppendVarint appends a varint field, omitting zero values.
func AppendVarint(b []byte, num protowire.Number, v uint64) []byte {
	if v == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, v)
}

// AppendBool appends a bool field, omitting false.
func AppendBool(b []byte, num protowire.Number, v bool) []byte {
	if !v {
		return b
	}
	return AppendVarint(b, num, 1)
}

// AppendBytes appends a length-delimited field, omitting empty values.
func AppendBytes(b []byte, num protowire.Number, v []byte) []byte {
	if len(v) == 0 {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, v)
}

// AppendString appends a string field, omitting empty values.
func AppendString(b []byte, num protowire.Number, v string) []byte {
	if v == "" {
		return b
	}
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendString(b, v)
}

// AppendMessage appends an embedded message. Unlike AppendBytes an empty
// message is still written so the field is present.
func AppendMessage(b []byte, num protowire.Number, msg []byte) []byte {
	b = protowire.AppendTag(b, num, protowire.BytesType)
	return protowire.AppendBytes(b, msg)
}

// MarshalTimestamp encodes a Timestamp{seconds=1, nanos=2}.
func MarshalTimestamp(t time.Time) []byte {
	var b []byte
	b = AppendVarint(b, 1, uint64(t.Unix()))
	b = AppendVarint(b, 2, uint64(t.Nanosecond()))
	return b
}

// UnmarshalTimestamp decodes a Timestamp message.
func UnmarshalTimestamp(b []byte) (time.Time, error) {
	fields, err := DecodeFields(b)
	if err != nil {
		return time.Time{}, err
	}
	var sec, nsec int64
	for _, f := range fields {
		switch f.Num {
		case 1:
			sec = int64(f.Varint)
		case 2:
			nsec = int64(int32(f.Varint))
		}
	}
	return time.Unix(sec, nsec).UTC(), nil
}

// MarshalDuration encodes a Duration{seconds=1}.
func MarshalDuration(d time.Duration) []byte {
	return AppendVarint(nil, 1, uint64(int64(d/time.Second)))
}

// UnmarshalDuration decodes a Duration message.
func UnmarshalDuration(b []byte) (time.Duration, error) {
	fields, err := DecodeFields(b)
	if err != nil {
		return 0, err
	}
	var d time.Duration
	for _, f := range fields {
		if f.Num == 1 {
			d = time.Duration(int64(f.Varint)) * time.Second
		}
	}
	return d, nil
}
