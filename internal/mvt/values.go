package mvt

import (
	"fmt"
	"math"

	"github.com/paulmach/protoscan"
	"google.golang.org/protobuf/encoding/protowire"
)

// decodeValue parses a single Value message into its Go scalar.
func decodeValue(data []byte) (interface{}, error) {
	msg := protoscan.New(data)
	var out interface{}
	for msg.Next() {
		var err error
		switch msg.FieldNumber() {
		case valueStringField:
			out, err = msg.String()
		case valueFloatField:
			var f float32
			f, err = msg.Float()
			out = float64(f)
		case valueDoubleField:
			out, err = msg.Double()
		case valueIntField:
			out, err = msg.Int64()
		case valueUintField:
			out, err = msg.Uint64()
		case valueSintField:
			out, err = msg.Sint64()
		case valueBoolField:
			out, err = msg.Bool()
		default:
			msg.Skip()
		}
		if err != nil {
			return nil, fmt.Errorf("%w: value field %d: %v", ErrMalformedTile, msg.FieldNumber(), err)
		}
	}
	if err := msg.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedTile, err)
	}
	return out, nil
}

// encodeValue serializes a Go scalar into a Value message. Unknown types
// fall back to their string form, matching how attribute maps collected
// from JSON-ish sources behave.
func encodeValue(v interface{}) []byte {
	var buf []byte
	switch x := v.(type) {
	case string:
		buf = protowire.AppendTag(buf, valueStringField, protowire.BytesType)
		buf = protowire.AppendString(buf, x)
	case bool:
		buf = protowire.AppendTag(buf, valueBoolField, protowire.VarintType)
		buf = protowire.AppendVarint(buf, protowire.EncodeBool(x))
	case float32:
		buf = protowire.AppendTag(buf, valueFloatField, protowire.Fixed32Type)
		buf = protowire.AppendFixed32(buf, math.Float32bits(x))
	case float64:
		buf = protowire.AppendTag(buf, valueDoubleField, protowire.Fixed64Type)
		buf = protowire.AppendFixed64(buf, math.Float64bits(x))
	case int:
		buf = appendIntValue(buf, int64(x))
	case int32:
		buf = appendIntValue(buf, int64(x))
	case int64:
		buf = appendIntValue(buf, x)
	case uint:
		buf = appendUintValue(buf, uint64(x))
	case uint32:
		buf = appendUintValue(buf, uint64(x))
	case uint64:
		buf = appendUintValue(buf, x)
	default:
		buf = protowire.AppendTag(buf, valueStringField, protowire.BytesType)
		buf = protowire.AppendString(buf, fmt.Sprint(v))
	}
	return buf
}

func appendIntValue(buf []byte, v int64) []byte {
	buf = protowire.AppendTag(buf, valueIntField, protowire.VarintType)
	return protowire.AppendVarint(buf, uint64(v))
}

func appendUintValue(buf []byte, v uint64) []byte {
	buf = protowire.AppendTag(buf, valueUintField, protowire.VarintType)
	return protowire.AppendVarint(buf, v)
}
