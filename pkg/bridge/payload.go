package bridge

import (
	"fmt"
	"math"
	"strconv"

	"github.com/golang/protobuf/proto"
	structpb "github.com/golang/protobuf/ptypes/struct"

	"github.com/robotalks/firmata.go/pkg/firmata/codec"
)

// NumberValue encodes a number payload.
func NumberValue(n int) ([]byte, error) {
	return proto.Marshal(&structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: float64(n)}})
}

// StringValue encodes a string payload.
func StringValue(s string) ([]byte, error) {
	return proto.Marshal(&structpb.Value{Kind: &structpb.Value_StringValue{StringValue: s}})
}

// BytesValue encodes data as a list of numbers.
func BytesValue(data []byte) ([]byte, error) {
	list := &structpb.ListValue{Values: make([]*structpb.Value, len(data))}
	for i, b := range data {
		list.Values[i] = &structpb.Value{Kind: &structpb.Value_NumberValue{NumberValue: float64(b)}}
	}
	return proto.Marshal(&structpb.Value{Kind: &structpb.Value_ListValue{ListValue: list}})
}

// DecodeValue decodes a payload.
func DecodeValue(payload []byte) (*structpb.Value, error) {
	var v structpb.Value
	if err := proto.Unmarshal(payload, &v); err != nil {
		return nil, err
	}
	return &v, nil
}

// IntOf converts a number, bool or numeric string value to an int.
func IntOf(v *structpb.Value) (int, error) {
	switch k := v.GetKind().(type) {
	case *structpb.Value_NumberValue:
		if k.NumberValue != math.Trunc(k.NumberValue) || math.IsInf(k.NumberValue, 0) {
			return 0, fmt.Errorf("not an integer: %v", k.NumberValue)
		}
		return int(k.NumberValue), nil
	case *structpb.Value_BoolValue:
		if k.BoolValue {
			return 1, nil
		}
		return 0, nil
	case *structpb.Value_StringValue:
		return strconv.Atoi(k.StringValue)
	}
	return 0, fmt.Errorf("unexpected value %v", v)
}

// BytesOf converts a list of numbers to bytes.
func BytesOf(v *structpb.Value) ([]byte, error) {
	list := v.GetListValue()
	if list == nil {
		return nil, fmt.Errorf("not a list: %v", v)
	}
	data := make([]byte, len(list.Values))
	for i, item := range list.Values {
		n, err := IntOf(item)
		if err != nil {
			return nil, err
		}
		if n < 0 || n > 0xFF {
			return nil, fmt.Errorf("byte out of range: %d", n)
		}
		data[i] = byte(n)
	}
	return data, nil
}

// ModeOf converts a mode name or number to a PinMode.
func ModeOf(v *structpb.Value) (codec.PinMode, error) {
	if s, ok := v.GetKind().(*structpb.Value_StringValue); ok {
		if mode, err := codec.ParsePinMode(s.StringValue); err == nil {
			return mode, nil
		}
	}
	n, err := IntOf(v)
	if err != nil {
		return codec.ModeUnknown, err
	}
	if n < 0 || n > 0x7F {
		return codec.ModeUnknown, fmt.Errorf("invalid mode %d", n)
	}
	return codec.PinMode(n), nil
}
