package codec

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	testCases := []struct {
		name   string
		in     []byte
		expect Message
	}{
		{
			"firmware",
			[]byte{0xF0, 0x79, 0x02, 0x05, 0x53, 0x00, 0x46, 0x00, 0xF7},
			FirmwareReport{Major: 2, Minor: 5, Name: "SF"},
		},
		{"protocol version", []byte{0xF9, 0x02, 0x05}, ProtocolVersionReport{Major: 2, Minor: 5}},
		{"digital port", []byte{0x91, 0x05, 0x00}, DigitalPortReport{Port: 1, Mask: 5}},
		{"analog", []byte{0xE0, 0x7F, 0x07}, AnalogPinReport{Channel: 0, Value: 1023}},
		{
			"capabilities",
			[]byte{0xF0, 0x6C, 0x00, 0x01, 0x01, 0x01, 0x7F, 0x02, 0x0A, 0x7F, 0x7F, 0xF7},
			CapabilityReport{Pins: [][]ModeCapability{
				{{Mode: ModeInput, Resolution: 1}, {Mode: ModeOutput, Resolution: 1}},
				{{Mode: ModeAnalog, Resolution: 10}},
				{},
			}},
		},
		{
			"analog mapping",
			[]byte{0xF0, 0x6A, 0x7F, 0x7F, 0x00, 0x01, 0xF7},
			AnalogMappingReport{Channels: []int{NoChannel, NoChannel, 0, 1}},
		},
		{"pin state", []byte{0xF0, 0x6E, 0x0D, 0x01, 0x01, 0xF7}, PinStateReport{Pin: 13, Mode: ModeOutput, State: 1}},
		{"pin state wide", []byte{0xF0, 0x6E, 0x03, 0x03, 0x7F, 0x01, 0xF7}, PinStateReport{Pin: 3, Mode: ModePWM, State: 255}},
		{
			"i2c reply",
			[]byte{0xF0, 0x77, 0x40, 0x00, 0x10, 0x00, 0x01, 0x00, 0x7F, 0x01, 0xF7},
			I2CReply{Address: 0x40, Register: 0x10, Data: []byte{0x01, 0xFF}},
		},
		{
			"i2c reply without register",
			[]byte{0xF0, 0x77, 0x40, 0x00, 0x7F, 0x7F, 0x05, 0x00, 0xF7},
			I2CReply{Address: 0x40, Register: NoRegister, Data: []byte{0x05}},
		},
		{"string", []byte{0xF0, 0x71, 0x48, 0x00, 0x69, 0x00, 0xF7}, StringReport{Text: "Hi"}},
		{"unknown sysex", []byte{0xF0, 0x61, 0x01, 0x02, 0xF7}, Unknown{Raw: []byte{0xF0, 0x61, 0x01, 0x02, 0xF7}}},
		{"unknown status", []byte{0xFA}, Unknown{Raw: []byte{0xFA}}},
		{"unknown three byte", []byte{0x80, 0x01, 0x02}, Unknown{Raw: []byte{0x80, 0x01, 0x02}}},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			n, msgs, err := Decode(tc.in)
			require.NoError(t, err)
			require.Equal(t, len(tc.in), n)
			require.Equal(t, []Message{tc.expect}, msgs)
		})
	}
}

func TestDecodeEmpty(t *testing.T) {
	n, msgs, err := Decode(nil)
	require.Zero(t, n)
	require.Empty(t, msgs)
	require.NoError(t, err)
}

func TestDecodePartial(t *testing.T) {
	testCases := []struct {
		name     string
		in       []byte
		consumed int
		count    int
	}{
		{"analog head", []byte{0xE0, 0x01}, 0, 0},
		{"version then analog head", []byte{0xF9, 0x02, 0x05, 0xE0, 0x01}, 3, 1},
		{"open sysex", []byte{0xF0, 0x79, 0x02, 0x05}, 0, 0},
		{"status only", []byte{0x91}, 0, 0},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			n, msgs, err := Decode(tc.in)
			require.NoError(t, err)
			require.Equal(t, tc.consumed, n)
			require.Len(t, msgs, tc.count)
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	version := ProtocolVersionReport{Major: 2, Minor: 5}
	testCases := []struct {
		name   string
		in     []byte
		raw    []byte
		expect []Message
	}{
		{"stray data", []byte{0x01, 0x02, 0xF9, 0x02, 0x05}, []byte{0x01, 0x02}, []Message{version}},
		{"interrupted frame", []byte{0x91, 0x05, 0xF9, 0x02, 0x05}, []byte{0x91, 0x05}, []Message{version}},
		{"interrupted sysex", []byte{0xF0, 0x79, 0xF9, 0x02, 0x05}, []byte{0xF0, 0x79}, []Message{version}},
		{"end sysex alone", []byte{0xF7, 0xF9, 0x02, 0x05}, []byte{0xF7}, []Message{version}},
		{"empty sysex", []byte{0xF9, 0x02, 0x05, 0xF0, 0xF7}, []byte{0xF0, 0xF7}, []Message{version}},
		{"odd string", []byte{0xF0, 0x71, 0x48, 0xF7}, []byte{0xF0, 0x71, 0x48, 0xF7}, nil},
		{"short firmware", []byte{0xF0, 0x79, 0x02, 0xF7}, []byte{0xF0, 0x79, 0x02, 0xF7}, nil},
		{"short i2c reply", []byte{0xF0, 0x77, 0x40, 0x00, 0xF7}, []byte{0xF0, 0x77, 0x40, 0x00, 0xF7}, nil},
		{
			"unterminated capability",
			[]byte{0xF0, 0x6C, 0x00, 0x01, 0xF7},
			[]byte{0xF0, 0x6C, 0x00, 0x01, 0xF7},
			nil,
		},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			n, msgs, err := Decode(tc.in)
			require.Equal(t, len(tc.in), n)
			require.Equal(t, tc.expect, msgs)
			require.ErrorIs(t, err, ErrMalformedFrame)
			var fe *FrameError
			require.True(t, errors.As(err, &fe))
			require.Equal(t, tc.raw, fe.Raw)
		})
	}
}

func TestDecodeJoinsErrors(t *testing.T) {
	n, msgs, err := Decode([]byte{0x01, 0xF7, 0xE1, 0x10, 0x00})
	require.Equal(t, 5, n)
	require.Equal(t, []Message{AnalogPinReport{Channel: 1, Value: 0x10}}, msgs)
	require.ErrorIs(t, err, ErrMalformedFrame)
	joined, ok := err.(interface{ Unwrap() []error })
	require.True(t, ok)
	require.Len(t, joined.Unwrap(), 2)
}

func deviceStream(t *testing.T) ([]byte, []Message) {
	msgs := []Message{
		ProtocolVersionReport{Major: 2, Minor: 5},
		FirmwareReport{Major: 2, Minor: 5, Name: "StandardFirmata.ino"},
		DigitalPortReport{Port: 0, Mask: 0x24},
		AnalogPinReport{Channel: 3, Value: 512},
		CapabilityReport{Pins: [][]ModeCapability{
			{},
			{},
			{{Mode: ModeInput, Resolution: 1}, {Mode: ModeOutput, Resolution: 1}, {Mode: ModePWM, Resolution: 8}},
		}},
		AnalogMappingReport{Channels: []int{NoChannel, NoChannel, 0}},
		PinStateReport{Pin: 2, Mode: ModePWM, State: 128},
		I2CReply{Address: 0x68, Register: 0x3B, Data: []byte{0x12, 0x34, 0xAB}},
		StringReport{Text: "ready"},
		Unknown{Raw: []byte{0xF0, 0x61, 0x05, 0xF7}},
	}
	var stream []byte
	for _, msg := range msgs {
		out, err := EncodeMessage(msg)
		require.NoError(t, err)
		stream = append(stream, out...)
	}
	return stream, msgs
}

func TestMessageRoundTrip(t *testing.T) {
	stream, expect := deviceStream(t)
	n, msgs, err := Decode(stream)
	require.NoError(t, err)
	require.Equal(t, len(stream), n)
	require.Equal(t, expect, msgs)
}

func TestDecoderChunked(t *testing.T) {
	stream, expect := deviceStream(t)
	for split := 0; split <= len(stream); split++ {
		var d Decoder
		first, err := d.Feed(stream[:split])
		require.NoError(t, err)
		second, err := d.Feed(stream[split:])
		require.NoError(t, err)
		require.Equal(t, expect, append(first, second...), "split at %d", split)
		require.Zero(t, d.Pending())
	}

	var d Decoder
	var msgs []Message
	for _, b := range stream {
		out, err := d.Feed([]byte{b})
		require.NoError(t, err)
		msgs = append(msgs, out...)
	}
	require.Equal(t, expect, msgs)
}

func TestDecoderIncompleteSysex(t *testing.T) {
	var d Decoder
	msgs, err := d.Feed([]byte{0xF0, 0x79, 0x02, 0x05, 0x41})
	require.NoError(t, err)
	require.Empty(t, msgs)
	require.Equal(t, 5, d.Pending())

	msgs, err = d.Feed([]byte{0x00, 0xF7})
	require.NoError(t, err)
	require.Equal(t, []Message{FirmwareReport{Major: 2, Minor: 5, Name: "A"}}, msgs)
	require.Zero(t, d.Pending())
}

func TestCommandDecoder(t *testing.T) {
	var d CommandDecoder
	cmds, err := d.Feed([]byte{0xF4, 0x0D})
	require.NoError(t, err)
	require.Empty(t, cmds)
	cmds, err = d.Feed([]byte{0x01, 0xF9, 0xF0, 0x79})
	require.NoError(t, err)
	require.Equal(t, []Command{SetPinMode{Pin: 13, Mode: ModeOutput}, RequestProtocolVersion{}}, cmds)
	cmds, err = d.Feed([]byte{0xF7})
	require.NoError(t, err)
	require.Equal(t, []Command{RequestFirmware{}}, cmds)
}
