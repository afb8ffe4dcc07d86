package firmata

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/robotalks/firmata.go/pkg/firmata/codec"
)

func TestStateEmpty(t *testing.T) {
	s := NewState()
	_, ok := s.Pin(0)
	require.False(t, ok)
	_, ok = s.Firmware()
	require.False(t, ok)
	_, ok = s.ProtocolVersion()
	require.False(t, ok)
	_, ok = s.I2C(0x40)
	require.False(t, ok)
	require.Zero(t, s.PinCount())
	require.Zero(t, s.SamplingInterval())
	require.Empty(t, s.Pins())
}

func TestStateReportsDontFabricateModes(t *testing.T) {
	s := NewState()
	s.applyCommand(codec.SetPinMode{Pin: 10, Mode: codec.ModeServo})

	pins := s.apply(codec.DigitalPortReport{Port: 1, Mask: 0x05})
	require.Equal(t, []int{8, 9, 10, 11, 12, 13, 14, 15}, pins)
	p, ok := s.Pin(8)
	require.True(t, ok)
	require.Equal(t, codec.ModeUnknown, p.Mode)
	require.Equal(t, 1, p.Value)
	p, _ = s.Pin(10)
	require.Equal(t, codec.ModeServo, p.Mode)
	require.Equal(t, 1, p.Value)

	s.apply(codec.AnalogPinReport{Channel: 2, Value: 700})
	p, ok = s.Pin(2)
	require.True(t, ok)
	require.Equal(t, codec.ModeUnknown, p.Mode)
	require.Equal(t, 700, p.Value)
	require.Equal(t, 2, p.AnalogChannel)
}

func TestStatePortReportKeepsOutputLevels(t *testing.T) {
	s := NewState()
	s.applyCommand(codec.SetPinMode{Pin: 8, Mode: codec.ModeInput})
	s.applyCommand(codec.SetPinMode{Pin: 13, Mode: codec.ModeOutput})
	s.applyCommand(codec.DigitalWrite{Port: 1, Mask: 0x20})
	p, _ := s.Pin(13)
	require.Equal(t, 1, p.Output)

	// firmware only reports input pins
	s.apply(codec.DigitalPortReport{Port: 1, Mask: 0x01})
	p, _ = s.Pin(8)
	require.Equal(t, 1, p.Value)
	require.Zero(t, p.Output)
	p, _ = s.Pin(13)
	require.Equal(t, codec.ModeOutput, p.Mode)
	require.Equal(t, 1, p.Output)

	s.applyCommand(codec.DigitalPinWrite{Pin: 13, Value: false})
	p, _ = s.Pin(13)
	require.Zero(t, p.Output)
	s.apply(codec.PinStateReport{Pin: 13, Mode: codec.ModeOutput, State: 1})
	p, _ = s.Pin(13)
	require.Equal(t, 1, p.Output)

	s.applyCommand(codec.SetPinMode{Pin: 13, Mode: codec.ModeInput})
	p, _ = s.Pin(13)
	require.Zero(t, p.Output)
}

func TestStatePortReportSkipsAnalogPins(t *testing.T) {
	s := NewState()
	s.apply(codec.AnalogMappingReport{Channels: []int{
		codec.NoChannel, codec.NoChannel, codec.NoChannel, codec.NoChannel,
		codec.NoChannel, codec.NoChannel, codec.NoChannel, codec.NoChannel,
		codec.NoChannel, codec.NoChannel, codec.NoChannel, codec.NoChannel,
		codec.NoChannel, codec.NoChannel, 0, 1,
	}})
	s.applyCommand(codec.SetPinMode{Pin: 14, Mode: codec.ModeAnalog})
	s.apply(codec.AnalogPinReport{Channel: 0, Value: 612})

	pins := s.apply(codec.DigitalPortReport{Port: 1, Mask: 0x40})
	require.NotContains(t, pins, 14)
	require.Contains(t, pins, 15)
	p, _ := s.Pin(14)
	require.Equal(t, 612, p.Value)
	require.Equal(t, 0, p.AnalogChannel)
	p, _ = s.Pin(15)
	require.Zero(t, p.Value)
}

func TestStateAnalogMapping(t *testing.T) {
	s := NewState()
	s.apply(codec.AnalogMappingReport{Channels: []int{codec.NoChannel, codec.NoChannel, 0, 1}})
	pins := s.apply(codec.AnalogPinReport{Channel: 1, Value: 42})
	require.Equal(t, []int{3}, pins)
	p, _ := s.Pin(3)
	require.Equal(t, 42, p.Value)
	require.Equal(t, 1, p.AnalogChannel)
	_, ok := s.Pin(1)
	require.False(t, ok)
}

func TestStateCapabilities(t *testing.T) {
	s := NewState()
	s.apply(codec.CapabilityReport{Pins: [][]codec.ModeCapability{
		{{Mode: codec.ModeInput, Resolution: 1}},
		{{Mode: codec.ModeOutput, Resolution: 1}, {Mode: codec.ModePWM, Resolution: 8}},
	}})
	require.Equal(t, 2, s.PinCount())
	p, ok := s.Pin(1)
	require.True(t, ok)
	c, ok := p.Supports(codec.ModePWM)
	require.True(t, ok)
	require.Equal(t, 255, c.MaxValue())
	_, ok = p.Supports(codec.ModeServo)
	require.False(t, ok)

	pins := s.apply(codec.DigitalPortReport{Port: 0, Mask: 0xFF})
	require.Equal(t, []int{0, 1}, pins)
	_, ok = s.Pin(2)
	require.False(t, ok)

	entries := s.Pins()
	require.Len(t, entries, 2)
	require.Equal(t, 0, entries[0].Index)
	require.Equal(t, 1, entries[1].Index)

	// copies don't alias the state
	p.Capabilities[0].Resolution = 3
	p, _ = s.Pin(1)
	require.Equal(t, 1, p.Capabilities[0].Resolution)
}

func TestStateFields(t *testing.T) {
	s := NewState()
	s.apply(codec.FirmwareReport{Major: 2, Minor: 5, Name: "fw"})
	s.apply(codec.ProtocolVersionReport{Major: 2, Minor: 6})
	s.apply(codec.StringReport{Text: "hello"})
	s.apply(codec.I2CReply{Address: 0x68, Register: 0x3B, Data: []byte{1, 2}})
	s.apply(codec.PinStateReport{Pin: 4, Mode: codec.ModeServo, State: 90})
	s.apply(codec.Unknown{Raw: []byte{0xFA}})
	s.applyCommand(codec.SetSamplingInterval{Interval: 50 * time.Millisecond})

	fw, ok := s.Firmware()
	require.True(t, ok)
	require.Equal(t, Firmware{Name: "fw", Major: 2, Minor: 5}, fw)
	v, ok := s.ProtocolVersion()
	require.True(t, ok)
	require.Equal(t, Version{Major: 2, Minor: 6}, v)
	require.Equal(t, "hello", s.LastString())
	r, ok := s.I2C(0x68)
	require.True(t, ok)
	require.Equal(t, I2CReading{Register: 0x3B, Data: []byte{1, 2}}, r)
	p, _ := s.Pin(4)
	require.Equal(t, codec.ModeServo, p.Mode)
	require.Equal(t, 90, p.Value)
	require.Equal(t, 50*time.Millisecond, s.SamplingInterval())
}

func TestStateEchoes(t *testing.T) {
	s := NewState()
	s.applyCommand(codec.SetPinMode{Pin: 2, Mode: codec.ModeOutput})
	s.applyCommand(codec.SetPinMode{Pin: 3, Mode: codec.ModeInput})
	s.applyCommand(codec.DigitalWrite{Port: 0, Mask: 0x0C})
	p, _ := s.Pin(2)
	require.Equal(t, 1, p.Value)
	p, _ = s.Pin(3)
	require.Equal(t, 0, p.Value)

	s.applyCommand(codec.DigitalPinWrite{Pin: 2, Value: false})
	p, _ = s.Pin(2)
	require.Equal(t, 0, p.Value)

	s.applyCommand(codec.ServoWrite{Pin: 9, Degrees: 45})
	p, _ = s.Pin(9)
	require.Equal(t, 45, p.Value)

	pins := s.applyCommand(codec.SystemReset{})
	require.Equal(t, []int{2, 3, 9}, pins)
	p, _ = s.Pin(2)
	require.Equal(t, codec.ModeUnknown, p.Mode)
}
