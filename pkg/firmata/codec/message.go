package codec

import (
	"fmt"
	"strings"
)

// Frame is a value that can be written on the wire.
type Frame interface {
	// AppendFrame appends the encoded frame to dst.
	AppendFrame(dst []byte) ([]byte, error)
}

// Message is a decoded frame sent by the device.
type Message interface {
	Frame
	isMessage()
}

// DigitalPortReport carries the input values of 8 pins of a port.
type DigitalPortReport struct {
	Port int
	Mask int
}

// AnalogPinReport carries the sampled value of an analog channel.
type AnalogPinReport struct {
	Channel int
	Value   int
}

// FirmwareReport carries the firmware name and version.
type FirmwareReport struct {
	Major int
	Minor int
	Name  string
}

// ProtocolVersionReport carries the protocol version implemented by the firmware.
type ProtocolVersionReport struct {
	Major int
	Minor int
}

// StringReport is a text message from the device.
type StringReport struct {
	Text string
}

// I2CReply carries bytes read from an I2C device.
type I2CReply struct {
	Address  int
	Register int
	Data     []byte
}

// CapabilityReport lists the supported modes of every pin, indexed by pin.
type CapabilityReport struct {
	Pins [][]ModeCapability
}

// AnalogMappingReport maps pins to analog channels, NoChannel for none.
type AnalogMappingReport struct {
	Channels []int
}

// PinStateReport is the reply to a pin state query.
type PinStateReport struct {
	Pin   int
	Mode  PinMode
	State int
}

// Unknown is a frame the codec doesn't understand, kept verbatim.
type Unknown struct {
	Raw []byte
}

func (DigitalPortReport) isMessage()     {}
func (AnalogPinReport) isMessage()       {}
func (FirmwareReport) isMessage()        {}
func (ProtocolVersionReport) isMessage() {}
func (StringReport) isMessage()          {}
func (I2CReply) isMessage()              {}
func (CapabilityReport) isMessage()      {}
func (AnalogMappingReport) isMessage()   {}
func (PinStateReport) isMessage()        {}
func (Unknown) isMessage()               {}

// Version formats the firmware version.
func (m FirmwareReport) Version() string {
	return fmt.Sprintf("%d.%d", m.Major, m.Minor)
}

// String implements fmt.Stringer.
func (m ProtocolVersionReport) String() string {
	return fmt.Sprintf("%d.%d", m.Major, m.Minor)
}

// String implements fmt.Stringer.
func (m CapabilityReport) String() string {
	var sb strings.Builder
	for pin, caps := range m.Pins {
		fmt.Fprintf(&sb, "pin %2d: [", pin)
		for n, c := range caps {
			if n > 0 {
				sb.WriteString(", ")
			}
			fmt.Fprintf(&sb, "%s: %d", c.Mode, c.Resolution)
		}
		sb.WriteString("]\n")
	}
	return sb.String()
}

// Pin returns the pin mapped to an analog channel.
func (m AnalogMappingReport) Pin(channel int) (int, bool) {
	for pin, ch := range m.Channels {
		if ch == channel && ch != NoChannel {
			return pin, true
		}
	}
	return 0, false
}

// AppendFrame implements Frame.
func (m DigitalPortReport) AppendFrame(dst []byte) ([]byte, error) {
	if m.Port < 0 || m.Port > MaxPort {
		return dst, outOfRange("port", m.Port, MaxPort)
	}
	if m.Mask < 0 || m.Mask > Max14Bit {
		return dst, outOfRange("mask", m.Mask, Max14Bit)
	}
	return append(dst, DigitalMessage|byte(m.Port), lsb(m.Mask), msb(m.Mask)), nil
}

// AppendFrame implements Frame.
func (m AnalogPinReport) AppendFrame(dst []byte) ([]byte, error) {
	if m.Channel < 0 || m.Channel > MaxChannel {
		return dst, outOfRange("channel", m.Channel, MaxChannel)
	}
	if m.Value < 0 || m.Value > Max14Bit {
		return dst, outOfRange("value", m.Value, Max14Bit)
	}
	return append(dst, AnalogMessage|byte(m.Channel), lsb(m.Value), msb(m.Value)), nil
}

// AppendFrame implements Frame.
func (m FirmwareReport) AppendFrame(dst []byte) ([]byte, error) {
	if m.Major < 0 || m.Major > 0x7F {
		return dst, outOfRange("major", m.Major, 0x7F)
	}
	if m.Minor < 0 || m.Minor > 0x7F {
		return dst, outOfRange("minor", m.Minor, 0x7F)
	}
	dst = append(dst, StartSysex, byte(SysexReportFirmware), byte(m.Major), byte(m.Minor))
	dst = appendPairs(dst, []byte(m.Name))
	return append(dst, EndSysex), nil
}

// AppendFrame implements Frame.
func (m ProtocolVersionReport) AppendFrame(dst []byte) ([]byte, error) {
	if m.Major < 0 || m.Major > 0x7F {
		return dst, outOfRange("major", m.Major, 0x7F)
	}
	if m.Minor < 0 || m.Minor > 0x7F {
		return dst, outOfRange("minor", m.Minor, 0x7F)
	}
	return append(dst, ReportVersion, byte(m.Major), byte(m.Minor)), nil
}

// AppendFrame implements Frame.
func (m StringReport) AppendFrame(dst []byte) ([]byte, error) {
	dst = append(dst, StartSysex, byte(SysexStringData))
	dst = appendPairs(dst, []byte(m.Text))
	return append(dst, EndSysex), nil
}

// AppendFrame implements Frame.
func (m I2CReply) AppendFrame(dst []byte) ([]byte, error) {
	if m.Address < 0 || m.Address > MaxI2CAddr {
		return dst, outOfRange("address", m.Address, MaxI2CAddr)
	}
	reg := m.Register
	if reg == NoRegister {
		reg = Max14Bit
	} else if reg < 0 || reg > Max14Bit {
		return dst, outOfRange("register", reg, Max14Bit)
	}
	dst = append(dst, StartSysex, byte(SysexI2CReply), lsb(m.Address), msb(m.Address), lsb(reg), msb(reg))
	dst = appendPairs(dst, m.Data)
	return append(dst, EndSysex), nil
}

// AppendFrame implements Frame.
func (m CapabilityReport) AppendFrame(dst []byte) ([]byte, error) {
	dst = append(dst, StartSysex, byte(SysexCapabilityResponse))
	for _, caps := range m.Pins {
		for _, c := range caps {
			if c.Mode >= 0x7F {
				return dst, outOfRange("mode", int(c.Mode), 0x7E)
			}
			if c.Resolution < 0 || c.Resolution > 0x7E {
				return dst, outOfRange("resolution", c.Resolution, 0x7E)
			}
			dst = append(dst, byte(c.Mode), byte(c.Resolution))
		}
		dst = append(dst, pinDelimiter)
	}
	return append(dst, EndSysex), nil
}

// AppendFrame implements Frame.
func (m AnalogMappingReport) AppendFrame(dst []byte) ([]byte, error) {
	dst = append(dst, StartSysex, byte(SysexAnalogMappingResponse))
	for _, ch := range m.Channels {
		if ch < 0 || ch > NoChannel {
			return dst, outOfRange("channel", ch, NoChannel)
		}
		dst = append(dst, byte(ch))
	}
	return append(dst, EndSysex), nil
}

// AppendFrame implements Frame.
func (m PinStateReport) AppendFrame(dst []byte) ([]byte, error) {
	if m.Pin < 0 || m.Pin > MaxPin {
		return dst, outOfRange("pin", m.Pin, MaxPin)
	}
	if m.Mode > 0x7F {
		return dst, outOfRange("mode", int(m.Mode), 0x7F)
	}
	if m.State < 0 {
		return dst, fmt.Errorf("%w: negative pin state %d", ErrInvalidArgument, m.State)
	}
	dst = append(dst, StartSysex, byte(SysexPinStateResponse), byte(m.Pin), byte(m.Mode))
	dst = appendGroups(dst, m.State)
	return append(dst, EndSysex), nil
}

// AppendFrame implements Frame.
func (m Unknown) AppendFrame(dst []byte) ([]byte, error) {
	return append(dst, m.Raw...), nil
}

// EncodeMessage encodes a device message, used by the device side.
func EncodeMessage(msg Message) ([]byte, error) {
	return msg.AppendFrame(nil)
}
