package codec

import (
	"errors"
	"fmt"
	"time"
)

// Command is a frame sent by the host.
type Command interface {
	Frame
	isCommand()
}

// SetPinMode configures the mode of a pin.
type SetPinMode struct {
	Pin  int
	Mode PinMode
}

// DigitalWrite sets the output values of the 8 pins of a port.
type DigitalWrite struct {
	Port int
	Mask int
}

// DigitalPinWrite sets the output value of a single pin.
type DigitalPinWrite struct {
	Pin   int
	Value bool
}

// AnalogWrite sets the PWM duty or analog value of a pin.
type AnalogWrite struct {
	Pin   int
	Value int
}

// ServoWrite sets the angle of a servo pin in degrees.
type ServoWrite struct {
	Pin     int
	Degrees int
}

// ServoConfig sets the pulse range of a servo pin in microseconds.
type ServoConfig struct {
	Pin      int
	MinPulse int
	MaxPulse int
}

// SetSamplingInterval sets how often the device reports analog and I2C data.
type SetSamplingInterval struct {
	Interval time.Duration
}

// I2CRequest reads from or writes to an I2C device.
// Register is NoRegister when not addressed. In write mode a register
// is sent as the first data byte.
type I2CRequest struct {
	Address     int
	Mode        I2CMode
	AutoRestart bool
	Register    int
	Data        []byte
	ReadLength  int
}

// I2CConfig sets the delay in microseconds between I2C write and read.
type I2CConfig struct {
	Delay int
}

// StringWrite sends a text message to the device.
type StringWrite struct {
	Text string
}

// ReportAnalog toggles reporting of an analog channel.
type ReportAnalog struct {
	Channel int
	Enable  bool
}

// ReportDigital toggles reporting of a digital port.
type ReportDigital struct {
	Port   int
	Enable bool
}

// RequestPinState queries the mode and state of a pin.
type RequestPinState struct {
	Pin int
}

// Queries and control commands without arguments.
type (
	RequestFirmware        struct{}
	RequestCapabilities    struct{}
	RequestAnalogMapping   struct{}
	RequestProtocolVersion struct{}
	SystemReset            struct{}
)

func (SetPinMode) isCommand()             {}
func (DigitalWrite) isCommand()           {}
func (DigitalPinWrite) isCommand()        {}
func (AnalogWrite) isCommand()            {}
func (ServoWrite) isCommand()             {}
func (ServoConfig) isCommand()            {}
func (SetSamplingInterval) isCommand()    {}
func (I2CRequest) isCommand()             {}
func (I2CConfig) isCommand()              {}
func (StringWrite) isCommand()            {}
func (ReportAnalog) isCommand()           {}
func (ReportDigital) isCommand()          {}
func (RequestPinState) isCommand()        {}
func (RequestFirmware) isCommand()        {}
func (RequestCapabilities) isCommand()    {}
func (RequestAnalogMapping) isCommand()   {}
func (RequestProtocolVersion) isCommand() {}
func (SystemReset) isCommand()            {}
func (Unknown) isCommand()                {}

func checkPin(pin int) error {
	if pin < 0 || pin > MaxPin {
		return outOfRange("pin", pin, MaxPin)
	}
	return nil
}

func checkPort(port int) error {
	if port < 0 || port > MaxPort {
		return outOfRange("port", port, MaxPort)
	}
	return nil
}

func boolByte(b bool) byte {
	if b {
		return 1
	}
	return 0
}

// AppendFrame implements Frame.
func (c SetPinMode) AppendFrame(dst []byte) ([]byte, error) {
	if err := checkPin(c.Pin); err != nil {
		return dst, err
	}
	if c.Mode > 0x7F {
		return dst, outOfRange("mode", int(c.Mode), 0x7F)
	}
	return append(dst, SetPinModeCmd, byte(c.Pin), byte(c.Mode)), nil
}

// AppendFrame implements Frame.
func (c DigitalWrite) AppendFrame(dst []byte) ([]byte, error) {
	if err := checkPort(c.Port); err != nil {
		return dst, err
	}
	if c.Mask < 0 || c.Mask > 0xFF {
		return dst, outOfRange("mask", c.Mask, 0xFF)
	}
	return append(dst, DigitalMessage|byte(c.Port), lsb(c.Mask), msb(c.Mask)), nil
}

// AppendFrame implements Frame.
func (c DigitalPinWrite) AppendFrame(dst []byte) ([]byte, error) {
	if err := checkPin(c.Pin); err != nil {
		return dst, err
	}
	return append(dst, SetDigitalPinCmd, byte(c.Pin), boolByte(c.Value)), nil
}

// AppendFrame implements Frame.
func (c AnalogWrite) AppendFrame(dst []byte) ([]byte, error) {
	if err := checkPin(c.Pin); err != nil {
		return dst, err
	}
	if c.Value < 0 {
		return dst, fmt.Errorf("%w: negative value %d", ErrInvalidArgument, c.Value)
	}
	if c.Pin <= 0x0F && c.Value <= Max14Bit {
		return append(dst, AnalogMessage|byte(c.Pin), lsb(c.Value), msb(c.Value)), nil
	}
	dst = append(dst, StartSysex, byte(SysexExtendedAnalog), byte(c.Pin))
	dst = appendGroups(dst, c.Value)
	return append(dst, EndSysex), nil
}

// AppendFrame implements Frame.
func (c ServoWrite) AppendFrame(dst []byte) ([]byte, error) {
	if c.Degrees < 0 || c.Degrees > Max14Bit {
		return dst, outOfRange("degrees", c.Degrees, Max14Bit)
	}
	return AnalogWrite{Pin: c.Pin, Value: c.Degrees}.AppendFrame(dst)
}

// AppendFrame implements Frame.
func (c ServoConfig) AppendFrame(dst []byte) ([]byte, error) {
	if err := checkPin(c.Pin); err != nil {
		return dst, err
	}
	if c.MinPulse < 0 || c.MinPulse > Max14Bit {
		return dst, outOfRange("min pulse", c.MinPulse, Max14Bit)
	}
	if c.MaxPulse < c.MinPulse || c.MaxPulse > Max14Bit {
		return dst, fmt.Errorf("%w: max pulse %d not in [%d, %d]", ErrInvalidArgument, c.MaxPulse, c.MinPulse, Max14Bit)
	}
	return append(dst, StartSysex, byte(SysexServoConfig), byte(c.Pin),
		lsb(c.MinPulse), msb(c.MinPulse), lsb(c.MaxPulse), msb(c.MaxPulse), EndSysex), nil
}

// Milliseconds returns the interval as sent on the wire.
func (c SetSamplingInterval) Milliseconds() int {
	return int(c.Interval / time.Millisecond)
}

// AppendFrame implements Frame.
func (c SetSamplingInterval) AppendFrame(dst []byte) ([]byte, error) {
	ms := c.Milliseconds()
	if ms < 0 || ms > Max14Bit {
		return dst, outOfRange("sampling interval", ms, Max14Bit)
	}
	return append(dst, StartSysex, byte(SysexSamplingInterval), lsb(ms), msb(ms), EndSysex), nil
}

// AppendFrame implements Frame.
func (c I2CRequest) AppendFrame(dst []byte) ([]byte, error) {
	if c.Address < 0 || c.Address > MaxI2CAddr {
		return dst, outOfRange("address", c.Address, MaxI2CAddr)
	}
	if byte(c.Mode)&^i2cModeMask != 0 {
		return dst, fmt.Errorf("%w: i2c mode 0x%02x", ErrInvalidArgument, byte(c.Mode))
	}
	if c.Register != NoRegister && (c.Register < 0 || c.Register > Max14Bit) {
		return dst, outOfRange("register", c.Register, Max14Bit)
	}
	hi := byte(c.Mode)
	if c.Address > 0x7F {
		hi |= i2c10BitFlag | byte(c.Address>>7)&0x07
	}
	if c.AutoRestart {
		hi |= i2cAutoRestart
	}
	dst = append(dst, StartSysex, byte(SysexI2CRequest), byte(c.Address&0x7F), hi)
	switch c.Mode {
	case I2CWrite:
		if c.Register != NoRegister {
			dst = append(dst, lsb(c.Register), msb(c.Register))
		}
		dst = appendPairs(dst, c.Data)
	case I2CRead, I2CReadContinuously:
		if c.ReadLength < 0 || c.ReadLength > Max14Bit {
			return dst, outOfRange("read length", c.ReadLength, Max14Bit)
		}
		if c.Register != NoRegister {
			dst = append(dst, lsb(c.Register), msb(c.Register))
		}
		dst = append(dst, lsb(c.ReadLength), msb(c.ReadLength))
	}
	return append(dst, EndSysex), nil
}

// AppendFrame implements Frame.
func (c I2CConfig) AppendFrame(dst []byte) ([]byte, error) {
	if c.Delay < 0 || c.Delay > Max14Bit {
		return dst, outOfRange("delay", c.Delay, Max14Bit)
	}
	return append(dst, StartSysex, byte(SysexI2CConfig), lsb(c.Delay), msb(c.Delay), EndSysex), nil
}

// AppendFrame implements Frame.
func (c StringWrite) AppendFrame(dst []byte) ([]byte, error) {
	dst = append(dst, StartSysex, byte(SysexStringData))
	dst = appendPairs(dst, []byte(c.Text))
	return append(dst, EndSysex), nil
}

// AppendFrame implements Frame.
func (c ReportAnalog) AppendFrame(dst []byte) ([]byte, error) {
	if c.Channel < 0 || c.Channel > MaxChannel {
		return dst, outOfRange("channel", c.Channel, MaxChannel)
	}
	return append(dst, ReportAnalogPin|byte(c.Channel), boolByte(c.Enable)), nil
}

// AppendFrame implements Frame.
func (c ReportDigital) AppendFrame(dst []byte) ([]byte, error) {
	if err := checkPort(c.Port); err != nil {
		return dst, err
	}
	return append(dst, ReportDigitalPort|byte(c.Port), boolByte(c.Enable)), nil
}

// AppendFrame implements Frame.
func (c RequestPinState) AppendFrame(dst []byte) ([]byte, error) {
	if err := checkPin(c.Pin); err != nil {
		return dst, err
	}
	return append(dst, StartSysex, byte(SysexPinStateQuery), byte(c.Pin), EndSysex), nil
}

// AppendFrame implements Frame.
func (RequestFirmware) AppendFrame(dst []byte) ([]byte, error) {
	return append(dst, StartSysex, byte(SysexReportFirmware), EndSysex), nil
}

// AppendFrame implements Frame.
func (RequestCapabilities) AppendFrame(dst []byte) ([]byte, error) {
	return append(dst, StartSysex, byte(SysexCapabilityQuery), EndSysex), nil
}

// AppendFrame implements Frame.
func (RequestAnalogMapping) AppendFrame(dst []byte) ([]byte, error) {
	return append(dst, StartSysex, byte(SysexAnalogMappingQuery), EndSysex), nil
}

// AppendFrame implements Frame.
func (RequestProtocolVersion) AppendFrame(dst []byte) ([]byte, error) {
	return append(dst, ReportVersion), nil
}

// AppendFrame implements Frame.
func (SystemReset) AppendFrame(dst []byte) ([]byte, error) {
	return append(dst, SystemResetCmd), nil
}

// Encode encodes a command into the bytes written to the device.
func Encode(cmd Command) ([]byte, error) {
	if cmd == nil {
		return nil, errors.New("nil command")
	}
	return cmd.AppendFrame(nil)
}
