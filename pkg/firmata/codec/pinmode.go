package codec

import (
	"fmt"
	"strings"
)

// PinMode is the mode byte used by SET_PIN_MODE and capability reports.
type PinMode byte

// Pin modes.
const (
	ModeInput       PinMode = 0x00
	ModeOutput      PinMode = 0x01
	ModeAnalog      PinMode = 0x02
	ModePWM         PinMode = 0x03
	ModeServo       PinMode = 0x04
	ModeShift       PinMode = 0x05
	ModeI2C         PinMode = 0x06
	ModeOneWire     PinMode = 0x07
	ModeStepper     PinMode = 0x08
	ModeEncoder     PinMode = 0x09
	ModeSerial      PinMode = 0x0A
	ModeInputPullup PinMode = 0x0B
	ModeIgnored     PinMode = 0x7F
	// ModeUnknown is never sent on the wire, it marks a pin whose mode was never reported.
	ModeUnknown PinMode = 0xFF
)

var pinModeNames = map[PinMode]string{
	ModeInput:       "input",
	ModeOutput:      "output",
	ModeAnalog:      "analog",
	ModePWM:         "pwm",
	ModeServo:       "servo",
	ModeShift:       "shift",
	ModeI2C:         "i2c",
	ModeOneWire:     "onewire",
	ModeStepper:     "stepper",
	ModeEncoder:     "encoder",
	ModeSerial:      "serial",
	ModeInputPullup: "pullup",
	ModeIgnored:     "ignored",
	ModeUnknown:     "unknown",
}

func (m PinMode) String() string {
	if v, ok := pinModeNames[m]; ok {
		return v
	}
	return fmt.Sprintf("Mode(0x%02x)", byte(m))
}

// IsDigital reports whether values of the mode are 0/1.
func (m PinMode) IsDigital() bool {
	return m == ModeInput || m == ModeOutput || m == ModeInputPullup
}

// ParsePinMode parses the names printed by PinMode.String.
func ParsePinMode(s string) (PinMode, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	for mode, name := range pinModeNames {
		if name == s && mode != ModeUnknown {
			return mode, nil
		}
	}
	return ModeUnknown, fmt.Errorf("unknown pin mode %q", s)
}

// ModeCapability is one entry of a pin's capability list.
type ModeCapability struct {
	Mode       PinMode
	Resolution int
}

// MaxValue returns the largest value representable at the resolution.
func (c ModeCapability) MaxValue() int {
	if c.Resolution <= 0 || c.Resolution > 14 {
		return Max14Bit
	}
	return 1<<uint(c.Resolution) - 1
}
