package codec

// Status bytes.
const (
	DigitalMessage    byte = 0x90 // port in low nibble, 14-bit mask
	AnalogMessage     byte = 0xE0 // pin in low nibble, 14-bit value
	ReportAnalogPin   byte = 0xC0 // channel in low nibble, enable
	ReportDigitalPort byte = 0xD0 // port in low nibble, enable
	StartSysex        byte = 0xF0
	SetPinModeCmd     byte = 0xF4 // pin, mode
	SetDigitalPinCmd  byte = 0xF5 // pin, value
	EndSysex          byte = 0xF7
	ReportVersion     byte = 0xF9 // major, minor
	SystemResetCmd    byte = 0xFF
)

// SysexCommand is the sub-command byte following START_SYSEX.
type SysexCommand byte

// Sysex sub-commands.
const (
	SysexEncoderData           SysexCommand = 0x61
	SysexAnalogMappingQuery    SysexCommand = 0x69
	SysexAnalogMappingResponse SysexCommand = 0x6A
	SysexCapabilityQuery       SysexCommand = 0x6B
	SysexCapabilityResponse    SysexCommand = 0x6C
	SysexPinStateQuery         SysexCommand = 0x6D
	SysexPinStateResponse      SysexCommand = 0x6E
	SysexExtendedAnalog        SysexCommand = 0x6F
	SysexServoConfig           SysexCommand = 0x70
	SysexStringData            SysexCommand = 0x71
	SysexStepperData           SysexCommand = 0x72
	SysexOneWireData           SysexCommand = 0x73
	SysexShiftData             SysexCommand = 0x75
	SysexI2CRequest            SysexCommand = 0x76
	SysexI2CReply              SysexCommand = 0x77
	SysexI2CConfig             SysexCommand = 0x78
	SysexReportFirmware        SysexCommand = 0x79
	SysexSamplingInterval      SysexCommand = 0x7A
	SysexSchedulerData         SysexCommand = 0x7B
	SysexNonRealtime           SysexCommand = 0x7E
	SysexRealtime              SysexCommand = 0x7F
)

var sysexNames = map[SysexCommand]string{
	SysexEncoderData:           "EncoderData",
	SysexAnalogMappingQuery:    "AnalogMappingQuery",
	SysexAnalogMappingResponse: "AnalogMappingResponse",
	SysexCapabilityQuery:       "CapabilityQuery",
	SysexCapabilityResponse:    "CapabilityResponse",
	SysexPinStateQuery:         "PinStateQuery",
	SysexPinStateResponse:      "PinStateResponse",
	SysexExtendedAnalog:        "ExtendedAnalog",
	SysexServoConfig:           "ServoConfig",
	SysexStringData:            "StringData",
	SysexStepperData:           "StepperData",
	SysexOneWireData:           "OneWireData",
	SysexShiftData:             "ShiftData",
	SysexI2CRequest:            "I2CRequest",
	SysexI2CReply:              "I2CReply",
	SysexI2CConfig:             "I2CConfig",
	SysexReportFirmware:        "ReportFirmware",
	SysexSamplingInterval:      "SamplingInterval",
	SysexSchedulerData:         "SchedulerData",
	SysexNonRealtime:           "NonRealtime",
	SysexRealtime:              "Realtime",
}

func (s SysexCommand) String() string {
	if v, ok := sysexNames[s]; ok {
		return v
	}
	return "Unknown"
}

// Protocol limits.
const (
	MaxPin       = 127
	MaxPort      = 15
	MaxChannel   = 15
	Max14Bit     = 0x3FFF
	MaxI2CAddr   = 0x3FF
	MaxServoDeg  = 180
	NoChannel    = 0x7F // analog mapping: pin has no analog channel
	pinDelimiter = 0x7F // capability response: end of a pin's mode list
)

// I2CMode selects the I2C request operation, bits 3-4 of the second address byte.
type I2CMode byte

// I2C request modes.
const (
	I2CWrite            I2CMode = 0x00
	I2CRead             I2CMode = 0x08
	I2CReadContinuously I2CMode = 0x10
	I2CStopReading      I2CMode = 0x18
)

const (
	i2cModeMask    byte = 0x18
	i2c10BitFlag   byte = 0x20
	i2cAutoRestart byte = 0x40
)

func (m I2CMode) String() string {
	switch m {
	case I2CWrite:
		return "write"
	case I2CRead:
		return "read"
	case I2CReadContinuously:
		return "read-continuously"
	case I2CStopReading:
		return "stop-reading"
	default:
		return "unknown"
	}
}

// NoRegister means an I2C read without a register address.
const NoRegister = -1
