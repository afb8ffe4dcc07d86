package codec

import (
	"errors"
	"time"
)

type direction int

const (
	fromDevice direction = iota
	fromHost
)

// frameLen returns the fixed length of a frame by its status byte, 0 for sysex.
func frameLen(status byte, dir direction) int {
	switch {
	case status == StartSysex:
		return 0
	case status == ReportVersion:
		if dir == fromDevice {
			return 3
		}
		return 1
	case status < 0xC0: // 0x80-0xBF
		return 3
	case status < 0xE0: // 0xC0-0xDF
		return 2
	case status < 0xF0: // 0xE0-0xEF
		return 3
	case status == 0xF1, status == 0xF3:
		return 2
	case status == 0xF2, status == SetPinModeCmd, status == SetDigitalPinCmd:
		return 3
	default:
		return 1
	}
}

// nextFrame splits the first frame from buf. n is the number of bytes
// consumed, 0 when more bytes are needed. When err is set, n bytes
// are dropped and frame is nil.
func nextFrame(buf []byte, dir direction) (frame []byte, n int, err *FrameError) {
	if len(buf) == 0 {
		return nil, 0, nil
	}
	status := buf[0]
	switch {
	case status < 0x80:
		i := 1
		for i < len(buf) && buf[i] < 0x80 {
			i++
		}
		return nil, i, malformed(buf[:i], "data bytes without status byte")
	case status == EndSysex:
		return nil, 1, malformed(buf[:1], "END_SYSEX without START_SYSEX")
	case status == StartSysex:
		for i := 1; i < len(buf); i++ {
			switch b := buf[i]; {
			case b == EndSysex && i == 1:
				return nil, 2, malformed(buf[:2], "empty sysex")
			case b == EndSysex:
				return buf[:i+1], i + 1, nil
			case b >= 0x80:
				return nil, i, malformed(buf[:i], "sysex interrupted by 0x%02x", b)
			}
		}
		return nil, 0, nil
	}
	l := frameLen(status, dir)
	for i := 1; i < l && i < len(buf); i++ {
		if buf[i] >= 0x80 {
			return nil, i, malformed(buf[:i], "frame 0x%02x interrupted by 0x%02x", status, buf[i])
		}
	}
	if len(buf) < l {
		return nil, 0, nil
	}
	return buf[:l], l, nil
}

func joinErrors(errs []error) error {
	switch len(errs) {
	case 0:
		return nil
	case 1:
		return errs[0]
	default:
		return errors.Join(errs...)
	}
}

func unknown(frame []byte) Unknown {
	return Unknown{Raw: append([]byte(nil), frame...)}
}

// Decode decodes the frames sent by the device at the beginning of buf.
// consumed counts the bytes of every complete or malformed frame, a
// trailing partial frame is left for the next call. Malformed frames
// are reported in err, joined, and don't stop decoding.
func Decode(buf []byte) (consumed int, msgs []Message, err error) {
	var errs []error
	for consumed < len(buf) {
		frame, n, ferr := nextFrame(buf[consumed:], fromDevice)
		if n == 0 {
			break
		}
		consumed += n
		if ferr != nil {
			errs = append(errs, ferr)
			continue
		}
		msg, ferr := parseMessage(frame)
		if ferr != nil {
			errs = append(errs, ferr)
			continue
		}
		msgs = append(msgs, msg)
	}
	return consumed, msgs, joinErrors(errs)
}

// DecodeCommands decodes the frames sent by the host, the device side of Decode.
func DecodeCommands(buf []byte) (consumed int, cmds []Command, err error) {
	var errs []error
	for consumed < len(buf) {
		frame, n, ferr := nextFrame(buf[consumed:], fromHost)
		if n == 0 {
			break
		}
		consumed += n
		if ferr != nil {
			errs = append(errs, ferr)
			continue
		}
		cmd, ferr := parseCommand(frame)
		if ferr != nil {
			errs = append(errs, ferr)
			continue
		}
		cmds = append(cmds, cmd)
	}
	return consumed, cmds, joinErrors(errs)
}

func parseMessage(frame []byte) (Message, *FrameError) {
	status := frame[0]
	switch {
	case status&0xF0 == DigitalMessage:
		return DigitalPortReport{Port: int(status & 0x0F), Mask: join14(frame[1], frame[2])}, nil
	case status&0xF0 == AnalogMessage:
		return AnalogPinReport{Channel: int(status & 0x0F), Value: join14(frame[1], frame[2])}, nil
	case status == ReportVersion:
		return ProtocolVersionReport{Major: int(frame[1]), Minor: int(frame[2])}, nil
	case status == StartSysex:
		return parseSysexMessage(frame)
	}
	return unknown(frame), nil
}

func parseSysexMessage(frame []byte) (Message, *FrameError) {
	cmd := SysexCommand(frame[1])
	payload := frame[2 : len(frame)-1]
	switch cmd {
	case SysexReportFirmware:
		if len(payload) < 2 {
			return nil, malformed(frame, "firmware report too short")
		}
		name, ok := joinPairs(payload[2:])
		if !ok {
			return nil, malformed(frame, "odd firmware name length")
		}
		return FirmwareReport{
			Major: int(payload[0]),
			Minor: int(payload[1]),
			Name:  string(trimNUL(name)),
		}, nil
	case SysexStringData:
		text, ok := joinPairs(payload)
		if !ok {
			return nil, malformed(frame, "odd string length")
		}
		return StringReport{Text: string(trimNUL(text))}, nil
	case SysexI2CReply:
		if len(payload) < 4 || len(payload)%2 != 0 {
			return nil, malformed(frame, "invalid i2c reply length %d", len(payload))
		}
		data, _ := joinPairs(payload[4:])
		reply := I2CReply{
			Address:  join14(payload[0], payload[1]),
			Register: join14(payload[2], payload[3]),
			Data:     data,
		}
		if reply.Register == Max14Bit {
			reply.Register = NoRegister
		}
		return reply, nil
	case SysexCapabilityResponse:
		return parseCapabilities(frame, payload)
	case SysexAnalogMappingResponse:
		m := AnalogMappingReport{Channels: make([]int, len(payload))}
		for i, b := range payload {
			m.Channels[i] = int(b)
		}
		return m, nil
	case SysexPinStateResponse:
		if len(payload) < 2 {
			return nil, malformed(frame, "pin state too short")
		}
		return PinStateReport{
			Pin:   int(payload[0]),
			Mode:  PinMode(payload[1]),
			State: joinGroups(payload[2:]),
		}, nil
	}
	return unknown(frame), nil
}

func parseCapabilities(frame, payload []byte) (Message, *FrameError) {
	var report CapabilityReport
	caps := []ModeCapability{}
	for i := 0; i < len(payload); {
		if payload[i] == pinDelimiter {
			report.Pins = append(report.Pins, caps)
			caps = []ModeCapability{}
			i++
			continue
		}
		if i+1 >= len(payload) {
			return nil, malformed(frame, "capability without resolution")
		}
		caps = append(caps, ModeCapability{Mode: PinMode(payload[i]), Resolution: int(payload[i+1])})
		i += 2
	}
	if len(caps) > 0 {
		return nil, malformed(frame, "capability list not terminated")
	}
	return report, nil
}

func trimNUL(b []byte) []byte {
	out := b[:0]
	for _, c := range b {
		if c != 0 {
			out = append(out, c)
		}
	}
	return out
}

func parseCommand(frame []byte) (Command, *FrameError) {
	status := frame[0]
	switch {
	case status&0xF0 == DigitalMessage:
		return DigitalWrite{Port: int(status & 0x0F), Mask: join14(frame[1], frame[2])}, nil
	case status&0xF0 == AnalogMessage:
		return AnalogWrite{Pin: int(status & 0x0F), Value: join14(frame[1], frame[2])}, nil
	case status&0xF0 == ReportAnalogPin:
		return ReportAnalog{Channel: int(status & 0x0F), Enable: frame[1] != 0}, nil
	case status&0xF0 == ReportDigitalPort:
		return ReportDigital{Port: int(status & 0x0F), Enable: frame[1] != 0}, nil
	case status == SetPinModeCmd:
		return SetPinMode{Pin: int(frame[1]), Mode: PinMode(frame[2])}, nil
	case status == SetDigitalPinCmd:
		return DigitalPinWrite{Pin: int(frame[1]), Value: frame[2] != 0}, nil
	case status == ReportVersion:
		return RequestProtocolVersion{}, nil
	case status == SystemResetCmd:
		return SystemReset{}, nil
	case status == StartSysex:
		return parseSysexCommand(frame)
	}
	return unknown(frame), nil
}

func parseSysexCommand(frame []byte) (Command, *FrameError) {
	cmd := SysexCommand(frame[1])
	payload := frame[2 : len(frame)-1]
	switch cmd {
	case SysexReportFirmware:
		if len(payload) == 0 {
			return RequestFirmware{}, nil
		}
	case SysexCapabilityQuery:
		return RequestCapabilities{}, nil
	case SysexAnalogMappingQuery:
		return RequestAnalogMapping{}, nil
	case SysexPinStateQuery:
		if len(payload) != 1 {
			return nil, malformed(frame, "pin state query length %d", len(payload))
		}
		return RequestPinState{Pin: int(payload[0])}, nil
	case SysexSamplingInterval:
		if len(payload) != 2 {
			return nil, malformed(frame, "sampling interval length %d", len(payload))
		}
		ms := join14(payload[0], payload[1])
		return SetSamplingInterval{Interval: time.Duration(ms) * time.Millisecond}, nil
	case SysexStringData:
		text, ok := joinPairs(payload)
		if !ok {
			return nil, malformed(frame, "odd string length")
		}
		return StringWrite{Text: string(trimNUL(text))}, nil
	case SysexI2CRequest:
		return parseI2CRequest(frame, payload)
	case SysexI2CConfig:
		if len(payload) == 0 {
			return I2CConfig{}, nil
		}
		if len(payload) < 2 {
			return nil, malformed(frame, "i2c config too short")
		}
		return I2CConfig{Delay: join14(payload[0], payload[1])}, nil
	case SysexExtendedAnalog:
		if len(payload) < 2 {
			return nil, malformed(frame, "extended analog too short")
		}
		return AnalogWrite{Pin: int(payload[0]), Value: joinGroups(payload[1:])}, nil
	case SysexServoConfig:
		if len(payload) != 5 {
			return nil, malformed(frame, "servo config length %d", len(payload))
		}
		return ServoConfig{
			Pin:      int(payload[0]),
			MinPulse: join14(payload[1], payload[2]),
			MaxPulse: join14(payload[3], payload[4]),
		}, nil
	}
	return unknown(frame), nil
}

func parseI2CRequest(frame, payload []byte) (Command, *FrameError) {
	if len(payload) < 2 || len(payload)%2 != 0 {
		return nil, malformed(frame, "invalid i2c request length %d", len(payload))
	}
	hi := payload[1]
	req := I2CRequest{
		Address:     int(payload[0]),
		Mode:        I2CMode(hi & i2cModeMask),
		AutoRestart: hi&i2cAutoRestart != 0,
		Register:    NoRegister,
	}
	if hi&i2c10BitFlag != 0 {
		req.Address |= int(hi&0x07) << 7
	}
	rest := payload[2:]
	switch req.Mode {
	case I2CWrite:
		req.Data, _ = joinPairs(rest)
	case I2CRead, I2CReadContinuously:
		switch len(rest) {
		case 2:
			req.ReadLength = join14(rest[0], rest[1])
		case 4:
			req.Register = join14(rest[0], rest[1])
			req.ReadLength = join14(rest[2], rest[3])
		default:
			return nil, malformed(frame, "invalid i2c read length %d", len(rest))
		}
	}
	return req, nil
}

// Decoder decodes a device stream delivered in arbitrary chunks.
// It's not safe for concurrent use.
type Decoder struct {
	buf []byte
}

// Feed appends data and returns the messages completed by it.
func (d *Decoder) Feed(data []byte) ([]Message, error) {
	d.buf = append(d.buf, data...)
	n, msgs, err := Decode(d.buf)
	d.compact(n)
	return msgs, err
}

// Pending returns the number of buffered bytes of an incomplete frame.
func (d *Decoder) Pending() int {
	return len(d.buf)
}

// Reset drops buffered bytes.
func (d *Decoder) Reset() {
	d.buf = d.buf[:0]
}

func (d *Decoder) compact(n int) {
	if n == 0 {
		return
	}
	copy(d.buf, d.buf[n:])
	d.buf = d.buf[:len(d.buf)-n]
}

// CommandDecoder is the device side of Decoder.
type CommandDecoder struct {
	Decoder
}

// Feed appends data and returns the commands completed by it.
func (d *CommandDecoder) Feed(data []byte) ([]Command, error) {
	d.buf = append(d.buf, data...)
	n, cmds, err := DecodeCommands(d.buf)
	d.compact(n)
	return cmds, err
}
