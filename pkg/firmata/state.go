package firmata

import (
	"sort"
	"sync"
	"time"

	"github.com/robotalks/firmata.go/pkg/firmata/codec"
)

// Pin is the last known state of a pin.
type Pin struct {
	Mode          codec.PinMode
	Value         int
	// Output is the level last written to a digital output pin.
	// Port reports don't change it.
	Output        int
	Capabilities  []codec.ModeCapability
	AnalogChannel int
}

// Supports looks up the capability of a mode. ok is true when the
// capabilities are unknown, as nothing can be ruled out.
func (p Pin) Supports(mode codec.PinMode) (capability codec.ModeCapability, ok bool) {
	if len(p.Capabilities) == 0 {
		return codec.ModeCapability{Mode: mode}, true
	}
	for _, c := range p.Capabilities {
		if c.Mode == mode {
			return c, true
		}
	}
	return codec.ModeCapability{Mode: mode}, false
}

// PinEntry is a pin with its index.
type PinEntry struct {
	Index int
	Pin
}

// Firmware identifies the firmware running on the device.
type Firmware struct {
	Name  string
	Major int
	Minor int
}

// Version is a protocol version.
type Version struct {
	Major int
	Minor int
}

// I2CReading is the last reply from an I2C device.
type I2CReading struct {
	Register int
	Data     []byte
}

// State is the live model of the board.
// It's only mutated by the receiver loop, readers get copies.
type State struct {
	lock             sync.RWMutex
	pins             map[int]*Pin
	pinCount         int
	firmware         *Firmware
	version          *Version
	samplingInterval time.Duration
	i2c              map[int]I2CReading
	analogPins       map[int]int
	lastString       string
}

// NewState creates an empty State.
func NewState() *State {
	return &State{
		pins:       make(map[int]*Pin),
		i2c:        make(map[int]I2CReading),
		analogPins: make(map[int]int),
	}
}

func copyPin(p *Pin) Pin {
	cp := *p
	if p.Capabilities != nil {
		cp.Capabilities = append([]codec.ModeCapability(nil), p.Capabilities...)
	}
	return cp
}

// Pin returns the state of a pin.
func (s *State) Pin(index int) (Pin, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if p := s.pins[index]; p != nil {
		return copyPin(p), true
	}
	return Pin{}, false
}

// Pins returns all known pins ordered by index.
func (s *State) Pins() []PinEntry {
	s.lock.RLock()
	defer s.lock.RUnlock()
	entries := make([]PinEntry, 0, len(s.pins))
	for index, p := range s.pins {
		entries = append(entries, PinEntry{Index: index, Pin: copyPin(p)})
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Index < entries[j].Index })
	return entries
}

// PinCount returns the number of pins in the capability report, 0 if unknown.
func (s *State) PinCount() int {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.pinCount
}

// Firmware returns the reported firmware.
func (s *State) Firmware() (Firmware, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.firmware == nil {
		return Firmware{}, false
	}
	return *s.firmware, true
}

// ProtocolVersion returns the reported protocol version.
func (s *State) ProtocolVersion() (Version, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	if s.version == nil {
		return Version{}, false
	}
	return *s.version, true
}

// SamplingInterval returns the interval last set by the client, 0 if never set.
func (s *State) SamplingInterval() time.Duration {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.samplingInterval
}

// I2C returns the last reply from an I2C device.
func (s *State) I2C(address int) (I2CReading, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	r, ok := s.i2c[address]
	if ok {
		r.Data = append([]byte(nil), r.Data...)
	}
	return r, ok
}

// AnalogPin maps an analog channel to its pin.
func (s *State) AnalogPin(channel int) (int, bool) {
	s.lock.RLock()
	defer s.lock.RUnlock()
	pin, ok := s.analogPins[channel]
	return pin, ok
}

// LastString returns the text of the last string report.
func (s *State) LastString() string {
	s.lock.RLock()
	defer s.lock.RUnlock()
	return s.lastString
}

// pin returns the entry of a pin, creating one with an unknown mode.
func (s *State) pin(index int) *Pin {
	p := s.pins[index]
	if p == nil {
		p = &Pin{Mode: codec.ModeUnknown, AnalogChannel: codec.NoChannel}
		s.pins[index] = p
	}
	return p
}

func (s *State) inRange(index int) bool {
	if s.pinCount > 0 {
		return index < s.pinCount
	}
	return index <= codec.MaxPin
}

// apply updates the state from a message sent by the device.
// It returns the indices of the pins touched.
func (s *State) apply(msg codec.Message) (pins []int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	switch m := msg.(type) {
	case codec.DigitalPortReport:
		for bit := 0; bit < 8; bit++ {
			index := m.Port*8 + bit
			if !s.inRange(index) {
				break
			}
			p := s.pin(index)
			if p.Mode == codec.ModeAnalog {
				continue
			}
			p.Value = (m.Mask >> uint(bit)) & 1
			pins = append(pins, index)
		}
	case codec.AnalogPinReport:
		index, ok := s.analogPins[m.Channel]
		if !ok {
			index = m.Channel
		}
		p := s.pin(index)
		p.Value = m.Value
		if p.AnalogChannel == codec.NoChannel {
			p.AnalogChannel = m.Channel
		}
		pins = append(pins, index)
	case codec.FirmwareReport:
		s.firmware = &Firmware{Name: m.Name, Major: m.Major, Minor: m.Minor}
	case codec.ProtocolVersionReport:
		s.version = &Version{Major: m.Major, Minor: m.Minor}
	case codec.StringReport:
		s.lastString = m.Text
	case codec.I2CReply:
		s.i2c[m.Address] = I2CReading{Register: m.Register, Data: append([]byte(nil), m.Data...)}
	case codec.CapabilityReport:
		s.pinCount = len(m.Pins)
		for index, caps := range m.Pins {
			s.pin(index).Capabilities = append([]codec.ModeCapability(nil), caps...)
			pins = append(pins, index)
		}
		for index, p := range s.pins {
			if index >= s.pinCount {
				p.Capabilities = nil
			}
		}
	case codec.AnalogMappingReport:
		s.analogPins = make(map[int]int)
		for index, ch := range m.Channels {
			if ch == codec.NoChannel {
				if p := s.pins[index]; p != nil {
					p.AnalogChannel = codec.NoChannel
				}
				continue
			}
			s.analogPins[ch] = index
			s.pin(index).AnalogChannel = ch
		}
	case codec.PinStateReport:
		p := s.pin(m.Pin)
		p.Mode, p.Value = m.Mode, m.State
		if m.Mode == codec.ModeOutput {
			p.Output = m.State
		}
		pins = append(pins, m.Pin)
	}
	return
}

// applyCommand records the effect of a command written to the device.
func (s *State) applyCommand(cmd codec.Command) (pins []int) {
	s.lock.Lock()
	defer s.lock.Unlock()
	switch c := cmd.(type) {
	case codec.SetPinMode:
		p := s.pin(c.Pin)
		if p.Mode != c.Mode {
			p.Mode, p.Value, p.Output = c.Mode, 0, 0
		}
		pins = append(pins, c.Pin)
	case codec.DigitalWrite:
		for bit := 0; bit < 8; bit++ {
			index := c.Port*8 + bit
			if p := s.pins[index]; p != nil && p.Mode == codec.ModeOutput {
				p.Value = (c.Mask >> uint(bit)) & 1
				p.Output = p.Value
				pins = append(pins, index)
			}
		}
	case codec.DigitalPinWrite:
		p := s.pin(c.Pin)
		p.Value = 0
		if c.Value {
			p.Value = 1
		}
		p.Output = p.Value
		pins = append(pins, c.Pin)
	case codec.AnalogWrite:
		s.pin(c.Pin).Value = c.Value
		pins = append(pins, c.Pin)
	case codec.ServoWrite:
		s.pin(c.Pin).Value = c.Degrees
		pins = append(pins, c.Pin)
	case codec.SetSamplingInterval:
		s.samplingInterval = c.Interval
	case codec.SystemReset:
		for index, p := range s.pins {
			p.Mode, p.Value, p.Output = codec.ModeUnknown, 0, 0
			pins = append(pins, index)
		}
		sort.Ints(pins)
		s.samplingInterval = 0
		s.i2c = make(map[int]I2CReading)
	}
	return
}
