// Package serial opens serial ports as Firmata transports.
package serial

import (
	"fmt"
	"time"

	"go.bug.st/serial"
)

// ReadTimeout bounds a single Read so the reader can observe Close.
const ReadTimeout = 100 * time.Millisecond

// Open opens the port with 8N1 framing at baud.
// Read returns (0, nil) when no data arrives within ReadTimeout.
func Open(name string, baud int) (serial.Port, error) {
	if name == "" {
		return nil, fmt.Errorf("serial: missing port name")
	}
	mode := &serial.Mode{
		BaudRate: baud,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	}
	port, err := serial.Open(name, mode)
	if err != nil {
		return nil, fmt.Errorf("serial: open %s: %w", name, err)
	}
	if err := port.SetReadTimeout(ReadTimeout); err != nil {
		port.Close()
		return nil, fmt.Errorf("serial: set read timeout: %w", err)
	}
	return port, nil
}

