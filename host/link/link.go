// Package link adapts the host serial port to the hal.UART interface the
// IPC framer expects, so the same internal/ipc codec that runs on the
// embedded controller also drives the host-side companion CLI.
package link

import (
	"bufio"
	"errors"
	"time"

	"dtc1200/host/serial"
)

// ErrTimeout is returned when no byte arrives before the requested timeout.
var ErrTimeout = errors.New("link: read timeout")

// SerialUART wraps a host serial.Port as an hal.UART.
type SerialUART struct {
	port serial.Port
	r    *bufio.Reader
}

// Open opens the companion-controller serial device at baud.
func Open(device string, baud int) (*SerialUART, error) {
	cfg := &serial.Config{Device: device, Baud: baud, ReadTimeout: 50}
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, err
	}
	return &SerialUART{port: port, r: bufio.NewReader(port)}, nil
}

// WriteBytes implements hal.UART.
func (u *SerialUART) WriteBytes(data []byte) error {
	_, err := u.port.Write(data)
	return err
}

// ReadByte implements hal.UART, polling the port's own fixed read timeout
// until the caller's longer deadline elapses.
func (u *SerialUART) ReadByte(timeout time.Duration) (byte, error) {
	deadline := time.Now().Add(timeout)
	for {
		b, err := u.r.ReadByte()
		if err == nil {
			return b, nil
		}
		if time.Now().After(deadline) {
			return 0, ErrTimeout
		}
		time.Sleep(time.Millisecond)
	}
}

// Close closes the underlying serial port.
func (u *SerialUART) Close() error {
	return u.port.Close()
}
