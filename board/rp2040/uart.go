//go:build tinygo && (rp2040 || rp2350)

package rp2040

import (
	"time"

	"machine"
)

// serialPort is the subset of machine.Serial's interface this driver
// needs; matching it structurally (rather than requiring a concrete
// *machine.UART) lets the same driver wrap either a hardware UART or the
// board's USB CDC port, both of which satisfy it in TinyGo.
type serialPort interface {
	Write(data []byte) (int, error)
	Buffered() int
	ReadByte() (byte, error)
}

// UARTDriver implements hal.UART over a TinyGo serial port (hardware UART
// or USB CDC), wired to the host companion link.
type UARTDriver struct {
	port serialPort
}

// NewUARTDriver configures baud (ignored by USB CDC ports, honored by a
// hardware UART) and returns a driver wrapping port.
func NewUARTDriver(port machine.Serialer, baud uint32) *UARTDriver {
	port.Configure(machine.UARTConfig{BaudRate: baud})
	return &UARTDriver{port: port.(serialPort)}
}

func (d *UARTDriver) WriteBytes(data []byte) error {
	_, err := d.port.Write(data)
	return err
}

// ReadByte polls the port's ring buffer until a byte arrives or timeout
// elapses, since neither a hardware UART nor USB CDC's ReadByte blocks.
func (d *UARTDriver) ReadByte(timeout time.Duration) (byte, error) {
	deadline := time.Now().Add(timeout)
	for {
		if d.port.Buffered() > 0 {
			return d.port.ReadByte()
		}
		if time.Now().After(deadline) {
			return 0, errReadTimeout
		}
	}
}

type uartError string

func (e uartError) Error() string { return string(e) }

const errReadTimeout = uartError("rp2040: UART read timeout")
