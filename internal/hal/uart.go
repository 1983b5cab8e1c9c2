package hal

import "time"

// UART is the abstract serial byte stream used by the companion-controller
// IPC link. ReadByte must return an error (not block forever) once timeout
// elapses without a byte arriving, so the framer can detect a stalled or
// disconnected link instead of hanging the servo loop's caller.
type UART interface {
	WriteBytes(data []byte) error
	ReadByte(timeout time.Duration) (byte, error)
}

var uartDriver UART

// SetUART registers the board's UART driver.
func SetUART(d UART) { uartDriver = d }

// MustUART returns the registered UART driver or panics.
func MustUART() UART {
	if uartDriver == nil {
		panic("hal: UART driver not configured")
	}
	return uartDriver
}
