// Package hal defines the opaque hardware interfaces the rest of the
// controller is built against: GPIO, SPI-with-chip-select, a multi-channel
// ADC, a UART byte stream with read timeouts, and a non-volatile parameter
// store. Each is a thin interface plus a package-level singleton, set once
// by board bring-up code and fetched with a Must* accessor that panics if
// nothing registered it — the same pattern used throughout for every
// hardware concern.
package hal

// Pin identifies a hardware GPIO line.
type Pin uint32

// GPIO is the abstract digital I/O interface core code calls.
type GPIO interface {
	ConfigureOutput(pin Pin) error
	ConfigureInputPullUp(pin Pin) error
	ConfigureInputPullDown(pin Pin) error
	SetPin(pin Pin, value bool) error
	ReadPin(pin Pin) (bool, error)
}

var gpioDriver GPIO

// SetGPIO registers the board's GPIO driver. Call once during bring-up.
func SetGPIO(d GPIO) { gpioDriver = d }

// MustGPIO returns the registered GPIO driver or panics.
func MustGPIO() GPIO {
	if gpioDriver == nil {
		panic("hal: GPIO driver not configured")
	}
	return gpioDriver
}
