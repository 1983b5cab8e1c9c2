package hal

// BusID identifies a hardware SPI bus.
type BusID uint8

// Mode is SPI clock polarity/phase (0-3).
type Mode uint8

// BusConfig configures a hardware SPI bus.
type BusConfig struct {
	Bus  BusID
	Mode Mode
	Rate uint32 // Hz
}

// SPIBus is the abstract SPI interface. ConfigureBus returns an opaque
// handle later passed to Transfer; drivers that only ever expose one bus
// may ignore BusConfig.Bus.
type SPIBus interface {
	ConfigureBus(cfg BusConfig) (any, error)
	Transfer(bus any, tx, rx []byte) error
}

var spiDriver SPIBus

// SetSPI registers the board's SPI driver.
func SetSPI(d SPIBus) { spiDriver = d }

// MustSPI returns the registered SPI driver or panics.
func MustSPI() SPIBus {
	if spiDriver == nil {
		panic("hal: SPI driver not configured")
	}
	return spiDriver
}

// ChipSelect wraps a GPIO pin used as an SPI chip-select line, bracketing a
// Transfer so every caller asserts/deasserts CS identically (the motor DAC
// needs three back-to-back transactions per update, each individually
// bracketed, and both I/O-expander banks need the same discipline).
type ChipSelect struct {
	Pin        Pin
	ActiveHigh bool
}

// Assert drives the chip select active.
func (cs ChipSelect) Assert() error {
	return MustGPIO().SetPin(cs.Pin, cs.ActiveHigh)
}

// Deassert drives the chip select inactive.
func (cs ChipSelect) Deassert() error {
	return MustGPIO().SetPin(cs.Pin, !cs.ActiveHigh)
}

// Transact brackets fn with Assert/Deassert, always deasserting even if fn
// fails, mirroring the original firmware's GPIO_write(CS,LOW)/.../GPIO_write
// (CS,HIGH) bracketing around every SPI_transfer call.
func (cs ChipSelect) Transact(fn func() error) error {
	if err := cs.Assert(); err != nil {
		return err
	}
	err := fn()
	if derr := cs.Deassert(); derr != nil && err == nil {
		err = derr
	}
	return err
}
