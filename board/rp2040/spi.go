//go:build tinygo && (rp2040 || rp2350)

package rp2040

import (
	"errors"
	"sync"

	"machine"

	"dtc1200/internal/hal"
)

// busPins maps a hal.BusID to the SPI controller and pin set carrying it.
// The motor DAC and both I/O-expander banks sit on separate buses so their
// chip-select brackets never overlap a transfer in flight.
type busPins struct {
	spi  *machine.SPI
	sck  machine.Pin
	sdo  machine.Pin
	sdi  machine.Pin
}

var busTable = map[hal.BusID]busPins{
	0: {spi: machine.SPI0, sck: machine.GPIO2, sdo: machine.GPIO3, sdi: machine.GPIO0},
	1: {spi: machine.SPI0, sck: machine.GPIO6, sdo: machine.GPIO7, sdi: machine.GPIO4},
	2: {spi: machine.SPI1, sck: machine.GPIO10, sdo: machine.GPIO11, sdi: machine.GPIO8},
	3: {spi: machine.SPI1, sck: machine.GPIO14, sdo: machine.GPIO15, sdi: machine.GPIO12},
}

// SPIDriver implements hal.SPIBus over machine.SPI.
type SPIDriver struct {
	mu       sync.Mutex
	instance map[hal.BusID]*machine.SPI
}

// NewSPIDriver constructs an empty driver.
func NewSPIDriver() *SPIDriver {
	return &SPIDriver{instance: make(map[hal.BusID]*machine.SPI)}
}

func (d *SPIDriver) ConfigureBus(cfg hal.BusConfig) (any, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if spi, ok := d.instance[cfg.Bus]; ok {
		return spi, nil
	}

	pins, ok := busTable[cfg.Bus]
	if !ok {
		return nil, errors.New("rp2040: unknown SPI bus")
	}

	if err := pins.spi.Configure(machine.SPIConfig{
		Frequency: cfg.Rate,
		SCK:       pins.sck,
		SDO:       pins.sdo,
		SDI:       pins.sdi,
		Mode:      uint8(cfg.Mode),
	}); err != nil {
		return nil, err
	}

	d.instance[cfg.Bus] = pins.spi
	return pins.spi, nil
}

// Transfer performs a full-duplex SPI exchange. Unlike machine.SPI.Tx,
// callers here may pass a write-only (rx nil) or read-only (tx nil)
// transfer, matching the opcode/register/data framing every MCP23S17 and
// TLV5637 transaction in this controller uses.
func (d *SPIDriver) Transfer(bus any, tx, rx []byte) error {
	spi, ok := bus.(*machine.SPI)
	if !ok {
		return errors.New("rp2040: invalid SPI bus handle")
	}

	switch {
	case rx == nil:
		return spi.Tx(tx, nil)
	case tx == nil:
		return spi.Tx(nil, rx)
	default:
		return spi.Tx(tx, rx)
	}
}
