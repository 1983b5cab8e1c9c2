//go:build tinygo && (rp2040 || rp2350)

// Package rp2040 wires internal/hal's abstract driver interfaces to
// TinyGo's machine package, the same way the command-dictionary firmware
// this board support was lifted from wires its core.GPIODriver/SPIDriver/
// ADCDriver interfaces to the same machine package.
package rp2040

import (
	"machine"

	"dtc1200/internal/hal"
)

// GPIODriver implements hal.GPIO over machine.Pin.
type GPIODriver struct {
	pins map[hal.Pin]machine.Pin
}

// NewGPIODriver constructs an empty driver; pins are mapped lazily on
// first configure.
func NewGPIODriver() *GPIODriver {
	return &GPIODriver{pins: make(map[hal.Pin]machine.Pin)}
}

func (d *GPIODriver) machinePin(pin hal.Pin) machine.Pin {
	if p, ok := d.pins[pin]; ok {
		return p
	}
	p := machine.Pin(pin)
	d.pins[pin] = p
	return p
}

func (d *GPIODriver) ConfigureOutput(pin hal.Pin) error {
	d.machinePin(pin).Configure(machine.PinConfig{Mode: machine.PinOutput})
	return nil
}

func (d *GPIODriver) ConfigureInputPullUp(pin hal.Pin) error {
	d.machinePin(pin).Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return nil
}

func (d *GPIODriver) ConfigureInputPullDown(pin hal.Pin) error {
	d.machinePin(pin).Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
	return nil
}

func (d *GPIODriver) SetPin(pin hal.Pin, value bool) error {
	d.machinePin(pin).Set(value)
	return nil
}

func (d *GPIODriver) ReadPin(pin hal.Pin) (bool, error) {
	return d.machinePin(pin).Get(), nil
}
