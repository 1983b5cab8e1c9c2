//go:build tinygo && (rp2040 || rp2350)

package rp2040

import (
	"sync"

	"machine"

	"dtc1200/internal/hal"
)

// adcPins maps the controller's four analog channels (supply/takeup
// tension arms, motor current sense, +24V rail monitor) to physical ADC
// inputs.
var adcPins = map[hal.ADCChannel]machine.Pin{
	0: machine.ADC0,
	1: machine.ADC1,
	2: machine.ADC2,
	3: machine.ADC3,
}

// ADCDriver implements hal.ADC over machine.ADC.
type ADCDriver struct {
	mu       sync.Mutex
	channels map[hal.ADCChannel]machine.ADC
}

// NewADCDriver constructs a driver and runs TinyGo's one-time ADC init.
func NewADCDriver() *ADCDriver {
	machine.InitADC()
	return &ADCDriver{channels: make(map[hal.ADCChannel]machine.ADC)}
}

func (d *ADCDriver) Sample(ch hal.ADCChannel) (uint16, error) {
	d.mu.Lock()
	adc, ok := d.channels[ch]
	if !ok {
		pin, known := adcPins[ch]
		if !known {
			d.mu.Unlock()
			return 0, errUnknownChannel
		}
		adc = machine.ADC{Pin: pin}
		adc.Configure(machine.ADCConfig{})
		d.channels[ch] = adc
	}
	d.mu.Unlock()

	// TinyGo's ADC.Get returns a 16-bit value scaled from the 12-bit
	// conversion; shift it back to the 12-bit range the servo loop's
	// tension math (centred on 2047) expects.
	return adc.Get() >> 4, nil
}

var errUnknownChannel = adcChannelError("rp2040: unknown ADC channel")

type adcChannelError string

func (e adcChannelError) Error() string { return string(e) }
