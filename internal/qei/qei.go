// Package qei turns the supply and takeup reel quadrature encoders into
// RPM and direction readings. The encoders are read for velocity and
// direction only, never absolute position; a hardware phase-error
// interrupt increments a per-channel fault counter that the servo loop can
// inspect for tachometer-class diagnostics.
package qei

import "dtc1200/internal/hal"

// EdgesPerRev is the encoder line count at four edges per line (360 CPR
// quadrature encoder).
const EdgesPerRev = 1440

// VelocityPeriodSeconds is the hardware velocity-capture window.
const VelocityPeriodSeconds = 0.01 // 10ms

// Channel wraps one hal.QEIChannel with RPM conversion and a phase-error
// counter fed by the channel's hardware error interrupt.
type Channel struct {
	name       string
	hw         hal.QEIChannel
	errorCount uint32
}

// NewChannel opens a named QEI channel ("supply" or "takeup").
func NewChannel(name string) *Channel {
	return &Channel{name: name, hw: hal.MustQEI(name)}
}

// RPM reads the current velocity and converts it to revolutions per
// minute, signed by direction.
func (c *Channel) RPM() (float32, error) {
	edges, err := c.hw.Velocity()
	if err != nil {
		return 0, err
	}
	dir, err := c.hw.Direction()
	if err != nil {
		return 0, err
	}

	revsPerSec := float32(edges) / EdgesPerRev / VelocityPeriodSeconds
	rpm := revsPerSec * 60
	if dir < 0 {
		rpm = -rpm
	}
	return rpm, nil
}

// OnPhaseError increments the fault counter. Call from the hardware error
// interrupt (or its Go equivalent) when the channel reports QEI_INTERROR.
func (c *Channel) OnPhaseError() {
	c.errorCount++
}

// ErrorCount reports how many phase errors this channel has seen since
// boot or the last Reset.
func (c *Channel) ErrorCount() uint32 { return c.errorCount }

// Reset clears the fault counter.
func (c *Channel) Reset() { c.errorCount = 0 }
